package models

import "time"

// AnalyticsOverview is the dashboard payload combining the download
// counters with the most recent download activity.
type AnalyticsOverview struct {
	Stats       DownloadStats    `json:"stats"`
	Recent      []DownloadDetail `json:"recent"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// AnalyticsSystemMetrics is a lightweight snapshot of runtime instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
