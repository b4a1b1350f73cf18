package models

import "time"

// Download is an immutable log entry recorded once per completed download.
// Rows are append-only and never deduplicated; a retried append simply
// produces an extra row.
type Download struct {
	ID           string    `db:"id" json:"id"`
	FileID       string    `db:"file_id" json:"file_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	DownloadedAt time.Time `db:"downloaded_at" json:"downloaded_at"`
}

// DownloadDetail joins a download row with file and user display fields for
// the analytics listing.
type DownloadDetail struct {
	Download
	FileTitle    string  `db:"file_title" json:"file_title"`
	FileType     *string `db:"file_type" json:"file_type,omitempty"`
	FileSize     *int64  `db:"file_size" json:"file_size,omitempty"`
	UserFullName string  `db:"user_full_name" json:"user_full_name"`
}

// DownloadStats aggregates counters for the analytics dashboard.
type DownloadStats struct {
	TodayCount           int `json:"today_count"`
	TotalCount           int `json:"total_count"`
	UniqueUsersThisMonth int `json:"unique_users_this_month"`
}
