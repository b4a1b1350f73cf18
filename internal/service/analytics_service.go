package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arquivoshare/portal-api/internal/models"
	appErrors "github.com/arquivoshare/portal-api/pkg/errors"
)

type downloadAnalyticsRepository interface {
	ListByFile(ctx context.Context, fileID string, limit int) ([]models.DownloadDetail, error)
	ListRecent(ctx context.Context, limit int) ([]models.DownloadDetail, error)
	Stats(ctx context.Context, dayStart, monthStart time.Time) (*models.DownloadStats, error)
}

type analyticsFileReader interface {
	FindByID(ctx context.Context, id string) (*models.File, error)
}

// AnalyticsService aggregates the download log for the dashboard, with
// cache integration for the counter queries.
type AnalyticsService struct {
	downloads downloadAnalyticsRepository
	files     analyticsFileReader
	cache     *CacheService
	metrics   *MetricsService
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnalyticsService constructs an analytics service. loc is the reference
// timezone for "today" and "this month"; nil means UTC.
func NewAnalyticsService(downloads downloadAnalyticsRepository, files analyticsFileReader, cache *CacheService, metrics *MetricsService, loc *time.Location, logger *zap.Logger) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{downloads: downloads, files: files, cache: cache, metrics: metrics, loc: loc, logger: logger, now: time.Now}
}

// Stats returns the dashboard counters. The boolean indicates whether data
// originated from cache.
func (s *AnalyticsService) Stats(ctx context.Context) (*models.DownloadStats, bool, error) {
	now := s.now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)

	cacheKey := fmt.Sprintf("analytics:downloads:%s", dayStart.Format("2006-01-02"))
	var cached models.DownloadStats
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get stats cache: %w", err)
		} else if hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	stats, err := s.downloads.Stats(ctx, dayStart, monthStart)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate download stats")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_downloads", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, stats, 0); err != nil {
			s.logger.Warn("cache download stats", zap.Error(err))
		}
	}
	return stats, false, nil
}

// Recent returns the most recent downloads across all files.
func (s *AnalyticsService) Recent(ctx context.Context, limit int) ([]models.DownloadDetail, error) {
	downloads, err := s.downloads.ListRecent(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent downloads")
	}
	return downloads, nil
}

// Overview combines counters and recent activity in one payload.
func (s *AnalyticsService) Overview(ctx context.Context, recentLimit int) (*models.AnalyticsOverview, error) {
	stats, _, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.Recent(ctx, recentLimit)
	if err != nil {
		return nil, err
	}
	return &models.AnalyticsOverview{
		Stats:       *stats,
		Recent:      recent,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// InvalidateDownloads drops the cached counters after a download append so
// the dashboard does not serve stale counts for a full TTL window.
func (s *AnalyticsService) InvalidateDownloads(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "analytics:downloads:*"); err != nil {
		s.logger.Warn("invalidate download stats cache", zap.Error(err))
	}
}

// FileDownloads returns the download log of a single file.
func (s *AnalyticsService) FileDownloads(ctx context.Context, fileID string, limit int) ([]models.DownloadDetail, error) {
	if _, err := s.files.FindByID(ctx, fileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	downloads, err := s.downloads.ListByFile(ctx, fileID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list file downloads")
	}
	return downloads, nil
}

// SystemMetrics returns the runtime instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	if s.metrics == nil {
		return models.AnalyticsSystemMetrics{}
	}
	return s.metrics.Snapshot()
}
