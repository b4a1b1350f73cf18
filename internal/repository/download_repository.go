package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arquivoshare/portal-api/internal/models"
)

// DownloadRepository provides the append-only download log and its
// analytics aggregates.
type DownloadRepository struct {
	db *sqlx.DB
}

// NewDownloadRepository creates the repository.
func NewDownloadRepository(db *sqlx.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// Create appends a download record. Rows are never updated or deleted;
// a retried append yields an extra row rather than corrupting state.
func (r *DownloadRepository) Create(ctx context.Context, download *models.Download) error {
	if download.ID == "" {
		download.ID = uuid.NewString()
	}
	if download.DownloadedAt.IsZero() {
		download.DownloadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO downloads (id, file_id, user_id, downloaded_at)
VALUES (:id, :file_id, :user_id, :downloaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, download); err != nil {
		return fmt.Errorf("create download: %w", err)
	}
	return nil
}

const downloadDetailColumns = `d.id, d.file_id, d.user_id, d.downloaded_at,
f.title AS file_title, f.file_type, f.file_size,
COALESCE(p.full_name, '') AS user_full_name`

// ListByFile returns the download log for one file, newest first.
func (r *DownloadRepository) ListByFile(ctx context.Context, fileID string, limit int) ([]models.DownloadDetail, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM downloads d
JOIN files f ON f.id = d.file_id
LEFT JOIN profiles p ON p.user_id = d.user_id
WHERE d.file_id = $1
ORDER BY d.downloaded_at DESC
LIMIT %d`, downloadDetailColumns, limit)
	var downloads []models.DownloadDetail
	if err := r.db.SelectContext(ctx, &downloads, query, fileID); err != nil {
		return nil, fmt.Errorf("list downloads for file: %w", err)
	}
	return downloads, nil
}

// ListRecent returns the most recent downloads across all files.
func (r *DownloadRepository) ListRecent(ctx context.Context, limit int) ([]models.DownloadDetail, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM downloads d
JOIN files f ON f.id = d.file_id
LEFT JOIN profiles p ON p.user_id = d.user_id
ORDER BY d.downloaded_at DESC
LIMIT %d`, downloadDetailColumns, limit)
	var downloads []models.DownloadDetail
	if err := r.db.SelectContext(ctx, &downloads, query); err != nil {
		return nil, fmt.Errorf("list recent downloads: %w", err)
	}
	return downloads, nil
}

// Stats aggregates the dashboard counters. dayStart and monthStart are
// computed by the caller in the deployment's reference timezone.
func (r *DownloadRepository) Stats(ctx context.Context, dayStart, monthStart time.Time) (*models.DownloadStats, error) {
	stats := &models.DownloadStats{}

	if err := r.db.GetContext(ctx, &stats.TodayCount, `SELECT COUNT(*) FROM downloads WHERE downloaded_at >= $1`, dayStart); err != nil {
		return nil, fmt.Errorf("count downloads today: %w", err)
	}
	if err := r.db.GetContext(ctx, &stats.TotalCount, `SELECT COUNT(*) FROM downloads`); err != nil {
		return nil, fmt.Errorf("count downloads total: %w", err)
	}
	if err := r.db.GetContext(ctx, &stats.UniqueUsersThisMonth, `SELECT COUNT(DISTINCT user_id) FROM downloads WHERE downloaded_at >= $1`, monthStart); err != nil {
		return nil, fmt.Errorf("count unique downloaders: %w", err)
	}

	return stats, nil
}
