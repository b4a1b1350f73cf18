package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arquivoshare/portal-api/internal/models"
)

// FileRepository provides persistence for uploaded file records.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository creates a new instance of FileRepository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `id, title, description, file_url, file_type, file_size, status, is_permanent, start_date, end_date, uploaded_by, created_at, updated_at, deleted_at`

// ListAll returns the complete file set, soft-deleted rows included. The
// visibility filtering happens in the access planner, which needs the raw
// snapshot for admin listings.
func (r *FileRepository) ListAll(ctx context.Context) ([]models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files ORDER BY created_at DESC, id ASC`, fileColumns)
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// FindByID returns a file by identifier, including soft-deleted rows.
func (r *FileRepository) FindByID(ctx context.Context, id string) (*models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1 LIMIT 1`, fileColumns)
	var file models.File
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find file by id: %w", err)
	}
	return &file, nil
}

// Create inserts a new file record.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now

	const query = `INSERT INTO files (id, title, description, file_url, file_type, file_size, status, is_permanent, start_date, end_date, uploaded_by, created_at, updated_at)
VALUES (:id, :title, :description, :file_url, :file_type, :file_size, :status, :is_permanent, :start_date, :end_date, :uploaded_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// Update modifies the editable attributes of a file.
func (r *FileRepository) Update(ctx context.Context, file *models.File) error {
	file.UpdatedAt = time.Now().UTC()
	const query = `UPDATE files SET title = :title, description = :description, status = :status, is_permanent = :is_permanent, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

// SoftDelete marks the file as deleted without removing the row.
func (r *FileRepository) SoftDelete(ctx context.Context, id string, deletedAt time.Time) error {
	const query = `UPDATE files SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, deletedAt); err != nil {
		return fmt.Errorf("soft delete file: %w", err)
	}
	return nil
}
