package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/arquivoshare/portal-api/internal/models"
)

// PermissionRepository provides persistence for file permission grants.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository creates the repository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

const permissionColumns = `id, file_id, user_id, group_id, category_id, created_at`

// ListByFile returns the grant rows for a single file.
func (r *PermissionRepository) ListByFile(ctx context.Context, fileID string) ([]models.Permission, error) {
	query := fmt.Sprintf(`SELECT %s FROM file_permissions WHERE file_id = $1 ORDER BY created_at ASC`, permissionColumns)
	var grants []models.Permission
	if err := r.db.SelectContext(ctx, &grants, query, fileID); err != nil {
		return nil, fmt.Errorf("list permissions for file: %w", err)
	}
	return grants, nil
}

// ListByFiles returns every grant for the given file ids, grouped by file.
// The access planner consumes this as its per-snapshot grant index.
func (r *PermissionRepository) ListByFiles(ctx context.Context, fileIDs []string) (map[string][]models.Permission, error) {
	grouped := make(map[string][]models.Permission, len(fileIDs))
	if len(fileIDs) == 0 {
		return grouped, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM file_permissions WHERE file_id = ANY($1)`, permissionColumns)
	var grants []models.Permission
	if err := r.db.SelectContext(ctx, &grants, query, pq.Array(fileIDs)); err != nil {
		return nil, fmt.Errorf("list permissions for files: %w", err)
	}
	for _, grant := range grants {
		grouped[grant.FileID] = append(grouped[grant.FileID], grant)
	}
	return grouped, nil
}

// FindByID returns a single grant row.
func (r *PermissionRepository) FindByID(ctx context.Context, id string) (*models.Permission, error) {
	query := fmt.Sprintf(`SELECT %s FROM file_permissions WHERE id = $1 LIMIT 1`, permissionColumns)
	var grant models.Permission
	if err := r.db.GetContext(ctx, &grant, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find permission by id: %w", err)
	}
	return &grant, nil
}

// Create inserts a new grant row.
func (r *PermissionRepository) Create(ctx context.Context, grant *models.Permission) error {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO file_permissions (id, file_id, user_id, group_id, category_id, created_at)
VALUES (:id, :file_id, :user_id, :group_id, :category_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grant); err != nil {
		return fmt.Errorf("create permission: %w", err)
	}
	return nil
}

// Delete removes a grant row. Revocation is a hard delete; a file with no
// remaining rows becomes unrestricted again.
func (r *PermissionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM file_permissions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	return nil
}
