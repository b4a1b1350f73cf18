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

// CategoryRepository provides persistence for categories and their
// memberships.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository creates the repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns all categories with user and file counts, newest first. The
// file count is the number of distinct files carrying a grant scoped to the
// category.
func (r *CategoryRepository) List(ctx context.Context) ([]models.CategoryWithCounts, error) {
	const query = `SELECT c.id, c.name, c.description, c.created_by, c.created_at, c.updated_at,
COUNT(DISTINCT fp.file_id) AS file_count,
COUNT(DISTINCT uc.user_id) AS user_count
FROM categories c
LEFT JOIN file_permissions fp ON fp.category_id = c.id
LEFT JOIN user_categories uc ON uc.category_id = c.id
GROUP BY c.id
ORDER BY c.created_at DESC, c.id ASC`
	var categories []models.CategoryWithCounts
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// FindByID returns a category by identifier.
func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*models.Category, error) {
	const query = `SELECT id, name, description, created_by, created_at, updated_at FROM categories WHERE id = $1 LIMIT 1`
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find category by id: %w", err)
	}
	return &category, nil
}

// Create inserts a new category.
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = now
	const query = `INSERT INTO categories (id, name, description, created_by, created_at, updated_at)
VALUES (:id, :name, :description, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// Update modifies a category's name and description.
func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) error {
	category.UpdatedAt = time.Now().UTC()
	const query = `UPDATE categories SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// Delete removes a category and its memberships.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_categories WHERE category_id = $1`, id); err != nil {
		return fmt.Errorf("delete category memberships: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// AddMember inserts a membership row for the user.
func (r *CategoryRepository) AddMember(ctx context.Context, categoryID, userID string) error {
	membership := models.CategoryMembership{
		ID:         uuid.NewString(),
		UserID:     userID,
		CategoryID: categoryID,
		CreatedAt:  time.Now().UTC(),
	}
	const query = `INSERT INTO user_categories (id, user_id, category_id, created_at)
VALUES (:id, :user_id, :category_id, :created_at) ON CONFLICT (user_id, category_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, membership); err != nil {
		return fmt.Errorf("add category member: %w", err)
	}
	return nil
}

// RemoveMember deletes the membership row for the user.
func (r *CategoryRepository) RemoveMember(ctx context.Context, categoryID, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_categories WHERE category_id = $1 AND user_id = $2`, categoryID, userID); err != nil {
		return fmt.Errorf("remove category member: %w", err)
	}
	return nil
}

// MemberIDs returns the user ids belonging to the category.
func (r *CategoryRepository) MemberIDs(ctx context.Context, categoryID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM user_categories WHERE category_id = $1 ORDER BY created_at ASC`, categoryID); err != nil {
		return nil, fmt.Errorf("list category members: %w", err)
	}
	return ids, nil
}

// CategoryIDsForUser returns the ids of every category the user belongs
// to. The access planner derives the principal's category set from this.
func (r *CategoryRepository) CategoryIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT category_id FROM user_categories WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("list categories for user: %w", err)
	}
	return ids, nil
}
