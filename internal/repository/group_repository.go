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

// GroupRepository provides persistence for groups and their memberships.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository creates the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// List returns all groups with member counts, newest first.
func (r *GroupRepository) List(ctx context.Context) ([]models.GroupWithCounts, error) {
	const query = `SELECT g.id, g.name, g.description, g.created_by, g.created_at, g.updated_at,
COUNT(ug.id) AS user_count
FROM groups g
LEFT JOIN user_groups ug ON ug.group_id = g.id
GROUP BY g.id
ORDER BY g.created_at DESC, g.id ASC`
	var groups []models.GroupWithCounts
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// FindByID returns a group by identifier.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	const query = `SELECT id, name, description, created_by, created_at, updated_at FROM groups WHERE id = $1 LIMIT 1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find group by id: %w", err)
	}
	return &group, nil
}

// Create inserts a new group.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	const query = `INSERT INTO groups (id, name, description, created_by, created_at, updated_at)
VALUES (:id, :name, :description, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Update modifies a group's name and description.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE groups SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}

// Delete removes a group and its memberships.
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_groups WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("delete group memberships: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// AddMember inserts a membership row for the user.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	membership := models.GroupMembership{
		ID:        uuid.NewString(),
		UserID:    userID,
		GroupID:   groupID,
		CreatedAt: time.Now().UTC(),
	}
	const query = `INSERT INTO user_groups (id, user_id, group_id, created_at)
VALUES (:id, :user_id, :group_id, :created_at) ON CONFLICT (user_id, group_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, membership); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// RemoveMember deletes the membership row for the user.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_groups WHERE group_id = $1 AND user_id = $2`, groupID, userID); err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	return nil
}

// MemberIDs returns the user ids belonging to the group.
func (r *GroupRepository) MemberIDs(ctx context.Context, groupID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM user_groups WHERE group_id = $1 ORDER BY created_at ASC`, groupID); err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return ids, nil
}

// GroupIDsForUser returns the ids of every group the user belongs to. The
// access planner derives the principal's group set from this.
func (r *GroupRepository) GroupIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT group_id FROM user_groups WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("list groups for user: %w", err)
	}
	return ids, nil
}
