package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/arquivoshare/portal-api/internal/models"
	appErrors "github.com/arquivoshare/portal-api/pkg/errors"
)

type groupRepository interface {
	List(ctx context.Context) ([]models.GroupWithCounts, error)
	FindByID(ctx context.Context, id string) (*models.Group, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	MemberIDs(ctx context.Context, groupID string) ([]string, error)
}

// GroupRequest is the payload for creating or renaming a group.
type GroupRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description *string `json:"description"`
}

// GroupService manages groups and their memberships.
type GroupService struct {
	repo      groupRepository
	audit     auditLogWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs a GroupService.
func NewGroupService(repo groupRepository, audit auditLogWriter, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GroupService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns all groups with member counts.
func (s *GroupService) List(ctx context.Context) ([]models.GroupWithCounts, error) {
	groups, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, nil
}

// Get returns a group by id.
func (s *GroupService) Get(ctx context.Context, id string) (*models.Group, error) {
	return s.loadGroup(ctx, id)
}

// Create adds a new group.
func (s *GroupService) Create(ctx context.Context, claims *models.JWTClaims, req GroupRequest, meta models.RequestMeta) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}

	group := &models.Group{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   claims.UserID,
	}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"name": group.Name})
	s.writeAudit(ctx, claims.UserID, models.AuditActionMembershipChange, "groups", group.ID, nil, newPayload, meta)

	return group, nil
}

// Update renames a group.
func (s *GroupService) Update(ctx context.Context, claims *models.JWTClaims, id string, req GroupRequest, meta models.RequestMeta) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}

	group, err := s.loadGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"name": group.Name})
	group.Name = req.Name
	group.Description = req.Description

	if err := s.repo.Update(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"name": group.Name})
	s.writeAudit(ctx, claims.UserID, models.AuditActionMembershipChange, "groups", group.ID, oldPayload, newPayload, meta)

	return group, nil
}

// Delete removes a group and its memberships. Grant rows referencing the
// group stay behind and simply stop matching anyone.
func (s *GroupService) Delete(ctx context.Context, claims *models.JWTClaims, id string, meta models.RequestMeta) error {
	group, err := s.loadGroup(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete group")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"name": group.Name})
	s.writeAudit(ctx, claims.UserID, models.AuditActionMembershipChange, "groups", id, oldPayload, nil, meta)

	return nil
}

// Members returns the user ids belonging to the group.
func (s *GroupService) Members(ctx context.Context, id string) ([]string, error) {
	if _, err := s.loadGroup(ctx, id); err != nil {
		return nil, err
	}
	ids, err := s.repo.MemberIDs(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list group members")
	}
	return ids, nil
}

// AddMember places a user in the group. Adding an existing member is a no-op.
func (s *GroupService) AddMember(ctx context.Context, claims *models.JWTClaims, groupID, userID string, meta models.RequestMeta) error {
	if _, err := s.loadGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.repo.AddMember(ctx, groupID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add group member")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"user_id": userID, "op": "add"})
	s.writeAudit(ctx, claims.UserID, models.AuditActionMembershipChange, "user_groups", groupID, nil, newPayload, meta)

	return nil
}

// RemoveMember takes a user out of the group.
func (s *GroupService) RemoveMember(ctx context.Context, claims *models.JWTClaims, groupID, userID string, meta models.RequestMeta) error {
	if _, err := s.loadGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, groupID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove group member")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"user_id": userID, "op": "remove"})
	s.writeAudit(ctx, claims.UserID, models.AuditActionMembershipChange, "user_groups", groupID, oldPayload, nil, meta)

	return nil
}

func (s *GroupService) loadGroup(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

func (s *GroupService) writeAudit(ctx context.Context, actorID, action, resource, resourceID string, oldPayload, newPayload []byte, meta models.RequestMeta) {
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record group audit log", zap.Error(err))
	}
}
