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

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.UserProfile, int, error)
	FindByUserID(ctx context.Context, userID string) (*models.UserProfile, error)
	Update(ctx context.Context, profile *models.UserProfile) error
	UpdateRole(ctx context.Context, userID string, role models.UserRole) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UpdateProfileRequest is the payload for editing a profile.
type UpdateProfileRequest struct {
	FullName             string `json:"full_name" validate:"required,max=255"`
	ReceiveNotifications *bool  `json:"receive_notifications"`
}

// UpdateRoleRequest changes a user's RBAC role.
type UpdateRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=admin operator user"`
}

// UserService handles profile management workflows.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated profiles and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.UserProfile, *models.Pagination, error) {
	profiles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	pagination := &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}

	return profiles, pagination, nil
}

// Get returns a profile by its identity-provider user id.
func (s *UserService) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	return s.loadProfile(ctx, userID)
}

// Update modifies mutable profile attributes.
func (s *UserService) Update(ctx context.Context, userID string, req UpdateProfileRequest) (*models.UserProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile.FullName = req.FullName
	if req.ReceiveNotifications != nil {
		profile.ReceiveNotifications = *req.ReceiveNotifications
	}

	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	return profile, nil
}

// UpdateRole changes the role of a user. The change is audited with the
// previous role.
func (s *UserService) UpdateRole(ctx context.Context, claims *models.JWTClaims, userID string, req UpdateRoleRequest, meta models.RequestMeta) (*models.UserProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}

	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"role": profile.Role})

	if err := s.repo.UpdateRole(ctx, userID, req.Role); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
	}
	profile.Role = req.Role

	newPayload, _ := json.Marshal(map[string]interface{}{"role": req.Role})
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionUserRoleChange,
		Resource:   "profiles",
		ResourceID: &userID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record role change audit log", zap.Error(err))
	}

	return profile, nil
}

func (s *UserService) loadProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return profile, nil
}
