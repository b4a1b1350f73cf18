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

type categoryRepository interface {
	List(ctx context.Context) ([]models.CategoryWithCounts, error)
	FindByID(ctx context.Context, id string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, categoryID, userID string) error
	RemoveMember(ctx context.Context, categoryID, userID string) error
	MemberIDs(ctx context.Context, categoryID string) ([]string, error)
}

// CategoryRequest is the payload for creating or renaming a category.
type CategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description *string `json:"description"`
}

// CategoryService manages categories and their memberships.
type CategoryService struct {
	repo      categoryRepository
	audit     auditLogWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCategoryService constructs a CategoryService.
func NewCategoryService(repo categoryRepository, audit auditLogWriter, validate *validator.Validate, logger *zap.Logger) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CategoryService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns all categories with file and member counts.
func (s *CategoryService) List(ctx context.Context) ([]models.CategoryWithCounts, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, nil
}

// Get returns a category by id.
func (s *CategoryService) Get(ctx context.Context, id string) (*models.Category, error) {
	return s.loadCategory(ctx, id)
}

// Create adds a new category.
func (s *CategoryService) Create(ctx context.Context, claims *models.JWTClaims, req CategoryRequest, meta models.RequestMeta) (*models.Category, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}

	category := &models.Category{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   claims.UserID,
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create category")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"name": category.Name})
	s.writeAudit(ctx, claims.UserID, "categories", category.ID, nil, newPayload, meta)

	return category, nil
}

// Update renames a category.
func (s *CategoryService) Update(ctx context.Context, claims *models.JWTClaims, id string, req CategoryRequest, meta models.RequestMeta) (*models.Category, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}

	category, err := s.loadCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"name": category.Name})
	category.Name = req.Name
	category.Description = req.Description

	if err := s.repo.Update(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update category")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"name": category.Name})
	s.writeAudit(ctx, claims.UserID, "categories", category.ID, oldPayload, newPayload, meta)

	return category, nil
}

// Delete removes a category and its memberships. Grant rows referencing it
// stay behind and stop matching anyone.
func (s *CategoryService) Delete(ctx context.Context, claims *models.JWTClaims, id string, meta models.RequestMeta) error {
	category, err := s.loadCategory(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete category")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"name": category.Name})
	s.writeAudit(ctx, claims.UserID, "categories", id, oldPayload, nil, meta)

	return nil
}

// Members returns the user ids belonging to the category.
func (s *CategoryService) Members(ctx context.Context, id string) ([]string, error) {
	if _, err := s.loadCategory(ctx, id); err != nil {
		return nil, err
	}
	ids, err := s.repo.MemberIDs(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list category members")
	}
	return ids, nil
}

// AddMember places a user in the category. Adding an existing member is a no-op.
func (s *CategoryService) AddMember(ctx context.Context, claims *models.JWTClaims, categoryID, userID string, meta models.RequestMeta) error {
	if _, err := s.loadCategory(ctx, categoryID); err != nil {
		return err
	}
	if err := s.repo.AddMember(ctx, categoryID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add category member")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"user_id": userID, "op": "add"})
	s.writeAudit(ctx, claims.UserID, "user_categories", categoryID, nil, newPayload, meta)

	return nil
}

// RemoveMember takes a user out of the category.
func (s *CategoryService) RemoveMember(ctx context.Context, claims *models.JWTClaims, categoryID, userID string, meta models.RequestMeta) error {
	if _, err := s.loadCategory(ctx, categoryID); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, categoryID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove category member")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"user_id": userID, "op": "remove"})
	s.writeAudit(ctx, claims.UserID, "user_categories", categoryID, oldPayload, nil, meta)

	return nil
}

func (s *CategoryService) loadCategory(ctx context.Context, id string) (*models.Category, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	return category, nil
}

func (s *CategoryService) writeAudit(ctx context.Context, actorID, resource, resourceID string, oldPayload, newPayload []byte, meta models.RequestMeta) {
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionMembershipChange,
		Resource:   resource,
		ResourceID: &resourceID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record category audit log", zap.Error(err))
	}
}
