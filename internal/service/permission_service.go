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

type permissionRepository interface {
	ListByFile(ctx context.Context, fileID string) ([]models.Permission, error)
	FindByID(ctx context.Context, id string) (*models.Permission, error)
	Create(ctx context.Context, grant *models.Permission) error
	Delete(ctx context.Context, id string) error
}

type permissionFileReader interface {
	FindByID(ctx context.Context, id string) (*models.File, error)
}

// GrantRequest is the payload for sharing a file. Exactly one of the three
// scope fields must be set.
type GrantRequest struct {
	UserID     *string `json:"user_id"`
	GroupID    *string `json:"group_id"`
	CategoryID *string `json:"category_id"`
}

// PermissionService manages the grant rows attached to files.
type PermissionService struct {
	grants    permissionRepository
	files     permissionFileReader
	audit     auditLogWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(grants permissionRepository, files permissionFileReader, audit auditLogWriter, validate *validator.Validate, logger *zap.Logger) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PermissionService{grants: grants, files: files, audit: audit, validator: validate, logger: logger}
}

// List returns the grant rows for a file.
func (s *PermissionService) List(ctx context.Context, fileID string) ([]models.Permission, error) {
	if _, err := s.loadFile(ctx, fileID); err != nil {
		return nil, err
	}
	grants, err := s.grants.ListByFile(ctx, fileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list permissions")
	}
	return grants, nil
}

// Grant attaches a new permission row to the file. The first grant on an
// unrestricted file flips it to allow-list mode.
func (s *PermissionService) Grant(ctx context.Context, claims *models.JWTClaims, fileID string, req GrantRequest, meta models.RequestMeta) (*models.Permission, error) {
	if err := validateGrantScope(req); err != nil {
		return nil, err
	}

	if _, err := s.loadFile(ctx, fileID); err != nil {
		return nil, err
	}

	grant := &models.Permission{
		FileID:     fileID,
		UserID:     req.UserID,
		GroupID:    req.GroupID,
		CategoryID: req.CategoryID,
	}

	if err := s.grants.Create(ctx, grant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create permission")
	}

	scope, subject, _ := grant.Scope()
	newPayload, _ := json.Marshal(map[string]interface{}{"scope": scope, "subject": subject})
	s.writeAudit(ctx, claims.UserID, models.AuditActionGrantCreate, grant.ID, nil, newPayload, meta)

	return grant, nil
}

// Revoke removes a grant row from the file. Revoking the last row returns
// the file to its unrestricted state.
func (s *PermissionService) Revoke(ctx context.Context, claims *models.JWTClaims, fileID, grantID string, meta models.RequestMeta) error {
	grant, err := s.grants.FindByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "permission not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permission")
	}
	if grant.FileID != fileID {
		return appErrors.Clone(appErrors.ErrNotFound, "permission not found")
	}

	if err := s.grants.Delete(ctx, grantID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete permission")
	}

	oldPayload, _ := json.Marshal(grant)
	s.writeAudit(ctx, claims.UserID, models.AuditActionGrantRevoke, grantID, oldPayload, nil, meta)

	return nil
}

func (s *PermissionService) loadFile(ctx context.Context, fileID string) (*models.File, error) {
	file, err := s.files.FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if file.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	return file, nil
}

// validateGrantScope rejects payloads that would create an ambiguous row.
// The same exactly-one rule the resolver enforces on read is enforced here
// on write, so malformed rows cannot enter through the API.
func validateGrantScope(req GrantRequest) error {
	set := 0
	if req.UserID != nil && *req.UserID != "" {
		set++
	}
	if req.GroupID != nil && *req.GroupID != "" {
		set++
	}
	if req.CategoryID != nil && *req.CategoryID != "" {
		set++
	}
	if set != 1 {
		return appErrors.Clone(appErrors.ErrValidation, "exactly one of user_id, group_id, category_id must be set")
	}
	return nil
}

func (s *PermissionService) writeAudit(ctx context.Context, actorID, action, resourceID string, oldPayload, newPayload []byte, meta models.RequestMeta) {
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "file_permissions",
		ResourceID: &resourceID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record permission audit log", zap.Error(err))
	}
}
