package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/arquivoshare/portal-api/internal/access"
	"github.com/arquivoshare/portal-api/internal/models"
	appErrors "github.com/arquivoshare/portal-api/pkg/errors"
)

type fileRepository interface {
	ListAll(ctx context.Context) ([]models.File, error)
	FindByID(ctx context.Context, id string) (*models.File, error)
	Create(ctx context.Context, file *models.File) error
	Update(ctx context.Context, file *models.File) error
	SoftDelete(ctx context.Context, id string, deletedAt time.Time) error
}

type filePermissionReader interface {
	ListByFile(ctx context.Context, fileID string) ([]models.Permission, error)
	ListByFiles(ctx context.Context, fileIDs []string) (map[string][]models.Permission, error)
}

type groupMembershipReader interface {
	GroupIDsForUser(ctx context.Context, userID string) ([]string, error)
}

type categoryMembershipReader interface {
	CategoryIDsForUser(ctx context.Context, userID string) ([]string, error)
}

type downloadRecorder interface {
	Create(ctx context.Context, download *models.Download) error
}

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateFileRequest is the payload for registering an uploaded file.
type CreateFileRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description *string    `json:"description"`
	FileURL     string     `json:"file_url" validate:"required"`
	FileType    *string    `json:"file_type"`
	FileSize    *int64     `json:"file_size"`
	Status      string     `json:"status" validate:"omitempty,oneof=active inactive archived draft"`
	IsPermanent bool       `json:"is_permanent"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// UpdateFileRequest is the payload for editing file metadata and its
// publication window.
type UpdateFileRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description *string    `json:"description"`
	Status      string     `json:"status" validate:"required,oneof=active inactive archived draft"`
	IsPermanent bool       `json:"is_permanent"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// DownloadResult carries the issued blob URL back to the caller.
type DownloadResult struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	FileName  string    `json:"file_name"`
	FileType  *string   `json:"file_type,omitempty"`
}

// FileService owns the file catalog: listing filtered by the caller's
// visibility, metadata CRUD, and the download flow.
type FileService struct {
	files      fileRepository
	grants     filePermissionReader
	groups     groupMembershipReader
	categories categoryMembershipReader
	downloads  downloadRecorder
	audit      auditLogWriter
	blobURLs   BlobURLProvider
	planner    *access.Planner
	validator  *validator.Validate
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewFileService constructs a FileService.
func NewFileService(
	files fileRepository,
	grants filePermissionReader,
	groups groupMembershipReader,
	categories categoryMembershipReader,
	downloads downloadRecorder,
	audit auditLogWriter,
	blobURLs BlobURLProvider,
	planner *access.Planner,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if planner == nil {
		planner = access.NewPlanner(access.NewEvaluator(nil))
	}
	return &FileService{
		files:      files,
		grants:     grants,
		groups:     groups,
		categories: categories,
		downloads:  downloads,
		audit:      audit,
		blobURLs:   blobURLs,
		planner:    planner,
		validator:  validate,
		metrics:    metrics,
		logger:     logger,
	}
}

// List returns the files visible to the caller at this instant. Admins see
// the raw catalog including soft-deleted rows; everyone else gets the
// filtered projection.
func (s *FileService) List(ctx context.Context, claims *models.JWTClaims) ([]models.File, error) {
	start := time.Now()
	files, err := s.files.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("files_list", time.Since(start))
	}

	principal, err := s.principalFor(ctx, claims)
	if err != nil {
		return nil, err
	}

	var grantsByFile map[string][]models.Permission
	if principal.Role != models.RoleAdmin {
		ids := make([]string, 0, len(files))
		for _, f := range files {
			if f.DeletedAt == nil {
				ids = append(ids, f.ID)
			}
		}
		grantsByFile, err = s.grants.ListByFiles(ctx, ids)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permissions")
		}
	}

	visible, err := s.planner.VisibleFiles(files, grantsByFile, principal, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return visible, nil
}

// Get returns a single file if the caller may see it. Hidden and missing
// files are indistinguishable to non-admin callers.
func (s *FileService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.File, error) {
	file, err := s.loadFile(ctx, id)
	if err != nil {
		return nil, err
	}

	visible, err := s.canView(ctx, claims, file)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	return file, nil
}

// Create registers an uploaded file in the catalog.
func (s *FileService) Create(ctx context.Context, claims *models.JWTClaims, req CreateFileRequest, meta models.RequestMeta) (*models.File, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create file payload")
	}

	status := models.FileStatus(req.Status)
	if status == "" {
		status = models.FileStatusActive
	}

	file := &models.File{
		Title:       req.Title,
		Description: req.Description,
		FileURL:     req.FileURL,
		FileType:    req.FileType,
		FileSize:    req.FileSize,
		Status:      status,
		IsPermanent: req.IsPermanent,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		UploadedBy:  claims.UserID,
	}

	if err := s.files.Create(ctx, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create file")
	}

	s.writeAudit(ctx, claims.UserID, models.AuditActionFileCreate, file.ID, nil, map[string]interface{}{
		"title": file.Title, "status": file.Status, "is_permanent": file.IsPermanent,
	}, meta)

	return file, nil
}

// Update edits file metadata and its publication window. A start date after
// the end date is stored as-is; the window is simply never satisfied.
func (s *FileService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateFileRequest, meta models.RequestMeta) (*models.File, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update file payload")
	}

	file, err := s.loadFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if file.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}

	oldValues := map[string]interface{}{
		"title": file.Title, "status": file.Status, "is_permanent": file.IsPermanent,
		"start_date": file.StartDate, "end_date": file.EndDate,
	}

	file.Title = req.Title
	file.Description = req.Description
	file.Status = models.FileStatus(req.Status)
	file.IsPermanent = req.IsPermanent
	file.StartDate = req.StartDate
	file.EndDate = req.EndDate

	if err := s.files.Update(ctx, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update file")
	}

	s.writeAudit(ctx, claims.UserID, models.AuditActionFileUpdate, file.ID, oldValues, map[string]interface{}{
		"title": file.Title, "status": file.Status, "is_permanent": file.IsPermanent,
		"start_date": file.StartDate, "end_date": file.EndDate,
	}, meta)

	return file, nil
}

// Delete soft-deletes the file. The row and its download history remain.
func (s *FileService) Delete(ctx context.Context, claims *models.JWTClaims, id string, meta models.RequestMeta) error {
	file, err := s.loadFile(ctx, id)
	if err != nil {
		return err
	}
	if file.DeletedAt != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}

	if err := s.files.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete file")
	}

	s.writeAudit(ctx, claims.UserID, models.AuditActionFileDelete, file.ID, map[string]interface{}{
		"title": file.Title, "status": file.Status,
	}, map[string]interface{}{"deleted": true}, meta)

	return nil
}

// Download checks visibility, issues a time-limited blob URL and appends a
// download record. The record is written after the URL is issued; a failed
// append is logged, never surfaced, so the user still gets their file.
func (s *FileService) Download(ctx context.Context, claims *models.JWTClaims, id string, meta models.RequestMeta) (*DownloadResult, error) {
	file, err := s.loadFile(ctx, id)
	if err != nil {
		return nil, err
	}

	visible, err := s.canView(ctx, claims, file)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}

	url, expiresAt, err := s.blobURLs.DownloadURL(ctx, file.ID, file.FileURL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue download url")
	}

	if err := s.downloads.Create(ctx, &models.Download{FileID: file.ID, UserID: claims.UserID}); err != nil {
		s.logger.Warn("failed to record download",
			zap.String("file_id", file.ID),
			zap.String("user_id", claims.UserID),
			zap.Error(err))
	} else if s.metrics != nil {
		s.metrics.RecordDownload()
	}

	return &DownloadResult{
		URL:       url,
		ExpiresAt: expiresAt,
		FileName:  file.Title,
		FileType:  file.FileType,
	}, nil
}

func (s *FileService) loadFile(ctx context.Context, id string) (*models.File, error) {
	file, err := s.files.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	return file, nil
}

func (s *FileService) canView(ctx context.Context, claims *models.JWTClaims, file *models.File) (bool, error) {
	principal, err := s.principalFor(ctx, claims)
	if err != nil {
		return false, err
	}

	var grants []models.Permission
	if principal.Role != models.RoleAdmin {
		grants, err = s.grants.ListByFile(ctx, file.ID)
		if err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permissions")
		}
	}

	return s.planner.CanView(*file, grants, principal, time.Now().UTC())
}

// principalFor derives the caller's principal. Membership lookups are
// skipped for admins, whose decisions never consult grants.
func (s *FileService) principalFor(ctx context.Context, claims *models.JWTClaims) (access.Principal, error) {
	principal := access.Principal{UserID: claims.UserID, Role: claims.Role}
	if principal.Role == models.RoleAdmin {
		return principal, nil
	}

	groupIDs, err := s.groups.GroupIDsForUser(ctx, claims.UserID)
	if err != nil {
		return access.Principal{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group memberships")
	}
	categoryIDs, err := s.categories.CategoryIDsForUser(ctx, claims.UserID)
	if err != nil {
		return access.Principal{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category memberships")
	}

	principal.GroupIDs = groupIDs
	principal.CategoryIDs = categoryIDs
	return principal, nil
}

func (s *FileService) writeAudit(ctx context.Context, actorID string, action string, resourceID string, oldValues, newValues map[string]interface{}, meta models.RequestMeta) {
	var oldPayload, newPayload []byte
	if oldValues != nil {
		oldPayload, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		newPayload, _ = json.Marshal(newValues)
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "files",
		ResourceID: &resourceID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record file audit log", zap.Error(err))
	}
}
