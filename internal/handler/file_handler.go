package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arquivoshare/portal-api/internal/service"
	appErrors "github.com/arquivoshare/portal-api/pkg/errors"
	"github.com/arquivoshare/portal-api/pkg/response"
)

// FileHandler handles the file catalog endpoints.
type FileHandler struct {
	files       *service.FileService
	permissions *service.PermissionService
	analytics   *service.AnalyticsService
	localBlobs  *service.LocalBlobURLs
}

// NewFileHandler creates a new file handler. localBlobs is nil when the S3
// storage driver is active.
func NewFileHandler(files *service.FileService, permissions *service.PermissionService, analytics *service.AnalyticsService, localBlobs *service.LocalBlobURLs) *FileHandler {
	return &FileHandler{files: files, permissions: permissions, analytics: analytics, localBlobs: localBlobs}
}

// List godoc
// @Summary List files
// @Description List files visible to the caller
// @Tags Files
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /files [get]
func (h *FileHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	files, err := h.files.List(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, files, nil)
}

// Get godoc
// @Summary Get file
// @Description Get file detail when visible to the caller
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id} [get]
func (h *FileHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	file, err := h.files.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, file, nil)
}

// Create godoc
// @Summary Create file
// @Description Register an uploaded file in the catalog
// @Tags Files
// @Accept json
// @Produce json
// @Param payload body service.CreateFileRequest true "Create file payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /files [post]
func (h *FileHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	file, err := h.files.Create(c.Request.Context(), claims, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, file)
}

// Update godoc
// @Summary Update file
// @Description Update file metadata and publication window
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body service.UpdateFileRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id} [put]
func (h *FileHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	file, err := h.files.Update(c.Request.Context(), claims, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, file, nil)
}

// Delete godoc
// @Summary Delete file
// @Description Soft delete a file
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.files.Delete(c.Request.Context(), claims, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Download godoc
// @Summary Download file
// @Description Issue a time-limited download URL and record the download
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id}/download [post]
func (h *FileHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.files.Download(c.Request.Context(), claims, c.Param("id"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.analytics.InvalidateDownloads(c.Request.Context())

	response.JSON(c, http.StatusOK, result, nil)
}

// Blob streams a locally stored blob referenced by a signed token. Only
// registered when the local storage driver is active; the token itself is
// the access proof, so the route is unauthenticated.
func (h *FileHandler) Blob(c *gin.Context) {
	if h.localBlobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "local storage not enabled"))
		return
	}

	file, name, err := h.localBlobs.OpenByToken(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, http.StatusUnauthorized, "invalid download token"))
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", "attachment; filename=\""+name+"\"")
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}

// Downloads godoc
// @Summary File download log
// @Description List the download history of a file
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id}/downloads [get]
func (h *FileHandler) Downloads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	downloads, err := h.analytics.FileDownloads(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, downloads, nil)
}

// ListPermissions godoc
// @Summary List file permissions
// @Description List the grant rows of a file
// @Tags Permissions
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id}/permissions [get]
func (h *FileHandler) ListPermissions(c *gin.Context) {
	grants, err := h.permissions.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, grants, nil)
}

// Grant godoc
// @Summary Grant file permission
// @Description Share a file with a user, group, or category
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body service.GrantRequest true "Grant payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /files/{id}/permissions [post]
func (h *FileHandler) Grant(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	grant, err := h.permissions.Grant(c.Request.Context(), claims, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, grant)
}

// Revoke godoc
// @Summary Revoke file permission
// @Description Remove a grant row from a file
// @Tags Permissions
// @Produce json
// @Param id path string true "File ID"
// @Param grantId path string true "Grant ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /files/{id}/permissions/{grantId} [delete]
func (h *FileHandler) Revoke(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.permissions.Revoke(c.Request.Context(), claims, c.Param("id"), c.Param("grantId"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
