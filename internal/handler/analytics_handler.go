package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arquivoshare/portal-api/internal/service"
	"github.com/arquivoshare/portal-api/pkg/response"
)

// AnalyticsHandler exposes the download analytics endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	exports   *service.ExportService
}

// NewAnalyticsHandler constructs an analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService, exports *service.ExportService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, exports: exports}
}

// Stats godoc
// @Summary Download statistics
// @Description Aggregated download counters for the dashboard
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/downloads [get]
func (h *AnalyticsHandler) Stats(c *gin.Context) {
	stats, fromCache, err := h.analytics.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil, map[string]interface{}{"cache": fromCache})
}

// Recent godoc
// @Summary Recent downloads
// @Description Most recent downloads across all files
// @Tags Analytics
// @Produce json
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Router /analytics/downloads/recent [get]
func (h *AnalyticsHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	downloads, err := h.analytics.Recent(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, downloads, nil)
}

// Overview godoc
// @Summary Analytics overview
// @Description Counters plus recent activity in one payload
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/overview [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	overview, err := h.analytics.Overview(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, overview, nil)
}

// System godoc
// @Summary System metrics snapshot
// @Description Runtime instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.analytics.SystemMetrics(), nil)
}

// Export godoc
// @Summary Export download report
// @Description Render the download log as CSV or PDF
// @Tags Analytics
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Param limit query int false "Max rows"
// @Success 200
// @Failure 400 {object} response.Envelope
// @Router /analytics/downloads/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))

	payload, err := h.exports.DownloadsReport(c.Request.Context(), format, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+payload.Filename+"\"")
	c.Data(http.StatusOK, payload.ContentType, payload.Data)
}
