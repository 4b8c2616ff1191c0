package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classroom-connect/quiz-service/internal/services"
	"github.com/classroom-connect/quiz-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SyncHandler struct {
	BaseHandler
	syncService   services.SyncService
	exportService services.ExportService
}

func NewSyncHandler(
	syncService services.SyncService,
	exportService services.ExportService,
	logger utils.Logger,
) *SyncHandler {
	return &SyncHandler{
		BaseHandler:   NewBaseHandler(logger),
		syncService:   syncService,
		exportService: exportService,
	}
}

// SyncOverview returns the marks sync dashboard
// @Summary Sync overview
// @Description Aggregates tutorial attempt sync counts, unsynced and
// recently synced attempts, and the analyzer API status
// @Tags sync
// @Accept json
// @Produce json
// @Success 200 {object} services.SyncOverview
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /sync/overview [get]
func (h *SyncHandler) SyncOverview(c *gin.Context) {
	h.LogRequest(c, "Getting sync overview")

	overview, err := h.syncService.Overview(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

// SyncAttempt pushes one tutorial attempt to the analyzer
// @Summary Sync attempt
// @Description Pushes one completed tutorial attempt's scaled score to the
// academic analyzer. Already synced attempts are a no-op.
// @Tags sync
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.SyncResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /sync/attempts/{id} [post]
func (h *SyncHandler) SyncAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Syncing attempt", "attempt_id", id)

	result, err := h.syncService.SyncAttempt(c.Request.Context(), id, h.callerIdentity(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SyncAll pushes every unsynced tutorial attempt to the analyzer
// @Summary Sync all attempts
// @Description Pushes all unsynced graded tutorial attempts to the academic
// analyzer and reports per-attempt outcomes
// @Tags sync
// @Accept json
// @Produce json
// @Success 200 {object} services.BatchSyncResult
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /sync/all [post]
func (h *SyncHandler) SyncAll(c *gin.Context) {
	h.LogRequest(c, "Syncing all unsynced attempts")

	result, err := h.syncService.SyncAll(c.Request.Context(), h.callerIdentity(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// APIStatus probes the analyzer API
// @Summary Analyzer API status
// @Description Probes the academic analyzer status endpoint
// @Tags sync
// @Accept json
// @Produce json
// @Success 200 {object} services.APIStatus
// @Router /sync/status [get]
func (h *SyncHandler) APIStatus(c *gin.Context) {
	h.LogRequest(c, "Checking analyzer API status")

	c.JSON(http.StatusOK, h.syncService.APIStatus(c.Request.Context()))
}

// ExportCourseResults downloads course tutorial results as XLSX
// @Summary Export course results
// @Description Renders completed tutorial attempts for a course as an XLSX
// workbook. Staff only.
// @Tags export
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param course_id path string true "Course ID"
// @Success 200 {file} binary
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /export/courses/{course_id} [get]
func (h *SyncHandler) ExportCourseResults(c *gin.Context) {
	courseID := c.Param("course_id")
	if courseID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid course_id",
		})
		return
	}

	h.LogRequest(c, "Exporting course results", "course_id", courseID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	content, filename, err := h.exportService.ExportCourseResults(c.Request.Context(), courseID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, xlsxContentType, content)
}

// callerIdentity builds the staff identity from gateway headers, used as a
// teacher email fallback during sync
func (h *SyncHandler) callerIdentity(c *gin.Context) *services.Identity {
	email, exists := c.Get("user_email")
	if !exists {
		return nil
	}
	emailStr, ok := email.(string)
	if !ok || emailStr == "" {
		return nil
	}
	return &services.Identity{Email: emailStr}
}
