package marksregistry

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UpdateMarksRequest is the wire payload of a marks update
type UpdateMarksRequest struct {
	StudentID    string             `json:"studentId" binding:"required"`
	CourseID     string             `json:"courseId" binding:"required"`
	TeacherEmail string             `json:"teacherEmail" binding:"required"`
	Marks        map[string]float64 `json:"marks" binding:"required"`
}

// Handler serves the registry HTTP API
type Handler struct {
	store  MarkStore
	logger *slog.Logger
}

func NewHandler(store MarkStore, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes mounts the registry endpoints
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	staff := router.Group("/staff")
	{
		staff.POST("/update-student-marks", h.UpdateStudentMarks)
		staff.GET("/course-detail", h.CourseDetail)
	}
	router.GET("/status", h.Status)
}

// UpdateStudentMarks applies mark slot updates to a student's aggregate
// record for a course
func (h *Handler) UpdateStudentMarks(c *gin.Context) {
	var req UpdateMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":  false,
			"message":  "invalid request payload: " + err.Error(),
			"category": CategoryValidation,
		})
		return
	}

	err := h.store.UpdateMarks(c.Request.Context(), req.StudentID, req.CourseID, req.TeacherEmail, req.Marks)
	if err != nil {
		var updateErr *UpdateError
		if errors.As(err, &updateErr) {
			c.JSON(statusForCategory(updateErr.Category), gin.H{
				"success":  false,
				"message":  updateErr.Message,
				"category": updateErr.Category,
			})
			return
		}

		h.logger.Error("marks update failed", "student", req.StudentID, "course", req.CourseID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "internal error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "marks updated",
	})
}

// CourseDetail returns course name, instructor and roster
func (h *Handler) CourseDetail(c *gin.Context) {
	courseCode := c.Query("courseId")
	if courseCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":  false,
			"message":  "courseId is required",
			"category": CategoryValidation,
		})
		return
	}

	info, err := h.store.CourseDetail(c.Request.Context(), courseCode)
	if err != nil {
		var updateErr *UpdateError
		if errors.As(err, &updateErr) {
			c.JSON(http.StatusNotFound, gin.H{
				"success":  false,
				"message":  updateErr.Message,
				"category": updateErr.Category,
			})
			return
		}

		h.logger.Error("course detail failed", "course", courseCode, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "internal error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"courseId":        info.Code,
		"courseName":      info.Name,
		"instructorEmail": info.InstructorEmail,
		"students":        info.Students,
	})
}

// Status is the liveness probe used by the sync dashboard
func (h *Handler) Status(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "marks registry is up",
	})
}

func statusForCategory(category string) int {
	switch category {
	case CategoryTeacherNotFound, CategoryStudentNotFound, CategoryCourseNotFound, CategoryNoMarkRecord:
		return http.StatusNotFound
	case CategoryNotEnrolled:
		return http.StatusForbidden
	case CategoryValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
