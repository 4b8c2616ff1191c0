package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classroom-connect/quiz-service/internal/services"
	"github.com/classroom-connect/quiz-service/internal/utils"
	"github.com/classroom-connect/quiz-service/internal/validator"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
	validator      *validator.Validator
}

func NewGradingHandler(
	gradingService services.GradingService,
	validator *validator.Validator,
	logger utils.Logger,
) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
		validator:      validator,
	}
}

// GradeTextAnswer manually grades a free text answer
// @Summary Grade text answer
// @Description Records a manual grade for a free text answer and updates
// the attempt totals. Staff only.
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Answer ID"
// @Param grade body services.GradeTextAnswerRequest true "Grade data"
// @Success 200 {object} services.GradeResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /answers/{id}/grade [post]
func (h *GradingHandler) GradeTextAnswer(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Grading text answer", "answer_id", id)

	var req services.GradeTextAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.gradingService.GradeTextAnswer(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RegradeAttempt re-grades a completed attempt from its stored answers
// @Summary Regrade attempt
// @Description Re-runs automatic grading over the stored answers. Manual
// grades on text answers are preserved.
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptGradeSummary
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id}/regrade [post]
func (h *GradingHandler) RegradeAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Regrading attempt", "attempt_id", id)

	if _, ok := h.requireUserID(c); !ok {
		return
	}

	summary, err := h.gradingService.GradeAttempt(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
