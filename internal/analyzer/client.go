package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/classroom-connect/quiz-service/internal/config"
)

// RestyClient is the HTTP implementation of Client
type RestyClient struct {
	client        *resty.Client
	detailTimeout time.Duration
	updateTimeout time.Duration
	statusTimeout time.Duration
	logger        *slog.Logger
}

// NewClient creates an analyzer client from configuration
func NewClient(cfg config.AnalyzerConfig, logger *slog.Logger) *RestyClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)

	return &RestyClient{
		client:        client,
		detailTimeout: cfg.DetailTimeout,
		updateTimeout: cfg.UpdateTimeout,
		statusTimeout: cfg.StatusTimeout,
		logger:        logger,
	}
}

// CourseDetail looks up a course to discover its instructor email
func (c *RestyClient) CourseDetail(ctx context.Context, courseID string) (*CourseDetailResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.detailTimeout)
	defer cancel()

	var detail CourseDetailResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("courseId", courseID).
		SetResult(&detail).
		Get("/staff/course-detail")
	if err != nil {
		return nil, fmt.Errorf("course detail request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("course detail returned status %d", resp.StatusCode())
	}

	return &detail, nil
}

// UpdateStudentMarks pushes mark slot values for one student in one course.
// A non-2xx reply is returned as an error with the parsed rejection attached
// when the analyzer sent one.
func (c *RestyClient) UpdateStudentMarks(ctx context.Context, req *UpdateMarksRequest) (*UpdateMarksResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.updateTimeout)
	defer cancel()

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/staff/update-student-marks")
	if err != nil {
		return nil, fmt.Errorf("update marks request failed: %w", err)
	}

	var result UpdateMarksResponse
	if unmarshalErr := json.Unmarshal(resp.Body(), &result); unmarshalErr != nil && resp.IsSuccess() {
		return nil, fmt.Errorf("invalid update marks response: %w", unmarshalErr)
	}

	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		c.logger.Warn("analyzer rejected marks update",
			"status", resp.StatusCode(),
			"category", result.Category,
			"student_id", req.StudentID,
			"course_id", req.CourseID)
		return &result, fmt.Errorf("analyzer rejected update: status %d category %s", resp.StatusCode(), result.Category)
	}

	return &result, nil
}

// Status probes the analyzer's availability
func (c *RestyClient) Status(ctx context.Context) (*StatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	var status StatusResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&status).
		Get("/status")
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("status returned %d", resp.StatusCode())
	}

	return &status, nil
}
