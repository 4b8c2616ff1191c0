package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/classroom-connect/quiz-service/internal/models"
	"github.com/classroom-connect/quiz-service/internal/repositories"
	"github.com/classroom-connect/quiz-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateQuizRequest = validator.QuizCreateRequest
type UpdateQuizRequest = validator.QuizUpdateRequest

type QuizResponse struct {
	*models.Quiz
	CanEdit       bool  `json:"can_edit"`
	CanDelete     bool  `json:"can_delete"`
	CanTake       bool  `json:"can_take"`
	QuestionCount int   `json:"question_count"`
	AttemptCount  int64 `json:"attempt_count,omitempty"`
}

type QuizListResponse struct {
	Quizzes []*QuizResponse `json:"quizzes"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	Size    int             `json:"size"`
}

// ===== ATTEMPT RELATED DTOs =====

type StartAttemptRequest struct {
	QuizID uint `json:"quiz_id" validate:"required"`
}

// SubmitQuizRequest carries raw answers keyed by question ID. Values stay
// raw JSON because clients send choice ids, id lists, booleans, strings,
// or the literal "undefined" for untouched questions.
type SubmitQuizRequest struct {
	AttemptID uint                       `json:"attempt_id" validate:"required"`
	Answers   map[string]json.RawMessage `json:"answers" validate:"required"`
}

type AttemptResponse struct {
	*models.QuizAttempt
	IsPendingGrade bool              `json:"is_pending_grade"`
	SyncEligible   bool              `json:"sync_eligible"`
	Questions      []models.Question `json:"questions,omitempty"`
}

// ===== GRADING RELATED DTOs =====

// GradeResult is the outcome of grading one answer. IsCorrect stays nil
// for text answers awaiting manual review.
type GradeResult struct {
	QuestionID   uint    `json:"question_id"`
	IsCorrect    *bool   `json:"is_correct"`
	PointsEarned float64 `json:"points_earned"`
	MaxPoints    float64 `json:"max_points"`
	Feedback     *string `json:"feedback,omitempty"`
}

type AttemptGradeSummary struct {
	AttemptID      uint                 `json:"attempt_id"`
	Score          float64              `json:"score"`
	TotalPoints    float64              `json:"total_points"`
	TotalQuestions int                  `json:"total_questions"`
	CorrectCount   int                  `json:"correct_count"`
	PendingCount   int                  `json:"pending_count"`
	Percentage     float64              `json:"percentage"`
	Passed         bool                 `json:"passed"`
	Status         models.AttemptStatus `json:"status"`
}

type GradeTextAnswerRequest struct {
	IsCorrect    bool    `json:"is_correct"`
	PointsEarned float64 `json:"points_earned" validate:"min=0"`
	Feedback     *string `json:"feedback" validate:"omitempty,max=1000"`
}

// ===== SYNC RELATED DTOs =====

// Identity is the staff member driving a manual sync, used as a teacher
// email fallback when neither the quiz creator nor the analyzer knows one.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type SyncResult struct {
	AttemptID    uint    `json:"attempt_id"`
	Synced       bool    `json:"synced"`
	StudentID    string  `json:"student_id"`
	CourseID     string  `json:"course_id"`
	TeacherEmail string  `json:"teacher_email,omitempty"`
	ScaledScore  float64 `json:"scaled_score"`
	Error        string  `json:"error,omitempty"`
}

type BatchSyncResult struct {
	SuccessCount int          `json:"success_count"`
	ErrorCount   int          `json:"error_count"`
	Results      []SyncResult `json:"results"`
}

type APIStatus struct {
	Available  bool   `json:"available"`
	StatusCode int    `json:"status_code,omitempty"`
	URL        string `json:"url"`
	Error      string `json:"error,omitempty"`
}

type SyncOverview struct {
	TotalTutorialAttempts int64                          `json:"total_tutorial_attempts"`
	SyncedCount           int64                          `json:"synced_count"`
	UnsyncedCount         int64                          `json:"unsynced_count"`
	SyncPercentage        float64                        `json:"sync_percentage"`
	UnsyncedAttempts      []*models.QuizAttempt          `json:"unsynced_attempts"`
	RecentlySynced        []*models.QuizAttempt          `json:"recently_synced"`
	CourseStats           []repositories.CourseSyncStats `json:"course_stats"`
	APIStatus             APIStatus                      `json:"api_status"`
	GeneratedAt           time.Time                      `json:"generated_at"`
}

// ===== SERVICE INTERFACES =====

type QuizService interface {
	// Core CRUD operations
	Create(ctx context.Context, req *CreateQuizRequest, creatorID string) (*QuizResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*QuizResponse, error)
	GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*QuizResponse, error)
	Update(ctx context.Context, id uint, req *UpdateQuizRequest, userID string) (*QuizResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	// List operations
	List(ctx context.Context, filters repositories.QuizFilters, userID string) (*QuizListResponse, error)

	// Lifecycle
	End(ctx context.Context, id uint, userID string) error
}

type AttemptService interface {
	// Core attempt operations
	Start(ctx context.Context, req *StartAttemptRequest, studentID string) (*AttemptResponse, error)
	Submit(ctx context.Context, req *SubmitQuizRequest, studentID string) (*AttemptResponse, error)

	// Get operations
	GetByID(ctx context.Context, id uint, userID string) (*AttemptResponse, error)
	GetByIDWithDetails(ctx context.Context, id uint, userID string) (*AttemptResponse, error)

	// List operations
	List(ctx context.Context, filters repositories.AttemptFilters, userID string) ([]*AttemptResponse, int64, error)
	GetByQuiz(ctx context.Context, quizID uint, filters repositories.AttemptFilters, userID string) ([]*AttemptResponse, int64, error)
}

type GradingService interface {
	// Automatic grading of a single normalized answer
	GradeQuestion(question *models.Question, rawAnswer json.RawMessage) (*GradeResult, error)

	// Re-grade a completed attempt from its stored answers
	GradeAttempt(ctx context.Context, attemptID uint) (*AttemptGradeSummary, error)

	// Manual grading of text answers
	GradeTextAnswer(ctx context.Context, answerID uint, req *GradeTextAnswerRequest, graderID string) (*GradeResult, error)
}

type SyncService interface {
	// Push one completed tutorial attempt to the analyzer
	SyncAttempt(ctx context.Context, attemptID uint, identity *Identity) (*SyncResult, error)

	// Push all unsynced tutorial attempts
	SyncAll(ctx context.Context, identity *Identity) (*BatchSyncResult, error)

	// Staff dashboard aggregates
	Overview(ctx context.Context) (*SyncOverview, error)
	APIStatus(ctx context.Context) *APIStatus
}

type ExportService interface {
	// ExportCourseResults renders course tutorial results as an XLSX
	// workbook and returns the content with a suggested filename.
	ExportCourseResults(ctx context.Context, courseID string, userID string) ([]byte, string, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	// Core service getters
	Quiz() QuizService
	Attempt() AttemptService
	Grading() GradingService
	Sync() SyncService
	Export() ExportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
