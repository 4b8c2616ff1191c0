package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/classroom-connect/quiz-service/internal/models"
	"gorm.io/gorm"
)

// ===== SHARED FILTER STRUCTS =====

type QuizFilters struct {
	QuizType  *models.QuizType `json:"quiz_type"`
	CourseID  *string          `json:"course_id"`
	CreatedBy *string          `json:"created_by"`
	IsEnded   *bool            `json:"is_ended"`
	Limit     int              `json:"limit"`
	Offset    int              `json:"offset"`
	SortBy    string           `json:"sort_by"`    // "created_at", "title"
	SortOrder string           `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status   *models.AttemptStatus `json:"status"`
	UserID   *string               `json:"user_id"`
	DateFrom *time.Time            `json:"date_from"`
	DateTo   *time.Time            `json:"date_to"`
	Limit    int                   `json:"limit"`
	Offset   int                   `json:"offset"`
}

// ===== SHARED STATISTICS STRUCTS =====

// CourseSyncStats is one row of the per-course sync breakdown shown on
// the sync dashboard.
type CourseSyncStats struct {
	CourseID string `json:"course_id"`
	Total    int64  `json:"total"`
	Synced   int64  `json:"synced"`
	Unsynced int64  `json:"unsynced"`
}

// ===== REPOSITORY INTERFACES =====

// All methods accept an optional transaction handle; nil means the
// repository's own connection.

type QuizRepository interface {
	Create(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error)
	Update(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters QuizFilters) ([]*models.Quiz, int64, error)
}

type QuestionRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	DeleteByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) error
}

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error)
	GetByUserAndQuiz(ctx context.Context, tx *gorm.DB, userID string, quizID uint) (*models.QuizAttempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error
	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.QuizAttempt, int64, error)
	GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint, filters AttemptFilters) ([]*models.QuizAttempt, int64, error)
	GetByCourse(ctx context.Context, tx *gorm.DB, courseID string) ([]*models.QuizAttempt, error)

	// Sync bookkeeping
	GetUnsyncedTutorialAttempts(ctx context.Context, tx *gorm.DB, limit int) ([]*models.QuizAttempt, error)
	GetRecentlySynced(ctx context.Context, tx *gorm.DB, limit int) ([]*models.QuizAttempt, error)
	CountTutorialAttempts(ctx context.Context, tx *gorm.DB) (total int64, unsynced int64, err error)
	GetCourseSyncStats(ctx context.Context, tx *gorm.DB) ([]CourseSyncStats, error)
	MarkSynced(ctx context.Context, tx *gorm.DB, attemptID uint, at time.Time) error
}

type AnswerRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.QuizAnswer) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAnswer, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAnswer, error)
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.QuizAnswer, error)
	Update(ctx context.Context, tx *gorm.DB, answer *models.QuizAnswer) error
	DeleteByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) error
	HasPendingGrading(ctx context.Context, tx *gorm.DB, attemptID uint) (bool, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// ===== ERRORS =====

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey)
}
