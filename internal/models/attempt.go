package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress    AttemptStatus = "in_progress"
	AttemptPendingReview AttemptStatus = "pending_review"
	AttemptGraded        AttemptStatus = "graded"
)

// QuizAttempt is one user's scored instance of taking a quiz. The
// (user, quiz) pair is unique: concurrent submissions cannot create a
// second row, the database constraint is the arbiter.
type QuizAttempt struct {
	ID     uint          `json:"id" gorm:"primaryKey"`
	QuizID uint          `json:"quiz_id" gorm:"not null;uniqueIndex:idx_user_quiz_attempt"`
	UserID string        `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_user_quiz_attempt"`
	Status AttemptStatus `json:"status" gorm:"default:in_progress;index"`

	// Timing
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at" gorm:"index"`
	DurationSeconds int        `json:"duration_seconds"`

	// Scoring
	Score          float64 `json:"score"`
	TotalQuestions int     `json:"total_questions"`
	TotalPoints    float64 `json:"total_points"`
	Percentage     float64 `json:"percentage"`
	Passed         bool    `json:"passed"`

	// Tutorial marks sync bookkeeping. Only meaningful when the owning
	// quiz is tutorial-linked; false plus a completed attempt marks the
	// row as a candidate for the reconciliation sweep.
	MarksSynced bool       `json:"marks_synced" gorm:"default:false;index"`
	LastSyncAt  *time.Time `json:"last_sync_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Quiz    Quiz         `json:"quiz" gorm:"foreignKey:QuizID"`
	User    User         `json:"user" gorm:"foreignKey:UserID"`
	Answers []QuizAnswer `json:"answers" gorm:"foreignKey:AttemptID"`
}

// IsCompleted reports whether the attempt has been submitted.
func (a *QuizAttempt) IsCompleted() bool {
	return a.CompletedAt != nil
}

// QuizAnswer is the per-question record of an attempt. Selected choices
// are kept even when the answer is wrong so results can show what the
// student picked.
type QuizAnswer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;index"`
	QuestionID uint `json:"question_id" gorm:"not null;index"`

	// Normalized response, at most one populated per question type.
	SelectedChoices datatypes.JSON `json:"selected_choices" gorm:"type:jsonb"` // []uint choice ids
	TextAnswer      string         `json:"text_answer" gorm:"type:text"`
	BooleanAnswer   *bool          `json:"boolean_answer"`

	// Grading. IsCorrect is nil for free-text answers awaiting manual
	// review.
	IsCorrect    *bool      `json:"is_correct"`
	PointsEarned float64    `json:"points_earned"`
	Feedback     *string    `json:"feedback" gorm:"type:text"`
	GradedBy     *string    `json:"graded_by" gorm:"size:255"`
	GradedAt     *time.Time `json:"graded_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Attempt  QuizAttempt `json:"-" gorm:"foreignKey:AttemptID"`
	Question Question    `json:"question" gorm:"foreignKey:QuestionID"`
	Grader   *User       `json:"grader" gorm:"foreignKey:GradedBy"`
}

// IsPendingGrading reports whether the answer still needs a manual grade.
func (a *QuizAnswer) IsPendingGrading() bool {
	return a.IsCorrect == nil
}
