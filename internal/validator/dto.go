package validator

import (
	"time"

	"github.com/classroom-connect/quiz-service/internal/models"
)

// QuizCreateRequest represents the request structure for creating quizzes
type QuizCreateRequest struct {
	Title          string                  `json:"title" validate:"required,quiz_title"`
	Description    *string                 `json:"description" validate:"omitempty,max=1000"`
	QuizType       models.QuizType         `json:"quiz_type" validate:"required,quiz_type"`
	TutorialNumber *int                    `json:"tutorial_number" validate:"omitempty,min=1,max=4"`
	CourseID       *string                 `json:"course_id" validate:"omitempty,min=1,max=50"`
	PassingScore   *float64                `json:"passing_score" validate:"omitempty,passing_score"`
	TimeLimit      *int                    `json:"time_limit" validate:"omitempty,time_limit"`
	StartTime      *time.Time              `json:"start_time"`
	EndTime        *time.Time              `json:"end_time"`
	AllowRetake    bool                    `json:"allow_retake"`
	ShowResults    *bool                   `json:"show_results"`
	Questions      []QuestionCreateRequest `json:"questions" validate:"required,min=1,dive"`
}

// QuizUpdateRequest represents the request structure for updating quizzes
type QuizUpdateRequest struct {
	Title          *string                 `json:"title" validate:"omitempty,quiz_title"`
	Description    *string                 `json:"description" validate:"omitempty,max=1000"`
	TutorialNumber *int                    `json:"tutorial_number" validate:"omitempty,min=1,max=4"`
	CourseID       *string                 `json:"course_id" validate:"omitempty,min=1,max=50"`
	PassingScore   *float64                `json:"passing_score" validate:"omitempty,passing_score"`
	TimeLimit      *int                    `json:"time_limit" validate:"omitempty,time_limit"`
	StartTime      *time.Time              `json:"start_time"`
	EndTime        *time.Time              `json:"end_time"`
	AllowRetake    *bool                   `json:"allow_retake"`
	ShowResults    *bool                   `json:"show_results"`
	Questions      []QuestionCreateRequest `json:"questions" validate:"omitempty,min=1,dive"`
}

// QuestionCreateRequest represents a question inside a quiz create/update payload
type QuestionCreateRequest struct {
	Type          models.QuestionType   `json:"type" validate:"required,question_type"`
	Text          string                `json:"text" validate:"required,min=1,max=2000"`
	Points        *float64              `json:"points" validate:"omitempty,points_range"`
	Order         int                   `json:"order" validate:"min=0"`
	CorrectAnswer *string               `json:"correct_answer" validate:"omitempty,max=500"`
	Choices       []ChoiceCreateRequest `json:"choices" validate:"omitempty,dive"`
}

// ChoiceCreateRequest represents a choice inside a question payload
type ChoiceCreateRequest struct {
	Text      string `json:"text" validate:"required,min=1,max=500"`
	IsCorrect bool   `json:"is_correct"`
	Order     int    `json:"order" validate:"min=0"`
}
