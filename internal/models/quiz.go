package models

import (
	"time"
)

type QuizType string

const (
	QuizRegular  QuizType = "regular"
	QuizTutorial QuizType = "tutorial"
)

type Quiz struct {
	ID          uint     `json:"id" gorm:"primaryKey"`
	Title       string   `json:"title" gorm:"not null;size:255" validate:"required,max=255"`
	Description string   `json:"description" gorm:"type:text"`
	QuizType    QuizType `json:"quiz_type" gorm:"default:regular;index"`

	// Tutorial linkage. A tutorial quiz maps onto one of the four tutorial
	// mark slots of an external course, so both fields must be set together.
	TutorialNumber *int    `json:"tutorial_number" validate:"omitempty,min=1,max=4"`
	CourseID       *string `json:"course_id" gorm:"size:50;index"`

	// Scoring and availability
	PassingScore float64    `json:"passing_score" gorm:"default:50"` // percentage threshold
	TimeLimit    *int       `json:"time_limit"`                      // minutes, nil = unlimited
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	AllowRetake  bool       `json:"allow_retake" gorm:"default:false"`
	ShowResults  bool       `json:"show_results" gorm:"default:true"`
	IsEnded      bool       `json:"is_ended" gorm:"default:false;index"`

	CreatedBy string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Creator   User       `json:"creator" gorm:"foreignKey:CreatedBy"`
	Questions []Question `json:"questions" gorm:"foreignKey:QuizID"`

	// Statistics (computed)
	AttemptCount int     `json:"attempt_count" gorm:"-"`
	TotalPoints  float64 `json:"total_points" gorm:"-"`
}

// IsTutorial reports whether the quiz is eligible for marks sync: tutorial
// type with a tutorial slot and an external course attached.
func (q *Quiz) IsTutorial() bool {
	return q.QuizType == QuizTutorial &&
		q.TutorialNumber != nil && *q.TutorialNumber >= 1 && *q.TutorialNumber <= 4 &&
		q.CourseID != nil && *q.CourseID != ""
}

// IsAvailable reports whether the quiz currently accepts attempts.
func (q *Quiz) IsAvailable(now time.Time) bool {
	if q.IsEnded {
		return false
	}
	if q.StartTime != nil && now.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && now.After(*q.EndTime) {
		return false
	}
	return true
}
