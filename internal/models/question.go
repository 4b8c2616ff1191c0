package models

import (
	"strings"
	"time"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "mcq_single"
	MultipleChoice QuestionType = "mcq_multiple"
	TrueFalse      QuestionType = "true_false"
	FreeText       QuestionType = "text"
)

type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	QuizID uint         `json:"quiz_id" gorm:"not null;index"`
	Type   QuestionType `json:"question_type" gorm:"not null;index"`
	Text   string       `json:"text" gorm:"type:text;not null" validate:"required"`
	Points float64      `json:"points" gorm:"default:1" validate:"min=0"`
	Order  int          `json:"order" gorm:"default:0"`

	// Legacy reference answer for non-choice questions. Free-text grading
	// compares against this when set; true/false questions without choice
	// rows fall back to it as well.
	CorrectAnswer *string `json:"correct_answer" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Quiz    Quiz     `json:"-" gorm:"foreignKey:QuizID"`
	Choices []Choice `json:"choices" gorm:"foreignKey:QuestionID"`
}

// ChoiceByID returns the question's choice with the given id, or nil when
// the id does not belong to this question.
func (q *Question) ChoiceByID(id uint) *Choice {
	for i := range q.Choices {
		if q.Choices[i].ID == id {
			return &q.Choices[i]
		}
	}
	return nil
}

// CorrectChoiceIDs returns the ids of all choices flagged correct.
func (q *Question) CorrectChoiceIDs() []uint {
	var ids []uint
	for _, c := range q.Choices {
		if c.IsCorrect {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Choice is one selectable option of a choice-based question. Order is
// presentation only; correctness lives exclusively in IsCorrect.
type Choice struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Text       string `json:"text" gorm:"type:text;not null" validate:"required"`
	IsCorrect  bool   `json:"is_correct" gorm:"default:false"`
	Order      int    `json:"order" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
}

// BoolValue interprets the choice text as a true/false literal for
// true/false questions. The second return is false when the text is
// neither literal.
func (c *Choice) BoolValue() (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(c.Text)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
