package events

import (
	"context"
	"time"
)

// Event types published by the quiz service
const (
	EventAttemptGraded   = "quiz.attempt.graded"
	EventMarksSynced     = "quiz.marks.synced"
	EventMarksSyncFailed = "quiz.marks.sync_failed"
	EventQuizEnded       = "quiz.ended"
)

const (
	eventSource  = "quiz-service"
	eventVersion = "1.0"
)

// Event is the envelope for all published domain events
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// AttemptGradedData is the payload of quiz.attempt.graded
type AttemptGradedData struct {
	AttemptID  uint    `json:"attempt_id"`
	QuizID     uint    `json:"quiz_id"`
	UserID     string  `json:"user_id"`
	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
	Passed     bool    `json:"passed"`
	Status     string  `json:"status"`
}

// MarksSyncedData is the payload of quiz.marks.synced
type MarksSyncedData struct {
	AttemptID      uint    `json:"attempt_id"`
	QuizID         uint    `json:"quiz_id"`
	UserID         string  `json:"user_id"`
	CourseID       string  `json:"course_id"`
	TutorialNumber int     `json:"tutorial_number"`
	ScaledScore    float64 `json:"scaled_score"`
	TeacherEmail   string  `json:"teacher_email"`
}

// MarksSyncFailedData is the payload of quiz.marks.sync_failed
type MarksSyncFailedData struct {
	AttemptID uint   `json:"attempt_id"`
	QuizID    uint   `json:"quiz_id"`
	UserID    string `json:"user_id"`
	CourseID  string `json:"course_id"`
	Reason    string `json:"reason"`
}

// QuizEndedData is the payload of quiz.ended
type QuizEndedData struct {
	QuizID   uint   `json:"quiz_id"`
	CourseID string `json:"course_id,omitempty"`
	EndedBy  string `json:"ended_by"`
}

// EventPublisher publishes domain events to the configured transport
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
