package analyzer

import (
	"context"
)

// UpdateMarksRequest is the payload pushed to the academic analyzer when a
// tutorial attempt is synced. Marks keys are slot names such as "tutorial2".
type UpdateMarksRequest struct {
	StudentID    string             `json:"studentId"`
	CourseID     string             `json:"courseId"`
	TeacherEmail string             `json:"teacherEmail"`
	Marks        map[string]float64 `json:"marks"`
}

// UpdateMarksResponse is the analyzer's reply to a marks update
type UpdateMarksResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}

// CourseDetailResponse describes a course as known to the analyzer
type CourseDetailResponse struct {
	Success         bool     `json:"success"`
	CourseID        string   `json:"courseId"`
	CourseName      string   `json:"courseName,omitempty"`
	InstructorEmail string   `json:"instructorEmail,omitempty"`
	Students        []string `json:"students,omitempty"`
}

// StatusResponse is the analyzer's availability probe reply
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Rejection categories returned by the analyzer on failed updates
const (
	CategoryStudentNotFound = "student_not_found"
	CategoryNotEnrolled     = "not_enrolled"
	CategoryNoMarkRecord    = "no_mark_record"
	CategoryValidation      = "validation"
)

// Client talks to the academic analyzer, the remote mark store that owns
// the per-course tutorial mark slots.
type Client interface {
	CourseDetail(ctx context.Context, courseID string) (*CourseDetailResponse, error)
	UpdateStudentMarks(ctx context.Context, req *UpdateMarksRequest) (*UpdateMarksResponse, error)
	Status(ctx context.Context) (*StatusResponse, error)
}
