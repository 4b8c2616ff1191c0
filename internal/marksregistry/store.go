package marksregistry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// Rejection categories carried in error responses so callers can log the
// rejection class without parsing messages.
const (
	CategoryTeacherNotFound = "teacher_not_found"
	CategoryStudentNotFound = "student_not_found"
	CategoryCourseNotFound  = "course_not_found"
	CategoryNotEnrolled     = "not_enrolled"
	CategoryNoMarkRecord    = "no_mark_record"
	CategoryValidation      = "validation"
)

// UpdateError is a categorized marks update rejection
type UpdateError struct {
	Category string
	Message  string
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// slotLimits maps every accepted mark slot to its maximum value. Slot
// names double as the column names of the aggregate record.
var slotLimits = map[string]float64{
	"tutorial1":  10,
	"tutorial2":  10,
	"tutorial3":  10,
	"tutorial4":  10,
	"ca1":        50,
	"ca2":        50,
	"assignment": 10,
}

// markUpdates validates mark slots and builds the column update set.
// Rejects the whole request on the first unknown slot or out-of-range
// value so a bad payload never partially mutates the record.
func markUpdates(marks map[string]float64) (map[string]interface{}, error) {
	if len(marks) == 0 {
		return nil, &UpdateError{
			Category: CategoryValidation,
			Message:  "no marks provided",
		}
	}

	updates := make(map[string]interface{}, len(marks))
	for slot, value := range marks {
		limit, ok := slotLimits[slot]
		if !ok {
			return nil, &UpdateError{
				Category: CategoryValidation,
				Message:  fmt.Sprintf("unknown mark slot %q", slot),
			}
		}
		if value < 0 || value > limit {
			return nil, &UpdateError{
				Category: CategoryValidation,
				Message:  fmt.Sprintf("%s must be between 0 and %g, got %g", slot, limit, value),
			}
		}
		updates[slot] = value
	}
	return updates, nil
}

// CourseInfo is the roster view of a course
type CourseInfo struct {
	Code            string
	Name            string
	InstructorEmail string
	Students        []string
}

// MarkStore is the registry's storage contract
type MarkStore interface {
	UpdateMarks(ctx context.Context, studentRoll, courseCode, teacherEmail string, marks map[string]float64) error
	CourseDetail(ctx context.Context, courseCode string) (*CourseInfo, error)
	Ping(ctx context.Context) error
}

// Store implements MarkStore over PostgreSQL
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// UpdateMarks writes mark slots onto an existing aggregate record. Checks
// run in a fixed order so every failure mode has a distinct category:
// teacher, student and course must resolve by natural key, the student
// must be enrolled, and the aggregate record must already exist. Only the
// slots named in the request are written, last write wins per slot.
func (s *Store) UpdateMarks(ctx context.Context, studentRoll, courseCode, teacherEmail string, marks map[string]float64) error {
	db := s.db.WithContext(ctx)

	var teacher Teacher
	if err := db.Where("email = ?", teacherEmail).First(&teacher).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &UpdateError{
				Category: CategoryTeacherNotFound,
				Message:  fmt.Sprintf("no teacher with email %s", teacherEmail),
			}
		}
		return fmt.Errorf("failed to look up teacher: %w", err)
	}

	var student Student
	if err := db.Where("roll_number = ?", studentRoll).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &UpdateError{
				Category: CategoryStudentNotFound,
				Message:  fmt.Sprintf("no student with roll number %s", studentRoll),
			}
		}
		return fmt.Errorf("failed to look up student: %w", err)
	}

	var course Course
	if err := db.Where("code = ?", courseCode).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &UpdateError{
				Category: CategoryCourseNotFound,
				Message:  fmt.Sprintf("no course with code %s", courseCode),
			}
		}
		return fmt.Errorf("failed to look up course: %w", err)
	}

	var enrolled int64
	err := db.Table("course_enrollments").
		Where("course_id = ? AND student_id = ?", course.ID, student.ID).
		Count(&enrolled).Error
	if err != nil {
		return fmt.Errorf("failed to check enrollment: %w", err)
	}
	if enrolled == 0 {
		return &UpdateError{
			Category: CategoryNotEnrolled,
			Message:  fmt.Sprintf("student %s is not enrolled in %s", studentRoll, courseCode),
		}
	}

	var mark StudentMark
	err = db.Where("student_id = ? AND course_id = ?", student.ID, course.ID).First(&mark).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &UpdateError{
				Category: CategoryNoMarkRecord,
				Message:  fmt.Sprintf("no mark record for %s in %s", studentRoll, courseCode),
			}
		}
		return fmt.Errorf("failed to look up mark record: %w", err)
	}

	updates, err := markUpdates(marks)
	if err != nil {
		return err
	}

	if err := db.Model(&mark).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update marks: %w", err)
	}

	s.logger.Info("marks updated",
		"student", studentRoll,
		"course", courseCode,
		"teacher", teacherEmail,
		"slots", len(updates))

	return nil
}

// CourseDetail returns the course roster and instructor
func (s *Store) CourseDetail(ctx context.Context, courseCode string) (*CourseInfo, error) {
	var course Course
	err := s.db.WithContext(ctx).
		Preload("Teacher").
		Preload("Students").
		Where("code = ?", courseCode).
		First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &UpdateError{
				Category: CategoryCourseNotFound,
				Message:  fmt.Sprintf("no course with code %s", courseCode),
			}
		}
		return nil, fmt.Errorf("failed to look up course: %w", err)
	}

	rolls := make([]string, len(course.Students))
	for i, student := range course.Students {
		rolls[i] = student.RollNumber
	}

	return &CourseInfo{
		Code:            course.Code,
		Name:            course.Name,
		InstructorEmail: course.Teacher.Email,
		Students:        rolls,
	}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
