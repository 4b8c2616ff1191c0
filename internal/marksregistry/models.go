package marksregistry

import (
	"time"

	"gorm.io/gorm"
)

// Teacher owns courses in the registry. Email is the natural key marks
// updates authenticate against.
type Teacher struct {
	ID    uint   `json:"id" gorm:"primaryKey"`
	Name  string `json:"name" gorm:"not null;size:100"`
	Email string `json:"email" gorm:"uniqueIndex;not null;size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Teacher) TableName() string {
	return "teachers"
}

// Student is identified by roll number on the wire.
type Student struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	RollNumber string `json:"roll_number" gorm:"uniqueIndex;not null;size:50"`
	Name       string `json:"name" gorm:"not null;size:100"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Student) TableName() string {
	return "students"
}

// Course links a teacher to its enrolled students. Code is the courseId
// used by callers ("CS101").
type Course struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Code      string `json:"code" gorm:"uniqueIndex;not null;size:50"`
	Name      string `json:"name" gorm:"not null;size:255"`
	TeacherID uint   `json:"teacher_id" gorm:"not null;index"`

	Teacher  Teacher   `json:"teacher" gorm:"foreignKey:TeacherID"`
	Students []Student `json:"students,omitempty" gorm:"many2many:course_enrollments"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Course) TableName() string {
	return "courses"
}

// StudentMark is the per-enrollment aggregate record. Slots are nullable;
// nil means the slot was never reported. Tutorials and assignment are on a
// 0-10 scale, continuous assessments on 0-50. Values are stored as sent,
// never rescaled.
type StudentMark struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	StudentID uint `json:"student_id" gorm:"not null;uniqueIndex:idx_mark_student_course"`
	CourseID  uint `json:"course_id" gorm:"not null;uniqueIndex:idx_mark_student_course"`

	Tutorial1  *float64 `json:"tutorial1" gorm:"column:tutorial1"`
	Tutorial2  *float64 `json:"tutorial2" gorm:"column:tutorial2"`
	Tutorial3  *float64 `json:"tutorial3" gorm:"column:tutorial3"`
	Tutorial4  *float64 `json:"tutorial4" gorm:"column:tutorial4"`
	CA1        *float64 `json:"ca1" gorm:"column:ca1"`
	CA2        *float64 `json:"ca2" gorm:"column:ca2"`
	Assignment *float64 `json:"assignment" gorm:"column:assignment"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StudentMark) TableName() string {
	return "student_marks"
}

// AutoMigrate creates the registry schema
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Teacher{},
		&Student{},
		&Course{},
		&StudentMark{},
	)
}
