package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/classroom-connect/quiz-service/internal/models"
)

func seedExportCourse(repo *fakeRepository) {
	repo.addUser(&models.User{ID: "staff-1", FullName: "Staff", Email: "staff@example.edu", Role: models.RoleStaff})
	repo.addUser(&models.User{ID: "22Z101", FullName: "Anu Kumar", Email: "22z101@example.edu", Role: models.RoleStudent})
	repo.addUser(&models.User{ID: "22Z102", FullName: "Bala Raj", Email: "22z102@example.edu", Role: models.RoleStudent})

	quiz := repo.addQuiz(&models.Quiz{
		Title:          "Tutorial 2: Pointers",
		QuizType:       models.QuizTutorial,
		TutorialNumber: intPtr(2),
		CourseID:       strPtr("CS101"),
		CreatedBy:      "staff-1",
	})

	completed := time.Now()
	repo.addAttempt(&models.QuizAttempt{
		QuizID:      quiz.ID,
		UserID:      "22Z101",
		Status:      models.AttemptGraded,
		StartedAt:   completed.Add(-10 * time.Minute),
		CompletedAt: &completed,
		Score:       8,
		TotalPoints: 10,
		Percentage:  80,
		MarksSynced: true,
	})

	// Still in progress, must not appear in the export.
	repo.addAttempt(&models.QuizAttempt{
		QuizID:    quiz.ID,
		UserID:    "22Z102",
		Status:    models.AttemptInProgress,
		StartedAt: completed,
	})
}

func TestExportCourseResults(t *testing.T) {
	ctx := context.Background()

	t.Run("renders completed attempts only", func(t *testing.T) {
		repo := newFakeRepository()
		seedExportCourse(repo)
		svc := NewExportService(repo, testLogger())

		content, filename, err := svc.ExportCourseResults(ctx, "CS101", "staff-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(filename, "CS101_tutorial_results_") || !strings.HasSuffix(filename, ".xlsx") {
			t.Errorf("unexpected filename %q", filename)
		}

		workbook, err := excelize.OpenReader(bytes.NewReader(content))
		if err != nil {
			t.Fatalf("export is not a readable workbook: %v", err)
		}
		defer workbook.Close()

		rows, err := workbook.GetRows("Results")
		if err != nil {
			t.Fatalf("failed to read Results sheet: %v", err)
		}
		// Header plus the one completed attempt.
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows))
		}
		if rows[0][0] != "Roll Number" {
			t.Errorf("unexpected first header %q", rows[0][0])
		}

		record := rows[1]
		if record[0] != "22Z101" {
			t.Errorf("expected roll 22Z101, got %q", record[0])
		}
		if record[3] != "tutorial2" {
			t.Errorf("expected tutorial2 slot, got %q", record[3])
		}
		if record[7] != "8" {
			t.Errorf("expected scaled mark 8, got %q", record[7])
		}
		if record[9] != "yes" {
			t.Errorf("expected synced yes, got %q", record[9])
		}
	})

	t.Run("students cannot export", func(t *testing.T) {
		repo := newFakeRepository()
		seedExportCourse(repo)
		svc := NewExportService(repo, testLogger())

		_, _, err := svc.ExportCourseResults(ctx, "CS101", "22Z101")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("expected PermissionError, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := newFakeRepository()
		svc := NewExportService(repo, testLogger())

		_, _, err := svc.ExportCourseResults(ctx, "CS101", "ghost")
		if !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})
}
