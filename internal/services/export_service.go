package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/classroom-connect/quiz-service/internal/answers"
	"github.com/classroom-connect/quiz-service/internal/models"
	"github.com/classroom-connect/quiz-service/internal/repositories"
)

const exportSheetName = "Results"

var exportHeaders = []string{
	"Roll Number",
	"Student Name",
	"Quiz",
	"Tutorial",
	"Score",
	"Out Of",
	"Percentage",
	"Scaled Mark (0-10)",
	"Status",
	"Synced",
	"Completed At",
}

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		logger: logger,
	}
}

// ExportCourseResults renders all completed attempts of a course's tutorial
// quizzes into an XLSX workbook. Staff only.
func (s *exportService) ExportCourseResults(ctx context.Context, courseID string, userID string) ([]byte, string, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsStaff() {
		return nil, "", NewPermissionError(userID, "course results", "export", "staff role required")
	}

	attempts, err := s.repo.Attempt().GetByCourse(ctx, nil, courseID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load course attempts: %w", err)
	}

	content, err := buildResultsWorkbook(attempts)
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("%s_tutorial_results_%s.xlsx", courseID, time.Now().Format("2006-01-02"))

	s.logger.Info("course results exported",
		"course_id", courseID,
		"attempts", len(attempts),
		"exported_by", userID)

	return content, filename, nil
}

func buildResultsWorkbook(attempts []*models.QuizAttempt) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(exportSheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	row := 2
	for _, attempt := range attempts {
		if !attempt.IsCompleted() {
			continue
		}
		if err := writeAttemptRow(f, row, attempt); err != nil {
			return nil, err
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAttemptRow(f *excelize.File, row int, attempt *models.QuizAttempt) error {
	tutorial := ""
	if attempt.Quiz.TutorialNumber != nil {
		tutorial = fmt.Sprintf("tutorial%d", *attempt.Quiz.TutorialNumber)
	}

	synced := "no"
	if attempt.MarksSynced {
		synced = "yes"
	}

	completedAt := ""
	if attempt.CompletedAt != nil {
		completedAt = attempt.CompletedAt.Format(time.RFC3339)
	}

	values := []interface{}{
		attempt.UserID,
		attempt.User.FullName,
		attempt.Quiz.Title,
		tutorial,
		attempt.Score,
		attempt.TotalPoints,
		answers.RoundPercent(attempt.Percentage),
		answers.ScaledScore(attempt.Score, attempt.TotalPoints),
		string(attempt.Status),
		synced,
		completedAt,
	}

	for col, value := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		if err := f.SetCellValue(exportSheetName, cell, value); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}
	return nil
}
