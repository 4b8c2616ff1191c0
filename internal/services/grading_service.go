package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/classroom-connect/quiz-service/internal/answers"
	"github.com/classroom-connect/quiz-service/internal/models"
	"github.com/classroom-connect/quiz-service/internal/repositories"
	"github.com/classroom-connect/quiz-service/internal/validator"
)

type gradingService struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewGradingService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) GradingService {
	return &gradingService{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// GradeQuestion grades one raw answer against a question. The result's
// IsCorrect stays nil for text answers that need manual review.
func (s *gradingService) GradeQuestion(question *models.Question, rawAnswer json.RawMessage) (*GradeResult, error) {
	raw := answers.ParseRaw(rawAnswer)
	norm := answers.Normalize(question, raw)
	return s.gradeNormalized(question, norm), nil
}

// GradeAttempt re-grades a completed attempt from its stored answers and
// persists the recomputed totals.
func (s *gradingService) GradeAttempt(ctx context.Context, attemptID uint) (*AttemptGradeSummary, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if !attempt.IsCompleted() {
		return nil, ErrAttemptNotCompleted
	}

	var summary *AttemptGradeSummary
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		for i := range attempt.Answers {
			answer := &attempt.Answers[i]
			if answer.Question.ID == 0 {
				continue
			}
			// Manually graded text answers keep their grade on regrade.
			if answer.Question.Type == models.FreeText && answer.GradedBy != nil {
				continue
			}

			norm := normalizedFromStored(answer)
			result := s.gradeNormalized(&answer.Question, norm)

			answer.IsCorrect = result.IsCorrect
			answer.PointsEarned = result.PointsEarned
			if result.Feedback != nil {
				answer.Feedback = result.Feedback
			}
			if err := txRepo.Answer().Update(ctx, nil, answer); err != nil {
				return fmt.Errorf("failed to update answer %d: %w", answer.ID, err)
			}
		}

		summary = s.summarizeAttempt(attempt)
		applySummary(attempt, summary)
		if err := txRepo.Attempt().Update(ctx, nil, attempt); err != nil {
			return fmt.Errorf("failed to update attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("attempt regraded",
		"attempt_id", attemptID,
		"score", summary.Score,
		"percentage", summary.Percentage,
		"pending", summary.PendingCount)

	return summary, nil
}

// GradeTextAnswer records a manual grade for a text answer and refreshes
// the attempt totals. Only staff can grade.
func (s *gradingService) GradeTextAnswer(ctx context.Context, answerID uint, req *GradeTextAnswerRequest, graderID string) (*GradeResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	grader, err := s.repo.User().GetByID(ctx, graderID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get grader: %w", err)
	}
	if !grader.IsStaff() {
		return nil, NewPermissionError(graderID, "answer", "grade", "staff role required")
	}

	answer, err := s.repo.Answer().GetByIDWithDetails(ctx, nil, answerID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAnswerNotFound
		}
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	if answer.Question.Type != models.FreeText {
		return nil, ErrNotManuallyGraded
	}

	maxPoints := answer.Question.Points
	points := req.PointsEarned
	if points > maxPoints {
		points = maxPoints
	}
	if !req.IsCorrect && points == maxPoints {
		// An incorrect answer cannot carry full points.
		points = 0
	}

	now := time.Now()
	isCorrect := req.IsCorrect
	answer.IsCorrect = &isCorrect
	answer.PointsEarned = points
	answer.Feedback = req.Feedback
	answer.GradedBy = &graderID
	answer.GradedAt = &now

	var result *GradeResult
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Answer().Update(ctx, nil, answer); err != nil {
			return fmt.Errorf("failed to update answer: %w", err)
		}
		return s.refreshAttemptTotals(ctx, txRepo, answer.AttemptID)
	})
	if err != nil {
		return nil, err
	}

	result = &GradeResult{
		QuestionID:   answer.QuestionID,
		IsCorrect:    answer.IsCorrect,
		PointsEarned: points,
		MaxPoints:    maxPoints,
		Feedback:     req.Feedback,
	}

	s.logger.Info("text answer graded",
		"answer_id", answerID,
		"grader_id", graderID,
		"is_correct", req.IsCorrect,
		"points", points)

	return result, nil
}
