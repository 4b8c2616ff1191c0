package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/classroom-connect/quiz-service/internal/analyzer"
	"github.com/classroom-connect/quiz-service/internal/events"
	"github.com/classroom-connect/quiz-service/internal/models"
	"github.com/classroom-connect/quiz-service/internal/repositories"
	"github.com/classroom-connect/quiz-service/internal/validator"
)

type attemptService struct {
	repo              repositories.Repository
	db                *gorm.DB
	logger            *slog.Logger
	validator         *validator.Validator
	businessValidator *validator.BusinessValidator
	grading           GradingService
	sync              SyncService
	analyzer          analyzer.Client
	eventPublisher    events.EventPublisher
}

func NewAttemptService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	v *validator.Validator,
	grading GradingService,
	sync SyncService,
	analyzerClient analyzer.Client,
	eventPublisher events.EventPublisher,
) AttemptService {
	return &attemptService{
		repo:              repo,
		db:                db,
		logger:            logger,
		validator:         v,
		businessValidator: validator.NewBusinessValidator(),
		grading:           grading,
		sync:              sync,
		analyzer:          analyzerClient,
		eventPublisher:    eventPublisher,
	}
}

// Start opens a new attempt. One attempt per (user, quiz); the database
// unique constraint backs this up against concurrent starts.
func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest, studentID string) (*AttemptResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, req.QuizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	existing, err := s.repo.Attempt().GetByUserAndQuiz(ctx, nil, studentID, req.QuizID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check existing attempt: %w", err)
	}
	if existing != nil {
		if existing.IsCompleted() && !quiz.AllowRetake {
			return nil, ErrAttemptAlreadyExists
		}
		if !existing.IsCompleted() {
			// Resume the open attempt instead of failing.
			return s.toAttemptResponse(existing, quiz.Questions), nil
		}
	}

	if verrs := s.businessValidator.ValidateAttemptStart(quiz, existing != nil); verrs.HasErrors() {
		if quiz.IsEnded || !quiz.IsAvailable(time.Now()) {
			return nil, ErrQuizNotAvailable
		}
		return nil, ErrAttemptAlreadyExists
	}

	if err := s.checkEnrollment(ctx, quiz, studentID); err != nil {
		return nil, err
	}

	// Retake reuses the existing row: the (user, quiz) unique constraint
	// forbids a second one, so the attempt is wiped back to in_progress.
	if existing != nil && existing.IsCompleted() {
		if err := s.resetAttempt(ctx, existing); err != nil {
			return nil, err
		}
		s.logger.Info("attempt reset for retake", "attempt_id", existing.ID, "quiz_id", req.QuizID, "user_id", studentID)
		return s.toAttemptResponse(existing, quiz.Questions), nil
	}

	attempt := &models.QuizAttempt{
		QuizID:    req.QuizID,
		UserID:    studentID,
		Status:    models.AttemptInProgress,
		StartedAt: time.Now(),
	}

	if err := s.repo.Attempt().Create(ctx, nil, attempt); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrAttemptAlreadyExists
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.logger.Info("attempt started", "attempt_id", attempt.ID, "quiz_id", req.QuizID, "user_id", studentID)

	return s.toAttemptResponse(attempt, quiz.Questions), nil
}

// resetAttempt wipes a completed attempt back to a fresh in-progress state
// for an allowed retake. Old answers and totals go with it so a half-synced
// score can never leak into the new run.
func (s *attemptService) resetAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	attempt.Status = models.AttemptInProgress
	attempt.StartedAt = time.Now()
	attempt.CompletedAt = nil
	attempt.DurationSeconds = 0
	attempt.Score = 0
	attempt.TotalQuestions = 0
	attempt.TotalPoints = 0
	attempt.Percentage = 0
	attempt.Passed = false
	attempt.MarksSynced = false
	attempt.LastSyncAt = nil

	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Answer().DeleteByAttempt(ctx, nil, attempt.ID); err != nil {
			return fmt.Errorf("failed to clear previous answers: %w", err)
		}
		if err := txRepo.Attempt().Update(ctx, nil, attempt); err != nil {
			return fmt.Errorf("failed to reset attempt: %w", err)
		}
		return nil
	})
}

// Submit grades all answers, finalizes the attempt in one transaction, and
// then triggers a best-effort marks sync for tutorial quizzes. Sync failure
// never fails the submission; the attempt stays unsynced for the sweep.
func (s *attemptService) Submit(ctx context.Context, req *SubmitQuizRequest, studentID string) (*AttemptResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, nil, req.AttemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.UserID != studentID {
		return nil, ErrAttemptAccessDenied
	}
	if attempt.IsCompleted() {
		return nil, ErrAttemptAlreadySubmitted
	}

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	graded, err := s.gradeSubmission(quiz, attempt, req)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Answer().CreateBatch(ctx, nil, graded.answerRows); err != nil {
			return fmt.Errorf("failed to store answers: %w", err)
		}
		if err := txRepo.Attempt().Update(ctx, nil, attempt); err != nil {
			return fmt.Errorf("failed to finalize attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// GetByID loads the bare row; the response needs the quiz for the
	// sync-eligibility flag.
	attempt.Quiz = *quiz

	s.logger.Info("attempt submitted",
		"attempt_id", attempt.ID,
		"quiz_id", quiz.ID,
		"user_id", studentID,
		"score", attempt.Score,
		"percentage", attempt.Percentage,
		"status", attempt.Status)

	s.publishGradedEvent(ctx, attempt)
	s.triggerMarksSync(quiz, attempt)

	return s.toAttemptResponse(attempt, nil), nil
}

func (s *attemptService) GetByID(ctx context.Context, id uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := s.checkAttemptAccess(ctx, attempt, userID); err != nil {
		return nil, err
	}

	return s.toAttemptResponse(attempt, nil), nil
}

func (s *attemptService) GetByIDWithDetails(ctx context.Context, id uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := s.checkAttemptAccess(ctx, attempt, userID); err != nil {
		return nil, err
	}

	resp := s.toAttemptResponse(attempt, nil)

	// Students only see per-answer results when the quiz allows it.
	if attempt.UserID == userID && !attempt.Quiz.ShowResults {
		resp.Answers = nil
	}

	return resp, nil
}

func (s *attemptService) List(ctx context.Context, filters repositories.AttemptFilters, userID string) ([]*AttemptResponse, int64, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, 0, ErrUserNotFound
		}
		return nil, 0, fmt.Errorf("failed to get user: %w", err)
	}

	// Students only list their own attempts.
	if !user.IsStaff() {
		filters.UserID = &userID
	}

	attempts, total, err := s.repo.Attempt().List(ctx, nil, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	responses := make([]*AttemptResponse, len(attempts))
	for i, attempt := range attempts {
		responses[i] = s.toAttemptResponse(attempt, nil)
	}
	return responses, total, nil
}

func (s *attemptService) GetByQuiz(ctx context.Context, quizID uint, filters repositories.AttemptFilters, userID string) ([]*AttemptResponse, int64, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, 0, ErrUserNotFound
		}
		return nil, 0, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsStaff() {
		return nil, 0, NewPermissionError(userID, "quiz attempts", "list", "staff role required")
	}

	attempts, total, err := s.repo.Attempt().GetByQuiz(ctx, nil, quizID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list quiz attempts: %w", err)
	}

	responses := make([]*AttemptResponse, len(attempts))
	for i, attempt := range attempts {
		responses[i] = s.toAttemptResponse(attempt, nil)
	}
	return responses, total, nil
}

// checkEnrollment gates course-linked quizzes on the remote roster. The
// check fails open when the roster is unavailable so an analyzer outage
// never blocks quiz taking.
func (s *attemptService) checkEnrollment(ctx context.Context, quiz *models.Quiz, studentID string) error {
	if s.analyzer == nil || quiz.CourseID == nil || *quiz.CourseID == "" {
		return nil
	}

	detail, err := s.analyzer.CourseDetail(ctx, *quiz.CourseID)
	if err != nil {
		s.logger.Warn("enrollment check unavailable, allowing start",
			"course_id", *quiz.CourseID, "user_id", studentID, "error", err)
		return nil
	}
	if detail == nil || !detail.Success || len(detail.Students) == 0 {
		return nil
	}

	for _, roll := range detail.Students {
		if strings.EqualFold(roll, studentID) {
			return nil
		}
	}
	return NewPermissionError(studentID, "quiz", "start", "not enrolled in course "+*quiz.CourseID)
}

// triggerMarksSync fires the async best-effort sync for tutorial attempts.
// Pending-review attempts are picked up by the sweep once fully graded.
func (s *attemptService) triggerMarksSync(quiz *models.Quiz, attempt *models.QuizAttempt) {
	if s.sync == nil || !quiz.IsTutorial() || attempt.Status != models.AttemptGraded {
		return
	}

	attemptID := attempt.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := s.sync.SyncAttempt(ctx, attemptID, nil); err != nil {
			// Left unsynced for the periodic reconciliation sweep.
			s.logger.Warn("post-submit marks sync failed", "attempt_id", attemptID, "error", err)
		}
	}()
}

func (s *attemptService) publishGradedEvent(ctx context.Context, attempt *models.QuizAttempt) {
	if s.eventPublisher == nil {
		return
	}

	event := events.NewEvent(events.EventAttemptGraded, events.AttemptGradedData{
		AttemptID:  attempt.ID,
		QuizID:     attempt.QuizID,
		UserID:     attempt.UserID,
		Score:      attempt.Score,
		Percentage: attempt.Percentage,
		Passed:     attempt.Passed,
		Status:     string(attempt.Status),
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish graded event", "attempt_id", attempt.ID, "error", err)
	}
}

func (s *attemptService) checkAttemptAccess(ctx context.Context, attempt *models.QuizAttempt, userID string) error {
	if attempt.UserID == userID {
		return nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsStaff() {
		return ErrAttemptAccessDenied
	}
	return nil
}

func (s *attemptService) toAttemptResponse(attempt *models.QuizAttempt, questions []models.Question) *AttemptResponse {
	resp := &AttemptResponse{
		QuizAttempt:    attempt,
		IsPendingGrade: attempt.Status == models.AttemptPendingReview,
		SyncEligible:   attempt.Quiz.IsTutorial() && attempt.IsCompleted(),
	}
	if questions != nil {
		resp.Questions = questions
	}
	return resp
}

func questionKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
