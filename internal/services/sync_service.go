package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/classroom-connect/quiz-service/internal/analyzer"
	"github.com/classroom-connect/quiz-service/internal/answers"
	"github.com/classroom-connect/quiz-service/internal/cache"
	"github.com/classroom-connect/quiz-service/internal/config"
	"github.com/classroom-connect/quiz-service/internal/events"
	"github.com/classroom-connect/quiz-service/internal/models"
	"github.com/classroom-connect/quiz-service/internal/repositories"
)

const (
	overviewUnsyncedLimit = 50
	overviewRecentLimit   = 20
)

type syncService struct {
	repo           repositories.Repository
	analyzer       analyzer.Client
	eventPublisher events.EventPublisher
	logger         *slog.Logger
	cacheManager   *cache.CacheManager
	cfg            config.AnalyzerConfig
	batchSize      int
}

func NewSyncService(
	repo repositories.Repository,
	client analyzer.Client,
	eventPublisher events.EventPublisher,
	logger *slog.Logger,
	cacheManager *cache.CacheManager,
	cfg config.AnalyzerConfig,
	batchSize int,
) SyncService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &syncService{
		repo:           repo,
		analyzer:       client,
		eventPublisher: eventPublisher,
		logger:         logger,
		cacheManager:   cacheManager,
		cfg:            cfg,
		batchSize:      batchSize,
	}
}

// SyncAttempt pushes one completed tutorial attempt to the analyzer. The
// attempt's stored score is never touched: a rejected push leaves the row
// unsynced for the next sweep.
func (s *syncService) SyncAttempt(ctx context.Context, attemptID uint, identity *Identity) (*SyncResult, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	quiz := &attempt.Quiz
	if !quiz.IsTutorial() || !attempt.IsCompleted() {
		return nil, ErrNotSyncEligible
	}
	// Marks go out only once every answer carries a grade.
	if attempt.Status == models.AttemptPendingReview {
		return nil, ErrNotSyncEligible
	}

	result := &SyncResult{
		AttemptID:   attempt.ID,
		StudentID:   attempt.UserID,
		CourseID:    *quiz.CourseID,
		ScaledScore: answers.ScaledScore(attempt.Score, attempt.TotalPoints),
	}

	if attempt.MarksSynced {
		result.Synced = true
		return result, nil
	}

	teacherEmail := s.resolveTeacherEmail(ctx, quiz, identity)
	result.TeacherEmail = teacherEmail

	req := &analyzer.UpdateMarksRequest{
		StudentID:    attempt.UserID,
		CourseID:     *quiz.CourseID,
		TeacherEmail: teacherEmail,
		Marks: map[string]float64{
			fmt.Sprintf("tutorial%d", *quiz.TutorialNumber): result.ScaledScore,
		},
	}

	resp, err := s.analyzer.UpdateStudentMarks(ctx, req)
	if err != nil {
		reason := err.Error()
		if resp != nil && resp.Category != "" {
			reason = resp.Category
		}
		result.Error = reason

		s.publishSyncFailed(ctx, attempt, quiz, reason)
		s.logger.Warn("marks sync rejected",
			"attempt_id", attempt.ID,
			"student_id", attempt.UserID,
			"course_id", *quiz.CourseID,
			"reason", reason)

		if resp != nil && !resp.Success {
			return result, fmt.Errorf("%w: %s", ErrAnalyzerRejected, reason)
		}
		return result, fmt.Errorf("marks sync failed: %w", err)
	}

	now := time.Now()
	if err := s.repo.Attempt().MarkSynced(ctx, nil, attempt.ID, now); err != nil {
		return result, fmt.Errorf("failed to record sync: %w", err)
	}

	result.Synced = true
	s.invalidateSyncStats(ctx)
	s.publishSynced(ctx, attempt, quiz, result)

	s.logger.Info("marks synced",
		"attempt_id", attempt.ID,
		"student_id", attempt.UserID,
		"course_id", *quiz.CourseID,
		"tutorial_number", *quiz.TutorialNumber,
		"scaled_score", result.ScaledScore,
		"teacher_email", teacherEmail)

	return result, nil
}

// SyncAll sweeps unsynced completed tutorial attempts. One rejection never
// stops the batch.
func (s *syncService) SyncAll(ctx context.Context, identity *Identity) (*BatchSyncResult, error) {
	attempts, err := s.repo.Attempt().GetUnsyncedTutorialAttempts(ctx, nil, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load unsynced attempts: %w", err)
	}

	batch := &BatchSyncResult{}
	for _, attempt := range attempts {
		if attempt.Status == models.AttemptPendingReview {
			continue
		}

		result, err := s.SyncAttempt(ctx, attempt.ID, identity)
		if err != nil {
			batch.ErrorCount++
			if result == nil {
				result = &SyncResult{AttemptID: attempt.ID, Error: err.Error()}
			}
		} else {
			batch.SuccessCount++
		}
		batch.Results = append(batch.Results, *result)
	}

	s.logger.Info("sync sweep finished",
		"candidates", len(attempts),
		"synced", batch.SuccessCount,
		"failed", batch.ErrorCount)

	return batch, nil
}

// Overview builds the staff sync dashboard aggregates.
func (s *syncService) Overview(ctx context.Context) (*SyncOverview, error) {
	total, unsynced, err := s.repo.Attempt().CountTutorialAttempts(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count tutorial attempts: %w", err)
	}

	unsyncedAttempts, err := s.repo.Attempt().GetUnsyncedTutorialAttempts(ctx, nil, overviewUnsyncedLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load unsynced attempts: %w", err)
	}

	recentlySynced, err := s.repo.Attempt().GetRecentlySynced(ctx, nil, overviewRecentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recently synced attempts: %w", err)
	}

	courseStats, err := s.repo.Attempt().GetCourseSyncStats(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load course sync stats: %w", err)
	}

	overview := &SyncOverview{
		TotalTutorialAttempts: total,
		SyncedCount:           total - unsynced,
		UnsyncedCount:         unsynced,
		SyncPercentage:        answers.RoundPercent(answers.Percentage(float64(total-unsynced), float64(total))),
		UnsyncedAttempts:      unsyncedAttempts,
		RecentlySynced:        recentlySynced,
		CourseStats:           courseStats,
		APIStatus:             *s.APIStatus(ctx),
		GeneratedAt:           time.Now(),
	}

	return overview, nil
}

// APIStatus probes the analyzer. Never returns an error: unreachable just
// means unavailable.
func (s *syncService) APIStatus(ctx context.Context) *APIStatus {
	status := &APIStatus{URL: s.cfg.BaseURL}

	resp, err := s.analyzer.Status(ctx)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	status.Available = resp.Success
	status.StatusCode = 200
	return status
}

// resolveTeacherEmail walks the fallback chain: quiz creator, analyzer
// course record, the staff identity driving the sync, and finally the
// synthesized per-course address.
func (s *syncService) resolveTeacherEmail(ctx context.Context, quiz *models.Quiz, identity *Identity) string {
	if quiz.Creator.Email != "" {
		return quiz.Creator.Email
	}
	if quiz.CreatedBy != "" {
		if creator, err := s.repo.User().GetByID(ctx, quiz.CreatedBy); err == nil && creator.Email != "" {
			return creator.Email
		}
	}

	if detail, err := s.analyzer.CourseDetail(ctx, *quiz.CourseID); err == nil && detail.InstructorEmail != "" {
		return detail.InstructorEmail
	}

	if identity != nil && identity.Email != "" {
		return identity.Email
	}

	return fmt.Sprintf("teacher_%s@%s", strings.ToLower(*quiz.CourseID), s.cfg.DefaultTeacher)
}

func (s *syncService) invalidateSyncStats(ctx context.Context) {
	if s.cacheManager == nil {
		return
	}
	if err := s.cacheManager.InvalidateSyncStats(ctx); err != nil {
		s.logger.Warn("failed to invalidate sync stats cache", "error", err)
	}
}

func (s *syncService) publishSynced(ctx context.Context, attempt *models.QuizAttempt, quiz *models.Quiz, result *SyncResult) {
	if s.eventPublisher == nil {
		return
	}

	event := events.NewEvent(events.EventMarksSynced, events.MarksSyncedData{
		AttemptID:      attempt.ID,
		QuizID:         quiz.ID,
		UserID:         attempt.UserID,
		CourseID:       *quiz.CourseID,
		TutorialNumber: *quiz.TutorialNumber,
		ScaledScore:    result.ScaledScore,
		TeacherEmail:   result.TeacherEmail,
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish marks synced event", "attempt_id", attempt.ID, "error", err)
	}
}

func (s *syncService) publishSyncFailed(ctx context.Context, attempt *models.QuizAttempt, quiz *models.Quiz, reason string) {
	if s.eventPublisher == nil {
		return
	}

	event := events.NewEvent(events.EventMarksSyncFailed, events.MarksSyncFailedData{
		AttemptID: attempt.ID,
		QuizID:    quiz.ID,
		UserID:    attempt.UserID,
		CourseID:  *quiz.CourseID,
		Reason:    reason,
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish sync failed event", "attempt_id", attempt.ID, "error", err)
	}
}
