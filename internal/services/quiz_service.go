package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/classroom-connect/quiz-service/internal/cache"
	"github.com/classroom-connect/quiz-service/internal/events"
	"github.com/classroom-connect/quiz-service/internal/models"
	"github.com/classroom-connect/quiz-service/internal/repositories"
	"github.com/classroom-connect/quiz-service/internal/validator"
)

type quizService struct {
	repo              repositories.Repository
	db                *gorm.DB
	logger            *slog.Logger
	validator         *validator.Validator
	businessValidator *validator.BusinessValidator
	cacheManager      *cache.CacheManager
	eventPublisher    events.EventPublisher
}

func NewQuizService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	v *validator.Validator,
	cacheManager *cache.CacheManager,
	eventPublisher events.EventPublisher,
) QuizService {
	return &quizService{
		repo:              repo,
		db:                db,
		logger:            logger,
		validator:         v,
		businessValidator: validator.NewBusinessValidator(),
		cacheManager:      cacheManager,
		eventPublisher:    eventPublisher,
	}
}

// Create validates and stores a quiz with its questions and choices in one
// transaction. Only staff can create quizzes.
func (s *quizService) Create(ctx context.Context, req *CreateQuizRequest, creatorID string) (*QuizResponse, error) {
	creator, err := s.requireStaff(ctx, creatorID, "quiz", "create")
	if err != nil {
		return nil, err
	}

	if verrs := s.businessValidator.ValidateQuizCreate(req); verrs.HasErrors() {
		return nil, verrs
	}

	quiz := s.buildQuiz(req, creatorID)

	if err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		return txRepo.Quiz().Create(ctx, nil, quiz)
	}); err != nil {
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}

	s.invalidateQuizCache(ctx, quiz.ID)

	s.logger.Info("quiz created",
		"quiz_id", quiz.ID,
		"quiz_type", quiz.QuizType,
		"questions", len(quiz.Questions),
		"created_by", creatorID)

	return s.toQuizResponse(quiz, creator), nil
}

func (s *quizService) GetByID(ctx context.Context, id uint, userID string) (*QuizResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var quiz models.Quiz
	err = s.cacheManager.Quiz.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), &quiz, cache.QuizCacheConfig.TTL, func() (interface{}, error) {
		q, err := s.repo.Quiz().GetByID(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		return q, nil
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	resp := s.toQuizResponse(&quiz, user)
	s.attachAttemptCount(ctx, resp, user)
	return resp, nil
}

func (s *quizService) GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*QuizResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var quiz models.Quiz
	err = s.cacheManager.Quiz.CacheOrExecute(ctx, fmt.Sprintf("id:%d:details", id), &quiz, cache.QuizCacheConfig.TTL, func() (interface{}, error) {
		q, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		return q, nil
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	// Students never see the answer key while the quiz is open.
	if !user.IsStaff() && !quiz.IsEnded {
		sanitizeAnswerKey(&quiz)
	}

	resp := s.toQuizResponse(&quiz, user)
	s.attachAttemptCount(ctx, resp, user)
	return resp, nil
}

// Update applies partial changes to a quiz. Replacing questions is rejected
// once attempts exist because stored answers reference question rows.
func (s *quizService) Update(ctx context.Context, id uint, req *UpdateQuizRequest, userID string) (*QuizResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.requireOwnership(user, quiz, "update"); err != nil {
		return nil, err
	}

	if verrs := s.businessValidator.ValidateQuizUpdate(req, quiz); verrs.HasErrors() {
		if quiz.IsEnded {
			return nil, ErrQuizEnded
		}
		return nil, verrs
	}

	if len(req.Questions) > 0 {
		attemptCount, err := s.countAttempts(ctx, id)
		if err != nil {
			return nil, err
		}
		if attemptCount > 0 {
			return nil, ErrQuizHasAttempts
		}
	}

	applyQuizUpdate(quiz, req)

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if len(req.Questions) > 0 {
			if err := txRepo.Question().DeleteByQuiz(ctx, nil, quiz.ID); err != nil {
				return fmt.Errorf("failed to replace questions: %w", err)
			}
			quiz.Questions = buildQuestions(quiz.ID, req.Questions)
		}
		return txRepo.Quiz().Update(ctx, nil, quiz)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update quiz: %w", err)
	}

	s.invalidateQuizCache(ctx, quiz.ID)

	s.logger.Info("quiz updated", "quiz_id", quiz.ID, "updated_by", userID)

	return s.toQuizResponse(quiz, user), nil
}

// Delete removes a quiz that has no attempts yet.
func (s *quizService) Delete(ctx context.Context, id uint, userID string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.requireOwnership(user, quiz, "delete"); err != nil {
		return err
	}

	attemptCount, err := s.countAttempts(ctx, id)
	if err != nil {
		return err
	}
	if attemptCount > 0 {
		return ErrQuizHasAttempts
	}

	if err := s.repo.Quiz().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}

	s.invalidateQuizCache(ctx, id)

	s.logger.Info("quiz deleted", "quiz_id", id, "deleted_by", userID)
	return nil
}

func (s *quizService) List(ctx context.Context, filters repositories.QuizFilters, userID string) (*QuizListResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	quizzes, total, err := s.repo.Quiz().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}

	responses := make([]*QuizResponse, len(quizzes))
	for i, quiz := range quizzes {
		responses[i] = s.toQuizResponse(quiz, user)
	}

	page := 1
	if filters.Limit > 0 {
		page = filters.Offset/filters.Limit + 1
	}

	return &QuizListResponse{
		Quizzes: responses,
		Total:   total,
		Page:    page,
		Size:    len(responses),
	}, nil
}

// End closes a quiz to further attempts.
func (s *quizService) End(ctx context.Context, id uint, userID string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.requireOwnership(user, quiz, "end"); err != nil {
		return err
	}
	if quiz.IsEnded {
		return ErrQuizEnded
	}

	quiz.IsEnded = true
	if err := s.repo.Quiz().Update(ctx, nil, quiz); err != nil {
		return fmt.Errorf("failed to end quiz: %w", err)
	}

	s.invalidateQuizCache(ctx, id)
	s.publishQuizEnded(ctx, quiz, userID)

	s.logger.Info("quiz ended", "quiz_id", id, "ended_by", userID)
	return nil
}

// ===== HELPERS =====

func (s *quizService) getUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *quizService) requireStaff(ctx context.Context, userID, resource, action string) (*models.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, NewPermissionError(userID, resource, action, "staff role required")
	}
	return user, nil
}

func (s *quizService) requireOwnership(user *models.User, quiz *models.Quiz, action string) error {
	if user.Role == models.RoleAdmin {
		return nil
	}
	if user.IsStaff() && quiz.CreatedBy == user.ID {
		return nil
	}
	return NewPermissionError(user.ID, "quiz", action, "only the creator or an admin can modify a quiz")
}

func (s *quizService) countAttempts(ctx context.Context, quizID uint) (int64, error) {
	_, total, err := s.repo.Attempt().GetByQuiz(ctx, nil, quizID, repositories.AttemptFilters{Limit: 1})
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return total, nil
}

func (s *quizService) attachAttemptCount(ctx context.Context, resp *QuizResponse, user *models.User) {
	if !user.IsStaff() {
		return
	}
	if total, err := s.countAttempts(ctx, resp.Quiz.ID); err == nil {
		resp.AttemptCount = total
	}
}

func (s *quizService) invalidateQuizCache(ctx context.Context, quizID uint) {
	if s.cacheManager == nil {
		return
	}
	cache.InvalidateQuizCache(ctx, s.cacheManager, quizID)
}

func (s *quizService) publishQuizEnded(ctx context.Context, quiz *models.Quiz, endedBy string) {
	if s.eventPublisher == nil {
		return
	}

	data := events.QuizEndedData{QuizID: quiz.ID, EndedBy: endedBy}
	if quiz.CourseID != nil {
		data.CourseID = *quiz.CourseID
	}
	if err := s.eventPublisher.Publish(ctx, events.NewEvent(events.EventQuizEnded, data)); err != nil {
		s.logger.Error("failed to publish quiz ended event", "quiz_id", quiz.ID, "error", err)
	}
}

func (s *quizService) buildQuiz(req *CreateQuizRequest, creatorID string) *models.Quiz {
	quiz := &models.Quiz{
		Title:          req.Title,
		QuizType:       req.QuizType,
		TutorialNumber: req.TutorialNumber,
		CourseID:       req.CourseID,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		AllowRetake:    req.AllowRetake,
		PassingScore:   50,
		ShowResults:    true,
		CreatedBy:      creatorID,
		Questions:      buildQuestions(0, req.Questions),
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.PassingScore != nil {
		quiz.PassingScore = *req.PassingScore
	}
	if req.ShowResults != nil {
		quiz.ShowResults = *req.ShowResults
	}
	if req.TimeLimit != nil {
		quiz.TimeLimit = req.TimeLimit
	}
	return quiz
}

func buildQuestions(quizID uint, reqs []validator.QuestionCreateRequest) []models.Question {
	questions := make([]models.Question, len(reqs))
	for i, qr := range reqs {
		question := models.Question{
			QuizID:        quizID,
			Type:          qr.Type,
			Text:          qr.Text,
			Points:        1,
			Order:         qr.Order,
			CorrectAnswer: qr.CorrectAnswer,
		}
		if qr.Points != nil {
			question.Points = *qr.Points
		}

		choices := make([]models.Choice, len(qr.Choices))
		for j, cr := range qr.Choices {
			choices[j] = models.Choice{
				Text:      cr.Text,
				IsCorrect: cr.IsCorrect,
				Order:     cr.Order,
			}
		}
		question.Choices = choices
		questions[i] = question
	}
	return questions
}

func applyQuizUpdate(quiz *models.Quiz, req *UpdateQuizRequest) {
	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.TutorialNumber != nil {
		quiz.TutorialNumber = req.TutorialNumber
	}
	if req.CourseID != nil {
		quiz.CourseID = req.CourseID
	}
	if req.PassingScore != nil {
		quiz.PassingScore = *req.PassingScore
	}
	if req.TimeLimit != nil {
		quiz.TimeLimit = req.TimeLimit
	}
	if req.StartTime != nil {
		quiz.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		quiz.EndTime = req.EndTime
	}
	if req.AllowRetake != nil {
		quiz.AllowRetake = *req.AllowRetake
	}
	if req.ShowResults != nil {
		quiz.ShowResults = *req.ShowResults
	}
}

// sanitizeAnswerKey strips correctness information before a quiz is served
// to a student.
func sanitizeAnswerKey(quiz *models.Quiz) {
	for i := range quiz.Questions {
		question := &quiz.Questions[i]
		question.CorrectAnswer = nil
		for j := range question.Choices {
			question.Choices[j].IsCorrect = false
		}
	}
}

func (s *quizService) toQuizResponse(quiz *models.Quiz, user *models.User) *QuizResponse {
	canModify := user.Role == models.RoleAdmin || (user.IsStaff() && quiz.CreatedBy == user.ID)
	return &QuizResponse{
		Quiz:          quiz,
		CanEdit:       canModify && !quiz.IsEnded,
		CanDelete:     canModify,
		CanTake:       !user.IsStaff() && quiz.IsAvailable(time.Now()),
		QuestionCount: len(quiz.Questions),
	}
}
