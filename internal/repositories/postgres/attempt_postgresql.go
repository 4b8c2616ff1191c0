package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/classroom-connect/quiz-service/internal/cache"
	"github.com/classroom-connect/quiz-service/internal/models"
	"github.com/classroom-connect/quiz-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	db := a.helpers.getDB(tx)
	return translateError(db.WithContext(ctx).Create(attempt).Error)
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	db := a.helpers.getDB(tx)
	var attempt models.QuizAttempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	db := a.helpers.getDB(tx)
	var attempt models.QuizAttempt
	if err := db.WithContext(ctx).
		Preload("User").
		Preload("Quiz").
		Preload("Quiz.Creator").
		Preload("Answers").
		Preload("Answers.Question").
		Preload("Answers.Question.Choices").
		First(&attempt, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByUserAndQuiz(ctx context.Context, tx *gorm.DB, userID string, quizID uint) (*models.QuizAttempt, error) {
	db := a.helpers.getDB(tx)
	var attempt models.QuizAttempt
	if err := db.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		First(&attempt).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	db := a.helpers.getDB(tx)
	return translateError(db.WithContext(ctx).Save(attempt).Error)
}

func (a *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	db := a.helpers.getDB(tx)
	var attempts []*models.QuizAttempt
	var total int64

	query := db.WithContext(ctx).Model(&models.QuizAttempt{})
	query = applyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyAttemptPagination(query, filters)
	if err := query.Preload("User").Preload("Quiz").Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	db := a.helpers.getDB(tx)
	var attempts []*models.QuizAttempt
	var total int64

	query := db.WithContext(ctx).Model(&models.QuizAttempt{}).Where("quiz_id = ?", quizID)
	query = applyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyAttemptPagination(query, filters)
	if err := query.Preload("User").Preload("Quiz").Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) GetByCourse(ctx context.Context, tx *gorm.DB, courseID string) ([]*models.QuizAttempt, error) {
	db := a.helpers.getDB(tx)
	var attempts []*models.QuizAttempt
	if err := db.WithContext(ctx).
		Joins("JOIN quizzes ON quizzes.id = quiz_attempts.quiz_id").
		Where("quizzes.course_id = ?", courseID).
		Preload("User").
		Preload("Quiz").
		Order("quiz_attempts.completed_at DESC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

// tutorialAttemptScope narrows to completed attempts of tutorial quizzes
// that carry a course and tutorial slot, the only rows eligible for sync.
func tutorialAttemptScope(db *gorm.DB) *gorm.DB {
	return db.
		Joins("JOIN quizzes ON quizzes.id = quiz_attempts.quiz_id").
		Where("quiz_attempts.completed_at IS NOT NULL").
		Where("quizzes.quiz_type = ?", models.QuizTutorial).
		Where("quizzes.tutorial_number IS NOT NULL").
		Where("quizzes.course_id IS NOT NULL")
}

func (a *AttemptPostgreSQL) GetUnsyncedTutorialAttempts(ctx context.Context, tx *gorm.DB, limit int) ([]*models.QuizAttempt, error) {
	db := a.helpers.getDB(tx)
	var attempts []*models.QuizAttempt

	query := tutorialAttemptScope(db.WithContext(ctx).Model(&models.QuizAttempt{})).
		Where("quiz_attempts.marks_synced = ?", false).
		Preload("User").
		Preload("Quiz").
		Preload("Quiz.Creator").
		Order("quiz_attempts.completed_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) GetRecentlySynced(ctx context.Context, tx *gorm.DB, limit int) ([]*models.QuizAttempt, error) {
	db := a.helpers.getDB(tx)
	var attempts []*models.QuizAttempt

	query := db.WithContext(ctx).Model(&models.QuizAttempt{}).
		Where("marks_synced = ? AND last_sync_at IS NOT NULL", true).
		Preload("User").
		Preload("Quiz").
		Order("last_sync_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) CountTutorialAttempts(ctx context.Context, tx *gorm.DB) (int64, int64, error) {
	db := a.helpers.getDB(tx)

	var total int64
	if err := tutorialAttemptScope(db.WithContext(ctx).Model(&models.QuizAttempt{})).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}

	var unsynced int64
	if err := tutorialAttemptScope(db.WithContext(ctx).Model(&models.QuizAttempt{})).
		Where("quiz_attempts.marks_synced = ?", false).
		Count(&unsynced).Error; err != nil {
		return 0, 0, err
	}

	return total, unsynced, nil
}

func (a *AttemptPostgreSQL) GetCourseSyncStats(ctx context.Context, tx *gorm.DB) ([]repositories.CourseSyncStats, error) {
	db := a.helpers.getDB(tx)
	var stats []repositories.CourseSyncStats

	err := tutorialAttemptScope(db.WithContext(ctx).Model(&models.QuizAttempt{})).
		Select(`quizzes.course_id AS course_id,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE quiz_attempts.marks_synced) AS synced,
			COUNT(*) FILTER (WHERE NOT quiz_attempts.marks_synced) AS unsynced`).
		Group("quizzes.course_id").
		Order("quizzes.course_id").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (a *AttemptPostgreSQL) MarkSynced(ctx context.Context, tx *gorm.DB, attemptID uint, at time.Time) error {
	db := a.helpers.getDB(tx)
	return translateError(db.WithContext(ctx).Model(&models.QuizAttempt{}).
		Where("id = ?", attemptID).
		Updates(map[string]interface{}{
			"marks_synced": true,
			"last_sync_at": at,
		}).Error)
}

func applyAttemptFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("quiz_attempts.status = ?", *filters.Status)
	}
	if filters.UserID != nil {
		query = query.Where("quiz_attempts.user_id = ?", *filters.UserID)
	}
	if filters.DateFrom != nil {
		query = query.Where("quiz_attempts.created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("quiz_attempts.created_at <= ?", *filters.DateTo)
	}
	return query
}

func applyAttemptPagination(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	query = query.Order(fmt.Sprintf("quiz_attempts.created_at %s", "DESC"))
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}
