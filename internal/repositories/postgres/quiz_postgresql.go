package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/classroom-connect/quiz-service/internal/cache"
	"github.com/classroom-connect/quiz-service/internal/models"
	"github.com/classroom-connect/quiz-service/internal/repositories"
)

type QuizPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewQuizPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuizRepository {
	return &QuizPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuizPostgreSQL) Create(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error {
	db := q.helpers.getDB(tx)
	return translateError(db.WithContext(ctx).Create(quiz).Error)
}

func (q *QuizPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	db := q.helpers.getDB(tx)
	var quiz models.Quiz
	if err := db.WithContext(ctx).Preload("Creator").First(&quiz, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &quiz, nil
}

// GetByIDWithQuestions loads the quiz with questions and choices, cached
// since quiz content is immutable during an attempt.
func (q *QuizPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	db := q.helpers.getDB(tx)

	// Transactions bypass the cache to avoid reading a stale copy of a
	// quiz being edited in the same request.
	if tx != nil {
		return q.fetchWithQuestions(ctx, db, id)
	}

	cacheKey := fmt.Sprintf("id:%d:full", id)
	var quiz models.Quiz
	err := q.cacheManager.Quiz.CacheOrExecute(ctx, cacheKey, &quiz, cache.QuizCacheConfig.TTL, func() (interface{}, error) {
		return q.fetchWithQuestions(ctx, db, id)
	})
	if err != nil {
		return nil, translateError(err)
	}
	return &quiz, nil
}

func (q *QuizPostgreSQL) fetchWithQuestions(ctx context.Context, db *gorm.DB, id uint) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := db.WithContext(ctx).
		Preload("Creator").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.\"order\" ASC")
		}).
		Preload("Questions.Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("choices.\"order\" ASC")
		}).
		First(&quiz, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &quiz, nil
}

func (q *QuizPostgreSQL) Update(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error {
	db := q.helpers.getDB(tx)
	if err := db.WithContext(ctx).Save(quiz).Error; err != nil {
		return translateError(err)
	}
	q.invalidate(ctx, quiz.ID)
	return nil
}

func (q *QuizPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := q.helpers.getDB(tx)
	if err := db.WithContext(ctx).Delete(&models.Quiz{}, id).Error; err != nil {
		return translateError(err)
	}
	q.invalidate(ctx, id)
	return nil
}

func (q *QuizPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	db := q.helpers.getDB(tx)
	var quizzes []*models.Quiz
	var total int64

	query := db.WithContext(ctx).Model(&models.Quiz{})
	query = applyQuizFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyQuizPagination(query, filters)
	if err := query.Preload("Creator").Find(&quizzes).Error; err != nil {
		return nil, 0, err
	}

	return quizzes, total, nil
}

func (q *QuizPostgreSQL) invalidate(ctx context.Context, id uint) {
	_ = q.cacheManager.Quiz.InvalidatePattern(ctx, fmt.Sprintf("id:%d*", id))
}

func applyQuizFilters(query *gorm.DB, filters repositories.QuizFilters) *gorm.DB {
	if filters.QuizType != nil {
		query = query.Where("quiz_type = ?", *filters.QuizType)
	}
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.IsEnded != nil {
		query = query.Where("is_ended = ?", *filters.IsEnded)
	}
	return query
}

func applyQuizPagination(query *gorm.DB, filters repositories.QuizFilters) *gorm.DB {
	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	order := "DESC"
	if filters.SortOrder == "asc" {
		order = "ASC"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, order))

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}
