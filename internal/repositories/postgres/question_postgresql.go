package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/classroom-connect/quiz-service/internal/models"
	"github.com/classroom-connect/quiz-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	db := q.helpers.getDB(tx)
	return translateError(db.WithContext(ctx).Create(questions).Error)
}

func (q *QuestionPostgreSQL) GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.Question, error) {
	db := q.helpers.getDB(tx)
	var questions []*models.Question
	if err := db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Preload("Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("choices.\"order\" ASC")
		}).
		Order("questions.\"order\" ASC").
		Find(&questions).Error; err != nil {
		return nil, translateError(err)
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.helpers.getDB(tx)
	return translateError(db.WithContext(ctx).Save(question).Error)
}

func (q *QuestionPostgreSQL) DeleteByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) error {
	db := q.helpers.getDB(tx)

	// Choices first, questions second, so no orphaned choice rows remain.
	if err := db.WithContext(ctx).
		Where("question_id IN (?)", db.Model(&models.Question{}).Select("id").Where("quiz_id = ?", quizID)).
		Delete(&models.Choice{}).Error; err != nil {
		return translateError(err)
	}
	return translateError(db.WithContext(ctx).Where("quiz_id = ?", quizID).Delete(&models.Question{}).Error)
}
