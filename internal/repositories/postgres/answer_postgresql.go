package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/classroom-connect/quiz-service/internal/models"
	"github.com/classroom-connect/quiz-service/internal/repositories"
)

type AnswerPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (a *AnswerPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.QuizAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	db := a.helpers.getDB(tx)
	return translateError(db.WithContext(ctx).Create(answers).Error)
}

func (a *AnswerPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAnswer, error) {
	db := a.helpers.getDB(tx)
	var answer models.QuizAnswer
	if err := db.WithContext(ctx).First(&answer, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &answer, nil
}

func (a *AnswerPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAnswer, error) {
	db := a.helpers.getDB(tx)
	var answer models.QuizAnswer
	if err := db.WithContext(ctx).
		Preload("Question").
		Preload("Question.Choices").
		Preload("Attempt").
		Preload("Attempt.Quiz").
		First(&answer, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &answer, nil
}

func (a *AnswerPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.QuizAnswer, error) {
	db := a.helpers.getDB(tx)
	var answers []*models.QuizAnswer
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Preload("Question").
		Preload("Question.Choices").
		Find(&answers).Error; err != nil {
		return nil, translateError(err)
	}
	return answers, nil
}

func (a *AnswerPostgreSQL) Update(ctx context.Context, tx *gorm.DB, answer *models.QuizAnswer) error {
	db := a.helpers.getDB(tx)
	return translateError(db.WithContext(ctx).Save(answer).Error)
}

func (a *AnswerPostgreSQL) DeleteByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) error {
	db := a.helpers.getDB(tx)
	return translateError(db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Delete(&models.QuizAnswer{}).Error)
}

func (a *AnswerPostgreSQL) HasPendingGrading(ctx context.Context, tx *gorm.DB, attemptID uint) (bool, error) {
	db := a.helpers.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).Model(&models.QuizAnswer{}).
		Where("attempt_id = ? AND is_correct IS NULL", attemptID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
