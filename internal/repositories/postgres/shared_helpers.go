package postgres

import (
	"errors"

	"github.com/classroom-connect/quiz-service/internal/repositories"
	"gorm.io/gorm"
)

// SharedHelpers provides common helpers for the PostgreSQL repositories
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// getDB returns the transaction handle when one is provided, the base
// connection otherwise.
func (h *SharedHelpers) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return h.db
}

// translateError maps gorm errors onto the repository error sentinels so
// callers never import gorm for error checks.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repositories.ErrDuplicate
	}
	return err
}
