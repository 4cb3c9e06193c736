package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/docengine/internal/application/conversion"
	"github.com/erp/docengine/internal/domain/document"
	"gorm.io/gorm"
)

// GormTransactionScope implements conversion.TransactionScope using GORM transactions.
// Every repository handed to fn shares the same transaction.
type GormTransactionScope struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewGormTransactionScope creates a new GormTransactionScope.
// A positive lockTimeout bounds row lock waits inside the transaction (postgres only).
func NewGormTransactionScope(db *gorm.DB, lockTimeout time.Duration) *GormTransactionScope {
	return &GormTransactionScope{db: db, lockTimeout: lockTimeout}
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos conversion.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 && IsPostgres(tx) {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(&gormTransactionalRepositories{tx: tx})
	})
	return translateError(err)
}

// gormTransactionalRepositories provides repositories bound to one transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Documents returns the document repository scoped to the current transaction
func (r *gormTransactionalRepositories) Documents() document.Repository {
	return NewGormDocumentRepository(r.tx)
}

var _ conversion.TransactionScope = (*GormTransactionScope)(nil)
var _ conversion.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
