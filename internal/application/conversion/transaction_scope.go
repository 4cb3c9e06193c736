package conversion

import (
	"context"

	"github.com/erp/docengine/internal/domain/document"
)

// TransactionScope provides transactional access to document repositories.
// All repository operations inside fn commit or roll back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, or ctx is cancelled, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to repositories bound to the current transaction
type TransactionalRepositories interface {
	Documents() document.Repository
}

// NoOpTransactionScope runs fn directly against the given repository.
// Used in unit tests where atomicity is not under test.
type NoOpTransactionScope struct {
	documents document.Repository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(documents document.Repository) *NoOpTransactionScope {
	return &NoOpTransactionScope{documents: documents}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Documents returns the document repository
func (s *NoOpTransactionScope) Documents() document.Repository {
	return s.documents
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)

// Locker serializes conversions of the same source across processes.
// Acquire returns document.ErrConversionInProgress when another holder owns key.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}
