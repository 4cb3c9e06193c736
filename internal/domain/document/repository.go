package document

import "context"

// Repository persists documents and their line items
type Repository interface {
	// FindByNumber loads a document with its items. Returns ErrNotFound if absent.
	FindByNumber(ctx context.Context, scope Scope, kind Kind, number int64) (*Document, error)
	// FindByNumberForUpdate is FindByNumber holding a row lock until the
	// surrounding transaction ends
	FindByNumberForUpdate(ctx context.Context, scope Scope, kind Kind, number int64) (*Document, error)
	// Create inserts the document and its items. Returns ErrDuplicateSequence
	// when (scope, kind, number) is already taken.
	Create(ctx context.Context, doc *Document) error
	// MarkConverted persists the status flip and forward reference.
	// Returns ErrAlreadyConverted if the stored row is no longer a draft.
	MarkConverted(ctx context.Context, doc *Document) error
}

// SequenceAllocator hands out the next number for (scope, kind).
// Concurrent callers never receive the same number and numbers are never reused.
type SequenceAllocator interface {
	Allocate(ctx context.Context, scope Scope, kind Kind) (int64, error)
}
