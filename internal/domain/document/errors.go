package document

import "github.com/erp/docengine/internal/domain/shared"

// Conversion and numbering errors.
//
// Client errors: ErrNotFound, ErrAlreadyConverted, ErrUnsupportedConversion,
// ErrInvalidKind, ErrInvalidScope, ErrInvalidItem.
// Server faults: ErrSequenceExhausted, ErrConversionFailed.
var (
	ErrNotFound              = shared.ErrNotFound.WithMessage("Document not found")
	ErrAlreadyConverted      = shared.NewDomainError("ALREADY_CONVERTED", "Document has already been converted")
	ErrUnsupportedConversion = shared.NewDomainError("UNSUPPORTED_CONVERSION", "Conversion between these document kinds is not supported")
	ErrSequenceExhausted     = shared.NewDomainError("SEQUENCE_EXHAUSTED", "Could not allocate a unique sequence number")
	ErrConversionFailed      = shared.NewDomainError("CONVERSION_FAILED", "Document conversion failed")
	ErrConversionInProgress  = shared.NewDomainError("CONVERSION_IN_PROGRESS", "Document is being converted by another request")
	ErrInvalidKind           = shared.NewDomainError("INVALID_KIND", "Invalid document kind")
	ErrInvalidScope          = shared.NewDomainError("INVALID_SCOPE", "Invalid company/branch scope")
	ErrInvalidItem           = shared.NewDomainError("INVALID_ITEM", "Invalid line item")
	ErrInvalidDocument       = shared.NewDomainError("INVALID_DOCUMENT", "Invalid document")

	// ErrDuplicateSequence is raised by storage when the (scope, kind, number)
	// uniqueness constraint rejects an insert. Allocation is retried on it.
	ErrDuplicateSequence = shared.NewDomainError("DUPLICATE_SEQUENCE", "Sequence number already in use")

	// ErrTransientStorage marks lock timeouts, deadlocks and serialization
	// failures. Callers may retry once.
	ErrTransientStorage = shared.NewDomainError("TRANSIENT_STORAGE", "Transient storage failure")
)
