package persistence

import (
	"context"
	"fmt"

	"github.com/erp/docengine/internal/domain/document"
	"gorm.io/gorm"
)

// allocateSQL upserts the counter row and returns the value handed out.
// A missing row is seeded from the highest stored number, so counters
// survive a wiped sequence table. On conflict the counter also catches up
// with any number written by another strategy.
const allocateSQL = `INSERT INTO document_sequences (company_id, branch_id, kind, last_value, updated_at)
SELECT CAST(? AS BIGINT), CAST(? AS BIGINT), CAST(? AS VARCHAR(20)), COALESCE(MAX(number), 0) + 1, CURRENT_TIMESTAMP
FROM documents WHERE company_id = ? AND branch_id = ? AND kind = ?
ON CONFLICT (company_id, branch_id, kind) DO UPDATE
SET last_value = %s(document_sequences.last_value, EXCLUDED.last_value - 1) + 1, updated_at = CURRENT_TIMESTAMP
RETURNING last_value`

// GormSequenceAllocator hands out numbers from the document_sequences table.
// Each call is its own statement outside any caller transaction, so a
// number consumed by a rolled back conversion is skipped, never reused.
type GormSequenceAllocator struct {
	db    *gorm.DB
	query string
}

// NewGormSequenceAllocator creates a new GormSequenceAllocator
func NewGormSequenceAllocator(db *gorm.DB) *GormSequenceAllocator {
	greatest := "MAX"
	if IsPostgres(db) {
		greatest = "GREATEST"
	}
	return &GormSequenceAllocator{db: db, query: fmt.Sprintf(allocateSQL, greatest)}
}

// Allocate returns the next number for (scope, kind)
func (a *GormSequenceAllocator) Allocate(ctx context.Context, scope document.Scope, kind document.Kind) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	if !kind.IsValid() {
		return 0, document.ErrInvalidKind.WithMessage("Unknown document kind: " + kind.String())
	}

	var next int64
	k := string(kind)
	err := a.db.WithContext(ctx).
		Raw(a.query, scope.CompanyID, scope.BranchID, k, scope.CompanyID, scope.BranchID, k).
		Scan(&next).Error
	if err != nil {
		return 0, translateError(err)
	}
	if next <= 0 {
		return 0, fmt.Errorf("sequence allocation for %s %s returned %d", scope, kind, next)
	}
	return next, nil
}

var _ document.SequenceAllocator = (*GormSequenceAllocator)(nil)
