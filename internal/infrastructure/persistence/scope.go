package persistence

import (
	"github.com/erp/docengine/internal/domain/document"
	"gorm.io/gorm"
)

// ScopeOf restricts a query to one (company, branch) pair. Every document
// query goes through it so rows of another scope are never visible.
func ScopeOf(scope document.Scope) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("company_id = ? AND branch_id = ?", scope.CompanyID, scope.BranchID)
	}
}
