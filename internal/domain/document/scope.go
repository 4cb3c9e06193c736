package document

import "fmt"

// Scope identifies the (company, branch) partition that owns documents,
// line items and sequence counters. It is immutable once a document exists.
type Scope struct {
	CompanyID int64 `json:"company_id"`
	BranchID  int64 `json:"branch_id"`
}

// NewScope creates a validated scope
func NewScope(companyID, branchID int64) (Scope, error) {
	s := Scope{CompanyID: companyID, BranchID: branchID}
	if err := s.Validate(); err != nil {
		return Scope{}, err
	}
	return s, nil
}

// Validate checks that both identifiers are set
func (s Scope) Validate() error {
	if s.CompanyID <= 0 {
		return ErrInvalidScope.WithMessage("Company ID must be positive")
	}
	if s.BranchID <= 0 {
		return ErrInvalidScope.WithMessage("Branch ID must be positive")
	}
	return nil
}

// String returns a compact "company/branch" representation
func (s Scope) String() string {
	return fmt.Sprintf("%d/%d", s.CompanyID, s.BranchID)
}
