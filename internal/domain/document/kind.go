package document

import "strings"

// Kind is the business type of a document
type Kind string

const (
	KindBudget Kind = "BUDGET"
	KindOrder  Kind = "ORDER"
	KindVisit  Kind = "VISIT"
)

// IsValid checks if the kind is known
func (k Kind) IsValid() bool {
	switch k {
	case KindBudget, KindOrder, KindVisit:
		return true
	}
	return false
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// ParseKind parses a kind case-insensitively
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", ErrInvalidKind.WithMessage("Unknown document kind: " + s)
	}
	return k, nil
}

// AllKinds returns every known kind
func AllKinds() []Kind {
	return []Kind{KindBudget, KindOrder, KindVisit}
}

// Status is the lifecycle state of a document
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusConverted Status = "CONVERTED"
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	return s == StatusDraft || s == StatusConverted
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status.
// The only transition is DRAFT -> CONVERTED; CONVERTED is terminal.
func (s Status) CanTransitionTo(target Status) bool {
	return s == StatusDraft && target == StatusConverted
}
