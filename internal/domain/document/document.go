package document

import (
	"fmt"
	"sort"

	"github.com/erp/docengine/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reference points at another document by id and by its human-facing number
type Reference struct {
	ID     uuid.UUID `json:"id"`
	Kind   Kind      `json:"kind"`
	Number int64     `json:"number"`
}

// Document is a budget, order or visit.
// A converted document always carries a Target reference, and the target
// carries a Source reference back to it.
type Document struct {
	shared.BaseAggregateRoot
	Scope       Scope
	Kind        Kind
	Number      int64
	Status      Status
	TotalAmount decimal.Decimal
	Header      Header
	Items       []LineItem
	Source      *Reference
	Target      *Reference
}

// NewDocument creates a draft document without a number
func NewDocument(scope Scope, kind Kind, header Header) (*Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if !kind.IsValid() {
		return nil, ErrInvalidKind.WithMessage("Unknown document kind: " + kind.String())
	}
	if err := header.ValidateAttributes(kind); err != nil {
		return nil, err
	}
	return &Document{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Scope:             scope,
		Kind:              kind,
		Status:            StatusDraft,
		TotalAmount:       decimal.Zero,
		Header:            header,
		Items:             make([]LineItem, 0),
	}, nil
}

// AssignNumber sets the sequence number handed out by the allocator.
// It can be called again when a previous number was rejected as a duplicate.
func (d *Document) AssignNumber(number int64) error {
	if number <= 0 {
		return ErrInvalidDocument.WithMessage("Sequence number must be positive")
	}
	d.Number = number
	return nil
}

// AddItem appends a line item with the next ordinal and refreshes the total
func (d *Document) AddItem(in ItemInput) (*LineItem, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := d.validateItemAttributes(in.Attributes); err != nil {
		return nil, err
	}
	item := newLineItem(d, d.nextOrdinal(), in)
	d.Items = append(d.Items, *item)
	d.RecalculateTotal()
	d.Touch()
	return &d.Items[len(d.Items)-1], nil
}

func (d *Document) nextOrdinal() int {
	max := 0
	for _, item := range d.Items {
		if item.Ordinal > max {
			max = item.Ordinal
		}
	}
	return max + 1
}

func (d *Document) validateItemAttributes(attrs map[string]string) error {
	schema := ItemSchema(d.Kind)
	for key := range attrs {
		if _, core := coreItemFields[Field(key)]; core {
			return ErrInvalidItem.WithMessage("Attribute shadows item field: " + key)
		}
		if _, ok := schema[Field(key)]; !ok {
			return ErrInvalidItem.WithMessage("Unknown " + d.Kind.String() + " item attribute: " + key)
		}
	}
	return nil
}

// RecalculateTotal sets TotalAmount to the sum of item subtotals
func (d *Document) RecalculateTotal() {
	total := decimal.Zero
	for _, item := range d.Items {
		total = total.Add(item.Subtotal)
	}
	d.TotalAmount = total
}

// SortedItems returns the items ordered by ordinal
func (d *Document) SortedItems() []LineItem {
	items := make([]LineItem, len(d.Items))
	copy(items, d.Items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Ordinal < items[j].Ordinal })
	return items
}

// Reference returns a reference to this document
func (d *Document) Reference() Reference {
	return Reference{ID: d.ID, Kind: d.Kind, Number: d.Number}
}

// IsDraft reports whether the document can still be converted
func (d *Document) IsDraft() bool {
	return d.Status == StatusDraft
}

// MarkConverted flips a draft to CONVERTED and records its successor
func (d *Document) MarkConverted(target Reference) error {
	if !d.Status.CanTransitionTo(StatusConverted) {
		return ErrAlreadyConverted.WithMessage(
			fmt.Sprintf("%s %d has already been converted", d.Kind, d.Number))
	}
	if target.ID == uuid.Nil {
		return ErrInvalidDocument.WithMessage("Conversion target must be persisted")
	}
	d.Status = StatusConverted
	d.Target = &target
	d.Bump()
	return nil
}

// Validate checks the document invariants before it is written
func (d *Document) Validate() error {
	if err := d.Scope.Validate(); err != nil {
		return err
	}
	if !d.Kind.IsValid() {
		return ErrInvalidKind
	}
	if !d.Status.IsValid() {
		return ErrInvalidDocument.WithMessage("Unknown status: " + d.Status.String())
	}
	if d.Number <= 0 {
		return ErrInvalidDocument.WithMessage("Document has no sequence number")
	}
	if d.Status == StatusConverted && d.Target == nil {
		return ErrInvalidDocument.WithMessage("Converted document must reference its successor")
	}
	seen := make(map[int]struct{}, len(d.Items))
	total := decimal.Zero
	for _, item := range d.Items {
		if _, dup := seen[item.Ordinal]; dup {
			return ErrInvalidItem.WithMessage(fmt.Sprintf("Duplicate ordinal %d", item.Ordinal))
		}
		seen[item.Ordinal] = struct{}{}
		if !item.Subtotal.Equal(CalculateSubtotal(item.Quantity, item.UnitPrice, item.Discount)) {
			return ErrInvalidItem.WithMessage(fmt.Sprintf("Subtotal mismatch on item %d", item.Ordinal))
		}
		total = total.Add(item.Subtotal)
	}
	if !total.Equal(d.TotalAmount) {
		return ErrInvalidDocument.WithMessage("Total amount does not match item subtotals")
	}
	return nil
}
