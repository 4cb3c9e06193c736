package document

import (
	"strings"

	"github.com/erp/docengine/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is a document line. It is owned exclusively by its document.
type LineItem struct {
	shared.BaseEntity
	DocumentID  uuid.UUID
	Scope       Scope
	Ordinal     int
	ProductCode string
	Area        *decimal.Decimal
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	Subtotal    decimal.Decimal
	Note        string
	Attributes  map[string]string
}

// ItemInput carries the values of a new line item
type ItemInput struct {
	ProductCode string
	Area        *decimal.Decimal
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	Note        string
	Attributes  map[string]string
}

// Validate checks the item values
func (in ItemInput) Validate() error {
	if strings.TrimSpace(in.ProductCode) == "" {
		return ErrInvalidItem.WithMessage("Product code cannot be empty")
	}
	if in.Area != nil && in.Area.IsNegative() {
		return ErrInvalidItem.WithMessage("Area cannot be negative")
	}
	if in.Quantity.IsNegative() {
		return ErrInvalidItem.WithMessage("Quantity cannot be negative")
	}
	if in.UnitPrice.IsNegative() {
		return ErrInvalidItem.WithMessage("Unit price cannot be negative")
	}
	if in.Discount.IsNegative() {
		return ErrInvalidItem.WithMessage("Discount cannot be negative")
	}
	if in.Discount.GreaterThan(in.Quantity.Mul(in.UnitPrice)) {
		return ErrInvalidItem.WithMessage("Discount cannot exceed quantity times unit price")
	}
	return nil
}

// CalculateSubtotal returns quantity × unit price − discount
func CalculateSubtotal(quantity, unitPrice, discount decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Sub(discount)
}

func newLineItem(doc *Document, ordinal int, in ItemInput) *LineItem {
	item := &LineItem{
		BaseEntity:  shared.NewBaseEntity(),
		DocumentID:  doc.ID,
		Scope:       doc.Scope,
		Ordinal:     ordinal,
		ProductCode: strings.TrimSpace(in.ProductCode),
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		Discount:    in.Discount,
		Note:        in.Note,
	}
	if in.Area != nil {
		area := *in.Area
		item.Area = &area
	}
	if len(in.Attributes) > 0 {
		item.Attributes = make(map[string]string, len(in.Attributes))
		for k, v := range in.Attributes {
			item.Attributes[k] = v
		}
	}
	item.Subtotal = CalculateSubtotal(item.Quantity, item.UnitPrice, item.Discount)
	return item
}

// Input returns the values of the item as an ItemInput
func (i *LineItem) Input() ItemInput {
	in := ItemInput{
		ProductCode: i.ProductCode,
		Quantity:    i.Quantity,
		UnitPrice:   i.UnitPrice,
		Discount:    i.Discount,
		Note:        i.Note,
	}
	if i.Area != nil {
		area := *i.Area
		in.Area = &area
	}
	if len(i.Attributes) > 0 {
		in.Attributes = make(map[string]string, len(i.Attributes))
		for k, v := range i.Attributes {
			in.Attributes[k] = v
		}
	}
	return in
}

// Attribute returns a named attribute or "" if absent
func (i *LineItem) Attribute(f Field) string {
	return i.Attributes[string(f)]
}

func (in *ItemInput) value(f Field) any {
	switch f {
	case ItemFieldProductCode:
		return in.ProductCode
	case ItemFieldArea:
		return in.Area
	case ItemFieldQuantity:
		return in.Quantity
	case ItemFieldUnitPrice:
		return in.UnitPrice
	case ItemFieldDiscount:
		return in.Discount
	case ItemFieldNote:
		return in.Note
	}
	return in.Attributes[string(f)]
}

func (in *ItemInput) set(f Field, v any) {
	switch f {
	case ItemFieldProductCode:
		in.ProductCode = v.(string)
	case ItemFieldArea:
		in.Area = v.(*decimal.Decimal)
	case ItemFieldQuantity:
		in.Quantity = v.(decimal.Decimal)
	case ItemFieldUnitPrice:
		in.UnitPrice = v.(decimal.Decimal)
	case ItemFieldDiscount:
		in.Discount = v.(decimal.Decimal)
	case ItemFieldNote:
		in.Note = v.(string)
	default:
		s := v.(string)
		if s == "" {
			return
		}
		if in.Attributes == nil {
			in.Attributes = make(map[string]string)
		}
		in.Attributes[string(f)] = s
	}
}
