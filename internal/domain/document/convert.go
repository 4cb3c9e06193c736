package document

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ItemOverride replaces recalculated values on a cloned item
type ItemOverride struct {
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	Attributes map[string]string
}

// Apply builds the unnumbered target of converting source under the rule.
// Items are cloned in ordinal order. Overrides are keyed by source ordinal.
// Subtotals and the total are recomputed on the target.
func (r ConversionRule) Apply(source *Document, overrides map[int]ItemOverride) (*Document, error) {
	if source.Kind != r.Source {
		return nil, ErrUnsupportedConversion.WithMessage(
			"Rule " + r.String() + " cannot convert a " + source.Kind.String())
	}
	if !source.IsDraft() {
		return nil, ErrAlreadyConverted
	}

	var header Header
	for _, m := range r.Header {
		header.set(m.To, source.Header.value(m.From))
	}
	target, err := NewDocument(source.Scope, r.Target, header)
	if err != nil {
		return nil, err
	}
	ref := source.Reference()
	target.Source = &ref

	for _, item := range source.SortedItems() {
		src := item.Input()
		var in ItemInput
		for _, m := range r.Items {
			in.set(m.To, src.value(m.From))
		}
		if o, ok := overrides[item.Ordinal]; ok {
			in.Quantity = o.Quantity
			in.UnitPrice = o.UnitPrice
			for k, v := range o.Attributes {
				in.set(Field(k), v)
			}
		}
		// a recalculated price may leave the copied discount above the line value
		if value := in.Quantity.Mul(in.UnitPrice); in.Discount.GreaterThan(value) {
			return nil, ErrInvalidItem.WithMessage(fmt.Sprintf(
				"Item %d discount %s exceeds its line value %s", item.Ordinal, in.Discount, value))
		}
		if _, err := target.AddItem(in); err != nil {
			return nil, err
		}
	}
	target.RecalculateTotal()
	return target, nil
}
