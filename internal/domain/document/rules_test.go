package document

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules_Valid(t *testing.T) {
	set, err := NewRuleSet(DefaultRules()...)
	require.NoError(t, err)

	_, err = set.Lookup(KindBudget, KindOrder)
	assert.NoError(t, err)
	_, err = set.Lookup(KindVisit, KindBudget)
	assert.NoError(t, err)

	for _, pair := range [][2]Kind{
		{KindOrder, KindBudget},
		{KindVisit, KindOrder},
		{KindBudget, KindVisit},
		{KindBudget, KindBudget},
	} {
		_, err := set.Lookup(pair[0], pair[1])
		assert.ErrorIs(t, err, ErrUnsupportedConversion, "%s->%s", pair[0], pair[1])
	}
}

func TestConversionRule_Validate(t *testing.T) {
	base := func() ConversionRule {
		return ConversionRule{
			Source:     KindVisit,
			Target:     KindBudget,
			Header:     append(Copy(coreHeaderFields.Fields()...), Rename(FieldMeasurementSketch, FieldSketchInfo)),
			DropHeader: []Field{FieldVisitStage},
			Items:      Copy(coreItemFields.Fields()...),
		}
	}
	require.NoError(t, base().Validate())

	t.Run("unmapped source field fails fast", func(t *testing.T) {
		r := base()
		r.DropHeader = nil
		err := r.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConversionRule)
		assert.Contains(t, err.Error(), "visit_stage is not mapped")
	})

	t.Run("field mapped and dropped", func(t *testing.T) {
		r := base()
		r.DropHeader = append(r.DropHeader, FieldObservations)
		assert.ErrorContains(t, r.Validate(), "observations is mapped more than once")
	})

	t.Run("target field missing", func(t *testing.T) {
		r := base()
		r.Header = append(Copy(coreHeaderFields.Fields()...), FieldMapping{From: FieldMeasurementSketch, To: "sketch"})
		assert.ErrorContains(t, r.Validate(), "sketch does not exist on BUDGET")
	})

	t.Run("type mismatch", func(t *testing.T) {
		r := base()
		r.Header = append(Copy(coreHeaderFields.Fields()...), Rename(FieldMeasurementSketch, FieldSketchInfo))
		r.Header[0] = Rename(r.Header[0].From, FieldObservations)
		assert.Error(t, r.Validate())
	})

	t.Run("required item field dropped", func(t *testing.T) {
		r := base()
		r.Items = Copy(ItemFieldProductCode, ItemFieldArea, ItemFieldUnitPrice, ItemFieldDiscount, ItemFieldNote)
		r.DropItems = []Field{ItemFieldQuantity}
		assert.ErrorContains(t, r.Validate(), "quantity must be copied")
	})

	t.Run("duplicate pair", func(t *testing.T) {
		_, err := NewRuleSet(base(), base())
		assert.ErrorContains(t, err, "declared twice")
	})

	t.Run("reports every broken rule", func(t *testing.T) {
		broken := base()
		broken.Items = nil
		err := ValidateConversionRules([]ConversionRule{broken, base(), base()})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConversionRule)
		assert.ErrorContains(t, err, "declared twice")
	})

	t.Run("default rules", func(t *testing.T) {
		assert.NoError(t, ValidateConversionRules(DefaultRules()))
	})
}

func TestConversionRule_Apply_BudgetToOrder(t *testing.T) {
	set := MustDefaultRules()
	rule, err := set.Lookup(KindBudget, KindOrder)
	require.NoError(t, err)

	source := newTestBudget(t)
	area := dec("23.4")
	_, err = source.AddItem(ItemInput{
		ProductCode: "P-1", Area: &area, Quantity: dec("13"), UnitPrice: dec("50"), Discount: dec("20"),
		Note: "living room", Attributes: map[string]string{string(ItemFieldRoomName): "living", string(ItemFieldBoxCount): "13"},
	})
	require.NoError(t, err)
	_, err = source.AddItem(ItemInput{ProductCode: "P-2", Quantity: dec("1"), UnitPrice: dec("99.90")})
	require.NoError(t, err)

	target, err := rule.Apply(source, nil)
	require.NoError(t, err)

	assert.Equal(t, KindOrder, target.Kind)
	assert.Equal(t, StatusDraft, target.Status)
	assert.Equal(t, source.Scope, target.Scope)
	assert.Zero(t, target.Number)
	require.NotNil(t, target.Source)
	assert.Equal(t, source.ID, target.Source.ID)
	assert.Equal(t, int64(7), target.Source.Number)

	assert.Equal(t, source.Header.ClientID, target.Header.ClientID)
	assert.Equal(t, source.Header.IssueDate, target.Header.IssueDate)
	assert.Equal(t, source.Header.Address, target.Header.Address)
	assert.True(t, source.Header.Freight.Equal(target.Header.Freight))
	assert.Equal(t, source.Header.Attributes, target.Header.Attributes)

	require.Len(t, target.Items, 2)
	first := target.Items[0]
	assert.Equal(t, 1, first.Ordinal)
	assert.Equal(t, "P-1", first.ProductCode)
	assert.Equal(t, target.ID, first.DocumentID)
	assert.NotEqual(t, source.Items[0].ID, first.ID)
	require.NotNil(t, first.Area)
	assert.True(t, area.Equal(*first.Area))
	assert.True(t, source.Items[0].Subtotal.Equal(first.Subtotal))
	assert.Equal(t, "living", first.Attribute(ItemFieldRoomName))
	assert.True(t, source.TotalAmount.Equal(target.TotalAmount))
}

func TestConversionRule_Apply_VisitToBudget(t *testing.T) {
	rule, err := MustDefaultRules().Lookup(KindVisit, KindBudget)
	require.NoError(t, err)

	visit, err := NewDocument(testScope(), KindVisit, Header{
		ClientID: 4,
		Attributes: map[string]string{
			string(FieldVisitStage):        "3",
			string(FieldMeasurementSketch): "2 rooms, 40m2",
		},
	})
	require.NoError(t, err)
	require.NoError(t, visit.AssignNumber(12))

	target, err := rule.Apply(visit, nil)
	require.NoError(t, err)
	assert.Equal(t, KindBudget, target.Kind)
	assert.Equal(t, map[string]string{string(FieldSketchInfo): "2 rooms, 40m2"}, target.Header.Attributes)
	assert.Empty(t, target.Items)
	assert.True(t, target.TotalAmount.IsZero())
}

func TestConversionRule_Apply_Overrides(t *testing.T) {
	rule, err := MustDefaultRules().Lookup(KindBudget, KindOrder)
	require.NoError(t, err)

	source := newTestBudget(t)
	_, err = source.AddItem(ItemInput{ProductCode: "P-1", Quantity: dec("10"), UnitPrice: dec("5"), Discount: dec("4")})
	require.NoError(t, err)
	_, err = source.AddItem(ItemInput{ProductCode: "P-2", Quantity: dec("2"), UnitPrice: dec("3")})
	require.NoError(t, err)

	target, err := rule.Apply(source, map[int]ItemOverride{
		1: {Quantity: dec("13"), UnitPrice: dec("7"), Attributes: map[string]string{string(ItemFieldBoxCount): "13"}},
	})
	require.NoError(t, err)

	assert.True(t, dec("13").Equal(target.Items[0].Quantity))
	assert.True(t, dec("87").Equal(target.Items[0].Subtotal), target.Items[0].Subtotal.String())
	assert.Equal(t, "13", target.Items[0].Attribute(ItemFieldBoxCount))
	assert.True(t, dec("6").Equal(target.Items[1].Subtotal))
	assert.True(t, dec("93").Equal(target.TotalAmount), target.TotalAmount.String())
}

func TestConversionRule_Apply_DiscountAboveRecalculatedValue(t *testing.T) {
	rule, err := MustDefaultRules().Lookup(KindBudget, KindOrder)
	require.NoError(t, err)

	source := newTestBudget(t)
	_, err = source.AddItem(ItemInput{ProductCode: "P-1", Quantity: dec("2"), UnitPrice: dec("50"), Discount: dec("30")})
	require.NoError(t, err)

	_, err = rule.Apply(source, map[int]ItemOverride{1: {Quantity: dec("1"), UnitPrice: dec("20")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidItem)
	assert.ErrorContains(t, err, "Item 1 discount 30 exceeds its line value 20")

	target, err := rule.Apply(source, map[int]ItemOverride{1: {Quantity: dec("1"), UnitPrice: dec("40")}})
	require.NoError(t, err)
	assert.True(t, dec("30").Equal(target.Items[0].Discount), "the discount is copied, never lowered")
	assert.True(t, dec("10").Equal(target.Items[0].Subtotal))
}

func TestConversionRule_Apply_Preconditions(t *testing.T) {
	set := MustDefaultRules()
	rule, err := set.Lookup(KindBudget, KindOrder)
	require.NoError(t, err)

	source := newTestBudget(t)
	require.NoError(t, source.MarkConverted(Reference{ID: uuid.New(), Kind: KindOrder, Number: 1}))
	_, err = rule.Apply(source, nil)
	assert.ErrorIs(t, err, ErrAlreadyConverted)

	visitRule, err := set.Lookup(KindVisit, KindBudget)
	require.NoError(t, err)
	_, err = visitRule.Apply(newTestBudget(t), nil)
	assert.ErrorIs(t, err, ErrUnsupportedConversion)
}

func TestConversionRule_Apply_PreservesOrdinalOrder(t *testing.T) {
	rule, err := MustDefaultRules().Lookup(KindBudget, KindOrder)
	require.NoError(t, err)
	source := newTestBudget(t)
	for i := 0; i < 5; i++ {
		_, err := source.AddItem(ItemInput{ProductCode: "P", Quantity: decimal.NewFromInt(int64(i + 1)), UnitPrice: dec("1")})
		require.NoError(t, err)
	}
	source.Items[0], source.Items[4] = source.Items[4], source.Items[0]

	target, err := rule.Apply(source, nil)
	require.NoError(t, err)
	for i, item := range target.Items {
		assert.Equal(t, i+1, item.Ordinal)
		assert.True(t, decimal.NewFromInt(int64(i+1)).Equal(item.Quantity))
	}
}
