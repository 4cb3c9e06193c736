package conversion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/domain/packaging"
	"github.com/erp/docengine/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var testScope = document.Scope{CompanyID: 1, BranchID: 1}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newBudget(t *testing.T, number int64, items ...document.ItemInput) *document.Document {
	t.Helper()
	doc, err := document.NewDocument(testScope, document.KindBudget, document.Header{
		ClientID:  10,
		IssueDate: time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC),
		Freight:   dec("25"),
		Address:   document.Address{Street: "Av. Brasil", Number: "12", City: "Maringá", State: "PR"},
		Attributes: map[string]string{
			string(document.FieldFloorModel): "vinyl",
		},
	})
	require.NoError(t, err)
	require.NoError(t, doc.AssignNumber(number))
	for _, in := range items {
		_, err := doc.AddItem(in)
		require.NoError(t, err)
	}
	return doc
}

func fastOptions() Options {
	return Options{MaxSequenceAttempts: 3, TransientRetryBackoff: time.Millisecond, DefaultBreakagePercent: dec("10")}
}

type converterFixture struct {
	repo      *MockDocumentRepository
	allocator *MockSequenceAllocator
	catalog   *MockCatalogReader
	converter *DocumentConverter
}

func newConverterFixture() *converterFixture {
	f := &converterFixture{
		repo:      new(MockDocumentRepository),
		allocator: new(MockSequenceAllocator),
		catalog:   new(MockCatalogReader),
	}
	f.converter = NewDocumentConverter(document.MustDefaultRules(), f.allocator, NewNoOpTransactionScope(f.repo), f.catalog, fastOptions(), nil)
	return f
}

func TestDocumentConverter_Convert_BudgetToOrder(t *testing.T) {
	f := newConverterFixture()
	ctx := context.Background()
	source := newBudget(t, 5,
		document.ItemInput{ProductCode: "P-1", Quantity: dec("3"), UnitPrice: dec("10"), Discount: dec("1")},
		document.ItemInput{ProductCode: "P-2", Quantity: dec("2"), UnitPrice: dec("7.5"), Note: "hall"},
	)

	f.repo.On("FindByNumberForUpdate", mock.Anything, testScope, document.KindBudget, int64(5)).Return(source, nil)
	f.allocator.On("Allocate", mock.Anything, testScope, document.KindOrder).Return(int64(41), nil).Once()
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*document.Document")).Return(nil)
	f.repo.On("MarkConverted", mock.Anything, source).Return(nil)

	target, err := f.converter.Convert(ctx, source, document.KindOrder, ConvertOptions{})
	require.NoError(t, err)

	assert.Equal(t, document.KindOrder, target.Kind)
	assert.Equal(t, int64(41), target.Number)
	assert.Equal(t, document.StatusDraft, target.Status)
	require.Len(t, target.Items, 2)
	assert.Equal(t, "hall", target.Items[1].Note)
	assert.True(t, dec("44").Equal(target.TotalAmount), target.TotalAmount.String())
	assert.Equal(t, source.Header.Address, target.Header.Address)

	// bidirectional reference
	require.NotNil(t, target.Source)
	assert.Equal(t, source.ID, target.Source.ID)
	require.NotNil(t, source.Target)
	assert.Equal(t, target.ID, source.Target.ID)
	assert.Equal(t, document.StatusConverted, source.Status)

	f.repo.AssertExpectations(t)
	f.allocator.AssertExpectations(t)
}

func TestDocumentConverter_Convert_AlreadyConverted(t *testing.T) {
	f := newConverterFixture()
	source := newBudget(t, 5)
	require.NoError(t, source.MarkConverted(document.Reference{ID: uuid.New(), Kind: document.KindOrder, Number: 1}))

	_, err := f.converter.Convert(context.Background(), source, document.KindOrder, ConvertOptions{})
	assert.ErrorIs(t, err, document.ErrAlreadyConverted)
	f.allocator.AssertNotCalled(t, "Allocate", mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDocumentConverter_Convert_LostRace(t *testing.T) {
	f := newConverterFixture()
	ctx := context.Background()
	source := newBudget(t, 5)
	stored := newBudget(t, 5)
	stored.ID = source.ID
	require.NoError(t, stored.MarkConverted(document.Reference{ID: uuid.New(), Kind: document.KindOrder, Number: 1}))

	f.allocator.On("Allocate", mock.Anything, testScope, document.KindOrder).Return(int64(2), nil)
	f.repo.On("FindByNumberForUpdate", mock.Anything, testScope, document.KindBudget, int64(5)).Return(stored, nil)

	_, err := f.converter.Convert(ctx, source, document.KindOrder, ConvertOptions{})
	assert.ErrorIs(t, err, document.ErrAlreadyConverted)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Equal(t, document.StatusDraft, source.Status)
}

func TestDocumentConverter_Convert_Unsupported(t *testing.T) {
	f := newConverterFixture()
	order, err := document.NewDocument(testScope, document.KindOrder, document.Header{ClientID: 1})
	require.NoError(t, err)

	_, err = f.converter.Convert(context.Background(), order, document.KindBudget, ConvertOptions{})
	assert.ErrorIs(t, err, document.ErrUnsupportedConversion)
	f.allocator.AssertNotCalled(t, "Allocate", mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentConverter_Convert_DuplicateSequenceRetries(t *testing.T) {
	f := newConverterFixture()
	ctx := context.Background()
	source := newBudget(t, 5, document.ItemInput{ProductCode: "P-1", Quantity: dec("1"), UnitPrice: dec("1")})

	f.repo.On("FindByNumberForUpdate", mock.Anything, testScope, document.KindBudget, int64(5)).Return(source, nil)
	f.allocator.On("Allocate", mock.Anything, testScope, document.KindOrder).Return(int64(7), nil).Once()
	f.allocator.On("Allocate", mock.Anything, testScope, document.KindOrder).Return(int64(8), nil).Once()
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(d *document.Document) bool { return d.Number == 7 })).
		Return(document.ErrDuplicateSequence).Once()
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(d *document.Document) bool { return d.Number == 8 })).
		Return(nil).Once()
	f.repo.On("MarkConverted", mock.Anything, source).Return(nil)

	target, err := f.converter.Convert(ctx, source, document.KindOrder, ConvertOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(8), target.Number)
	f.allocator.AssertNumberOfCalls(t, "Allocate", 2)
}

func TestDocumentConverter_Convert_SequenceExhausted(t *testing.T) {
	f := newConverterFixture()
	ctx := context.Background()
	source := newBudget(t, 5)

	f.repo.On("FindByNumberForUpdate", mock.Anything, testScope, document.KindBudget, int64(5)).Return(source, nil)
	f.allocator.On("Allocate", mock.Anything, testScope, document.KindOrder).Return(int64(3), nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(document.ErrDuplicateSequence)

	_, err := f.converter.Convert(ctx, source, document.KindOrder, ConvertOptions{})
	assert.ErrorIs(t, err, document.ErrSequenceExhausted)
	assert.ErrorIs(t, err, document.ErrDuplicateSequence)
	f.allocator.AssertNumberOfCalls(t, "Allocate", 3)
	f.repo.AssertNotCalled(t, "MarkConverted", mock.Anything, mock.Anything)
}

func TestDocumentConverter_Convert_TransientRetriedOnce(t *testing.T) {
	t.Run("succeeds on retry with a fresh number", func(t *testing.T) {
		f := newConverterFixture()
		ctx := context.Background()
		source := newBudget(t, 5)

		f.repo.On("FindByNumberForUpdate", mock.Anything, testScope, document.KindBudget, int64(5)).Return(source, nil)
		f.allocator.On("Allocate", mock.Anything, testScope, document.KindOrder).Return(int64(1), nil).Once()
		f.allocator.On("Allocate", mock.Anything, testScope, document.KindOrder).Return(int64(2), nil).Once()
		f.repo.On("Create", mock.Anything, mock.Anything).Return(document.ErrTransientStorage).Once()
		f.repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
		f.repo.On("MarkConverted", mock.Anything, source).Return(nil)

		target, err := f.converter.Convert(ctx, source, document.KindOrder, ConvertOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), target.Number)
	})

	t.Run("surfaces ConversionFailed with cause", func(t *testing.T) {
		f := newConverterFixture()
		ctx := context.Background()
		source := newBudget(t, 5)
		cause := document.ErrTransientStorage.WithCause(errors.New("deadlock detected"))

		f.repo.On("FindByNumberForUpdate", mock.Anything, testScope, document.KindBudget, int64(5)).Return(nil, cause)
		f.allocator.On("Allocate", mock.Anything, testScope, document.KindOrder).Return(int64(1), nil)

		_, err := f.converter.Convert(ctx, source, document.KindOrder, ConvertOptions{})
		assert.ErrorIs(t, err, document.ErrConversionFailed)
		assert.ErrorContains(t, err, "deadlock detected")
		f.repo.AssertNumberOfCalls(t, "FindByNumberForUpdate", 2)
		assert.Equal(t, document.StatusDraft, source.Status)
	})

	t.Run("unknown storage error is not retried", func(t *testing.T) {
		f := newConverterFixture()
		ctx := context.Background()
		source := newBudget(t, 5)

		f.repo.On("FindByNumberForUpdate", mock.Anything, testScope, document.KindBudget, int64(5)).Return(nil, errors.New("disk full"))
		f.allocator.On("Allocate", mock.Anything, testScope, document.KindOrder).Return(int64(1), nil)

		_, err := f.converter.Convert(ctx, source, document.KindOrder, ConvertOptions{})
		assert.ErrorIs(t, err, document.ErrConversionFailed)
		f.allocator.AssertNumberOfCalls(t, "Allocate", 1)
	})
}

func TestDocumentConverter_Convert_Recalculate(t *testing.T) {
	f := newConverterFixture()
	ctx := context.Background()
	area := dec("23.4")
	source := newBudget(t, 5,
		document.ItemInput{ProductCode: "PORC-60", Area: &area, Quantity: dec("10"), UnitPrice: dec("80")},
		document.ItemInput{ProductCode: "GLUE", Quantity: dec("2"), UnitPrice: dec("15")},
	)

	f.catalog.On("FindPackaging", mock.Anything, int64(1), "PORC-60").
		Return(packaging.Packaging{ProductCode: "PORC-60", AreaPerPackage: dec("2.0"), PiecesPerPackage: dec("6")}, true, nil)
	f.catalog.On("FindPrice", mock.Anything, int64(1), "PORC-60", int64(10)).
		Return(packaging.PriceEntry{CashPrice: dec("89.90"), TermPrice: dec("94.50")}, true, nil)
	f.repo.On("FindByNumberForUpdate", mock.Anything, testScope, document.KindBudget, int64(5)).Return(source, nil)
	f.allocator.On("Allocate", mock.Anything, testScope, document.KindOrder).Return(int64(1), nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("MarkConverted", mock.Anything, source).Return(nil)

	target, err := f.converter.Convert(ctx, source, document.KindOrder, ConvertOptions{Recalculate: true, PaymentCondition: packaging.PaymentCash})
	require.NoError(t, err)

	first := target.Items[0]
	assert.True(t, dec("13").Equal(first.Quantity), first.Quantity.String())
	assert.True(t, dec("89.90").Equal(first.UnitPrice))
	assert.True(t, dec("1168.70").Equal(first.Subtotal), first.Subtotal.String())
	assert.Equal(t, "13", first.Attribute(document.ItemFieldBoxCount))

	second := target.Items[1]
	assert.True(t, dec("2").Equal(second.Quantity))
	assert.True(t, dec("1198.70").Equal(target.TotalAmount), target.TotalAmount.String())
	f.catalog.AssertNotCalled(t, "FindPackaging", mock.Anything, mock.Anything, "GLUE")
}

func TestDocumentConverter_Convert_RecalculatePriceNotFound(t *testing.T) {
	f := newConverterFixture()
	ctx := context.Background()
	area := dec("10")
	source := newBudget(t, 5, document.ItemInput{ProductCode: "PORC-60", Area: &area, Quantity: dec("5"), UnitPrice: dec("80")})

	f.catalog.On("FindPackaging", mock.Anything, int64(1), "PORC-60").
		Return(packaging.Packaging{ProductCode: "PORC-60", AreaPerPackage: dec("2"), PiecesPerPackage: dec("6")}, true, nil)
	f.catalog.On("FindPrice", mock.Anything, int64(1), "PORC-60", int64(10)).Return(packaging.PriceEntry{}, false, nil)

	_, err := f.converter.Convert(ctx, source, document.KindOrder, ConvertOptions{Recalculate: true})
	assert.ErrorIs(t, err, packaging.ErrPriceNotFound)
	f.allocator.AssertNotCalled(t, "Allocate", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, document.StatusDraft, source.Status)
}

func TestDocumentConverter_Convert_RecalculateBadBreakage(t *testing.T) {
	f := newConverterFixture()
	area := dec("10")
	source := newBudget(t, 5, document.ItemInput{
		ProductCode: "PORC-60", Area: &area, Quantity: dec("5"), UnitPrice: dec("80"),
		Attributes: map[string]string{string(document.ItemFieldBreakagePercent): "ten"},
	})

	_, err := f.converter.Convert(context.Background(), source, document.KindOrder, ConvertOptions{Recalculate: true})
	assert.ErrorIs(t, err, packaging.ErrInvalidInput)
}

func TestDocumentConverter_Convert_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := telemetry.NewConversionMetrics(provider.Meter("test"))
	require.NoError(t, err)

	f := newConverterFixture()
	f.converter.SetMetrics(metrics)
	source := newBudget(t, 5, document.ItemInput{ProductCode: "P-1", Quantity: dec("1"), UnitPrice: dec("1")})

	f.repo.On("FindByNumberForUpdate", mock.Anything, testScope, document.KindBudget, int64(5)).Return(source, nil)
	f.allocator.On("Allocate", mock.Anything, testScope, document.KindOrder).Return(int64(7), nil).Once()
	f.allocator.On("Allocate", mock.Anything, testScope, document.KindOrder).Return(int64(8), nil).Once()
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(d *document.Document) bool { return d.Number == 7 })).
		Return(document.ErrDuplicateSequence).Once()
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(d *document.Document) bool { return d.Number == 8 })).
		Return(nil).Once()
	f.repo.On("MarkConverted", mock.Anything, source).Return(nil)

	_, err = f.converter.Convert(context.Background(), source, document.KindOrder, ConvertOptions{})
	require.NoError(t, err)
	_, err = f.converter.Convert(context.Background(), source, document.KindOrder, ConvertOptions{})
	require.ErrorIs(t, err, document.ErrAlreadyConverted)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["docengine.conversions"])
	assert.Equal(t, int64(2), sums["docengine.sequence.allocations"])
	assert.Equal(t, int64(1), sums["docengine.sequence.retries"])
}
