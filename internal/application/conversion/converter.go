package conversion

import (
	"context"
	"strconv"
	"time"

	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/domain/packaging"
	"github.com/erp/docengine/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ConvertOptions controls the optional packaging recalculation pass
type ConvertOptions struct {
	Recalculate      bool
	PaymentCondition packaging.PaymentCondition
}

// DocumentConverter turns a draft document into its successor.
//
// The successor, its items and the source's status flip are written in one
// transaction. The source row is re-read under a row lock inside that
// transaction, so of two concurrent conversions only one sees a draft.
type DocumentConverter struct {
	rules   *document.RuleSet
	catalog packaging.CatalogReader
	writer  *sequencedWriter
	logger  *zap.Logger
}

// NewDocumentConverter creates a DocumentConverter
func NewDocumentConverter(
	rules *document.RuleSet,
	allocator document.SequenceAllocator,
	txScope TransactionScope,
	catalog packaging.CatalogReader,
	opts Options,
	logger *zap.Logger,
) *DocumentConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentConverter{
		rules:   rules,
		catalog: catalog,
		writer: &sequencedWriter{
			allocator: allocator,
			txScope:   txScope,
			opts:      opts.withDefaults(),
			logger:    logger,
		},
		logger: logger,
	}
}

// SetMetrics enables conversion and numbering metrics
func (c *DocumentConverter) SetMetrics(m *telemetry.ConversionMetrics) {
	c.writer.metrics = m
}

// Convert creates the target-kind successor of source and marks source converted.
// An already converted source fails with ErrAlreadyConverted before any number
// is allocated.
func (c *DocumentConverter) Convert(ctx context.Context, source *document.Document, target document.Kind, opts ConvertOptions) (result *document.Document, err error) {
	started := time.Now()
	defer func() {
		c.writer.metrics.RecordConversion(ctx, source.Kind.String(), target.String(), outcome(err), time.Since(started))
	}()

	ctx, span := telemetry.StartServiceSpan(ctx, "document_converter", "convert",
		telemetry.WithAttribute(telemetry.SpanAttrScope, source.Scope.String()),
		telemetry.WithAttribute(telemetry.SpanAttrSourceKind, source.Kind.String()),
		telemetry.WithAttribute(telemetry.SpanAttrSourceNumber, source.Number),
		telemetry.WithAttribute(telemetry.SpanAttrTargetKind, target.String()),
	)
	defer span.End()

	rule, err := c.rules.Lookup(source.Kind, target)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !source.IsDraft() {
		return nil, document.ErrAlreadyConverted
	}

	var overrides map[int]document.ItemOverride
	if opts.Recalculate {
		overrides, err = c.recalculate(ctx, source, opts.PaymentCondition)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	log := contextLog(ctx, c.logger, source.Scope)
	log.Info("Converting document",
		zap.String("source_kind", source.Kind.String()),
		zap.Int64("source_number", source.Number),
		zap.String("target_kind", target.String()),
		zap.Bool("recalculate", opts.Recalculate),
	)

	err = c.writer.retryTransient(ctx, source.Scope, target, "convert", func() error {
		return c.writer.write(ctx, source.Scope, target, func(number int64, repos TransactionalRepositories) error {
			doc, err := c.convertLocked(ctx, repos.Documents(), source, rule, number, overrides)
			if err != nil {
				return err
			}
			result = doc
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		log.Warn("Document conversion failed",
			zap.String("source_kind", source.Kind.String()),
			zap.Int64("source_number", source.Number),
			zap.Error(err),
		)
		return nil, err
	}

	source.Status = document.StatusConverted
	ref := result.Reference()
	source.Target = &ref

	telemetry.SetAttribute(span, telemetry.SpanAttrTargetNumber, result.Number)
	log.Info("Document converted",
		zap.String("source_kind", source.Kind.String()),
		zap.Int64("source_number", source.Number),
		zap.String("target_kind", result.Kind.String()),
		zap.Int64("target_number", result.Number),
		zap.Int("items", len(result.Items)),
		zap.String("total_amount", result.TotalAmount.String()),
	)
	return result, nil
}

func (c *DocumentConverter) convertLocked(
	ctx context.Context,
	repo document.Repository,
	source *document.Document,
	rule document.ConversionRule,
	number int64,
	overrides map[int]document.ItemOverride,
) (*document.Document, error) {
	current, err := repo.FindByNumberForUpdate(ctx, source.Scope, source.Kind, source.Number)
	if err != nil {
		return nil, err
	}
	if !current.IsDraft() {
		return nil, document.ErrAlreadyConverted
	}

	target, err := rule.Apply(current, overrides)
	if err != nil {
		return nil, err
	}
	if err := target.AssignNumber(number); err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, target); err != nil {
		return nil, err
	}
	if err := current.MarkConverted(target.Reference()); err != nil {
		return nil, err
	}
	if err := repo.MarkConverted(ctx, current); err != nil {
		return nil, err
	}
	return target, nil
}

// recalculate runs the packaging calculator for every item that carries an area.
// Catalog reads happen before the write transaction opens.
func (c *DocumentConverter) recalculate(ctx context.Context, source *document.Document, cond packaging.PaymentCondition) (map[int]document.ItemOverride, error) {
	overrides := make(map[int]document.ItemOverride, len(source.Items))
	for _, item := range source.SortedItems() {
		if item.Area == nil {
			continue
		}
		breakage, err := c.itemBreakage(&item)
		if err != nil {
			return nil, err
		}
		res, err := quote(ctx, c.catalog, source.Scope, item.ProductCode, source.Header.ClientID, *item.Area, breakage, cond)
		if err != nil {
			return nil, err
		}
		overrides[item.Ordinal] = document.ItemOverride{
			Quantity:  res.Packages,
			UnitPrice: res.UnitPrice,
			Attributes: map[string]string{
				string(document.ItemFieldBoxCount): res.Packages.String(),
			},
		}
	}
	return overrides, nil
}

func (c *DocumentConverter) itemBreakage(item *document.LineItem) (decimal.Decimal, error) {
	raw := item.Attribute(document.ItemFieldBreakagePercent)
	if raw == "" {
		return c.writer.opts.DefaultBreakagePercent, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, packaging.ErrInvalidInput.WithMessage(
			"Item " + strconv.Itoa(item.Ordinal) + " has a non-numeric breakage percent")
	}
	return v, nil
}

// quote resolves packaging and price from the catalog and runs the calculator
func quote(
	ctx context.Context,
	catalog packaging.CatalogReader,
	scope document.Scope,
	productCode string,
	clientID int64,
	area, breakage decimal.Decimal,
	cond packaging.PaymentCondition,
) (packaging.Result, error) {
	pkg, found, err := catalog.FindPackaging(ctx, scope.CompanyID, productCode)
	if err != nil {
		return packaging.Result{}, err
	}
	if !found {
		return packaging.Result{}, packaging.ErrInvalidPackaging.WithMessage("No packaging registered for product " + productCode)
	}
	req := packaging.Request{
		RequestedArea:    area,
		BreakagePercent:  breakage,
		Packaging:        pkg,
		PaymentCondition: cond,
	}
	price, found, err := catalog.FindPrice(ctx, scope.CompanyID, productCode, clientID)
	if err != nil {
		return packaging.Result{}, err
	}
	if found {
		req.Price = &price
	}
	return packaging.Compute(req)
}
