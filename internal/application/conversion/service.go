package conversion

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/domain/packaging"
	"github.com/erp/docengine/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ConversionService is the entry point used by the request layer
type ConversionService struct {
	documents document.Repository
	converter *DocumentConverter
	writer    *sequencedWriter
	locker    Locker
	logger    *zap.Logger
}

// NewConversionService creates a new ConversionService.
// documents is used for reads outside any transaction.
func NewConversionService(
	documents document.Repository,
	allocator document.SequenceAllocator,
	txScope TransactionScope,
	catalog packaging.CatalogReader,
	rules *document.RuleSet,
	opts Options,
	logger *zap.Logger,
) *ConversionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	converter := NewDocumentConverter(rules, allocator, txScope, catalog, opts, logger)
	return &ConversionService{
		documents: documents,
		converter: converter,
		writer:    converter.writer,
		logger:    logger,
	}
}

// SetMetrics enables conversion and numbering metrics
func (s *ConversionService) SetMetrics(m *telemetry.ConversionMetrics) {
	s.converter.SetMetrics(m)
}

// SetLocker enables a cross-process lock around each conversion
func (s *ConversionService) SetLocker(locker Locker) {
	s.locker = locker
}

// Convert looks up the source by (scope, kind, number) and converts it into
// req.TargetKind. Returns ErrNotFound if the source does not exist.
func (s *ConversionService) Convert(ctx context.Context, scope document.Scope, req ConvertRequest) (resp *DocumentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "conversion", "convert",
		telemetry.WithAttribute(telemetry.SpanAttrScope, scope.String()),
		telemetry.WithAttribute(telemetry.SpanAttrSourceKind, req.SourceKind),
		telemetry.WithAttribute(telemetry.SpanAttrSourceNumber, req.SourceNumber),
		telemetry.WithAttribute(telemetry.SpanAttrTargetKind, req.TargetKind),
	)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		}
		span.End()
	}()

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	sourceKind, err := document.ParseKind(req.SourceKind)
	if err != nil {
		return nil, err
	}
	targetKind, err := document.ParseKind(req.TargetKind)
	if err != nil {
		return nil, err
	}

	// read the source under the lock; a copy read before it may be stale
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, conversionLockKey(scope, sourceKind, req.SourceNumber))
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				contextLog(ctx, s.logger, scope).Warn("Failed to release conversion lock", zap.Error(err))
			}
		}()
	}

	source, err := s.documents.FindByNumber(ctx, scope, sourceKind, req.SourceNumber)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return nil, document.ErrNotFound.WithMessage(
				fmt.Sprintf("%s %d not found in scope %s", sourceKind, req.SourceNumber, scope))
		}
		return nil, err
	}

	target, err := s.converter.Convert(ctx, source, targetKind, ConvertOptions{
		Recalculate:      req.Recalculate,
		PaymentCondition: packaging.PaymentCondition(req.PaymentCondition),
	})
	if err != nil {
		return nil, err
	}
	out := ToDocumentResponse(target)
	return &out, nil
}

func conversionLockKey(scope document.Scope, kind document.Kind, number int64) string {
	return fmt.Sprintf("convert:%d:%d:%s:%d", scope.CompanyID, scope.BranchID, kind, number)
}

// Create allocates a number and persists a new draft with its items
func (s *ConversionService) Create(ctx context.Context, scope document.Scope, kindName string, req CreateDocumentRequest) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "create",
		telemetry.WithAttribute(telemetry.SpanAttrScope, scope.String()),
		telemetry.WithAttribute(telemetry.SpanAttrSourceKind, kindName),
	)
	defer span.End()

	kind, err := document.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	doc, err := document.NewDocument(scope, kind, req.header())
	if err != nil {
		return nil, err
	}
	for i, in := range req.Items {
		if _, err := doc.AddItem(in.toDomain()); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
	}

	err = s.writer.retryTransient(ctx, scope, kind, "create", func() error {
		return s.writer.write(ctx, scope, kind, func(number int64, repos TransactionalRepositories) error {
			if err := doc.AssignNumber(number); err != nil {
				return err
			}
			if err := doc.Validate(); err != nil {
				return err
			}
			return repos.Documents().Create(ctx, doc)
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	contextLog(ctx, s.logger, scope).Info("Document created",
		zap.String("kind", kind.String()),
		zap.Int64("number", doc.Number),
		zap.Int("items", len(doc.Items)),
	)
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// Get returns a document with its items
func (s *ConversionService) Get(ctx context.Context, scope document.Scope, kindName string, number int64) (*DocumentResponse, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	kind, err := document.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	doc, err := s.documents.FindByNumber(ctx, scope, kind, number)
	if err != nil {
		return nil, err
	}
	resp := ToDocumentResponse(doc)
	return &resp, nil
}
