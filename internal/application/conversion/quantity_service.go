package conversion

import (
	"context"

	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/domain/packaging"
	"github.com/erp/docengine/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// QuantityService quotes packages, pieces and price for a requested area
type QuantityService struct {
	catalog         packaging.CatalogReader
	defaultBreakage decimal.Decimal
	logger          *zap.Logger
}

// NewQuantityService creates a new QuantityService
func NewQuantityService(catalog packaging.CatalogReader, opts Options, logger *zap.Logger) *QuantityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuantityService{
		catalog:         catalog,
		defaultBreakage: opts.withDefaults().DefaultBreakagePercent,
		logger:          logger,
	}
}

// Preview computes the purchase quantity without touching any document.
// A missing price surfaces as ErrPriceNotFound.
func (s *QuantityService) Preview(ctx context.Context, scope document.Scope, req QuantityPreviewRequest) (*QuantityPreviewResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quantity", "preview",
		telemetry.WithAttribute(telemetry.SpanAttrScope, scope.String()),
		telemetry.WithAttribute(telemetry.SpanAttrProductCode, req.ProductCode),
	)
	defer span.End()

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	area, err := packaging.DecimalFromFloat("area", req.Area)
	if err != nil {
		return nil, err
	}
	breakage := s.defaultBreakage
	if req.BreakagePercent != nil {
		breakage, err = packaging.DecimalFromFloat("breakage_percent", *req.BreakagePercent)
		if err != nil {
			return nil, err
		}
	}
	cond := packaging.PaymentCondition(req.PaymentCondition)

	res, err := quote(ctx, s.catalog, scope, req.ProductCode, req.ClientID, area, breakage, cond)
	if err != nil {
		contextLog(ctx, s.logger, scope).Debug("Quantity preview failed",
			zap.String("product_code", req.ProductCode),
			zap.Int64("client_id", req.ClientID),
			zap.Error(err),
		)
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := toQuantityPreviewResponse(req.ProductCode, area, breakage, cond, res)
	return &resp, nil
}
