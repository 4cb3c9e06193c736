package conversion

import (
	"context"

	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// contextLog returns a logger that adds the request id, trace ids and scope
// carried by ctx. The request logger stored in ctx wins over base, and scope
// is added as a field when ctx has none.
func contextLog(ctx context.Context, base *zap.Logger, scope document.Scope) *logger.ContextLogger {
	var l *logger.ContextLogger
	if _, ok := ctx.Value(logger.LoggerKey).(*zap.Logger); ok {
		l = logger.L(ctx)
	} else {
		l = logger.WithLogger(ctx, base)
	}
	if _, _, ok := logger.GetScope(ctx); !ok {
		l = l.With(zap.String("scope", scope.String()))
	}
	return l
}
