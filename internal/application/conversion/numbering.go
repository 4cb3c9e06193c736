package conversion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/domain/shared"
	"github.com/erp/docengine/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// sequencedWriter allocates a number and runs a transactional write with it.
// The allocation commits on its own, so a rolled-back write leaves a gap
// instead of handing the same number out again.
type sequencedWriter struct {
	allocator document.SequenceAllocator
	txScope   TransactionScope
	opts      Options
	metrics   *telemetry.ConversionMetrics
	logger    *zap.Logger
}

// write allocates a number for (scope, kind) and calls fn inside a transaction.
// A duplicate-number rejection triggers a fresh allocation, at most
// MaxSequenceAttempts times in total, after which ErrSequenceExhausted is returned.
func (w *sequencedWriter) write(
	ctx context.Context,
	scope document.Scope,
	kind document.Kind,
	fn func(number int64, repos TransactionalRepositories) error,
) error {
	var lastErr error
	for attempt := 1; attempt <= w.opts.MaxSequenceAttempts; attempt++ {
		number, err := w.allocator.Allocate(ctx, scope, kind)
		if err != nil {
			return err
		}
		w.metrics.RecordAllocation(ctx, kind.String())

		err = w.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			return fn(number, repos)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, document.ErrDuplicateSequence) {
			return err
		}

		lastErr = err
		w.metrics.RecordSequenceRetry(ctx, kind.String(), telemetry.RetryReasonDuplicate)
		contextLog(ctx, w.logger, scope).Warn("Sequence number already in use, allocating again",
			zap.String("kind", kind.String()),
			zap.Int64("number", number),
			zap.Int("attempt", attempt),
		)
	}
	return document.ErrSequenceExhausted.
		WithMessage(fmt.Sprintf("No free %s number after %d attempts in scope %s", kind, w.opts.MaxSequenceAttempts, scope)).
		WithCause(lastErr)
}

// retryTransient runs op and retries it once after a backoff when it fails with
// ErrTransientStorage. A transient failure that persists becomes ErrConversionFailed.
func (w *sequencedWriter) retryTransient(ctx context.Context, scope document.Scope, kind document.Kind, operation string, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(w.opts.TransientRetryBackoff), 1),
		ctx,
	)
	err := backoff.RetryNotify(func() error {
		err := op()
		if err == nil || errors.Is(err, document.ErrTransientStorage) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		w.metrics.RecordSequenceRetry(ctx, kind.String(), telemetry.RetryReasonTransient)
		contextLog(ctx, w.logger, scope).Warn("Transient storage failure, retrying",
			zap.String("kind", kind.String()),
			zap.String("operation", operation),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	})
	if err == nil {
		return nil
	}
	return surface(err)
}

// surface keeps domain errors as they are and wraps anything else in ErrConversionFailed
func surface(err error) error {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) && !errors.Is(err, document.ErrTransientStorage) {
		return err
	}
	return document.ErrConversionFailed.WithCause(err)
}

// outcome labels a finished operation for metrics
func outcome(err error) string {
	if err == nil {
		return telemetry.OutcomeOK
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "INTERNAL_ERROR"
}
