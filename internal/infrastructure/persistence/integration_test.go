//go:build integration

package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erp/docengine/internal/application/conversion"
	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/infrastructure/persistence/models"
	"github.com/erp/docengine/internal/infrastructure/persistence/pgtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSequenceAllocator_ConcurrentPostgres(t *testing.T) {
	tdb := pgtest.New(t)
	alloc := NewGormSequenceAllocator(tdb.DB)
	ctx := context.Background()

	const workers, perWorker = 10, 8
	var (
		mu   sync.Mutex
		seen = make(map[int64]int)
		wg   sync.WaitGroup
	)
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				n, err := alloc.Allocate(ctx, testScope, document.KindOrder)
				if err != nil {
					errs <- err
					return
				}
				mu.Lock()
				seen[n]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, seen, workers*perWorker, "every allocation must be unique")
	for n := int64(1); n <= workers*perWorker; n++ {
		assert.Equal(t, 1, seen[n], "number %d", n)
	}
}

func TestDocumentRepository_Postgres(t *testing.T) {
	tdb := pgtest.New(t)
	repo := NewGormDocumentRepository(tdb.DB)
	ctx := context.Background()

	doc := newTestDocument(t, testScope, document.KindBudget, 1, 3)
	require.NoError(t, repo.Create(ctx, doc))

	t.Run("duplicate number maps to ErrDuplicateSequence", func(t *testing.T) {
		err := repo.Create(ctx, newTestDocument(t, testScope, document.KindBudget, 1, 1))
		assert.ErrorIs(t, err, document.ErrDuplicateSequence)
	})

	t.Run("round trips items", func(t *testing.T) {
		found, err := repo.FindByNumberForUpdate(ctx, testScope, document.KindBudget, 1)
		require.NoError(t, err)
		require.Len(t, found.Items, 3)
		assert.NoError(t, found.Validate())
	})
}

func TestConversion_ConcurrentDoubleConvertPostgres(t *testing.T) {
	tdb := pgtest.New(t)
	ctx := context.Background()

	documents := NewGormDocumentRepository(tdb.DB)
	service := conversion.NewConversionService(
		documents,
		NewGormSequenceAllocator(tdb.DB),
		NewGormTransactionScope(tdb.DB, 0),
		NewGormCatalogRepository(tdb.DB),
		document.MustDefaultRules(),
		conversion.DefaultOptions(),
		nil,
	)

	budget := newTestDocument(t, testScope, document.KindBudget, 1, 4)
	require.NoError(t, documents.Create(ctx, budget))

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Convert(ctx, testScope, conversion.ConvertRequest{
				SourceKind:   "BUDGET",
				SourceNumber: 1,
				TargetKind:   "ORDER",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, document.ErrAlreadyConverted):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, racers-1, conflicts)

	var orders int64
	require.NoError(t, tdb.DB.Model(&models.DocumentModel{}).Where("kind = ?", "ORDER").Count(&orders).Error)
	assert.Equal(t, int64(1), orders)

	stored, err := documents.FindByNumber(ctx, testScope, document.KindBudget, 1)
	require.NoError(t, err)
	assert.Equal(t, document.StatusConverted, stored.Status)
	require.NotNil(t, stored.Target)
	assert.Equal(t, document.KindOrder, stored.Target.Kind)
}
