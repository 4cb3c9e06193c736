package persistence

import (
	"context"
	"testing"

	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormDocumentRepository_CreateAndFind(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	doc := newTestDocument(t, testScope, document.KindBudget, 1, 3)
	require.NoError(t, repo.Create(ctx, doc))

	t.Run("loads header and items in ordinal order", func(t *testing.T) {
		found, err := repo.FindByNumber(ctx, testScope, document.KindBudget, 1)
		require.NoError(t, err)

		assert.Equal(t, doc.ID, found.ID)
		assert.Equal(t, document.StatusDraft, found.Status)
		assert.Equal(t, int64(42), found.Header.ClientID)
		assert.True(t, doc.TotalAmount.Equal(found.TotalAmount))
		require.Len(t, found.Items, 3)
		for i, item := range found.Items {
			assert.Equal(t, i+1, item.Ordinal)
			assert.Equal(t, doc.ID, item.DocumentID)
			require.NotNil(t, item.Area)
			assert.True(t, decimal.NewFromInt(int64(i+1)).Equal(*item.Area))
		}
		assert.NoError(t, found.Validate())
	})

	t.Run("for update behaves like a plain read on sqlite", func(t *testing.T) {
		found, err := repo.FindByNumberForUpdate(ctx, testScope, document.KindBudget, 1)
		require.NoError(t, err)
		assert.Equal(t, doc.ID, found.ID)
	})

	t.Run("other kind is not found", func(t *testing.T) {
		_, err := repo.FindByNumber(ctx, testScope, document.KindOrder, 1)
		assert.ErrorIs(t, err, document.ErrNotFound)
	})

	t.Run("other scope is not visible", func(t *testing.T) {
		_, err := repo.FindByNumber(ctx, document.Scope{CompanyID: 1, BranchID: 2}, document.KindBudget, 1)
		assert.ErrorIs(t, err, document.ErrNotFound)
	})
}

func TestGormDocumentRepository_Create_DuplicateNumber(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestDocument(t, testScope, document.KindOrder, 5, 1)))

	err := repo.Create(ctx, newTestDocument(t, testScope, document.KindOrder, 5, 1))
	assert.ErrorIs(t, err, document.ErrDuplicateSequence)

	t.Run("same number in another scope is allowed", func(t *testing.T) {
		other := document.Scope{CompanyID: 2, BranchID: 1}
		assert.NoError(t, repo.Create(ctx, newTestDocument(t, other, document.KindOrder, 5, 1)))
	})

	t.Run("same number of another kind is allowed", func(t *testing.T) {
		assert.NoError(t, repo.Create(ctx, newTestDocument(t, testScope, document.KindBudget, 5, 1)))
	})
}

func TestGormDocumentRepository_Create_RejectsInvalid(t *testing.T) {
	repo := NewGormDocumentRepository(newSQLiteDB(t))

	doc := newTestDocument(t, testScope, document.KindBudget, 1, 1)
	doc.Number = 0

	err := repo.Create(context.Background(), doc)
	assert.ErrorIs(t, err, document.ErrInvalidDocument)
}

func TestGormDocumentRepository_MarkConverted(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	source := newTestDocument(t, testScope, document.KindBudget, 1, 2)
	require.NoError(t, repo.Create(ctx, source))
	target := document.Reference{ID: uuid.New(), Kind: document.KindOrder, Number: 9}

	t.Run("flips a draft and stores the forward reference", func(t *testing.T) {
		loaded, err := repo.FindByNumber(ctx, testScope, document.KindBudget, 1)
		require.NoError(t, err)
		require.NoError(t, loaded.MarkConverted(target))
		require.NoError(t, repo.MarkConverted(ctx, loaded))

		stored, err := repo.FindByNumber(ctx, testScope, document.KindBudget, 1)
		require.NoError(t, err)
		assert.Equal(t, document.StatusConverted, stored.Status)
		require.NotNil(t, stored.Target)
		assert.Equal(t, target, *stored.Target)
		assert.Equal(t, loaded.Version, stored.Version)
	})

	t.Run("second flip of a stale copy is rejected", func(t *testing.T) {
		stale := newTestDocument(t, testScope, document.KindBudget, 1, 2)
		stale.ID = source.ID
		require.NoError(t, stale.MarkConverted(target))

		err := repo.MarkConverted(ctx, stale)
		assert.ErrorIs(t, err, document.ErrAlreadyConverted)
	})

	t.Run("requires a target", func(t *testing.T) {
		doc := newTestDocument(t, testScope, document.KindBudget, 3, 0)
		err := repo.MarkConverted(ctx, doc)
		assert.ErrorIs(t, err, document.ErrInvalidDocument)
	})
}

func TestGormDocumentRepository_StoresSourceReference(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	order := newTestDocument(t, testScope, document.KindOrder, 1, 1)
	order.Source = &document.Reference{ID: uuid.New(), Kind: document.KindBudget, Number: 4}
	require.NoError(t, repo.Create(ctx, order))

	var count int64
	require.NoError(t, db.Model(&models.DocumentModel{}).
		Where("source_kind = ? AND source_number = ?", "BUDGET", 4).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	found, err := repo.FindByNumber(ctx, testScope, document.KindOrder, 1)
	require.NoError(t, err)
	assert.Equal(t, order.Source, found.Source)
}

func TestGormDocumentRepository_MaxNumber(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	highest, err := repo.MaxNumber(ctx, testScope, document.KindOrder)
	require.NoError(t, err)
	assert.Zero(t, highest)

	for _, n := range []int64{3, 11, 7} {
		require.NoError(t, repo.Create(ctx, newTestDocument(t, testScope, document.KindOrder, n, 1)))
	}
	require.NoError(t, repo.Create(ctx, newTestDocument(t, testScope, document.KindBudget, 50, 1)))

	highest, err = repo.MaxNumber(ctx, testScope, document.KindOrder)
	require.NoError(t, err)
	assert.Equal(t, int64(11), highest)

	t.Run("counter row ahead of stored documents", func(t *testing.T) {
		// 12 and 13 were allocated by rolled back conversions
		alloc := NewGormSequenceAllocator(db)
		for range 2 {
			_, err := alloc.Allocate(ctx, testScope, document.KindOrder)
			require.NoError(t, err)
		}

		highest, err := repo.MaxNumber(ctx, testScope, document.KindOrder)
		require.NoError(t, err)
		assert.Equal(t, int64(13), highest)

		other, err := repo.MaxNumber(ctx, document.Scope{CompanyID: 1, BranchID: 2}, document.KindOrder)
		require.NoError(t, err)
		assert.Zero(t, other)
	})
}
