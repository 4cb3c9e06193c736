package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDocumentRepository implements document.Repository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// FindByNumber loads a document and its items by (scope, kind, number)
func (r *GormDocumentRepository) FindByNumber(ctx context.Context, scope document.Scope, kind document.Kind, number int64) (*document.Document, error) {
	return r.find(ctx, r.db.WithContext(ctx), scope, kind, number)
}

// FindByNumberForUpdate loads a document holding its row lock until the
// surrounding transaction ends. Postgres takes FOR UPDATE; sqlite already
// serializes writers so the clause is omitted there.
func (r *GormDocumentRepository) FindByNumberForUpdate(ctx context.Context, scope document.Scope, kind document.Kind, number int64) (*document.Document, error) {
	query := r.db.WithContext(ctx)
	if IsPostgres(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: clause.CurrentTable}})
	}
	return r.find(ctx, query, scope, kind, number)
}

func (r *GormDocumentRepository) find(ctx context.Context, query *gorm.DB, scope document.Scope, kind document.Kind, number int64) (*document.Document, error) {
	var model models.DocumentModel
	err := query.
		Scopes(ScopeOf(scope)).
		Where("kind = ? AND number = ?", string(kind), number).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, document.ErrNotFound.WithMessage(
				fmt.Sprintf("%s %d not found in %s", kind, number, scope))
		}
		return nil, translateError(err)
	}

	// Items are loaded with a plain query so the row lock above is not
	// extended to document_items.
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", model.ID).
		Order("ordinal ASC").
		Find(&model.Items).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// Create inserts the document header and all of its items
func (r *GormDocumentRepository) Create(ctx context.Context, doc *document.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	model := &models.DocumentModel{}
	model.FromDomain(doc)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// MarkConverted flips the stored row to CONVERTED only if it is still a
// draft. A concurrent conversion that got there first leaves zero rows
// affected, which surfaces as ErrAlreadyConverted.
func (r *GormDocumentRepository) MarkConverted(ctx context.Context, doc *document.Document) error {
	if doc.Target == nil {
		return document.ErrInvalidDocument.WithMessage("Converted document must reference its target")
	}
	targetKind := string(doc.Target.Kind)
	result := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("id = ? AND status = ?", doc.ID, string(document.StatusDraft)).
		Updates(map[string]any{
			"status":        string(doc.Status),
			"target_id":     doc.Target.ID,
			"target_kind":   targetKind,
			"target_number": doc.Target.Number,
			"version":       doc.Version,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return document.ErrAlreadyConverted.WithMessage(
			fmt.Sprintf("%s %d has already been converted", doc.Kind, doc.Number))
	}
	return nil
}

var _ document.Repository = (*GormDocumentRepository)(nil)

// MaxNumber returns the highest number known to be taken for (scope, kind),
// or 0: the larger of the stored documents' maximum and the database counter
// row, so numbers burned under the database strategy are not handed out again.
func (r *GormDocumentRepository) MaxNumber(ctx context.Context, scope document.Scope, kind document.Kind) (int64, error) {
	var stored, counter int64
	err := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Scopes(ScopeOf(scope)).
		Where("kind = ?", string(kind)).
		Select("COALESCE(MAX(number), 0)").
		Scan(&stored).Error
	if err != nil {
		return 0, translateError(err)
	}
	err = r.db.WithContext(ctx).
		Model(&models.SequenceCounterModel{}).
		Scopes(ScopeOf(scope)).
		Where("kind = ?", string(kind)).
		Select("COALESCE(MAX(last_value), 0)").
		Scan(&counter).Error
	if err != nil {
		return 0, translateError(err)
	}
	return max(stored, counter), nil
}
