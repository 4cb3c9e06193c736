package models

import (
	"sort"
	"time"

	"github.com/erp/docengine/internal/domain/document"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentModel is the persistence model for the Document aggregate root.
// (company_id, branch_id, kind, number) is unique; the numbering loop relies
// on that constraint to detect a reused number.
type DocumentModel struct {
	AggregateModel
	CompanyID    int64             `gorm:"not null;uniqueIndex:uq_documents_scope_kind_number,priority:1"`
	BranchID     int64             `gorm:"not null;uniqueIndex:uq_documents_scope_kind_number,priority:2"`
	Kind         string            `gorm:"type:varchar(20);not null;uniqueIndex:uq_documents_scope_kind_number,priority:3"`
	Number       int64             `gorm:"not null;uniqueIndex:uq_documents_scope_kind_number,priority:4"`
	Status       string            `gorm:"type:varchar(20);not null;default:'DRAFT'"`
	TotalAmount  decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	ClientID     int64             `gorm:"not null;default:0;index"`
	SellerID     int64             `gorm:"not null;default:0"`
	IssueDate    time.Time         `gorm:"type:date;not null"`
	Observations string            `gorm:"type:text"`
	Discount     decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Freight      decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Address      document.Address  `gorm:"type:jsonb;serializer:json"`
	Attributes   map[string]string `gorm:"type:jsonb;serializer:json"`
	SourceID     *uuid.UUID        `gorm:"type:uuid"`
	SourceKind   *string           `gorm:"type:varchar(20)"`
	SourceNumber *int64
	TargetID     *uuid.UUID `gorm:"type:uuid"`
	TargetKind   *string    `gorm:"type:varchar(20)"`
	TargetNumber *int64
	Items        []LineItemModel `gorm:"foreignKey:DocumentID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to a domain Document.
// Items are returned in ordinal order.
func (m *DocumentModel) ToDomain() *document.Document {
	doc := &document.Document{
		BaseAggregateRoot: m.aggregate(),
		Scope:             document.Scope{CompanyID: m.CompanyID, BranchID: m.BranchID},
		Kind:              document.Kind(m.Kind),
		Number:            m.Number,
		Status:            document.Status(m.Status),
		TotalAmount:       m.TotalAmount,
		Header: document.Header{
			ClientID:     m.ClientID,
			SellerID:     m.SellerID,
			IssueDate:    m.IssueDate,
			Observations: m.Observations,
			Discount:     m.Discount,
			Freight:      m.Freight,
			Address:      m.Address,
			Attributes:   copyAttributes(m.Attributes),
		},
		Source: toReference(m.SourceID, m.SourceKind, m.SourceNumber),
		Target: toReference(m.TargetID, m.TargetKind, m.TargetNumber),
		Items:  make([]document.LineItem, 0, len(m.Items)),
	}
	for i := range m.Items {
		doc.Items = append(doc.Items, *m.Items[i].ToDomain())
	}
	sort.Slice(doc.Items, func(i, j int) bool { return doc.Items[i].Ordinal < doc.Items[j].Ordinal })
	return doc
}

// FromDomain populates the model, items included, from a domain Document
func (m *DocumentModel) FromDomain(d *document.Document) {
	m.AggregateModel = aggregateFrom(d.BaseAggregateRoot)
	m.CompanyID = d.Scope.CompanyID
	m.BranchID = d.Scope.BranchID
	m.Kind = string(d.Kind)
	m.Number = d.Number
	m.Status = string(d.Status)
	m.TotalAmount = d.TotalAmount
	m.ClientID = d.Header.ClientID
	m.SellerID = d.Header.SellerID
	m.IssueDate = d.Header.IssueDate
	m.Observations = d.Header.Observations
	m.Discount = d.Header.Discount
	m.Freight = d.Header.Freight
	m.Address = d.Header.Address
	m.Attributes = copyAttributes(d.Header.Attributes)
	m.SourceID, m.SourceKind, m.SourceNumber = fromReference(d.Source)
	m.TargetID, m.TargetKind, m.TargetNumber = fromReference(d.Target)

	m.Items = make([]LineItemModel, len(d.Items))
	for i := range d.Items {
		m.Items[i].FromDomain(&d.Items[i])
		m.Items[i].DocumentID = d.ID
	}
}

// LineItemModel is the persistence model for a document line
type LineItemModel struct {
	BaseModel
	DocumentID  uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:uq_document_items_ordinal,priority:1"`
	Ordinal     int                 `gorm:"not null;uniqueIndex:uq_document_items_ordinal,priority:2"`
	CompanyID   int64               `gorm:"not null;index:idx_document_items_scope,priority:1"`
	BranchID    int64               `gorm:"not null;index:idx_document_items_scope,priority:2"`
	ProductCode string              `gorm:"type:varchar(60);not null;index"`
	Area        decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	Quantity    decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	UnitPrice   decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	Discount    decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	Subtotal    decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	Note        string              `gorm:"type:text"`
	Attributes  map[string]string   `gorm:"type:jsonb;serializer:json"`
}

// TableName returns the table name for GORM
func (LineItemModel) TableName() string {
	return "document_items"
}

// ToDomain converts the persistence model to a domain LineItem
func (m *LineItemModel) ToDomain() *document.LineItem {
	item := &document.LineItem{
		BaseEntity:  m.entity(),
		DocumentID:  m.DocumentID,
		Scope:       document.Scope{CompanyID: m.CompanyID, BranchID: m.BranchID},
		Ordinal:     m.Ordinal,
		ProductCode: m.ProductCode,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		Discount:    m.Discount,
		Subtotal:    m.Subtotal,
		Note:        m.Note,
		Attributes:  copyAttributes(m.Attributes),
	}
	if m.Area.Valid {
		area := m.Area.Decimal
		item.Area = &area
	}
	return item
}

// FromDomain populates the model from a domain LineItem
func (m *LineItemModel) FromDomain(i *document.LineItem) {
	m.BaseModel = baseFrom(i.BaseEntity)
	m.DocumentID = i.DocumentID
	m.Ordinal = i.Ordinal
	m.CompanyID = i.Scope.CompanyID
	m.BranchID = i.Scope.BranchID
	m.ProductCode = i.ProductCode
	m.Area = decimal.NullDecimal{}
	if i.Area != nil {
		m.Area = decimal.NewNullDecimal(*i.Area)
	}
	m.Quantity = i.Quantity
	m.UnitPrice = i.UnitPrice
	m.Discount = i.Discount
	m.Subtotal = i.Subtotal
	m.Note = i.Note
	m.Attributes = copyAttributes(i.Attributes)
}

func toReference(id *uuid.UUID, kind *string, number *int64) *document.Reference {
	if id == nil || kind == nil || number == nil {
		return nil
	}
	return &document.Reference{ID: *id, Kind: document.Kind(*kind), Number: *number}
}

func fromReference(ref *document.Reference) (*uuid.UUID, *string, *int64) {
	if ref == nil {
		return nil, nil, nil
	}
	id, kind, number := ref.ID, string(ref.Kind), ref.Number
	return &id, &kind, &number
}

func copyAttributes(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
