package conversion

import (
	"time"

	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/domain/packaging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Document DTOs ====================

// AddressDTO is the wire form of document.Address
type AddressDTO struct {
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// CreateDocumentRequest represents a request to create a draft document
type CreateDocumentRequest struct {
	ClientID     int64             `json:"client_id" binding:"required,min=1"`
	SellerID     int64             `json:"seller_id"`
	IssueDate    *time.Time        `json:"issue_date"`
	Observations string            `json:"observations" binding:"max=2000"`
	Discount     decimal.Decimal   `json:"discount"`
	Freight      decimal.Decimal   `json:"freight"`
	Address      AddressDTO        `json:"address"`
	Attributes   map[string]string `json:"attributes"`
	Items        []CreateItemInput `json:"items" binding:"dive"`
}

// CreateItemInput represents an item in the create document request
type CreateItemInput struct {
	ProductCode string            `json:"product_code" binding:"required,min=1,max=60"`
	Area        *decimal.Decimal  `json:"area"`
	Quantity    decimal.Decimal   `json:"quantity"`
	UnitPrice   decimal.Decimal   `json:"unit_price"`
	Discount    decimal.Decimal   `json:"discount"`
	Note        string            `json:"note" binding:"max=500"`
	Attributes  map[string]string `json:"attributes"`
}

// ConvertRequest represents a request to convert a document into another kind
type ConvertRequest struct {
	SourceKind   string `json:"-"`
	SourceNumber int64  `json:"-"`
	TargetKind   string `json:"target_kind" binding:"required,doc_kind"`
	// Recalculate reruns the packaging calculator on items that carry an area
	Recalculate      bool   `json:"recalculate"`
	PaymentCondition string `json:"payment_condition"`
}

// ReferenceResponse is the wire form of document.Reference
type ReferenceResponse struct {
	ID     uuid.UUID `json:"id"`
	Kind   string    `json:"kind"`
	Number int64     `json:"number"`
}

// DocumentResponse represents a document in API responses
type DocumentResponse struct {
	ID           uuid.UUID          `json:"id"`
	CompanyID    int64              `json:"company_id"`
	BranchID     int64              `json:"branch_id"`
	Kind         string             `json:"kind"`
	Number       int64              `json:"number"`
	Status       string             `json:"status"`
	ClientID     int64              `json:"client_id"`
	SellerID     int64              `json:"seller_id"`
	IssueDate    time.Time          `json:"issue_date"`
	Observations string             `json:"observations,omitempty"`
	Discount     decimal.Decimal    `json:"discount"`
	Freight      decimal.Decimal    `json:"freight"`
	Address      AddressDTO         `json:"address"`
	Attributes   map[string]string  `json:"attributes,omitempty"`
	TotalAmount  decimal.Decimal    `json:"total_amount"`
	Items        []ItemResponse     `json:"items"`
	Source       *ReferenceResponse `json:"source,omitempty"`
	Target       *ReferenceResponse `json:"target,omitempty"`
	Version      int                `json:"version"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// ItemResponse represents a line item in API responses
type ItemResponse struct {
	ID          uuid.UUID         `json:"id"`
	Ordinal     int               `json:"ordinal"`
	ProductCode string            `json:"product_code"`
	Area        *decimal.Decimal  `json:"area,omitempty"`
	Quantity    decimal.Decimal   `json:"quantity"`
	UnitPrice   decimal.Decimal   `json:"unit_price"`
	Discount    decimal.Decimal   `json:"discount"`
	Subtotal    decimal.Decimal   `json:"subtotal"`
	Note        string            `json:"note,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// ToDocumentResponse converts a domain document to its response DTO
func ToDocumentResponse(doc *document.Document) DocumentResponse {
	items := make([]ItemResponse, 0, len(doc.Items))
	for _, item := range doc.SortedItems() {
		items = append(items, ToItemResponse(&item))
	}
	a := doc.Header.Address
	return DocumentResponse{
		ID:           doc.ID,
		CompanyID:    doc.Scope.CompanyID,
		BranchID:     doc.Scope.BranchID,
		Kind:         doc.Kind.String(),
		Number:       doc.Number,
		Status:       doc.Status.String(),
		ClientID:     doc.Header.ClientID,
		SellerID:     doc.Header.SellerID,
		IssueDate:    doc.Header.IssueDate,
		Observations: doc.Header.Observations,
		Discount:     doc.Header.Discount,
		Freight:      doc.Header.Freight,
		Address: AddressDTO{
			Street: a.Street, Number: a.Number, Complement: a.Complement,
			District: a.District, City: a.City, State: a.State, PostalCode: a.PostalCode,
		},
		Attributes:  doc.Header.Attributes,
		TotalAmount: doc.TotalAmount,
		Items:       items,
		Source:      toReferenceResponse(doc.Source),
		Target:      toReferenceResponse(doc.Target),
		Version:     doc.Version,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

// ToItemResponse converts a line item to its response DTO
func ToItemResponse(item *document.LineItem) ItemResponse {
	return ItemResponse{
		ID:          item.ID,
		Ordinal:     item.Ordinal,
		ProductCode: item.ProductCode,
		Area:        item.Area,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		Discount:    item.Discount,
		Subtotal:    item.Subtotal,
		Note:        item.Note,
		Attributes:  item.Attributes,
	}
}

func toReferenceResponse(ref *document.Reference) *ReferenceResponse {
	if ref == nil {
		return nil
	}
	return &ReferenceResponse{ID: ref.ID, Kind: ref.Kind.String(), Number: ref.Number}
}

func (r CreateDocumentRequest) header() document.Header {
	h := document.Header{
		ClientID:     r.ClientID,
		SellerID:     r.SellerID,
		Observations: r.Observations,
		Discount:     r.Discount,
		Freight:      r.Freight,
		Address: document.Address{
			Street: r.Address.Street, Number: r.Address.Number, Complement: r.Address.Complement,
			District: r.Address.District, City: r.Address.City, State: r.Address.State,
			PostalCode: r.Address.PostalCode,
		},
		Attributes: r.Attributes,
	}
	if r.IssueDate != nil {
		h.IssueDate = r.IssueDate.UTC()
	} else {
		h.IssueDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	return h
}

func (in CreateItemInput) toDomain() document.ItemInput {
	return document.ItemInput{
		ProductCode: in.ProductCode,
		Area:        in.Area,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		Discount:    in.Discount,
		Note:        in.Note,
		Attributes:  in.Attributes,
	}
}

// ==================== Packaging DTOs ====================

// QuantityPreviewRequest represents a packaging quote for a requested area
type QuantityPreviewRequest struct {
	ProductCode      string   `json:"product_code" binding:"required,min=1,max=60"`
	ClientID         int64    `json:"client_id" binding:"required,min=1"`
	Area             float64  `json:"area"`
	BreakagePercent  *float64 `json:"breakage_percent"`
	PaymentCondition string   `json:"payment_condition"`
}

// QuantityPreviewResponse is the computed purchase quantity
type QuantityPreviewResponse struct {
	ProductCode     string          `json:"product_code"`
	RequestedArea   decimal.Decimal `json:"requested_area"`
	BreakagePercent decimal.Decimal `json:"breakage_percent"`
	EffectiveArea   decimal.Decimal `json:"effective_area"`
	Packages        decimal.Decimal `json:"packages"`
	Pieces          decimal.Decimal `json:"pieces"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Cash            bool            `json:"cash"`
}

func toQuantityPreviewResponse(product string, area, breakage decimal.Decimal, cond packaging.PaymentCondition, r packaging.Result) QuantityPreviewResponse {
	return QuantityPreviewResponse{
		ProductCode:     product,
		RequestedArea:   area,
		BreakagePercent: breakage,
		EffectiveArea:   r.EffectiveArea,
		Packages:        r.Packages,
		Pieces:          r.Pieces,
		UnitPrice:       r.UnitPrice,
		TotalPrice:      r.TotalPrice,
		Cash:            cond.IsCash(),
	}
}
