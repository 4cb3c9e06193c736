package document

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Field names a header or line item field that conversion rules can map
type Field string

// FieldType is the value type carried by a field. Renames must preserve it.
type FieldType string

const (
	FieldTypeInt     FieldType = "int"
	FieldTypeDate    FieldType = "date"
	FieldTypeText    FieldType = "text"
	FieldTypeDecimal FieldType = "decimal"
	FieldTypeAddress FieldType = "address"
	// FieldTypeMeasure is an optional decimal such as a requested area
	FieldTypeMeasure FieldType = "measure"
)

// Header fields present on every kind
const (
	FieldClientID     Field = "client_id"
	FieldSellerID     Field = "seller_id"
	FieldIssueDate    Field = "issue_date"
	FieldObservations Field = "observations"
	FieldDiscount     Field = "discount"
	FieldFreight      Field = "freight"
	FieldAddress      Field = "address"
)

// Floor installation attributes carried by budgets and orders
const (
	FieldFloorModel       Field = "floor_model"
	FieldAluminiumModel   Field = "aluminium_model"
	FieldBaseboardModel   Field = "baseboard_model"
	FieldDoorModel        Field = "door_model"
	FieldOtherModel       Field = "other_model"
	FieldFloorDirection   Field = "floor_direction"
	FieldDoorAdjustment   Field = "door_adjustment"
	FieldStairSteps       Field = "stair_steps"
	FieldInhabitedSite    Field = "inhabited_site"
	FieldFurnitureMoving  Field = "furniture_moving"
	FieldBaseboardRemoval Field = "baseboard_removal"
	FieldCarpetRemoval    Field = "carpet_removal"
	FieldSketchInfo       Field = "sketch_info"
)

// Visit-only attributes
const (
	FieldVisitStage        Field = "visit_stage"
	FieldMeasurementSketch Field = "measurement_sketch"
)

// Line item fields
const (
	ItemFieldProductCode Field = "product_code"
	ItemFieldArea        Field = "area"
	ItemFieldQuantity    Field = "quantity"
	ItemFieldUnitPrice   Field = "unit_price"
	ItemFieldDiscount    Field = "discount"
	ItemFieldNote        Field = "note"

	ItemFieldRoomName             Field = "room_name"
	ItemFieldBoxCount             Field = "box_count"
	ItemFieldBreakagePercent      Field = "breakage_percent"
	ItemFieldInstallationIncluded Field = "installation_included"
)

// Schema lists the fields a kind carries and their types
type Schema map[Field]FieldType

// Fields returns the schema's field names in a stable order
func (s Schema) Fields() []Field {
	fields := make([]Field, 0, len(s))
	for f := range s {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

var coreHeaderFields = Schema{
	FieldClientID:     FieldTypeInt,
	FieldSellerID:     FieldTypeInt,
	FieldIssueDate:    FieldTypeDate,
	FieldObservations: FieldTypeText,
	FieldDiscount:     FieldTypeDecimal,
	FieldFreight:      FieldTypeDecimal,
	FieldAddress:      FieldTypeAddress,
}

var floorAttributes = []Field{
	FieldFloorModel, FieldAluminiumModel, FieldBaseboardModel, FieldDoorModel, FieldOtherModel,
	FieldFloorDirection, FieldDoorAdjustment, FieldStairSteps, FieldInhabitedSite,
	FieldFurnitureMoving, FieldBaseboardRemoval, FieldCarpetRemoval, FieldSketchInfo,
}

var coreItemFields = Schema{
	ItemFieldProductCode: FieldTypeText,
	ItemFieldArea:        FieldTypeMeasure,
	ItemFieldQuantity:    FieldTypeDecimal,
	ItemFieldUnitPrice:   FieldTypeDecimal,
	ItemFieldDiscount:    FieldTypeDecimal,
	ItemFieldNote:        FieldTypeText,
}

var floorItemAttributes = []Field{
	ItemFieldRoomName, ItemFieldBoxCount, ItemFieldBreakagePercent, ItemFieldInstallationIncluded,
}

func extend(base Schema, attrs ...Field) Schema {
	s := make(Schema, len(base)+len(attrs))
	for f, t := range base {
		s[f] = t
	}
	for _, f := range attrs {
		s[f] = FieldTypeText
	}
	return s
}

var (
	headerSchemas = map[Kind]Schema{
		KindBudget: extend(coreHeaderFields, floorAttributes...),
		KindOrder:  extend(coreHeaderFields, floorAttributes...),
		KindVisit:  extend(coreHeaderFields, FieldVisitStage, FieldMeasurementSketch),
	}
	itemSchemas = map[Kind]Schema{
		KindBudget: extend(coreItemFields, floorItemAttributes...),
		KindOrder:  extend(coreItemFields, floorItemAttributes...),
		KindVisit:  extend(coreItemFields),
	}
)

// HeaderSchema returns the header fields of a kind
func HeaderSchema(k Kind) Schema {
	return headerSchemas[k]
}

// ItemSchema returns the line item fields of a kind
func ItemSchema(k Kind) Schema {
	return itemSchemas[k]
}

// Address is the delivery/installation address of a document
type Address struct {
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// Header holds the free-form fields of a document copied on conversion.
// Kind-specific fields live in Attributes keyed by field name.
type Header struct {
	ClientID     int64
	SellerID     int64
	IssueDate    time.Time
	Observations string
	Discount     decimal.Decimal
	Freight      decimal.Decimal
	Address      Address
	Attributes   map[string]string
}

func (h *Header) value(f Field) any {
	switch f {
	case FieldClientID:
		return h.ClientID
	case FieldSellerID:
		return h.SellerID
	case FieldIssueDate:
		return h.IssueDate
	case FieldObservations:
		return h.Observations
	case FieldDiscount:
		return h.Discount
	case FieldFreight:
		return h.Freight
	case FieldAddress:
		return h.Address
	}
	return h.Attributes[string(f)]
}

func (h *Header) set(f Field, v any) {
	switch f {
	case FieldClientID:
		h.ClientID = v.(int64)
	case FieldSellerID:
		h.SellerID = v.(int64)
	case FieldIssueDate:
		h.IssueDate = v.(time.Time)
	case FieldObservations:
		h.Observations = v.(string)
	case FieldDiscount:
		h.Discount = v.(decimal.Decimal)
	case FieldFreight:
		h.Freight = v.(decimal.Decimal)
	case FieldAddress:
		h.Address = v.(Address)
	default:
		s := v.(string)
		if s == "" {
			return
		}
		if h.Attributes == nil {
			h.Attributes = make(map[string]string)
		}
		h.Attributes[string(f)] = s
	}
}

// ValidateAttributes rejects attribute keys that the kind does not carry
func (h *Header) ValidateAttributes(k Kind) error {
	schema := HeaderSchema(k)
	for key := range h.Attributes {
		if _, core := coreHeaderFields[Field(key)]; core {
			return ErrInvalidDocument.WithMessage("Attribute shadows header field: " + key)
		}
		if _, ok := schema[Field(key)]; !ok {
			return ErrInvalidDocument.WithMessage("Unknown " + k.String() + " attribute: " + key)
		}
	}
	return nil
}
