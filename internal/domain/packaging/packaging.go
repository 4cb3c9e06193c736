package packaging

import (
	"context"
	"math"
	"strings"

	"github.com/erp/docengine/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Packaging errors
var (
	ErrInvalidPackaging = shared.NewDomainError("INVALID_PACKAGING", "Product packaging is invalid")
	ErrPriceNotFound    = shared.NewDomainError("PRICE_NOT_FOUND", "No price entry for product and client")
	ErrInvalidInput     = shared.ErrInvalidInput
)

var hundred = decimal.NewFromInt(100)

// Packaging is the package metadata of a product
type Packaging struct {
	ProductCode      string
	AreaPerPackage   decimal.Decimal
	PiecesPerPackage decimal.Decimal
}

// Validate checks that both per-package values are positive
func (p Packaging) Validate() error {
	if !p.AreaPerPackage.IsPositive() {
		return ErrInvalidPackaging.WithMessage("Area per package must be positive for product " + p.ProductCode)
	}
	if !p.PiecesPerPackage.IsPositive() {
		return ErrInvalidPackaging.WithMessage("Pieces per package must be positive for product " + p.ProductCode)
	}
	return nil
}

// PriceEntry holds the cash and term price of a product for a client
type PriceEntry struct {
	ProductCode string
	ClientID    int64
	CashPrice   decimal.Decimal
	TermPrice   decimal.Decimal
}

// PaymentCondition identifies how the client settles. "0" means cash.
type PaymentCondition string

// PaymentCash is the condition code for cash settlement
const PaymentCash PaymentCondition = "0"

// IsCash reports whether the condition is cash settlement
func (c PaymentCondition) IsCash() bool {
	return strings.TrimSpace(string(c)) == string(PaymentCash)
}

// PriceFor picks the cash or term price depending on the condition
func (e PriceEntry) PriceFor(c PaymentCondition) decimal.Decimal {
	if c.IsCash() {
		return e.CashPrice
	}
	return e.TermPrice
}

// Request is the input of Compute
type Request struct {
	RequestedArea    decimal.Decimal
	BreakagePercent  decimal.Decimal
	Packaging        Packaging
	Price            *PriceEntry
	PaymentCondition PaymentCondition
}

// Result is the computed purchase quantity
type Result struct {
	EffectiveArea decimal.Decimal
	Packages      decimal.Decimal
	Pieces        decimal.Decimal
	UnitPrice     decimal.Decimal
	TotalPrice    decimal.Decimal
}

// Compute derives packages, pieces and price from a requested area.
//
// Packages are the ceiling of effective area over area per package.
// Pieces and total price are exact products of the package count.
// A nil Price fails with ErrPriceNotFound.
func Compute(req Request) (Result, error) {
	if req.RequestedArea.IsNegative() {
		return Result{}, ErrInvalidInput.WithMessage("Requested area cannot be negative")
	}
	if req.BreakagePercent.IsNegative() {
		return Result{}, ErrInvalidInput.WithMessage("Breakage percent cannot be negative")
	}
	if err := req.Packaging.Validate(); err != nil {
		return Result{}, err
	}
	if req.Price == nil {
		return Result{}, ErrPriceNotFound.WithMessage("No price entry for product " + req.Packaging.ProductCode)
	}

	effective := req.RequestedArea.Mul(decimal.NewFromInt(1).Add(req.BreakagePercent.Div(hundred)))
	packages := ceilDiv(effective, req.Packaging.AreaPerPackage)
	unitPrice := req.Price.PriceFor(req.PaymentCondition)

	return Result{
		EffectiveArea: effective,
		Packages:      packages,
		Pieces:        packages.Mul(req.Packaging.PiecesPerPackage),
		UnitPrice:     unitPrice,
		TotalPrice:    packages.Mul(unitPrice),
	}, nil
}

// ceilDiv rounds a/b up to an integer without going through Div's
// fixed precision, so 26/2 stays 13 and 25.74/2 becomes 13.
func ceilDiv(a, b decimal.Decimal) decimal.Decimal {
	q, r := a.QuoRem(b, 0)
	if r.IsPositive() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q
}

// DecimalFromFloat converts a caller-supplied float, rejecting NaN and infinities
func DecimalFromFloat(name string, v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, ErrInvalidInput.WithMessage(name + " must be a finite number")
	}
	return decimal.NewFromFloat(v), nil
}

// CatalogReader resolves packaging and prices. Absence is reported through
// the found flag, not as an error.
type CatalogReader interface {
	FindPackaging(ctx context.Context, companyID int64, productCode string) (Packaging, bool, error)
	FindPrice(ctx context.Context, companyID int64, productCode string, clientID int64) (PriceEntry, bool, error)
}
