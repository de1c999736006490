package inventory

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// MovementType enumerates ledger movement kinds.
type MovementType string

const (
	// MovementIn represents an inbound movement.
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement.
	MovementOut MovementType = "OUT"
	// MovementAdjustment indicates a manual correction in either direction.
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// IsValid reports whether the movement type is known.
func (m MovementType) IsValid() bool {
	switch m {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	default:
		return false
	}
}

// ReferenceType classifies what caused a movement.
type ReferenceType string

const (
	ReferenceInvoice    ReferenceType = "invoice"
	ReferencePurchase   ReferenceType = "purchase"
	ReferenceManual     ReferenceType = "manual"
	ReferenceAdjustment ReferenceType = "adjustment"
)

// IsValid reports whether the reference type is known.
func (r ReferenceType) IsValid() bool {
	switch r {
	case ReferenceInvoice, ReferencePurchase, ReferenceManual, ReferenceAdjustment:
		return true
	default:
		return false
	}
}

// Unit is the unit of measure of a product.
type Unit string

const (
	UnitPieces Unit = "pcs"
	UnitKg     Unit = "kg"
	UnitLiter  Unit = "liter"
	UnitMeter  Unit = "meter"
	UnitBox    Unit = "box"
	UnitPack   Unit = "pack"
)

const (
	// DefaultCategory is assigned when a product is created without a category.
	DefaultCategory = "General"
	// DefaultMinStock is the low-stock threshold used when none is supplied.
	DefaultMinStock int64 = 10
	// MaxQuantity bounds a single stock movement or initial stock level.
	MaxQuantity int64 = 1_000_000_000
)

// Product is a stocked item. Stock is a projection of the ledger.
type Product struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Unit        Unit            `json:"unit"`
	Price       decimal.Decimal `json:"price"`
	Cost        decimal.Decimal `json:"cost"`
	Stock       int64           `json:"stock"`
	MinStock    int64           `json:"minStock"`
	Location    string          `json:"location"`
	Supplier    string          `json:"supplier"`
	Active      bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// IsLowStock reports whether stock reached the minimum threshold.
func (p Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// ProfitMargin returns (price-cost)/price as a percentage rounded to 2 places.
func (p Product) ProfitMargin() decimal.Decimal {
	if p.Price.IsZero() {
		return decimal.Zero
	}
	return p.Price.Sub(p.Cost).Div(p.Price).Mul(decimal.NewFromInt(100)).Round(2)
}

// ProductInput carries caller supplied product attributes. Stock is honoured only on
// creation, where it is booked through the ledger.
type ProductInput struct {
	SKU         string          `json:"sku" validate:"required,max=50"`
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Category    string          `json:"category" validate:"max=100"`
	Unit        Unit            `json:"unit" validate:"omitempty,oneof=pcs kg liter meter box pack"`
	Price       decimal.Decimal `json:"price"`
	Cost        decimal.Decimal `json:"cost"`
	Stock       int64           `json:"stock" validate:"gte=0,lte=1000000000"`
	MinStock    *int64          `json:"minStock" validate:"omitempty,gte=0"`
	Location    string          `json:"location" validate:"max=200"`
	Supplier    string          `json:"supplier" validate:"max=200"`
	Active      *bool           `json:"isActive"`
	Actor       string          `json:"createdBy" validate:"max=100"`
}

// NewProduct validates input and builds a product with zero stock; the initial stock is
// applied by the service through the ledger.
func NewProduct(id string, input ProductInput, now time.Time) (Product, error) {
	input = input.normalise()
	if err := input.validate(); err != nil {
		return Product{}, err
	}
	product := Product{ID: id, MinStock: DefaultMinStock, Active: true, CreatedAt: now}
	input.applyTo(&product, now)
	return product, nil
}

// ApplyUpdate returns p with editable attributes replaced. Stock is never touched and
// omitted minStock/isActive keep their current values.
func (p Product) ApplyUpdate(input ProductInput, now time.Time) (Product, error) {
	input = input.normalise()
	if err := input.validate(); err != nil {
		return Product{}, err
	}
	input.applyTo(&p, now)
	return p, nil
}

func (in ProductInput) normalise() ProductInput {
	in.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		in.Category = DefaultCategory
	}
	if in.Unit == "" {
		in.Unit = UnitPieces
	}
	return in
}

func (in ProductInput) validate() error {
	if err := shared.ValidateStruct(in); err != nil {
		return err
	}
	if in.Price.IsNegative() {
		return shared.NewValidationError("price", "must be non-negative")
	}
	if in.Cost.IsNegative() {
		return shared.NewValidationError("cost", "must be non-negative")
	}
	return nil
}

func (in ProductInput) applyTo(p *Product, now time.Time) {
	p.SKU = in.SKU
	p.Name = in.Name
	p.Description = strings.TrimSpace(in.Description)
	p.Category = in.Category
	p.Unit = in.Unit
	p.Price = in.Price.Round(2)
	p.Cost = in.Cost.Round(2)
	if in.MinStock != nil {
		p.MinStock = *in.MinStock
	}
	p.Location = strings.TrimSpace(in.Location)
	p.Supplier = strings.TrimSpace(in.Supplier)
	if in.Active != nil {
		p.Active = *in.Active
	}
	p.UpdatedAt = now
}

// Reason describes why stock moved; it becomes the ledger entry's reference fields.
type Reason struct {
	Reference     string
	ReferenceType ReferenceType
	Note          string
	Actor         string
}

// IsCorrection reports whether the movement is a non-directional manual correction.
func (r Reason) IsCorrection() bool {
	return r.ReferenceType == ReferenceAdjustment
}

// ManualAdjustment is the operator request behind POST /products/{id}/adjust-stock.
// IN and OUT quantities are magnitudes; ADJUSTMENT quantity is the new absolute level.
type ManualAdjustment struct {
	Type     MovementType `json:"type" validate:"required,oneof=IN OUT ADJUSTMENT"`
	Quantity int64        `json:"quantity" validate:"gte=0,lte=1000000000"`
	Notes    string       `json:"notes" validate:"max=500"`
	Actor    string       `json:"createdBy" validate:"max=100"`
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Category string
	Search   string
	LowStock bool
	Active   *bool
	SortBy   string
	Order    string
	Page     int
	PerPage  int
}

// SortColumns lists accepted ProductFilter.SortBy values.
var SortColumns = map[string]string{
	"name":      "name",
	"sku":       "sku",
	"stock":     "stock",
	"price":     "price",
	"category":  "category",
	"createdAt": "created_at",
}

// Drift reports a product whose stored stock disagrees with its ledger.
type Drift struct {
	ProductID   string `json:"productId"`
	SKU         string `json:"sku"`
	Stored      int64  `json:"stored"`
	FromLedger  int64  `json:"fromLedger"`
	BrokenChain bool   `json:"brokenChain"`
}

var (
	// ErrProductIDRequired indicates a missing product identifier.
	ErrProductIDRequired error = &shared.ValidationError{Field: "id", Reason: "is required"}
	// ErrRepositoryNotInitialised is returned by a nil repository.
	ErrRepositoryNotInitialised = errors.New("inventory: repository not initialised")
)
