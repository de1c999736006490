package invoicing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// DateLayout is the wire format of issue and due dates.
const DateLayout = "2006-01-02"

// Status is the display status of an invoice. Cancellation is an action, not a status.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// IsValid reports whether the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue:
		return true
	default:
		return false
	}
}

// Item is one invoice line. ProductID is empty for free-text lines that do not touch
// inventory.
type Item struct {
	Line          int             `json:"line"`
	ProductID     string          `json:"productId,omitempty"`
	Description   string          `json:"desc"`
	Quantity      int64           `json:"qty"`
	Price         decimal.Decimal `json:"price"`
	StockDeducted bool            `json:"stockDeducted"`
}

// Amount returns quantity times unit price.
func (i Item) Amount() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}

// Tracked reports whether the line references an inventory product.
func (i Item) Tracked() bool {
	return i.ProductID != ""
}

// Invoice is a client invoice with its ordered items.
type Invoice struct {
	ID          string          `json:"id"`
	ClientName  string          `json:"clientName"`
	ClientEmail string          `json:"clientEmail"`
	Status      Status          `json:"status"`
	IssueDate   time.Time       `json:"-"`
	DueDate     time.Time       `json:"-"`
	Items       []Item          `json:"items"`
	TaxRate     decimal.Decimal `json:"taxRate"`
	Notes       string          `json:"notes,omitempty"`
	PaidAt      *time.Time      `json:"paidAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// MarshalJSON adds the wire dates and the derived totals.
func (inv Invoice) MarshalJSON() ([]byte, error) {
	type plain Invoice
	return json.Marshal(struct {
		plain
		DateIssued     string          `json:"dateIssued"`
		DueDate        string          `json:"dueDate"`
		Subtotal       decimal.Decimal `json:"subtotal"`
		Tax            decimal.Decimal `json:"tax"`
		Total          decimal.Decimal `json:"total"`
		FormattedTotal string          `json:"formattedTotal"`
	}{
		plain:          plain(inv),
		DateIssued:     inv.IssueDate.Format(DateLayout),
		DueDate:        inv.DueDate.Format(DateLayout),
		Subtotal:       inv.Subtotal(),
		Tax:            inv.Tax(),
		Total:          inv.Total(),
		FormattedTotal: inv.FormattedTotal(),
	})
}

// Subtotal sums the item amounts.
func (inv Invoice) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range inv.Items {
		total = total.Add(item.Amount())
	}
	return total
}

// Tax applies TaxRate percent to the subtotal, rounded to 2 places.
func (inv Invoice) Tax() decimal.Decimal {
	if inv.TaxRate.IsZero() {
		return decimal.Zero
	}
	return inv.Subtotal().Mul(inv.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
}

// Total is always recomputed from the items.
func (inv Invoice) Total() decimal.Decimal {
	return inv.Subtotal().Add(inv.Tax())
}

// FormattedTotal renders Total in Rupiah.
func (inv Invoice) FormattedTotal() string {
	return shared.FormatRupiah(inv.Total())
}

// HasDeductedItems reports whether any item currently holds deducted stock.
func (inv Invoice) HasDeductedItems() bool {
	for _, item := range inv.Items {
		if item.StockDeducted {
			return true
		}
	}
	return false
}

// ItemsSold sums item quantities.
func (inv Invoice) ItemsSold() int64 {
	var n int64
	for _, item := range inv.Items {
		n += item.Quantity
	}
	return n
}

// IsOverdueAt reports whether a pending invoice is past its due date on day asOf.
func (inv Invoice) IsOverdueAt(asOf time.Time) bool {
	return inv.Status == StatusPending && inv.DueDate.Before(truncateDay(asOf))
}

// ItemInput is one requested invoice line.
type ItemInput struct {
	ProductID   string          `json:"productId" validate:"omitempty,uuid"`
	Description string          `json:"desc" validate:"required,max=500"`
	Quantity    int64           `json:"qty" validate:"gte=1,lte=1000000000"`
	Price       decimal.Decimal `json:"price"`
}

// InvoiceInput carries caller supplied invoice attributes.
type InvoiceInput struct {
	ClientName  string          `json:"clientName" validate:"required,max=200"`
	ClientEmail string          `json:"clientEmail" validate:"required,email,max=200"`
	Status      Status          `json:"status" validate:"omitempty,oneof=pending paid overdue"`
	IssueDate   string          `json:"dateIssued" validate:"required,datetime=2006-01-02"`
	DueDate     string          `json:"dueDate" validate:"required,datetime=2006-01-02"`
	Items       []ItemInput     `json:"items" validate:"required,min=1,dive"`
	TaxRate     decimal.Decimal `json:"taxRate"`
	Notes       string          `json:"notes" validate:"max=2000"`
	Actor       string          `json:"createdBy" validate:"max=100"`
}

func (in InvoiceInput) normalise() InvoiceInput {
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientEmail = strings.ToLower(strings.TrimSpace(in.ClientEmail))
	in.IssueDate = strings.TrimSpace(in.IssueDate)
	in.DueDate = strings.TrimSpace(in.DueDate)
	in.Notes = strings.TrimSpace(in.Notes)
	items := make([]ItemInput, len(in.Items))
	for i, item := range in.Items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		item.Description = strings.TrimSpace(item.Description)
		items[i] = item
	}
	in.Items = items
	return in
}

// parse validates the input and returns the typed dates and items.
func (in InvoiceInput) parse() (issue, due time.Time, items []Item, err error) {
	if err = shared.ValidateStruct(in); err != nil {
		return
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		err = shared.NewValidationError("taxRate", "must be between 0 and 100")
		return
	}
	if issue, err = time.Parse(DateLayout, in.IssueDate); err != nil {
		err = shared.NewValidationError("dateIssued", "must match layout "+DateLayout)
		return
	}
	if due, err = time.Parse(DateLayout, in.DueDate); err != nil {
		err = shared.NewValidationError("dueDate", "must match layout "+DateLayout)
		return
	}
	if due.Before(issue) {
		err = shared.NewValidationError("dueDate", "must not be before dateIssued")
		return
	}
	items = make([]Item, 0, len(in.Items))
	for i, raw := range in.Items {
		item, itemErr := NewItem(i+1, raw)
		if itemErr != nil {
			err = itemErr
			return
		}
		items = append(items, item)
	}
	return issue, due, items, nil
}

// NewItem validates one line and assigns its 1-based position.
func NewItem(line int, in ItemInput) (Item, error) {
	field := func(name string) string { return fmt.Sprintf("items[%d].%s", line-1, name) }
	if in.Quantity <= 0 {
		return Item{}, shared.NewValidationError(field("qty"), "must be positive")
	}
	if in.Price.IsNegative() {
		return Item{}, shared.NewValidationError(field("price"), "must be non-negative")
	}
	if strings.TrimSpace(in.Description) == "" {
		return Item{}, shared.NewValidationError(field("desc"), "is required")
	}
	return Item{
		Line:        line,
		ProductID:   strings.TrimSpace(in.ProductID),
		Description: strings.TrimSpace(in.Description),
		Quantity:    in.Quantity,
		Price:       in.Price.Round(2),
	}, nil
}

// NewInvoice builds a pending invoice. A requested status of paid is refused: payment
// goes through MarkPaid so stock is deducted.
func NewInvoice(id string, input InvoiceInput, now time.Time) (Invoice, error) {
	input = input.normalise()
	issue, due, items, err := input.parse()
	if err != nil {
		return Invoice{}, err
	}
	status := input.Status
	if status == "" {
		status = StatusPending
	}
	if status == StatusPaid {
		return Invoice{}, shared.NewValidationError("status", "invoices are created unpaid; use the pay action")
	}
	return Invoice{
		ID:          id,
		ClientName:  input.ClientName,
		ClientEmail: input.ClientEmail,
		Status:      status,
		IssueDate:   issue,
		DueDate:     due,
		Items:       items,
		TaxRate:     input.TaxRate.Round(2),
		Notes:       input.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ApplyUpdate replaces client details, dates and items. Status is changed only through
// actions; items cannot change while stock is deducted for them.
func (inv Invoice) ApplyUpdate(input InvoiceInput, now time.Time) (Invoice, error) {
	input = input.normalise()
	issue, due, items, err := input.parse()
	if err != nil {
		return Invoice{}, err
	}
	if inv.HasDeductedItems() && !sameItems(inv.Items, items) {
		return Invoice{}, &shared.InvalidTransitionError{InvoiceID: inv.ID, From: string(inv.Status), Action: "edit items"}
	}
	if inv.HasDeductedItems() {
		items = inv.Items
	}
	inv.ClientName = input.ClientName
	inv.ClientEmail = input.ClientEmail
	inv.IssueDate = issue
	inv.DueDate = due
	inv.Items = items
	inv.TaxRate = input.TaxRate.Round(2)
	inv.Notes = input.Notes
	inv.UpdatedAt = now
	return inv, nil
}

func sameItems(current, next []Item) bool {
	if len(current) != len(next) {
		return false
	}
	for i := range current {
		a, b := current[i], next[i]
		if a.ProductID != b.ProductID || a.Description != b.Description || a.Quantity != b.Quantity || !a.Price.Equal(b.Price) {
			return false
		}
	}
	return true
}

// Filter narrows invoice listings.
type Filter struct {
	Status     Status
	Search     string
	IssuedFrom time.Time
	IssuedTo   time.Time
	Page       int
	PerPage    int
}

// FormatNumber renders the human readable invoice identifier.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%03d", year, seq)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var (
	// ErrInvoiceIDRequired indicates a missing invoice identifier.
	ErrInvoiceIDRequired error = &shared.ValidationError{Field: "id", Reason: "is required"}
	// ErrRepositoryNotInitialised is returned by a nil repository.
	ErrRepositoryNotInitialised = errors.New("invoicing: repository not initialised")
)
