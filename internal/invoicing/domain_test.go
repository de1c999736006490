package invoicing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceapp/invoiceapp/internal/shared"
)

func validInput() InvoiceInput {
	return InvoiceInput{
		ClientName:  "CV Sinar",
		ClientEmail: "finance@sinar.id",
		IssueDate:   "2025-06-10",
		DueDate:     "2025-07-10",
		TaxRate:     decimal.NewFromInt(11),
		Items: []ItemInput{
			{Description: "Paper A4", Quantity: 3, Price: decimal.RequireFromString("45000")},
			{Description: "Toner", Quantity: 1, Price: decimal.RequireFromString("310000.50")},
		},
	}
}

func TestNewInvoiceTotals(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	inv, err := NewInvoice("INV-2025-001", validInput(), now)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, inv.Status)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, 1, inv.Items[0].Line)
	assert.Equal(t, 2, inv.Items[1].Line)
	assert.Equal(t, "445000.5", inv.Subtotal().String())
	assert.Equal(t, "48950.06", inv.Tax().String())
	assert.Equal(t, "493950.56", inv.Total().String())
	assert.EqualValues(t, 4, inv.ItemsSold())
	assert.False(t, inv.HasDeductedItems())
}

func TestNewInvoiceValidation(t *testing.T) {
	now := time.Now()
	cases := map[string]func(in *InvoiceInput){
		"missing client":  func(in *InvoiceInput) { in.ClientName = " " },
		"bad email":       func(in *InvoiceInput) { in.ClientEmail = "nope" },
		"no items":        func(in *InvoiceInput) { in.Items = nil },
		"zero quantity":   func(in *InvoiceInput) { in.Items[0].Quantity = 0 },
		"negative price":  func(in *InvoiceInput) { in.Items[1].Price = decimal.NewFromInt(-1) },
		"bad product id":  func(in *InvoiceInput) { in.Items[0].ProductID = "abc" },
		"bad issue date":  func(in *InvoiceInput) { in.IssueDate = "10/06/2025" },
		"due before":      func(in *InvoiceInput) { in.DueDate = "2025-06-01" },
		"tax over 100":    func(in *InvoiceInput) { in.TaxRate = decimal.NewFromInt(101) },
		"unknown status":  func(in *InvoiceInput) { in.Status = "void" },
		"paid on create":  func(in *InvoiceInput) { in.Status = StatusPaid },
		"blank line desc": func(in *InvoiceInput) { in.Items[0].Description = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			in.Items = append([]ItemInput(nil), in.Items...)
			mutate(&in)
			_, err := NewInvoice("", in, now)
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestApplyUpdateKeepsDeductedItems(t *testing.T) {
	now := time.Now()
	in := validInput()
	in.Items[0].ProductID = "0d6f2c1e-8a6a-4d36-9a53-1c1f5b0f2a11"
	inv, err := NewInvoice("INV-2025-004", in, now)
	require.NoError(t, err)
	inv.Items[0].StockDeducted = true
	inv.Status = StatusPaid

	edit := in
	edit.ClientName = "CV Sinar Abadi"
	updated, err := inv.ApplyUpdate(edit, now)
	require.NoError(t, err)
	assert.Equal(t, "CV Sinar Abadi", updated.ClientName)
	assert.True(t, updated.Items[0].StockDeducted)
	assert.Equal(t, StatusPaid, updated.Status)

	edit.Items = append([]ItemInput(nil), in.Items...)
	edit.Items[0].Quantity = 10
	_, err = inv.ApplyUpdate(edit, now)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestCheckTransition(t *testing.T) {
	pending := Invoice{ID: "INV-1", Status: StatusPending}
	overdue := Invoice{ID: "INV-2", Status: StatusOverdue}
	paid := Invoice{ID: "INV-3", Status: StatusPaid}

	assert.NoError(t, CheckTransition(pending, MarkPaid{}))
	assert.NoError(t, CheckTransition(overdue, MarkPaid{}))
	assert.ErrorIs(t, CheckTransition(paid, MarkPaid{}), shared.ErrInvalidTransition)

	for _, inv := range []Invoice{pending, overdue, paid} {
		assert.NoError(t, CheckTransition(inv, Cancel{}))
		assert.NoError(t, CheckTransition(inv, SetStatus{Status: StatusOverdue}))
	}
	assert.ErrorIs(t, CheckTransition(pending, SetStatus{Status: "draft"}), shared.ErrValidation)
	assert.ErrorIs(t, CheckTransition(pending, nil), shared.ErrValidation)
}

func TestWithStatusMaintainsPaidAt(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	inv := Invoice{Status: StatusPending}

	paid := inv.withStatus(StatusPaid, now)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, now, *paid.PaidAt)

	again := paid.withStatus(StatusPaid, now.Add(time.Hour))
	assert.Equal(t, now, *again.PaidAt)

	back := paid.withStatus(StatusPending, now)
	assert.Nil(t, back.PaidAt)
}

func TestLockOrder(t *testing.T) {
	items := []Item{
		{Line: 1, ProductID: "b"},
		{Line: 2},
		{Line: 3, ProductID: "a"},
		{Line: 4, ProductID: "b", StockDeducted: true},
		{Line: 5, ProductID: "a"},
	}
	assert.Equal(t, []int{2, 4, 0}, lockOrder(items, false))
	assert.Equal(t, []int{3}, lockOrder(items, true))
}

func TestIsOverdueAt(t *testing.T) {
	inv := Invoice{Status: StatusPending, DueDate: time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)}
	assert.False(t, inv.IsOverdueAt(time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)))
	assert.True(t, inv.IsOverdueAt(time.Date(2025, 4, 1, 0, 0, 1, 0, time.UTC)))

	inv.Status = StatusPaid
	assert.False(t, inv.IsOverdueAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestInvoiceJSON(t *testing.T) {
	inv, err := NewInvoice("INV-2025-007", validInput(), time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	raw, err := json.Marshal(inv)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "INV-2025-007", decoded["id"])
	assert.Equal(t, "2025-06-10", decoded["dateIssued"])
	assert.Equal(t, "2025-07-10", decoded["dueDate"])
	assert.Equal(t, "493950.56", decoded["total"])
	assert.NotEmpty(t, decoded["formattedTotal"])
	items := decoded["items"].([]any)
	first := items[0].(map[string]any)
	assert.Equal(t, "Paper A4", first["desc"])
	assert.EqualValues(t, 3, first["qty"])
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "INV-2025-001", FormatNumber(2025, 1))
	assert.Equal(t, "INV-2025-1234", FormatNumber(2025, 1234))
}
