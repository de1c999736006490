package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceapp/invoiceapp/internal/shared"
)

func TestNewLedgerEntryDerivesType(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	in, err := NewLedgerEntry("e1", "p1", 0, 10, Reason{ReferenceType: ReferenceManual}, at)
	require.NoError(t, err)
	assert.Equal(t, MovementIn, in.Type)
	assert.EqualValues(t, 10, in.Quantity)

	out, err := NewLedgerEntry("e2", "p1", 10, 6, Reason{ReferenceType: ReferenceInvoice, Reference: "INV-2025-001"}, at)
	require.NoError(t, err)
	assert.Equal(t, MovementOut, out.Type)
	assert.EqualValues(t, 4, out.Quantity)
	assert.EqualValues(t, -4, out.Delta())

	adj, err := NewLedgerEntry("e3", "p1", 6, 2, Reason{ReferenceType: ReferenceAdjustment}, at)
	require.NoError(t, err)
	assert.Equal(t, MovementAdjustment, adj.Type)
	assert.EqualValues(t, 4, adj.Quantity)
}

func TestLedgerEntryValidate(t *testing.T) {
	valid := LedgerEntry{ID: "e", ProductID: "p", Type: MovementIn, Quantity: 3, StockBefore: 1, StockAfter: 4, ReferenceType: ReferenceManual}
	require.NoError(t, valid.Validate())

	cases := map[string]func(e *LedgerEntry){
		"zero quantity":     func(e *LedgerEntry) { e.Quantity = 0 },
		"inconsistent in":   func(e *LedgerEntry) { e.StockAfter = 5 },
		"out going up":      func(e *LedgerEntry) { e.Type = MovementOut },
		"unknown type":      func(e *LedgerEntry) { e.Type = "MOVE" },
		"unknown reference": func(e *LedgerEntry) { e.ReferenceType = "gift" },
		"negative after":    func(e *LedgerEntry) { e.Type = MovementOut; e.StockBefore = 1; e.StockAfter = -2 },
		"missing product":   func(e *LedgerEntry) { e.ProductID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			e := valid
			mutate(&e)
			err := e.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestNewLedgerEntryRejectsNoMovement(t *testing.T) {
	_, err := NewLedgerEntry("e", "p", 5, 5, Reason{ReferenceType: ReferenceManual}, time.Now())
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReplay(t *testing.T) {
	entries := []LedgerEntry{
		{StockBefore: 0, StockAfter: 10},
		{StockBefore: 10, StockAfter: 6},
		{StockBefore: 6, StockAfter: 9},
	}
	stock, broken := Replay(entries)
	assert.EqualValues(t, 9, stock)
	assert.False(t, broken)

	entries[2].StockBefore = 7
	entries[2].StockAfter = 10
	stock, broken = Replay(entries)
	assert.EqualValues(t, 9, stock)
	assert.True(t, broken)

	stock, broken = Replay(nil)
	assert.Zero(t, stock)
	assert.False(t, broken)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLedgerLimit, clampLimit(0))
	assert.Equal(t, DefaultLedgerLimit, clampLimit(-5))
	assert.Equal(t, 25, clampLimit(25))
	assert.Equal(t, MaxLedgerLimit, clampLimit(MaxLedgerLimit+1))
}
