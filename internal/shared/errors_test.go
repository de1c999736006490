package shared

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	wrapped := fmt.Errorf("inventory: adjust: %w", &InsufficientStockError{ProductID: "p1", Available: 3, Requested: 4})
	require.ErrorIs(t, wrapped, ErrInsufficientStock)
	require.NotErrorIs(t, wrapped, ErrValidation)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(wrapped, &stockErr))
	assert.Equal(t, int64(3), stockErr.Available)

	require.ErrorIs(t, NewNotFoundError("product", "p1"), ErrNotFound)
	require.ErrorIs(t, NewValidationError("quantity", "must be positive"), ErrValidation)
	require.ErrorIs(t, &InvalidTransitionError{InvoiceID: "INV-2025-001", From: "paid", Action: "mark paid"}, ErrInvalidTransition)
}

type sampleInput struct {
	Email string `json:"clientEmail" validate:"required,email"`
	Items []struct {
		Qty int64 `json:"qty" validate:"gt=0"`
	} `json:"items" validate:"required,min=1,dive"`
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(sampleInput{Email: "nope"})
	require.ErrorIs(t, err, ErrValidation)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "clientEmail", vErr.Field)
	assert.Equal(t, "must be a valid email", vErr.Reason)

	input := sampleInput{Email: "a@b.co"}
	input.Items = append(input.Items, struct {
		Qty int64 `json:"qty" validate:"gt=0"`
	}{Qty: 0})
	err = ValidateStruct(input)
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "items[0].qty", vErr.Field)
}

func TestPaginationOffset(t *testing.T) {
	p := NewPagination(3, 10, 41)
	assert.Equal(t, 5, p.TotalPages)
	assert.Equal(t, 20, p.Offset())

	p = NewPagination(0, 0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PerPage)
	assert.Equal(t, 0, p.Offset())
}

func TestFormatRupiah(t *testing.T) {
	out := FormatRupiah(decimal.NewFromInt(1500000))
	assert.True(t, strings.Contains(out, "Rp") || strings.Contains(out, "IDR"), out)
	assert.NotEqual(t, out, FormatRupiah(decimal.NewFromInt(2500000)))
}
