package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDerivePaymentStatus(t *testing.T) {
	tests := []struct {
		name        string
		total, paid string
		want        PaymentStatus
	}{
		{"nothing paid", "100", "0", PaymentPending},
		{"part paid", "100", "40", PaymentPartial},
		{"exactly paid", "100", "100", PaymentPaid},
		{"over paid", "100", "120", PaymentPaid},
		{"free sale", "0", "0", PaymentPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePaymentStatus(d(tt.total), d(tt.paid)))
		})
	}
}

func TestPaymentStatusAfterReturn(t *testing.T) {
	assert.Equal(t, PaymentCancelled, PaymentStatusAfterReturn(decimal.Zero, decimal.Zero))
	assert.Equal(t, PaymentPartial, PaymentStatusAfterReturn(d("200"), d("50")))
	assert.Equal(t, PaymentPaid, PaymentStatusAfterReturn(d("200"), d("200")))
}

func TestItemStatus_CanTransition(t *testing.T) {
	assert.True(t, ItemActive.CanTransition(ItemCancelled))
	assert.True(t, ItemActive.CanTransition(ItemReturned))
	assert.False(t, ItemActive.CanTransition(ItemActive))
	assert.False(t, ItemReturned.CanTransition(ItemCancelled))
	assert.False(t, ItemCancelled.CanTransition(ItemReturned))
}

func TestInvoiceStatusTransitions(t *testing.T) {
	assert.Equal(t, InvoicePaid, InvoiceStatusFromSale(PaymentPaid))
	assert.Equal(t, InvoicePartial, InvoiceStatusFromSale(PaymentPartial))
	assert.Equal(t, InvoiceCreated, InvoiceStatusFromSale(PaymentPending))

	assert.Equal(t, InvoicePaid, InvoiceStatusAfterPayment(decimal.Zero, d("500")))
	assert.Equal(t, InvoicePartial, InvoiceStatusAfterPayment(d("100"), d("400")))
	assert.Equal(t, InvoiceCreated, InvoiceStatusAfterPayment(d("500"), decimal.Zero))

	assert.Equal(t, InvoiceFullReturn, InvoiceStatusAfterReturn(0))
	assert.Equal(t, InvoicePartialReturn, InvoiceStatusAfterReturn(2))

	assert.True(t, InvoiceCancelled.IsTerminal())
	assert.True(t, InvoiceFullReturn.IsTerminal())
	assert.False(t, InvoicePartialReturn.IsTerminal())
}

func TestParseResolution(t *testing.T) {
	r, ok := ParseResolution(" repaired ")
	assert.True(t, ok)
	assert.Equal(t, ResolutionRepaired, r)

	r, ok = ParseResolution("Replaced")
	assert.True(t, ok)
	assert.Equal(t, ResolutionReplaced, r)

	_, ok = ParseResolution("PENDING")
	assert.False(t, ok, "pending is not a resolution")
	_, ok = ParseResolution("lost")
	assert.False(t, ok)
}
