package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ProductStatus is the availability of a product row.
type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

func (s ProductStatus) Valid() bool {
	return s == ProductActive || s == ProductInactive
}

// SettlementKind tells whether a purchase fed stock or was consumed by a direct sale.
type SettlementKind string

const (
	SettlementStock      SettlementKind = "stock"
	SettlementDirectSale SettlementKind = "direct_sale"
)

// PaymentStatus is the payment state of a sale.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPartial   PaymentStatus = "partial"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
)

// DerivePaymentStatus compares what was paid against what is owed.
func DerivePaymentStatus(total, paid decimal.Decimal) PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return PaymentPaid
	case paid.IsPositive():
		return PaymentPartial
	default:
		return PaymentPending
	}
}

// PaymentStatusAfterReturn is the sale status once returned items have been
// taken out of its total. A sale with nothing left to pay for is cancelled.
func PaymentStatusAfterReturn(remainingTotal, paid decimal.Decimal) PaymentStatus {
	if remainingTotal.IsZero() {
		return PaymentCancelled
	}
	return DerivePaymentStatus(remainingTotal, paid)
}

// ItemStatus is the lifecycle state of one sale line.
type ItemStatus string

const (
	ItemActive    ItemStatus = "active"
	ItemCancelled ItemStatus = "cancelled"
	ItemReturned  ItemStatus = "returned"
)

// CanTransition reports whether a line may move from s to next.
// Only active lines move, and only to cancelled or returned.
func (s ItemStatus) CanTransition(next ItemStatus) bool {
	return s == ItemActive && (next == ItemCancelled || next == ItemReturned)
}

// InvoiceStatus is the state of an invoice.
//
//	created → {partial, paid} → {cancelled, partial_return, full_return}
//
// cancelled and full_return are terminal.
type InvoiceStatus string

const (
	InvoiceCreated       InvoiceStatus = "created"
	InvoicePartial       InvoiceStatus = "partial"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceCancelled     InvoiceStatus = "cancelled"
	InvoicePartialReturn InvoiceStatus = "partial_return"
	InvoiceFullReturn    InvoiceStatus = "full_return"
)

func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceCancelled || s == InvoiceFullReturn
}

// InvoiceStatusFromSale maps the sale's payment status onto a fresh invoice.
func InvoiceStatusFromSale(p PaymentStatus) InvoiceStatus {
	switch p {
	case PaymentPaid:
		return InvoicePaid
	case PaymentPartial:
		return InvoicePartial
	default:
		return InvoiceCreated
	}
}

// InvoiceStatusAfterPayment is the status once due and paid have been recomputed.
func InvoiceStatusAfterPayment(due, paid decimal.Decimal) InvoiceStatus {
	switch {
	case !due.IsPositive():
		return InvoicePaid
	case paid.IsPositive():
		return InvoicePartial
	default:
		return InvoiceCreated
	}
}

// InvoiceStatusAfterReturn: full_return once no line of the sale is active.
func InvoiceStatusAfterReturn(activeItemsLeft int) InvoiceStatus {
	if activeItemsLeft == 0 {
		return InvoiceFullReturn
	}
	return InvoicePartialReturn
}

// ReturnStatus is the state of a customer return.
type ReturnStatus string

const (
	ReturnReturned       ReturnStatus = "returned"
	ReturnSentToSupplier ReturnStatus = "sent_to_supplier"
)

// Resolution is the outcome of a supplier round-trip. Stored upper-case.
type Resolution string

const (
	ResolutionPending  Resolution = "PENDING"
	ResolutionRepaired Resolution = "REPAIRED"
	ResolutionReplaced Resolution = "REPLACED"
)

// ParseResolution accepts the two terminal outcomes in any case.
func ParseResolution(s string) (Resolution, bool) {
	switch Resolution(strings.ToUpper(strings.TrimSpace(s))) {
	case ResolutionRepaired:
		return ResolutionRepaired, true
	case ResolutionReplaced:
		return ResolutionReplaced, true
	}
	return "", false
}
