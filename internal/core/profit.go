package core

import (
	"github.com/shopspring/decimal"
)

// AllocateProfit recognizes the share of negotiatedTotal earned by one line:
// negotiatedTotal × itemListValue / sumOfListValues. A sale whose lines list at zero
// recognizes nothing.
func AllocateProfit(negotiatedTotal, itemListValue, sumOfListValues, itemCost decimal.Decimal) (allocated, profit decimal.Decimal) {
	if sumOfListValues.IsZero() {
		return decimal.Zero, itemCost.Neg()
	}
	allocated = negotiatedTotal.Mul(itemListValue).Div(sumOfListValues)
	return allocated, allocated.Sub(itemCost)
}

// LineFigures is the input of LineProfit: one sale line and the sale it belongs to.
type LineFigures struct {
	Status          ItemStatus
	Quantity        int
	UnitCostPrice   decimal.Decimal
	UnitSalePrice   decimal.Decimal
	Refunded        decimal.Decimal
	NegotiatedTotal decimal.Decimal
	SumOfListValues decimal.Decimal
}

// LineResult is the recognized revenue, cost and profit of one line.
type LineResult struct {
	AllocatedRevenue decimal.Decimal `json:"allocated_revenue"`
	Cost             decimal.Decimal `json:"cost"`
	Profit           decimal.Decimal `json:"profit"`
	UnitProfit       decimal.Decimal `json:"unit_profit"`
}

// LineProfit applies the status rules on top of AllocateProfit.
// Cancelled lines earn nothing and carry their cost as a loss.
// Returned lines lose their refund on top of the allocated profit.
func LineProfit(f LineFigures) LineResult {
	qty := decimal.NewFromInt(int64(f.Quantity))
	cost := f.UnitCostPrice.Mul(qty)

	if f.Status == ItemCancelled {
		r := LineResult{AllocatedRevenue: decimal.Zero, Cost: cost, Profit: cost.Neg()}
		r.UnitProfit = f.UnitCostPrice.Neg()
		return r
	}

	allocated, profit := AllocateProfit(f.NegotiatedTotal, f.UnitSalePrice.Mul(qty), f.SumOfListValues, cost)
	if f.Status == ItemReturned {
		profit = profit.Sub(f.Refunded)
	}

	r := LineResult{AllocatedRevenue: allocated, Cost: cost, Profit: profit}
	if f.Quantity > 0 {
		r.UnitProfit = profit.Div(qty)
	}
	return r
}
