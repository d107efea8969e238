package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAllocateProfit(t *testing.T) {
	// Negotiated 900 on a 1000 list: the 600 line earns 540.
	allocated, profit := AllocateProfit(d("900"), d("600"), d("1000"), d("450"))
	assert.True(t, allocated.Equal(d("540")), "allocated = %s", allocated)
	assert.True(t, profit.Equal(d("90")), "profit = %s", profit)
}

func TestAllocateProfit_ZeroListValue(t *testing.T) {
	allocated, profit := AllocateProfit(d("100"), decimal.Zero, decimal.Zero, d("30"))
	assert.True(t, allocated.IsZero())
	assert.True(t, profit.Equal(d("-30")))
}

func TestAllocateProfit_SharesSumToNegotiatedTotal(t *testing.T) {
	lines := []decimal.Decimal{d("250"), d("125.50"), d("624.50")}
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l)
	}
	negotiated := d("950")

	total := decimal.Zero
	for _, l := range lines {
		allocated, _ := AllocateProfit(negotiated, l, sum, decimal.Zero)
		total = total.Add(allocated)
	}
	assert.True(t, total.Round(2).Equal(negotiated), "allocations sum to %s", total)
}

func TestLineProfit(t *testing.T) {
	base := LineFigures{
		Quantity:        2,
		UnitCostPrice:   d("100"),
		UnitSalePrice:   d("150"),
		NegotiatedTotal: d("300"),
		SumOfListValues: d("300"),
	}

	t.Run("active", func(t *testing.T) {
		f := base
		f.Status = ItemActive
		r := LineProfit(f)
		assert.True(t, r.AllocatedRevenue.Equal(d("300")))
		assert.True(t, r.Cost.Equal(d("200")))
		assert.True(t, r.Profit.Equal(d("100")))
		assert.True(t, r.UnitProfit.Equal(d("50")))
	})

	t.Run("cancelled carries its cost", func(t *testing.T) {
		f := base
		f.Status = ItemCancelled
		r := LineProfit(f)
		assert.True(t, r.AllocatedRevenue.IsZero())
		assert.True(t, r.Profit.Equal(d("-200")))
		assert.True(t, r.UnitProfit.Equal(d("-100")))
	})

	t.Run("returned loses the refund", func(t *testing.T) {
		f := base
		f.Status = ItemReturned
		f.Refunded = d("120")
		r := LineProfit(f)
		assert.True(t, r.Profit.Equal(d("-20")), "profit = %s", r.Profit)
	})
}
