package core_test

import (
	"context"
	"testing"
	"time"

	"reseller-ledger/internal/core"
)

func TestProfitReport_ProportionalSplit(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool)
	ctx := context.Background()

	a := stockUnit(t, svc, "910001", "100")
	b := stockUnit(t, svc, "910002", "100")
	sale, err := svc.sales.CreateSale(ctx, core.SaleInput{
		Client: core.ClientRef{Name: "Mourad"},
		Items: []core.SaleItemInput{
			{ProductID: a.ID, Quantity: 1, UnitSalePrice: dec("150")},
			{ProductID: b.ID, Quantity: 1, UnitSalePrice: dec("250")},
		},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	inv, err := svc.invoices.CreateInvoice(ctx, core.InvoiceInput{SaleID: sale.ID})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	if _, err := svc.invoices.RecordPayment(ctx, inv.ID, core.PaymentInput{AmountPaid: dec("360"), NewTotal: ptr(dec("360"))}); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}

	// A cancelled sale must not count.
	c := stockUnit(t, svc, "910003", "100")
	cancelled, err := svc.sales.CreateSale(ctx, core.SaleInput{
		Client: core.ClientRef{Name: "Mourad"},
		Items:  []core.SaleItemInput{{ProductID: c.ID, Quantity: 1, UnitSalePrice: dec("999")}},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	cinv, err := svc.invoices.CreateInvoice(ctx, core.InvoiceInput{SaleID: cancelled.ID})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	if _, err := svc.invoices.CancelInvoice(ctx, cinv.ID, "erreur de saisie"); err != nil {
		t.Fatalf("CancelInvoice failed: %v", err)
	}

	today := time.Now()
	report, err := svc.profit.ProfitReport(ctx, core.ProfitQuery{Day: &today})
	if err != nil {
		t.Fatalf("ProfitReport failed: %v", err)
	}
	if len(report.Lines) != 2 {
		t.Fatalf("expected 2 settled lines, got %d", len(report.Lines))
	}
	assertDecimal(t, "135", report.Lines[0].AllocatedRevenue, "line 1 revenue")
	assertDecimal(t, "35", report.Lines[0].Profit, "line 1 profit")
	assertDecimal(t, "225", report.Lines[1].AllocatedRevenue, "line 2 revenue")
	assertDecimal(t, "125", report.Lines[1].Profit, "line 2 profit")
	assertDecimal(t, "360", report.TotalRevenue, "total revenue")
	assertDecimal(t, "200", report.TotalCost, "total cost")
	assertDecimal(t, "160", report.TotalProfit, "total profit = negotiated - cost")
	if report.Lines[0].InvoiceNumber == nil || *report.Lines[0].InvoiceNumber != inv.Number {
		t.Errorf("expected invoice number on the line")
	}

	paidOnly, err := svc.profit.ProfitReport(ctx, core.ProfitQuery{PaidOnly: true})
	if err != nil {
		t.Fatalf("paid-only ProfitReport failed: %v", err)
	}
	if len(paidOnly.Lines) != 2 {
		t.Errorf("expected the paid invoice lines only, got %d", len(paidOnly.Lines))
	}

	yesterday := today.AddDate(0, 0, -1)
	empty, err := svc.profit.ProfitReport(ctx, core.ProfitQuery{Day: &yesterday})
	if err != nil {
		t.Fatalf("ProfitReport(yesterday) failed: %v", err)
	}
	if len(empty.Lines) != 0 || !empty.TotalProfit.IsZero() {
		t.Errorf("expected an empty report for yesterday, got %d lines", len(empty.Lines))
	}

	days, err := svc.profit.DailyProfit(ctx, core.ProfitQuery{})
	if err != nil {
		t.Fatalf("DailyProfit failed: %v", err)
	}
	if len(days) != 1 || days[0].Lines != 2 {
		t.Fatalf("expected one day with 2 lines, got %+v", days)
	}
	assertDecimal(t, "160", days[0].Profit, "daily profit")
}

func TestProfitReport_UninvoicedSaleUsesSaleTotal(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool)
	ctx := context.Background()

	p := stockUnit(t, svc, "920001", "80")
	if _, err := svc.sales.CreateSale(ctx, core.SaleInput{
		Client: core.ClientRef{Name: "Ines"},
		Items:  []core.SaleItemInput{{ProductID: p.ID, Quantity: 1, UnitSalePrice: dec("110")}},
	}); err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	report, err := svc.profit.ProfitReport(ctx, core.ProfitQuery{})
	if err != nil {
		t.Fatalf("ProfitReport failed: %v", err)
	}
	if len(report.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(report.Lines))
	}
	assertDecimal(t, "30", report.TotalProfit, "profit without invoice")
	assertDecimal(t, "30", report.Lines[0].UnitProfit, "unit profit")
}
