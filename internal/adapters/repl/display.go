package repl

import (
	"fmt"
	"io"
	"strings"

	"reseller-ledger/internal/ai"
	"reseller-ledger/internal/app"
	"reseller-ledger/internal/core"
)

func opt(p *string) string {
	if p == nil {
		return "-"
	}
	return *p
}

func header(w io.Writer, width int, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", width))
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, strings.Repeat("=", width))
}

func printStockSummary(w io.Writer, rows []core.StockSummaryRow) {
	header(w, 78, "STOCK SUMMARY")
	if len(rows) == 0 {
		fmt.Fprintln(w, "  No active stock.")
		return
	}
	fmt.Fprintf(w, "  %-12s %-22s %-8s %-10s %-10s %6s %6s\n", "BRAND", "MODEL", "STORAGE", "TYPE", "CARTON", "QTY", "UNITS")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	total := 0
	for _, r := range rows {
		fmt.Fprintf(w, "  %-12s %-22s %-8s %-10s %-10s %6d %6d\n",
			r.Brand, r.Model, opt(r.Storage), opt(r.Type), opt(r.CartonType), r.Quantity, r.Units)
		total += r.Quantity
	}
	fmt.Fprintln(w, strings.Repeat("-", 78))
	fmt.Fprintf(w, "  %-67s %6d\n", "TOTAL", total)
}

func printProducts(w io.Writer, products []core.Product) {
	header(w, 86, "PRODUCTS")
	if len(products) == 0 {
		fmt.Fprintln(w, "  No products found.")
		return
	}
	fmt.Fprintf(w, "  %-5s %-10s %-20s %-8s %-14s %10s %10s %4s  %s\n",
		"ID", "BRAND", "MODEL", "STORAGE", "SERIAL", "COST", "PRICE", "QTY", "STATUS")
	fmt.Fprintln(w, strings.Repeat("-", 86))
	for _, p := range products {
		fmt.Fprintf(w, "  %-5d %-10s %-20s %-8s %-14s %10s %10s %4d  %s\n",
			p.ID, p.Brand, p.Model, opt(p.Storage), p.Serial,
			p.CostPrice.StringFixed(2), p.SalePrice.StringFixed(2), p.Quantity, p.Status)
	}
}

func printSale(w io.Writer, s *core.Sale) {
	fmt.Fprintf(w, "\nSale #%d  client: %s  date: %s\n", s.ID, s.ClientName, s.Date.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "Total: %s  Paid: %s  Status: %s\n", s.TotalAmount.StringFixed(2), s.PaidAmount.StringFixed(2), s.PaymentStatus)
	for _, it := range s.Items {
		printItem(w, it)
	}
}

func printItem(w io.Writer, it core.SaleItem) {
	fmt.Fprintf(w, "  [%d] %s %s %s  serial %s  %d x %s  (%s)\n",
		it.ID, it.Brand, it.Model, opt(it.Storage), it.Serial, it.QuantitySold, it.UnitSalePrice.StringFixed(2), it.Status)
}

func printInvoice(w io.Writer, inv *core.Invoice) {
	fmt.Fprintf(w, "\nInvoice %s (#%d)  client: %s  sale #%d\n", inv.Number, inv.ID, inv.ClientName, inv.SaleID)
	fmt.Fprintf(w, "Original: %s  Due: %s  Paid: %s  Refunded: %s  Status: %s\n",
		inv.OriginalAmount.StringFixed(2), inv.AmountDue.StringFixed(2), inv.AmountPaid.StringFixed(2),
		inv.AmountRefunded.StringFixed(2), inv.Status)
	if inv.CancellationReason != nil {
		fmt.Fprintf(w, "Cancelled: %s\n", *inv.CancellationReason)
	}
	for _, it := range inv.Items {
		printItem(w, it)
	}
}

func printReturns(w io.Writer, returns []core.Return) {
	header(w, 78, "RETURNS")
	if len(returns) == 0 {
		fmt.Fprintln(w, "  No returns.")
		return
	}
	for _, r := range returns {
		fmt.Fprintf(w, "  #%-4d %s  %-10s %-18s serial %-14s refund %10s  %s\n",
			r.ID, r.Date.Format("2006-01-02"), r.Brand, r.Model, r.Serial, r.RefundedAmount.StringFixed(2), r.Status)
	}
}

func printReplacements(w io.Writer, reqs []core.ReplacementRequest) {
	header(w, 78, "REPLACEMENT REQUESTS")
	if len(reqs) == 0 {
		fmt.Fprintln(w, "  No replacement requests.")
		return
	}
	for _, r := range reqs {
		fmt.Fprintf(w, "  #%-4d return #%-4d %-10s %-18s serial %-14s sent %s  %s\n",
			r.ID, r.ReturnID, r.Brand, r.Model, r.Serial, r.SentAt.Format("2006-01-02"), r.Resolution)
	}
}

func printBatch(w io.Writer, res *core.BatchResult) {
	fmt.Fprintf(w, "%d succeeded, %d failed\n", len(res.Succeeded), len(res.Failed))
	for _, f := range res.Failed {
		fmt.Fprintf(w, "  %s: %s (%s)\n", f.Key, f.Error, f.Code)
	}
}

func printProfit(w io.Writer, report *core.ProfitReport) {
	header(w, 86, "PROFIT")
	if len(report.Lines) == 0 {
		fmt.Fprintln(w, "  No settled sales in range.")
		return
	}
	fmt.Fprintf(w, "  %-10s %-12s %-14s %-18s %-9s %10s %10s %10s\n",
		"DATE", "INVOICE", "CLIENT", "MODEL", "STATUS", "REVENUE", "COST", "PROFIT")
	fmt.Fprintln(w, strings.Repeat("-", 86))
	for _, l := range report.Lines {
		fmt.Fprintf(w, "  %-10s %-12s %-14s %-18s %-9s %10s %10s %10s\n",
			l.SaleDate.Format("2006-01-02"), opt(l.InvoiceNumber), l.ClientName, l.Model, l.Status,
			l.AllocatedRevenue.StringFixed(2), l.Cost.StringFixed(2), l.Profit.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("-", 86))
	fmt.Fprintf(w, "  %-52s %10s %10s %10s\n", "TOTAL",
		report.TotalRevenue.StringFixed(2), report.TotalCost.StringFixed(2), report.TotalProfit.StringFixed(2))
}

// printParties lists clients; suppliers share the row shape and convert.
func printParties(w io.Writer, title string, parties []core.Client) {
	header(w, 60, title)
	if len(parties) == 0 {
		fmt.Fprintln(w, "  None.")
		return
	}
	for _, p := range parties {
		fmt.Fprintf(w, "  %-5d %-28s %s\n", p.ID, p.Name, opt(p.Phone))
	}
}

func printDraft(w io.Writer, res *app.IntakeResult) {
	d := res.Draft
	fmt.Fprintf(w, "\nSUPPLIER:   %s", d.SupplierName)
	if res.SupplierID != nil {
		fmt.Fprintf(w, " (#%d)", *res.SupplierID)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "REASONING:  %s\n", d.Reasoning)
	fmt.Fprintf(w, "CONFIDENCE: %.2f\n", d.Confidence)
	fmt.Fprintln(w, "LINES:")
	for _, l := range d.Lines {
		printDraftLine(w, l)
	}
}

func printDraftLine(w io.Writer, l ai.DraftLine) {
	sale := l.SalePrice
	if sale == "" {
		sale = "default"
	}
	fmt.Fprintf(w, "  %d x %s %s %s  serial %q  cost %s  sale %s\n",
		l.Quantity, l.Brand, l.Model, l.Storage, l.Serial, l.CostPrice, sale)
}
