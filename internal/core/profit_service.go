package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ProfitService reports profit from settled sales. Read-only.
type ProfitService interface {
	ProfitReport(ctx context.Context, q ProfitQuery) (*ProfitReport, error)
	DailyProfit(ctx context.Context, q ProfitQuery) ([]DailyProfit, error)
}

// ProfitQuery selects the sales a report covers. Day wins over From/To.
type ProfitQuery struct {
	Day              *time.Time
	From, To         *time.Time
	PaidOnly         bool // only invoices in the paid state
	IncludeCancelled bool // list cancelled lines and count their cost
}

// bounds returns the half-open [from, to) range of the query.
func (q ProfitQuery) bounds() (from, to *time.Time) {
	if q.Day != nil {
		start := time.Date(q.Day.Year(), q.Day.Month(), q.Day.Day(), 0, 0, 0, 0, q.Day.Location())
		end := start.AddDate(0, 0, 1)
		return &start, &end
	}
	return q.From, q.To
}

// ProfitLine is one sale line with its recognized figures.
type ProfitLine struct {
	SaleID        int       `json:"sale_id"`
	SaleItemID    int       `json:"sale_item_id"`
	SaleDate      time.Time `json:"sale_date"`
	InvoiceNumber *string   `json:"invoice_number,omitempty"`
	ClientName    string    `json:"client_name"`
	UnitIdentity
	Status          ItemStatus      `json:"status"`
	Quantity        int             `json:"quantity"`
	UnitCostPrice   decimal.Decimal `json:"unit_cost_price"`
	UnitSalePrice   decimal.Decimal `json:"unit_sale_price"`
	Refunded        decimal.Decimal `json:"refunded"`
	NegotiatedTotal decimal.Decimal `json:"negotiated_total"`
	LineResult
}

// ProfitReport is the line listing and its aggregate.
type ProfitReport struct {
	Lines        []ProfitLine    `json:"lines"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
}

// DailyProfit aggregates one calendar day of a report.
type DailyProfit struct {
	Day     string          `json:"day"` // YYYY-MM-DD
	Lines   int             `json:"lines"`
	Revenue decimal.Decimal `json:"revenue"`
	Cost    decimal.Decimal `json:"cost"`
	Profit  decimal.Decimal `json:"profit"`
}

type profitService struct {
	pool *pgxpool.Pool
}

func NewProfitService(pool *pgxpool.Pool) ProfitService {
	return &profitService{pool: pool}
}

func (s *profitService) ProfitReport(ctx context.Context, q ProfitQuery) (*ProfitReport, error) {
	from, to := q.bounds()

	// Settled sales: the sale is not cancelled and its invoice, if any, is neither
	// cancelled nor fully returned. The negotiated total is the invoice amount when
	// one exists.
	rows, err := s.pool.Query(ctx, `
		SELECT v.id, vi.id, v.date_vente, f.numero_facture, c.nom,
		       vi.marque, vi.modele, vi.stockage, vi.type, vi.type_carton, vi.imei,
		       vi.statut_vente, vi.quantite_vendue, vi.prix_unitaire_achat, vi.prix_unitaire_vente,
		       vi.montant_rembourse,
		       COALESCE(f.montant_original_facture, v.montant_total),
		       (SELECT COALESCE(SUM(s.prix_unitaire_vente * s.quantite_vendue), 0)
		        FROM vente_items s WHERE s.vente_id = v.id)
		FROM vente_items vi
		JOIN ventes v  ON v.id = vi.vente_id
		JOIN clients c ON c.id = v.client_id
		LEFT JOIN factures f ON f.vente_id = v.id
		WHERE v.statut_paiement <> 'cancelled'
		  AND (f.id IS NULL OR f.statut_facture NOT IN ('cancelled', 'full_return'))
		  AND ($1::timestamptz IS NULL OR v.date_vente >= $1)
		  AND ($2::timestamptz IS NULL OR v.date_vente <  $2)
		  AND (NOT $3::boolean OR f.statut_facture = 'paid')
		  AND ($4::boolean OR vi.statut_vente <> 'cancelled')
		ORDER BY v.date_vente, vi.id
	`, from, to, q.PaidOnly, q.IncludeCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to query profit lines: %w", err)
	}
	defer rows.Close()

	report := &ProfitReport{Lines: []ProfitLine{}}
	for rows.Next() {
		var l ProfitLine
		var sumOfListValues decimal.Decimal
		if err := rows.Scan(
			&l.SaleID, &l.SaleItemID, &l.SaleDate, &l.InvoiceNumber, &l.ClientName,
			&l.Brand, &l.Model, &l.Storage, &l.Type, &l.CartonType, &l.Serial,
			&l.Status, &l.Quantity, &l.UnitCostPrice, &l.UnitSalePrice,
			&l.Refunded, &l.NegotiatedTotal, &sumOfListValues,
		); err != nil {
			return nil, fmt.Errorf("failed to scan profit line: %w", err)
		}

		l.LineResult = LineProfit(LineFigures{
			Status:          l.Status,
			Quantity:        l.Quantity,
			UnitCostPrice:   l.UnitCostPrice,
			UnitSalePrice:   l.UnitSalePrice,
			Refunded:        l.Refunded,
			NegotiatedTotal: l.NegotiatedTotal,
			SumOfListValues: sumOfListValues,
		})
		report.Lines = append(report.Lines, l)
		report.TotalRevenue = report.TotalRevenue.Add(l.AllocatedRevenue)
		report.TotalCost = report.TotalCost.Add(l.Cost)
		report.TotalProfit = report.TotalProfit.Add(l.Profit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read profit lines: %w", err)
	}
	return report, nil
}

func (s *profitService) DailyProfit(ctx context.Context, q ProfitQuery) ([]DailyProfit, error) {
	report, err := s.ProfitReport(ctx, q)
	if err != nil {
		return nil, err
	}

	byDay := map[string]*DailyProfit{}
	for _, l := range report.Lines {
		day := l.SaleDate.Format("2006-01-02")
		d, ok := byDay[day]
		if !ok {
			d = &DailyProfit{Day: day}
			byDay[day] = d
		}
		d.Lines++
		d.Revenue = d.Revenue.Add(l.AllocatedRevenue)
		d.Cost = d.Cost.Add(l.Cost)
		d.Profit = d.Profit.Add(l.Profit)
	}

	days := make([]DailyProfit, 0, len(byDay))
	for _, d := range byDay {
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return days, nil
}
