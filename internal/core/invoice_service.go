package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceService governs invoices and is the only writer of a sale's totals after creation.
//
//	created → {partial, paid} → {cancelled, partial_return, full_return}
//
// cancelled and full_return are terminal.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, in InvoiceInput) (*Invoice, error)
	// RecordPayment sets the paid amount and optionally renegotiates the total.
	RecordPayment(ctx context.Context, invoiceID int, in PaymentInput) (*Invoice, error)
	// CancelInvoice zeroes the invoice and its sale and restocks every active line.
	CancelInvoice(ctx context.Context, invoiceID int, reason string) (*Invoice, error)
	// ReturnItem takes one line back, restocks it and refunds up to its unit sale price.
	// A refund larger than the amount currently paid on the invoice is also a ValidationError.
	ReturnItem(ctx context.Context, in ReturnItemInput) (*ReturnItemResult, error)
	GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)

	// TX-scoped operations: work within a caller-provided transaction.
	GenerateInvoiceNumberTx(ctx context.Context, tx pgx.Tx) (string, error)
	CreateInvoiceTx(ctx context.Context, tx pgx.Tx, in InvoiceInput) (*Invoice, error)
	RecordPaymentTx(ctx context.Context, tx pgx.Tx, invoiceID int, in PaymentInput) (*Invoice, error)
	CancelInvoiceTx(ctx context.Context, tx pgx.Tx, invoiceID int, reason string) (*Invoice, error)
	ReturnItemTx(ctx context.Context, tx pgx.Tx, in ReturnItemInput) (*ReturnItemResult, error)
}

// InvoiceInput derives an invoice from a sale.
type InvoiceInput struct {
	SaleID      int     `json:"sale_id" jsonschema:"minimum=1"`
	Observation *string `json:"observation,omitempty"`
}

// PaymentInput is the new cumulative paid amount. NewTotal renegotiates the invoice total.
type PaymentInput struct {
	AmountPaid decimal.Decimal  `json:"amount_paid"`
	NewTotal   *decimal.Decimal `json:"new_total,omitempty"`
}

// ReturnItemInput takes one sale line of an invoice back.
type ReturnItemInput struct {
	InvoiceID    int             `json:"invoice_id" jsonschema:"minimum=1"`
	SaleItemID   int             `json:"sale_item_id" jsonschema:"minimum=1"`
	Reason       string          `json:"reason" jsonschema:"minLength=1"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

// ReturnItemResult is the updated invoice and the return row opened for the line.
type ReturnItemResult struct {
	Invoice Invoice `json:"invoice"`
	Return  Return  `json:"return"`
}

// InvoiceFilter narrows ListInvoices. Zero values match everything.
type InvoiceFilter struct {
	Status   InvoiceStatus
	ClientID *int
	From, To *time.Time
}

type invoiceService struct {
	pool      *pgxpool.Pool
	inventory InventoryService
	logger    *zap.Logger
}

func NewInvoiceService(pool *pgxpool.Pool, inventory InventoryService, logger *zap.Logger) InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &invoiceService{pool: pool, inventory: inventory, logger: logger}
}

// FormatInvoiceNumber renders INV-YYYYMMDD-NNN.
func FormatInvoiceNumber(day time.Time, seq int) string {
	return fmt.Sprintf("INV-%s-%03d", day.Format("20060102"), seq)
}

const invoiceSelect = `
	SELECT f.id, f.vente_id, f.numero_facture, f.date_facture, f.montant_original_facture,
	       f.montant_actuel_du, f.montant_paye_facture, f.montant_rembourse, f.statut_facture,
	       f.observation, f.date_annulation, f.raison_annulation, f.date_dernier_retour,
	       v.client_id, c.nom
	FROM factures f
	JOIN ventes v  ON v.id = f.vente_id
	JOIN clients c ON c.id = v.client_id`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	if err := row.Scan(
		&inv.ID, &inv.SaleID, &inv.Number, &inv.Date, &inv.OriginalAmount,
		&inv.AmountDue, &inv.AmountPaid, &inv.AmountRefunded, &inv.Status,
		&inv.Observation, &inv.CancelledAt, &inv.CancellationReason, &inv.LastReturnAt,
		&inv.ClientID, &inv.ClientName,
	); err != nil {
		return nil, err
	}
	return &inv, nil
}

func getInvoice(ctx context.Context, q pgxQuerier, invoiceID int) (*Invoice, error) {
	inv, err := scanInvoice(q.QueryRow(ctx, invoiceSelect+" WHERE f.id = $1", invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundError("invoice %d not found", invoiceID)
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}
	if inv.Items, err = listSaleItems(ctx, q, inv.SaleID, false); err != nil {
		return nil, err
	}
	return inv, nil
}

func lockInvoice(ctx context.Context, tx pgx.Tx, invoiceID int) (*Invoice, error) {
	inv, err := scanInvoice(tx.QueryRow(ctx, invoiceSelect+" WHERE f.id = $1 FOR UPDATE OF f", invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundError("invoice %d not found", invoiceID)
		}
		return nil, fmt.Errorf("failed to lock invoice %d: %w", invoiceID, err)
	}
	return inv, nil
}

// writeSaleTotalsTx is the single writer of a sale's total, paid amount and payment status.
func writeSaleTotalsTx(ctx context.Context, tx pgx.Tx, saleID int, total, paid decimal.Decimal, status PaymentStatus) error {
	_, err := tx.Exec(ctx, `
		UPDATE ventes SET montant_total = $1, montant_paye = $2, statut_paiement = $3
		WHERE id = $4
	`, total, paid, string(status), saleID)
	if err != nil {
		return fmt.Errorf("failed to update totals of sale %d: %w", saleID, err)
	}
	return nil
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *invoiceService) CreateInvoice(ctx context.Context, in InvoiceInput) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := s.CreateInvoiceTx(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, translatePgError(err, "commit invoice creation")
	}
	return inv, nil
}

func (s *invoiceService) RecordPayment(ctx context.Context, invoiceID int, in PaymentInput) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := s.RecordPaymentTx(ctx, tx, invoiceID, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return inv, nil
}

func (s *invoiceService) CancelInvoice(ctx context.Context, invoiceID int, reason string) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := s.CancelInvoiceTx(ctx, tx, invoiceID, reason)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice cancellation: %w", err)
	}
	s.logger.Info("invoice cancelled", zap.Int("invoice_id", invoiceID), zap.String("number", inv.Number))
	return inv, nil
}

func (s *invoiceService) ReturnItem(ctx context.Context, in ReturnItemInput) (*ReturnItemResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := s.ReturnItemTx(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit item return: %w", err)
	}
	s.logger.Info("sale item returned",
		zap.Int("invoice_id", in.InvoiceID), zap.Int("sale_item_id", in.SaleItemID),
		zap.String("refund", in.RefundAmount.StringFixed(2)), zap.String("status", string(res.Invoice.Status)))
	return res, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error) {
	return getInvoice(ctx, s.pool, invoiceID)
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	rows, err := s.pool.Query(ctx, invoiceSelect+`
		WHERE ($1 = '' OR f.statut_facture = $1)
		  AND ($2::int IS NULL OR v.client_id = $2)
		  AND ($3::timestamptz IS NULL OR f.date_facture >= $3)
		  AND ($4::timestamptz IS NULL OR f.date_facture <  $4)
		ORDER BY f.date_facture DESC, f.id DESC
	`, string(filter.Status), filter.ClientID, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

// GenerateInvoiceNumberTx bumps the per-day sequence atomically; concurrent callers
// serialize on the day's row and never see the same number.
func (s *invoiceService) GenerateInvoiceNumberTx(ctx context.Context, tx pgx.Tx) (string, error) {
	var day time.Time
	var seq int
	err := tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (day, last_number)
		VALUES (CURRENT_DATE, 1)
		ON CONFLICT (day) DO UPDATE SET last_number = invoice_sequences.last_number + 1
		RETURNING day, last_number
	`).Scan(&day, &seq)
	if err != nil {
		return "", fmt.Errorf("failed to generate invoice number: %w", err)
	}
	return FormatInvoiceNumber(day, seq), nil
}

func (s *invoiceService) CreateInvoiceTx(ctx context.Context, tx pgx.Tx, in InvoiceInput) (*Invoice, error) {
	var total, paid decimal.Decimal
	var status PaymentStatus
	err := tx.QueryRow(ctx, `
		SELECT montant_total, montant_paye, statut_paiement FROM ventes WHERE id = $1 FOR UPDATE
	`, in.SaleID).Scan(&total, &paid, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundError("sale %d not found", in.SaleID)
		}
		return nil, fmt.Errorf("failed to lock sale %d: %w", in.SaleID, err)
	}
	if status == PaymentCancelled {
		return nil, invalidStateError("sale %d is cancelled", in.SaleID)
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM factures WHERE vente_id = $1)", in.SaleID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check invoice of sale %d: %w", in.SaleID, err)
	}
	if exists {
		return nil, duplicateError(ErrDuplicateInvoice.Code, "sale %d already has an invoice", in.SaleID)
	}

	number, err := s.GenerateInvoiceNumberTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	var observation *string
	if in.Observation != nil && strings.TrimSpace(*in.Observation) != "" {
		o := strings.TrimSpace(*in.Observation)
		observation = &o
	}

	var invoiceID int
	err = tx.QueryRow(ctx, `
		INSERT INTO factures (vente_id, numero_facture, montant_original_facture, montant_actuel_du,
		                      montant_paye_facture, statut_facture, observation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, in.SaleID, number, total, total.Sub(paid), paid,
		string(InvoiceStatusFromSale(status)), observation).Scan(&invoiceID)
	if err != nil {
		return nil, translatePgError(err, fmt.Sprintf("create invoice for sale %d", in.SaleID))
	}
	return getInvoice(ctx, tx, invoiceID)
}

func (s *invoiceService) RecordPaymentTx(ctx context.Context, tx pgx.Tx, invoiceID int, in PaymentInput) (*Invoice, error) {
	if in.AmountPaid.IsNegative() {
		return nil, validationError("amount paid cannot be negative")
	}
	if in.NewTotal != nil && in.NewTotal.IsNegative() {
		return nil, validationError("new total cannot be negative")
	}

	inv, err := lockInvoice(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status.IsTerminal() {
		return nil, invalidStateError("cannot record a payment on a %s invoice", inv.Status)
	}

	total := inv.OriginalAmount
	if in.NewTotal != nil {
		total = *in.NewTotal
	}
	if in.AmountPaid.GreaterThan(total) {
		return nil, validationError("amount paid %s exceeds invoice total %s",
			in.AmountPaid.StringFixed(2), total.StringFixed(2))
	}

	due := total.Sub(in.AmountPaid)
	status := InvoiceStatusAfterPayment(due, in.AmountPaid)

	if _, err := tx.Exec(ctx, `
		UPDATE factures
		SET montant_paye_facture = $1, montant_actuel_du = $2, statut_facture = $3,
		    montant_original_facture = $4
		WHERE id = $5
	`, in.AmountPaid, due, string(status), total, invoiceID); err != nil {
		return nil, fmt.Errorf("failed to update invoice %d: %w", invoiceID, err)
	}
	if err := writeSaleTotalsTx(ctx, tx, inv.SaleID, total, in.AmountPaid,
		DerivePaymentStatus(total, in.AmountPaid)); err != nil {
		return nil, err
	}
	return getInvoice(ctx, tx, invoiceID)
}

func (s *invoiceService) CancelInvoiceTx(ctx context.Context, tx pgx.Tx, invoiceID int, reason string) (*Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("cancellation reason is required")
	}

	inv, err := lockInvoice(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status.IsTerminal() {
		return nil, invalidStateError("invoice %s is already %s", inv.Number, inv.Status)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE factures
		SET statut_facture = 'cancelled', date_annulation = NOW(), raison_annulation = $1,
		    montant_rembourse = montant_paye_facture,
		    montant_paye_facture = 0, montant_actuel_du = 0
		WHERE id = $2
	`, reason, invoiceID); err != nil {
		return nil, fmt.Errorf("failed to cancel invoice %d: %w", invoiceID, err)
	}

	items, err := listSaleItems(ctx, tx, inv.SaleID, true)
	if err != nil {
		return nil, err
	}
	itemReason := fmt.Sprintf("Annulation facture #%s", inv.Number)
	for _, item := range items {
		if !item.Status.CanTransition(ItemCancelled) {
			continue
		}
		if _, err := tx.Exec(ctx, `
			UPDATE vente_items SET statut_vente = 'cancelled', cancellation_reason = $1 WHERE id = $2
		`, itemReason, item.ID); err != nil {
			return nil, fmt.Errorf("failed to cancel sale item %d: %w", item.ID, err)
		}
		// Direct-sale lines never entered stock.
		if item.ProductID != nil {
			if err := s.inventory.RestockUnitTx(ctx, tx, *item.ProductID, item.QuantitySold); err != nil {
				return nil, err
			}
		}
	}

	if err := writeSaleTotalsTx(ctx, tx, inv.SaleID, decimal.Zero, decimal.Zero, PaymentCancelled); err != nil {
		return nil, err
	}
	return getInvoice(ctx, tx, invoiceID)
}

func (s *invoiceService) ReturnItemTx(ctx context.Context, tx pgx.Tx, in ReturnItemInput) (*ReturnItemResult, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, validationError("return reason is required")
	}
	if in.RefundAmount.IsNegative() {
		return nil, validationError("refund amount cannot be negative")
	}

	inv, err := lockInvoice(ctx, tx, in.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status.IsTerminal() {
		return nil, invalidStateError("cannot return an item of a %s invoice", inv.Status)
	}

	item, err := scanSaleItem(tx.QueryRow(ctx,
		"SELECT "+saleItemColumns+" FROM vente_items WHERE id = $1 AND vente_id = $2 FOR UPDATE",
		in.SaleItemID, inv.SaleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundError("sale item %d not found on invoice %s", in.SaleItemID, inv.Number)
		}
		return nil, fmt.Errorf("failed to lock sale item %d: %w", in.SaleItemID, err)
	}
	if !item.Status.CanTransition(ItemReturned) {
		return nil, invalidStateError("sale item %d is already %s", item.ID, item.Status)
	}
	if in.RefundAmount.GreaterThan(item.UnitSalePrice) {
		return nil, validationError("refund %s exceeds the unit sale price %s",
			in.RefundAmount.StringFixed(2), item.UnitSalePrice.StringFixed(2))
	}
	if in.RefundAmount.GreaterThan(inv.AmountPaid) {
		return nil, validationError("refund %s exceeds the amount paid %s",
			in.RefundAmount.StringFixed(2), inv.AmountPaid.StringFixed(2))
	}

	if _, err := tx.Exec(ctx, `
		UPDATE vente_items
		SET statut_vente = 'returned', cancellation_reason = $1, montant_rembourse = $2
		WHERE id = $3
	`, fmt.Sprintf("Retour client (Facture #%s): %s", inv.Number, reason), in.RefundAmount, item.ID); err != nil {
		return nil, fmt.Errorf("failed to mark sale item %d returned: %w", item.ID, err)
	}
	if item.ProductID != nil {
		if err := s.inventory.RestockUnitTx(ctx, tx, *item.ProductID, item.QuantitySold); err != nil {
			return nil, err
		}
	}

	var returnID int
	err = tx.QueryRow(ctx, `
		INSERT INTO returns (vente_item_id, facture_id, client_id, product_id, source_achat_id,
		                     marque, modele, stockage, type, type_carton, imei,
		                     reason, montant_rembourse, status, is_special_sale_item)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'returned', $14)
		RETURNING id
	`, item.ID, inv.ID, inv.ClientID, item.ProductID, item.SourcePurchaseID,
		item.Brand, item.Model, item.Storage, item.Type, item.CartonType, item.Serial,
		reason, in.RefundAmount, item.IsDirectSale).Scan(&returnID)
	if err != nil {
		return nil, translatePgError(err, fmt.Sprintf("record return of sale item %d", item.ID))
	}

	var activeLeft int
	var remaining decimal.Decimal
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE statut_vente = 'active'),
		       COALESCE(SUM(prix_unitaire_vente * quantite_vendue) FILTER (WHERE statut_vente = 'active'), 0)
		FROM vente_items
		WHERE vente_id = $1
	`, inv.SaleID).Scan(&activeLeft, &remaining); err != nil {
		return nil, fmt.Errorf("failed to recompute sale %d: %w", inv.SaleID, err)
	}

	paid := inv.AmountPaid.Sub(in.RefundAmount)
	if _, err := tx.Exec(ctx, `
		UPDATE factures
		SET montant_actuel_du = montant_actuel_du - $1,
		    montant_paye_facture = $2,
		    montant_rembourse = montant_rembourse + $1,
		    statut_facture = $3,
		    date_dernier_retour = NOW()
		WHERE id = $4
	`, in.RefundAmount, paid, string(InvoiceStatusAfterReturn(activeLeft)), inv.ID); err != nil {
		return nil, fmt.Errorf("failed to update invoice %d: %w", inv.ID, err)
	}
	if err := writeSaleTotalsTx(ctx, tx, inv.SaleID, remaining, paid,
		PaymentStatusAfterReturn(remaining, paid)); err != nil {
		return nil, err
	}

	updated, err := getInvoice(ctx, tx, inv.ID)
	if err != nil {
		return nil, err
	}
	ret, err := getReturn(ctx, tx, returnID)
	if err != nil {
		return nil, err
	}
	return &ReturnItemResult{Invoice: *updated, Return: *ret}, nil
}
