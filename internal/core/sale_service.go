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
)

// SaleService creates sales and their lines, consuming stock for normal lines.
// After creation a sale's totals belong to the InvoiceService.
type SaleService interface {
	CreateSale(ctx context.Context, in SaleInput) (*Sale, error)
	GetSale(ctx context.Context, saleID int) (*Sale, error)
	ListSales(ctx context.Context, filter SaleFilter) ([]Sale, error)

	// TX-scoped operations: work within a caller-provided transaction.
	CreateSaleTx(ctx context.Context, tx pgx.Tx, in SaleInput) (*Sale, error)
	// ResolveClientTx returns the client named ref.Name, creating it if needed.
	// A non-empty phone replaces the stored one.
	ResolveClientTx(ctx context.Context, tx pgx.Tx, ref ClientRef) (int, error)
}

// ClientRef identifies a client by name.
type ClientRef struct {
	Name  string  `json:"name" jsonschema:"minLength=1"`
	Phone *string `json:"phone,omitempty"`
}

// SaleInput is a basket sold to one client.
type SaleInput struct {
	Client     ClientRef       `json:"client"`
	Items      []SaleItemInput `json:"items" jsonschema:"minItems=1"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

// SaleItemInput is one requested line. Normal lines name a product and consume its stock.
// Direct-sale lines name an unlinked direct-sale purchase instead and never touch stock.
type SaleItemInput struct {
	ProductID        int             `json:"product_id,omitempty"`
	SourcePurchaseID *int            `json:"source_purchase_id,omitempty"`
	Quantity         int             `json:"quantity" jsonschema:"minimum=1"`
	UnitSalePrice    decimal.Decimal `json:"unit_sale_price" jsonschema_description:"Zero uses the product's sale price"`
}

// SaleFilter narrows ListSales. Zero values match everything.
type SaleFilter struct {
	ClientID *int
	Status   PaymentStatus
	From, To *time.Time
}

type saleService struct {
	pool      *pgxpool.Pool
	inventory InventoryService
}

func NewSaleService(pool *pgxpool.Pool, inventory InventoryService) SaleService {
	return &saleService{pool: pool, inventory: inventory}
}

const saleSelect = `
	SELECT v.id, v.client_id, c.nom, v.date_vente, v.montant_total, v.montant_paye,
	       v.statut_paiement, v.is_special_sale, f.id
	FROM ventes v
	JOIN clients c ON c.id = v.client_id
	LEFT JOIN factures f ON f.vente_id = v.id`

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	if err := row.Scan(
		&s.ID, &s.ClientID, &s.ClientName, &s.Date, &s.TotalAmount, &s.PaidAmount,
		&s.PaymentStatus, &s.IsDirectSale, &s.InvoiceID,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

const saleItemColumns = `id, vente_id, marque, modele, stockage, type, type_carton, imei,
	produit_id, source_achat_id, prix_unitaire_achat, prix_unitaire_vente, quantite_vendue,
	statut_vente, cancellation_reason, montant_rembourse, is_special_sale_item`

func scanSaleItem(row pgx.Row) (*SaleItem, error) {
	var i SaleItem
	if err := row.Scan(
		&i.ID, &i.SaleID, &i.Brand, &i.Model, &i.Storage, &i.Type, &i.CartonType, &i.Serial,
		&i.ProductID, &i.SourcePurchaseID, &i.UnitCostPrice, &i.UnitSalePrice, &i.QuantitySold,
		&i.Status, &i.CancellationReason, &i.RefundedAmount, &i.IsDirectSale,
	); err != nil {
		return nil, err
	}
	return &i, nil
}

// listSaleItems returns the lines of a sale in insertion order. forUpdate locks them.
func listSaleItems(ctx context.Context, q pgxQuerier, saleID int, forUpdate bool) ([]SaleItem, error) {
	query := "SELECT " + saleItemColumns + " FROM vente_items WHERE vente_id = $1 ORDER BY id"
	if forUpdate {
		query += " FOR UPDATE"
	}
	rows, err := q.Query(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items of sale %d: %w", saleID, err)
	}
	defer rows.Close()

	items := []SaleItem{}
	for rows.Next() {
		item, err := scanSaleItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func getSale(ctx context.Context, q pgxQuerier, saleID int) (*Sale, error) {
	sale, err := scanSale(q.QueryRow(ctx, saleSelect+" WHERE v.id = $1", saleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundError("sale %d not found", saleID)
		}
		return nil, fmt.Errorf("failed to fetch sale %d: %w", saleID, err)
	}
	if sale.Items, err = listSaleItems(ctx, q, saleID, false); err != nil {
		return nil, err
	}
	return sale, nil
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *saleService) CreateSale(ctx context.Context, in SaleInput) (*Sale, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sale, err := s.CreateSaleTx(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sale creation: %w", err)
	}
	return sale, nil
}

func (s *saleService) GetSale(ctx context.Context, saleID int) (*Sale, error) {
	return getSale(ctx, s.pool, saleID)
}

func (s *saleService) ListSales(ctx context.Context, filter SaleFilter) ([]Sale, error) {
	rows, err := s.pool.Query(ctx, saleSelect+`
		WHERE ($1::int IS NULL OR v.client_id = $1)
		  AND ($2 = '' OR v.statut_paiement = $2)
		  AND ($3::timestamptz IS NULL OR v.date_vente >= $3)
		  AND ($4::timestamptz IS NULL OR v.date_vente <  $4)
		ORDER BY v.date_vente DESC, v.id DESC
	`, filter.ClientID, string(filter.Status), filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	sales := []Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (s *saleService) ResolveClientTx(ctx context.Context, tx pgx.Tx, ref ClientRef) (int, error) {
	name := strings.TrimSpace(ref.Name)
	if name == "" {
		return 0, validationError("client name is required")
	}
	var phone *string
	if ref.Phone != nil && strings.TrimSpace(*ref.Phone) != "" {
		p := strings.TrimSpace(*ref.Phone)
		phone = &p
	}

	var clientID int
	err := tx.QueryRow(ctx, `
		INSERT INTO clients (nom, telephone) VALUES ($1, $2)
		ON CONFLICT (nom) DO UPDATE
		    SET telephone = COALESCE(EXCLUDED.telephone, clients.telephone)
		RETURNING id
	`, name, phone).Scan(&clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve client %q: %w", name, err)
	}
	return clientID, nil
}

func (s *saleService) CreateSaleTx(ctx context.Context, tx pgx.Tx, in SaleInput) (*Sale, error) {
	if len(in.Items) == 0 {
		return nil, validationError("sale must have at least one item")
	}
	if in.AmountPaid.IsNegative() {
		return nil, validationError("amount paid cannot be negative")
	}

	clientID, err := s.ResolveClientTx(ctx, tx, in.Client)
	if err != nil {
		return nil, err
	}

	type resolvedLine struct {
		identity         UnitIdentity
		productID        *int
		sourcePurchaseID *int
		unitCost         decimal.Decimal
		unitPrice        decimal.Decimal
		quantity         int
		direct           bool
	}
	resolved := make([]resolvedLine, 0, len(in.Items))
	total := decimal.Zero
	allDirect := true

	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, validationError("item %d: quantity must be positive, got %d", i+1, item.Quantity)
		}
		if item.UnitSalePrice.IsNegative() {
			return nil, validationError("item %d: unit sale price cannot be negative", i+1)
		}

		var line resolvedLine
		if item.SourcePurchaseID != nil {
			purchase, err := s.lockDirectPurchase(ctx, tx, *item.SourcePurchaseID)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i+1, err)
			}
			if item.Quantity != 1 {
				return nil, validationError("item %d: a direct-sale line sells exactly one unit", i+1)
			}
			line = resolvedLine{
				identity:         purchase.UnitIdentity,
				sourcePurchaseID: &purchase.ID,
				unitCost:         purchase.CostPrice,
				unitPrice:        item.UnitSalePrice,
				quantity:         1,
				direct:           true,
			}
		} else {
			allDirect = false
			if item.ProductID <= 0 {
				return nil, validationError("item %d: product or direct-sale purchase is required", i+1)
			}
			product, err := lockProduct(ctx, tx, item.ProductID)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i+1, err)
			}
			if product.Status != ProductActive || product.Quantity < item.Quantity {
				return nil, &DomainError{
					Kind: KindInsufficientStock,
					Message: fmt.Sprintf("item %d: product %d (%s) has %d available, %d requested",
						i+1, product.ID, product.Serial, availableQuantity(product), item.Quantity),
				}
			}
			if _, err := s.inventory.ApplyStockDeltaTx(ctx, tx, StockDelta{
				Identity: product.UnitIdentity,
				Delta:    -item.Quantity,
			}); err != nil {
				return nil, fmt.Errorf("item %d: %w", i+1, err)
			}

			price := product.SalePrice
			if !item.UnitSalePrice.IsZero() {
				price = item.UnitSalePrice
			}
			line = resolvedLine{
				identity:  product.UnitIdentity,
				productID: &product.ID,
				unitCost:  product.CostPrice,
				unitPrice: price,
				quantity:  item.Quantity,
			}
		}

		total = total.Add(line.unitPrice.Mul(decimal.NewFromInt(int64(line.quantity))))
		resolved = append(resolved, line)
	}

	status := DerivePaymentStatus(total, in.AmountPaid)

	var saleID int
	err = tx.QueryRow(ctx, `
		INSERT INTO ventes (client_id, montant_total, montant_paye, statut_paiement, is_special_sale)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, clientID, total, in.AmountPaid, string(status), allDirect).Scan(&saleID)
	if err != nil {
		return nil, translatePgError(err, "insert sale")
	}

	for i, line := range resolved {
		_, err = tx.Exec(ctx, `
			INSERT INTO vente_items (vente_id, produit_id, source_achat_id,
			                         marque, modele, stockage, type, type_carton, imei,
			                         prix_unitaire_achat, prix_unitaire_vente, quantite_vendue,
			                         statut_vente, is_special_sale_item)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'active', $13)
		`, saleID, line.productID, line.sourcePurchaseID,
			line.identity.Brand, line.identity.Model, line.identity.Storage, line.identity.Type,
			line.identity.CartonType, line.identity.Serial,
			line.unitCost, line.unitPrice, line.quantity, line.direct)
		if err != nil {
			return nil, translatePgError(err, fmt.Sprintf("insert sale item %d", i+1))
		}
		if line.direct {
			if err := linkPurchaseToSaleTx(ctx, tx, *line.sourcePurchaseID, saleID); err != nil {
				return nil, err
			}
		}
	}

	return getSale(ctx, tx, saleID)
}

// lockDirectPurchase locks a direct-sale purchase that no sale has consumed yet.
func (s *saleService) lockDirectPurchase(ctx context.Context, tx pgx.Tx, purchaseID int) (*Purchase, error) {
	p, err := scanPurchase(tx.QueryRow(ctx,
		"SELECT "+purchaseColumns+" FROM achats WHERE id = $1 FOR UPDATE", purchaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundError("purchase %d not found", purchaseID)
		}
		return nil, fmt.Errorf("failed to lock purchase %d: %w", purchaseID, err)
	}
	if p.Settlement != SettlementDirectSale {
		return nil, invalidStateError("purchase %d went to stock; sell its product instead", purchaseID)
	}
	if p.SaleID != nil {
		return nil, invalidStateError("purchase %d is already linked to sale %d", purchaseID, *p.SaleID)
	}
	return p, nil
}

// lockProduct fetches a product row FOR UPDATE.
func lockProduct(ctx context.Context, tx pgx.Tx, productID int) (*Product, error) {
	p, err := scanProduct(tx.QueryRow(ctx, productSelect+" WHERE p.id = $1 FOR UPDATE OF p", productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundError("product %d not found", productID)
		}
		return nil, fmt.Errorf("failed to lock product %d: %w", productID, err)
	}
	return p, nil
}

func availableQuantity(p *Product) int {
	if p.Status != ProductActive {
		return 0
	}
	return p.Quantity
}
