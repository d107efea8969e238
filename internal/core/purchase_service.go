package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// defaultMarkup prices a newly stocked product when no sale price is supplied.
var defaultMarkup = decimal.RequireFromString("1.2")

// PurchaseService records acquisitions. Stock purchases feed the inventory ledger;
// direct-sale purchases are consumed by a one-item sale and never become stock.
type PurchaseService interface {
	RecordPurchase(ctx context.Context, in PurchaseInput) (*PurchaseResult, error)
	RecordPurchaseTx(ctx context.Context, tx pgx.Tx, in PurchaseInput) (*PurchaseResult, error)
	RecordDirectSalePurchase(ctx context.Context, in DirectSalePurchaseInput) (*DirectSaleResult, error)
	ListPurchases(ctx context.Context, filter PurchaseFilter) ([]Purchase, error)
}

// PurchaseInput is a stock acquisition. A zero SalePrice defaults to cost × 1.2.
type PurchaseInput struct {
	Identity   UnitIdentity    `json:"identity"`
	CostPrice  decimal.Decimal `json:"cost_price"`
	SalePrice  decimal.Decimal `json:"sale_price,omitempty"`
	Quantity   int             `json:"quantity" jsonschema:"minimum=1"`
	SupplierID *int            `json:"supplier_id,omitempty"`
}

// PurchaseResult is the purchase row and the product it fed.
type PurchaseResult struct {
	Purchase Purchase `json:"purchase"`
	Product  Product  `json:"product"`
}

// DirectSalePurchaseInput is a pass-through acquisition sold at once to Client.
type DirectSalePurchaseInput struct {
	Identity      UnitIdentity    `json:"identity"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	UnitSalePrice decimal.Decimal `json:"unit_sale_price"`
	Client        ClientRef       `json:"client"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	SupplierID    *int            `json:"supplier_id,omitempty"`
}

// DirectSaleResult links the purchase to the sale it spawned.
type DirectSaleResult struct {
	Purchase Purchase `json:"purchase"`
	Sale     Sale     `json:"sale"`
}

// PurchaseFilter narrows ListPurchases. Zero values match everything.
type PurchaseFilter struct {
	Settlement SettlementKind
	From, To   *time.Time
}

type purchaseService struct {
	pool      *pgxpool.Pool
	inventory InventoryService
	sales     SaleService
}

func NewPurchaseService(pool *pgxpool.Pool, inventory InventoryService, sales SaleService) PurchaseService {
	return &purchaseService{pool: pool, inventory: inventory, sales: sales}
}

// purchaseRecord is the row written to achats.
type purchaseRecord struct {
	Identity   UnitIdentity
	CostPrice  decimal.Decimal
	Quantity   int
	Settlement SettlementKind
	SupplierID *int
	ProductID  *int
}

const purchaseColumns = `id, date_achat, marque, modele, stockage, type, type_carton, imei,
	prix_achat, quantite, statut_achat_vente, fournisseur_id, product_id, vente_id`

func scanPurchase(row pgx.Row) (*Purchase, error) {
	var p Purchase
	if err := row.Scan(
		&p.ID, &p.Date, &p.Brand, &p.Model, &p.Storage, &p.Type, &p.CartonType, &p.Serial,
		&p.CostPrice, &p.Quantity, &p.Settlement, &p.SupplierID, &p.ProductID, &p.SaleID,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func insertPurchaseTx(ctx context.Context, tx pgx.Tx, r purchaseRecord) (*Purchase, error) {
	p, err := scanPurchase(tx.QueryRow(ctx, `
		INSERT INTO achats (marque, modele, stockage, type, type_carton, imei,
		                    prix_achat, quantite, statut_achat_vente, fournisseur_id, product_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+purchaseColumns,
		r.Identity.Brand, r.Identity.Model, r.Identity.Storage, r.Identity.Type, r.Identity.CartonType,
		r.Identity.Serial, r.CostPrice, r.Quantity, string(r.Settlement), r.SupplierID, r.ProductID,
	))
	if err != nil {
		return nil, translatePgError(err, "record purchase of "+r.Identity.Serial)
	}
	return p, nil
}

// linkPurchaseToSaleTx writes the back-reference from a direct-sale purchase to its sale.
func linkPurchaseToSaleTx(ctx context.Context, tx pgx.Tx, purchaseID, saleID int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE achats SET vente_id = $1
		WHERE id = $2 AND statut_achat_vente = 'direct_sale' AND vente_id IS NULL
	`, saleID, purchaseID)
	if err != nil {
		return translatePgError(err, fmt.Sprintf("link purchase %d to sale %d", purchaseID, saleID))
	}
	if tag.RowsAffected() == 0 {
		return invalidStateError("purchase %d is not an unlinked direct-sale purchase", purchaseID)
	}
	return nil
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *purchaseService) RecordPurchase(ctx context.Context, in PurchaseInput) (*PurchaseResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := s.RecordPurchaseTx(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}
	return res, nil
}

func (s *purchaseService) RecordDirectSalePurchase(ctx context.Context, in DirectSalePurchaseInput) (*DirectSaleResult, error) {
	identity := in.Identity.Normalize()
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if in.CostPrice.IsNegative() {
		return nil, validationError("cost price cannot be negative")
	}
	if in.UnitSalePrice.IsNegative() {
		return nil, validationError("unit sale price cannot be negative")
	}
	if strings.TrimSpace(in.Client.Name) == "" {
		return nil, validationError("client name is required for a direct sale")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	purchase, err := insertPurchaseTx(ctx, tx, purchaseRecord{
		Identity:   identity,
		CostPrice:  in.CostPrice,
		Quantity:   1,
		Settlement: SettlementDirectSale,
		SupplierID: in.SupplierID,
	})
	if err != nil {
		return nil, err
	}

	// The sale engine snapshots the purchase and writes the back-reference onto it.
	sale, err := s.sales.CreateSaleTx(ctx, tx, SaleInput{
		Client:     in.Client,
		AmountPaid: in.AmountPaid,
		Items: []SaleItemInput{{
			SourcePurchaseID: &purchase.ID,
			Quantity:         1,
			UnitSalePrice:    in.UnitSalePrice,
		}},
	})
	if err != nil {
		return nil, err
	}
	purchase.SaleID = &sale.ID

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit direct sale: %w", err)
	}
	return &DirectSaleResult{Purchase: *purchase, Sale: *sale}, nil
}

func (s *purchaseService) ListPurchases(ctx context.Context, filter PurchaseFilter) ([]Purchase, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+purchaseColumns+`
		FROM achats
		WHERE ($1 = '' OR statut_achat_vente = $1)
		  AND ($2::timestamptz IS NULL OR date_achat >= $2)
		  AND ($3::timestamptz IS NULL OR date_achat <  $3)
		ORDER BY date_achat DESC, id DESC
	`, string(filter.Settlement), filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	purchases := []Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (s *purchaseService) RecordPurchaseTx(ctx context.Context, tx pgx.Tx, in PurchaseInput) (*PurchaseResult, error) {
	identity := in.Identity.Normalize()
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, validationError("purchase quantity must be positive, got %d", in.Quantity)
	}
	if in.CostPrice.IsNegative() {
		return nil, validationError("cost price cannot be negative")
	}
	salePrice := in.SalePrice
	if salePrice.IsZero() {
		salePrice = in.CostPrice.Mul(defaultMarkup).Round(2)
	}

	product, err := s.inventory.ApplyStockDeltaTx(ctx, tx, StockDelta{
		Identity:   identity,
		Delta:      in.Quantity,
		CostPrice:  in.CostPrice,
		SalePrice:  salePrice,
		SupplierID: in.SupplierID,
	})
	if err != nil {
		return nil, err
	}

	purchase, err := insertPurchaseTx(ctx, tx, purchaseRecord{
		Identity:   identity,
		CostPrice:  in.CostPrice,
		Quantity:   in.Quantity,
		Settlement: SettlementStock,
		SupplierID: in.SupplierID,
		ProductID:  &product.ID,
	})
	if err != nil {
		return nil, err
	}
	return &PurchaseResult{Purchase: *purchase, Product: *product}, nil
}
