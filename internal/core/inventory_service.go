package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InventoryService owns product stock rows and applies quantity changes to them.
type InventoryService interface {
	// Standalone operations (manage their own transactions).
	GetProduct(ctx context.Context, productID int) (*Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	// StockSummary groups active quantity by identity without the serial.
	StockSummary(ctx context.Context) ([]StockSummaryRow, error)
	SetStatus(ctx context.Context, productID int, status ProductStatus) (*Product, error)
	// AddSerialBatch creates one product (quantity 1) and one stock purchase per serial.
	// Each serial succeeds or fails on its own.
	AddSerialBatch(ctx context.Context, in SerialBatchInput) (*BatchResult, error)
	UpdateProduct(ctx context.Context, productID int, in ProductUpdate) (*Product, error)
	// DeleteProduct fails with ErrConstraintViolation once the product has been sold.
	DeleteProduct(ctx context.Context, productID int) error

	// TX-scoped operations: work within a caller-provided transaction.

	// ApplyStockDeltaTx finds the product by its full identity and adds delta to its quantity,
	// creating it when absent and delta is positive. The quantity never goes below zero.
	ApplyStockDeltaTx(ctx context.Context, tx pgx.Tx, in StockDelta) (*Product, error)
	// SetStatusTx toggles availability without touching quantity.
	SetStatusTx(ctx context.Context, tx pgx.Tx, productID int, status ProductStatus) error
	// RestockUnitTx puts quantity units back and reactivates the product.
	RestockUnitTx(ctx context.Context, tx pgx.Tx, productID, quantity int) error
	// WithdrawUnitTx takes quantity units out of stock for shipment to the supplier.
	// The product goes inactive when nothing is left.
	WithdrawUnitTx(ctx context.Context, tx pgx.Tx, productID, quantity int) error
	// ReinstateUnitTx brings repaired units back: quantity added, active, fresh intake date.
	ReinstateUnitTx(ctx context.Context, tx pgx.Tx, productID, quantity int) error
}

// StockDelta is a quantity change for one identity. Prices and supplier are used only
// when the product does not exist yet.
type StockDelta struct {
	Identity   UnitIdentity
	Delta      int
	CostPrice  decimal.Decimal
	SalePrice  decimal.Decimal
	SupplierID *int
}

// ProductFilter narrows ListProducts. Zero values match everything.
type ProductFilter struct {
	Status     ProductStatus
	Serial     string
	SupplierID *int
}

// ProductUpdate replaces the editable attributes of a product.
type ProductUpdate struct {
	Identity   UnitIdentity
	CostPrice  decimal.Decimal
	SalePrice  decimal.Decimal
	SupplierID *int
}

// SerialBatchInput is a lot of serials sharing every other attribute.
type SerialBatchInput struct {
	Brand      string
	Model      string
	Storage    *string
	Type       *string
	CartonType *string
	Serials    []string
	CostPrice  decimal.Decimal
	SalePrice  decimal.Decimal
	SupplierID int
}

var serialPattern = regexp.MustCompile(`^\d{6}$`)

// ValidSerial reports whether s has the six-digit form required for catalogued serials.
func ValidSerial(s string) bool {
	return serialPattern.MatchString(s)
}

type inventoryService struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewInventoryService(pool *pgxpool.Pool, logger *zap.Logger) InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inventoryService{pool: pool, logger: logger}
}

const productSelect = `
	SELECT p.id, p.marque, p.modele, p.stockage, p.type, p.type_carton, p.imei,
	       p.prix_achat, p.prix_vente, p.quantite, p.status, p.fournisseur_id, f.nom, p.date_ajout
	FROM products p
	LEFT JOIN fournisseurs f ON f.id = p.fournisseur_id`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.Brand, &p.Model, &p.Storage, &p.Type, &p.CartonType, &p.Serial,
		&p.CostPrice, &p.SalePrice, &p.Quantity, &p.Status, &p.SupplierID, &p.SupplierName, &p.AddedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func getProduct(ctx context.Context, q pgxQuerier, productID int) (*Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, productSelect+" WHERE p.id = $1", productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundError("product %d not found", productID)
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}
	return p, nil
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *inventoryService) GetProduct(ctx context.Context, productID int) (*Product, error) {
	return getProduct(ctx, s.pool, productID)
}

func (s *inventoryService) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	rows, err := s.pool.Query(ctx, productSelect+`
		WHERE ($1 = '' OR p.status = $1)
		  AND ($2 = '' OR p.imei = $2)
		  AND ($3::int IS NULL OR p.fournisseur_id = $3)
		ORDER BY p.date_ajout DESC, p.id DESC
	`, string(filter.Status), strings.TrimSpace(filter.Serial), filter.SupplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *inventoryService) StockSummary(ctx context.Context) ([]StockSummaryRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT marque, modele, stockage, type, type_carton, SUM(quantite), COUNT(*)
		FROM products
		WHERE status = 'active' AND quantite > 0
		GROUP BY marque, modele, stockage, type, type_carton
		ORDER BY marque, modele, stockage, type, type_carton
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock summary: %w", err)
	}
	defer rows.Close()

	summary := []StockSummaryRow{}
	for rows.Next() {
		var r StockSummaryRow
		if err := rows.Scan(&r.Brand, &r.Model, &r.Storage, &r.Type, &r.CartonType, &r.Quantity, &r.Units); err != nil {
			return nil, fmt.Errorf("failed to scan stock summary row: %w", err)
		}
		summary = append(summary, r)
	}
	return summary, rows.Err()
}

func (s *inventoryService) SetStatus(ctx context.Context, productID int, status ProductStatus) (*Product, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.SetStatusTx(ctx, tx, productID, status); err != nil {
		return nil, err
	}
	p, err := getProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}
	return p, nil
}

func (s *inventoryService) AddSerialBatch(ctx context.Context, in SerialBatchInput) (*BatchResult, error) {
	base := UnitIdentity{
		Brand: in.Brand, Model: in.Model, Storage: in.Storage, Type: in.Type, CartonType: in.CartonType,
		Serial: "batch",
	}.Normalize()
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if len(in.Serials) == 0 {
		return nil, validationError("at least one serial is required")
	}
	if !in.CostPrice.IsPositive() || !in.SalePrice.IsPositive() {
		return nil, validationError("cost price and sale price must be positive")
	}
	if in.SupplierID <= 0 {
		return nil, validationError("supplier is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result := newBatchResult()
	supplierID := in.SupplierID
	for i, raw := range in.Serials {
		serial := strings.TrimSpace(raw)
		if !ValidSerial(serial) {
			err := validationError("serial %q must be exactly 6 digits", serial)
			s.logger.Warn("serial rejected", zap.String("serial", serial), zap.Error(err))
			result.fail(i, serial, err)
			continue
		}

		identity := base
		identity.Serial = serial
		var productID int
		err := withSavepoint(ctx, tx, func(sp pgx.Tx) error {
			err := sp.QueryRow(ctx, `
				INSERT INTO products (marque, modele, stockage, type, type_carton, imei,
				                      prix_achat, prix_vente, quantite, status, fournisseur_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, 'active', $9)
				RETURNING id
			`, identity.Brand, identity.Model, identity.Storage, identity.Type, identity.CartonType, identity.Serial,
				in.CostPrice, in.SalePrice, supplierID).Scan(&productID)
			if err != nil {
				return translatePgError(err, "add serial "+serial)
			}
			_, err = insertPurchaseTx(ctx, sp, purchaseRecord{
				Identity:   identity,
				CostPrice:  in.CostPrice,
				Quantity:   1,
				Settlement: SettlementStock,
				SupplierID: &supplierID,
				ProductID:  &productID,
			})
			return err
		})
		if err != nil {
			if KindOf(err) == "" {
				return nil, err
			}
			s.logger.Warn("serial rejected", zap.String("serial", serial), zap.Error(err))
			result.fail(i, serial, err)
			continue
		}
		result.ok(i, serial, productID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit serial batch: %w", err)
	}
	s.logger.Info("serial batch processed",
		zap.Int("succeeded", len(result.Succeeded)), zap.Int("failed", len(result.Failed)))
	return result, nil
}

func (s *inventoryService) UpdateProduct(ctx context.Context, productID int, in ProductUpdate) (*Product, error) {
	identity := in.Identity.Normalize()
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if !ValidSerial(identity.Serial) {
		return nil, validationError("serial %q must be exactly 6 digits", identity.Serial)
	}
	if in.CostPrice.IsNegative() || in.SalePrice.IsNegative() {
		return nil, validationError("prices cannot be negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE products
		SET marque = $1, modele = $2, stockage = $3, type = $4, type_carton = $5, imei = $6,
		    prix_achat = $7, prix_vente = $8, fournisseur_id = $9, status = 'active'
		WHERE id = $10
	`, identity.Brand, identity.Model, identity.Storage, identity.Type, identity.CartonType, identity.Serial,
		in.CostPrice, in.SalePrice, in.SupplierID, productID)
	if err != nil {
		return nil, translatePgError(err, fmt.Sprintf("update product %d", productID))
	}
	if tag.RowsAffected() == 0 {
		return nil, notFoundError("product %d not found", productID)
	}

	p, err := getProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product update: %w", err)
	}
	return p, nil
}

func (s *inventoryService) DeleteProduct(ctx context.Context, productID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var sold bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM vente_items WHERE produit_id = $1)", productID,
	).Scan(&sold); err != nil {
		return fmt.Errorf("failed to check sales of product %d: %w", productID, err)
	}
	if sold {
		return &DomainError{
			Kind:    KindConstraintViolation,
			Message: fmt.Sprintf("product %d is referenced by a sale and cannot be deleted", productID),
		}
	}

	tag, err := tx.Exec(ctx, "DELETE FROM products WHERE id = $1", productID)
	if err != nil {
		return translatePgError(err, fmt.Sprintf("delete product %d", productID))
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("product %d not found", productID)
	}
	return tx.Commit(ctx)
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (s *inventoryService) ApplyStockDeltaTx(ctx context.Context, tx pgx.Tx, in StockDelta) (*Product, error) {
	identity := in.Identity.Normalize()
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if in.Delta == 0 {
		return nil, validationError("stock delta cannot be zero")
	}

	var productID, quantity int
	err := tx.QueryRow(ctx, `
		SELECT id, quantite
		FROM products
		WHERE imei = $1 AND marque = $2 AND modele = $3
		  AND stockage    IS NOT DISTINCT FROM $4
		  AND type        IS NOT DISTINCT FROM $5
		  AND type_carton IS NOT DISTINCT FROM $6
		FOR UPDATE
	`, identity.Serial, identity.Brand, identity.Model,
		identity.Storage, identity.Type, identity.CartonType).Scan(&productID, &quantity)

	if errors.Is(err, pgx.ErrNoRows) {
		if in.Delta < 0 {
			return nil, &DomainError{
				Kind:    KindNegativeStock,
				Message: fmt.Sprintf("no stock for serial %s: cannot apply %d", identity.Serial, in.Delta),
			}
		}
		if in.CostPrice.IsNegative() || in.SalePrice.IsNegative() {
			return nil, validationError("prices cannot be negative")
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO products (marque, modele, stockage, type, type_carton, imei,
			                      prix_achat, prix_vente, quantite, status, fournisseur_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active', $10)
			RETURNING id
		`, identity.Brand, identity.Model, identity.Storage, identity.Type, identity.CartonType, identity.Serial,
			in.CostPrice, in.SalePrice, in.Delta, in.SupplierID).Scan(&productID)
		if err != nil {
			return nil, translatePgError(err, "create product "+identity.Serial)
		}
		return getProduct(ctx, tx, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product %s: %w", identity.Serial, err)
	}

	if quantity+in.Delta < 0 {
		return nil, &DomainError{
			Kind: KindNegativeStock,
			Message: fmt.Sprintf("product %d has %d in stock: cannot apply %d",
				productID, quantity, in.Delta),
		}
	}

	// A positive delta means units arrived, so the row becomes sellable again.
	if _, err := tx.Exec(ctx, `
		UPDATE products
		SET quantite = quantite + $1,
		    status   = CASE WHEN $1 > 0 THEN 'active' ELSE status END
		WHERE id = $2
	`, in.Delta, productID); err != nil {
		return nil, translatePgError(err, fmt.Sprintf("adjust stock of product %d", productID))
	}
	return getProduct(ctx, tx, productID)
}

func (s *inventoryService) SetStatusTx(ctx context.Context, tx pgx.Tx, productID int, status ProductStatus) error {
	if !status.Valid() {
		return validationError("invalid product status %q", status)
	}
	tag, err := tx.Exec(ctx, "UPDATE products SET status = $1 WHERE id = $2", string(status), productID)
	if err != nil {
		return fmt.Errorf("failed to set status of product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("product %d not found", productID)
	}
	return nil
}

func (s *inventoryService) RestockUnitTx(ctx context.Context, tx pgx.Tx, productID, quantity int) error {
	if quantity <= 0 {
		return validationError("restock quantity must be positive, got %d", quantity)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE products SET quantite = quantite + $1, status = 'active' WHERE id = $2
	`, quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to restock product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("product %d not found", productID)
	}
	return nil
}

func (s *inventoryService) WithdrawUnitTx(ctx context.Context, tx pgx.Tx, productID, quantity int) error {
	if quantity <= 0 {
		return validationError("withdraw quantity must be positive, got %d", quantity)
	}
	var onHand int
	err := tx.QueryRow(ctx,
		"SELECT quantite FROM products WHERE id = $1 FOR UPDATE", productID).Scan(&onHand)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFoundError("product %d not found", productID)
		}
		return fmt.Errorf("failed to lock product %d: %w", productID, err)
	}
	if onHand < quantity {
		return &DomainError{
			Kind: KindNegativeStock,
			Message: fmt.Sprintf("product %d has %d in stock: cannot withdraw %d",
				productID, onHand, quantity),
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE products
		SET quantite = quantite - $1,
		    status   = CASE WHEN quantite - $1 = 0 THEN 'inactive' ELSE status END
		WHERE id = $2
	`, quantity, productID); err != nil {
		return translatePgError(err, fmt.Sprintf("withdraw stock of product %d", productID))
	}
	return nil
}

func (s *inventoryService) ReinstateUnitTx(ctx context.Context, tx pgx.Tx, productID, quantity int) error {
	if quantity <= 0 {
		return validationError("reinstate quantity must be positive, got %d", quantity)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE products SET quantite = quantite + $1, status = 'active', date_ajout = NOW() WHERE id = $2
	`, quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to reinstate product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("product %d not found", productID)
	}
	return nil
}
