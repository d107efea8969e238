package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReturnService moves returned units through the supplier round-trip:
// return → replacement request → repaired unit back in stock, or a new unit.
type ReturnService interface {
	// SendToSupplier opens a pending replacement request for each return still in the
	// returned state. Ids that cannot be sent are reported, not fatal.
	SendToSupplier(ctx context.Context, returnIDs []int) (*BatchResult, error)
	ResolveReplacement(ctx context.Context, in ResolveInput) (*ReplacementRequest, error)
	ResolveReplacementBatch(ctx context.Context, inputs []ResolveInput) (*BatchResult, error)
	ListReturns(ctx context.Context, status ReturnStatus) ([]Return, error)
	ListReplacements(ctx context.Context, resolution Resolution) ([]ReplacementRequest, error)

	// TX-scoped operations: work within a caller-provided transaction.
	ResolveReplacementTx(ctx context.Context, tx pgx.Tx, in ResolveInput) (*ReplacementRequest, error)
}

// ResolveInput closes a pending replacement request. NewUnit is required for REPLACED.
type ResolveInput struct {
	RequestID  int              `json:"request_id" jsonschema:"minimum=1"`
	Resolution Resolution       `json:"resolution" jsonschema:"enum=REPAIRED,enum=REPLACED"`
	NewUnit    *ReplacementUnit `json:"new_unit,omitempty"`
}

// ReplacementUnit describes the unit the supplier sent in exchange.
type ReplacementUnit struct {
	Identity   UnitIdentity    `json:"identity"`
	CostPrice  decimal.Decimal `json:"cost_price"`
	SalePrice  decimal.Decimal `json:"sale_price"`
	SupplierID *int            `json:"supplier_id,omitempty"`
}

type returnService struct {
	pool      *pgxpool.Pool
	inventory InventoryService
	logger    *zap.Logger
}

func NewReturnService(pool *pgxpool.Pool, inventory InventoryService, logger *zap.Logger) ReturnService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &returnService{pool: pool, inventory: inventory, logger: logger}
}

const returnSelect = `
	SELECT r.id, r.vente_item_id, r.facture_id, r.client_id, c.nom, r.product_id, r.source_achat_id,
	       r.marque, r.modele, r.stockage, r.type, r.type_carton, r.imei,
	       r.reason, r.montant_rembourse, r.return_date, r.status, r.is_special_sale_item
	FROM returns r
	JOIN clients c ON c.id = r.client_id`

func scanReturn(row pgx.Row) (*Return, error) {
	var r Return
	if err := row.Scan(
		&r.ID, &r.SaleItemID, &r.InvoiceID, &r.ClientID, &r.ClientName, &r.ProductID, &r.SourcePurchaseID,
		&r.Brand, &r.Model, &r.Storage, &r.Type, &r.CartonType, &r.Serial,
		&r.Reason, &r.RefundedAmount, &r.Date, &r.Status, &r.IsDirectSale,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func getReturn(ctx context.Context, q pgxQuerier, returnID int) (*Return, error) {
	r, err := scanReturn(q.QueryRow(ctx, returnSelect+" WHERE r.id = $1", returnID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundError("return %d not found", returnID)
		}
		return nil, fmt.Errorf("failed to fetch return %d: %w", returnID, err)
	}
	return r, nil
}

const replacementColumns = `id, return_id, marque, modele, stockage, type, type_carton, imei,
	date_sent_to_supplier, is_special_sale_item, source_achat_id, resolution_status,
	received_date, replacement_product_id`

func scanReplacement(row pgx.Row) (*ReplacementRequest, error) {
	var r ReplacementRequest
	if err := row.Scan(
		&r.ID, &r.ReturnID, &r.Brand, &r.Model, &r.Storage, &r.Type, &r.CartonType, &r.Serial,
		&r.SentAt, &r.IsDirectSale, &r.SourcePurchaseID, &r.Resolution,
		&r.ReceivedAt, &r.ReplacementProductID,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func getReplacement(ctx context.Context, q pgxQuerier, requestID int) (*ReplacementRequest, error) {
	r, err := scanReplacement(q.QueryRow(ctx,
		"SELECT "+replacementColumns+" FROM remplacer WHERE id = $1", requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundError("replacement request %d not found", requestID)
		}
		return nil, fmt.Errorf("failed to fetch replacement request %d: %w", requestID, err)
	}
	return r, nil
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *returnService) SendToSupplier(ctx context.Context, returnIDs []int) (*BatchResult, error) {
	if len(returnIDs) == 0 {
		return nil, validationError("at least one return id is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result := newBatchResult()
	for i, returnID := range returnIDs {
		key := strconv.Itoa(returnID)
		var requestID int
		err := withSavepoint(ctx, tx, func(sp pgx.Tx) error {
			var err error
			requestID, err = s.sendOneTx(ctx, sp, returnID)
			return err
		})
		if err != nil {
			if KindOf(err) == "" {
				return nil, err
			}
			s.logger.Warn("return not sent to supplier", zap.Int("return_id", returnID), zap.Error(err))
			result.fail(i, key, err)
			continue
		}
		result.ok(i, key, requestID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit supplier dispatch: %w", err)
	}
	return result, nil
}

// sendOneTx transitions one return and withdraws its unit from sale.
func (s *returnService) sendOneTx(ctx context.Context, tx pgx.Tx, returnID int) (int, error) {
	ret, err := scanReturn(tx.QueryRow(ctx, returnSelect+" WHERE r.id = $1 FOR UPDATE OF r", returnID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, notFoundError("return %d not found", returnID)
		}
		return 0, fmt.Errorf("failed to lock return %d: %w", returnID, err)
	}
	if ret.Status != ReturnReturned {
		return 0, invalidStateError("return %d is %s; only returned units can be sent", returnID, ret.Status)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE returns SET status = 'sent_to_supplier' WHERE id = $1", returnID); err != nil {
		return 0, fmt.Errorf("failed to update return %d: %w", returnID, err)
	}

	var requestID int
	err = tx.QueryRow(ctx, `
		INSERT INTO remplacer (return_id, marque, modele, stockage, type, type_carton, imei,
		                       is_special_sale_item, source_achat_id, resolution_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'PENDING')
		RETURNING id
	`, ret.ID, ret.Brand, ret.Model, ret.Storage, ret.Type, ret.CartonType, ret.Serial,
		ret.IsDirectSale, ret.SourcePurchaseID).Scan(&requestID)
	if err != nil {
		return 0, translatePgError(err, fmt.Sprintf("open replacement request for return %d", returnID))
	}

	// The return put the line back in stock; shipping takes those same units out again.
	if ret.ProductID != nil {
		var quantity int
		if err := tx.QueryRow(ctx,
			"SELECT quantite_vendue FROM vente_items WHERE id = $1", ret.SaleItemID,
		).Scan(&quantity); err != nil {
			return 0, fmt.Errorf("failed to read returned quantity of return %d: %w", returnID, err)
		}
		if err := s.inventory.WithdrawUnitTx(ctx, tx, *ret.ProductID, quantity); err != nil {
			return 0, err
		}
	}
	return requestID, nil
}

func (s *returnService) ResolveReplacement(ctx context.Context, in ResolveInput) (*ReplacementRequest, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := s.ResolveReplacementTx(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit replacement resolution: %w", err)
	}
	return req, nil
}

func (s *returnService) ResolveReplacementBatch(ctx context.Context, inputs []ResolveInput) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, validationError("at least one replacement request is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result := newBatchResult()
	for i, in := range inputs {
		key := strconv.Itoa(in.RequestID)
		err := withSavepoint(ctx, tx, func(sp pgx.Tx) error {
			_, err := s.ResolveReplacementTx(ctx, sp, in)
			return err
		})
		if err != nil {
			if KindOf(err) == "" {
				return nil, err
			}
			s.logger.Warn("replacement not resolved", zap.Int("request_id", in.RequestID), zap.Error(err))
			result.fail(i, key, err)
			continue
		}
		result.ok(i, key, in.RequestID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit replacement batch: %w", err)
	}
	return result, nil
}

func (s *returnService) ListReturns(ctx context.Context, status ReturnStatus) ([]Return, error) {
	rows, err := s.pool.Query(ctx, returnSelect+`
		WHERE ($1 = '' OR r.status = $1)
		ORDER BY r.return_date DESC, r.id DESC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query returns: %w", err)
	}
	defer rows.Close()

	returns := []Return{}
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan return: %w", err)
		}
		returns = append(returns, *r)
	}
	return returns, rows.Err()
}

func (s *returnService) ListReplacements(ctx context.Context, resolution Resolution) ([]ReplacementRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+replacementColumns+`
		FROM remplacer
		WHERE ($1 = '' OR resolution_status = $1)
		ORDER BY date_sent_to_supplier DESC, id DESC
	`, string(resolution))
	if err != nil {
		return nil, fmt.Errorf("failed to query replacement requests: %w", err)
	}
	defer rows.Close()

	requests := []ReplacementRequest{}
	for rows.Next() {
		r, err := scanReplacement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan replacement request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (s *returnService) ResolveReplacementTx(ctx context.Context, tx pgx.Tx, in ResolveInput) (*ReplacementRequest, error) {
	if in.Resolution != ResolutionRepaired && in.Resolution != ResolutionReplaced {
		return nil, validationError("resolution must be REPAIRED or REPLACED, got %q", in.Resolution)
	}

	var current Resolution
	var originalProductID *int
	var quantity int
	err := tx.QueryRow(ctx, `
		SELECT repl.resolution_status, r.product_id, vi.quantite_vendue
		FROM remplacer repl
		JOIN returns r      ON r.id = repl.return_id
		JOIN vente_items vi ON vi.id = r.vente_item_id
		WHERE repl.id = $1
		FOR UPDATE OF repl
	`, in.RequestID).Scan(&current, &originalProductID, &quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundError("replacement request %d not found", in.RequestID)
		}
		return nil, fmt.Errorf("failed to lock replacement request %d: %w", in.RequestID, err)
	}
	if current != ResolutionPending {
		return nil, invalidStateError("replacement request %d is already %s", in.RequestID, current)
	}

	var replacementProductID *int
	switch in.Resolution {
	case ResolutionRepaired:
		if originalProductID == nil {
			return nil, invalidStateError("replacement request %d has no stock product to reinstate", in.RequestID)
		}
		if err := s.inventory.ReinstateUnitTx(ctx, tx, *originalProductID, quantity); err != nil {
			return nil, err
		}

	case ResolutionReplaced:
		if in.NewUnit == nil {
			return nil, validationError("new unit details are required for a replacement")
		}
		identity := in.NewUnit.Identity.Normalize()
		if err := identity.Validate(); err != nil {
			return nil, err
		}
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM products WHERE imei = $1)", identity.Serial,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check serial %s: %w", identity.Serial, err)
		}
		if exists {
			return nil, duplicateError(ErrDuplicateSerial.Code, "serial %s already exists in stock", identity.Serial)
		}
		product, err := s.inventory.ApplyStockDeltaTx(ctx, tx, StockDelta{
			Identity:   identity,
			Delta:      1,
			CostPrice:  in.NewUnit.CostPrice,
			SalePrice:  in.NewUnit.SalePrice,
			SupplierID: in.NewUnit.SupplierID,
		})
		if err != nil {
			return nil, err
		}
		replacementProductID = &product.ID
	}

	tag, err := tx.Exec(ctx, `
		UPDATE remplacer
		SET resolution_status = $1, received_date = NOW(), replacement_product_id = $2
		WHERE id = $3 AND resolution_status = 'PENDING'
	`, string(in.Resolution), replacementProductID, in.RequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve replacement request %d: %w", in.RequestID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, invalidStateError("replacement request %d is no longer pending", in.RequestID)
	}
	return getReplacement(ctx, tx, in.RequestID)
}
