package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"reseller-ledger/internal/ai"
	"reseller-ledger/internal/core"
	"reseller-ledger/internal/schema"

	"github.com/invopop/jsonschema"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Services groups the domain services the application layer delegates to.
type Services struct {
	Inventory core.InventoryService
	Purchases core.PurchaseService
	Sales     core.SaleService
	Invoices  core.InvoiceService
	Returns   core.ReturnService
	Profit    core.ProfitService
	Parties   core.PartyService
	Users     core.UserService
}

// NewServices wires every domain service over one pool.
func NewServices(pool *pgxpool.Pool, logger *zap.Logger) Services {
	inventory := core.NewInventoryService(pool, logger)
	sales := core.NewSaleService(pool, inventory)
	return Services{
		Inventory: inventory,
		Purchases: core.NewPurchaseService(pool, inventory, sales),
		Sales:     sales,
		Invoices:  core.NewInvoiceService(pool, inventory, logger),
		Returns:   core.NewReturnService(pool, inventory, logger),
		Profit:    core.NewProfitService(pool),
		Parties:   core.NewPartyService(pool),
		Users:     core.NewUserService(pool),
	}
}

type appService struct {
	pool    *pgxpool.Pool
	svc     Services
	agent   ai.IntakeAgent
	schemas *schema.Registry
	logger  *zap.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
// agent may be nil, in which case DraftPurchase returns ErrIntakeDisabled.
func NewAppService(pool *pgxpool.Pool, svc Services, agent ai.IntakeAgent, logger *zap.Logger) ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &appService{
		pool:    pool,
		svc:     svc,
		agent:   agent,
		schemas: requestSchemas(),
		logger:  logger,
	}
}

// requestSchemas registers the JSON bodies accepted by the API.
func requestSchemas() *schema.Registry {
	r := schema.NewRegistry()
	r.Register("purchase", "Stock purchase of one unit identity", core.PurchaseInput{})
	r.Register("direct_sale", "Purchase sold on at once to a client", core.DirectSalePurchaseInput{})
	r.Register("serial_batch", "Lot of six-digit serials sharing one identity", SerialBatchRequest{})
	r.Register("product_update", "Editable product attributes", ProductUpdateRequest{})
	r.Register("product_status", "Product availability", StatusRequest{})
	r.Register("sale", "Basket sold to one client", core.SaleInput{})
	r.Register("invoice", "Invoice derived from a sale", core.InvoiceInput{})
	r.Register("payment", "Cumulative paid amount, optionally renegotiating the total", core.PaymentInput{})
	r.Register("cancel_invoice", "Invoice cancellation", CancelInvoiceRequest{})
	r.Register("return_item", "Return of one invoiced line", ReturnItemRequest{})
	r.Register("send_to_supplier", "Returns shipped back to their supplier", SendToSupplierRequest{})
	r.Register("resolve_replacement", "Outcome of a replacement request", core.ResolveInput{})
	r.Register("resolve_batch", "Several replacement outcomes", ResolveBatchRequest{})
	r.Register("party", "Client or supplier", core.PartyInput{})
	r.Register("intake", "Supplier message for the intake agent", IntakeRequest{})
	r.Register("purchase_draft", "Purchase draft produced by the intake agent", ai.PurchaseDraft{})
	r.Register("login", "Back-office credentials", LoginRequest{})
	return r
}

func (s *appService) Ping(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("database pool is not configured")
	}
	return s.pool.Ping(ctx)
}

// ── Inventory ─────────────────────────────────────────────────────────────────

func (s *appService) ListProducts(ctx context.Context, filter core.ProductFilter) ([]core.Product, error) {
	return s.svc.Inventory.ListProducts(ctx, filter)
}

func (s *appService) GetProduct(ctx context.Context, productID int) (*core.Product, error) {
	return s.svc.Inventory.GetProduct(ctx, productID)
}

func (s *appService) UpdateProduct(ctx context.Context, productID int, req ProductUpdateRequest) (*core.Product, error) {
	return s.svc.Inventory.UpdateProduct(ctx, productID, core.ProductUpdate{
		Identity:   req.Identity,
		CostPrice:  req.CostPrice,
		SalePrice:  req.SalePrice,
		SupplierID: req.SupplierID,
	})
}

func (s *appService) DeleteProduct(ctx context.Context, productID int) error {
	return s.svc.Inventory.DeleteProduct(ctx, productID)
}

func (s *appService) SetProductStatus(ctx context.Context, productID int, status core.ProductStatus) (*core.Product, error) {
	return s.svc.Inventory.SetStatus(ctx, productID, status)
}

func (s *appService) StockSummary(ctx context.Context) ([]core.StockSummaryRow, error) {
	return s.svc.Inventory.StockSummary(ctx)
}

func (s *appService) AddSerialBatch(ctx context.Context, req SerialBatchRequest) (*core.BatchResult, error) {
	return s.svc.Inventory.AddSerialBatch(ctx, req.input(req.Serials))
}

func (s *appService) ImportSerialBatch(ctx context.Context, req SerialBatchRequest, workbook io.Reader) (*core.BatchResult, error) {
	serials, err := ReadSerials(workbook)
	if err != nil {
		return nil, err
	}
	s.logger.Info("importing serial batch",
		zap.String("brand", req.Brand), zap.String("model", req.Model), zap.Int("serials", len(serials)))
	return s.svc.Inventory.AddSerialBatch(ctx, req.input(serials))
}

// ── Purchases ─────────────────────────────────────────────────────────────────

func (s *appService) ListPurchases(ctx context.Context, filter core.PurchaseFilter) ([]core.Purchase, error) {
	return s.svc.Purchases.ListPurchases(ctx, filter)
}

func (s *appService) RecordPurchase(ctx context.Context, req core.PurchaseInput) (*core.PurchaseResult, error) {
	return s.svc.Purchases.RecordPurchase(ctx, req)
}

func (s *appService) RecordDirectSale(ctx context.Context, req core.DirectSalePurchaseInput) (*core.DirectSaleResult, error) {
	return s.svc.Purchases.RecordDirectSalePurchase(ctx, req)
}

func (s *appService) DraftPurchase(ctx context.Context, req IntakeRequest) (*IntakeResult, error) {
	if s.agent == nil {
		return nil, ErrIntakeDisabled
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, core.NewValidationError("description is required")
	}

	suppliers, err := s.svc.Parties.ListSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	var known strings.Builder
	for _, sup := range suppliers {
		fmt.Fprintf(&known, "- %s\n", sup.Name)
	}
	if known.Len() == 0 {
		known.WriteString("(none)\n")
	}

	draft, err := s.agent.DraftPurchase(ctx, req.Description, known.String())
	if err != nil {
		return nil, fmt.Errorf("intake agent: %w", err)
	}

	result := &IntakeResult{Draft: draft, Inputs: []core.PurchaseInput{}, SupplierID: req.SupplierID}
	if result.SupplierID == nil {
		result.SupplierID = matchSupplier(suppliers, draft.SupplierName)
	}
	if draft.ClarificationNeeded {
		return result, nil
	}
	inputs, err := draft.PurchaseInputs(result.SupplierID)
	if err != nil {
		return nil, core.NewValidationError("%v", err)
	}
	result.Inputs = inputs
	s.logger.Info("purchase draft ready",
		zap.Int("lines", len(inputs)), zap.Float64("confidence", draft.Confidence))
	return result, nil
}

func matchSupplier(suppliers []core.Supplier, name string) *int {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	for _, sup := range suppliers {
		if strings.EqualFold(sup.Name, name) {
			id := sup.ID
			return &id
		}
	}
	return nil
}

// ── Sales & invoices ──────────────────────────────────────────────────────────

func (s *appService) ListSales(ctx context.Context, filter core.SaleFilter) ([]core.Sale, error) {
	return s.svc.Sales.ListSales(ctx, filter)
}

func (s *appService) GetSale(ctx context.Context, saleID int) (*core.Sale, error) {
	return s.svc.Sales.GetSale(ctx, saleID)
}

func (s *appService) CreateSale(ctx context.Context, req core.SaleInput) (*core.Sale, error) {
	return s.svc.Sales.CreateSale(ctx, req)
}

func (s *appService) ListInvoices(ctx context.Context, filter core.InvoiceFilter) ([]core.Invoice, error) {
	return s.svc.Invoices.ListInvoices(ctx, filter)
}

func (s *appService) GetInvoice(ctx context.Context, invoiceID int) (*core.Invoice, error) {
	return s.svc.Invoices.GetInvoice(ctx, invoiceID)
}

func (s *appService) CreateInvoice(ctx context.Context, req core.InvoiceInput) (*core.Invoice, error) {
	return s.svc.Invoices.CreateInvoice(ctx, req)
}

func (s *appService) RecordPayment(ctx context.Context, invoiceID int, req core.PaymentInput) (*core.Invoice, error) {
	return s.svc.Invoices.RecordPayment(ctx, invoiceID, req)
}

func (s *appService) CancelInvoice(ctx context.Context, invoiceID int, reason string) (*core.Invoice, error) {
	return s.svc.Invoices.CancelInvoice(ctx, invoiceID, reason)
}

func (s *appService) ReturnItem(ctx context.Context, invoiceID int, req ReturnItemRequest) (*core.ReturnItemResult, error) {
	return s.svc.Invoices.ReturnItem(ctx, core.ReturnItemInput{
		InvoiceID:    invoiceID,
		SaleItemID:   req.SaleItemID,
		Reason:       req.Reason,
		RefundAmount: req.RefundAmount,
	})
}

// ── Returns & replacements ────────────────────────────────────────────────────

func (s *appService) ListReturns(ctx context.Context, status core.ReturnStatus) ([]core.Return, error) {
	return s.svc.Returns.ListReturns(ctx, status)
}

func (s *appService) SendToSupplier(ctx context.Context, returnIDs []int) (*core.BatchResult, error) {
	return s.svc.Returns.SendToSupplier(ctx, returnIDs)
}

func (s *appService) ListReplacements(ctx context.Context, resolution core.Resolution) ([]core.ReplacementRequest, error) {
	return s.svc.Returns.ListReplacements(ctx, resolution)
}

func (s *appService) ResolveReplacement(ctx context.Context, req core.ResolveInput) (*core.ReplacementRequest, error) {
	return s.svc.Returns.ResolveReplacement(ctx, req)
}

func (s *appService) ResolveReplacementBatch(ctx context.Context, reqs []core.ResolveInput) (*core.BatchResult, error) {
	return s.svc.Returns.ResolveReplacementBatch(ctx, reqs)
}

// ── Reports ───────────────────────────────────────────────────────────────────

func (s *appService) ProfitReport(ctx context.Context, q core.ProfitQuery) (*core.ProfitReport, error) {
	return s.svc.Profit.ProfitReport(ctx, q)
}

func (s *appService) DailyProfit(ctx context.Context, q core.ProfitQuery) ([]core.DailyProfit, error) {
	return s.svc.Profit.DailyProfit(ctx, q)
}

// ── Clients & suppliers ───────────────────────────────────────────────────────

func (s *appService) ListClients(ctx context.Context) ([]core.Client, error) {
	return s.svc.Parties.ListClients(ctx)
}

func (s *appService) GetClient(ctx context.Context, clientID int) (*core.Client, error) {
	return s.svc.Parties.GetClient(ctx, clientID)
}

func (s *appService) CreateClient(ctx context.Context, req core.PartyInput) (*core.Client, error) {
	return s.svc.Parties.CreateClient(ctx, req)
}

func (s *appService) UpdateClient(ctx context.Context, clientID int, req core.PartyInput) (*core.Client, error) {
	return s.svc.Parties.UpdateClient(ctx, clientID, req)
}

func (s *appService) DeleteClient(ctx context.Context, clientID int) error {
	return s.svc.Parties.DeleteClient(ctx, clientID)
}

func (s *appService) ListSuppliers(ctx context.Context) ([]core.Supplier, error) {
	return s.svc.Parties.ListSuppliers(ctx)
}

func (s *appService) GetSupplier(ctx context.Context, supplierID int) (*core.Supplier, error) {
	return s.svc.Parties.GetSupplier(ctx, supplierID)
}

func (s *appService) CreateSupplier(ctx context.Context, req core.PartyInput) (*core.Supplier, error) {
	return s.svc.Parties.CreateSupplier(ctx, req)
}

func (s *appService) UpdateSupplier(ctx context.Context, supplierID int, req core.PartyInput) (*core.Supplier, error) {
	return s.svc.Parties.UpdateSupplier(ctx, supplierID, req)
}

func (s *appService) DeleteSupplier(ctx context.Context, supplierID int) error {
	return s.svc.Parties.DeleteSupplier(ctx, supplierID)
}

// ── Users ─────────────────────────────────────────────────────────────────────

func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	user, err := s.svc.Users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &UserSession{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

func (s *appService) GetUser(ctx context.Context, userID int) (*core.User, error) {
	return s.svc.Users.GetByID(ctx, userID)
}

func (s *appService) CreateUser(ctx context.Context, req CreateUserRequest) (*core.User, error) {
	if len(req.Password) < 8 {
		return nil, core.NewValidationError("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.svc.Users.Create(ctx, core.NewUser{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
	})
}

// ── Schemas ───────────────────────────────────────────────────────────────────

func (s *appService) SchemaNames() []string {
	return s.schemas.Names()
}

func (s *appService) Schema(name string) (*jsonschema.Schema, bool) {
	return s.schemas.Get(name)
}
