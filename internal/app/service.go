package app

import (
	"context"
	"errors"
	"io"

	"reseller-ledger/internal/core"

	"github.com/invopop/jsonschema"
)

var (
	// ErrInvalidCredentials is returned by AuthenticateUser for any unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrIntakeDisabled is returned by DraftPurchase when no AI key is configured.
	ErrIntakeDisabled = errors.New("purchase intake agent is not configured")
)

// ApplicationService is the single interface all UI adapters (REPL, CLI, Web) call.
// Implementations contain no presentation logic.
type ApplicationService interface {
	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error

	// ── Inventory ─────────────────────────────────────────────────────────────
	ListProducts(ctx context.Context, filter core.ProductFilter) ([]core.Product, error)
	GetProduct(ctx context.Context, productID int) (*core.Product, error)
	UpdateProduct(ctx context.Context, productID int, req ProductUpdateRequest) (*core.Product, error)
	DeleteProduct(ctx context.Context, productID int) error
	SetProductStatus(ctx context.Context, productID int, status core.ProductStatus) (*core.Product, error)
	StockSummary(ctx context.Context) ([]core.StockSummaryRow, error)
	// AddSerialBatch receives a lot of six-digit serials; each serial succeeds or fails alone.
	AddSerialBatch(ctx context.Context, req SerialBatchRequest) (*core.BatchResult, error)
	// ImportSerialBatch reads the serials of a batch from the first column of an .xlsx workbook.
	ImportSerialBatch(ctx context.Context, req SerialBatchRequest, workbook io.Reader) (*core.BatchResult, error)

	// ── Purchases ─────────────────────────────────────────────────────────────
	ListPurchases(ctx context.Context, filter core.PurchaseFilter) ([]core.Purchase, error)
	RecordPurchase(ctx context.Context, req core.PurchaseInput) (*core.PurchaseResult, error)
	RecordDirectSale(ctx context.Context, req core.DirectSalePurchaseInput) (*core.DirectSaleResult, error)
	// DraftPurchase asks the intake agent to read a supplier message. Nothing is recorded.
	DraftPurchase(ctx context.Context, req IntakeRequest) (*IntakeResult, error)

	// ── Sales & invoices ──────────────────────────────────────────────────────
	ListSales(ctx context.Context, filter core.SaleFilter) ([]core.Sale, error)
	GetSale(ctx context.Context, saleID int) (*core.Sale, error)
	CreateSale(ctx context.Context, req core.SaleInput) (*core.Sale, error)
	ListInvoices(ctx context.Context, filter core.InvoiceFilter) ([]core.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID int) (*core.Invoice, error)
	CreateInvoice(ctx context.Context, req core.InvoiceInput) (*core.Invoice, error)
	RecordPayment(ctx context.Context, invoiceID int, req core.PaymentInput) (*core.Invoice, error)
	CancelInvoice(ctx context.Context, invoiceID int, reason string) (*core.Invoice, error)
	ReturnItem(ctx context.Context, invoiceID int, req ReturnItemRequest) (*core.ReturnItemResult, error)

	// ── Returns & replacements ────────────────────────────────────────────────
	ListReturns(ctx context.Context, status core.ReturnStatus) ([]core.Return, error)
	SendToSupplier(ctx context.Context, returnIDs []int) (*core.BatchResult, error)
	ListReplacements(ctx context.Context, resolution core.Resolution) ([]core.ReplacementRequest, error)
	ResolveReplacement(ctx context.Context, req core.ResolveInput) (*core.ReplacementRequest, error)
	ResolveReplacementBatch(ctx context.Context, reqs []core.ResolveInput) (*core.BatchResult, error)

	// ── Reports ───────────────────────────────────────────────────────────────
	ProfitReport(ctx context.Context, q core.ProfitQuery) (*core.ProfitReport, error)
	DailyProfit(ctx context.Context, q core.ProfitQuery) ([]core.DailyProfit, error)

	// ── Clients & suppliers ───────────────────────────────────────────────────
	ListClients(ctx context.Context) ([]core.Client, error)
	GetClient(ctx context.Context, clientID int) (*core.Client, error)
	CreateClient(ctx context.Context, req core.PartyInput) (*core.Client, error)
	UpdateClient(ctx context.Context, clientID int, req core.PartyInput) (*core.Client, error)
	DeleteClient(ctx context.Context, clientID int) error
	ListSuppliers(ctx context.Context) ([]core.Supplier, error)
	GetSupplier(ctx context.Context, supplierID int) (*core.Supplier, error)
	CreateSupplier(ctx context.Context, req core.PartyInput) (*core.Supplier, error)
	UpdateSupplier(ctx context.Context, supplierID int, req core.PartyInput) (*core.Supplier, error)
	DeleteSupplier(ctx context.Context, supplierID int) error

	// ── Users ─────────────────────────────────────────────────────────────────
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)
	GetUser(ctx context.Context, userID int) (*core.User, error)
	// CreateUser hashes the password with bcrypt and stores the user.
	CreateUser(ctx context.Context, req CreateUserRequest) (*core.User, error)

	// ── Schemas ───────────────────────────────────────────────────────────────
	SchemaNames() []string
	Schema(name string) (*jsonschema.Schema, bool)
}
