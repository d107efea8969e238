package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnitIdentity is the tuple that identifies a stock-keeping unit.
// Nil optional attributes compare equal to each other.
type UnitIdentity struct {
	Brand      string  `json:"brand" jsonschema:"minLength=1"`
	Model      string  `json:"model" jsonschema:"minLength=1"`
	Storage    *string `json:"storage,omitempty"`
	Type       *string `json:"type,omitempty" jsonschema_description:"Lot type, e.g. CARTON or ARRIVAGE"`
	CartonType *string `json:"carton_type,omitempty"`
	Serial     string  `json:"serial" jsonschema:"minLength=1" jsonschema_description:"IMEI or serial number"`
}

// Normalize trims every attribute and turns blank optionals into nil.
func (u UnitIdentity) Normalize() UnitIdentity {
	opt := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		if v == "" {
			return nil
		}
		return &v
	}
	return UnitIdentity{
		Brand:      strings.TrimSpace(u.Brand),
		Model:      strings.TrimSpace(u.Model),
		Storage:    opt(u.Storage),
		Type:       opt(u.Type),
		CartonType: opt(u.CartonType),
		Serial:     strings.TrimSpace(u.Serial),
	}
}

// Validate checks the required attributes of a normalized identity.
func (u UnitIdentity) Validate() error {
	switch {
	case u.Brand == "":
		return validationError("brand is required")
	case u.Model == "":
		return validationError("model is required")
	case u.Serial == "":
		return validationError("serial is required")
	}
	if u.Type != nil && strings.EqualFold(*u.Type, "CARTON") &&
		strings.EqualFold(u.Brand, "iphone") && u.CartonType == nil {
		return validationError("carton type is required for CARTON iPhones")
	}
	return nil
}

// Product is a stock row (products).
type Product struct {
	ID int `json:"id"`
	UnitIdentity
	CostPrice    decimal.Decimal `json:"cost_price"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	Quantity     int             `json:"quantity"`
	Status       ProductStatus   `json:"status"`
	SupplierID   *int            `json:"supplier_id,omitempty"`
	SupplierName *string         `json:"supplier_name,omitempty"` // joined from fournisseurs
	AddedAt      time.Time       `json:"added_at"`
}

// StockSummaryRow aggregates active quantity per identity, serial excluded.
type StockSummaryRow struct {
	Brand      string  `json:"brand"`
	Model      string  `json:"model"`
	Storage    *string `json:"storage,omitempty"`
	Type       *string `json:"type,omitempty"`
	CartonType *string `json:"carton_type,omitempty"`
	Quantity   int     `json:"quantity"`
	Units      int     `json:"units"`
}

// Purchase is an acquisition record (achats).
type Purchase struct {
	ID int `json:"id"`
	UnitIdentity
	Date       time.Time       `json:"date"`
	CostPrice  decimal.Decimal `json:"cost_price"`
	Quantity   int             `json:"quantity"`
	Settlement SettlementKind  `json:"settlement"`
	SupplierID *int            `json:"supplier_id,omitempty"`
	ProductID  *int            `json:"product_id,omitempty"`
	SaleID     *int            `json:"sale_id,omitempty"`
}

// Client is a buyer (clients).
type Client struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Address   *string   `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Supplier is a vendor of units (fournisseurs).
type Supplier struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Address   *string   `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sale is a transaction with one client (ventes).
// Totals, paid amount and status are written only by the invoice manager after creation.
type Sale struct {
	ID            int             `json:"id"`
	ClientID      int             `json:"client_id"`
	ClientName    string          `json:"client_name"` // joined from clients
	Date          time.Time       `json:"date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	IsDirectSale  bool            `json:"is_direct_sale"`
	InvoiceID     *int            `json:"invoice_id,omitempty"`
	Items         []SaleItem      `json:"items,omitempty"`
}

// SaleItem is one line of a sale (vente_items). Prices are snapshots taken at sale time.
type SaleItem struct {
	ID     int `json:"id"`
	SaleID int `json:"sale_id"`
	UnitIdentity
	ProductID          *int            `json:"product_id,omitempty"`
	SourcePurchaseID   *int            `json:"source_purchase_id,omitempty"`
	UnitCostPrice      decimal.Decimal `json:"unit_cost_price"`
	UnitSalePrice      decimal.Decimal `json:"unit_sale_price"`
	QuantitySold       int             `json:"quantity_sold"`
	Status             ItemStatus      `json:"status"`
	CancellationReason *string         `json:"cancellation_reason,omitempty"`
	RefundedAmount     decimal.Decimal `json:"refunded_amount"`
	IsDirectSale       bool            `json:"is_direct_sale"`
}

// LineValue is unit sale price × quantity.
func (i SaleItem) LineValue() decimal.Decimal {
	return i.UnitSalePrice.Mul(decimal.NewFromInt(int64(i.QuantitySold)))
}

// Invoice is the billing document of one sale (factures).
type Invoice struct {
	ID                 int             `json:"id"`
	SaleID             int             `json:"sale_id"`
	Number             string          `json:"number"`
	Date               time.Time       `json:"date"`
	OriginalAmount     decimal.Decimal `json:"original_amount"`
	AmountDue          decimal.Decimal `json:"amount_due"`
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	AmountRefunded     decimal.Decimal `json:"amount_refunded"`
	Status             InvoiceStatus   `json:"status"`
	Observation        *string         `json:"observation,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason *string         `json:"cancellation_reason,omitempty"`
	LastReturnAt       *time.Time      `json:"last_return_at,omitempty"`
	ClientID           int             `json:"client_id"`   // joined from ventes
	ClientName         string          `json:"client_name"` // joined from clients
	Items              []SaleItem      `json:"items,omitempty"`
}

// Return is a customer return of one sale line (returns).
type Return struct {
	ID               int    `json:"id"`
	SaleItemID       int    `json:"sale_item_id"`
	InvoiceID        *int   `json:"invoice_id,omitempty"`
	ClientID         int    `json:"client_id"`
	ClientName       string `json:"client_name,omitempty"` // joined from clients
	ProductID        *int   `json:"product_id,omitempty"`
	SourcePurchaseID *int   `json:"source_purchase_id,omitempty"`
	UnitIdentity
	Reason         string          `json:"reason"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
	Date           time.Time       `json:"date"`
	Status         ReturnStatus    `json:"status"`
	IsDirectSale   bool            `json:"is_direct_sale"`
}

// ReplacementRequest tracks a return sent back to the supplier (remplacer).
type ReplacementRequest struct {
	ID       int `json:"id"`
	ReturnID int `json:"return_id"`
	UnitIdentity
	SentAt               time.Time  `json:"sent_at"`
	IsDirectSale         bool       `json:"is_direct_sale"`
	SourcePurchaseID     *int       `json:"source_purchase_id,omitempty"`
	Resolution           Resolution `json:"resolution"`
	ReceivedAt           *time.Time `json:"received_at,omitempty"`
	ReplacementProductID *int       `json:"replacement_product_id,omitempty"`
}
