package app

import (
	"reseller-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// SerialBatchRequest is a lot of serials sharing brand, model, prices and supplier.
type SerialBatchRequest struct {
	Brand      string          `json:"brand" jsonschema:"minLength=1"`
	Model      string          `json:"model" jsonschema:"minLength=1"`
	Storage    *string         `json:"storage,omitempty"`
	Type       *string         `json:"type,omitempty"`
	CartonType *string         `json:"carton_type,omitempty" jsonschema_description:"Required for CARTON iPhones"`
	Serials    []string        `json:"serials,omitempty" jsonschema_description:"Six-digit serials; omitted for spreadsheet imports"`
	CostPrice  decimal.Decimal `json:"cost_price"`
	SalePrice  decimal.Decimal `json:"sale_price"`
	SupplierID int             `json:"supplier_id" jsonschema:"minimum=1"`
}

func (r SerialBatchRequest) input(serials []string) core.SerialBatchInput {
	return core.SerialBatchInput{
		Brand:      r.Brand,
		Model:      r.Model,
		Storage:    r.Storage,
		Type:       r.Type,
		CartonType: r.CartonType,
		Serials:    serials,
		CostPrice:  r.CostPrice,
		SalePrice:  r.SalePrice,
		SupplierID: r.SupplierID,
	}
}

// ProductUpdateRequest replaces the editable attributes of a product.
type ProductUpdateRequest struct {
	Identity   core.UnitIdentity `json:"identity"`
	CostPrice  decimal.Decimal `json:"cost_price"`
	SalePrice  decimal.Decimal `json:"sale_price"`
	SupplierID *int            `json:"supplier_id,omitempty"`
}

// StatusRequest toggles a product's availability.
type StatusRequest struct {
	Status core.ProductStatus `json:"status" jsonschema:"enum=active,enum=inactive"`
}

// CancelInvoiceRequest carries the mandatory cancellation reason.
type CancelInvoiceRequest struct {
	Reason string `json:"reason" jsonschema:"minLength=1"`
}

// ReturnItemRequest takes one line of the invoice in the URL back.
type ReturnItemRequest struct {
	SaleItemID   int             `json:"sale_item_id" jsonschema:"minimum=1"`
	Reason       string          `json:"reason" jsonschema:"minLength=1"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

// SendToSupplierRequest lists the returns to ship back.
type SendToSupplierRequest struct {
	ReturnIDs []int `json:"return_ids" jsonschema:"minItems=1"`
}

// ResolveBatchRequest closes several replacement requests at once.
type ResolveBatchRequest struct {
	Requests []core.ResolveInput `json:"requests" jsonschema:"minItems=1"`
}

// IntakeRequest is a supplier message to turn into a purchase draft.
type IntakeRequest struct {
	Description string `json:"description" jsonschema:"minLength=1"`
	SupplierID  *int   `json:"supplier_id,omitempty" jsonschema_description:"Overrides the supplier named in the message"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" jsonschema:"minLength=1"`
	Password string `json:"password" jsonschema:"minLength=1"`
}

// CreateUserRequest is the input for creating a back-office user.
type CreateUserRequest struct {
	Username string
	Email    string
	Password string
	Role     string
}
