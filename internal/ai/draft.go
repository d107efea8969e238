package ai

import (
	"errors"
	"fmt"
	"strings"

	"reseller-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// PurchaseDraft is the structured answer of the intake agent. Every field is
// required by the strict response schema; empty strings stand for "not stated".
type PurchaseDraft struct {
	SupplierName         string      `json:"supplier_name" jsonschema_description:"One of the known suppliers, or empty"`
	Lines                []DraftLine `json:"lines"`
	Confidence           float64     `json:"confidence"`
	Reasoning            string      `json:"reasoning"`
	ClarificationNeeded  bool        `json:"clarification_needed"`
	ClarificationMessage string      `json:"clarification_message"`
}

// DraftLine is one unit identity with its prices and quantity.
type DraftLine struct {
	Brand      string `json:"brand"`
	Model      string `json:"model"`
	Storage    string `json:"storage"`
	Type       string `json:"type" jsonschema_description:"Lot type such as CARTON or ARRIVAGE"`
	CartonType string `json:"carton_type"`
	Serial     string `json:"serial" jsonschema_description:"IMEI or serial number exactly as written"`
	CostPrice  string `json:"cost_price"`
	SalePrice  string `json:"sale_price"`
	Quantity   int    `json:"quantity"`
}

// Normalize trims every text field and upper-cases lot types.
func (d *PurchaseDraft) Normalize() {
	d.SupplierName = strings.TrimSpace(d.SupplierName)
	d.ClarificationMessage = strings.TrimSpace(d.ClarificationMessage)
	for i := range d.Lines {
		l := &d.Lines[i]
		l.Brand = strings.TrimSpace(l.Brand)
		l.Model = strings.TrimSpace(l.Model)
		l.Storage = strings.TrimSpace(l.Storage)
		l.Type = strings.ToUpper(strings.TrimSpace(l.Type))
		l.CartonType = strings.TrimSpace(l.CartonType)
		l.Serial = strings.TrimSpace(l.Serial)
		l.CostPrice = strings.TrimSpace(l.CostPrice)
		l.SalePrice = strings.TrimSpace(l.SalePrice)
		if l.Quantity == 0 {
			l.Quantity = 1
		}
	}
}

// Validate checks a normalized draft.
func (d *PurchaseDraft) Validate() error {
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %.2f out of range", d.Confidence)
	}
	if d.ClarificationNeeded {
		if d.ClarificationMessage == "" {
			return errors.New("clarification requested without a question")
		}
		return nil
	}
	if len(d.Lines) == 0 {
		return errors.New("draft has no lines")
	}
	var errs []error
	for i, l := range d.Lines {
		if _, err := l.input(nil); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// PurchaseInputs converts the draft into purchase requests for supplierID.
func (d *PurchaseDraft) PurchaseInputs(supplierID *int) ([]core.PurchaseInput, error) {
	if d.ClarificationNeeded {
		return nil, errors.New("draft is a clarification request")
	}
	inputs := make([]core.PurchaseInput, 0, len(d.Lines))
	for i, l := range d.Lines {
		in, err := l.input(supplierID)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func (l DraftLine) input(supplierID *int) (core.PurchaseInput, error) {
	opt := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	identity := core.UnitIdentity{
		Brand:      l.Brand,
		Model:      l.Model,
		Storage:    opt(l.Storage),
		Type:       opt(l.Type),
		CartonType: opt(l.CartonType),
		Serial:     l.Serial,
	}.Normalize()
	if err := identity.Validate(); err != nil {
		return core.PurchaseInput{}, err
	}
	if l.Quantity < 1 {
		return core.PurchaseInput{}, fmt.Errorf("quantity must be positive, got %d", l.Quantity)
	}

	cost, err := decimal.NewFromString(l.CostPrice)
	if err != nil {
		return core.PurchaseInput{}, fmt.Errorf("invalid cost price %q", l.CostPrice)
	}
	if cost.IsNegative() {
		return core.PurchaseInput{}, fmt.Errorf("cost price cannot be negative")
	}
	sale := decimal.Zero
	if l.SalePrice != "" {
		if sale, err = decimal.NewFromString(l.SalePrice); err != nil {
			return core.PurchaseInput{}, fmt.Errorf("invalid sale price %q", l.SalePrice)
		}
	}

	return core.PurchaseInput{
		Identity:   identity,
		CostPrice:  cost,
		SalePrice:  sale,
		Quantity:   l.Quantity,
		SupplierID: supplierID,
	}, nil
}
