package app

import (
	"reseller-ledger/internal/ai"
	"reseller-ledger/internal/core"
)

// UserSession is returned by AuthenticateUser.
type UserSession struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IntakeResult is returned by DraftPurchase. Inputs is empty when the agent asked a question.
type IntakeResult struct {
	Draft      *ai.PurchaseDraft    `json:"draft"`
	SupplierID *int                 `json:"supplier_id,omitempty"`
	Inputs     []core.PurchaseInput `json:"inputs"`
}
