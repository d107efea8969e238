package ai

import (
	"testing"

	"reseller-ledger/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDraft(t *testing.T) {
	content := []byte(`{
		"supplier_name": " Grossiste Oran ",
		"lines": [
			{"brand": "iPhone", "model": "13", "storage": "128GB", "type": "carton", "carton_type": "scellé",
			 "serial": "356789012345678", "cost_price": "95000", "sale_price": "", "quantity": 0},
			{"brand": "Samsung", "model": "A54", "storage": "", "type": "", "carton_type": "",
			 "serial": "R58N123", "cost_price": "42000.50", "sale_price": "48000", "quantity": 2}
		],
		"confidence": 0.8,
		"reasoning": "two units listed",
		"clarification_needed": false,
		"clarification_message": ""
	}`)

	draft, err := ParseDraft(content)
	require.NoError(t, err)
	assert.Equal(t, "Grossiste Oran", draft.SupplierName)
	assert.Equal(t, "CARTON", draft.Lines[0].Type)
	assert.Equal(t, 1, draft.Lines[0].Quantity)

	supplierID := 4
	inputs, err := draft.PurchaseInputs(&supplierID)
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	assert.Equal(t, "356789012345678", inputs[0].Identity.Serial)
	assert.True(t, inputs[0].SalePrice.IsZero(), "empty sale price defers to the default markup")
	assert.Nil(t, inputs[1].Identity.Storage)
	assert.Equal(t, "42000.5", inputs[1].CostPrice.String())
	assert.Equal(t, 2, inputs[1].Quantity)
	assert.Equal(t, &supplierID, inputs[1].SupplierID)
}

func TestParseDraft_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `nope`},
		{"no lines", `{"lines": [], "confidence": 0.5}`},
		{"missing serial", `{"lines": [{"brand": "Oppo", "model": "A78", "cost_price": "10"}], "confidence": 0.5}`},
		{"bad price", `{"lines": [{"brand": "Oppo", "model": "A78", "serial": "1", "cost_price": "ten"}], "confidence": 0.5}`},
		{"carton iphone without carton type", `{"lines": [{"brand": "iphone", "model": "14", "type": "CARTON", "serial": "1", "cost_price": "10"}], "confidence": 0.5}`},
		{"confidence out of range", `{"lines": [{"brand": "Oppo", "model": "A78", "serial": "1", "cost_price": "10"}], "confidence": 3}`},
		{"clarification without question", `{"clarification_needed": true, "confidence": 0.1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDraft([]byte(tt.content))
			assert.Error(t, err)
		})
	}
}

func TestParseDraft_Clarification(t *testing.T) {
	draft, err := ParseDraft([]byte(`{"clarification_needed": true, "clarification_message": "Which models?", "confidence": 0.2}`))
	require.NoError(t, err)
	_, err = draft.PurchaseInputs(nil)
	assert.Error(t, err)
}

// Strict structured output requires every property to be listed as required.
func TestDraftSchemaIsStrict(t *testing.T) {
	m, err := schema.AsMap(PurchaseDraft{})
	require.NoError(t, err)

	assertStrict(t, m)
	line := m["properties"].(map[string]any)["lines"].(map[string]any)["items"].(map[string]any)
	assertStrict(t, line)
}

func assertStrict(t *testing.T, obj map[string]any) {
	t.Helper()
	assert.Equal(t, false, obj["additionalProperties"])
	props := obj["properties"].(map[string]any)
	required := obj["required"].([]any)
	assert.Len(t, required, len(props))
}
