package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"reseller-ledger/internal/schema"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// IntakeAgent turns a supplier's free-text lot description into a purchase draft.
// Drafts are never recorded by the agent; a person reviews and submits them.
type IntakeAgent interface {
	DraftPurchase(ctx context.Context, description, suppliers string) (*PurchaseDraft, error)
}

type Agent struct {
	client *openai.Client
	model  string
}

func NewAgent(apiKey, model string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = string(shared.ChatModelGPT4o)
	}
	return &Agent{client: &client, model: model}
}

func (a *Agent) DraftPurchase(ctx context.Context, description, suppliers string) (*PurchaseDraft, error) {
	prompt := fmt.Sprintf(`You are the stock clerk of a phone reseller.
Read the supplier's message and list the units it describes.
Rules:
1. One line per distinct unit identity (brand, model, storage, type, carton type, serial/IMEI).
2. Use empty strings for attributes that are not stated. Never invent serials.
3. Prices are exact decimal strings in the purchase currency (e.g. "45000.00"); leave sale_price empty unless stated.
4. supplier_name must be one of the known suppliers below, or empty.
5. If the message is too vague to list any unit, set clarification_needed and ask one question.
6. Provide a confidence score (0.0-1.0) and explain your reasoning.

Known suppliers:
%s

Message: %s`, suppliers, description)

	schemaMap, err := schema.AsMap(PurchaseDraft{})
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(a.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "purchase_draft",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("Units described by a supplier message, ready for review"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}
	return ParseDraft([]byte(content))
}

// ParseDraft decodes, normalizes and validates a model answer.
func ParseDraft(content []byte) (*PurchaseDraft, error) {
	var draft PurchaseDraft
	if err := json.Unmarshal(content, &draft); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("draft validation failed: %w", err)
	}
	return &draft, nil
}
