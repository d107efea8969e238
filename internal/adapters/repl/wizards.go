package repl

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"reseller-ledger/internal/app"
	"reseller-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// newSale runs an interactive sale for clientName, then offers to invoice it.
func (c *console) newSale(ctx context.Context, clientName string) error {
	fmt.Fprintf(c.out, "Selling to: %s\n", clientName)
	fmt.Fprintln(c.out, "Enter lines. Type 'done' when finished, 'cancel' to abort.")
	fmt.Fprintln(c.out, "Format per line: <product-id> [quantity] [unit-price]")
	fmt.Fprintln(c.out, "  Example: 42")
	fmt.Fprintln(c.out, "  Example: 42 1 450.00   (overrides the product's sale price)")

	var items []core.SaleItemInput
	for lineNum := 1; ; {
		raw := c.readLine(fmt.Sprintf("  Line %d: ", lineNum))
		if strings.EqualFold(raw, "cancel") {
			fmt.Fprintln(c.out, "Sale cancelled.")
			return nil
		}
		if strings.EqualFold(raw, "done") {
			break
		}
		if raw == "" {
			if c.eof {
				return nil
			}
			continue
		}
		item, err := parseSaleLine(raw)
		if err != nil {
			fmt.Fprintf(c.out, "  %v\n", err)
			continue
		}
		items = append(items, item)
		lineNum++
	}

	if len(items) == 0 {
		fmt.Fprintln(c.out, "No lines entered. Sale not created.")
		return nil
	}

	paid := decimal.Zero
	if v := c.readLine("Amount paid now [0]: "); v != "" {
		p, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid amount %q", v)
		}
		paid = p
	}

	sale, err := c.svc.CreateSale(ctx, core.SaleInput{
		Client:     core.ClientRef{Name: clientName},
		Items:      items,
		AmountPaid: paid,
	})
	if err != nil {
		return err
	}
	printSale(c.out, sale)

	if choice := strings.ToLower(c.readLine("\nCreate invoice now? (y/n): ")); choice != "y" && choice != "yes" {
		fmt.Fprintf(c.out, "Use '/invoice %d' to invoice it later.\n", sale.ID)
		return nil
	}
	inv, err := c.svc.CreateInvoice(ctx, core.InvoiceInput{SaleID: sale.ID})
	if err != nil {
		return err
	}
	printInvoice(c.out, inv)
	return nil
}

func parseSaleLine(raw string) (core.SaleItemInput, error) {
	parts := strings.Fields(raw)
	productID, err := parseID(parts[0])
	if err != nil {
		return core.SaleItemInput{}, errors.New("invalid product id")
	}
	item := core.SaleItemInput{ProductID: productID, Quantity: 1}
	if len(parts) >= 2 {
		qty, err := strconv.Atoi(parts[1])
		if err != nil || qty <= 0 {
			return core.SaleItemInput{}, errors.New("invalid quantity")
		}
		item.Quantity = qty
	}
	if len(parts) >= 3 {
		price, err := decimal.NewFromString(parts[2])
		if err != nil || price.IsNegative() {
			return core.SaleItemInput{}, errors.New("invalid price")
		}
		item.UnitSalePrice = price
	}
	return item, nil
}

// intake sends a supplier message to the agent, answers up to three clarification
// rounds, and records the purchase lines only after explicit approval.
func (c *console) intake(ctx context.Context, input string) error {
	fmt.Fprintln(c.out, "[AI] Reading the supplier message...")
	accumulated := input

	for round := 1; ; round++ {
		if round > 3 {
			fmt.Fprintln(c.out, "Could not produce a draft. Record the purchase by hand instead.")
			return nil
		}

		res, err := c.svc.DraftPurchase(ctx, app.IntakeRequest{Description: accumulated})
		if err != nil {
			if errors.Is(err, app.ErrIntakeDisabled) {
				fmt.Fprintln(c.out, "The intake agent is not configured. Type /help for commands.")
				return nil
			}
			return err
		}

		if res.Draft.ClarificationNeeded {
			fmt.Fprintf(c.out, "\n[AI]: %s\n", res.Draft.ClarificationMessage)
			followUp := c.readLine("> ")

			// Slash command during clarification: drop the draft and run it.
			if strings.HasPrefix(followUp, "/") {
				fmt.Fprintln(c.out, "(intake cancelled)")
				return c.dispatch(ctx, followUp)
			}
			if followUp == "" || strings.EqualFold(followUp, "cancel") {
				fmt.Fprintln(c.out, "Cancelled.")
				return nil
			}
			accumulated = fmt.Sprintf("Original message: %s\nClarification requested: %s\nUser response: %s",
				accumulated, res.Draft.ClarificationMessage, followUp)
			continue
		}

		printDraft(c.out, res)
		if res.Draft.Confidence < 0.6 {
			fmt.Fprintln(c.out, "\nWARNING: Low confidence draft. Check every line.")
		}
		if res.SupplierID == nil {
			fmt.Fprintln(c.out, "\nNo known supplier matched; the purchase will be recorded without one.")
		}

		choice := strings.ToLower(c.readLine("\nRecord this purchase? (y/n): "))
		if choice != "y" && choice != "yes" {
			fmt.Fprintln(c.out, "Purchase discarded.")
			return nil
		}
		recorded := 0
		for i, in := range res.Inputs {
			if _, err := c.svc.RecordPurchase(ctx, in); err != nil {
				fmt.Fprintf(c.out, "  line %d FAILED: %v\n", i+1, err)
				continue
			}
			recorded++
		}
		fmt.Fprintf(c.out, "%d of %d lines recorded.\n", recorded, len(res.Inputs))
		return nil
	}
}
