package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"reseller-ledger/internal/app"
	"reseller-ledger/internal/core"

	"github.com/shopspring/decimal"
)

var errExit = errors.New("exit")

// console binds one REPL session to its input and output.
type console struct {
	svc    app.ApplicationService
	reader *bufio.Reader
	out    io.Writer
	eof    bool
}

// Run starts the interactive REPL loop.
// It reads commands from reader, dispatches slash commands deterministically,
// and routes any other input to the purchase intake agent.
func Run(ctx context.Context, svc app.ApplicationService, reader *bufio.Reader, out io.Writer) {
	c := &console{svc: svc, reader: reader, out: out}

	fmt.Fprintln(out, "Reseller Ledger")
	fmt.Fprintln(out, "Paste a supplier message to draft a purchase, or use /help for commands.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	for {
		fmt.Fprint(out, "\n> ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			if err != nil {
				return
			}
			continue
		}

		// Slash prefix: deterministic command dispatcher, no AI invoked.
		if strings.HasPrefix(input, "/") {
			if err := c.dispatch(ctx, input); err != nil {
				if errors.Is(err, errExit) {
					fmt.Fprintln(out, "Goodbye!")
					return
				}
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			continue
		}

		if err := c.intake(ctx, input); err != nil {
			if errors.Is(err, errExit) {
				fmt.Fprintln(out, "Goodbye!")
				return
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

func (c *console) readLine(prompt string) string {
	fmt.Fprint(c.out, prompt)
	line, err := c.reader.ReadString('\n')
	if err != nil {
		c.eof = true
	}
	return strings.TrimSpace(line)
}

func (c *console) dispatch(ctx context.Context, input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch cmd {
	case "stock":
		rows, err := c.svc.StockSummary(ctx)
		if err != nil {
			return err
		}
		printStockSummary(c.out, rows)

	case "products":
		filter := core.ProductFilter{Status: core.ProductActive}
		if len(args) > 0 {
			filter = core.ProductFilter{Serial: args[0]}
		}
		products, err := c.svc.ListProducts(ctx, filter)
		if err != nil {
			return err
		}
		printProducts(c.out, products)

	case "sale", "new-sale":
		if len(args) < 1 {
			fmt.Fprintln(c.out, "Usage: /sale <client name>")
			return nil
		}
		return c.newSale(ctx, strings.Join(args, " "))

	case "invoice":
		if len(args) < 1 {
			fmt.Fprintln(c.out, "Usage: /invoice <sale-id> [observation]")
			return nil
		}
		saleID, err := parseID(args[0])
		if err != nil {
			return err
		}
		in := core.InvoiceInput{SaleID: saleID}
		if len(args) > 1 {
			obs := strings.Join(args[1:], " ")
			in.Observation = &obs
		}
		inv, err := c.svc.CreateInvoice(ctx, in)
		if err != nil {
			return err
		}
		printInvoice(c.out, inv)

	case "show":
		if len(args) < 1 {
			fmt.Fprintln(c.out, "Usage: /show <invoice-id>")
			return nil
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		inv, err := c.svc.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		printInvoice(c.out, inv)

	case "pay":
		if len(args) < 2 {
			fmt.Fprintln(c.out, "Usage: /pay <invoice-id> <amount-paid> [new-total]")
			return nil
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		paid, err := decimal.NewFromString(args[1])
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[1])
		}
		in := core.PaymentInput{AmountPaid: paid}
		if len(args) >= 3 {
			total, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid total %q", args[2])
			}
			in.NewTotal = &total
		}
		inv, err := c.svc.RecordPayment(ctx, id, in)
		if err != nil {
			return err
		}
		printInvoice(c.out, inv)

	case "cancel":
		if len(args) < 2 {
			fmt.Fprintln(c.out, "Usage: /cancel <invoice-id> <reason>")
			return nil
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		inv, err := c.svc.CancelInvoice(ctx, id, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Invoice %s CANCELLED. Active units restocked.\n", inv.Number)

	case "return":
		if len(args) < 4 {
			fmt.Fprintln(c.out, "Usage: /return <invoice-id> <item-id> <refund> <reason>")
			return nil
		}
		invoiceID, err := parseID(args[0])
		if err != nil {
			return err
		}
		itemID, err := parseID(args[1])
		if err != nil {
			return err
		}
		refund, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Errorf("invalid refund %q", args[2])
		}
		res, err := c.svc.ReturnItem(ctx, invoiceID, app.ReturnItemRequest{
			SaleItemID:   itemID,
			RefundAmount: refund,
			Reason:       strings.Join(args[3:], " "),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Return #%d recorded, unit restocked.\n", res.Return.ID)
		printInvoice(c.out, &res.Invoice)

	case "returns":
		var status core.ReturnStatus
		if len(args) > 0 {
			status = core.ReturnStatus(args[0])
		}
		returns, err := c.svc.ListReturns(ctx, status)
		if err != nil {
			return err
		}
		printReturns(c.out, returns)

	case "send":
		if len(args) < 1 {
			fmt.Fprintln(c.out, "Usage: /send <return-id> [return-id...]")
			return nil
		}
		ids := make([]int, 0, len(args))
		for _, a := range args {
			id, err := parseID(a)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		res, err := c.svc.SendToSupplier(ctx, ids)
		if err != nil {
			return err
		}
		printBatch(c.out, res)

	case "replacements":
		var resolution core.Resolution
		if len(args) > 0 {
			resolution = core.Resolution(strings.ToUpper(args[0]))
		}
		reqs, err := c.svc.ListReplacements(ctx, resolution)
		if err != nil {
			return err
		}
		printReplacements(c.out, reqs)

	case "repair", "repaired":
		if len(args) < 1 {
			fmt.Fprintln(c.out, "Usage: /repair <request-id>")
			return nil
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		req, err := c.svc.ResolveReplacement(ctx, core.ResolveInput{RequestID: id, Resolution: core.ResolutionRepaired})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Request #%d REPAIRED. Unit %s back in stock.\n", req.ID, req.Serial)

	case "profit":
		var q core.ProfitQuery
		if len(args) > 0 {
			day, err := time.ParseInLocation("2006-01-02", args[0], time.Local)
			if err != nil {
				return fmt.Errorf("invalid day %q, expected YYYY-MM-DD", args[0])
			}
			q.Day = &day
		}
		report, err := c.svc.ProfitReport(ctx, q)
		if err != nil {
			return err
		}
		printProfit(c.out, report)

	case "clients":
		clients, err := c.svc.ListClients(ctx)
		if err != nil {
			return err
		}
		printParties(c.out, "CLIENTS", clients)

	case "suppliers":
		suppliers, err := c.svc.ListSuppliers(ctx)
		if err != nil {
			return err
		}
		parties := make([]core.Client, len(suppliers))
		for i, s := range suppliers {
			parties[i] = core.Client(s)
		}
		printParties(c.out, "SUPPLIERS", parties)

	case "help", "h":
		printHelp(c.out)

	case "exit", "quit", "e", "q":
		return errExit

	default:
		fmt.Fprintf(c.out, "Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `
Stock
  /stock                              active quantity per model
  /products [serial]                  active products, or lookup by serial
Sales
  /sale <client name>                 interactive sale
  /invoice <sale-id> [observation]    invoice a sale
  /show <invoice-id>                  invoice detail
  /pay <invoice-id> <paid> [total]    set cumulative payment, optionally renegotiate
  /cancel <invoice-id> <reason>       cancel and restock
  /return <inv> <item> <refund> <why> take one line back
Returns
  /returns [returned|sent_to_supplier]
  /send <return-id>...                open replacement requests
  /replacements [PENDING|REPAIRED|REPLACED]
  /repair <request-id>                unit came back repaired
Reports
  /profit [YYYY-MM-DD]
  /clients   /suppliers
  /help      /exit

Any other input is read as a supplier message and drafted as a purchase.`)
}
