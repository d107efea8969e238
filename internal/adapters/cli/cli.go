package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"reseller-ledger/internal/app"
	"reseller-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// Usage lists the one-shot commands.
const Usage = `Commands:
  stock                                   active stock summary
  products [-status active] [-serial S]   list products
  profit   [-day D | -from D -to D] [-paid-only] [-daily]
  purchase                                record a purchase read as JSON from stdin
  sale                                    record a sale read as JSON from stdin
  import   -supplier N -brand B -model M -cost C -sale S [-storage X] [-type T] [-carton K] file.xlsx
  draft    "<supplier message>"           draft a purchase with the intake agent (nothing is recorded)
  adduser  -username U -email E [-role R] (password read from stdin)
  schema   <name>                         print the JSON Schema of a request body`

// Run executes a one-shot CLI command.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New(Usage)
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "stock":
		rows, err := svc.StockSummary(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, rows)

	case "products":
		fs := flag.NewFlagSet("products", flag.ContinueOnError)
		status := fs.String("status", "", "active or inactive")
		serial := fs.String("serial", "", "exact serial")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		products, err := svc.ListProducts(ctx, core.ProductFilter{Status: core.ProductStatus(*status), Serial: *serial})
		if err != nil {
			return err
		}
		return printJSON(stdout, products)

	case "profit":
		return runProfit(ctx, svc, rest, stdout)

	case "purchase":
		var in core.PurchaseInput
		if err := json.NewDecoder(stdin).Decode(&in); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		res, err := svc.RecordPurchase(ctx, in)
		if err != nil {
			return err
		}
		return printJSON(stdout, res)

	case "sale":
		var in core.SaleInput
		if err := json.NewDecoder(stdin).Decode(&in); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		res, err := svc.CreateSale(ctx, in)
		if err != nil {
			return err
		}
		return printJSON(stdout, res)

	case "import":
		return runImport(ctx, svc, rest, stdout)

	case "draft":
		if len(rest) < 1 {
			return errors.New(`usage: app draft "<supplier message>"`)
		}
		res, err := svc.DraftPurchase(ctx, app.IntakeRequest{Description: strings.Join(rest, " ")})
		if err != nil {
			return err
		}
		return printJSON(stdout, res)

	case "adduser":
		return runAddUser(ctx, svc, rest, stdin, stdout)

	case "schema":
		if len(rest) < 1 {
			return fmt.Errorf("usage: app schema <name>\navailable: %s", strings.Join(svc.SchemaNames(), ", "))
		}
		s, ok := svc.Schema(rest[0])
		if !ok {
			return fmt.Errorf("unknown schema %q\navailable: %s", rest[0], strings.Join(svc.SchemaNames(), ", "))
		}
		return printJSON(stdout, s)

	default:
		return fmt.Errorf("unknown command: %s\n%s", cmd, Usage)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}

func runProfit(ctx context.Context, svc app.ApplicationService, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("profit", flag.ContinueOnError)
	day := fs.String("day", "", "single day, YYYY-MM-DD")
	from := fs.String("from", "", "first day, YYYY-MM-DD")
	to := fs.String("to", "", "last day (inclusive), YYYY-MM-DD")
	paidOnly := fs.Bool("paid-only", false, "only fully paid invoices")
	daily := fs.Bool("daily", false, "aggregate per day")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var q core.ProfitQuery
	var err error
	if q.Day, err = parseDay(*day); err != nil {
		return err
	}
	if q.From, err = parseDay(*from); err != nil {
		return err
	}
	if q.To, err = parseDay(*to); err != nil {
		return err
	}
	if q.To != nil {
		end := q.To.AddDate(0, 0, 1)
		q.To = &end
	}
	q.PaidOnly = *paidOnly

	if *daily {
		days, err := svc.DailyProfit(ctx, q)
		if err != nil {
			return err
		}
		return printJSON(stdout, days)
	}
	report, err := svc.ProfitReport(ctx, q)
	if err != nil {
		return err
	}
	return printJSON(stdout, report)
}

func runImport(ctx context.Context, svc app.ApplicationService, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	supplier := fs.Int("supplier", 0, "supplier id")
	brand := fs.String("brand", "", "brand")
	model := fs.String("model", "", "model")
	storage := fs.String("storage", "", "storage")
	lotType := fs.String("type", "", "lot type, e.g. CARTON")
	carton := fs.String("carton", "", "carton type")
	cost := fs.String("cost", "", "unit cost price")
	sale := fs.String("sale", "", "unit sale price")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: app import [flags] file.xlsx")
	}

	costPrice, err := decimal.NewFromString(*cost)
	if err != nil {
		return fmt.Errorf("invalid -cost %q", *cost)
	}
	salePrice, err := decimal.NewFromString(*sale)
	if err != nil {
		return fmt.Errorf("invalid -sale %q", *sale)
	}
	optional := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := svc.ImportSerialBatch(ctx, app.SerialBatchRequest{
		Brand:      *brand,
		Model:      *model,
		Storage:    optional(*storage),
		Type:       optional(*lotType),
		CartonType: optional(*carton),
		CostPrice:  costPrice,
		SalePrice:  salePrice,
		SupplierID: *supplier,
	}, f)
	if err != nil {
		return err
	}
	return printJSON(stdout, res)
}

func runAddUser(ctx context.Context, svc app.ApplicationService, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	username := fs.String("username", "", "login name")
	email := fs.String("email", "", "email address")
	role := fs.String("role", "staff", "role")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprint(stdout, "Password: ")
	password, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	password = strings.TrimRight(password, "\r\n")

	user, err := svc.CreateUser(ctx, app.CreateUserRequest{
		Username: *username,
		Email:    *email,
		Password: password,
		Role:     *role,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nUser %s created (id %d, role %s).\n", user.Username, user.ID, user.Role)
	return nil
}
