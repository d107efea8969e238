package core_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"reseller-ledger/internal/core"
	"reseller-ledger/internal/migration"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	containerOnce sync.Once
	containerURL  string
	containerErr  error
)

// testDatabaseURL prefers TEST_DATABASE_URL and otherwise starts one throwaway
// postgres container for the whole package. The reaper removes it after the run.
func testDatabaseURL(t *testing.T) string {
	t.Helper()
	_ = godotenv.Load("../../.env")

	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url
	}
	if testing.Short() {
		t.Skip("TEST_DATABASE_URL not set and -short given; skipping integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	containerOnce.Do(func() {
		ctx := context.Background()
		ctr, err := postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("reseller_test"),
			postgres.WithUsername("reseller"),
			postgres.WithPassword("reseller"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			containerErr = err
			return
		}
		containerURL, containerErr = ctr.ConnectionString(ctx, "sslmode=disable")
	})
	if containerErr != nil {
		t.Skipf("postgres container unavailable: %v", containerErr)
	}
	return containerURL
}

// setupTestDB migrates the test database and empties every domain table.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := testDatabaseURL(t)
	ctx := context.Background()

	m, err := migration.New(dbURL, nil)
	if err != nil {
		t.Fatalf("Failed to create migrator: %v", err)
	}
	if err := m.Up(); err != nil {
		m.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	m.Close()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE remplacer, returns, factures, invoice_sequences, vente_items, ventes,
		               achats, products, clients, fournisseurs, users
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}
	return pool
}

// services wires the core the way cmd/server does.
type services struct {
	inventory core.InventoryService
	purchases core.PurchaseService
	sales     core.SaleService
	invoices  core.InvoiceService
	returns   core.ReturnService
	profit    core.ProfitService
	parties   core.PartyService
	users     core.UserService
}

func newServices(pool *pgxpool.Pool) services {
	inventory := core.NewInventoryService(pool, nil)
	sales := core.NewSaleService(pool, inventory)
	return services{
		inventory: inventory,
		purchases: core.NewPurchaseService(pool, inventory, sales),
		sales:     sales,
		invoices:  core.NewInvoiceService(pool, inventory, nil),
		returns:   core.NewReturnService(pool, inventory, nil),
		profit:    core.NewProfitService(pool),
		parties:   core.NewPartyService(pool),
		users:     core.NewUserService(pool),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, what string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s: expected %s, got %s", what, want, got)
	}
}
