package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"

	"reseller-ledger/internal/adapters/cli"
	"reseller-ledger/internal/adapters/repl"
	"reseller-ledger/internal/ai"
	"reseller-ledger/internal/app"
	"reseller-ledger/internal/config"
	"reseller-ledger/internal/db"
	"reseller-ledger/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Console sessions log warnings only, to stderr, so tables and JSON stay clean.
	zlog, err := logger.New(logger.Config{Level: "warn", Format: "console", Output: "stderr"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	var agent ai.IntakeAgent
	if cfg.AI.APIKey != "" {
		agent = ai.NewAgent(cfg.AI.APIKey, cfg.AI.Model)
	}
	svc := app.NewAppService(pool, app.NewServices(pool, zlog), agent, zlog)

	if len(os.Args) > 1 {
		if err := cli.Run(ctx, svc, os.Args[1:], os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			pool.Close()
			os.Exit(1)
		}
		return
	}
	repl.Run(ctx, svc, bufio.NewReader(os.Stdin), os.Stdout)
}
