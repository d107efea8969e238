package main

import (
	"fmt"
	"log"
	"os"

	"reseller-ledger/internal/config"
	"reseller-ledger/internal/logger"
	"reseller-ledger/internal/migration"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: migrate up | down | version")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.ForEnv(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	m, err := migration.New(cfg.Database.URL, zlog)
	if err != nil {
		zlog.Fatal("migrator", zap.Error(err))
	}
	defer m.Close()

	switch os.Args[1] {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
		var version uint
		var dirty bool
		version, dirty, err = m.Version()
		if err == nil {
			fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		}
	default:
		zlog.Fatal("unknown command", zap.String("command", os.Args[1]))
	}
	if err != nil {
		zlog.Fatal("migration failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}
