package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "reseller-ledger/internal/adapters/web"
	"reseller-ledger/internal/ai"
	"reseller-ledger/internal/app"
	"reseller-ledger/internal/config"
	"reseller-ledger/internal/db"
	"reseller-ledger/internal/logger"
	"reseller-ledger/internal/migration"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
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

	zlog, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	zlog.Info("starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port))

	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database.URL, zlog); err != nil {
			zlog.Fatal("migrations failed", zap.Error(err))
		}
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		zlog.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	var agent ai.IntakeAgent
	if cfg.AI.APIKey != "" {
		agent = ai.NewAgent(cfg.AI.APIKey, cfg.AI.Model)
	} else {
		zlog.Warn("OPENAI_API_KEY is not set; purchase intake is disabled")
	}

	svc := app.NewAppService(pool, app.NewServices(pool, zlog), agent, zlog)

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "dev-secret-change-me"
		zlog.Warn("JWT_SECRET is not set; using an insecure development secret")
	}
	handler := webAdapter.NewHandler(svc, zlog, webAdapter.Options{
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		JWTSecret:       jwtSecret,
		TokenTTL:        cfg.Auth.TokenTTL,
		BodyLimit:       cfg.HTTP.BodyLimit,
		InsecureCookies: !cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		zlog.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("forced shutdown", zap.Error(err))
	}
	zlog.Info("server exited")
}

func migrateUp(url string, zlog *zap.Logger) error {
	m, err := migration.New(url, zlog)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}
