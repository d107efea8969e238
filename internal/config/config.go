package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Log      LogConfig
	Auth     AuthConfig
	HTTP     HTTPConfig
	AI       AIConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name string
	Env  string // development, production, test
	Port string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL         string
	TestURL     string
	MaxConns    int32
	AutoMigrate bool
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AuthConfig holds JWT settings.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	AllowedOrigins string // comma-separated
	BodyLimit      int64
}

// AIConfig holds settings for the purchase intake agent.
type AIConfig struct {
	APIKey string
	Model  string
}

// IsProduction reports whether the application runs in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Validate checks the configuration for values the binaries cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database url is required (DATABASE_URL)"))
	}
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required in production (JWT_SECRET)"))
	}
	if c.Database.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("database max_conns cannot be negative, got %d", c.Database.MaxConns))
	}
	return errors.Join(errs...)
}

// Load reads configuration from an optional config.toml, RESELLER_* environment
// variables and the conventional unprefixed variables (DATABASE_URL, SERVER_PORT, ...).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/reseller-ledger")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("RESELLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			URL:         v.GetString("database.url"),
			TestURL:     v.GetString("database.test_url"),
			MaxConns:    v.GetInt32("database.max_conns"),
			AutoMigrate: v.GetBool("database.auto_migrate"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			TokenTTL:  v.GetDuration("auth.token_ttl"),
		},
		HTTP: HTTPConfig{
			AllowedOrigins: v.GetString("http.allowed_origins"),
			BodyLimit:      v.GetInt64("http.body_limit"),
		},
		AI: AIConfig{
			APIKey: v.GetString("ai.api_key"),
			Model:  v.GetString("ai.model"),
		},
	}

	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
		if cfg.IsProduction() {
			cfg.Log.Format = "json"
		}
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "reseller-ledger")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("http.body_limit", 1<<20)

	v.SetDefault("ai.model", "gpt-4o")
}

// bindLegacyEnv maps the unprefixed variable names used by existing .env files.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"app.env":               "APP_ENV",
		"app.port":              "SERVER_PORT",
		"database.url":          "DATABASE_URL",
		"database.test_url":     "TEST_DATABASE_URL",
		"database.auto_migrate": "AUTO_MIGRATE",
		"log.level":             "LOG_LEVEL",
		"auth.jwt_secret":       "JWT_SECRET",
		"http.allowed_origins":  "ALLOWED_ORIGINS",
		"ai.api_key":            "OPENAI_API_KEY",
	}
	for key, env := range bindings {
		prefixed := "RESELLER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}
