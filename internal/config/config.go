// Package config defines the top-level configuration for the split-payment
// service and provides validation helpers.
package config

import (
	"fmt"

	"github.com/shijin-alpha/buildhub-main-sub011/internal/calculator"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BUILDHUB_* environment
// variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Gateway  GatewayConfig  `toml:"gateway"`
	Split    SplitConfig    `toml:"split"`
	Auth     AuthConfig     `toml:"auth"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds the HTTP listener parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// DatabaseConfig holds the SQLite ledger location.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// GatewayConfig holds the payment gateway endpoint and credentials.
type GatewayConfig struct {
	BaseURL        string `toml:"base_url"`
	KeyID          string `toml:"key_id"`
	KeySecret      string `toml:"key_secret"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// SplitConfig holds the installment-splitting limits. These are injected into
// the calculator and coordinator explicitly; there is no hidden process-wide
// state.
type SplitConfig struct {
	// MaxSingleAmount is the gateway's single-transaction ceiling.
	MaxSingleAmount float64 `toml:"max_single_amount"`

	// BufferFraction is headroom kept below the ceiling (0.05 = 5%).
	BufferFraction float64 `toml:"buffer_fraction"`

	// MinInstallmentAmount is the smallest installment worth an order.
	MinInstallmentAmount float64 `toml:"min_installment_amount"`

	// MaxInstallments bounds how far one obligation may be split.
	MaxInstallments int `toml:"max_installments"`

	// MinorUnits maps currency codes to their decimal precision. Amounts
	// in a currency not listed here are rejected outright; the engine
	// never guesses a currency's unit.
	MinorUnits map[string]int `toml:"minor_units"`
}

// AuthConfig holds JWT session parameters.
type AuthConfig struct {
	JWTSecret     string `toml:"jwt_secret"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

// LimitsFor resolves the calculator limits for a currency. The second return
// is false when the currency is not configured.
func (s SplitConfig) LimitsFor(currency string) (calculator.Limits, bool) {
	minorUnits, ok := s.MinorUnits[currency]
	if !ok {
		return calculator.Limits{}, false
	}
	return calculator.Limits{
		MaxSingleAmount:      s.MaxSingleAmount,
		BufferFraction:       s.BufferFraction,
		MinInstallmentAmount: s.MinInstallmentAmount,
		MaxInstallments:      s.MaxInstallments,
		MinorUnits:           minorUnits,
	}, true
}

// Defaults returns the built-in configuration. Gateway credentials and the
// JWT secret have no defaults and must come from the TOML file or the
// environment.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: "./data/payments.db",
		},
		Gateway: GatewayConfig{
			TimeoutSeconds: 10,
		},
		Split: SplitConfig{
			MaxSingleAmount:      1_000_000,
			BufferFraction:       0,
			MinInstallmentAmount: 10_000,
			MaxInstallments:      10,
			MinorUnits: map[string]int{
				"INR": 2,
				"USD": 2,
				"EUR": 2,
				"JPY": 0,
			},
		},
		Auth: AuthConfig{
			TokenTTLHours: 24,
		},
		LogLevel: "info",
	}
}

// Validate checks that the configuration is internally consistent. It returns
// the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required")
	}
	if c.Gateway.KeyID == "" || c.Gateway.KeySecret == "" {
		return fmt.Errorf("gateway credentials are required")
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		return fmt.Errorf("gateway.timeout_seconds must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Split.MaxSingleAmount <= 0 {
		return fmt.Errorf("split.max_single_amount must be positive")
	}
	if c.Split.BufferFraction < 0 || c.Split.BufferFraction >= 1 {
		return fmt.Errorf("split.buffer_fraction %v out of [0,1)", c.Split.BufferFraction)
	}
	if c.Split.MaxInstallments < 1 {
		return fmt.Errorf("split.max_installments must be at least 1")
	}
	if c.Split.MinInstallmentAmount < 0 {
		return fmt.Errorf("split.min_installment_amount must not be negative")
	}
	if c.Split.MinInstallmentAmount > c.Split.MaxSingleAmount*(1-c.Split.BufferFraction) {
		return fmt.Errorf("split.min_installment_amount exceeds the effective ceiling")
	}
	if len(c.Split.MinorUnits) == 0 {
		return fmt.Errorf("split.minor_units must list at least one currency")
	}
	for currency, units := range c.Split.MinorUnits {
		if units < 0 || units > 4 {
			return fmt.Errorf("split.minor_units[%s] = %d out of range", currency, units)
		}
	}
	return nil
}
