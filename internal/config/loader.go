package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path (skipped when path is empty),
// merges it on top of the built-in defaults, applies BUILDHUB_* environment
// variable overrides, and returns the final Config. The returned Config has
// NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BUILDHUB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setInt(&cfg.Server.Port, "BUILDHUB_SERVER_PORT")
	setStr(&cfg.Database.Path, "BUILDHUB_DB_PATH")

	setStr(&cfg.Gateway.BaseURL, "BUILDHUB_GATEWAY_BASE_URL")
	setStr(&cfg.Gateway.KeyID, "BUILDHUB_GATEWAY_KEY_ID")
	setStr(&cfg.Gateway.KeySecret, "BUILDHUB_GATEWAY_KEY_SECRET")
	setInt(&cfg.Gateway.TimeoutSeconds, "BUILDHUB_GATEWAY_TIMEOUT_SECONDS")

	setFloat(&cfg.Split.MaxSingleAmount, "BUILDHUB_SPLIT_MAX_SINGLE_AMOUNT")
	setFloat(&cfg.Split.BufferFraction, "BUILDHUB_SPLIT_BUFFER_FRACTION")
	setFloat(&cfg.Split.MinInstallmentAmount, "BUILDHUB_SPLIT_MIN_INSTALLMENT_AMOUNT")
	setInt(&cfg.Split.MaxInstallments, "BUILDHUB_SPLIT_MAX_INSTALLMENTS")

	setStr(&cfg.Auth.JWTSecret, "BUILDHUB_JWT_SECRET")
	setInt(&cfg.Auth.TokenTTLHours, "BUILDHUB_TOKEN_TTL_HOURS")

	setStr(&cfg.LogLevel, "BUILDHUB_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
