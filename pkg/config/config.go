// Package config loads repricer settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Environment variable names.
const (
	EnvAPIKey          = "SHOPIFY_API_KEY"
	EnvAPIPassword     = "SHOPIFY_API_PASSWORD"
	EnvStoreName       = "SHOPIFY_STORE_NAME"
	EnvAPIVersion      = "SHOPIFY_API_VERSION"
	EnvPriceMultiplier = "PRICE_MULTIPLIER"
	EnvRequestInterval = "REQUEST_INTERVAL"
	EnvDryRun          = "DRY_RUN"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogPretty       = "LOG_PRETTY"
	EnvUserAgent       = "USER_AGENT"
	EnvRedisURL        = "REDIS_URL"
	EnvPushgatewayURL  = "PUSHGATEWAY_URL"
)

// ErrMissingEnv is wrapped by Load when a required variable is unset.
var ErrMissingEnv = errors.New("missing required env var")

// Shopify holds the four values that identify and authenticate a store.
type Shopify struct {
	APIKey     string
	Password   string
	StoreName  string
	APIVersion string
}

// Config holds everything the repricer binary reads at startup.
type Config struct {
	Shopify Shopify

	PriceMultiplier decimal.Decimal
	RequestInterval time.Duration
	DryRun          bool
	UserAgent       string

	LogLevel  string
	LogPretty bool

	// Optional integrations, empty when disabled.
	RedisURL       string
	PushgatewayURL string
}

// Load reads a .env file from the working directory if one exists and then
// builds the configuration from the process environment. Variables already
// present in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (Config, error) {
	var (
		cfg  Config
		errs []error
	)

	required := func(key string) string {
		v, err := requiredString(key)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg.Shopify = Shopify{
		APIKey:     required(EnvAPIKey),
		Password:   required(EnvAPIPassword),
		StoreName:  required(EnvStoreName),
		APIVersion: required(EnvAPIVersion),
	}

	multiplier, err := decimalWithDefault(EnvPriceMultiplier, decimal.NewFromInt(2))
	if err != nil {
		errs = append(errs, err)
	} else if !multiplier.IsPositive() {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", EnvPriceMultiplier, multiplier))
	}
	cfg.PriceMultiplier = multiplier

	if cfg.RequestInterval, err = durationWithDefault(EnvRequestInterval, 500*time.Millisecond); err != nil {
		errs = append(errs, err)
	}
	if cfg.DryRun, err = boolWithDefault(EnvDryRun, false); err != nil {
		errs = append(errs, err)
	}
	if cfg.LogPretty, err = boolWithDefault(EnvLogPretty, false); err != nil {
		errs = append(errs, err)
	}

	cfg.UserAgent = stringWithDefault(EnvUserAgent, "shopify-repricer/0.1.0")
	cfg.LogLevel = stringWithDefault(EnvLogLevel, "info")
	cfg.RedisURL = stringWithDefault(EnvRedisURL, "")
	cfg.PushgatewayURL = stringWithDefault(EnvPushgatewayURL, "")

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func requiredString(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, key)
	}
	return strings.TrimSpace(v), nil
}

func stringWithDefault(key, def string) string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func durationWithDefault(key string, def time.Duration) (time.Duration, error) {
	v := stringWithDefault(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, d)
	}
	return d, nil
}

func boolWithDefault(key string, def bool) (bool, error) {
	v := stringWithDefault(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %w", key, err)
	}
	return b, nil
}

func decimalWithDefault(key string, def decimal.Decimal) (decimal.Decimal, error) {
	v := stringWithDefault(key, "")
	if v == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal for %s: %w", key, err)
	}
	return d, nil
}
