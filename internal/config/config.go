package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "CunaPay"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 10 * time.Minute
	defaultBalanceTTL     = 30 * time.Second
	defaultAccessTTL      = 15 * time.Minute
	defaultRefreshTTL     = 7 * 24 * time.Hour
	defaultWatchInterval  = 8 * time.Second
	defaultWatchBatch     = 25
	defaultDailyRateBp    = 10
	defaultPriceAPI       = "https://p2p.binance.com"
	defaultFiat           = "VES"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration

	// MasterKeyHex is the hex-encoded 32-byte key sealing custody
	// private keys at rest.
	MasterKeyHex string

	// Tron bridge.
	TronBridgeURL string
	TronAPIKey    string

	// Token signing.
	JWTSecret     string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// Transfer idempotency and balance cache windows.
	IdempotencyTTL time.Duration
	BalanceTTL     time.Duration

	// Confirmation watcher.
	WatchInterval time.Duration
	WatchBatch    int

	// Staking terms.
	StakeDailyRateBp int

	// Fiat pricing.
	PriceAPIURL string
	PriceFiat   string

	// Seeded operator account; also owns the treasury wallet reference.
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		ShutdownPeriod:   defaultShutdownDelay,
		MasterKeyHex:     os.Getenv("MASTER_KEY"),
		TronBridgeURL:    os.Getenv("TRON_BRIDGE_URL"),
		TronAPIKey:       os.Getenv("TRON_API_KEY"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		RefreshSecret:    os.Getenv("REFRESH_SECRET"),
		AccessTTL:        defaultAccessTTL,
		RefreshTTL:       defaultRefreshTTL,
		IdempotencyTTL:   defaultIdempotencyTTL,
		BalanceTTL:       defaultBalanceTTL,
		WatchInterval:    defaultWatchInterval,
		WatchBatch:       defaultWatchBatch,
		StakeDailyRateBp: defaultDailyRateBp,
		PriceAPIURL:      getEnv("PRICE_API_URL", defaultPriceAPI),
		PriceFiat:        getEnv("PRICE_FIAT", defaultFiat),
		AdminEmail:       getEnv("ADMIN_EMAIL", "ops@cunapay.local"),
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.AccessTTL, err = durationEnv("ACCESS_TOKEN_TTL", cfg.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = durationEnv("REFRESH_TOKEN_TTL", cfg.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.BalanceTTL, err = durationEnv("BALANCE_CACHE_TTL", cfg.BalanceTTL); err != nil {
		return Config{}, err
	}
	if cfg.WatchInterval, err = durationEnv("WATCH_INTERVAL", cfg.WatchInterval); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("WATCH_BATCH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid WATCH_BATCH: %q", v)
		}
		cfg.WatchBatch = n
	}
	if v := os.Getenv("STAKE_DAILY_RATE_BP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid STAKE_DAILY_RATE_BP: %q", v)
		}
		cfg.StakeDailyRateBp = n
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if key, err := hex.DecodeString(cfg.MasterKeyHex); err != nil || len(key) != 32 {
		return Config{}, fmt.Errorf("MASTER_KEY must be 64 hex characters")
	}
	if cfg.TronBridgeURL == "" {
		return Config{}, fmt.Errorf("TRON_BRIDGE_URL must be set")
	}
	if cfg.JWTSecret == "" || cfg.RefreshSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET and REFRESH_SECRET must be set")
	}
	if cfg.AdminPassword == "" {
		return Config{}, fmt.Errorf("ADMIN_PASSWORD must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
