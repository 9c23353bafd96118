package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"uptimedock/app/internal/availability"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port   string
	DBPath string

	// Probing
	EnableScheduler     bool
	RunOnStart          bool
	PollInterval        time.Duration
	ProbeTimeout        time.Duration
	MaxConcurrentProbes int
	PingRetention       time.Duration

	// Aggregation
	Options availability.Options

	// Auth for the /url registry. Empty AuthUser disables it.
	AuthUser string
	AuthHash []byte

	// Manual /ping rounds allowed per minute and client IP
	PingRatePerMin int

	// Status-change notifications
	AlertWebhookURL    string
	AlertWebhookSecret string
	AlertDiscordURL    string
}

// Load reads configuration from a .env file, if present, and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	poll, err := envDuration("POLL_INTERVAL", availability.DefaultProbeInterval)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                getenv("PORT", "8000"),
		DBPath:              getenv("DB_PATH", "./uptime.db"),
		EnableScheduler:     envBool("ENABLE_SCHEDULER", true),
		RunOnStart:          envBool("RUN_ON_START", true),
		PollInterval:        poll,
		ProbeTimeout:        envDurSecs("PROBE_TIMEOUT_SECS", 5),
		MaxConcurrentProbes: envInt("MAX_CONCURRENT_PROBES", 20),
		PingRetention:       time.Duration(envInt("PING_RETENTION_DAYS", 0)) * 24 * time.Hour,
		AuthUser:            getenv("AUTH_USER", ""),
		PingRatePerMin:      envInt("PING_RATE_PER_MIN", 6),
		AlertWebhookURL:     getenv("ALERT_WEBHOOK_URL", ""),
		AlertWebhookSecret:  getenv("ALERT_WEBHOOK_SECRET", ""),
		AlertDiscordURL:     getenv("ALERT_DISCORD_URL", ""),
	}

	if cfg.Options.LastDown, err = availability.ParseLastDownMode(getenv("LAST_DOWN_MODE", "")); err != nil {
		return nil, err
	}
	if cfg.Options.Downtime, err = availability.ParseDowntimeMode(getenv("DOWNTIME_MODE", "")); err != nil {
		return nil, err
	}
	cfg.Options.ProbeInterval = cfg.PollInterval

	if cfg.AuthUser != "" {
		if hp := getenv("AUTH_PASSWORD_BCRYPT", ""); hp != "" {
			cfg.AuthHash = []byte(hp)
		} else {
			pw := getenv("AUTH_PASSWORD", "")
			if pw == "" {
				return nil, errors.New("AUTH_USER is set but AUTH_PASSWORD or AUTH_PASSWORD_BCRYPT is missing")
			}
			h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("hash password: %w", err)
			}
			cfg.AuthHash = h
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks values that flags may also have overridden.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("db path must not be empty")
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll interval %v is below one second", c.PollInterval)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive, got %v", c.ProbeTimeout)
	}
	if c.MaxConcurrentProbes < 1 {
		return fmt.Errorf("max concurrent probes must be at least 1, got %d", c.MaxConcurrentProbes)
	}
	if c.PingRetention < 0 {
		return errors.New("ping retention must not be negative")
	}
	return nil
}

// AuthEnabled reports whether the registry endpoints require credentials.
func (c *Config) AuthEnabled() bool {
	return c.AuthUser != "" && len(c.AuthHash) > 0
}

// Helper functions
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(k string, def bool) bool {
	v := strings.ToLower(getenv(k, ""))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

func envDurSecs(k string, def int) time.Duration {
	return time.Duration(envInt(k, def)) * time.Second
}

// envDuration accepts a Go duration ("30m") or a bare number of seconds.
func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := getenv(k, "")
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
