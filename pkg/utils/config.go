package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	HoldOnCreate  = "create"
	HoldOnConfirm = "confirm"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	AMQP       AMQPConfig
	Engagement EngagementConfig
	Worker     WorkerConfig
	RateLimit  RateLimitConfig
}

type AppConfig struct {
	Name        string
	Port        string
	Debug       bool
	LogPath     string
	StoreDriver string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Host        string
	Port        string
	Name        string
	User        string
	Password    string
	MaxConns    int32
	AutoMigrate bool
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

// EngagementConfig carries the lifecycle timing values. They are operator
// settings, not business rules.
type EngagementConfig struct {
	ObservationWindow        time.Duration // D1
	ProviderResponseDeadline time.Duration // D2
	FixObservationWindow     time.Duration // D3
	RefundWindowDefault      time.Duration
	RefundWindows            map[string]time.Duration
	HoldOn                   string
}

// RefundWindow returns how long after check-out a direct refund is allowed
// for the category.
func (c EngagementConfig) RefundWindow(category string) time.Duration {
	if d, ok := c.RefundWindows[strings.ToLower(category)]; ok {
		return d
	}
	return c.RefundWindowDefault
}

type WorkerConfig struct {
	TimerDrainSchedule string
	TimerDrainBatch    int
	OutboxSchedule     string
	OutboxBatch        int
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
	// TrustedProxies may set X-Forwarded-For; addresses or CIDR prefixes.
	TrustedProxies []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "service-engagement")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("AMQP_EXCHANGE", "engagement.events")
	v.SetDefault("OBSERVATION_WINDOW", "72h")
	v.SetDefault("PROVIDER_RESPONSE_DEADLINE", "48h")
	v.SetDefault("FIX_OBSERVATION_WINDOW", "24h")
	v.SetDefault("REFUND_WINDOW_DEFAULT", "72h")
	v.SetDefault("REFUND_WINDOWS", "")
	v.SetDefault("ESCROW_HOLD_ON", HoldOnConfirm)
	v.SetDefault("TIMER_DRAIN_SCHEDULE", "@every 10s")
	v.SetDefault("TIMER_DRAIN_BATCH", 100)
	v.SetDefault("OUTBOX_SCHEDULE", "@every 5s")
	v.SetDefault("OUTBOX_BATCH", 50)
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("RATE_LIMIT_TRUSTED_PROXIES", "")
}

// LoadConfig reads .env when present, then environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}

	return buildConfig(v)
}

func buildConfig(v *viper.Viper) (*Config, error) {
	windows, err := ParseRefundWindows(v.GetString("REFUND_WINDOWS"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Port:        v.GetString("PORT"),
			Debug:       v.GetBool("DEBUG"),
			LogPath:     v.GetString("LOG_PATH"),
			StoreDriver: strings.ToLower(v.GetString("STORE_DRIVER")),
			CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:        v.GetString("DB_HOST"),
			Port:        v.GetString("DB_PORT"),
			Name:        v.GetString("DB_NAME"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASS"),
			MaxConns:    v.GetInt32("DB_MAX_CONNS"),
			AutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Issuer: v.GetString("JWT_ISSUER"),
		},
		AMQP: AMQPConfig{
			URL:      v.GetString("AMQP_URL"),
			Exchange: v.GetString("AMQP_EXCHANGE"),
		},
		Engagement: EngagementConfig{
			ObservationWindow:        v.GetDuration("OBSERVATION_WINDOW"),
			ProviderResponseDeadline: v.GetDuration("PROVIDER_RESPONSE_DEADLINE"),
			FixObservationWindow:     v.GetDuration("FIX_OBSERVATION_WINDOW"),
			RefundWindowDefault:      v.GetDuration("REFUND_WINDOW_DEFAULT"),
			RefundWindows:            windows,
			HoldOn:                   strings.ToLower(v.GetString("ESCROW_HOLD_ON")),
		},
		Worker: WorkerConfig{
			TimerDrainSchedule: v.GetString("TIMER_DRAIN_SCHEDULE"),
			TimerDrainBatch:    v.GetInt("TIMER_DRAIN_BATCH"),
			OutboxSchedule:     v.GetString("OUTBOX_SCHEDULE"),
			OutboxBatch:        v.GetInt("OUTBOX_BATCH"),
		},
		RateLimit: RateLimitConfig{
			RPS:            v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:          v.GetInt("RATE_LIMIT_BURST"),
			TrustedProxies: splitList(v.GetString("RATE_LIMIT_TRUSTED_PROXIES")),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.App.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.App.StoreDriver)
	}
	switch c.Engagement.HoldOn {
	case HoldOnCreate, HoldOnConfirm:
	default:
		return fmt.Errorf("unknown ESCROW_HOLD_ON %q", c.Engagement.HoldOn)
	}
	e := c.Engagement
	if e.ObservationWindow <= 0 || e.ProviderResponseDeadline <= 0 || e.FixObservationWindow <= 0 {
		return fmt.Errorf("lifecycle windows must be positive")
	}
	return nil
}

// ParseRefundWindows parses "cleaning=48h,plumbing=72h".
func ParseRefundWindows(raw string) (map[string]time.Duration, error) {
	out := make(map[string]time.Duration)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		category, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("refund window %q: want category=duration", pair)
		}
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("refund window %q: %w", pair, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("refund window %q must be positive", pair)
		}
		out[strings.ToLower(strings.TrimSpace(category))] = d
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
