package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Env      string
	HTTPAddr string
	DB       Database

	RedisAddr        string
	KafkaBrokers     []string
	OrderPlacedTopic string

	CardVaultSecret    string
	CORSAllowedOrigins []string

	AuditInterval  time.Duration
	AuditGrace     time.Duration
	OutboxInterval time.Duration
}

type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first if present.
func Load() (Config, error) {
	cfg := Config{
		Env:                getenv("APP_ENV", "prod"),
		HTTPAddr:           getenv("HTTP_ADDR", ":5000"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		KafkaBrokers:       splitCSV(os.Getenv("KAFKA_BROKERS")),
		OrderPlacedTopic:   getenv("KAFKA_TOPIC_ORDER_PLACED", "order.placed"),
		CardVaultSecret:    os.Getenv("CARD_VAULT_SECRET"),
		CORSAllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "*")),
	}

	cfg.DB.URL = databaseURL()
	if cfg.DB.URL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL or BLUEPRINT_DB_* is required")
	}

	var err error
	if cfg.DB.MaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 16); err != nil {
		return Config{}, err
	}
	if cfg.DB.MaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", 4); err != nil {
		return Config{}, err
	}
	if cfg.DB.ConnMaxLifetime, err = getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.AuditInterval, err = getDuration("AUDIT_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.AuditGrace, err = getDuration("AUDIT_GRACE", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.OutboxInterval, err = getDuration("OUTBOX_INTERVAL", 2*time.Second); err != nil {
		return Config{}, err
	}

	if cfg.CardVaultSecret == "" {
		if cfg.Env != "dev" {
			return Config{}, fmt.Errorf("config: CARD_VAULT_SECRET is required outside dev")
		}
		cfg.CardVaultSecret = "dev-only-card-vault-secret"
	}
	return cfg, nil
}

// databaseURL prefers DATABASE_URL and falls back to the BLUEPRINT_DB_* parts.
func databaseURL() string {
	if u := strings.TrimSpace(os.Getenv("DATABASE_URL")); u != "" {
		return u
	}
	host := os.Getenv("BLUEPRINT_DB_HOST")
	if host == "" {
		return ""
	}
	u := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		os.Getenv("BLUEPRINT_DB_USERNAME"),
		os.Getenv("BLUEPRINT_DB_PASSWORD"),
		host,
		getenv("BLUEPRINT_DB_PORT", "5432"),
		os.Getenv("BLUEPRINT_DB_DATABASE"),
	)
	if schema := os.Getenv("BLUEPRINT_DB_SCHEMA"); schema != "" {
		u += "&search_path=" + schema
	}
	return u
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", k, err)
	}
	return i, nil
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", k, err)
	}
	return d, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
