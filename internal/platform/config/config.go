package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"refsync/internal/reconcile/models"
	id "refsync/pkg/domain"
)

// Config is the process configuration read from REFSYNC_* variables.
type Config struct {
	AdminAddr string
	LogLevel  string
	LogFormat string

	Terminology Terminology
	Identity    Identity

	// DatabaseURL selects the PostgreSQL store; empty keeps state in memory.
	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Mail        MailConfig

	CatalogFile string
	// Interval between scheduled runs. Zero runs once and exits.
	Interval time.Duration

	Mode models.Config
}

type Terminology struct {
	URL        string
	Timeout    time.Duration
	MaxRetries uint64
}

type Identity struct {
	URL         string
	Application string
	Password    string
}

// RedisConfig configures the concept cache backend. An empty URL selects the
// in-process cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TTL          time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type MailConfig struct {
	SMTPAddr string
	From     string
	To       []string
}

// FromEnv builds the configuration from environment variables so main stays lean.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	e := env{lookup: lookup}
	cfg := Config{
		AdminAddr: e.str("REFSYNC_ADMIN_ADDR", ":8090"),
		LogLevel:  e.str("REFSYNC_LOG_LEVEL", "info"),
		LogFormat: e.str("REFSYNC_LOG_FORMAT", "json"),
		Terminology: Terminology{
			URL:        e.str("REFSYNC_TERMINOLOGY_URL", ""),
			Timeout:    e.duration("REFSYNC_TERMINOLOGY_TIMEOUT", 30*time.Second),
			MaxRetries: uint64(e.integer("REFSYNC_TERMINOLOGY_MAX_RETRIES", 3)),
		},
		Identity: Identity{
			URL:         e.str("REFSYNC_IDENTITY_URL", ""),
			Application: e.str("REFSYNC_IDENTITY_APP", ""),
			Password:    e.str("REFSYNC_IDENTITY_PASSWORD", ""),
		},
		DatabaseURL: e.str("REFSYNC_DATABASE_URL", ""),
		Redis: RedisConfig{
			URL:          e.str("REFSYNC_REDIS_URL", ""),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			TTL:          e.duration("REFSYNC_REDIS_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: e.list("REFSYNC_KAFKA_BROKERS"),
			Topic:   e.str("REFSYNC_KAFKA_TOPIC", "refsync.summaries"),
		},
		Mail: MailConfig{
			SMTPAddr: e.str("REFSYNC_SMTP_ADDR", ""),
			From:     e.str("REFSYNC_MAIL_FROM", "refsync@localhost"),
			To:       e.list("REFSYNC_MAIL_TO"),
		},
		CatalogFile: e.str("REFSYNC_CATALOG_FILE", ""),
		Interval:    e.duration("REFSYNC_INTERVAL", 0),
		Mode: models.Config{
			Production:            e.boolean("REFSYNC_PRODUCTION"),
			PerVersionSync:        e.boolean("REFSYNC_PER_VERSION_SYNC"),
			IgnoreCoreRefsets:     e.boolean("REFSYNC_IGNORE_CORE_REFSETS"),
			TestingEdition:        e.str("REFSYNC_TEST_EDITION", ""),
			TestingRefset:         e.str("REFSYNC_TEST_REFSET", ""),
			NonProductionEditions: e.list("REFSYNC_NON_PRODUCTION_EDITIONS"),
			AdminUsernames:        e.list("REFSYNC_ADMIN_USERNAMES"),
		},
	}
	if len(e.errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(e.errs, "; "))
	}
	if cfg.Terminology.URL == "" {
		return Config{}, fmt.Errorf("REFSYNC_TERMINOLOGY_URL is required")
	}
	if cfg.Identity.URL == "" {
		return Config{}, fmt.Errorf("REFSYNC_IDENTITY_URL is required")
	}
	if cfg.Mode.TestingRefset != "" {
		if cfg.Mode.TestingEdition == "" {
			return Config{}, fmt.Errorf("REFSYNC_TEST_REFSET requires REFSYNC_TEST_EDITION")
		}
		if _, err := id.ParseConceptID(cfg.Mode.TestingRefset); err != nil {
			return Config{}, fmt.Errorf("REFSYNC_TEST_REFSET: %w", err)
		}
	}
	return cfg, nil
}

type env struct {
	lookup func(string) (string, bool)
	errs   []string
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *env) boolean(key string) bool {
	v := e.str(key, "")
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %v", key, err))
	}
	return b
}

func (e *env) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		e.errs = append(e.errs, fmt.Sprintf("%s: not a non-negative integer", key))
		return def
	}
	return n
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		e.errs = append(e.errs, fmt.Sprintf("%s: not a non-negative duration", key))
		return def
	}
	return d
}

func (e *env) list(key string) []string {
	v := e.str(key, "")
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
