// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Backend names accepted by STORE_BACKEND and AUDIT_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendKafka    = "kafka"
)

// ErrMissingEncryptionKey is returned when BIOMETRIC_ENCRYPTION_KEY is unset.
// There is no development fallback for the template key.
var ErrMissingEncryptionKey = errors.New("BIOMETRIC_ENCRYPTION_KEY is required")

// ErrMissingSigningKey is returned when JWT_SIGNING_KEY is unset.
var ErrMissingSigningKey = errors.New("JWT_SIGNING_KEY is required")

// Config is the full process configuration.
type Config struct {
	Server    Server
	Biometric Biometric
	Store     Store
	Redis     RedisConfig
	Audit     Audit
	Log       Log
}

// Server captures HTTP level configuration.
type Server struct {
	Addr          string
	MetricsAddr   string
	JWTSigningKey string
	JWTIssuer     string
}

// Biometric holds matching and encryption settings.
type Biometric struct {
	EncryptionKey      string
	MinConfidence      float64
	Thresholds         map[string]float64
	ScoringConcurrency int
}

// Store selects the template backend.
type Store struct {
	Backend     string
	DatabaseURL string
}

// RedisConfig holds connection pool settings for go-redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Audit selects the audit sink.
type Audit struct {
	Backend          string
	KafkaBrokers     []string
	KafkaTopic       string
	KafkaPartitions  int
	KafkaReplication int
}

// Log holds logger settings.
type Log struct {
	Level  string
	Format string
}

var thresholdTypes = []string{"fingerprint", "face", "voice", "iris"}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	env := envReader{lookup: lookup}

	cfg := Config{
		Server: Server{
			Addr:          env.str("BIOVAULT_ADDR", ":8080"),
			MetricsAddr:   env.str("METRICS_ADDR", ":9090"),
			JWTSigningKey: env.str("JWT_SIGNING_KEY", ""),
			JWTIssuer:     env.str("JWT_ISSUER", "biovault"),
		},
		Biometric: Biometric{
			EncryptionKey:      env.str("BIOMETRIC_ENCRYPTION_KEY", ""),
			MinConfidence:      env.float("BIOMETRIC_MIN_CONFIDENCE", 85),
			Thresholds:         map[string]float64{},
			ScoringConcurrency: env.int("BIOMETRIC_SCORING_CONCURRENCY", 8),
		},
		Store: Store{
			Backend:     strings.ToLower(env.str("STORE_BACKEND", BackendMemory)),
			DatabaseURL: env.str("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL:          env.str("REDIS_URL", ""),
			PoolSize:     env.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: env.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  env.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  env.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: env.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Audit: Audit{
			Backend:      strings.ToLower(env.str("AUDIT_BACKEND", BackendMemory)),
			KafkaBrokers: env.list("KAFKA_BROKERS"),
			KafkaTopic:   env.str("KAFKA_AUDIT_TOPIC", "biometric.audit"),
			// Ensured at startup; an existing topic keeps its settings.
			KafkaPartitions:  env.int("KAFKA_AUDIT_PARTITIONS", 3),
			KafkaReplication: env.int("KAFKA_AUDIT_REPLICATION", 1),
		},
		Log: Log{
			Level:  env.str("LOG_LEVEL", "info"),
			Format: env.str("LOG_FORMAT", "json"),
		},
	}
	for _, t := range thresholdTypes {
		key := "BIOMETRIC_THRESHOLD_" + strings.ToUpper(t)
		if _, ok := lookup(key); ok {
			cfg.Biometric.Thresholds[t] = env.float(key, cfg.Biometric.MinConfidence)
		}
	}

	if env.err != nil {
		return Config{}, env.err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Biometric.EncryptionKey == "" {
		return ErrMissingEncryptionKey
	}
	if c.Server.JWTSigningKey == "" {
		return ErrMissingSigningKey
	}
	if c.Biometric.MinConfidence < 0 || c.Biometric.MinConfidence > 100 {
		return fmt.Errorf("BIOMETRIC_MIN_CONFIDENCE must be within [0, 100], got %v", c.Biometric.MinConfidence)
	}
	for t, v := range c.Biometric.Thresholds {
		if v < 0 || v > 100 {
			return fmt.Errorf("threshold for %s must be within [0, 100], got %v", t, v)
		}
	}
	if c.Biometric.ScoringConcurrency < 1 {
		return fmt.Errorf("BIOMETRIC_SCORING_CONCURRENCY must be positive, got %d", c.Biometric.ScoringConcurrency)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return errors.New("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Audit.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres audit log")
		}
	case BackendKafka:
		if len(c.Audit.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required for the kafka audit log")
		}
		if c.Audit.KafkaPartitions < 1 || c.Audit.KafkaReplication < 1 {
			return errors.New("kafka audit topic needs at least one partition and replica")
		}
	default:
		return fmt.Errorf("unknown AUDIT_BACKEND %q", c.Audit.Backend)
	}
	return nil
}

// envReader records the first parse failure so FromEnv reports one error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return def
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (e *envReader) int(key string, def int) int {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) float(key string, def float64) float64 {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return f
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

func (e *envReader) list(key string) []string {
	v, ok := e.raw(key)
	if !ok {
		return nil
	}
	parts := lo.Map(strings.Split(v, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	return lo.Uniq(lo.Compact(parts))
}
