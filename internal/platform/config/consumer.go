package config

import (
	"errors"
	"os"
	"time"
)

// Consumer configures the audit stream consumer.
type Consumer struct {
	KafkaBrokers     []string
	KafkaTopic       string
	Group            string
	DatabaseURL      string
	MetricsAddr      string
	FailureThreshold int
	FailureWindow    time.Duration
	Log              Log
}

// ConsumerFromEnv builds the consumer configuration.
func ConsumerFromEnv() (Consumer, error) {
	return consumerFromLookup(os.LookupEnv)
}

func consumerFromLookup(lookup func(string) (string, bool)) (Consumer, error) {
	env := envReader{lookup: lookup}
	cfg := Consumer{
		KafkaBrokers:     env.list("KAFKA_BROKERS"),
		KafkaTopic:       env.str("KAFKA_AUDIT_TOPIC", "biometric.audit"),
		Group:            env.str("KAFKA_CONSUMER_GROUP", "biovault-audit"),
		DatabaseURL:      env.str("DATABASE_URL", ""),
		MetricsAddr:      env.str("METRICS_ADDR", ":9091"),
		FailureThreshold: env.int("SECURITY_FAILURE_THRESHOLD", 5),
		FailureWindow:    env.duration("SECURITY_FAILURE_WINDOW", 10*time.Minute),
		Log: Log{
			Level:  env.str("LOG_LEVEL", "info"),
			Format: env.str("LOG_FORMAT", "json"),
		},
	}
	if env.err != nil {
		return Consumer{}, env.err
	}
	switch {
	case len(cfg.KafkaBrokers) == 0:
		return Consumer{}, errors.New("KAFKA_BROKERS is required")
	case cfg.DatabaseURL == "":
		return Consumer{}, errors.New("DATABASE_URL is required")
	case cfg.FailureThreshold < 1 || cfg.FailureWindow <= 0:
		return Consumer{}, errors.New("security failure threshold and window must be positive")
	}
	return cfg, nil
}
