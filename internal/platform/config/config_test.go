package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"BIOMETRIC_ENCRYPTION_KEY": "0123456789abcdef0123456789abcdef",
		"JWT_SIGNING_KEY":          "signing-key",
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)
	assert.Equal(t, 85.0, cfg.Biometric.MinConfidence)
	assert.Equal(t, 8, cfg.Biometric.ScoringConcurrency)
	assert.Empty(t, cfg.Biometric.Thresholds)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, BackendMemory, cfg.Audit.Backend)
	assert.Equal(t, "biometric.audit", cfg.Audit.KafkaTopic)
	assert.Equal(t, 3*time.Second, cfg.Redis.ReadTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestFromLookup_MissingEncryptionKey(t *testing.T) {
	env := baseEnv()
	delete(env, "BIOMETRIC_ENCRYPTION_KEY")
	_, err := fromLookup(lookupFrom(env))
	require.ErrorIs(t, err, ErrMissingEncryptionKey)

	env["BIOMETRIC_ENCRYPTION_KEY"] = "   "
	_, err = fromLookup(lookupFrom(env))
	require.ErrorIs(t, err, ErrMissingEncryptionKey)
}

func TestFromLookup_MissingSigningKey(t *testing.T) {
	env := baseEnv()
	delete(env, "JWT_SIGNING_KEY")
	_, err := fromLookup(lookupFrom(env))
	require.ErrorIs(t, err, ErrMissingSigningKey)
}

func TestFromLookup_Overrides(t *testing.T) {
	env := baseEnv()
	env["BIOMETRIC_MIN_CONFIDENCE"] = "90"
	env["BIOMETRIC_THRESHOLD_IRIS"] = "97.5"
	env["BIOMETRIC_SCORING_CONCURRENCY"] = "2"
	env["STORE_BACKEND"] = "Redis"
	env["REDIS_URL"] = "redis://localhost:6379/0"
	env["REDIS_DIAL_TIMEOUT"] = "250ms"
	env["AUDIT_BACKEND"] = "kafka"
	env["KAFKA_BROKERS"] = "k1:9092, k2:9092,"

	cfg, err := fromLookup(lookupFrom(env))
	require.NoError(t, err)
	assert.Equal(t, 90.0, cfg.Biometric.MinConfidence)
	assert.Equal(t, map[string]float64{"iris": 97.5}, cfg.Biometric.Thresholds)
	assert.Equal(t, 2, cfg.Biometric.ScoringConcurrency)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.DialTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Audit.KafkaBrokers)
}

func TestFromLookup_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"non numeric confidence", "BIOMETRIC_MIN_CONFIDENCE", "high"},
		{"confidence above range", "BIOMETRIC_MIN_CONFIDENCE", "101"},
		{"threshold below range", "BIOMETRIC_THRESHOLD_FACE", "-1"},
		{"zero concurrency", "BIOMETRIC_SCORING_CONCURRENCY", "0"},
		{"bad duration", "REDIS_READ_TIMEOUT", "soon"},
		{"unknown store", "STORE_BACKEND", "mongo"},
		{"postgres without url", "STORE_BACKEND", "postgres"},
		{"redis without url", "STORE_BACKEND", "redis"},
		{"kafka without brokers", "AUDIT_BACKEND", "kafka"},
		{"unknown audit", "AUDIT_BACKEND", "stdout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			env[tt.key] = tt.val
			_, err := fromLookup(lookupFrom(env))
			assert.Error(t, err)
		})
	}
}

func TestConsumerFromLookup(t *testing.T) {
	env := map[string]string{
		"KAFKA_BROKERS":           "k1:9092,k1:9092",
		"DATABASE_URL":            "postgres://localhost/biovault",
		"SECURITY_FAILURE_WINDOW": "90s",
	}
	cfg, err := consumerFromLookup(lookupFrom(env))
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "biovault-audit", cfg.Group)
	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, 90*time.Second, cfg.FailureWindow)

	delete(env, "DATABASE_URL")
	_, err = consumerFromLookup(lookupFrom(env))
	assert.Error(t, err)

	env["DATABASE_URL"] = "postgres://localhost/biovault"
	env["SECURITY_FAILURE_THRESHOLD"] = "0"
	_, err = consumerFromLookup(lookupFrom(env))
	assert.Error(t, err)
}
