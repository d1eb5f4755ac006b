package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	t.Run("yaml overrides defaults and env overrides yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "devcred.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
privacy:
  budget: 4
  epsilon: 0.5
credentials:
  verificationTimeout: 2s
  maxBatchSize: 3
storage:
  driver: sqlite
  sqlitePath: /tmp/devcred-test.db
`), 0o600))
		t.Setenv("DEVCRED_MAX_BATCH_SIZE", "7")

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.Server.Addr)
		assert.Equal(t, 4.0, cfg.Privacy.Budget)
		assert.Equal(t, 0.5, cfg.Privacy.Epsilon)
		assert.Equal(t, 1e-5, cfg.Privacy.Delta, "unset yaml keys keep defaults")
		assert.Equal(t, 2*time.Second, cfg.Credentials.VerificationTimeout)
		assert.Equal(t, 7, cfg.Credentials.MaxBatchSize)
		assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	})

	t.Run("explicit path must exist", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("privacy: [1, 2"), 0o600))
		_, err := Load(path)
		assert.ErrorContains(t, err, "parse config")
	})
}

func TestApplyEnv(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		cfg := Default()
		err := ApplyEnv(&cfg, envOf(map[string]string{
			"DEVCRED_LEDGER_DRIVER":  "redis",
			"DEVCRED_REDIS_URL":      "redis://localhost:6379/0",
			"DEVCRED_CREDENTIAL_TTL": "720h",
			"DEVCRED_TRACING":        "true",
			"DEVCRED_PRIVACY_BUDGET": " 2.5 ",
		}))
		require.NoError(t, err)
		assert.Equal(t, DriverRedis, cfg.Ledger.Driver)
		assert.Equal(t, 720*time.Hour, cfg.Credentials.DefaultTTL)
		assert.True(t, cfg.Server.Tracing)
		assert.Equal(t, 2.5, cfg.Privacy.Budget)
	})

	t.Run("every malformed value is reported", func(t *testing.T) {
		cfg := Default()
		err := ApplyEnv(&cfg, envOf(map[string]string{
			"DEVCRED_PRIVACY_BUDGET":       "lots",
			"DEVCRED_VERIFICATION_TIMEOUT": "soon",
		}))
		require.Error(t, err)
		assert.ErrorContains(t, err, "DEVCRED_PRIVACY_BUDGET")
		assert.ErrorContains(t, err, "DEVCRED_VERIFICATION_TIMEOUT")
	})
}

func TestResolveSecrets(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "signing.key")
	require.NoError(t, os.WriteFile(keyFile, []byte("hmac-secret-from-file\n"), 0o600))
	t.Setenv("DEVCRED_TEST_COMMITMENT", "commitment-key-from-env")

	cfg := Default()
	cfg.Credentials.CommitmentKey = "env:DEVCRED_TEST_COMMITMENT"
	cfg.Signing.Key = "file:" + keyFile
	cfg.Prover.APIKey = "literal"

	require.NoError(t, cfg.ResolveSecrets())
	assert.Equal(t, "commitment-key-from-env", cfg.Credentials.CommitmentKey)
	assert.Equal(t, "hmac-secret-from-file", cfg.Signing.Key)
	assert.Equal(t, "literal", cfg.Prover.APIKey)

	bad := Default()
	bad.Signing.Key = "env:DEVCRED_TEST_UNSET_SIGNING"
	bad.Redis.URL = "file:" + filepath.Join(t.TempDir(), "missing")
	err := bad.ResolveSecrets()
	assert.ErrorContains(t, err, "signing.key")
	assert.ErrorContains(t, err, "redis.url")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero budget", func(c *Config) { c.Privacy.Budget = 0 }, "privacy.budget"},
		{"epsilon above budget", func(c *Config) { c.Privacy.Epsilon = 20 }, "privacy.epsilon"},
		{"thresholds out of order", func(c *Config) { c.Aggregation.Advanced = 90 }, "aggregation thresholds"},
		{"postgres without url", func(c *Config) { c.Storage.Driver = DriverPostgres }, "databaseUrl"},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "mongo" }, "unknown storage driver"},
		{"redis ledger without url", func(c *Config) { c.Ledger.Driver = DriverRedis }, "redis.url"},
		{"signer without key", func(c *Config) { c.Signing.Method = SigningEd25519 }, "signing.key"},
		{"production without commitment key", func(c *Config) { c.Server.Environment = "production" }, "commitmentKey"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}
}
