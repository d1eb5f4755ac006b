// Package config assembles server configuration from defaults, an optional
// YAML file and DEVCRED_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"devcred/pkg/secrets"
)

// Config is the full server configuration.
type Config struct {
	Server      Server      `yaml:"server"`
	Privacy     Privacy     `yaml:"privacy"`
	Constraints Constraints `yaml:"constraints"`
	Credentials Credentials `yaml:"credentials"`
	Aggregation Aggregation `yaml:"aggregation"`
	Prover      Prover      `yaml:"prover"`
	Storage     Storage     `yaml:"storage"`
	Ledger      Ledger      `yaml:"ledger"`
	Redis       RedisConfig `yaml:"redis"`
	Kafka       Kafka       `yaml:"kafka"`
	Signing     Signing     `yaml:"signing"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	Environment     string        `yaml:"environment"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	Tracing         bool          `yaml:"tracing"`
}

// Privacy holds the differential privacy defaults and the per-subject budget.
type Privacy struct {
	// Budget is the total epsilon a subject may spend.
	Budget         float64    `yaml:"budget"`
	Epsilon        float64    `yaml:"epsilon"`
	Delta          float64    `yaml:"delta"`
	Sensitivity    float64    `yaml:"sensitivity"`
	Mechanism      string     `yaml:"mechanism"`
	ClampingBounds [2]float64 `yaml:"clampingBounds"`
	K              float64    `yaml:"k"`
	L              int        `yaml:"l"`
	T              float64    `yaml:"t"`
}

type Constraints struct {
	// MaxFieldSize is a decimal string; the BN254 scalar field modulus by default.
	MaxFieldSize   string `yaml:"maxFieldSize"`
	RangeProofBits uint   `yaml:"rangeProofBits"`
	MerkleDepth    int    `yaml:"merkleDepth"`
	MinCommitments int    `yaml:"minCommitments"`
	MaxCommitments int    `yaml:"maxCommitments"`
}

type Credentials struct {
	IssuerID            string        `yaml:"issuerId"`
	IssuerName          string        `yaml:"issuerName"`
	DefaultTTL          time.Duration `yaml:"defaultTtl"`
	VerificationTimeout time.Duration `yaml:"verificationTimeout"`
	MaxBatchSize        int           `yaml:"maxBatchSize"`
	VerificationKeyBase string        `yaml:"verificationKeyBase"`
	// CommitmentKey keys the hiding commitments. Required outside development.
	// Like the other key fields it may be an env: or file: reference.
	CommitmentKey string `yaml:"commitmentKey"`
}

type Aggregation struct {
	Intermediate     float64 `yaml:"intermediate"`
	Advanced         float64 `yaml:"advanced"`
	Expert           float64 `yaml:"expert"`
	TemporalDecay    float64 `yaml:"temporalDecay"`
	QualityWeighting bool    `yaml:"qualityWeighting"`
}

// Prover selects the proving backend. An empty URL uses the in-process
// simulated prover.
type Prover struct {
	URL               string        `yaml:"url"`
	APIKey            string        `yaml:"apiKey"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	FailureThreshold  int           `yaml:"failureThreshold"`
	SuccessThreshold  int           `yaml:"successThreshold"`
	ProbeInterval     time.Duration `yaml:"probeInterval"`
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
)

type Storage struct {
	Driver          string        `yaml:"driver"`
	DatabaseURL     string        `yaml:"databaseUrl"`
	SQLitePath      string        `yaml:"sqlitePath"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

type Ledger struct {
	Driver string `yaml:"driver"`
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"poolSize"`
	MinIdleConns int           `yaml:"minIdleConns"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// Kafka enables the audit sink when Brokers is set.
type Kafka struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
	Acks    string `yaml:"acks"`

	// Retention is how many audit events per subject the in-memory log keeps.
	Retention int `yaml:"retention"`
}

const (
	SigningNone    = "none"
	SigningJWS     = "jws"
	SigningEd25519 = "ed25519"
)

// Signing controls the signature attached to exported VC documents.
type Signing struct {
	Method string `yaml:"method"`
	// Key is the HMAC secret for jws or a 32-byte hex seed for ed25519.
	Key                string `yaml:"key"`
	VerificationMethod string `yaml:"verificationMethod"`
}

// Default returns a configuration that runs entirely in memory.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			Environment:     "development",
			ShutdownTimeout: 15 * time.Second,
		},
		Privacy: Privacy{
			Budget:         10,
			Epsilon:        1.0,
			Delta:          1e-5,
			Sensitivity:    1.0,
			Mechanism:      "laplace",
			ClampingBounds: [2]float64{0, 100},
			K:              5,
			L:              2,
			T:              0.2,
		},
		Constraints: Constraints{
			MaxFieldSize:   "21888242871839275222246405745257275088548364400416034343698204186575808495617",
			RangeProofBits: 32,
			MerkleDepth:    20,
			MinCommitments: 1,
			MaxCommitments: 1000,
		},
		Credentials: Credentials{
			IssuerID:            "did:web:devcred.example",
			IssuerName:          "devcred",
			DefaultTTL:          365 * 24 * time.Hour,
			VerificationTimeout: 30 * time.Second,
			MaxBatchSize:        10,
			VerificationKeyBase: "devcred:vk",
		},
		Aggregation: Aggregation{
			Intermediate:     30,
			Advanced:         60,
			Expert:           85,
			TemporalDecay:    0.1,
			QualityWeighting: true,
		},
		Prover: Prover{
			Timeout:           10 * time.Second,
			RequestsPerSecond: 20,
			Burst:             5,
			FailureThreshold:  5,
			SuccessThreshold:  2,
			ProbeInterval:     10 * time.Second,
		},
		Storage: Storage{
			Driver:          DriverMemory,
			SQLitePath:      "devcred.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Ledger: Ledger{Driver: DriverMemory},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka:   Kafka{Topic: "devcred.audit", Acks: "all", Retention: 512},
		Signing: Signing{Method: SigningNone},
	}
}

var defaultPaths = []string{"configs/devcred.yaml", "devcred.yaml"}

// Load reads configuration. An explicit path must exist; without one the
// default locations are tried and silently skipped when absent.
func Load(path string) (Config, error) {
	cfg := Default()

	candidates := defaultPaths
	if path != "" {
		candidates = []string{path}
	}
	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if path != "" {
				return Config{}, fmt.Errorf("read config %s: %w", p, err)
			}
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", p, err)
		}
		break
	}

	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.ResolveSecrets(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolveSecrets replaces env: and file: references in key fields with the
// secrets they point at. Every unresolvable reference is reported.
func (c *Config) ResolveSecrets() error {
	fields := []struct {
		name string
		ref  *string
	}{
		{"credentials.commitmentKey", &c.Credentials.CommitmentKey},
		{"signing.key", &c.Signing.Key},
		{"prover.apiKey", &c.Prover.APIKey},
		{"redis.url", &c.Redis.URL},
		{"storage.databaseUrl", &c.Storage.DatabaseURL},
	}
	var errs []error
	for _, f := range fields {
		v, err := secrets.Resolve(*f.ref)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
			continue
		}
		*f.ref = v
	}
	return errors.Join(errs...)
}

// ApplyEnv overrides cfg from DEVCRED_* variables looked up through getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	float := func(key string, dst *float64) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("DEVCRED_ADDR", &cfg.Server.Addr)
	str("DEVCRED_ENV", &cfg.Server.Environment)
	boolean("DEVCRED_TRACING", &cfg.Server.Tracing)

	float("DEVCRED_PRIVACY_BUDGET", &cfg.Privacy.Budget)
	float("DEVCRED_PRIVACY_EPSILON", &cfg.Privacy.Epsilon)
	float("DEVCRED_PRIVACY_DELTA", &cfg.Privacy.Delta)
	str("DEVCRED_PRIVACY_MECHANISM", &cfg.Privacy.Mechanism)

	str("DEVCRED_ISSUER_ID", &cfg.Credentials.IssuerID)
	duration("DEVCRED_CREDENTIAL_TTL", &cfg.Credentials.DefaultTTL)
	duration("DEVCRED_VERIFICATION_TIMEOUT", &cfg.Credentials.VerificationTimeout)
	integer("DEVCRED_MAX_BATCH_SIZE", &cfg.Credentials.MaxBatchSize)
	str("DEVCRED_COMMITMENT_KEY", &cfg.Credentials.CommitmentKey)

	str("DEVCRED_PROVER_URL", &cfg.Prover.URL)
	str("DEVCRED_PROVER_API_KEY", &cfg.Prover.APIKey)

	str("DEVCRED_STORAGE_DRIVER", &cfg.Storage.Driver)
	str("DEVCRED_DATABASE_URL", &cfg.Storage.DatabaseURL)
	str("DEVCRED_SQLITE_PATH", &cfg.Storage.SQLitePath)

	str("DEVCRED_LEDGER_DRIVER", &cfg.Ledger.Driver)
	str("DEVCRED_REDIS_URL", &cfg.Redis.URL)

	str("DEVCRED_KAFKA_BROKERS", &cfg.Kafka.Brokers)
	str("DEVCRED_KAFKA_TOPIC", &cfg.Kafka.Topic)

	str("DEVCRED_SIGNING_METHOD", &cfg.Signing.Method)
	str("DEVCRED_SIGNING_KEY", &cfg.Signing.Key)

	return errors.Join(errs...)
}

// Validate rejects inconsistent configurations.
func (c Config) Validate() error {
	var errs []error
	if c.Privacy.Budget <= 0 {
		errs = append(errs, fmt.Errorf("privacy.budget must be positive, got %v", c.Privacy.Budget))
	}
	if c.Privacy.Epsilon <= 0 || c.Privacy.Epsilon > c.Privacy.Budget {
		errs = append(errs, fmt.Errorf("privacy.epsilon must be in (0, budget], got %v", c.Privacy.Epsilon))
	}
	if c.Privacy.ClampingBounds[0] >= c.Privacy.ClampingBounds[1] {
		errs = append(errs, fmt.Errorf("privacy.clampingBounds must be increasing, got %v", c.Privacy.ClampingBounds))
	}
	a := c.Aggregation
	if !(0 < a.Intermediate && a.Intermediate < a.Advanced && a.Advanced < a.Expert && a.Expert <= 100) {
		errs = append(errs, fmt.Errorf("aggregation thresholds must increase within (0,100]: %v/%v/%v",
			a.Intermediate, a.Advanced, a.Expert))
	}
	if c.Constraints.MinCommitments > c.Constraints.MaxCommitments {
		errs = append(errs, errors.New("constraints.minCommitments exceeds maxCommitments"))
	}
	if c.Credentials.MaxBatchSize <= 0 {
		errs = append(errs, errors.New("credentials.maxBatchSize must be positive"))
	}
	if c.Credentials.IssuerID == "" {
		errs = append(errs, errors.New("credentials.issuerId is required"))
	}
	if c.Server.Environment != "development" && len(c.Credentials.CommitmentKey) < 16 {
		errs = append(errs, errors.New("credentials.commitmentKey of at least 16 bytes is required outside development"))
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("storage.databaseUrl is required for the postgres driver"))
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlitePath is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	switch c.Ledger.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver))
	}

	switch c.Signing.Method {
	case SigningNone, "":
	case SigningJWS, SigningEd25519:
		if c.Signing.Key == "" {
			errs = append(errs, fmt.Errorf("signing.key is required for %s", c.Signing.Method))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown signing method %q", c.Signing.Method))
	}
	return errors.Join(errs...)
}
