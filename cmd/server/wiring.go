package main

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"devcred/internal/aggregate"
	"devcred/internal/audit"
	"devcred/internal/claims"
	"devcred/internal/credential/assembler"
	"devcred/internal/credential/metrics"
	"devcred/internal/credential/models"
	"devcred/internal/credential/prover"
	"devcred/internal/credential/service"
	"devcred/internal/credential/store"
	"devcred/internal/platform/config"
	"devcred/internal/platform/database"
	"devcred/internal/platform/health"
	"devcred/internal/platform/kafka/producer"
	redisclient "devcred/internal/platform/redis"
	"devcred/internal/platform/tracer"
	"devcred/internal/privacy"
	"devcred/internal/validation"
	"devcred/internal/vcdoc"
	"devcred/migrations"
	"devcred/pkg/platform/middleware/request"
	"devcred/pkg/secrets"
)

const auditBuffer = 1024

// application holds the wired manager and everything that must be closed on
// shutdown, in reverse order of creation.
type application struct {
	service        *service.Service
	requestMetrics *request.Metrics
	closers        []func()
}

func (a *application) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer, checks *health.Handler) (app *application, err error) {
	app = &application{requestMetrics: request.NewMetrics(reg)}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	m := metrics.New(reg)
	tr := newTracer(cfg.Server, app)

	credStore, err := newStore(ctx, cfg.Storage, reg, app, checks)
	if err != nil {
		return nil, err
	}
	ledger, err := newLedger(ctx, cfg, log, reg, app, checks)
	if err != nil {
		return nil, err
	}
	engine := privacy.NewEngine(ledger, privacy.WithLogger(log), privacy.WithObserver(m))

	pipeline, params, err := newPipeline(cfg)
	if err != nil {
		return nil, err
	}

	committer, err := newCommitter(cfg, log)
	if err != nil {
		return nil, err
	}
	scoring := aggregate.Scoring{
		Thresholds: aggregate.Thresholds{
			Intermediate: cfg.Aggregation.Intermediate,
			Advanced:     cfg.Aggregation.Advanced,
			Expert:       cfg.Aggregation.Expert,
		},
		TemporalDecay:    cfg.Aggregation.TemporalDecay,
		QualityWeighting: cfg.Aggregation.QualityWeighting,
	}
	asm := assembler.New(
		committer,
		engine,
		aggregate.New(scoring, engine, log),
		prover.Instrument(newProver(cfg.Prover, log), m, tr),
		models.Issuer{ID: cfg.Credentials.IssuerID, Name: cfg.Credentials.IssuerName},
		assembler.WithDefaultTTL(cfg.Credentials.DefaultTTL),
		assembler.WithLogger(log),
	)

	publisher, err := newAuditPublisher(cfg.Kafka, log, reg, app, checks)
	if err != nil {
		return nil, err
	}

	adapter, err := newAdapter(cfg)
	if err != nil {
		return nil, err
	}

	app.service = service.New(credStore, pipeline, asm, engine,
		service.WithLogger(log),
		service.WithAuditor(publisher),
		service.WithExporter(adapter),
		service.WithMetrics(m),
		service.WithTracer(tr),
		service.WithVerificationTimeout(cfg.Credentials.VerificationTimeout),
		service.WithMaxBatchSize(cfg.Credentials.MaxBatchSize),
		service.WithVerificationKeyBase(cfg.Credentials.VerificationKeyBase),
	)
	log.Info("credential manager ready",
		"default_epsilon", params.Epsilon,
		"budget", cfg.Privacy.Budget,
		"max_batch_size", cfg.Credentials.MaxBatchSize,
	)
	return app, nil
}

func newTracer(cfg config.Server, app *application) tracer.Tracer {
	if !cfg.Tracing {
		return tracer.NewNoop()
	}
	p := tracer.NewProvider("devcred", cfg.Environment)
	app.onClose(func() { _ = p.Shutdown(5 * time.Second) })
	return p.Tracer()
}

func newStore(ctx context.Context, cfg config.Storage, reg prometheus.Registerer, app *application, checks *health.Handler) (service.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := database.Open(ctx, cfg, reg)
		if err != nil {
			return nil, err
		}
		app.onClose(func() { _ = pool.Close() })
		if err := migrations.Up(ctx, pool.DB()); err != nil {
			return nil, err
		}
		checks.RegisterCheck("store", pool.Health)
		return store.NewPostgresStore(pool.DB()), nil
	case config.DriverSQLite:
		db, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		app.onClose(func() { _ = db.Close() })
		s := store.NewSQLiteStore(db)
		checks.RegisterCheck("store", s.Health)
		return s, nil
	default:
		return store.NewInMemoryStore(), nil
	}
}

func newLedger(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer, app *application, checks *health.Handler) (privacy.Ledger, error) {
	if cfg.Ledger.Driver != config.DriverRedis {
		log.Warn("privacy ledger is in memory; budgets reset on restart")
		return privacy.NewMemoryLedger(cfg.Privacy.Budget), nil
	}

	client, err := redisclient.New(ctx, cfg.Redis, reg)
	if err != nil {
		return nil, err
	}
	app.onClose(func() { _ = client.Close() })
	checks.RegisterCheck("ledger", client.Health)
	return privacy.NewRedisLedger(client.Client, cfg.Privacy.Budget), nil
}

func newPipeline(cfg config.Config) (*validation.Pipeline, privacy.Parameters, error) {
	fieldSize, err := validation.ParseMaxFieldSize(cfg.Constraints.MaxFieldSize)
	if err != nil {
		return nil, privacy.Parameters{}, err
	}
	params := privacy.Parameters{
		Epsilon:        cfg.Privacy.Epsilon,
		Delta:          cfg.Privacy.Delta,
		Sensitivity:    cfg.Privacy.Sensitivity,
		Mechanism:      privacy.Mechanism(cfg.Privacy.Mechanism),
		ClampingBounds: cfg.Privacy.ClampingBounds,
		K:              cfg.Privacy.K,
	}
	pipeline := validation.New(
		validation.WithConstraints(validation.ConstraintConfig{
			MaxFieldSize:   fieldSize,
			RangeProofBits: cfg.Constraints.RangeProofBits,
			MerkleDepth:    cfg.Constraints.MerkleDepth,
			MinCommitments: cfg.Constraints.MinCommitments,
			MaxCommitments: cfg.Constraints.MaxCommitments,
		}),
		validation.WithAnonymityPolicy(privacy.Policy{L: cfg.Privacy.L, T: cfg.Privacy.T}),
		validation.WithDefaultParameters(params),
	)
	return pipeline, params, nil
}

func newCommitter(cfg config.Config, log *slog.Logger) (*claims.Committer, error) {
	key := cfg.Credentials.CommitmentKey
	if key == "" {
		// config validation only allows this in development
		generated, err := secrets.Generate()
		if err != nil {
			return nil, err
		}
		key = generated
		log.Warn("using an ephemeral commitment key; commitments will not match across restarts")
	}
	return claims.NewCommitter([]byte(key))
}

func newProver(cfg config.Prover, log *slog.Logger) prover.Prover {
	if cfg.URL == "" {
		return prover.NewSimulated()
	}
	return prover.NewHTTPClient(prover.HTTPConfig{
		BaseURL:           cfg.URL,
		APIKey:            cfg.APIKey,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		FailureThreshold:  cfg.FailureThreshold,
		SuccessThreshold:  cfg.SuccessThreshold,
		ProbeInterval:     cfg.ProbeInterval,
		Logger:            log,
	})
}

func newAuditPublisher(cfg config.Kafka, log *slog.Logger, reg prometheus.Registerer, app *application, checks *health.Handler) (*audit.Publisher, error) {
	stores := audit.MultiStore{audit.NewInMemoryStore(audit.WithRetention(cfg.Retention))}
	if cfg.Brokers != "" {
		pcfg := producer.DefaultConfig()
		pcfg.Brokers = cfg.Brokers
		if cfg.Acks != "" {
			pcfg.Acks = cfg.Acks
		}
		p, err := producer.New(pcfg, log, reg)
		if err != nil {
			return nil, err
		}
		app.onClose(func() { _ = p.Close() })
		checks.RegisterOptional("audit", p.Health)
		stores = append(stores, audit.NewKafkaStore(p, cfg.Topic))
	}

	publisher := audit.NewPublisher(stores,
		audit.WithAsyncBuffer(auditBuffer),
		audit.WithPublisherLogger(log),
	)
	app.onClose(publisher.Close)
	return publisher, nil
}

func newAdapter(cfg config.Config) (*vcdoc.Adapter, error) {
	opts := []vcdoc.Option{vcdoc.WithVerificationKeyBase(cfg.Credentials.VerificationKeyBase)}
	vm := cfg.Signing.VerificationMethod
	if vm == "" {
		vm = cfg.Credentials.IssuerID + "#key-1"
	}

	switch cfg.Signing.Method {
	case config.SigningJWS:
		s, err := vcdoc.NewJWSSigner([]byte(cfg.Signing.Key), vm)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vcdoc.WithSigner(s))
	case config.SigningEd25519:
		seed, err := hex.DecodeString(cfg.Signing.Key)
		if err != nil {
			return nil, errors.New("signing.key must be a hex encoded ed25519 seed")
		}
		s, err := vcdoc.NewEd25519Signer(seed, vm)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vcdoc.WithSigner(s))
	}
	return vcdoc.NewAdapter(opts...), nil
}
