// Package database opens the Postgres pool behind the credential store.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"devcred/internal/platform/config"
)

const pingTimeout = 5 * time.Second

// Options tunes the pool. Zero values keep the defaults below.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 25
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 5
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 5 * time.Minute
	}
	return o
}

// Pool is the pgx-backed *sql.DB shared by the credential store and the
// migration runner.
type Pool struct {
	db *sql.DB
}

// Open connects using the storage section of the configuration. When reg is
// non-nil the pool's sql.DBStats are exported as go_sql_* metrics.
func Open(ctx context.Context, s config.Storage, reg prometheus.Registerer) (*Pool, error) {
	if s.DatabaseURL == "" {
		return nil, errors.New("storage.databaseUrl is required for the postgres driver")
	}
	opts := Options{
		MaxOpenConns:    s.MaxOpenConns,
		MaxIdleConns:    s.MaxIdleConns,
		ConnMaxLifetime: s.ConnMaxLifetime,
	}.withDefaults()

	db, err := sql.Open("pgx", s.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if reg != nil {
		if err := reg.Register(collectors.NewDBStatsCollector(db, "credentials")); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
	}
	return &Pool{db: db}, nil
}

func (p *Pool) DB() *sql.DB { return p.db }

func (p *Pool) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Pool) Close() error {
	return p.db.Close()
}
