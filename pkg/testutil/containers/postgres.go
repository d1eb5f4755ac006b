//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"devcred/migrations"
)

type Postgres struct {
	DSN string
	DB  *sql.DB
}

func startPostgres(ctx context.Context) (*Postgres, error) {
	c, err := postgres.Run(ctx, "postgres:18-alpine",
		postgres.WithDatabase("devcred_test"),
		postgres.WithUsername("devcred"),
		postgres.WithPassword("devcred"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	return &Postgres{DSN: dsn, DB: db}, nil
}

// Reset empties the given tables, or every devcred table when none are named.
func (p *Postgres) Reset(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		tables = []string{"credentials"}
	}
	_, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE")
	return err
}
