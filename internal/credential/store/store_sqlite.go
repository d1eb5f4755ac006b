package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS credentials (
	id            TEXT PRIMARY KEY,
	subject       TEXT NOT NULL,
	type          TEXT NOT NULL,
	version       TEXT NOT NULL,
	issuer        TEXT NOT NULL,
	claims        TEXT NOT NULL,
	proof         TEXT NOT NULL,
	issued_at     TEXT NOT NULL,
	expires_at    TEXT,
	metadata      TEXT,
	status        TEXT NOT NULL CHECK (status IN ('ready', 'revoked')),
	privacy_level TEXT
);
CREATE INDEX IF NOT EXISTS idx_credentials_subject ON credentials (subject, issued_at);
`

// OpenSQLite opens a single-node SQLite database at path and applies the
// credential schema.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer avoids SQLITE_BUSY under concurrent batch generation
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return db, nil
}

// NewSQLiteStore constructs a SQLite-backed credential store over a database
// opened with OpenSQLite.
func NewSQLiteStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db: db,
		dialect: dialect{
			positional: true,
			textTime:   true,
			isConflict: isSQLiteConstraint,
		},
	}
}

func isSQLiteConstraint(err error) bool {
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
