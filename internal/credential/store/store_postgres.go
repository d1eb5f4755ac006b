package store

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// NewPostgresStore constructs a PostgreSQL-backed credential store. The
// schema comes from the migrations directory.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db: db,
		dialect: dialect{
			isConflict: isUniqueViolation,
		},
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
