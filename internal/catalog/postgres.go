package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// OpenPostgres connects to a PostgreSQL catalog. The target table must
// already exist; only rows are managed here. Catalog timestamps carry no
// zone, so the session is pinned to UTC on a single pooled connection.
func OpenPostgres(dsn, table string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open Postgres connection: %w", err)
	}

	// One file is reconciled at a time; a single connection keeps the
	// session setting in force for every statement.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to Postgres: %w", err)
	}

	if _, err := db.Exec("SET SESSION TIME ZONE 'UTC'"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set session timezone: %w", err)
	}

	s, err := newStore(db, table, dialectPostgres)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
