package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens (creating if needed) an embedded SQLite catalog. The
// busy timeout bounds waiting on a locked database file; zero disables it.
func OpenSQLite(path, table string, busyTimeoutMS int) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open SQLite database %s: %w", path, err)
	}

	if busyTimeoutMS > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	// Case-sensitive LIKE, as it should be with file names. This also
	// lets the filename index serve the prefix LIKE in the match
	// predicate.
	if _, err := db.Exec("PRAGMA case_sensitive_like = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set case_sensitive_like: %w", err)
	}

	s, err := newStore(db, table, dialectSQLite)
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// ensureSchema creates the catalog table and its secondary indexes if they
// do not exist. The SQLite backend owns its schema; the relational backend
// expects a pre-existing table.
func (s *Store) ensureSchema() error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			network     TEXT,
			station     TEXT,
			location    TEXT,
			channel     TEXT,
			quality     TEXT,
			version     INTEGER,
			starttime   TEXT,
			endtime     TEXT,
			samplerate  REAL,
			filename    TEXT,
			byteoffset  INTEGER,
			bytes       INTEGER,
			hash        TEXT,
			timeindex   TEXT,
			timespans   TEXT,
			timerates   TEXT,
			format      TEXT,
			filemodtime TEXT,
			updated     TEXT,
			scanned     TEXT
		)`, s.table),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_nslcse_idx ON %s
			(network,station,location,channel,starttime,endtime)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_filename_idx ON %s (filename)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_updated_idx ON %s (updated)`, s.table, s.table),
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
