package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultTable is the catalog table name used unless configured otherwise.
const DefaultTable = "tsindex"

// dialect selects backend-specific SQL details.
type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store executes catalog operations against one SQL backend. The
// underlying *sql.DB is owned by the Store and released by Close.
type Store struct {
	db      *sql.DB
	table   string
	dialect dialect

	// testHookAfterDelete runs inside Replace between the delete and the
	// inserts; a non-nil error aborts the transaction. Tests use it to
	// simulate partial failure. Always nil in production.
	testHookAfterDelete func(tx *sql.Tx) error
}

// tableNamePattern restricts table names to safe SQL identifiers, since
// the name is interpolated into statements.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func newStore(db *sql.DB, table string, d dialect) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{db: db, table: table, dialect: d}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to the backend's style.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Predicate selects the existing rows a file replaces: rows for the exact
// filename, or for any version of a version-stripped base name, further
// narrowed to an overlapping time range widened by a slack window. The
// slack is a storage optimization hint only; per-section comparison is
// exact.
type Predicate struct {
	Filename   string
	BasePrefix string // non-empty when the filename carried a version suffix
	Start      time.Time
	End        time.Time
}

// where renders the predicate as a WHERE fragment with ? placeholders.
func (p Predicate) where() (string, []interface{}) {
	var clause string
	var args []interface{}

	if p.BasePrefix != "" {
		clause = "filename LIKE ?"
		args = append(args, p.BasePrefix+"%")
	} else {
		clause = "filename = ?"
		args = append(args, p.Filename)
	}

	clause += " AND starttime <= ? AND endtime >= ?"
	args = append(args, p.End.UTC().Format(TimeLayout), p.Start.UTC().Format(TimeLayout))
	return clause, args
}

// Existing is the subset of a stored row needed for reconciliation.
type Existing struct {
	Network  string
	Station  string
	Location string
	Channel  string
	Quality  string
	Version  int
	Hash     string
	Updated  time.Time
}

// FindMatches returns the stored rows matching the predicate.
func (s *Store) FindMatches(ctx context.Context, p Predicate) ([]Existing, error) {
	clause, args := p.where()
	query := s.rebind(fmt.Sprintf(
		"SELECT network,station,location,channel,quality,version,hash,updated FROM %s WHERE %s",
		s.table, clause))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing rows: %w", err)
	}
	defer rows.Close()

	var out []Existing
	for rows.Next() {
		var e Existing
		var version sql.NullInt64
		var updated string
		if err := rows.Scan(&e.Network, &e.Station, &e.Location, &e.Channel,
			&e.Quality, &version, &e.Hash, &updated); err != nil {
			return nil, fmt.Errorf("scan existing row: %w", err)
		}
		if version.Valid {
			e.Version = int(version.Int64)
		}
		// A row with an unreadable updated value must not be carried
		// forward as the zero time.
		t, err := parseCatalogTime(updated)
		if err != nil {
			return nil, fmt.Errorf("row for %s.%s.%s.%s.%s: %w",
				e.Network, e.Station, e.Location, e.Channel, e.Quality, err)
		}
		e.Updated = t
		out = append(out, e)
	}
	return out, rows.Err()
}

// Replace atomically swaps the matched rows for the given new rows:
// delete fully precedes insert within one transaction, so a concurrent
// reader sees either the original set or the replacement, never a mix.
func (s *Store) Replace(ctx context.Context, p Predicate, rows []Row, deleteExisting bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if deleteExisting {
		clause, args := p.where()
		del := s.rebind(fmt.Sprintf("DELETE FROM %s WHERE %s", s.table, clause))
		if _, err := tx.ExecContext(ctx, del, args...); err != nil {
			return fmt.Errorf("delete existing rows: %w", err)
		}
	}

	if s.testHookAfterDelete != nil {
		if err := s.testHookAfterDelete(tx); err != nil {
			return err
		}
	}

	ins := s.rebind(fmt.Sprintf(
		"INSERT INTO %s (network,station,location,channel,quality,version,"+
			"starttime,endtime,samplerate,filename,byteoffset,bytes,hash,"+
			"timeindex,timespans,timerates,format,filemodtime,updated,scanned) "+
			"VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		s.table))

	stmt, err := tx.PrepareContext(ctx, ins)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.Network, r.Station, r.Location, r.Channel, r.Quality, r.Version,
			r.Start.UTC().Format(TimeLayout), r.End.UTC().Format(TimeLayout),
			r.SampleRate, r.Filename, r.ByteOffset, r.ByteCount, r.Hash,
			nullable(r.TimeIndex), nullable(r.TimeSpans), nullable(r.TimeRates),
			nil, // format: NULL means miniSEED
			r.FileModTime.UTC().Format(TimeLayout),
			r.Updated.UTC().Format(TimeLayout),
			r.Scanned.UTC().Format(TimeLayout),
		)
		if err != nil {
			return fmt.Errorf("insert row for %s.%s.%s.%s: %w",
				r.Network, r.Station, r.Location, r.Channel, err)
		}
	}

	return tx.Commit()
}

// nullable maps an empty serialized value to SQL NULL.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// parseCatalogTime accepts the catalog layout plus the common variants a
// pre-existing table may contain.
func parseCatalogTime(s string) (time.Time, error) {
	layouts := []string{
		TimeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999-07",
		"2006-01-02 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse catalog time %q", s)
}
