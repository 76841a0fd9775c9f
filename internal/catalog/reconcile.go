package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/runnerr0/tsindex/internal/index"
)

// slackWindow widens the match predicate's time range in both directions.
// It exists purely so a partitioned backend can prune its search; the
// per-section comparison is exact regardless.
const slackWindow = 24 * time.Hour

// Reconciler diffs freshly built sections against previously stored rows
// and performs a minimal transactional replace per file.
type Reconciler struct {
	store *Store
}

// NewReconciler returns a Reconciler writing through the given store.
func NewReconciler(store *Store) *Reconciler {
	return &Reconciler{store: store}
}

// ParseVersionSuffix splits a "#version" suffix off a filename. It returns
// the base name, the parsed version and whether a suffix was present. An
// unparseable suffix is a validation error: the file cannot be matched
// against its version family.
func ParseVersionSuffix(filename string) (base string, version int, ok bool, err error) {
	i := strings.LastIndex(filename, "#")
	if i < 0 {
		return filename, 0, false, nil
	}

	v, perr := strconv.Atoi(filename[i+1:])
	if perr != nil {
		return "", 0, false, fmt.Errorf("parsing version from %s: %w", filename, perr)
	}
	return filename[:i], v, true, nil
}

// sectionKey identifies a section for the updated carry-forward lookup.
type sectionKey struct {
	network  string
	station  string
	location string
	channel  string
	quality  string
	version  int
	hash     string
}

// Prepare computes the catalog rows and match predicate for a file and
// carries forward the stored updated time of every section whose content
// is unchanged. It touches the backend read-only; Sync performs the
// replace.
func (r *Reconciler) Prepare(ctx context.Context, fs *index.FileScan) ([]Row, Predicate, int, error) {
	base, version, hasVersion, err := ParseVersionSuffix(fs.Path)
	if err != nil {
		return nil, Predicate{}, 0, err
	}

	rows, err := BuildRows(fs, version, hasVersion)
	if err != nil {
		return nil, Predicate{}, 0, err
	}

	pred := Predicate{
		Filename: fs.Path,
		Start:    fs.Earliest.Add(-slackWindow),
		End:      fs.Latest.Add(slackWindow),
	}
	if hasVersion {
		pred.BasePrefix = base
	}

	existing, err := r.store.FindMatches(ctx, pred)
	if err != nil {
		return nil, Predicate{}, 0, err
	}

	// Content unchanged means the update time is not bumped: carry the
	// stored value forward into the fresh row.
	byKey := make(map[sectionKey]time.Time, len(existing))
	for _, e := range existing {
		byKey[sectionKey{e.Network, e.Station, e.Location, e.Channel, e.Quality, e.Version, e.Hash}] = e.Updated
	}
	for i := range rows {
		k := sectionKey{rows[i].Network, rows[i].Station, rows[i].Location,
			rows[i].Channel, rows[i].Quality, rows[i].Version, rows[i].Hash}
		if updated, found := byKey[k]; found {
			rows[i].Updated = updated
		}
	}

	return rows, pred, len(existing), nil
}

// Sync replaces a file's catalog rows with freshly built ones. On any
// failure the transaction rolls back and the file's catalog state is left
// exactly as it was.
func (r *Reconciler) Sync(ctx context.Context, fs *index.FileScan) error {
	rows, pred, matched, err := r.Prepare(ctx, fs)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", fs.Path, err)
	}

	if err := r.store.Replace(ctx, pred, rows, matched > 0); err != nil {
		return fmt.Errorf("reconcile %s: %w", fs.Path, err)
	}
	return nil
}
