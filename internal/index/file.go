package index

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/runnerr0/tsindex/internal/miniseed"
)

// Source is the record stream consumed by Scan. io.EOF marks a clean end
// of stream; any other error aborts the whole file.
type Source interface {
	Next() (*miniseed.Record, error)
}

// FileScan holds everything indexed for one file: its sections in file
// order, the file-level time extrema and the whole-file content hash.
type FileScan struct {
	Path     string
	ModTime  time.Time
	ScanTime time.Time
	Earliest time.Time
	Latest   time.Time
	Hash     string
	Sections []*Section
}

// ErrNoSections is returned when a file yields no sections and therefore
// no time extents; the caller expected time series content.
var ErrNoSections = errors.New("no time extents found")

// ScanFile reads a file from disk and indexes it with Scan.
func ScanFile(path string, opts Options) (*FileScan, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	r, err := miniseed.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return Scan(path, st.ModTime(), time.Now().UTC(), r, opts)
}

// Scan consumes src and builds the file's sections. A decode error aborts
// the whole file with no partial result: section boundaries past the error
// point cannot be trusted.
func Scan(path string, modTime, scanTime time.Time, src Source, opts Options) (*FileScan, error) {
	fs := &FileScan{Path: path, ModTime: modTime, ScanTime: scanTime}

	updated := modTime
	if opts.ScanTimeUpdates {
		updated = scanTime
	}

	fileDigest := xxhash.New()
	var cur *Section

	for {
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if cur != nil && cur.accepts(rec) {
			cur.fold(rec)
		} else {
			cur = openSection(rec, updated, opts)
			fs.Sections = append(fs.Sections, cur)
		}

		fileDigest.Write(rec.Raw)
	}

	if len(fs.Sections) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoSections)
	}

	for _, s := range fs.Sections {
		s.seal()
		if fs.Earliest.IsZero() || s.Earliest.Before(fs.Earliest) {
			fs.Earliest = s.Earliest
		}
		if fs.Latest.IsZero() || s.Latest.After(fs.Latest) {
			fs.Latest = s.Latest
		}
	}

	fs.Hash = hex.EncodeToString(fileDigest.Sum(nil))
	return fs, nil
}
