package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runnerr0/tsindex/internal/catalog"
	"github.com/runnerr0/tsindex/internal/miniseed/miniseedtest"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

var testStart = time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

// writeTestFile writes a small contiguous miniSEED file and returns its path.
func writeTestFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	specs := make([]miniseedtest.RecordSpec, 3)
	for i := range specs {
		specs[i] = miniseedtest.RecordSpec{
			Start:   testStart.Add(time.Duration(i) * time.Minute),
			Samples: 60,
			Rate:    1,
			Fill:    byte(i),
		}
	}
	require.NoError(t, miniseedtest.WriteFile(path, specs...))
	return path
}

// openTestStore creates an embedded catalog in a temp directory.
func openTestStore(t *testing.T) (*catalog.Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	store, err := catalog.OpenSQLite(dbPath, catalog.DefaultTable, 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}
