package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/runnerr0/tsindex/internal/catalog"
	"github.com/runnerr0/tsindex/internal/config"
	"github.com/runnerr0/tsindex/internal/index"
)

// loadConfig returns the configuration for a run: the file named by
// --config merged over defaults, then command line flag overrides.
func loadConfig(globals *GlobalFlags, scan ScanFlags) (*config.Config, error) {
	cfg := config.Default()

	if globals != nil && globals.Config != "" {
		loaded, err := config.Load(globals.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Flags override the config file only when set away from their
	// defaults, so a config file remains authoritative for untouched
	// settings.
	if scan.TimeTolerance >= 0 {
		cfg.Scan.TimeToleranceSec = scan.TimeTolerance
	}
	if scan.RateTolerance >= 0 {
		cfg.Scan.RateTolerance = scan.RateTolerance
	}
	if scan.IndexInterval != 3600 {
		cfg.Scan.SubIndexIntervalSec = scan.IndexInterval
	}
	if scan.KeepPaths {
		cfg.Scan.KeepPaths = true
	}
	if scan.ScanTime {
		cfg.Scan.ScanTimeUpdates = true
	}

	return cfg, nil
}

// scanOptions converts configuration into index build options.
func scanOptions(cfg *config.Config) index.Options {
	return index.Options{
		TimeTolerance:    cfg.Scan.TimeToleranceSec,
		RateTolerance:    cfg.Scan.RateTolerance,
		SubIndexInterval: cfg.Scan.SubIndexInterval(),
		ScanTimeUpdates:  cfg.Scan.ScanTimeUpdates,
	}
}

// collectFiles expands the argument list: plain entries are input files,
// @name entries name list files with one input path per line. Blank lines
// and # comments in list files are skipped.
func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		if !strings.HasPrefix(arg, "@") {
			files = append(files, arg)
			continue
		}

		listPath := arg[1:]
		f, err := os.Open(listPath)
		if err != nil {
			return nil, fmt.Errorf("open list file %s: %w", listPath, err)
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			files = append(files, line)
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return nil, fmt.Errorf("read list file %s: %w", listPath, err)
		}
		f.Close()
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no input files were specified")
	}
	return files, nil
}

// resolvePaths converts each input path to its absolute form, preserving a
// trailing #version suffix which is not part of the on-disk name.
func resolvePaths(files []string) ([]string, error) {
	out := make([]string, len(files))
	for i, f := range files {
		name, suffix := splitVersionSuffix(f)
		abs, err := filepath.Abs(name)
		if err != nil {
			return nil, fmt.Errorf("resolve path %s: %w", name, err)
		}
		out[i] = abs + suffix
	}
	return out, nil
}

// splitVersionSuffix separates a trailing #version marker from the path
// used to open the file.
func splitVersionSuffix(path string) (name, suffix string) {
	if i := strings.LastIndex(path, "#"); i >= 0 {
		return path[:i], path[i:]
	}
	return path, ""
}

// scanAll indexes every input file. Any failure aborts the run: a file
// that cannot be read or decoded yields no partial output.
func scanAll(files []string, opts index.Options, verbose int) ([]*index.FileScan, error) {
	scans := make([]*index.FileScan, 0, len(files))

	for _, f := range files {
		if verbose >= 1 {
			fmt.Printf("Processing: %s\n", f)
		}

		name, suffix := splitVersionSuffix(f)
		fs, err := index.ScanFile(name, opts)
		if err != nil {
			return nil, err
		}
		fs.Path = name + suffix

		scans = append(scans, fs)
	}

	return scans, nil
}

// openStore opens the catalog selected by the flags, falling back to the
// config file's backend settings.
func openStore(flags CatalogFlags, cfg *config.Config) (*catalog.Store, error) {
	table := flags.Table
	if table == "" || table == catalog.DefaultTable {
		if cfg.Catalog.Table != "" {
			table = cfg.Catalog.Table
		}
	}

	sqlitePath := flags.SQLite
	if sqlitePath == "" {
		sqlitePath = cfg.Catalog.SQLiteFile
	}
	dsn := flags.Postgres
	if dsn == "" {
		dsn = cfg.Catalog.PostgresDSN
	}

	switch {
	case sqlitePath != "" && dsn != "":
		return nil, fmt.Errorf("choose one catalog backend, not both --sqlite and --postgres")
	case sqlitePath != "":
		busy := flags.BusyTimeout
		if busy == 10000 && cfg.Catalog.SQLiteBusyTimeout > 0 {
			busy = cfg.Catalog.SQLiteBusyTimeout
		}
		return catalog.OpenSQLite(sqlitePath, table, busy)
	case dsn != "":
		return catalog.OpenPostgres(dsn, table)
	default:
		return nil, fmt.Errorf("no catalog was specified; use --sqlite or --postgres")
	}
}

// printSections writes the human-readable section listing for one scan.
func printSections(fs *index.FileScan, verbose int) {
	fmt.Printf("%s (earliest %s, latest %s)\n", fs.Path,
		fs.Earliest.UTC().Format("2006-01-02T15:04:05.000000"),
		fs.Latest.UTC().Format("2006-01-02T15:04:05.000000"))

	for _, s := range fs.Sections {
		fmt.Printf("  %-20s %s  %s  %.6g Hz  offset %d, %d bytes, hash %s, updated %s, scanned %s\n",
			s.ID, s.Earliest.UTC().Format("2006-01-02T15:04:05.000000"),
			s.Latest.UTC().Format("2006-01-02T15:04:05.000000"),
			s.SampleRate, s.StartOffset, s.ByteCount(), s.Hash,
			s.Updated.UTC().Format("2006-01-02T15:04:05"),
			fs.ScanTime.UTC().Format("2006-01-02T15:04:05"))

		if verbose >= 2 {
			if s.Index != nil {
				fmt.Println("  Time index:")
				for _, e := range s.Index {
					fmt.Printf("    %s - %d\n", catalog.Epoch(e.Time), e.Offset)
				}
			} else {
				fmt.Println("  Time index: suppressed (earliest data is not first in section)")
			}
			if len(s.Spans) > 0 {
				fmt.Println("  Span list:")
				for _, sp := range s.Spans {
					fmt.Printf("    %s - %s (%.6g Hz)\n",
						catalog.Epoch(sp.Start), catalog.Epoch(sp.End), sp.Rate)
				}
			}
		}
	}
}
