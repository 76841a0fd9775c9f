package cli

import (
	"context"
	"os"

	"github.com/runnerr0/tsindex/internal/catalog"
	"github.com/runnerr0/tsindex/internal/export"
	"github.com/runnerr0/tsindex/internal/index"
)

// Execute implements the go-flags Commander interface for ShowCommand.
func (c *ShowCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals, c.Scan)
	if err != nil {
		return err
	}

	files, err := collectFiles(c.Args.Files)
	if err != nil {
		return err
	}
	if !cfg.Scan.KeepPaths {
		if files, err = resolvePaths(files); err != nil {
			return err
		}
	}

	scans, err := scanAll(files, scanOptions(cfg), c.verbosity())
	if err != nil {
		return err
	}

	// With a catalog configured, show still performs the match and
	// updated carry-forward so the listing reflects what a sync would
	// write, but never opens a transaction.
	var store *catalog.Store
	if c.Catalog.SQLite != "" || c.Catalog.Postgres != "" || cfg.Catalog.SQLiteFile != "" || cfg.Catalog.PostgresDSN != "" {
		if store, err = openStore(c.Catalog, cfg); err != nil {
			return err
		}
		defer store.Close()
	}

	return c.showWithStore(store, scans)
}

// showWithStore prints scans, optionally annotated from a store (for testing).
func (c *ShowCommand) showWithStore(store *catalog.Store, scans []*index.FileScan) error {
	if store != nil {
		ctx := context.Background()
		rec := catalog.NewReconciler(store)
		for _, fs := range scans {
			rows, _, _, err := rec.Prepare(ctx, fs)
			if err != nil {
				return err
			}
			// Rows mirror the section list in order; fold the carried
			// updated values back so the listing shows what a sync
			// would write.
			for i := range rows {
				fs.Sections[i].Updated = rows[i].Updated
			}
		}
	}

	if c.JSON {
		return export.Write(os.Stdout, scans)
	}

	verbose := c.verbosity()
	if verbose < 2 {
		verbose = 2 // show exists to display detail
	}
	for _, fs := range scans {
		printSections(fs, verbose)
	}
	return nil
}

func (c *ShowCommand) verbosity() int {
	if c.globals == nil {
		return 0
	}
	return len(c.globals.Verbose)
}
