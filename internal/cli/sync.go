package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/runnerr0/tsindex/internal/catalog"
	"github.com/runnerr0/tsindex/internal/index"
)

// Execute implements the go-flags Commander interface for SyncCommand.
func (c *SyncCommand) Execute(args []string) error {
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

	store, err := openStore(c.Catalog, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return c.syncWithStore(store, scans)
}

// syncWithStore reconciles every scan against a provided store (for testing).
// A failed file is reported and skipped; its catalog state is untouched and
// the remaining files still synchronize.
func (c *SyncCommand) syncWithStore(store *catalog.Store, scans []*index.FileScan) error {
	ctx := context.Background()
	rec := catalog.NewReconciler(store)

	var failed int
	for _, fs := range scans {
		if c.verbosity() >= 1 {
			fmt.Printf("Synchronizing sections for %s\n", fs.Path)
		}
		if err := rec.Sync(ctx, fs); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			failed++
			continue
		}
		if c.verbosity() >= 2 {
			printSections(fs, c.verbosity())
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to synchronize %d of %d files", failed, len(scans))
	}
	return nil
}

func (c *SyncCommand) verbosity() int {
	if c.globals == nil {
		return 0
	}
	return len(c.globals.Verbose)
}
