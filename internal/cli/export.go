package cli

import (
	"github.com/runnerr0/tsindex/internal/export"
)

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
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

	return export.WriteFile(c.Output, scans)
}

func (c *ExportCommand) verbosity() int {
	if c.globals == nil {
		return 0
	}
	return len(c.globals.Verbose)
}
