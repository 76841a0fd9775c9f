package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Sync   *SyncCommand
	Show   *ShowCommand
	Export *ExportCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "tsindex"
	parser.LongDescription = "Build a time-range index over miniSEED files and synchronize it with a catalog."

	cmds := &commands{
		Sync:   &SyncCommand{globals: &globals, version: version},
		Show:   &ShowCommand{globals: &globals, version: version},
		Export: &ExportCommand{globals: &globals, version: version},
	}

	parser.AddCommand("sync", "Index files and synchronize a catalog", "Read miniSEED files, build their section index, and replace the matching catalog rows transactionally.", cmds.Sync)
	parser.AddCommand("show", "Print sections without syncing", "Read miniSEED files and print the sections that would be synchronized. No catalog rows are modified.", cmds.Show)
	parser.AddCommand("export", "Write structured export records", "Read miniSEED files and write one JSON export record per file.", cmds.Export)

	return parser, &globals, cmds
}

// Run is the main entry point for the tsindex CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("tsindex %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
