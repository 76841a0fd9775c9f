package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	Verbose []bool `short:"v" long:"verbose" description:"Increase verbosity (repeatable)"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// ScanFlags are shared by every command that reads input files.
type ScanFlags struct {
	TimeTolerance float64 `long:"time-tolerance" description:"Time tolerance in seconds for span merging (negative: half a sample period)" default:"-1"`
	RateTolerance float64 `long:"rate-tolerance" description:"Relative sample rate tolerance (negative: 1e-4)" default:"-1"`
	IndexInterval int     `long:"index-interval" description:"Sub-index interval in seconds" default:"3600"`
	KeepPaths     bool    `long:"keep-paths" description:"Use file paths as given, do not resolve absolute paths"`
	ScanTime      bool    `long:"scan-time-updates" description:"Stamp new rows with the scan time instead of the file modification time"`
}

// CatalogFlags select the sync target.
type CatalogFlags struct {
	SQLite      string `long:"sqlite" description:"SQLite database file (created as needed)"`
	Postgres    string `long:"postgres" description:"PostgreSQL connection string (table must exist)"`
	Table       string `long:"table" description:"Catalog table name" default:"tsindex"`
	BusyTimeout int    `long:"busy-timeout" description:"SQLite busy timeout in milliseconds" default:"10000"`
}

// SyncCommand — scan files and synchronize their sections with a catalog.
type SyncCommand struct {
	Scan    ScanFlags    `group:"Scanning"`
	Catalog CatalogFlags `group:"Catalog"`

	Args struct {
		Files []string `positional-arg-name:"file" description:"Input files, or @listfile"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// ShowCommand — scan files and print the sections that would be
// synchronized, without touching any catalog rows.
type ShowCommand struct {
	Scan    ScanFlags    `group:"Scanning"`
	Catalog CatalogFlags `group:"Catalog"`

	JSON bool `long:"json" description:"Print export records instead of the section listing"`

	Args struct {
		Files []string `positional-arg-name:"file" description:"Input files, or @listfile"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// ExportCommand — scan files and write structured export records.
type ExportCommand struct {
	Scan ScanFlags `group:"Scanning"`

	Output string `short:"o" long:"output" description:"Output file, '-' for stdout; .gz compresses" default:"-"`

	Args struct {
		Files []string `positional-arg-name:"file" description:"Input files, or @listfile"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}
