package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const usage = `usage: camsync <command> [flags]
Commands:
  import     extract and parse a settings archive, write the user's profile
  discover   list settings archives found in search directories
  classify   classify paths as local, server or unclear
  tokens     print the token table for a user
  map        add|check|check-all|sync|list|remove file cache mappings
  updates    check mappings or a path pair and review pending updates`

var mapActions = map[string]bool{
	"add": true, "check": true, "check-all": true, "sync": true, "list": true, "remove": true,
}

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// CLIConfig holds the configuration parsed from command line arguments.
type CLIConfig struct {
	Command string
	Action  string // map sub-action
	Args    []string

	LogLevel       string
	LogFormat      string
	DataDir        string
	MetricsFile    string
	NonInteractive bool
	ProbeTimeout   time.Duration
	Workers        int

	// import / discover / tokens
	ArchivePath    string
	SearchDirs     []string
	SearchDepth    int
	Username       string
	ScratchDir     string
	KeepScratch    bool
	MaxArchiveSize int64
	Version        string

	// map / updates
	ServerPath string
	LocalPath  string
	FileType   string
	Status     string

	// Telegram notifier
	Notify      bool
	AppID       int
	AppHash     string
	SessionPath string
	GroupID     int64
	TopicID     int64
}

// ParseCLI parses args (without the program name) and environment
// variables. appIDDef and appHashDef are build-time defaults that take
// precedence over APP_ID and APP_HASH.
func ParseCLI(args []string, appIDDef, appHashDef string) (*CLIConfig, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("%s", usage)
	}

	cfg := &CLIConfig{Command: args[0]}
	rest := args[1:]
	name := cfg.Command
	if cfg.Command == "map" {
		if len(rest) == 0 || !mapActions[rest[0]] {
			return nil, fmt.Errorf("usage: camsync map add|check|check-all|sync|list|remove [flags]")
		}
		cfg.Action = rest[0]
		rest = rest[1:]
		name = "map " + cfg.Action
	}

	switch cfg.Command {
	case "import", "discover", "classify", "tokens", "map", "updates":
	default:
		return nil, fmt.Errorf("unknown command %q\n%s", cfg.Command, usage)
	}

	dataDir, err := DefaultDataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.LogLevel, "log-level", envString("CAMSYNC_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", envString("CAMSYNC_LOG_FORMAT", "console"), "Log format (console, json)")
	fs.StringVar(&cfg.DataDir, "data-dir", envString("CAMSYNC_DATA_DIR", dataDir), "Directory holding mappings and profiles")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	fs.BoolVar(&cfg.NonInteractive, "non-interactive", false, "Disable prompts and progress bars")
	fs.DurationVar(&cfg.ProbeTimeout, "probe-timeout", envDuration("CAMSYNC_PROBE_TIMEOUT", 5*time.Second), "Timeout for a single server path probe")
	fs.IntVar(&cfg.Workers, "workers", 4, "Number of concurrent probes or directory searches")

	var searchDirs stringList
	switch cfg.Command {
	case "import", "discover":
		fs.Var(&searchDirs, "search-dir", "Directory to search for archives (repeatable)")
		fs.IntVar(&cfg.SearchDepth, "depth", 1, "Subdirectory levels to search below each search dir")
	}
	switch cfg.Command {
	case "import", "tokens":
		fs.StringVar(&cfg.Username, "user", currentUser(), "User the paths are resolved for")
		fs.StringVar(&cfg.Version, "hm-version", envString("CAMSYNC_HM_VERSION", "33.0"), "Installed product version used in token values")
	}
	if cfg.Command == "import" {
		fs.StringVar(&cfg.ArchivePath, "archive", "", "Archive to import (default: newest archive in --search-dir)")
		fs.StringVar(&cfg.ScratchDir, "scratch-dir", envString("CAMSYNC_SCRATCH_DIR", ""), "Parent directory for extraction")
		fs.BoolVar(&cfg.KeepScratch, "keep-scratch", false, "Keep the extracted files after import")
		fs.Int64Var(&cfg.MaxArchiveSize, "max-archive-size", envInt64("CAMSYNC_MAX_ARCHIVE_SIZE", DefaultMaxArchiveSize), "Reject archives larger than this many bytes")
	}
	if cfg.Command == "map" || cfg.Command == "updates" {
		fs.StringVar(&cfg.ServerPath, "server", "", "Server file path")
		fs.StringVar(&cfg.LocalPath, "local", "", "Local cached file path")
	}
	if cfg.Command == "map" {
		fs.StringVar(&cfg.FileType, "type", "", "File type label for the mapping")
		fs.StringVar(&cfg.Status, "status", "", "Only list mappings with this status")
	}
	if cfg.Command == "updates" {
		fs.BoolVar(&cfg.Notify, "notify", false, "Post new notifications to Telegram")
		fs.Int64Var(&cfg.GroupID, "group-id", 0, "ID of the Supergroup receiving notifications")
		fs.Int64Var(&cfg.TopicID, "topic-id", 0, "ID of the Topic receiving notifications")
	}

	if err := fs.Parse(rest); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	cfg.Args = fs.Args()
	cfg.SearchDirs = searchDirs

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.SessionPath = SessionPath(cfg.DataDir)
	if cfg.Notify {
		if err := cfg.loadAppCredentials(appIDDef, appHashDef); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *CLIConfig) validate() error {
	switch c.Command {
	case "import":
		if c.ArchivePath == "" && len(c.SearchDirs) == 0 {
			return fmt.Errorf("import: --archive or at least one --search-dir is required")
		}
		if c.Username == "" {
			return fmt.Errorf("import: --user is required")
		}
	case "discover":
		if len(c.SearchDirs) == 0 {
			return fmt.Errorf("discover: at least one --search-dir is required")
		}
	case "tokens":
		if c.Username == "" {
			return fmt.Errorf("tokens: --user is required")
		}
	case "classify":
		if len(c.Args) == 0 {
			return fmt.Errorf("classify: at least one path argument is required")
		}
	case "map":
		switch c.Action {
		case "add":
			if c.ServerPath == "" || c.LocalPath == "" {
				return fmt.Errorf("map add: --server and --local are required")
			}
		case "check", "sync", "remove":
			if c.LocalPath == "" {
				return fmt.Errorf("map %s: --local is required", c.Action)
			}
		}
	case "updates":
		if (c.ServerPath == "") != (c.LocalPath == "") {
			return fmt.Errorf("updates: --server and --local must be given together")
		}
		if c.Notify && c.NonInteractive && (c.GroupID == 0 || c.TopicID == 0) {
			return fmt.Errorf("updates: --group-id and --topic-id are required with --notify in non-interactive mode")
		}
	}
	if c.Workers <= 0 {
		return fmt.Errorf("--workers must be positive")
	}
	return nil
}

func (c *CLIConfig) loadAppCredentials(appIDDef, appHashDef string) error {
	appIDStr := os.Getenv("APP_ID")
	if appIDDef != "" {
		appIDStr = appIDDef
	}
	appHashStr := os.Getenv("APP_HASH")
	if appHashDef != "" {
		appHashStr = appHashDef
	}
	if appIDStr == "" || appHashStr == "" {
		return fmt.Errorf("AppID and AppHash must be provided via ldflags or env vars (APP_ID/APP_HASH)")
	}

	var err error
	c.AppID, err = strconv.Atoi(appIDStr)
	if err != nil {
		return fmt.Errorf("invalid AppID: %v", err)
	}
	c.AppHash = appHashStr
	return nil
}
