package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// Timing defaults mirror how the host page behaves: it inserts content in
// short bursts while scrolling and re-renders asynchronously after a
// client-side navigation.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "quickblock"

	// DefaultStorageKey is the key the blocklist is stored under.
	DefaultStorageKey = "ytBlockedChannels"

	// DefaultDebounceDelay is the quiescence window after the last mutation
	// notification before a reconciliation pass runs.
	DefaultDebounceDelay = 200 * time.Millisecond

	// DefaultRoutePollInterval is how often the navigation target is compared
	// against the last seen value.
	DefaultRoutePollInterval = 250 * time.Millisecond

	// DefaultRouteSettleDelay is how long to wait after a route change before
	// re-attaching observers and running a full pass. The host page gives no
	// "content ready" signal, so this is a heuristic.
	DefaultRouteSettleDelay = 500 * time.Millisecond

	// DefaultStartupDelay postpones the first pass after the loop starts so
	// the host page can render its initial content.
	DefaultStartupDelay = 1 * time.Second

	// DefaultSyncInterval is how often the database is polled for changes
	// written by other sessions.
	DefaultSyncInterval = 1 * time.Second

	// DefaultPersistTimeout bounds a single read or write of the blocklist.
	DefaultPersistTimeout = 5 * time.Second

	// DefaultTimeout bounds each page request made by the filter command.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize is the number of pages filtered concurrently.
	DefaultBatchSize = 4

	// DefaultUserAgent identifies quickblock in HTTP requests.
	DefaultUserAgent = "quickblock/1.0 (+https://github.com/nao1215/quickblock)"

	// DefaultMaxBodySize limits the response body read for a single page.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Config holds all configuration options for quickblock.
// It is populated from the configuration file and CLI flags and passed
// through the application rather than kept as global state.
type Config struct {
	// DataDir is the directory holding the blocklist database.
	// Defaults to the XDG data directory (~/.local/share/quickblock on Linux).
	DataDir string

	// StorageKey is the persistence key for the blocklist.
	StorageKey string

	// DebounceDelay is the quiescence window for mutation bursts.
	DebounceDelay time.Duration

	// RoutePollInterval is how often the navigation target is checked.
	RoutePollInterval time.Duration

	// RouteSettleDelay is the wait between a route change and the re-scan.
	RouteSettleDelay time.Duration

	// StartupDelay postpones the first pass of a live loop.
	StartupDelay time.Duration

	// SyncInterval is the remote change poll interval of the database.
	SyncInterval time.Duration

	// PersistTimeout bounds one blocklist read or write.
	PersistTimeout time.Duration

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// RedactIdentities masks channel names in log output.
	RedactIdentities bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .quickblock in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// File is the parsed configuration file, nil when none was found.
	File *File

	// ProxyAddress is an optional SOCKS5 proxy for page fetches.
	ProxyAddress string

	// Timeout bounds each page request.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with page requests.
	UserAgent string

	// Headers are extra request headers for page fetches.
	Headers map[string]string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default.
	MaxBodySize int64

	// BatchSize is the number of pages filtered concurrently.
	BatchSize int

	// Location overrides the navigation target of local HTML files.
	Location string

	// OutDir receives the filtered HTML documents. Empty means no output files.
	OutDir string

	// JSONReport enables JSON report output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		DataDir:           XDGDataDir(),
		StorageKey:        DefaultStorageKey,
		DebounceDelay:     DefaultDebounceDelay,
		RoutePollInterval: DefaultRoutePollInterval,
		RouteSettleDelay:  DefaultRouteSettleDelay,
		StartupDelay:      DefaultStartupDelay,
		SyncInterval:      DefaultSyncInterval,
		PersistTimeout:    DefaultPersistTimeout,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		Headers:           make(map[string]string),
		MaxBodySize:       DefaultMaxBodySize,
		BatchSize:         DefaultBatchSize,
	}
}

// XDGDataDir returns the XDG data directory for quickblock.
// On Linux: ~/.local/share/quickblock
// On macOS: ~/Library/Application Support/quickblock
// On Windows: %LOCALAPPDATA%\quickblock
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for quickblock.
// On Linux: ~/.config/quickblock
// On macOS: ~/Library/Application Support/quickblock
// On Windows: %APPDATA%\quickblock
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first rule that is violated.
func (c *Config) Validate() error {
	if c.StorageKey == "" {
		return ErrEmptyStorageKey
	}

	if c.DebounceDelay < 0 {
		return ErrInvalidDebounce
	}

	if c.RoutePollInterval <= 0 {
		return ErrInvalidRoutePoll
	}

	if c.RouteSettleDelay < 0 {
		return ErrInvalidRouteSettle
	}

	if c.SyncInterval <= 0 {
		return ErrInvalidSyncInterval
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}
