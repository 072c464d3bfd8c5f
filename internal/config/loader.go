package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".quickblock"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .quickblock configuration file.
// Every field is optional; zero values leave the corresponding Config
// default untouched.
type File struct {
	// DataDir overrides the directory holding the blocklist database.
	DataDir string `yaml:"data_dir,omitempty"`

	// StorageKey overrides the key the blocklist is stored under.
	StorageKey string `yaml:"storage_key,omitempty"`

	// Debounce is the quiescence window before a reconciliation pass runs.
	Debounce time.Duration `yaml:"debounce,omitempty"`

	// RoutePoll is how often the navigation target is compared.
	RoutePoll time.Duration `yaml:"route_poll,omitempty"`

	// RouteSettle is how long to wait after a route change before re-scanning.
	RouteSettle time.Duration `yaml:"route_settle,omitempty"`

	// SyncInterval is how often the database is checked for changes made
	// by other sessions.
	SyncInterval time.Duration `yaml:"sync_interval,omitempty"`

	// RedactIdentities masks channel names in log output.
	RedactIdentities *bool `yaml:"redact_identities,omitempty"`

	// Fetch holds settings for retrieving pages over the network.
	Fetch FetchFile `yaml:"fetch,omitempty"`
}

// FetchFile holds the network section of the configuration file.
type FetchFile struct {
	// Proxy is a SOCKS5 proxy in "host:port" form.
	Proxy string `yaml:"proxy,omitempty"`

	// UserAgent replaces the default User-Agent header.
	UserAgent string `yaml:"user_agent,omitempty"`

	// Timeout bounds each page request.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Headers are added to every request, e.g. a consent cookie.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// LoadConfigFile loads settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Fetch.Headers == nil {
		cf.Fetch.Headers = make(map[string]string)
	}

	return &cf, nil
}

// Apply copies every value set in the file onto cfg.
// Command-line flags are applied afterwards by the caller, so they win.
func (cf *File) Apply(cfg *Config) {
	if cf.DataDir != "" {
		cfg.DataDir = cf.DataDir
	}
	if cf.StorageKey != "" {
		cfg.StorageKey = cf.StorageKey
	}
	if cf.Debounce != 0 {
		cfg.DebounceDelay = cf.Debounce
	}
	if cf.RoutePoll != 0 {
		cfg.RoutePollInterval = cf.RoutePoll
	}
	if cf.RouteSettle != 0 {
		cfg.RouteSettleDelay = cf.RouteSettle
	}
	if cf.SyncInterval != 0 {
		cfg.SyncInterval = cf.SyncInterval
	}
	if cf.RedactIdentities != nil {
		cfg.RedactIdentities = *cf.RedactIdentities
	}
	if cf.Fetch.Proxy != "" {
		cfg.ProxyAddress = cf.Fetch.Proxy
	}
	if cf.Fetch.UserAgent != "" {
		cfg.UserAgent = cf.Fetch.UserAgent
	}
	if cf.Fetch.Timeout != 0 {
		cfg.Timeout = cf.Fetch.Timeout
	}
	if len(cf.Fetch.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		for k, v := range cf.Fetch.Headers {
			cfg.Headers[k] = v
		}
	}
	cfg.File = cf
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .quickblock in the current directory
// 3. Look for .quickblock in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
