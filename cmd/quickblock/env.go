package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/quickblock/internal/blocklist"
	"github.com/nao1215/quickblock/internal/config"
	"github.com/nao1215/quickblock/internal/log"
	"github.com/nao1215/quickblock/internal/storage"
	"github.com/spf13/cobra"
)

// getBoolFlag retrieves a flag from the command or, when the command runs
// on its own, from the root's persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// getStringFlag is getBoolFlag for string flags.
func getStringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}

// loadConfig builds a Config from defaults, the configuration file and the
// global flags, in that order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.ConfigFilePath = getStringFlag(cmd, "config")

	// An explicit path must exist; the implicit search may find nothing.
	path := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case path != "":
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		file.Apply(cfg)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if dir := getStringFlag(cmd, "data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

// newLogger creates the logger for a command and makes it the default.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	var logger *slog.Logger
	if getBoolFlag(cmd, "log-json") {
		logger = log.NewJSONLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.RedactIdentities)
	} else {
		logger = log.NewLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.RedactIdentities)
	}
	slog.SetDefault(logger)
	return logger
}

// env is what the blocklist commands share: configuration, a logger and the
// store backed by the database.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *storage.SQLite
	store  *blocklist.Store
}

// openEnv loads the configuration and opens the blocklist database.
// The caller must call close.
func openEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return openStore(cmd, cfg, newLogger(cmd, cfg))
}

// openStore opens the blocklist database described by cfg and loads the
// list.
func openStore(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*env, error) {
	opts := storage.DefaultOptions()
	opts.Logger = logger
	db, err := storage.OpenSQLite(cfg.DataDir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("database opened", "path", db.Path())

	store := blocklist.New(db,
		blocklist.WithKey(cfg.StorageKey),
		blocklist.WithLogger(logger),
		blocklist.WithTimeout(cfg.PersistTimeout),
	)
	store.Load(cmd.Context())

	return &env{cfg: cfg, logger: logger, db: db, store: store}, nil
}

func (e *env) close() {
	if err := e.db.Close(); err != nil && !errors.Is(err, storage.ErrClosed) {
		e.logger.Warn("failed to close database", "error", err)
	}
}
