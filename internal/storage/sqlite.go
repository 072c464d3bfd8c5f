package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DBFileName is the name of the database file inside the data directory.
const DBFileName = "quickblock.db"

// SQLite is a Persistence backend stored in a single SQLite file.
//
// Several quickblock processes may share the file. Changes written by
// another process are picked up by Watch, which polls PRAGMA
// data_version; that counter only moves when a different connection
// commits, so our own writes never echo back as remote changes.
type SQLite struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[string][]func(string)
	// lastKnown holds the last value read or written per watched key.
	lastKnown   map[string]string
	dataVersion int64
}

var _ Persistence = (*SQLite)(nil)

// Options configures SQLite behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers in other processes
	// do not block on our writes.
	EnableWAL bool

	// Logger receives watch diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// OpenSQLite opens or creates the database in dbDir.
func OpenSQLite(dbDir string, opts Options) (*SQLite, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps PRAGMA data_version meaningful: it is
	// reported per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &SQLite{
		db:        db,
		dbPath:    dbPath,
		logger:    logger,
		listeners: make(map[string][]func(string)),
		lastKnown: make(map[string]string),
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if s.dataVersion, err = s.readDataVersion(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read data version: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// GetValue returns the stored value for key, or def when absent.
func (s *SQLite) GetValue(ctx context.Context, key, def string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("failed to read %q: %w", key, err)
	}

	s.mu.Lock()
	if _, watched := s.listeners[key]; watched {
		s.lastKnown[key] = value
	}
	s.mu.Unlock()

	return value, nil
}

// SetValue stores value under key, replacing any previous value.
func (s *SQLite) SetValue(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}

	s.mu.Lock()
	s.lastKnown[key] = value
	s.mu.Unlock()

	return nil
}

// OnRemoteChange registers fn for changes to key made by other processes.
// Callbacks run on the goroutine executing Watch.
func (s *SQLite) OnRemoteChange(key string, fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, watched := s.listeners[key]; !watched {
		if v, err := s.lookup(context.Background(), key); err == nil {
			s.lastKnown[key] = v
		}
	}
	s.listeners[key] = append(s.listeners[key], fn)
}

// Watch polls for changes made by other processes until ctx is done.
func (s *SQLite) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Poll(ctx); err != nil {
				s.logger.Warn("remote change check failed", "error", err)
			}
		}
	}
}

// Poll checks once for changes made by other processes and notifies
// listeners of every watched key whose value differs from the last known one.
func (s *SQLite) Poll(ctx context.Context) error {
	version, err := s.readDataVersion(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if version == s.dataVersion {
		s.mu.Unlock()
		return nil
	}
	s.dataVersion = version

	type change struct {
		value string
		fns   []func(string)
	}
	var changes []change
	for key, fns := range s.listeners {
		value, err := s.lookup(ctx, key)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		if last, ok := s.lastKnown[key]; ok && last == value {
			continue
		}
		s.lastKnown[key] = value
		changes = append(changes, change{value: value, fns: append([]func(string){}, fns...)})
	}
	s.mu.Unlock()

	for _, c := range changes {
		for _, fn := range c.fns {
			fn(c.value)
		}
	}
	return nil
}

// lookup reads a value without touching lastKnown. Absent keys read as "".
func (s *SQLite) lookup(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLite) readDataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}
