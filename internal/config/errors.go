package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration. Callers can use
// errors.Is() for programmatic handling.
var (
	// ErrEmptyStorageKey is returned when no storage key is configured.
	// Without a key the blocklist cannot be read from or written to the store.
	ErrEmptyStorageKey = errors.New("invalid storage key: must not be empty")

	// ErrInvalidDebounce is returned when the debounce delay is negative.
	// Zero is allowed and means "run the pass on the next tick".
	ErrInvalidDebounce = errors.New("invalid debounce delay: must be non-negative")

	// ErrInvalidRoutePoll is returned when the route poll interval is not positive.
	// A zero interval would spin the poller.
	ErrInvalidRoutePoll = errors.New("invalid route poll interval: must be positive")

	// ErrInvalidRouteSettle is returned when the route settle delay is negative.
	ErrInvalidRouteSettle = errors.New("invalid route settle delay: must be non-negative")

	// ErrInvalidSyncInterval is returned when the remote change poll interval is not positive.
	ErrInvalidSyncInterval = errors.New("invalid sync interval: must be positive")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
