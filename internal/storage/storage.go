package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("storage is closed")

// Persistence is the key/value collaborator behind the blocklist.
type Persistence interface {
	// GetValue returns the stored value for key, or def when the key is absent.
	GetValue(ctx context.Context, key, def string) (string, error)

	// SetValue stores value under key.
	SetValue(ctx context.Context, key, value string) error

	// OnRemoteChange registers fn to be called with the new value whenever
	// another session changes key. Local SetValue calls never trigger it.
	OnRemoteChange(key string, fn func(newValue string))
}
