package storage

import (
	"context"
	"sync"
)

// Memory is an in-process Persistence backend.
type Memory struct {
	mu        sync.Mutex
	values    map[string]string
	listeners map[string][]func(string)
	closed    bool
}

var _ Persistence = (*Memory)(nil)

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{
		values:    make(map[string]string),
		listeners: make(map[string][]func(string)),
	}
}

// GetValue returns the value for key or def.
func (m *Memory) GetValue(_ context.Context, key, def string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return def, ErrClosed
	}
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return def, nil
}

// SetValue stores value under key.
func (m *Memory) SetValue(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.values[key] = value
	return nil
}

// OnRemoteChange registers a callback for changes published by other sessions.
func (m *Memory) OnRemoteChange(key string, fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[key] = append(m.listeners[key], fn)
}

// Publish stores value as if another session had written it and notifies
// the registered callbacks. Callbacks run on the calling goroutine.
func (m *Memory) Publish(key, value string) {
	m.mu.Lock()
	m.values[key] = value
	fns := append([]func(string){}, m.listeners[key]...)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}

// Close makes every later read and write fail with ErrClosed.
// It exists so tests can exercise persistence failures.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
