package blocklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/quickblock/internal/storage"
)

// DefaultKey is the persistence key used when none is configured.
const DefaultKey = "ytBlockedChannels"

// ErrPersist wraps failures of the persistence collaborator. The in-memory
// state is already updated when it is returned.
var ErrPersist = errors.New("failed to persist blocklist")

// ChangeKind describes what happened to the blocklist.
type ChangeKind int

const (
	// Added means one identity was appended.
	Added ChangeKind = iota
	// Removed means every entry matching one identity was dropped.
	Removed
	// Replaced means the whole list was swapped by a remote sync.
	Replaced
	// Imported means an import merged one or more new identities.
	Imported
)

// String returns the change kind name used in logs.
func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Replaced:
		return "replaced"
	case Imported:
		return "imported"
	default:
		return "unknown"
	}
}

// Change is delivered to OnChange listeners after a mutation is applied.
type Change struct {
	Kind ChangeKind
	// Identity is the verbatim identity for Added and Removed.
	Identity string
}

// Normalize returns the matching key of an identity: NFC, trimmed, lower-cased.
func Normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(identity)))
}

// Store owns the canonical blocklist and its normalized index.
// All mutation goes through its methods; the index is always exactly the
// image of the list under Normalize.
type Store struct {
	mu    sync.RWMutex
	list  []string
	index map[string]struct{}

	persistence storage.Persistence
	key         string
	timeout     time.Duration
	logger      *slog.Logger

	listenersMu sync.Mutex
	listeners   []func(Change)
}

// Option configures a Store.
type Option func(*Store)

// WithKey sets the persistence key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithTimeout bounds each persistence call.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates an empty Store backed by p. Call Load to read the persisted list.
func New(p storage.Persistence, opts ...Option) *Store {
	s := &Store{
		index:       make(map[string]struct{}),
		persistence: p,
		key:         DefaultKey,
		timeout:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Key returns the persistence key of the store.
func (s *Store) Key() string {
	return s.key
}

// Load reads the persisted list. Unreadable or malformed content degrades
// to an empty list; the next save heals the stored copy.
func (s *Store) Load(ctx context.Context) {
	raw, err := s.persistence.GetValue(ctx, s.key, "[]")
	if err != nil {
		s.logger.Debug("blocklist unreadable, starting empty", "error", err)
		raw = "[]"
	}

	list, err := decodeList(raw)
	if err != nil {
		s.logger.Debug("blocklist malformed, starting empty", "error", err)
		list = nil
	}

	s.mu.Lock()
	s.list, s.index = dedupe(list)
	s.mu.Unlock()
}

// Add appends identity unless an entry with the same normalized form exists.
// It reports whether the list changed. A returned error wraps ErrPersist;
// the identity is blocked in memory regardless.
func (s *Store) Add(identity string) (bool, error) {
	key := Normalize(identity)
	if key == "" {
		return false, nil
	}

	s.mu.Lock()
	if _, ok := s.index[key]; ok {
		s.mu.Unlock()
		return false, nil
	}
	s.list = append(s.list, identity)
	s.index[key] = struct{}{}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	err := s.persist(snapshot)
	s.notify(Change{Kind: Added, Identity: identity})
	return true, err
}

// Remove drops every entry whose normalized form matches identity and
// returns how many were dropped.
func (s *Store) Remove(identity string) (int, error) {
	key := Normalize(identity)

	s.mu.Lock()
	kept := s.list[:0:0]
	for _, id := range s.list {
		if Normalize(id) != key {
			kept = append(kept, id)
		}
	}
	removed := len(s.list) - len(kept)
	if removed == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	s.list = kept
	delete(s.index, key)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	err := s.persist(snapshot)
	s.notify(Change{Kind: Removed, Identity: identity})
	return removed, err
}

// IsBlocked reports whether identifier matches a stored identity.
// Empty identifiers are never blocked.
func (s *Store) IsBlocked(identifier string) bool {
	if identifier == "" {
		return false
	}
	key := Normalize(identifier)
	if key == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[key]
	return ok
}

// ReplaceAll swaps the whole list and rebuilds the index. It does not
// persist: it is driven by a change that is already persisted elsewhere.
func (s *Store) ReplaceAll(identities []string) {
	s.mu.Lock()
	s.list, s.index = dedupe(identities)
	s.mu.Unlock()

	s.notify(Change{Kind: Replaced})
}

// Sync applies a payload delivered by another session. A malformed payload
// is logged and leaves the current state untouched.
func (s *Store) Sync(payload string) error {
	list, err := decodeList(payload)
	if err != nil {
		s.logger.Error("failed to sync blocklist from another session", "error", err)
		return err
	}
	s.ReplaceAll(list)
	s.logger.Info("synced blocklist from another session", "count", s.Len())
	return nil
}

// List returns a copy of the canonical identities in insertion order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of stored identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}

// OnChange registers fn to run after every applied mutation. Listeners run
// synchronously on the goroutine that made the change, after persistence.
func (s *Store) OnChange(fn func(Change)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(c Change) {
	s.listenersMu.Lock()
	fns := append([]func(Change){}, s.listeners...)
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (s *Store) persist(list []string) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.persistence.SetValue(ctx, s.key, string(data)); err != nil {
		s.logger.Warn("blocklist kept in memory only", "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (s *Store) snapshotLocked() []string {
	out := make([]string, len(s.list))
	copy(out, s.list)
	return out
}

// errNotArray is returned by decodeList for valid JSON that is not an array,
// including null.
var errNotArray = errors.New("blocklist payload is not a JSON array")

// decodeList parses a JSON array of strings.
func decodeList(raw string) ([]string, error) {
	if !strings.HasPrefix(strings.TrimSpace(raw), "[") {
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("invalid JSON: %q", raw)
		}
		return nil, errNotArray
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// dedupe builds a list and index keeping the first entry of every
// normalized key and dropping blank entries.
func dedupe(identities []string) ([]string, map[string]struct{}) {
	list := make([]string, 0, len(identities))
	index := make(map[string]struct{}, len(identities))
	for _, id := range identities {
		key := Normalize(id)
		if key == "" {
			continue
		}
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = struct{}{}
		list = append(list, id)
	}
	return list, index
}
