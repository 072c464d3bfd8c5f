package blocklist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrInvalidFormat is returned when an import payload is valid JSON but not an array.
	ErrInvalidFormat = errors.New("invalid format: expected an array")

	// ErrMalformedJSON is returned when an import payload cannot be parsed.
	ErrMalformedJSON = errors.New("failed to parse JSON")
)

// ImportResult reports the outcome of an import.
type ImportResult struct {
	// Added is the number of identities appended to the list.
	Added int
	// Skipped counts duplicates, blank entries and non-string entries.
	Skipped int
}

// String formats the result for the user, e.g. "1 new, 2 duplicates skipped".
func (r ImportResult) String() string {
	return fmt.Sprintf("%d new, %d duplicates skipped", r.Added, r.Skipped)
}

// ExportFileName returns the suggested download name for an export made at t.
func ExportFileName(t time.Time) string {
	return "youtube-blocklist-" + t.Format("2006-01-02") + ".json"
}

// Export writes the canonical identities as an indented JSON array.
func (s *Store) Export(w io.Writer) error {
	data, err := json.MarshalIndent(s.List(), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Import merges the identities of a JSON array read from r. Entries whose
// normalized form is already present, including earlier entries of the same
// payload, are skipped. The payload is validated before anything is changed:
// on error the store is untouched.
func (s *Store) Import(r io.Reader) (ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to read import: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return ImportResult{}, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}
	items, ok := raw.([]any)
	if !ok {
		return ImportResult{}, ErrInvalidFormat
	}

	s.mu.Lock()
	var result ImportResult
	for _, item := range items {
		id, ok := item.(string)
		if !ok {
			result.Skipped++
			continue
		}
		key := Normalize(id)
		if key == "" {
			result.Skipped++
			continue
		}
		if _, dup := s.index[key]; dup {
			result.Skipped++
			continue
		}
		s.index[key] = struct{}{}
		s.list = append(s.list, id)
		result.Added++
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if result.Added == 0 {
		return result, nil
	}

	err = s.persist(snapshot)
	s.notify(Change{Kind: Imported})
	return result, err
}
