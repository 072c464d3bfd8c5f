package model

import "fmt"

// PassStats counts what one reconciliation pass did.
type PassStats struct {
	// Fragments is the number of recognized fragments the pass looked at.
	Fragments int `json:"fragments"`

	// Evaluated is the number of fresh decisions made.
	Evaluated int `json:"evaluated"`

	// Cached is the number of fragments skipped because a decision was
	// already recorded.
	Cached int `json:"cached"`

	// Suppressed is the number of fresh decisions that hid the fragment.
	Suppressed int `json:"suppressed"`

	// Unattributable is the number of fragments with neither a handle nor
	// a display name.
	Unattributable int `json:"unattributable"`
}

// Add accumulates other into s.
func (s *PassStats) Add(other PassStats) {
	s.Fragments += other.Fragments
	s.Evaluated += other.Evaluated
	s.Cached += other.Cached
	s.Suppressed += other.Suppressed
	s.Unattributable += other.Unattributable
}

// String returns a one-line summary for logs.
func (s PassStats) String() string {
	return fmt.Sprintf("%d fragments, %d evaluated, %d cached, %d suppressed, %d unattributable",
		s.Fragments, s.Evaluated, s.Cached, s.Suppressed, s.Unattributable)
}
