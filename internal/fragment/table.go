// Package fragment keeps the engine's bookkeeping about content fragments
// in a side table keyed by element identity, so the host page's markup only
// ever carries the visible suppression class and marker.
package fragment

import (
	"golang.org/x/net/html"

	"github.com/nao1215/quickblock/internal/shape"
)

// State is the engine's record of one fragment.
type State struct {
	// Tag is the shape tag of the rule that matched the fragment.
	Tag string
	// Identity is the identity extracted when the fragment was decided.
	Identity shape.Identity
	// Unit is the element hidden when the fragment is suppressed.
	Unit *html.Node
	// Decided is set once the fragment has been evaluated and cleared only
	// by invalidation.
	Decided bool
	// Suppressed is the outcome of the last decision.
	Suppressed bool
	// Control is the opaque id of the block control attached to the
	// fragment, or "" when none is attached.
	Control string
}

// Table maps fragments to their state. It is owned by the reconciliation
// goroutine and is not safe for concurrent use.
type Table struct {
	states map[*html.Node]*State
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{states: make(map[*html.Node]*State)}
}

// Get returns the state of n and whether one is recorded.
func (t *Table) Get(n *html.Node) (*State, bool) {
	s, ok := t.states[n]
	return s, ok
}

// Ensure returns the state of n, creating an empty record when absent.
func (t *Table) Ensure(n *html.Node) *State {
	s, ok := t.states[n]
	if !ok {
		s = &State{}
		t.states[n] = s
	}
	return s
}

// Len returns the number of recorded fragments.
func (t *Table) Len() int {
	return len(t.states)
}

// Each calls fn for every recorded fragment. Iteration order is
// unspecified.
func (t *Table) Each(fn func(n *html.Node, s *State)) {
	for n, s := range t.states {
		fn(n, s)
	}
}

// ClearDecisions resets Decided and Suppressed on every record. Controls
// stay attached.
func (t *Table) ClearDecisions() {
	for _, s := range t.states {
		s.Decided = false
		s.Suppressed = false
	}
}

// Forget drops the records of n and every node below it.
func (t *Table) Forget(n *html.Node) int {
	removed := 0
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if _, ok := t.states[c]; ok {
			delete(t.states, c)
			removed++
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return removed
}

// Prune drops the records of fragments no longer attached under root and
// returns how many were dropped.
func (t *Table) Prune(root *html.Node) int {
	removed := 0
	for n := range t.states {
		if !attached(root, n) {
			delete(t.states, n)
			removed++
		}
	}
	return removed
}

func attached(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}
