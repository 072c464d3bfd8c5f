// Package suppress is the Suppression Engine. It decides, once per
// fragment, whether the fragment's channel is blocked and hides the
// fragment's suppression unit when it is.
//
// Decisions are recorded in a fragment.Table and stay valid until
// Invalidate clears them. Only the suppression class and marker attribute
// are written to the document.
package suppress

import (
	"log/slog"

	"golang.org/x/net/html"

	"github.com/nao1215/quickblock/internal/blocklist"
	"github.com/nao1215/quickblock/internal/dom"
	"github.com/nao1215/quickblock/internal/fragment"
	"github.com/nao1215/quickblock/internal/model"
	"github.com/nao1215/quickblock/internal/shape"
)

const (
	// BlockedClass hides a suppression unit.
	BlockedClass = "yt-blocked-item"
	// HiddenAttr marks a unit hidden by the engine.
	HiddenAttr = "data-quick-block-hidden"
)

// Blocklist is the membership test the engine decides with.
type Blocklist interface {
	IsBlocked(identifier string) bool
}

// Result is the outcome of evaluating one element.
type Result struct {
	// Fragment is the matched fragment. Its Node is nil when the element
	// is not a fragment.
	Fragment shape.Fragment
	// Identity is the identity the decision was made on.
	Identity shape.Identity
	// Handled is true when a decision exists for the fragment.
	Handled bool
	// Suppressed is the decision.
	Suppressed bool
	// Fresh is true when the decision was made by this call rather than
	// read back from the table.
	Fresh bool
}

// Engine decides and applies suppression.
//
// A fragment is decided at most once: the decision is recorded in the
// fragment table and later passes read it back instead of extracting
// again. Only Invalidate, which also reveals every hidden unit, clears
// decisions. A fragment is suppressed when its handle or its display name
// is blocked; the element hidden is the fragment's suppression unit,
// which for a comment is the whole thread.
//
// An Engine is not safe for concurrent use. It works on the goroutine
// that owns the document.
type Engine struct {
	// doc is the document whose fragments are evaluated.
	doc *dom.Document

	// registry recognizes fragments and extracts their identity.
	registry *shape.Registry

	// table holds one record per fragment, keyed by element. It may be
	// shared with the control injector.
	table *fragment.Table

	// blocked is the membership test decisions are made with.
	blocked Blocklist

	logger *slog.Logger

	// onDecision hooks run after every handled fragment, in registration
	// order.
	onDecision []func(Result)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRegistry replaces the default shape registry.
func WithRegistry(r *shape.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithTable shares a fragment table with other components.
func WithTable(t *fragment.Table) Option {
	return func(e *Engine) {
		e.table = t
	}
}

// New creates an Engine over doc deciding with blocked.
func New(doc *dom.Document, blocked Blocklist, opts ...Option) *Engine {
	e := &Engine{
		doc:     doc,
		blocked: blocked,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = shape.Default()
	}
	if e.table == nil {
		e.table = fragment.NewTable()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Registry returns the shape registry in use.
func (e *Engine) Registry() *shape.Registry {
	return e.registry
}

// Table returns the fragment table in use.
func (e *Engine) Table() *fragment.Table {
	return e.table
}

// OnDecision registers fn to run after every handled fragment, fresh or
// cached, once its suppression has been applied.
func (e *Engine) OnDecision(fn func(Result)) {
	e.onDecision = append(e.onDecision, fn)
}

// Evaluate decides n. A decided fragment is not re-examined until
// Invalidate; an unattributable fragment is left undecided so a later
// pass can retry it once its byline has rendered.
func (e *Engine) Evaluate(n *html.Node) Result {
	f, ok := e.registry.Match(n)
	if !ok {
		return Result{}
	}
	return e.evaluate(f)
}

func (e *Engine) evaluate(f shape.Fragment) Result {
	state := e.table.Ensure(f.Node)
	if state.Decided {
		r := Result{
			Fragment:   f,
			Identity:   state.Identity,
			Handled:    true,
			Suppressed: state.Suppressed,
		}
		e.emit(r)
		return r
	}

	id := f.Identity()
	state.Tag = f.Rule.Tag
	state.Identity = id
	if id.Empty() {
		return Result{Fragment: f}
	}

	suppressed := e.blocked.IsBlocked(id.Handle) || e.blocked.IsBlocked(id.DisplayName)
	state.Unit = f.Unit()
	state.Decided = true
	state.Suppressed = suppressed
	if suppressed {
		hide(state.Unit)
		e.logger.Debug("suppressed fragment", "tag", f.Rule.Tag, "identity", id.Canonical())
	}

	r := Result{
		Fragment:   f,
		Identity:   id,
		Handled:    true,
		Suppressed: suppressed,
		Fresh:      true,
	}
	e.emit(r)
	return r
}

func (e *Engine) emit(r Result) {
	for _, fn := range e.onDecision {
		fn(r)
	}
}

// EvaluateAll invalidates every decision, then evaluates every fragment of
// the document in document order.
func (e *Engine) EvaluateAll() model.PassStats {
	e.Invalidate()
	e.table.Prune(e.doc.Root())
	return e.evaluateFragments(e.registry.Fragments(e.doc.Root()))
}

// EvaluateNew evaluates fragments at or below nodes that have no decision
// yet, plus previously unattributable fragments still in the document.
// Existing decisions are left untouched.
func (e *Engine) EvaluateNew(nodes []*html.Node) model.PassStats {
	e.table.Prune(e.doc.Root())

	roots := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		if e.doc.Contains(n) {
			roots = append(roots, n)
		}
	}
	e.table.Each(func(n *html.Node, s *fragment.State) {
		if !s.Decided && s.Tag != "" {
			roots = append(roots, n)
		}
	})
	return e.evaluateFragments(e.registry.Fragments(roots...))
}

func (e *Engine) evaluateFragments(fragments []shape.Fragment) model.PassStats {
	var stats model.PassStats
	for _, f := range fragments {
		stats.Fragments++
		r := e.evaluate(f)
		switch {
		case !r.Handled:
			stats.Unattributable++
		case !r.Fresh:
			stats.Cached++
		default:
			stats.Evaluated++
			if r.Suppressed {
				stats.Suppressed++
			}
		}
	}
	return stats
}

// Invalidate clears every decision and reveals every hidden unit. It
// returns the number of units revealed.
func (e *Engine) Invalidate() int {
	e.table.ClearDecisions()
	revealed := 0
	for _, n := range e.doc.QueryAll("." + BlockedClass + ", [" + HiddenAttr + "]") {
		reveal(n)
		revealed++
	}
	return revealed
}

// Reevaluate re-decides the visible fragments whose identity matches
// identity, hiding those that are now blocked. It is the targeted
// follow-up to a single block and returns the number of fragments newly
// suppressed.
//
// The identity is read again from each fragment's current markup, so a
// byline re-rendered in place since the fragment was decided is matched
// on what it shows now. The recorded identity is updated to match.
func (e *Engine) Reevaluate(identity string) int {
	key := blocklist.Normalize(identity)
	if key == "" {
		return 0
	}

	e.table.Prune(e.doc.Root())
	suppressed := 0
	e.table.Each(func(n *html.Node, s *fragment.State) {
		if !s.Decided || s.Suppressed {
			return
		}
		if f, ok := e.registry.Match(n); ok {
			if id := f.Identity(); !id.Empty() {
				s.Identity = id
			}
		}
		if blocklist.Normalize(s.Identity.Handle) != key && blocklist.Normalize(s.Identity.DisplayName) != key {
			return
		}
		if !e.blocked.IsBlocked(s.Identity.Handle) && !e.blocked.IsBlocked(s.Identity.DisplayName) {
			return
		}
		s.Suppressed = true
		hide(s.Unit)
		suppressed++
	})
	if suppressed > 0 {
		e.logger.Debug("suppressed fragments after block", "identity", identity, "count", suppressed)
	}
	return suppressed
}

// Suppressed returns the states of every suppressed fragment.
func (e *Engine) Suppressed() map[*html.Node]*fragment.State {
	out := make(map[*html.Node]*fragment.State)
	e.table.Each(func(n *html.Node, s *fragment.State) {
		if s.Suppressed {
			out[n] = s
		}
	})
	return out
}

// IsHidden reports whether n carries the suppression class.
func IsHidden(n *html.Node) bool {
	return dom.HasClass(n, BlockedClass)
}

func hide(unit *html.Node) {
	if unit == nil {
		return
	}
	dom.AddClass(unit, BlockedClass)
	dom.SetAttr(unit, HiddenAttr, "true")
}

func reveal(unit *html.Node) {
	dom.RemoveClass(unit, BlockedClass)
	dom.RemoveAttr(unit, HiddenAttr)
}
