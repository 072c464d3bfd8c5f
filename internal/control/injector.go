package control

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/nao1215/quickblock/internal/dom"
	"github.com/nao1215/quickblock/internal/fragment"
	"github.com/nao1215/quickblock/internal/shape"
)

// Markup of injected controls.
const (
	ButtonClass     = "yt-quick-block-btn"
	DoneClass       = "done"
	IDAttr          = "data-quick-block-id"
	IdentifierAttr  = "data-identifier"
	DisplayNameAttr = "data-display-name"

	activeText = "Block"
	doneText   = "✓"
)

// ErrUnknownControl is returned when activating a control that is not
// attached to the document.
var ErrUnknownControl = errors.New("unknown control")

// Blocker is the part of the Identity Store controls need.
type Blocker interface {
	Add(identity string) (bool, error)
	IsBlocked(identifier string) bool
}

// Control is one injected block button.
type Control struct {
	// ID is the opaque id carried in IDAttr.
	ID string
	// Node is the button element.
	Node *html.Node
	// Fragment is the fragment the control belongs to, nil for the
	// page-subject control.
	Fragment *html.Node
	// Identity is what the control blocks.
	Identity shape.Identity
	// Done is true when the identity is blocked.
	Done bool

	// mount is the element removed with the control. It is the wrapper
	// for the page-subject control in the new header layout.
	mount *html.Node
	// subject marks the page-subject control, whose state follows the
	// handle in the navigation target only.
	subject bool
}

// Injector attaches block controls to fragments and keeps their state in
// step with the blocklist.
type Injector struct {
	doc      *dom.Document
	store    Blocker
	table    *fragment.Table
	registry *shape.Registry
	logger   *slog.Logger

	controls map[string]*Control
	order    []string
	seq      int
	page     *Control
}

// Option configures an Injector.
type Option func(*Injector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Injector) {
		i.logger = logger
	}
}

// WithTable shares the fragment table with the suppression engine.
func WithTable(t *fragment.Table) Option {
	return func(i *Injector) {
		i.table = t
	}
}

// WithRegistry replaces the default shape registry.
func WithRegistry(r *shape.Registry) Option {
	return func(i *Injector) {
		i.registry = r
	}
}

// New creates an Injector for doc.
func New(doc *dom.Document, store Blocker, opts ...Option) *Injector {
	i := &Injector{
		doc:      doc,
		store:    store,
		controls: make(map[string]*Control),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.table == nil {
		i.table = fragment.NewTable()
	}
	if i.registry == nil {
		i.registry = shape.Default()
	}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	return i
}

// Attach adds a block control for id to fragment n. It reports false when
// no control was added: id is empty, n already has one, or n has no anchor.
// The existing control is returned in the second case.
func (i *Injector) Attach(n *html.Node, id shape.Identity) (*Control, bool) {
	if id.Empty() {
		return nil, false
	}
	state := i.table.Ensure(n)
	if state.Control != "" {
		if c, ok := i.controls[state.Control]; ok {
			return c, false
		}
	}

	f, ok := i.registry.Match(n)
	if !ok {
		return nil, false
	}
	anchor := f.Anchor()
	if anchor == nil {
		i.logger.Debug("fragment has no control anchor", "tag", f.Rule.Tag)
		return nil, false
	}

	c := i.newControl(id)
	c.Fragment = n
	if err := i.doc.Append(anchor, c.Node); err != nil {
		return nil, false
	}
	c.mount = c.Node
	i.register(c)
	state.Control = c.ID
	return c, true
}

func (i *Injector) newControl(id shape.Identity) *Control {
	i.seq++
	c := &Control{
		ID:       fmt.Sprintf("qb-%d", i.seq),
		Identity: id,
	}
	c.Node = dom.NewElement("button",
		"type", "button",
		"class", ButtonClass,
		"title", "Block "+id.Label(),
		IDAttr, c.ID,
		IdentifierAttr, id.Handle,
		DisplayNameAttr, id.DisplayName,
	)
	i.refresh(c)
	return c
}

func (i *Injector) register(c *Control) {
	i.controls[c.ID] = c
	i.order = append(i.order, c.ID)
}

// Activate blocks the identity of the control with the given id and shows
// it as done. Persistence errors are returned after the in-memory block
// has taken effect.
func (i *Injector) Activate(controlID string) error {
	c, ok := i.controls[controlID]
	if !ok || !i.doc.Contains(c.Node) {
		return fmt.Errorf("%w: %s", ErrUnknownControl, controlID)
	}

	_, err := i.store.Add(c.Identity.Canonical())
	setDone(c, true)
	i.logger.Info("blocked channel", "identity", c.Identity.Label())
	return err
}

// ActivateNode activates the control whose button is n.
func (i *Injector) ActivateNode(n *html.Node) error {
	id, ok := dom.LookupAttr(n, IDAttr)
	if !ok {
		return fmt.Errorf("%w: element is not a block control", ErrUnknownControl)
	}
	return i.Activate(id)
}

// RefreshAll recomputes every control's state from the blocklist and
// forgets controls the host page has removed.
func (i *Injector) RefreshAll() {
	kept := i.order[:0]
	for _, id := range i.order {
		c, ok := i.controls[id]
		if !ok || !i.doc.Contains(c.Node) {
			delete(i.controls, id)
			if c == i.page {
				i.page = nil
			}
			continue
		}
		i.refresh(c)
		kept = append(kept, id)
	}
	i.order = kept
}

func (i *Injector) refresh(c *Control) {
	if c.subject {
		setDone(c, i.store.IsBlocked(c.Identity.Handle))
		return
	}
	setDone(c, i.store.IsBlocked(c.Identity.Handle) || i.store.IsBlocked(c.Identity.DisplayName))
}

// Controls returns the attached controls in attachment order.
func (i *Injector) Controls() []*Control {
	out := make([]*Control, 0, len(i.order))
	for _, id := range i.order {
		if c, ok := i.controls[id]; ok && i.doc.Contains(c.Node) {
			out = append(out, c)
		}
	}
	return out
}

// Control returns the control with the given id.
func (i *Injector) Control(id string) (*Control, bool) {
	c, ok := i.controls[id]
	return c, ok
}

func setDone(c *Control, done bool) {
	c.Done = done
	if done {
		dom.SetText(c.Node, doneText)
		dom.AddClass(c.Node, DoneClass)
		dom.SetAttr(c.Node, "disabled", "")
		return
	}
	dom.SetText(c.Node, activeText)
	dom.RemoveClass(c.Node, DoneClass)
	dom.RemoveAttr(c.Node, "disabled")
}
