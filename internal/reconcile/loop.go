package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html"

	"github.com/nao1215/quickblock/internal/blocklist"
	"github.com/nao1215/quickblock/internal/config"
	"github.com/nao1215/quickblock/internal/control"
	"github.com/nao1215/quickblock/internal/dom"
	"github.com/nao1215/quickblock/internal/fragment"
	"github.com/nao1215/quickblock/internal/model"
	"github.com/nao1215/quickblock/internal/shape"
	"github.com/nao1215/quickblock/internal/storage"
	"github.com/nao1215/quickblock/internal/suppress"
)

// WatchTargets are the subtrees whose insertions are observed. The body is
// observed when none of them exists.
var WatchTargets = []string{
	"#content",
	"#primary",
	"#secondary",
	"ytd-comments",
	"ytd-watch-flexy",
	"ytd-browse",
}

// ErrNotClickable is returned by Click for elements that are not one of
// the engine's controls.
var ErrNotClickable = errors.New("element is not a quickblock control")

// Stats counts what the loop has done since it was created.
type Stats struct {
	// Notifications is the number of mutation notifications received.
	Notifications int
	// Relevant is the number of notifications that scheduled a pass.
	Relevant int
	// Passes is the number of incremental passes run.
	Passes int
	// FullPasses is the number of full-document passes run.
	FullPasses int
	// RouteChanges is the number of navigation changes seen.
	RouteChanges int
	// Syncs is the number of remote blocklist changes applied.
	Syncs int
	// Last is the result of the most recent pass.
	Last model.PassStats
	// Total accumulates every pass.
	Total model.PassStats
}

// Loop keeps a document reconciled with a blocklist as both change.
//
// The document, the fragment table and the controls belong to one
// goroutine. Every piece of work the loop does (an incremental pass after
// a burst of insertions, a full pass after a route change or an unblock,
// a remote sync) runs through post, which decides where it executes:
//
//   - Inline mode (Run not active): work executes on the goroutine that
//     triggered it. Timer callbacks run on whatever goroutine the Clock
//     fires them on, so inline mode is only correct with a Clock that
//     fires on a single goroutine. ManualClock does: callbacks run on the
//     goroutine calling Advance. The filter pipeline and replayed sessions
//     use this mode.
//   - Owned mode (Run active): work is queued and executed on the
//     goroutine running Run. This is required with SystemClock, whose
//     callbacks arrive on timer goroutines, and with a persistence backend
//     that delivers remote changes from its own goroutine. Host-page
//     mutations must then go through Do.
//
// A started pass always completes; a notification arriving after the
// debounce timer fired schedules the next pass rather than cancelling it.
type Loop struct {
	// doc is the reconciled document. It is never mutated concurrently.
	doc *dom.Document

	// store is the Identity Store. Its change listeners drive
	// re-evaluation; it is the only state shared with other goroutines.
	store *blocklist.Store

	// engine decides and applies suppression.
	engine *suppress.Engine

	// injector attaches block controls. It shares the fragment table with
	// engine, so a fragment carries one record for both.
	injector *control.Injector

	// panel is the floating blocklist panel mounted by Start.
	panel *control.Panel

	// registry holds the fragment shapes used by engine, injector and the
	// relevance test on inserted nodes.
	registry *shape.Registry

	logger *slog.Logger

	// clock drives debouncing, route polling and the startup delay.
	clock Clock

	// persistence, when set, delivers blocklist changes made by other
	// sessions to Sync.
	persistence storage.Persistence

	// Timing settings. See config for the defaults.
	debounce     time.Duration
	routePoll    time.Duration
	routeSettle  time.Duration
	startupDelay time.Duration

	// debouncer coalesces insertion bursts into one incremental pass.
	debouncer *Debouncer
	// settle delays the full pass that follows a route change.
	settle *Debouncer
	// startup is the pending first pass, nil once it ran or was stopped.
	startup Timer
	// poller compares the navigation target every routePoll.
	poller *RoutePoller

	// observers watch the current insertion targets. They are replaced
	// after every route change because the host page swaps containers.
	observers []*dom.Observer

	// pending collects relevant inserted nodes until the next pass.
	pending []*html.Node

	stats   Stats
	started bool

	// tasks queues work for the goroutine running Run.
	tasks chan func()
	// running is true while Run is active; post reads it from any goroutine.
	running atomic.Bool
	// runMu keeps a second Run from starting.
	runMu sync.Mutex
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the clock driving debouncing and polling.
func WithClock(c Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// WithLogger sets the logger shared by the loop and its components.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithRegistry replaces the default shape registry.
func WithRegistry(r *shape.Registry) Option {
	return func(l *Loop) {
		l.registry = r
	}
}

// WithPersistence subscribes the loop to remote changes of the blocklist.
func WithPersistence(p storage.Persistence) Option {
	return func(l *Loop) {
		l.persistence = p
	}
}

// WithDebounce sets the quiescence window for mutation bursts.
func WithDebounce(d time.Duration) Option {
	return func(l *Loop) {
		l.debounce = d
	}
}

// WithRoutePoll sets how often the navigation target is checked.
func WithRoutePoll(d time.Duration) Option {
	return func(l *Loop) {
		l.routePoll = d
	}
}

// WithRouteSettle sets the wait between a route change and the re-scan.
func WithRouteSettle(d time.Duration) Option {
	return func(l *Loop) {
		l.routeSettle = d
	}
}

// WithStartupDelay postpones the first full pass after Start.
func WithStartupDelay(d time.Duration) Option {
	return func(l *Loop) {
		l.startupDelay = d
	}
}

// WithConfig applies the timing settings of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(l *Loop) {
		l.debounce = cfg.DebounceDelay
		l.routePoll = cfg.RoutePollInterval
		l.routeSettle = cfg.RouteSettleDelay
		l.startupDelay = cfg.StartupDelay
	}
}

// New wires the suppression engine, the control injector and the panel to
// doc and store. Nothing is observed until Start.
func New(doc *dom.Document, store *blocklist.Store, opts ...Option) *Loop {
	l := &Loop{
		doc:          doc,
		store:        store,
		clock:        SystemClock{},
		debounce:     config.DefaultDebounceDelay,
		routePoll:    config.DefaultRoutePollInterval,
		routeSettle:  config.DefaultRouteSettleDelay,
		startupDelay: config.DefaultStartupDelay,
		tasks:        make(chan func(), 64),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.registry == nil {
		l.registry = shape.Default()
	}

	table := fragment.NewTable()
	l.engine = suppress.New(doc, store,
		suppress.WithLogger(l.logger),
		suppress.WithRegistry(l.registry),
		suppress.WithTable(table),
	)
	l.injector = control.New(doc, store,
		control.WithLogger(l.logger),
		control.WithRegistry(l.registry),
		control.WithTable(table),
	)
	l.panel = control.NewPanel(doc, store,
		control.WithPanelLogger(l.logger),
		control.WithNow(l.clock.Now),
	)
	l.debouncer = NewDebouncer(l.clock)
	l.settle = NewDebouncer(l.clock)
	l.poller = NewRoutePoller(l.clock, l.routePoll, doc.Location, l.onRouteChange)
	l.poller.run = l.post

	l.engine.OnDecision(func(r suppress.Result) {
		l.injector.Attach(r.Fragment.Node, r.Identity)
	})
	store.OnChange(l.onStoreChange)
	if l.persistence != nil {
		l.persistence.OnRemoteChange(store.Key(), l.Sync)
	}
	return l
}

// Engine returns the suppression engine.
func (l *Loop) Engine() *suppress.Engine {
	return l.engine
}

// Injector returns the control injector.
func (l *Loop) Injector() *control.Injector {
	return l.injector
}

// Panel returns the blocklist panel.
func (l *Loop) Panel() *control.Panel {
	return l.panel
}

// Document returns the reconciled document.
func (l *Loop) Document() *dom.Document {
	return l.doc
}

// Stats returns a copy of the loop counters.
func (l *Loop) Stats() Stats {
	return l.stats
}

// Start mounts the panel, begins observing and polling, and schedules the
// first full pass after the startup delay. Starting twice is a no-op.
func (l *Loop) Start() {
	if l.started {
		return
	}
	l.started = true

	if err := l.panel.Mount(); err != nil {
		l.logger.Warn("failed to mount blocklist panel", "error", err)
	}
	l.observe()
	l.poller.Start()

	if l.startupDelay <= 0 {
		l.FullPass()
		return
	}
	l.startup = l.clock.AfterFunc(l.startupDelay, func() {
		l.post(func() { l.FullPass() })
	})
}

// Stop ends observation, polling and any pending pass.
func (l *Loop) Stop() {
	if !l.started {
		return
	}
	l.started = false

	if l.startup != nil {
		l.startup.Stop()
		l.startup = nil
	}
	l.debouncer.Cancel()
	l.settle.Cancel()
	l.poller.Stop()
	l.disconnect()
	l.pending = nil
}

// Run executes posted work on the calling goroutine until ctx is done,
// then drains the queue and stops the loop. Only one Run may be active.
// Call Run before Start when the loop uses SystemClock; otherwise the
// startup pass and every timer callback execute on timer goroutines.
func (l *Loop) Run(ctx context.Context) error {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	l.running.Store(true)
	defer l.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			l.drain()
			l.Stop()
			return nil
		case fn := <-l.tasks:
			fn()
		}
	}
}

func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.tasks:
			fn()
		default:
			return
		}
	}
}

// Do runs fn with exclusive access to the document and waits for it.
// Host-page mutations must go through Do while Run is active. Calling Do
// from inside posted work deadlocks.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	if !l.running.Load() {
		fn()
		return nil
	}
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case l.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post runs fn on the goroutine that owns the document: the Run goroutine
// when Run is active, the caller otherwise.
func (l *Loop) post(fn func()) {
	if !l.running.Load() {
		fn()
		return
	}
	l.tasks <- fn
}

// Sync applies a blocklist payload delivered by another session.
func (l *Loop) Sync(payload string) {
	l.post(func() {
		if err := l.store.Sync(payload); err != nil {
			return
		}
		l.stats.Syncs++
	})
}

// Pass evaluates the fragments inserted since the last pass, plus any
// fragment that was still unattributable.
func (l *Loop) Pass() model.PassStats {
	nodes := l.pending
	l.pending = nil

	st := l.engine.EvaluateNew(nodes)
	l.injector.EnsurePageControl()
	l.record(st)
	l.stats.Passes++
	l.logger.Debug("incremental pass", "stats", st.String())
	return st
}

// FullPass invalidates every decision and evaluates the whole document.
func (l *Loop) FullPass() model.PassStats {
	l.pending = nil

	st := l.engine.EvaluateAll()
	l.injector.EnsurePageControl()
	l.injector.RefreshAll()
	l.record(st)
	l.stats.FullPasses++
	l.logger.Debug("full pass", "stats", st.String())
	return st
}

func (l *Loop) record(st model.PassStats) {
	l.stats.Last = st
	l.stats.Total.Add(st)
}

// Click dispatches a user activation of n to the control it belongs to.
func (l *Loop) Click(n *html.Node) error {
	switch {
	case n == nil:
		return ErrNotClickable
	case dom.HasClass(n, control.ButtonClass):
		return l.injector.ActivateNode(n)
	case dom.HasClass(n, control.UnblockClass):
		_, err := l.panel.UnblockNode(n)
		return err
	case dom.Attr(n, "id") == control.ToggleID:
		l.panel.Toggle()
		return nil
	case dom.HasClass(n, "panel-close"):
		l.panel.Close()
		return nil
	default:
		return fmt.Errorf("%w: <%s>", ErrNotClickable, n.Data)
	}
}

func (l *Loop) observe() {
	l.disconnect()

	var targets []*html.Node
	for _, sel := range WatchTargets {
		for _, n := range l.doc.QueryAll(sel) {
			if covered(targets, n) {
				continue
			}
			targets = dropCovered(targets, n)
			targets = append(targets, n)
		}
	}
	if len(targets) == 0 {
		if body := l.doc.Body(); body != nil {
			targets = append(targets, body)
		}
	}
	for _, t := range targets {
		l.observers = append(l.observers, l.doc.Observe(t, l.onMutations))
	}
	l.logger.Debug("observing document", "targets", len(l.observers))
}

func (l *Loop) disconnect() {
	for _, o := range l.observers {
		o.Disconnect()
	}
	l.observers = nil
}

func (l *Loop) onMutations(ms []dom.Mutation) {
	l.stats.Notifications++

	relevant := false
	for _, m := range ms {
		for _, n := range m.Added {
			if l.registry.Relevant(n) {
				l.pending = append(l.pending, n)
				relevant = true
			}
		}
	}
	if !relevant {
		return
	}
	l.stats.Relevant++
	l.debouncer.Schedule(func() {
		l.post(func() { l.Pass() })
	}, l.debounce)
}

func (l *Loop) onRouteChange(prev, next string) {
	l.stats.RouteChanges++
	l.logger.Debug("route changed", "from", prev, "to", next)

	l.debouncer.Cancel()
	l.pending = nil
	l.injector.RemovePageControl()

	l.settle.Schedule(func() {
		l.post(func() {
			l.observe()
			l.FullPass()
		})
	}, l.routeSettle)
}

func (l *Loop) onStoreChange(c blocklist.Change) {
	switch c.Kind {
	case blocklist.Added:
		l.engine.Reevaluate(c.Identity)
		l.injector.RefreshAll()
	default:
		l.FullPass()
	}
	if err := l.panel.Update(); err != nil {
		l.logger.Debug("failed to update blocklist panel", "error", err)
	}
}

// Report fills r with the current outcome: pass counters, every hidden
// fragment in document order and the injected controls.
func (l *Loop) Report(r *model.FilterReport) {
	r.Location = l.doc.Location()
	r.Blocklist = l.store.Len()
	r.Stats = l.stats.Last
	r.Suppressed = r.Suppressed[:0]

	table := l.engine.Table()
	for _, f := range l.registry.Fragments(l.doc.Root()) {
		s, ok := table.Get(f.Node)
		if !ok || !s.Suppressed {
			continue
		}
		item := model.SuppressedItem{
			Tag:         s.Tag,
			Handle:      s.Identity.Handle,
			DisplayName: s.Identity.DisplayName,
		}
		if s.Unit != nil {
			item.Unit = s.Unit.Data
		}
		r.Suppressed = append(r.Suppressed, item)
	}
	r.Controls = len(l.injector.Controls())
	r.PageControl = l.injector.PageControl() != nil
}

// Navigate moves the document to location and checks the route at once
// rather than waiting for the next poll.
func (l *Loop) Navigate(location string) error {
	if err := l.doc.Navigate(location); err != nil {
		return err
	}
	l.poller.Check()
	return nil
}

func covered(targets []*html.Node, n *html.Node) bool {
	for _, t := range targets {
		if contains(t, n) {
			return true
		}
	}
	return false
}

func dropCovered(targets []*html.Node, n *html.Node) []*html.Node {
	kept := targets[:0]
	for _, t := range targets {
		if !contains(n, t) {
			kept = append(kept, t)
		}
	}
	return kept
}

func contains(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
