package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/quickblock/internal/blocklist"
	"github.com/nao1215/quickblock/internal/config"
	"github.com/nao1215/quickblock/internal/dom"
	"github.com/nao1215/quickblock/internal/model"
	"github.com/nao1215/quickblock/internal/reconcile"
	"github.com/nao1215/quickblock/internal/shape"
	"github.com/nao1215/quickblock/internal/storage"
	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

// ErrTargetNotFound is returned when a step's selector matches nothing.
var ErrTargetNotFound = errors.New("target not found")

// Result is what a replayed session left behind.
type Result struct {
	// Report describes the final document.
	Report *model.FilterReport

	// Document is the final document.
	Document *dom.Document

	// Stats are the loop counters at the end of the session.
	Stats reconcile.Stats

	// Blocklist is the final blocklist.
	Blocklist []string
}

// Replayer runs scripted sessions against a reconciliation loop on a
// virtual clock, so a session of minutes replays instantly and always
// takes the same path.
type Replayer struct {
	logger   *slog.Logger
	registry *shape.Registry
	cfg      *config.Config
	baseDir  string
	start    time.Time
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithLogger sets the logger for the replayer and the loop it drives.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Replayer) {
		r.logger = logger
	}
}

// WithRegistry replaces the default shape registry.
func WithRegistry(reg *shape.Registry) Option {
	return func(r *Replayer) {
		r.registry = reg
	}
}

// WithConfig takes the loop timings and storage key from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(r *Replayer) {
		r.cfg = cfg
	}
}

// WithBaseDir resolves relative page paths against dir.
func WithBaseDir(dir string) Option {
	return func(r *Replayer) {
		r.baseDir = dir
	}
}

// WithStart sets the virtual time the session begins at.
func WithStart(t time.Time) Option {
	return func(r *Replayer) {
		r.start = t
	}
}

// New creates a Replayer.
func New(opts ...Option) *Replayer {
	r := &Replayer{
		cfg:   config.NewConfig(),
		start: time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.registry == nil {
		r.registry = shape.Default()
	}
	return r
}

// LoadSession reads a YAML session script. Relative page paths in the
// script are resolved against the script's directory by RunFile.
func LoadSession(path string) (*model.Session, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided session path is intentional
	if err != nil {
		return nil, err
	}
	var s model.Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidSession, err)
	}
	return &s, nil
}

// RunFile loads the session at path and replays it.
func (r *Replayer) RunFile(ctx context.Context, path string) (*Result, error) {
	s, err := LoadSession(path)
	if err != nil {
		return nil, err
	}
	if r.baseDir == "" {
		r.baseDir = filepath.Dir(path)
	}
	res, err := r.Run(ctx, s)
	if res != nil {
		res.Report.Source = path
	}
	return res, err
}

// Run replays s. On a failing step the partial result is returned together
// with the error.
func (r *Replayer) Run(ctx context.Context, s *model.Session) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	source, doc, err := r.loadDocument(s)
	if err != nil {
		return nil, err
	}

	mem := storage.NewMemory()
	store := blocklist.New(mem,
		blocklist.WithKey(r.cfg.StorageKey),
		blocklist.WithLogger(r.logger),
	)
	if err := seed(ctx, mem, store, s.Blocklist); err != nil {
		return nil, err
	}

	clock := reconcile.NewManualClock(r.start)
	loop := reconcile.New(doc, store,
		reconcile.WithConfig(r.cfg),
		reconcile.WithClock(clock),
		reconcile.WithLogger(r.logger),
		reconcile.WithRegistry(r.registry),
		reconcile.WithPersistence(mem),
	)

	sess := &session{
		doc:   doc,
		mem:   mem,
		store: store,
		clock: clock,
		loop:  loop,
	}

	loop.Start()
	defer loop.Stop()

	var stepErr error
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			stepErr = err
			break
		}
		r.logger.Debug("replaying step", "index", i+1, "action", step.Action)
		if err := sess.apply(step); err != nil {
			stepErr = fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
			break
		}
	}

	// Let every timer that a real session would still be waiting on fire.
	clock.Advance(r.settleTime())

	report := &model.FilterReport{Source: source}
	loop.Report(report)
	report.DateFiltered = clock.Now()
	if stepErr != nil {
		report.Error = stepErr.Error()
	}

	return &Result{
		Report:    report,
		Document:  doc,
		Stats:     loop.Stats(),
		Blocklist: store.List(),
	}, stepErr
}

func (r *Replayer) loadDocument(s *model.Session) (string, *dom.Document, error) {
	if s.HTML != "" {
		doc, err := dom.ParseString(s.HTML, s.Location)
		return s.Location, doc, err
	}

	path := s.Page
	if !filepath.IsAbs(path) && r.baseDir != "" {
		path = filepath.Join(r.baseDir, path)
	}
	f, err := os.Open(path) //nolint:gosec // Session scripts name their own pages
	if err != nil {
		return "", nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer f.Close()

	doc, err := dom.Parse(f, s.Location)
	return path, doc, err
}

func (r *Replayer) settleTime() time.Duration {
	return r.cfg.StartupDelay + r.cfg.RouteSettleDelay + r.cfg.DebounceDelay + r.cfg.RoutePollInterval
}

// seed stores the initial blocklist the way a previous session would have.
func seed(ctx context.Context, mem *storage.Memory, store *blocklist.Store, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := mem.SetValue(ctx, store.Key(), string(data)); err != nil {
		return err
	}
	store.Load(ctx)
	return nil
}

type session struct {
	doc   *dom.Document
	mem   *storage.Memory
	store *blocklist.Store
	clock *reconcile.ManualClock
	loop  *reconcile.Loop
}

func (s *session) apply(step model.Step) error {
	switch step.Action {
	case model.ActionInsert:
		target, err := s.query(step.Target)
		if err != nil {
			return err
		}
		_, err = s.doc.AppendHTML(target, step.HTML)
		return err

	case model.ActionReplace:
		target, err := s.query(step.Target)
		if err != nil {
			return err
		}
		_, err = s.doc.ReplaceChildrenHTML(target, step.HTML)
		return err

	case model.ActionRemove:
		nodes := s.doc.QueryAll(step.Target)
		if len(nodes) == 0 {
			return fmt.Errorf("%w: %s", ErrTargetNotFound, step.Target)
		}
		for _, n := range nodes {
			if err := s.doc.Remove(n); err != nil {
				return err
			}
		}
		return nil

	case model.ActionNavigate:
		return s.loop.Navigate(step.URL)

	case model.ActionBlock:
		_, err := s.store.Add(step.Identity)
		return err

	case model.ActionUnblock:
		_, err := s.store.Remove(step.Identity)
		return err

	case model.ActionClick:
		target, err := s.query(step.Target)
		if err != nil {
			return err
		}
		return s.loop.Click(target)

	case model.ActionSync:
		ids := step.Identities
		if ids == nil {
			ids = []string{}
		}
		data, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		s.mem.Publish(s.store.Key(), string(data))
		return nil

	case model.ActionWait:
		s.clock.Advance(step.Duration)
		return nil
	}
	return fmt.Errorf("unknown action %q", step.Action)
}

func (s *session) query(selector string) (*html.Node, error) {
	n := s.doc.Query(selector)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, selector)
	}
	return n, nil
}
