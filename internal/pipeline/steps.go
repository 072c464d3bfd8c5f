package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nao1215/quickblock/internal/blocklist"
	"github.com/nao1215/quickblock/internal/dom"
	"github.com/nao1215/quickblock/internal/fetch"
	"github.com/nao1215/quickblock/internal/model"
	"github.com/nao1215/quickblock/internal/reconcile"
	"github.com/nao1215/quickblock/internal/shape"
	"github.com/nao1215/quickblock/internal/storage"
)

// DefaultLocation is the navigation target of saved pages when none is
// given. It is not a channel page, so no page control is mounted.
const DefaultLocation = "https://www.youtube.com/"

// Loader retrieves pages. *fetch.Fetcher implements it.
type Loader interface {
	Fetch(ctx context.Context, rawURL string) (*model.Page, error)
	LoadFile(path, location string) (*model.Page, error)
}

var _ Loader = (*fetch.Fetcher)(nil)

// LoadStep reads the page from disk or fetches it.
type LoadStep struct {
	loader   Loader
	location string
}

// NewLoadStep creates a LoadStep. location is the navigation target of
// files; empty means DefaultLocation.
func NewLoadStep(loader Loader, location string) *LoadStep {
	if location == "" {
		location = DefaultLocation
	}
	return &LoadStep{loader: loader, location: location}
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return "load"
}

// Do loads job.Source.
func (s *LoadStep) Do(ctx context.Context, job *Job) error {
	var (
		page *model.Page
		err  error
	)
	if fetch.IsURL(job.Source) {
		page, err = s.loader.Fetch(ctx, job.Source)
	} else {
		page, err = s.loader.LoadFile(job.Source, s.location)
	}
	if err != nil {
		return err
	}
	job.Page = page
	job.Report.Location = page.Location
	return nil
}

// ParseStep builds the document tree of the loaded page.
type ParseStep struct{}

// NewParseStep creates a ParseStep.
func NewParseStep() *ParseStep {
	return &ParseStep{}
}

// Name returns the step name.
func (s *ParseStep) Name() string {
	return "parse"
}

// Do parses job.Page.
func (s *ParseStep) Do(_ context.Context, job *Job) error {
	if job.Page == nil {
		return ErrNoPage
	}
	doc, err := dom.Parse(bytes.NewReader(job.Page.Raw), job.Page.Location)
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}
	job.Doc = doc
	return nil
}

// FilterStep runs one full reconciliation pass over the document.
type FilterStep struct {
	identities []string
	registry   *shape.Registry
	panel      bool
	logger     *slog.Logger
}

// FilterStepOption configures a FilterStep.
type FilterStepOption func(*FilterStep)

// WithFilterRegistry replaces the default shape registry.
func WithFilterRegistry(r *shape.Registry) FilterStepOption {
	return func(s *FilterStep) {
		s.registry = r
	}
}

// WithFilterPanel mounts the blocklist panel into the output.
func WithFilterPanel(panel bool) FilterStepOption {
	return func(s *FilterStep) {
		s.panel = panel
	}
}

// WithFilterLogger sets the step's logger.
func WithFilterLogger(logger *slog.Logger) FilterStepOption {
	return func(s *FilterStep) {
		s.logger = logger
	}
}

// NewFilterStep creates a FilterStep that blocks identities. Every job gets
// its own in-memory copy of the list, so concurrent jobs share nothing.
func NewFilterStep(identities []string, opts ...FilterStepOption) *FilterStep {
	s := &FilterStep{identities: identities}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.registry == nil {
		s.registry = shape.Default()
	}
	return s
}

// Name returns the step name.
func (s *FilterStep) Name() string {
	return "filter"
}

// Do evaluates every fragment of job.Doc and records the outcome.
func (s *FilterStep) Do(_ context.Context, job *Job) error {
	if job.Doc == nil {
		return ErrNoDocument
	}

	store := blocklist.New(storage.NewMemory(), blocklist.WithLogger(s.logger))
	store.ReplaceAll(s.identities)

	loop := reconcile.New(job.Doc, store,
		reconcile.WithLogger(s.logger),
		reconcile.WithRegistry(s.registry),
	)
	if s.panel {
		if err := loop.Panel().Mount(); err != nil {
			s.logger.Debug("failed to mount blocklist panel", "source", job.Source, "error", err)
		}
	}
	stats := loop.FullPass()
	loop.Report(job.Report)
	job.Loop = loop

	s.logger.Info("page filtered",
		"source", job.Source,
		"suppressed", stats.Suppressed,
		"controls", job.Report.Controls,
	)
	return nil
}

// WriteStep renders the filtered document into a directory.
type WriteStep struct {
	outDir string
}

// NewWriteStep creates a WriteStep writing into outDir.
func NewWriteStep(outDir string) *WriteStep {
	return &WriteStep{outDir: outDir}
}

// Name returns the step name.
func (s *WriteStep) Name() string {
	return "write"
}

// Do writes job.Doc to outDir under OutputName(job.Source).
func (s *WriteStep) Do(_ context.Context, job *Job) error {
	if job.Doc == nil {
		return ErrNoDocument
	}
	if err := os.MkdirAll(s.outDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.outDir, OutputName(job.Source))
	f, err := os.Create(path) //nolint:gosec // Output directory is chosen by the user
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := job.Doc.Render(f); err != nil {
		_ = f.Close() //nolint:errcheck // the render error is returned
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	job.Report.OutputPath = path
	return nil
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._@-]+`)

// OutputName derives the output file name of source: the base name of a
// file, or the host and path of a URL.
func OutputName(source string) string {
	name := filepath.Base(source)
	if fetch.IsURL(source) {
		if u, err := url.Parse(source); err == nil {
			name = u.Host + u.Path
			if u.RawQuery != "" {
				name += "-" + u.RawQuery
			}
		}
	}
	name = strings.Trim(unsafeNameChars.ReplaceAllString(name, "-"), "-.")
	if name == "" {
		name = "page"
	}
	if !strings.HasSuffix(name, ".html") {
		name += ".html"
	}
	return name
}

// DefaultPipelineConfig holds the settings of DefaultPipeline.
type DefaultPipelineConfig struct {
	// Location is the navigation target of saved pages.
	Location string

	// OutDir receives the filtered documents. Empty skips writing.
	OutDir string

	// Panel mounts the blocklist panel into the output.
	Panel bool

	// Registry replaces the default shape registry.
	Registry *shape.Registry
}

// DefaultPipelineOption configures DefaultPipeline.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineLocation sets the navigation target of saved pages.
func WithPipelineLocation(location string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Location = location
	}
}

// WithPipelineOutDir writes filtered documents into dir.
func WithPipelineOutDir(dir string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.OutDir = dir
	}
}

// WithPipelinePanel mounts the blocklist panel into the output.
func WithPipelinePanel(panel bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Panel = panel
	}
}

// WithPipelineRegistry replaces the default shape registry.
func WithPipelineRegistry(r *shape.Registry) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Registry = r
	}
}

// DefaultPipeline builds load, parse, filter and, with an output directory,
// write.
func DefaultPipeline(loader Loader, identities []string, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	cfg := &DefaultPipelineConfig{}
	for _, opt := range configOpts {
		opt(cfg)
	}

	p := New(pipelineOpts...)
	filterOpts := []FilterStepOption{
		WithFilterPanel(cfg.Panel),
		WithFilterLogger(p.logger),
	}
	if cfg.Registry != nil {
		filterOpts = append(filterOpts, WithFilterRegistry(cfg.Registry))
	}

	p.AddSteps(
		NewLoadStep(loader, cfg.Location),
		NewParseStep(),
		NewFilterStep(identities, filterOpts...),
	)
	if cfg.OutDir != "" {
		p.AddStep(NewWriteStep(cfg.OutDir))
	}
	return p
}
