package control

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/nao1215/quickblock/internal/blocklist"
	"github.com/nao1215/quickblock/internal/dom"
)

// Panel markup.
const (
	ToggleID      = "yt-block-toggle"
	PanelID       = "yt-block-panel"
	ListID        = "yt-block-list"
	ImportFileID  = "yt-import-file"
	ShowClass     = "show"
	ItemClass     = "blocked-item"
	UnblockClass  = "unblock-btn"
	IdentityAttr  = "data-identity"
	emptyListText = "No blocked channels"
)

// ErrNoBody is returned when the document has no body to mount into.
var ErrNoBody = errors.New("document has no body")

// Panel is the floating list of blocked channels with its toggle button.
type Panel struct {
	doc    *dom.Document
	store  *blocklist.Store
	logger *slog.Logger
	now    func() time.Time

	toggle *html.Node
	panel  *html.Node
	list   *html.Node
	status string
}

// PanelOption configures a Panel.
type PanelOption func(*Panel)

// WithPanelLogger sets the panel's logger.
func WithPanelLogger(logger *slog.Logger) PanelOption {
	return func(p *Panel) {
		p.logger = logger
	}
}

// WithNow sets the time source used for export file names.
func WithNow(now func() time.Time) PanelOption {
	return func(p *Panel) {
		p.now = now
	}
}

// NewPanel creates an unmounted panel.
func NewPanel(doc *dom.Document, store *blocklist.Store, opts ...PanelOption) *Panel {
	p := &Panel{doc: doc, store: store, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Mount inserts the toggle and the panel at the end of the body. Mounting
// twice is a no-op.
func (p *Panel) Mount() error {
	if p.Mounted() {
		return nil
	}
	body := p.doc.Body()
	if body == nil {
		return ErrNoBody
	}

	p.toggle = dom.NewElement("button", "id", ToggleID, "type", "button")
	p.panel = dom.NewElement("div", "id", PanelID)

	header := dom.NewElement("div", "class", "panel-header")
	title := dom.NewElement("h3")
	dom.SetText(title, "Blocked Channels")
	closeBtn := dom.NewElement("button", "type", "button", "class", "panel-close")
	dom.SetText(closeBtn, "✕")
	header.AppendChild(title)
	header.AppendChild(closeBtn)

	buttons := dom.NewElement("div", "class", "panel-buttons")
	exportBtn := dom.NewElement("button", "type", "button", "class", "panel-btn export")
	dom.SetText(exportBtn, "Export")
	importBtn := dom.NewElement("button", "type", "button", "class", "panel-btn import")
	dom.SetText(importBtn, "Import")
	buttons.AppendChild(exportBtn)
	buttons.AppendChild(importBtn)

	p.list = dom.NewElement("div", "id", ListID)

	p.panel.AppendChild(header)
	p.panel.AppendChild(buttons)
	p.panel.AppendChild(dom.NewElement("input", "type", "file", "id", ImportFileID, "accept", ".json"))
	p.panel.AppendChild(p.list)

	if err := p.doc.Append(body, p.toggle, p.panel); err != nil {
		return fmt.Errorf("failed to mount panel: %w", err)
	}
	return p.Update()
}

// Mounted reports whether the panel is in the document.
func (p *Panel) Mounted() bool {
	return p.toggle != nil && p.doc.Contains(p.toggle) && p.doc.Contains(p.list)
}

// Update re-renders the count badge and the list from the store.
func (p *Panel) Update() error {
	if !p.Mounted() {
		return nil
	}
	channels := p.store.List()
	dom.SetText(p.toggle, fmt.Sprintf("Blocked (%d)", len(channels)))

	var items []*html.Node
	if len(channels) == 0 {
		empty := dom.NewElement("div", "class", "empty")
		dom.SetText(empty, emptyListText)
		items = append(items, empty)
	}
	for _, ch := range channels {
		item := dom.NewElement("div", "class", ItemClass)
		name := dom.NewElement("span")
		dom.SetText(name, ch)
		btn := dom.NewElement("button", "type", "button", "class", UnblockClass, IdentityAttr, ch)
		dom.SetText(btn, "Unblock")
		item.AppendChild(name)
		item.AppendChild(btn)
		items = append(items, item)
	}
	return p.doc.ReplaceChildren(p.list, items...)
}

// Toggle shows or hides the panel and reports whether it is now shown.
func (p *Panel) Toggle() bool {
	if !p.Mounted() {
		return false
	}
	if dom.HasClass(p.panel, ShowClass) {
		dom.RemoveClass(p.panel, ShowClass)
		return false
	}
	dom.AddClass(p.panel, ShowClass)
	return true
}

// Close hides the panel.
func (p *Panel) Close() {
	if p.panel != nil {
		dom.RemoveClass(p.panel, ShowClass)
	}
}

// Unblock removes identity from the store. Store listeners take care of
// revealing content and re-rendering.
func (p *Panel) Unblock(identity string) (int, error) {
	n, err := p.store.Remove(identity)
	if n > 0 {
		p.logger.Info("unblocked channel", "identity", identity)
	}
	return n, err
}

// UnblockNode runs the Unblock button n.
func (p *Panel) UnblockNode(n *html.Node) (int, error) {
	identity, ok := dom.LookupAttr(n, IdentityAttr)
	if !ok {
		return 0, fmt.Errorf("%w: element is not an unblock button", ErrUnknownControl)
	}
	return p.Unblock(identity)
}

// ExportFileName returns the suggested download name for today.
func (p *Panel) ExportFileName() string {
	return blocklist.ExportFileName(p.now())
}

// Export writes the blocklist to w.
func (p *Panel) Export(w io.Writer) error {
	return p.store.Export(w)
}

// Import merges a JSON array read from r and records a status line for
// the user.
func (p *Panel) Import(r io.Reader) (blocklist.ImportResult, error) {
	res, err := p.store.Import(r)
	switch {
	case errors.Is(err, blocklist.ErrInvalidFormat):
		p.status = "Invalid format: expected an array"
	case errors.Is(err, blocklist.ErrMalformedJSON):
		p.status = "Failed to parse JSON: " + strings.TrimPrefix(err.Error(), blocklist.ErrMalformedJSON.Error()+": ")
	case err != nil && !errors.Is(err, blocklist.ErrPersist):
		p.status = "Import failed: " + err.Error()
	default:
		p.status = fmt.Sprintf("Imported %d new channels (%d duplicates skipped)", res.Added, res.Skipped)
	}
	return res, err
}

// Status returns the message of the last import.
func (p *Panel) Status() string {
	return p.status
}
