package control

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/quickblock/internal/dom"
	"github.com/nao1215/quickblock/internal/shape"
)

// Page-subject control markup.
const (
	PageControlID   = "yt-channel-block-btn"
	PageButtonClass = "channel-page-btn"
	flexActionClass = "ytFlexibleActionsViewModelAction"
)

// flexActions is the action bar of the current channel header layout.
const flexActions = "yt-flexible-actions-view-model"

// legacyContainers are tried in order when the action bar is missing.
var legacyContainers = []string{
	"#buttons",
	"#subscribe-button",
	"ytd-subscribe-button-renderer",
	"#inner-header-container #buttons",
	"#channel-header #buttons",
}

// EnsurePageControl mounts the control for the channel the current
// navigation target points at. It is a no-op off channel pages, when the
// control for the same channel is already mounted, or when the header has
// not rendered a container yet.
func (i *Injector) EnsurePageControl() (*Control, bool) {
	handle := shape.HandleFromLocation(i.doc.URL())
	if handle == "" {
		return nil, false
	}
	if i.page != nil && i.doc.Contains(i.page.Node) {
		if i.page.Identity.Handle == handle {
			return i.page, false
		}
		i.RemovePageControl()
	}
	if i.doc.Query("#"+PageControlID) != nil {
		return nil, false
	}

	id := shape.Identity{Handle: handle, DisplayName: i.channelName()}
	if id.DisplayName == "" {
		id.DisplayName = handle
	}
	c := i.newControl(id)
	c.subject = true
	i.refresh(c)
	dom.AddClass(c.Node, PageButtonClass)
	dom.SetAttr(c.Node, "id", PageControlID)

	if bar := i.doc.Query(flexActions); bar != nil {
		wrapper := dom.NewElement("div", "class", flexActionClass)
		wrapper.AppendChild(c.Node)
		if err := i.doc.Append(bar, wrapper); err != nil {
			return nil, false
		}
		c.mount = wrapper
	} else {
		target := i.legacyContainer()
		if target == nil {
			i.logger.Debug("channel header has no place for the block control", "handle", handle)
			return nil, false
		}
		if err := i.doc.Append(target, c.Node); err != nil {
			return nil, false
		}
		c.mount = c.Node
	}

	i.register(c)
	i.page = c
	return c, true
}

// RemovePageControl removes the page-subject control. It reports whether
// one was mounted.
func (i *Injector) RemovePageControl() bool {
	removed := false
	if c := i.page; c != nil {
		if i.doc.Contains(c.mount) {
			removed = i.doc.Remove(c.mount) == nil
		}
		delete(i.controls, c.ID)
		i.page = nil
	}
	// A stale control can outlive a re-created injector.
	if n := i.doc.Query("#" + PageControlID); n != nil {
		target := n
		if p := n.Parent; p != nil && dom.HasClass(p, flexActionClass) {
			target = p
		}
		removed = i.doc.Remove(target) == nil || removed
	}
	return removed
}

// PageControl returns the mounted page-subject control, or nil.
func (i *Injector) PageControl() *Control {
	if i.page == nil || !i.doc.Contains(i.page.Node) {
		return nil
	}
	return i.page
}

func (i *Injector) channelName() string {
	header := i.doc.Query(shape.ChannelHeaderTag)
	if header == nil {
		return ""
	}
	name := goquery.NewDocumentFromNode(header).
		Find("#channel-name yt-formatted-string, #channel-name, yt-dynamic-text-view-model").First()
	return strings.TrimSpace(name.Text())
}

func (i *Injector) legacyContainer() *html.Node {
	for _, sel := range legacyContainers {
		if n := i.doc.Query(sel); n != nil {
			return n
		}
	}
	return nil
}
