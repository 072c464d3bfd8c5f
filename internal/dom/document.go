package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrDetached is returned when a mutation targets a node outside the document.
var ErrDetached = errors.New("node is not attached to the document")

// Mutation describes one change to the children of Target.
type Mutation struct {
	Target  *html.Node
	Added   []*html.Node
	Removed []*html.Node
}

// Document is a mutable HTML tree with a navigation target and childList
// observers. It is not safe for concurrent use: like a browser document it
// belongs to a single goroutine.
type Document struct {
	root      *html.Node
	location  *url.URL
	observers []*Observer
}

// Parse reads an HTML document. location is the document's navigation target.
func Parse(r io.Reader, location string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", location, err)
	}
	return &Document{root: root, location: u}, nil
}

// ParseString is Parse for an in-memory document.
func ParseString(s, location string) (*Document, error) {
	return Parse(strings.NewReader(s), location)
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the body element, or nil when the document has none.
func (d *Document) Body() *html.Node {
	return d.Query("body")
}

// Location returns the current navigation target as a string.
func (d *Document) Location() string {
	return d.location.String()
}

// URL returns a copy of the current navigation target.
func (d *Document) URL() *url.URL {
	u := *d.location
	return &u
}

// Navigate changes the navigation target without touching the tree, the way
// a single-page application pushes history entries. Relative references
// resolve against the current target.
func (d *Document) Navigate(location string) error {
	u, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("invalid location %q: %w", location, err)
	}
	d.location = d.location.ResolveReference(u)
	return nil
}

// Selection wraps the whole document for goquery traversal.
func (d *Document) Selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(d.root).Selection
}

// QueryAll returns every element matching selector in document order.
// Invalid selectors match nothing.
func (d *Document) QueryAll(selector string) []*html.Node {
	return d.Selection().Find(selector).Nodes
}

// Query returns the first element matching selector, or nil.
func (d *Document) Query(selector string) *html.Node {
	nodes := d.Selection().Find(selector).First().Nodes
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Contains reports whether n is attached to the document.
func (d *Document) Contains(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// Append moves nodes to the end of parent's children and notifies observers.
func (d *Document) Append(parent *html.Node, nodes ...*html.Node) error {
	if !d.Contains(parent) {
		return ErrDetached
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		parent.AppendChild(n)
	}
	d.notify(Mutation{Target: parent, Added: nodes})
	return nil
}

// AppendHTML parses fragment in the context of parent, appends the result
// and returns the inserted top-level nodes.
func (d *Document) AppendHTML(parent *html.Node, fragment string) ([]*html.Node, error) {
	nodes, err := d.parseFragment(parent, fragment)
	if err != nil {
		return nil, err
	}
	if err := d.Append(parent, nodes...); err != nil {
		return nil, err
	}
	return nodes, nil
}

// ReplaceChildrenHTML swaps every child of parent for the parsed fragment
// and reports the swap as a single mutation, the way a route change
// re-renders a page container.
func (d *Document) ReplaceChildrenHTML(parent *html.Node, fragment string) ([]*html.Node, error) {
	if !d.Contains(parent) {
		return nil, ErrDetached
	}
	nodes, err := d.parseFragment(parent, fragment)
	if err != nil {
		return nil, err
	}
	if err := d.ReplaceChildren(parent, nodes...); err != nil {
		return nil, err
	}
	return nodes, nil
}

// ReplaceChildren swaps every child of parent for nodes as one mutation.
func (d *Document) ReplaceChildren(parent *html.Node, nodes ...*html.Node) error {
	if !d.Contains(parent) {
		return ErrDetached
	}

	var removed []*html.Node
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		parent.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		parent.AppendChild(n)
	}
	d.notify(Mutation{Target: parent, Added: nodes, Removed: removed})
	return nil
}

// Remove detaches n from its parent and notifies observers.
func (d *Document) Remove(n *html.Node) error {
	parent := n.Parent
	if parent == nil || !d.Contains(n) {
		return ErrDetached
	}
	parent.RemoveChild(n)
	d.notify(Mutation{Target: parent, Removed: []*html.Node{n}})
	return nil
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, returning an empty string on failure.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

func (d *Document) parseFragment(parent *html.Node, fragment string) ([]*html.Node, error) {
	context := parent
	if parent.Type != html.ElementNode {
		context = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	return nodes, nil
}
