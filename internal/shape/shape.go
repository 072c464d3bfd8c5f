package shape

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrInvalidRule is returned when a rule cannot be registered.
var ErrInvalidRule = errors.New("invalid shape rule")

// Identity is what a fragment says about its source channel. Either field
// may be empty.
type Identity struct {
	// Handle is the percent-decoded @handle from a channel link.
	Handle string
	// DisplayName is the human-readable channel name.
	DisplayName string
}

// Empty reports whether neither field is set. Empty identities are
// unattributable: they are never suppressed and get no control.
func (id Identity) Empty() bool {
	return id.Handle == "" && id.DisplayName == ""
}

// Canonical returns the identity stored when the channel is blocked: the
// handle when present, else the display name.
func (id Identity) Canonical() string {
	if id.Handle != "" {
		return id.Handle
	}
	return id.DisplayName
}

// Label returns the name shown to the user: the display name when present,
// else the handle.
func (id Identity) Label() string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	return id.Handle
}

// Rule describes one fragment shape.
type Rule struct {
	// Tag names the shape in logs and reports.
	Tag string
	// Selector matches fragment elements of this shape.
	Selector string
	// Skip excludes matching elements that another rule handles.
	// Optional.
	Skip func(s *goquery.Selection) bool
	// Extract reads the identity from the fragment.
	Extract func(s *goquery.Selection) Identity
	// Unit returns the element hidden when the fragment is suppressed.
	// Optional; the fragment itself is used when nil or when it returns nil.
	Unit func(s *goquery.Selection) *html.Node
	// Anchor returns the element a block control is appended to, or nil
	// when the fragment has no place for one.
	Anchor func(s *goquery.Selection) *html.Node

	matcher cascadia.Selector
}

// Fragment is an element matched by a Rule.
type Fragment struct {
	Node *html.Node
	Rule *Rule
}

func (f Fragment) selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(f.Node).Selection
}

// Identity extracts the fragment's identity from its current markup.
func (f Fragment) Identity() Identity {
	id := f.Rule.Extract(f.selection())
	id.Handle = strings.TrimSpace(id.Handle)
	id.DisplayName = strings.TrimSpace(id.DisplayName)
	return id
}

// Unit returns the suppression unit of the fragment.
func (f Fragment) Unit() *html.Node {
	if f.Rule.Unit != nil {
		if n := f.Rule.Unit(f.selection()); n != nil {
			return n
		}
	}
	return f.Node
}

// Anchor returns the control anchor of the fragment, or nil.
func (f Fragment) Anchor() *html.Node {
	if f.Rule.Anchor == nil {
		return nil
	}
	return f.Rule.Anchor(f.selection())
}

// Registry is the set of known fragment shapes plus the extra tags whose
// insertion makes a reconciliation pass worthwhile.
type Registry struct {
	rules     []*Rule
	extra     []string
	fragments cascadia.Selector
	relevant  cascadia.Selector
}

// NewRegistry compiles rules and extra relevance tags into a Registry.
// Rules are tried in order; the first one that matches an element and does
// not skip it owns the element.
func NewRegistry(rules []*Rule, extraTags ...string) (*Registry, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: no rules", ErrInvalidRule)
	}

	selectors := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.Tag == "" || r.Selector == "" || r.Extract == nil {
			return nil, fmt.Errorf("%w: %q needs a tag, a selector and an extractor", ErrInvalidRule, r.Tag)
		}
		m, err := cascadia.Compile(r.Selector)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRule, r.Tag, err)
		}
		r.matcher = m
		selectors = append(selectors, r.Selector)
	}

	fragments, err := cascadia.Compile(strings.Join(selectors, ", "))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}
	relevant, err := cascadia.Compile(strings.Join(append(selectors, extraTags...), ", "))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}

	return &Registry{
		rules:     rules,
		extra:     extraTags,
		fragments: fragments,
		relevant:  relevant,
	}, nil
}

// Rules returns the registered rules in priority order.
func (r *Registry) Rules() []*Rule {
	return r.rules
}

// Rule returns the rule registered under tag, or nil.
func (r *Registry) Rule(tag string) *Rule {
	for _, rule := range r.rules {
		if rule.Tag == tag {
			return rule
		}
	}
	return nil
}

// Match returns the fragment n is, if any.
func (r *Registry) Match(n *html.Node) (Fragment, bool) {
	if n == nil || n.Type != html.ElementNode {
		return Fragment{}, false
	}
	for _, rule := range r.rules {
		if !rule.matcher.Match(n) {
			continue
		}
		if rule.Skip != nil && rule.Skip(goquery.NewDocumentFromNode(n).Selection) {
			return Fragment{}, false
		}
		return Fragment{Node: n, Rule: rule}, true
	}
	return Fragment{}, false
}

// Fragments returns every fragment at or below roots in document order.
// Elements appearing under more than one root are returned once.
func (r *Registry) Fragments(roots ...*html.Node) []Fragment {
	seen := make(map[*html.Node]struct{})
	var out []Fragment

	add := func(n *html.Node) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		if f, ok := r.Match(n); ok {
			out = append(out, f)
		}
	}

	for _, root := range roots {
		if root == nil {
			continue
		}
		if root.Type == html.ElementNode && r.fragments.Match(root) {
			add(root)
		}
		for _, n := range cascadia.QueryAll(root, r.fragments) {
			add(n)
		}
	}
	return out
}

// Relevant reports whether inserting n can introduce work: n is a fragment
// or a relevance tag, or contains one.
func (r *Registry) Relevant(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if r.relevant.Match(n) {
		return true
	}
	return cascadia.Query(n, r.relevant) != nil
}
