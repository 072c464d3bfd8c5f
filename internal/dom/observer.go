package dom

import "golang.org/x/net/html"

// Observer receives childList mutations under a watched subtree.
type Observer struct {
	doc    *Document
	target *html.Node
	fn     func([]Mutation)
	active bool
}

// Observe calls fn for every mutation whose target is target or one of its
// descendants. Delivery is synchronous, on the goroutine that mutated the
// document. Attribute and class changes are not reported.
func (d *Document) Observe(target *html.Node, fn func([]Mutation)) *Observer {
	o := &Observer{doc: d, target: target, fn: fn, active: true}
	d.observers = append(d.observers, o)
	return o
}

// Target returns the observed subtree root.
func (o *Observer) Target() *html.Node {
	return o.target
}

// Disconnect stops delivery. It is safe to call more than once.
func (o *Observer) Disconnect() {
	if !o.active {
		return
	}
	o.active = false

	kept := o.doc.observers[:0]
	for _, other := range o.doc.observers {
		if other != o {
			kept = append(kept, other)
		}
	}
	o.doc.observers = kept
}

func (d *Document) notify(m Mutation) {
	observers := append([]*Observer(nil), d.observers...)
	for _, o := range observers {
		if !o.active || !isInclusiveAncestor(o.target, m.Target) {
			continue
		}
		o.fn([]Mutation{m})
	}
}

func isInclusiveAncestor(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
