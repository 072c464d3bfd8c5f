// Package dom is the document tree the engine works on: an HTML tree
// parsed with golang.org/x/net/html, a navigation target, and childList
// observers that report insertions and removals under a watched subtree.
//
// Queries use CSS selectors through goquery. Attribute and class helpers
// mutate nodes in place and, like class changes in a browser observed with
// childList only, are not reported to observers.
package dom
