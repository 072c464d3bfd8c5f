// Package main provides the entry point for the quickblock CLI.
//
// quickblock hides content from blocked YouTube channels. It keeps a
// blocklist in a local database, filters saved or fetched pages against it
// and replays scripted browsing sessions through the same reconciliation
// loop a live page would use.
//
// Usage:
//
//	quickblock block @SomeCreator
//	quickblock filter page.html --out-dir filtered
//	quickblock replay session.yaml
//
// See --help for all available options.
package main

// main is the entry point for quickblock.
func main() {
	Execute()
}
