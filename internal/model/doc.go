// Package model defines the data structures shared by the engine, the
// batch filter and the report writers.
//
// This package contains the following main types:
//   - PassStats: Counters of one reconciliation pass
//   - Page: A page loaded from disk or fetched over HTTP
//   - FilterReport: The outcome of filtering one page
//   - Session: A scripted browsing session replayed against the engine
//
// Reports serialize to JSON for the machine-readable output.
package model
