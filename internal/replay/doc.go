// Package replay drives a reconciliation loop through a scripted browsing
// session.
//
// A session names an initial page, a blocklist and a list of steps: DOM
// insertions, removals and route swaps as the host page would make them,
// user clicks on injected controls, blocklist edits, changes arriving from
// another session, and waits. Steps run against a ManualClock, so debounce
// and route-settle timings behave exactly as they would live while the
// whole session replays instantly.
package replay
