// Package reconcile keeps a changing document consistent with the blocklist.
//
// The Loop observes insertions under the page's main containers, coalesces
// bursts of them with a Debouncer and runs an incremental pass over only
// the inserted fragments. A RoutePoller detects client-side navigation;
// after a settle delay the loop re-attaches its observers and runs a full
// pass. Blocklist changes feed back through the store's change listeners:
// a block re-evaluates only fragments sharing the identity, while an
// unblock, import or remote sync invalidates every decision.
//
// Timing comes from a Clock. Tests and scripted sessions use ManualClock,
// which runs callbacks on the goroutine that advances it.
package reconcile
