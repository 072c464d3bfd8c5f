// Package control is the Control Injector and the blocklist panel.
//
// The Injector appends a "Block" button to every attributable fragment
// that has an anchor for it, mounts a single button for the channel a
// channel page is about, and keeps every button's done state in step with
// the blocklist. Buttons are tracked by an opaque id carried in a data
// attribute, so host-page removal of a fragment simply drops its control
// on the next refresh.
//
// The Panel lists blocked channels with per-item Unblock buttons, a count
// badge, and Export/Import actions.
package control
