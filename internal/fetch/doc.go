// Package fetch loads pages for offline filtering.
//
// Pages come either from disk (a saved copy of a watch, feed or channel
// page) or over HTTP. Requests can be routed through a SOCKS5 proxy, which
// is how the filter command reaches the host from networks where it is
// only available through a tunnel. Extra headers from the configuration
// file are sent with every request, which is the usual way to pass a
// consent cookie.
package fetch
