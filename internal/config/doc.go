// Package config provides configuration structures and utilities for quickblock.
// It defines the timing of the reconciliation loop, where the blocklist is
// persisted, how pages are fetched for offline filtering, and report output
// preferences.
package config
