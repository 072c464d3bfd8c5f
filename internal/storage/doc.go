// Package storage provides the key/value persistence the blocklist is
// kept in.
//
// Two backends implement Persistence:
//   - Memory keeps values in a map and lets tests simulate writes made by
//     another session with Publish.
//   - SQLite keeps values in a single database file (modernc.org/sqlite,
//     CGO-free) and detects writes made by other processes by polling
//     PRAGMA data_version.
//
// Values are opaque strings. The blocklist stores a JSON array in them.
package storage
