// Package blocklist holds the Identity Store: the user's list of blocked
// channels, kept verbatim for display and export, and a normalized index
// for constant-time membership tests.
//
// Two identities are the same when they are equal after Normalize
// (Unicode NFC, surrounding whitespace trimmed, lower-cased). Every
// mutation is persisted synchronously through storage.Persistence before
// listeners registered with OnChange are told about it.
//
// Export and Import exchange the list as a JSON array of strings.
package blocklist
