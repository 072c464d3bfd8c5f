// Package log builds the slog loggers used across quickblock.
//
// Blocked channel names are personal data: they reveal what a user chose
// not to watch. The RedactingHandler masks attributes that carry an
// identity (channel handle, display name) before they reach the
// underlying handler, so verbose logs can be shared in bug reports.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, true, true) // verbose, redact
//	logger.Info("blocked channel", "identity", "@somecreator") // identity=***
//	slog.SetDefault(logger)
package log
