package pipeline

import "errors"

var (
	// ErrNoPage is returned by steps that run before a page was loaded.
	ErrNoPage = errors.New("no page loaded")

	// ErrNoDocument is returned by steps that run before the page was parsed.
	ErrNoDocument = errors.New("no document parsed")
)
