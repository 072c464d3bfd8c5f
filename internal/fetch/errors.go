package fetch

import "errors"

// Errors returned while retrieving a page. They are wrapped with the
// underlying cause, so use errors.Is.
var (
	// ErrInvalidProxyAddress is returned when the proxy is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrInvalidURL is returned when the page URL cannot be turned into a request.
	ErrInvalidURL = errors.New("invalid page URL")

	// ErrRequestFailed is returned when the request could not be completed.
	ErrRequestFailed = errors.New("request failed")

	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrNotHTML is returned when the response is not an HTML document.
	ErrNotHTML = errors.New("response is not HTML")

	// ErrBodyTooLarge is returned when a page exceeds the body size limit.
	ErrBodyTooLarge = errors.New("page exceeds the maximum body size")
)
