package model

import "time"

// Page is a document handed to the filter: read from a file or fetched
// from a URL.
type Page struct {
	// Source is the argument the page was loaded from (file path or URL).
	Source string `json:"source"`

	// Location is the navigation target the page is evaluated under.
	// Channel-page detection depends on it.
	Location string `json:"location"`

	// StatusCode is the HTTP status of a fetched page, 0 for files.
	StatusCode int `json:"status_code,omitempty"`

	// ContentType is the MIME type reported by the server.
	ContentType string `json:"content_type,omitempty"`

	// Raw is the unparsed document body.
	Raw []byte `json:"-"`

	// LoadedAt is when the page was read or fetched.
	LoadedAt time.Time `json:"loaded_at"`
}

// IsRemote reports whether the page was fetched over HTTP.
func (p *Page) IsRemote() bool {
	return p.StatusCode != 0
}
