package shape

import (
	"net/url"
	"regexp"
)

var (
	// handleInHref finds a /@handle segment anywhere in a link target.
	handleInHref = regexp.MustCompile(`/@([^/?]+)`)
	// handleInPath only accepts a handle as the first path segment.
	handleInPath = regexp.MustCompile(`^/@([^/?]+)`)
)

// HandleFromHref returns the percent-decoded handle encoded in href, or ""
// when href carries none.
func HandleFromHref(href string) string {
	m := handleInHref.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	return decode(m[1])
}

// HandleFromLocation returns the handle of the channel page u points at,
// or "" when u is not a channel page.
func HandleFromLocation(u *url.URL) string {
	if u == nil {
		return ""
	}
	m := handleInPath.FindStringSubmatch(u.EscapedPath())
	if m == nil {
		return ""
	}
	return decode(m[1])
}

// IsChannelPage reports whether u is a channel page.
func IsChannelPage(u *url.URL) bool {
	return HandleFromLocation(u) != ""
}

func decode(s string) string {
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}
