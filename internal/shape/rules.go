package shape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Shape tags.
const (
	TagComment  = "comment"
	TagLockup   = "lockup"
	TagRichItem = "rich-item"
	TagCompact  = "compact"
	TagSearch   = "search"
)

// ChannelHeaderTag is the channel page header. Its insertion is relevant
// because the page-subject control is mounted next to it.
const ChannelHeaderTag = "ytd-c4-tabbed-header-renderer"

// channelLink matches links to a channel page.
const channelLink = `a[href^="/@"]`

// Default returns the registry for the host page's current layouts.
func Default() *Registry {
	r, err := NewRegistry([]*Rule{
		CommentRule(),
		LockupRule(Phrases()...),
		RichItemRule(),
		CompactRule(),
		SearchRule(),
	}, ChannelHeaderTag)
	if err != nil {
		panic(err)
	}
	return r
}

// CommentRule matches comments and replies. A blocked author hides the
// whole thread.
func CommentRule() *Rule {
	return &Rule{
		Tag:      TagComment,
		Selector: "ytd-comment-view-model, ytd-comment-renderer",
		Extract: func(s *goquery.Selection) Identity {
			return linkIdentity(s.Find("#author-text").First())
		},
		Unit: func(s *goquery.Selection) *html.Node {
			return first(s.Closest("ytd-comment-thread-renderer"))
		},
		Anchor: func(s *goquery.Selection) *html.Node {
			return first(s.Find("#header-author"))
		},
	}
}

// LockupRule matches the home-feed lockup card. The display name comes
// from the avatar's aria-label in one of phrases, falling back to the first
// metadata text.
func LockupRule(phrases ...string) *Rule {
	labelSel := phraseSelector(phrases)
	return &Rule{
		Tag:      TagLockup,
		Selector: "yt-lockup-view-model",
		Extract: func(s *goquery.Selection) Identity {
			var id Identity
			if len(phrases) > 0 {
				if label, ok := s.Find(labelSel).First().Attr("aria-label"); ok {
					id.DisplayName = nameFromLabel(label)
				}
			}
			if id.DisplayName == "" {
				id.DisplayName = strings.TrimSpace(s.Find("yt-content-metadata-view-model .yt-content-metadata-view-model__metadata-text").First().Text())
			}
			if href, ok := s.Find(channelLink).First().Attr("href"); ok {
				id.Handle = HandleFromHref(href)
			}
			return id
		},
		Unit: func(s *goquery.Selection) *html.Node {
			return first(s.Closest("ytd-rich-item-renderer"))
		},
		Anchor: func(s *goquery.Selection) *html.Node {
			metadata := s.Find("yt-lockup-metadata-view-model").First()
			if metadata.Length() == 0 {
				return nil
			}
			if row := metadata.Find(".yt-content-metadata-view-model__metadata-row").First(); row.Length() > 0 {
				return first(row)
			}
			return first(metadata)
		},
	}
}

// RichItemRule matches legacy home-feed items. Items wrapping a lockup
// card are left to LockupRule.
func RichItemRule() *Rule {
	return &Rule{
		Tag:      TagRichItem,
		Selector: "ytd-rich-item-renderer",
		Skip: func(s *goquery.Selection) bool {
			return s.Find("yt-lockup-view-model").Length() > 0
		},
		Extract: func(s *goquery.Selection) Identity {
			return linkIdentity(s.Find(channelLink).First())
		},
		Anchor: func(s *goquery.Selection) *html.Node {
			return first(s.Find(channelLink).First().Parent())
		},
	}
}

// CompactRule matches sidebar recommendations.
func CompactRule() *Rule {
	return &Rule{
		Tag:      TagCompact,
		Selector: "ytd-compact-video-renderer",
		Extract: func(s *goquery.Selection) Identity {
			return linkIdentity(s.Find(channelLink).First())
		},
		Anchor: func(s *goquery.Selection) *html.Node {
			return first(s.Find(channelLink).First().Parent())
		},
	}
}

// SearchRule matches search results.
func SearchRule() *Rule {
	return &Rule{
		Tag:      TagSearch,
		Selector: "ytd-video-renderer",
		Extract: func(s *goquery.Selection) Identity {
			return linkIdentity(s.Find("ytd-channel-name a").First())
		},
		Anchor: func(s *goquery.Selection) *html.Node {
			if c := first(s.Find("ytd-channel-name #container")); c != nil {
				return c
			}
			return first(s.Find("ytd-channel-name a").First().Parent())
		},
	}
}

// linkIdentity reads the handle from a channel link's target and the
// display name from its text.
func linkIdentity(link *goquery.Selection) Identity {
	if link.Length() == 0 {
		return Identity{}
	}
	return Identity{
		Handle:      HandleFromHref(link.AttrOr("href", "")),
		DisplayName: strings.TrimSpace(link.Text()),
	}
}

func first(s *goquery.Selection) *html.Node {
	if s == nil || s.Length() == 0 {
		return nil
	}
	return s.Nodes[0]
}
