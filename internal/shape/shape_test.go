package shape

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/language"

	"github.com/nao1215/quickblock/internal/dom"
)

const feed = `<html><body>
<ytd-comment-thread-renderer id="thread">
  <ytd-comment-view-model id="c1">
    <div id="header-author"><a id="author-text" href="/@SomeCreator">  Some Creator </a></div>
  </ytd-comment-view-model>
</ytd-comment-thread-renderer>
<ytd-comment-renderer id="c2"><p>no author</p></ytd-comment-renderer>
<ytd-rich-item-renderer id="ri1">
  <yt-lockup-view-model id="l1">
    <a href="/@lock%C3%A9" aria-label="Go to channel: Lockup Name"></a>
    <yt-lockup-metadata-view-model id="meta1">
      <div class="yt-content-metadata-view-model__metadata-row" id="row1"></div>
    </yt-lockup-metadata-view-model>
  </yt-lockup-view-model>
</ytd-rich-item-renderer>
<yt-lockup-view-model id="l2">
  <span aria-label="前往頻道：頻道名稱"></span>
</yt-lockup-view-model>
<yt-lockup-view-model id="l3">
  <yt-content-metadata-view-model><span class="yt-content-metadata-view-model__metadata-text"> Meta Name </span></yt-content-metadata-view-model>
  <yt-lockup-metadata-view-model id="meta3"></yt-lockup-metadata-view-model>
</yt-lockup-view-model>
<ytd-rich-item-renderer id="ri2"><div id="byline2"><a href="/@legacy">Legacy</a></div></ytd-rich-item-renderer>
<ytd-compact-video-renderer id="cv"><div id="byline3"><a href="/@side?x=1">Side</a></div></ytd-compact-video-renderer>
<ytd-video-renderer id="sr">
  <ytd-channel-name><div id="container"><a href="/@searcher">Searcher</a></div></ytd-channel-name>
</ytd-video-renderer>
<ytd-video-renderer id="sr2"><p>nothing</p></ytd-video-renderer>
</body></html>`

func parseFeed(t *testing.T) *dom.Document {
	t.Helper()
	d, err := dom.ParseString(feed, "https://www.youtube.com/")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	return d
}

func byID(t *testing.T, d *dom.Document, id string) *html.Node {
	t.Helper()
	n := d.Query("#" + id)
	if n == nil {
		t.Fatalf("fixture element %q missing", id)
	}
	return n
}

// TestHandleFromHref tests handle decoding.
func TestHandleFromHref(t *testing.T) {
	t.Parallel()

	tests := []struct {
		href string
		want string
	}{
		{"/@SomeCreator", "SomeCreator"},
		{"https://www.youtube.com/@SomeCreator/videos", "SomeCreator"},
		{"/@side?x=1", "side"},
		{"/@caf%C3%A9", "café"},
		{"/@bad%zz", "bad%zz"},
		{"/channel/UC123", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			t.Parallel()
			if got := HandleFromHref(tt.href); got != tt.want {
				t.Errorf("HandleFromHref(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}

// TestHandleFromLocation tests channel page detection.
func TestHandleFromLocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		location string
		want     string
	}{
		{"https://www.youtube.com/@SomeCreator", "SomeCreator"},
		{"https://www.youtube.com/@SomeCreator/videos", "SomeCreator"},
		{"https://www.youtube.com/watch?v=abc", ""},
		{"https://www.youtube.com/results?q=/@x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			t.Parallel()
			u, err := url.Parse(tt.location)
			if err != nil {
				t.Fatal(err)
			}
			if got := HandleFromLocation(u); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if IsChannelPage(u) != (tt.want != "") {
				t.Errorf("IsChannelPage mismatch for %q", tt.location)
			}
		})
	}
}

// TestPhraseFor tests localized phrase lookup.
func TestPhraseFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag  string
		want string
		ok   bool
	}{
		{"zh-TW", "前往頻道", true},
		{"en-US", "Go to channel", true},
		{"ja", "チャンネル", true},
		{"fi", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			t.Parallel()
			got, ok := PhraseFor(language.MustParse(tt.tag))
			if ok != tt.ok || got != tt.want {
				t.Errorf("PhraseFor(%s) = %q, %v; want %q, %v", tt.tag, got, ok, tt.want, tt.ok)
			}
		})
	}
}

// TestExtract tests identity extraction for every shape.
func TestExtract(t *testing.T) {
	t.Parallel()

	d := parseFeed(t)
	reg := Default()

	tests := []struct {
		id     string
		tag    string
		want   Identity
		unit   string
		anchor string
	}{
		{"c1", TagComment, Identity{Handle: "SomeCreator", DisplayName: "Some Creator"}, "thread", "header-author"},
		{"c2", TagComment, Identity{}, "c2", ""},
		{"l1", TagLockup, Identity{Handle: "locké", DisplayName: "Lockup Name"}, "ri1", "row1"},
		{"l2", TagLockup, Identity{DisplayName: "頻道名稱"}, "l2", ""},
		{"l3", TagLockup, Identity{DisplayName: "Meta Name"}, "l3", "meta3"},
		{"ri2", TagRichItem, Identity{Handle: "legacy", DisplayName: "Legacy"}, "ri2", "byline2"},
		{"cv", TagCompact, Identity{Handle: "side", DisplayName: "Side"}, "cv", "byline3"},
		{"sr", TagSearch, Identity{Handle: "searcher", DisplayName: "Searcher"}, "sr", "container"},
		{"sr2", TagSearch, Identity{}, "sr2", ""},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()
			f, ok := reg.Match(byID(t, d, tt.id))
			if !ok {
				t.Fatalf("expected %s to match a rule", tt.id)
			}
			if f.Rule.Tag != tt.tag {
				t.Errorf("expected tag %s, got %s", tt.tag, f.Rule.Tag)
			}
			if got := f.Identity(); got != tt.want {
				t.Errorf("expected identity %+v, got %+v", tt.want, got)
			}
			if got := dom.Attr(f.Unit(), "id"); got != tt.unit {
				t.Errorf("expected unit %q, got %q", tt.unit, got)
			}
			anchor := f.Anchor()
			if tt.anchor == "" {
				if anchor != nil {
					t.Errorf("expected no anchor, got %s", dom.Attr(anchor, "id"))
				}
				return
			}
			if got := dom.Attr(anchor, "id"); got != tt.anchor {
				t.Errorf("expected anchor %q, got %q", tt.anchor, got)
			}
		})
	}
}

// TestRegistry tests fragment discovery and relevance.
func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("rich item wrapping a lockup is skipped", func(t *testing.T) {
		t.Parallel()
		d := parseFeed(t)
		if _, ok := Default().Match(byID(t, d, "ri1")); ok {
			t.Error("expected ri1 to be left to the lockup rule")
		}
	})

	t.Run("fragments come in document order without duplicates", func(t *testing.T) {
		t.Parallel()
		d := parseFeed(t)
		reg := Default()

		got := reg.Fragments(d.Root(), byID(t, d, "thread"), byID(t, d, "c1"))
		var ids []string
		for _, f := range got {
			ids = append(ids, dom.Attr(f.Node, "id"))
		}
		want := "c1 c2 l1 l2 l3 ri2 cv sr sr2"
		if strings.Join(ids, " ") != want {
			t.Errorf("expected %q, got %q", want, strings.Join(ids, " "))
		}
	})

	t.Run("root itself can be a fragment", func(t *testing.T) {
		t.Parallel()
		d := parseFeed(t)
		got := Default().Fragments(byID(t, d, "cv"))
		if len(got) != 1 || got[0].Rule.Tag != TagCompact {
			t.Errorf("expected the compact card, got %v", got)
		}
	})

	t.Run("relevance", func(t *testing.T) {
		t.Parallel()
		reg := Default()
		tests := []struct {
			name string
			node *html.Node
			want bool
		}{
			{"fragment", dom.NewElement("ytd-video-renderer"), true},
			{"channel header", dom.NewElement(ChannelHeaderTag), true},
			{"plain div", dom.NewElement("div"), false},
			{"text", &html.Node{Type: html.TextNode, Data: "x"}, false},
		}
		wrapper := dom.NewElement("div")
		wrapper.AppendChild(dom.NewElement("ytd-compact-video-renderer"))
		tests = append(tests, struct {
			name string
			node *html.Node
			want bool
		}{"container of fragment", wrapper, true})

		for _, tt := range tests {
			if got := reg.Relevant(tt.node); got != tt.want {
				t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
			}
		}
	})

	t.Run("invalid rules are rejected", func(t *testing.T) {
		t.Parallel()
		if _, err := NewRegistry(nil); err == nil {
			t.Error("expected error for empty registry")
		}
		bad := &Rule{Tag: "bad", Selector: "[[", Extract: func(*goquery.Selection) Identity { return Identity{} }}
		if _, err := NewRegistry([]*Rule{bad}); err == nil {
			t.Error("expected error for invalid selector")
		}
	})
}

// TestIdentity tests identity helpers.
func TestIdentity(t *testing.T) {
	t.Parallel()

	both := Identity{Handle: "h", DisplayName: "Name"}
	if both.Canonical() != "h" || both.Label() != "Name" {
		t.Errorf("unexpected canonical/label %q %q", both.Canonical(), both.Label())
	}
	nameOnly := Identity{DisplayName: "Name"}
	if nameOnly.Canonical() != "Name" || nameOnly.Label() != "Name" {
		t.Error("expected display name fallback")
	}
	if !(Identity{}).Empty() || both.Empty() {
		t.Error("unexpected Empty result")
	}
}
