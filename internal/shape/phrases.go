package shape

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

// channelPhrases are the localized "go to channel" phrases the host page
// puts in the aria-label of a feed card's avatar link.
var channelPhrases = []struct {
	tag    language.Tag
	phrase string
}{
	{language.TraditionalChinese, "前往頻道"},
	{language.English, "Go to channel"},
	{language.Japanese, "チャンネル"},
}

var phraseMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(channelPhrases))
	for i, p := range channelPhrases {
		tags[i] = p.tag
	}
	return language.NewMatcher(tags)
}()

// labelName captures the channel name after the first full-width or ASCII
// colon of an aria-label.
var labelName = regexp.MustCompile(`[:：]\s*(.+)$`)

// PhraseFor returns the "go to channel" phrase for the given language, and
// false when no known phrase is close enough.
func PhraseFor(tag language.Tag) (string, bool) {
	_, index, confidence := phraseMatcher.Match(tag)
	if confidence == language.No {
		return "", false
	}
	return channelPhrases[index].phrase, true
}

// Phrases returns every known phrase in lookup order.
func Phrases() []string {
	out := make([]string, len(channelPhrases))
	for i, p := range channelPhrases {
		out[i] = p.phrase
	}
	return out
}

// phraseSelector builds a selector matching elements whose aria-label
// contains any of phrases.
func phraseSelector(phrases []string) string {
	parts := make([]string, len(phrases))
	for i, p := range phrases {
		parts[i] = fmt.Sprintf(`[aria-label*=%q]`, p)
	}
	return strings.Join(parts, ", ")
}

// nameFromLabel extracts the channel name from an avatar aria-label such as
// "Go to channel: Some Creator".
func nameFromLabel(label string) string {
	m := labelName.FindStringSubmatch(label)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
