package moderation

import (
	"regexp"

	"mvdan.cc/xurls/v2"
)

var linkPattern = mustLinkPattern()

func mustLinkPattern() *regexp.Regexp {
	// Scheme-anchored on purpose: bare domains and t.me mentions are
	// everyday chat, only explicit URLs count as link violations.
	rx, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		panic(err)
	}
	return rx
}

// FindLink returns the first http(s) URL in the text.
func FindLink(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	link := linkPattern.FindString(text)
	return link, link != ""
}
