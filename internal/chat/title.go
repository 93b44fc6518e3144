// Package chat implements the conversation domain: thread lifecycle, title
// synthesis, daily quota enforcement, and the send pipeline that turns a user
// message into a persisted assistant reply.
package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultTitle is the placeholder for a chat with no usable title words.
const DefaultTitle = "New Chat"

const maxTitleLen = 30

// titleStopWords are short filler words excluded from synthesized titles.
// Words of one or two characters are dropped before this list applies.
var titleStopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "day": {}, "get": {}, "has": {},
	"him": {}, "his": {}, "how": {}, "its": {}, "may": {}, "new": {},
	"now": {}, "old": {}, "see": {}, "two": {}, "way": {}, "who": {},
	"boy": {}, "did": {}, "man": {}, "why": {},
}

// SynthesizeTitle derives a chat title from the first user message: the first
// three significant words, capitalized, truncated with an ellipsis when the
// result runs long. Messages with no significant words get DefaultTitle.
func SynthesizeTitle(message string) string {
	words := strings.Fields(strings.ToLower(message))

	significant := make([]string, 0, 3)
	for _, word := range words {
		if utf8.RuneCountInString(word) <= 2 {
			continue
		}
		if _, stop := titleStopWords[word]; stop {
			continue
		}
		significant = append(significant, capitalize(word))
		if len(significant) == 3 {
			break
		}
	}

	if len(significant) == 0 {
		return DefaultTitle
	}

	title := strings.Join(significant, " ")
	if utf8.RuneCountInString(title) > maxTitleLen {
		title = string([]rune(title)[:maxTitleLen]) + "..."
	}
	return title
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}
