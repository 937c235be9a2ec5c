// Package sanitize cleans text that originates outside Switchboard before it
// is shown to a user. The Identity Service's error messages are displayed
// verbatim in the login and register forms, so any markup they carry is
// stripped here with bluemonday's strict policy.
package sanitize

import (
	"html"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxMessageLength caps a displayed upstream message, in runes.
const MaxMessageLength = 300

// policy is the singleton bluemonday policy. Initialized once via sync.Once
// for thread-safe lazy initialization.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared strict policy (no elements, no attributes).
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Message reduces an upstream message to plain, single-line text: tags are
// removed, entities are decoded (templates escape on output), whitespace is
// collapsed and the result is truncated to MaxMessageLength runes. Returns ""
// when nothing printable is left so callers can fall back to their own text.
func Message(input string) string {
	if input == "" {
		return ""
	}

	text := html.UnescapeString(getPolicy().Sanitize(input))
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) > MaxMessageLength {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:MaxMessageLength-1])) + "…"
	}
	return text
}
