package strings

import (
	"strings"
)

// DefaultMessageMaxLen is the width limit for error and message columns
// in table output. Callers rendering tables share this constant so the
// same message truncates identically everywhere.
const DefaultMessageMaxLen = 60

// EventMessageMaxLen caps rendered event messages. The Events API limits
// message size to roughly 1 KiB; longer messages are rejected.
const EventMessageMaxLen = 1024

// minTruncateLen keeps room for at least one character plus "...".
const minTruncateLen = 4

// TruncateMessage collapses s onto a single line and truncates it to at
// most maxLen runes, appending "..." when text was cut. Newlines and runs
// of whitespace become single spaces, so multi-line apply errors stay
// safe inside table cells and Event messages.
//
// Truncation operates on runes, never splitting a multi-byte character.
// A maxLen below 4 is clamped to 4.
func TruncateMessage(s string, maxLen int) string {
	if maxLen < minTruncateLen {
		maxLen = minTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
