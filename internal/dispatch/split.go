// Package dispatch formats and delivers the textual search result.
package dispatch

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxChunkLen is the maximum chunk size in characters.
	MaxChunkLen = 4000
	// separatorRun is the divider the result renderer draws between
	// logical sub-results; chunks prefer to break right after it.
	separatorRun = 50
)

var separator = strings.Repeat("-", separatorRun)

// SplitByLength splits text into chunks of at most maxLength characters.
// When a cut would land inside the tail of a chunk, the split backs up to
// the end of a 50-dash divider run instead, provided that run lies past
// the chunk's midpoint, so a visual divider is never severed.
func SplitByLength(text string, maxLength int) []string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return []string{text}
	}

	var parts []string
	for len(runes) > 0 {
		if len(runes) <= maxLength {
			parts = append(parts, string(runes))
			break
		}
		cut := maxLength
		window := string(runes[:maxLength])
		if byteIdx := strings.LastIndex(window, separator); byteIdx != -1 {
			runeIdx := utf8.RuneCountInString(window[:byteIdx])
			if runeIdx >= maxLength/2 {
				cut = runeIdx + separatorRun
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	return parts
}
