// Package command decomposes the trigger command that starts a search.
package command

import (
	"strings"

	"imgseekbot/internal/engine"
)

// DefaultKeyword is the trigger that starts a new search dialog.
const DefaultKeyword = "以图搜图"

var imageSuffixes = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}

// IsImageURL reports whether text looks like a directly fetchable image link.
func IsImageURL(text string) bool {
	if !strings.HasPrefix(text, "https://") {
		return false
	}
	lower := strings.ToLower(text)
	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Parsed is the decomposition of the text that followed the trigger keyword.
type Parsed struct {
	// Engine is set when the first token resolved to a known engine.
	Engine engine.ID
	// EngineToken preserves the raw first token when it was neither an
	// image URL nor a valid engine, for diagnostics.
	EngineToken string
	// EngineDisabled marks a token that named a disabled engine.
	EngineDisabled bool
	// EngineUnknown marks a token that named no engine at all.
	EngineUnknown bool
	// InlineImageURL is a bare image link supplied as the first or
	// second token.
	InlineImageURL string
}

// Parse splits the post-keyword text on whitespace and interprets at most
// two tokens: an engine name and/or an inline image URL. Further tokens
// are ignored.
func Parse(rest string, catalog *engine.Catalog) Parsed {
	var p Parsed
	tokens := strings.Fields(rest)
	if len(tokens) == 0 {
		return p
	}

	first := tokens[0]
	if IsImageURL(first) {
		p.InlineImageURL = first
		return p
	}

	id, status := catalog.Resolve(first)
	switch status {
	case engine.StatusOK:
		p.Engine = id
	case engine.StatusDisabled:
		p.EngineToken = strings.ToLower(first)
		p.EngineDisabled = true
	case engine.StatusUnknown:
		p.EngineToken = strings.ToLower(first)
		p.EngineUnknown = true
	}

	if len(tokens) > 1 && IsImageURL(tokens[1]) {
		p.InlineImageURL = tokens[1]
	}
	return p
}

// StripKeyword removes the trigger keyword prefix and returns the rest,
// reporting whether the text was a trigger command at all.
func StripKeyword(text, keyword string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, keyword) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, keyword)), true
}
