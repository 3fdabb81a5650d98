package resolver

import (
	"regexp"
	"strings"

	"lyricsync-go/utils"
)

var (
	// Bracketed suffixes like "(Official Video)" or "[HQ Audio]"
	bracketRegex = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)

	// Promotional filler that player UIs append to titles and artists
	promoRegex = regexp.MustCompile(`(?i)\b(official|music|lyric)\s+video\b|(?i)\b(official|audio|lyrics?|hq|mv|pv)\b`)
)

// CleanMetadata strips bracketed suffixes and promotional tokens from a
// free-text title or artist. Returns the cleaned text and whether the
// cleanup actually changed anything; the fallback search strategy only
// fires when it did.
func CleanMetadata(s string) (string, bool) {
	cleaned := bracketRegex.ReplaceAllString(s, " ")
	cleaned = promoRegex.ReplaceAllString(cleaned, " ")
	cleaned = utils.CollapseWhitespace(cleaned)

	original := utils.CollapseWhitespace(s)
	if cleaned == "" {
		// Everything was filler; keep the original rather than searching for nothing.
		return original, false
	}
	return cleaned, !strings.EqualFold(cleaned, original)
}
