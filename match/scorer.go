// Package match ranks noisy catalog search results against a track query.
package match

import (
	"regexp"
	"strings"

	"lyricsync-go/catalog"
	"lyricsync-go/utils"
)

// Query is the canonical track lookup request fed in by a player adapter.
// Title and artist are free text and must be sanitized before use as
// network parameters; LanguageHint is a BCP 47 tag ("ja", "ja-JP", ...).
type Query struct {
	Title           string
	Artist          string
	Album           string
	LanguageHint    string
	DurationSeconds int
}

// Sanitized returns a copy with whitespace collapsed in the free-text fields.
func (q Query) Sanitized() Query {
	q.Title = utils.CollapseWhitespace(q.Title)
	q.Artist = utils.CollapseWhitespace(q.Artist)
	q.Album = utils.CollapseWhitespace(q.Album)
	return q
}

// Scoring constants. The acceptance threshold and the duration cutoffs are
// fixed tuning values, deliberately not configurable: they trade recall for
// precision against the catalog's noise.
const (
	artistExactScore   = 100
	artistPartialScore = 80
	rejectArtist       = -9999

	durationCloseSecs  = 2
	durationNearSecs   = 5
	durationRejectSecs = 10
	durationCloseBonus = 50
	durationNearBonus  = 20
	durationFarPenalty = -50
	rejectDuration     = -1000

	titleExactBonus   = 40
	titlePartialBonus = 20

	scriptBonus = 100

	instrumentalPenalty = -100

	// AcceptThreshold is the minimum score a candidate must exceed to be
	// considered an acceptable match.
	AcceptThreshold = 70
)

// scriptPatterns maps an ISO 639-1 primary subtag to a pattern detecting
// that language's script in a lyrics sample. Extend as needed.
var scriptPatterns = map[string]*regexp.Regexp{
	"ja": regexp.MustCompile(`[\p{Hiragana}\p{Katakana}]`),
	"ko": regexp.MustCompile(`\p{Hangul}`),
	"zh": regexp.MustCompile(`\p{Han}`),
	"ru": regexp.MustCompile(`\p{Cyrillic}`),
}

// Score ranks a candidate catalog record against the query.
//
// The artist gate runs first: a candidate whose normalized artist shares no
// overlap with the query's is rejected outright and no further criteria can
// rescue it. Duration disagreement above the reject cutoff is likewise
// terminal. Everything else accumulates.
func Score(candidate *catalog.Record, q Query) int {
	score := 0

	candArtist := utils.NormalizeToken(candidate.ArtistName)
	queryArtist := utils.NormalizeToken(q.Artist)

	switch {
	case candArtist != "" && candArtist == queryArtist:
		score += artistExactScore
	case contains(candArtist, queryArtist):
		score += artistPartialScore
	default:
		return rejectArtist
	}

	candDuration := int(candidate.Duration)
	if q.DurationSeconds > 0 && candDuration > 0 {
		diff := candDuration - q.DurationSeconds
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff <= durationCloseSecs:
			score += durationCloseBonus
		case diff <= durationNearSecs:
			score += durationNearBonus
		case diff > durationRejectSecs:
			return rejectDuration
		default:
			score += durationFarPenalty
		}
	}

	candTitle := utils.NormalizeToken(candidate.TrackName)
	queryTitle := utils.NormalizeToken(q.Title)
	switch {
	case candTitle != "" && candTitle == queryTitle:
		score += titleExactBonus
	case contains(candTitle, queryTitle):
		score += titlePartialBonus
	}

	if pattern, ok := scriptPatterns[primarySubtag(q.LanguageHint)]; ok {
		if pattern.MatchString(candidate.SyncedLyrics) {
			score += scriptBonus
		}
	}

	if candidate.Instrumental {
		score += instrumentalPenalty
	}

	return score
}

// Accept reports whether a score clears the acceptance threshold.
func Accept(score int) bool {
	return score > AcceptThreshold
}

// contains reports substring containment in either direction, for non-empty
// inputs only.
func contains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// primarySubtag reduces a BCP 47 tag to its primary subtag: "ja-JP" -> "ja".
func primarySubtag(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	return lang
}
