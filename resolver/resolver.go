// Package resolver races several catalog lookup strategies and picks the
// winner by fixed priority, not by completion order.
package resolver

import (
	"context"
	"strconv"
	"sync"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	log "github.com/sirupsen/logrus"

	"lyricsync-go/catalog"
	"lyricsync-go/logcolors"
	"lyricsync-go/lrc"
	"lyricsync-go/match"
)

// NotFoundText is the sentinel lyric text returned when every strategy
// comes up empty. Callers can always render the result unconditionally.
const NotFoundText = "Lyrics not found"

// NotFoundLines returns the single-line sentinel sequence.
func NotFoundLines() []lrc.Line {
	return []lrc.Line{{TimeSeconds: 0, Text: NotFoundText}}
}

// IsNotFound reports whether lines is exactly the sentinel sequence.
func IsNotFound(lines []lrc.Line) bool {
	return len(lines) == 1 && lines[0].TimeSeconds == 0 && lines[0].Text == NotFoundText
}

// Catalog is the read surface of the external catalog the resolver needs.
type Catalog interface {
	Get(ctx context.Context, title, artist, album string, durationSecs int) (*catalog.Record, error)
	Search(ctx context.Context, query string) ([]catalog.Record, error)
}

// Resolver runs the four lookup strategies.
type Resolver struct {
	catalog Catalog
}

// New creates a resolver over the given catalog.
func New(c Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// strategy identifiers, which double as the fixed priority order.
const (
	strategyExact = iota // A: exact lookup with album
	strategyNoAlbum      // B: exact lookup without album
	strategySearch       // C: free-text search, scored
	strategyCleaned      // D: search again with promo filler stripped
	strategyCount
)

var strategyNames = [strategyCount]string{"exact", "exact-no-album", "search", "search-cleaned"}

// Resolve runs all applicable strategies concurrently and returns the
// highest-priority non-nil result once every strategy has settled. Any
// network or parse error inside a strategy demotes it to a nil result;
// Resolve itself never fails and never returns nil — when nothing matched
// it returns the not-found sentinel.
func (r *Resolver) Resolve(ctx context.Context, q match.Query) []lrc.Line {
	q = q.Sanitized()

	results := make([][]lrc.Line, strategyCount)
	var wg sync.WaitGroup

	run := func(id int, fn func(context.Context) []lrc.Line) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[id] = fn(ctx)
		}()
	}

	run(strategyExact, func(ctx context.Context) []lrc.Line {
		return r.exact(ctx, q, q.Album)
	})
	run(strategyNoAlbum, func(ctx context.Context) []lrc.Line {
		return r.exact(ctx, q, "")
	})
	run(strategySearch, func(ctx context.Context) []lrc.Line {
		return r.search(ctx, q)
	})

	cleanedTitle, titleChanged := CleanMetadata(q.Title)
	cleanedArtist, artistChanged := CleanMetadata(q.Artist)
	if titleChanged || artistChanged {
		cleaned := q
		cleaned.Title = cleanedTitle
		cleaned.Artist = cleanedArtist
		run(strategyCleaned, func(ctx context.Context) []lrc.Line {
			return r.search(ctx, cleaned)
		})
	}

	wg.Wait()

	for id, lines := range results {
		if lines != nil {
			log.Infof("%s Strategy %q won for: %s - %s (%d lines)",
				logcolors.LogResolver, strategyNames[id], q.Artist, q.Title, len(lines))
			return lines
		}
	}

	log.Infof("%s No strategy matched: %s - %s", logcolors.LogResolver, q.Artist, q.Title)
	return NotFoundLines()
}

// exact is strategies A and B: a single /api/get lookup, with or without
// the album field.
func (r *Resolver) exact(ctx context.Context, q match.Query, album string) []lrc.Line {
	record, err := r.catalog.Get(ctx, q.Title, q.Artist, album, q.DurationSeconds)
	if err != nil {
		log.Debugf("%s exact lookup failed: %v", logcolors.LogStrategy, err)
		return nil
	}
	if !record.HasSyncedLyrics() {
		return nil
	}
	return lrc.Parse(record.SyncedLyrics)
}

// search is strategies C and D: a free-text search ranked by the match
// scorer, best candidate over the threshold wins. Among equal scores the
// textually closer candidate (Jaro-Winkler over "title artist") is kept,
// since catalog search results interleave covers and remasters with
// identical scorer features.
func (r *Resolver) search(ctx context.Context, q match.Query) []lrc.Line {
	records, err := r.catalog.Search(ctx, q.Title+" "+q.Artist)
	if err != nil {
		log.Debugf("%s search failed: %v", logcolors.LogStrategy, err)
		return nil
	}

	jw := metrics.NewJaroWinkler()
	queryText := q.Title + " " + q.Artist

	var best *catalog.Record
	bestScore := 0
	bestSimilarity := 0.0

	for i := range records {
		record := &records[i]
		if !record.HasSyncedLyrics() {
			continue
		}

		score := match.Score(record, q)
		if !match.Accept(score) {
			continue
		}

		similarity := strutil.Similarity(queryText, record.TrackName+" "+record.ArtistName, jw)
		if best == nil || score > bestScore || (score == bestScore && similarity > bestSimilarity) {
			best = record
			bestScore = score
			bestSimilarity = similarity
		}
	}

	if best == nil {
		return nil
	}

	log.Debugf("%s %s - %s scored %s", logcolors.LogBestMatch,
		best.ArtistName, best.TrackName, strconv.Itoa(bestScore))
	return lrc.Parse(best.SyncedLyrics)
}
