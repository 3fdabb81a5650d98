// Package lyrics glues the persistent cache and the resolver into the
// fetchLyrics operation with a stale-while-revalidate policy.
package lyrics

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"lyricsync-go/cache"
	"lyricsync-go/logcolors"
	"lyricsync-go/lrc"
	"lyricsync-go/match"
	"lyricsync-go/resolver"
)

// Cache status values reported alongside a result.
const (
	StatusHit   = "HIT"
	StatusMiss  = "MISS"
	StatusStale = "STALE"
)

// Resolver is the lookup side the service delegates misses to.
type Resolver interface {
	Resolve(ctx context.Context, q match.Query) []lrc.Line
}

// Service answers lyric queries from the cache first and the resolver
// second. A hit inside the revalidation window never touches the network;
// a hit past it is served immediately while a refresh runs out of band.
type Service struct {
	cache    *cache.PersistentCache
	resolver Resolver

	revalidateAfter time.Duration
	expireAfter     time.Duration
	refreshTimeout  time.Duration

	inFlight   sync.Map // key -> *inFlightRequest
	refreshing sync.Map // key -> struct{}

	now func() time.Time
}

// inFlightRequest deduplicates concurrent resolutions of the same key.
type inFlightRequest struct {
	wg    sync.WaitGroup
	lines []lrc.Line
}

// Config holds service tuning.
type Config struct {
	RevalidateAfter time.Duration // serve-stale threshold
	ExpireAfter     time.Duration // hard expiry for the startup sweep
	RefreshTimeout  time.Duration // budget for one background refresh
}

// NewService creates the lyrics service.
func NewService(pc *cache.PersistentCache, r Resolver, cfg Config) *Service {
	if cfg.RevalidateAfter <= 0 {
		cfg.RevalidateAfter = 30 * 24 * time.Hour
	}
	if cfg.ExpireAfter <= 0 {
		cfg.ExpireAfter = 365 * 24 * time.Hour
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}

	return &Service{
		cache:           pc,
		resolver:        r,
		revalidateAfter: cfg.RevalidateAfter,
		expireAfter:     cfg.ExpireAfter,
		refreshTimeout:  cfg.RefreshTimeout,
		now:             time.Now,
	}
}

// SweepExpired garbage-collects entries past the hard expiry. Run at
// process startup.
func (s *Service) SweepExpired() int {
	return s.cache.Sweep(s.expireAfter)
}

// Cached reports whether the query can be answered without a resolution.
func (s *Service) Cached(q match.Query) bool {
	q = q.Sanitized()
	_, ok := s.cache.GetByKey(cache.Key(q.Title, q.Artist))
	return ok
}

// Get returns the lyric lines for a query, never nil: when nothing can be
// resolved the result is the single not-found sentinel line. The second
// return value is the cache status (HIT, STALE or MISS).
func (s *Service) Get(ctx context.Context, q match.Query) ([]lrc.Line, string) {
	q = q.Sanitized()
	key := cache.Key(q.Title, q.Artist)

	if entry, ok := s.cache.GetByKey(key); ok {
		s.cache.Touch(key)

		age := s.now().Unix() - entry.UpdatedAt
		if age > int64(s.revalidateAfter.Seconds()) {
			log.Infof("%s Entry for %s is %dd old, refreshing in background",
				logcolors.LogRevalidate, key, age/86400)
			s.refreshAsync(q, key)
			return entry.Lines, StatusStale
		}
		return entry.Lines, StatusHit
	}

	return s.resolveAndStore(ctx, q, key), StatusMiss
}

// resolveAndStore resolves a miss synchronously, deduplicating concurrent
// requests for the same key.
func (s *Service) resolveAndStore(ctx context.Context, q match.Query, key string) []lrc.Line {
	holder, loaded := s.inFlight.LoadOrStore(key, &inFlightRequest{})
	req := holder.(*inFlightRequest)

	if loaded {
		log.Debugf("%s Waiting for in-flight resolution of %s", logcolors.LogLyrics, key)
		req.wg.Wait()
		return req.lines
	}

	req.wg.Add(1)
	defer func() {
		req.wg.Done()
		s.inFlight.Delete(key)
	}()

	lines := s.resolver.Resolve(ctx, q)
	req.lines = lines

	// The sentinel is not worth persisting: the next request should retry.
	if !resolver.IsNotFound(lines) {
		s.store(q, lines)
	}
	return lines
}

// refreshAsync revalidates a stale entry without blocking the caller. At
// most one refresh per key runs at a time.
func (s *Service) refreshAsync(q match.Query, key string) {
	if _, loaded := s.refreshing.LoadOrStore(key, struct{}{}); loaded {
		return
	}

	go func() {
		defer s.refreshing.Delete(key)

		ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
		defer cancel()

		lines := s.resolver.Resolve(ctx, q)
		if resolver.IsNotFound(lines) {
			log.Debugf("%s Refresh found nothing for %s, keeping stale entry", logcolors.LogRevalidate, key)
			return
		}
		s.store(q, lines)
		log.Infof("%s Refreshed %s (%d lines)", logcolors.LogRevalidate, key, len(lines))
	}()
}

func (s *Service) store(q match.Query, lines []lrc.Line) {
	meta := cache.Meta{
		Title:           q.Title,
		Artist:          q.Artist,
		Album:           q.Album,
		DurationSeconds: q.DurationSeconds,
	}
	if err := s.cache.Set(meta, lines); err != nil {
		// A write failure only costs us a future cache hit.
		log.Errorf("%s Failed to cache lyrics for %s - %s: %v", logcolors.LogCacheLyrics, q.Artist, q.Title, err)
	}
}
