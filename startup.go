package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"lyricsync-go/cache"
	"lyricsync-go/catalog"
	"lyricsync-go/circuitbreaker"
	"lyricsync-go/config"
	"lyricsync-go/events"
	"lyricsync-go/logcolors"
	"lyricsync-go/lyrics"
	"lyricsync-go/middleware"
	"lyricsync-go/resolver"
	"lyricsync-go/stats"
	"lyricsync-go/store"
)

var conf = config.Get()

// generation identifies this process lifetime. Clients compare it across
// snapshots to detect a restart and re-push their state.
var generation = time.Now().Unix()

var (
	persistentCache *cache.PersistentCache
	catalogBreaker  *circuitbreaker.CircuitBreaker
	lyricsService   *lyrics.Service
	sessionRepo     *store.BoltRepository
	playerStore     *store.Store
	eventBus        *events.Bus
	prefetcher      *Prefetcher
)

// setupServices wires the cache, catalog client, resolver, lyrics service,
// session store and event bus. Fatal on storage failures: the process is
// useless without its cache database.
func setupServices() {
	var err error

	persistentCache, err = cache.NewPersistentCache(conf.Configuration.CacheDBPath, conf.FeatureFlags.CacheCompression)
	if err != nil {
		log.Fatalf("%s Failed to open cache database: %v", logcolors.LogCacheInit, err)
	}

	catalogBreaker = circuitbreaker.New(circuitbreaker.Config{
		Name:      "catalog",
		Threshold: conf.Configuration.CircuitBreakerThreshold,
		Cooldown:  time.Duration(conf.Configuration.CircuitBreakerCooldownSecs) * time.Second,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			log.Warnf("%s State changed: %s -> %s", logcolors.CircuitBreakerPrefix(name), from, to)
		},
	})

	catalogClient := catalog.NewClient(catalog.Config{
		BaseURL:      conf.Configuration.CatalogBaseURL,
		ClientHeader: conf.Configuration.CatalogClientHeader,
		Timeout:      time.Duration(conf.Configuration.CatalogTimeoutInSeconds) * time.Second,
		RatePerSec:   conf.Configuration.CatalogRatePerSecond,
		RateBurst:    conf.Configuration.CatalogRateBurst,
		Breaker:      catalogBreaker,
	})

	lyricsService = lyrics.NewService(persistentCache, resolver.New(catalogClient), lyrics.Config{
		RevalidateAfter: time.Duration(conf.Configuration.CacheRevalidateAfterDays) * 24 * time.Hour,
		ExpireAfter:     time.Duration(conf.Configuration.CacheExpireAfterDays) * 24 * time.Hour,
	})

	if removed := lyricsService.SweepExpired(); removed > 0 {
		log.Infof("%s Startup sweep removed %d expired entries", logcolors.LogCacheSweep, removed)
	}

	eventBus = events.NewBus(0)

	sessionRepo, err = store.NewBoltRepository(conf.Configuration.SessionDBPath)
	if err != nil {
		log.Fatalf("%s Failed to open session database: %v", logcolors.LogStore, err)
	}
	playerStore = store.New(sessionRepo, eventBus)

	prefetcher = NewPrefetcher(lyricsService, playerStore)

	log.Infof("%s Services ready, generation %d", logcolors.LogServer, generation)
}

func limitMiddleware(next http.Handler, limiter *middleware.IPRateLimiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiters := limiter.GetLimiter(r.RemoteAddr)

		// Try normal tier first
		if limiters.Normal.Allow() {
			stats.Get().RecordRateLimit("normal")
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.GetNormalLimit()))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiters.GetNormalTokens()))
			w.Header().Set("X-RateLimit-Type", "normal")
			ctx := context.WithValue(r.Context(), rateLimitTypeKey, "normal")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// Normal tier exceeded, the cached tier admits requests that can be
		// answered without touching the catalog.
		if limiters.Cached.Allow() {
			stats.Get().RecordRateLimit("cached")
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.GetCachedLimit()))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiters.GetCachedTokens()))
			w.Header().Set("X-RateLimit-Type", "cached")
			log.Debugf("%s IP %s exceeded normal tier, using cached tier", logcolors.LogRateLimit, r.RemoteAddr)
			ctx := context.WithValue(r.Context(), cacheOnlyModeKey, true)
			ctx = context.WithValue(ctx, rateLimitTypeKey, "cached")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// Both tiers exceeded
		stats.Get().RecordRateLimit("exceeded")
		log.Warnf("%s IP %s exceeded both rate limit tiers", logcolors.LogRateLimit, r.RemoteAddr)
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.GetCachedLimit()))
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Type", "exceeded")
		w.Header().Set("Retry-After", "1")
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
	})
}
