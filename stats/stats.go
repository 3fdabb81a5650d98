// Package stats keeps process-wide counters behind atomics, exposed as a
// snapshot at /stats.
package stats

import (
	"sync/atomic"
	"time"
)

// Stats holds all server statistics with atomic counters.
type Stats struct {
	StartTime time.Time

	// Request counters
	TotalRequests  atomic.Int64
	LyricsRequests atomic.Int64
	StateRequests  atomic.Int64
	EventRequests  atomic.Int64
	OtherRequests  atomic.Int64

	// Cache performance
	CacheHits   atomic.Int64
	CacheMisses atomic.Int64
	StaleHits   atomic.Int64

	// Resolver outcomes
	ResolvedQueries atomic.Int64
	NotFoundQueries atomic.Int64

	// Player state store
	StateUpserts    atomic.Int64
	StateRemovals   atomic.Int64
	ZombiesRemoved  atomic.Int64
	EventsPublished atomic.Int64

	// Rate limiting
	RateLimitNormal   atomic.Int64
	RateLimitCached   atomic.Int64
	RateLimitExceeded atomic.Int64

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (microseconds)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	maxResponseTime   atomic.Int64
}

var global = &Stats{StartTime: time.Now()}

// Get returns the global stats instance.
func Get() *Stats {
	return global
}

// RecordRequest records a request to a specific endpoint.
func (s *Stats) RecordRequest(endpoint string) {
	s.TotalRequests.Add(1)
	switch endpoint {
	case "/getLyrics":
		s.LyricsRequests.Add(1)
	case "/state/update", "/state/snapshot", "/state/remove", "/state/forceSync":
		s.StateRequests.Add(1)
	case "/events":
		s.EventRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordCacheStatus records a lyrics cache outcome (HIT, MISS or STALE).
func (s *Stats) RecordCacheStatus(status string) {
	switch status {
	case "HIT":
		s.CacheHits.Add(1)
	case "MISS":
		s.CacheMisses.Add(1)
	case "STALE":
		s.StaleHits.Add(1)
	}
}

// RecordResolved records whether a resolution produced real lyrics or the
// not-found sentinel.
func (s *Stats) RecordResolved(found bool) {
	if found {
		s.ResolvedQueries.Add(1)
	} else {
		s.NotFoundQueries.Add(1)
	}
}

// RecordRateLimit records rate limit tier usage.
func (s *Stats) RecordRateLimit(tier string) {
	switch tier {
	case "normal":
		s.RateLimitNormal.Add(1)
	case "cached":
		s.RateLimitCached.Add(1)
	case "exceeded":
		s.RateLimitExceeded.Add(1)
	}
}

// RecordStatusCode records a response status code.
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time.
func (s *Stats) RecordResponseTime(duration time.Duration, endpoint string) {
	// The event stream stays open for the life of a subscriber; its
	// "response time" would drown the real numbers.
	if endpoint == "/events" {
		return
	}

	us := duration.Microseconds()
	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
}

// Uptime returns the server uptime.
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// CacheHitRate returns the cache hit rate as a percentage. Stale hits
// count as hits: the caller got a usable value without waiting.
func (s *Stats) CacheHitRate() float64 {
	hits := s.CacheHits.Load() + s.StaleHits.Load()
	total := hits + s.CacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// AvgResponseTime returns the average response time.
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MaxResponseTime returns the maximum response time.
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// Snapshot returns a point-in-time snapshot of all stats.
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":  s.TotalRequests.Load(),
			"lyrics": s.LyricsRequests.Load(),
			"state":  s.StateRequests.Load(),
			"events": s.EventRequests.Load(),
			"other":  s.OtherRequests.Load(),
		},
		"cache": map[string]interface{}{
			"hits":       s.CacheHits.Load(),
			"misses":     s.CacheMisses.Load(),
			"stale_hits": s.StaleHits.Load(),
			"hit_rate":   s.CacheHitRate(),
		},
		"resolver": map[string]interface{}{
			"resolved":  s.ResolvedQueries.Load(),
			"not_found": s.NotFoundQueries.Load(),
		},
		"store": map[string]interface{}{
			"upserts":          s.StateUpserts.Load(),
			"removals":         s.StateRemovals.Load(),
			"zombies_removed":  s.ZombiesRemoved.Load(),
			"events_published": s.EventsPublished.Load(),
		},
		"rate_limiting": map[string]interface{}{
			"normal_tier": s.RateLimitNormal.Load(),
			"cached_tier": s.RateLimitCached.Load(),
			"exceeded":    s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg": s.AvgResponseTime().String(),
			"max": s.MaxResponseTime().String(),
		},
	}
}
