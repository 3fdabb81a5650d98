package main

import (
	"lyricsync-go/cache"
	"lyricsync-go/store"
)

type contextKey string

const (
	cacheOnlyModeKey contextKey = "cacheOnlyMode"
	rateLimitTypeKey contextKey = "rateLimitType"
)

// CacheDump represents the full lyrics cache contents
type CacheDump map[string]*cache.Entry

// CachePerformance contains cache hit/miss statistics
type CachePerformance struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	StaleHits int64   `json:"stale_hits"`
	HitRate   float64 `json:"hit_rate_percent"`
}

// CacheDumpResponse is the response format for the /cache endpoint
type CacheDumpResponse struct {
	NumberOfKeys int              `json:"number_of_keys"`
	SizeInKB     int              `json:"size_kb"`
	SizeInMB     float64          `json:"size_mb"`
	Performance  CachePerformance `json:"performance"`
	Cache        CacheDump        `json:"cache"`
}

// StateSnapshotResponse carries the full instance map plus the process
// generation, letting collaborators detect a service restart.
type StateSnapshotResponse struct {
	Generation int64                        `json:"generation"`
	Store      map[string]store.PlayerState `json:"store"`
}
