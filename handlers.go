package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"lyricsync-go/cache"
	"lyricsync-go/events"
	"lyricsync-go/logcolors"
	"lyricsync-go/lyrics"
	"lyricsync-go/match"
	"lyricsync-go/resolver"
	"lyricsync-go/stats"
	"lyricsync-go/store"
)

func getLyrics(w http.ResponseWriter, r *http.Request) {
	songName := r.URL.Query().Get("s") + r.URL.Query().Get("song") + r.URL.Query().Get("songName")
	artistName := r.URL.Query().Get("a") + r.URL.Query().Get("artist") + r.URL.Query().Get("artistName")
	albumName := r.URL.Query().Get("al") + r.URL.Query().Get("album") + r.URL.Query().Get("albumName")
	langHint := r.URL.Query().Get("lang")
	durationStr := r.URL.Query().Get("d") + r.URL.Query().Get("duration")

	if songName == "" && artistName == "" {
		http.Error(w, "Song name or artist name not provided", http.StatusUnprocessableEntity)
		return
	}

	duration := 0
	if durationStr != "" {
		duration, _ = strconv.Atoi(durationStr)
	}

	q := match.Query{
		Title:           songName,
		Artist:          artistName,
		Album:           albumName,
		LanguageHint:    langHint,
		DurationSeconds: duration,
	}

	// Cache-only mode (rate limit tier 2) may not trigger a resolution.
	cacheOnlyMode, _ := r.Context().Value(cacheOnlyModeKey).(bool)
	if cacheOnlyMode && !lyricsService.Cached(q) {
		stats.Get().RecordRateLimit("exceeded")
		log.Warnf("%s Cache-only mode but no cache for: %s - %s", logcolors.LogCacheLyrics, artistName, songName)
		w.Header().Set("Retry-After", "60")
		Respond(w, r).SetCacheStatus(lyrics.StatusMiss).Status(http.StatusTooManyRequests, map[string]interface{}{
			"error":   "Rate limit exceeded. This request requires cached data, but no cache is available for this query.",
			"message": "Please try again later or reduce your request rate.",
		})
		return
	}

	lines, status := lyricsService.Get(r.Context(), q)
	stats.Get().RecordCacheStatus(status)
	stats.Get().RecordResolved(!resolver.IsNotFound(lines))

	Respond(w, r).SetCacheStatus(status).JSON(map[string]interface{}{
		"lines":  lines,
		"source": "catalog",
		"cache":  status,
	})
}

func updateState(w http.ResponseWriter, r *http.Request) {
	var snapshot store.PlayerState
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		Respond(w, r).Status(http.StatusBadRequest, map[string]interface{}{
			"error": fmt.Sprintf("invalid state snapshot: %v", err),
		})
		return
	}

	if snapshot.InstanceID == "" {
		Respond(w, r).Status(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": "instanceId is required",
		})
		return
	}

	playerStore.Upsert(snapshot.InstanceID, snapshot)
	stats.Get().StateUpserts.Add(1)
	stats.Get().EventsPublished.Add(1)
	prefetcher.OnStateUpdate(snapshot.InstanceID, snapshot)

	// Fire-and-forget ingestion: acknowledge, no body required.
	w.WriteHeader(http.StatusAccepted)
}

func getStateSnapshot(w http.ResponseWriter, r *http.Request) {
	// The live set, when provided, is authoritative: reconcile first so the
	// snapshot carries no zombies.
	if liveParam, ok := r.URL.Query()["live"]; ok {
		var live []string
		for _, raw := range liveParam {
			for _, id := range strings.Split(raw, ",") {
				if id = strings.TrimSpace(id); id != "" {
					live = append(live, id)
				}
			}
		}
		removed := playerStore.Reconcile(live)
		if removed > 0 {
			stats.Get().ZombiesRemoved.Add(int64(removed))
			stats.Get().EventsPublished.Add(1)
		}
	}

	Respond(w, r).JSON(StateSnapshotResponse{
		Generation: generation,
		Store:      playerStore.Snapshot(),
	})
}

func removeState(w http.ResponseWriter, r *http.Request) {
	instanceID := r.URL.Query().Get("instance")
	if instanceID == "" {
		Respond(w, r).Status(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": "instance query parameter is required",
		})
		return
	}

	playerStore.Remove(instanceID)
	prefetcher.Forget(instanceID)
	stats.Get().StateRemovals.Add(1)

	Respond(w, r).JSON(map[string]interface{}{
		"message": "instance removed",
	})
}

func forceSync(w http.ResponseWriter, r *http.Request) {
	eventBus.Publish(events.Event{Type: events.TypeForceSync})
	stats.Get().EventsPublished.Add(1)

	Respond(w, r).JSON(map[string]interface{}{
		"message": "force sync requested",
	})
}

// eventsHandler streams store change notifications to an observer over
// Server-Sent Events until the client goes away.
func eventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := eventBus.Subscribe()
	defer eventBus.Unsubscribe(sub.ID)

	log.Infof("%s Observer %s connected", logcolors.LogEvents, sub.ID)

	for {
		select {
		case <-r.Context().Done():
			log.Infof("%s Observer %s disconnected", logcolors.LogEvents, sub.ID)
			return
		case event, open := <-sub.C:
			if !open {
				return
			}
			data, err := json.Marshal(event.Payload)
			if err != nil {
				log.Errorf("%s Failed to marshal %s event: %v", logcolors.LogEvents, event.Type, err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

func getHealthStatus(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":          "ok",
		"circuit_breaker": catalogBreaker.State().String(),
		"instances":       playerStore.Len(),
		"observers":       eventBus.SubscriberCount(),
	}

	if catalogBreaker.IsOpen() {
		health["status"] = "degraded"
		health["circuit_breaker_retry_in"] = catalogBreaker.TimeUntilRetry().String()
	}

	Respond(w, r).JSON(health)
}

func getStats(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != conf.Configuration.AdminAccessToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	snapshot := stats.Get().Snapshot()

	numKeys, sizeInKB := persistentCache.Stats()
	snapshot["cache_storage"] = map[string]interface{}{
		"keys":    numKeys,
		"size_kb": sizeInKB,
		"size_mb": float64(sizeInKB) / 1024,
	}

	snapshot["circuit_breaker"] = map[string]interface{}{
		"state":              catalogBreaker.State().String(),
		"failures":           catalogBreaker.Failures(),
		"cooldown_remaining": catalogBreaker.TimeUntilRetry().String(),
	}

	Respond(w, r).JSON(snapshot)
}

func getCacheDump(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != conf.Configuration.AdminAccessToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	cacheDump := CacheDump{}
	persistentCache.Range(func(key string, entry *cache.Entry) bool {
		cacheDump[key] = entry
		return true
	})

	numKeys, sizeInKB := persistentCache.Stats()
	s := stats.Get()

	Respond(w, r).JSON(CacheDumpResponse{
		NumberOfKeys: numKeys,
		SizeInKB:     sizeInKB,
		SizeInMB:     float64(sizeInKB) / 1024,
		Performance: CachePerformance{
			Hits:      s.CacheHits.Load(),
			Misses:    s.CacheMisses.Load(),
			StaleHits: s.StaleHits.Load(),
			HitRate:   s.CacheHitRate(),
		},
		Cache: cacheDump,
	})
}

func sweepCache(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != conf.Configuration.AdminAccessToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	removed := lyricsService.SweepExpired()
	log.Infof("%s Manual sweep removed %d entries", logcolors.LogCacheSweep, removed)

	Respond(w, r).JSON(map[string]interface{}{
		"message": "sweep complete",
		"removed": removed,
	})
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"help": "Use /getLyrics to fetch synced lyrics for a track. Provide the song and artist as query parameters. Example: /getLyrics?s=Shape%20of%20You&a=Ed%20Sheeran",
	})
}
