package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lyricsync-go/cache"
	"lyricsync-go/circuitbreaker"
	"lyricsync-go/events"
	"lyricsync-go/lrc"
	"lyricsync-go/lyrics"
	"lyricsync-go/match"
	"lyricsync-go/resolver"
	"lyricsync-go/store"
)

// stubResolver returns canned lines, or the sentinel when empty.
type stubResolver struct {
	lines []lrc.Line
}

func (s *stubResolver) Resolve(_ context.Context, _ match.Query) []lrc.Line {
	if s.lines == nil {
		return resolver.NotFoundLines()
	}
	return s.lines
}

// setupTestEnv wires the package globals to in-memory fakes.
func setupTestEnv(t *testing.T, r lyrics.Resolver) {
	t.Helper()

	pc, err := cache.NewPersistentCache(filepath.Join(t.TempDir(), "cache.db"), false)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	t.Cleanup(func() { pc.Close() })

	persistentCache = pc
	catalogBreaker = circuitbreaker.New(circuitbreaker.Config{Threshold: 5, Cooldown: time.Minute})
	lyricsService = lyrics.NewService(pc, r, lyrics.Config{})
	eventBus = events.NewBus(64)
	playerStore = store.New(store.NewMemoryRepository(), eventBus)
	prefetcher = NewPrefetcher(lyricsService, playerStore)
}

func TestGetLyrics_MissingParams(t *testing.T) {
	setupTestEnv(t, &stubResolver{})

	rec := httptest.NewRecorder()
	getLyrics(rec, httptest.NewRequest(http.MethodGet, "/getLyrics", nil))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", rec.Code)
	}
}

func TestGetLyrics_Resolved(t *testing.T) {
	setupTestEnv(t, &stubResolver{lines: []lrc.Line{{TimeSeconds: 1, Text: "Hello"}}})

	rec := httptest.NewRecorder()
	getLyrics(rec, httptest.NewRequest(http.MethodGet, "/getLyrics?s=Song&a=Artist&d=180", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Cache-Status"); got != lyrics.StatusMiss {
		t.Errorf("Expected X-Cache-Status MISS, got %q", got)
	}

	var body struct {
		Lines []lrc.Line `json:"lines"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if len(body.Lines) != 1 || body.Lines[0].Text != "Hello" {
		t.Errorf("Unexpected lines: %v", body.Lines)
	}

	// Second request is a hit.
	rec = httptest.NewRecorder()
	getLyrics(rec, httptest.NewRequest(http.MethodGet, "/getLyrics?s=Song&a=Artist", nil))
	if got := rec.Header().Get("X-Cache-Status"); got != lyrics.StatusHit {
		t.Errorf("Expected X-Cache-Status HIT, got %q", got)
	}
}

func TestGetLyrics_CacheOnlyModeWithoutCache(t *testing.T) {
	setupTestEnv(t, &stubResolver{lines: []lrc.Line{{TimeSeconds: 1, Text: "Hello"}}})

	req := httptest.NewRequest(http.MethodGet, "/getLyrics?s=Song&a=Artist", nil)
	req = req.WithContext(context.WithValue(req.Context(), cacheOnlyModeKey, true))

	rec := httptest.NewRecorder()
	getLyrics(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 in cache-only mode without cache, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected a Retry-After header")
	}
}

func TestGetLyrics_CacheOnlyModeWithCache(t *testing.T) {
	setupTestEnv(t, &stubResolver{lines: []lrc.Line{{TimeSeconds: 1, Text: "Hello"}}})

	// Warm the cache with a normal request.
	rec := httptest.NewRecorder()
	getLyrics(rec, httptest.NewRequest(http.MethodGet, "/getLyrics?s=Song&a=Artist", nil))

	req := httptest.NewRequest(http.MethodGet, "/getLyrics?s=Song&a=Artist", nil)
	req = req.WithContext(context.WithValue(req.Context(), cacheOnlyModeKey, true))

	rec = httptest.NewRecorder()
	getLyrics(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for a cached query in cache-only mode, got %d", rec.Code)
	}
}

func TestUpdateState(t *testing.T) {
	setupTestEnv(t, &stubResolver{})

	body := `{"instanceId":"tab-1","title":"Song","artist":"Artist","status":"playing","currentTimeSeconds":10}`
	rec := httptest.NewRecorder()
	updateState(rec, httptest.NewRequest(http.MethodPost, "/state/update", strings.NewReader(body)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}

	state, ok := playerStore.Get("tab-1")
	if !ok {
		t.Fatal("Expected the instance stored")
	}
	if state.Title != "Song" || state.Status != store.StatusPlaying {
		t.Errorf("Unexpected state: %+v", state)
	}
}

func TestUpdateState_BadInput(t *testing.T) {
	setupTestEnv(t, &stubResolver{})

	rec := httptest.NewRecorder()
	updateState(rec, httptest.NewRequest(http.MethodPost, "/state/update", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed JSON, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	updateState(rec, httptest.NewRequest(http.MethodPost, "/state/update", strings.NewReader(`{"title":"Song"}`)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for missing instanceId, got %d", rec.Code)
	}
}

func TestGetStateSnapshot(t *testing.T) {
	setupTestEnv(t, &stubResolver{})

	playerStore.Upsert("tab-1", store.PlayerState{Title: "A"})
	playerStore.Upsert("tab-2", store.PlayerState{Title: "B"})

	rec := httptest.NewRecorder()
	getStateSnapshot(rec, httptest.NewRequest(http.MethodGet, "/state/snapshot", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var snap StateSnapshotResponse
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snap.Generation != generation {
		t.Errorf("Expected generation %d, got %d", generation, snap.Generation)
	}
	if len(snap.Store) != 2 {
		t.Errorf("Expected 2 instances, got %d", len(snap.Store))
	}
}

func TestGetStateSnapshot_LiveReconciles(t *testing.T) {
	setupTestEnv(t, &stubResolver{})

	playerStore.Upsert("tab-1", store.PlayerState{Title: "A"})
	playerStore.Upsert("tab-2", store.PlayerState{Title: "B"})
	playerStore.Upsert("tab-3", store.PlayerState{Title: "C"})

	rec := httptest.NewRecorder()
	getStateSnapshot(rec, httptest.NewRequest(http.MethodGet, "/state/snapshot?live=tab-1,tab-3", nil))

	var snap StateSnapshotResponse
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if len(snap.Store) != 2 {
		t.Fatalf("Expected 2 surviving instances, got %d", len(snap.Store))
	}
	if _, ok := snap.Store["tab-2"]; ok {
		t.Error("Expected tab-2 reconciled away")
	}
}

func TestRemoveState(t *testing.T) {
	setupTestEnv(t, &stubResolver{})

	playerStore.Upsert("tab-1", store.PlayerState{Title: "A"})

	rec := httptest.NewRecorder()
	removeState(rec, httptest.NewRequest(http.MethodPost, "/state/remove?instance=tab-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if _, ok := playerStore.Get("tab-1"); ok {
		t.Error("Expected the instance removed")
	}

	rec = httptest.NewRecorder()
	removeState(rec, httptest.NewRequest(http.MethodPost, "/state/remove", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 without an instance parameter, got %d", rec.Code)
	}
}

func TestForceSync(t *testing.T) {
	setupTestEnv(t, &stubResolver{})

	sub := eventBus.Subscribe()
	defer eventBus.Unsubscribe(sub.ID)

	rec := httptest.NewRecorder()
	forceSync(rec, httptest.NewRequest(http.MethodPost, "/state/forceSync", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	select {
	case e := <-sub.C:
		if e.Type != events.TypeForceSync {
			t.Errorf("Expected a forceSync event, got %s", e.Type)
		}
	default:
		t.Error("Expected a forceSync event on the bus")
	}
}

func TestEventsHandler_StreamsEvents(t *testing.T) {
	setupTestEnv(t, &stubResolver{})

	server := httptest.NewServer(http.HandlerFunc(eventsHandler))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/events", nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("Expected text/event-stream, got %q", got)
	}

	// Wait for the handler to attach, then publish through the store.
	deadline := time.Now().Add(2 * time.Second)
	for eventBus.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	playerStore.Upsert("tab-1", store.PlayerState{Title: "Song"})

	buf := make([]byte, 4096)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("Failed to read stream: %v", err)
	}
	frame := string(buf[:n])
	if !strings.Contains(frame, "event: "+events.TypeStoreUpdated) {
		t.Errorf("Expected a storeUpdated frame, got %q", frame)
	}
	if !strings.Contains(frame, "tab-1") {
		t.Errorf("Expected the payload to carry the instance, got %q", frame)
	}
}

func TestGetStats_RequiresToken(t *testing.T) {
	setupTestEnv(t, &stubResolver{})

	conf.Configuration.AdminAccessToken = "secret"
	t.Cleanup(func() { conf.Configuration.AdminAccessToken = "" })

	rec := httptest.NewRecorder()
	getStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "secret")
	rec = httptest.NewRecorder()
	getStats(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with the token, got %d", rec.Code)
	}
}

func TestGetHealthStatus(t *testing.T) {
	setupTestEnv(t, &stubResolver{})

	rec := httptest.NewRecorder()
	getHealthStatus(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var health map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if health["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", health["status"])
	}
	if health["circuit_breaker"] != "CLOSED" {
		t.Errorf("Expected CLOSED breaker, got %v", health["circuit_breaker"])
	}
}
