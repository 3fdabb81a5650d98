package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lyricsync-go/circuitbreaker"
)

func newTestClient(serverURL string, breaker *circuitbreaker.CircuitBreaker) *Client {
	return NewClient(Config{
		BaseURL:      serverURL,
		ClientHeader: "test-client v0.0",
		Timeout:      time.Second,
		RatePerSec:   1000, // tests should never wait on the limiter
		RateBurst:    1000,
		Breaker:      breaker,
	})
}

func TestGet_Found(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/get" {
			t.Errorf("Expected path /api/get, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("track_name"); got != "Song" {
			t.Errorf("Expected track_name=Song, got %q", got)
		}
		if got := r.URL.Query().Get("artist_name"); got != "Artist" {
			t.Errorf("Expected artist_name=Artist, got %q", got)
		}
		if got := r.URL.Query().Get("duration"); got != "180" {
			t.Errorf("Expected duration=180, got %q", got)
		}
		if got := r.Header.Get("Lrclib-Client"); got != "test-client v0.0" {
			t.Errorf("Expected client header, got %q", got)
		}

		json.NewEncoder(w).Encode(Record{
			ID:           1,
			TrackName:    "Song",
			ArtistName:   "Artist",
			Duration:     180,
			SyncedLyrics: "[00:01.00]Hello",
		})
	}))
	defer server.Close()

	record, err := newTestClient(server.URL, nil).Get(context.Background(), "Song", "Artist", "", 180)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record == nil {
		t.Fatal("Expected a record")
	}
	if record.TrackName != "Song" || !record.HasSyncedLyrics() {
		t.Errorf("Unexpected record: %+v", record)
	}
}

func TestGet_NotFoundIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	breaker := circuitbreaker.New(circuitbreaker.Config{Threshold: 1, Cooldown: time.Hour})
	record, err := newTestClient(server.URL, breaker).Get(context.Background(), "Song", "Artist", "", 0)
	if err != nil {
		t.Fatalf("Expected no error for a 404, got %v", err)
	}
	if record != nil {
		t.Errorf("Expected nil record for a 404, got %+v", record)
	}

	// A 404 keeps the circuit closed: the backend answered correctly.
	if breaker.State() != circuitbreaker.StateClosed {
		t.Errorf("Expected breaker CLOSED after a 404, got %s", breaker.State())
	}
}

func TestGet_ServerErrorTripsBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := circuitbreaker.New(circuitbreaker.Config{Threshold: 2, Cooldown: time.Hour})
	client := newTestClient(server.URL, breaker)

	for i := 0; i < 2; i++ {
		if _, err := client.Get(context.Background(), "Song", "Artist", "", 0); err == nil {
			t.Fatal("Expected an error for a 500 response")
		}
	}

	if breaker.State() != circuitbreaker.StateOpen {
		t.Fatalf("Expected breaker OPEN after threshold failures, got %s", breaker.State())
	}

	// With the circuit open, the client fails fast.
	_, err := client.Get(context.Background(), "Song", "Artist", "", 0)
	if err != circuitbreaker.ErrCircuitOpen {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			t.Errorf("Expected path /api/search, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "Song Artist" {
			t.Errorf("Expected q='Song Artist', got %q", got)
		}

		json.NewEncoder(w).Encode([]Record{
			{ID: 1, TrackName: "Song", ArtistName: "Artist"},
			{ID: 2, TrackName: "Song (Live)", ArtistName: "Artist"},
		})
	}))
	defer server.Close()

	records, err := newTestClient(server.URL, nil).Search(context.Background(), "Song Artist")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
}

func TestSearch_EmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	records, err := newTestClient(server.URL, nil).Search(context.Background(), "nothing matches")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

func TestRecord_HasSyncedLyrics(t *testing.T) {
	var nilRecord *Record
	if nilRecord.HasSyncedLyrics() {
		t.Error("Expected false for a nil record")
	}
	if (&Record{}).HasSyncedLyrics() {
		t.Error("Expected false for an empty record")
	}
	if !(&Record{SyncedLyrics: "[00:01.00]x"}).HasSyncedLyrics() {
		t.Error("Expected true when synced lyrics are present")
	}
}
