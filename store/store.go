// Package store is the server-side map of live player instances to their
// last-known playback state, with reconciliation against the authoritative
// live set and change notification to observers.
package store

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"lyricsync-go/events"
	"lyricsync-go/logcolors"
)

// Playback status values.
const (
	StatusPlaying = "playing"
	StatusPaused  = "paused"
)

// PlayerState is the last-known playback snapshot of one player instance.
type PlayerState struct {
	InstanceID         string  `json:"instanceId"`
	Title              string  `json:"title"`
	Artist             string  `json:"artist"`
	Album              string  `json:"album,omitempty"`
	ArtworkURL         string  `json:"artworkUrl,omitempty"`
	Status             string  `json:"status"`
	CurrentTimeSeconds float64 `json:"currentTimeSeconds"`
	DurationSeconds    float64 `json:"durationSeconds"`
	LastUpdated        int64   `json:"lastUpdated"`
}

// Store holds the instance map behind a mutex. All mutations persist
// through the injected repository and publish a storeUpdated event; event
// delivery is best-effort and a missing observer is never an error.
type Store struct {
	mu     sync.RWMutex
	states map[string]*PlayerState
	repo   Repository
	bus    *events.Bus
	now    func() time.Time
}

// New creates a store over the given persistence port and event bus. The
// repository is cleared immediately: state never survives a full restart.
func New(repo Repository, bus *events.Bus) *Store {
	if err := repo.Clear(); err != nil {
		log.Warnf("%s Failed to clear persisted session: %v", logcolors.LogSession, err)
	}

	return &Store{
		states: make(map[string]*PlayerState),
		repo:   repo,
		bus:    bus,
		now:    time.Now,
	}
}

// Upsert merges a snapshot into the stored state for an instance and
// notifies observers with the full updated map.
func (s *Store) Upsert(instanceID string, snapshot PlayerState) {
	s.mu.Lock()

	state, ok := s.states[instanceID]
	if !ok {
		state = &PlayerState{InstanceID: instanceID}
		s.states[instanceID] = state
	}
	state.merge(snapshot)
	state.LastUpdated = s.now().Unix()

	s.persistLocked()
	s.mu.Unlock()

	s.publish()
}

// merge overwrites the stored fields a snapshot actually carries. The
// playback position is always taken: zero is a legitimate position right
// after a track change.
func (p *PlayerState) merge(snap PlayerState) {
	if snap.Title != "" {
		p.Title = snap.Title
	}
	if snap.Artist != "" {
		p.Artist = snap.Artist
	}
	if snap.Album != "" {
		p.Album = snap.Album
	}
	if snap.ArtworkURL != "" {
		p.ArtworkURL = snap.ArtworkURL
	}
	if snap.Status != "" {
		p.Status = snap.Status
	}
	if snap.DurationSeconds > 0 {
		p.DurationSeconds = snap.DurationSeconds
	}
	p.CurrentTimeSeconds = snap.CurrentTimeSeconds
}

// Remove deletes an instance (reported closed or navigated away) and
// notifies observers. A no-op when the instance is unknown.
func (s *Store) Remove(instanceID string) {
	s.mu.Lock()
	_, ok := s.states[instanceID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.states, instanceID)
	s.persistLocked()
	s.mu.Unlock()

	log.Infof("%s Removed instance %s", logcolors.LogStore, instanceID)
	s.publish()
}

// Snapshot returns a copy of the current instance map.
func (s *Store) Snapshot() map[string]PlayerState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]PlayerState, len(s.states))
	for id, state := range s.states {
		out[id] = *state
	}
	return out
}

// Get returns one instance's state.
func (s *Store) Get(instanceID string) (PlayerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[instanceID]
	if !ok {
		return PlayerState{}, false
	}
	return *state, true
}

// Reconcile deletes every stored instance absent from the authoritative
// live set. Emits exactly one notification when something was removed and
// none otherwise. Returns the number of zombies dropped.
func (s *Store) Reconcile(liveInstanceIDs []string) int {
	live := make(map[string]bool, len(liveInstanceIDs))
	for _, id := range liveInstanceIDs {
		live[id] = true
	}

	s.mu.Lock()
	removed := 0
	for id := range s.states {
		if !live[id] {
			delete(s.states, id)
			removed++
		}
	}
	if removed > 0 {
		s.persistLocked()
	}
	s.mu.Unlock()

	if removed > 0 {
		log.Infof("%s Dropped %d zombie instance(s)", logcolors.LogReconcile, removed)
		s.publish()
	}
	return removed
}

// Len returns the number of tracked instances.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// persistLocked saves through the repository. Callers hold s.mu. A write
// failure costs durability across a suspension, nothing else.
func (s *Store) persistLocked() {
	if err := s.repo.Save(s.states); err != nil {
		log.Warnf("%s Failed to persist session state: %v", logcolors.LogSession, err)
	}
}

// publish pushes the full updated map to all observers.
func (s *Store) publish() {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:    events.TypeStoreUpdated,
		Payload: s.Snapshot(),
	})
}
