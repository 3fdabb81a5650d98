package main

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"lyricsync-go/logcolors"
	"lyricsync-go/lyrics"
	"lyricsync-go/match"
	"lyricsync-go/retry"
	"lyricsync-go/store"
)

const (
	durationWaitAttempts = 10
	durationWaitDelay    = 500 * time.Millisecond
	prefetchTimeout      = 30 * time.Second
)

// Prefetcher warms the lyrics cache when a player instance changes track,
// so the instance's own fetchLyrics lands on a hit.
//
// Cancellation is by sequence number, not by abort signal: every track
// change bumps the instance's sequence, and an async result is applied
// only if its sequence is still current — anything else is silently
// discarded. Player duration often trails the track change by a few UI
// ticks, so the prefetch waits for it with a bounded retry before giving
// up and proceeding with an unknown duration.
type Prefetcher struct {
	svc   *lyrics.Service
	store *store.Store

	mu        sync.Mutex
	sequences map[string]uint64
	lastTrack map[string]string
}

// NewPrefetcher creates a prefetcher over the lyrics service and state store.
func NewPrefetcher(svc *lyrics.Service, st *store.Store) *Prefetcher {
	return &Prefetcher{
		svc:       svc,
		store:     st,
		sequences: make(map[string]uint64),
		lastTrack: make(map[string]string),
	}
}

// OnStateUpdate inspects an ingested snapshot and kicks an async prefetch
// when the instance switched track.
func (p *Prefetcher) OnStateUpdate(instanceID string, snap store.PlayerState) {
	if snap.Title == "" || snap.Artist == "" {
		return
	}

	track := snap.Title + "\x00" + snap.Artist

	p.mu.Lock()
	if p.lastTrack[instanceID] == track {
		p.mu.Unlock()
		return
	}
	p.lastTrack[instanceID] = track
	p.sequences[instanceID]++
	seq := p.sequences[instanceID]
	p.mu.Unlock()

	go p.prefetch(instanceID, seq, snap)
}

// Forget drops an instance's tracking state. Called when the instance is
// removed from the store.
func (p *Prefetcher) Forget(instanceID string) {
	p.mu.Lock()
	delete(p.sequences, instanceID)
	delete(p.lastTrack, instanceID)
	p.mu.Unlock()
}

// current reports whether seq is still the instance's latest sequence.
func (p *Prefetcher) current(instanceID string, seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sequences[instanceID] == seq
}

func (p *Prefetcher) prefetch(instanceID string, seq uint64, snap store.PlayerState) {
	ctx, cancel := context.WithTimeout(context.Background(), prefetchTimeout)
	defer cancel()

	// Wait for the player to report a usable duration; proceed without one
	// after the attempts run out.
	duration, ok := retry.Do(ctx, durationWaitAttempts, durationWaitDelay, func() (int, bool) {
		state, found := p.store.Get(instanceID)
		if !found {
			return 0, false
		}
		if d := int(state.DurationSeconds); d > 0 {
			return d, true
		}
		return 0, false
	})
	if !ok {
		log.Debugf("%s No duration from %s, prefetching without it", logcolors.LogPrefetch, instanceID)
	}

	// The track may have changed while we waited; a stale result must not
	// be applied.
	if !p.current(instanceID, seq) {
		log.Debugf("%s Discarding superseded prefetch for %s (seq %d)", logcolors.LogPrefetch, instanceID, seq)
		return
	}

	q := match.Query{
		Title:           snap.Title,
		Artist:          snap.Artist,
		Album:           snap.Album,
		DurationSeconds: duration,
	}

	lines, status := p.svc.Get(ctx, q)

	if !p.current(instanceID, seq) {
		return
	}
	log.Debugf("%s Warmed %s - %s for %s (%d lines, %s)",
		logcolors.LogPrefetch, snap.Artist, snap.Title, instanceID, len(lines), status)
}
