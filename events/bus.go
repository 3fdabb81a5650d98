// Package events is the in-process publish/subscribe fabric for store
// change notifications. Delivery is best-effort: publishing with no
// subscribers is fine, and a subscriber that cannot keep up loses events
// rather than blocking the publisher.
package events

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"lyricsync-go/logcolors"
)

// Event types pushed to observers.
const (
	TypeStoreUpdated = "storeUpdated"
	TypeForceSync    = "forceSync"
)

// Event is one notification. Payload is whatever the publisher attached
// (for storeUpdated, the full player-state map).
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Subscriber receives events on C until Unsubscribe.
type Subscriber struct {
	ID string
	C  <-chan Event

	ch chan Event
}

// Bus fans events out to all current subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	buffer      int
}

// NewBus creates a bus. buffer is the per-subscriber channel depth.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{
		subscribers: make(map[string]*Subscriber),
		buffer:      buffer,
	}
}

// Subscribe registers a new observer.
func (b *Bus) Subscribe() *Subscriber {
	ch := make(chan Event, b.buffer)
	sub := &Subscriber{
		ID: uuid.NewString(),
		C:  ch,
		ch: ch,
	}

	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	b.mu.Unlock()

	log.Debugf("%s Subscriber %s attached", logcolors.LogEvents, sub.ID)
	return sub
}

// Unsubscribe detaches an observer and closes its channel. Safe to call
// for an already-removed subscriber.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()

	if ok {
		close(sub.ch)
		log.Debugf("%s Subscriber %s detached", logcolors.LogEvents, id)
	}
}

// Publish delivers an event to every subscriber. Never blocks and never
// fails; a full subscriber channel drops the event for that subscriber.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- event:
		default:
			log.Debugf("%s Dropped %s event for slow subscriber %s", logcolors.LogEvents, event.Type, sub.ID)
		}
	}
}

// SubscriberCount returns the number of attached observers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
