package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event is the structured message sent to WebSocket subscribers.
type Event struct {
	Type string          `json:"type"`
	ID   uint64          `json:"id"`
	Data json.RawMessage `json:"data"`
	Time time.Time       `json:"time"`
}

// SubscribeMsg is sent by the client on connect to request event replay.
type SubscribeMsg struct {
	Type        string `json:"type"`
	LastEventID uint64 `json:"last_event_id"`
}

// ResetMsg tells the client to do a full resync (requested events too old).
type ResetMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// EventSequence issues monotonic event IDs.
type EventSequence struct {
	counter atomic.Uint64
}

// NewEventSequence creates a new EventSequence.
func NewEventSequence() *EventSequence {
	return &EventSequence{}
}

// Next returns the next sequence number.
func (es *EventSequence) Next() uint64 {
	return es.counter.Add(1)
}

// Event buffer bounds: enough to bridge a short reconnect without holding
// history forever.
const (
	defaultBufferMaxLen = 512
	defaultBufferMaxAge = 5 * time.Minute
)

// EventBuffer holds recent events for replay after reconnect. Bounded by
// both count and age.
type EventBuffer struct {
	mu     sync.Mutex
	events []*Event
	maxLen int
	maxAge time.Duration
}

// NewEventBuffer creates an EventBuffer with the given bounds.
func NewEventBuffer(maxLen int, maxAge time.Duration) *EventBuffer {
	return &EventBuffer{maxLen: maxLen, maxAge: maxAge}
}

// Append stores an event, evicting entries beyond the count or age bound.
func (b *EventBuffer) Append(evt *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, evt)
	b.evictLocked()
}

// OldestID returns the ID of the oldest buffered event, 0 when empty.
func (b *EventBuffer) OldestID() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evictLocked()

	if len(b.events) == 0 {
		return 0
	}

	return b.events[0].ID
}

// Since returns buffered events with ID greater than lastEventID, oldest first.
func (b *EventBuffer) Since(lastEventID uint64) []*Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evictLocked()

	out := make([]*Event, 0, len(b.events))
	for _, evt := range b.events {
		if evt.ID > lastEventID {
			out = append(out, evt)
		}
	}

	return out
}

func (b *EventBuffer) evictLocked() {
	if over := len(b.events) - b.maxLen; over > 0 {
		b.events = b.events[over:]
	}

	cutoff := time.Now().Add(-b.maxAge)
	for len(b.events) > 0 && b.events[0].Time.Before(cutoff) {
		b.events = b.events[1:]
	}
}
