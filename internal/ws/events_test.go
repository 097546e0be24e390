package ws

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventBuffer_SinceAndEviction(t *testing.T) {
	buf := NewEventBuffer(3, time.Minute)

	for i := uint64(1); i <= 5; i++ {
		buf.Append(&Event{ID: i, Type: "audit.created", Data: json.RawMessage(`{}`), Time: time.Now()})
	}

	if got := buf.OldestID(); got != 3 {
		t.Errorf("OldestID = %d, want 3 after count eviction", got)
	}

	events := buf.Since(3)
	if len(events) != 2 || events[0].ID != 4 || events[1].ID != 5 {
		t.Errorf("Since(3) = %d events, want IDs 4,5", len(events))
	}
}

func TestEventBuffer_AgeEviction(t *testing.T) {
	buf := NewEventBuffer(10, 50*time.Millisecond)

	buf.Append(&Event{ID: 1, Time: time.Now().Add(-time.Second)})
	buf.Append(&Event{ID: 2, Time: time.Now()})

	if got := buf.OldestID(); got != 2 {
		t.Errorf("OldestID = %d, want 2 after age eviction", got)
	}
}

func TestEventSequence_Monotonic(t *testing.T) {
	seq := NewEventSequence()

	for want := uint64(1); want <= 3; want++ {
		if got := seq.Next(); got != want {
			t.Errorf("Next = %d, want %d", got, want)
		}
	}
}
