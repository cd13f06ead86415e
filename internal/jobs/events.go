package jobs

import (
	"sync"
	"time"
)

// EventType classifies bus events.
type EventType string

const (
	EventSubmitted EventType = "submitted"
	EventProgress  EventType = "progress"
	EventState     EventType = "state"
	EventTerminal  EventType = "terminal"
	EventForgotten EventType = "forgotten"
)

// Event is a sequenced job snapshot.
type Event struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Job       Snapshot  `json:"job"`
}

// EventBus stores recent events, provides incremental reads, and fans out to
// live subscribers. Slow subscribers drop events rather than block publishers.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	subs      map[chan Event]string
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		subs:      make(map[chan Event]string),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	for ch, jobID := range b.subs {
		if jobID != "" && jobID != event.Job.ID {
			continue
		}
		select {
		case ch <- event:
		default:
		}
	}
	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// Covers reports whether every event after seq is still buffered. A seq
// beyond the latest event, such as one from a previous daemon run, is not
// covered.
func (b *EventBus) Covers(seq int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if seq > b.nextSeq {
		return false
	}
	if len(b.events) == 0 {
		return seq == b.nextSeq
	}
	return b.events[0].Seq <= seq+1
}

// LastSeq returns the sequence of the most recent event.
func (b *EventBus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

// Subscribe registers a live listener. An empty jobID receives every event.
// The returned function unregisters the listener and closes the channel.
func (b *EventBus) Subscribe(jobID string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs[ch] = jobID
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}
