package tasks

import (
	"sync"
	"time"

	"lecture-companion/internal/domain"
)

// EventType classifies messages emitted while tracking a task.
type EventType string

const (
	EventTypeStatus EventType = "status"
	EventTypeNotice EventType = "notice"
	EventTypeResult EventType = "result"
	EventTypeError  EventType = "error"
)

// Event is a sequenced payload consumed by UI subscribers. Notice events
// carry the user-visible messages of the propagation policy: everything else
// is absorbed below the UI boundary.
type Event struct {
	Seq       int64            `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	TaskID    string           `json:"taskId"`
	Type      EventType        `json:"type"`
	Phase     domain.Phase     `json:"phase,omitempty"`
	Progress  *domain.Progress `json:"progress,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// EventBus stores recent events and provides incremental reads. An optional
// listener receives every published event for push-style delivery.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	listener  func(Event)
}

// SetListener installs a callback invoked after each publish. The callback
// runs on the publisher's goroutine while the bus is still serialized, so
// push deliveries arrive in Seq order; it must not call back into the bus.
func (b *EventBus) SetListener(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = fn
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()

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
	if b.listener != nil {
		b.listener(event)
	}
	b.mu.Unlock()

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
