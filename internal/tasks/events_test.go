package tasks

import (
	"sync"
	"testing"

	"lecture-companion/internal/domain"
)

// TestEventBusSince verifies incremental event reads by sequence.
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Publish(Event{Type: EventTypeStatus, Phase: domain.PhaseUploaded})
	bus.Publish(Event{Type: EventTypeStatus, Phase: domain.PhaseProcessing})
	bus.Publish(Event{Type: EventTypeNotice, Message: "notes unavailable"})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
	if events[1].Type != EventTypeNotice {
		t.Fatalf("type = %s, want notice", events[1].Type)
	}
}

// TestEventBusListenerReceivesInSeqOrder verifies that push deliveries from
// concurrent publishers arrive strictly in sequence order.
func TestEventBusListenerReceivesInSeqOrder(t *testing.T) {
	bus := NewEventBus(200)

	var seen []int64
	bus.SetListener(func(event Event) {
		seen = append(seen, event.Seq)
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				bus.Publish(Event{Type: EventTypeStatus, Phase: domain.PhaseProcessing})
			}
		}()
	}
	wg.Wait()

	if len(seen) != 100 {
		t.Fatalf("deliveries = %d, want 100", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("out-of-order delivery at %d: %d after %d", i, seen[i], seen[i-1])
		}
	}
}

// TestEventBusCapsHistory verifies buffer limit trimming behavior.
func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Message != "2" || events[1].Message != "3" {
		t.Fatalf("unexpected events: %+v", events)
	}
}
