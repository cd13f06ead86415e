package jobs

import (
	"testing"
	"time"
)

func TestEventBusSinceAndTrim(t *testing.T) {
	bus := NewEventBus(2)
	for _, id := range []string{"a", "b", "c"} {
		bus.Publish(Event{Type: EventSubmitted, Job: Snapshot{ID: id}})
	}
	if bus.LastSeq() != 3 {
		t.Fatalf("expected last seq 3, got %d", bus.LastSeq())
	}
	events := bus.Since(0)
	if len(events) != 2 || events[0].Job.ID != "b" || events[1].Job.ID != "c" {
		t.Fatalf("unexpected retained events %+v", events)
	}
	if got := bus.Since(2); len(got) != 1 || got[0].Seq != 3 {
		t.Fatalf("unexpected incremental read %+v", got)
	}
}

func TestEventBusCovers(t *testing.T) {
	bus := NewEventBus(2)
	if !bus.Covers(0) {
		t.Fatal("an empty bus covers seq 0")
	}
	for _, id := range []string{"a", "b", "c"} {
		bus.Publish(Event{Type: EventSubmitted, Job: Snapshot{ID: id}})
	}
	cases := map[int64]bool{
		0: false, // event 1 was trimmed
		1: true,
		2: true,
		3: true,
		4: false, // newer than anything published
	}
	for seq, want := range cases {
		if got := bus.Covers(seq); got != want {
			t.Errorf("Covers(%d) = %v, want %v", seq, got, want)
		}
	}
}

func TestEventBusSubscribeFiltersByJob(t *testing.T) {
	bus := NewEventBus(10)
	ch, cancel := bus.Subscribe("b", 4)
	defer cancel()

	bus.Publish(Event{Type: EventProgress, Job: Snapshot{ID: "a"}})
	bus.Publish(Event{Type: EventProgress, Job: Snapshot{ID: "b"}})

	select {
	case ev := <-ch:
		if ev.Job.ID != "b" {
			t.Fatalf("received event for %q", ev.Job.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}
}

func TestEventBusSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewEventBus(10)
	ch, cancel := bus.Subscribe("", 1)
	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: EventProgress, Job: Snapshot{ID: "a"}})
	}
	if len(ch) != 1 {
		t.Fatalf("expected one buffered event, got %d", len(ch))
	}
	cancel()
	cancel()
	if _, ok := <-ch; !ok {
		t.Fatal("buffered event should still drain before close")
	}
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
}
