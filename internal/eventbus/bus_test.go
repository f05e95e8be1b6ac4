package eventbus

import (
	"testing"
	"time"
)

func TestPublishDelivers(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: "engine.started"})

	select {
	case e := <-ch:
		if e.Type != "engine.started" {
			t.Fatalf("Type = %q, want engine.started", e.Type)
		}
		if e.Time.IsZero() {
			t.Fatal("expected Publish to stamp Time")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"}) // buffer full, must not block

	e := <-ch
	if e.Type != "a" {
		t.Fatalf("Type = %q, want a", e.Type)
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected second event %q", e.Type)
	default:
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	unsub()
	unsub()
	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Type: "x"})
}
