package eventbus

import (
	"testing"
	"time"
)

func TestSubscribeAndPublish(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe("target_eliminated", 0)
	defer sub.Close()

	b.Publish(Event{Kind: "target_eliminated", Payload: "t-1"})
	b.Publish(Event{Kind: "wave_escalation", Payload: "w-1"})

	select {
	case ev := <-sub.Events():
		if ev.Kind != "target_eliminated" {
			t.Fatalf("got kind %q, want target_eliminated", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected second event delivered: %+v", ev)
	default:
	}
}

func TestSubscribeAllKinds(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe("", 0)
	defer sub.Close()

	kinds := []string{"target_eliminated", "wave_escalation", "shots_fired"}
	for _, k := range kinds {
		b.Publish(Event{Kind: k})
	}

	for _, want := range kinds {
		select {
		case ev := <-sub.Events():
			if ev.Kind != want {
				t.Fatalf("got kind %q, want %q", ev.Kind, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestPublishNeverBlocksOnFullQueue(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe("noisy", 2)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Kind: "noisy", Payload: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber queue")
	}
}

func TestOverflowEmitsBusOverflow(t *testing.T) {
	b := New(nil)
	noisy := b.Subscribe("noisy", 1)
	defer noisy.Close()
	overflow := b.Subscribe("bus_overflow", 4)
	defer overflow.Close()

	b.Publish(Event{Kind: "noisy"}) // noisy's queue (cap 1) is now full
	b.Publish(Event{Kind: "noisy"}) // dropped; reports overflow
	b.Publish(Event{Kind: "noisy"}) // dropped again

	select {
	case ev := <-overflow.Events():
		payload, ok := ev.Payload.(OverflowPayload)
		if !ok {
			t.Fatalf("payload type = %T, want OverflowPayload", ev.Payload)
		}
		if payload.DroppedKind != "noisy" {
			t.Fatalf("dropped kind = %q, want noisy", payload.DroppedKind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for bus_overflow event")
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe("x", 1)
	sub.Close()

	b.Publish(Event{Kind: "x"})

	if _, open := <-sub.Events(); open {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
	if got := b.SubscriberCount(); got != 0 {
		t.Fatalf("subscriber count = %d, want 0", got)
	}
}
