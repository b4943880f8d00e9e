// Package eventbus is the process-local publish/subscribe backbone that
// decouples the simulation engine's tick loop from everything that wants
// to react to it: telemetry fan-out, the NPC event reactor, the bridges.
// Publish never blocks the caller; a slow subscriber only ever loses its
// own backlog, never stalls the tick.
package eventbus

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultQueueSize is the per-subscriber channel capacity used when a
// caller does not specify one.
const DefaultQueueSize = 1024

// Event is a single bus message. Kind names the event type
// ("target_eliminated", "wave_escalation", "bus_overflow", ...); Payload
// carries type-specific data and is left as `any` so sim, npc, and bridge
// packages can each define their own payload structs without the bus
// needing to know about them.
type Event struct {
	Kind    string
	Payload any

	// TS is seconds since the bus was constructed, stamped at publish
	// time from the monotonic clock. Subscribers use it to order events
	// within their own stream; it is not wall-clock time.
	TS float64
}

// Subscription is a single subscriber's bounded inbox. Consume Events
// from the channel in a loop; Close to unsubscribe.
type Subscription struct {
	id     uint64
	kind   string // "" subscribes to all kinds
	events chan Event
	bus    *Bus
}

// Events returns the channel to range over.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close unsubscribes, after which the bus no longer attempts delivery.
// The channel is closed so a ranging goroutine exits cleanly.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// Bus is a bounded, non-blocking pub/sub dispatcher. The zero value is
// not usable; construct with New.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	log    *slog.Logger
	start  time.Time
}

// New returns a ready-to-use Bus. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{subs: make(map[uint64]*Subscription), log: log, start: time.Now()}
}

// Subscribe registers a new subscriber for events of the given kind, or
// every kind when kind is "". queueSize<=0 uses DefaultQueueSize.
func (b *Bus) Subscribe(kind string, queueSize int) *Subscription {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		kind:   kind,
		events: make(chan Event, queueSize),
		bus:    b,
	}
	b.subs[sub.id] = sub
	return sub
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s.id]; !ok {
		return
	}
	delete(b.subs, s.id)
	close(s.events)
}

// Publish delivers ev to every matching subscriber without blocking. A
// subscriber whose inbox is full drops the event (drop-tail) and the bus
// emits one synthetic "bus_overflow" event naming the dropped kind and
// the overflowing subscriber, rather than ever blocking the publisher —
// the tick loop must never stall on a slow consumer.
func (b *Bus) Publish(ev Event) {
	ev.TS = time.Since(b.start).Seconds()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.kind != "" && sub.kind != ev.Kind {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			b.log.Warn("eventbus: subscriber queue full, dropping event",
				"kind", ev.Kind, "subscriber_id", sub.id)
			if ev.Kind != "bus_overflow" {
				b.publishOverflowLocked(sub.id, ev.Kind)
			}
		}
	}
}

// publishOverflowLocked best-effort-notifies every subscriber of the
// overflow, under the same read lock Publish already holds. It never
// recurses (bus_overflow events are never re-reported on overflow).
func (b *Bus) publishOverflowLocked(subscriberID uint64, droppedKind string) {
	overflow := Event{Kind: "bus_overflow", TS: time.Since(b.start).Seconds(), Payload: OverflowPayload{
		SubscriberID: subscriberID,
		DroppedKind:  droppedKind,
	}}
	for _, sub := range b.subs {
		if sub.kind != "" && sub.kind != "bus_overflow" {
			continue
		}
		select {
		case sub.events <- overflow:
		default:
		}
	}
}

// OverflowPayload is the Payload of a "bus_overflow" event.
type OverflowPayload struct {
	SubscriberID uint64
	DroppedKind  string
}

// SubscriberCount reports the current number of live subscriptions, used
// by metrics.go to expose an eventbus_subscribers gauge.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
