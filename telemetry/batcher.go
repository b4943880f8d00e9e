package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	channerics "github.com/niceyeti/channerics/channels"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
)

// DefaultFlushInterval is the batcher's coalescing window.
const DefaultFlushInterval = 75 * time.Millisecond

// batchedKinds are the event kinds forwarded to clients. sim_state is
// special-cased: only the newest snapshot per window survives, since a
// stale one has no value once a fresher one exists.
var batchedKinds = map[string]bool{
	"sim_state":         true,
	"target_spawned":    true,
	"target_eliminated": true,
	"target_escaped":    true,
	"shot_fired":        true,
	"shot_missed":       true,
	"damage":            true,
	"explosion":         true,
	"hazard_spawned":    true,
	"hazard_expired":    true,
	"sensor_triggered":  true,
	"sensor_cleared":    true,
	"wave_started":      true,
	"wave_completed":    true,
	"game_victory":      true,
	"game_defeat":       true,
	"game_reset":        true,
	"npc_radicalized":   true,
	"npc_speech":        true,
	"geochat_received":  true,
	"ammo_low":          true,
	"ammo_depleted":     true,
}

// batchFrame is the wire shape of one flushed batch.
type batchFrame struct {
	Type   string       `json:"type"`
	Events []batchEvent `json:"events"`
}

type batchEvent struct {
	Kind    string  `json:"kind"`
	TS      float64 `json:"ts"`
	Payload any     `json:"payload"`
}

// Batcher buffers state-change events off the bus and flushes them to
// the connection manager at a fixed interval. The buffer is unbounded
// by policy — flushes at interval boundaries keep it small in practice,
// and the depth is observable for monitoring.
type Batcher struct {
	bus      *eventbus.Bus
	manager  *ConnectionManager
	interval time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	pending []batchEvent
	// snapshotIdx tracks the position of the sim_state entry in pending
	// so a fresher snapshot replaces it in place.
	snapshotIdx int
}

// NewBatcher wires a batcher; Run starts it. interval<=0 uses the default.
func NewBatcher(bus *eventbus.Bus, manager *ConnectionManager, interval time.Duration, log *slog.Logger) *Batcher {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Batcher{bus: bus, manager: manager, interval: interval, log: log, snapshotIdx: -1}
}

// Depth reports the current buffered event count, for monitoring.
func (b *Batcher) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Run consumes the bus and flushes until ctx is cancelled.
func (b *Batcher) Run(ctx context.Context) {
	sub := b.bus.Subscribe("", eventbus.DefaultQueueSize)
	defer sub.Close()

	events := channerics.OrDone[eventbus.Event](ctx.Done(), sub.Events())
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.buffer(ev)
		case <-ticker.C:
			b.flush()
		}
	}
}

func (b *Batcher) buffer(ev eventbus.Event) {
	if !batchedKinds[ev.Kind] {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	entry := batchEvent{Kind: ev.Kind, TS: ev.TS, Payload: ev.Payload}
	if ev.Kind == "sim_state" {
		if b.snapshotIdx >= 0 {
			b.pending[b.snapshotIdx] = entry
			return
		}
		b.snapshotIdx = len(b.pending)
	}
	b.pending = append(b.pending, entry)
}

func (b *Batcher) flush() {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.snapshotIdx = -1
	b.mu.Unlock()
	if len(batch) == 0 || b.manager.Count() == 0 {
		return
	}
	data, err := json.Marshal(batchFrame{Type: "batch", Events: batch})
	if err != nil {
		b.log.Error("batch marshal failed", "error", err)
		return
	}
	b.manager.Broadcast(data)
}
