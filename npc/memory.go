package npc

import (
	"math"
	"sync"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

// memoryHalfLife is the decay half-life, in seconds, applied to an
// entry's salience when weighting queries.
const memoryHalfLife = 60.0

// DecayMemory wraps the model ring buffer with time-decay-aware queries.
// It is safe for concurrent use: the reactor writes from its drain
// goroutine while the think scheduler reads.
type DecayMemory struct {
	mu   sync.Mutex
	ring *model.Memory
}

// NewDecayMemory returns an empty memory with the given ring capacity.
func NewDecayMemory(capacity int) *DecayMemory {
	return &DecayMemory{ring: model.NewMemory(capacity)}
}

// Observe records one event.
func (m *DecayMemory) Observe(now float64, kind, subject string, pos model.Vec2) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ring.Push(model.MemoryEntry{Timestamp: now, Kind: kind, Subject: subject, Position: pos})
}

// CountRecent counts entries of the given kind within the trailing
// window, optionally restricted to within radius of origin (radius<=0
// disables the spatial filter).
func (m *DecayMemory) CountRecent(now float64, kind string, window, radius float64, origin model.Vec2) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.ring.Recent(m.ring.Capacity) {
		if e.Kind != kind || now-e.Timestamp > window {
			continue
		}
		if radius > 0 && model.Dist(e.Position, origin) > radius {
			continue
		}
		n++
	}
	return n
}

// Salience sums decayed weights of entries of the given kind: an entry
// observed just now contributes 1.0, one a half-life ago 0.5, and so on.
// Used by the think scheduler to rank brains by recent stimulus.
func (m *DecayMemory) Salience(now float64, kind string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0.0
	for _, e := range m.ring.Recent(m.ring.Capacity) {
		if kind != "" && e.Kind != kind {
			continue
		}
		age := now - e.Timestamp
		if age < 0 {
			age = 0
		}
		total += math.Pow(0.5, age/memoryHalfLife)
	}
	return total
}

// Recent returns up to n raw entries, newest first, for prompt building.
func (m *DecayMemory) Recent(n int) []model.MemoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Recent(n)
}
