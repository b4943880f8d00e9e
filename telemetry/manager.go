// Package telemetry fans authoritative engine state out to connected
// clients: a ConnectionManager of websocket-like sinks that drop on
// first failure, and a TelemetryBatcher that coalesces state-change
// events into interval-flushed batches so a busy tick never floods the
// sockets with per-event frames.
package telemetry

import (
	"log/slog"
	"sync"
)

// Sink is one outbound client connection. SendText may fail; a failed
// sink is removed from the manager without retry.
type Sink interface {
	SendText(data []byte) error
	Close() error
}

// ConnectionManager holds the live sink set. Add/Remove/Broadcast are
// all safe for concurrent use.
type ConnectionManager struct {
	mu    sync.Mutex
	sinks map[Sink]struct{}
	log   *slog.Logger

	// OnCountChange, optional, observes the live sink count for metrics.
	OnCountChange func(n int)
}

// NewConnectionManager returns an empty manager.
func NewConnectionManager(log *slog.Logger) *ConnectionManager {
	if log == nil {
		log = slog.Default()
	}
	return &ConnectionManager{sinks: make(map[Sink]struct{}), log: log}
}

// Add registers a sink.
func (m *ConnectionManager) Add(s Sink) {
	m.mu.Lock()
	m.sinks[s] = struct{}{}
	n := len(m.sinks)
	m.mu.Unlock()
	m.countChanged(n)
}

// Remove drops a sink and closes it.
func (m *ConnectionManager) Remove(s Sink) {
	m.mu.Lock()
	_, ok := m.sinks[s]
	delete(m.sinks, s)
	n := len(m.sinks)
	m.mu.Unlock()
	if ok {
		_ = s.Close()
		m.countChanged(n)
	}
}

// Count reports the live sink count.
func (m *ConnectionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sinks)
}

// Broadcast attempts delivery to every sink; sinks that error are
// removed (no retry, no buffering for dead clients).
func (m *ConnectionManager) Broadcast(data []byte) {
	m.mu.Lock()
	sinks := make([]Sink, 0, len(m.sinks))
	for s := range m.sinks {
		sinks = append(sinks, s)
	}
	m.mu.Unlock()

	var failed []Sink
	for _, s := range sinks {
		if err := s.SendText(data); err != nil {
			m.log.Debug("sink send failed, dropping", "error", err)
			failed = append(failed, s)
		}
	}
	for _, s := range failed {
		m.Remove(s)
	}
}

func (m *ConnectionManager) countChanged(n int) {
	if m.OnCountChange != nil {
		m.OnCountChange(n)
	}
}
