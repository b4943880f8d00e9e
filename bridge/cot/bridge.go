package cot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	channerics "github.com/niceyeti/channerics/channels"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
	"github.com/valpatel/tritium-sc/engine-core/tracker"
)

// Config tunes the TAK bridge.
type Config struct {
	Addr            string
	Callsign        string
	PublishInterval time.Duration
	StaleSeconds    float64
	// FinalStaleOnElimination sends one last SA event with stale=now the
	// moment a target goes terminal, then stops publishing it.
	FinalStaleOnElimination bool
}

// Bridge mirrors the engine's world out to a TAK server as CoT SA
// events and folds inbound CoT traffic into the target tracker with the
// tak_ prefix. Targets whose IDs already carry that prefix are never
// echoed back out (loopback prevention).
type Bridge struct {
	cfg     Config
	conn    *Conn
	bus     *eventbus.Bus
	tracker *tracker.Tracker
	chat    *ChatHistory
	log     *slog.Logger

	mu        sync.Mutex
	lastState map[string]model.TargetView // latest snapshot by target id
	finalSent map[string]bool

	// Observe, optional, counts inbound/protocol-error occurrences for
	// the metrics layer ("inbound", "protocol_error", "reconnect").
	Observe func(what string)
}

// NewBridge wires the bridge; Run starts it.
func NewBridge(cfg Config, bus *eventbus.Bus, trk *tracker.Tracker, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 2 * time.Second
	}
	if cfg.StaleSeconds <= 0 {
		cfg.StaleSeconds = 60
	}
	b := &Bridge{
		cfg:       cfg,
		conn:      NewConn(cfg.Addr, log),
		bus:       bus,
		tracker:   trk,
		chat:      NewChatHistory(200),
		log:       log,
		lastState: make(map[string]model.TargetView),
		finalSent: make(map[string]bool),
	}
	b.conn.OnReconnect = func() { b.observe("reconnect") }
	b.conn.RegisterHandler(geoChatType, b.handleGeoChat)
	b.conn.RegisterHandler("", b.handleInbound)
	return b
}

// Chat exposes the chat history for the HTTP shell.
func (b *Bridge) Chat() *ChatHistory { return b.chat }

// SendChat publishes an outbound GeoChat message and logs it in history.
func (b *Bridge) SendChat(message, chatroom string) error {
	msg := ChatMessage{
		SenderUID:      b.cfg.Callsign,
		SenderCallsign: b.cfg.Callsign,
		Chatroom:       chatroom,
		Message:        message,
		Direction:      "outbound",
		ReceivedAt:     time.Now(),
	}
	if ref := model.Reference(); ref != nil {
		msg.Lat, msg.Lng = ref.Origin.Lat, ref.Origin.Lng
	}
	b.chat.Append(msg)
	return b.conn.Send(BuildGeoChat(msg, time.Now(), b.cfg.StaleSeconds))
}

// Run connects and pumps both directions until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	go b.conn.Run(ctx)
	go b.consumeSnapshots(ctx)
	go b.mirrorSensorEvents(ctx)
	b.publishLoop(ctx)
}

// mirrorSensorEvents re-expresses engine sensor triggers as CoT sensor
// readings so TAK peers see them alongside the SA stream.
func (b *Bridge) mirrorSensorEvents(ctx context.Context) {
	sub := b.bus.Subscribe("sensor_triggered", eventbus.DefaultQueueSize)
	defer sub.Close()
	for ev := range channerics.OrDone[eventbus.Event](ctx.Done(), sub.Events()) {
		payload, ok := ev.Payload.(map[string]any)
		if !ok || !b.conn.Connected() {
			continue
		}
		sensorID, _ := payload["sensor_id"].(string)
		kind, _ := payload["type"].(string)
		var lat, lng float64
		if pos, ok := payload["position"].(model.Vec2); ok {
			if ref := model.Reference(); ref != nil {
				g := ref.ToGeo(pos)
				lat, lng = g.Lat, g.Lng
			}
		}
		cotEv := BuildSensorReading(sensorID, kind, 1, true, lat, lng, time.Now(), b.cfg.StaleSeconds)
		if err := b.conn.Send(cotEv); err != nil {
			b.log.Debug("sensor cot publish failed", "sensor_id", sensorID, "error", err)
		}
	}
}

// consumeSnapshots keeps the latest engine view per target fresh from
// the sim_state stream.
func (b *Bridge) consumeSnapshots(ctx context.Context) {
	sub := b.bus.Subscribe("sim_state", eventbus.DefaultQueueSize)
	defer sub.Close()
	for ev := range channerics.OrDone[eventbus.Event](ctx.Done(), sub.Events()) {
		snap, ok := ev.Payload.(model.StateSnapshot)
		if !ok {
			continue
		}
		b.mu.Lock()
		seen := make(map[string]bool, len(snap.Targets))
		for _, v := range snap.Targets {
			b.lastState[v.TargetID] = v
			seen[v.TargetID] = true
		}
		for id := range b.lastState {
			if !seen[id] {
				delete(b.lastState, id)
				delete(b.finalSent, id)
			}
		}
		b.mu.Unlock()
	}
}

// publishLoop pushes one SA event per live target every PublishInterval.
// Terminal targets get at most one final event with stale=now when the
// flag is set, then go quiet.
func (b *Bridge) publishLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.PublishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !b.conn.Connected() {
			continue
		}
		now := time.Now()
		ref := model.Reference()
		for _, v := range b.snapshotViews() {
			if strings.HasPrefix(v.TargetID, tracker.PrefixTAK) {
				continue // never echo TAK-derived targets back to TAK
			}
			terminal := model.Status(v.Status).Terminal()
			if terminal {
				if !b.cfg.FinalStaleOnElimination || b.alreadyFinal(v.TargetID) {
					continue
				}
				ev := BuildTargetEvent(v, ref, now, 0)
				if err := b.conn.Send(ev); err != nil {
					b.log.Warn("cot final publish failed", "target_id", v.TargetID, "error", err)
				}
				continue
			}
			ev := BuildTargetEvent(v, ref, now, b.cfg.StaleSeconds)
			if err := b.conn.Send(ev); err != nil {
				b.log.Warn("cot publish failed", "target_id", v.TargetID, "error", err)
				break // socket is dead; let the read loop redial
			}
		}
	}
}

func (b *Bridge) snapshotViews() []model.TargetView {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.TargetView, 0, len(b.lastState))
	for _, v := range b.lastState {
		out = append(out, v)
	}
	return out
}

func (b *Bridge) alreadyFinal(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalSent[id] {
		return true
	}
	b.finalSent[id] = true
	return false
}

// handleInbound folds a peer SA event into the tracker under the tak_
// prefix. Our own outbound events reflected by the server are dropped
// by UID match against the engine's target set.
func (b *Bridge) handleInbound(ev Event) {
	if strings.HasPrefix(ev.UID, "GeoChat.") {
		return // chat rides its own handler
	}
	v, err := TargetFromEvent(ev, model.Reference())
	if err != nil {
		b.observe("protocol_error")
		b.log.Warn("dropping bad inbound cot", "uid", ev.UID, "error", err)
		return
	}
	b.mu.Lock()
	_, ours := b.lastState[v.TargetID]
	b.mu.Unlock()
	if ours {
		return // reflection of our own publish
	}
	v.TargetID = tracker.PrefixTAK + v.TargetID
	if err := b.tracker.UpdateExternal("tak", v, 0.9); err != nil {
		b.log.Warn("tracker rejected tak target", "target_id", v.TargetID, "error", err)
		return
	}
	b.observe("inbound")
}

// handleGeoChat records inbound chat and surfaces it on the bus.
func (b *Bridge) handleGeoChat(ev Event) {
	msg, err := GeoChatFromEvent(ev)
	if err != nil {
		b.observe("protocol_error")
		b.log.Warn("dropping bad geochat", "uid", ev.UID, "error", err)
		return
	}
	msg.ReceivedAt = time.Now()
	b.chat.Append(msg)
	b.bus.Publish(eventbus.Event{Kind: "geochat_received", Payload: map[string]any{
		"sender_uid": msg.SenderUID, "sender_callsign": msg.SenderCallsign,
		"message": msg.Message, "chatroom": msg.Chatroom,
		"lat": msg.Lat, "lng": msg.Lng,
	}})
	b.observe("inbound")
}

func (b *Bridge) observe(what string) {
	if b.Observe != nil {
		b.Observe(what)
	}
}
