package npc

import (
	"log/slog"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

// Stimulus radii: how far away a brain can be from an event's origin and
// still perceive it.
const (
	shotHearingRadius     = 60.0
	eliminationSeenRadius = 50.0
	explosionFeltRadius   = 80.0
	hostileSeenRadius     = 25.0
)

// Reactor bridges bus events into per-brain memory deliveries, filtered
// by distance from the originating position. It runs its own drain
// goroutine; brains absorb stimuli concurrently with the engine tick.
type Reactor struct {
	bus      *eventbus.Bus
	brains   *Manager
	alliance *AllianceManager
	mobs     *MobManager
	log      *slog.Logger
	stop     chan struct{}
}

// NewReactor wires the reactor to the bus and downstream consumers.
// alliance and mobs may be nil to disable those reactions.
func NewReactor(bus *eventbus.Bus, brains *Manager, alliance *AllianceManager, mobs *MobManager, log *slog.Logger) *Reactor {
	if log == nil {
		log = slog.Default()
	}
	return &Reactor{bus: bus, brains: brains, alliance: alliance, mobs: mobs, log: log, stop: make(chan struct{})}
}

// Start launches the drain goroutine. Stop terminates it.
func (r *Reactor) Start(world World) {
	sub := r.bus.Subscribe("", eventbus.DefaultQueueSize)
	go func() {
		defer sub.Close()
		for {
			select {
			case <-r.stop:
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				r.handle(ev, world)
			}
		}
	}()
}

// Stop terminates the drain goroutine.
func (r *Reactor) Stop() { close(r.stop) }

func (r *Reactor) handle(ev eventbus.Event, world World) {
	switch ev.Kind {
	case "shot_fired":
		payload, ok := ev.Payload.(map[string]any)
		if !ok {
			return
		}
		if pos, ok := positionFrom(payload, "position"); ok {
			r.deliver(simTimeOf(payload, ev.TS), "heard_shot", "", pos, shotHearingRadius)
		}
	case "target_eliminated":
		payload, ok := ev.Payload.(map[string]any)
		if !ok {
			return
		}
		pos, ok := positionFrom(payload, "position")
		if !ok {
			return
		}
		now := simTimeOf(payload, ev.TS)
		victim, _ := payload["target_id"].(string)
		r.deliver(now, "saw_elimination", victim, pos, eliminationSeenRadius)
		r.brains.Detach(victim)
		if r.alliance != nil {
			r.alliance.NoteElimination(now)
			r.alliance.Consider(now, r.brains, world)
		}
	case "explosion":
		payload, ok := ev.Payload.(map[string]any)
		if !ok {
			return
		}
		if pos, ok := positionFrom(payload, "position"); ok {
			r.deliver(simTimeOf(payload, ev.TS), "explosion_nearby", "", pos, explosionFeltRadius)
		}
	case "sim_state":
		snap, ok := ev.Payload.(model.StateSnapshot)
		if !ok {
			return
		}
		r.brains.SyncPositions(snap)
		if r.alliance != nil {
			var friendlies []model.Vec2
			for _, v := range snap.Targets {
				if v.Alliance == string(model.Friendly) && !model.Status(v.Status).Terminal() {
					friendlies = append(friendlies, v.Position)
				}
			}
			r.alliance.UpdateFriendlies(friendlies)
		}
		r.deliverSightings(snap.SimTime, snap)
		r.brains.Step(snap.SimTime, world)
		if r.mobs != nil {
			r.mobs.Detect(snap.SimTime, r.brains, world)
		}
	}
}

// simTimeOf prefers the payload's sim_time clock over the bus timestamp
// so memory windows line up with FSM evaluation time.
func simTimeOf(payload map[string]any, fallback float64) float64 {
	if t, ok := payload["sim_time"].(float64); ok {
		return t
	}
	return fallback
}

// deliver pushes one stimulus into every brain within radius of origin.
func (r *Reactor) deliver(now float64, kind, subject string, origin model.Vec2, radius float64) {
	for _, b := range r.brains.All() {
		if model.Dist(b.Position, origin) <= radius {
			b.Memory.Observe(now, kind, subject, origin)
		}
	}
}

// deliverSightings records hostile sightings for every non-hostile brain
// with a hostile in visual range.
func (r *Reactor) deliverSightings(now float64, snap model.StateSnapshot) {
	var hostiles []model.TargetView
	for _, v := range snap.Targets {
		if v.Alliance == string(model.Hostile) && !model.Status(v.Status).Terminal() {
			hostiles = append(hostiles, v)
		}
	}
	if len(hostiles) == 0 {
		return
	}
	for _, b := range r.brains.All() {
		if b.Alliance == model.Hostile {
			continue
		}
		for _, h := range hostiles {
			if model.Dist(b.Position, h.Position) <= hostileSeenRadius {
				b.Memory.Observe(now, "saw_hostile", h.TargetID, h.Position)
				break
			}
		}
	}
}

func positionFrom(payload map[string]any, key string) (model.Vec2, bool) {
	switch v := payload[key].(type) {
	case model.Vec2:
		return v, true
	case map[string]any:
		x, _ := v["X"].(float64)
		y, _ := v["Y"].(float64)
		return model.Vec2{X: x, Y: y}, true
	default:
		return model.Vec2{}, false
	}
}
