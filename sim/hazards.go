package sim

import (
	"log/slog"
	"math/rand"
	"strconv"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

// Hazard radius/duration ranges and the kinds spawn_random draws from,
// per original_source/src/engine/simulation/hazards.py.
var hazardKinds = []model.HazardKind{model.HazardFire, model.HazardSmoke, model.HazardDebris}

const (
	hazardMinRadius   = 5.0
	hazardMaxRadius   = 15.0
	hazardMinDuration = 20.0
	hazardMaxDuration = 60.0
)

// HazardManager tracks active environmental hazards that block pathfinder
// routes. It is the engine's sole source of hazard state; Pathfinder only
// reads from it, through IsBlocked. Sensors do not consult hazards.
type HazardManager struct {
	bus     *eventbus.Bus
	log     *slog.Logger
	hazards map[string]model.Hazard
	nextID  int
}

// NewHazardManager returns an empty manager publishing lifecycle events on bus.
func NewHazardManager(bus *eventbus.Bus, log *slog.Logger) *HazardManager {
	if log == nil {
		log = slog.Default()
	}
	return &HazardManager{bus: bus, log: log, hazards: make(map[string]model.Hazard)}
}

// Spawn registers a new hazard and publishes "hazard_spawned".
func (h *HazardManager) Spawn(kind model.HazardKind, center model.Vec2, radius, ttl, now float64) model.Hazard {
	h.nextID++
	hz := model.Hazard{
		ID: hazardID(h.nextID), Kind: kind, Center: center,
		Radius: radius, TTL: ttl, SpawnedAt: now,
	}
	h.hazards[hz.ID] = hz
	h.publish("hazard_spawned", hz)
	return hz
}

// SpawnRandom scatters count hazards uniformly within +/-mapBounds of the
// origin on both axes, for ambient hazard seeding. The wave loop does
// not call it; callers reach it through Engine.Hazards.
func (h *HazardManager) SpawnRandom(count int, mapBounds, now float64) []model.Hazard {
	spawned := make([]model.Hazard, 0, count)
	for i := 0; i < count; i++ {
		kind := hazardKinds[rand.Intn(len(hazardKinds))]
		center := model.Vec2{
			X: (rand.Float64()*2 - 1) * mapBounds,
			Y: (rand.Float64()*2 - 1) * mapBounds,
		}
		radius := hazardMinRadius + rand.Float64()*(hazardMaxRadius-hazardMinRadius)
		ttl := hazardMinDuration + rand.Float64()*(hazardMaxDuration-hazardMinDuration)
		spawned = append(spawned, h.Spawn(kind, center, radius, ttl, now))
	}
	return spawned
}

// Tick expires hazards whose TTL has elapsed, publishing "hazard_expired"
// for each.
func (h *HazardManager) Tick(now float64) {
	for id, hz := range h.hazards {
		if hz.Expired(now) {
			delete(h.hazards, id)
			h.publish("hazard_expired", hz)
		}
	}
}

// IsBlocked reports whether p falls inside any active hazard.
func (h *HazardManager) IsBlocked(p model.Vec2) bool {
	for _, hz := range h.hazards {
		if hz.Contains(p) {
			return true
		}
	}
	return false
}

// BlockedCenters returns the center point of every active hazard.
// Pathfinder does not use it; it excludes nodes through IsBlocked.
func (h *HazardManager) BlockedCenters() []model.Vec2 {
	out := make([]model.Vec2, 0, len(h.hazards))
	for _, hz := range h.hazards {
		out = append(out, hz.Center)
	}
	return out
}

// Active returns a snapshot of all currently active hazards, used by the
// telemetry batcher for the sim_hazards payload.
func (h *HazardManager) Active() []model.Hazard {
	out := make([]model.Hazard, 0, len(h.hazards))
	for _, hz := range h.hazards {
		out = append(out, hz)
	}
	return out
}

// Clear removes every hazard, used by SimulationEngine.ResetGame.
func (h *HazardManager) Clear() {
	h.hazards = make(map[string]model.Hazard)
}

func (h *HazardManager) publish(kind string, payload any) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(eventbus.Event{Kind: kind, Payload: payload})
}

func hazardID(n int) string {
	return "hz-" + strconv.Itoa(n)
}
