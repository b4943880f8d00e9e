// Package npc gives person/vehicle/animal targets a mind: a personality
// vector sampled at spawn, a decaying short-term memory, an FSM whose
// transition guards are compiled expressions, mob formation, a gated
// neutral-to-hostile radicalization path, daily routines, and a
// rate-limited LLM thinking hook with a behavior-tree fallback.
//
// Everything here runs off the engine tick thread. Brains consume bus
// events and state snapshots; anything that must mutate engine state
// goes back through the World interface, whose implementations enqueue
// onto the engine's command channel.
package npc

import (
	"log/slog"
	"sync"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

// World is the narrow slice of engine API the NPC layer commands. The
// sim.Engine satisfies it directly.
type World interface {
	DispatchUnit(id string, dest model.Vec2) error
	Radicalize(id string) error
	GetTarget(id string) (model.Target, bool)
}

// Brain is the live per-NPC state. Fields are guarded by the owning
// Manager's mutex; the think scheduler copies what it needs before
// going async.
type Brain struct {
	TargetID    string
	AssetType   string
	Personality model.Personality
	Memory      *DecayMemory
	State       string
	LastThink   float64 // sim time of the last LLM think; 0 until the first
	MobID       string
	RoutineID   string

	// Position mirrors the target's last snapshot position so reactors
	// can radius-filter without calling back into the engine.
	Position model.Vec2
	Alliance model.Alliance
}

// Manager owns every attached brain and the subsystems that operate on
// them. Attach/Detach follow target spawn/elimination.
type Manager struct {
	mu     sync.RWMutex
	brains map[string]*Brain
	log    *slog.Logger
	fsm    *FSM
}

// NewManager returns an empty brain registry using the default FSM set.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{brains: make(map[string]*Brain), log: log, fsm: DefaultFSM(log)}
}

// brainAssetType reports whether an asset type gets a brain on spawn.
func brainAssetType(assetType string) bool {
	switch assetType {
	case model.AssetPerson, model.AssetHostilePerson, model.AssetHostileLeader,
		model.AssetVehicle, model.AssetHostileVehicle, model.AssetAnimal:
		return true
	default:
		return false
	}
}

// Attach creates a brain for the target if its asset type carries one.
func (m *Manager) Attach(v model.TargetView) *Brain {
	if !brainAssetType(v.AssetType) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.brains[v.TargetID]; ok {
		return b
	}
	b := &Brain{
		TargetID:    v.TargetID,
		AssetType:   v.AssetType,
		Personality: SamplePersonality(v.AssetType),
		Memory:      NewDecayMemory(64),
		State:       initialState(v.AssetType),
		Position:    v.Position,
		Alliance:    model.Alliance(v.Alliance),
	}
	m.brains[v.TargetID] = b
	m.log.Debug("brain attached", "target_id", v.TargetID, "asset_type", v.AssetType)
	return b
}

// Detach drops a brain on elimination or despawn.
func (m *Manager) Detach(targetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.brains, targetID)
}

// Get returns the brain for targetID, or nil.
func (m *Manager) Get(targetID string) *Brain {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.brains[targetID]
}

// All returns the live brains. The slice is fresh; the pointers are shared.
func (m *Manager) All() []*Brain {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Brain, 0, len(m.brains))
	for _, b := range m.brains {
		out = append(out, b)
	}
	return out
}

// SyncPositions refreshes each brain's mirrored position/alliance from a
// state snapshot and detaches brains whose targets are gone or terminal.
func (m *Manager) SyncPositions(snap model.StateSnapshot) {
	live := make(map[string]model.TargetView, len(snap.Targets))
	for _, v := range snap.Targets {
		live[v.TargetID] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, b := range m.brains {
		v, ok := live[id]
		if !ok || model.Status(v.Status).Terminal() {
			delete(m.brains, id)
			continue
		}
		b.Position = v.Position
		b.Alliance = model.Alliance(v.Alliance)
	}
	for id, v := range live {
		if _, ok := m.brains[id]; !ok && brainAssetType(v.AssetType) && !model.Status(v.Status).Terminal() {
			b := &Brain{
				TargetID:    v.TargetID,
				AssetType:   v.AssetType,
				Personality: SamplePersonality(v.AssetType),
				Memory:      NewDecayMemory(64),
				State:       initialState(v.AssetType),
				Position:    v.Position,
				Alliance:    model.Alliance(v.Alliance),
			}
			m.brains[id] = b
		}
	}
}

// Step runs one FSM evaluation over every brain at the given sim time.
func (m *Manager) Step(now float64, world World) {
	for _, b := range m.All() {
		m.fsm.Evaluate(b, now, world)
	}
}

func initialState(assetType string) string {
	switch assetType {
	case model.AssetHostilePerson, model.AssetHostileLeader, model.AssetHostileVehicle:
		return StateAdvancing
	case model.AssetAnimal:
		return StateWandering
	default:
		return StateWandering
	}
}
