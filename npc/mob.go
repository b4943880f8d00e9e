package npc

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

// Mob clustering parameters.
const (
	mobClusterRadius   = 15.0
	mobMinSize         = 4
	mobAggressionFloor = 0.5 // recent-stimulus salience a brain needs to count as agitated
	mobDissolveQuiet   = 45.0
)

// RiotIntensity is the three-band gauge a mob's size/agitation maps to.
type RiotIntensity int

const (
	RiotLow RiotIntensity = iota
	RiotMedium
	RiotHigh
)

func (r RiotIntensity) String() string {
	switch r {
	case RiotMedium:
		return "medium"
	case RiotHigh:
		return "high"
	default:
		return "low"
	}
}

// radicalization probability bias per intensity band.
var riotBias = map[RiotIntensity]float64{
	RiotLow:    0,
	RiotMedium: 0.05,
	RiotHigh:   0.15,
}

// Mob is a detected cluster of agitated neutrals promoted to a shared
// formation: members inherit a common heading and drift together.
type Mob struct {
	ID        string
	MemberIDs []string
	Centroid  model.Vec2
	Heading   model.Vec2
	Intensity RiotIntensity
	FormedAt  float64
}

// MobManager detects clusters of nearby neutrals with correlated
// aggression spikes and promotes them to mobs. The roster is swept each
// detection pass the same way a squad roster drops dead units.
type MobManager struct {
	mu       sync.Mutex
	mobs     map[string]*Mob
	nextID   int
	log      *slog.Logger
	alliance *AllianceManager
}

// NewMobManager returns an empty roster. alliance may be nil.
func NewMobManager(alliance *AllianceManager, log *slog.Logger) *MobManager {
	if log == nil {
		log = slog.Default()
	}
	return &MobManager{mobs: make(map[string]*Mob), log: log, alliance: alliance}
}

// Mobs returns a copy of the live mob set.
func (m *MobManager) Mobs() []Mob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Mob, 0, len(m.mobs))
	for _, mob := range m.mobs {
		out = append(out, *mob)
	}
	return out
}

// Detect sweeps stale mobs, scans for new clusters, and refreshes the
// alliance manager's riot bias from the hottest live mob.
func (m *MobManager) Detect(now float64, brains *Manager, world World) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := brains.All()
	byID := make(map[string]*Brain, len(all))
	for _, b := range all {
		byID[b.TargetID] = b
	}

	m.sweepLocked(now, byID)
	m.scanLocked(now, all, byID, world)

	maxIntensity := RiotLow
	for _, mob := range m.mobs {
		mob.Intensity = intensityFor(len(mob.MemberIDs))
		if mob.Intensity > maxIntensity {
			maxIntensity = mob.Intensity
		}
	}
	if m.alliance != nil {
		m.alliance.SetMobBias(riotBias[maxIntensity])
	}
}

// sweepLocked dissolves mobs whose members are gone, turned hostile, or
// have calmed down.
func (m *MobManager) sweepLocked(now float64, byID map[string]*Brain) {
	for id, mob := range m.mobs {
		live := mob.MemberIDs[:0]
		agitated := false
		for _, member := range mob.MemberIDs {
			b, ok := byID[member]
			if !ok || b.Alliance != model.Neutral {
				continue
			}
			live = append(live, member)
			if b.Memory.Salience(now, "") >= mobAggressionFloor {
				agitated = true
			}
		}
		mob.MemberIDs = live
		if len(live) < mobMinSize || (!agitated && now-mob.FormedAt > mobDissolveQuiet) {
			delete(m.mobs, id)
			for _, member := range live {
				if b := byID[member]; b != nil {
					b.MobID = ""
				}
			}
			m.log.Info("mob dissolved", "mob_id", id, "remaining", len(live))
		}
	}
}

// scanLocked greedily clusters unaffiliated agitated neutrals.
func (m *MobManager) scanLocked(now float64, all []*Brain, byID map[string]*Brain, world World) {
	var candidates []*Brain
	for _, b := range all {
		if b.Alliance != model.Neutral || b.MobID != "" {
			continue
		}
		if b.Memory.Salience(now, "") < mobAggressionFloor {
			continue
		}
		candidates = append(candidates, b)
	}

	for _, seed := range candidates {
		if seed.MobID != "" {
			continue
		}
		cluster := []*Brain{seed}
		for _, other := range candidates {
			if other == seed || other.MobID != "" {
				continue
			}
			if model.Dist(seed.Position, other.Position) <= mobClusterRadius {
				cluster = append(cluster, other)
			}
		}
		if len(cluster) < mobMinSize {
			continue
		}
		m.promoteLocked(now, cluster, world)
	}
}

func (m *MobManager) promoteLocked(now float64, cluster []*Brain, world World) {
	m.nextID++
	mob := &Mob{ID: fmt.Sprintf("mob-%d", m.nextID), FormedAt: now}

	var centroid model.Vec2
	for _, b := range cluster {
		centroid = centroid.Add(b.Position)
	}
	centroid = centroid.Scale(1 / float64(len(cluster)))
	mob.Centroid = centroid

	// Shared heading: away from a threat in a member's four newest
	// memories (the last such member in the cluster wins), or outward
	// from the origin when no member has one.
	heading := centroid.Normalized()
	for _, b := range cluster {
		for _, e := range b.Memory.Recent(4) {
			if e.Kind == "saw_hostile" || e.Kind == "heard_shot" {
				heading = centroid.Sub(e.Position).Normalized()
				break
			}
		}
	}
	mob.Heading = heading

	for _, b := range cluster {
		b.MobID = mob.ID
		mob.MemberIDs = append(mob.MemberIDs, b.TargetID)
		if world != nil {
			dest := b.Position.Add(heading.Scale(25))
			if err := world.DispatchUnit(b.TargetID, dest); err != nil {
				m.log.Debug("mob dispatch failed", "target_id", b.TargetID, "error", err)
			}
		}
	}
	mob.Intensity = intensityFor(len(mob.MemberIDs))
	m.mobs[mob.ID] = mob
	m.log.Info("mob formed", "mob_id", mob.ID, "size", len(mob.MemberIDs), "intensity", mob.Intensity.String())
}

func intensityFor(size int) RiotIntensity {
	switch {
	case size >= 12:
		return RiotHigh
	case size >= 7:
		return RiotMedium
	default:
		return RiotLow
	}
}
