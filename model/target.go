package model

import "strings"

// Status is a target's lifecycle state.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusStationary  Status = "stationary"
	StatusActive      Status = "active"
	StatusMoving      Status = "moving"
	StatusPatrolling  Status = "patrolling"
	StatusReturning   Status = "returning"
	StatusEliminated  Status = "eliminated"
	StatusDestroyed   Status = "destroyed"
	StatusDespawned   Status = "despawned"
	StatusEscaped     Status = "escaped"
)

// Terminal reports whether the status marks a target as no longer live
// (ignored by sensors, combat acquisition, and the tracker's live queries).
func (s Status) Terminal() bool {
	switch s {
	case StatusEliminated, StatusDestroyed, StatusDespawned, StatusEscaped:
		return true
	default:
		return false
	}
}

// arrivalEpsilonMeters is how close a target must be to a waypoint to
// count as arrived.
const arrivalEpsilonMeters = 0.5

// Target is the single canonical per-entity record. Engine-owned targets
// are mutated only on the tick thread (or a single-writer API method);
// TargetTracker additionally holds read-only copies of externally sourced
// records.
type Target struct {
	// Identity
	TargetID  string
	Name      string
	Alliance  Alliance
	AssetType string

	// Spatial
	Position       Vec2
	Geo            *GeoPoint // nil until a geo-reference has been set
	Heading        float64   // degrees, 0=North, CW
	Speed          float64   // m/s
	Waypoints      []Vec2
	WaypointIndex  int
	LoopWaypoints  bool

	// Combat
	Health        float64
	MaxHealth     float64
	IsCombatant   bool
	WeaponRange   float64
	WeaponCooldown float64
	WeaponDamage  float64
	Kills         int
	SquadID       string
	FSMState      string

	// Power
	Battery   float64
	DrainRate float64

	// Lifecycle
	Status    Status
	SpawnedAt float64 // sim-monotonic seconds

	// eliminatedEmitted guards the "exactly once" target_eliminated invariant.
	eliminatedEmitted bool
}

// TypeName satisfies the generic `typed` constraint used by set helpers
// across the sim/tracker/npc packages.
func (t *Target) TypeName() string { return t.AssetType }

// NewTarget builds a Target from the unit type registry, applying its
// default combat/movement stats. Stationary categories get speed forced
// to zero.
func NewTarget(id, name string, alliance Alliance, assetType string, pos Vec2, spawnedAt float64) *Target {
	ut, ok := UnitTypeFor(assetType)
	t := &Target{
		TargetID:  id,
		Name:      name,
		Alliance:  alliance,
		AssetType: assetType,
		Position:  pos,
		Battery:   1.0,
		Status:    StatusIdle,
		SpawnedAt: spawnedAt,
		MaxHealth: 100,
		Health:    100,
	}
	if !ok {
		return t
	}
	if ut.Category == CategoryStationary {
		t.Status = StatusStationary
		t.Speed = 0
	} else {
		t.Speed = ut.Speed
	}
	t.DrainRate = ut.DrainRate
	if ut.IsCombatant() {
		t.IsCombatant = true
		t.WeaponRange = ut.Combat.WeaponRange
		t.WeaponDamage = ut.Combat.Damage
		t.WeaponCooldown = ut.Combat.Cooldown
	}
	return t
}

// IsStationary reports whether the target's registered asset type is a
// stationary category (turret, camera, sensor, ...).
func (t *Target) IsStationary() bool {
	ut, ok := UnitTypeFor(t.AssetType)
	return ok && ut.Category == CategoryStationary
}

// Tick advances the target toward its current waypoint at Speed m/s.
// It is pure on self: it reads no other target's state.
// Stationary targets never move; they only drain battery at the idle
// rate. Terminal-status targets are a no-op (a despawned/eliminated
// target never moves again).
func (t *Target) Tick(dt float64) {
	if t.Status.Terminal() {
		return
	}
	if t.IsStationary() {
		t.drainBattery(dt, false)
		return
	}

	moving := t.advanceWaypoint(dt)
	t.drainBattery(dt, moving)
}

func (t *Target) advanceWaypoint(dt float64) (moving bool) {
	if len(t.Waypoints) == 0 || t.WaypointIndex >= len(t.Waypoints) {
		if t.Status == StatusMoving || t.Status == StatusActive || t.Status == StatusReturning {
			t.Status = StatusIdle
		}
		return false
	}

	target := t.Waypoints[t.WaypointIndex]
	toTarget := target.Sub(t.Position)
	dist := toTarget.Len()

	if dist <= arrivalEpsilonMeters {
		t.Position = target
		t.WaypointIndex++
		if t.WaypointIndex >= len(t.Waypoints) {
			if t.LoopWaypoints {
				t.WaypointIndex = 0
			} else {
				t.Status = StatusIdle
				return false
			}
		}
		return true
	}

	t.Heading = HeadingDegrees(t.Position, target)
	step := t.Speed * dt
	if step >= dist {
		t.Position = target
	} else {
		t.Position = t.Position.Add(toTarget.Normalized().Scale(step))
	}
	return true
}

func (t *Target) drainBattery(dt float64, moving bool) {
	if t.DrainRate <= 0 {
		return
	}
	rate := t.DrainRate * 0.1
	if moving {
		rate = t.DrainRate
	}
	t.Battery -= rate * dt
	if t.Battery < 0 {
		t.Battery = 0
	}
}

// ApplyDamage applies amount of damage, clamping health to [0, MaxHealth]
// and transitioning to eliminated exactly once when health reaches zero.
// Returns true the first (and only) time this call crosses zero.
func (t *Target) ApplyDamage(amount float64) (justEliminated bool) {
	if t.Status.Terminal() {
		return false
	}
	t.Health -= amount
	if t.Health < 0 {
		t.Health = 0
	}
	if t.Health > t.MaxHealth {
		t.Health = t.MaxHealth
	}
	if t.Health <= 0 && !t.eliminatedEmitted {
		t.eliminatedEmitted = true
		t.Status = StatusEliminated
		return true
	}
	return false
}

// Dispatch assigns a new waypoint path and marks the target active. Moves
// are not rerouted mid-flight; hazards created after dispatch only affect
// future dispatch calls.
func (t *Target) Dispatch(waypoints []Vec2, loop bool) {
	if t.IsStationary() {
		return
	}
	t.Waypoints = waypoints
	t.WaypointIndex = 0
	t.LoopWaypoints = loop
	if len(waypoints) > 0 {
		t.Status = StatusActive
	}
}

// typed is the minimal interface the containsType/countType helpers need.
type typed interface {
	TypeName() string
}

// ContainsType reports whether any item's TypeName matches t, case-insensitive.
func ContainsType[T typed](items []T, want string) bool {
	for _, item := range items {
		if strings.EqualFold(item.TypeName(), want) {
			return true
		}
	}
	return false
}

// CountType counts items whose TypeName matches want, case-insensitive.
func CountType[T typed](items []T, want string) int {
	n := 0
	for _, item := range items {
		if strings.EqualFold(item.TypeName(), want) {
			n++
		}
	}
	return n
}
