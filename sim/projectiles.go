package sim

import (
	"math"
	"strconv"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

// Nominal muzzle velocities per weapon class, m/s. Beam weapons resolve
// instantly and never spawn a projectile.
const (
	ballisticSpeed = 40.0
	aoeShellSpeed  = 30.0
	missileSpeed   = 25.0
)

// missileTurnRate is a missile's maximum re-aim rate in degrees/second.
const missileTurnRate = 60.0

// projectileSpeedFor maps a weapon class to its nominal travel speed.
func projectileSpeedFor(class model.WeaponClass) float64 {
	switch class {
	case model.WeaponAOE:
		return aoeShellSpeed
	case model.WeaponMissile:
		return missileSpeed
	default:
		return ballisticSpeed
	}
}

// projectileSet owns the in-flight projectiles CombatSystem spawns each
// tick and resolves on arrival. It is tick-thread-only state.
type projectileSet struct {
	inflight []*model.Projectile
	nextID   int
}

// spawn launches a new projectile from shooter toward victim's current
// position and returns it. Missiles re-aim every tick; everything else
// flies the straight launch vector.
func (p *projectileSet) spawn(shooter, victim *model.Target, weapon *model.Weapon, now float64) *model.Projectile {
	p.nextID++
	speed := projectileSpeedFor(weapon.Class)
	dir := victim.Position.Sub(shooter.Position).Normalized()
	dist := model.Dist(shooter.Position, victim.Position)

	proj := &model.Projectile{
		ID:          "proj-" + strconv.Itoa(p.nextID),
		ShooterID:   shooter.TargetID,
		TargetID:    victim.TargetID,
		Origin:      shooter.Position,
		Current:     shooter.Position,
		Velocity:    dir.Scale(speed),
		Class:       weapon.Class,
		Damage:      weapon.Damage,
		BlastRadius: weapon.BlastRadius,
		Range:       weapon.Range,
		SpawnTime:   now,
		HitTimeEst:  now + dist/speed,
	}
	p.inflight = append(p.inflight, proj)
	return proj
}

// advance moves every in-flight projectile one tick and returns the ones
// that arrived (reached their launch aim point, or for missiles their
// tracked target) or expired. Arrived projectiles still carry their last
// position so AoE resolution can use the impact point.
func (p *projectileSet) advance(dt, now float64, lookup func(id string) *model.Target) (arrived, expired []*model.Projectile) {
	live := p.inflight[:0]
	for _, proj := range p.inflight {
		if proj.Class == model.WeaponMissile {
			if now-proj.SpawnTime >= proj.Range/missileSpeed {
				expired = append(expired, proj)
				continue
			}
			steerMissile(proj, dt, lookup(proj.TargetID))
		}

		proj.Current = proj.Current.Add(proj.Velocity.Scale(dt))

		if p.hasArrived(proj, lookup) {
			if proj.Class != model.WeaponMissile {
				// Land on the launch aim point, not the tick-step short of it.
				launchDist := (proj.HitTimeEst - proj.SpawnTime) * proj.Velocity.Len()
				proj.Current = proj.Origin.Add(proj.Velocity.Normalized().Scale(launchDist))
			}
			arrived = append(arrived, proj)
			continue
		}
		if model.Dist(proj.Origin, proj.Current) > proj.Range*1.5 {
			// Overshot well past weapon range with no impact: a dud.
			expired = append(expired, proj)
			continue
		}
		live = append(live, proj)
	}
	p.inflight = live
	return arrived, expired
}

// hasArrived checks whether the projectile has closed on its aim point: a
// missile arrives when within one tick-step of its tracked target, others
// when they reach the position the victim occupied at launch.
func (p *projectileSet) hasArrived(proj *model.Projectile, lookup func(id string) *model.Target) bool {
	step := proj.Velocity.Len() * 0.1 // one tick of travel at 10 Hz
	if step < arrivalEpsilon {
		step = arrivalEpsilon
	}
	if proj.Class == model.WeaponMissile {
		if t := lookup(proj.TargetID); t != nil {
			return model.Dist(proj.Current, t.Position) <= step
		}
		return true // target gone, detonate where we are
	}
	launchDist := (proj.HitTimeEst - proj.SpawnTime) * proj.Velocity.Len()
	return model.Dist(proj.Origin, proj.Current) >= launchDist-step/2
}

// arrivalEpsilon mirrors the waypoint arrival epsilon for impact checks.
const arrivalEpsilon = 0.5

// steerMissile re-aims proj's velocity toward the target's current
// position, limited to missileTurnRate degrees of heading change per
// second. A dead or missing target leaves the missile flying straight.
func steerMissile(proj *model.Projectile, dt float64, target *model.Target) {
	if target == nil || target.Status.Terminal() {
		return
	}
	want := target.Position.Sub(proj.Current)
	if want.Len() < 1e-9 {
		return
	}
	current := math.Atan2(proj.Velocity.Y, proj.Velocity.X)
	desired := math.Atan2(want.Y, want.X)
	delta := normalizeAngle(desired - current)
	maxTurn := missileTurnRate * math.Pi / 180 * dt
	if delta > maxTurn {
		delta = maxTurn
	} else if delta < -maxTurn {
		delta = -maxTurn
	}
	heading := current + delta
	speed := proj.Velocity.Len()
	proj.Velocity = model.Vec2{X: math.Cos(heading) * speed, Y: math.Sin(heading) * speed}
}

// normalizeAngle wraps an angle into (-pi, pi].
func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// active returns a copy of the in-flight projectile slice for telemetry
// and the late-join projectiles endpoint.
func (p *projectileSet) active() []model.Projectile {
	out := make([]model.Projectile, 0, len(p.inflight))
	for _, proj := range p.inflight {
		out = append(out, *proj)
	}
	return out
}

func (p *projectileSet) clear() {
	p.inflight = nil
}
