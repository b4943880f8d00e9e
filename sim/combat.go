package sim

import (
	"log/slog"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

// minHitFalloff floors the distance attenuation on a hit roll: a shot at
// the very edge of weapon range still has 20% of base accuracy.
const minHitFalloff = 0.2

// CombatSystem resolves weapon fire each tick: target acquisition,
// cooldown gating, ammo consumption, projectile flight, hit-chance rolls,
// and damage application across all four weapon classes.
type CombatSystem struct {
	weapons     *WeaponSystem
	bus         *eventbus.Bus
	log         *slog.Logger
	roll        func() float64 // injected for deterministic tests; defaults to math/rand
	projectiles projectileSet
	obstacles   []model.Obstacle
}

// NewCombatSystem wires a CombatSystem to the shared WeaponSystem and bus.
func NewCombatSystem(weapons *WeaponSystem, bus *eventbus.Bus, log *slog.Logger) *CombatSystem {
	if log == nil {
		log = slog.Default()
	}
	return &CombatSystem{weapons: weapons, bus: bus, log: log, roll: defaultRoll}
}

// SetObstacles installs the building footprints used for line-of-sight
// blocking during acquisition. Mirrored from SimulationEngine.SetObstacles.
func (c *CombatSystem) SetObstacles(obs []model.Obstacle) { c.obstacles = obs }

// ActiveProjectiles returns a snapshot of in-flight projectiles for
// telemetry and the late-join projectiles endpoint.
func (c *CombatSystem) ActiveProjectiles() []model.Projectile {
	return c.projectiles.active()
}

// Reset clears in-flight projectiles, used by SimulationEngine.ResetGame.
func (c *CombatSystem) Reset() {
	c.projectiles.clear()
}

// Tick runs one combat resolution pass over all live targets. targets is
// the authoritative slice owned by SimulationEngine; CombatSystem only
// mutates health/kills/status on it, never positions.
func (c *CombatSystem) Tick(dt float64, now float64, targets []*model.Target) {
	c.weapons.Tick(dt)

	byID := make(map[string]*model.Target, len(targets))
	for _, t := range targets {
		byID[t.TargetID] = t
	}
	lookup := func(id string) *model.Target { return byID[id] }

	c.resolveInflight(dt, now, targets, lookup)

	for _, shooter := range targets {
		if shooter.Status.Terminal() || !shooter.IsCombatant || shooter.WeaponRange <= 0 {
			continue
		}
		weapon := c.weapons.Weapon(shooter.TargetID)
		if weapon == nil {
			continue
		}
		if weapon.CooldownRemaining > 0 {
			weapon.CooldownRemaining -= dt
			continue
		}

		victim := c.acquire(shooter, targets)
		if victim == nil {
			continue
		}
		if !c.weapons.ConsumeAmmo(shooter.TargetID) {
			continue
		}
		weapon.CooldownRemaining = weapon.Cooldown
		c.fire(shooter, victim, weapon, targets, now)
	}
}

// acquire selects the closest live opposing combatant within weapon range
// with clear line of sight, breaking distance ties lexicographically by
// target ID so acquisition is deterministic across runs.
func (c *CombatSystem) acquire(shooter *model.Target, targets []*model.Target) *model.Target {
	var best *model.Target
	bestDist := -1.0
	for _, candidate := range targets {
		if candidate.TargetID == shooter.TargetID || candidate.Status.Terminal() || !candidate.IsCombatant {
			continue
		}
		if !isHostileTo(shooter, candidate) {
			continue
		}
		d := model.Dist(shooter.Position, candidate.Position)
		if d > shooter.WeaponRange {
			continue
		}
		if c.losBlocked(shooter.Position, candidate.Position) {
			continue
		}
		switch {
		case best == nil, d < bestDist:
			best, bestDist = candidate, d
		case d == bestDist && candidate.TargetID < best.TargetID:
			best = candidate
		}
	}
	return best
}

// losBlocked reports whether a building footprint sits between two points.
func (c *CombatSystem) losBlocked(from, to model.Vec2) bool {
	for _, obs := range c.obstacles {
		if obs.Blocks(from, to) {
			return true
		}
	}
	return false
}

// isHostileTo reports whether b is a valid target for a, per the
// friendly/hostile/neutral alliance matrix: friendly shoots hostile,
// hostile shoots friendly, nobody shoots neutral.
func isHostileTo(a, b *model.Target) bool {
	switch a.Alliance {
	case model.Friendly:
		return b.Alliance == model.Hostile
	case model.Hostile:
		return b.Alliance == model.Friendly
	default:
		return false
	}
}

// fire dispatches a shot by weapon class: beams resolve the same tick,
// everything else spawns a projectile resolved on arrival.
func (c *CombatSystem) fire(shooter, victim *model.Target, weapon *model.Weapon, targets []*model.Target, now float64) {
	c.publish("shot_fired", map[string]any{
		"shooter_id": shooter.TargetID, "target_id": victim.TargetID,
		"weapon": weapon.Name, "weapon_class": string(weapon.Class),
		"sim_time": now, "position": shooter.Position,
	})

	if weapon.Class == model.WeaponBeam {
		if c.hitRoll(weapon.Accuracy, model.Dist(shooter.Position, victim.Position), weapon.Range) {
			c.publish("beam_fired", map[string]any{
				"shooter_id": shooter.TargetID, "target_id": victim.TargetID,
			})
			c.applyDamage(victim, weapon.Damage, shooter.TargetID, weapon.Name, now, targets)
		} else {
			c.missed(shooter.TargetID, victim.TargetID, weapon.Name)
		}
		return
	}

	c.projectiles.spawn(shooter, victim, weapon, now)
}

// resolveInflight advances every projectile and resolves arrivals: an
// accuracy roll attenuated by launch distance for ballistic/missile, a
// guaranteed detonation with falloff blast damage for AoE.
func (c *CombatSystem) resolveInflight(dt, now float64, targets []*model.Target, lookup func(string) *model.Target) {
	arrived, expired := c.projectiles.advance(dt, now, lookup)
	for _, proj := range expired {
		c.missed(proj.ShooterID, proj.TargetID, "")
	}
	for _, proj := range arrived {
		shooter := lookup(proj.ShooterID)
		victim := lookup(proj.TargetID)
		launchDist := (proj.HitTimeEst - proj.SpawnTime) * proj.Velocity.Len()

		weaponName := ""
		accuracy := 1.0
		if shooter != nil {
			if w := c.weapons.Weapon(shooter.TargetID); w != nil {
				weaponName, accuracy = w.Name, w.Accuracy
			}
		}

		if proj.Class == model.WeaponAOE {
			c.detonate(proj, targets, now, weaponName)
			continue
		}
		if victim == nil || victim.Status.Terminal() {
			c.missed(proj.ShooterID, proj.TargetID, weaponName)
			continue
		}
		if c.hitRoll(accuracy, launchDist, proj.Range) {
			c.applyDamage(victim, proj.Damage, proj.ShooterID, weaponName, now, targets)
		} else {
			c.missed(proj.ShooterID, proj.TargetID, weaponName)
		}
	}
}

// detonate applies blast damage around proj's impact point, attenuated by
// 1-(d/blast_radius)^2, excluding the shooter from its own blast. A zero
// blast radius damages only a target standing at the impact point itself.
func (c *CombatSystem) detonate(proj *model.Projectile, targets []*model.Target, now float64, weaponName string) {
	c.publish("explosion", map[string]any{
		"shooter_id": proj.ShooterID, "position": proj.Current,
		"blast_radius": proj.BlastRadius, "sim_time": now,
	})
	for _, t := range targets {
		if t.TargetID == proj.ShooterID || t.Status.Terminal() || !t.IsCombatant {
			continue
		}
		d := model.Dist(proj.Current, t.Position)
		if proj.BlastRadius <= 0 {
			if d <= arrivalEpsilon {
				c.applyDamage(t, proj.Damage, proj.ShooterID, weaponName, now, targets)
			}
			continue
		}
		if d > proj.BlastRadius {
			continue
		}
		falloff := 1 - (d/proj.BlastRadius)*(d/proj.BlastRadius)
		c.applyDamage(t, proj.Damage*falloff, proj.ShooterID, weaponName, now, targets)
	}
}

// hitRoll rolls accuracy attenuated by distance: the further out the
// shot, the lower the chance, floored at minHitFalloff of base accuracy.
func (c *CombatSystem) hitRoll(accuracy, distance, weaponRange float64) bool {
	if accuracy <= 0 {
		return false
	}
	falloff := 1.0
	if weaponRange > 0 {
		falloff = clamp(1-distance/weaponRange, minHitFalloff, 1)
	}
	return c.roll() <= accuracy*falloff
}

func (c *CombatSystem) missed(shooterID, targetID, weaponName string) {
	c.publish("shot_missed", map[string]any{
		"shooter_id": shooterID, "target_id": targetID, "weapon": weaponName,
	})
}

func (c *CombatSystem) applyDamage(victim *model.Target, amount float64, shooterID, weaponName string, now float64, targets []*model.Target) {
	eliminated := victim.ApplyDamage(amount)
	c.publish("damage", map[string]any{
		"source_id": shooterID, "target_id": victim.TargetID,
		"amount": amount, "remaining": victim.Health,
	})
	if eliminated {
		for _, t := range targets {
			if t.TargetID == shooterID {
				t.Kills++
				break
			}
		}
		c.publish("target_eliminated", map[string]any{
			"target_id": victim.TargetID, "killer_id": shooterID,
			"weapon": weaponName, "sim_time": now, "alliance": string(victim.Alliance),
			"position": victim.Position,
		})
	}
}

func (c *CombatSystem) publish(kind string, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.Event{Kind: kind, Payload: payload})
}
