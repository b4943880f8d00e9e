// Package sim holds the tick-driven simulation: weapon/ammo state, combat
// resolution, pathfinding, hazards, sensors, adaptive difficulty, and the
// wave-based GameMode FSM that drives them all from SimulationEngine's
// single-writer tick loop.
package sim

import (
	"log/slog"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

// reloadDuration is how long an empty weapon takes to refill, per
// original_source/src/engine/simulation/weapons.py's WeaponSystem.
const reloadDuration = 3.0

// ammoLowThreshold triggers an "ammo_low" event below this fraction.
const ammoLowThreshold = 0.2

// WeaponSystem tracks per-unit weapon state (ammo, reload timers) and is
// the sole source of truth CombatSystem consults for damage/range/class.
type WeaponSystem struct {
	bus     *eventbus.Bus
	log     *slog.Logger
	weapons map[string]*model.Weapon
	reload  map[string]float64
}

// NewWeaponSystem returns an empty WeaponSystem publishing ammo events on bus.
func NewWeaponSystem(bus *eventbus.Bus, log *slog.Logger) *WeaponSystem {
	if log == nil {
		log = slog.Default()
	}
	return &WeaponSystem{
		bus:     bus,
		log:     log,
		weapons: make(map[string]*model.Weapon),
		reload:  make(map[string]float64),
	}
}

// Equip assigns the registry default weapon for assetType to targetID. A
// unit type with no combat stats gets no weapon (infinite-ammo legacy
// units never reach this path since CombatSystem only fires on combatants).
func (w *WeaponSystem) Equip(targetID, assetType string) {
	ut, ok := model.UnitTypeFor(assetType)
	if !ok || !ut.IsCombatant() {
		return
	}
	weapon := model.WeaponFromStats(ut.Combat)
	w.weapons[targetID] = &weapon
}

// Weapon returns the weapon assigned to targetID, or nil.
func (w *WeaponSystem) Weapon(targetID string) *model.Weapon {
	return w.weapons[targetID]
}

// ConsumeAmmo fires one round, returning false if the weapon is empty (a
// unit with no assigned weapon has infinite ammo and always returns true,
// matching the legacy no-weapon-system behavior in weapons.py).
func (w *WeaponSystem) ConsumeAmmo(targetID string) bool {
	weapon, ok := w.weapons[targetID]
	if !ok {
		return true
	}
	if weapon.Ammo <= 0 {
		return false
	}
	weapon.Ammo--
	switch {
	case weapon.Ammo == 0:
		w.publish("ammo_depleted", map[string]any{"target_id": targetID, "weapon_name": weapon.Name})
	case weapon.MaxAmmo > 0 && float64(weapon.Ammo)/float64(weapon.MaxAmmo) < ammoLowThreshold:
		w.publish("ammo_low", map[string]any{
			"target_id": targetID, "weapon_name": weapon.Name,
			"ammo_remaining": weapon.Ammo, "ammo_pct": weapon.AmmoPct(),
		})
	}
	return true
}

// AmmoPct returns the ammo fraction remaining for targetID, 1.0 if unequipped.
func (w *WeaponSystem) AmmoPct(targetID string) float64 {
	weapon, ok := w.weapons[targetID]
	if !ok {
		return 1.0
	}
	return weapon.AmmoPct()
}

// Tick starts a reload when a weapon hits zero ammo and refills it once
// the reload timer elapses.
func (w *WeaponSystem) Tick(dt float64) {
	for tid, weapon := range w.weapons {
		if weapon.Ammo <= 0 {
			if _, reloading := w.reload[tid]; !reloading {
				w.reload[tid] = reloadDuration
			}
		}
	}
	for tid, remaining := range w.reload {
		remaining -= dt
		if remaining <= 0 {
			delete(w.reload, tid)
			if weapon, ok := w.weapons[tid]; ok {
				weapon.Ammo = weapon.MaxAmmo
				w.publish("ammo_reloaded", map[string]any{
					"target_id": tid, "weapon_name": weapon.Name, "ammo": weapon.Ammo,
				})
			}
			continue
		}
		w.reload[tid] = remaining
	}
}

// IsReloading reports whether targetID's weapon is mid-reload.
func (w *WeaponSystem) IsReloading(targetID string) bool {
	_, ok := w.reload[targetID]
	return ok
}

// Reset clears all weapon assignments and reload timers. Engine.ResetGame
// does not call it.
func (w *WeaponSystem) Reset() {
	w.weapons = make(map[string]*model.Weapon)
	w.reload = make(map[string]float64)
}

func (w *WeaponSystem) publish(kind string, payload any) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(eventbus.Event{Kind: kind, Payload: payload})
}
