package sim

import (
	"testing"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

func TestEquipClonesTemplate(t *testing.T) {
	w := NewWeaponSystem(nil, nil)
	w.Equip("a", model.AssetTurret)
	w.Equip("b", model.AssetTurret)

	w.Weapon("a").Ammo = 1
	if got := w.Weapon("b").Ammo; got != 100 {
		t.Fatalf("unit b ammo = %d after mutating unit a; templates shared", got)
	}
}

func TestConsumeAmmoEvents(t *testing.T) {
	bus := eventbus.New(nil)
	depleted := bus.Subscribe("ammo_depleted", 0)
	defer depleted.Close()
	low := bus.Subscribe("ammo_low", 0)
	defer low.Close()

	w := NewWeaponSystem(bus, nil)
	w.Equip("t1", model.AssetHostilePerson) // 15 rounds
	for i := 0; i < 15; i++ {
		if !w.ConsumeAmmo("t1") {
			t.Fatalf("ConsumeAmmo failed with %d rounds left", 15-i)
		}
	}
	if w.ConsumeAmmo("t1") {
		t.Fatal("ConsumeAmmo succeeded on empty weapon")
	}

	if got := len(drainKinds(depleted)); got != 1 {
		t.Fatalf("ammo_depleted emitted %d times, want 1", got)
	}
	if got := len(drainKinds(low)); got == 0 {
		t.Fatal("ammo_low never emitted below 20%")
	}
}

func TestAmmoMonotoneNonIncreasingBetweenReloads(t *testing.T) {
	w := NewWeaponSystem(nil, nil)
	w.Equip("t1", model.AssetTurret)
	prev := w.Weapon("t1").Ammo
	for i := 0; i < 50; i++ {
		w.ConsumeAmmo("t1")
		cur := w.Weapon("t1").Ammo
		if cur > prev {
			t.Fatalf("ammo rose %d -> %d without a reload", prev, cur)
		}
		prev = cur
	}
}

func TestReloadRestoresAmmoAfterThreeSeconds(t *testing.T) {
	w := NewWeaponSystem(nil, nil)
	w.Equip("t1", model.AssetHostilePerson)
	for i := 0; i < 15; i++ {
		w.ConsumeAmmo("t1")
	}

	w.Tick(0.1) // starts the reload
	if !w.IsReloading("t1") {
		t.Fatal("empty weapon did not start reloading")
	}
	w.Tick(2.0)
	if got := w.Weapon("t1").Ammo; got != 0 {
		t.Fatalf("ammo refilled early: %d", got)
	}
	w.Tick(1.5)
	if got := w.Weapon("t1").Ammo; got != 15 {
		t.Fatalf("ammo after reload = %d, want 15", got)
	}
	if w.IsReloading("t1") {
		t.Fatal("reload timer still active after completion")
	}
}

func TestReloadEmitsAmmoReloaded(t *testing.T) {
	bus := eventbus.New(nil)
	reloaded := bus.Subscribe("ammo_reloaded", 0)
	defer reloaded.Close()

	w := NewWeaponSystem(bus, nil)
	w.Equip("t1", model.AssetHostilePerson)
	for i := 0; i < 15; i++ {
		w.ConsumeAmmo("t1")
	}
	w.Tick(0.1)
	w.Tick(3.0)
	if got := len(drainKinds(reloaded)); got != 1 {
		t.Fatalf("ammo_reloaded emitted %d times, want 1", got)
	}
}

func TestUnequippedUnitHasInfiniteAmmo(t *testing.T) {
	w := NewWeaponSystem(nil, nil)
	for i := 0; i < 1000; i++ {
		if !w.ConsumeAmmo("ghost") {
			t.Fatal("unequipped unit ran out of ammo")
		}
	}
	if got := w.AmmoPct("ghost"); got != 1.0 {
		t.Fatalf("unequipped ammo pct = %v, want 1.0", got)
	}
}
