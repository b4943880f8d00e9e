package model

import (
	"math"
	"testing"
)

func TestTickAdvancesTowardWaypoint(t *testing.T) {
	tgt := NewTarget("r1", "r1", Friendly, AssetRover, Vec2{}, 0)
	tgt.Dispatch([]Vec2{{X: 10, Y: 0}}, false)

	tgt.Tick(1.0) // rover speed 2.0 m/s
	if math.Abs(tgt.Position.X-2.0) > 1e-9 || tgt.Position.Y != 0 {
		t.Fatalf("position after 1s = %+v, want (2, 0)", tgt.Position)
	}
	if tgt.Heading != 90 {
		t.Fatalf("heading = %v, want 90 (due east)", tgt.Heading)
	}
}

func TestTickArrivalAdvancesIndexAndIdles(t *testing.T) {
	tgt := NewTarget("r1", "r1", Friendly, AssetRover, Vec2{}, 0)
	tgt.Dispatch([]Vec2{{X: 1, Y: 0}, {X: 2, Y: 0}}, false)

	for i := 0; i < 50; i++ {
		tgt.Tick(0.1)
	}
	if tgt.Status != StatusIdle {
		t.Fatalf("status after exhausting waypoints = %q, want idle", tgt.Status)
	}
	if Dist(tgt.Position, Vec2{X: 2, Y: 0}) > arrivalEpsilonMeters {
		t.Fatalf("final position = %+v, want near (2, 0)", tgt.Position)
	}
}

func TestTickLoopWaypointsWraps(t *testing.T) {
	tgt := NewTarget("r1", "r1", Friendly, AssetRover, Vec2{}, 0)
	tgt.Dispatch([]Vec2{{X: 1, Y: 0}, {X: 0, Y: 0}}, true)

	for i := 0; i < 200; i++ {
		tgt.Tick(0.1)
	}
	if tgt.Status == StatusIdle {
		t.Fatal("looping target went idle")
	}
}

func TestStationaryTargetNeverMoves(t *testing.T) {
	for _, assetType := range []string{AssetTurret, AssetCamera, AssetSensor} {
		tgt := NewTarget("s1", "s1", Friendly, assetType, Vec2{X: 5, Y: 5}, 0)
		tgt.Dispatch([]Vec2{{X: 50, Y: 50}}, false)
		for i := 0; i < 100; i++ {
			tgt.Tick(0.1)
		}
		if tgt.Position != (Vec2{X: 5, Y: 5}) {
			t.Errorf("%s moved to %+v", assetType, tgt.Position)
		}
		if tgt.Speed != 0 {
			t.Errorf("%s speed = %v, want 0", assetType, tgt.Speed)
		}
	}
}

func TestBatteryDrainsFasterWhenMoving(t *testing.T) {
	moving := NewTarget("a", "a", Friendly, AssetRover, Vec2{}, 0)
	moving.Dispatch([]Vec2{{X: 1000, Y: 0}}, false)
	idle := NewTarget("b", "b", Friendly, AssetRover, Vec2{}, 0)

	for i := 0; i < 100; i++ {
		moving.Tick(0.1)
		idle.Tick(0.1)
	}
	movingDrain := 1.0 - moving.Battery
	idleDrain := 1.0 - idle.Battery
	if movingDrain <= idleDrain {
		t.Fatalf("moving drain %v not greater than idle drain %v", movingDrain, idleDrain)
	}
	ratio := movingDrain / idleDrain
	if math.Abs(ratio-10) > 0.5 {
		t.Fatalf("drain ratio = %v, want ~10 (idle drains at 10%%)", ratio)
	}
}

func TestApplyDamageClampsAndEliminatesOnce(t *testing.T) {
	tgt := NewTarget("h1", "h1", Hostile, AssetHostilePerson, Vec2{}, 0)

	if eliminated := tgt.ApplyDamage(30); eliminated {
		t.Fatal("30 damage on 100 health should not eliminate")
	}
	if tgt.Health != 70 {
		t.Fatalf("health = %v, want 70", tgt.Health)
	}

	first := tgt.ApplyDamage(200)
	if !first {
		t.Fatal("lethal damage did not report elimination")
	}
	if tgt.Health != 0 {
		t.Fatalf("health = %v, want clamped to 0", tgt.Health)
	}
	if tgt.Status != StatusEliminated {
		t.Fatalf("status = %q, want eliminated", tgt.Status)
	}

	if again := tgt.ApplyDamage(50); again {
		t.Fatal("second lethal hit reported elimination twice")
	}
}

func TestHealthNeverExceedsMax(t *testing.T) {
	tgt := NewTarget("h1", "h1", Hostile, AssetHostilePerson, Vec2{}, 0)
	tgt.ApplyDamage(-500) // healing overshoot
	if tgt.Health > tgt.MaxHealth {
		t.Fatalf("health %v exceeds max %v", tgt.Health, tgt.MaxHealth)
	}
}

func TestCombatantInvariant(t *testing.T) {
	for _, ut := range AllUnitTypes() {
		tgt := NewTarget("x", "x", Friendly, ut.TypeID, Vec2{}, 0)
		if tgt.WeaponRange > 0 && !tgt.IsCombatant {
			t.Errorf("%s: weapon range %v but not combatant", ut.TypeID, tgt.WeaponRange)
		}
	}
}

func TestContainsAndCountType(t *testing.T) {
	targets := []*Target{
		NewTarget("a", "a", Hostile, AssetHostilePerson, Vec2{}, 0),
		NewTarget("b", "b", Hostile, AssetHostilePerson, Vec2{}, 0),
		NewTarget("c", "c", Friendly, AssetRover, Vec2{}, 0),
	}
	if !ContainsType(targets, "HOSTILE_PERSON") {
		t.Fatal("case-insensitive ContainsType failed")
	}
	if got := CountType(targets, "hostile_person"); got != 2 {
		t.Fatalf("CountType = %d, want 2", got)
	}
}
