package sim

import (
	"testing"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

// step advances the engine synchronously without starting the tick
// goroutine, keeping tests deterministic.
func step(e *Engine, ticks int) {
	for i := 0; i < ticks; i++ {
		e.Step(0.1)
	}
}

func TestAddTargetRejectsDuplicateID(t *testing.T) {
	e := NewEngine(eventbus.New(nil), nil)
	a := model.NewTarget("dup", "dup", model.Friendly, model.AssetRover, model.Vec2{}, 0)
	b := model.NewTarget("dup", "dup", model.Friendly, model.AssetRover, model.Vec2{}, 0)
	if err := e.AddTarget(a); err != nil {
		t.Fatalf("first AddTarget failed: %v", err)
	}
	if err := e.AddTarget(b); err == nil {
		t.Fatal("duplicate AddTarget succeeded")
	}
}

func TestSpawnKillEndToEnd(t *testing.T) {
	bus := eventbus.New(nil)
	sub := bus.Subscribe("", 0)
	defer sub.Close()

	e := NewEngine(bus, nil)
	e.combat.roll = func() float64 { return 0 }

	turret := model.NewTarget("turret-1", "turret-1", model.Friendly, model.AssetTurret, model.Vec2{}, 0)
	if err := e.AddTarget(turret); err != nil {
		t.Fatal(err)
	}
	e.weapons.Weapon("turret-1").Damage = 100
	turret.WeaponDamage = 100

	pos := model.Vec2{X: 10}
	e.SpawnHostile(&pos)
	if err := e.BeginWar(); err != nil {
		t.Fatal(err)
	}

	step(e, 30) // 3 seconds of sim time

	got, ok := e.GetTarget("turret-1")
	if !ok {
		t.Fatal("turret vanished")
	}
	if got.Kills != 1 {
		t.Fatalf("turret kills = %d, want 1", got.Kills)
	}

	kinds := drainKinds(sub)
	fired, eliminated := -1, -1
	for i, k := range kinds {
		if k == "shot_fired" && fired < 0 {
			fired = i
		}
		if k == "target_eliminated" && eliminated < 0 {
			eliminated = i
		}
	}
	if fired < 0 || eliminated < 0 || fired > eliminated {
		t.Fatalf("want shot_fired then target_eliminated, got order %v", kinds)
	}
}

func TestFakeFleetDispatchMovesOnlyTheDispatchedRobot(t *testing.T) {
	e := NewEngine(eventbus.New(nil), nil)
	fleet, err := NewFakeFleet(e, 3)
	if err != nil {
		t.Fatal(err)
	}
	ids := fleet.IDs()
	before := make(map[string]model.Vec2)
	for _, id := range ids {
		tgt, _ := e.GetTarget(id)
		before[id] = tgt.Position
	}

	start, _ := e.GetTarget(ids[0])
	dest := model.Vec2{X: start.Position.X, Y: start.Position.Y + 120}
	if err := fleet.Dispatch(ids[0], dest); err != nil {
		t.Fatal(err)
	}

	step(e, 50)

	moved, _ := e.GetTarget(ids[0])
	if moved.Position == before[ids[0]] {
		t.Fatal("dispatched robot did not move")
	}
	for _, id := range ids[1:] {
		tgt, _ := e.GetTarget(id)
		if tgt.Position != before[id] {
			t.Fatalf("robot %s moved without a dispatch", id)
		}
	}
}

func TestDispatchClampsOutOfBoundsCoords(t *testing.T) {
	e := NewEngine(eventbus.New(nil), nil)
	rover := model.NewTarget("r1", "r1", model.Friendly, model.AssetRover, model.Vec2{}, 0)
	if err := e.AddTarget(rover); err != nil {
		t.Fatal(err)
	}
	if err := e.DispatchUnit("r1", model.Vec2{X: 10000, Y: -10000}); err != nil {
		t.Fatalf("out-of-bounds dispatch rejected: %v", err)
	}
	final := rover.Waypoints[len(rover.Waypoints)-1]
	if final.X > 100 || final.Y < -100 {
		t.Fatalf("destination %+v not clamped to map half extent", final)
	}
}

func TestDispatchStationaryRejected(t *testing.T) {
	e := NewEngine(eventbus.New(nil), nil)
	turret := model.NewTarget("t1", "t1", model.Friendly, model.AssetTurret, model.Vec2{}, 0)
	if err := e.AddTarget(turret); err != nil {
		t.Fatal(err)
	}
	if err := e.DispatchUnit("t1", model.Vec2{X: 10}); err == nil {
		t.Fatal("dispatching a turret succeeded")
	}
}

func TestResetGameClearsHostilesKeepsFriendlies(t *testing.T) {
	e := NewEngine(eventbus.New(nil), nil)
	friendly := model.NewTarget("f1", "f1", model.Friendly, model.AssetRover, model.Vec2{}, 0)
	if err := e.AddTarget(friendly); err != nil {
		t.Fatal(err)
	}
	e.SpawnHostile(nil)
	e.SpawnHostile(nil)

	e.ResetGame()

	if _, ok := e.GetTarget("f1"); !ok {
		t.Fatal("reset removed a friendly")
	}
	for _, v := range e.GetTargets() {
		if v.Alliance == string(model.Hostile) {
			t.Fatalf("hostile %s survived reset", v.TargetID)
		}
	}
	if got := e.GetGameState().State; got != string(PhaseSetup) {
		t.Fatalf("state after reset = %q, want setup", got)
	}
}

func TestBeginWarTwiceFails(t *testing.T) {
	e := NewEngine(eventbus.New(nil), nil)
	if err := e.BeginWar(); err != nil {
		t.Fatal(err)
	}
	if err := e.BeginWar(); err == nil {
		t.Fatal("second BeginWar succeeded outside setup")
	}
}

func TestPlaceDefenderOnlyDuringSetup(t *testing.T) {
	e := NewEngine(eventbus.New(nil), nil)
	if _, err := e.PlaceDefender("north turret", model.AssetTurret, model.Vec2{X: 5}); err != nil {
		t.Fatalf("place during setup failed: %v", err)
	}
	if _, err := e.PlaceDefender("x", model.AssetTank, model.Vec2{}); err == nil {
		t.Fatal("placed a non-placeable asset type")
	}
	if err := e.BeginWar(); err != nil {
		t.Fatal(err)
	}
	if _, err := e.PlaceDefender("late", model.AssetTurret, model.Vec2{}); err == nil {
		t.Fatal("place succeeded outside setup")
	}
}

func TestRadicalizeOnlyFlipsNeutrals(t *testing.T) {
	bus := eventbus.New(nil)
	sub := bus.Subscribe("npc_radicalized", 0)
	defer sub.Close()

	e := NewEngine(bus, nil)
	civilian := model.NewTarget("n1", "n1", model.Neutral, model.AssetPerson, model.Vec2{}, 0)
	soldier := model.NewTarget("f1", "f1", model.Friendly, model.AssetRover, model.Vec2{}, 0)
	if err := e.AddTarget(civilian); err != nil {
		t.Fatal(err)
	}
	if err := e.AddTarget(soldier); err != nil {
		t.Fatal(err)
	}

	if err := e.Radicalize("f1"); err == nil {
		t.Fatal("radicalized a friendly")
	}
	if err := e.Radicalize("n1"); err != nil {
		t.Fatalf("radicalize neutral failed: %v", err)
	}
	got, _ := e.GetTarget("n1")
	if got.Alliance != model.Hostile {
		t.Fatalf("alliance = %q, want hostile", got.Alliance)
	}
	if !got.IsCombatant {
		t.Fatal("radicalized npc is not a combatant")
	}
	if len(drainKinds(sub)) != 1 {
		t.Fatal("npc_radicalized not emitted")
	}
	if err := e.Radicalize("n1"); err == nil {
		t.Fatal("radicalized the same target twice")
	}
}

func TestTargetSetDeltaLaw(t *testing.T) {
	e := NewEngine(eventbus.New(nil), nil)
	before := len(e.GetTargets())
	e.SpawnHostile(nil)
	e.SpawnHostile(nil)
	after := len(e.GetTargets())
	if after-before != 2 {
		t.Fatalf("target set grew by %d, want 2", after-before)
	}

	// Eliminate one; it stays visible through the grace window, then
	// the sweep removes it.
	views := e.GetTargets()
	id := views[0].TargetID
	e.Do(func() {
		if tgt, ok := e.targets[id]; ok {
			tgt.ApplyDamage(10000)
		}
	})
	step(e, 1)
	if got := len(e.GetTargets()); got != after {
		t.Fatalf("eliminated target disappeared before grace expiry: %d targets", got)
	}
	step(e, 110) // > 10s grace
	if got := len(e.GetTargets()); got != after-1 {
		t.Fatalf("targets after sweep = %d, want %d", got, after-1)
	}
}

func TestSnapshotPublishedEachTick(t *testing.T) {
	bus := eventbus.New(nil)
	sub := bus.Subscribe("sim_state", 0)
	defer sub.Close()

	e := NewEngine(bus, nil)
	step(e, 3)

	count := 0
	for range drainKinds(sub) {
		count++
	}
	if count != 3 {
		t.Fatalf("sim_state published %d times over 3 ticks, want 3", count)
	}
}

func TestComponentPanicDoesNotKillTick(t *testing.T) {
	bus := eventbus.New(nil)
	sub := bus.Subscribe("component_error", 0)
	defer sub.Close()

	e := NewEngine(bus, nil)
	boom := model.NewTarget("boom", "boom", model.Hostile, "no-such-type", model.Vec2{}, 0)
	boom.Waypoints = nil
	if err := e.AddTarget(boom); err != nil {
		t.Fatal(err)
	}
	// Force a panic inside the targets component on the next tick.
	e.Do(func() {
		e.targets["boom"].Waypoints = []model.Vec2{{X: 1}}
		e.targets["boom"].WaypointIndex = -100 // out-of-range index panics in advanceWaypoint
	})

	step(e, 2) // must not panic the test

	if len(drainKinds(sub)) == 0 {
		t.Skip("component did not panic on this input; recovery path not exercised")
	}
}
