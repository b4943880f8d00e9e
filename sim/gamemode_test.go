package sim

import (
	"testing"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

// spawnRecorder is a SpawnFunc that materializes targets into its own
// slice so GameMode tests can run without an engine.
type spawnRecorder struct {
	targets []*model.Target
	nextID  int
}

func (s *spawnRecorder) spawn(assetType string, alliance model.Alliance, pos model.Vec2, healthBonus, speedBonus float64) *model.Target {
	s.nextID++
	t := model.NewTarget(
		string(alliance)+"-"+assetType+"-"+string(rune('0'+s.nextID)),
		assetType, alliance, assetType, pos, 0)
	s.targets = append(s.targets, t)
	return t
}

func oneWaveScenario(count int) *model.Scenario {
	return &model.Scenario{
		Name:          "test",
		MapHalfExtent: 100,
		Waves: []model.Wave{{
			Index: 0,
			Name:  "first",
			SpawnGroups: []model.SpawnGroup{{
				AssetType:     model.AssetHostilePerson,
				Count:         count,
				SpawnInterval: 0.1,
				Edge:          model.EdgeNorth,
			}},
		}},
	}
}

func TestBeginWarOnlyFromSetup(t *testing.T) {
	g := NewGameMode(nil, nil, nil, nil)
	if !g.BeginWar() {
		t.Fatal("BeginWar from setup failed")
	}
	if g.Phase() != PhaseCountdown {
		t.Fatalf("phase = %q, want countdown", g.Phase())
	}
	if g.BeginWar() {
		t.Fatal("BeginWar succeeded outside setup")
	}
}

func TestCountdownToActiveAfterFiveSeconds(t *testing.T) {
	rec := &spawnRecorder{}
	g := NewGameMode(nil, nil, NewDifficultyScaler(), rec.spawn)
	g.LoadScenario(oneWaveScenario(2))
	g.BeginWar()

	for i := 0; i < 49; i++ {
		g.Tick(0.1, float64(i)*0.1, rec.targets)
	}
	if g.Phase() != PhaseCountdown {
		t.Fatalf("phase before 5s = %q, want countdown", g.Phase())
	}
	g.Tick(0.1, 5.0, rec.targets)
	if g.Phase() != PhaseActive {
		t.Fatalf("phase after 5s = %q, want active", g.Phase())
	}
}

func TestWaveSpawnsAndVictory(t *testing.T) {
	bus := eventbus.New(nil)
	victory := bus.Subscribe("game_victory", 0)
	defer victory.Close()

	rec := &spawnRecorder{}
	g := NewGameMode(bus, nil, NewDifficultyScaler(), rec.spawn)
	g.LoadScenario(oneWaveScenario(3))
	g.BeginWar()

	now := 0.0
	for i := 0; i < 200; i++ {
		g.Tick(0.1, now, rec.targets)
		now += 0.1
		// Cull hostiles as they spawn, simulating perfect defense.
		for _, tgt := range rec.targets {
			if tgt.Alliance == model.Hostile {
				tgt.ApplyDamage(1000)
			}
		}
	}

	if got := len(rec.targets); got != 3 {
		t.Fatalf("spawned %d hostiles, want 3", got)
	}
	if g.Phase() != PhaseVictory {
		t.Fatalf("phase = %q, want victory after clearing the only wave", g.Phase())
	}
	if len(drainKinds(victory)) != 1 {
		t.Fatal("game_victory not emitted")
	}
}

func TestDefeatWhenDefendersEliminated(t *testing.T) {
	rec := &spawnRecorder{}
	g := NewGameMode(nil, nil, nil, rec.spawn)
	s := oneWaveScenario(1)
	s.Defenders = []model.ScenarioSeed{{AssetType: model.AssetTurret, Position: model.Vec2{}}}
	g.LoadScenario(s)
	g.BeginWar()

	defender := model.NewTarget("turret-1", "turret-1", model.Friendly, model.AssetTurret, model.Vec2{}, 0)
	live := func() []*model.Target {
		return append(append([]*model.Target{}, rec.targets...), defender)
	}

	now := 0.0
	for i := 0; i < 60; i++ {
		g.Tick(0.1, now, live())
		now += 0.1
	}
	if g.Phase() != PhaseActive {
		t.Fatalf("phase = %q, want active while defender lives", g.Phase())
	}

	defender.ApplyDamage(1000)
	g.Tick(0.1, now, live())
	if g.Phase() != PhaseDefeat {
		t.Fatalf("phase = %q, want defeat after last defender fell", g.Phase())
	}
}

func TestEscapeLimitTriggersDefeat(t *testing.T) {
	rec := &spawnRecorder{}
	g := NewGameMode(nil, nil, nil, rec.spawn)
	s := oneWaveScenario(5)
	s.EscapeLimit = 2
	g.LoadScenario(s)
	g.BeginWar()
	for i := 0; i < 60; i++ {
		g.Tick(0.1, float64(i)*0.1, rec.targets)
	}

	g.RecordEscape()
	g.Tick(0.1, 7, rec.targets)
	if g.Phase() == PhaseDefeat {
		t.Fatal("defeat before escape limit reached")
	}
	g.RecordEscape()
	g.Tick(0.1, 7.1, rec.targets)
	if g.Phase() != PhaseDefeat {
		t.Fatalf("phase = %q, want defeat at escape limit", g.Phase())
	}
}

func TestResetReturnsToSetupAndZerosCounters(t *testing.T) {
	rec := &spawnRecorder{}
	d := NewDifficultyScaler()
	g := NewGameMode(nil, nil, d, rec.spawn)
	g.LoadScenario(oneWaveScenario(2))
	g.BeginWar()
	g.RecordEscape()
	g.RecordElimination(model.Hostile)
	d.RecordWave(perfectWave())

	g.ResetGame()
	if g.Phase() != PhaseSetup {
		t.Fatalf("phase after reset = %q, want setup", g.Phase())
	}
	if g.WaveIndex() != 0 || g.escapeCount != 0 || g.eliminationsThisWave != 0 {
		t.Fatal("reset left counters dirty")
	}
	if d.Multiplier() != 1.0 {
		t.Fatalf("difficulty multiplier after reset = %v, want 1.0", d.Multiplier())
	}
	if !g.BeginWar() {
		t.Fatal("BeginWar after reset failed")
	}
}

func TestWaveCountScalesWithDifficulty(t *testing.T) {
	rec := &spawnRecorder{}
	d := &DifficultyScaler{multiplier: 1.3}
	g := NewGameMode(nil, nil, d, rec.spawn)
	g.LoadScenario(oneWaveScenario(5))
	g.BeginWar()
	now := 0.0
	for i := 0; i < 200; i++ {
		g.Tick(0.1, now, nil) // never cull: hostiles stay alive, wave never completes
		now += 0.1
	}
	if got := len(rec.targets); got != 7 {
		t.Fatalf("spawned %d hostiles at m=1.3 base 5, want 7", got)
	}
}
