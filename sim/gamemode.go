package sim

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

// Phase is a GameMode state in the
// setup -> countdown(5s) -> active -> (victory|defeat) -> setup FSM.
type Phase string

const (
	PhaseSetup     Phase = "setup"
	PhaseCountdown Phase = "countdown"
	PhaseActive    Phase = "active"
	PhaseVictory   Phase = "victory"
	PhaseDefeat    Phase = "defeat"
)

// countdownSeconds is the fixed setup->active transition delay.
const countdownSeconds = 5.0

// SpawnFunc places a new target on the map and returns it, leaving the
// caller's engine-owned target slice as the only source of truth. GameMode
// never holds targets itself.
type SpawnFunc func(assetType string, alliance model.Alliance, pos model.Vec2, healthBonus, speedBonus float64) *model.Target

type pendingGroup struct {
	group     model.SpawnGroup
	waveIndex int
	remaining int
	delay     float64 // counts down before the first unit of this group spawns
	interval  float64 // counts down between units once delay has elapsed
	started   bool
}

// GameMode owns the Setup/Countdown/Active/Victory/Defeat FSM and the wave
// spawn loop. It does not own targets; it calls back into the engine via
// SpawnFunc and reads the live target slice each tick to judge victory,
// defeat, and wave completion.
type GameMode struct {
	bus        *eventbus.Bus
	log        *slog.Logger
	difficulty *DifficultyScaler
	spawn      SpawnFunc

	phase              Phase
	scenario           *model.Scenario
	countdownRemaining float64
	waveIndex          int
	waveElapsed        float64
	pending            []*pendingGroup

	hostilesSpawnedThisWave int
	eliminationsThisWave    int
	escapesThisWave         int
	friendlyDamageTaken     float64
	escapeCount             int
}

// NewGameMode returns a GameMode in PhaseSetup with no scenario loaded.
func NewGameMode(bus *eventbus.Bus, log *slog.Logger, difficulty *DifficultyScaler, spawn SpawnFunc) *GameMode {
	if log == nil {
		log = slog.Default()
	}
	return &GameMode{bus: bus, log: log, difficulty: difficulty, spawn: spawn, phase: PhaseSetup}
}

// Phase returns the current FSM state.
func (g *GameMode) Phase() Phase { return g.phase }

// WaveIndex returns the 0-based index of the wave currently running (or
// most recently completed).
func (g *GameMode) WaveIndex() int { return g.waveIndex }

// LoadScenario sets the active scenario. Only valid while in PhaseSetup;
// otherwise it is a no-op (a scenario cannot change mid-battle).
func (g *GameMode) LoadScenario(s *model.Scenario) {
	if g.phase != PhaseSetup {
		return
	}
	g.scenario = s
}

// BeginWar transitions setup->countdown. Returns false if not in setup.
func (g *GameMode) BeginWar() bool {
	if g.phase != PhaseSetup {
		return false
	}
	g.phase = PhaseCountdown
	g.countdownRemaining = countdownSeconds
	g.publish("game_countdown_started", map[string]any{"seconds": countdownSeconds})
	return true
}

// ResetGame returns to setup from any state and clears wave/score counters.
// It does not clear targets; SimulationEngine does that by calling its own
// reset alongside this one.
func (g *GameMode) ResetGame() {
	g.phase = PhaseSetup
	g.waveIndex = 0
	g.waveElapsed = 0
	g.pending = nil
	g.escapeCount = 0
	g.resetWaveCounters()
	if g.difficulty != nil {
		g.difficulty.Reset()
	}
	g.publish("game_reset", nil)
}

func (g *GameMode) resetWaveCounters() {
	g.hostilesSpawnedThisWave = 0
	g.eliminationsThisWave = 0
	g.escapesThisWave = 0
	g.friendlyDamageTaken = 0
}

// RecordElimination folds a kill into the running wave stats; called by
// SimulationEngine from its target_eliminated subscription.
func (g *GameMode) RecordElimination(alliance model.Alliance) {
	if alliance == model.Hostile {
		g.eliminationsThisWave++
	}
}

// RecordFriendlyDamage folds damage taken by a friendly into the running
// wave stats, used by the DifficultyScaler's damage-ratio term.
func (g *GameMode) RecordFriendlyDamage(amount float64) {
	g.friendlyDamageTaken += amount
}

// RecordEscape folds an uncontested hostile escape into the running wave
// and lifetime counters; the next active Tick declares defeat once the
// lifetime count reaches EscapeLimit.
func (g *GameMode) RecordEscape() {
	g.escapesThisWave++
	g.escapeCount++
}

// Tick advances the FSM. targets is the authoritative live set, used only
// to read alliance/status for victory/defeat checks and friendly max health.
func (g *GameMode) Tick(dt, now float64, targets []*model.Target) {
	switch g.phase {
	case PhaseSetup, PhaseVictory, PhaseDefeat:
		return
	case PhaseCountdown:
		g.countdownRemaining -= dt
		// The epsilon absorbs float residue from summing dt steps.
		if g.countdownRemaining <= 1e-9 {
			g.phase = PhaseActive
			g.startWave(0, now)
		}
		return
	case PhaseActive:
		g.tickActive(dt, now, targets)
	}
}

func (g *GameMode) tickActive(dt, now float64, targets []*model.Target) {
	g.waveElapsed += dt
	spawnedBefore := g.hostilesSpawnedThisWave
	g.advanceSpawns(dt, now)

	if g.scenario != nil && g.scenario.EscapeLimit > 0 && g.escapeCount >= g.scenario.EscapeLimit {
		g.declareDefeat("escape_limit_exceeded")
		return
	}
	if g.allDefendersEliminated(targets) {
		g.declareDefeat("defenders_eliminated")
		return
	}
	// Hostiles spawned this tick are not in targets yet; judge the wave
	// on the next tick, once they are.
	if g.hostilesSpawnedThisWave != spawnedBefore {
		return
	}

	if g.waveDone(targets) {
		g.completeWave(targets)
		if g.scenario == nil || g.waveIndex+1 >= len(g.scenario.Waves) {
			if !anyLiveHostile(targets) {
				g.declareVictory()
			}
			return
		}
		g.waveIndex++
		g.startWave(g.waveIndex, now)
	}
}

func (g *GameMode) allDefendersEliminated(targets []*model.Target) bool {
	if g.scenario == nil || len(g.scenario.Defenders) == 0 {
		return false
	}
	for _, t := range targets {
		if t.Alliance == model.Friendly && t.IsCombatant && !t.Status.Terminal() {
			return false
		}
	}
	return true
}

func anyLiveHostile(targets []*model.Target) bool {
	for _, t := range targets {
		if t.Alliance == model.Hostile && !t.Status.Terminal() {
			return true
		}
	}
	return false
}

// waveDone reports whether every SpawnGroup in the current wave has
// finished spawning and no hostile remains live.
func (g *GameMode) waveDone(targets []*model.Target) bool {
	if len(g.pending) > 0 {
		return false
	}
	return !anyLiveHostile(targets)
}

func (g *GameMode) startWave(idx int, now float64) {
	g.waveIndex = idx
	g.waveElapsed = 0
	g.resetWaveCounters()
	g.pending = nil

	if g.scenario == nil || idx >= len(g.scenario.Waves) {
		return
	}
	wave := g.scenario.Waves[idx]
	adj := WaveAdjustments{}
	for _, sg := range wave.SpawnGroups {
		baseCount := sg.Count
		if g.difficulty != nil {
			adj = g.difficulty.WaveAdjustmentsFor(baseCount)
			sg.Count = adj.HostileCount
			if adj.EliteCount > 0 {
				sg.Count += adj.EliteCount
			}
		}
		g.pending = append(g.pending, &pendingGroup{group: sg, waveIndex: idx, remaining: sg.Count, delay: sg.Delay})
	}
	g.publish("wave_started", map[string]any{"wave_index": idx, "name": wave.Name, "multiplier": g.multiplierOrOne()})
}

func (g *GameMode) multiplierOrOne() float64 {
	if g.difficulty == nil {
		return 1.0
	}
	return g.difficulty.Multiplier()
}

func (g *GameMode) advanceSpawns(dt float64, now float64) {
	if g.spawn == nil {
		return
	}
	live := g.pending[:0]
	for _, pg := range g.pending {
		if pg.remaining <= 0 {
			continue
		}
		if !pg.started {
			pg.delay -= dt
			if pg.delay > 0 {
				live = append(live, pg)
				continue
			}
			pg.started = true
			pg.interval = 0
		}
		pg.interval -= dt
		if pg.interval <= 0 {
			g.spawnOne(pg, now)
			pg.remaining--
			pg.interval = pg.group.SpawnInterval
		}
		if pg.remaining > 0 {
			live = append(live, pg)
		}
	}
	g.pending = live
}

func (g *GameMode) spawnOne(pg *pendingGroup, now float64) {
	pos := g.edgeSpawnPosition(pg.group.Edge)
	healthBonus, speedBonus := 0.0, 0.0
	if g.difficulty != nil {
		adj := g.difficulty.WaveAdjustmentsFor(1)
		healthBonus, speedBonus = adj.HostileHealthBonus, adj.HostileSpeedBonus
	}
	alliance := pg.group.Alliance
	if alliance == "" {
		alliance = model.Hostile
	}
	t := g.spawn(pg.group.AssetType, alliance, pos, healthBonus, speedBonus)
	if t == nil {
		return
	}
	t.SquadID = fmt.Sprintf("wave-%d", pg.waveIndex+1)
	if alliance == model.Hostile {
		g.hostilesSpawnedThisWave++
	}
}

// edgeSpawnPosition picks a point along the named map edge, or the origin
// when no scenario/half-extent is configured.
func (g *GameMode) edgeSpawnPosition(edge model.Edge) model.Vec2 {
	half := 100.0
	if g.scenario != nil && g.scenario.MapHalfExtent > 0 {
		half = g.scenario.MapHalfExtent
	}
	along := rand.Float64()*2*half - half
	switch edge {
	case model.EdgeNorth:
		return model.Vec2{X: along, Y: half}
	case model.EdgeSouth:
		return model.Vec2{X: along, Y: -half}
	case model.EdgeEast:
		return model.Vec2{X: half, Y: along}
	case model.EdgeWest:
		return model.Vec2{X: -half, Y: along}
	default:
		return model.Vec2{}
	}
}

func (g *GameMode) completeWave(targets []*model.Target) {
	friendlyMaxHealth := 0.0
	for _, t := range targets {
		if t.Alliance == model.Friendly {
			friendlyMaxHealth += t.MaxHealth
		}
	}
	stats := WaveStats{
		Eliminations:        g.eliminationsThisWave,
		HostilesSpawned:      g.hostilesSpawnedThisWave,
		WaveTime:             g.waveElapsed,
		FriendlyDamageTaken:  g.friendlyDamageTaken,
		FriendlyMaxHealth:    friendlyMaxHealth,
		Escapes:              g.escapesThisWave,
	}
	if g.difficulty != nil {
		g.difficulty.RecordWave(stats)
	}
	g.publish("wave_completed", map[string]any{
		"wave_index": g.waveIndex, "eliminations": stats.Eliminations,
		"hostiles_spawned": stats.HostilesSpawned, "wave_time": stats.WaveTime,
		"multiplier": g.multiplierOrOne(),
	})
}

func (g *GameMode) declareVictory() {
	g.phase = PhaseVictory
	g.publish("game_victory", map[string]any{"wave_index": g.waveIndex})
}

func (g *GameMode) declareDefeat(reason string) {
	g.phase = PhaseDefeat
	g.publish("game_defeat", map[string]any{"wave_index": g.waveIndex, "reason": reason})
}

func (g *GameMode) publish(kind string, payload any) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(eventbus.Event{Kind: kind, Payload: payload})
}
