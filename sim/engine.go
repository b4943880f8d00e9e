package sim

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/valpatel/tritium-sc/engine-core/errkind"
	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

// TickInterval is the engine's fixed cadence: 10 Hz. A tick that runs
// long is never compensated with a catch-up tick.
const TickInterval = 100 * time.Millisecond

// eliminationGraceSeconds is how long an eliminated target lingers in the
// target set (so telemetry can render the kill) before the sweep removes it.
const eliminationGraceSeconds = 10.0

// Engine is the single authoritative writer of all target, weapon,
// hazard, and projectile state. Its tick goroutine mutates state under
// the engine lock; API write methods either take the same lock or
// enqueue onto the command channel drained at the start of each tick.
type Engine struct {
	bus *eventbus.Bus
	log *slog.Logger

	mu         sync.Mutex
	targets    map[string]*model.Target
	weapons    *WeaponSystem
	combat     *CombatSystem
	hazards    *HazardManager
	sensors    *SensorSimulator
	difficulty *DifficultyScaler
	gameMode   *GameMode
	pathfinder *Pathfinder

	graph         *model.StreetGraph
	obstacles     []model.Obstacle
	mapHalfExtent float64
	scenario      *model.Scenario

	tick       int64
	simTime    float64
	nextID     int
	eliminated map[string]float64 // target_id -> sim time of elimination

	commands chan func()
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool

	// OnTickDuration, when set before Start, observes each tick's wall
	// duration (wired to the metrics histogram by the serve command).
	OnTickDuration func(seconds float64)
}

// NewEngine wires up the full simulation stack around a shared event bus.
func NewEngine(bus *eventbus.Bus, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	weapons := NewWeaponSystem(bus, log)
	difficulty := NewDifficultyScaler()
	e := &Engine{
		bus:           bus,
		log:           log,
		targets:       make(map[string]*model.Target),
		weapons:       weapons,
		combat:        NewCombatSystem(weapons, bus, log),
		hazards:       NewHazardManager(bus, log),
		sensors:       NewSensorSimulator(bus, log),
		difficulty:    difficulty,
		pathfinder:    NewPathfinder(),
		eliminated:    make(map[string]float64),
		commands:      make(chan func(), 256),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		mapHalfExtent: 100,
	}
	e.gameMode = NewGameMode(bus, log, difficulty, e.spawnWaveUnit)
	e.pathfinder.SetHazardCheck(e.hazards.IsBlocked)
	return e
}

// Sensors exposes the sensor network for scenario seeding.
func (e *Engine) Sensors() *SensorSimulator { return e.sensors }

// Hazards exposes the hazard manager for scenario/admin spawns.
func (e *Engine) Hazards() *HazardManager { return e.hazards }

// Difficulty exposes the adaptive scaler, read by telemetry.
func (e *Engine) Difficulty() *DifficultyScaler { return e.difficulty }

// Start launches the tick goroutine and the event-bus drain that folds
// combat events back into wave scoring. Calling Start twice is an error.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errkind.New(errkind.InvalidRequest, "engine start", fmt.Errorf("already started"))
	}
	e.started = true
	e.mu.Unlock()

	go e.drainCombatEvents()
	go e.run()
	e.log.Info("engine started", "tick_interval", TickInterval)
	return nil
}

// Stop signals the tick goroutine and waits for it to exit.
func (e *Engine) Stop() {
	close(e.stopCh)
	<-e.doneCh
	e.log.Info("engine stopped", "ticks", e.tick)
}

func (e *Engine) run() {
	defer close(e.doneCh)
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	dt := TickInterval.Seconds()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			started := time.Now()
			e.step(dt)
			if e.OnTickDuration != nil {
				e.OnTickDuration(time.Since(started).Seconds())
			}
		}
	}
}

// step runs one full tick under the engine lock.
func (e *Engine) step(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.drainCommandsLocked()

	e.tick++
	e.simTime += dt
	targets := e.liveSliceLocked()

	e.component("targets", func() {
		for _, t := range targets {
			t.Tick(dt)
		}
		e.detectEscapesLocked(targets)
	})
	e.component("combat", func() { e.combat.Tick(dt, e.simTime, targets) })
	e.component("hazards", func() { e.hazards.Tick(e.simTime) })
	e.component("sensors", func() { e.sensors.Tick(e.simTime, targets) })
	e.component("game_mode", func() { e.gameMode.Tick(dt, e.simTime, targets) })

	e.sweepLocked()
	e.publishSnapshotLocked()
}

// component wraps a subsystem tick so a panic surfaces as a
// component_error event instead of killing the tick goroutine.
func (e *Engine) component(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("component tick panicked", "component", name, "panic", r)
			e.bus.Publish(eventbus.Event{Kind: "component_error", Payload: map[string]any{
				"component": name, "error": fmt.Sprint(r),
			}})
		}
	}()
	fn()
}

func (e *Engine) drainCommandsLocked() {
	for {
		select {
		case cmd := <-e.commands:
			cmd()
		default:
			return
		}
	}
}

// Do enqueues fn to run on the tick goroutine at the start of the next
// tick, with the engine lock held. Used by event-bus drain goroutines
// and bridges that need write access to engine state.
func (e *Engine) Do(fn func()) {
	select {
	case e.commands <- fn:
	default:
		e.log.Warn("engine command queue full, dropping command")
	}
}

// liveSliceLocked returns the target set as a deterministically ordered
// slice. Ordering by ID keeps acquisition and iteration stable across
// ticks regardless of map iteration order.
func (e *Engine) liveSliceLocked() []*model.Target {
	out := make([]*model.Target, 0, len(e.targets))
	for _, t := range e.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out
}

// detectEscapesLocked flags hostiles that have walked off the map edge
// after exhausting their waypoints.
func (e *Engine) detectEscapesLocked(targets []*model.Target) {
	for _, t := range targets {
		if t.Alliance != model.Hostile || t.Status.Terminal() || t.IsStationary() {
			continue
		}
		if t.Status != model.StatusIdle || len(t.Waypoints) == 0 {
			continue
		}
		if t.Position.Len() >= e.mapHalfExtent {
			t.Status = model.StatusEscaped
			e.gameMode.RecordEscape()
			e.bus.Publish(eventbus.Event{Kind: "target_escaped", Payload: map[string]any{
				"target_id": t.TargetID, "position": t.Position,
			}})
		}
	}
}

// sweepLocked removes terminal targets once their grace period expires,
// keeping the target-set delta law (spawned minus eliminated/escaped/
// despawned) observable by telemetry before records disappear.
func (e *Engine) sweepLocked() {
	for id, t := range e.targets {
		if !t.Status.Terminal() {
			continue
		}
		when, seen := e.eliminated[id]
		if !seen {
			e.eliminated[id] = e.simTime
			continue
		}
		if e.simTime-when >= eliminationGraceSeconds {
			delete(e.targets, id)
			delete(e.eliminated, id)
		}
	}
}

func (e *Engine) publishSnapshotLocked() {
	snap := model.StateSnapshot{
		Tick:      e.tick,
		SimTime:   e.simTime,
		GameMode:  string(e.gameMode.Phase()),
		WaveIndex: e.gameMode.WaveIndex(),
		Targets:   make([]model.TargetView, 0, len(e.targets)),
		Hazards:   e.hazards.Active(),
	}
	ref := model.Reference()
	for _, t := range e.liveSliceLocked() {
		if ref != nil {
			geo := ref.ToGeo(t.Position)
			t.Geo = &geo
		}
		snap.Targets = append(snap.Targets, model.ViewOf(t))
	}
	e.bus.Publish(eventbus.Event{Kind: "sim_state", Payload: snap})
}

// drainCombatEvents folds combat outcomes back into wave scoring on the
// tick goroutine via the command channel, per the single-writer rule.
func (e *Engine) drainCombatEvents() {
	sub := e.bus.Subscribe("", eventbus.DefaultQueueSize)
	defer sub.Close()
	for {
		select {
		case <-e.stopCh:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case "target_eliminated":
				payload, ok := ev.Payload.(map[string]any)
				if !ok {
					continue
				}
				alliance, _ := payload["alliance"].(string)
				e.Do(func() { e.gameMode.RecordElimination(model.Alliance(alliance)) })
			case "damage":
				payload, ok := ev.Payload.(map[string]any)
				if !ok {
					continue
				}
				targetID, _ := payload["target_id"].(string)
				amount, _ := payload["amount"].(float64)
				e.Do(func() {
					if t, ok := e.targets[targetID]; ok && t.Alliance == model.Friendly {
						e.gameMode.RecordFriendlyDamage(amount)
					}
				})
			}
		}
	}
}

// --- public API (write methods lock; reads return copies) ---

// AddTarget inserts a pre-built target and equips its default weapon.
// A duplicate ID is an InvalidRequest error.
func (e *Engine) AddTarget(t *model.Target) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.targets[t.TargetID]; exists {
		return errkind.New(errkind.InvalidRequest, "add target",
			fmt.Errorf("duplicate target id %q", t.TargetID))
	}
	e.targets[t.TargetID] = t
	e.weapons.Equip(t.TargetID, t.AssetType)
	e.bus.Publish(eventbus.Event{Kind: "target_added", Payload: model.ViewOf(t)})
	return nil
}

// GetTarget returns a copy of the named target.
func (e *Engine) GetTarget(id string) (model.Target, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.targets[id]
	if !ok {
		return model.Target{}, false
	}
	return *t, true
}

// GetTargets returns wire-safe views of every target, ordered by ID.
func (e *Engine) GetTargets() []model.TargetView {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.TargetView, 0, len(e.targets))
	for _, t := range e.liveSliceLocked() {
		out = append(out, model.ViewOf(t))
	}
	return out
}

// DispatchUnit routes the named unit to dest via the pathfinder,
// clamping dest into map bounds rather than rejecting it.
func (e *Engine) DispatchUnit(id string, dest model.Vec2) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.targets[id]
	if !ok {
		return errkind.New(errkind.InvalidRequest, "dispatch", fmt.Errorf("no such target %q", id))
	}
	if t.IsStationary() {
		return errkind.New(errkind.InvalidRequest, "dispatch", fmt.Errorf("%q is stationary", id))
	}
	dest = e.clampToMapLocked(dest)
	waypoints := e.pathfinder.Plan(t.Position, dest, t.AssetType)
	if waypoints == nil {
		return errkind.New(errkind.InvalidRequest, "dispatch", fmt.Errorf("no route for %q", id))
	}
	t.Dispatch(waypoints, false)
	e.bus.Publish(eventbus.Event{Kind: "unit_dispatched", Payload: map[string]any{
		"target_id": id, "dest": dest, "waypoints": len(waypoints),
	}})
	return nil
}

func (e *Engine) clampToMapLocked(p model.Vec2) model.Vec2 {
	half := e.mapHalfExtent
	return model.Vec2{X: clamp(p.X, -half, half), Y: clamp(p.Y, -half, half)}
}

// SpawnHostile places an ad-hoc hostile at pos (or a random map edge when
// nil) outside the wave system, for manual escalation.
func (e *Engine) SpawnHostile(pos *model.Vec2) model.TargetView {
	e.mu.Lock()
	defer e.mu.Unlock()
	at := e.gameMode.edgeSpawnPosition(model.EdgeNorth)
	if pos != nil {
		at = e.clampToMapLocked(*pos)
	}
	t := e.spawnLocked(model.AssetHostilePerson, model.Hostile, at, 0, 0)
	return model.ViewOf(t)
}

// spawnWaveUnit is GameMode's SpawnFunc; the engine lock is already held
// because GameMode only runs inside the tick.
func (e *Engine) spawnWaveUnit(assetType string, alliance model.Alliance, pos model.Vec2, healthBonus, speedBonus float64) *model.Target {
	return e.spawnLocked(assetType, alliance, pos, healthBonus, speedBonus)
}

func (e *Engine) spawnLocked(assetType string, alliance model.Alliance, pos model.Vec2, healthBonus, speedBonus float64) *model.Target {
	e.nextID++
	id := string(alliance) + "-" + assetType + "-" + strconv.Itoa(e.nextID)
	t := model.NewTarget(id, id, alliance, assetType, pos, e.simTime)
	t.MaxHealth *= 1 + healthBonus
	t.Health = t.MaxHealth
	t.Speed *= 1 + speedBonus
	e.targets[id] = t
	e.weapons.Equip(id, assetType)

	// Hostiles march on the origin (the defended point) by default.
	if alliance == model.Hostile && !t.IsStationary() {
		if wp := e.pathfinder.Plan(pos, model.Vec2{}, assetType); wp != nil {
			t.Dispatch(wp, false)
		}
	}
	e.bus.Publish(eventbus.Event{Kind: "target_spawned", Payload: model.ViewOf(t)})
	return t
}

// BeginWar starts the countdown; InvalidRequest unless in setup.
func (e *Engine) BeginWar() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.gameMode.BeginWar() {
		return errkind.New(errkind.InvalidRequest, "begin war",
			fmt.Errorf("game is %s, not setup", e.gameMode.Phase()))
	}
	return nil
}

// ResetGame returns to setup: hostiles cleared, projectiles and hazards
// cleared, score and difficulty reset. Friendly placements survive.
func (e *Engine) ResetGame() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, t := range e.targets {
		if t.Alliance == model.Hostile {
			delete(e.targets, id)
			delete(e.eliminated, id)
		}
	}
	e.combat.Reset()
	e.hazards.Clear()
	e.gameMode.ResetGame()
}

// LoadScenario installs a scenario: map geometry, street graph,
// obstacles, defender seeds, and waves. Setup phase only.
func (e *Engine) LoadScenario(s *model.Scenario) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gameMode.Phase() != PhaseSetup {
		return errkind.New(errkind.InvalidRequest, "load scenario",
			fmt.Errorf("game is %s, not setup", e.gameMode.Phase()))
	}
	e.scenario = s
	if s.MapHalfExtent > 0 {
		e.mapHalfExtent = s.MapHalfExtent
	}
	if s.StreetGraph != nil {
		e.setStreetGraphLocked(s.StreetGraph)
	}
	e.setObstaclesLocked(s.Obstacles)
	e.gameMode.LoadScenario(s)
	for _, seed := range append(append([]model.ScenarioSeed{}, s.Seeds...), s.Defenders...) {
		alliance := seed.Alliance
		if alliance == "" {
			alliance = model.Friendly
		}
		t := e.spawnLocked(seed.AssetType, alliance, seed.Position, 0, 0)
		if seed.Name != "" {
			t.Name = seed.Name
		}
	}
	e.log.Info("scenario loaded", "name", s.Name, "waves", len(s.Waves), "defenders", len(s.Defenders))
	return nil
}

// PlaceDefender adds a friendly placeable unit during setup.
func (e *Engine) PlaceDefender(name, assetType string, pos model.Vec2) (model.TargetView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gameMode.Phase() != PhaseSetup {
		return model.TargetView{}, errkind.New(errkind.InvalidRequest, "place",
			fmt.Errorf("game is %s, not setup", e.gameMode.Phase()))
	}
	ut, ok := model.UnitTypeFor(assetType)
	if !ok || !ut.Placeable {
		return model.TargetView{}, errkind.New(errkind.InvalidRequest, "place",
			fmt.Errorf("%q is not placeable", assetType))
	}
	t := e.spawnLocked(assetType, model.Friendly, e.clampToMapLocked(pos), 0, 0)
	if name != "" {
		t.Name = name
	}
	return model.ViewOf(t), nil
}

// PatrolUnit assigns a looping waypoint circuit to the named unit.
func (e *Engine) PatrolUnit(id string, waypoints []model.Vec2) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.targets[id]
	if !ok {
		return errkind.New(errkind.InvalidRequest, "patrol", fmt.Errorf("no such target %q", id))
	}
	if t.IsStationary() {
		return errkind.New(errkind.InvalidRequest, "patrol", fmt.Errorf("%q is stationary", id))
	}
	if len(waypoints) == 0 {
		return errkind.New(errkind.InvalidRequest, "patrol", fmt.Errorf("empty waypoint list"))
	}
	clamped := make([]model.Vec2, len(waypoints))
	for i, wp := range waypoints {
		clamped[i] = e.clampToMapLocked(wp)
	}
	t.Dispatch(clamped, true)
	t.Status = model.StatusPatrolling
	return nil
}

// Radicalize flips a neutral target hostile. This is the only alliance
// mutation the engine permits; the npc package's AllianceManager gates
// the decision and calls here once its conditions all hold.
func (e *Engine) Radicalize(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.targets[id]
	if !ok {
		return errkind.New(errkind.InvalidRequest, "radicalize", fmt.Errorf("no such target %q", id))
	}
	if t.Alliance != model.Neutral {
		return errkind.New(errkind.InvalidRequest, "radicalize",
			fmt.Errorf("%q is %s, not neutral", id, t.Alliance))
	}
	t.Alliance = model.Hostile
	t.AssetType = model.AssetHostilePerson
	ut, ok := model.UnitTypeFor(t.AssetType)
	if ok {
		t.IsCombatant = true
		t.WeaponRange = ut.Combat.WeaponRange
		t.WeaponDamage = ut.Combat.Damage
		t.WeaponCooldown = ut.Combat.Cooldown
	}
	e.weapons.Equip(id, t.AssetType)
	e.bus.Publish(eventbus.Event{Kind: "npc_radicalized", Payload: map[string]any{
		"target_id": id, "position": t.Position,
	}})
	return nil
}

// SetStreetGraph installs the routing graph used for ground/foot paths.
func (e *Engine) SetStreetGraph(g *model.StreetGraph) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setStreetGraphLocked(g)
}

func (e *Engine) setStreetGraphLocked(g *model.StreetGraph) {
	e.graph = g
	e.pathfinder.SetStreetGraph(g)
}

// SetObstacles installs building footprints for pathfinding and LOS.
func (e *Engine) SetObstacles(obs []model.Obstacle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setObstaclesLocked(obs)
}

func (e *Engine) setObstaclesLocked(obs []model.Obstacle) {
	e.obstacles = obs
	e.pathfinder.SetObstacles(obs)
	e.combat.SetObstacles(obs)
}

// ActiveProjectiles returns in-flight projectiles for late-join clients.
func (e *Engine) ActiveProjectiles() []model.Projectile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.combat.ActiveProjectiles()
}

// GameState is the engine-facing game status summary behind
// GET /api/game/state.
type GameState struct {
	State         string  `json:"state"`
	Wave          int     `json:"wave"`
	MapHalfExtent float64 `json:"map_half_extent"`
	MaxHostiles   int     `json:"max_hostiles"`
	Multiplier    float64 `json:"difficulty_multiplier"`
	TargetCount   int     `json:"target_count"`
	SimTime       float64 `json:"sim_time"`
	Tick          int64   `json:"tick"`
}

// GetGameState reports the current FSM phase, wave, and map parameters.
func (e *Engine) GetGameState() GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	maxHostiles := 0
	if e.scenario != nil {
		maxHostiles = e.scenario.MaxHostiles
	}
	return GameState{
		State:         string(e.gameMode.Phase()),
		Wave:          e.gameMode.WaveIndex(),
		MapHalfExtent: e.mapHalfExtent,
		MaxHostiles:   maxHostiles,
		Multiplier:    e.difficulty.Multiplier(),
		TargetCount:   len(e.targets),
		SimTime:       e.simTime,
		Tick:          e.tick,
	}
}

// Step advances the simulation one tick synchronously. Test-only entry
// point; production ticks come from the Start goroutine.
func (e *Engine) Step(dt float64) {
	e.step(dt)
}
