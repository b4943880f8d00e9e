package npc

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

// Brain FSM states. Civilians cycle wandering -> observing -> fleeing ->
// hiding; hostiles mostly stay advancing until suppressed.
const (
	StateWandering  = "wandering"
	StateObserving  = "observing"
	StateFleeing    = "fleeing"
	StateHiding     = "hiding"
	StateAdvancing  = "advancing"
	StateSuppressed = "suppressed"
)

// BrainEnv is the expression evaluation context for transition guards.
// All exported methods are callable from guard sources
// (e.g. `RecentShots(30) >= 2 and Caution() > 0.5`).
type BrainEnv struct {
	Now   float64
	Brain *Brain
}

// RecentShots counts shots heard in the trailing window seconds.
func (e BrainEnv) RecentShots(window float64) int {
	return e.Brain.Memory.CountRecent(e.Now, "heard_shot", window, 0, e.Brain.Position)
}

// RecentEliminations counts kills witnessed within radius in the window.
func (e BrainEnv) RecentEliminations(window, radius float64) int {
	return e.Brain.Memory.CountRecent(e.Now, "saw_elimination", window, radius, e.Brain.Position)
}

// SeesHostile reports a hostile sighted in the last few seconds.
func (e BrainEnv) SeesHostile() bool {
	return e.Brain.Memory.CountRecent(e.Now, "saw_hostile", 5, 0, e.Brain.Position) > 0
}

// Quiet reports no stimulus of any kind in the trailing window seconds.
func (e BrainEnv) Quiet(window float64) bool {
	for _, kind := range []string{"heard_shot", "saw_elimination", "saw_hostile", "explosion_nearby"} {
		if e.Brain.Memory.CountRecent(e.Now, kind, window, 0, e.Brain.Position) > 0 {
			return false
		}
	}
	return true
}

func (e BrainEnv) Curiosity() float64   { return e.Brain.Personality.Curiosity }
func (e BrainEnv) Caution() float64     { return e.Brain.Personality.Caution }
func (e BrainEnv) Sociability() float64 { return e.Brain.Personality.Sociability }
func (e BrainEnv) Aggression() float64  { return e.Brain.Personality.Aggression }

// Transition pairs a compiled guard with the state move it performs.
// Guards fire in priority order; the first match wins for the tick.
type Transition struct {
	Name     string
	From     string
	To       string
	Priority int
	GuardSrc string
	program  *vm.Program
	// OnFire, optional, issues world commands when the transition fires.
	OnFire func(b *Brain, world World)
}

// FSM evaluates compiled transitions against each brain. The compile-
// once, evaluate-every-tick shape (and the priority/first-match rule)
// follows the rule engine the LLM doctrine layer uses.
type FSM struct {
	transitions []*Transition
	log         *slog.Logger
}

// NewFSM compiles the guard sources. A guard that fails to compile is a
// construction error, not a runtime one.
func NewFSM(transitions []*Transition, log *slog.Logger) (*FSM, error) {
	if log == nil {
		log = slog.Default()
	}
	for _, t := range transitions {
		program, err := expr.Compile(t.GuardSrc, expr.Env(BrainEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile guard %q: %w", t.Name, err)
		}
		t.program = program
	}
	sorted := make([]*Transition, len(transitions))
	copy(sorted, transitions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })
	return &FSM{transitions: sorted, log: log}, nil
}

// DefaultFSM builds the stock civilian/hostile transition set. Guard
// thresholds lean on personality so two NPCs in the same situation can
// behave differently.
func DefaultFSM(log *slog.Logger) *FSM {
	fsm, err := NewFSM([]*Transition{
		{
			Name: "panic", From: StateWandering, To: StateFleeing, Priority: 100,
			GuardSrc: "RecentShots(10.0) >= 2 or RecentEliminations(30.0, 40.0) >= 1",
			OnFire:   fleeHome,
		},
		{
			Name: "startled", From: StateWandering, To: StateObserving, Priority: 50,
			GuardSrc: "SeesHostile() and Curiosity() > Caution()",
		},
		{
			Name: "spooked", From: StateWandering, To: StateFleeing, Priority: 49,
			GuardSrc: "SeesHostile() and Caution() >= Curiosity()",
			OnFire:   fleeHome,
		},
		{
			Name: "observer-flees", From: StateObserving, To: StateFleeing, Priority: 80,
			GuardSrc: "RecentShots(10.0) >= 1 or RecentEliminations(60.0, 30.0) >= 1",
			OnFire:   fleeHome,
		},
		{
			Name: "bored", From: StateObserving, To: StateWandering, Priority: 10,
			GuardSrc: "Quiet(20.0)",
		},
		{
			Name: "go-to-ground", From: StateFleeing, To: StateHiding, Priority: 60,
			GuardSrc: "Quiet(10.0)",
		},
		{
			Name: "all-clear", From: StateHiding, To: StateWandering, Priority: 10,
			GuardSrc: "Quiet(60.0) and Caution() < 0.9",
		},
		{
			Name: "suppressed", From: StateAdvancing, To: StateSuppressed, Priority: 90,
			GuardSrc: "RecentEliminations(20.0, 25.0) >= 2 and Aggression() < 0.8",
		},
		{
			Name: "rally", From: StateSuppressed, To: StateAdvancing, Priority: 20,
			GuardSrc: "Quiet(15.0) or Aggression() >= 0.8",
		},
	}, log)
	if err != nil {
		// The stock guard set is static; a compile failure is a bug.
		panic(err)
	}
	return fsm
}

// Evaluate runs the first matching transition for the brain's current
// state, if any, and applies it.
func (f *FSM) Evaluate(b *Brain, now float64, world World) {
	env := BrainEnv{Now: now, Brain: b}
	for _, t := range f.transitions {
		if t.From != b.State {
			continue
		}
		result, err := vm.Run(t.program, env)
		if err != nil {
			f.log.Warn("fsm guard error", "transition", t.Name, "target_id", b.TargetID, "error", err)
			continue
		}
		match, ok := result.(bool)
		if !ok || !match {
			continue
		}
		f.log.Debug("fsm transition", "target_id", b.TargetID, "from", b.State, "to", t.To, "via", t.Name)
		b.State = t.To
		if t.OnFire != nil && world != nil {
			t.OnFire(b, world)
		}
		return
	}
}

// fleeHome sends the brain's unit sprinting away from its most recent
// threat memory; with no memory it bolts in a random direction.
func fleeHome(b *Brain, world World) {
	away := model.Vec2{X: rand.Float64()*2 - 1, Y: rand.Float64()*2 - 1}
	for _, e := range b.Memory.Recent(8) {
		if e.Kind == "saw_hostile" || e.Kind == "heard_shot" {
			away = b.Position.Sub(e.Position)
			break
		}
	}
	dest := b.Position.Add(away.Normalized().Scale(40))
	if err := world.DispatchUnit(b.TargetID, dest); err != nil {
		slog.Debug("flee dispatch failed", "target_id", b.TargetID, "error", err)
	}
}
