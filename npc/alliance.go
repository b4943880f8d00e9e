package npc

import (
	"log/slog"
	"sync"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

// EscalationLevel is the global tension gauge radicalization keys off.
type EscalationLevel int

const (
	EscalationGreen EscalationLevel = iota
	EscalationAmber
	EscalationRed
)

func (l EscalationLevel) String() string {
	switch l {
	case EscalationAmber:
		return "amber"
	case EscalationRed:
		return "red"
	default:
		return "green"
	}
}

// Radicalization gates. Every condition must hold simultaneously for a
// neutral to flip hostile.
const (
	radicalizeKillWindow    = 60.0
	radicalizeKillCount     = 3
	radicalizeKillRadius    = 50.0
	radicalizeSafeRadius    = 30.0 // no friendly within this range
	radicalizeAggressionMin = 0.7
	radicalizeCooldown      = 120.0 // seconds between radicalizations, global
)

// Escalation thresholds: recent eliminations process-wide in the
// trailing escalationWindow.
const (
	escalationWindow     = 120.0
	escalationAmberKills = 3
	escalationRedKills   = 8
)

// AllianceManager owns the only legal alliance transition: neutral to
// hostile, when a civilian has seen too much violence up close with no
// protection nearby. The engine performs the actual flip; this type
// only decides.
type AllianceManager struct {
	mu             sync.Mutex
	log            *slog.Logger
	killTimes      []float64
	lastRadicalize float64
	friendlies     []model.Vec2

	// mobBias is an additive probability boost set by MobManager when
	// riot intensity is high.
	mobBias float64
}

// NewAllianceManager returns a manager with no recorded history.
func NewAllianceManager(log *slog.Logger) *AllianceManager {
	if log == nil {
		log = slog.Default()
	}
	return &AllianceManager{log: log, lastRadicalize: -radicalizeCooldown}
}

// NoteElimination records a process-wide kill for the escalation gauge.
func (a *AllianceManager) NoteElimination(now float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.killTimes = append(a.killTimes, now)
	a.trimLocked(now)
}

// UpdateFriendlies refreshes the friendly position set from the latest
// snapshot, used for the no-protection-nearby gate.
func (a *AllianceManager) UpdateFriendlies(positions []model.Vec2) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.friendlies = positions
}

// SetMobBias is called by MobManager as riot intensity changes.
func (a *AllianceManager) SetMobBias(bias float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mobBias = bias
}

// Escalation computes the current global tension level.
func (a *AllianceManager) Escalation(now float64) EscalationLevel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.escalationLocked(now)
}

func (a *AllianceManager) escalationLocked(now float64) EscalationLevel {
	a.trimLocked(now)
	switch n := len(a.killTimes); {
	case n >= escalationRedKills:
		return EscalationRed
	case n >= escalationAmberKills:
		return EscalationAmber
	default:
		return EscalationGreen
	}
}

func (a *AllianceManager) trimLocked(now float64) {
	keep := a.killTimes[:0]
	for _, t := range a.killTimes {
		if now-t <= escalationWindow {
			keep = append(keep, t)
		}
	}
	a.killTimes = keep
}

// Consider walks every neutral brain and radicalizes the first one whose
// gates all pass. At most one flip per call, and never inside the global
// cooldown.
func (a *AllianceManager) Consider(now float64, brains *Manager, world World) {
	a.mu.Lock()
	if now-a.lastRadicalize < radicalizeCooldown {
		a.mu.Unlock()
		return
	}
	escalated := a.escalationLocked(now) >= EscalationAmber
	friendlies := a.friendlies
	a.mu.Unlock()
	if !escalated || world == nil {
		return
	}

	for _, b := range brains.All() {
		if b.Alliance != model.Neutral {
			continue
		}
		if !a.gatesPass(now, b, friendlies) {
			continue
		}
		if err := world.Radicalize(b.TargetID); err != nil {
			a.log.Debug("radicalize rejected", "target_id", b.TargetID, "error", err)
			continue
		}
		a.mu.Lock()
		a.lastRadicalize = now
		a.mu.Unlock()
		b.Alliance = model.Hostile
		b.State = StateAdvancing
		a.log.Info("npc radicalized", "target_id", b.TargetID, "aggression", b.Personality.Aggression)
		return
	}
}

func (a *AllianceManager) gatesPass(now float64, b *Brain, friendlies []model.Vec2) bool {
	if b.Personality.Aggression <= radicalizeAggressionMin-a.mobBias {
		return false
	}
	if b.Memory.CountRecent(now, "saw_elimination", radicalizeKillWindow, radicalizeKillRadius, b.Position) < radicalizeKillCount {
		return false
	}
	for _, f := range friendlies {
		if model.Dist(f, b.Position) <= radicalizeSafeRadius {
			return false
		}
	}
	return true
}
