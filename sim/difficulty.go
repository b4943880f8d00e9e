package sim

// Difficulty multiplier bounds and adjustment step, per
// original_source/src/engine/simulation/difficulty.py.
const (
	minMultiplier  = 0.5
	maxMultiplier  = 2.0
	adjustmentStep = 0.1
	fastWaveTime   = 20.0
	slowWaveTime   = 60.0
	hardenedThresh = 1.5
	easyThresh     = 0.7
)

// Composite score weights.
const (
	weightElimination = 0.4
	weightTime        = 0.2
	weightDamage      = 0.2
	weightEscapes     = 0.2
)

// WaveStats is the per-wave performance input to DifficultyScaler.RecordWave.
type WaveStats struct {
	Eliminations        int
	HostilesSpawned     int
	WaveTime            float64
	FriendlyDamageTaken float64
	FriendlyMaxHealth   float64
	Escapes             int
}

// WaveAdjustments are the derived next-wave parameters DifficultyScaler
// computes from the current multiplier.
type WaveAdjustments struct {
	HostileCount       int
	HostileHealthBonus float64
	HostileSpeedBonus  float64
	Hardened           bool
	FlankChanceBoost   float64
	UseCoverSeeking    bool
	EliteCount         int
	Easy               bool
	DisableFlanking    bool
	SpeedReduction     float64
}

// DifficultyScaler tracks player performance across waves and computes a
// threat multiplier in [0.5, 2.0] that scales the next wave's hostile
// count, health, speed, and tactics.
type DifficultyScaler struct {
	multiplier          float64
	history             []WaveStats
	lastEliminationRate float64
}

// NewDifficultyScaler returns a scaler starting at the neutral 1.0 multiplier.
func NewDifficultyScaler() *DifficultyScaler {
	return &DifficultyScaler{multiplier: 1.0}
}

// Multiplier returns the current threat multiplier.
func (d *DifficultyScaler) Multiplier() float64 { return d.multiplier }

// RecordWave folds a completed wave's performance into the running
// multiplier, adjusting by at most +/-0.1.
func (d *DifficultyScaler) RecordWave(stats WaveStats) {
	var eliminationRate, escapeRate float64
	if stats.HostilesSpawned > 0 {
		eliminationRate = float64(stats.Eliminations) / float64(stats.HostilesSpawned)
		escapeRate = float64(stats.Escapes) / float64(stats.HostilesSpawned)
	}
	var damageRatio float64
	if stats.FriendlyMaxHealth > 0 {
		damageRatio = stats.FriendlyDamageTaken / stats.FriendlyMaxHealth
	}
	d.lastEliminationRate = eliminationRate
	d.history = append(d.history, stats)

	score := d.compositeScore(eliminationRate, stats.WaveTime, damageRatio, escapeRate)
	adjustment := score * adjustmentStep
	d.multiplier = clamp(d.multiplier+adjustment, minMultiplier, maxMultiplier)
}

// compositeScore returns a weighted [-1,1] performance score: positive
// means the player is doing well (difficulty should rise).
func (d *DifficultyScaler) compositeScore(eliminationRate, waveTime, damageRatio, escapeRate float64) float64 {
	eliminationComponent := (eliminationRate*2 - 1) * weightElimination

	// A wave cleared in 20s or less scores +1; 60s or more scores -1.
	clampedTime := clamp(waveTime, fastWaveTime, slowWaveTime)
	timeComponent := (1 - 2*(clampedTime-fastWaveTime)/(slowWaveTime-fastWaveTime)) * weightTime

	damageComponent := clamp(1-2*minf(1, damageRatio), -1, 1) * weightDamage
	escapeComponent := clamp(1-2*minf(1, escapeRate), -1, 1) * weightEscapes

	return clamp(eliminationComponent+timeComponent+damageComponent+escapeComponent, -1, 1)
}

// WaveAdjustmentsFor computes the next wave's derived parameters from
// baseCount and the current multiplier.
func (d *DifficultyScaler) WaveAdjustmentsFor(baseCount int) WaveAdjustments {
	m := d.multiplier

	hostileCount := int(round(float64(baseCount) * m))
	if hostileCount < 1 {
		hostileCount = 1
	}

	adj := WaveAdjustments{
		HostileCount:       hostileCount,
		HostileHealthBonus: maxf(0, (m-1.0)*0.3),
		HostileSpeedBonus:  maxf(0, (m-1.0)*0.15),
		Hardened:           m > hardenedThresh,
		Easy:               m < easyThresh,
	}
	if adj.Hardened {
		adj.FlankChanceBoost = (m - hardenedThresh) * 0.5
		adj.UseCoverSeeking = true
		adj.EliteCount = 1
	}
	if adj.Easy {
		adj.DisableFlanking = true
		adj.SpeedReduction = (easyThresh - m) * 0.3
	}
	return adj
}

// Reset clears history and restores the neutral multiplier, used by
// SimulationEngine.ResetGame.
func (d *DifficultyScaler) Reset() {
	d.multiplier = 1.0
	d.history = nil
	d.lastEliminationRate = 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func round(v float64) float64 {
	if v < 0 {
		return -round(-v)
	}
	i := float64(int64(v))
	if v-i >= 0.5 {
		return i + 1
	}
	return i
}
