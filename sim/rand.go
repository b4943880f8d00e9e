package sim

import "math/rand"

// defaultRoll returns a uniform float in [0,1) for accuracy/hit-chance
// rolls. CombatSystem.roll is swappable so tests can force deterministic
// outcomes.
func defaultRoll() float64 {
	return rand.Float64()
}
