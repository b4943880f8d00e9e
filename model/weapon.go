package model

// WeaponClass selects the CombatSystem resolution strategy for a shot.
type WeaponClass string

const (
	WeaponBallistic WeaponClass = "ballistic"
	WeaponBeam      WeaponClass = "beam"
	WeaponAOE       WeaponClass = "aoe"
	WeaponMissile   WeaponClass = "missile"
)

// Weapon is per-unit weapon state. Shared templates (CombatStats in the
// unit type registry) are cloned on equip so units never share ammo state.
type Weapon struct {
	Name        string
	Damage      float64
	Range       float64
	Cooldown    float64
	Accuracy    float64
	Ammo        int
	MaxAmmo     int
	Class       WeaponClass
	BlastRadius float64

	// CooldownRemaining counts down to zero between shots.
	CooldownRemaining float64
}

// WeaponFromStats clones a CombatStats template into a fresh owned Weapon.
func WeaponFromStats(s CombatStats) Weapon {
	return Weapon{
		Name:        s.WeaponName,
		Damage:      s.Damage,
		Range:       s.WeaponRange,
		Cooldown:    s.Cooldown,
		Accuracy:    s.Accuracy,
		Ammo:        s.Ammo,
		MaxAmmo:     s.MaxAmmo,
		Class:       s.WeaponClass,
		BlastRadius: s.BlastRadius,
	}
}

// AmmoPct returns the ammo fraction remaining, 1.0 for a weapon with no
// max ammo tracked.
func (w Weapon) AmmoPct() float64 {
	if w.MaxAmmo <= 0 {
		return 1.0
	}
	return float64(w.Ammo) / float64(w.MaxAmmo)
}

// Projectile is a finite-life in-flight shot resolved by CombatSystem on
// arrival or miss.
type Projectile struct {
	ID          string
	ShooterID   string
	TargetID    string
	Origin      Vec2
	Current     Vec2
	Velocity    Vec2 // m/s
	Class       WeaponClass
	Damage      float64
	BlastRadius float64
	Range       float64
	SpawnTime   float64 // sim-monotonic seconds
	HitTimeEst  float64
}
