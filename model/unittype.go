package model

// Category groups asset types by movement domain, matching the
// pathfinder's policy split (air / ground / foot / stationary).
type Category string

const (
	CategoryStationary Category = "stationary"
	CategoryGround     Category = "ground"
	CategoryFoot       Category = "foot"
	CategoryAir        Category = "air"
)

// CombatStats are the default combat loadout values an asset type confers
// at spawn, before any per-wave DifficultyScaler bonus is applied.
type CombatStats struct {
	WeaponName   string
	Damage       float64
	WeaponRange  float64
	Cooldown     float64
	Accuracy     float64
	Ammo         int
	MaxAmmo      int
	WeaponClass  WeaponClass
	BlastRadius  float64
}

// UnitType is an immutable class-like record in the closed unit type
// registry. The registry is populated once at package init and never
// mutated afterward, so reads need no synchronization.
type UnitType struct {
	TypeID        string
	DisplayName   string
	Icon          string
	CotType       string
	Category      Category
	Speed         float64
	DrainRate     float64
	VisionRadius  float64
	AmbientRadius float64
	Combat        CombatStats
	Placeable     bool
}

// IsCombatant reports whether this asset type carries a weapon by default.
func (u UnitType) IsCombatant() bool {
	return u.Combat.WeaponRange > 0
}

// Asset type IDs. The registry is closed: new unit kinds are added
// here at compile time, never discovered at runtime.
const (
	AssetTurret         = "turret"
	AssetHeavyTurret    = "heavy_turret"
	AssetMissileTurret  = "missile_turret"
	AssetRover          = "rover"
	AssetDrone          = "drone"
	AssetScoutDrone     = "scout_drone"
	AssetTank           = "tank"
	AssetAPC            = "apc"
	AssetPerson         = "person"
	AssetHostilePerson  = "hostile_person"
	AssetHostileLeader  = "hostile_leader"
	AssetHostileVehicle = "hostile_vehicle"
	AssetVehicle        = "vehicle"
	AssetAnimal         = "animal"
	AssetCamera         = "camera"
	AssetSensor         = "sensor"
	AssetSwarmDrone     = "swarm_drone"
)

var registry = map[string]UnitType{
	AssetTurret: {
		TypeID: AssetTurret, DisplayName: "Turret", Icon: "turret", CotType: "a-f-G-E-W",
		Category: CategoryStationary, Speed: 0, DrainRate: 0.0002, VisionRadius: 25, AmbientRadius: 0,
		Combat: CombatStats{WeaponName: "nerf_turret_gun", Damage: 15, WeaponRange: 20, Cooldown: 1.5, Accuracy: 0.9, Ammo: 100, MaxAmmo: 100, WeaponClass: WeaponBallistic},
		Placeable: true,
	},
	AssetHeavyTurret: {
		TypeID: AssetHeavyTurret, DisplayName: "Heavy Turret", Icon: "heavy_turret", CotType: "a-f-G-E-W-H",
		Category: CategoryStationary, Speed: 0, DrainRate: 0.0003, VisionRadius: 35, AmbientRadius: 0,
		Combat: CombatStats{WeaponName: "nerf_heavy_turret", Damage: 25, WeaponRange: 30, Cooldown: 2.5, Accuracy: 0.85, Ammo: 50, MaxAmmo: 50, WeaponClass: WeaponBallistic},
	},
	AssetMissileTurret: {
		TypeID: AssetMissileTurret, DisplayName: "Missile Turret", Icon: "missile_turret", CotType: "a-f-G-E-W-M",
		Category: CategoryStationary, Speed: 0, DrainRate: 0.0004, VisionRadius: 40, AmbientRadius: 0,
		Combat: CombatStats{WeaponName: "nerf_missile_launcher", Damage: 50, WeaponRange: 35, Cooldown: 5, Accuracy: 0.95, Ammo: 10, MaxAmmo: 10, WeaponClass: WeaponMissile},
	},
	AssetRover: {
		TypeID: AssetRover, DisplayName: "Rover", Icon: "rover", CotType: "a-f-G-U-C",
		Category: CategoryGround, Speed: 2.0, DrainRate: 0.001, VisionRadius: 20, AmbientRadius: 10,
		Combat: CombatStats{WeaponName: "nerf_cannon", Damage: 12, WeaponRange: 10, Cooldown: 2, Accuracy: 0.85, Ammo: 40, MaxAmmo: 40, WeaponClass: WeaponBallistic},
		Placeable: true,
	},
	AssetDrone: {
		TypeID: AssetDrone, DisplayName: "Drone", Icon: "drone", CotType: "a-f-A-M-F-Q",
		Category: CategoryAir, Speed: 4.0, DrainRate: 0.002, VisionRadius: 30, AmbientRadius: 0,
		Combat: CombatStats{WeaponName: "nerf_dart_gun", Damage: 8, WeaponRange: 12, Cooldown: 1, Accuracy: 0.75, Ammo: 20, MaxAmmo: 20, WeaponClass: WeaponBallistic},
		Placeable: true,
	},
	AssetScoutDrone: {
		TypeID: AssetScoutDrone, DisplayName: "Scout Drone", Icon: "scout_drone", CotType: "a-f-A-M-F-Q-R",
		Category: CategoryAir, Speed: 6.0, DrainRate: 0.0025, VisionRadius: 45, AmbientRadius: 0,
		Combat: CombatStats{WeaponName: "nerf_scout_gun", Damage: 5, WeaponRange: 8, Cooldown: 1.5, Accuracy: 0.65, Ammo: 15, MaxAmmo: 15, WeaponClass: WeaponBallistic},
		Placeable: true,
	},
	AssetTank: {
		TypeID: AssetTank, DisplayName: "Tank", Icon: "tank", CotType: "a-h-G-E-V-A-T",
		Category: CategoryGround, Speed: 1.5, DrainRate: 0.0015, VisionRadius: 25, AmbientRadius: 0,
		Combat: CombatStats{WeaponName: "nerf_tank_cannon", Damage: 30, WeaponRange: 25, Cooldown: 3, Accuracy: 0.8, Ammo: 20, MaxAmmo: 20, WeaponClass: WeaponAOE, BlastRadius: 3},
	},
	AssetAPC: {
		TypeID: AssetAPC, DisplayName: "APC", Icon: "apc", CotType: "a-h-G-E-V-A-A",
		Category: CategoryGround, Speed: 2.5, DrainRate: 0.0012, VisionRadius: 20, AmbientRadius: 0,
		Combat: CombatStats{WeaponName: "nerf_apc_mg", Damage: 8, WeaponRange: 15, Cooldown: 1, Accuracy: 0.7, Ammo: 60, MaxAmmo: 60, WeaponClass: WeaponBallistic},
	},
	AssetPerson: {
		TypeID: AssetPerson, DisplayName: "Person", Icon: "person", CotType: "a-f-G-U-C-I",
		Category: CategoryFoot, Speed: 1.2, DrainRate: 0.0005, VisionRadius: 15, AmbientRadius: 8,
	},
	AssetHostilePerson: {
		TypeID: AssetHostilePerson, DisplayName: "Hostile Person", Icon: "hostile_person", CotType: "a-h-G-U-C-I",
		Category: CategoryFoot, Speed: 1.3, DrainRate: 0.0005, VisionRadius: 18, AmbientRadius: 8,
		Combat: CombatStats{WeaponName: "nerf_pistol", Damage: 10, WeaponRange: 8, Cooldown: 2.5, Accuracy: 0.6, Ammo: 15, MaxAmmo: 15, WeaponClass: WeaponBallistic},
	},
	AssetHostileLeader: {
		TypeID: AssetHostileLeader, DisplayName: "Hostile Leader", Icon: "hostile_leader", CotType: "a-h-G-U-C-I-L",
		Category: CategoryFoot, Speed: 1.1, DrainRate: 0.0005, VisionRadius: 22, AmbientRadius: 12,
		Combat: CombatStats{WeaponName: "nerf_pistol", Damage: 14, WeaponRange: 9, Cooldown: 2.2, Accuracy: 0.68, Ammo: 20, MaxAmmo: 20, WeaponClass: WeaponBallistic},
	},
	AssetHostileVehicle: {
		TypeID: AssetHostileVehicle, DisplayName: "Hostile Vehicle", Icon: "hostile_vehicle", CotType: "a-h-G-E-V-A-A",
		Category: CategoryGround, Speed: 2.2, DrainRate: 0.0013, VisionRadius: 22, AmbientRadius: 0,
		Combat: CombatStats{WeaponName: "nerf_apc_mg", Damage: 9, WeaponRange: 14, Cooldown: 1.2, Accuracy: 0.68, Ammo: 50, MaxAmmo: 50, WeaponClass: WeaponBallistic},
	},
	AssetVehicle: {
		TypeID: AssetVehicle, DisplayName: "Vehicle", Icon: "vehicle", CotType: "a-f-G-E-V-C",
		Category: CategoryGround, Speed: 2.0, DrainRate: 0.001, VisionRadius: 18, AmbientRadius: 0,
	},
	AssetAnimal: {
		TypeID: AssetAnimal, DisplayName: "Animal", Icon: "animal", CotType: "a-n-G-U",
		Category: CategoryFoot, Speed: 1.8, DrainRate: 0, VisionRadius: 10, AmbientRadius: 5,
	},
	AssetCamera: {
		TypeID: AssetCamera, DisplayName: "Camera", Icon: "camera", CotType: "a-f-G-E-S-C",
		Category: CategoryStationary, Speed: 0, DrainRate: 0.0001, VisionRadius: 35, AmbientRadius: 0,
		Placeable: true,
	},
	AssetSensor: {
		TypeID: AssetSensor, DisplayName: "Sensor", Icon: "sensor", CotType: "a-f-G-E-S",
		Category: CategoryStationary, Speed: 0, DrainRate: 0.0001, VisionRadius: 15, AmbientRadius: 0,
		Placeable: true,
	},
	AssetSwarmDrone: {
		TypeID: AssetSwarmDrone, DisplayName: "Swarm Drone", Icon: "swarm_drone", CotType: "a-h-A-M-F-Q-S",
		Category: CategoryAir, Speed: 5.0, DrainRate: 0.002, VisionRadius: 20, AmbientRadius: 0,
		Combat: CombatStats{WeaponName: "nerf_scout_gun", Damage: 6, WeaponRange: 9, Cooldown: 1, Accuracy: 0.6, Ammo: 12, MaxAmmo: 12, WeaponClass: WeaponBallistic},
	},
}

// UnitTypeFor returns the registry entry for typeID and whether it exists.
func UnitTypeFor(typeID string) (UnitType, bool) {
	u, ok := registry[typeID]
	return u, ok
}

// AllUnitTypes returns every registered unit type, used by CoT reverse-lookup.
func AllUnitTypes() []UnitType {
	out := make([]UnitType, 0, len(registry))
	for _, u := range registry {
		out = append(out, u)
	}
	return out
}
