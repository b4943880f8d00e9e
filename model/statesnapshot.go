package model

// TargetView is the flattened, read-only projection of a Target sent to
// telemetry subscribers and the TAK/MQTT bridges. It intentionally omits
// internal bookkeeping fields (eliminatedEmitted, FSM implementation
// details) that have no meaning outside the engine.
type TargetView struct {
	TargetID   string  `json:"target_id"`
	Name       string  `json:"name"`
	Alliance   string  `json:"alliance"`
	AssetType  string  `json:"asset_type"`
	Position   Vec2    `json:"position"`
	Geo        *GeoPoint `json:"geo,omitempty"`
	Heading    float64 `json:"heading"`
	Speed      float64 `json:"speed"`
	Health     float64 `json:"health"`
	MaxHealth  float64 `json:"max_health"`
	Battery    float64 `json:"battery"`
	Status     string  `json:"status"`
	SquadID    string  `json:"squad_id,omitempty"`
	Kills      int     `json:"kills"`
}

// ViewOf projects a Target into its wire-safe TargetView.
func ViewOf(t *Target) TargetView {
	return TargetView{
		TargetID:  t.TargetID,
		Name:      t.Name,
		Alliance:  string(t.Alliance),
		AssetType: t.AssetType,
		Position:  t.Position,
		Geo:       t.Geo,
		Heading:   t.Heading,
		Speed:     t.Speed,
		Health:    t.Health,
		MaxHealth: t.MaxHealth,
		Battery:   t.Battery,
		Status:    string(t.Status),
		SquadID:   t.SquadID,
		Kills:     t.Kills,
	}
}

// StateSnapshot is the top-level payload broadcast to telemetry
// subscribers once per tick (or per batch interval, per the
// TelemetryBatcher): the engine state flattened into a JSON-tagged wire
// struct covering the full target set and wave/game-mode status.
type StateSnapshot struct {
	Tick       int64        `json:"tick"`
	SimTime    float64      `json:"sim_time"`
	GameMode   string       `json:"game_mode"`
	WaveIndex  int          `json:"wave_index"`
	Targets    []TargetView `json:"targets"`
	Hazards    []Hazard     `json:"hazards,omitempty"`
}
