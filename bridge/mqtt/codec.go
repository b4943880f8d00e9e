// Package mqtt bridges robot telemetry and command traffic between the
// engine and an MQTT broker. Telemetry arrives as JSON on
// tritium/{site}/robots/{id}/telemetry, is normalized into the
// canonical target view (mqtt_ prefixed) for the tracker, and can be
// re-expressed as CoT for the TAK side; commands flow the other way on
// the per-robot command topic.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/valpatel/tritium-sc/engine-core/errkind"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

// Telemetry is the robot-reported state document. Position arrives
// either as local meters (x/y) or as lat/lng; both are carried so the
// codec round-trips exactly what the robot sent.
type Telemetry struct {
	RobotID    string    `json:"robot_id"`
	X          *float64  `json:"x,omitempty"`
	Y          *float64  `json:"y,omitempty"`
	Lat        *float64  `json:"lat,omitempty"`
	Lng        *float64  `json:"lng,omitempty"`
	Alt        float64   `json:"alt,omitempty"`
	Heading    float64   `json:"heading"`
	Speed      float64   `json:"speed"`
	Battery    float64   `json:"battery"`
	MotorTemps []float64 `json:"motor_temps,omitempty"`
	Status     string    `json:"status"`
}

// Command is the engine-to-robot instruction document.
type Command struct {
	Action    string   `json:"action"` // dispatch | patrol | recall | turret_aim
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
	Waypoints [][2]float64 `json:"waypoints,omitempty"`
	Bearing   *float64 `json:"bearing,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// DecodeTelemetry parses and minimally validates a telemetry payload.
func DecodeTelemetry(data []byte) (Telemetry, error) {
	var t Telemetry
	if err := json.Unmarshal(data, &t); err != nil {
		return Telemetry{}, errkind.New(errkind.ProtocolError, "decode telemetry", err)
	}
	if t.RobotID == "" {
		return Telemetry{}, errkind.New(errkind.ProtocolError, "decode telemetry",
			fmt.Errorf("missing robot_id"))
	}
	return t, nil
}

// EncodeTelemetry renders a telemetry document, the exact inverse of
// DecodeTelemetry for all declared fields.
func EncodeTelemetry(t Telemetry) ([]byte, error) {
	return json.Marshal(t)
}

// EncodeCommand renders a command with its timestamp stamped.
func EncodeCommand(c Command, now time.Time) ([]byte, error) {
	c.Timestamp = now.UTC().Format(time.RFC3339)
	return json.Marshal(c)
}

// ToTargetView normalizes telemetry into the canonical view. Local x/y
// wins when present; otherwise lat/lng converts through the geo
// reference (a nil reference leaves Position zero and keeps Geo).
func (t Telemetry) ToTargetView(ref *model.GeoReference) model.TargetView {
	v := model.TargetView{
		TargetID:  t.RobotID,
		Name:      t.RobotID,
		Alliance:  string(model.Friendly),
		AssetType: model.AssetRover,
		Heading:   t.Heading,
		Speed:     t.Speed,
		Battery:   t.Battery,
		Status:    t.Status,
	}
	if v.Status == "" {
		v.Status = string(model.StatusActive)
	}
	switch {
	case t.X != nil && t.Y != nil:
		v.Position = model.Vec2{X: *t.X, Y: *t.Y}
		if ref != nil {
			g := ref.ToGeo(v.Position)
			v.Geo = &g
		}
	case t.Lat != nil && t.Lng != nil:
		v.Geo = &model.GeoPoint{Lat: *t.Lat, Lng: *t.Lng, Alt: t.Alt}
		if ref != nil {
			v.Position = ref.ToLocal(*v.Geo)
		}
	}
	return v
}

// FromTargetView expresses an engine view as robot telemetry, used when
// mirroring the fake fleet out to the broker.
func FromTargetView(v model.TargetView) Telemetry {
	x, y := v.Position.X, v.Position.Y
	t := Telemetry{
		RobotID: v.TargetID,
		X:       &x,
		Y:       &y,
		Heading: v.Heading,
		Speed:   v.Speed,
		Battery: v.Battery,
		Status:  v.Status,
	}
	if v.Geo != nil {
		lat, lng := v.Geo.Lat, v.Geo.Lng
		t.Lat, t.Lng, t.Alt = &lat, &lng, v.Geo.Alt
	}
	return t
}
