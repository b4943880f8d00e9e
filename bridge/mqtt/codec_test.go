package mqtt

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

func TestTelemetryRoundTrip(t *testing.T) {
	x, y := 12.5, -7.25
	lat, lng := 37.7751, -122.4192
	original := Telemetry{
		RobotID:    "robot-7",
		X:          &x,
		Y:          &y,
		Lat:        &lat,
		Lng:        &lng,
		Alt:        16,
		Heading:    135,
		Speed:      2.0,
		Battery:    0.62,
		MotorTemps: []float64{41.5, 39.8},
		Status:     "moving",
	}
	data, err := EncodeTelemetry(original)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeTelemetry(data)
	if err != nil {
		t.Fatal(err)
	}

	if got.RobotID != original.RobotID || got.Status != original.Status {
		t.Fatalf("identity fields drifted: %+v", got)
	}
	if *got.X != x || *got.Y != y || *got.Lat != lat || *got.Lng != lng {
		t.Fatalf("position fields drifted: %+v", got)
	}
	if got.Heading != original.Heading || got.Speed != original.Speed || got.Battery != original.Battery {
		t.Fatalf("motion fields drifted: %+v", got)
	}
	if len(got.MotorTemps) != 2 || got.MotorTemps[0] != 41.5 {
		t.Fatalf("motor temps drifted: %v", got.MotorTemps)
	}
}

func TestDecodeRejectsMissingRobotID(t *testing.T) {
	if _, err := DecodeTelemetry([]byte(`{"x": 1, "y": 2}`)); err == nil {
		t.Fatal("telemetry without robot_id accepted")
	}
	if _, err := DecodeTelemetry([]byte(`not json`)); err == nil {
		t.Fatal("malformed telemetry accepted")
	}
}

func TestToTargetViewPrefersLocalXY(t *testing.T) {
	ref := model.NewGeoReference(37.7749, -122.4194, 0)
	x, y := 10.0, 20.0
	lat, lng := 37.9, -122.0 // deliberately inconsistent with x/y
	tele := Telemetry{RobotID: "r1", X: &x, Y: &y, Lat: &lat, Lng: &lng}
	v := tele.ToTargetView(ref)
	if v.Position != (model.Vec2{X: 10, Y: 20}) {
		t.Fatalf("position = %+v, want local x/y to win", v.Position)
	}
}

func TestToTargetViewConvertsLatLng(t *testing.T) {
	ref := model.NewGeoReference(37.7749, -122.4194, 0)
	lat, lng := 37.7751, -122.4192
	tele := Telemetry{RobotID: "r1", Lat: &lat, Lng: &lng}
	v := tele.ToTargetView(ref)
	want := ref.ToLocal(model.GeoPoint{Lat: lat, Lng: lng})
	if model.Dist(v.Position, want) > 0.01 {
		t.Fatalf("position = %+v, want %+v", v.Position, want)
	}
}

func TestFromTargetViewInverse(t *testing.T) {
	v := model.TargetView{
		TargetID: "r1",
		Position: model.Vec2{X: 3, Y: 4},
		Heading:  90,
		Speed:    1.5,
		Battery:  0.8,
		Status:   "active",
	}
	tele := FromTargetView(v)
	back := tele.ToTargetView(nil)
	if math.Abs(back.Position.X-3) > 1e-9 || math.Abs(back.Position.Y-4) > 1e-9 {
		t.Fatalf("position round trip drifted: %+v", back.Position)
	}
	if back.Speed != 1.5 || back.Battery != 0.8 || back.Heading != 90 {
		t.Fatalf("motion round trip drifted: %+v", back)
	}
}

func TestEncodeCommandStampsTimestamp(t *testing.T) {
	now := time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)
	x, y := 5.0, 6.0
	data, err := EncodeCommand(Command{Action: "dispatch", X: &x, Y: &y}, now)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["action"] != "dispatch" {
		t.Fatalf("action = %v", decoded["action"])
	}
	if decoded["timestamp"] != "2026-08-02T12:00:00Z" {
		t.Fatalf("timestamp = %v", decoded["timestamp"])
	}
}
