package cot

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

var testRef = model.NewGeoReference(37.7749, -122.4194, 16)

func roverView() model.TargetView {
	return model.TargetView{
		TargetID:  "rover-1",
		Name:      "Rover One",
		Alliance:  string(model.Friendly),
		AssetType: model.AssetRover,
		Geo:       &model.GeoPoint{Lat: 37.7751, Lng: -122.4192, Alt: 16},
		Heading:   45,
		Speed:     1.5,
		Battery:   0.85,
		Health:    100,
		MaxHealth: 100,
		Status:    string(model.StatusActive),
	}
}

func TestTargetEventRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)
	ev := BuildTargetEvent(roverView(), testRef, now, 60)

	data, err := ev.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParseTargetEvent(data, testRef)
	if err != nil {
		t.Fatal(err)
	}

	if got.TargetID != "rover-1" {
		t.Fatalf("id = %q", got.TargetID)
	}
	if got.Alliance != string(model.Friendly) {
		t.Fatalf("alliance = %q, want friendly", got.Alliance)
	}
	if got.AssetType != model.AssetRover {
		t.Fatalf("asset type = %q, want rover", got.AssetType)
	}
	if math.Abs(got.Speed-1.5) > 0.1 {
		t.Fatalf("speed = %v, want 1.5 +/- 0.1", got.Speed)
	}
	if math.Abs(got.Heading-45) > 0.1 {
		t.Fatalf("heading = %v, want 45 +/- 0.1", got.Heading)
	}
	if math.Abs(got.Battery-0.85) > 0.01 {
		t.Fatalf("battery = %v, want 0.85", got.Battery)
	}

	// Position tolerance: +/- 1m at the reference.
	want := testRef.ToLocal(model.GeoPoint{Lat: 37.7751, Lng: -122.4192})
	if model.Dist(got.Position, want) > 1.0 {
		t.Fatalf("position drifted %vm in round trip", model.Dist(got.Position, want))
	}
}

func TestAffiliationCharFollowsAlliance(t *testing.T) {
	now := time.Now()
	tests := []struct {
		alliance model.Alliance
		wantChar string
	}{
		{model.Friendly, "a-f-"},
		{model.Hostile, "a-h-"},
		{model.Neutral, "a-n-"},
		{model.Unknown, "a-u-"},
	}
	for _, tc := range tests {
		v := roverView()
		v.Alliance = string(tc.alliance)
		ev := BuildTargetEvent(v, testRef, now, 60)
		if !strings.HasPrefix(ev.Type, tc.wantChar) {
			t.Errorf("%s: type = %q, want prefix %q", tc.alliance, ev.Type, tc.wantChar)
		}
	}
}

func TestReverseLookup(t *testing.T) {
	tests := []struct {
		name     string
		typeCode string
		want     string
	}{
		{"exact rover", "a-f-G-U-C", model.AssetRover},
		// person and hostile_person share the same code modulo
		// affiliation; the first registry entry in sorted order wins.
		{"equal-code tie keeps first registry entry", "a-f-G-U-C-I", model.AssetHostilePerson},
		{"longest prefix wins", "a-f-G-E-W-H-X-Y", model.AssetHeavyTurret},
		{"prefix to plain turret", "a-f-G-E-W-Q", model.AssetTurret},
		{"unknown falls back to person", "x-zz-nothing", model.AssetPerson},
	}
	for _, tc := range tests {
		if got := ReverseLookup(tc.typeCode); got != tc.want {
			t.Errorf("%s: ReverseLookup(%q) = %q, want %q", tc.name, tc.typeCode, got, tc.want)
		}
	}
}

func TestParseRejectsMissingUID(t *testing.T) {
	if _, err := ParseTargetEvent([]byte(`<event type="a-f-G"><point lat="0" lon="0" hae="0" ce="0" le="0"/></event>`), testRef); err == nil {
		t.Fatal("event without uid accepted")
	}
}

func TestStaleReflectsConfiguredWindow(t *testing.T) {
	now := time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)
	ev := BuildTargetEvent(roverView(), testRef, now, 60)
	stale, err := parseTime(ev.Stale)
	if err != nil {
		t.Fatal(err)
	}
	if got := stale.Sub(now); got != 60*time.Second {
		t.Fatalf("stale window = %v, want 60s", got)
	}
}

func TestExtendedEventsRoundTrip(t *testing.T) {
	now := time.Now()
	events := []Event{
		BuildVideoFeed("cam-1", "North Cam", "rtsp://cam/1", 37.7, -122.4, now, 300),
		BuildEmergency("unit-9", "Niner", "911", false, 37.7, -122.4, now),
		BuildTasking("task-1", "rover-1", "move-to", 37.7, -122.4, now, 60),
		BuildSensorReading("s1", "motion", 1, true, 37.7, -122.4, now, 60),
		BuildSpotReport("scout-2", "hostile_vehicle", "moving west", "two trucks", 2, 37.7, -122.4, now, 60),
	}
	for _, ev := range events {
		data, err := ev.Marshal()
		if err != nil {
			t.Fatal(err)
		}
		got, typeCode, err := ParseExtended(data)
		if err != nil {
			t.Fatalf("parse %s: %v", ev.Type, err)
		}
		if typeCode != ev.Type {
			t.Fatalf("type = %q, want %q", typeCode, ev.Type)
		}
		if got.UID != ev.UID {
			t.Fatalf("uid = %q, want %q", got.UID, ev.UID)
		}
	}
}
