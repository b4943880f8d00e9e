package sim

import (
	"testing"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

func TestHazardLifecycle(t *testing.T) {
	bus := eventbus.New(nil)
	spawned := bus.Subscribe("hazard_spawned", 0)
	defer spawned.Close()
	expired := bus.Subscribe("hazard_expired", 0)
	defer expired.Close()

	h := NewHazardManager(bus, nil)
	h.Spawn(model.HazardFire, model.Vec2{X: 5}, 10, 30, 0)

	if len(drainKinds(spawned)) != 1 {
		t.Fatal("hazard_spawned not emitted")
	}
	if !h.IsBlocked(model.Vec2{X: 5}) {
		t.Fatal("center of active hazard not blocked")
	}
	if !h.IsBlocked(model.Vec2{X: 14}) {
		t.Fatal("point inside radius not blocked")
	}
	if h.IsBlocked(model.Vec2{X: 16}) {
		t.Fatal("point outside radius blocked")
	}

	h.Tick(29)
	if len(h.Active()) != 1 {
		t.Fatal("hazard expired early")
	}
	h.Tick(30)
	if len(h.Active()) != 0 {
		t.Fatal("hazard survived past its TTL")
	}
	if len(drainKinds(expired)) != 1 {
		t.Fatal("hazard_expired not emitted")
	}
	if h.IsBlocked(model.Vec2{X: 5}) {
		t.Fatal("expired hazard still blocks")
	}
}

func TestSpawnRandomStaysInBounds(t *testing.T) {
	h := NewHazardManager(nil, nil)
	for _, hz := range h.SpawnRandom(20, 100, 0) {
		if hz.Center.X < -100 || hz.Center.X > 100 || hz.Center.Y < -100 || hz.Center.Y > 100 {
			t.Fatalf("hazard center %+v outside map bounds", hz.Center)
		}
		if hz.Radius < hazardMinRadius || hz.Radius > hazardMaxRadius {
			t.Fatalf("hazard radius %v outside [%v, %v]", hz.Radius, hazardMinRadius, hazardMaxRadius)
		}
	}
	if got := len(h.Active()); got != 20 {
		t.Fatalf("active hazards = %d, want 20", got)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	h := NewHazardManager(nil, nil)
	h.SpawnRandom(5, 50, 0)
	h.Clear()
	if len(h.Active()) != 0 {
		t.Fatal("Clear left hazards behind")
	}
}
