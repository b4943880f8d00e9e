package sim

import (
	"fmt"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

// FakeFleet spawns synthetic rover targets that stand in for real
// MQTT-connected robots during development and demos. The robots are
// ordinary engine targets (the tick loop moves them and drains their
// batteries); the fleet only remembers which IDs it owns so the MQTT
// bridge can mirror them out as telemetry.
type FakeFleet struct {
	engine *Engine
	ids    []string
}

// fakeRobotSpacing is the gap between fleet home positions, meters.
const fakeRobotSpacing = 5.0

// NewFakeFleet spawns count fake robots in a line near the origin and
// registers them with the engine as friendly rovers.
func NewFakeFleet(engine *Engine, count int) (*FakeFleet, error) {
	f := &FakeFleet{engine: engine}
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("fake-robot-%d", i+1)
		t := model.NewTarget(id, id, model.Friendly, model.AssetRover,
			model.Vec2{X: float64(i) * fakeRobotSpacing, Y: 0}, 0)
		if err := engine.AddTarget(t); err != nil {
			return nil, fmt.Errorf("spawn fake fleet: %w", err)
		}
		f.ids = append(f.ids, id)
	}
	return f, nil
}

// IDs returns the fleet's target IDs in spawn order.
func (f *FakeFleet) IDs() []string {
	return append([]string{}, f.ids...)
}

// Dispatch routes one fleet robot to dest through the engine's normal
// dispatch path (street graph, hazards, clamping all apply).
func (f *FakeFleet) Dispatch(id string, dest model.Vec2) error {
	return f.engine.DispatchUnit(id, dest)
}

// Telemetry returns the current view of every fleet robot, in the shape
// the MQTT bridge publishes on the per-robot telemetry topic.
func (f *FakeFleet) Telemetry() []model.TargetView {
	out := make([]model.TargetView, 0, len(f.ids))
	for _, id := range f.ids {
		if t, ok := f.engine.GetTarget(id); ok {
			out = append(out, model.ViewOf(&t))
		}
	}
	return out
}
