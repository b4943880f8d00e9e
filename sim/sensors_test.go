package sim

import (
	"testing"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

func TestSensorTriggersAndClears(t *testing.T) {
	bus := eventbus.New(nil)
	triggered := bus.Subscribe("sensor_triggered", 0)
	defer triggered.Close()
	cleared := bus.Subscribe("sensor_cleared", 0)
	defer cleared.Close()

	s := NewSensorSimulator(bus, nil)
	s.AddSensor("s1", "front door", SensorMotion, model.Vec2{}, 10)

	intruder := model.NewTarget("h1", "h1", model.Hostile, model.AssetHostilePerson, model.Vec2{X: 5}, 0)
	s.Tick(10, []*model.Target{intruder})
	if len(drainKinds(triggered)) != 1 {
		t.Fatal("sensor did not trigger on target in radius")
	}

	intruder.Position = model.Vec2{X: 50}
	s.Tick(11, []*model.Target{intruder})
	if len(drainKinds(cleared)) != 1 {
		t.Fatal("sensor did not clear when target left")
	}
}

func TestSensorDebounce(t *testing.T) {
	bus := eventbus.New(nil)
	triggered := bus.Subscribe("sensor_triggered", 0)
	defer triggered.Close()

	s := NewSensorSimulator(bus, nil)
	s.AddSensor("s1", "s1", SensorTripwire, model.Vec2{}, 10)
	in := model.NewTarget("h1", "h1", model.Hostile, model.AssetHostilePerson, model.Vec2{X: 5}, 0)
	out := model.NewTarget("h1", "h1", model.Hostile, model.AssetHostilePerson, model.Vec2{X: 50}, 0)

	s.Tick(10, []*model.Target{in})    // fires
	s.Tick(10.5, []*model.Target{out}) // clears
	s.Tick(11, []*model.Target{in})    // inside debounce window: suppressed
	s.Tick(11.5, []*model.Target{out})
	s.Tick(14, []*model.Target{in}) // past 3s debounce: fires again

	if got := len(drainKinds(triggered)); got != 2 {
		t.Fatalf("triggered %d times, want 2 (debounce suppressed the middle one)", got)
	}
}

func TestSensorIgnoresTerminalTargets(t *testing.T) {
	bus := eventbus.New(nil)
	triggered := bus.Subscribe("sensor_triggered", 0)
	defer triggered.Close()

	s := NewSensorSimulator(bus, nil)
	s.AddSensor("s1", "s1", SensorDoor, model.Vec2{}, 10)
	dead := model.NewTarget("h1", "h1", model.Hostile, model.AssetHostilePerson, model.Vec2{X: 2}, 0)
	dead.ApplyDamage(1000)

	s.Tick(10, []*model.Target{dead})
	if len(drainKinds(triggered)) != 0 {
		t.Fatal("sensor triggered on an eliminated target")
	}
}
