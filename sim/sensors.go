package sim

import (
	"log/slog"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

// sensorDebounceSeconds is the minimum gap between re-triggers of the same
// sensor, per original_source/src/engine/simulation/sensors.py.
const sensorDebounceSeconds = 3.0

// SensorKind distinguishes how a sensor is rendered/reported.
type SensorKind string

const (
	SensorMotion   SensorKind = "motion"
	SensorDoor     SensorKind = "door"
	SensorTripwire SensorKind = "tripwire"
)

// SensorDevice is a placed virtual sensor scenario designers seed onto
// the map.
type SensorDevice struct {
	SensorID      string
	Name          string
	Kind          SensorKind
	Position      model.Vec2
	Radius        float64
	Active        bool
	LastTriggered float64
	TriggeredBy   string
}

// SensorSimulator is a tick-driven virtual sensor network: each sensor
// activates when a live target enters its radius, debounced so a target
// loitering at the edge doesn't spam activations.
type SensorSimulator struct {
	bus     *eventbus.Bus
	log     *slog.Logger
	sensors []*SensorDevice
}

// NewSensorSimulator returns an empty sensor network publishing
// activation/clear events on bus.
func NewSensorSimulator(bus *eventbus.Bus, log *slog.Logger) *SensorSimulator {
	if log == nil {
		log = slog.Default()
	}
	return &SensorSimulator{bus: bus, log: log}
}

// AddSensor registers a new sensor device.
func (s *SensorSimulator) AddSensor(id, name string, kind SensorKind, pos model.Vec2, radius float64) {
	s.sensors = append(s.sensors, &SensorDevice{SensorID: id, Name: name, Kind: kind, Position: pos, Radius: radius})
}

// Sensors returns the registered sensor devices.
func (s *SensorSimulator) Sensors() []*SensorDevice { return s.sensors }

// Tick checks every sensor against the live target set, activating or
// clearing as targets enter/leave each sensor's radius.
func (s *SensorSimulator) Tick(now float64, targets []*model.Target) {
	for _, sensor := range s.sensors {
		var nearest *model.Target
		nearestDist := -1.0
		for _, t := range targets {
			if t.Status.Terminal() {
				continue
			}
			d := model.Dist(t.Position, sensor.Position)
			if d > sensor.Radius {
				continue
			}
			if nearest == nil || d < nearestDist {
				nearest, nearestDist = t, d
			}
		}

		switch {
		case nearest != nil && !sensor.Active:
			if now-sensor.LastTriggered >= sensorDebounceSeconds {
				sensor.Active = true
				sensor.LastTriggered = now
				sensor.TriggeredBy = nearest.Name
				s.publish("sensor_triggered", map[string]any{
					"sensor_id": sensor.SensorID, "name": sensor.Name, "type": string(sensor.Kind),
					"triggered_by": nearest.Name, "target_id": nearest.TargetID, "position": sensor.Position,
				})
			}
		case nearest == nil && sensor.Active:
			sensor.Active = false
			s.publish("sensor_cleared", map[string]any{
				"sensor_id": sensor.SensorID, "name": sensor.Name, "type": string(sensor.Kind), "position": sensor.Position,
			})
		}
	}
}

func (s *SensorSimulator) publish(kind string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Kind: kind, Payload: payload})
}
