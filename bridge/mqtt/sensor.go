package mqtt

import (
	"encoding/json"
	"time"
)

// sensorEvent is the JSON document published on the per-sensor event
// topic when a virtual or physical sensor triggers.
type sensorEvent struct {
	SensorID    string  `json:"sensor_id"`
	Name        string  `json:"name"`
	Kind        string  `json:"type"`
	TriggeredBy string  `json:"triggered_by,omitempty"`
	TargetID    string  `json:"target_id,omitempty"`
	Timestamp   string  `json:"timestamp"`
}

func encodeSensorEvent(payload map[string]any) ([]byte, error) {
	ev := sensorEvent{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	ev.SensorID, _ = payload["sensor_id"].(string)
	ev.Name, _ = payload["name"].(string)
	ev.Kind, _ = payload["type"].(string)
	ev.TriggeredBy, _ = payload["triggered_by"].(string)
	ev.TargetID, _ = payload["target_id"].(string)
	return json.Marshal(ev)
}
