package cot

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/valpatel/tritium-sc/engine-core/errkind"
)

// Extended event type codes. These follow the b-* (bits) family TAK
// clients already understand where one exists, and the sensor/spot
// variants used by the reference deployment otherwise.
const (
	TypeVideoFeed     = "b-m-p-s-p-loc"
	TypeEmergency     = "b-a-o-tbl"
	TypeTasking       = "t-x-t-a"
	TypeSensorReading = "b-m-p-s-r"
	TypeSpotReport    = "b-m-p-s-m"
)

// BuildVideoFeed announces a camera feed URL attached to a unit.
func BuildVideoFeed(uid, callsign, url string, lat, lng float64, now time.Time, staleSeconds float64) Event {
	return extendedEvent(uid, TypeVideoFeed, lat, lng, now, staleSeconds, &Detail{
		Contact: &Contact{Callsign: callsign},
		Video:   &Video{URL: url, Sensor: callsign},
	})
}

// BuildEmergency raises (or cancels) an emergency beacon for a unit.
func BuildEmergency(uid, callsign, emergencyType string, cancelled bool, lat, lng float64, now time.Time) Event {
	return extendedEvent(uid+"-9-1-1", TypeEmergency, lat, lng, now, 300, &Detail{
		Emergency: &Emergency{Type: emergencyType, Cancelled: cancelled, Callsign: callsign},
	})
}

// BuildTasking orders assignee toward a location.
func BuildTasking(uid, assignee, taskType string, lat, lng float64, now time.Time, staleSeconds float64) Event {
	return extendedEvent(uid, TypeTasking, lat, lng, now, staleSeconds, &Detail{
		Tasking: &Tasking{TaskType: taskType, Assignee: assignee, Lat: lat, Lon: lng},
	})
}

// BuildSensorReading publishes one sensor trigger/clear sample.
func BuildSensorReading(sensorID, kind string, value float64, triggered bool, lat, lng float64, now time.Time, staleSeconds float64) Event {
	return extendedEvent("sensor-"+sensorID, TypeSensorReading, lat, lng, now, staleSeconds, &Detail{
		Sensor: &Sensor{SensorID: sensorID, Kind: kind, Value: value, Triggered: triggered},
	})
}

// BuildSpotReport publishes a structured observation.
func BuildSpotReport(reporterUID, observed, activity, remarks string, count int, lat, lng float64, now time.Time, staleSeconds float64) Event {
	return extendedEvent(fmt.Sprintf("spot-%s-%d", reporterUID, now.UnixMilli()), TypeSpotReport,
		lat, lng, now, staleSeconds, &Detail{
			SpotRpt: &SpotRpt{ReporterUID: reporterUID, Observed: observed, Count: count, Activity: activity, Remarks: remarks},
		})
}

func extendedEvent(uid, typeCode string, lat, lng float64, now time.Time, staleSeconds float64, detail *Detail) Event {
	return Event{
		Version: "2.0",
		UID:     uid,
		Type:    typeCode,
		How:     "m-g",
		Time:    formatTime(now),
		Start:   formatTime(now),
		Stale:   formatTime(now.Add(time.Duration(staleSeconds * float64(time.Second)))),
		Point:   Point{Lat: lat, Lon: lng, CE: unknownErr, LE: unknownErr},
		Detail:  detail,
	}
}

// ParseExtended decodes one of the extended family, reporting which
// variant it found via the returned type code. Callers switch on the
// code and read the matching Detail field.
func ParseExtended(data []byte) (Event, string, error) {
	var ev Event
	if err := xml.Unmarshal(data, &ev); err != nil {
		return Event{}, "", errkind.New(errkind.ProtocolError, "parse extended cot", err)
	}
	switch ev.Type {
	case TypeVideoFeed, TypeEmergency, TypeTasking, TypeSensorReading, TypeSpotReport:
		return ev, ev.Type, nil
	default:
		return Event{}, "", errkind.New(errkind.ProtocolError, "parse extended cot",
			fmt.Errorf("type %q is not an extended event", ev.Type))
	}
}
