// Package cot implements the TAK bridge: Cursor-on-Target XML encoding
// of engine targets, a long-lived TCP client with reconnect, GeoChat,
// and the extended event family (video feeds, emergencies, tasking,
// sensor readings, spot reports). One canonical builder/parser pair
// round-trips every target so the wire format never drifts from the
// engine's view.
package cot

import (
	"encoding/xml"
	"time"
)

// cotTimeFormat is the timestamp layout TAK peers expect.
const cotTimeFormat = "2006-01-02T15:04:05.000Z"

// Event is a CoT event element.
type Event struct {
	XMLName xml.Name `xml:"event"`
	Version string   `xml:"version,attr"`
	UID     string   `xml:"uid,attr"`
	Type    string   `xml:"type,attr"`
	How     string   `xml:"how,attr,omitempty"`
	Time    string   `xml:"time,attr"`
	Start   string   `xml:"start,attr"`
	Stale   string   `xml:"stale,attr"`
	Point   Point    `xml:"point"`
	Detail  *Detail  `xml:"detail,omitempty"`
}

// Point is the event's geolocation. CE/LE are circular/linear error
// bounds in meters; 9999999 conventionally means unknown.
type Point struct {
	Lat float64 `xml:"lat,attr"`
	Lon float64 `xml:"lon,attr"`
	Hae float64 `xml:"hae,attr"`
	CE  float64 `xml:"ce,attr"`
	LE  float64 `xml:"le,attr"`
}

// Detail carries the optional sub-elements this bridge understands.
// Unknown sub-elements in inbound events are ignored by the decoder.
type Detail struct {
	Contact  *Contact  `xml:"contact,omitempty"`
	Track    *Track    `xml:"track,omitempty"`
	Status   *Status   `xml:"status,omitempty"`
	Group    *Group    `xml:"__group,omitempty"`
	Chat     *Chat     `xml:"__chat,omitempty"`
	Remarks  *Remarks  `xml:"remarks,omitempty"`
	Video    *Video    `xml:"__video,omitempty"`
	Emergency *Emergency `xml:"emergency,omitempty"`
	Tasking  *Tasking  `xml:"tasking,omitempty"`
	Sensor   *Sensor   `xml:"sensor,omitempty"`
	SpotRpt  *SpotRpt  `xml:"spot_report,omitempty"`
	AssetExt *AssetExt `xml:"tritium,omitempty"`
}

// Contact names the entity.
type Contact struct {
	Callsign string `xml:"callsign,attr"`
}

// Track carries course/speed; course is degrees from north, clockwise.
type Track struct {
	Course float64 `xml:"course,attr"`
	Speed  float64 `xml:"speed,attr"`
}

// Status carries battery percent (0-100 per the TAK convention).
type Status struct {
	Battery float64 `xml:"battery,attr"`
}

// Group is the team/role marker TAK clients render.
type Group struct {
	Name string `xml:"name,attr"`
	Role string `xml:"role,attr"`
}

// Chat is the GeoChat metadata element. Real-world senders disagree on
// attribute naming, so the parser accepts both chatroom and the
// non-standard room spelling.
type Chat struct {
	ID       string `xml:"id,attr,omitempty"`
	Chatroom string `xml:"chatroom,attr,omitempty"`
	Room     string `xml:"room,attr,omitempty"`
	SenderCallsign string `xml:"senderCallsign,attr,omitempty"`
}

// Remarks carries free text; source attributes the sender UID.
type Remarks struct {
	Source string `xml:"source,attr,omitempty"`
	To     string `xml:"to,attr,omitempty"`
	Text   string `xml:",chardata"`
}

// Video announces a live feed URL for an entity.
type Video struct {
	URL    string `xml:"url,attr"`
	Sensor string `xml:"sensor,attr,omitempty"`
}

// Emergency flags a 911/alert state for the sending entity.
type Emergency struct {
	Type      string `xml:"type,attr"`
	Cancelled bool   `xml:"cancel,attr,omitempty"`
	Callsign  string `xml:",chardata"`
}

// Tasking orders a unit to a location or objective.
type Tasking struct {
	TaskType string  `xml:"task,attr"`
	Assignee string  `xml:"assignee,attr"`
	Lat      float64 `xml:"lat,attr,omitempty"`
	Lon      float64 `xml:"lon,attr,omitempty"`
}

// Sensor is a point sensor reading (motion, door, tripwire).
type Sensor struct {
	SensorID string  `xml:"id,attr"`
	Kind     string  `xml:"kind,attr"`
	Value    float64 `xml:"value,attr"`
	Triggered bool   `xml:"triggered,attr"`
}

// SpotRpt is a structured observation report.
type SpotRpt struct {
	ReporterUID string `xml:"reporter,attr"`
	Observed    string `xml:"observed,attr"`
	Count       int    `xml:"count,attr,omitempty"`
	Activity    string `xml:"activity,attr,omitempty"`
	Remarks     string `xml:",chardata"`
}

// AssetExt is the TRITIUM-private extension carrying the fields CoT has
// no standard home for, so round-trips preserve the full target record.
type AssetExt struct {
	AssetType string  `xml:"asset_type,attr"`
	Alliance  string  `xml:"alliance,attr"`
	Health    float64 `xml:"health,attr,omitempty"`
	MaxHealth float64 `xml:"max_health,attr,omitempty"`
	Status    string  `xml:"status,attr,omitempty"`
}

// Marshal renders the event as a standalone XML document fragment.
func (e Event) Marshal() ([]byte, error) {
	return xml.Marshal(e)
}

// formatTime renders t in CoT timestamp form.
func formatTime(t time.Time) string {
	return t.UTC().Format(cotTimeFormat)
}

// parseTime accepts the CoT layout and plain RFC3339.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(cotTimeFormat, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
