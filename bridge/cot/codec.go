package cot

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/valpatel/tritium-sc/engine-core/errkind"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

// unknownErr is the CE/LE value for "no error estimate".
const unknownErr = 9999999.0

// fallbackType is the CoT type used when an asset has no registry code.
const fallbackType = "a-X-G"

// BuildTargetEvent serializes a target view as a CoT situational-
// awareness event. The type code comes from the unit registry with the
// affiliation character swapped to match the target's alliance; battery
// rides in <status>, course/speed in <track>, and the TRITIUM extension
// element preserves asset_type/alliance/health exactly for round-trips.
func BuildTargetEvent(v model.TargetView, ref *model.GeoReference, now time.Time, staleSeconds float64) Event {
	typeCode := fallbackType
	if ut, ok := model.UnitTypeFor(v.AssetType); ok && ut.CotType != "" {
		typeCode = ut.CotType
	}
	typeCode = swapAffiliation(typeCode, model.Alliance(v.Alliance).AffiliationChar())

	point := Point{CE: unknownErr, LE: unknownErr}
	if v.Geo != nil {
		point.Lat, point.Lon, point.Hae = v.Geo.Lat, v.Geo.Lng, v.Geo.Alt
	} else if ref != nil {
		g := ref.ToGeo(v.Position)
		point.Lat, point.Lon, point.Hae = g.Lat, g.Lng, g.Alt
	}

	return Event{
		Version: "2.0",
		UID:     v.TargetID,
		Type:    typeCode,
		How:     "m-g",
		Time:    formatTime(now),
		Start:   formatTime(now),
		Stale:   formatTime(now.Add(time.Duration(staleSeconds * float64(time.Second)))),
		Point:   point,
		Detail: &Detail{
			Contact: &Contact{Callsign: v.Name},
			Track:   &Track{Course: v.Heading, Speed: v.Speed},
			Status:  &Status{Battery: v.Battery * 100},
			AssetExt: &AssetExt{
				AssetType: v.AssetType,
				Alliance:  v.Alliance,
				Health:    v.Health,
				MaxHealth: v.MaxHealth,
				Status:    v.Status,
			},
		},
	}
}

// ParseTargetEvent decodes an inbound SA event into a target view. The
// TRITIUM extension wins when present; otherwise asset type comes from
// reverse type lookup and alliance from the affiliation character.
func ParseTargetEvent(data []byte, ref *model.GeoReference) (model.TargetView, error) {
	var ev Event
	if err := xml.Unmarshal(data, &ev); err != nil {
		return model.TargetView{}, errkind.New(errkind.ProtocolError, "parse cot event", err)
	}
	return TargetFromEvent(ev, ref)
}

// TargetFromEvent converts a decoded event to a target view.
func TargetFromEvent(ev Event, ref *model.GeoReference) (model.TargetView, error) {
	if ev.UID == "" {
		return model.TargetView{}, errkind.New(errkind.ProtocolError, "parse cot event",
			fmt.Errorf("event has no uid"))
	}
	v := model.TargetView{
		TargetID: ev.UID,
		Name:     ev.UID,
		Geo:      &model.GeoPoint{Lat: ev.Point.Lat, Lng: ev.Point.Lon, Alt: ev.Point.Hae},
		Alliance: string(allianceOf(ev.Type)),
		Status:   string(model.StatusActive),
	}
	v.AssetType = ReverseLookup(ev.Type)
	if ref != nil {
		v.Position = ref.ToLocal(*v.Geo)
	}
	if d := ev.Detail; d != nil {
		if d.Contact != nil && d.Contact.Callsign != "" {
			v.Name = d.Contact.Callsign
		}
		if d.Track != nil {
			v.Heading = d.Track.Course
			v.Speed = d.Track.Speed
		}
		if d.Status != nil {
			v.Battery = d.Status.Battery / 100
		}
		if ext := d.AssetExt; ext != nil {
			if ext.AssetType != "" {
				v.AssetType = ext.AssetType
			}
			if ext.Alliance != "" {
				v.Alliance = ext.Alliance
			}
			v.Health = ext.Health
			v.MaxHealth = ext.MaxHealth
			if ext.Status != "" {
				v.Status = ext.Status
			}
		}
	}
	return v, nil
}

// swapAffiliation replaces the affiliation character (position 2 of an
// a-X-... code) without touching the rest of the type.
func swapAffiliation(typeCode, affiliation string) string {
	parts := strings.Split(typeCode, "-")
	if len(parts) < 2 || parts[0] != "a" {
		return typeCode
	}
	parts[1] = affiliation
	return strings.Join(parts, "-")
}

// allianceOf reads the affiliation character out of a type code.
func allianceOf(typeCode string) model.Alliance {
	parts := strings.Split(typeCode, "-")
	if len(parts) < 2 || parts[0] != "a" || len(parts[1]) != 1 {
		return model.Unknown
	}
	return model.AllianceFromChar(parts[1][0])
}

// reverseTable is the sorted registry view reverse lookup scans, built
// once. Sorting by type id pins which entry wins a prefix-length tie:
// the first encountered in registry order.
var reverseTable = buildReverseTable()

type reverseEntry struct {
	normType string // registry CoT type with affiliation neutralized
	assetID  string
}

func buildReverseTable() []reverseEntry {
	types := model.AllUnitTypes()
	sort.Slice(types, func(i, j int) bool { return types[i].TypeID < types[j].TypeID })
	out := make([]reverseEntry, 0, len(types))
	for _, ut := range types {
		if ut.CotType == "" {
			continue
		}
		out = append(out, reverseEntry{normType: neutralize(ut.CotType), assetID: ut.TypeID})
	}
	return out
}

// neutralize blanks the affiliation character so lookup ignores it.
func neutralize(typeCode string) string {
	return swapAffiliation(typeCode, ".")
}

// ReverseLookup maps a CoT type code to a TRITIUM asset type: exact
// match first, then the registry entry whose code is the longest prefix
// of the input. Ties between equal-length prefixes keep the first entry
// in registry order. Codes nothing matches degrade to "person".
func ReverseLookup(typeCode string) string {
	norm := neutralize(typeCode)
	best := ""
	bestLen := -1
	for _, entry := range reverseTable {
		if entry.normType == norm {
			return entry.assetID
		}
		if strings.HasPrefix(norm, entry.normType) && len(entry.normType) > bestLen {
			best, bestLen = entry.assetID, len(entry.normType)
		}
	}
	if best != "" {
		return best
	}
	return model.AssetPerson
}
