package scenario

import (
	"fmt"

	"github.com/valpatel/tritium-sc/engine-core/model"
	"github.com/valpatel/tritium-sc/engine-core/npc"
)

// doorstepOffset is how far outside a building footprint its POI sits,
// so routine dispatches end on walkable ground instead of inside the
// obstacle polygon.
const doorstepOffset = 2.0

// PlanPOIs derives NPC routine points of interest from a scenario's
// building set. Each building with a recognized kind contributes one
// POI at its "doorstep" — the midpoint of its first edge, pushed
// outward from the centroid. Scenarios with no kinded buildings get a
// minimal synthetic set at the map quadrants so routines still run.
func PlanPOIs(s *model.Scenario) []npc.POI {
	var pois []npc.POI
	for _, obs := range s.Obstacles {
		kind, ok := poiKind(obs.Kind)
		if !ok || len(obs.Footprint.Vertices) < 3 {
			continue
		}
		pois = append(pois, npc.POI{
			ID:       "poi-" + obs.ID,
			Kind:     kind,
			Name:     obs.Name,
			Position: doorstep(obs.Footprint),
		})
	}
	if len(pois) > 0 {
		return pois
	}
	return syntheticPOIs(s.MapHalfExtent)
}

func poiKind(kind string) (npc.POIKind, bool) {
	switch npc.POIKind(kind) {
	case npc.POIHome, npc.POIWork, npc.POIShop, npc.POIPark:
		return npc.POIKind(kind), true
	default:
		return "", false
	}
}

// doorstep finds the midpoint of the footprint's first edge and steps
// away from the centroid, leaving the POI just outside the walls.
func doorstep(poly model.Polygon) model.Vec2 {
	var centroid model.Vec2
	for _, v := range poly.Vertices {
		centroid = centroid.Add(v)
	}
	centroid = centroid.Scale(1 / float64(len(poly.Vertices)))

	mid := poly.Vertices[0].Add(poly.Vertices[1]).Scale(0.5)
	out := mid.Sub(centroid).Normalized()
	return mid.Add(out.Scale(doorstepOffset))
}

// syntheticPOIs spreads one POI of each kind across the map quadrants.
func syntheticPOIs(halfExtent float64) []npc.POI {
	if halfExtent <= 0 {
		halfExtent = 100
	}
	d := halfExtent * 0.5
	kinds := []struct {
		kind npc.POIKind
		pos  model.Vec2
	}{
		{npc.POIHome, model.Vec2{X: -d, Y: -d}},
		{npc.POIWork, model.Vec2{X: d, Y: d}},
		{npc.POIShop, model.Vec2{X: d, Y: -d}},
		{npc.POIPark, model.Vec2{X: -d, Y: d}},
	}
	out := make([]npc.POI, 0, len(kinds))
	for i, k := range kinds {
		out = append(out, npc.POI{
			ID:       fmt.Sprintf("poi-synth-%d", i+1),
			Kind:     k.kind,
			Name:     string(k.kind),
			Position: k.pos,
		})
	}
	return out
}
