package sim

import (
	"testing"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

// lineGraph builds a simple two-route street graph: a straight east-west
// spine through the origin and a northern detour around it.
//
//	n3 --- n4 --- n5      (y=+20 detour)
//	 |             |
//	n0 --- n1 --- n2      (y=0 spine)
func detourGraph() *model.StreetGraph {
	g := model.NewStreetGraph()
	nodes := map[string]model.Vec2{
		"n0": {X: -50, Y: 0}, "n1": {X: 0, Y: 0}, "n2": {X: 50, Y: 0},
		"n3": {X: -50, Y: 20}, "n4": {X: 0, Y: 20}, "n5": {X: 50, Y: 20},
	}
	for id, pos := range nodes {
		g.AddNode(model.StreetNode{ID: id, Position: pos})
	}
	g.AddEdge("n0", "n1", 0)
	g.AddEdge("n1", "n2", 0)
	g.AddEdge("n0", "n3", 0)
	g.AddEdge("n3", "n4", 0)
	g.AddEdge("n4", "n5", 0)
	g.AddEdge("n5", "n2", 0)
	return g
}

func TestAirUnitsFlyDirect(t *testing.T) {
	p := NewPathfinder()
	p.SetStreetGraph(detourGraph())
	p.SetObstacles([]model.Obstacle{{Footprint: model.Polygon{
		Vertices: []model.Vec2{{X: -10, Y: -10}, {X: 10, Y: -10}, {X: 10, Y: 10}, {X: -10, Y: 10}},
	}}})

	route := p.Plan(model.Vec2{X: -50}, model.Vec2{X: 50}, model.AssetDrone)
	if len(route) != 2 {
		t.Fatalf("air route has %d waypoints, want 2 (direct)", len(route))
	}
}

func TestStationaryUnitsGetNoRoute(t *testing.T) {
	p := NewPathfinder()
	if route := p.Plan(model.Vec2{}, model.Vec2{X: 10}, model.AssetTurret); route != nil {
		t.Fatalf("stationary unit got a route: %v", route)
	}
}

func TestGroundFollowsGraph(t *testing.T) {
	p := NewPathfinder()
	p.SetStreetGraph(detourGraph())
	route := p.Plan(model.Vec2{X: -50, Y: 0}, model.Vec2{X: 50, Y: 0}, model.AssetRover)
	if len(route) < 3 {
		t.Fatalf("graph route too short: %v", route)
	}
	// The direct spine is shorter than the detour.
	if route[1] != (model.Vec2{X: 0, Y: 0}) {
		t.Fatalf("route did not take the spine: %v", route)
	}
}

func TestHazardForcesDetour(t *testing.T) {
	p := NewPathfinder()
	p.SetStreetGraph(detourGraph())
	hazard := model.Hazard{ID: "hz", Center: model.Vec2{}, Radius: 10, TTL: 60}
	p.SetHazardCheck(func(pos model.Vec2) bool { return hazard.Contains(pos) })

	route := p.Plan(model.Vec2{X: -50, Y: 0}, model.Vec2{X: 50, Y: 0}, model.AssetRover)
	if route == nil {
		t.Fatal("no route found around hazard")
	}
	for _, wp := range route[1 : len(route)-1] {
		if model.Dist(wp, hazard.Center) < hazard.Radius {
			t.Fatalf("waypoint %+v passes within hazard radius", wp)
		}
	}
	// Must have taken the northern detour.
	sawDetour := false
	for _, wp := range route {
		if wp.Y == 20 {
			sawDetour = true
		}
	}
	if !sawDetour {
		t.Fatalf("route %v never used the detour row", route)
	}
}

func TestNeutralFootRejectsBuildingCrossing(t *testing.T) {
	p := NewPathfinder()
	p.SetObstacles([]model.Obstacle{{Footprint: model.Polygon{
		Vertices: []model.Vec2{{X: -5, Y: -5}, {X: 5, Y: -5}, {X: 5, Y: 5}, {X: -5, Y: 5}},
	}}})

	if route := p.Plan(model.Vec2{X: -20}, model.Vec2{X: 20}, model.AssetPerson); route != nil {
		t.Fatalf("neutral foot route through building accepted: %v", route)
	}
	if route := p.Plan(model.Vec2{X: -20, Y: 30}, model.Vec2{X: 20, Y: 30}, model.AssetPerson); route == nil {
		t.Fatal("clear neutral foot route rejected")
	}
}

func TestHostileFootCutsDirectNearDestination(t *testing.T) {
	p := NewPathfinder()
	p.SetStreetGraph(detourGraph())
	route := p.Plan(model.Vec2{X: -50, Y: 0}, model.Vec2{X: 52, Y: 2}, model.AssetHostilePerson)
	if route == nil {
		t.Fatal("no hostile foot route")
	}
	last := route[len(route)-1]
	if last != (model.Vec2{X: 52, Y: 2}) {
		t.Fatalf("final leg = %+v, want the raw destination", last)
	}
	// Graph waypoints within 30m of the destination (n2 at 50,0) must
	// have been replaced by the single direct leg.
	for _, wp := range route[:len(route)-1] {
		if model.Dist(wp, last) <= hostileFootDirectRadius && wp != route[0] {
			t.Fatalf("graph waypoint %+v inside direct-approach radius survived: %v", wp, route)
		}
	}
}

func TestNoGraphFallsBackDirect(t *testing.T) {
	p := NewPathfinder()
	route := p.Plan(model.Vec2{}, model.Vec2{X: 30, Y: 40}, model.AssetTank)
	if len(route) != 2 {
		t.Fatalf("graphless ground route = %v, want direct 2 points", route)
	}
}

func TestSnapTooFarFallsBackDirect(t *testing.T) {
	p := NewPathfinder()
	p.SetStreetGraph(detourGraph())
	// Start 40m off the nearest node: beyond the 5m snap radius.
	route := p.Plan(model.Vec2{X: -50, Y: -40}, model.Vec2{X: 50, Y: 0}, model.AssetRover)
	if len(route) != 2 {
		t.Fatalf("out-of-snap route = %v, want direct fallback", route)
	}
}
