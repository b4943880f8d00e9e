package sim

import (
	"container/heap"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

// snapRadius is the maximum distance a dispatch endpoint may be from a
// street graph node and still be considered "on" the network.
const snapRadius = 5.0

// hostileFootDirectRadius is how close a hostile foot unit must get to its
// destination before abandoning the graph for a direct final approach.
const hostileFootDirectRadius = 30.0

// segmentSampleStep is the fraction-of-segment resolution neutral foot
// routes use to reject paths that clip a building polygon.
const segmentSampleStep = 0.25

// Pathfinder plans routes for a dispatched unit, branching by asset-type
// movement category. It holds no target state of its own;
// SimulationEngine installs the street graph and obstacle set through
// SetStreetGraph and SetObstacles.
type Pathfinder struct {
	graph     *model.StreetGraph
	obstacles []model.Obstacle
	blocked   func(model.Vec2) bool
}

// NewPathfinder returns a Pathfinder with no graph/obstacles set. Use
// SetStreetGraph/SetObstacles (mirrored from SimulationEngine) before
// planning ground/foot routes.
func NewPathfinder() *Pathfinder {
	return &Pathfinder{}
}

func (p *Pathfinder) SetStreetGraph(g *model.StreetGraph) { p.graph = g }
func (p *Pathfinder) SetObstacles(obs []model.Obstacle)   { p.obstacles = obs }

// SetHazardCheck installs the predicate used to exclude street graph nodes
// that fall inside an active hazard disk from A* expansion; blocked
// positions apply at dispatch time only. A nil predicate disables
// hazard exclusion.
func (p *Pathfinder) SetHazardCheck(isBlocked func(model.Vec2) bool) { p.blocked = isBlocked }

// Plan computes a waypoint list from start to end for assetType, or nil if
// the unit cannot move there (stationary types, or a neutral foot route
// that clips a building and has no alternative).
func (p *Pathfinder) Plan(start, end model.Vec2, assetType string) []model.Vec2 {
	ut, ok := model.UnitTypeFor(assetType)
	if !ok {
		return p.directOrNil(start, end)
	}

	switch ut.Category {
	case model.CategoryStationary:
		return nil
	case model.CategoryAir:
		return []model.Vec2{start, end}
	case model.CategoryGround:
		return p.planGround(start, end)
	case model.CategoryFoot:
		if isHostileFootType(assetType) {
			return p.planHostileFoot(start, end)
		}
		return p.planNeutralFoot(start, end)
	default:
		return []model.Vec2{start, end}
	}
}

func isHostileFootType(assetType string) bool {
	switch assetType {
	case model.AssetHostilePerson, model.AssetHostileLeader:
		return true
	default:
		return false
	}
}

// planGround snaps both endpoints onto the street graph (when one exists
// within snapRadius) and runs A* between the snapped nodes, prepending and
// appending the raw endpoints when the snap was non-zero. With no graph,
// or when a snap target is out of range, it falls back to a direct path.
func (p *Pathfinder) planGround(start, end model.Vec2) []model.Vec2 {
	if p.graph == nil {
		return []model.Vec2{start, end}
	}
	startNode, okS := p.graph.NearestNode(start)
	endNode, okE := p.graph.NearestNode(end)
	if !okS || !okE || model.Dist(startNode.Position, start) > snapRadius || model.Dist(endNode.Position, end) > snapRadius {
		return []model.Vec2{start, end}
	}

	nodePath := aStar(p.graph, startNode.ID, endNode.ID, p.blocked)
	if nodePath == nil {
		return []model.Vec2{start, end}
	}

	out := make([]model.Vec2, 0, len(nodePath)+2)
	if model.Dist(start, startNode.Position) > 1e-6 {
		out = append(out, start)
	}
	for _, id := range nodePath {
		out = append(out, p.graph.Nodes[id].Position)
	}
	if model.Dist(end, endNode.Position) > 1e-6 {
		out = append(out, end)
	}
	return out
}

// planHostileFoot follows the street graph like ground units until within
// hostileFootDirectRadius of the destination, then cuts direct.
func (p *Pathfinder) planHostileFoot(start, end model.Vec2) []model.Vec2 {
	if p.graph == nil {
		return []model.Vec2{start, end}
	}
	route := p.planGround(start, end)
	if len(route) <= 2 {
		return route
	}
	// Drop trailing graph waypoints once within the direct-approach radius,
	// replacing them with a single final leg to end.
	cut := len(route)
	for i := len(route) - 1; i >= 0; i-- {
		if model.Dist(route[i], end) <= hostileFootDirectRadius {
			cut = i
			continue
		}
		break
	}
	out := append([]model.Vec2{}, route[:cut]...)
	out = append(out, end)
	return out
}

// planNeutralFoot walks directly to end, but refuses the route when the
// straight segment clips a building polygon (sampled at quarter-points).
func (p *Pathfinder) planNeutralFoot(start, end model.Vec2) []model.Vec2 {
	for _, obs := range p.obstacles {
		if obs.Footprint.IntersectsSegment(start, end, segmentSampleStep) {
			return nil
		}
	}
	return []model.Vec2{start, end}
}

func (p *Pathfinder) directOrNil(start, end model.Vec2) []model.Vec2 {
	return []model.Vec2{start, end}
}

// --- A* over the street graph ---

type aStarNode struct {
	id       string
	priority float64 // f = g + h
	index    int
}

type aStarQueue []*aStarNode

func (q aStarQueue) Len() int { return len(q) }
func (q aStarQueue) Less(i, j int) bool {
	if q[i].priority == q[j].priority {
		return q[i].id < q[j].id // lower node id tie-break
	}
	return q[i].priority < q[j].priority
}
func (q aStarQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *aStarQueue) Push(x any) {
	n := x.(*aStarNode)
	n.index = len(*q)
	*q = append(*q, n)
}
func (q *aStarQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// aStar returns the node-id path from startID to endID, or nil if
// unreachable. Heuristic is straight-line distance; ties break on the
// lower node id via the priority queue's comparator. blocked, when
// non-nil, excludes any node other than endID whose position it reports
// as blocked (a hazard disk) from expansion.
func aStar(g *model.StreetGraph, startID, endID string, blocked func(model.Vec2) bool) []string {
	if startID == endID {
		return []string{startID}
	}
	goal, ok := g.Nodes[endID]
	if !ok {
		return nil
	}
	heuristic := func(id string) float64 {
		n, ok := g.Nodes[id]
		if !ok {
			return 0
		}
		return model.Dist(n.Position, goal.Position)
	}

	gScore := map[string]float64{startID: 0}
	cameFrom := map[string]string{}
	open := &aStarQueue{{id: startID, priority: heuristic(startID)}}
	heap.Init(open)
	visited := map[string]bool{}

	for open.Len() > 0 {
		current := heap.Pop(open).(*aStarNode)
		if visited[current.id] {
			continue
		}
		visited[current.id] = true
		if current.id == endID {
			return reconstructPath(cameFrom, endID)
		}
		for _, edge := range g.Neighbors(current.id) {
			if blocked != nil {
				if n, ok := g.Nodes[edge.To]; ok && edge.To != endID && blocked(n.Position) {
					continue
				}
			}
			tentative := gScore[current.id] + edge.Cost
			if existing, ok := gScore[edge.To]; !ok || tentative < existing {
				gScore[edge.To] = tentative
				cameFrom[edge.To] = current.id
				heap.Push(open, &aStarNode{id: edge.To, priority: tentative + heuristic(edge.To)})
			}
		}
	}
	return nil
}

func reconstructPath(cameFrom map[string]string, endID string) []string {
	path := []string{endID}
	cur := endID
	for {
		prev, ok := cameFrom[cur]
		if !ok {
			break
		}
		path = append([]string{prev}, path...)
		cur = prev
	}
	return path
}
