package npc

import (
	"log/slog"
	"math/rand"
	"sync"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

// POIKind names the role a point of interest plays in daily routines.
type POIKind string

const (
	POIHome POIKind = "home"
	POIWork POIKind = "work"
	POIShop POIKind = "shop"
	POIPark POIKind = "park"
)

// POI is a named point NPC routines visit, derived from scenario
// building/street data by the scenario package's planner.
type POI struct {
	ID       string
	Kind     POIKind
	Name     string
	Position model.Vec2
}

// routineStop is one leg of a daily schedule, in sim time-of-day hours.
type routineStop struct {
	hour float64
	kind POIKind
}

// simDayScale compresses a simulated day: one sim hour passes per
// simDayScale wall-equivalent seconds of sim time.
const simDayScale = 60.0

// RoutineScheduler assigns civilians a home -> work -> home day
// keyed to sim time-of-day, biased by personality (sociable NPCs add a
// midday shop stop, curious ones an afternoon park stop).
type RoutineScheduler struct {
	mu        sync.Mutex
	log       *slog.Logger
	pois      []POI
	schedules map[string][]routineStop
	lastStop  map[string]int
}

// NewRoutineScheduler builds a scheduler over the scenario's POI set.
func NewRoutineScheduler(pois []POI, log *slog.Logger) *RoutineScheduler {
	if log == nil {
		log = slog.Default()
	}
	return &RoutineScheduler{
		log:       log,
		pois:      pois,
		schedules: make(map[string][]routineStop),
		lastStop:  make(map[string]int),
	}
}

// TimeOfDayHours converts sim time to a 0-24h clock.
func TimeOfDayHours(simTime float64) float64 {
	hours := simTime / simDayScale
	return hours - float64(int(hours/24))*24
}

// Assign builds (or returns) a daily schedule for the brain.
func (s *RoutineScheduler) Assign(b *Brain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[b.TargetID]; ok {
		return
	}
	stops := []routineStop{
		{hour: 7 + rand.Float64()*2, kind: POIWork},
		{hour: 17 + rand.Float64(), kind: POIHome},
	}
	if b.Personality.Sociability > 0.5 {
		stops = append(stops, routineStop{hour: 12 + rand.Float64(), kind: POIShop})
	}
	if b.Personality.Curiosity > 0.7 {
		stops = append(stops, routineStop{hour: 15 + rand.Float64()*2, kind: POIPark})
	}
	sortStops(stops)
	s.schedules[b.TargetID] = stops
	s.lastStop[b.TargetID] = -1
	b.RoutineID = b.TargetID
}

// Tick dispatches any wandering brain whose next scheduled stop has come
// due. Brains in any other FSM state (fleeing, hiding) skip their
// routine until they calm down.
func (s *RoutineScheduler) Tick(simTime float64, brains *Manager, world World) {
	hour := TimeOfDayHours(simTime)
	for _, b := range brains.All() {
		if b.Alliance != model.Neutral || b.State != StateWandering {
			continue
		}
		s.Assign(b)

		s.mu.Lock()
		stops := s.schedules[b.TargetID]
		last := s.lastStop[b.TargetID]
		due := -1
		for i, stop := range stops {
			if hour >= stop.hour && i > last {
				due = i
			}
		}
		if due < 0 {
			s.mu.Unlock()
			continue
		}
		s.lastStop[b.TargetID] = due
		kind := stops[due].kind
		s.mu.Unlock()

		poi, ok := s.nearestPOI(kind, b.Position)
		if !ok {
			continue
		}
		if err := world.DispatchUnit(b.TargetID, poi.Position); err != nil {
			s.log.Debug("routine dispatch failed", "target_id", b.TargetID, "error", err)
		}
	}
}

// ResetDay clears progress so schedules repeat the next sim day.
// Callers invoke it when TimeOfDayHours wraps past midnight.
func (s *RoutineScheduler) ResetDay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.lastStop {
		s.lastStop[id] = -1
	}
}

func (s *RoutineScheduler) nearestPOI(kind POIKind, from model.Vec2) (POI, bool) {
	var best POI
	bestDist := -1.0
	found := false
	for _, p := range s.pois {
		if p.Kind != kind {
			continue
		}
		d := model.Dist(p.Position, from)
		if !found || d < bestDist {
			best, bestDist, found = p, d, true
		}
	}
	return best, found
}

func sortStops(stops []routineStop) {
	for i := 1; i < len(stops); i++ {
		for j := i; j > 0 && stops[j].hour < stops[j-1].hour; j-- {
			stops[j], stops[j-1] = stops[j-1], stops[j]
		}
	}
}
