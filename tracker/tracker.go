// Package tracker unifies every source of target knowledge — the
// authoritative engine simulation, MQTT robot telemetry, inbound TAK
// peers, and camera detections — into one queryable view. The tracker
// never owns engine state; simulation records are idempotent upserts of
// views, and externally sourced records carry a source prefix on their
// ID so bridges can avoid echoing their own traffic back out.
package tracker

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

// Source prefixes applied to externally derived target IDs.
const (
	PrefixTAK  = "tak_"
	PrefixMQTT = "mqtt_"
)

// Record is one tracked target plus the bookkeeping the fusion layer
// needs: where it came from, how confident we are, and when we last
// heard about it.
type Record struct {
	model.TargetView

	Source     string    // "simulation", "tak", "mqtt", "vision"
	Confidence float64   // 1.0 for authoritative simulation records
	LastSeen   time.Time // wall clock of the last update
	ObserverID string    // for detections: which sensor saw it
}

// Tracker is the unified target view. All methods are safe for
// concurrent use; bridges and the HTTP shell read it from their own
// goroutines while the engine's telemetry feed writes.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*Record
	log     *slog.Logger

	// staleAfter drops externally sourced records that have not been
	// refreshed; simulation records are removed by PruneSimulation instead.
	staleAfter time.Duration
	now        func() time.Time
}

// New returns an empty tracker. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		records:    make(map[string]*Record),
		log:        log,
		staleAfter: 5 * time.Minute,
		now:        time.Now,
	}
}

// UpdateFromSimulation idempotently upserts an authoritative engine view.
// Terminal targets stay visible until the engine's sweep stops sending
// them, at which point PruneSimulation removes the leftovers.
func (tr *Tracker) UpdateFromSimulation(v model.TargetView) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	rec, ok := tr.records[v.TargetID]
	if !ok {
		rec = &Record{Source: "simulation", Confidence: 1.0}
		tr.records[v.TargetID] = rec
	}
	rec.TargetView = v
	rec.LastSeen = tr.now()
}

// UpdateExternal upserts a bridge-derived record. The ID must already
// carry its source prefix (tak_*, mqtt_*); records without one are
// rejected to keep the loopback-prevention rule enforceable.
func (tr *Tracker) UpdateExternal(source string, v model.TargetView, confidence float64) error {
	if !strings.HasPrefix(v.TargetID, PrefixTAK) && !strings.HasPrefix(v.TargetID, PrefixMQTT) {
		return fmt.Errorf("external target %q lacks a source prefix", v.TargetID)
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	rec, ok := tr.records[v.TargetID]
	if !ok {
		rec = &Record{Source: source}
		tr.records[v.TargetID] = rec
	}
	rec.TargetView = v
	rec.Confidence = confidence
	rec.LastSeen = tr.now()
	return nil
}

// Detection is a camera/vision sighting of a (possibly already-known)
// target, with a confidence score from the detector.
type Detection struct {
	ObserverID   string
	ObserverType string
	TargetID     string
	Confidence   float64
	Position     model.Vec2
	Timestamp    time.Time
}

// UpdateFromDetection folds a vision sighting into the view. A sighting
// of an unknown ID creates a low-trust record; a sighting of a known
// record refreshes position and last-seen but never downgrades an
// authoritative simulation record's identity fields.
func (tr *Tracker) UpdateFromDetection(d Detection) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	rec, ok := tr.records[d.TargetID]
	if !ok {
		rec = &Record{
			Source: "vision",
			TargetView: model.TargetView{
				TargetID:  d.TargetID,
				Name:      d.TargetID,
				Alliance:  string(model.Unknown),
				AssetType: model.AssetPerson,
				Status:    string(model.StatusActive),
			},
		}
		tr.records[d.TargetID] = rec
	}
	if rec.Source != "simulation" {
		rec.Position = d.Position
	}
	if d.Confidence > rec.Confidence || rec.Source == "vision" {
		rec.Confidence = d.Confidence
	}
	rec.ObserverID = d.ObserverID
	rec.LastSeen = d.Timestamp
	if rec.LastSeen.IsZero() {
		rec.LastSeen = tr.now()
	}
}

// PruneSimulation removes simulation-sourced records absent from the
// latest authoritative snapshot, and expires stale external records.
func (tr *Tracker) PruneSimulation(liveIDs map[string]bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	cutoff := tr.now().Add(-tr.staleAfter)
	for id, rec := range tr.records {
		if rec.Source == "simulation" {
			if !liveIDs[id] {
				delete(tr.records, id)
			}
			continue
		}
		if rec.LastSeen.Before(cutoff) {
			delete(tr.records, id)
		}
	}
}

// GetTarget returns a copy of one record.
func (tr *Tracker) GetTarget(id string) (Record, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	rec, ok := tr.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// GetAll returns every record, ordered by target ID.
func (tr *Tracker) GetAll() []Record {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.filteredLocked(func(Record) bool { return true })
}

// GetHostiles returns live hostile records.
func (tr *Tracker) GetHostiles() []Record {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.filteredLocked(func(r Record) bool {
		return r.Alliance == string(model.Hostile) && !model.Status(r.Status).Terminal()
	})
}

// GetFriendlies returns live friendly records.
func (tr *Tracker) GetFriendlies() []Record {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.filteredLocked(func(r Record) bool {
		return r.Alliance == string(model.Friendly) && !model.Status(r.Status).Terminal()
	})
}

// ExternalFor lists records that did NOT originate from the named bridge
// prefix — the set a bridge may publish without echoing its own inbound
// traffic back out.
func (tr *Tracker) ExternalFor(ownPrefix string) []Record {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.filteredLocked(func(r Record) bool {
		return !strings.HasPrefix(r.TargetID, ownPrefix)
	})
}

func (tr *Tracker) filteredLocked(keep func(Record) bool) []Record {
	out := make([]Record, 0, len(tr.records))
	for _, rec := range tr.records {
		if keep(*rec) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out
}

// Summary is the aggregate view behind the tracker's summary endpoint.
type Summary struct {
	Total      int            `json:"total"`
	Hostiles   int            `json:"hostiles"`
	Friendlies int            `json:"friendlies"`
	Neutrals   int            `json:"neutrals"`
	BySource   map[string]int `json:"by_source"`
}

// Summarize counts records by alliance and source.
func (tr *Tracker) Summarize() Summary {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	s := Summary{BySource: make(map[string]int)}
	for _, rec := range tr.records {
		s.Total++
		s.BySource[rec.Source]++
		switch model.Alliance(rec.Alliance) {
		case model.Hostile:
			s.Hostiles++
		case model.Friendly:
			s.Friendlies++
		case model.Neutral:
			s.Neutrals++
		}
	}
	return s
}
