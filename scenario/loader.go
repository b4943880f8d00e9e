// Package scenario loads designer-authored battle scenarios from JSON
// files and derives points of interest for NPC routines from the map's
// building data. The loader watches its directory so the scenario list
// stays fresh without a restart.
package scenario

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/valpatel/tritium-sc/engine-core/errkind"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

// fileScenario is the on-disk JSON schema. It stays close to the model
// types but keeps wire-friendly shapes (waypoint pairs, node lists).
type fileScenario struct {
	Name          string  `json:"name"`
	MapHalfExtent float64 `json:"map_half_extent"`
	MaxHostiles   int     `json:"max_hostiles"`
	EscapeLimit   int     `json:"escape_limit,omitempty"`

	Defenders []fileSeed     `json:"defenders,omitempty"`
	Seeds     []fileSeed     `json:"seeds,omitempty"`
	Buildings []fileBuilding `json:"buildings,omitempty"`
	Streets   *fileGraph     `json:"streets,omitempty"`
	Waves     []fileWave     `json:"waves"`
}

type fileSeed struct {
	AssetType string     `json:"asset_type"`
	Name      string     `json:"name,omitempty"`
	Alliance  string     `json:"alliance,omitempty"`
	Position  [2]float64 `json:"position"`
}

type fileBuilding struct {
	Name     string       `json:"name,omitempty"`
	Kind     string       `json:"kind,omitempty"` // home | work | shop | park
	Vertices [][2]float64 `json:"vertices"`
}

type fileGraph struct {
	Nodes map[string][2]float64 `json:"nodes"`
	Edges [][2]string           `json:"edges"`
}

type fileWave struct {
	Name   string      `json:"name,omitempty"`
	Groups []fileGroup `json:"groups"`
}

type fileGroup struct {
	AssetType     string  `json:"asset_type"`
	Count         int     `json:"count"`
	SpawnInterval float64 `json:"spawn_interval"`
	Delay         float64 `json:"delay"`
	Edge          string  `json:"edge"`
}

// Loader reads and caches scenario files from one directory.
type Loader struct {
	dir string
	log *slog.Logger

	mu    sync.RWMutex
	names []string
}

// NewLoader returns a loader over dir and primes the name cache.
func NewLoader(dir string, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	l := &Loader{dir: dir, log: log}
	l.refresh()
	return l
}

// Names lists available scenario names (file base names, sorted).
func (l *Loader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string{}, l.names...)
}

// Load reads, validates, and converts one scenario by name.
func (l *Loader) Load(name string) (*model.Scenario, error) {
	if strings.ContainsAny(name, `/\`) {
		return nil, errkind.New(errkind.InvalidRequest, "load scenario",
			fmt.Errorf("invalid scenario name %q", name))
	}
	path := filepath.Join(l.dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.New(errkind.InvalidRequest, "load scenario", err)
	}
	var fs fileScenario
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, errkind.New(errkind.ProtocolError, "load scenario", err)
	}
	return convert(name, fs)
}

// Watch hot-reloads the scenario name list on directory changes until
// the watcher fails or closes. Run it in a goroutine.
func (l *Loader) Watch(done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("scenario watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
					l.refresh()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.log.Warn("scenario watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (l *Loader) refresh() {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		l.log.Debug("scenario dir unreadable", "dir", l.dir, "error", err)
		return
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	l.mu.Lock()
	l.names = names
	l.mu.Unlock()
}

// convert validates the file schema and builds the model scenario.
func convert(name string, fs fileScenario) (*model.Scenario, error) {
	if len(fs.Waves) == 0 {
		return nil, errkind.New(errkind.InvalidRequest, "load scenario",
			fmt.Errorf("scenario %q has no waves", name))
	}
	s := &model.Scenario{
		ID:            name,
		Name:          firstNonEmpty(fs.Name, name),
		MapHalfExtent: fs.MapHalfExtent,
		MaxHostiles:   fs.MaxHostiles,
		EscapeLimit:   fs.EscapeLimit,
	}
	for _, d := range fs.Defenders {
		s.Defenders = append(s.Defenders, convertSeed(d, model.Friendly))
	}
	for _, d := range fs.Seeds {
		s.Seeds = append(s.Seeds, convertSeed(d, model.Neutral))
	}
	for i, b := range fs.Buildings {
		poly := model.Polygon{}
		for _, v := range b.Vertices {
			poly.Vertices = append(poly.Vertices, model.Vec2{X: v[0], Y: v[1]})
		}
		s.Obstacles = append(s.Obstacles, model.Obstacle{
			ID:        fmt.Sprintf("bldg-%d", i+1),
			Name:      b.Name,
			Kind:      b.Kind,
			Footprint: poly,
		})
	}
	if fs.Streets != nil {
		g := model.NewStreetGraph()
		for id, pos := range fs.Streets.Nodes {
			g.AddNode(model.StreetNode{ID: id, Position: model.Vec2{X: pos[0], Y: pos[1]}})
		}
		for _, e := range fs.Streets.Edges {
			g.AddEdge(e[0], e[1], 0)
		}
		s.StreetGraph = g
	}
	for i, w := range fs.Waves {
		wave := model.Wave{Index: i, Name: firstNonEmpty(w.Name, fmt.Sprintf("wave %d", i+1))}
		for _, grp := range w.Groups {
			if _, ok := model.UnitTypeFor(grp.AssetType); !ok {
				return nil, errkind.New(errkind.InvalidRequest, "load scenario",
					fmt.Errorf("wave %d: unknown asset type %q", i+1, grp.AssetType))
			}
			wave.SpawnGroups = append(wave.SpawnGroups, model.SpawnGroup{
				AssetType:     grp.AssetType,
				Count:         grp.Count,
				SpawnInterval: grp.SpawnInterval,
				Delay:         grp.Delay,
				Edge:          model.Edge(grp.Edge),
			})
		}
		s.Waves = append(s.Waves, wave)
	}
	return s, nil
}

func convertSeed(f fileSeed, defaultAlliance model.Alliance) model.ScenarioSeed {
	alliance := model.Alliance(f.Alliance)
	if f.Alliance == "" {
		alliance = defaultAlliance
	}
	return model.ScenarioSeed{
		AssetType: f.AssetType,
		Name:      f.Name,
		Alliance:  alliance,
		Position:  model.Vec2{X: f.Position[0], Y: f.Position[1]},
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
