package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/valpatel/tritium-sc/engine-core/errkind"
	"github.com/valpatel/tritium-sc/engine-core/metrics"
	"github.com/valpatel/tritium-sc/engine-core/model"
	"github.com/valpatel/tritium-sc/engine-core/scenario"
	"github.com/valpatel/tritium-sc/engine-core/sim"
	"github.com/valpatel/tritium-sc/engine-core/telemetry"
	"github.com/valpatel/tritium-sc/engine-core/tracker"
)

// newShell builds the thin HTTP layer over engine and tracker methods.
// Every handler is a direct delegation; no simulation logic lives here.
func newShell(engine *sim.Engine, trk *tracker.Tracker, loader *scenario.Loader,
	manager *telemetry.ConnectionManager, m *metrics.Metrics) http.Handler {

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/game/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engine.GetGameState())
	})
	mux.HandleFunc("POST /api/game/begin", func(w http.ResponseWriter, r *http.Request) {
		if err := engine.BeginWar(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "countdown"})
	})
	mux.HandleFunc("POST /api/game/reset", func(w http.ResponseWriter, r *http.Request) {
		engine.ResetGame()
		writeJSON(w, http.StatusOK, map[string]any{"status": "setup"})
	})
	mux.HandleFunc("POST /api/game/place", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name      string `json:"name"`
			AssetType string `json:"asset_type"`
			Position  struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			} `json:"position"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request", "detail": err.Error()})
			return
		}
		view, err := engine.PlaceDefender(req.Name, req.AssetType, model.Vec2{X: req.Position.X, Y: req.Position.Y})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	})
	mux.HandleFunc("GET /api/game/projectiles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engine.ActiveProjectiles())
	})
	mux.HandleFunc("GET /api/game/scenarios", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"scenarios": loader.Names()})
	})
	mux.HandleFunc("POST /api/game/battle/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		s, err := loader.Load(name)
		if err != nil {
			writeError(w, err)
			return
		}
		// Atomic reset + load + begin.
		engine.ResetGame()
		if err := engine.LoadScenario(s); err != nil {
			writeError(w, err)
			return
		}
		if err := engine.BeginWar(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "countdown", "scenario": s.Name})
	})

	mux.HandleFunc("GET /api/targets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, trk.GetAll())
	})
	mux.HandleFunc("GET /api/hostiles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, trk.GetHostiles())
	})
	mux.HandleFunc("GET /api/friendlies", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, trk.GetFriendlies())
	})
	mux.HandleFunc("GET /api/targets/summary", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, trk.Summarize())
	})

	mux.HandleFunc("POST /api/sighting", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ObserverID   string  `json:"observer_id"`
			TargetID     string  `json:"target_id"`
			ObserverType string  `json:"observer_type"`
			Confidence   float64 `json:"confidence"`
			Position     struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			} `json:"position"`
			Timestamp string `json:"timestamp"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request", "detail": err.Error()})
			return
		}
		ts, _ := time.Parse(time.RFC3339, req.Timestamp)
		trk.UpdateFromDetection(tracker.Detection{
			ObserverID:   req.ObserverID,
			ObserverType: req.ObserverType,
			TargetID:     req.TargetID,
			Confidence:   req.Confidence,
			Position:     model.Vec2{X: req.Position.X, Y: req.Position.Y},
			Timestamp:    ts,
		})
		writeJSON(w, http.StatusOK, map[string]any{"status": "accepted", "target_id": req.TargetID})
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		telemetry.ServeWS(manager, nil, w, r)
	})
	mux.Handle("GET /metrics", m.Handler())

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the engine error taxonomy onto HTTP statuses and the
// {error, detail} body every failed command returns.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errkind.KindOf(err) {
	case errkind.InvalidRequest, errkind.ProtocolError:
		status = http.StatusBadRequest
	case errkind.ResourceUnavailable:
		status = http.StatusServiceUnavailable
	}
	detail := err.Error()
	kind := errkind.KindOf(err).String()
	writeJSON(w, status, map[string]any{"error": kind, "detail": firstLine(detail)})
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
