package tracker

import (
	"testing"
	"time"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

func simView(id string, alliance model.Alliance) model.TargetView {
	return model.TargetView{
		TargetID:  id,
		Name:      id,
		Alliance:  string(alliance),
		AssetType: model.AssetRover,
		Status:    string(model.StatusActive),
	}
}

func TestSimulationUpsertIsIdempotent(t *testing.T) {
	tr := New(nil)
	v := simView("r1", model.Friendly)
	tr.UpdateFromSimulation(v)
	v.Position = model.Vec2{X: 5}
	tr.UpdateFromSimulation(v)

	all := tr.GetAll()
	if len(all) != 1 {
		t.Fatalf("records = %d, want 1 after double upsert", len(all))
	}
	if all[0].Position.X != 5 {
		t.Fatalf("position not refreshed: %+v", all[0].Position)
	}
	if all[0].Source != "simulation" || all[0].Confidence != 1.0 {
		t.Fatalf("simulation record metadata wrong: %+v", all[0])
	}
}

func TestExternalRequiresSourcePrefix(t *testing.T) {
	tr := New(nil)
	if err := tr.UpdateExternal("tak", simView("bare-id", model.Unknown), 0.9); err == nil {
		t.Fatal("unprefixed external record accepted")
	}
	if err := tr.UpdateExternal("tak", simView(PrefixTAK+"peer1", model.Unknown), 0.9); err != nil {
		t.Fatalf("prefixed external record rejected: %v", err)
	}
}

func TestAllianceQueries(t *testing.T) {
	tr := New(nil)
	tr.UpdateFromSimulation(simView("f1", model.Friendly))
	tr.UpdateFromSimulation(simView("h1", model.Hostile))
	tr.UpdateFromSimulation(simView("h2", model.Hostile))
	dead := simView("h3", model.Hostile)
	dead.Status = string(model.StatusEliminated)
	tr.UpdateFromSimulation(dead)

	if got := len(tr.GetHostiles()); got != 2 {
		t.Fatalf("live hostiles = %d, want 2 (terminal excluded)", got)
	}
	if got := len(tr.GetFriendlies()); got != 1 {
		t.Fatalf("friendlies = %d, want 1", got)
	}
	sum := tr.Summarize()
	if sum.Total != 4 || sum.Hostiles != 3 {
		t.Fatalf("summary = %+v, want total 4 / hostiles 3", sum)
	}
}

func TestLoopbackFilter(t *testing.T) {
	tr := New(nil)
	tr.UpdateFromSimulation(simView("engine1", model.Friendly))
	tr.UpdateExternal("tak", simView(PrefixTAK+"peer1", model.Unknown), 0.9)
	tr.UpdateExternal("mqtt", simView(PrefixMQTT+"robot1", model.Friendly), 1.0)

	for _, rec := range tr.ExternalFor(PrefixTAK) {
		if rec.TargetID == PrefixTAK+"peer1" {
			t.Fatal("tak-derived record offered back to the tak bridge")
		}
	}
	if got := len(tr.ExternalFor(PrefixTAK)); got != 2 {
		t.Fatalf("publishable set for tak = %d, want 2", got)
	}
}

func TestDetectionCreatesLowTrustRecord(t *testing.T) {
	tr := New(nil)
	tr.UpdateFromDetection(Detection{
		ObserverID: "cam-1",
		TargetID:   "unknown-7",
		Confidence: 0.6,
		Position:   model.Vec2{X: 3},
		Timestamp:  time.Now(),
	})
	rec, ok := tr.GetTarget("unknown-7")
	if !ok {
		t.Fatal("detection did not create a record")
	}
	if rec.Source != "vision" || rec.Alliance != string(model.Unknown) {
		t.Fatalf("detection record = %+v", rec)
	}
}

func TestDetectionDoesNotMoveSimulationRecords(t *testing.T) {
	tr := New(nil)
	v := simView("r1", model.Friendly)
	v.Position = model.Vec2{X: 10}
	tr.UpdateFromSimulation(v)
	tr.UpdateFromDetection(Detection{TargetID: "r1", Confidence: 0.4, Position: model.Vec2{X: 99}})

	rec, _ := tr.GetTarget("r1")
	if rec.Position.X != 10 {
		t.Fatalf("vision sighting moved an authoritative record to %+v", rec.Position)
	}
}

func TestPruneRemovesDeadSimRecords(t *testing.T) {
	tr := New(nil)
	tr.UpdateFromSimulation(simView("a", model.Friendly))
	tr.UpdateFromSimulation(simView("b", model.Friendly))
	tr.UpdateExternal("tak", simView(PrefixTAK+"c", model.Unknown), 0.9)

	tr.PruneSimulation(map[string]bool{"a": true})
	if _, ok := tr.GetTarget("b"); ok {
		t.Fatal("stale simulation record survived prune")
	}
	if _, ok := tr.GetTarget("a"); !ok {
		t.Fatal("live simulation record pruned")
	}
	if _, ok := tr.GetTarget(PrefixTAK + "c"); !ok {
		t.Fatal("fresh external record pruned by simulation prune")
	}
}
