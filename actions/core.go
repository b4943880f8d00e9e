package actions

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
)

// Engine is the slice of simulation API the core actions command.
type Engine interface {
	DispatchUnit(id string, dest model.Vec2) error
	PatrolUnit(id string, waypoints []model.Vec2) error
	GetTargets() []model.TargetView
}

// RegisterCore installs the stock action set: think, say, dispatch,
// alert, patrol, escalate, battle_cry. Dispatch coordinates clamp to the
// map half-extent rather than rejecting.
func RegisterCore(reg *Registry, engine Engine, bus *eventbus.Bus, mapHalfExtent float64) {
	coord := ArgSpec{Type: ArgNumber, Clamp: true, Min: -mapHalfExtent, Max: mapHalfExtent}

	reg.Register(Spec{
		Name: "think",
		Args: []ArgSpec{{Name: "text", Type: ArgString}},
		Handler: func(params []any) error {
			publish(bus, "npc_thought", map[string]any{"text": params[0]})
			return nil
		},
	})
	reg.Register(Spec{
		Name: "say",
		Args: []ArgSpec{{Name: "text", Type: ArgString}},
		Handler: func(params []any) error {
			publish(bus, "npc_speech", map[string]any{"text": params[0]})
			return nil
		},
	})
	reg.Register(Spec{
		Name: "dispatch",
		Args: []ArgSpec{{Name: "target_id", Type: ArgString}, named(coord, "x"), named(coord, "y")},
		Handler: func(params []any) error {
			return engine.DispatchUnit(params[0].(string),
				model.Vec2{X: params[1].(float64), Y: params[2].(float64)})
		},
	})
	reg.Register(Spec{
		Name: "alert",
		Args: []ArgSpec{{Name: "target_id", Type: ArgString}, {Name: "msg", Type: ArgString}},
		Handler: func(params []any) error {
			publish(bus, "npc_alert", map[string]any{"target_id": params[0], "message": params[1]})
			return nil
		},
	})
	reg.Register(Spec{
		Name: "patrol",
		Args: []ArgSpec{{Name: "target_id", Type: ArgString}, {Name: "waypoints_json", Type: ArgString}},
		Handler: func(params []any) error {
			waypoints, err := parseWaypoints(params[1].(string))
			if err != nil {
				return err
			}
			return engine.PatrolUnit(params[0].(string), waypoints)
		},
	})
	reg.Register(Spec{
		Name: "escalate",
		Args: []ArgSpec{{Name: "target_id", Type: ArgString},
			{Name: "level", Type: ArgNumber, Clamp: true, Min: 0, Max: 3}},
		Handler: func(params []any) error {
			publish(bus, "npc_escalation", map[string]any{"target_id": params[0], "level": params[1]})
			return nil
		},
	})
	reg.Register(Spec{
		Name: "battle_cry",
		Args: []ArgSpec{{Name: "text", Type: ArgString}},
		Handler: func(params []any) error {
			publish(bus, "npc_battle_cry", map[string]any{"text": params[0]})
			return nil
		},
	})
}

// RegisterFormations installs the squad formation actions. Each takes a
// squad member's ID; the formation applies to everyone sharing its squad.
func RegisterFormations(reg *Registry, engine Engine, mapHalfExtent float64) {
	for name, layout := range formationLayouts {
		layout := layout
		reg.Register(Spec{
			Name: name,
			Args: []ArgSpec{{Name: "target_id", Type: ArgString}},
			Handler: func(params []any) error {
				return applyFormation(engine, params[0].(string), layout)
			},
		})
	}
}

// formationLayouts maps formation names to per-slot offsets, meters
// relative to the squad anchor.
var formationLayouts = map[string]func(slot, total int) model.Vec2{
	"wedge": func(slot, total int) model.Vec2 {
		row := (slot + 1) / 2
		side := 1.0
		if slot%2 == 0 {
			side = -1.0
		}
		return model.Vec2{X: side * float64(row) * 4, Y: -float64(row) * 4}
	},
	"line": func(slot, total int) model.Vec2 {
		return model.Vec2{X: float64(slot-total/2) * 4, Y: 0}
	},
	"column": func(slot, total int) model.Vec2 {
		return model.Vec2{X: 0, Y: -float64(slot) * 4}
	},
	"circle": func(slot, total int) model.Vec2 {
		angle := 2 * math.Pi * float64(slot) / float64(max(total, 1))
		return model.Vec2{X: math.Cos(angle) * 6, Y: math.Sin(angle) * 6}
	},
	"rally": func(slot, total int) model.Vec2 {
		return model.Vec2{}
	},
	"scatter": func(slot, total int) model.Vec2 {
		angle := 2 * math.Pi * float64(slot) / float64(max(total, 1))
		return model.Vec2{X: math.Cos(angle) * 20, Y: math.Sin(angle) * 20}
	},
}

// applyFormation dispatches every member of anchor's squad to its slot
// offset around the anchor's position.
func applyFormation(engine Engine, anchorID string, layout func(slot, total int) model.Vec2) error {
	var anchor *model.TargetView
	targets := engine.GetTargets()
	for i := range targets {
		if targets[i].TargetID == anchorID {
			anchor = &targets[i]
			break
		}
	}
	if anchor == nil {
		return fmt.Errorf("no such target %q", anchorID)
	}

	var members []model.TargetView
	if anchor.SquadID == "" {
		members = []model.TargetView{*anchor}
	} else {
		for _, t := range targets {
			if t.SquadID == anchor.SquadID && !model.Status(t.Status).Terminal() {
				members = append(members, t)
			}
		}
	}
	for slot, member := range members {
		dest := anchor.Position.Add(layout(slot, len(members)))
		if err := engine.DispatchUnit(member.TargetID, dest); err != nil {
			return err
		}
	}
	return nil
}

func parseWaypoints(raw string) ([]model.Vec2, error) {
	var pairs [][2]float64
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, fmt.Errorf("parse waypoints: %w", err)
	}
	out := make([]model.Vec2, len(pairs))
	for i, p := range pairs {
		out[i] = model.Vec2{X: p[0], Y: p[1]}
	}
	return out, nil
}

func named(spec ArgSpec, name string) ArgSpec {
	spec.Name = name
	return spec
}

func publish(bus *eventbus.Bus, kind string, payload any) {
	if bus == nil {
		return
	}
	bus.Publish(eventbus.Event{Kind: kind, Payload: payload})
}
