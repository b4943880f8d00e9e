// Package actions is the command surface LLM output drives: a registry
// of named actions with typed, bounded arguments, and a tolerant parser
// that extracts call sequences from free-form model text. Responses
// arrive as prose with fenced code blocks and comments mixed in; the
// parser pulls out the top-level calls and validates each against its
// registered signature.
package actions

import (
	"fmt"
	"log/slog"
	"sync"
)

// Sequence limits, applied after parsing.
const (
	maxCallsPerSequence = 10
	maxSaysPerSequence  = 1
)

// ArgType names the accepted kinds for one action parameter.
type ArgType int

const (
	ArgString ArgType = iota
	ArgNumber
)

// ArgSpec describes one parameter: its type and, for numbers, the
// clamping bounds applied instead of rejecting out-of-range values.
type ArgSpec struct {
	Name string
	Type ArgType
	// Min/Max clamp numeric args when Clamp is true.
	Clamp    bool
	Min, Max float64
}

// Handler executes a validated call.
type Handler func(params []any) error

// Spec is a registered action: name, signature, and handler.
type Spec struct {
	Name    string
	Args    []ArgSpec
	Handler Handler
}

// MotorOutput is one parsed call's validation result, in registry order
// of appearance in the source text.
type MotorOutput struct {
	Action string
	Params []any
	Valid  bool
	Error  string
}

// Registry maps action names to specs. Registration happens at startup;
// lookups are read-mostly.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
	log   *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{specs: make(map[string]Spec), log: log}
}

// Register adds or replaces an action spec.
func (r *Registry) Register(spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Name] = spec
}

// Lookup returns the spec for name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// validate checks a raw call against its spec, clamping numeric args.
// Unknown actions come back invalid but do not abort the sequence.
func (r *Registry) validate(name string, args []any) MotorOutput {
	spec, ok := r.Lookup(name)
	if !ok {
		return MotorOutput{Action: name, Params: args, Error: fmt.Sprintf("unknown action %q", name)}
	}
	if len(args) != len(spec.Args) {
		return MotorOutput{Action: name, Params: args,
			Error: fmt.Sprintf("%s expects %d args, got %d", name, len(spec.Args), len(args))}
	}
	params := make([]any, len(args))
	for i, arg := range args {
		as := spec.Args[i]
		switch as.Type {
		case ArgString:
			s, ok := arg.(string)
			if !ok {
				return MotorOutput{Action: name, Params: args,
					Error: fmt.Sprintf("%s arg %s must be a string", name, as.Name)}
			}
			params[i] = s
		case ArgNumber:
			f, ok := toFloat(arg)
			if !ok {
				return MotorOutput{Action: name, Params: args,
					Error: fmt.Sprintf("%s arg %s must be a number", name, as.Name)}
			}
			if as.Clamp {
				if f < as.Min {
					f = as.Min
				}
				if f > as.Max {
					f = as.Max
				}
			}
			params[i] = f
		}
	}
	return MotorOutput{Action: name, Params: params, Valid: true}
}

// Execute runs the handlers of every valid call in outputs, in order.
func (r *Registry) Execute(outputs []MotorOutput) {
	for _, out := range outputs {
		if !out.Valid {
			r.log.Debug("skipping invalid action", "action", out.Action, "error", out.Error)
			continue
		}
		spec, ok := r.Lookup(out.Action)
		if !ok || spec.Handler == nil {
			continue
		}
		if err := spec.Handler(out.Params); err != nil {
			r.log.Warn("action handler failed", "action", out.Action, "error", err)
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
