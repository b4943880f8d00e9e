package npc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

// minThinkGap is the per-brain floor between LLM thinks, sim seconds.
const minThinkGap = 20.0

// LLMThinkScheduler rate-limits LLM-backed NPC thinking with a global
// token bucket and picks which brain thinks next by priority (recent
// stimuli salience plus aggression). The background worker mirrors the
// doctrine strategist's shape: a buffered ready channel gates a single
// goroutine that never blocks the tick path; failures fall through to
// the behavior-tree fallback.
type LLMThinkScheduler struct {
	brains *Manager
	client LLMClient
	log    *slog.Logger

	// Apply consumes a brain's raw response text (an action-call
	// sequence parsed by the actions package downstream).
	Apply func(targetID, response string)

	// Observe, optional, records call outcomes ("ok", "error",
	// "fallback") for the metrics layer.
	Observe func(outcome string)

	mu       sync.Mutex
	tokens   float64
	rate     float64 // tokens per second
	burst    float64
	lastFill time.Time
	simNow   float64

	ready chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

// NewLLMThinkScheduler builds a scheduler. ratePerSecond<=0 defaults to
// 1 call/s; burst<=0 defaults to 3.
func NewLLMThinkScheduler(brains *Manager, client LLMClient, ratePerSecond float64, burst int, log *slog.Logger) *LLMThinkScheduler {
	if log == nil {
		log = slog.Default()
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 3
	}
	return &LLMThinkScheduler{
		brains:   brains,
		client:   client,
		log:      log,
		rate:     ratePerSecond,
		burst:    float64(burst),
		tokens:   float64(burst),
		lastFill: time.Now(),
		ready:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the worker goroutine. Stop cancels any in-flight call
// and waits for the worker to exit.
func (s *LLMThinkScheduler) Start() {
	go s.run()
}

// Stop shuts the worker down; in-flight LLM calls observe cancellation
// within their context deadline.
func (s *LLMThinkScheduler) Stop() {
	close(s.stop)
	<-s.done
}

// Signal nudges the worker that sim state advanced; coalesces like the
// strategist's ready channel so a burst of events causes one wake-up.
func (s *LLMThinkScheduler) Signal(simNow float64) {
	s.mu.Lock()
	s.simNow = simNow
	s.mu.Unlock()
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *LLMThinkScheduler) run() {
	defer close(s.done)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-s.stop
		cancel()
	}()
	for {
		select {
		case <-s.stop:
			return
		case <-s.ready:
			for s.takeToken() {
				if !s.thinkOnce(ctx) {
					break
				}
			}
		}
	}
}

// takeToken refills by elapsed wall time and claims one token if available.
func (s *LLMThinkScheduler) takeToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.tokens += now.Sub(s.lastFill).Seconds() * s.rate
	if s.tokens > s.burst {
		s.tokens = s.burst
	}
	s.lastFill = now
	if s.tokens < 1 {
		return false
	}
	s.tokens--
	return true
}

// thinkOnce picks the highest-priority brain and runs one think cycle.
// Returns false when no brain currently wants to think.
func (s *LLMThinkScheduler) thinkOnce(ctx context.Context) bool {
	s.mu.Lock()
	now := s.simNow
	s.mu.Unlock()

	brain := s.pick(now)
	if brain == nil {
		return false
	}
	brain.LastThink = now

	prompt := s.buildPrompt(now, brain)
	if s.client == nil {
		s.fallback(brain)
		return true
	}
	response, err := s.client.Complete(ctx, prompt)
	if err != nil {
		s.log.Warn("llm think failed, using fallback", "target_id", brain.TargetID, "error", err)
		s.observe("error")
		s.fallback(brain)
		return true
	}
	s.observe("ok")
	if s.Apply != nil {
		s.Apply(brain.TargetID, response)
	}
	return true
}

// pick ranks brains by stimulus salience and aggression, skipping any
// that thought too recently.
func (s *LLMThinkScheduler) pick(now float64) *Brain {
	candidates := s.brains.All()
	type scored struct {
		brain *Brain
		score float64
	}
	var ranked []scored
	for _, b := range candidates {
		if b.LastThink != 0 && now-b.LastThink < minThinkGap {
			continue
		}
		score := b.Memory.Salience(now, "") + b.Personality.Aggression
		if score < 0.2 {
			continue // nothing on its mind
		}
		ranked = append(ranked, scored{b, score})
	}
	if len(ranked) == 0 {
		return nil
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	return ranked[0].brain
}

// buildPrompt summarizes brain state for the model, ending with the
// action-call grammar the actions package parses.
func (s *LLMThinkScheduler) buildPrompt(now float64, b *Brain) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a %s in a tactical simulation.\n", b.TargetID, b.AssetType)
	fmt.Fprintf(&sb, "State: %s. Position: (%.0f, %.0f).\n", b.State, b.Position.X, b.Position.Y)
	fmt.Fprintf(&sb, "Personality: curiosity %.2f, caution %.2f, sociability %.2f, aggression %.2f.\n",
		b.Personality.Curiosity, b.Personality.Caution, b.Personality.Sociability, b.Personality.Aggression)
	recent := b.Memory.Recent(6)
	if len(recent) > 0 {
		sb.WriteString("Recent observations (newest first):\n")
		for _, e := range recent {
			fmt.Fprintf(&sb, "- %.0fs ago: %s %s near (%.0f, %.0f)\n",
				now-e.Timestamp, e.Kind, e.Subject, e.Position.X, e.Position.Y)
		}
	}
	sb.WriteString("\nRespond with one or two action calls, e.g.:\n")
	sb.WriteString(`think("reasoning"), say("dialogue"), dispatch("` + b.TargetID + `", x, y), escalate("` + b.TargetID + `", level)` + "\n")
	return sb.String()
}

// fallback is the BehaviorTreeFallback: a weighted-random,
// personality-biased action choice used whenever the LLM is missing or
// fails.
func (s *LLMThinkScheduler) fallback(b *Brain) {
	s.observe("fallback")
	if s.Apply == nil {
		return
	}
	roll := rand.Float64() * (b.Personality.Curiosity + b.Personality.Caution + b.Personality.Sociability)
	var response string
	switch {
	case roll < b.Personality.Curiosity:
		dest := b.Position.Add(randomUnit().Scale(15))
		response = fmt.Sprintf(`dispatch(%q, %.1f, %.1f)`, b.TargetID, dest.X, dest.Y)
	case roll < b.Personality.Curiosity+b.Personality.Caution:
		response = fmt.Sprintf(`think(%q)`, "staying alert")
	default:
		response = fmt.Sprintf(`say(%q)`, "anyone else hear that?")
	}
	s.Apply(b.TargetID, response)
}

func randomUnit() model.Vec2 {
	a := rand.Float64() * 2 * math.Pi
	return model.Vec2{X: math.Cos(a), Y: math.Sin(a)}
}

func (s *LLMThinkScheduler) observe(outcome string) {
	if s.Observe != nil {
		s.Observe(outcome)
	}
}
