// Command tritiumd runs the TRITIUM-SC simulation engine: the tick
// loop, NPC intelligence, protocol bridges, and telemetry fan-out.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpatel/tritium-sc/engine-core/actions"
	"github.com/valpatel/tritium-sc/engine-core/bridge/cot"
	"github.com/valpatel/tritium-sc/engine-core/bridge/mqtt"
	"github.com/valpatel/tritium-sc/engine-core/config"
	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/metrics"
	"github.com/valpatel/tritium-sc/engine-core/model"
	"github.com/valpatel/tritium-sc/engine-core/npc"
	"github.com/valpatel/tritium-sc/engine-core/scenario"
	"github.com/valpatel/tritium-sc/engine-core/sim"
	"github.com/valpatel/tritium-sc/engine-core/telemetry"
	"github.com/valpatel/tritium-sc/engine-core/tracing"
	"github.com/valpatel/tritium-sc/engine-core/tracker"
)

const version = "1.0.0"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var configPath string
	root := &cobra.Command{
		Use:   "tritiumd",
		Short: "TRITIUM-SC tactical simulation engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "tritium.yaml", "optional yaml config overlay")

	root.AddCommand(
		serveCmd(&configPath),
		validateScenarioCmd(&configPath),
		versionCmd(),
	)
	// serve is the default when no subcommand is named.
	root.RunE = serveCmd(&configPath).RunE

	if err := root.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the engine version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("tritiumd", version)
		},
	}
}

func validateScenarioCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-scenario <name>",
		Short: "Load and validate a scenario file without starting the engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			loader := scenario.NewLoader(cfg.Sim.ScenarioDir, nil)
			s, err := loader.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("scenario %q ok: %d waves, %d defenders, %d buildings\n",
				s.Name, len(s.Waves), len(s.Defenders), len(s.Obstacles))
			return nil
		},
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine, bridges, and telemetry fan-out",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg config.Config) error {
	slog.Info("starting tritiumd", "version", version)

	shutdownTracing := tracing.Init()
	defer shutdownTracing(context.Background())

	model.InitReference(cfg.Map.CenterLat, cfg.Map.CenterLng, cfg.Map.CenterAlt)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	bus := eventbus.New(nil)
	trk := tracker.New(nil)

	engine := sim.NewEngine(bus, nil)
	engine.OnTickDuration = m.TickDuration.Observe
	if err := engine.Start(); err != nil {
		return err
	}
	defer engine.Stop()

	go countCombatMetrics(ctx, bus, m)
	go feedTracker(ctx, bus, trk, m)

	// NPC intelligence stack.
	brains := npc.NewManager(nil)
	alliance := npc.NewAllianceManager(nil)
	mobs := npc.NewMobManager(alliance, nil)
	reactor := npc.NewReactor(bus, brains, alliance, mobs, nil)
	reactor.Start(engine)
	defer reactor.Stop()

	registry := actions.NewRegistry(nil)
	actions.RegisterCore(registry, engine, bus, engine.GetGameState().MapHalfExtent)
	actions.RegisterFormations(registry, engine, engine.GetGameState().MapHalfExtent)

	var llm npc.LLMClient
	if cfg.LLM.Host != "" {
		llm = npc.NewOllamaClient(cfg.LLM.Host, cfg.LLM.Model,
			time.Duration(cfg.LLM.TimeoutSeconds*float64(time.Second)))
	}
	thinker := npc.NewLLMThinkScheduler(brains, llm, cfg.LLM.RatePerSecond, cfg.LLM.Burst, nil)
	thinker.Observe = func(outcome string) { m.LLMThinkCalls.WithLabelValues(outcome).Inc() }
	thinker.Apply = func(targetID, response string) {
		registry.Execute(registry.Parse(response))
	}
	thinker.Start()
	defer thinker.Stop()
	go signalThinker(ctx, bus, thinker)

	// Scenario loading + routines.
	loader := scenario.NewLoader(cfg.Sim.ScenarioDir, nil)
	if err := loader.Watch(ctx.Done()); err != nil {
		slog.Warn("scenario hot-reload disabled", "error", err)
	}
	routines := npc.NewRoutineScheduler(nil, nil)
	go runRoutines(ctx, bus, routines, brains, engine)

	// Telemetry fan-out.
	manager := telemetry.NewConnectionManager(nil)
	manager.OnCountChange = func(n int) { m.WSClients.Set(float64(n)) }
	batcher := telemetry.NewBatcher(bus, manager, 0, nil)
	go batcher.Run(ctx)

	// Bridges.
	if cfg.TAK.CotURL != "" {
		takBridge := cot.NewBridge(cot.Config{
			Addr:                    cfg.TAK.CotURL,
			Callsign:                cfg.TAK.Callsign,
			PublishInterval:         time.Duration(cfg.TAK.PublishInterval * float64(time.Second)),
			StaleSeconds:            cfg.TAK.StaleSeconds,
			FinalStaleOnElimination: cfg.TAK.FinalStaleOnElimination,
		}, bus, trk, nil)
		takBridge.Observe = bridgeObserver(m, "tak")
		go takBridge.Run(ctx)
	}
	var mqttBridge *mqtt.Bridge
	if cfg.MQTT.BrokerURL != "" {
		mqttBridge = mqtt.NewBridge(mqtt.Config{
			BrokerURL: cfg.MQTT.BrokerURL,
			Site:      cfg.MQTT.Site,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
		}, bus, trk, nil)
		mqttBridge.Observe = bridgeObserver(m, "mqtt")
		go mqttBridge.Run(ctx)
	}

	// Fake robot fleet for development.
	if cfg.Sim.FakeRobots > 0 {
		fleet, err := sim.NewFakeFleet(engine, cfg.Sim.FakeRobots)
		if err != nil {
			return err
		}
		go mirrorFleet(ctx, fleet, mqttBridge)
	}

	// HTTP shell: thin handlers over engine/tracker methods.
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: newShell(engine, trk, loader, manager, m),
	}
	go func() {
		slog.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// countCombatMetrics folds combat events into the prometheus counters.
func countCombatMetrics(ctx context.Context, bus *eventbus.Bus, m *metrics.Metrics) {
	sub := bus.Subscribe("", eventbus.DefaultQueueSize)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case "shot_fired":
				m.ShotsFired.Inc()
			case "target_eliminated":
				m.Eliminations.Inc()
			case "bus_overflow":
				m.BusOverflows.Inc()
			case "sim_state":
				if snap, ok := ev.Payload.(model.StateSnapshot); ok {
					m.LiveTargets.Set(float64(len(snap.Targets)))
				}
				m.Subscribers.Set(float64(bus.SubscriberCount()))
			}
		}
	}
}

// feedTracker mirrors every sim_state snapshot into the unified tracker.
func feedTracker(ctx context.Context, bus *eventbus.Bus, trk *tracker.Tracker, m *metrics.Metrics) {
	sub := bus.Subscribe("sim_state", eventbus.DefaultQueueSize)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			snap, ok := ev.Payload.(model.StateSnapshot)
			if !ok {
				continue
			}
			live := make(map[string]bool, len(snap.Targets))
			for _, v := range snap.Targets {
				trk.UpdateFromSimulation(v)
				live[v.TargetID] = true
			}
			trk.PruneSimulation(live)
		}
	}
}

// signalThinker nudges the LLM scheduler as sim time advances.
func signalThinker(ctx context.Context, bus *eventbus.Bus, thinker *npc.LLMThinkScheduler) {
	sub := bus.Subscribe("sim_state", 16)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if snap, ok := ev.Payload.(model.StateSnapshot); ok {
				thinker.Signal(snap.SimTime)
			}
		}
	}
}

// runRoutines drives the daily routine scheduler off sim time.
func runRoutines(ctx context.Context, bus *eventbus.Bus, routines *npc.RoutineScheduler, brains *npc.Manager, world npc.World) {
	sub := bus.Subscribe("sim_state", 16)
	defer sub.Close()
	lastHour := 0.0
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			snap, ok := ev.Payload.(model.StateSnapshot)
			if !ok {
				continue
			}
			hour := npc.TimeOfDayHours(snap.SimTime)
			if hour < lastHour {
				routines.ResetDay()
			}
			lastHour = hour
			routines.Tick(snap.SimTime, brains, world)
		}
	}
}

// mirrorFleet publishes fake-robot state out over MQTT at 1 Hz so the
// broker side sees the same traffic real robots would produce.
func mirrorFleet(ctx context.Context, fleet *sim.FakeFleet, bridge *mqtt.Bridge) {
	if bridge == nil {
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, v := range fleet.Telemetry() {
				if err := bridge.PublishTelemetry(v); err != nil {
					slog.Debug("fleet telemetry publish failed", "robot", v.TargetID, "error", err)
				}
			}
		}
	}
}

func bridgeObserver(m *metrics.Metrics, bridge string) func(string) {
	return func(what string) {
		switch what {
		case "inbound":
			m.BridgeInbound.WithLabelValues(bridge).Inc()
		case "protocol_error":
			m.ProtocolErrors.WithLabelValues(bridge).Inc()
		case "reconnect":
			m.BridgeReconnects.WithLabelValues(bridge).Inc()
		}
	}
}
