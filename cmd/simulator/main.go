package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/tileworld-simulator/core"
	"github.com/signalsfoundry/tileworld-simulator/internal/config"
	"github.com/signalsfoundry/tileworld-simulator/internal/logging"
	"github.com/signalsfoundry/tileworld-simulator/internal/observability"
	"github.com/signalsfoundry/tileworld-simulator/internal/script"
	"github.com/signalsfoundry/tileworld-simulator/timectrl"
)

var errNoScenario = errors.New("no scenario given: use -scenario or " + config.EnvScenario)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, log := logging.WithRunLogger(ctx, logging.NewFromEnv())

	if _, err := run(ctx, cfg, log, prometheus.NewRegistry()); err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		stop()
		os.Exit(1)
	}
}

// run loads the configured scenario and drives it until game over, the
// configured duration or cancellation of ctx, whichever comes first.
func run(ctx context.Context, cfg config.Config, log logging.Logger, reg *prometheus.Registry) (core.Snapshot, error) {
	if cfg.Scenario == "" {
		return core.Snapshot{}, errNoScenario
	}

	tracingCfg, err := observability.TracingConfigFromEnv()
	if err != nil {
		return core.Snapshot{}, err
	}
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewSimCollector(reg)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("init metrics: %w", err)
	}
	scripts, err := observability.NewScriptCollector(reg)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("init script metrics: %w", err)
	}

	metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
	}()

	sc, err := core.LoadScenarioFile(cfg.Scenario,
		core.WithLogger(log),
		core.WithMetricsRecorder(collector),
	)
	if err != nil {
		return core.Snapshot{}, err
	}

	engine := core.NewSimulationEngine(sc.World, core.WithEngineLogger(log))
	if len(sc.Intents) > 0 {
		_, err := engine.LoadIntents(sc.Intents, func(r script.Result) {
			scripts.ObserveIntent(string(r.Intent.Action), r.Err)
			if r.Err != nil {
				log.Warn(ctx, "intent rejected",
					logging.String("intent", r.Intent.String()),
					logging.Err(r.Err),
				)
			}
		})
		if err != nil {
			return core.Snapshot{}, err
		}
	}
	scripts.SetQueued(engine.PendingIntents())
	engine.RegisterTickListener(func(core.Snapshot) {
		scripts.SetQueued(engine.PendingIntents())
	})

	if err := engine.Start(); err != nil {
		return core.Snapshot{}, err
	}

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(engine.Clock().Now(), cfg.Tick, mode)
	engine.Drive(ctx, tc)

	log.Info(ctx, "starting simulation",
		logging.String("scenario", sc.Name),
		logging.Int("entities", len(sc.Entities)),
		logging.Int("intents", len(sc.Intents)),
		logging.Duration("tick", cfg.Tick),
		logging.String("mode", mode.String()),
	)
	<-tc.Start(ctx, cfg.Duration)

	snap := engine.Snapshot()
	fields := []logging.Field{
		logging.String("outcome", snap.Outcome.String()),
		logging.Int64("ticks", int64(snap.Tick)),
		logging.Duration("sim_time", snap.SimTime),
	}
	if snap.Player != nil {
		fields = append(fields, logging.Int("hp", snap.Player.HitPoints))
	}
	log.Info(ctx, "simulation finished", fields...)

	return snap, engine.Err()
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
