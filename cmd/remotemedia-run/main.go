// Command remotemedia-run loads a pipeline manifest, builds and runs
// it to completion or forced shutdown, and exits with the status codes
// §6.6 defines for scripting/orchestration callers.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/events"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/eventsgateway"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/logger"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/manifest"
	prometheusexporter "github.com/matbeedotcom/remotemedia-sdk-sub000/metrics/prometheus"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/scheduler"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/telemetry"
)

// Exit codes (§6.6).
const (
	exitSuccess             = 0
	exitNodeError           = 1
	exitInvalidManifest     = 2
	exitWorkerStartupTimeout = 3
	exitInterrupted         = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("remotemedia-run", pflag.ContinueOnError)
	manifestPath := flags.StringP("manifest", "m", "", "path to a pipeline manifest (JSON or YAML, §6.1)")
	verbose := flags.BoolP("verbose", "v", false, "enable debug logging")
	metricsAddr := flags.String("metrics-addr", "", "serve Prometheus /metrics on this address (disabled if empty)")
	otlpEndpoint := flags.String("otlp-endpoint", "", "OTLP/HTTP trace collector endpoint (disabled if empty)")
	eventsAddr := flags.String("events-addr", "", "serve a WebSocket event feed of pipeline/node/worker lifecycle events on this address (disabled if empty)")
	if err := flags.Parse(args); err != nil {
		return exitInvalidManifest
	}
	if *verbose {
		logger.GetModuleConfig().SetDefaultLevel(slog.LevelDebug)
	}
	log := logger.DefaultLogger.With("component", "remotemedia-run")

	if *metricsAddr != "" {
		exporter := prometheusexporter.NewExporter(*metricsAddr)
		go func() {
			if err := exporter.Start(); err != nil {
				log.Warn("metrics exporter stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = exporter.Shutdown(shutdownCtx)
		}()
	}

	if *otlpEndpoint != "" {
		tp, err := telemetry.NewTracerProvider(context.Background(), *otlpEndpoint, "remotemedia-run")
		if err != nil {
			log.Warn("tracer provider setup failed", "error", err)
		} else {
			telemetry.SetupPropagation()
			otel.SetTracerProvider(tp)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	if *manifestPath == "" {
		fmt.Fprintln(os.Stderr, "remotemedia-run: -manifest is required")
		return exitInvalidManifest
	}

	m, err := manifest.LoadManifest(*manifestPath)
	if err != nil {
		log.Error("invalid manifest", "path", *manifestPath, "error", err)
		return exitInvalidManifest
	}

	graph, err := manifest.Resolve(m, nil)
	if err != nil {
		log.Error("resolving manifest", "error", err)
		return exitInvalidManifest
	}

	schedCfg := scheduler.NewConfigFromEnv()
	if *eventsAddr != "" {
		bus := events.NewEventBus()
		schedCfg.Bus = bus

		gateway := eventsgateway.New(bus)
		gateway.Subscribe()
		srv := &http.Server{Addr: *eventsAddr, Handler: gateway}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("events gateway stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sched := scheduler.New(schedCfg)
	pipeline, err := sched.Build(graph)
	if err != nil {
		log.Error("invalid pipeline graph", "error", err)
		return exitInvalidManifest
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := pipeline.Run(ctx)
	if runErr == nil {
		log.Info("pipeline completed", "manifest", *manifestPath)
		return exitSuccess
	}

	if ctx.Err() != nil {
		log.Warn("pipeline interrupted", "error", runErr)
		return exitInterrupted
	}

	var startupErr *scheduler.WorkerStartupTimeoutError
	if errors.As(runErr, &startupErr) {
		log.Error("worker startup timed out", "node", startupErr.Node)
		return exitWorkerStartupTimeout
	}

	log.Error("pipeline failed", "error", runErr)
	return exitNodeError
}
