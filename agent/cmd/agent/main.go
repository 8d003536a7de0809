package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/omnistream/omnistream/agent/internal/config"
	"github.com/omnistream/omnistream/agent/internal/metrics"
	"github.com/omnistream/omnistream/agent/internal/pipeline"
	"github.com/omnistream/omnistream/agent/internal/sensor"
	"github.com/omnistream/omnistream/agent/internal/sink"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults are used when empty)")
	vehicle := flag.String("vehicle", "", "vehicle id stamped on every packet")
	server := flag.String("server", "", "gRPC endpoint of the telemetry receiver (host:port)")
	live := flag.Bool("real", false, "stream to the receiver instead of simulating the sink")
	metricsAddr := flag.String("metrics-addr", "", "listen address for the Prometheus endpoint")
	logLevel := flag.String("log-level", "", "debug | info | warn | error")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	fileAgent := cfg.Agent
	a := &cfg.Agent
	if *vehicle != "" {
		a.VehicleID = *vehicle
	}
	if *server != "" {
		a.ServerEndpoint = *server
	}
	if *live {
		a.Mode = config.ModeLive
	}
	if *metricsAddr != "" {
		a.MetricsAddr = *metricsAddr
	}
	if *logLevel != "" {
		a.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	level.Set(a.Level())

	printBanner(*a)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := metrics.NewRecorder(a.VehicleID)
	snk := sink.Open(ctx, *a, logger)

	pcfg := pipeline.ConfigFrom(*a)
	pcfg.Metrics = rec
	pcfg.Logger = logger
	coord, err := pipeline.New(pcfg, sensor.New(a.VehicleID, a.LidarPoints), snk)
	if err != nil {
		_ = snk.Close()
		slog.Error("failed to build pipeline", "err", err)
		os.Exit(1)
	}

	if a.MetricsAddr != "" {
		addr := a.MetricsAddr
		coord.AddService("metrics", func(ctx context.Context) error {
			slog.Info("metrics endpoint listening", "addr", addr)
			return rec.Serve(ctx, addr)
		})
	}

	if *configPath != "" {
		path := *configPath
		levelPinned := *logLevel != ""
		coord.AddService("config-watcher", func(ctx context.Context) error {
			return config.Watch(ctx, path, func(updated *config.Config) {
				onReload(&level, levelPinned, fileAgent, updated.Agent)
			})
		})
	}

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	coord.HandleSignals(sigs)

	report := coord.Run(ctx)

	fmt.Printf("\nshutdown complete: ticks=%d sent=%d sink=%s reason=%q\n",
		report.Ticks, report.Sent, report.SinkMode, report.Reason)
	if report.Err != nil {
		slog.Error("auxiliary service failed", "err", report.Err)
		os.Exit(1)
	}
}

// onReload applies a reloaded file config. started is the file config as it
// was at startup, before flag overrides, so flags never show up as pending
// restarts. A --log-level flag pins the level.
func onReload(level *slog.LevelVar, levelPinned bool, started, updated config.AgentConfig) []string {
	if levelPinned {
		slog.Info("config hot-reloaded, log level pinned by --log-level", "file_log_level", updated.LogLevel)
	} else {
		level.Set(updated.Level())
		slog.Info("config hot-reloaded", "log_level", updated.LogLevel)
	}
	fields := config.RestartRequired(started, updated)
	if len(fields) > 0 {
		slog.Warn("config change requires restart", "fields", strings.Join(fields, ","))
	}
	return fields
}

func printBanner(a config.AgentConfig) {
	fmt.Println("==================================================")
	fmt.Println(" omnistream agent")
	fmt.Printf(" vehicle:  %s\n", a.VehicleID)
	fmt.Printf(" server:   %s\n", a.ServerEndpoint)
	fmt.Printf(" mode:     %s\n", a.Mode)
	fmt.Printf(" rate:     %g Hz, queue %d\n", a.RateHz, a.QueueCapacity)
	fmt.Println("==================================================")
}
