package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/chia-monitor/internal/bus"
	"github.com/dwsmith1983/chia-monitor/internal/collector"
	"github.com/dwsmith1983/chia-monitor/internal/config"
	"github.com/dwsmith1983/chia-monitor/internal/dispatcher"
	"github.com/dwsmith1983/chia-monitor/internal/eventlog"
	"github.com/dwsmith1983/chia-monitor/internal/history"
	"github.com/dwsmith1983/chia-monitor/internal/metrics"
	"github.com/dwsmith1983/chia-monitor/internal/notifier"
	"github.com/dwsmith1983/chia-monitor/internal/notify"
	"github.com/dwsmith1983/chia-monitor/internal/server"
	"github.com/dwsmith1983/chia-monitor/internal/telemetry"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

const telemetryShutdownTimeout = 5 * time.Second

// NewRunCmd creates the run command.
func NewRunCmd(configPath *string, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Collect farm events, export metrics and send notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd.Context(), *configPath, version)
		},
	}
}

func runMonitor(ctx context.Context, configPath, version string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	// History
	store, err := openStore(ctx, cfg.History, config.Enabled(cfg.History.MigrateOnStart), logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Collectors
	sup, err := collector.Start(ctx, collector.Factories(cfg, logger), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sup.Close(); err != nil {
			logger.Warn("closing collectors", "error", err)
		}
	}()

	// Pipeline
	sink := metrics.New()
	events := bus.New(cfg.Bus.Capacity)
	disp, err := dispatcher.New(events.Events(), store, logger, sink, eventlog.New(logger))
	if err != nil {
		return err
	}
	tasks := []collector.Task{{Name: "dispatcher", Run: disp.Run}}

	// Notifications
	if cfg.Notifier.Enable {
		engine, closeEngine, err := newEngine(ctx, cfg.Notifier, store, logger)
		if err != nil {
			return err
		}
		defer closeEngine()
		tasks = append(tasks, collector.Task{Name: "notifier", Run: engine.Run})
	}

	// Server
	srv := server.New(serverAddr(cfg), sink.Registry(), store, logger)
	tasks = append(tasks, collector.Task{Name: "server", Run: srv.Run})

	color.Green("chia-monitor %s running with %d collector(s)", version, len(sup.Handles()))
	if err := sup.Run(ctx, events, tasks...); err != nil {
		logger.Error("monitoring stopped", "error", err)
		return err
	}
	color.Yellow("Shutting down...")
	return nil
}

func serverAddr(cfg *types.Config) string {
	if cfg.Server != nil && cfg.Server.Addr != "" {
		return cfg.Server.Addr
	}
	return fmt.Sprintf(":%d", cfg.ExporterPort)
}

// newEngine wires the notification channels, the check state store and the
// checks into an engine. The returned func releases the channels and store.
func newEngine(ctx context.Context, cfg types.NotifierConfig, store *history.Store, logger *slog.Logger) (*notifier.Engine, func(), error) {
	chans, err := newChannels(ctx, cfg, &notify.Clients{}, logger)
	if err != nil {
		return nil, nil, err
	}
	states, err := notifier.NewStateStore(ctx, cfg.State)
	if err != nil {
		_ = chans.Close()
		return nil, nil, fmt.Errorf("check state store: %w", err)
	}
	release := func() {
		if err := chans.Close(); err != nil {
			logger.Warn("closing notification channels", "error", err)
		}
		if c, ok := states.(io.Closer); ok {
			_ = c.Close()
		}
	}

	notifiers := make(map[types.ChannelName]notifier.Notifier, 2)
	for name, ch := range chans.byName() {
		notifiers[name] = ch
	}
	engine, err := notifier.New(notifier.DefaultChecks(cfg, store), notifiers,
		notifier.WithInterval(config.Duration(cfg.Interval, notifier.DefaultInterval)),
		notifier.WithStateStore(states),
		notifier.WithLogger(logger),
	)
	if err != nil {
		release()
		return nil, nil, err
	}
	logger.Info("notifier configured", "checks", engine.Checks(), "state_backend", cfg.State.Backend)
	return engine, release, nil
}
