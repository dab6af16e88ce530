// Package commands implements the CLI subcommands for the chia-monitor binary.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dwsmith1983/chia-monitor/internal/config"
	"github.com/dwsmith1983/chia-monitor/internal/history"
	"github.com/dwsmith1983/chia-monitor/internal/notify"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "config.yml"

// newLogger builds the process logger at the configured level.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// loadConfig loads the config file and the logger it configures.
func loadConfig(path string) (*types.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openStore opens the history store and, unless disabled, migrates it.
func openStore(ctx context.Context, cfg types.HistoryConfig, migrate bool, logger *slog.Logger) (*history.Store, error) {
	store, err := history.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

// channels holds the two notification channels.
type channels struct {
	status *notify.Channel
	alert  *notify.Channel
}

func (c channels) byName() map[types.ChannelName]*notify.Channel {
	return map[types.ChannelName]*notify.Channel{
		types.ChannelStatus: c.status,
		types.ChannelAlert:  c.alert,
	}
}

func (c channels) Close() error {
	var errs []error
	for _, ch := range []*notify.Channel{c.status, c.alert} {
		if ch != nil {
			errs = append(errs, ch.Close())
		}
	}
	return errors.Join(errs...)
}

// newChannels builds the status and alert channels from the notifier config.
func newChannels(ctx context.Context, cfg types.NotifierConfig, clients *notify.Clients, logger *slog.Logger) (channels, error) {
	opts := []notify.Option{notify.WithLogger(logger), notify.WithRateLimit(cfg.RateLimit)}

	status, err := notify.NewChannel(ctx, types.ChannelStatus, cfg.StatusServiceURL, clients, opts...)
	if err != nil {
		return channels{}, err
	}
	alert, err := notify.NewChannel(ctx, types.ChannelAlert, cfg.AlertServiceURL, clients, opts...)
	if err != nil {
		_ = status.Close()
		return channels{}, err
	}
	return channels{status: status, alert: alert}, nil
}
