// Package collector turns the state of a Chia farm into events. Polling
// collectors wrap a Poller in a ticker loop; the daemon collector converts
// websocket pushes. A Supervisor owns every collector for the life of the
// process.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// ErrConnection marks a collector that could not reach its service.
var ErrConnection = errors.New("collector connection")

// Publisher accepts events from collectors. *bus.Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, ev types.Event) error
}

// Collector produces events until ctx is cancelled or its source fails.
type Collector interface {
	Name() string
	Run(ctx context.Context, pub Publisher) error
	Close() error
}

// Poller gathers one batch of events. A non-nil error with events means a
// partial batch; the events are still published.
type Poller interface {
	Poll(ctx context.Context) ([]types.Event, error)
	Close() error
}

// Polling runs a Poller on a fixed interval.
type Polling struct {
	name     string
	poller   Poller
	interval time.Duration
	logger   *slog.Logger
}

// NewPolling wraps p in a collector that polls every interval.
func NewPolling(name string, p Poller, interval time.Duration, logger *slog.Logger) *Polling {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Polling{
		name:     name,
		poller:   p,
		interval: interval,
		logger:   logger.With("collector", name),
	}
}

// Name returns the collector name.
func (c *Polling) Name() string { return c.name }

// Run polls immediately and then on every tick. Poll failures are logged and
// retried on the next tick. It returns nil once ctx is cancelled.
func (c *Polling) Run(ctx context.Context, pub Publisher) error {
	c.logger.Info("collector started", "interval", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.poll(ctx, pub); err != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			c.logger.Info("collector stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// poll returns an error only when publishing was cancelled.
func (c *Polling) poll(ctx context.Context, pub Publisher) error {
	events, err := c.poller.Poll(ctx)
	if err != nil && ctx.Err() == nil {
		c.logger.Warn("error while collecting events, trying again", "error", err)
	}
	for _, ev := range events {
		if err := pub.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the poller's transport.
func (c *Polling) Close() error { return c.poller.Close() }
