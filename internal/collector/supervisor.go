package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/chia-monitor/internal/config"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// ErrNoCollectors is returned when no collector could be constructed.
var ErrNoCollectors = errors.New("no collectors available")

// Factory constructs one collector.
type Factory struct {
	Name string
	New  func(ctx context.Context) (Collector, error)
}

// Handle is a constructed collector owned by the supervisor.
type Handle struct {
	Name      string
	Collector Collector
}

// Task is a long-running pipeline stage whose error is fatal to the group.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor owns the collectors and runs them next to the pipeline tasks.
type Supervisor struct {
	handles []Handle
	logger  *slog.Logger
}

// Factories returns the collector factories enabled in cfg.
func Factories(cfg *types.Config, logger *slog.Logger) []Factory {
	var fs []Factory
	if config.Enabled(cfg.RPCCollector.Enable) {
		fs = append(fs, Factory{Name: NameRPC, New: func(ctx context.Context) (Collector, error) {
			return NewRPC(ctx, cfg, logger)
		}})
	}
	if config.Enabled(cfg.WSCollector.Enable) {
		fs = append(fs, Factory{Name: NameDaemon, New: func(ctx context.Context) (Collector, error) {
			return NewDaemon(ctx, cfg, logger)
		}})
	}
	if cfg.PriceCollector.Enable {
		fs = append(fs, Factory{Name: NamePrice, New: func(ctx context.Context) (Collector, error) {
			return NewPrice(ctx, cfg, logger)
		}})
	}
	return fs
}

// Start constructs every collector. Failures are logged and skipped; when
// none succeed it returns ErrNoCollectors and nothing is left open.
func Start(ctx context.Context, factories []Factory, logger *slog.Logger) (*Supervisor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Supervisor{logger: logger}
	for _, f := range factories {
		c, err := f.New(ctx)
		if err != nil {
			logger.Warn("failed to create collector", "collector", f.Name, "error", err)
			continue
		}
		s.handles = append(s.handles, Handle{Name: f.Name, Collector: c})
		logger.Info("collector created", "collector", f.Name)
	}
	if len(s.handles) == 0 {
		return nil, fmt.Errorf("%w: tried %d", ErrNoCollectors, len(factories))
	}
	return s, nil
}

// Handles returns the constructed collectors.
func (s *Supervisor) Handles() []Handle {
	out := make([]Handle, len(s.handles))
	copy(out, s.handles)
	return out
}

// Run starts every collector and every task in one group. A task error
// cancels the group and is returned. A collector that stops is logged and
// leaves the rest running.
func (s *Supervisor) Run(ctx context.Context, pub Publisher, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, h := range s.handles {
		g.Go(func() error {
			if err := h.Collector.Run(gctx, pub); err != nil {
				s.logger.Error("collector stopped", "collector", h.Name, "error", err)
				return nil
			}
			s.logger.Info("collector finished", "collector", h.Name)
			return nil
		})
	}
	for _, t := range tasks {
		g.Go(func() error {
			if err := t.Run(gctx); err != nil {
				return fmt.Errorf("%s: %w", t.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close closes every collector.
func (s *Supervisor) Close() error {
	var errs []error
	for _, h := range s.handles {
		if err := h.Collector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s collector: %w", h.Name, err))
		}
	}
	return errors.Join(errs...)
}
