// Package dispatcher drains the event bus into the metrics sink, the event
// log and the history store.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

const instrumentationName = "github.com/dwsmith1983/chia-monitor/internal/dispatcher"

// Recorder persists events. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, ev types.Event) error
}

// Dispatcher is the single consumer of the event bus.
type Dispatcher struct {
	events     <-chan types.Event
	sinks      []types.EventVisitor
	store      Recorder
	logger     *slog.Logger
	dispatched metric.Int64Counter
}

// New creates a dispatcher reading events. Every event is handed to each sink
// in order and then recorded in store.
func New(events <-chan types.Event, store Recorder, logger *slog.Logger, sinks ...types.EventVisitor) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dispatched, err := otel.Meter(instrumentationName).Int64Counter("dispatcher.events",
		metric.WithDescription("Events dispatched to the sinks and the history store"))
	if err != nil {
		return nil, fmt.Errorf("creating dispatch counter: %w", err)
	}
	return &Dispatcher{
		events:     events,
		sinks:      sinks,
		store:      store,
		logger:     logger,
		dispatched: dispatched,
	}, nil
}

// Run dispatches events one at a time until ctx is cancelled or the events
// channel is closed. A store error stops the dispatcher and is returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return nil
		case ev, ok := <-d.events:
			if !ok {
				return nil
			}
			if err := d.Dispatch(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// Dispatch hands ev to every sink and then records it. Sink errors are
// logged; a store error is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, ev types.Event) error {
	for _, s := range d.sinks {
		if err := ev.Visit(s); err != nil {
			d.logger.Warn("sink rejected event", "kind", string(ev.Kind()), "error", err)
		}
	}
	if err := d.store.Record(ctx, ev); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dispatching %s: %w", ev.Kind(), err)
	}
	d.dispatched.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(ev.Kind()))))
	return nil
}
