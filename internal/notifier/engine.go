package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

const instrumentationName = "github.com/dwsmith1983/chia-monitor/internal/notifier"

// DefaultInterval is the evaluation tick when none is configured.
const DefaultInterval = time.Second

type registered struct {
	check   Check
	channel Notifier
	state   *State
}

// Engine evaluates every registered check once per tick.
type Engine struct {
	mu       sync.Mutex
	checks   []*registered
	interval time.Duration
	states   StateStore
	logger   *slog.Logger
	now      func() time.Time

	tracer trace.Tracer
	sent   metric.Int64Counter
}

// Option configures an Engine.
type Option func(*Engine)

// WithInterval sets the evaluation tick.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithStateStore persists check state between restarts.
func WithStateStore(s StateStore) Option {
	return func(e *Engine) {
		if s != nil {
			e.states = s
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. Each check is bound to the channel it names.
func New(checks []Check, channels map[types.ChannelName]Notifier, opts ...Option) (*Engine, error) {
	e := &Engine{
		interval: DefaultInterval,
		states:   NewMemoryStateStore(),
		logger:   slog.Default(),
		now:      time.Now,
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, o := range opts {
		o(e)
	}

	sent, err := otel.Meter(instrumentationName).Int64Counter("notifier.notifications",
		metric.WithDescription("Notifications delivered by the engine"))
	if err != nil {
		return nil, fmt.Errorf("creating notification counter: %w", err)
	}
	e.sent = sent

	for _, c := range checks {
		ch, ok := channels[c.Channel()]
		if !ok || ch == nil {
			return nil, fmt.Errorf("check %s: no %s channel configured", c.Name(), c.Channel())
		}
		e.checks = append(e.checks, &registered{check: c, channel: ch, state: &State{}})
	}
	return e, nil
}

// Checks returns the names of the registered checks in evaluation order.
func (e *Engine) Checks() []string {
	names := make([]string, 0, len(e.checks))
	for _, r := range e.checks {
		names = append(names, r.check.Name())
	}
	return names
}

// Run restores check state, then evaluates every check on each tick until
// ctx is cancelled. A store error stops the loop and is returned.
func (e *Engine) Run(ctx context.Context) error {
	e.restore(ctx)
	e.logger.Info("notification engine started", "interval", e.interval, "checks", e.Checks())

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		if err := e.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			e.logger.Info("notification engine stopping")
			return nil
		case <-ticker.C:
		}
	}
}

func (e *Engine) restore(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.checks {
		st, err := e.states.Load(ctx, r.check.Name())
		if err != nil {
			e.logger.Warn("failed to restore check state, starting neutral", "check", r.check.Name(), "error", err)
			continue
		}
		if st != nil {
			r.state = st
		}
	}
}

// Tick evaluates every check once.
func (e *Engine) Tick(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	ctx, span := e.tracer.Start(ctx, "notifier.tick")
	defer span.End()

	for _, r := range e.checks {
		if err := e.evaluate(ctx, now, r); err != nil {
			span.RecordError(err)
			return fmt.Errorf("check %s: %w", r.check.Name(), err)
		}
	}
	return nil
}

func (e *Engine) evaluate(ctx context.Context, now time.Time, r *registered) error {
	before := fingerprint(r.state)
	defer func() {
		if after := fingerprint(r.state); !bytes.Equal(before, after) {
			if err := e.states.Save(ctx, r.check.Name(), r.state); err != nil {
				e.logger.Warn("failed to persist check state", "check", r.check.Name(), "error", err)
			}
		}
	}()

	c, st := r.check, r.state
	fire, err := c.Condition(ctx, now, st)
	if err != nil {
		return err
	}

	switch {
	case fire && !st.Firing:
		msg, err := c.Alert(ctx, now, st)
		if err != nil {
			return err
		}
		if msg == nil {
			return nil
		}
		if !r.channel.Notify(ctx, msg.Title, msg.Body) {
			e.logger.Warn("notification not delivered, retrying next tick", "check", c.Name())
			return nil
		}
		c.Delivered(now, st)
		if c.Latching() {
			st.Firing = true
		}
		st.LastSent = now
		e.record(ctx, c, "alert")
		e.logger.Info("notification sent", "check", c.Name(), "title", msg.Title)

	case !fire && st.Firing:
		msg := c.Recovery(st)
		if msg != nil && !r.channel.Notify(ctx, msg.Title, msg.Body) {
			e.logger.Warn("recovery not delivered, retrying next tick", "check", c.Name())
			return nil
		}
		st.Firing = false
		if msg != nil {
			st.LastSent = now
			e.record(ctx, c, "recovery")
			e.logger.Info("recovery sent", "check", c.Name(), "title", msg.Title)
		}
	}
	return nil
}

func (e *Engine) record(ctx context.Context, c Check, kind string) {
	e.sent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", c.Name()),
		attribute.String("kind", kind),
	))
}

// State returns a copy of the named check's state, or nil when no such
// check is registered.
func (e *Engine) State(name string) *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.checks {
		if r.check.Name() == name {
			cp := *r.state
			return &cp
		}
	}
	return nil
}

func fingerprint(st *State) []byte {
	data, _ := json.Marshal(st)
	return data
}
