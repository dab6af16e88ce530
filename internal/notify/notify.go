// Package notify delivers titled messages to the destinations of a
// notification channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// Breaker defaults applied to every destination.
const (
	breakerTrips   = 3
	breakerTimeout = time.Minute
)

// Destination is one delivery target of a channel.
type Destination interface {
	Send(ctx context.Context, n types.Notification) error
	Name() string
}

type target struct {
	dest    Destination
	breaker *gobreaker.CircuitBreaker
}

// Channel fans a notification out to its destinations. Delivery failures are
// logged and collapsed into the boolean result of Notify.
type Channel struct {
	name    types.ChannelName
	targets []target
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the channel logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRateLimit caps deliveries per minute. A nil config disables limiting.
func WithRateLimit(cfg *types.RateConfig) Option {
	return func(c *Channel) {
		if cfg == nil || cfg.PerMinute <= 0 {
			return
		}
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.PerMinute/60), burst)
	}
}

// WithClock overrides the timestamp source (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(c *Channel) { c.now = now }
}

// New creates a channel over already constructed destinations.
func New(name types.ChannelName, dests []Destination, opts ...Option) *Channel {
	c := &Channel{
		name:   name,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With("channel", string(name))
	for _, d := range dests {
		c.targets = append(c.targets, target{dest: d, breaker: c.newBreaker(d.Name())})
	}
	return c
}

// NewChannel parses every destination URL and creates the channel.
func NewChannel(ctx context.Context, name types.ChannelName, urls []string, clients *Clients, opts ...Option) (*Channel, error) {
	if clients == nil {
		clients = &Clients{}
	}
	dests := make([]Destination, 0, len(urls))
	for _, raw := range urls {
		d, err := clients.Parse(ctx, raw)
		if err != nil {
			closeAll(dests)
			return nil, fmt.Errorf("%s channel: %w", name, err)
		}
		dests = append(dests, d)
	}
	return New(name, dests, opts...), nil
}

func (c *Channel) newBreaker(dest string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(c.name) + "/" + dest,
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("destination breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Name returns the channel name.
func (c *Channel) Name() types.ChannelName { return c.name }

// Notify delivers title and body to every destination. It reports true only
// when every destination accepted the message.
func (c *Channel) Notify(ctx context.Context, title, body string) bool {
	if c.limiter != nil && !c.limiter.Allow() {
		c.logger.Warn("notification rate limited", "title", title)
		return false
	}

	n := types.Notification{
		ID:        ulid.Make().String(),
		Channel:   c.name,
		Title:     title,
		Body:      body,
		Timestamp: c.now(),
	}

	ok := true
	for _, t := range c.targets {
		_, err := t.breaker.Execute(func() (interface{}, error) {
			return nil, t.dest.Send(ctx, n)
		})
		if err != nil {
			ok = false
			c.logger.Warn("notification delivery failed", "destination", t.dest.Name(), "id", n.ID, "error", err)
			continue
		}
		c.logger.Debug("notification delivered", "destination", t.dest.Name(), "id", n.ID)
	}
	return ok
}

// Close releases destinations holding connections.
func (c *Channel) Close() error {
	dests := make([]Destination, 0, len(c.targets))
	for _, t := range c.targets {
		dests = append(dests, t.dest)
	}
	return closeAll(dests)
}

func closeAll(dests []Destination) error {
	var errs []error
	for _, d := range dests {
		if cl, ok := d.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s: %w", d.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
