package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/chia-monitor/internal/bus"
	"github.com/dwsmith1983/chia-monitor/internal/testutil"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// scriptedPoller returns its batches in order and then empty batches.
type scriptedPoller struct {
	mu      sync.Mutex
	batches []pollResult
	polls   int
	closed  bool
}

type pollResult struct {
	events []types.Event
	err    error
}

func (p *scriptedPoller) Poll(context.Context) ([]types.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls++
	if len(p.batches) == 0 {
		return nil, nil
	}
	r := p.batches[0]
	p.batches = p.batches[1:]
	return r.events, r.err
}

func (p *scriptedPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *scriptedPoller) pollCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}

func sp(index int64) types.Event {
	return types.SignagePoint{SignagePointIndex: index}
}

func drain(t *testing.T, b *bus.Bus, n int) []types.Event {
	t.Helper()
	out := make([]types.Event, 0, n)
	for len(out) < n {
		select {
		case ev := <-b.Events():
			out = append(out, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of %d events", len(out), n)
		}
	}
	return out
}

func TestPolling_PublishesAndRetriesAfterError(t *testing.T) {
	p := &scriptedPoller{batches: []pollResult{
		{events: []types.Event{sp(1), sp(2)}},
		{err: errors.New("farmer unreachable")},
		{events: []types.Event{sp(3)}, err: errors.New("wallet unreachable")},
	}}
	b := bus.New(16)
	c := NewPolling("test", p, 5*time.Millisecond, nil)
	assert.Equal(t, "test", c.Name())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, b) }()

	got := drain(t, b, 3)
	assert.Equal(t, []types.Event{sp(1), sp(2), sp(3)}, got)
	testutil.WaitFor(t, time.Second, func() bool { return p.pollCount() >= 4 }, "polling continues after errors")

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, c.Close())
	assert.True(t, p.closed)
}

func TestPolling_StopsWhenPublishBlockedAndCancelled(t *testing.T) {
	p := &scriptedPoller{batches: []pollResult{{events: []types.Event{sp(1), sp(2), sp(3)}}}}
	b := bus.New(1)
	c := NewPolling("test", p, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, b) }()

	testutil.WaitFor(t, time.Second, func() bool { return b.Len() == 1 }, "bus filled")
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop while blocked on a full bus")
	}
}
