package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/chia-monitor/internal/bus"
	"github.com/dwsmith1983/chia-monitor/internal/eventlog"
	"github.com/dwsmith1983/chia-monitor/internal/metrics"
	"github.com/dwsmith1983/chia-monitor/internal/testutil"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// trace records every step of the pipeline in the order it happened.
type trace struct {
	mu    sync.Mutex
	steps []string
}

func (tr *trace) add(step string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.steps = append(tr.steps, step)
}

func (tr *trace) all() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.steps...)
}

// tracingSink logs the signage point index of each event it sees.
type tracingSink struct {
	name string
	tr   *trace
}

func (s tracingSink) VisitHarvesterPlots(types.HarvesterPlots) error   { return nil }
func (s tracingSink) VisitConnections(types.Connections) error         { return nil }
func (s tracingSink) VisitBlockchainState(types.BlockchainState) error { return nil }
func (s tracingSink) VisitWalletBalance(types.WalletBalance) error     { return nil }
func (s tracingSink) VisitFarmingInfo(types.FarmingInfo) error         { return nil }
func (s tracingSink) VisitPoolState(types.PoolState) error             { return nil }
func (s tracingSink) VisitPrice(types.Price) error                     { return nil }

func (s tracingSink) VisitSignagePoint(e types.SignagePoint) error {
	s.tr.add(fmt.Sprintf("%s:%d", s.name, e.SignagePointIndex))
	return nil
}

type tracingStore struct {
	tr  *trace
	err error
}

func (s *tracingStore) Record(_ context.Context, ev types.Event) error {
	if s.err != nil {
		return s.err
	}
	s.tr.add(fmt.Sprintf("store:%d", ev.(types.SignagePoint).SignagePointIndex))
	return nil
}

func TestRun_FIFOAndSinkOrder(t *testing.T) {
	tr := &trace{}
	b := bus.New(8)
	d, err := New(b.Events(), &tracingStore{tr: tr}, nil,
		tracingSink{name: "metrics", tr: tr},
		tracingSink{name: "log", tr: tr},
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, b.Publish(ctx, types.SignagePoint{SignagePointIndex: i}))
	}

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	testutil.WaitFor(t, time.Second, func() bool { return len(tr.all()) == 9 }, "three events fully dispatched")
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{
		"metrics:1", "log:1", "store:1",
		"metrics:2", "log:2", "store:2",
		"metrics:3", "log:3", "store:3",
	}, tr.all())
}

func TestRun_StoreErrorIsFatal(t *testing.T) {
	tr := &trace{}
	storeErr := errors.New("history store: database is locked")
	b := bus.New(4)
	d, err := New(b.Events(), &tracingStore{tr: tr, err: storeErr}, nil, tracingSink{name: "metrics", tr: tr})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, types.SignagePoint{SignagePointIndex: 1}))
	require.NoError(t, b.Publish(ctx, types.SignagePoint{SignagePointIndex: 2}))

	err = d.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.Equal(t, []string{"metrics:1"}, tr.all(), "nothing after the failed event is dispatched")
	assert.Equal(t, 1, b.Len())
}

func TestRun_ClosedChannelStops(t *testing.T) {
	ch := make(chan types.Event)
	close(ch)
	d, err := New(ch, testutil.NewMockStore(), nil)
	require.NoError(t, err)
	assert.NoError(t, d.Run(context.Background()))
}

func TestDispatch_RealSinks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := metrics.New()
	store := testutil.NewMockStore()
	d, err := New(nil, store, logger, sink, eventlog.New(logger))
	require.NoError(t, err)

	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []types.Event{
		types.FarmingInfo{Timestamp: ts, SignagePoint: "0xsp", PassedFilter: 3, Proofs: 2, TotalPlots: 40},
		types.FarmingInfo{Timestamp: ts, SignagePoint: "0xsp", PassedFilter: 1, Proofs: 1, TotalPlots: 60},
		types.Connections{Timestamp: ts, FullNodeCount: 8, HarvesterCount: 2},
	}
	for _, ev := range events {
		require.NoError(t, d.Dispatch(ctx, ev))
	}

	assert.Equal(t, events, store.Events())
	expected := `
# HELP chia_proofs_found Proofs found
# TYPE chia_proofs_found counter
chia_proofs_found 3
`
	assert.NoError(t, promtest.GatherAndCompare(sink.Registry(), strings.NewReader(expected), "chia_proofs_found"))
	assert.Contains(t, buf.String(), "connections")
}
