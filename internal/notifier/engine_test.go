package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/chia-monitor/internal/testutil"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

var _ Store = (*testutil.MockStore)(nil)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

type harness struct {
	store  *testutil.MockStore
	status *testutil.RecordingNotifier
	alert  *testutil.RecordingNotifier
	clock  *fakeClock
	engine *Engine
}

func newHarness(t *testing.T, build func(Store) []Check, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store:  testutil.NewMockStore(),
		status: testutil.NewRecordingNotifier(),
		alert:  testutil.NewRecordingNotifier(),
		clock:  newClock(),
	}
	opts = append([]Option{WithClock(h.clock.Now)}, opts...)
	eng, err := New(build(h.store), map[types.ChannelName]Notifier{
		types.ChannelStatus: h.status,
		types.ChannelAlert:  h.alert,
	}, opts...)
	require.NoError(t, err)
	h.engine = eng
	return h
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	require.NoError(t, h.engine.Tick(context.Background()))
	h.clock.Advance(time.Second)
}

func TestLostSync_AlertsOnceAndRecoversOnce(t *testing.T) {
	h := newHarness(t, func(s Store) []Check { return []Check{NewLostSync(s)} })

	h.tick(t) // no data yet
	assert.Empty(t, h.alert.Sent())

	h.store.SetSynced(true)
	h.tick(t)
	assert.Empty(t, h.alert.Sent())

	h.store.SetSynced(false)
	h.tick(t)
	h.tick(t)
	h.tick(t)
	require.Len(t, h.alert.Sent(), 1)
	assert.Equal(t, "** 🚨 Farmer Lost Sync! 🚨 **", h.alert.Sent()[0].Title)
	assert.True(t, h.engine.State(CheckLostSync).Firing)

	h.store.SetSynced(true)
	h.tick(t)
	h.tick(t)
	require.Len(t, h.alert.Sent(), 2)
	assert.Equal(t, "** ✅ Farmer Synced! ✅ **", h.alert.Sent()[1].Title)
	assert.False(t, h.engine.State(CheckLostSync).Firing)
	assert.Empty(t, h.status.Sent())
}

func TestLostSync_SendFailureCausesNoTransition(t *testing.T) {
	h := newHarness(t, func(s Store) []Check { return []Check{NewLostSync(s)} })
	h.store.SetSynced(false)
	h.alert.SetFailing(true)

	h.tick(t)
	h.tick(t)
	assert.Equal(t, 2, h.alert.Attempts(), "undelivered alert is retried every tick")
	assert.False(t, h.engine.State(CheckLostSync).Firing)

	h.alert.SetFailing(false)
	h.tick(t)
	require.Len(t, h.alert.Sent(), 1)
	assert.True(t, h.engine.State(CheckLostSync).Firing)

	// A failed recovery keeps the check firing until it is delivered.
	h.store.SetSynced(true)
	h.alert.SetFailing(true)
	h.tick(t)
	assert.True(t, h.engine.State(CheckLostSync).Firing)
	h.alert.SetFailing(false)
	h.tick(t)
	assert.False(t, h.engine.State(CheckLostSync).Firing)
	assert.Len(t, h.alert.Sent(), 2)
}

func TestLostPlots_HighWaterMark(t *testing.T) {
	h := newHarness(t, func(s Store) []Check { return []Check{NewLostPlots(s, 0)} })

	h.store.SetPlotCount(100)
	h.tick(t)
	assert.Empty(t, h.alert.Sent())

	h.store.SetPlotCount(90)
	h.tick(t)
	require.Len(t, h.alert.Sent(), 1)
	assert.Equal(t, "** 🚨 Farmer Lost Plots! 🚨 **", h.alert.Sent()[0].Title)
	assert.Contains(t, h.alert.Sent()[0].Body, "Expected: 100, Found: 90")

	h.tick(t)
	assert.Len(t, h.alert.Sent(), 1, "a repeated low reading does not alert again")
	require.NotNil(t, h.engine.State(CheckLostPlots).HighWater)
	assert.Equal(t, int64(100), *h.engine.State(CheckLostPlots).HighWater)

	h.store.SetPlotCount(100)
	h.tick(t)
	require.Len(t, h.alert.Sent(), 2)
	assert.Equal(t, "** ✅ Farmer Plots recovered! ✅ **", h.alert.Sent()[1].Title)
	st := h.engine.State(CheckLostPlots)
	assert.False(t, st.Firing)
	assert.Equal(t, int64(100), *st.HighWater)
}

func TestLostPlots_Threshold(t *testing.T) {
	h := newHarness(t, func(s Store) []Check { return []Check{NewLostPlots(s, 5)} })

	h.store.SetPlotCount(100)
	h.tick(t)
	h.store.SetPlotCount(95)
	h.tick(t)
	assert.Empty(t, h.alert.Sent(), "a drop within the threshold is tolerated")

	h.store.SetPlotCount(89)
	h.tick(t)
	assert.Len(t, h.alert.Sent(), 1)
}

func TestLostPlots_MissingCountKeepsMark(t *testing.T) {
	h := newHarness(t, func(s Store) []Check { return []Check{NewLostPlots(s, 0)} })

	h.store.SetPlotCount(100)
	h.tick(t)
	h.store.ClearPlotCount()
	h.tick(t)
	h.store.SetPlotCount(80)
	h.tick(t)
	assert.Len(t, h.alert.Sent(), 1)
}

func TestFoundProof_EdgeTriggered(t *testing.T) {
	h := newHarness(t, func(s Store) []Check { return []Check{NewFoundProof(s)} })

	h.store.SetProofs(5)
	h.tick(t)
	h.tick(t)
	assert.Empty(t, h.status.Sent())

	h.store.SetProofs(8)
	h.tick(t)
	require.Len(t, h.status.Sent(), 1)
	assert.Equal(t, "** 🤑 Proof found! 🤑 **", h.status.Sent()[0].Title)

	h.tick(t)
	assert.Len(t, h.status.Sent(), 1)
	assert.False(t, h.engine.State(CheckFoundProof).Firing, "one-shot checks never latch")
}

func TestFoundProof_RetriesUndeliveredIncrease(t *testing.T) {
	h := newHarness(t, func(s Store) []Check { return []Check{NewFoundProof(s)} })

	h.store.SetProofs(5)
	h.tick(t)
	h.store.SetProofs(8)
	h.status.SetFailing(true)
	h.tick(t)
	assert.Equal(t, "5", h.engine.State(CheckFoundProof).Baseline.String())

	h.status.SetFailing(false)
	h.tick(t)
	assert.Len(t, h.status.Sent(), 1)
	assert.Equal(t, "8", h.engine.State(CheckFoundProof).Baseline.String())
}

func TestPayment(t *testing.T) {
	h := newHarness(t, func(s Store) []Check { return []Check{NewPayment(s)} })

	h.store.SetBalance("1000000000000")
	h.tick(t)
	h.store.SetBalance("1250000000000")
	h.tick(t)
	require.Len(t, h.status.Sent(), 1)
	msg := h.status.Sent()[0]
	assert.Equal(t, "** 🤑 Payment received! 🤑 **", msg.Title)
	assert.Equal(t, "Your wallet received a new payment\n🌱 +0.25000 XCH", msg.Body)

	// A spend lowers the baseline without notifying.
	h.store.SetBalance("250000000000")
	h.tick(t)
	h.store.SetBalance("500000000000")
	h.tick(t)
	require.Len(t, h.status.Sent(), 2)
	assert.Contains(t, h.status.Sent()[1].Body, "+0.25000 XCH")
}

func TestEngine_StoreErrorIsFatal(t *testing.T) {
	h := newHarness(t, func(s Store) []Check { return []Check{NewLostSync(s)} })
	boom := errors.New("database is locked")
	h.store.FailReads(boom)

	err := h.engine.Tick(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), CheckLostSync)
}

func TestEngine_RunStopsOnStoreError(t *testing.T) {
	h := newHarness(t, func(s Store) []Check { return []Check{NewLostSync(s)} }, WithInterval(10*time.Millisecond))
	boom := errors.New("no such table")
	h.store.FailReads(boom)
	assert.ErrorIs(t, h.engine.Run(context.Background()), boom)
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t, func(s Store) []Check { return []Check{NewLostSync(s)} }, WithInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestEngine_MissingChannel(t *testing.T) {
	_, err := New([]Check{NewLostSync(testutil.NewMockStore())}, map[types.ChannelName]Notifier{
		types.ChannelStatus: testutil.NewRecordingNotifier(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no alert channel")
}

func TestEngine_RestoresPersistedState(t *testing.T) {
	states := NewMemoryStateStore()
	build := func(s Store) []Check { return []Check{NewLostSync(s)} }

	first := newHarness(t, build, WithStateStore(states))
	first.store.SetSynced(false)
	first.tick(t)
	require.Len(t, first.alert.Sent(), 1)

	saved, err := states.Load(context.Background(), CheckLostSync)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.True(t, saved.Firing)

	second := newHarness(t, build, WithStateStore(states))
	second.store.SetSynced(false)
	second.engine.restore(context.Background())
	second.tick(t)
	assert.Empty(t, second.alert.Sent(), "restored firing state suppresses a duplicate alert")
	assert.True(t, second.engine.State(CheckLostSync).Firing)
}

func TestEngine_Checks(t *testing.T) {
	h := newHarness(t, func(s Store) []Check {
		return []Check{NewLostSync(s), NewLostPlots(s, 0), NewSummary(s, time.Hour)}
	})
	assert.Equal(t, []string{CheckLostSync, CheckLostPlots, CheckSummary}, h.engine.Checks())
	assert.Nil(t, h.engine.State("unknown"))
}
