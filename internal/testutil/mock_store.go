package testutil

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// MockStore is an in-memory history store for testing. It records events
// and answers reads from values set by the test.
type MockStore struct {
	mu        sync.Mutex
	events    []types.Event
	recordErr error
	readErr   error

	synced        *bool
	plotCount     *int64
	proofs        *int64
	balance       *big.Int
	state         *types.BlockchainState
	wallet        *types.WalletBalance
	connections   *types.Connections
	plots         *types.PlotStats
	delta         types.PlotStats
	farmingStart  *time.Time
	signagePoints int64
	passedFilter  *int64
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore { return &MockStore{} }

// Record appends ev, or fails with the configured record error.
func (m *MockStore) Record(_ context.Context, ev types.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of every recorded event in order.
func (m *MockStore) Events() []types.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Event, len(m.events))
	copy(out, m.events)
	return out
}

// Ping reports the configured read error.
func (m *MockStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readErr
}

// FailRecord makes every subsequent Record return err.
func (m *MockStore) FailRecord(err error) { m.with(func() { m.recordErr = err }) }

// FailReads makes every subsequent read return err.
func (m *MockStore) FailReads(err error) { m.with(func() { m.readErr = err }) }

func (m *MockStore) SetSynced(v bool) {
	m.with(func() { m.synced = &v })
}

func (m *MockStore) SetPlotCount(n int64) {
	m.with(func() { m.plotCount = &n })
}

func (m *MockStore) ClearPlotCount() {
	m.with(func() { m.plotCount = nil })
}

func (m *MockStore) SetProofs(n int64) {
	m.with(func() { m.proofs = &n })
}

// SetBalance sets the confirmed balance as a decimal mojo string.
func (m *MockStore) SetBalance(mojos string) {
	m.with(func() {
		m.balance, _ = new(big.Int).SetString(mojos, 10)
		m.wallet = &types.WalletBalance{Confirmed: mojos, Farmed: "0"}
	})
}

func (m *MockStore) SetBlockchainState(s types.BlockchainState) {
	m.with(func() {
		m.state = &s
		synced := s.Synced
		m.synced = &synced
	})
}

func (m *MockStore) SetConnections(c types.Connections) {
	m.with(func() { m.connections = &c })
}

func (m *MockStore) SetPlotStats(p types.PlotStats) {
	m.with(func() { m.plots = &p })
}

func (m *MockStore) SetPlotDelta(p types.PlotStats) {
	m.with(func() { m.delta = p })
}

func (m *MockStore) SetFarmingStart(t time.Time) {
	m.with(func() { m.farmingStart = &t })
}

func (m *MockStore) SetRates(signagePoints, passed int64) {
	m.with(func() {
		m.signagePoints = signagePoints
		m.passedFilter = &passed
	})
}

func (m *MockStore) with(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

func (m *MockStore) SyncStatus(context.Context) (*bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.synced, m.readErr
}

func (m *MockStore) FullyReportedPlotCount(context.Context, time.Time) (*int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plotCount, m.readErr
}

func (m *MockStore) ProofsFound(context.Context) (*int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.proofs, m.readErr
}

func (m *MockStore) CurrentBalance(context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balance == nil {
		return nil, m.readErr
	}
	return new(big.Int).Set(m.balance), m.readErr
}

func (m *MockStore) LatestBlockchainState(context.Context) (*types.BlockchainState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.readErr
}

func (m *MockStore) LatestWalletBalance(context.Context) (*types.WalletBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallet, m.readErr
}

func (m *MockStore) LatestConnections(context.Context) (*types.Connections, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connections, m.readErr
}

func (m *MockStore) PlotStats(context.Context, time.Time) (*types.PlotStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plots, m.readErr
}

func (m *MockStore) PlotDelta(context.Context, time.Time, time.Time) (types.PlotStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delta, m.readErr
}

func (m *MockStore) FarmingStart(context.Context) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.farmingStart, m.readErr
}

func (m *MockStore) SignagePointCount(context.Context, time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signagePoints, m.readErr
}

func (m *MockStore) PassedFilterSum(context.Context, time.Time) (*int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passedFilter, m.readErr
}
