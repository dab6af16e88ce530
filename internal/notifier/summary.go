package notifier

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/dwsmith1983/chia-monitor/internal/format"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// Summary timing.
const (
	// SecondsPerBlock is the mean block time: 4608 blocks per day.
	SecondsPerBlock = 24 * 3600 / 4608.0

	summaryStartupDelay = 30 * time.Second
	summaryPlotWindow   = 30 * time.Second
	plotDeltaPeriod     = 24 * time.Hour
	minRateWindow       = time.Second
)

// Summary periodically sends a snapshot of the farm.
type Summary struct {
	store    Store
	interval time.Duration
}

// NewSummary creates the summary check sending every interval.
func NewSummary(store Store, interval time.Duration) *Summary {
	return &Summary{store: store, interval: interval}
}

func (c *Summary) Name() string               { return CheckSummary }
func (c *Summary) Channel() types.ChannelName { return types.ChannelStatus }
func (c *Summary) Latching() bool             { return false }

func (c *Summary) Condition(_ context.Context, now time.Time, st *State) (bool, error) {
	if st.NextEligible.IsZero() {
		st.NextEligible = now.Add(summaryStartupDelay)
	}
	return now.After(st.NextEligible), nil
}

func (c *Summary) Alert(ctx context.Context, now time.Time, _ *State) (*Message, error) {
	snap, err := c.snapshot(ctx, now)
	if err != nil || snap == nil {
		return nil, err
	}
	minutes, ok := ExpectedMinutesToWin(snap.plots.Size(), snap.state.Space)
	if !ok {
		return nil, nil
	}

	confirmed := format.ParseInt(snap.balance.Confirmed)
	lines := []string{
		format.OGPlotCount(snap.plots.OGCount),
		format.PortablePlotCount(snap.plots.PortableCount),
		format.OGPlotSize(snap.plots.OGSize),
		format.PortablePlotSize(snap.plots.PortableSize),
		format.PlotDelta24h(snap.delta.Count(), snap.delta.Size()),
		format.SignagePointsPerMinute(snap.signagePointsPerMinute),
		format.PassedFiltersPerMinute(snap.passedFiltersPerMinute),
		format.Proofs(snap.proofs),
		format.Balance(confirmed),
		format.ExpectedTimeToWin(minutes),
		format.Space(snap.state.Space),
		format.PeakHeight(snap.state.PeakHeight),
		format.PeerCount(snap.connections.FullNodeCount, "Full Node Peer"),
		format.Synced(snap.state.Synced),
	}
	return &Message{
		Title: "** 👨‍🌾 Farm Status 👩‍🌾 **",
		Body:  strings.Join(lines, "\n"),
	}, nil
}

func (c *Summary) Recovery(*State) *Message { return nil }

func (c *Summary) Delivered(now time.Time, st *State) { st.NextEligible = now.Add(c.interval) }

type snapshot struct {
	state                  *types.BlockchainState
	balance                *types.WalletBalance
	connections            *types.Connections
	plots                  *types.PlotStats
	delta                  types.PlotStats
	proofs                 int64
	signagePointsPerMinute float64
	passedFiltersPerMinute float64
}

// snapshot gathers every summary input. It returns nil when any input is
// not yet available.
func (c *Summary) snapshot(ctx context.Context, now time.Time) (*snapshot, error) {
	var (
		s   snapshot
		err error
	)
	if s.state, err = c.store.LatestBlockchainState(ctx); err != nil || s.state == nil {
		return nil, err
	}
	if s.balance, err = c.store.LatestWalletBalance(ctx); err != nil || s.balance == nil {
		return nil, err
	}
	if s.connections, err = c.store.LatestConnections(ctx); err != nil || s.connections == nil {
		return nil, err
	}
	proofs, err := c.store.ProofsFound(ctx)
	if err != nil || proofs == nil {
		return nil, err
	}
	s.proofs = *proofs
	if s.plots, err = c.store.PlotStats(ctx, now.Add(-summaryPlotWindow)); err != nil || s.plots == nil {
		return nil, err
	}
	if s.delta, err = c.store.PlotDelta(ctx, now.Add(-plotDeltaPeriod), now.Add(-summaryPlotWindow)); err != nil {
		return nil, err
	}

	start, err := c.store.FarmingStart(ctx)
	if err != nil || start == nil {
		return nil, err
	}
	window := min(now.Sub(*start), c.interval)
	if window < minRateWindow {
		return nil, nil
	}
	since := now.Add(-window)
	signagePoints, err := c.store.SignagePointCount(ctx, since)
	if err != nil {
		return nil, err
	}
	passed, err := c.store.PassedFilterSum(ctx, since)
	if err != nil || passed == nil {
		return nil, err
	}
	s.signagePointsPerMinute = float64(signagePoints) / window.Minutes()
	s.passedFiltersPerMinute = float64(*passed) / window.Minutes()
	return &s, nil
}

// ExpectedMinutesToWin estimates the minutes until the farm wins a block:
// (SecondsPerBlock/60) / (ownSpace/netspace). It reports false when netspace
// is zero or unparseable, and -1 when the farm has no plotted space.
func ExpectedMinutesToWin(ownBytes int64, netspace string) (int64, bool) {
	space, ok := new(big.Float).SetString(netspace)
	if !ok || space.Sign() <= 0 {
		return 0, false
	}
	if ownBytes <= 0 {
		return -1, true
	}
	minutes := new(big.Float).Quo(space, new(big.Float).SetInt64(ownBytes))
	minutes.Mul(minutes, big.NewFloat(SecondsPerBlock/60))
	v, _ := minutes.Int64()
	return v, true
}
