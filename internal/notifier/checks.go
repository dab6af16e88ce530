package notifier

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/dwsmith1983/chia-monitor/internal/format"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// Check names.
const (
	CheckLostSync   = "lost_sync"
	CheckLostPlots  = "lost_plots"
	CheckFoundProof = "found_proof"
	CheckPayment    = "payment"
	CheckSummary    = "summary"
)

// plotLookback bounds how far back a fully reported signage point may lie.
const plotLookback = 5 * time.Minute

// LostSync alerts once when the full node reports it is not synced and
// recovers once it is synced again.
type LostSync struct {
	store Store
}

// NewLostSync creates the lost-sync check.
func NewLostSync(store Store) *LostSync { return &LostSync{store: store} }

func (c *LostSync) Name() string               { return CheckLostSync }
func (c *LostSync) Channel() types.ChannelName { return types.ChannelAlert }
func (c *LostSync) Latching() bool             { return true }

func (c *LostSync) Condition(ctx context.Context, _ time.Time, _ *State) (bool, error) {
	synced, err := c.store.SyncStatus(ctx)
	if err != nil {
		return false, err
	}
	return synced != nil && !*synced, nil
}

func (c *LostSync) Alert(context.Context, time.Time, *State) (*Message, error) {
	return &Message{
		Title: "** 🚨 Farmer Lost Sync! 🚨 **",
		Body:  "It seems like your farmer lost its connection to the Chia Network",
	}, nil
}

func (c *LostSync) Recovery(*State) *Message {
	return &Message{
		Title: "** ✅ Farmer Synced! ✅ **",
		Body:  "Your farmer is successfully synced to the Chia Network again",
	}
}

func (c *LostSync) Delivered(time.Time, *State) {}

// LostPlots tracks a high-water mark of the fully reported plot count and
// alerts when the count drops more than threshold below it. The mark is not
// lowered while the check is firing.
type LostPlots struct {
	store     Store
	threshold int64
}

// NewLostPlots creates the lost-plots check. A threshold of 0 alerts on any drop.
func NewLostPlots(store Store, threshold int64) *LostPlots {
	return &LostPlots{store: store, threshold: threshold}
}

func (c *LostPlots) Name() string               { return CheckLostPlots }
func (c *LostPlots) Channel() types.ChannelName { return types.ChannelAlert }
func (c *LostPlots) Latching() bool             { return true }

func (c *LostPlots) Condition(ctx context.Context, now time.Time, st *State) (bool, error) {
	count, err := c.store.FullyReportedPlotCount(ctx, now.Add(-plotLookback))
	if err != nil {
		return false, err
	}
	st.Observed = nil
	if count != nil {
		st.Observed = big.NewInt(*count)
	}
	if count != nil && st.HighWater != nil && *count < *st.HighWater-c.threshold {
		return true, nil
	}
	if count != nil {
		mark := *count
		st.HighWater = &mark
	}
	return false, nil
}

func (c *LostPlots) Alert(_ context.Context, _ time.Time, st *State) (*Message, error) {
	if st.HighWater == nil || st.Observed == nil {
		return nil, nil
	}
	return &Message{
		Title: "** 🚨 Farmer Lost Plots! 🚨 **",
		Body: "It seems like your farmer lost some plots\n" +
			fmt.Sprintf("Expected: %d, Found: %s\n", *st.HighWater, st.Observed),
	}, nil
}

func (c *LostPlots) Recovery(*State) *Message {
	return &Message{
		Title: "** ✅ Farmer Plots recovered! ✅ **",
		Body:  "Your farmer's plot count has recovered to its previous value",
	}
}

func (c *LostPlots) Delivered(time.Time, *State) {}

// FoundProof notifies once for every increase of the cumulative proof count.
type FoundProof struct {
	store Store
}

// NewFoundProof creates the found-proof check.
func NewFoundProof(store Store) *FoundProof { return &FoundProof{store: store} }

func (c *FoundProof) Name() string               { return CheckFoundProof }
func (c *FoundProof) Channel() types.ChannelName { return types.ChannelStatus }
func (c *FoundProof) Latching() bool             { return false }

func (c *FoundProof) Condition(ctx context.Context, _ time.Time, st *State) (bool, error) {
	proofs, err := c.store.ProofsFound(ctx)
	if err != nil {
		return false, err
	}
	var observed *big.Int
	if proofs != nil {
		observed = big.NewInt(*proofs)
	}
	return increased(st, observed), nil
}

func (c *FoundProof) Alert(context.Context, time.Time, *State) (*Message, error) {
	return &Message{
		Title: "** 🤑 Proof found! 🤑 **",
		Body:  "Your farm found a new partial or full proof",
	}, nil
}

func (c *FoundProof) Recovery(*State) *Message { return nil }

func (c *FoundProof) Delivered(_ time.Time, st *State) { st.Baseline = st.Observed }

// Payment notifies once for every increase of the confirmed wallet balance.
type Payment struct {
	store Store
}

// NewPayment creates the payment check.
func NewPayment(store Store) *Payment { return &Payment{store: store} }

func (c *Payment) Name() string               { return CheckPayment }
func (c *Payment) Channel() types.ChannelName { return types.ChannelStatus }
func (c *Payment) Latching() bool             { return false }

func (c *Payment) Condition(ctx context.Context, _ time.Time, st *State) (bool, error) {
	balance, err := c.store.CurrentBalance(ctx)
	if err != nil {
		return false, err
	}
	return increased(st, balance), nil
}

func (c *Payment) Alert(_ context.Context, _ time.Time, st *State) (*Message, error) {
	if st.Baseline == nil || st.Observed == nil {
		return nil, nil
	}
	delta := new(big.Int).Sub(st.Observed, st.Baseline)
	return &Message{
		Title: "** 🤑 Payment received! 🤑 **",
		Body:  "Your wallet received a new payment\n" + format.Payment(delta),
	}, nil
}

func (c *Payment) Recovery(*State) *Message { return nil }

func (c *Payment) Delivered(_ time.Time, st *State) { st.Baseline = st.Observed }

// increased records observed and reports whether it exceeds the baseline.
// A missing baseline or a decrease resets the baseline without firing, so
// an undelivered increase is retried on the next tick.
func increased(st *State, observed *big.Int) bool {
	st.Observed = observed
	if observed == nil {
		return false
	}
	if st.Baseline == nil || observed.Cmp(st.Baseline) < 0 {
		st.Baseline = observed
		return false
	}
	return observed.Cmp(st.Baseline) > 0
}
