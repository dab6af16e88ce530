// Package notifier evaluates farm health checks against the history store on
// a fixed tick and sends alerts, recoveries and periodic summaries.
package notifier

import (
	"context"
	"math/big"
	"time"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// Store is the read surface of the history store used by the checks.
type Store interface {
	SyncStatus(ctx context.Context) (*bool, error)
	FullyReportedPlotCount(ctx context.Context, since time.Time) (*int64, error)
	ProofsFound(ctx context.Context) (*int64, error)
	CurrentBalance(ctx context.Context) (*big.Int, error)
	LatestBlockchainState(ctx context.Context) (*types.BlockchainState, error)
	LatestWalletBalance(ctx context.Context) (*types.WalletBalance, error)
	LatestConnections(ctx context.Context) (*types.Connections, error)
	PlotStats(ctx context.Context, since time.Time) (*types.PlotStats, error)
	PlotDelta(ctx context.Context, periodStart, recentSince time.Time) (types.PlotStats, error)
	FarmingStart(ctx context.Context) (*time.Time, error)
	SignagePointCount(ctx context.Context, since time.Time) (int64, error)
	PassedFilterSum(ctx context.Context, since time.Time) (*int64, error)
}

// Notifier delivers a message and reports whether every destination accepted it.
type Notifier interface {
	Notify(ctx context.Context, title, body string) bool
}

// Message is a notification ready to send.
type Message struct {
	Title string
	Body  string
}

// State is the memory of one check between ticks. Only the engine mutates it,
// and only while evaluating the owning check.
type State struct {
	Firing       bool      `json:"firing"`
	Baseline     *big.Int  `json:"baseline,omitempty"`
	Observed     *big.Int  `json:"observed,omitempty"`
	HighWater    *int64    `json:"high_water,omitempty"`
	NextEligible time.Time `json:"next_eligible,omitzero"`
	LastSent     time.Time `json:"last_sent,omitzero"`
}

// Check is one notification rule.
//
// Condition reports whether the check should notify; it may update check
// memory such as baselines. Alert builds the message to send when the
// condition holds, returning nil to skip silently when inputs are
// unresolved. Recovery builds the message that clears a firing latching
// check. Delivered commits state after a successful send.
type Check interface {
	Name() string
	Channel() types.ChannelName
	Latching() bool
	Condition(ctx context.Context, now time.Time, st *State) (bool, error)
	Alert(ctx context.Context, now time.Time, st *State) (*Message, error)
	Recovery(st *State) *Message
	Delivered(now time.Time, st *State)
}

// DefaultChecks builds the configured checks in evaluation order.
func DefaultChecks(cfg types.NotifierConfig, store Store) []Check {
	checks := []Check{
		NewLostSync(store),
		NewLostPlots(store, cfg.LostPlotsAlertThreshold),
		NewSummary(store, time.Duration(cfg.StatusIntervalMinutes)*time.Minute),
	}
	if !cfg.DisableProofFoundAlert {
		checks = append(checks, NewFoundProof(store))
	}
	if !cfg.DisablePaymentAlert {
		checks = append(checks, NewPayment(store))
	}
	return checks
}
