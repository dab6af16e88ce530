// Package eventlog writes a human-readable line block for every dispatched event.
package eventlog

import (
	"log/slog"

	"github.com/dwsmith1983/chia-monitor/internal/format"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

var _ types.EventVisitor = (*Logger)(nil)

// Logger renders events to a slog.Logger at info level.
type Logger struct {
	logger *slog.Logger
}

// New creates an event Logger.
func New(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (l *Logger) block(kind types.EventKind, lines ...string) {
	l.logger.Info(format.Separator(), "event", string(kind))
	for _, line := range lines {
		l.logger.Info(line)
	}
}

func (l *Logger) VisitHarvesterPlots(e types.HarvesterPlots) error {
	l.block(e.Kind(),
		format.OGPlotCount(e.OGPlotCount),
		format.PortablePlotCount(e.PortablePlotCount),
		format.OGPlotSize(e.OGPlotSize),
		format.PortablePlotSize(e.PortablePlotSize),
		format.Hostname(e.Host),
	)
	return nil
}

func (l *Logger) VisitConnections(e types.Connections) error {
	l.block(e.Kind(),
		format.PeerCount(e.FullNodeCount, ""),
		format.PeerCount(e.FarmerCount, "Farmer"),
		format.PeerCount(e.HarvesterCount, "Harvester"),
	)
	return nil
}

func (l *Logger) VisitBlockchainState(e types.BlockchainState) error {
	l.block(e.Kind(),
		format.Space(e.Space),
		format.Difficulty(e.Difficulty),
		format.PeakHeight(e.PeakHeight),
		format.Synced(e.Synced),
		format.MempoolSize(e.MempoolSize),
	)
	return nil
}

func (l *Logger) VisitWalletBalance(e types.WalletBalance) error {
	l.block(e.Kind(),
		format.Balance(format.ParseInt(e.Confirmed)),
		format.Farmed(format.ParseInt(e.Farmed)),
	)
	return nil
}

func (l *Logger) VisitSignagePoint(e types.SignagePoint) error {
	l.block(e.Kind(),
		format.SignagePointIndex(e.SignagePointIndex),
		format.ChallengeHash(e.ChallengeHash),
		format.SignagePoint(e.SignagePoint),
	)
	return nil
}

func (l *Logger) VisitFarmingInfo(e types.FarmingInfo) error {
	lines := []string{
		format.ChallengeHash(e.ChallengeHash),
		format.SignagePoint(e.SignagePoint),
		format.PlotCount(e.TotalPlots),
		format.PassedFilter(e.PassedFilter),
		format.Proofs(e.Proofs),
	}
	if e.LookupTime > 0 {
		lines = append(lines, format.LookupTime(e.LookupTime))
	}
	l.block(e.Kind(), lines...)
	return nil
}

func (l *Logger) VisitPoolState(e types.PoolState) error {
	l.block(e.Kind(),
		format.CurrentPoints(e.CurrentPoints),
		format.PoolDifficulty(e.CurrentDifficulty),
		format.PointsFound(e.PointsFoundSinceStart),
		format.PointsAcknowledged(e.PointsAcknowledgedSinceStart),
		format.PointsFound24h(e.PointsFound24h),
		format.PointsAcknowledged24h(e.PointsAcknowledged24h),
		format.PoolErrors24h(e.PoolErrors24h),
	)
	return nil
}

func (l *Logger) VisitPrice(e types.Price) error {
	l.block(e.Kind(),
		format.Price(e.USDCents, 100, "USD"),
		format.Price(e.EURCents, 100, "EUR"),
		format.Price(e.BTCSatoshi, 1e8, "BTC"),
		format.Price(e.ETHGwei, 1e9, "ETH"),
	)
	return nil
}
