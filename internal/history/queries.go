package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// All read methods return a nil result, not an error, when no rows match.

func noRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

func readErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// LatestBlockchainState returns the most recent BlockchainState.
func (s *Store) LatestBlockchainState(ctx context.Context) (*types.BlockchainState, error) {
	var (
		e  types.BlockchainState
		ts int64
	)
	err := s.queryRow(ctx, `SELECT ts, space, difficulty, peak_height, synced, mempool_size
		FROM blockchain_state_events ORDER BY ts DESC, id DESC LIMIT 1`).
		Scan(&ts, &e.Space, &e.Difficulty, &e.PeakHeight, &e.Synced, &e.MempoolSize)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, readErr("latest blockchain state", err)
	}
	e.Timestamp = time.UnixMicro(ts)
	return &e, nil
}

// SyncStatus returns the synced flag of the most recent BlockchainState.
func (s *Store) SyncStatus(ctx context.Context) (*bool, error) {
	var synced bool
	err := s.queryRow(ctx, `SELECT synced FROM blockchain_state_events ORDER BY ts DESC, id DESC LIMIT 1`).Scan(&synced)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, readErr("sync status", err)
	}
	return &synced, nil
}

// LatestWalletBalance returns the most recent WalletBalance.
func (s *Store) LatestWalletBalance(ctx context.Context) (*types.WalletBalance, error) {
	var (
		e  types.WalletBalance
		ts int64
	)
	err := s.queryRow(ctx, `SELECT ts, confirmed, farmed FROM wallet_balance_events ORDER BY ts DESC, id DESC LIMIT 1`).
		Scan(&ts, &e.Confirmed, &e.Farmed)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, readErr("latest wallet balance", err)
	}
	e.Timestamp = time.UnixMicro(ts)
	return &e, nil
}

// CurrentBalance returns the latest confirmed balance in mojos.
func (s *Store) CurrentBalance(ctx context.Context) (*big.Int, error) {
	wb, err := s.LatestWalletBalance(ctx)
	if err != nil || wb == nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(wb.Confirmed, 10)
	if !ok {
		return nil, readErr("current balance", fmt.Errorf("invalid confirmed balance %q", wb.Confirmed))
	}
	return v, nil
}

// LatestConnections returns the most recent Connections.
func (s *Store) LatestConnections(ctx context.Context) (*types.Connections, error) {
	var (
		e  types.Connections
		ts int64
	)
	err := s.queryRow(ctx, `SELECT ts, full_node_count, farmer_count, wallet_count, harvester_count
		FROM connections_events ORDER BY ts DESC, id DESC LIMIT 1`).
		Scan(&ts, &e.FullNodeCount, &e.FarmerCount, &e.WalletCount, &e.HarvesterCount)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, readErr("latest connections", err)
	}
	e.Timestamp = time.UnixMicro(ts)
	return &e, nil
}

// HarvesterCount returns the harvester count of the most recent Connections.
func (s *Store) HarvesterCount(ctx context.Context) (*int64, error) {
	var n int64
	err := s.queryRow(ctx, `SELECT harvester_count FROM connections_events ORDER BY ts DESC, id DESC LIMIT 1`).Scan(&n)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, readErr("harvester count", err)
	}
	return &n, nil
}

// ProofsFound returns the cumulative number of proofs across all FarmingInfo.
func (s *Store) ProofsFound(ctx context.Context) (*int64, error) {
	var v sql.NullInt64
	if err := s.queryRow(ctx, `SELECT CAST(SUM(proofs) AS BIGINT) FROM farming_info_events`).Scan(&v); err != nil {
		return nil, readErr("proofs found", err)
	}
	return nullInt(v), nil
}

// FarmingStart returns the timestamp of the first FarmingInfo.
func (s *Store) FarmingStart(ctx context.Context) (*time.Time, error) {
	var v sql.NullInt64
	if err := s.queryRow(ctx, `SELECT MIN(ts) FROM farming_info_events`).Scan(&v); err != nil {
		return nil, readErr("farming start", err)
	}
	if !v.Valid {
		return nil, nil
	}
	t := time.UnixMicro(v.Int64)
	return &t, nil
}

// SignagePointCount counts signage points received at or after since.
func (s *Store) SignagePointCount(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM signage_point_events WHERE ts >= ?`, micros(since)).Scan(&n); err != nil {
		return 0, readErr("signage point count", err)
	}
	return n, nil
}

// PassedFilterSum sums passed-filter counts of FarmingInfo at or after since.
func (s *Store) PassedFilterSum(ctx context.Context, since time.Time) (*int64, error) {
	var v sql.NullInt64
	err := s.queryRow(ctx, `SELECT CAST(SUM(passed_filter) AS BIGINT) FROM farming_info_events WHERE ts >= ?`,
		micros(since)).Scan(&v)
	if err != nil {
		return nil, readErr("passed filter sum", err)
	}
	return nullInt(v), nil
}

// PlotStats takes each harvester's maximum counts and sizes reported after
// since and sums them across harvesters.
func (s *Store) PlotStats(ctx context.Context, since time.Time) (*types.PlotStats, error) {
	return s.scanPlotStats(ctx, "plot stats", `SELECT
		CAST(SUM(og_count) AS BIGINT), CAST(SUM(og_size) AS BIGINT),
		CAST(SUM(portable_count) AS BIGINT), CAST(SUM(portable_size) AS BIGINT)
		FROM (
			SELECT MAX(og_plot_count) AS og_count, MAX(og_plot_size) AS og_size,
			       MAX(portable_plot_count) AS portable_count, MAX(portable_plot_size) AS portable_size
			FROM harvester_plots_events WHERE ts > ? GROUP BY host
		) per_host`, micros(since))
}

// EarliestPlotStats sums each harvester's first report at or after since.
func (s *Store) EarliestPlotStats(ctx context.Context, since time.Time) (*types.PlotStats, error) {
	return s.scanPlotStats(ctx, "earliest plot stats", `SELECT
		CAST(SUM(h.og_plot_count) AS BIGINT), CAST(SUM(h.og_plot_size) AS BIGINT),
		CAST(SUM(h.portable_plot_count) AS BIGINT), CAST(SUM(h.portable_plot_size) AS BIGINT)
		FROM harvester_plots_events h
		JOIN (
			SELECT MIN(id) AS id FROM harvester_plots_events WHERE ts >= ? GROUP BY host
		) first_report ON h.id = first_report.id`, micros(since))
}

func (s *Store) scanPlotStats(ctx context.Context, op, query string, args ...any) (*types.PlotStats, error) {
	var ogCount, ogSize, portableCount, portableSize sql.NullInt64
	if err := s.queryRow(ctx, query, args...).Scan(&ogCount, &ogSize, &portableCount, &portableSize); err != nil {
		return nil, readErr(op, err)
	}
	if !ogCount.Valid {
		return nil, nil
	}
	return &types.PlotStats{
		OGCount:       ogCount.Int64,
		OGSize:        ogSize.Int64,
		PortableCount: portableCount.Int64,
		PortableSize:  portableSize.Int64,
	}, nil
}

// PlotDelta compares the current plot stats (reported after recentSince)
// with each harvester's first report at or after periodStart. Missing data
// on either side yields a zero delta.
func (s *Store) PlotDelta(ctx context.Context, periodStart, recentSince time.Time) (types.PlotStats, error) {
	initial, err := s.EarliestPlotStats(ctx, periodStart)
	if err != nil || initial == nil {
		return types.PlotStats{}, err
	}
	current, err := s.PlotStats(ctx, recentSince)
	if err != nil || current == nil {
		return types.PlotStats{}, err
	}
	return current.Sub(*initial), nil
}

// FullyReportedPlotCount returns the summed total plots of the most recent
// signage point, after since, that every connected harvester answered. It is
// nil when the harvester count is unknown or no signage point qualifies.
func (s *Store) FullyReportedPlotCount(ctx context.Context, since time.Time) (*int64, error) {
	harvesters, err := s.HarvesterCount(ctx)
	if err != nil {
		return nil, err
	}
	if harvesters == nil || *harvesters == 0 {
		return nil, nil
	}
	var v sql.NullInt64
	err = s.queryRow(ctx, `SELECT CAST(SUM(total_plots) AS BIGINT) FROM farming_info_events
		WHERE ts >= ? AND signage_point = (
			SELECT signage_point FROM farming_info_events
			WHERE ts >= ?
			GROUP BY signage_point
			HAVING COUNT(*) = ?
			ORDER BY MAX(ts) DESC
			LIMIT 1
		)`, micros(since), micros(since), *harvesters).Scan(&v)
	if err != nil {
		return nil, readErr("fully reported plot count", err)
	}
	return nullInt(v), nil
}
