package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(offset time.Duration) time.Time { return base.Add(offset) }

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	cfg := types.HistoryConfig{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "history.db")}
	s, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(t *testing.T, s *Store, events ...types.Event) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, s.Record(context.Background(), ev))
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}

func TestMigrate_CancelledIsReported(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	m, err := newMigrator(db, DriverSQLite)
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = up(ctx, m)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrStore)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), types.HistoryConfig{Driver: "mysql", DSN: "x"}, nil)
	assert.ErrorIs(t, err, ErrStore)
}

func TestRecord_WithoutSchemaIsStoreError(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, types.HistoryConfig{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "empty.db")}, nil)
	require.NoError(t, err)
	defer s.Close()

	err = s.Record(ctx, types.SignagePoint{Timestamp: base})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStore)
}

func TestReads_EmptyStoreResolvesToNil(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	bs, err := s.LatestBlockchainState(ctx)
	require.NoError(t, err)
	assert.Nil(t, bs)

	synced, err := s.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Nil(t, synced)

	bal, err := s.CurrentBalance(ctx)
	require.NoError(t, err)
	assert.Nil(t, bal)

	proofs, err := s.ProofsFound(ctx)
	require.NoError(t, err)
	assert.Nil(t, proofs)

	start, err := s.FarmingStart(ctx)
	require.NoError(t, err)
	assert.Nil(t, start)

	stats, err := s.PlotStats(ctx, base)
	require.NoError(t, err)
	assert.Nil(t, stats)

	count, err := s.FullyReportedPlotCount(ctx, base)
	require.NoError(t, err)
	assert.Nil(t, count)

	delta, err := s.PlotDelta(ctx, base, base)
	require.NoError(t, err)
	assert.Equal(t, types.PlotStats{}, delta)
}

func TestLatestByKind(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	record(t, s,
		types.BlockchainState{Timestamp: at(0), Space: "100", Synced: true, PeakHeight: 1},
		types.BlockchainState{Timestamp: at(time.Second), Space: "30000000000000000000", Synced: false, PeakHeight: 2, MempoolSize: 3},
		types.WalletBalance{Timestamp: at(0), Confirmed: "5", Farmed: "0"},
		types.WalletBalance{Timestamp: at(time.Second), Confirmed: "18446744073709551617", Farmed: "2"},
		types.Connections{Timestamp: at(0), FullNodeCount: 4, HarvesterCount: 2},
	)

	bs, err := s.LatestBlockchainState(ctx)
	require.NoError(t, err)
	require.NotNil(t, bs)
	assert.Equal(t, "30000000000000000000", bs.Space)
	assert.False(t, bs.Synced)
	assert.Equal(t, int64(2), bs.PeakHeight)
	assert.Equal(t, int64(3), bs.MempoolSize)
	assert.True(t, bs.Timestamp.Equal(at(time.Second)))

	synced, err := s.SyncStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, synced)
	assert.False(t, *synced)

	bal, err := s.CurrentBalance(ctx)
	require.NoError(t, err)
	require.NotNil(t, bal)
	assert.Equal(t, "18446744073709551617", bal.String())

	conns, err := s.LatestConnections(ctx)
	require.NoError(t, err)
	require.NotNil(t, conns)
	assert.Equal(t, int64(4), conns.FullNodeCount)

	harvesters, err := s.HarvesterCount(ctx)
	require.NoError(t, err)
	require.NotNil(t, harvesters)
	assert.Equal(t, int64(2), *harvesters)
}

func TestAggregates(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	record(t, s,
		types.FarmingInfo{Timestamp: at(0), SignagePoint: "sp1", PassedFilter: 2, Proofs: 1},
		types.FarmingInfo{Timestamp: at(10 * time.Second), SignagePoint: "sp2", PassedFilter: 3, Proofs: 0},
		types.FarmingInfo{Timestamp: at(20 * time.Second), SignagePoint: "sp3", PassedFilter: 5, Proofs: 4, LookupTime: time.Second},
		types.SignagePoint{Timestamp: at(0)},
		types.SignagePoint{Timestamp: at(10 * time.Second)},
		types.SignagePoint{Timestamp: at(20 * time.Second)},
	)

	proofs, err := s.ProofsFound(ctx)
	require.NoError(t, err)
	require.NotNil(t, proofs)
	assert.Equal(t, int64(5), *proofs)

	start, err := s.FarmingStart(ctx)
	require.NoError(t, err)
	require.NotNil(t, start)
	assert.True(t, start.Equal(at(0)))

	n, err := s.SignagePointCount(ctx, at(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	passed, err := s.PassedFilterSum(ctx, at(10*time.Second))
	require.NoError(t, err)
	require.NotNil(t, passed)
	assert.Equal(t, int64(8), *passed)

	passed, err = s.PassedFilterSum(ctx, at(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, passed)
}

func TestPlotStats_PerHostMaxSummed(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	record(t, s,
		types.HarvesterPlots{Timestamp: at(0), Host: "a", OGPlotCount: 1, OGPlotSize: 100},
		types.HarvesterPlots{Timestamp: at(5 * time.Second), Host: "a", OGPlotCount: 3, OGPlotSize: 300, PortablePlotCount: 1, PortablePlotSize: 10},
		types.HarvesterPlots{Timestamp: at(6 * time.Second), Host: "a", OGPlotCount: 2, OGPlotSize: 200},
		types.HarvesterPlots{Timestamp: at(6 * time.Second), Host: "b", OGPlotCount: 7, OGPlotSize: 700, PortablePlotCount: 2, PortablePlotSize: 20},
	)

	stats, err := s.PlotStats(ctx, at(time.Second))
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, types.PlotStats{OGCount: 10, OGSize: 1000, PortableCount: 3, PortableSize: 30}, *stats)
	assert.Equal(t, int64(13), stats.Count())
}

func TestPlotDelta(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	record(t, s,
		types.HarvesterPlots{Timestamp: at(0), Host: "a", OGPlotCount: 10, OGPlotSize: 1000},
		types.HarvesterPlots{Timestamp: at(0), Host: "b", OGPlotCount: 5, OGPlotSize: 500},
		types.HarvesterPlots{Timestamp: at(time.Hour), Host: "a", OGPlotCount: 12, OGPlotSize: 1200},
		types.HarvesterPlots{Timestamp: at(time.Hour), Host: "b", OGPlotCount: 4, OGPlotSize: 400, PortablePlotCount: 1, PortablePlotSize: 100},
	)

	delta, err := s.PlotDelta(ctx, at(-24*time.Hour), at(time.Hour-30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), delta.Count())
	assert.Equal(t, int64(200), delta.Size())
}

func TestFullyReportedPlotCount(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	record(t, s,
		types.Connections{Timestamp: at(0), HarvesterCount: 2},
		// sp1 answered by both harvesters
		types.FarmingInfo{Timestamp: at(1 * time.Second), SignagePoint: "sp1", TotalPlots: 60},
		types.FarmingInfo{Timestamp: at(2 * time.Second), SignagePoint: "sp1", TotalPlots: 40},
		// sp2 answered by one harvester so far
		types.FarmingInfo{Timestamp: at(10 * time.Second), SignagePoint: "sp2", TotalPlots: 60},
	)

	count, err := s.FullyReportedPlotCount(ctx, at(0))
	require.NoError(t, err)
	require.NotNil(t, count)
	assert.Equal(t, int64(100), *count)

	record(t, s, types.FarmingInfo{Timestamp: at(11 * time.Second), SignagePoint: "sp2", TotalPlots: 30})
	count, err = s.FullyReportedPlotCount(ctx, at(0))
	require.NoError(t, err)
	require.NotNil(t, count)
	assert.Equal(t, int64(90), *count)

	// Outside the lookback window nothing qualifies.
	count, err = s.FullyReportedPlotCount(ctx, at(time.Minute))
	require.NoError(t, err)
	assert.Nil(t, count)
}

func TestFullyReportedPlotCount_HarvesterCountMismatch(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	record(t, s,
		types.Connections{Timestamp: at(0), HarvesterCount: 3},
		types.FarmingInfo{Timestamp: at(time.Second), SignagePoint: "sp1", TotalPlots: 60},
		types.FarmingInfo{Timestamp: at(2 * time.Second), SignagePoint: "sp1", TotalPlots: 40},
	)

	count, err := s.FullyReportedPlotCount(ctx, at(0))
	require.NoError(t, err)
	assert.Nil(t, count)
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
	lite := &Store{driver: DriverSQLite}
	assert.Equal(t, "SELECT ? ", lite.rebind("SELECT ? "))
}
