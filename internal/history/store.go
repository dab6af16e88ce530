// Package history persists every farm event and answers the aggregate queries
// the notification engine evaluates. It runs on SQLite by default and on
// Postgres through the pgx stdlib driver.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// ErrStore marks a failed read or write against the history database.
var ErrStore = errors.New("history store")

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const (
	sqliteBusyTimeout = 5 * time.Second
	pingTimeout       = 5 * time.Second
)

// Store is the history database. One handle is shared by the dispatcher
// (the only writer) and the notification engine (the only heavy reader).
type Store struct {
	db     *sql.DB
	driver string
	dsn    string
	logger *slog.Logger
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg types.HistoryConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sqlDriver, dsn, err := driverDSN(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStore, cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		db.SetMaxOpenConns(4)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrStore, cfg.Driver, err)
	}
	return &Store{db: db, driver: cfg.Driver, dsn: dsn, logger: logger}, nil
}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite3", nil
	case DriverPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("%w: unsupported driver %q", ErrStore, driver)
	}
}

func driverDSN(driver, dsn string) (string, string, error) {
	name, err := sqlDriverName(driver)
	if err != nil {
		return "", "", err
	}
	if driver == DriverSQLite && !strings.Contains(dsn, "?") {
		dsn = fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", dsn, sqliteBusyTimeout.Milliseconds())
	}
	return name, dsn, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity to the database.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrStore, err)
	}
	return nil
}

// Record appends ev to its kind's table.
func (s *Store) Record(ctx context.Context, ev types.Event) error {
	if err := ev.Visit(recorder{ctx: ctx, s: s}); err != nil {
		return fmt.Errorf("%w: record %s: %w", ErrStore, ev.Kind(), err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	return err
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func micros(t time.Time) int64 { return t.UnixMicro() }

// recorder inserts one event; it is created per Record call to carry ctx.
type recorder struct {
	ctx context.Context
	s   *Store
}

func (r recorder) VisitHarvesterPlots(e types.HarvesterPlots) error {
	return r.s.exec(r.ctx, `INSERT INTO harvester_plots_events
		(ts, host, og_plot_count, og_plot_size, portable_plot_count, portable_plot_size)
		VALUES (?, ?, ?, ?, ?, ?)`,
		micros(e.Timestamp), e.Host, e.OGPlotCount, e.OGPlotSize, e.PortablePlotCount, e.PortablePlotSize)
}

func (r recorder) VisitConnections(e types.Connections) error {
	return r.s.exec(r.ctx, `INSERT INTO connections_events
		(ts, full_node_count, farmer_count, wallet_count, harvester_count)
		VALUES (?, ?, ?, ?, ?)`,
		micros(e.Timestamp), e.FullNodeCount, e.FarmerCount, e.WalletCount, e.HarvesterCount)
}

func (r recorder) VisitBlockchainState(e types.BlockchainState) error {
	return r.s.exec(r.ctx, `INSERT INTO blockchain_state_events
		(ts, space, difficulty, peak_height, synced, mempool_size)
		VALUES (?, ?, ?, ?, ?, ?)`,
		micros(e.Timestamp), e.Space, e.Difficulty, e.PeakHeight, e.Synced, e.MempoolSize)
}

func (r recorder) VisitWalletBalance(e types.WalletBalance) error {
	return r.s.exec(r.ctx, `INSERT INTO wallet_balance_events (ts, confirmed, farmed) VALUES (?, ?, ?)`,
		micros(e.Timestamp), e.Confirmed, e.Farmed)
}

func (r recorder) VisitSignagePoint(e types.SignagePoint) error {
	return r.s.exec(r.ctx, `INSERT INTO signage_point_events
		(ts, challenge_hash, signage_point, signage_point_index)
		VALUES (?, ?, ?, ?)`,
		micros(e.Timestamp), e.ChallengeHash, e.SignagePoint, e.SignagePointIndex)
}

func (r recorder) VisitFarmingInfo(e types.FarmingInfo) error {
	return r.s.exec(r.ctx, `INSERT INTO farming_info_events
		(ts, challenge_hash, signage_point, passed_filter, proofs, total_plots, lookup_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		micros(e.Timestamp), e.ChallengeHash, e.SignagePoint, e.PassedFilter, e.Proofs, e.TotalPlots, e.LookupTime.Seconds())
}

func (r recorder) VisitPoolState(e types.PoolState) error {
	return r.s.exec(r.ctx, `INSERT INTO pool_state_events
		(ts, p2_singleton_puzzle_hash, pool_url, current_points, current_difficulty,
		 points_found_since_start, points_acknowledged_since_start,
		 points_found_24h, points_acknowledged_24h, num_pool_errors_24h)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		micros(e.Timestamp), e.P2SingletonPuzzleHash, e.PoolURL, e.CurrentPoints, e.CurrentDifficulty,
		e.PointsFoundSinceStart, e.PointsAcknowledgedSinceStart,
		e.PointsFound24h, e.PointsAcknowledged24h, e.PoolErrors24h)
}

func (r recorder) VisitPrice(e types.Price) error {
	return r.s.exec(r.ctx, `INSERT INTO price_events (ts, usd_cents, eur_cents, btc_satoshi, eth_gwei)
		VALUES (?, ?, ?, ?, ?)`,
		micros(e.Timestamp), e.USDCents, e.EURCents, e.BTCSatoshi, e.ETHGwei)
}
