package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dwsmith1983/chia-monitor/internal/chia"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// NameDaemon is the name of the daemon websocket collector.
const NameDaemon = "daemon"

const registerTimeout = 10 * time.Second

// DaemonConn is the receive side of a registered daemon connection.
type DaemonConn interface {
	Read() (chia.Message, error)
	Close() error
}

// Daemon converts farmer pushes from the Chia daemon into FarmingInfo and
// SignagePoint events. It has no interval: it runs until the connection drops.
type Daemon struct {
	conn    DaemonConn
	arrived *lru.Cache[string, time.Time]
	logger  *slog.Logger
	now     func() time.Time
}

// NewDaemon dials the daemon websocket with the daemon certificate and
// registers for wallet_ui pushes.
func NewDaemon(ctx context.Context, cfg *types.Config, logger *slog.Logger) (Collector, error) {
	netCfg, err := loadNetConfig(cfg.Chia)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	tlsConfig, err := netCfg.DaemonTLS()
	if err != nil {
		return nil, fmt.Errorf("%w: daemon certificates: %w", ErrConnection, err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()
	conn, err := chia.DialDaemon(dialCtx, netCfg.Endpoint(netCfg.DaemonPort), tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to daemon websocket: %w", ErrConnection, err)
	}
	if err := conn.Register(dialCtx, chia.ServiceWalletUI); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: failed to subscribe to daemon websocket: %w", ErrConnection, err)
	}
	return NewDaemonFromConn(conn, cfg.WSCollector.CacheSize, logger)
}

// NewDaemonFromConn wraps an already registered connection. cacheSize bounds
// how many signage point arrival times are kept for lookup time.
func NewDaemonFromConn(conn DaemonConn, cacheSize int, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheSize <= 0 {
		cacheSize = 64
	}
	arrived, err := lru.New[string, time.Time](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("signage point cache: %w", err)
	}
	return &Daemon{
		conn:    conn,
		arrived: arrived,
		logger:  logger.With("collector", NameDaemon),
		now:     time.Now,
	}, nil
}

// Name returns the collector name.
func (d *Daemon) Name() string { return NameDaemon }

// Run reads pushes until ctx is cancelled or the connection fails. A frame
// that cannot be decoded is skipped; a transport error ends the collector.
func (d *Daemon) Run(ctx context.Context, pub Publisher) error {
	stop := context.AfterFunc(ctx, func() { _ = d.conn.Close() })
	defer stop()

	d.logger.Info("collector started")
	for {
		msg, err := d.conn.Read()
		if err != nil {
			if ctx.Err() != nil {
				d.logger.Info("collector stopping")
				return nil
			}
			var decodeErr *chia.DecodeError
			if errors.As(err, &decodeErr) {
				d.logger.Warn("skipping undecodable daemon message", "error", err)
				continue
			}
			return fmt.Errorf("%w: daemon connection lost: %w", ErrConnection, err)
		}

		ev, err := d.convert(msg)
		if err != nil {
			d.logger.Warn("skipping malformed daemon push", "command", msg.Command, "error", err)
			continue
		}
		if ev == nil {
			continue
		}
		if err := pub.Publish(ctx, ev); err != nil {
			return nil
		}
	}
}

// convert returns nil for commands the monitor does not track.
func (d *Daemon) convert(msg chia.Message) (types.Event, error) {
	now := d.now()
	switch msg.Command {
	case chia.CommandNewSignagePoint:
		sp, err := chia.DecodeSignagePoint(msg)
		if err != nil {
			return nil, err
		}
		d.arrived.Add(sp.ChallengeChainSP, now)
		return types.SignagePoint{
			Timestamp:         now,
			ChallengeHash:     sp.ChallengeHash,
			SignagePoint:      sp.ChallengeChainSP,
			SignagePointIndex: sp.SignagePointIndex,
		}, nil
	case chia.CommandNewFarmingInfo:
		fi, err := chia.DecodeFarmingInfo(msg)
		if err != nil {
			return nil, err
		}
		ev := types.FarmingInfo{
			Timestamp:     now,
			ChallengeHash: fi.ChallengeHash,
			SignagePoint:  fi.SignagePoint,
			PassedFilter:  fi.PassedFilter,
			Proofs:        fi.Proofs,
			TotalPlots:    fi.TotalPlots,
		}
		if at, ok := d.arrived.Get(fi.SignagePoint); ok && !now.Before(at) {
			ev.LookupTime = now.Sub(at)
		}
		return ev, nil
	default:
		return nil, nil
	}
}

// Close closes the websocket.
func (d *Daemon) Close() error { return d.conn.Close() }
