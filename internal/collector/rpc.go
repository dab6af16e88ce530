package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/dwsmith1983/chia-monitor/internal/chia"
	"github.com/dwsmith1983/chia-monitor/internal/config"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// NameRPC is the name of the RPC polling collector.
const NameRPC = "rpc"

// RPCClients holds one client per Chia service. Nil entries are skipped.
type RPCClients struct {
	FullNode *chia.Client
	Wallet   *chia.Client
	Farmer   *chia.Client
}

type rpcPoller struct {
	fullNode *chia.Client
	wallet   *chia.Client
	farmer   *chia.Client
	now      func() time.Time
}

// NewRPC connects to the full node, wallet and farmer RPC endpoints named in
// the Chia config. A service that cannot be reached is skipped with a warning.
func NewRPC(ctx context.Context, cfg *types.Config, logger *slog.Logger) (Collector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	netCfg, err := loadNetConfig(cfg.Chia)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	timeout := config.Duration(cfg.RPCCollector.Timeout, 10*time.Second)

	var clients RPCClients
	for _, svc := range []struct {
		name   string
		config chia.ServiceConfig
		dst    **chia.Client
	}{
		{"full node", netCfg.FullNode, &clients.FullNode},
		{"wallet", netCfg.Wallet, &clients.Wallet},
		{"farmer", netCfg.Farmer, &clients.Farmer},
	} {
		tlsConfig, err := netCfg.ServiceTLS(svc.config)
		if err != nil {
			logger.Warn("failed to load RPC certificates, continuing without it", "service", svc.name, "error", err)
			continue
		}
		*svc.dst = chia.NewClient(netCfg.Endpoint(svc.config.RPCPort), tlsConfig, timeout)
	}

	p, err := NewRPCPoller(ctx, clients, logger)
	if err != nil {
		return nil, err
	}
	return NewPolling(NameRPC, p, config.Duration(cfg.RPCCollector.Interval, 10*time.Second), logger), nil
}

// NewRPCPoller probes each client with get_connections and keeps the ones
// that answer. It fails with ErrConnection when none do.
func NewRPCPoller(ctx context.Context, clients RPCClients, logger *slog.Logger) (Poller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	probe := func(name string, c *chia.Client) *chia.Client {
		if c == nil {
			return nil
		}
		if _, err := c.GetConnections(ctx); err != nil {
			logger.Warn("failed to connect to RPC endpoint, continuing without it", "service", name, "error", err)
			c.Close()
			return nil
		}
		return c
	}
	p := &rpcPoller{
		fullNode: probe("full node", clients.FullNode),
		wallet:   probe("wallet", clients.Wallet),
		farmer:   probe("farmer", clients.Farmer),
		now:      time.Now,
	}
	if p.fullNode == nil && p.wallet == nil && p.farmer == nil {
		return nil, fmt.Errorf("%w: failed to connect to any RPC endpoint, check that the Chia services are running", ErrConnection)
	}
	return p, nil
}

// Poll queries every connected service. Failures of one service do not stop
// the others.
func (p *rpcPoller) Poll(ctx context.Context) ([]types.Event, error) {
	var (
		events []types.Event
		errs   []error
	)
	collect := func(evs []types.Event, err error) {
		events = append(events, evs...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if p.fullNode != nil {
		collect(p.blockchainState(ctx))
	}
	if p.fullNode != nil || p.farmer != nil {
		collect(p.connections(ctx))
	}
	if p.wallet != nil {
		collect(p.walletBalance(ctx))
	}
	if p.farmer != nil {
		collect(p.harvesterPlots(ctx))
		collect(p.poolState(ctx))
	}
	if len(errs) > 0 {
		return events, fmt.Errorf("%w: %w", ErrConnection, errors.Join(errs...))
	}
	return events, nil
}

func (p *rpcPoller) blockchainState(ctx context.Context) ([]types.Event, error) {
	state, err := p.fullNode.GetBlockchainState(ctx)
	if err != nil {
		return nil, fmt.Errorf("blockchain state from full node: %w", err)
	}
	return []types.Event{types.BlockchainState{
		Timestamp:   p.now(),
		Space:       state.Space.String(),
		Difficulty:  state.Difficulty,
		PeakHeight:  state.PeakHeight(),
		Synced:      state.Sync.Synced,
		MempoolSize: state.MempoolSize,
	}}, nil
}

func (p *rpcPoller) connections(ctx context.Context) ([]types.Event, error) {
	ev := types.Connections{}
	if p.fullNode != nil {
		peers, err := p.fullNode.GetConnections(ctx)
		if err != nil {
			return nil, fmt.Errorf("connections from full node: %w", err)
		}
		for _, peer := range peers {
			switch types.NodeType(peer.Type) {
			case types.NodeFullNode:
				ev.FullNodeCount++
			case types.NodeFarmer:
				ev.FarmerCount++
			case types.NodeWallet:
				ev.WalletCount++
			}
		}
	}
	if p.farmer != nil {
		peers, err := p.farmer.GetConnections(ctx)
		if err != nil {
			return nil, fmt.Errorf("connections from farmer: %w", err)
		}
		for _, peer := range peers {
			if types.NodeType(peer.Type) == types.NodeHarvester {
				ev.HarvesterCount++
			}
		}
	}
	ev.Timestamp = p.now()
	return []types.Event{ev}, nil
}

func (p *rpcPoller) walletBalance(ctx context.Context) ([]types.Event, error) {
	wallets, err := p.wallet.GetWallets(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallets: %w", err)
	}
	confirmed := new(big.Int)
	for _, w := range wallets {
		balance, err := p.wallet.GetConfirmedBalance(ctx, w.ID)
		if err != nil {
			return nil, fmt.Errorf("balance of wallet %d: %w", w.ID, err)
		}
		v, ok := new(big.Int).SetString(balance.String(), 10)
		if !ok {
			return nil, fmt.Errorf("balance of wallet %d: invalid amount %q", w.ID, balance)
		}
		confirmed.Add(confirmed, v)
	}
	farmed, err := p.wallet.GetFarmedAmount(ctx)
	if err != nil {
		return nil, fmt.Errorf("farmed amount: %w", err)
	}
	farmedAmount := farmed.String()
	if farmedAmount == "" {
		farmedAmount = "0"
	}
	return []types.Event{types.WalletBalance{
		Timestamp: p.now(),
		Confirmed: confirmed.String(),
		Farmed:    farmedAmount,
	}}, nil
}

func (p *rpcPoller) harvesterPlots(ctx context.Context) ([]types.Event, error) {
	harvesters, err := p.farmer.GetHarvesters(ctx)
	if err != nil {
		return nil, fmt.Errorf("harvesters from farmer: %w", err)
	}
	now := p.now()
	events := make([]types.Event, 0, len(harvesters))
	for _, h := range harvesters {
		ev := types.HarvesterPlots{Timestamp: now, Host: h.Connection.Host}
		for _, plot := range h.Plots {
			if plot.Portable() {
				ev.PortablePlotCount++
				ev.PortablePlotSize += plot.FileSize
			} else {
				ev.OGPlotCount++
				ev.OGPlotSize += plot.FileSize
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

func (p *rpcPoller) poolState(ctx context.Context) ([]types.Event, error) {
	pools, err := p.farmer.GetPoolState(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool state from farmer: %w", err)
	}
	now := p.now()
	events := make([]types.Event, 0, len(pools))
	for _, pool := range pools {
		events = append(events, types.PoolState{
			Timestamp:                    now,
			P2SingletonPuzzleHash:        pool.P2SingletonPuzzleHash,
			PoolURL:                      pool.PoolConfig.PoolURL,
			CurrentPoints:                pool.CurrentPoints,
			CurrentDifficulty:            pool.CurrentDifficulty,
			PointsFoundSinceStart:        pool.PointsFoundSinceStart,
			PointsAcknowledgedSinceStart: pool.PointsAcknowledgedSinceStart,
			PointsFound24h:               int64(len(pool.PointsFound24h)),
			PointsAcknowledged24h:        int64(len(pool.PointsAcknowledged24h)),
			PoolErrors24h:                int64(len(pool.PoolErrors24h)),
		})
	}
	return events, nil
}

func (p *rpcPoller) Close() error {
	for _, c := range []*chia.Client{p.fullNode, p.wallet, p.farmer} {
		if c != nil {
			c.Close()
		}
	}
	return nil
}

func loadNetConfig(cfg types.ChiaConfig) (*chia.NetConfig, error) {
	netCfg, err := chia.LoadNetConfig(cfg.Root, config.ChiaConfigPath(cfg))
	if err != nil {
		return nil, err
	}
	if cfg.SelfHostname != "" {
		netCfg.SelfHostname = cfg.SelfHostname
	}
	return netCfg, nil
}
