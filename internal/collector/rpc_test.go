package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/chia-monitor/internal/chia"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// rpcService serves canned JSON per endpoint. An empty map answers every
// request with 500.
func rpcService(t *testing.T, routes map[string]string) *chia.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path[1:]]
		if !ok {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	c := chia.NewClientWithHTTP(srv.URL, srv.Client())
	t.Cleanup(func() {
		c.Close()
		srv.Close()
	})
	return c
}

var (
	fullNodeRoutes = map[string]string{
		"get_blockchain_state": `{"success": true, "blockchain_state": {"space": 30000000000000000000,
			"difficulty": 2048, "mempool_size": 7, "peak": {"height": 1200}, "sync": {"synced": true}}}`,
		"get_connections": `{"success": true, "connections": [{"type": 1}, {"type": 1}, {"type": 3}, {"type": 6}]}`,
	}
	walletRoutes = map[string]string{
		"get_connections":    `{"success": true, "connections": []}`,
		"get_wallets":        `{"success": true, "wallets": [{"id": 1}, {"id": 2}]}`,
		"get_wallet_balance": `{"success": true, "wallet_balance": {"confirmed_wallet_balance": 9223372036854775807}}`,
		"get_farmed_amount":  `{"success": true, "farmed_amount": 4000000000000}`,
	}
	farmerRoutes = map[string]string{
		"get_connections": `{"success": true, "connections": [{"type": 2}, {"type": 2}, {"type": 1}]}`,
		"get_harvesters": `{"success": true, "harvesters": [
			{"connection": {"host": "10.0.0.2"}, "plots": [
				{"file_size": 100, "pool_contract_puzzle_hash": null},
				{"file_size": 150, "pool_contract_puzzle_hash": null},
				{"file_size": 200, "pool_contract_puzzle_hash": "0xabc"}]},
			{"connection": {"host": "10.0.0.3"}, "plots": []}]}`,
		"get_pool_state": `{"success": true, "pool_state": [{"p2_singleton_puzzle_hash": "0xp2",
			"pool_config": {"pool_url": "https://pool.example"}, "current_points": 40, "current_difficulty": 2,
			"points_found_since_start": 80, "points_acknowledged_since_start": 78,
			"points_found_24h": [[1, 2], [3, 2], [5, 2]], "points_acknowledged_24h": [[1, 2]],
			"pool_errors_24h": [{"error_code": 1}]}]}`,
	}
)

func TestNewRPCPoller_AllServices(t *testing.T) {
	ctx := context.Background()
	p, err := NewRPCPoller(ctx, RPCClients{
		FullNode: rpcService(t, fullNodeRoutes),
		Wallet:   rpcService(t, walletRoutes),
		Farmer:   rpcService(t, farmerRoutes),
	}, nil)
	require.NoError(t, err)
	defer p.Close()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.(*rpcPoller).now = func() time.Time { return ts }

	events, err := p.Poll(ctx)
	require.NoError(t, err)

	assert.Equal(t, []types.Event{
		types.BlockchainState{Timestamp: ts, Space: "30000000000000000000", Difficulty: 2048, PeakHeight: 1200, Synced: true, MempoolSize: 7},
		types.Connections{Timestamp: ts, FullNodeCount: 2, FarmerCount: 1, WalletCount: 1, HarvesterCount: 2},
		types.WalletBalance{Timestamp: ts, Confirmed: "18446744073709551614", Farmed: "4000000000000"},
		types.HarvesterPlots{Timestamp: ts, Host: "10.0.0.2", OGPlotCount: 2, OGPlotSize: 250, PortablePlotCount: 1, PortablePlotSize: 200},
		types.HarvesterPlots{Timestamp: ts, Host: "10.0.0.3"},
		types.PoolState{
			Timestamp:                    ts,
			P2SingletonPuzzleHash:        "0xp2",
			PoolURL:                      "https://pool.example",
			CurrentPoints:                40,
			CurrentDifficulty:            2,
			PointsFoundSinceStart:        80,
			PointsAcknowledgedSinceStart: 78,
			PointsFound24h:               3,
			PointsAcknowledged24h:        1,
			PoolErrors24h:                1,
		},
	}, events)
}

func TestNewRPCPoller_SkipsUnreachableServices(t *testing.T) {
	ctx := context.Background()
	p, err := NewRPCPoller(ctx, RPCClients{
		FullNode: rpcService(t, fullNodeRoutes),
		Wallet:   rpcService(t, map[string]string{}),
		Farmer:   rpcService(t, farmerRoutes),
	}, nil)
	require.NoError(t, err)
	defer p.Close()

	rp := p.(*rpcPoller)
	assert.NotNil(t, rp.fullNode)
	assert.Nil(t, rp.wallet)
	assert.NotNil(t, rp.farmer)

	events, err := p.Poll(ctx)
	require.NoError(t, err)
	for _, ev := range events {
		assert.NotEqual(t, types.KindWalletBalance, ev.Kind())
	}
}

func TestNewRPCPoller_NoServices(t *testing.T) {
	_, err := NewRPCPoller(context.Background(), RPCClients{
		FullNode: rpcService(t, map[string]string{}),
		Wallet:   rpcService(t, map[string]string{}),
		Farmer:   rpcService(t, map[string]string{}),
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)

	_, err = NewRPCPoller(context.Background(), RPCClients{}, nil)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestRPCPoller_PartialFailureKeepsOtherEvents(t *testing.T) {
	ctx := context.Background()
	farmer := map[string]string{"get_connections": farmerRoutes["get_connections"]}
	p, err := NewRPCPoller(ctx, RPCClients{
		FullNode: rpcService(t, fullNodeRoutes),
		Farmer:   rpcService(t, farmer),
	}, nil)
	require.NoError(t, err)
	defer p.Close()

	events, err := p.Poll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	kinds := make([]types.EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind())
	}
	assert.Equal(t, []types.EventKind{types.KindBlockchainState, types.KindConnections}, kinds)
}

func TestNewRPC_MissingChiaConfig(t *testing.T) {
	cfg := &types.Config{Chia: types.ChiaConfig{Root: t.TempDir()}}
	_, err := NewRPC(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, ErrConnection)
}
