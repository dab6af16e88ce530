package chia

import (
	"context"
	"encoding/json"
)

// BlockchainState is the get_blockchain_state payload.
type BlockchainState struct {
	Space       json.Number `json:"space"`
	Difficulty  int64       `json:"difficulty"`
	MempoolSize int64       `json:"mempool_size"`
	Peak        *struct {
		Height int64 `json:"height"`
	} `json:"peak"`
	Sync struct {
		Synced bool `json:"synced"`
	} `json:"sync"`
}

// PeakHeight returns the peak height, or 0 before the first block.
func (s BlockchainState) PeakHeight() int64 {
	if s.Peak == nil {
		return 0
	}
	return s.Peak.Height
}

// Connection is one peer from get_connections.
type Connection struct {
	Type     int    `json:"type"`
	PeerHost string `json:"peer_host"`
	NodeID   string `json:"node_id"`
}

// Wallet is one entry of get_wallets.
type Wallet struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type int    `json:"type"`
}

// Plot is one plot reported by a harvester.
type Plot struct {
	FileSize               int64   `json:"file_size"`
	PoolContractPuzzleHash *string `json:"pool_contract_puzzle_hash"`
}

// Portable reports whether the plot is bound to a pool contract.
func (p Plot) Portable() bool { return p.PoolContractPuzzleHash != nil }

// Harvester is one entry of get_harvesters.
type Harvester struct {
	Connection struct {
		Host   string `json:"host"`
		NodeID string `json:"node_id"`
	} `json:"connection"`
	Plots []Plot `json:"plots"`
}

// PoolState is one entry of get_pool_state.
type PoolState struct {
	P2SingletonPuzzleHash string `json:"p2_singleton_puzzle_hash"`
	PoolConfig            struct {
		PoolURL string `json:"pool_url"`
	} `json:"pool_config"`
	CurrentPoints                int64             `json:"current_points"`
	CurrentDifficulty            int64             `json:"current_difficulty"`
	PointsFoundSinceStart        int64             `json:"points_found_since_start"`
	PointsAcknowledgedSinceStart int64             `json:"points_acknowledged_since_start"`
	PointsFound24h               []json.RawMessage `json:"points_found_24h"`
	PointsAcknowledged24h        []json.RawMessage `json:"points_acknowledged_24h"`
	PoolErrors24h                []json.RawMessage `json:"pool_errors_24h"`
}

// GetBlockchainState queries the full node.
func (c *Client) GetBlockchainState(ctx context.Context) (*BlockchainState, error) {
	var resp struct {
		BlockchainState BlockchainState `json:"blockchain_state"`
	}
	if err := c.Call(ctx, "get_blockchain_state", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.BlockchainState, nil
}

// GetConnections lists the service's peers.
func (c *Client) GetConnections(ctx context.Context) ([]Connection, error) {
	var resp struct {
		Connections []Connection `json:"connections"`
	}
	if err := c.Call(ctx, "get_connections", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Connections, nil
}

// GetWallets lists the wallets of the logged-in key.
func (c *Client) GetWallets(ctx context.Context) ([]Wallet, error) {
	var resp struct {
		Wallets []Wallet `json:"wallets"`
	}
	if err := c.Call(ctx, "get_wallets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Wallets, nil
}

// GetConfirmedBalance returns a wallet's confirmed balance in mojos.
func (c *Client) GetConfirmedBalance(ctx context.Context, walletID int64) (json.Number, error) {
	var resp struct {
		WalletBalance struct {
			ConfirmedWalletBalance json.Number `json:"confirmed_wallet_balance"`
		} `json:"wallet_balance"`
	}
	req := map[string]int64{"wallet_id": walletID}
	if err := c.Call(ctx, "get_wallet_balance", req, &resp); err != nil {
		return "", err
	}
	return resp.WalletBalance.ConfirmedWalletBalance, nil
}

// GetFarmedAmount returns the total farmed amount in mojos.
func (c *Client) GetFarmedAmount(ctx context.Context) (json.Number, error) {
	var resp struct {
		FarmedAmount json.Number `json:"farmed_amount"`
	}
	if err := c.Call(ctx, "get_farmed_amount", nil, &resp); err != nil {
		return "", err
	}
	return resp.FarmedAmount, nil
}

// GetHarvesters lists the harvesters connected to the farmer with their plots.
func (c *Client) GetHarvesters(ctx context.Context) ([]Harvester, error) {
	var resp struct {
		Harvesters []Harvester `json:"harvesters"`
	}
	if err := c.Call(ctx, "get_harvesters", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Harvesters, nil
}

// GetPoolState lists the farmer's pool memberships.
func (c *Client) GetPoolState(ctx context.Context) ([]PoolState, error) {
	var resp struct {
		PoolState []PoolState `json:"pool_state"`
	}
	if err := c.Call(ctx, "get_pool_state", nil, &resp); err != nil {
		return nil, err
	}
	return resp.PoolState, nil
}
