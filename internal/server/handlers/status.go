package handlers

import (
	"net/http"
	"time"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// plotWindow matches the window the summary uses for current plot stats.
const plotWindow = 30 * time.Second

// StatusResponse is the latest recorded view of the farm. Fields are null
// until the matching event has been recorded.
type StatusResponse struct {
	BlockchainState *types.BlockchainState `json:"blockchainState"`
	Wallet          *types.WalletBalance   `json:"wallet"`
	Connections     *types.Connections     `json:"connections"`
	Plots           *types.PlotStats       `json:"plots"`
}

// Status returns the latest recorded farm state.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		resp StatusResponse
		err  error
	)
	if resp.BlockchainState, err = h.store.LatestBlockchainState(ctx); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to read blockchain state", err)
		return
	}
	if resp.Wallet, err = h.store.LatestWalletBalance(ctx); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to read wallet balance", err)
		return
	}
	if resp.Connections, err = h.store.LatestConnections(ctx); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to read connections", err)
		return
	}
	if resp.Plots, err = h.store.PlotStats(ctx, h.now().Add(-plotWindow)); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to read plot stats", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
