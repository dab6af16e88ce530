// Package handlers implements HTTP request handlers for the chia-monitor API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// Store is the part of the history store the handlers read.
type Store interface {
	Ping(ctx context.Context) error
	LatestBlockchainState(ctx context.Context) (*types.BlockchainState, error)
	LatestWalletBalance(ctx context.Context) (*types.WalletBalance, error)
	LatestConnections(ctx context.Context) (*types.Connections, error)
	PlotStats(ctx context.Context, since time.Time) (*types.PlotStats, error)
}

// Handlers contains all HTTP handler dependencies.
type Handlers struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Handlers instance.
func New(store Store) *Handlers {
	return &Handlers{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// SetLogger overrides the default logger.
func (h *Handlers) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs the internal error and returns a sanitized JSON error to the client.
func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		h.logger.Error(msg, "error", err, "status", status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
