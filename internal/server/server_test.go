package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/chia-monitor/internal/metrics"
	"github.com/dwsmith1983/chia-monitor/internal/server/handlers"
	"github.com/dwsmith1983/chia-monitor/internal/testutil"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

func setupTestServer(t *testing.T) (*httptest.Server, *testutil.MockStore, *metrics.Sink) {
	t.Helper()
	store := testutil.NewMockStore()
	sink := metrics.New()
	srv := New(":0", sink.Registry(), store, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store, sink
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, sink := setupTestServer(t)
	require.NoError(t, sink.VisitBlockchainState(types.BlockchainState{PeakHeight: 42, Synced: true}))
	require.NoError(t, sink.VisitHarvesterPlots(types.HarvesterPlots{Host: "10.0.0.2", OGPlotCount: 12}))

	resp, body := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Contains(t, string(body), "chia_peak_height 42")
	assert.Contains(t, string(body), "chia_sync_status 1")
	assert.Contains(t, string(body), `chia_plot_count{host="10.0.0.2",type="OG"} 12`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestHealthEndpoint(t *testing.T) {
	ts, store, _ := setupTestServer(t)

	for _, path := range []string{"/healthz", "/api/health"} {
		resp, body := get(t, ts.URL+path)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"status": "ok"}`, string(body))
	}

	store.FailReads(errors.New("database is closed"))
	resp, body := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.JSONEq(t, `{"status": "degraded"}`, string(body))
}

func TestStatusEndpoint(t *testing.T) {
	ts, store, _ := setupTestServer(t)

	resp, body := get(t, ts.URL+"/api/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"blockchainState": null, "wallet": null, "connections": null, "plots": null}`, string(body))

	store.SetBlockchainState(types.BlockchainState{Space: "30000000000000000000", PeakHeight: 42, Synced: true})
	store.SetBalance("18446744073709551617")
	store.SetConnections(types.Connections{FullNodeCount: 8, HarvesterCount: 2})
	store.SetPlotStats(types.PlotStats{OGCount: 10, OGSize: 1000})

	resp, body = get(t, ts.URL+"/api/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var status handlers.StatusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	require.NotNil(t, status.BlockchainState)
	assert.Equal(t, "30000000000000000000", status.BlockchainState.Space)
	require.NotNil(t, status.Wallet)
	assert.Equal(t, "18446744073709551617", status.Wallet.Confirmed)
	require.NotNil(t, status.Connections)
	assert.Equal(t, int64(2), status.Connections.HarvesterCount)
	require.NotNil(t, status.Plots)
	assert.Equal(t, int64(10), status.Plots.Count())
}

func TestStatusEndpoint_StoreError(t *testing.T) {
	ts, store, _ := setupTestServer(t)
	store.FailReads(errors.New("no such table"))

	resp, body := get(t, ts.URL+"/api/status")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, string(body), "no such table")
}

func TestRequestIDPassthrough(t *testing.T) {
	ts, _, _ := setupTestServer(t)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "scrape-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "scrape-1", resp.Header.Get("X-Request-ID"))
}

func TestRun_StopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	srv := New(addr, metrics.New().Registry(), testutil.NewMockStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	testutil.WaitFor(t, 2*time.Second, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, "server listening")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func runWithin(t *testing.T, d time.Duration, run func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- run() }()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		t.Fatal("run did not return")
		return nil
	}
}

func TestRun_AlreadyCancelled(t *testing.T) {
	for i := 0; i < 20; i++ {
		srv := New("127.0.0.1:0", metrics.New().Registry(), testutil.NewMockStore(), nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NoError(t, runWithin(t, 5*time.Second, func() error { return srv.Run(ctx) }))
	}
}

func TestRun_FailedSiblingStopsServer(t *testing.T) {
	errStore := errors.New("no such table")
	for i := 0; i < 20; i++ {
		srv := New("127.0.0.1:0", metrics.New().Registry(), testutil.NewMockStore(), nil)
		g, ctx := errgroup.WithContext(context.Background())
		g.Go(func() error { return srv.Run(ctx) })
		g.Go(func() error { return errStore })

		err := runWithin(t, 5*time.Second, g.Wait)
		assert.ErrorIs(t, err, errStore)
	}
}

func TestRun_AddressInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	srv := New(l.Addr().String(), metrics.New().Registry(), testutil.NewMockStore(), nil)
	err = runWithin(t, 5*time.Second, func() error { return srv.Run(context.Background()) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}
