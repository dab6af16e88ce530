package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/dwsmith1983/chia-monitor/internal/config"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// NamePrice is the name of the price polling collector.
const NamePrice = "price"

const priceTimeout = 10 * time.Second

type pricePoller struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewPrice polls the configured simple price API for the XCH spot price.
func NewPrice(_ context.Context, cfg *types.Config, logger *slog.Logger) (Collector, error) {
	p := NewPricePoller(cfg.PriceCollector.URL, nil)
	return NewPolling(NamePrice, p, config.Duration(cfg.PriceCollector.Interval, 10*time.Second), logger), nil
}

// NewPricePoller creates a price poller over client. A nil client uses a
// client with a request timeout.
func NewPricePoller(url string, client *http.Client) Poller {
	if url == "" {
		url = config.DefaultPriceURL
	}
	if client == nil {
		client = &http.Client{Timeout: priceTimeout}
	}
	return &pricePoller{url: url, client: client, now: time.Now}
}

func (p *pricePoller) Poll(ctx context.Context) ([]types.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: price API: %w", ErrConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: price API returned %d: %s", ErrConnection, resp.StatusCode, body)
	}

	var result map[string]struct {
		USD *float64 `json:"usd"`
		EUR *float64 `json:"eur"`
		BTC *float64 `json:"btc"`
		ETH *float64 `json:"eth"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding price response: %w", err)
	}
	quote, ok := result["chia"]
	if !ok || quote.USD == nil || quote.EUR == nil || quote.BTC == nil || quote.ETH == nil {
		return nil, fmt.Errorf("price response is missing chia quotes")
	}
	return []types.Event{types.Price{
		Timestamp:  p.now(),
		USDCents:   scale(*quote.USD, 1e2),
		EURCents:   scale(*quote.EUR, 1e2),
		BTCSatoshi: scale(*quote.BTC, 1e8),
		ETHGwei:    scale(*quote.ETH, 1e9),
	}}, nil
}

func (p *pricePoller) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// scale converts a quote to integer minor units, rounding to the nearest unit.
func scale(v, unit float64) int64 {
	return int64(math.Round(v * unit))
}
