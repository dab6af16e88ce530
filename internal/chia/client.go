package chia

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRPC marks a request the Chia service answered with success=false.
var ErrRPC = errors.New("chia rpc")

const defaultRPCTimeout = 10 * time.Second

// Client calls one Chia service's RPC API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for https://endpoint. A zero timeout uses the
// default request timeout.
func NewClient(endpoint string, tlsConfig *tls.Config, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRPCTimeout
	}
	return &Client{
		baseURL: "https://" + endpoint,
		http: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{TLSClientConfig: tlsConfig, MaxIdleConnsPerHost: 2},
		},
	}
}

// NewClientWithHTTP creates a client over an existing HTTP client (useful for testing).
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, http: hc}
}

// Call posts req to the named endpoint and decodes the response into resp.
func (c *Client) Call(ctx context.Context, endpoint string, req, resp any) error {
	if req == nil {
		req = struct{}{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: marshaling request: %w", endpoint, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: building request: %w", endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", endpoint, err)
	}
	if httpResp.StatusCode >= 400 {
		return fmt.Errorf("%s: status %d", endpoint, httpResp.StatusCode)
	}

	var envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("%s: decoding response: %w", endpoint, err)
	}
	if !envelope.Success {
		return fmt.Errorf("%w: %s: %s", ErrRPC, endpoint, envelope.Error)
	}
	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return fmt.Errorf("%s: decoding response: %w", endpoint, err)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
