package chia

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Daemon push commands.
const (
	CommandRegisterService = "register_service"
	CommandNewFarmingInfo  = "new_farming_info"
	CommandNewSignagePoint = "new_signage_point"

	// ServiceWalletUI is the service name that receives farmer pushes.
	ServiceWalletUI = "wallet_ui"
)

const (
	handshakeTimeout = 10 * time.Second
	maxFrameSize     = 16 << 20
)

// Message is a daemon websocket frame.
type Message struct {
	Command     string          `json:"command"`
	Ack         bool            `json:"ack"`
	Data        json.RawMessage `json:"data"`
	RequestID   string          `json:"request_id"`
	Destination string          `json:"destination"`
	Origin      string          `json:"origin"`
}

// FarmingInfo is the payload of new_farming_info.
type FarmingInfo struct {
	ChallengeHash string `json:"challenge_hash"`
	SignagePoint  string `json:"signage_point"`
	PassedFilter  int64  `json:"passed_filter"`
	Proofs        int64  `json:"proofs"`
	TotalPlots    int64  `json:"total_plots"`
	Timestamp     int64  `json:"timestamp"`
}

// SignagePoint is the payload of new_signage_point.
type SignagePoint struct {
	ChallengeHash     string `json:"challenge_hash"`
	ChallengeChainSP  string `json:"challenge_chain_sp"`
	SignagePointIndex int64  `json:"signage_point_index"`
}

// Daemon is a websocket connection to the Chia daemon.
type Daemon struct {
	conn *websocket.Conn

	closeOnce sync.Once
	closeErr  error
}

// DialDaemon connects to wss://endpoint.
func DialDaemon(ctx context.Context, endpoint string, tlsConfig *tls.Config) (*Daemon, error) {
	return DialDaemonURL(ctx, "wss://"+endpoint, tlsConfig)
}

// DialDaemonURL connects to a daemon websocket URL.
func DialDaemonURL(ctx context.Context, url string, tlsConfig *tls.Config) (*Daemon, error) {
	dialer := websocket.Dialer{
		TLSClientConfig:  tlsConfig,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing daemon: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)
	return &Daemon{conn: conn}, nil
}

// Register subscribes this connection to pushes for service and waits for
// the daemon's acknowledgement.
func (d *Daemon) Register(ctx context.Context, service string) error {
	data, err := json.Marshal(map[string]string{"service": service})
	if err != nil {
		return err
	}
	msg := Message{
		Command:     CommandRegisterService,
		Data:        data,
		RequestID:   requestID(),
		Destination: "daemon",
		Origin:      "client",
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = d.conn.SetWriteDeadline(deadline)
		_ = d.conn.SetReadDeadline(deadline)
		defer func() {
			_ = d.conn.SetWriteDeadline(time.Time{})
			_ = d.conn.SetReadDeadline(time.Time{})
		}()
	}
	if err := d.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("sending %s: %w", CommandRegisterService, err)
	}

	reply, err := d.Read()
	if err != nil {
		return fmt.Errorf("awaiting %s reply: %w", CommandRegisterService, err)
	}
	var ack struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(reply.Data, &ack); err != nil {
		return fmt.Errorf("decoding %s reply: %w", CommandRegisterService, err)
	}
	if !ack.Success {
		return fmt.Errorf("%w: %s rejected: %s", ErrRPC, CommandRegisterService, ack.Error)
	}
	return nil
}

// Read blocks for the next frame. Any error means the connection is unusable.
func (d *Daemon) Read() (Message, error) {
	var msg Message
	_, data, err := d.conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, &DecodeError{Err: err}
	}
	return msg, nil
}

// DecodeError reports a frame that arrived intact but was not valid JSON.
// The connection remains usable.
type DecodeError struct{ Err error }

func (e *DecodeError) Error() string { return "decoding daemon message: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Close sends a close frame and closes the connection. It is safe to call
// more than once.
func (d *Daemon) Close() error {
	d.closeOnce.Do(func() {
		_ = d.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		d.closeErr = d.conn.Close()
	})
	return d.closeErr
}

func requestID() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// DecodeFarmingInfo extracts the farming info payload of a new_farming_info frame.
func DecodeFarmingInfo(msg Message) (FarmingInfo, error) {
	var payload struct {
		FarmingInfo FarmingInfo `json:"farming_info"`
	}
	err := json.Unmarshal(msg.Data, &payload)
	return payload.FarmingInfo, err
}

// DecodeSignagePoint extracts the signage point payload of a new_signage_point frame.
func DecodeSignagePoint(msg Message) (SignagePoint, error) {
	var payload struct {
		SignagePoint SignagePoint `json:"signage_point"`
	}
	err := json.Unmarshal(msg.Data, &payload)
	return payload.SignagePoint, err
}
