package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

const (
	natsConnectTimeout = 5 * time.Second
	natsFlushTimeout   = 5 * time.Second
)

// NATSConn is the subset of *nats.Conn used by NATSDestination.
type NATSConn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// DialNATS connects to a NATS server with reconnects enabled.
func DialNATS(url string) (NATSConn, error) {
	nc, err := nats.Connect(url,
		nats.Name("chia-monitor"),
		nats.Timeout(natsConnectTimeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return nc, nil
}

// NATSDestination publishes notifications as JSON on a subject.
type NATSDestination struct {
	conn    NATSConn
	subject string
}

// NewNATSDestination connects to server and creates the destination.
func NewNATSDestination(server, subject string, connect func(string) (NATSConn, error)) (*NATSDestination, error) {
	if subject == "" {
		return nil, fmt.Errorf("NATS subject required")
	}
	conn, err := connect(server)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS %s: %w", server, err)
	}
	return &NATSDestination{conn: conn, subject: subject}, nil
}

// Name returns the destination identifier.
func (d *NATSDestination) Name() string { return SchemeNATS }

// Send publishes the notification and waits for the server to acknowledge
// the flush.
func (d *NATSDestination) Send(ctx context.Context, n types.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}
	if err := d.conn.Publish(d.subject, data); err != nil {
		return fmt.Errorf("publishing to NATS: %w", err)
	}
	// FlushWithContext refuses contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, natsFlushTimeout)
		defer cancel()
	}
	if err := d.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flushing NATS: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (d *NATSDestination) Close() error {
	d.conn.Close()
	return nil
}
