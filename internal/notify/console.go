package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// ConsoleDestination writes notifications to the terminal with color.
type ConsoleDestination struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleDestination creates a console destination writing to w, or to
// stdout when w is nil.
func NewConsoleDestination(w io.Writer) *ConsoleDestination {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleDestination{w: w}
}

// Name returns the destination identifier.
func (d *ConsoleDestination) Name() string { return SchemeConsole }

// Send writes the notification with a channel-colored prefix.
func (d *ConsoleDestination) Send(_ context.Context, n types.Notification) error {
	var prefix string
	switch n.Channel {
	case types.ChannelAlert:
		prefix = color.RedString("[ALERT]")
	default:
		prefix = color.CyanString("[STATUS]")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := fmt.Fprintf(d.w, "%s %s\n%s\n", prefix, n.Title, n.Body)
	return err
}
