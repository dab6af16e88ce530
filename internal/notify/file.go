package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// FileDestination appends notifications as JSON lines to a file.
type FileDestination struct {
	path string
	mu   sync.Mutex
}

// NewFileDestination creates a file destination after checking the file is
// writable.
func NewFileDestination(path string) (*FileDestination, error) {
	if path == "" {
		return nil, fmt.Errorf("file path required")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening notification file: %w", err)
	}
	_ = f.Close()

	return &FileDestination{path: path}, nil
}

// Name returns the destination identifier.
func (d *FileDestination) Name() string { return SchemeFile }

// Send appends the notification as a JSON line.
func (d *FileDestination) Send(_ context.Context, n types.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.OpenFile(d.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = f.Write(append(data, '\n'))
	return err
}
