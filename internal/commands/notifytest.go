package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/chia-monitor/internal/notify"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

const notifyTestTimeout = 30 * time.Second

// NewNotifyTestCmd creates the notify-test command.
func NewNotifyTestCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test message through the status and alert channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifyTest(cmd.Context(), *configPath)
		},
	}
}

func runNotifyTest(ctx context.Context, configPath string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, notifyTestTimeout)
	defer cancel()

	chans, err := newChannels(ctx, cfg.Notifier, &notify.Clients{}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = chans.Close() }()
	return sendTestMessages(ctx, chans)
}

func sendTestMessages(ctx context.Context, chans channels) error {
	failed := 0
	for _, name := range []types.ChannelName{types.ChannelStatus, types.ChannelAlert} {
		ch := chans.byName()[name]
		if ch.Notify(ctx, "** 🧪 Test notification 🧪 **", fmt.Sprintf("This is a test message on the %s channel", name)) {
			color.Green("✓ %s channel delivered", name)
			continue
		}
		failed++
		color.Red("✗ %s channel failed, see log for details", name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of 2 channels failed to deliver", failed)
	}
	return nil
}
