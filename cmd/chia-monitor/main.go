package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/chia-monitor/internal/commands"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "chia-monitor",
		Short: "Monitoring and notifications for a Chia farm",
		Long: `chia-monitor follows a Chia full node, farmer, harvesters and wallet over RPC
and the daemon websocket, exports what it sees as Prometheus metrics, keeps a
history of every event and sends status reports and alerts to the configured
notification channels.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", commands.DefaultConfigPath, "path to the config file")

	root.AddCommand(
		commands.NewRunCmd(&configPath, version),
		commands.NewMigrateCmd(&configPath),
		commands.NewNotifyTestCmd(&configPath),
		commands.NewStatusCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
