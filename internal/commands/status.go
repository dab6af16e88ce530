package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/chia-monitor/internal/format"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// statusPlotWindow bounds how old harvester reports may be to count.
const statusPlotWindow = 5 * time.Minute

// statusReader is the slice of the history store the status command reads.
type statusReader interface {
	LatestBlockchainState(ctx context.Context) (*types.BlockchainState, error)
	LatestWalletBalance(ctx context.Context) (*types.WalletBalance, error)
	LatestConnections(ctx context.Context) (*types.Connections, error)
	PlotStats(ctx context.Context, since time.Time) (*types.PlotStats, error)
	ProofsFound(ctx context.Context) (*int64, error)
}

// NewStatusCmd creates the status command.
func NewStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the latest recorded farm state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), *configPath, os.Stdout)
		},
	}
}

func runStatus(ctx context.Context, configPath string, w io.Writer) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg.History, false, logger)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer func() { _ = store.Close() }()

	return printStatus(ctx, w, store, time.Now())
}

func printStatus(ctx context.Context, w io.Writer, store statusReader, now time.Time) error {
	bold := color.New(color.Bold)

	bs, err := store.LatestBlockchainState(ctx)
	if err != nil {
		return fmt.Errorf("reading blockchain state: %w", err)
	}
	wallet, err := store.LatestWalletBalance(ctx)
	if err != nil {
		return fmt.Errorf("reading wallet balance: %w", err)
	}
	conns, err := store.LatestConnections(ctx)
	if err != nil {
		return fmt.Errorf("reading connections: %w", err)
	}
	plots, err := store.PlotStats(ctx, now.Add(-statusPlotWindow))
	if err != nil {
		return fmt.Errorf("reading plots: %w", err)
	}
	proofs, err := store.ProofsFound(ctx)
	if err != nil {
		return fmt.Errorf("reading proofs: %w", err)
	}

	_, _ = bold.Fprintln(w, "Blockchain:")
	if bs == nil {
		_, _ = color.New(color.FgYellow).Fprintln(w, "  no data recorded")
	} else {
		synced := color.GreenString("SYNCED")
		if !bs.Synced {
			synced = color.RedString("NOT SYNCED")
		}
		fmt.Fprintf(w, "  %s  (%s)\n", synced, bs.Timestamp.Format(time.RFC3339))
		fmt.Fprintf(w, "  %s\n  %s\n  %s\n  %s\n",
			format.PeakHeight(bs.PeakHeight), format.Space(bs.Space),
			format.Difficulty(bs.Difficulty), format.MempoolSize(bs.MempoolSize))
	}
	fmt.Fprintln(w)

	_, _ = bold.Fprintln(w, "Farm:")
	if plots == nil {
		_, _ = color.New(color.FgYellow).Fprintln(w, "  no recent harvester reports")
	} else {
		fmt.Fprintf(w, "  %s\n  %s\n  %s\n  %s\n",
			format.OGPlotCount(plots.OGCount), format.OGPlotSize(plots.OGSize),
			format.PortablePlotCount(plots.PortableCount), format.PortablePlotSize(plots.PortableSize))
	}
	if proofs != nil {
		fmt.Fprintf(w, "  %s\n", format.Proofs(*proofs))
	}
	fmt.Fprintln(w)

	_, _ = bold.Fprintln(w, "Wallet:")
	if wallet == nil {
		_, _ = color.New(color.FgYellow).Fprintln(w, "  no data recorded")
	} else {
		fmt.Fprintf(w, "  %s\n  %s\n",
			format.Balance(format.ParseInt(wallet.Confirmed)), format.Farmed(format.ParseInt(wallet.Farmed)))
	}
	fmt.Fprintln(w)

	_, _ = bold.Fprintln(w, "Connections:")
	if conns == nil {
		_, _ = color.New(color.FgYellow).Fprintln(w, "  no data recorded")
	} else {
		for _, p := range []struct {
			label string
			n     int64
		}{
			{"Full Node", conns.FullNodeCount},
			{"Farmer", conns.FarmerCount},
			{"Wallet", conns.WalletCount},
			{"Harvester", conns.HarvesterCount},
		} {
			fmt.Fprintf(w, "  %s\n", format.PeerCount(p.n, p.label))
		}
	}
	return nil
}
