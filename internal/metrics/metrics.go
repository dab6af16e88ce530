// Package metrics projects farm events onto Prometheus gauges, counters and
// histograms. A Sink owns its own registry; there are no package globals.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dwsmith1983/chia-monitor/internal/format"
	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

var _ types.EventVisitor = (*Sink)(nil)

// lookupBuckets spans fast SSD lookups to the 30s signage point deadline.
var lookupBuckets = []float64{
	.01, .02, .03, .04, .05, .06, .07, .08, .09, .1,
	.2, .3, .4, .5, .6, .7, .8, .9, 1.0,
	1.5, 2.0, 2.5, 3.0, 4.0, 5.0, 7.5, 10.0, 15.0, 20.0, 30.0,
}

// Sink updates Prometheus metrics from events. It is driven by the single
// dispatcher goroutine and is not safe for concurrent Visit calls.
type Sink struct {
	registry *prometheus.Registry

	// Wallet
	confirmedMojos prometheus.Gauge
	farmedMojos    prometheus.Gauge

	// Full node
	networkSpace prometheus.Gauge
	difficulty   prometheus.Gauge
	peakHeight   prometheus.Gauge
	syncStatus   prometheus.Gauge
	connections  *prometheus.GaugeVec
	mempoolSize  prometheus.Gauge

	// Harvester
	plotCount *prometheus.GaugeVec
	plotSize  *prometheus.GaugeVec

	// Farmer
	signagePoints     prometheus.Counter
	signagePointIndex prometheus.Gauge
	blockChallenges   prometheus.Counter
	passedFilter      prometheus.Counter
	proofsFound       prometheus.Counter
	lookupTime        prometheus.Histogram

	// Pool
	poolPoints             *prometheus.GaugeVec
	poolDifficulty         *prometheus.GaugeVec
	poolPointsFound        *prometheus.GaugeVec
	poolPointsAcknowledged *prometheus.GaugeVec
	poolPointsFound24h     *prometheus.GaugeVec
	poolPointsAcked24h     *prometheus.GaugeVec
	poolErrors24h          *prometheus.GaugeVec

	// Price
	priceUSD prometheus.Gauge
	priceEUR prometheus.Gauge
	priceBTC prometheus.Gauge
	priceETH prometheus.Gauge
}

// New creates a Sink registering every metric on a fresh registry, together
// with the Go runtime and process collectors.
func New() *Sink {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	poolLabels := []string{"p2", "url"}

	return &Sink{
		registry: reg,

		confirmedMojos: f.NewGauge(prometheus.GaugeOpts{Name: "chia_confirmed_total_mojos", Help: "Sum of confirmed wallet balances"}),
		farmedMojos:    f.NewGauge(prometheus.GaugeOpts{Name: "chia_farmed_total_mojos", Help: "Total farmed amount"}),

		networkSpace: f.NewGauge(prometheus.GaugeOpts{Name: "chia_network_space", Help: "Approximation of current netspace in bytes"}),
		difficulty:   f.NewGauge(prometheus.GaugeOpts{Name: "chia_diffculty", Help: "Current network difficulty"}),
		peakHeight:   f.NewGauge(prometheus.GaugeOpts{Name: "chia_peak_height", Help: "Block height of the current peak"}),
		syncStatus:   f.NewGauge(prometheus.GaugeOpts{Name: "chia_sync_status", Help: "Sync status of the full node"}),
		connections:  f.NewGaugeVec(prometheus.GaugeOpts{Name: "chia_connections_count", Help: "Open connections by peer type"}, []string{"type"}),
		mempoolSize:  f.NewGauge(prometheus.GaugeOpts{Name: "chia_mempool_size", Help: "Number of transactions in the mempool"}),

		plotCount: f.NewGaugeVec(prometheus.GaugeOpts{Name: "chia_plot_count", Help: "Plots loaded by a harvester"}, []string{"host", "type"}),
		plotSize:  f.NewGaugeVec(prometheus.GaugeOpts{Name: "chia_plot_size", Help: "Size of plots loaded by a harvester in bytes"}, []string{"host", "type"}),

		signagePoints:     f.NewCounter(prometheus.CounterOpts{Name: "chia_signage_points", Help: "Received signage points"}),
		signagePointIndex: f.NewGauge(prometheus.GaugeOpts{Name: "chia_signage_point_index", Help: "Index of the latest signage point"}),
		blockChallenges:   f.NewCounter(prometheus.CounterOpts{Name: "chia_block_challenges", Help: "Attempted block challenges"}),
		passedFilter:      f.NewCounter(prometheus.CounterOpts{Name: "chia_plots_passed_filter", Help: "Plots that passed the filter"}),
		proofsFound:       f.NewCounter(prometheus.CounterOpts{Name: "chia_proofs_found", Help: "Proofs found"}),
		lookupTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chia_lookup_time_seconds",
			Help:    "Time between a signage point and the harvester response",
			Buckets: lookupBuckets,
		}),

		poolPoints:             f.NewGaugeVec(prometheus.GaugeOpts{Name: "chia_current_pool_points", Help: "Current points with the pool"}, poolLabels),
		poolDifficulty:         f.NewGaugeVec(prometheus.GaugeOpts{Name: "chia_current_pool_difficulty", Help: "Current pool difficulty"}, poolLabels),
		poolPointsFound:        f.NewGaugeVec(prometheus.GaugeOpts{Name: "chia_pool_points_found_since_start", Help: "Points found since start"}, poolLabels),
		poolPointsAcknowledged: f.NewGaugeVec(prometheus.GaugeOpts{Name: "chia_pool_points_acknowledged_since_start", Help: "Points acknowledged since start"}, poolLabels),
		poolPointsFound24h:     f.NewGaugeVec(prometheus.GaugeOpts{Name: "chia_pool_points_found_24h", Help: "Points found in the last 24h"}, poolLabels),
		poolPointsAcked24h:     f.NewGaugeVec(prometheus.GaugeOpts{Name: "chia_pool_points_acknowledged_24h", Help: "Points acknowledged in the last 24h"}, poolLabels),
		poolErrors24h:          f.NewGaugeVec(prometheus.GaugeOpts{Name: "chia_num_pool_errors_24h", Help: "Pool errors in the last 24h"}, poolLabels),

		priceUSD: f.NewGauge(prometheus.GaugeOpts{Name: "chia_price_usd_cent", Help: "XCH price in USD cents"}),
		priceEUR: f.NewGauge(prometheus.GaugeOpts{Name: "chia_price_eur_cent", Help: "XCH price in EUR cents"}),
		priceBTC: f.NewGauge(prometheus.GaugeOpts{Name: "chia_price_btc_satoshi", Help: "XCH price in satoshi"}),
		priceETH: f.NewGauge(prometheus.GaugeOpts{Name: "chia_price_eth_gwei", Help: "XCH price in gwei"}),
	}
}

// Registry returns the registry backing the sink, for the scrape handler.
func (s *Sink) Registry() *prometheus.Registry { return s.registry }

func (s *Sink) VisitHarvesterPlots(e types.HarvesterPlots) error {
	s.plotCount.WithLabelValues(e.Host, string(types.PlotOG)).Set(float64(e.OGPlotCount))
	s.plotCount.WithLabelValues(e.Host, string(types.PlotPortable)).Set(float64(e.PortablePlotCount))
	s.plotSize.WithLabelValues(e.Host, string(types.PlotOG)).Set(float64(e.OGPlotSize))
	s.plotSize.WithLabelValues(e.Host, string(types.PlotPortable)).Set(float64(e.PortablePlotSize))
	return nil
}

func (s *Sink) VisitConnections(e types.Connections) error {
	s.connections.WithLabelValues(types.NodeFullNode.String()).Set(float64(e.FullNodeCount))
	s.connections.WithLabelValues(types.NodeFarmer.String()).Set(float64(e.FarmerCount))
	s.connections.WithLabelValues(types.NodeWallet.String()).Set(float64(e.WalletCount))
	s.connections.WithLabelValues(types.NodeHarvester.String()).Set(float64(e.HarvesterCount))
	return nil
}

func (s *Sink) VisitBlockchainState(e types.BlockchainState) error {
	s.networkSpace.Set(format.ParseFloat(e.Space))
	s.difficulty.Set(float64(e.Difficulty))
	s.peakHeight.Set(float64(e.PeakHeight))
	s.syncStatus.Set(boolToFloat(e.Synced))
	s.mempoolSize.Set(float64(e.MempoolSize))
	return nil
}

func (s *Sink) VisitWalletBalance(e types.WalletBalance) error {
	s.confirmedMojos.Set(format.ParseFloat(e.Confirmed))
	s.farmedMojos.Set(format.ParseFloat(e.Farmed))
	return nil
}

func (s *Sink) VisitSignagePoint(e types.SignagePoint) error {
	s.signagePoints.Inc()
	s.signagePointIndex.Set(float64(e.SignagePointIndex))
	return nil
}

func (s *Sink) VisitFarmingInfo(e types.FarmingInfo) error {
	s.blockChallenges.Inc()
	if e.PassedFilter > 0 {
		s.passedFilter.Add(float64(e.PassedFilter))
	}
	if e.Proofs > 0 {
		s.proofsFound.Add(float64(e.Proofs))
	}
	if e.LookupTime > 0 {
		s.lookupTime.Observe(e.LookupTime.Seconds())
	}
	return nil
}

func (s *Sink) VisitPoolState(e types.PoolState) error {
	p2, url := e.P2SingletonPuzzleHash, e.PoolURL
	s.poolPoints.WithLabelValues(p2, url).Set(float64(e.CurrentPoints))
	s.poolDifficulty.WithLabelValues(p2, url).Set(float64(e.CurrentDifficulty))
	s.poolPointsFound.WithLabelValues(p2, url).Set(float64(e.PointsFoundSinceStart))
	s.poolPointsAcknowledged.WithLabelValues(p2, url).Set(float64(e.PointsAcknowledgedSinceStart))
	s.poolPointsFound24h.WithLabelValues(p2, url).Set(float64(e.PointsFound24h))
	s.poolPointsAcked24h.WithLabelValues(p2, url).Set(float64(e.PointsAcknowledged24h))
	s.poolErrors24h.WithLabelValues(p2, url).Set(float64(e.PoolErrors24h))
	return nil
}

func (s *Sink) VisitPrice(e types.Price) error {
	s.priceUSD.Set(float64(e.USDCents))
	s.priceEUR.Set(float64(e.EURCents))
	s.priceBTC.Set(float64(e.BTCSatoshi))
	s.priceETH.Set(float64(e.ETHGwei))
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
