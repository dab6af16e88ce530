// Package types defines the public domain types for the chia-monitor farming monitor.
package types

import "time"

// Event is a single observation of the farm. The set of variants is closed:
// every implementation lives in this package and consumers handle them
// exhaustively through EventVisitor.
type Event interface {
	Kind() EventKind
	Time() time.Time
	Visit(v EventVisitor) error
	sealed()
}

// EventVisitor handles each Event variant. Adding a variant adds a method here,
// so every sink that fails to handle it stops compiling.
type EventVisitor interface {
	VisitHarvesterPlots(HarvesterPlots) error
	VisitConnections(Connections) error
	VisitBlockchainState(BlockchainState) error
	VisitWalletBalance(WalletBalance) error
	VisitSignagePoint(SignagePoint) error
	VisitFarmingInfo(FarmingInfo) error
	VisitPoolState(PoolState) error
	VisitPrice(Price) error
}

// HarvesterPlots reports the plots a single harvester has loaded.
type HarvesterPlots struct {
	Timestamp         time.Time `json:"ts"`
	Host              string    `json:"host"`
	OGPlotCount       int64     `json:"ogPlotCount"`
	OGPlotSize        int64     `json:"ogPlotSize"`
	PortablePlotCount int64     `json:"portablePlotCount"`
	PortablePlotSize  int64     `json:"portablePlotSize"`
}

// Connections reports peer counts seen by the full node and farmer.
type Connections struct {
	Timestamp      time.Time `json:"ts"`
	FullNodeCount  int64     `json:"fullNodeCount"`
	FarmerCount    int64     `json:"farmerCount"`
	WalletCount    int64     `json:"walletCount"`
	HarvesterCount int64     `json:"harvesterCount"`
}

// BlockchainState reports the full node's view of the chain. Space is a
// decimal string because netspace in bytes exceeds int64.
type BlockchainState struct {
	Timestamp   time.Time `json:"ts"`
	Space       string    `json:"space"`
	Difficulty  int64     `json:"difficulty"`
	PeakHeight  int64     `json:"peakHeight"`
	Synced      bool      `json:"synced"`
	MempoolSize int64     `json:"mempoolSize"`
}

// WalletBalance reports wallet totals in mojos as decimal strings.
type WalletBalance struct {
	Timestamp time.Time `json:"ts"`
	Confirmed string    `json:"confirmed"`
	Farmed    string    `json:"farmed"`
}

// SignagePoint is pushed by the farmer for each new signage point.
type SignagePoint struct {
	Timestamp         time.Time `json:"ts"`
	ChallengeHash     string    `json:"challengeHash"`
	SignagePoint      string    `json:"signagePoint"`
	SignagePointIndex int64     `json:"signagePointIndex"`
}

// FarmingInfo is pushed once per harvester response to a signage point.
// LookupTime is zero when the signage point arrival was not observed.
type FarmingInfo struct {
	Timestamp     time.Time     `json:"ts"`
	ChallengeHash string        `json:"challengeHash"`
	SignagePoint  string        `json:"signagePoint"`
	PassedFilter  int64         `json:"passedFilter"`
	Proofs        int64         `json:"proofs"`
	TotalPlots    int64         `json:"totalPlots"`
	LookupTime    time.Duration `json:"lookupTime"`
}

// PoolState reports the farmer's standing with one pool.
type PoolState struct {
	Timestamp                    time.Time `json:"ts"`
	P2SingletonPuzzleHash        string    `json:"p2SingletonPuzzleHash"`
	PoolURL                      string    `json:"poolUrl"`
	CurrentPoints                int64     `json:"currentPoints"`
	CurrentDifficulty            int64     `json:"currentDifficulty"`
	PointsFoundSinceStart        int64     `json:"pointsFoundSinceStart"`
	PointsAcknowledgedSinceStart int64     `json:"pointsAcknowledgedSinceStart"`
	PointsFound24h               int64     `json:"pointsFound24h"`
	PointsAcknowledged24h        int64     `json:"pointsAcknowledged24h"`
	PoolErrors24h                int64     `json:"poolErrors24h"`
}

// Price is the XCH spot price in the smallest unit of each quote currency.
type Price struct {
	Timestamp  time.Time `json:"ts"`
	USDCents   int64     `json:"usdCents"`
	EURCents   int64     `json:"eurCents"`
	BTCSatoshi int64     `json:"btcSatoshi"`
	ETHGwei    int64     `json:"ethGwei"`
}

func (e HarvesterPlots) Kind() EventKind            { return KindHarvesterPlots }
func (e HarvesterPlots) Time() time.Time            { return e.Timestamp }
func (e HarvesterPlots) Visit(v EventVisitor) error { return v.VisitHarvesterPlots(e) }
func (HarvesterPlots) sealed()                      {}

func (e Connections) Kind() EventKind            { return KindConnections }
func (e Connections) Time() time.Time            { return e.Timestamp }
func (e Connections) Visit(v EventVisitor) error { return v.VisitConnections(e) }
func (Connections) sealed()                      {}

func (e BlockchainState) Kind() EventKind            { return KindBlockchainState }
func (e BlockchainState) Time() time.Time            { return e.Timestamp }
func (e BlockchainState) Visit(v EventVisitor) error { return v.VisitBlockchainState(e) }
func (BlockchainState) sealed()                      {}

func (e WalletBalance) Kind() EventKind            { return KindWalletBalance }
func (e WalletBalance) Time() time.Time            { return e.Timestamp }
func (e WalletBalance) Visit(v EventVisitor) error { return v.VisitWalletBalance(e) }
func (WalletBalance) sealed()                      {}

func (e SignagePoint) Kind() EventKind            { return KindSignagePoint }
func (e SignagePoint) Time() time.Time            { return e.Timestamp }
func (e SignagePoint) Visit(v EventVisitor) error { return v.VisitSignagePoint(e) }
func (SignagePoint) sealed()                      {}

func (e FarmingInfo) Kind() EventKind            { return KindFarmingInfo }
func (e FarmingInfo) Time() time.Time            { return e.Timestamp }
func (e FarmingInfo) Visit(v EventVisitor) error { return v.VisitFarmingInfo(e) }
func (FarmingInfo) sealed()                      {}

func (e PoolState) Kind() EventKind            { return KindPoolState }
func (e PoolState) Time() time.Time            { return e.Timestamp }
func (e PoolState) Visit(v EventVisitor) error { return v.VisitPoolState(e) }
func (PoolState) sealed()                      {}

func (e Price) Kind() EventKind            { return KindPrice }
func (e Price) Time() time.Time            { return e.Timestamp }
func (e Price) Visit(v EventVisitor) error { return v.VisitPrice(e) }
func (Price) sealed()                      {}

// PlotStats aggregates plot counts and sizes (bytes) across harvesters.
type PlotStats struct {
	OGCount       int64 `json:"ogCount"`
	OGSize        int64 `json:"ogSize"`
	PortableCount int64 `json:"portableCount"`
	PortableSize  int64 `json:"portableSize"`
}

// Count returns the total plot count.
func (p PlotStats) Count() int64 { return p.OGCount + p.PortableCount }

// Size returns the total plot size in bytes.
func (p PlotStats) Size() int64 { return p.OGSize + p.PortableSize }

// Sub returns p minus o field by field.
func (p PlotStats) Sub(o PlotStats) PlotStats {
	return PlotStats{
		OGCount:       p.OGCount - o.OGCount,
		OGSize:        p.OGSize - o.OGSize,
		PortableCount: p.PortableCount - o.PortableCount,
		PortableSize:  p.PortableSize - o.PortableSize,
	}
}
