package types

// EventKind identifies an Event variant. Values double as history table prefixes.
type EventKind string

// EventKind values enumerate every event the collectors can produce.
const (
	KindHarvesterPlots  EventKind = "harvester_plots"
	KindConnections     EventKind = "connections"
	KindBlockchainState EventKind = "blockchain_state"
	KindWalletBalance   EventKind = "wallet_balance"
	KindSignagePoint    EventKind = "signage_point"
	KindFarmingInfo     EventKind = "farming_info"
	KindPoolState       EventKind = "pool_state"
	KindPrice           EventKind = "price"
)

// AllKinds lists every EventKind in a stable order.
var AllKinds = []EventKind{
	KindHarvesterPlots,
	KindConnections,
	KindBlockchainState,
	KindWalletBalance,
	KindSignagePoint,
	KindFarmingInfo,
	KindPoolState,
	KindPrice,
}

// NodeType is the peer type reported by a Chia service's get_connections endpoint.
type NodeType int

// NodeType values as defined by the Chia protocol.
const (
	NodeFullNode   NodeType = 1
	NodeHarvester  NodeType = 2
	NodeFarmer     NodeType = 3
	NodeTimelord   NodeType = 4
	NodeIntroducer NodeType = 5
	NodeWallet     NodeType = 6
)

// String returns the lowercase peer type name used as a metric label.
func (n NodeType) String() string {
	switch n {
	case NodeFullNode:
		return "full_node"
	case NodeHarvester:
		return "harvester"
	case NodeFarmer:
		return "farmer"
	case NodeTimelord:
		return "timelord"
	case NodeIntroducer:
		return "introducer"
	case NodeWallet:
		return "wallet"
	default:
		return "unknown"
	}
}

// PlotType distinguishes pool-bound (OG) plots from pool-agnostic (portable) plots.
type PlotType string

// PlotType values used as the "type" metric label.
const (
	PlotOG       PlotType = "OG"
	PlotPortable PlotType = "portable"
)

// ChannelName identifies one of the two notification channels.
type ChannelName string

// ChannelName values.
const (
	ChannelStatus ChannelName = "status"
	ChannelAlert  ChannelName = "alert"
)
