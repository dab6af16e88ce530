// Package format renders farm statistics as short human-readable lines for
// logs and notifications.
package format

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	tib          = 1 << 40
	pib          = 1 << 50
	mojosPerXCH  = 1e12
	sectionBreak = "----------------------------------------------------------------"
)

// Separator is the line printed between logged events.
func Separator() string { return sectionBreak }

// TiB converts bytes to tebibytes.
func TiB(bytes int64) float64 { return float64(bytes) / tib }

// XCH renders mojos as XCH with five decimals.
func XCH(mojos *big.Int) string {
	if mojos == nil {
		return "0.00000"
	}
	f := new(big.Float).SetInt(mojos)
	f.Quo(f, big.NewFloat(mojosPerXCH))
	return f.Text('f', 5)
}

// ParseInt parses a decimal string into a big.Int; invalid input yields nil.
func ParseInt(s string) *big.Int {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil
	}
	return v
}

// ParseFloat parses a decimal string; invalid input yields 0.
func ParseFloat(s string) float64 {
	f, ok := new(big.Float).SetString(strings.TrimSpace(s))
	if !ok {
		return 0
	}
	v, _ := f.Float64()
	return v
}

func PlotCount(n int64) string         { return fmt.Sprintf("🌾 Plot Count: %d", n) }
func OGPlotCount(n int64) string       { return fmt.Sprintf("🌾 OG Plot Count: %d", n) }
func PortablePlotCount(n int64) string { return fmt.Sprintf("🌾 Portable Plot Count: %d", n) }

func OGPlotSize(bytes int64) string { return fmt.Sprintf("🧺 OG Plot Size: %.3f TiB", TiB(bytes)) }
func PortablePlotSize(bytes int64) string {
	return fmt.Sprintf("🧺 Portable Plot Size: %.3f TiB", TiB(bytes))
}

// PlotDelta24h renders the plot count and size change over the last day.
func PlotDelta24h(count, size int64) string {
	return fmt.Sprintf("🚜 Plot Change 24h: %+d (%+.3f TiB)", count, TiB(size))
}

func Balance(mojos *big.Int) string { return fmt.Sprintf("💰 Total Balance: %s XCH", XCH(mojos)) }
func Farmed(mojos *big.Int) string  { return fmt.Sprintf("🚜 Total Farmed: %s XCH", XCH(mojos)) }

// Payment renders a received amount.
func Payment(mojos *big.Int) string { return fmt.Sprintf("🌱 +%s XCH", XCH(mojos)) }

// Space renders netspace, given in bytes as a decimal string, in PiB.
func Space(space string) string {
	return fmt.Sprintf("💾 Current Netspace: %.3f PiB", ParseFloat(space)/pib)
}

func Difficulty(d int64) string  { return fmt.Sprintf("📈 Farming Difficulty: %d", d) }
func PeakHeight(h int64) string  { return fmt.Sprintf("🏔️ Peak Height: %d", h) }
func Synced(s bool) string       { return fmt.Sprintf("🔄 Synced: %t", s) }
func MempoolSize(n int64) string { return fmt.Sprintf("🪣 Mempool Size: %d", n) }

// PeerCount renders a connection count; label names the peer type.
func PeerCount(n int64, label string) string {
	if label == "" {
		return fmt.Sprintf("📶 Peer Count: %d", n)
	}
	return fmt.Sprintf("📶 %s Count: %d", label, n)
}

func Hostname(host string) string       { return fmt.Sprintf("🖥️ Host: %s", host) }
func ChallengeHash(h string) string     { return fmt.Sprintf("🎰 Challenge Hash: %s", h) }
func SignagePoint(sp string) string     { return fmt.Sprintf("⌛ Signage Point: %s", sp) }
func SignagePointIndex(i int64) string  { return fmt.Sprintf("🔏 Signage Point Index: %d", i) }
func PassedFilter(n int64) string       { return fmt.Sprintf("🔎 Passed Filter: %d", n) }
func Proofs(n int64) string             { return fmt.Sprintf("✅ Proofs found: %d", n) }
func LookupTime(d time.Duration) string { return fmt.Sprintf("⏱️ Lookup Time: %.2fs", d.Seconds()) }

func SignagePointsPerMinute(r float64) string {
	return fmt.Sprintf("⌛ Signage Points Per Minute: %.2f", r)
}

func PassedFiltersPerMinute(r float64) string {
	return fmt.Sprintf("🔎 Passed Filters Per Minute: %.2f", r)
}

// ExpectedTimeToWin renders an estimate given in minutes. Negative means unknown.
func ExpectedTimeToWin(minutes int64) string {
	if minutes < 0 {
		return "🕰️ Expected Time To Win: never"
	}
	return fmt.Sprintf("🕰️ Expected Time To Win: %s", Minutes(minutes))
}

// Duration renders d as days, hours and minutes, omitting leading zero units.
func Duration(d time.Duration) string {
	return Minutes(int64(d.Round(time.Minute) / time.Minute))
}

// Minutes renders a minute count as days, hours and minutes. Counts beyond
// the range of time.Duration render without overflow.
func Minutes(total int64) string {
	if total < 0 {
		total = 0
	}
	days := total / (24 * 60)
	hours := total % (24 * 60) / 60
	minutes := total % 60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 || len(parts) == 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	return strings.Join(parts, " ")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func CurrentPoints(n int64) string         { return fmt.Sprintf("📊 Current Points: %d", n) }
func PoolDifficulty(n int64) string        { return fmt.Sprintf("📈 Pool Difficulty: %d", n) }
func PointsFound(n int64) string           { return fmt.Sprintf("🔍 Points Found: %d", n) }
func PointsAcknowledged(n int64) string    { return fmt.Sprintf("👍 Points Acknowledged: %d", n) }
func PointsFound24h(n int64) string        { return fmt.Sprintf("🔍 Points Found 24h: %d", n) }
func PointsAcknowledged24h(n int64) string { return fmt.Sprintf("👍 Points Acknowledged 24h: %d", n) }
func PoolErrors24h(n int64) string         { return fmt.Sprintf("❗ Pool Errors 24h: %d", n) }

// Price renders an amount given in the smallest unit of currency, where
// scale is the number of smallest units per whole unit.
func Price(amount int64, scale float64, currency string) string {
	return fmt.Sprintf("💲 Price: %.*f %s", decimals(scale), float64(amount)/scale, currency)
}

func decimals(scale float64) int {
	n := 0
	for s := scale; s >= 10; s /= 10 {
		n++
	}
	return n
}
