package format

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestXCH(t *testing.T) {
	assert.Equal(t, "1.50000", XCH(big.NewInt(1_500_000_000_000)))
	assert.Equal(t, "0.00000", XCH(nil))

	large, ok := new(big.Int).SetString("123456789000000000000", 10)
	assert.True(t, ok)
	assert.Equal(t, "123456789.00000", XCH(large))
}

func TestParseInt(t *testing.T) {
	assert.Equal(t, "18446744073709551616", ParseInt("18446744073709551616").String())
	assert.Nil(t, ParseInt("abc"))
	assert.Nil(t, ParseInt(""))
}

func TestSizes(t *testing.T) {
	assert.Equal(t, "🧺 OG Plot Size: 1.000 TiB", OGPlotSize(1<<40))
	assert.Equal(t, "💾 Current Netspace: 2.000 PiB", Space("2251799813685248"))
	assert.Equal(t, "🚜 Plot Change 24h: +2 (+0.500 TiB)", PlotDelta24h(2, 1<<39))
	assert.Equal(t, "🚜 Plot Change 24h: -1 (-0.250 TiB)", PlotDelta24h(-1, -(1 << 38)))
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 minutes"},
		{time.Minute, "1 minute"},
		{312 * time.Minute, "5 hours 12 minutes"},
		{49 * time.Hour, "2 days 1 hour"},
		{3*24*time.Hour + 5*time.Minute, "3 days 5 minutes"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Duration(tt.in))
	}
}

func TestExpectedTimeToWin(t *testing.T) {
	assert.Equal(t, "🕰️ Expected Time To Win: 5 hours 12 minutes", ExpectedTimeToWin(312))
	assert.Equal(t, "🕰️ Expected Time To Win: never", ExpectedTimeToWin(-1))

	// Small farms against mainnet netspace exceed the range of time.Duration.
	assert.Equal(t, "🕰️ Expected Time To Win: 9942053 days 22 hours 13 minutes", ExpectedTimeToWin(14316557653))
	assert.Equal(t, "🕰️ Expected Time To Win: 6405119470038038 days 18 hours 7 minutes", ExpectedTimeToWin(math.MaxInt64))
}

func TestPrice(t *testing.T) {
	assert.Equal(t, "💲 Price: 31.25 USD", Price(3125, 100, "USD"))
	assert.Equal(t, "💲 Price: 0.00041000 BTC", Price(41000, 1e8, "BTC"))
	assert.Equal(t, "💲 Price: 0.012345678 ETH", Price(12345678, 1e9, "ETH"))
}
