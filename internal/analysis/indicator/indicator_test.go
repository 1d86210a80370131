package indicator

import (
	"math"
	"testing"

	talib "github.com/markcheno/go-talib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxlens/internal/market"
)

func barsFromCloses(closes []float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Time:  int64(i) * 3600,
			Open:  c,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
		}
	}
	return bars
}

func rampCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestSMAWarmup(t *testing.T) {
	s := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, s, 5)
	assert.False(t, s[0].OK)
	assert.False(t, s[1].OK)
	assert.True(t, s[2].OK)
	assert.InDelta(t, 2.0, s[2].F, 1e-9)
	assert.InDelta(t, 3.0, s[3].F, 1e-9)
	assert.InDelta(t, 4.0, s[4].F, 1e-9)
}

func TestSMAMatchesTalib(t *testing.T) {
	closes := rampCloses(60)
	ours := SMA(closes, 20)
	ref := talib.Sma(closes, 20)
	for i := 19; i < len(closes); i++ {
		require.True(t, ours[i].OK, "index %d", i)
		assert.InDelta(t, ref[i], ours[i].F, 1e-6, "index %d", i)
	}
}

func TestEMASeededFromFirstValue(t *testing.T) {
	closes := []float64{10, 20, 30}
	e := EMA(closes, 2)
	require.Len(t, e, 3)
	// Seeded with the first value, defined from index zero.
	require.True(t, e[0].OK)
	assert.InDelta(t, 10.0, e[0].F, 1e-9)
	k := 2.0 / 3.0
	want1 := 20*k + 10*(1-k)
	assert.InDelta(t, want1, e[1].F, 1e-9)
	want2 := 30*k + want1*(1-k)
	assert.InDelta(t, want2, e[2].F, 1e-9)
}

func TestEMAConvergesToTalib(t *testing.T) {
	// Different seeding, but both converge on long series.
	closes := rampCloses(300)
	ours := EMA(closes, 12)
	ref := talib.Ema(closes, 12)
	last := len(closes) - 1
	require.True(t, ours[last].OK)
	assert.InDelta(t, ref[last], ours[last].F, 1e-3)
}

func TestRSIBounds(t *testing.T) {
	closes := rampCloses(40)
	r := RSI(closes, 14)
	for i := 0; i < 14; i++ {
		assert.False(t, r[i].OK, "index %d", i)
	}
	for i := 14; i < len(closes); i++ {
		require.True(t, r[i].OK, "index %d", i)
		assert.GreaterOrEqual(t, r[i].F, 0.0)
		assert.LessOrEqual(t, r[i].F, 100.0)
	}
	// Monotonic rise keeps RSI pinned high via the epsilon floor on losses.
	assert.Greater(t, r[len(closes)-1].F, 99.0)
}

func TestRSIShortSeriesUndefined(t *testing.T) {
	r := RSI(rampCloses(14), 14)
	for i, v := range r {
		assert.False(t, v.OK, "index %d", i)
	}
}

func TestMACDHistogram(t *testing.T) {
	closes := rampCloses(120)
	m := MACD(closes)
	last := len(closes) - 1
	require.True(t, m.Line.At(last).OK)
	require.True(t, m.Signal.At(last).OK)
	require.True(t, m.Histogram.At(last).OK)
	assert.InDelta(t, m.Line.At(last).F-m.Signal.At(last).F, m.Histogram.At(last).F, 1e-9)
	// A steady ramp keeps fast above slow.
	assert.Greater(t, m.Line.At(last).F, 0.0)
}

func TestBollingerOrdering(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/3)
	}
	b := Bollinger(barsFromCloses(closes), 20, 2)
	for i := 19; i < len(closes); i++ {
		require.True(t, b.Middle.At(i).OK, "index %d", i)
		assert.LessOrEqual(t, b.Lower.At(i).F, b.Middle.At(i).F, "index %d", i)
		assert.LessOrEqual(t, b.Middle.At(i).F, b.Upper.At(i).F, "index %d", i)
	}
}

func TestBollingerMatchesTalibMiddle(t *testing.T) {
	closes := rampCloses(60)
	b := Bollinger(barsFromCloses(closes), 20, 2)
	ref := talib.Sma(closes, 20)
	for i := 19; i < len(closes); i++ {
		assert.InDelta(t, ref[i], b.Middle.At(i).F, 1e-6, "index %d", i)
	}
}

func TestStochasticRange(t *testing.T) {
	bars := barsFromCloses(rampCloses(60))
	s := Stochastic(bars, 14, 3)
	for i := 13; i < len(bars); i++ {
		require.True(t, s.K.At(i).OK, "index %d", i)
		assert.GreaterOrEqual(t, s.K.At(i).F, 0.0)
		assert.LessOrEqual(t, s.K.At(i).F, 100.0)
	}
	// Rising closes sit near the top of the range.
	assert.Greater(t, s.K.Last().F, 80.0)
	assert.Greater(t, s.D.Last().F, 80.0)
}

func TestStochasticFlatWindowUndefined(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{Time: int64(i), Open: c, High: c, Low: c, Close: c}
	}
	s := Stochastic(bars, 14, 3)
	// Zero range divides out to NaN which must not leak.
	for i, v := range s.K {
		assert.False(t, v.OK, "index %d", i)
	}
}

func TestIchimokuIndexing(t *testing.T) {
	bars := barsFromCloses(rampCloses(120))
	c := Ichimoku(bars, 9, 26, 52)

	assert.False(t, c.Tenkan.At(7).OK)
	assert.True(t, c.Tenkan.At(8).OK)
	assert.False(t, c.Kijun.At(24).OK)
	assert.True(t, c.Kijun.At(25).OK)

	// Span lines never appear before the Senkou B period.
	for i := 0; i < 52; i++ {
		assert.False(t, c.SenkouA.At(i).OK, "senkouA index %d", i)
		assert.False(t, c.SenkouB.At(i).OK, "senkouB index %d", i)
	}

	// Chikou is the close shifted back by the displacement.
	require.True(t, c.Chikou.At(0).OK)
	assert.InDelta(t, bars[26].Close, c.Chikou.At(0).F, 1e-9)
	assert.False(t, c.Chikou.At(len(bars)-1).OK)

	// Senkou A reads the displaced Tenkan/Kijun midpoints.
	i := 100
	wantA := (c.Tenkan.At(i-26).F + c.Kijun.At(i-26).F) / 2
	require.True(t, c.SenkouA.At(i).OK)
	assert.InDelta(t, wantA, c.SenkouA.At(i).F, 1e-9)

	// Senkou B is the 52 bar midpoint ending at the displaced index.
	wantB := midpoint(bars, i-26-52+1, i-26+1)
	require.True(t, c.SenkouB.At(i).OK)
	assert.InDelta(t, wantB, c.SenkouB.At(i).F, 1e-9)
}

func TestConfigWithDefaults(t *testing.T) {
	var cfg Config
	cfg = cfg.WithDefaults()
	assert.Equal(t, DefaultConfig(), cfg)

	custom := Config{RSIPeriod: 7}.WithDefaults()
	assert.Equal(t, 7, custom.RSIPeriod)
	assert.Equal(t, 20, custom.BBPeriod)
}
