package backtest

import (
	"testing"

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

func TestRunTooFewBars(t *testing.T) {
	closes := make([]float64, 51)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	res := Run(barsFromCloses(closes))

	assert.Equal(t, 0, res.TotalTrades)
	assert.Equal(t, 0.0, res.WinRate)
	assert.Equal(t, 0.0, res.FinalPnLPercent)
	assert.Empty(t, res.EquityCurve)
}

func TestRunNoCrossoverStaysFlat(t *testing.T) {
	// A pure ramp keeps the fast average above the slow one the whole
	// way, so no golden cross ever fires.
	closes := make([]float64, 200)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	res := Run(barsFromCloses(closes))

	assert.Equal(t, 0, res.TotalTrades)
	assert.Equal(t, 0.0, res.WinRate)
	assert.Equal(t, 0.0, res.FinalPnLPercent)
	require.Len(t, res.EquityCurve, 200-51)
	for _, p := range res.EquityCurve {
		assert.Equal(t, 10000.0, p.Equity)
	}
}

func TestRunVShapeRecoveryWins(t *testing.T) {
	// Decline then a strong recovery produces at least one golden cross
	// with the position still profitable at the end.
	closes := make([]float64, 220)
	for i := range closes {
		if i < 80 {
			closes[i] = 300 - float64(i)
		} else {
			closes[i] = 220 + 2*float64(i-80)
		}
	}
	res := Run(barsFromCloses(closes))

	require.GreaterOrEqual(t, res.TotalTrades, 1)
	assert.Equal(t, 100.0, res.WinRate)
	assert.Greater(t, res.FinalPnLPercent, 0.0)
	require.Len(t, res.EquityCurve, 220-51)

	// Curve is marked to market, so its last point matches the final PnL
	// when the run ends in a position.
	last := res.EquityCurve[len(res.EquityCurve)-1]
	assert.InDelta(t, 10000*(1+res.FinalPnLPercent/100), last.Equity, 1e-6)
}

func TestRunEquityCurveTimesMatchBars(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	bars := barsFromCloses(closes)
	res := Run(bars)

	require.Len(t, res.EquityCurve, 60-51)
	for i, p := range res.EquityCurve {
		assert.Equal(t, bars[51+i].Time, p.Time)
	}
}
