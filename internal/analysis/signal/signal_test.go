package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxlens/internal/analysis/indicator"
	"fxlens/internal/market"
)

func rampBars(n int, rising bool) []market.Bar {
	bars := make([]market.Bar, n)
	for i := 0; i < n; i++ {
		c := 100.0
		if rising {
			c += float64(i)
		} else {
			c += float64(n - i)
		}
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

func TestAnalyzeRisingSeries(t *testing.T) {
	bars := rampBars(60, true)
	v, s := Analyze(bars, indicator.Config{})

	assert.Equal(t, TrendUp, v.Trend)
	assert.Equal(t, DirBullish, v.IchimokuState)
	assert.Equal(t, LevelOverbought, v.StochSignal)
	assert.Equal(t, LevelOverbought, v.RSIState)
	assert.Equal(t, DirNeutral, v.MACDSignal)
	assert.Equal(t, BBNormal, v.BBState)
	assert.Equal(t, VolMedium, v.Volatility)
	assert.Equal(t, MoveRally, v.RecentMove)

	// Trend +2, cloud +3, overbought against neither bearish leg -1: score 4.
	assert.Equal(t, BiasBullish, s.Bias)
	assert.Equal(t, 70, s.Confidence)
	assert.Equal(t, IdeaLong, s.Idea.Type)
	assert.Equal(t, "Price closes inside/below the Cloud.", s.Idea.InvalidatedIf)
	assert.Equal(t, "Look for entries on cloud support aligned with the bullish cloud structure.", s.Idea.Note)
	assert.Equal(t,
		"Stochastics are overbought, suggesting momentum is overextended and a pullback is likely. "+
			"Trend and Ichimoku Cloud are fully aligned Bullish. Focus on long entries.",
		s.Narrative)
}

func TestAnalyzeFallingSeries(t *testing.T) {
	bars := rampBars(60, false)
	v, s := Analyze(bars, indicator.Config{})

	// With only 60 bars the 200 SMA reads as zero, so a falling series
	// cannot satisfy sma50 < sma200 and lands in RANGING. Senkou B is
	// likewise still undefined, so price cannot sit below both spans.
	assert.Equal(t, TrendRanging, v.Trend)
	assert.Equal(t, DirNeutral, v.IchimokuState)
	assert.Equal(t, LevelOversold, v.StochSignal)
	assert.Equal(t, MoveSelloff, v.RecentMove)

	// Oversold relief bounce against no structure: score +1 stays neutral.
	assert.Equal(t, BiasNeutral, s.Bias)
	assert.Equal(t, 50, s.Confidence)
	assert.Equal(t, IdeaWait, s.Idea.Type)
	assert.Equal(t, "Signals are mixed; preserve capital.", s.Idea.Note)
	assert.Equal(t, "Volatility expands against position.", s.Idea.InvalidatedIf)
	assert.Equal(t, "Stochastics are oversold, suggesting a potential relief bounce against the trend.", s.Narrative)
}

func TestAnalyzeFlatSeries(t *testing.T) {
	bars := make([]market.Bar, 60)
	for i := range bars {
		bars[i] = market.Bar{Time: int64(i) * 3600, Open: 100, High: 100, Low: 100, Close: 100}
	}
	v, s := Analyze(bars, indicator.Config{})

	assert.Equal(t, TrendRanging, v.Trend)
	assert.Equal(t, LevelNeutral, v.StochSignal)
	assert.Equal(t, DirNeutral, v.IchimokuState)
	assert.Equal(t, BBSqueeze, v.BBState)
	assert.Equal(t, VolLow, v.Volatility)
	assert.Equal(t, MoveChoppy, v.RecentMove)

	assert.Equal(t, BiasNeutral, s.Bias)
	assert.Equal(t, "Bollinger Squeeze detected: Explosive move imminent.", s.Narrative)
}

func TestSynthesizeFullBearishAlignment(t *testing.T) {
	v := Verdict{
		Trend:         TrendDown,
		RSIState:      LevelNeutral,
		MACDSignal:    DirBearish,
		BBState:       BBBreakoutDown,
		StochSignal:   LevelOverbought,
		IchimokuState: DirBearish,
	}
	s := synthesize(v, 1.0950)

	assert.Equal(t, BiasBearish, s.Bias)
	assert.Equal(t, 85, s.Confidence)
	require.Equal(t, IdeaShort, s.Idea.Type)
	assert.Equal(t, "Price closes inside/above the Cloud.", s.Idea.InvalidatedIf)
	assert.Equal(t, "Look for entries on overbought stochastics aligned with the bearish cloud structure.", s.Idea.Note)
}

func TestSynthesizeConflictDampsTowardZero(t *testing.T) {
	v := Verdict{
		Trend:         TrendUp,
		RSIState:      LevelNeutral,
		MACDSignal:    DirNeutral,
		BBState:       BBNormal,
		StochSignal:   LevelNeutral,
		IchimokuState: DirBearish,
	}
	s := synthesize(v, 100)

	// Trend +2 against cloud -3 dampens to zero, never crossing it.
	assert.Equal(t, BiasNeutral, s.Bias)
	assert.Equal(t, 50, s.Confidence)
	assert.Contains(t, s.Narrative, "Conflict detected between Price Trend and Cloud structure.")
	assert.Equal(t, IdeaWait, s.Idea.Type)
}

func TestSynthesizeBullishWithoutCloudUsesSMALevel(t *testing.T) {
	v := Verdict{
		Trend:         TrendUp,
		RSIState:      LevelNeutral,
		MACDSignal:    DirBullish,
		BBState:       BBBreakoutUp,
		StochSignal:   LevelOversold,
		IchimokuState: DirNeutral,
	}
	s := synthesize(v, 103.4567)

	// Trend +2, oversold in uptrend +3, MACD +1, breakout +1: score 7.
	assert.Equal(t, BiasBullish, s.Bias)
	assert.Equal(t, 65, s.Confidence)
	assert.Equal(t, IdeaLong, s.Idea.Type)
	assert.Equal(t, "Price falls below the 50 SMA (103.46).", s.Idea.InvalidatedIf)
	assert.Equal(t, "Look for entries on oversold stochastics aligned with the bullish cloud structure.", s.Idea.Note)
}

func TestJoinUniqueDedupsPreservingOrder(t *testing.T) {
	got := joinUnique([]string{"a.", "b.", "a.", "c."})
	assert.Equal(t, "a. b. c.", got)
}
