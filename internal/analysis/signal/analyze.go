package signal

import (
	"fmt"
	"math"
	"strings"

	"fxlens/internal/analysis/indicator"
	"fxlens/internal/market"
)

// Analyze 对整段 K 线做一次信号归纳与观点合成。
// 调用方需保证至少 2 根 K 线；上层引擎在 50 根以上才触发分析。
//
// 各状态判定统一采用"未定义按 0 参与比较"的口径（SMA200、布林带、
// 云层皆如此），短序列会因此落到偏多的边界档位。这是刻意保留的行为：
// 指标窗口未满时快照仍要给出一个确定的档位，而不是中途拒绝。
func Analyze(bars []market.Bar, cfg indicator.Config) (Verdict, Summary) {
	cfg = cfg.WithDefaults()
	closes := indicator.Closes(bars)
	n := len(closes)
	lastClose := closes[n-1]

	s50 := indicator.SMA(closes, 50).Last().Or(0)
	s200 := indicator.SMA(closes, 200).Last().Or(0)

	rsi := indicator.RSI(closes, cfg.RSIPeriod)
	macd := indicator.MACD(closes)
	bb := indicator.Bollinger(bars, cfg.BBPeriod, cfg.BBStdDev)
	stoch := indicator.Stochastic(bars, cfg.StochK, cfg.StochD)
	cloud := indicator.Ichimoku(bars, cfg.IchiTenkan, cfg.IchiKijun, cfg.IchiSenkouB)

	v := Verdict{
		Trend:         TrendRanging,
		RSIState:      LevelNeutral,
		MACDSignal:    DirNeutral,
		BBState:       BBNormal,
		StochSignal:   LevelNeutral,
		IchimokuState: DirNeutral,
	}

	if lastClose > s50 && s50 > s200 {
		v.Trend = TrendUp
	} else if lastClose < s50 && s50 < s200 {
		v.Trend = TrendDown
	}

	up := bb.Upper.Last().Or(0)
	low := bb.Lower.Last().Or(0)
	if lastClose > up {
		v.BBState = BBBreakoutUp
	} else if lastClose < low {
		v.BBState = BBBreakoutDown
	} else if (up-low)/lastClose < 0.01 {
		v.BBState = BBSqueeze
	}

	k := stoch.K.Last()
	d := stoch.D.Last()
	if k.OK && d.OK {
		if k.F > 80 && d.F > 80 {
			v.StochSignal = LevelOverbought
		}
		if k.F < 20 && d.F < 20 {
			v.StochSignal = LevelOversold
		}
	}

	sA := cloud.SenkouA.Last().Or(0)
	sB := cloud.SenkouB.Last().Or(0)
	if lastClose > sA && lastClose > sB {
		v.IchimokuState = DirBullish
	}
	if lastClose < sA && lastClose < sB {
		v.IchimokuState = DirBearish
	}

	if lastRSI := rsi.Last(); lastRSI.OK {
		if lastRSI.F > 70 {
			v.RSIState = LevelOverbought
		}
		if lastRSI.F < 30 {
			v.RSIState = LevelOversold
		}
	}

	lastHist := macd.Histogram.Last()
	prevHist := macd.Histogram.At(n - 2)
	if lastHist.OK && prevHist.OK {
		if prevHist.F < 0 && lastHist.F > 0 {
			v.MACDSignal = DirBullish
		}
		if prevHist.F > 0 && lastHist.F < 0 {
			v.MACDSignal = DirBearish
		}
	}

	// Average true range over the trailing 10 bars, divided by 10 even
	// when fewer bars exist.
	start := n - 10
	if start < 0 {
		start = 0
	}
	rangeSum := 0.0
	for _, b := range bars[start:] {
		rangeSum += b.High - b.Low
	}
	avgRange := rangeSum / 10
	switch {
	case avgRange/lastClose > 0.02:
		v.Volatility = VolHigh
	case avgRange/lastClose < 0.005:
		v.Volatility = VolLow
	default:
		v.Volatility = VolMedium
	}

	changePct := (lastClose - closes[n-2]) / closes[n-2]
	switch {
	case math.Abs(changePct) < 0.001:
		v.RecentMove = MoveChoppy
	case changePct > 0:
		v.RecentMove = MoveRally
	default:
		v.RecentMove = MoveSelloff
	}

	return v, synthesize(v, s50)
}

// synthesize 加权打分并生成叙述与交易想法。
// 权重：趋势 ±2，云层 ±3，随机指标顺势 ±3 逆势 ±1，MACD ±1，布林突破 ±1；
// 趋势与云层冲突时向零回撤 2 分且不越过零。
func synthesize(v Verdict, sma50 float64) Summary {
	score := 0
	var parts []string

	if v.Trend == TrendUp {
		score += 2
	} else if v.Trend == TrendDown {
		score -= 2
	}

	if v.IchimokuState == DirBullish {
		score += 3
	} else if v.IchimokuState == DirBearish {
		score -= 3
	}

	if v.StochSignal == LevelOversold {
		if v.Trend == TrendUp || v.IchimokuState == DirBullish {
			score += 3
			parts = append(parts, "Stochastics are oversold while in a bullish structure, signaling a high-probability entry.")
		} else {
			score += 1
			parts = append(parts, "Stochastics are oversold, suggesting a potential relief bounce against the trend.")
		}
	} else if v.StochSignal == LevelOverbought {
		if v.Trend == TrendDown || v.IchimokuState == DirBearish {
			score -= 3
			parts = append(parts, "Stochastics are overbought while in a bearish structure, signaling a high-probability short entry.")
		} else {
			score -= 1
			parts = append(parts, "Stochastics are overbought, suggesting momentum is overextended and a pullback is likely.")
		}
	}

	trendBullish := v.Trend == TrendUp
	trendBearish := v.Trend == TrendDown
	cloudBullish := v.IchimokuState == DirBullish
	cloudBearish := v.IchimokuState == DirBearish

	if trendBullish && cloudBullish {
		parts = append(parts, "Trend and Ichimoku Cloud are fully aligned Bullish. Focus on long entries.")
	} else if trendBearish && cloudBearish {
		parts = append(parts, "Trend and Ichimoku Cloud are fully aligned Bearish. Focus on short entries.")
	} else if v.IchimokuState != DirNeutral && v.Trend != TrendRanging &&
		((trendBullish && !cloudBullish) || (trendBearish && !cloudBearish)) {
		parts = append(parts, "Conflict detected between Price Trend and Cloud structure. Volatility likely as market decides direction.")
		if score > 0 {
			score = max(0, score-2)
		} else {
			score = min(0, score+2)
		}
	}

	if v.MACDSignal == DirBullish {
		score += 1
	} else if v.MACDSignal == DirBearish {
		score -= 1
	}

	if v.BBState == BBBreakoutUp {
		score += 1
	} else if v.BBState == BBBreakoutDown {
		score -= 1
	}
	if v.BBState == BBSqueeze {
		parts = append(parts, "Bollinger Squeeze detected: Explosive move imminent.")
	}

	bias := BiasNeutral
	if score >= 4 {
		bias = BiasBullish
	} else if score <= -4 {
		bias = BiasBearish
	}

	confidence := 50
	if (trendBullish && cloudBullish) || (trendBearish && cloudBearish) {
		confidence += 20
	}
	if bias == BiasBullish && v.StochSignal == LevelOversold {
		confidence += 10
	}
	if bias == BiasBearish && v.StochSignal == LevelOverbought {
		confidence += 10
	}
	if bias == BiasBullish && v.MACDSignal == DirBullish {
		confidence += 5
	}
	if bias == BiasBearish && v.MACDSignal == DirBearish {
		confidence += 5
	}
	confidence = min(max(confidence, 20), 95)

	ideaType := IdeaWait
	note := "Signals are mixed; preserve capital."
	invalid := "Volatility expands against position."

	if bias == BiasBullish {
		ideaType = IdeaLong
		trigger := "cloud support"
		if v.StochSignal == LevelOversold {
			trigger = "oversold stochastics"
		}
		note = fmt.Sprintf("Look for entries on %s aligned with the bullish cloud structure.", trigger)
		if v.IchimokuState == DirBullish {
			invalid = "Price closes inside/below the Cloud."
		} else {
			invalid = fmt.Sprintf("Price falls below the 50 SMA (%.2f).", sma50)
		}
	} else if bias == BiasBearish {
		ideaType = IdeaShort
		trigger := "cloud resistance"
		if v.StochSignal == LevelOverbought {
			trigger = "overbought stochastics"
		}
		note = fmt.Sprintf("Look for entries on %s aligned with the bearish cloud structure.", trigger)
		if v.IchimokuState == DirBearish {
			invalid = "Price closes inside/above the Cloud."
		} else {
			invalid = fmt.Sprintf("Price rises above the 50 SMA (%.2f).", sma50)
		}
	}

	return Summary{
		Bias:       bias,
		Confidence: confidence,
		Narrative:  joinUnique(parts),
		Idea: Idea{
			Type:          ideaType,
			InvalidatedIf: invalid,
			Note:          note,
		},
	}
}

// joinUnique 去重后按原顺序以空格连接。
func joinUnique(parts []string) string {
	seen := make(map[string]struct{}, len(parts))
	out := parts[:0]
	for _, p := range parts {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return strings.Join(out, " ")
}
