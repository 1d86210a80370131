// Package indicator 提供纯函数式的技术指标计算。
// 所有函数只读输入序列，不保留跨调用状态；入参要求 K 线已按时间升序排列，
// 喂入乱序序列属于未定义行为（不做静默修复）。
package indicator

import (
	"math"

	"fxlens/internal/market"
)

// Config 单次分析所用的指标参数，调用方提供，指标函数不修改。
type Config struct {
	BBPeriod    int     `json:"bb_period" toml:"bb_period"`
	BBStdDev    float64 `json:"bb_stddev" toml:"bb_stddev"`
	StochK      int     `json:"stoch_k" toml:"stoch_k"`
	StochD      int     `json:"stoch_d" toml:"stoch_d"`
	IchiTenkan  int     `json:"ichi_tenkan" toml:"ichi_tenkan"`
	IchiKijun   int     `json:"ichi_kijun" toml:"ichi_kijun"`
	IchiSenkouB int     `json:"ichi_senkou_b" toml:"ichi_senkou_b"`
	RSIPeriod   int     `json:"rsi_period" toml:"rsi_period"`
}

func DefaultConfig() Config {
	return Config{
		BBPeriod:    20,
		BBStdDev:    2,
		StochK:      14,
		StochD:      3,
		IchiTenkan:  9,
		IchiKijun:   26,
		IchiSenkouB: 52,
		RSIPeriod:   14,
	}
}

// WithDefaults 把未设置（0 值）的参数补成默认值。
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.BBPeriod <= 0 {
		c.BBPeriod = def.BBPeriod
	}
	if c.BBStdDev <= 0 {
		c.BBStdDev = def.BBStdDev
	}
	if c.StochK <= 0 {
		c.StochK = def.StochK
	}
	if c.StochD <= 0 {
		c.StochD = def.StochD
	}
	if c.IchiTenkan <= 0 {
		c.IchiTenkan = def.IchiTenkan
	}
	if c.IchiKijun <= 0 {
		c.IchiKijun = def.IchiKijun
	}
	if c.IchiSenkouB <= 0 {
		c.IchiSenkouB = def.IchiSenkouB
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = def.RSIPeriod
	}
	return c
}

// Closes 提取收盘价序列。
func Closes(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// SMA 简单移动平均，前 period-1 个下标未定义。period 可达输入全长。
func SMA(values []float64, period int) Series {
	out := make(Series, len(values))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = Defined(sum / float64(period))
		}
	}
	return out
}

// StdDev 滑动窗口总体标准差，均值取对齐的 SMA。
func StdDev(values []float64, period int, sma Series) Series {
	out := make(Series, len(values))
	if period <= 0 {
		return out
	}
	for i := range values {
		m := sma.At(i)
		if i < period-1 || !m.OK {
			continue
		}
		sumSq := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - m.F
			sumSq += d * d
		}
		out[i] = Defined(math.Sqrt(sumSq / float64(period)))
	}
	return out
}

// EMA 指数移动平均，以首个输入值为种子，因此从下标 0 即有定义。
func EMA(values []float64, period int) Series {
	out := make(Series, len(values))
	if len(values) == 0 {
		return out
	}
	k := 2 / (float64(period) + 1)
	out[0] = Defined(values[0])
	for i := 1; i < len(values); i++ {
		out[i] = Defined(values[i]*k + out[i-1].F*(1-k))
	}
	return out
}

// EMAFromSeries 对已派生的序列做 EMA 平滑（MACD 信号线、随机指标 %D 共用）。
// 种子取首个有定义的输入值；输入未定义则输出未定义并向后传染。
func EMAFromSeries(values Series, period int) Series {
	out := make(Series, len(values))
	k := 2 / (float64(period) + 1)
	start := 0
	for start < len(values) && !values[start].OK {
		start++
	}
	if start >= len(values) {
		return out
	}
	out[start] = values[start]
	for i := start + 1; i < len(values); i++ {
		v := values[i]
		prev := out[i-1]
		if !v.OK || !prev.OK {
			continue
		}
		out[i] = Defined(v.F*k + prev.F*(1-k))
	}
	return out
}

// RSI Wilder 平滑相对强弱指数。下标 < period 未定义。
// avgLoss 为 0 时以 0.001 兜底避免除零——这是刻意的近似，
// 单边上涨时 RSI 趋近而非等于 100。
func RSI(values []float64, period int) Series {
	out := make(Series, len(values))
	if period <= 0 || len(values) <= period {
		return out
	}
	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gainSum += change
		} else {
			lossSum += -change
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = Defined(100 - 100/(1+avgGain/orEpsilon(avgLoss)))
	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = Defined(100 - 100/(1+avgGain/orEpsilon(avgLoss)))
	}
	return out
}

func orEpsilon(v float64) float64 {
	if v == 0 {
		return 0.001
	}
	return v
}

// MACDResult MACD 三条线：快慢 EMA 之差、其 9 期信号线、二者差值柱。
type MACDResult struct {
	Line      Series
	Signal    Series
	Histogram Series
}

func MACD(values []float64) MACDResult {
	ema12 := EMA(values, 12)
	ema26 := EMA(values, 26)
	line := make(Series, len(values))
	for i := range values {
		line[i] = Defined(ema12[i].F - ema26[i].F)
	}
	signal := EMAFromSeries(line, 9)
	hist := make(Series, len(values))
	for i := range values {
		if line[i].OK && signal[i].OK {
			hist[i] = Defined(line[i].F - signal[i].F)
		}
	}
	return MACDResult{Line: line, Signal: signal, Histogram: hist}
}

// Bands 布林带。对任意 multiplier >= 0 恒有 Upper >= Middle >= Lower。
type Bands struct {
	Upper  Series
	Middle Series
	Lower  Series
}

func Bollinger(bars []market.Bar, period int, multiplier float64) Bands {
	closes := Closes(bars)
	middle := SMA(closes, period)
	stdDev := StdDev(closes, period, middle)
	upper := make(Series, len(closes))
	lower := make(Series, len(closes))
	for i := range closes {
		m := middle[i]
		sd := stdDev[i]
		if !m.OK || !sd.OK {
			continue
		}
		upper[i] = Defined(m.F + multiplier*sd.F)
		lower[i] = Defined(m.F - multiplier*sd.F)
	}
	return Bands{Upper: upper, Middle: middle, Lower: lower}
}

// Stoch 随机指标。%D 采用 EMAFromSeries 平滑而非简单均线。
type Stoch struct {
	K Series
	D Series
}

func Stochastic(bars []market.Bar, kPeriod, dPeriod int) Stoch {
	k := make(Series, len(bars))
	for i := range bars {
		if i < kPeriod-1 {
			continue
		}
		low := bars[i].Low
		high := bars[i].High
		for j := i - kPeriod + 1; j <= i; j++ {
			if bars[j].Low < low {
				low = bars[j].Low
			}
			if bars[j].High > high {
				high = bars[j].High
			}
		}
		v := (bars[i].Close - low) / (high - low) * 100
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		k[i] = Defined(v)
	}
	return Stoch{K: k, D: EMAFromSeries(k, dPeriod)}
}
