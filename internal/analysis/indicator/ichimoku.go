package indicator

import "fxlens/internal/market"

// Cloud 一目均衡表。Displacement 固定取 Kijun 周期。
//
// 注意前视位移的反向索引约定：画在"今天"的云是 displacement 根之前做出的
// 投影。Senkou A 读取 displacement 根之前的 Tenkan/Kijun 值；Senkou B 则对
// 结束于 displacement 根之前的窗口重新计算高低中点。两条线的回看口径并不
// 一致，这里照抄上游约定而非"更正确"的公式；回看下标为负时返回未定义，
// 且计算结果恰为 0 时同样落为未定义（沿用来源实现的零值判定）。
type Cloud struct {
	Tenkan  Series
	Kijun   Series
	SenkouA Series
	SenkouB Series
	Chikou  Series
}

func Ichimoku(bars []market.Bar, tenkanPeriod, kijunPeriod, senkouBPeriod int) Cloud {
	n := len(bars)
	displacement := kijunPeriod
	c := Cloud{
		Tenkan:  make(Series, n),
		Kijun:   make(Series, n),
		SenkouA: make(Series, n),
		SenkouB: make(Series, n),
		Chikou:  make(Series, n),
	}
	for i := 0; i < n; i++ {
		// Chikou: close plotted displacement bars into the past.
		if i+displacement < n {
			c.Chikou[i] = Defined(bars[i+displacement].Close)
		}
		if i >= tenkanPeriod-1 {
			c.Tenkan[i] = Defined(midpoint(bars, i-tenkanPeriod+1, i+1))
		}
		if i >= kijunPeriod-1 {
			c.Kijun[i] = Defined(midpoint(bars, i-kijunPeriod+1, i+1))
		}
		if i < senkouBPeriod {
			continue
		}
		cloudA := (c.Tenkan.At(i-displacement).Or(0) + c.Kijun.At(i-displacement).Or(0)) / 2
		if cloudA != 0 {
			c.SenkouA[i] = Defined(cloudA)
		}
		start := i - displacement - senkouBPeriod + 1
		end := i - displacement + 1
		if start >= 0 && start < end {
			cloudB := midpoint(bars, start, end)
			if cloudB != 0 {
				c.SenkouB[i] = Defined(cloudB)
			}
		}
	}
	return c
}

// midpoint 区间 [start, end) 内最高价与最低价的中点。
func midpoint(bars []market.Bar, start, end int) float64 {
	high := bars[start].High
	low := bars[start].Low
	for i := start + 1; i < end; i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return (high + low) / 2
}
