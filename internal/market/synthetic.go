package market

import (
	"math/rand"
	"time"
)

// SyntheticSeed 每个资产类别的合成数据种子：起始价与波动幅度。
type SyntheticSeed struct {
	StartPrice float64
	Volatility float64
}

// 兜底种子取自各类别的常见量级。
var syntheticSeeds = map[Class]SyntheticSeed{
	ClassCrypto: {StartPrice: 45000, Volatility: 100},
	ClassForex:  {StartPrice: 1.08, Volatility: 0.005},
}

func SeedFor(class Class) SyntheticSeed {
	if seed, ok := syntheticSeeds[class]; ok {
		return seed
	}
	return SyntheticSeed{StartPrice: 100, Volatility: 1}
}

// GenerateSynthetic 生成 count 根小时级随机游走 K 线，结束于当前时刻。
// 用于上游不可用时的模拟模式。
func GenerateSynthetic(rnd *rand.Rand, count int, seed SyntheticSeed) []Bar {
	if count <= 0 {
		count = 100
	}
	bars := make([]Bar, 0, count)
	price := seed.StartPrice
	ts := time.Now().UnixMilli() - int64(count)*3600_000
	for i := 0; i < count; i++ {
		move := (rnd.Float64() - 0.5) * seed.Volatility
		open := price
		close := price + move
		high := maxF(open, close) + rnd.Float64()*seed.Volatility*0.5
		low := minF(open, close) - rnd.Float64()*seed.Volatility*0.5
		bars = append(bars, Bar{
			Time:   ts,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: float64(rnd.Intn(1000)),
		})
		price = close
		ts += 3600_000
	}
	return bars
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
