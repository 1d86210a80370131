package market

// Class 表示行情资产类别，不同类别走不同的上游数据源。
type Class string

const (
	ClassCrypto Class = "crypto"
	ClassForex  Class = "forex"
)

// Bar 单根 K 线。Time 为毫秒时间戳。
// 约定序列按 Time 非递减排序；重复的 Time 表示原地更新而非追加。
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Asset 可选标的及其展示名（展示名用于增强服务的检索上下文）。
type Asset struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Class  Class  `json:"class"`
}

// DefaultAssets 内置标的清单。
var DefaultAssets = []Asset{
	{Symbol: "BTCUSDT", Name: "Bitcoin (USDT)", Class: ClassCrypto},
	{Symbol: "ETHUSDT", Name: "Ethereum (USDT)", Class: ClassCrypto},
	{Symbol: "SOLUSDT", Name: "Solana (USDT)", Class: ClassCrypto},
	{Symbol: "EURUSD", Name: "Euro / USD", Class: ClassForex},
	{Symbol: "GBPUSD", Name: "GBP / USD", Class: ClassForex},
	{Symbol: "USDJPY", Name: "USD / JPY", Class: ClassForex},
}

// LookupAsset 按 symbol 查找内置标的。
func LookupAsset(symbol string) (Asset, bool) {
	for _, a := range DefaultAssets {
		if a.Symbol == symbol {
			return a, true
		}
	}
	return Asset{}, false
}
