// Package backtest 在历史 K 线上回放一套简单的均线交叉策略。
//
// 策略固定为 SMA20/SMA50 金叉做多、死叉平仓，只做多、全仓进出、
// 不计手续费与滑点。交叉判定读取前一根与前两根的均线值（收盘确认），
// 成交价取当前根收盘价。
package backtest

import (
	"fxlens/internal/analysis/indicator"
	"fxlens/internal/market"
)

const startingEquity = 10000

type EquityPoint struct {
	Time   int64   `json:"time"`
	Equity float64 `json:"equity"`
}

type Result struct {
	TotalTrades     int           `json:"totalTrades"`
	WinRate         float64       `json:"winRate"`
	FinalPnLPercent float64       `json:"finalPnLPercent"`
	EquityCurve     []EquityPoint `json:"equityCurve"`
}

// Run 从第 52 根开始逐根回放。结束时若仍持仓则按最后收盘价市值结算，
// 并计入胜率统计。少于 52 根时返回空曲线零成交。
func Run(bars []market.Bar) Result {
	closes := indicator.Closes(bars)
	sma20 := indicator.SMA(closes, 20)
	sma50 := indicator.SMA(closes, 50)

	position := 0.0
	equity := float64(startingEquity)
	trades := 0
	wins := 0
	entryPrice := 0.0
	curve := []EquityPoint{}

	for i := 51; i < len(bars); i++ {
		price := bars[i].Close
		s20 := sma20.At(i - 1)
		s50 := sma50.At(i - 1)
		prevS20 := sma20.At(i - 2)
		prevS50 := sma50.At(i - 2)

		if s20.OK && s50.OK && prevS20.OK && prevS50.OK {
			if position == 0 {
				if prevS20.F <= prevS50.F && s20.F > s50.F {
					position = equity / price
					entryPrice = price
					equity = 0
					trades++
				}
			} else {
				if prevS20.F >= prevS50.F && s20.F < s50.F {
					exitVal := position * price
					if price > entryPrice {
						wins++
					}
					equity = exitVal
					position = 0
				}
			}
		}

		currentVal := equity
		if position > 0 {
			currentVal = position * price
		}
		curve = append(curve, EquityPoint{Time: bars[i].Time, Equity: currentVal})
	}

	// Mark the final open position to market.
	if position > 0 {
		lastClose := bars[len(bars)-1].Close
		equity = position * lastClose
		if lastClose > entryPrice {
			wins++
		}
	}

	winRate := 0.0
	if trades > 0 {
		winRate = float64(wins) / float64(trades) * 100
	}
	return Result{
		TotalTrades:     trades,
		WinRate:         winRate,
		FinalPnLPercent: (equity - startingEquity) / startingEquity * 100,
		EquityCurve:     curve,
	}
}
