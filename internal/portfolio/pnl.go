package portfolio

import (
	"math"

	"CandleLedger/internal/model"
)

// ComputePnL marks the given positions to the latest known prices.
// Positions without a price are skipped, not treated as zero. With no
// positions at all the result is just the cash balance.
func ComputePnL(positions []model.Position, prices map[int64]float64, cash float64) model.Valuation {
	val := model.Valuation{
		Equity:   cash,
		Cash:     cash,
		ByTicker: make(map[string]model.PositionPnL),
	}
	if len(positions) == 0 {
		return val
	}

	for _, p := range positions {
		px, ok := prices[p.InstrumentID]
		if !ok {
			continue
		}
		upnl := (px - p.AvgPrice) * p.Qty
		mv := px * p.Qty
		val.Unrealized += upnl
		val.Exposure += math.Abs(mv)
		val.ByTicker[p.Ticker] = model.PositionPnL{
			Price:       px,
			Qty:         p.Qty,
			AvgPrice:    p.AvgPrice,
			Unrealized:  upnl,
			MarketValue: mv,
		}
	}

	val.Equity = cash + val.Unrealized
	return val
}
