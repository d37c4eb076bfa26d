package portfolio

import (
	"testing"

	"CandleLedger/internal/model"
)

func TestComputePnL_NoPositions(t *testing.T) {
	val := ComputePnL(nil, map[int64]float64{1: 50000}, 1000)
	if val.Equity != 1000 || val.Cash != 1000 {
		t.Errorf("expected equity == cash == 1000, got equity=%v cash=%v", val.Equity, val.Cash)
	}
	if val.Unrealized != 0 || val.Exposure != 0 {
		t.Errorf("expected zero unrealized/exposure, got %v/%v", val.Unrealized, val.Exposure)
	}
	if len(val.ByTicker) != 0 {
		t.Errorf("expected empty breakdown, got %v", val.ByTicker)
	}
}

func TestComputePnL_SinglePosition(t *testing.T) {
	positions := []model.Position{{InstrumentID: 1, Ticker: "BTCUSDT", Qty: 2, AvgPrice: 10}}
	val := ComputePnL(positions, map[int64]float64{1: 15}, 1000)

	if val.Unrealized != 10 {
		t.Errorf("expected unrealized 10, got %v", val.Unrealized)
	}
	if val.Exposure != 30 {
		t.Errorf("expected exposure 30, got %v", val.Exposure)
	}
	if val.Equity != 1010 {
		t.Errorf("expected equity 1010, got %v", val.Equity)
	}
	p, ok := val.ByTicker["BTCUSDT"]
	if !ok {
		t.Fatal("expected BTCUSDT in breakdown")
	}
	if p.MarketValue != 30 || p.Unrealized != 10 {
		t.Errorf("unexpected breakdown: %+v", p)
	}
}

func TestComputePnL_MissingPriceSkipped(t *testing.T) {
	positions := []model.Position{
		{InstrumentID: 1, Ticker: "BTCUSDT", Qty: 2, AvgPrice: 10},
		{InstrumentID: 2, Ticker: "ETHUSDT", Qty: 5, AvgPrice: 100},
	}
	val := ComputePnL(positions, map[int64]float64{1: 15}, 0)

	if val.Unrealized != 10 {
		t.Errorf("expected only priced position counted, got unrealized %v", val.Unrealized)
	}
	if _, ok := val.ByTicker["ETHUSDT"]; ok {
		t.Error("position without a price must not appear in the breakdown")
	}
}

func TestComputePnL_ShortPositionExposure(t *testing.T) {
	positions := []model.Position{{InstrumentID: 1, Ticker: "BTCUSDT", Qty: -2, AvgPrice: 10}}
	val := ComputePnL(positions, map[int64]float64{1: 15}, 0)

	if val.Unrealized != -10 {
		t.Errorf("expected unrealized -10 for short, got %v", val.Unrealized)
	}
	if val.Exposure != 30 {
		t.Errorf("expected absolute exposure 30, got %v", val.Exposure)
	}
}
