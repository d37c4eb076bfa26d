package model

// Position is the current holding for one instrument. At most one per
// instrument; mutated by explicit seeding, never derived from bar data.
type Position struct {
	ID           int64
	InstrumentID int64
	Ticker       string // joined from the instrument row
	Qty          float64
	AvgPrice     float64
}

// Snapshot is one timestamped portfolio valuation record. Snapshots form an
// append-only history ordered by TS and are the input series for drawdown
// analysis.
type Snapshot struct {
	TS         int64 // epoch ms
	Equity     float64
	Cash       float64
	Unrealized float64
	Exposure   float64
}

// PositionPnL is the per-instrument valuation breakdown.
type PositionPnL struct {
	Price       float64
	Qty         float64
	AvgPrice    float64
	Unrealized  float64
	MarketValue float64
}

// Valuation is a mark-to-market portfolio valuation.
type Valuation struct {
	Equity     float64
	Cash       float64
	Unrealized float64
	Exposure   float64
	ByTicker   map[string]PositionPnL
}
