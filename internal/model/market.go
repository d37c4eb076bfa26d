package model

// Instrument is a tradable symbol. Unique by ticker; created on first
// reference during ingestion or position seeding, never deleted.
type Instrument struct {
	ID         int64
	Ticker     string
	AssetClass string // "crypto", "equity", "fx"
}

// Kline is one raw candle as returned by the market-data API, oldest first
// within a page. OpenTime is epoch milliseconds.
type Kline struct {
	OpenTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Bar is one stored OHLCV candle. The triple (InstrumentID, OpenTime,
// Timeframe) is the idempotency key: bars are append-only and never
// overwritten once stored.
type Bar struct {
	InstrumentID int64
	OpenTime     int64 // epoch ms
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	Timeframe    string // e.g. "1m"
}
