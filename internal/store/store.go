package store

import "CandleLedger/internal/model"

// Store is durable storage for instruments, bars, positions and portfolio
// snapshots. Bars are idempotent on (instrument, open-time, timeframe):
// re-inserting an existing key is a silent no-op, never an overwrite.
type Store interface {
	// FindInstrument looks an instrument up by ticker.
	FindInstrument(ticker string) (model.Instrument, bool, error)

	// FindOrCreateInstrument looks an instrument up by ticker, creating it
	// with the given asset class when absent.
	FindOrCreateInstrument(ticker, assetClass string) (model.Instrument, error)

	// UpsertBars bulk-inserts bars inside one transaction: a page is either
	// fully stored or not stored at all. Rows whose key already exists are
	// skipped. Returns the number of rows submitted and the number actually
	// inserted; pagination termination must use the inserted count.
	UpsertBars(bars []model.Bar) (attempted, inserted int, err error)

	// MaxOpenTime returns the latest stored open-time for the instrument and
	// timeframe; ok is false when no bars are stored yet.
	MaxOpenTime(instrumentID int64, timeframe string) (ts int64, ok bool, err error)

	// LatestCloses maps instrument ID to the close of its most recent bar
	// (greatest open-time) for the given timeframe.
	LatestCloses(timeframe string) (map[int64]float64, error)

	// Positions returns all current positions with tickers joined in.
	Positions() ([]model.Position, error)

	// ReplacePosition drops any existing position for the ticker and writes
	// a new one, creating the instrument if needed.
	ReplacePosition(ticker, assetClass string, qty, avgPrice float64) error

	// AppendSnapshot appends one valuation record to the snapshot history.
	AppendSnapshot(snap model.Snapshot) error

	// RecentSnapshots returns up to limit of the newest snapshots, ordered
	// oldest first, ready for drawdown analysis.
	RecentSnapshots(limit int) ([]model.Snapshot, error)

	Close() error
}
