package portfolio

import (
	"fmt"
	"time"

	"CandleLedger/internal/model"
	"CandleLedger/internal/store"
)

// Snapshotter produces portfolio valuations from stored candles and open
// positions, and maintains the append-only snapshot history that drawdown
// analysis reads.
type Snapshotter struct {
	Store     store.Store
	Timeframe string  // timeframe whose latest closes mark positions
	Cash      float64 // cash balance included in equity
	Lookback  int     // max snapshots fed into drawdown analysis

	now func() time.Time
}

// NewSnapshotter creates a Snapshotter.
func NewSnapshotter(st store.Store, timeframe string, cash float64, lookback int) *Snapshotter {
	return &Snapshotter{Store: st, Timeframe: timeframe, Cash: cash, Lookback: lookback, now: time.Now}
}

// Valuation computes the current mark-to-market valuation without
// persisting anything.
func (s *Snapshotter) Valuation() (model.Valuation, error) {
	positions, err := s.Store.Positions()
	if err != nil {
		return model.Valuation{}, fmt.Errorf("load positions: %w", err)
	}
	prices, err := s.Store.LatestCloses(s.Timeframe)
	if err != nil {
		return model.Valuation{}, fmt.Errorf("load latest closes: %w", err)
	}
	return ComputePnL(positions, prices, s.Cash), nil
}

// Take computes the current valuation and appends it to the snapshot
// history, returning the stored snapshot.
func (s *Snapshotter) Take() (model.Snapshot, error) {
	val, err := s.Valuation()
	if err != nil {
		return model.Snapshot{}, err
	}
	snap := model.Snapshot{
		TS:         s.now().UnixMilli(),
		Equity:     val.Equity,
		Cash:       val.Cash,
		Unrealized: val.Unrealized,
		Exposure:   val.Exposure,
	}
	if err := s.Store.AppendSnapshot(snap); err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

// DrawdownReport runs drawdown analysis over the most recent snapshots.
// The returned count is the number of points analyzed; fewer than 2 means
// there is no history to speak of yet.
func (s *Snapshotter) DrawdownReport() (Drawdown, int, error) {
	points, err := s.Store.RecentSnapshots(s.Lookback)
	if err != nil {
		return Drawdown{}, 0, fmt.Errorf("load snapshots: %w", err)
	}
	return MaxDrawdown(points), len(points), nil
}
