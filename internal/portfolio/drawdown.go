package portfolio

import "CandleLedger/internal/model"

// Drawdown is the worst peak-to-trough equity decline over a series.
// TroughTS is only meaningful when Abs > 0; a series that never declines
// reports a zero drawdown carrying the last peak's timestamp and no trough.
type Drawdown struct {
	Abs      float64
	Pct      float64
	PeakTS   int64
	TroughTS int64
}

// MaxDrawdown scans a chronological (oldest first) equity series in one
// pass, maintaining a running peak. A point strictly above the running peak
// becomes the new peak and is never evaluated as a trough. Fewer than 2
// points yield a zero result.
func MaxDrawdown(points []model.Snapshot) Drawdown {
	if len(points) < 2 {
		return Drawdown{}
	}

	var dd Drawdown
	peak := points[0].Equity
	peakTS := points[0].TS
	dd.PeakTS = peakTS

	for _, p := range points[1:] {
		if p.Equity > peak {
			peak = p.Equity
			peakTS = p.TS
			if dd.Abs == 0 {
				dd.PeakTS = peakTS
			}
			continue
		}

		abs := peak - p.Equity
		if abs > dd.Abs {
			dd.Abs = abs
			if peak != 0 {
				dd.Pct = abs / peak
			} else {
				dd.Pct = 0
			}
			dd.PeakTS = peakTS
			dd.TroughTS = p.TS
		}
	}
	return dd
}
