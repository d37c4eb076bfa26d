package ingest

import (
	"fmt"
	"log"
	"strings"
	"time"

	"CandleLedger/internal/model"
	"CandleLedger/internal/store"
)

const assetClassCrypto = "crypto"

// MarketData fetches candle batches from the upstream API. FetchRecent
// surfaces an error when all hosts are exhausted; FetchFrom reports
// exhaustion as an empty page since paginating callers treat it as
// end-of-stream. Both return klines oldest first.
type MarketData interface {
	FetchRecent(symbol, interval string, limit int) ([]model.Kline, error)
	FetchFrom(symbol, interval string, startMS int64, limit int) ([]model.Kline, error)
}

// Config holds the per-run ingestion settings.
type Config struct {
	Symbols    []string      // logical symbols, e.g. BTCUSDT
	Interval   string        // candle timeframe, e.g. "1m"
	BatchLimit int           // candles per API call (<= 1000)
	Lookback   time.Duration // bootstrap window when no history is stored
}

// Ingestor drives candle ingestion: alias resolution, resume-cursor
// computation, paginated fetch-and-store. Symbols are processed strictly
// sequentially; one symbol's failure never aborts the pass.
type Ingestor struct {
	Client MarketData
	Store  store.Store
	Cfg    Config

	now func() time.Time
}

// NewIngestor creates an Ingestor.
func NewIngestor(client MarketData, st store.Store, cfg Config) *Ingestor {
	return &Ingestor{Client: client, Store: st, Cfg: cfg, now: time.Now}
}

// RunOnce runs one incremental update pass over all configured symbols.
// It returns the total number of newly inserted bars and one "symbol:
// reason" entry per failed symbol; failures are also logged.
func (ing *Ingestor) RunOnce() (int, []string) {
	total := 0
	var failures []string
	for _, sym := range ing.Cfg.Symbols {
		n, err := ing.UpdateSymbol(sym)
		total += n
		if err != nil {
			log.Printf("[ERROR] update %s: %v", sym, err)
			failures = append(failures, fmt.Sprintf("%s: %v", sym, err))
		}
	}
	return total, failures
}

// UpdateSymbol ingests new candles for one logical symbol, resuming from
// the last stored open-time. Returns the number of bars inserted.
func (ing *Ingestor) UpdateSymbol(logical string) (int, error) {
	inst, err := ing.resolveInstrument(logical)
	if err != nil {
		return 0, err
	}

	cursor, err := ing.startCursor(inst)
	if err != nil {
		return 0, err
	}

	total := 0
	for {
		page := ing.fetchPage(inst.Ticker, cursor)
		if len(page) == 0 {
			break
		}

		_, inserted, err := ing.Store.UpsertBars(barsFromKlines(inst.ID, ing.Cfg.Interval, page))
		if err != nil {
			return total, fmt.Errorf("store page for %s: %w", inst.Ticker, err)
		}
		total += inserted

		next := page[len(page)-1].OpenTime + 1
		// Stop on a short page (end of available history), when nothing new
		// was inserted, or when the cursor fails to advance.
		if inserted == 0 || len(page) < ing.Cfg.BatchLimit || next <= cursor {
			break
		}
		cursor = next
	}

	log.Printf("[INFO] updated %s (%s): +%d bars", inst.Ticker, ing.Cfg.Interval, total)
	return total, nil
}

// resolveInstrument adopts the first alias already known to the store,
// falling back to creating the logical symbol itself.
func (ing *Ingestor) resolveInstrument(logical string) (model.Instrument, error) {
	for _, alias := range Aliases(logical) {
		inst, ok, err := ing.Store.FindInstrument(alias)
		if err != nil {
			return model.Instrument{}, err
		}
		if ok {
			return inst, nil
		}
	}
	return ing.Store.FindOrCreateInstrument(logical, assetClassCrypto)
}

// startCursor is maxOpenTime+1 when history exists, so the last stored bar
// is never re-requested; otherwise now minus the bootstrap lookback.
func (ing *Ingestor) startCursor(inst model.Instrument) (int64, error) {
	ts, ok, err := ing.Store.MaxOpenTime(inst.ID, ing.Cfg.Interval)
	if err != nil {
		return 0, err
	}
	if ok {
		return ts + 1, nil
	}
	return ing.now().Add(-ing.Cfg.Lookback).UnixMilli(), nil
}

// fetchPage tries the instrument's aliases in order and accepts the first
// non-empty page. Alias-level failures are logged and skipped.
func (ing *Ingestor) fetchPage(ticker string, cursor int64) []model.Kline {
	for _, alias := range Aliases(ticker) {
		kl, err := ing.Client.FetchFrom(alias, ing.Cfg.Interval, cursor, ing.Cfg.BatchLimit)
		if err != nil {
			log.Printf("[WARN] fetch %s from %d: %v", alias, cursor, err)
			continue
		}
		if len(kl) > 0 {
			return kl
		}
	}
	return nil
}

// Bootstrap runs the windowed (non-resuming) ingestion over all configured
// symbols: a single fetch of the most recent candles per symbol, same alias
// fallback and dedup as the incremental path. Per-symbol failure isolation
// applies here too.
func (ing *Ingestor) Bootstrap() (int, []string) {
	total := 0
	var failures []string
	for _, sym := range ing.Cfg.Symbols {
		n, err := ing.BootstrapSymbol(sym)
		total += n
		if err != nil {
			log.Printf("[ERROR] bootstrap %s: %v", sym, err)
			failures = append(failures, fmt.Sprintf("%s: %v", sym, err))
		}
	}
	return total, failures
}

// BootstrapSymbol fetches one recent window for the first alias that
// succeeds and stores it. First success wins: later aliases are never
// consulted once one has returned.
func (ing *Ingestor) BootstrapSymbol(logical string) (int, error) {
	aliases := Aliases(logical)
	var lastErr error
	for _, alias := range aliases {
		inst, err := ing.Store.FindOrCreateInstrument(alias, assetClassCrypto)
		if err != nil {
			return 0, err
		}
		kl, err := ing.Client.FetchRecent(alias, ing.Cfg.Interval, ing.Cfg.BatchLimit)
		if err != nil {
			lastErr = err
			continue
		}
		_, inserted, err := ing.Store.UpsertBars(barsFromKlines(inst.ID, ing.Cfg.Interval, kl))
		if err != nil {
			return 0, fmt.Errorf("store bootstrap for %s: %w", alias, err)
		}
		log.Printf("[INFO] bootstrapped %s (%s): +%d bars", alias, ing.Cfg.Interval, inserted)
		return inserted, nil
	}
	return 0, fmt.Errorf("no alias of %s succeeded (%s): %w", logical, strings.Join(aliases, ", "), lastErr)
}

func barsFromKlines(instrumentID int64, timeframe string, klines []model.Kline) []model.Bar {
	bars := make([]model.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, model.Bar{
			InstrumentID: instrumentID,
			OpenTime:     k.OpenTime,
			Open:         k.Open,
			High:         k.High,
			Low:          k.Low,
			Close:        k.Close,
			Volume:       k.Volume,
			Timeframe:    timeframe,
		})
	}
	return bars
}
