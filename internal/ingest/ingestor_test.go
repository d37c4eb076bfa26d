package ingest

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"CandleLedger/internal/model"
	"CandleLedger/internal/store"
)

type fromCall struct {
	symbol string
	start  int64
}

// fakeMarket serves a fixed per-symbol candle history and records every
// cursor-based request.
type fakeMarket struct {
	bars      map[string][]model.Kline // ascending by open-time
	recentErr map[string]error
	fromCalls []fromCall
}

func (f *fakeMarket) FetchRecent(symbol, interval string, limit int) ([]model.Kline, error) {
	if err := f.recentErr[symbol]; err != nil {
		return nil, err
	}
	kl := f.bars[symbol]
	if len(kl) > limit {
		kl = kl[len(kl)-limit:]
	}
	return kl, nil
}

func (f *fakeMarket) FetchFrom(symbol, interval string, startMS int64, limit int) ([]model.Kline, error) {
	f.fromCalls = append(f.fromCalls, fromCall{symbol, startMS})
	var out []model.Kline
	for _, k := range f.bars[symbol] {
		if k.OpenTime >= startMS {
			out = append(out, k)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func genKlines(start int64, n int, stepMS int64) []model.Kline {
	out := make([]model.Kline, 0, n)
	for i := 0; i < n; i++ {
		ts := start + int64(i)*stepMS
		out = append(out, model.Kline{OpenTime: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10})
	}
	return out
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestIngestor(client MarketData, st store.Store, symbols ...string) *Ingestor {
	return NewIngestor(client, st, Config{
		Symbols:    symbols,
		Interval:   "1m",
		BatchLimit: 900,
		Lookback:   12 * time.Hour,
	})
}

func TestUpdateSymbol_BootstrapThenNoDuplicates(t *testing.T) {
	st := newTestStore(t)
	// 900 bars at 10s spacing ending just now, all inside the 12h bootstrap window.
	start := time.Now().Add(-150 * time.Minute).UnixMilli()
	market := &fakeMarket{bars: map[string][]model.Kline{"BTCUSDT": genKlines(start, 900, 10_000)}}
	ing := newTestIngestor(market, st, "BTCUSDT")

	inserted, err := ing.UpdateSymbol("BTCUSDT")
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if inserted != 900 {
		t.Fatalf("first pass inserted %d, want 900", inserted)
	}

	lastOpen := market.bars["BTCUSDT"][899].OpenTime
	firstPassCalls := len(market.fromCalls)

	inserted, err = ing.UpdateSymbol("BTCUSDT")
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if inserted != 0 {
		t.Errorf("second pass inserted %d, want 0", inserted)
	}

	// The second pass must resume past the last stored bar, never
	// re-requesting already-ingested history.
	for _, call := range market.fromCalls[firstPassCalls:] {
		if call.start <= lastOpen {
			t.Errorf("second pass re-requested old data: start %d <= last open %d", call.start, lastOpen)
		}
	}
}

func TestUpdateSymbol_ResumeCursorIsMaxPlusOne(t *testing.T) {
	st := newTestStore(t)
	inst, err := st.FindOrCreateInstrument("BTCUSDT", "crypto")
	if err != nil {
		t.Fatal(err)
	}
	const maxOpen = int64(1_700_000_000_000)
	if _, _, err := st.UpsertBars([]model.Bar{{InstrumentID: inst.ID, OpenTime: maxOpen, Timeframe: "1m"}}); err != nil {
		t.Fatal(err)
	}

	market := &fakeMarket{bars: map[string][]model.Kline{}}
	ing := newTestIngestor(market, st, "BTCUSDT")
	if _, err := ing.UpdateSymbol("BTCUSDT"); err != nil {
		t.Fatal(err)
	}

	if len(market.fromCalls) == 0 {
		t.Fatal("expected at least one fetch")
	}
	if got := market.fromCalls[0].start; got != maxOpen+1 {
		t.Errorf("resume cursor = %d, want %d", got, maxOpen+1)
	}
}

func TestUpdateSymbol_PaginationTerminatesOnShortPage(t *testing.T) {
	st := newTestStore(t)
	start := time.Now().Add(-25 * time.Minute).UnixMilli()
	market := &fakeMarket{bars: map[string][]model.Kline{"BTCUSDT": genKlines(start, 25, 60_000)}}
	ing := NewIngestor(market, st, Config{
		Symbols: []string{"BTCUSDT"}, Interval: "1m", BatchLimit: 10, Lookback: 12 * time.Hour,
	})

	inserted, err := ing.UpdateSymbol("BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 25 {
		t.Errorf("inserted %d, want 25", inserted)
	}
	// Two full pages, then a short page of 5 that ends the loop.
	if len(market.fromCalls) != 3 {
		t.Errorf("made %d fetches, want 3", len(market.fromCalls))
	}
}

func TestUpdateSymbol_AliasFallback(t *testing.T) {
	st := newTestStore(t)
	start := time.Now().Add(-5 * time.Minute).UnixMilli()
	// Upstream only knows the USD-quoted variant.
	market := &fakeMarket{bars: map[string][]model.Kline{"BTCUSD": genKlines(start, 5, 60_000)}}
	ing := newTestIngestor(market, st, "BTCUSDT")

	inserted, err := ing.UpdateSymbol("BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 5 {
		t.Errorf("inserted %d, want 5", inserted)
	}
	// The logical symbol stays canonical for storage.
	if _, ok, _ := st.FindInstrument("BTCUSDT"); !ok {
		t.Error("expected instrument stored under logical symbol")
	}
}

// failingStore makes instrument resolution fail for one ticker family.
type failingStore struct {
	store.Store
}

func (f *failingStore) FindInstrument(ticker string) (model.Instrument, bool, error) {
	if strings.HasPrefix(ticker, "BAD") {
		return model.Instrument{}, false, errors.New("instrument lookup broken")
	}
	return f.Store.FindInstrument(ticker)
}

func TestRunOnce_FailureIsolation(t *testing.T) {
	st := newTestStore(t)
	start := time.Now().Add(-3 * time.Minute).UnixMilli()
	market := &fakeMarket{bars: map[string][]model.Kline{"ETHUSDT": genKlines(start, 3, 60_000)}}
	ing := newTestIngestor(market, &failingStore{Store: st}, "BADUSDT", "ETHUSDT")

	inserted, failures := ing.RunOnce()
	if len(failures) != 1 || !strings.HasPrefix(failures[0], "BADUSDT:") {
		t.Fatalf("expected one BADUSDT failure, got %v", failures)
	}
	if inserted != 3 {
		t.Errorf("healthy symbol not processed after failure: inserted %d, want 3", inserted)
	}
}

func TestBootstrapSymbol_FirstSuccessWins(t *testing.T) {
	st := newTestStore(t)
	start := time.Now().Add(-5 * time.Minute).UnixMilli()
	market := &fakeMarket{
		bars:      map[string][]model.Kline{"BTCUSD": genKlines(start, 5, 60_000)},
		recentErr: map[string]error{"BTCUSDT": errors.New("451 blocked")},
	}
	ing := newTestIngestor(market, st, "BTCUSDT")

	inserted, err := ing.BootstrapSymbol("BTCUSDT")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if inserted != 5 {
		t.Errorf("inserted %d, want 5", inserted)
	}
	if _, ok, _ := st.FindInstrument("BTCUSD"); !ok {
		t.Error("expected fallback alias instrument to exist")
	}
}

func TestBootstrapSymbol_AllAliasesFail(t *testing.T) {
	st := newTestStore(t)
	market := &fakeMarket{
		bars: map[string][]model.Kline{},
		recentErr: map[string]error{
			"BTCUSDT": errors.New("host a down"),
			"BTCUSD":  errors.New("host b down"),
		},
	}
	ing := newTestIngestor(market, st, "BTCUSDT")

	if _, err := ing.BootstrapSymbol("BTCUSDT"); err == nil {
		t.Fatal("expected error when every alias fails")
	}
}
