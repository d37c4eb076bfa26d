package store

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "modernc.org/sqlite"

	"CandleLedger/internal/model"
)

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so report commands can read while an update pass writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS instruments (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker      TEXT NOT NULL UNIQUE,
			asset_class TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS bars (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			instrument_id INTEGER NOT NULL REFERENCES instruments(id),
			open_time     INTEGER NOT NULL,
			open          REAL,
			high          REAL,
			low           REAL,
			close         REAL,
			volume        REAL,
			timeframe     TEXT NOT NULL,
			UNIQUE(instrument_id, open_time, timeframe)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bars_instrument ON bars(instrument_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bars_open_time ON bars(open_time)`,

		`CREATE TABLE IF NOT EXISTS positions (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			instrument_id INTEGER NOT NULL UNIQUE REFERENCES instruments(id),
			qty           REAL NOT NULL DEFAULT 0,
			avg_price     REAL NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			ts         INTEGER NOT NULL,
			equity     REAL,
			cash       REAL,
			unrealized REAL,
			exposure   REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON portfolio_snapshots(ts)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) FindInstrument(ticker string) (model.Instrument, bool, error) {
	var inst model.Instrument
	err := s.db.QueryRow(
		`SELECT id, ticker, asset_class FROM instruments WHERE ticker = ?`, ticker,
	).Scan(&inst.ID, &inst.Ticker, &inst.AssetClass)
	if err == sql.ErrNoRows {
		return model.Instrument{}, false, nil
	}
	if err != nil {
		return model.Instrument{}, false, fmt.Errorf("find instrument %s: %w", ticker, err)
	}
	return inst, true, nil
}

func (s *SQLiteStore) FindOrCreateInstrument(ticker, assetClass string) (model.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok, err := s.FindInstrument(ticker)
	if err != nil {
		return model.Instrument{}, err
	}
	if ok {
		return inst, nil
	}

	res, err := s.db.Exec(
		`INSERT INTO instruments (ticker, asset_class) VALUES (?, ?)`, ticker, assetClass,
	)
	if err != nil {
		return model.Instrument{}, fmt.Errorf("create instrument %s: %w", ticker, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Instrument{}, fmt.Errorf("instrument id %s: %w", ticker, err)
	}
	return model.Instrument{ID: id, Ticker: ticker, AssetClass: assetClass}, nil
}

func (s *SQLiteStore) UpsertBars(bars []model.Bar) (int, int, error) {
	if len(bars) == 0 {
		return 0, 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO bars
		(instrument_id, open_time, open, high, low, close, volume, timeframe)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(instrument_id, open_time, timeframe) DO NOTHING`)
	if err != nil {
		return 0, 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, b := range bars {
		res, err := stmt.Exec(b.InstrumentID, b.OpenTime, b.Open, b.High, b.Low, b.Close, b.Volume, b.Timeframe)
		if err != nil {
			return 0, 0, fmt.Errorf("upsert bar ts=%d: %w", b.OpenTime, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit upsert: %w", err)
	}
	return len(bars), inserted, nil
}

func (s *SQLiteStore) MaxOpenTime(instrumentID int64, timeframe string) (int64, bool, error) {
	var ts sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(open_time) FROM bars WHERE instrument_id = ? AND timeframe = ?`,
		instrumentID, timeframe,
	).Scan(&ts)
	if err != nil {
		return 0, false, fmt.Errorf("max open time: %w", err)
	}
	if !ts.Valid {
		return 0, false, nil
	}
	return ts.Int64, true, nil
}

func (s *SQLiteStore) LatestCloses(timeframe string) (map[int64]float64, error) {
	rows, err := s.db.Query(`SELECT b.instrument_id, b.close
		FROM bars b
		JOIN (SELECT instrument_id, MAX(open_time) AS mt
		      FROM bars WHERE timeframe = ? GROUP BY instrument_id) latest
		  ON b.instrument_id = latest.instrument_id AND b.open_time = latest.mt
		WHERE b.timeframe = ?`, timeframe, timeframe)
	if err != nil {
		return nil, fmt.Errorf("latest closes: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var close float64
		if err := rows.Scan(&id, &close); err != nil {
			return nil, fmt.Errorf("scan latest close: %w", err)
		}
		out[id] = close
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Positions() ([]model.Position, error) {
	rows, err := s.db.Query(`SELECT p.id, p.instrument_id, i.ticker, p.qty, p.avg_price
		FROM positions p JOIN instruments i ON i.id = p.instrument_id`)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		var p model.Position
		if err := rows.Scan(&p.ID, &p.InstrumentID, &p.Ticker, &p.Qty, &p.AvgPrice); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ReplacePosition(ticker, assetClass string, qty, avgPrice float64) error {
	inst, err := s.FindOrCreateInstrument(ticker, assetClass)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin position tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM positions WHERE instrument_id = ?`, inst.ID); err != nil {
		return fmt.Errorf("clear position %s: %w", ticker, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO positions (instrument_id, qty, avg_price) VALUES (?, ?, ?)`,
		inst.ID, qty, avgPrice,
	); err != nil {
		return fmt.Errorf("insert position %s: %w", ticker, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) AppendSnapshot(snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO portfolio_snapshots
		(ts, equity, cash, unrealized, exposure) VALUES (?,?,?,?,?)`,
		snap.TS, snap.Equity, snap.Cash, snap.Unrealized, snap.Exposure,
	)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentSnapshots(limit int) ([]model.Snapshot, error) {
	rows, err := s.db.Query(`SELECT ts, equity, cash, unrealized, exposure
		FROM portfolio_snapshots ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		if err := rows.Scan(&snap.TS, &snap.Equity, &snap.Cash, &snap.Unrealized, &snap.Exposure); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returns newest first; drawdown wants oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}
