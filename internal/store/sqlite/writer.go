package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"chartengine/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/chart.db"

	// OnCommit, when set, is called with the duration of each batch commit.
	OnCommit func(time.Duration)
}

// Writer is a single-connection SQLite writer. Closed bars are batched
// through Run; signals and thresholds are written directly.
type Writer struct {
	db       *sql.DB
	onCommit func(time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database with WAL mode and creates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db, onCommit: cfg.OnCommit}, nil
}

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol  TEXT    NOT NULL,
			ts      INTEGER NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  REAL,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS signals (
			symbol     TEXT    NOT NULL,
			id         TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			price      REAL    NOT NULL,
			direction  TEXT    NOT NULL,
			fast_ma    REAL,
			slow_ma    REAL,
			reason     TEXT,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, id)
		);

		CREATE TABLE IF NOT EXISTS thresholds (
			symbol TEXT NOT NULL,
			id     TEXT NOT NULL,
			label  TEXT,
			price  REAL NOT NULL,
			PRIMARY KEY (symbol, id)
		);
	`)
	return err
}

// Run reads bar updates from barCh and inserts closed bars in batched
// transactions. Forming updates are skipped. Flushes every batchSize bars
// or every flushDelay, whichever first. Blocks until ctx is cancelled or
// barCh is closed.
func (w *Writer) Run(ctx context.Context, barCh <-chan model.BarUpdate) {
	batch := make([]model.BarUpdate, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else if w.onCommit != nil {
			w.onCommit(time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case u, ok := <-barCh:
			if !ok {
				flush()
				return
			}
			if u.Forming {
				continue
			}
			batch = append(batch, u)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// SaveBars upserts bars for one symbol in a single transaction.
func (w *Writer) SaveBars(ctx context.Context, symbol string, bars []model.Bar) error {
	batch := make([]model.BarUpdate, len(bars))
	for i, b := range bars {
		batch[i] = model.BarUpdate{Symbol: symbol, Bar: b}
	}
	return w.insertBatch(batch)
}

func (w *Writer) insertBatch(batch []model.BarUpdate) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, u := range batch {
		b := u.Bar
		if _, err := stmt.Exec(u.Symbol, b.Time, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// RecordSignal inserts sig unless its ID is already recorded for the symbol.
// Reports whether the signal was new.
func (w *Writer) RecordSignal(ctx context.Context, sig model.Signal) (bool, error) {
	res, err := w.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO signals (symbol, id, ts, price, direction, fast_ma, slow_ma, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sig.Symbol, sig.ID, sig.Timestamp, sig.Price, string(sig.Direction), sig.FastMA, sig.SlowMA, sig.Reason, time.Now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("sqlite insert signal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite signal rows: %w", err)
	}
	return n == 1, nil
}

// SaveThreshold upserts a threshold for a symbol.
func (w *Writer) SaveThreshold(ctx context.Context, symbol string, th model.Threshold) error {
	_, err := w.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO thresholds (symbol, id, label, price) VALUES (?, ?, ?, ?)`,
		symbol, th.ID, th.Label, th.Price)
	if err != nil {
		return fmt.Errorf("sqlite save threshold: %w", err)
	}
	return nil
}

// DeleteThreshold removes a threshold. Deleting a missing ID is not an error.
func (w *Writer) DeleteThreshold(ctx context.Context, symbol, id string) error {
	if _, err := w.db.ExecContext(ctx, `DELETE FROM thresholds WHERE symbol = ? AND id = ?`, symbol, id); err != nil {
		return fmt.Errorf("sqlite delete threshold: %w", err)
	}
	return nil
}

// LastBarTime returns the most recent stored bar time for a symbol, or 0.
func (w *Writer) LastBarTime(symbol string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(`SELECT MAX(ts) FROM bars WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
