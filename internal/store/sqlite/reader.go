package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"chartengine/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access for warm-up, replay and the HTTP API.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars returns bars after afterMs in ascending time order. With limit > 0
// only the most recent limit bars are returned.
func (r *Reader) ReadBars(ctx context.Context, symbol string, afterMs int64, limit int) ([]model.Bar, error) {
	query := `
		SELECT ts, open, high, low, close, volume FROM bars
		WHERE symbol = ? AND ts > ?
		ORDER BY ts ASC`
	args := []any{symbol, afterMs}
	if limit > 0 {
		query = `
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, volume FROM bars
			WHERE symbol = ? AND ts > ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	bars := []model.Bar{}
	for rows.Next() {
		var b model.Bar
		var vol sql.NullFloat64
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &vol); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.Volume = vol.Float64
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ListSignals returns the most recent signals for a symbol, newest first.
func (r *Reader) ListSignals(ctx context.Context, symbol string, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, symbol, ts, price, direction, fast_ma, slow_ma, reason
		FROM signals
		WHERE symbol = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	sigs := []model.Signal{}
	for rows.Next() {
		var s model.Signal
		var dir string
		var reason sql.NullString
		var fast, slow sql.NullFloat64
		if err := rows.Scan(&s.ID, &s.Symbol, &s.Timestamp, &s.Price, &dir, &fast, &slow, &reason); err != nil {
			return nil, fmt.Errorf("sqlite scan signals: %w", err)
		}
		s.Direction = model.Direction(dir)
		s.FastMA, s.SlowMA, s.Reason = fast.Float64, slow.Float64, reason.String
		sigs = append(sigs, s)
	}
	return sigs, rows.Err()
}

// ListThresholds returns the persisted thresholds for a symbol.
func (r *Reader) ListThresholds(ctx context.Context, symbol string) ([]model.Threshold, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, label, price FROM thresholds WHERE symbol = ? ORDER BY rowid ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("sqlite query thresholds: %w", err)
	}
	defer rows.Close()

	var out []model.Threshold
	for rows.Next() {
		var th model.Threshold
		var label sql.NullString
		if err := rows.Scan(&th.ID, &label, &th.Price); err != nil {
			return nil, fmt.Errorf("sqlite scan thresholds: %w", err)
		}
		th.Label = label.String
		out = append(out, th)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
