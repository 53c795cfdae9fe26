package model

import "context"

// ── Storage Port Interfaces ──
// These decouple the chart service from the concrete Redis and SQLite stores.

// BarReader loads closed bars for warm-up and replay.
type BarReader interface {
	// ReadBars returns bars after afterMs in ascending time order. With
	// limit > 0 only the most recent limit bars are returned.
	ReadBars(ctx context.Context, symbol string, afterMs int64, limit int) ([]Bar, error)
}

// SignalLedger records signals once per ID.
type SignalLedger interface {
	// RecordSignal stores sig and reports whether it was new.
	RecordSignal(ctx context.Context, sig Signal) (bool, error)
}

// SignalLister reads back recorded signals, newest first.
type SignalLister interface {
	ListSignals(ctx context.Context, symbol string, limit int) ([]Signal, error)
}

// ThresholdStore persists thresholds so they survive restarts.
type ThresholdStore interface {
	SaveThreshold(ctx context.Context, symbol string, th Threshold) error
	DeleteThreshold(ctx context.Context, symbol, id string) error
}

// SnapshotPublisher pushes rendered chart state to live subscribers.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, symbol string, data []byte) error
	PublishSignal(ctx context.Context, sig Signal) error
}

// ThresholdLister reads persisted thresholds back, in insertion order.
type ThresholdLister interface {
	ListThresholds(ctx context.Context, symbol string) ([]Threshold, error)
}
