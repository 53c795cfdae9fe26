package redis

import (
	"context"
	"errors"
	"log"
	"sync"

	"chartengine/internal/model"
)

// BufferedPublisher wraps a SnapshotPublisher with a circuit breaker.
// While the circuit is open it keeps the latest snapshot per symbol and
// queues signals, then replays them once a publish succeeds again.
type BufferedPublisher struct {
	pub model.SnapshotPublisher
	cb  *CircuitBreaker

	mu        sync.Mutex
	snapshots map[string][]byte
	signals   []model.Signal
	maxSig    int

	// OnBuffer is called whenever a publish is held back (for metrics).
	OnBuffer func()
	// OnFlush is called with the number of replayed publishes.
	OnFlush func(count int)
}

// NewBufferedPublisher wraps pub. maxSignals bounds the signal queue; the
// oldest signals are dropped beyond it.
func NewBufferedPublisher(pub model.SnapshotPublisher, cb *CircuitBreaker, maxSignals int) *BufferedPublisher {
	if maxSignals <= 0 {
		maxSignals = 1000
	}
	return &BufferedPublisher{
		pub:       pub,
		cb:        cb,
		snapshots: make(map[string][]byte),
		maxSig:    maxSignals,
	}
}

// PublishSnapshot publishes through the breaker, holding the snapshot when open.
func (bp *BufferedPublisher) PublishSnapshot(ctx context.Context, symbol string, data []byte) error {
	err := bp.cb.Execute(func() error { return bp.pub.PublishSnapshot(ctx, symbol, data) })
	if err == nil {
		bp.flush(ctx)
		return nil
	}
	bp.mu.Lock()
	bp.snapshots[symbol] = data
	bp.mu.Unlock()
	bp.buffered()
	if errors.Is(err, ErrCircuitOpen) {
		return nil
	}
	return err
}

// PublishSignal publishes through the breaker, queueing the signal when open.
func (bp *BufferedPublisher) PublishSignal(ctx context.Context, sig model.Signal) error {
	err := bp.cb.Execute(func() error { return bp.pub.PublishSignal(ctx, sig) })
	if err == nil {
		bp.flush(ctx)
		return nil
	}
	bp.mu.Lock()
	if len(bp.signals) >= bp.maxSig {
		bp.signals = bp.signals[1:]
	}
	bp.signals = append(bp.signals, sig)
	bp.mu.Unlock()
	bp.buffered()
	if errors.Is(err, ErrCircuitOpen) {
		return nil
	}
	return err
}

// Pending returns the number of held snapshots and queued signals.
func (bp *BufferedPublisher) Pending() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.snapshots) + len(bp.signals)
}

func (bp *BufferedPublisher) buffered() {
	if bp.OnBuffer != nil {
		bp.OnBuffer()
	}
}

// flush replays held publishes directly; anything that fails again is dropped
// and logged.
func (bp *BufferedPublisher) flush(ctx context.Context) {
	bp.mu.Lock()
	if len(bp.snapshots) == 0 && len(bp.signals) == 0 {
		bp.mu.Unlock()
		return
	}
	snaps, sigs := bp.snapshots, bp.signals
	bp.snapshots = make(map[string][]byte)
	bp.signals = nil
	bp.mu.Unlock()

	flushed := 0
	for _, sig := range sigs {
		if err := bp.pub.PublishSignal(ctx, sig); err != nil {
			log.Printf("[buffered-publisher] replay signal %s: %v", sig.ID, err)
			continue
		}
		flushed++
	}
	for sym, data := range snaps {
		if err := bp.pub.PublishSnapshot(ctx, sym, data); err != nil {
			log.Printf("[buffered-publisher] replay snapshot %s: %v", sym, err)
			continue
		}
		flushed++
	}

	log.Printf("[buffered-publisher] flushed %d buffered publishes", flushed)
	if bp.OnFlush != nil {
		bp.OnFlush(flushed)
	}
}
