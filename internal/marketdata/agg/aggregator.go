// Package agg turns a tick stream into OHLCV bar updates.
package agg

import (
	"context"
	"log"
	"sync"
	"time"

	"chartengine/internal/model"
)

// DefaultInterval is the bar bucket width when none is configured.
const DefaultInterval = time.Minute

// barState holds the in-progress bar for one symbol.
type barState struct {
	bucket int64 // bucket start, Unix ms
	bar    model.Bar
	ticks  int
}

// Aggregator builds fixed-width bars from a stream of ticks.
// Every tick produces a forming update for its symbol; a closed update is
// emitted once when the bucket rolls over or its end passes the wall clock.
type Aggregator struct {
	mu     sync.Mutex
	states map[string]*barState

	interval      time.Duration
	flushInterval time.Duration
	now           func() time.Time

	// Metrics hooks (optional, set externally)
	OnDroppedTick func()
}

// New creates an Aggregator with the given bucket width. Non-positive
// intervals fall back to DefaultInterval.
func New(interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	flush := interval / 10
	if flush > time.Second {
		flush = time.Second
	}
	if flush < 10*time.Millisecond {
		flush = 10 * time.Millisecond
	}
	return &Aggregator{
		states:        make(map[string]*barState),
		interval:      interval,
		flushInterval: flush,
		now:           time.Now,
	}
}

// Interval returns the bucket width.
func (a *Aggregator) Interval() time.Duration { return a.interval }

// Run consumes ticks until ctx is cancelled or tickCh closes, sending updates
// to out. Open bars are emitted as closed on exit.
func (a *Aggregator) Run(ctx context.Context, tickCh <-chan model.Tick, out chan<- model.BarUpdate) {
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.flushAll(out)
			return

		case tick, ok := <-tickCh:
			if !ok {
				a.flushAll(out)
				return
			}
			a.processTick(tick, out)

		case <-ticker.C:
			a.flushOld(out)
		}
	}
}

func (a *Aggregator) bucketOf(ts time.Time) int64 {
	ms := a.interval.Milliseconds()
	t := ts.UnixMilli()
	return t - t%ms
}

// processTick folds one tick into its symbol's bar.
func (a *Aggregator) processTick(tick model.Tick, out chan<- model.BarUpdate) {
	if tick.Symbol == "" {
		return
	}
	bucket := a.bucketOf(tick.TickTS)

	a.mu.Lock()
	state, exists := a.states[tick.Symbol]

	if exists && bucket < state.bucket {
		// Late tick for an older bucket
		dropped := a.OnDroppedTick
		a.mu.Unlock()
		if dropped != nil {
			dropped()
		}
		return
	}

	if exists && bucket > state.bucket {
		a.emit(tick.Symbol, state, false, out)
		delete(a.states, tick.Symbol)
		exists = false
	}

	if !exists {
		state = &barState{
			bucket: bucket,
			bar: model.Bar{
				Time:   bucket,
				Open:   tick.Price,
				High:   tick.Price,
				Low:    tick.Price,
				Close:  tick.Price,
				Volume: tick.Qty,
			},
			ticks: 1,
		}
		a.states[tick.Symbol] = state
	} else {
		b := &state.bar
		if tick.Price > b.High {
			b.High = tick.Price
		}
		if tick.Price < b.Low {
			b.Low = tick.Price
		}
		b.Close = tick.Price
		b.Volume += tick.Qty
		state.ticks++
	}

	a.emit(tick.Symbol, state, true, out)
	a.mu.Unlock()
}

// flushOld closes bars whose bucket end is at or before now.
func (a *Aggregator) flushOld(out chan<- model.BarUpdate) {
	now := a.now().UnixMilli()
	width := a.interval.Milliseconds()

	a.mu.Lock()
	defer a.mu.Unlock()

	for sym, state := range a.states {
		if state.bucket+width <= now {
			a.emit(sym, state, false, out)
			delete(a.states, sym)
		}
	}
}

// flushAll closes every open bar.
func (a *Aggregator) flushAll(out chan<- model.BarUpdate) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for sym, state := range a.states {
		a.emit(sym, state, false, out)
		delete(a.states, sym)
	}
}

// Open returns the number of symbols with a bar in progress.
func (a *Aggregator) Open() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.states)
}

// emit sends an update without blocking. Dropped forming updates are
// superseded by the next tick; dropped closed bars are logged.
func (a *Aggregator) emit(symbol string, state *barState, forming bool, out chan<- model.BarUpdate) {
	u := model.BarUpdate{Symbol: symbol, Bar: state.bar, Forming: forming}
	select {
	case out <- u:
	default:
		if !forming {
			log.Printf("[agg] out full, dropping closed bar %s ts=%d", symbol, state.bucket)
		}
	}
}
