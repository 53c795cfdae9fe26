// Package ringbuf provides the bounded, display-ordered bar window that backs
// a chart. It appends or replaces the most recent bar and evicts the oldest
// bars once the configured length is exceeded.
//
// A Window is not safe for concurrent mutation; the owner serializes access.
package ringbuf

import "chartengine/internal/model"

// DefaultMaxLength is used when a non-positive length is requested.
const DefaultMaxLength = 500

// Window is a capped FIFO of bars in display (oldest first) order.
type Window struct {
	bars    []model.Bar
	max     int
	evicted uint64
}

// NewWindow creates a window holding at most maxLength bars.
func NewWindow(maxLength int) *Window {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Window{
		bars: make([]model.Bar, 0, maxLength+1),
		max:  maxLength,
	}
}

// Ingest appends bar, or replaces the last bar when replaceLast is set and
// the times match. The oldest bars are dropped once the cap is exceeded.
// Reports whether the last bar was replaced.
func (w *Window) Ingest(bar model.Bar, replaceLast bool) bool {
	if n := len(w.bars); replaceLast && n > 0 && w.bars[n-1].Time == bar.Time {
		w.bars[n-1] = bar
		return true
	}
	w.bars = append(w.bars, bar)
	w.trim()
	return false
}

// SetAll replaces the contents with the most recent maxLength bars.
func (w *Window) SetAll(bars []model.Bar) {
	if len(bars) > w.max {
		w.evicted += uint64(len(bars) - w.max)
		bars = bars[len(bars)-w.max:]
	}
	w.bars = append(w.bars[:0], bars...)
}

// Clear empties the window.
func (w *Window) Clear() {
	w.bars = w.bars[:0]
}

// Bars returns a copy of the window contents, oldest first.
func (w *Window) Bars() []model.Bar {
	out := make([]model.Bar, len(w.bars))
	copy(out, w.bars)
	return out
}

// View returns the backing slice without copying. Callers must not modify
// it or retain it past the next mutation.
func (w *Window) View() []model.Bar {
	return w.bars
}

// Last returns the most recent bar.
func (w *Window) Last() (model.Bar, bool) {
	if len(w.bars) == 0 {
		return model.Bar{}, false
	}
	return w.bars[len(w.bars)-1], true
}

// Len returns the number of bars held.
func (w *Window) Len() int { return len(w.bars) }

// Cap returns the configured maximum length.
func (w *Window) Cap() int { return w.max }

// Evicted returns the total number of bars dropped from the front.
func (w *Window) Evicted() uint64 { return w.evicted }

// trim drops from the front until len == max. The backing array is compacted
// so it does not grow without bound under steady streaming.
func (w *Window) trim() {
	over := len(w.bars) - w.max
	if over <= 0 {
		return
	}
	w.evicted += uint64(over)
	n := copy(w.bars, w.bars[over:])
	w.bars = w.bars[:n]
}
