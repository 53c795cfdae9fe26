// Package indicator provides moving-average calculations over bar data.
//
// The streaming indicators (SMA, EMA, RSI) consume one bar at a time and
// expose the current value. Compute runs them over a whole window to produce
// the overlay series the chart draws.
package indicator

import "chartengine/internal/model"

// Indicator is the interface for all streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA", "EMA").
	Name() string

	// Update feeds a new bar and recalculates.
	Update(bar model.Bar)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Peek computes what Value() would be if a bar with this close were
	// added next, WITHOUT mutating internal state. Used for forming bars.
	Peek(close float64) float64

	// Reset clears all state for reuse.
	Reset()
}

// New creates a moving-average indicator of the given type.
// Unknown types fall back to SMA.
func New(typ model.MAType, period int) Indicator {
	switch typ {
	case model.EMA:
		return NewEMA(period)
	default:
		return NewSMA(period)
	}
}
