package indicator

import "chartengine/internal/model"

// EMA calculates Exponential Moving Average.
// The first value is the SMA of the first period closes; after that
// EMA = close*k + prev*(1-k) with k = 2/(period+1).
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA" }

func (e *EMA) Update(bar model.Bar) {
	price := bar.Close
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += price
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	e.current = (price * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// Multiplier returns the smoothing factor k.
func (e *EMA) Multiplier() float64 { return e.multiplier }

// Peek computes what Value() would be with an additional bar without mutating state.
func (e *EMA) Peek(close float64) float64 {
	if e.count < e.period {
		// Still seeding: the preview is the partial SMA
		return (e.sum + close) / float64(e.count+1)
	}
	return (close * e.multiplier) + (e.current * (1 - e.multiplier))
}

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
	e.sum = 0
}
