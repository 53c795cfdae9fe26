// Package scale derives chart domains from bars and maps them onto a pixel viewport.
package scale

import "chartengine/internal/model"

// DefaultPadding is the fraction of the price span added above and below the Y domain.
const DefaultPadding = 0.05

type options struct {
	padding    float64
	thresholds []float64
}

// Option customizes Compute.
type Option func(*options)

// WithPadding sets the Y padding fraction. Negative values are treated as 0.
func WithPadding(frac float64) Option {
	return func(o *options) {
		if frac < 0 {
			frac = 0
		}
		o.padding = frac
	}
}

// WithThresholds adds prices the Y domain must include.
func WithThresholds(prices ...float64) Option {
	return func(o *options) {
		o.thresholds = append(o.thresholds, prices...)
	}
}

// Compute derives the scale for bars. X spans bar times without padding.
// Y spans lows to highs, extended by any thresholds, then padded.
// An empty slice yields the default {0,1,1} on both axes.
func Compute(bars []model.Bar, opts ...Option) model.Scale {
	o := options{padding: DefaultPadding}
	for _, fn := range opts {
		fn(&o)
	}

	if len(bars) == 0 {
		return model.Scale{X: model.DefaultAxis, Y: model.DefaultAxis}
	}

	minT, maxT := bars[0].Time, bars[0].Time
	minP, maxP := bars[0].Low, bars[0].High
	for _, b := range bars[1:] {
		if b.Time < minT {
			minT = b.Time
		}
		if b.Time > maxT {
			maxT = b.Time
		}
		if b.Low < minP {
			minP = b.Low
		}
		if b.High > maxP {
			maxP = b.High
		}
	}
	minP, maxP = cover(minP, maxP, o.thresholds)

	return model.Scale{
		X: model.NewAxis(float64(minT), float64(maxT)),
		Y: pad(minP, maxP, o.padding),
	}
}

// ExtendForPrices widens the Y axis of s so every price is inside it, then
// re-applies padding to the widened span. X is returned unchanged.
func ExtendForPrices(s model.Scale, prices []float64, padding float64) model.Scale {
	if len(prices) == 0 {
		return s
	}
	if padding < 0 {
		padding = 0
	}
	minP, maxP := cover(s.Y.Min, s.Y.Max, prices)
	s.Y = pad(minP, maxP, padding)
	return s
}

func cover(lo, hi float64, prices []float64) (float64, float64) {
	for _, p := range prices {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	return lo, hi
}

func pad(lo, hi, frac float64) model.Axis {
	d := (hi - lo) * frac
	return model.NewAxis(lo-d, hi+d)
}
