package model

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// MinRange is the floor applied to every axis range so mapping never divides by zero.
const MinRange = 1.0

// Axis is one dimension of a scale. Range is Max-Min, floored at MinRange.
type Axis struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Range float64 `json:"range"`
}

// DefaultAxis is the domain used when there is no data.
var DefaultAxis = Axis{Min: 0, Max: 1, Range: 1}

// NewAxis builds an axis from bounds and applies the range floor.
func NewAxis(min, max float64) Axis {
	r := max - min
	if r < MinRange {
		r = MinRange
	}
	return Axis{Min: min, Max: max, Range: r}
}

// Scale is the data domain of a chart: time on X, price on Y.
type Scale struct {
	X Axis `json:"x"`
	Y Axis `json:"y"`
}

// Point is a pixel-space coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MAPoint is one point of a moving-average series.
type MAPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// MAType selects the moving-average formula.
type MAType string

const (
	SMA MAType = "SMA"
	EMA MAType = "EMA"
)

// MAConfig describes one moving-average overlay.
type MAConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Period  int    `json:"period" yaml:"period"`
	Type    MAType `json:"type" yaml:"type"`
}

// Validate checks period and type. Disabled configs are always valid.
func (c MAConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Period < 2 {
		return fmt.Errorf("%w: ma period %d < 2", ErrInvalidConfig, c.Period)
	}
	switch c.Type {
	case SMA, EMA:
		return nil
	default:
		return fmt.Errorf("%w: unknown ma type %q", ErrInvalidConfig, c.Type)
	}
}
