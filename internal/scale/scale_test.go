package scale

import (
	"math"
	"testing"

	"chartengine/internal/model"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func threeBars() []model.Bar {
	return []model.Bar{
		{Time: 1000, High: 105, Low: 98},
		{Time: 2000, High: 108, Low: 101},
		{Time: 3000, High: 110, Low: 104},
	}
}

func TestCompute_Empty(t *testing.T) {
	s := Compute(nil)
	if s.X != model.DefaultAxis || s.Y != model.DefaultAxis {
		t.Fatalf("expected default axes, got %+v", s)
	}
}

func TestCompute_NoPadding(t *testing.T) {
	s := Compute(threeBars(), WithPadding(0))
	if s.Y.Min != 98 || s.Y.Max != 110 || s.Y.Range != 12 {
		t.Errorf("Y = %+v, want {98 110 12}", s.Y)
	}
	if s.X.Min != 1000 || s.X.Max != 3000 || s.X.Range != 2000 {
		t.Errorf("X = %+v, want {1000 3000 2000}", s.X)
	}
}

func TestCompute_DefaultPadding(t *testing.T) {
	s := Compute(threeBars())
	if !near(s.Y.Min, 97.4) || !near(s.Y.Max, 110.6) {
		t.Errorf("Y = %+v, want min=97.4 max=110.6", s.Y)
	}
	if !near(s.Y.Range, 13.2) {
		t.Errorf("Y.Range = %v, want 13.2", s.Y.Range)
	}
	// X is never padded
	if s.X.Min != 1000 || s.X.Max != 3000 {
		t.Errorf("X padded unexpectedly: %+v", s.X)
	}
}

func TestCompute_SingleBarFloorsRange(t *testing.T) {
	s := Compute([]model.Bar{{Time: 5000, High: 100, Low: 100}})
	if s.X.Range != 1 || s.Y.Range != 1 {
		t.Fatalf("expected floored ranges, got %+v", s)
	}
}

func TestCompute_Thresholds(t *testing.T) {
	s := Compute(threeBars(), WithPadding(0), WithThresholds(120, 90))
	if s.Y.Min != 90 || s.Y.Max != 120 {
		t.Errorf("Y = %+v, want min=90 max=120", s.Y)
	}
}

func TestCompute_Invariants(t *testing.T) {
	inputs := [][]model.Bar{
		threeBars(),
		{{Time: 1, High: 1, Low: 1}},
		{{Time: 9, High: 0.5, Low: 0.4}, {Time: 3, High: 0.6, Low: 0.1}},
		{{Time: 1, High: -5, Low: -10}, {Time: 2, High: -1, Low: -6}},
	}
	for i, bars := range inputs {
		s := Compute(bars)
		for _, a := range []model.Axis{s.X, s.Y} {
			if a.Min > a.Max {
				t.Errorf("input %d: min > max: %+v", i, a)
			}
			if a.Range < 1 {
				t.Errorf("input %d: range < 1: %+v", i, a)
			}
		}
	}
}

func TestExtendForPrices(t *testing.T) {
	base := Compute(threeBars(), WithPadding(0))
	s := ExtendForPrices(base, []float64{120}, 0)
	if s.Y.Max != 120 {
		t.Errorf("Y.Max = %v, want 120", s.Y.Max)
	}
	if s.Y.Min != 98 {
		t.Errorf("Y.Min = %v, want 98", s.Y.Min)
	}
	if s.X != base.X {
		t.Errorf("X changed: %+v -> %+v", base.X, s.X)
	}

	// Prices inside the domain leave it untouched.
	same := ExtendForPrices(base, []float64{100}, 0)
	if same.Y != base.Y {
		t.Errorf("inside price changed axis: %+v", same.Y)
	}
}
