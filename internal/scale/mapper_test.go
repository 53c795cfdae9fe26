package scale

import (
	"testing"

	"chartengine/internal/model"
)

func unitScale() model.Scale {
	return model.Scale{
		X: model.Axis{Min: 0, Max: 100, Range: 100},
		Y: model.Axis{Min: 0, Max: 100, Range: 100},
	}
}

func TestMapper_Corners(t *testing.T) {
	m := NewMapper(unitScale(), Viewport{Width: 500, Height: 300, Padding: 50})

	cases := []struct {
		t, price float64
		want     model.Point
	}{
		{0, 100, model.Point{X: 50, Y: 50}},
		{100, 0, model.Point{X: 450, Y: 250}},
		{50, 50, model.Point{X: 250, Y: 150}},
	}
	for _, tc := range cases {
		got := m.Map(tc.t, tc.price)
		if !near(got.X, tc.want.X) || !near(got.Y, tc.want.Y) {
			t.Errorf("Map(%v,%v) = %+v, want %+v", tc.t, tc.price, got, tc.want)
		}
	}
	if m.Bottom() != 250 {
		t.Errorf("Bottom = %v, want 250", m.Bottom())
	}
}

func TestMapper_Deterministic(t *testing.T) {
	m := NewMapper(Compute(threeBars()), Viewport{Width: 800, Height: 400, Padding: 20})
	a := m.Map(2000, 104.25)
	b := m.Map(2000, 104.25)
	if a != b {
		t.Fatalf("mapping not deterministic: %+v vs %+v", a, b)
	}
}

func TestMapper_RoundTrip(t *testing.T) {
	s := Compute(threeBars())
	m := NewMapper(s, Viewport{Width: 640, Height: 360, Padding: 16})

	points := [][2]float64{
		{s.X.Min, s.Y.Min},
		{s.X.Max, s.Y.Max},
		{1500, 103.3},
	}
	for _, p := range points {
		gotT, gotP := m.Invert(m.Map(p[0], p[1]))
		if !near(gotT, p[0]) || !near(gotP, p[1]) {
			t.Errorf("round trip (%v,%v) -> (%v,%v)", p[0], p[1], gotT, gotP)
		}
	}
}

func TestMapper_HigherPriceIsHigherOnScreen(t *testing.T) {
	m := NewMapper(unitScale(), Viewport{Width: 200, Height: 200})
	if m.Y(80) >= m.Y(20) {
		t.Errorf("expected y(80) < y(20), got %v >= %v", m.Y(80), m.Y(20))
	}
}
