package svgpath

import (
	"testing"

	"chartengine/internal/model"
)

func TestPolyline(t *testing.T) {
	cases := []struct {
		name   string
		points []model.Point
		want   string
	}{
		{"empty", nil, ""},
		{"single", []model.Point{{X: 0, Y: 0}}, "M 0 0"},
		{"three", []model.Point{{X: 50, Y: 250}, {X: 250, Y: 150}, {X: 450, Y: 50}}, "M 50 250 L 250 150 L 450 50"},
		{"fractional", []model.Point{{X: 97.4, Y: 0.5}, {X: -1.25, Y: 3}}, "M 97.4 0.5 L -1.25 3"},
	}
	for _, tc := range cases {
		if got := Polyline(tc.points); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestClosedArea(t *testing.T) {
	if got := ClosedArea("", 0, 10, 5); got != "" {
		t.Fatalf("empty line: got %q", got)
	}
	line := Polyline([]model.Point{{X: 50, Y: 250}, {X: 450, Y: 50}})
	want := "M 50 250 L 450 50 L 450 250 L 50 250 Z"
	if got := ClosedArea(line, 50, 450, 250); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNum(t *testing.T) {
	cases := map[float64]string{
		0:       "0",
		1:       "1",
		97.4:    "97.4",
		-3.5:    "-3.5",
		1e6:     "1000000",
		0.00025: "0.00025",
	}
	for v, want := range cases {
		if got := Num(v); got != want {
			t.Errorf("Num(%v) = %q, want %q", v, got, want)
		}
	}
}
