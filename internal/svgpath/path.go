// Package svgpath serializes pixel points into SVG path data.
package svgpath

import (
	"strconv"
	"strings"

	"chartengine/internal/model"
)

// Polyline returns "M x0 y0 L x1 y1 ..." for points, or "" when there are none.
func Polyline(points []model.Point) string {
	if len(points) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(points) * 16)
	for i, p := range points {
		if i == 0 {
			b.WriteString("M ")
		} else {
			b.WriteString(" L ")
		}
		b.WriteString(Num(p.X))
		b.WriteByte(' ')
		b.WriteString(Num(p.Y))
	}
	return b.String()
}

// ClosedArea closes a polyline down to floorY so it can be filled.
// An empty line yields "".
func ClosedArea(line string, xStart, xEnd, floorY float64) string {
	if line == "" {
		return ""
	}
	fy := Num(floorY)
	return line + " L " + Num(xEnd) + " " + fy + " L " + Num(xStart) + " " + fy + " Z"
}

// Num formats v as the shortest decimal that round-trips.
func Num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
