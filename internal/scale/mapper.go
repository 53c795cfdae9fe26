package scale

import "chartengine/internal/model"

// Viewport is the pixel rectangle a chart renders into. Padding is a uniform inset.
type Viewport struct {
	Width   float64 `json:"width" yaml:"width"`
	Height  float64 `json:"height" yaml:"height"`
	Padding float64 `json:"padding" yaml:"padding"`
}

// Mapper is an affine transform from one Scale onto one Viewport.
// It is immutable; build a new one when either input changes.
type Mapper struct {
	s     model.Scale
	vp    Viewport
	plotW float64
	plotH float64
}

// NewMapper binds a scale to a viewport.
func NewMapper(s model.Scale, vp Viewport) *Mapper {
	return &Mapper{
		s:     s,
		vp:    vp,
		plotW: vp.Width - 2*vp.Padding,
		plotH: vp.Height - 2*vp.Padding,
	}
}

// Scale returns the bound scale.
func (m *Mapper) Scale() model.Scale { return m.s }

// Viewport returns the bound viewport.
func (m *Mapper) Viewport() Viewport { return m.vp }

// Map converts a (time, price) domain point to pixels. Higher prices map to smaller y.
func (m *Mapper) Map(t, price float64) model.Point {
	return model.Point{
		X: m.X(t),
		Y: m.Y(price),
	}
}

// MapBar maps a bar's close.
func (m *Mapper) MapBar(b model.Bar) model.Point {
	return m.Map(float64(b.Time), b.Close)
}

// X maps a time to a pixel x.
func (m *Mapper) X(t float64) float64 {
	return m.vp.Padding + ((t-m.s.X.Min)/m.s.X.Range)*m.plotW
}

// Y maps a price to a pixel y.
func (m *Mapper) Y(price float64) float64 {
	return m.vp.Padding + m.plotH - ((price-m.s.Y.Min)/m.s.Y.Range)*m.plotH
}

// Invert maps pixels back to (time, price). A degenerate viewport returns the domain minimums.
func (m *Mapper) Invert(p model.Point) (t, price float64) {
	t, price = m.s.X.Min, m.s.Y.Min
	if m.plotW != 0 {
		t = m.s.X.Min + (p.X-m.vp.Padding)/m.plotW*m.s.X.Range
	}
	if m.plotH != 0 {
		price = m.s.Y.Min + (m.vp.Padding+m.plotH-p.Y)/m.plotH*m.s.Y.Range
	}
	return t, price
}

// Bottom is the pixel y of the plot floor, used to close area fills.
func (m *Mapper) Bottom() float64 {
	return m.vp.Padding + m.plotH
}
