// Package chart composes the window, scale, moving averages, path
// serialization and crossover detection behind one incremental API.
//
// Every call re-derives its outputs from the window. An Engine is not
// internally synchronized: a single writer owns it.
package chart

import (
	"fmt"

	"github.com/google/uuid"

	"chartengine/internal/indicator"
	"chartengine/internal/model"
	"chartengine/internal/ringbuf"
	"chartengine/internal/scale"
	"chartengine/internal/strategy"
	"chartengine/internal/svgpath"
)

// State is the operational state of an Engine.
type State string

const (
	Empty     State = "EMPTY"
	Streaming State = "STREAMING"
)

// Engine turns a stream of bars into renderable snapshots.
type Engine struct {
	cfg        Config
	win        *ringbuf.Window
	thresholds []model.Threshold
	detector   *strategy.Crossover
}

// New validates cfg once and builds an engine in the EMPTY state.
func New(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("chart %q: %w", cfg.Symbol, err)
	}
	e := &Engine{
		cfg: cfg,
		win: ringbuf.NewWindow(cfg.MaxLength),
	}
	if cfg.signalsEnabled() {
		det, err := strategy.NewCrossover(strategy.CrossoverConfig{
			FastPeriod: cfg.FastMA.Period,
			SlowPeriod: cfg.SlowMA.Period,
			Type:       cfg.SignalType,
			RSIFilter:  cfg.RSIFilter,
		})
		if err != nil {
			return nil, fmt.Errorf("chart %q: %w", cfg.Symbol, err)
		}
		e.detector = det
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// State reports EMPTY when the window holds no bars.
func (e *Engine) State() State {
	if e.win.Len() == 0 {
		return Empty
	}
	return Streaming
}

// IngestBar appends bar (or replaces the forming bar) and re-derives the snapshot.
func (e *Engine) IngestBar(bar model.Bar, replaceLast bool) Snapshot {
	e.win.Ingest(bar, replaceLast)
	return e.derive(true)
}

// SetBars replaces the whole window, keeping the most recent MaxLength bars.
func (e *Engine) SetBars(bars []model.Bar) Snapshot {
	e.win.SetAll(bars)
	return e.derive(true)
}

// Clear empties the window and returns the engine to EMPTY. Thresholds are kept.
func (e *Engine) Clear() {
	e.win.Clear()
}

// Snapshot re-derives the current outputs without detecting a signal.
func (e *Engine) Snapshot() Snapshot {
	return e.derive(false)
}

// SetViewport rebinds the engine to a new pixel rectangle.
func (e *Engine) SetViewport(vp scale.Viewport) error {
	if err := validateViewport(vp); err != nil {
		return err
	}
	e.cfg.Viewport = vp
	return nil
}

// AddThreshold registers a price the Y domain must include and returns its ID.
func (e *Engine) AddThreshold(price float64, label string) string {
	id := uuid.NewString()
	e.thresholds = append(e.thresholds, model.Threshold{ID: id, Label: label, Price: price})
	return id
}

// PutThreshold inserts th, or replaces the threshold with the same ID.
// A blank ID is assigned one. Returns the stored ID.
func (e *Engine) PutThreshold(th model.Threshold) string {
	if th.ID == "" {
		th.ID = uuid.NewString()
	}
	for i, t := range e.thresholds {
		if t.ID == th.ID {
			e.thresholds[i] = th
			return th.ID
		}
	}
	e.thresholds = append(e.thresholds, th)
	return th.ID
}

// RemoveThreshold drops a threshold by ID. Reports whether it existed.
func (e *Engine) RemoveThreshold(id string) bool {
	for i, t := range e.thresholds {
		if t.ID == id {
			e.thresholds = append(e.thresholds[:i], e.thresholds[i+1:]...)
			return true
		}
	}
	return false
}

// Thresholds returns the registered thresholds in insertion order.
func (e *Engine) Thresholds() []model.Threshold {
	out := make([]model.Threshold, len(e.thresholds))
	copy(out, e.thresholds)
	return out
}

// Bars returns a copy of the window.
func (e *Engine) Bars() []model.Bar { return e.win.Bars() }

// Evicted is the number of bars dropped from the window so far.
func (e *Engine) Evicted() uint64 { return e.win.Evicted() }

func (e *Engine) derive(detect bool) Snapshot {
	bars := e.win.View()

	prices := make([]float64, len(e.thresholds))
	for i, t := range e.thresholds {
		prices[i] = t.Price
	}
	s := scale.Compute(bars, scale.WithPadding(e.cfg.Padding), scale.WithThresholds(prices...))
	m := scale.NewMapper(s, e.cfg.Viewport)

	snap := Snapshot{
		Symbol: e.cfg.Symbol,
		State:  e.State(),
		Scale:  s,
		Mapper: m,
		Bars:   len(bars),
		FastMA: []model.MAPoint{},
		SlowMA: []model.MAPoint{},
		Levels: make([]Level, len(e.thresholds)),
	}
	for i, t := range e.thresholds {
		snap.Levels[i] = Level{Threshold: t, Y: m.Y(t.Price)}
	}
	if len(bars) == 0 {
		return snap
	}

	pts := make([]model.Point, len(bars))
	for i, b := range bars {
		pts[i] = m.MapBar(b)
	}
	snap.PricePath = svgpath.Polyline(pts)
	snap.AreaPath = svgpath.ClosedArea(snap.PricePath, pts[0].X, pts[len(pts)-1].X, m.Bottom())

	if e.cfg.FastMA.Enabled {
		snap.FastMA = indicator.Compute(bars, e.cfg.FastMA.Period, e.cfg.FastMA.Type)
		snap.FastMAPath = seriesPath(m, snap.FastMA)
	}
	if e.cfg.SlowMA.Enabled {
		snap.SlowMA = indicator.Compute(bars, e.cfg.SlowMA.Period, e.cfg.SlowMA.Type)
		snap.SlowMAPath = seriesPath(m, snap.SlowMA)
	}

	if detect && e.detector != nil {
		if sig := e.detector.Detect(bars); sig != nil {
			sig.Symbol = e.cfg.Symbol
			snap.Signal = sig
		}
	}
	return snap
}

func seriesPath(m *scale.Mapper, series []model.MAPoint) string {
	pts := make([]model.Point, len(series))
	for i, p := range series {
		pts[i] = m.Map(float64(p.Time), p.Value)
	}
	return svgpath.Polyline(pts)
}
