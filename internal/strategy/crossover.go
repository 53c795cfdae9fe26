// Package strategy detects trading signals from bar windows.
//
// Crossover fires when a fast moving average crosses a slow one:
//
//	LONG  (golden cross): prevFast <= prevSlow && currFast > currSlow
//	SHORT (death cross):  prevFast >= prevSlow && currFast < currSlow
//
// The "previous" values are computed over the window without its last bar,
// so replacing a forming bar re-evaluates the same crossing and produces the
// same signal ID. Detectors keep no signal history; callers de-duplicate.
package strategy

import (
	"fmt"
	"log"

	"chartengine/internal/indicator"
	"chartengine/internal/model"
)

// CrossoverConfig configures a Crossover detector.
//
//	FastPeriod  fast MA period, >= 2
//	SlowPeriod  slow MA period, > FastPeriod
//	Type        MA type, default SMA
//	RSIFilter   suppress LONG above Overbought and SHORT below Oversold
//	RSIPeriod   default 14
//	Overbought  default 70
//	Oversold    default 30
type CrossoverConfig struct {
	FastPeriod int          `json:"fast_period" yaml:"fast_period"`
	SlowPeriod int          `json:"slow_period" yaml:"slow_period"`
	Type       model.MAType `json:"type" yaml:"type"`
	RSIFilter  bool         `json:"rsi_filter" yaml:"rsi_filter"`
	RSIPeriod  int          `json:"rsi_period" yaml:"rsi_period"`
	Overbought float64      `json:"overbought" yaml:"overbought"`
	Oversold   float64      `json:"oversold" yaml:"oversold"`
}

func (c *CrossoverConfig) defaults() {
	if c.Type == "" {
		c.Type = model.SMA
	}
	if c.RSIPeriod == 0 {
		c.RSIPeriod = 14
	}
	if c.Overbought == 0 {
		c.Overbought = 70
	}
	if c.Oversold == 0 {
		c.Oversold = 30
	}
}

// Validate checks the period relationship and MA type.
func (c CrossoverConfig) Validate() error {
	if c.FastPeriod < 2 {
		return fmt.Errorf("%w: fast period %d < 2", model.ErrInvalidConfig, c.FastPeriod)
	}
	if c.SlowPeriod <= c.FastPeriod {
		return fmt.Errorf("%w: slow period %d must exceed fast period %d", model.ErrInvalidConfig, c.SlowPeriod, c.FastPeriod)
	}
	if c.Type != model.SMA && c.Type != model.EMA {
		return fmt.Errorf("%w: unknown ma type %q", model.ErrInvalidConfig, c.Type)
	}
	if c.RSIFilter && c.RSIPeriod < 2 {
		return fmt.Errorf("%w: rsi period %d < 2", model.ErrInvalidConfig, c.RSIPeriod)
	}
	return nil
}

// Crossover detects fast/slow moving-average crossovers.
type Crossover struct {
	name string
	cfg  CrossoverConfig
}

// NewCrossover validates cfg once and returns a detector.
func NewCrossover(cfg CrossoverConfig) (*Crossover, error) {
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Crossover{
		name: fmt.Sprintf("%s_Crossover_%d_%d", cfg.Type, cfg.FastPeriod, cfg.SlowPeriod),
		cfg:  cfg,
	}, nil
}

// Name returns the detector name, e.g. "SMA_Crossover_9_21".
func (c *Crossover) Name() string { return c.name }

// Config returns the effective configuration.
func (c *Crossover) Config() CrossoverConfig { return c.cfg }

// Detect compares the MAs of bars against those of bars[:len-1].
// Returns nil with fewer than SlowPeriod+1 bars or when nothing crossed.
func (c *Crossover) Detect(bars []model.Bar) *model.Signal {
	n := len(bars)
	if n < c.cfg.SlowPeriod+1 {
		return nil
	}

	currFast, _ := indicator.Last(bars, c.cfg.FastPeriod, c.cfg.Type)
	currSlow, _ := indicator.Last(bars, c.cfg.SlowPeriod, c.cfg.Type)
	prevFast, _ := indicator.Last(bars[:n-1], c.cfg.FastPeriod, c.cfg.Type)
	prevSlow, _ := indicator.Last(bars[:n-1], c.cfg.SlowPeriod, c.cfg.Type)

	dir, ok := Compare(prevFast, prevSlow, currFast, currSlow)
	if !ok {
		return nil
	}

	if c.cfg.RSIFilter {
		if rsi, ready := lastRSI(bars, c.cfg.RSIPeriod); ready {
			if dir == model.Long && rsi > c.cfg.Overbought {
				log.Printf("[strategy] %s: golden cross filtered by RSI %.1f > %.0f", c.name, rsi, c.cfg.Overbought)
				return nil
			}
			if dir == model.Short && rsi < c.cfg.Oversold {
				log.Printf("[strategy] %s: death cross filtered by RSI %.1f < %.0f", c.name, rsi, c.cfg.Oversold)
				return nil
			}
		}
	}

	last := bars[n-1]
	reason := "golden cross (fast > slow)"
	if dir == model.Short {
		reason = "death cross (fast < slow)"
	}
	return &model.Signal{
		ID:        model.SignalID(last.Time, dir),
		Timestamp: last.Time,
		Price:     last.Close,
		Direction: dir,
		FastMA:    currFast,
		SlowMA:    currSlow,
		Reason:    string(c.cfg.Type) + " " + reason,
	}
}

// Compare applies the crossover rule to two consecutive MA pairs.
func Compare(prevFast, prevSlow, currFast, currSlow float64) (model.Direction, bool) {
	switch {
	case prevFast <= prevSlow && currFast > currSlow:
		return model.Long, true
	case prevFast >= prevSlow && currFast < currSlow:
		return model.Short, true
	}
	return "", false
}

// DetectCrossover is a one-shot SMA crossover check. Invalid periods yield nil.
func DetectCrossover(bars []model.Bar, fastPeriod, slowPeriod int) *model.Signal {
	c, err := NewCrossover(CrossoverConfig{FastPeriod: fastPeriod, SlowPeriod: slowPeriod})
	if err != nil {
		return nil
	}
	return c.Detect(bars)
}

func lastRSI(bars []model.Bar, period int) (float64, bool) {
	rsi := indicator.NewRSI(period)
	for _, b := range bars {
		rsi.Update(b)
	}
	return rsi.Value(), rsi.Ready()
}
