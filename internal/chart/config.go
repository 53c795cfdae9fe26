package chart

import (
	"fmt"

	"chartengine/internal/model"
	"chartengine/internal/ringbuf"
	"chartengine/internal/scale"
)

// Config holds the recognized engine options.
//
//	option       default              notes
//	Symbol       ""                   copied onto snapshots and signals
//	MaxLength    500                  window cap, FIFO eviction
//	Padding      0.05                 Y padding fraction, 0 disables
//	Viewport     800x400, inset 40    pixel rectangle paths are mapped into
//	FastMA       enabled, 9, SMA      period >= 2
//	SlowMA       enabled, 21, SMA     period >= 2, > FastMA.Period
//	SignalType   SMA                  MA type used for crossover detection
//	RSIFilter    false                drop crossovers against an RSI extreme
//
// The table lists DefaultConfig. New fills only MaxLength, Viewport and the
// MA types on a zero-valued Config, so Config{} has both averages disabled
// and never detects signals.
//
// Signals are detected only while both averages are enabled.
type Config struct {
	Symbol     string         `json:"symbol" yaml:"symbol"`
	MaxLength  int            `json:"max_length" yaml:"max_length"`
	Padding    float64        `json:"padding" yaml:"padding"`
	Viewport   scale.Viewport `json:"viewport" yaml:"viewport"`
	FastMA     model.MAConfig `json:"fast_ma" yaml:"fast_ma"`
	SlowMA     model.MAConfig `json:"slow_ma" yaml:"slow_ma"`
	SignalType model.MAType   `json:"signal_type" yaml:"signal_type"`
	RSIFilter  bool           `json:"rsi_filter" yaml:"rsi_filter"`
}

// DefaultViewport is used when Config.Viewport is left zero.
var DefaultViewport = scale.Viewport{Width: 800, Height: 400, Padding: 40}

// DefaultConfig returns the defaults listed on Config.
func DefaultConfig() Config {
	return Config{
		MaxLength:  ringbuf.DefaultMaxLength,
		Padding:    scale.DefaultPadding,
		Viewport:   DefaultViewport,
		FastMA:     model.MAConfig{Enabled: true, Period: 9, Type: model.SMA},
		SlowMA:     model.MAConfig{Enabled: true, Period: 21, Type: model.SMA},
		SignalType: model.SMA,
	}
}

// withDefaults fills zero-valued fields. Padding is taken as given so that 0
// can switch padding off.
func (c Config) withDefaults() Config {
	if c.MaxLength == 0 {
		c.MaxLength = ringbuf.DefaultMaxLength
	}
	if c.Viewport == (scale.Viewport{}) {
		c.Viewport = DefaultViewport
	}
	if c.FastMA.Type == "" {
		c.FastMA.Type = model.SMA
	}
	if c.SlowMA.Type == "" {
		c.SlowMA.Type = model.SMA
	}
	if c.SignalType == "" {
		c.SignalType = model.SMA
	}
	return c
}

// Validate checks a defaulted config.
func (c Config) Validate() error {
	if c.MaxLength < 0 {
		return fmt.Errorf("%w: max length %d < 0", model.ErrInvalidConfig, c.MaxLength)
	}
	if c.Padding < 0 {
		return fmt.Errorf("%w: padding %v < 0", model.ErrInvalidConfig, c.Padding)
	}
	if err := validateViewport(c.Viewport); err != nil {
		return err
	}
	if err := c.FastMA.Validate(); err != nil {
		return fmt.Errorf("fast ma: %w", err)
	}
	if err := c.SlowMA.Validate(); err != nil {
		return fmt.Errorf("slow ma: %w", err)
	}
	if c.signalsEnabled() && c.SlowMA.Period <= c.FastMA.Period {
		return fmt.Errorf("%w: slow period %d must exceed fast period %d",
			model.ErrInvalidConfig, c.SlowMA.Period, c.FastMA.Period)
	}
	return nil
}

func (c Config) signalsEnabled() bool {
	return c.FastMA.Enabled && c.SlowMA.Enabled
}

func validateViewport(vp scale.Viewport) error {
	if vp.Width <= 0 || vp.Height <= 0 {
		return fmt.Errorf("%w: viewport %vx%v must be positive", model.ErrInvalidConfig, vp.Width, vp.Height)
	}
	if vp.Padding < 0 || 2*vp.Padding >= vp.Width || 2*vp.Padding >= vp.Height {
		return fmt.Errorf("%w: viewport padding %v leaves no plot area", model.ErrInvalidConfig, vp.Padding)
	}
	return nil
}
