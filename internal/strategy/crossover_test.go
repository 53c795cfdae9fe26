package strategy

import (
	"errors"
	"testing"

	"chartengine/internal/model"
)

func closes(prices ...float64) []model.Bar {
	bars := make([]model.Bar, len(prices))
	for i, p := range prices {
		bars[i] = model.Bar{Time: int64(i+1) * 1000, Open: p, High: p, Low: p, Close: p}
	}
	return bars
}

func mustCrossover(t *testing.T, cfg CrossoverConfig) *Crossover {
	t.Helper()
	c, err := NewCrossover(cfg)
	if err != nil {
		t.Fatalf("NewCrossover: %v", err)
	}
	return c
}

func TestCrossover_InsufficientHistory(t *testing.T) {
	c := mustCrossover(t, CrossoverConfig{FastPeriod: 2, SlowPeriod: 3})
	for n := 0; n <= 3; n++ {
		bars := closes(10, 11, 12, 13)[:n]
		if sig := c.Detect(bars); sig != nil {
			t.Errorf("len=%d: expected nil, got %+v", n, sig)
		}
	}
}

func TestCrossover_FlatNoSignal(t *testing.T) {
	c := mustCrossover(t, CrossoverConfig{FastPeriod: 2, SlowPeriod: 3})
	if sig := c.Detect(closes(10, 10, 10, 10, 10)); sig != nil {
		t.Fatalf("expected no signal on flat series, got %+v", sig)
	}
}

func TestCrossover_GoldenAndDeathCross(t *testing.T) {
	c := mustCrossover(t, CrossoverConfig{FastPeriod: 2, SlowPeriod: 3})

	long := c.Detect(closes(10, 10, 10, 10, 13))
	if long == nil {
		t.Fatal("expected LONG signal")
	}
	if long.Direction != model.Long {
		t.Errorf("direction = %s, want LONG", long.Direction)
	}
	if long.ID != "5000-LONG" {
		t.Errorf("id = %q, want 5000-LONG", long.ID)
	}
	if long.Price != 13 || long.Timestamp != 5000 {
		t.Errorf("unexpected price/timestamp: %+v", long)
	}
	if long.FastMA != 11.5 || long.SlowMA != 11 {
		t.Errorf("unexpected MA values: fast=%v slow=%v", long.FastMA, long.SlowMA)
	}

	short := c.Detect(closes(10, 10, 10, 10, 13, 5))
	if short == nil || short.Direction != model.Short {
		t.Fatalf("expected SHORT signal, got %+v", short)
	}
	if short.ID != "6000-SHORT" {
		t.Errorf("id = %q, want 6000-SHORT", short.ID)
	}
}

func TestCrossover_SameInputSameID(t *testing.T) {
	c := mustCrossover(t, CrossoverConfig{FastPeriod: 2, SlowPeriod: 3})
	bars := closes(10, 10, 10, 10, 13)
	a, b := c.Detect(bars), c.Detect(bars)
	if a == nil || b == nil || a.ID != b.ID {
		t.Fatalf("expected identical ids, got %+v and %+v", a, b)
	}
}

func TestCrossover_RSIFilter(t *testing.T) {
	bars := closes(10, 10, 10, 10, 13)

	plain := mustCrossover(t, CrossoverConfig{FastPeriod: 2, SlowPeriod: 3})
	if plain.Detect(bars) == nil {
		t.Fatal("expected unfiltered LONG")
	}

	filtered := mustCrossover(t, CrossoverConfig{FastPeriod: 2, SlowPeriod: 3, RSIFilter: true, RSIPeriod: 2})
	if sig := filtered.Detect(bars); sig != nil {
		t.Fatalf("expected LONG filtered by overbought RSI, got %+v", sig)
	}
}

func TestCompare(t *testing.T) {
	cases := []struct {
		name           string
		pf, ps, cf, cs float64
		wantDir        model.Direction
		wantOK         bool
	}{
		{"touch then above", 10, 10, 11, 10, model.Long, true},
		{"below then above", 9, 10, 11, 10, model.Long, true},
		{"touch then below", 10, 10, 9, 10, model.Short, true},
		{"above stays above", 11, 10, 12, 10, "", false},
		{"below stays below", 9, 10, 8, 10, "", false},
		{"equal stays equal", 10, 10, 10, 10, "", false},
	}
	for _, tc := range cases {
		dir, ok := Compare(tc.pf, tc.ps, tc.cf, tc.cs)
		if dir != tc.wantDir || ok != tc.wantOK {
			t.Errorf("%s: got (%q,%v), want (%q,%v)", tc.name, dir, ok, tc.wantDir, tc.wantOK)
		}
	}
}

func TestNewCrossover_Validation(t *testing.T) {
	cases := []CrossoverConfig{
		{FastPeriod: 1, SlowPeriod: 5},
		{FastPeriod: 5, SlowPeriod: 5},
		{FastPeriod: 9, SlowPeriod: 3},
		{FastPeriod: 2, SlowPeriod: 3, Type: "WMA"},
	}
	for _, cfg := range cases {
		if _, err := NewCrossover(cfg); !errors.Is(err, model.ErrInvalidConfig) {
			t.Errorf("%+v: expected ErrInvalidConfig, got %v", cfg, err)
		}
	}
	c := mustCrossover(t, CrossoverConfig{FastPeriod: 9, SlowPeriod: 21})
	if c.Name() != "SMA_Crossover_9_21" {
		t.Errorf("Name = %q", c.Name())
	}
}

func TestDetectCrossover(t *testing.T) {
	if sig := DetectCrossover(closes(10, 10, 10, 10, 13), 2, 3); sig == nil || sig.Direction != model.Long {
		t.Fatalf("expected LONG, got %+v", sig)
	}
	if sig := DetectCrossover(closes(10, 10, 10), 2, 3); sig != nil {
		t.Fatalf("expected nil for short history, got %+v", sig)
	}
	if sig := DetectCrossover(closes(10, 10, 10, 10, 13), 3, 2); sig != nil {
		t.Fatalf("expected nil for invalid periods, got %+v", sig)
	}
}
