package portfolio

import (
	"math"
	"testing"

	"chartengine/internal/model"
)

func sig(ts int64, dir model.Direction, price float64) model.Signal {
	return model.Signal{
		ID:        model.SignalID(ts, dir),
		Symbol:    "NIFTY",
		Timestamp: ts,
		Price:     price,
		Direction: dir,
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPaper_StopAndReverse(t *testing.T) {
	pf := NewPaper(2, 0)

	pf.OnSignal(sig(1, model.Long, 100))
	pf.OnSignal(sig(2, model.Long, 101)) // already long
	pf.OnSignal(sig(3, model.Short, 110))
	pf.OnSignal(sig(4, model.Long, 104))

	trades := pf.Trades()
	if len(trades) != 2 {
		t.Fatalf("expected 2 closed trades, got %d", len(trades))
	}
	if !near(trades[0].PnL(), 20) {
		t.Errorf("long trade pnl = %v, want 20", trades[0].PnL())
	}
	if !near(trades[1].PnL(), 12) || trades[1].Qty != -2 {
		t.Errorf("short trade = %+v pnl=%v, want +12", trades[1], trades[1].PnL())
	}

	pf.UpdatePrice("NIFTY", model.Bar{Close: 100})
	s := pf.Summary()
	if !near(s.RealizedPnL, 32) || !near(s.UnrealizedPnL, -8) || !near(s.TotalPnL, 24) {
		t.Errorf("summary = %+v", s)
	}
	if s.TotalTrades != 2 || s.WinRate != 1 || s.OpenPositions != 1 {
		t.Errorf("summary counts = %+v", s)
	}
}

func TestPaper_Slippage(t *testing.T) {
	pf := NewPaper(1, 100) // 1%

	pf.OnSignal(sig(1, model.Long, 100))
	pos := pf.Positions()
	if len(pos) != 1 || !near(pos[0].AvgPrice, 101) {
		t.Fatalf("long entry = %+v, want avg 101", pos)
	}
	pf.OnSignal(sig(2, model.Short, 100))
	trades := pf.Trades()
	if len(trades) != 1 || !near(trades[0].Exit, 99) || !near(trades[0].PnL(), -2) {
		t.Errorf("trade = %+v", trades)
	}
}

func TestPnLTracker_Drawdown(t *testing.T) {
	p := NewPnLTracker()
	p.Close(Trade{Qty: 1, Entry: 100, Exit: 110}) // +10
	p.Close(Trade{Qty: 1, Entry: 100, Exit: 94})  // -6
	p.Close(Trade{Qty: 1, Entry: 100, Exit: 97})  // -3
	p.Close(Trade{Qty: 1, Entry: 100, Exit: 120}) // +20

	s := p.Summary()
	if !near(s.RealizedPnL, 21) || !near(s.MaxDrawdown, 9) {
		t.Errorf("summary = %+v, want realized 21 drawdown 9", s)
	}
	if !near(s.WinRate, 0.5) {
		t.Errorf("win rate = %v", s.WinRate)
	}
}
