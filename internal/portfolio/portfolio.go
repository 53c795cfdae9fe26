// Package portfolio paper-trades crossover signals so a backtest can report
// what following them would have returned.
//
// Each symbol holds at most one position of fixed size. A LONG signal
// closes any short and opens a long; a SHORT signal does the reverse.
package portfolio

import (
	"sync"

	"chartengine/internal/model"
)

// Position is the open position for one symbol.
type Position struct {
	Symbol   string  `json:"symbol"`
	Qty      float64 `json:"qty"` // positive = long, negative = short
	AvgPrice float64 `json:"avg_price"`
	OpenedAt int64   `json:"opened_at"` // bar time, ms
	LastPx   float64 `json:"last_px"`
}

// UnrealizedPnL returns the open P&L at the last seen price.
func (p *Position) UnrealizedPnL() float64 {
	return (p.LastPx - p.AvgPrice) * p.Qty
}

// Paper follows signals with a fixed quantity per trade.
type Paper struct {
	mu          sync.RWMutex
	qty         float64
	slippageBps float64
	positions   map[string]*Position
	pnl         *PnLTracker
}

// NewPaper creates a paper account. slippageBps worsens every fill by that
// many basis points (5 = 0.05%).
func NewPaper(qty, slippageBps float64) *Paper {
	if qty <= 0 {
		qty = 1
	}
	return &Paper{
		qty:         qty,
		slippageBps: slippageBps,
		positions:   make(map[string]*Position),
		pnl:         NewPnLTracker(),
	}
}

// fillPrice applies slippage against the trader.
func (pf *Paper) fillPrice(price float64, buy bool) float64 {
	slip := price * pf.slippageBps / 10000
	if buy {
		return price + slip
	}
	return price - slip
}

// OnSignal reverses into the signal's direction at the signal price.
// A signal in the direction already held is ignored.
func (pf *Paper) OnSignal(sig model.Signal) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	want := pf.qty
	if sig.Direction == model.Short {
		want = -pf.qty
	}
	pos := pf.positions[sig.Symbol]
	if pos != nil && pos.Qty == want {
		return
	}

	buy := want > 0
	px := pf.fillPrice(sig.Price, buy)
	if pos != nil {
		pf.pnl.Close(Trade{
			Symbol:   sig.Symbol,
			Qty:      pos.Qty,
			Entry:    pos.AvgPrice,
			Exit:     px,
			OpenedAt: pos.OpenedAt,
			ClosedAt: sig.Timestamp,
			SignalID: sig.ID,
		})
	}
	pf.positions[sig.Symbol] = &Position{
		Symbol:   sig.Symbol,
		Qty:      want,
		AvgPrice: px,
		OpenedAt: sig.Timestamp,
		LastPx:   sig.Price,
	}
}

// UpdatePrice marks a symbol's open position to the bar close.
func (pf *Paper) UpdatePrice(symbol string, bar model.Bar) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if pos, ok := pf.positions[symbol]; ok {
		pos.LastPx = bar.Close
	}
}

// Positions returns a copy of all open positions.
func (pf *Paper) Positions() []Position {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	out := make([]Position, 0, len(pf.positions))
	for _, p := range pf.positions {
		out = append(out, *p)
	}
	return out
}

// Summary reports realized and open P&L.
func (pf *Paper) Summary() PnLSummary {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	s := pf.pnl.Summary()
	for _, p := range pf.positions {
		s.UnrealizedPnL += p.UnrealizedPnL()
		s.OpenPositions++
	}
	s.TotalPnL = s.RealizedPnL + s.UnrealizedPnL
	return s
}

// Trades returns the closed round trips in order.
func (pf *Paper) Trades() []Trade {
	return pf.pnl.Trades()
}
