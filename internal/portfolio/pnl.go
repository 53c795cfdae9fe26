package portfolio

import "sync"

// Trade is one closed round trip.
type Trade struct {
	Symbol   string  `json:"symbol"`
	Qty      float64 `json:"qty"` // signed, as held
	Entry    float64 `json:"entry"`
	Exit     float64 `json:"exit"`
	OpenedAt int64   `json:"opened_at"`
	ClosedAt int64   `json:"closed_at"`
	SignalID string  `json:"signal_id"` // signal that closed it
}

// PnL returns the realized P&L of the trade.
func (t Trade) PnL() float64 {
	return (t.Exit - t.Entry) * t.Qty
}

// PnLTracker accumulates realized P&L and drawdown over closed trades.
type PnLTracker struct {
	mu       sync.RWMutex
	trades   []Trade
	realized float64
	peak     float64
	maxDD    float64
	wins     int
}

// NewPnLTracker creates an empty tracker.
func NewPnLTracker() *PnLTracker {
	return &PnLTracker{trades: make([]Trade, 0, 64)}
}

// Close records a closed trade and returns its P&L.
func (p *PnLTracker) Close(t Trade) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	pnl := t.PnL()
	p.trades = append(p.trades, t)
	p.realized += pnl
	if pnl > 0 {
		p.wins++
	}
	if p.realized > p.peak {
		p.peak = p.realized
	}
	if dd := p.peak - p.realized; dd > p.maxDD {
		p.maxDD = dd
	}
	return pnl
}

// Trades returns a copy of all closed trades.
func (p *PnLTracker) Trades() []Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Trade, len(p.trades))
	copy(cp, p.trades)
	return cp
}

// PnLSummary is a point-in-time P&L report.
type PnLSummary struct {
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalPnL      float64 `json:"total_pnl"`
	TotalTrades   int     `json:"total_trades"`
	WinRate       float64 `json:"win_rate"` // 0..1
	MaxDrawdown   float64 `json:"max_drawdown"`
	OpenPositions int     `json:"open_positions"`
}

// Summary returns realized figures; open positions are added by Paper.
func (p *PnLTracker) Summary() PnLSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := PnLSummary{
		RealizedPnL: p.realized,
		TotalPnL:    p.realized,
		TotalTrades: len(p.trades),
		MaxDrawdown: p.maxDD,
	}
	if len(p.trades) > 0 {
		s.WinRate = float64(p.wins) / float64(len(p.trades))
	}
	return s
}
