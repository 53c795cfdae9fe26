package model

import "time"

// Tick is a single trade print from the feed.
type Tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Qty    float64   `json:"qty"`
	TickTS time.Time `json:"tick_ts"` // UTC
}
