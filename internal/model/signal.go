package model

import "strconv"

// Direction is the trading direction of a crossover signal.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Signal is a crossover event. It is created once and never mutated;
// callers de-duplicate by ID before appending to their own history.
type Signal struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol,omitempty"`
	Timestamp int64     `json:"timestamp"` // ms, time of the bar that crossed
	Price     float64   `json:"price"`     // close at detection
	Direction Direction `json:"direction"`
	FastMA    float64   `json:"fast_ma"`
	SlowMA    float64   `json:"slow_ma"`
	Reason    string    `json:"reason,omitempty"`
}

// SignalID derives the de-duplication key "<time>-<direction>".
func SignalID(ts int64, dir Direction) string {
	return strconv.FormatInt(ts, 10) + "-" + string(dir)
}

// Threshold is an extra price level the Y domain must cover.
type Threshold struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Price float64 `json:"price"`
}
