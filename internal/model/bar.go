// Package model holds the plain data types shared by the chart engine and the
// service around it. Nothing here depends on storage or transport.
package model

import (
	"encoding/json"
	"time"
)

// Bar is one OHLCV sample. Time is the bucket start in Unix milliseconds.
// Bars are values: once ingested they are never mutated in place.
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume,omitempty"`
}

// TS returns the bar time as a UTC time.Time.
func (b Bar) TS() time.Time {
	return time.UnixMilli(b.Time).UTC()
}

// BarUpdate carries a bar for one symbol through the pipeline.
// Forming is true while the bucket is still open; the engine replaces the
// last bar for forming updates instead of appending a new one.
type BarUpdate struct {
	Symbol  string `json:"symbol"`
	Bar     Bar    `json:"bar"`
	Forming bool   `json:"forming"`
}

// JSON returns the JSON-encoded update (ignoring errors for hot-path usage).
func (u *BarUpdate) JSON() []byte {
	b, _ := json.Marshal(u)
	return b
}
