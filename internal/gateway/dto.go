package gateway

import (
	"encoding/json"

	"chartengine/internal/model"
)

// SubscribeMsg is sent by a client to receive updates for symbols.
//
//	{"type":"SUBSCRIBE","req_id":"1","symbols":["NIFTY"]}
type SubscribeMsg struct {
	Type    string   `json:"type"`
	ReqID   string   `json:"req_id,omitempty"`
	Symbols []string `json:"symbols"`
}

// UnsubscribeMsg removes symbols from a client's subscriptions.
type UnsubscribeMsg struct {
	Type    string   `json:"type"`
	ReqID   string   `json:"req_id,omitempty"`
	Symbols []string `json:"symbols"`
}

// AckMessage confirms a subscription change.
type AckMessage struct {
	Type    string   `json:"type"`
	ReqID   string   `json:"req_id,omitempty"`
	Symbols []string `json:"symbols"`
}

// ErrorResponse is returned over WS and REST on bad requests.
type ErrorResponse struct {
	Type  string `json:"type,omitempty"`
	ReqID string `json:"req_id,omitempty"`
	Error string `json:"error"`
}

// ThresholdRequest is the POST /api/thresholds body.
type ThresholdRequest struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Label  string  `json:"label"`
}

// ThresholdResponse lists a symbol's thresholds.
type ThresholdResponse struct {
	Symbol     string            `json:"symbol"`
	Thresholds []model.Threshold `json:"thresholds"`
}

// MissedResponse is the /api/missed gap-backfill payload.
type MissedResponse struct {
	Channel    string            `json:"channel"`
	CurrentSeq int64             `json:"current_seq"`
	Messages   []json.RawMessage `json:"messages"`
}

// StatsMessage is the periodic WS stats envelope.
type StatsMessage struct {
	Type  string `json:"type"`
	Stats Stats  `json:"stats"`
}
