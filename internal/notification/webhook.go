package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// WebhookEvent is the JSON body POSTed to a webhook. Signal fields are
// flattened so receivers can route on event and direction without nesting.
type WebhookEvent struct {
	Event     string     `json:"event"` // "signal" or "alert"
	Level     AlertLevel `json:"level"`
	Symbol    string     `json:"symbol,omitempty"`
	Direction string     `json:"direction,omitempty"`
	Price     float64    `json:"price,omitempty"`
	SignalID  string     `json:"signal_id,omitempty"`
	BarTime   int64      `json:"bar_time,omitempty"`
	FastMA    float64    `json:"fast_ma,omitempty"`
	SlowMA    float64    `json:"slow_ma,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	SentAt    int64      `json:"sent_at"`
}

// NewWebhookEvent builds the body for alert, stamped with sentAt.
func NewWebhookEvent(alert Alert, sentAt time.Time) WebhookEvent {
	ev := WebhookEvent{
		Event:   "alert",
		Level:   alert.Level,
		Title:   alert.Title,
		Message: alert.Message,
		SentAt:  sentAt.UnixMilli(),
	}
	if sig := alert.Signal; sig != nil {
		ev.Event = "signal"
		ev.Symbol = sig.Symbol
		ev.Direction = string(sig.Direction)
		ev.Price = sig.Price
		ev.SignalID = sig.ID
		ev.BarTime = sig.Timestamp
		ev.FastMA = sig.FastMA
		ev.SlowMA = sig.SlowMA
		ev.Reason = sig.Reason
	}
	return ev
}

// WebhookNotifier POSTs a WebhookEvent per alert.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	ev := NewWebhookEvent(alert, w.now())
	status, _, err := postJSON(ctx, w.client, w.url, ev)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", status)
	}
	log.Printf("[webhook] %s %s delivered", ev.Event, alert.Title)
	return nil
}

// postJSON POSTs v and returns the status and at most 4 KiB of the body.
func postJSON(ctx context.Context, client *http.Client, url string, v interface{}) (int, []byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(io.LimitReader(resp.Body, 4<<10))
	return resp.StatusCode, buf.Bytes(), nil
}
