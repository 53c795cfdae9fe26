// Package notification delivers crossover alerts to external channels
// (log, Telegram, generic webhooks).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"chartengine/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel    `json:"level"`
	Title   string        `json:"title"`
	Message string        `json:"message"`
	Signal  *model.Signal `json:"signal,omitempty"`
}

// SignalAlert renders a crossover signal as an INFO alert.
func SignalAlert(sig model.Signal) Alert {
	title := fmt.Sprintf("%s %s", sig.Symbol, sig.Direction)
	if sig.Symbol == "" {
		title = string(sig.Direction)
	}
	msg := fmt.Sprintf("%s crossover at %s (bar %s), fast=%s slow=%s",
		sig.Direction,
		strconv.FormatFloat(sig.Price, 'f', -1, 64),
		time.UnixMilli(sig.Timestamp).UTC().Format(time.RFC3339),
		strconv.FormatFloat(sig.FastMA, 'f', 2, 64),
		strconv.FormatFloat(sig.SlowMA, 'f', 2, 64),
	)
	if sig.Reason != "" {
		msg += "\n" + sig.Reason
	}
	s := sig
	return Alert{Level: AlertInfo, Title: title, Message: msg, Signal: &s}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi sends every alert to all backends and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Select builds the notifier set from configuration. The log notifier is
// always present; Telegram and webhook are added when configured.
func Select(telegramToken, telegramChatID, webhookURL string) Notifier {
	m := Multi{NewLogNotifier()}
	if telegramToken != "" && telegramChatID != "" {
		m = append(m, NewTelegramNotifier(telegramToken, telegramChatID))
	}
	if webhookURL != "" {
		m = append(m, NewWebhookNotifier(webhookURL))
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}
