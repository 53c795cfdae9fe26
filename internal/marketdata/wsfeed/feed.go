// Package wsfeed is a WebSocket client that reads JSON ticks from a feed
// server (e.g. cmd/tickserver) and pushes them into the bar aggregator.
//
// Each text frame carries one tick:
//
//	{"symbol":"NIFTY","price":22150.5,"qty":10,"tick_ts":"2024-01-02T09:15:00.250Z"}
//
// A frame may also carry a JSON array of ticks.
package wsfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"chartengine/internal/model"

	"github.com/gorilla/websocket"
)

// Config holds configuration for the feed client.
type Config struct {
	// URL of the tick WebSocket server, e.g. "ws://localhost:9001/ws"
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Feed streams ticks from a plain-JSON WebSocket server.
type Feed struct {
	cfg Config

	// Optional hooks
	OnConnect    func()
	OnDisconnect func(err error)
	OnTick       func(model.Tick)
	OnDrop       func()
}

// New creates a Feed. Returns an error if the URL is not a ws/wss URL.
func New(cfg Config) (*Feed, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("wsfeed: parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("wsfeed: unsupported scheme %q", u.Scheme)
	}
	return &Feed{cfg: cfg}, nil
}

// Start connects and streams ticks into tickCh until ctx is cancelled,
// reconnecting with exponential backoff. The backoff resets after a
// connection that delivered at least one frame.
func (f *Feed) Start(ctx context.Context, tickCh chan<- model.Tick) error {
	delay := f.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		received, err := f.runOnce(ctx, tickCh)
		if err == nil {
			return nil
		}
		if received {
			delay = f.cfg.ReconnectDelay
		}

		log.Printf("[wsfeed] disconnected (%v), reconnecting in %s...", err, delay)
		if f.OnDisconnect != nil {
			f.OnDisconnect(err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection and reads until disconnect or ctx cancel.
// A nil error means ctx was cancelled.
func (f *Feed) runOnce(ctx context.Context, tickCh chan<- model.Tick) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	log.Printf("[wsfeed] connected to %s", f.cfg.URL)
	if f.OnConnect != nil {
		f.OnConnect()
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-stop:
		}
	}()

	received := false
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return received, nil
			default:
			}
			return received, err
		}
		received = true

		ticks, err := DecodeTicks(raw)
		if err != nil {
			log.Printf("[wsfeed] parse error: %v (raw: %s)", err, raw)
			continue
		}

		for _, tick := range ticks {
			if f.OnTick != nil {
				f.OnTick(tick)
			}
			select {
			case tickCh <- tick:
			default:
				if f.OnDrop != nil {
					f.OnDrop()
				} else {
					log.Println("[wsfeed] tickCh full, dropping tick")
				}
			}
		}
	}
}

var errNoSymbol = errors.New("tick without symbol")

// DecodeTicks parses a frame holding one tick or an array of ticks.
// Symbols are upper-cased; a missing timestamp is set to now.
func DecodeTicks(raw []byte) ([]model.Tick, error) {
	raw = bytes.TrimSpace(raw)
	var ticks []model.Tick
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &ticks); err != nil {
			return nil, err
		}
	} else {
		var t model.Tick
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		ticks = []model.Tick{t}
	}

	out := ticks[:0]
	for _, t := range ticks {
		t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
		if t.Symbol == "" {
			continue
		}
		if t.TickTS.IsZero() {
			t.TickTS = time.Now().UTC()
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, errNoSymbol
	}
	return out, nil
}
