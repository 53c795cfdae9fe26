package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	redisstore "chartengine/internal/store/redis"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Symbols this client subscribed to; empty means everything.
	subMu   sync.RWMutex
	symbols map[string]bool
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, h.cfg.ClientBuffer),
		hub:     h,
		symbols: make(map[string]bool),
	}
}

// sendInitialState queues the latest envelope of every matching channel.
// With only non-nil, channels for other symbols are skipped.
func (c *Client) sendInitialState(lastTS string, only map[string]bool) {
	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}
		if only != nil {
			if sym, ok := channelSymbol(channel); !ok || !only[sym] {
				continue
			}
		}
		if !c.matchesChannel(channel) {
			continue
		}

		envelope, _ := json.Marshal(map[string]interface{}{
			"channel":     channel,
			"data":        entry.Data,
			"ts":          entry.TS.Format(time.RFC3339Nano),
			"channel_seq": entry.Seq,
			"initial":     true,
		})
		select {
		case c.send <- envelope:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Coalesce queued messages into one frame, newline separated
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.handleMessage(msg)
	}
}

// handleMessage applies one client control message.
func (c *Client) handleMessage(msg []byte) {
	var base struct {
		Type string `json:"type"`
		Ping int64  `json:"ping"`
	}
	if json.Unmarshal(msg, &base) != nil {
		return
	}

	switch strings.ToUpper(base.Type) {
	case "SUBSCRIBE":
		var sub SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || len(sub.Symbols) == 0 {
			c.sendJSON(ErrorResponse{Type: "error", ReqID: sub.ReqID, Error: "symbols are required"})
			return
		}
		added := c.subscribe(sub.Symbols)
		log.Printf("[gateway] client subscribed: %v", sub.Symbols)
		c.sendInitialState("", added)
		c.sendJSON(AckMessage{Type: "subscribed", ReqID: sub.ReqID, Symbols: c.Symbols()})

	case "UNSUBSCRIBE":
		var unsub UnsubscribeMsg
		if err := json.Unmarshal(msg, &unsub); err != nil {
			return
		}
		c.unsubscribe(unsub.Symbols)
		c.sendJSON(AckMessage{Type: "unsubscribed", ReqID: unsub.ReqID, Symbols: c.Symbols()})

	default:
		if base.Ping > 0 {
			c.sendJSON(map[string]interface{}{
				"type":      "pong",
				"ping":      base.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
		}
	}
}

func (c *Client) subscribe(symbols []string) map[string]bool {
	added := make(map[string]bool, len(symbols))
	c.subMu.Lock()
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		c.symbols[s] = true
		added[s] = true
	}
	c.subMu.Unlock()
	return added
}

func (c *Client) unsubscribe(symbols []string) {
	c.subMu.Lock()
	for _, s := range symbols {
		delete(c.symbols, strings.ToUpper(strings.TrimSpace(s)))
	}
	c.subMu.Unlock()
}

// Symbols returns the client's subscriptions.
func (c *Client) Symbols() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	out := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		out = append(out, s)
	}
	return out
}

// matchesChannel reports whether the client should receive channel.
// Channels without a symbol are always delivered.
func (c *Client) matchesChannel(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	if len(c.symbols) == 0 {
		return true
	}
	sym, ok := channelSymbol(channel)
	if !ok {
		return true
	}
	return c.symbols[sym]
}

// channelSymbol extracts the symbol from a chart or signal channel.
func channelSymbol(channel string) (string, bool) {
	sym := redisstore.SymbolFromChannel(channel)
	if sym == channel || sym == "" {
		return "", false
	}
	return sym, true
}

func (c *Client) sendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}
