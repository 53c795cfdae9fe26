// cmd/tickserver is a demo WebSocket tick server. It broadcasts simulated
// ticks so chartd can run without a real market feed.
//
// Tick JSON shape is identical to model.Tick:
//
//	{"symbol":"NIFTY","price":25660.5,"qty":10,"tick_ts":"..."}
//
// Config (env vars):
//
//	TICK_SERVER_ADDR  listen address (default ":9001")
//	TICK_SYMBOLS      comma-separated SYMBOL[:PRICE] pairs (default "NIFTY:25660")
//	TICK_INTERVAL_MS  broadcast interval in milliseconds (default "100")
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chartengine/internal/model"
)

// instrument holds per-symbol simulation state.
type instrument struct {
	Symbol string
	Price  float64
}

// ─── Hub ──────────────────────────────────────────────────────────────────────

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client, drop tick
		}
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[tickserver] upgrade error: %v", err)
			return
		}
		log.Printf("[tickserver] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[tickserver] client disconnected: %s", r.RemoteAddr)
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── Tick generator ──────────────────────────────────────────────────────────

// walkPrice applies a small random walk (up to ±0.1%) rounded to the paisa.
func walkPrice(rng *rand.Rand, price float64) float64 {
	pct := (rng.Float64()*0.2 - 0.1) / 100.0
	next := math.Round(price*(1+pct)*100) / 100
	if next < 0.01 {
		next = 0.01
	}
	return next
}

func runGenerator(h *hub, instruments []instrument, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for range ticker.C {
		for i := range instruments {
			instruments[i].Price = walkPrice(rng, instruments[i].Price)
			b, err := json.Marshal(model.Tick{
				Symbol: instruments[i].Symbol,
				Price:  instruments[i].Price,
				Qty:    float64(rng.Intn(100) + 1),
				TickTS: time.Now().UTC(),
			})
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[tickserver] starting demo tick server...")

	addr := envOrDefault("TICK_SERVER_ADDR", ":9001")
	symbolsEnv := envOrDefault("TICK_SYMBOLS", "NIFTY:25660")
	intervalMs := envIntOrDefault("TICK_INTERVAL_MS", 100)
	if intervalMs <= 0 {
		intervalMs = 100
	}

	instruments := parseInstruments(symbolsEnv)
	if len(instruments) == 0 {
		log.Fatalf("[tickserver] no instruments configured via TICK_SYMBOLS")
	}
	log.Printf("[tickserver] instruments: %+v", instruments)
	log.Printf("[tickserver] broadcast interval: %dms", intervalMs)

	h := newHub()
	go runGenerator(h, instruments, time.Duration(intervalMs)*time.Millisecond)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"tickserver"}`)
	})

	log.Printf("[tickserver] listening on %s (WebSocket: ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[tickserver] server error: %v", err)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

// defaultPrices seeds well-known symbols when no price is given.
var defaultPrices = map[string]float64{
	"NIFTY":     25660,
	"BANKNIFTY": 55120,
	"RELIANCE":  1850.5,
}

func parseInstruments(s string) []instrument {
	var result []instrument
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sym, priceStr, hasPrice := strings.Cut(part, ":")
		sym = strings.ToUpper(strings.TrimSpace(sym))
		price := defaultPrices[sym]
		if hasPrice {
			p, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
			if err != nil || p <= 0 {
				log.Printf("[tickserver] skipping invalid symbol entry: %q", part)
				continue
			}
			price = p
		}
		if price == 0 {
			price = 1000
		}
		result = append(result, instrument{Symbol: sym, Price: price})
	}
	return result
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
