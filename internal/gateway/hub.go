package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// HubConfig sizes the hub's buffers.
type HubConfig struct {
	// ReplaySize is the number of envelopes kept per channel for gap backfill.
	ReplaySize int
	// LatencySamples is the latency tracker capacity.
	LatencySamples int
	// ClientBuffer is the per-client send queue length.
	ClientBuffer int
}

func (c *HubConfig) defaults() {
	if c.ReplaySize <= 0 {
		c.ReplaySize = 500
	}
	if c.LatencySamples <= 0 {
		c.LatencySamples = 10000
	}
	if c.ClientBuffer <= 0 {
		c.ClientBuffer = 256
	}
}

// Hub manages WebSocket clients and fans chart updates out to them.
// Updates arrive either from the Redis PubSubRouter or directly from the
// chart service when Redis is not in the loop.
type Hub struct {
	cfg HubConfig

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	// Per-channel monotonic sequence numbers for gap detection
	channelSeqs map[string]int64

	// Per-channel replay buffers for gap backfill
	replayBufs map[string]*ReplayBuffer

	// End-to-end latency from snapshot computation to WS emit
	Latency *LatencyTracker

	Broadcaster *Broadcaster

	// OnClientCount is called with the client count after every change.
	OnClientCount func(n int)
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64
}

// NewHub creates a Hub.
func NewHub(cfg HubConfig) *Hub {
	cfg.defaults()
	h := &Hub{
		cfg:         cfg,
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		Latency:     NewLatencyTracker(cfg.LatencySamples),
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Broadcast sends data on channel to all matching clients.
func (h *Hub) Broadcast(channel string, data []byte) {
	h.Broadcaster.Broadcast(channel, data)
}

// HandleWSRequest registers an upgraded connection. Latest channel state
// newer than lastTS (RFC3339Nano, optional) is sent immediately.
func (h *Hub) HandleWSRequest(conn *websocket.Conn, lastTS string) {
	client := newClient(h, conn)

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}

	client.sendInitialState(lastTS, nil)
	go client.writePump()
	go client.readPump()
}

// addClient registers a client without a connection.
func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

// RemoveClient removes a client from the hub and closes its send queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	close(c.send)

	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
}

// LatestAll returns the latest payload per channel.
func (h *Hub) LatestAll() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// ReplayRange returns buffered envelopes for a channel in [fromSeq, toSeq].
// Used by /api/missed for client gap backfill.
func (h *Hub) ReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, exists := h.replayBufs[channel]
	h.mu.RUnlock()
	if !exists {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	result := make([][]byte, len(entries))
	for i, e := range entries {
		result[i] = e.Data
	}
	return result
}

// ChannelSeq returns the current sequence number for a channel.
func (h *Hub) ChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartStatsBroadcast sends a stats envelope to every client each interval
// until ctx is cancelled.
func (h *Hub) StartStatsBroadcast(ctx context.Context, start time.Time, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			envelope, _ := json.Marshal(StatsMessage{
				Type:  "stats",
				Stats: h.CollectStats(start),
			})
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- envelope:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}
