package gateway

import (
	"encoding/json"
	"strconv"
	"time"
)

// Broadcaster builds envelopes and sends them to matching clients.
type Broadcaster struct {
	hub *Hub

	// OnLatency observes each end-to-end latency sample in milliseconds.
	OnLatency func(ms float64)

	now func() time.Time
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub, now: time.Now}
}

// Broadcast sends data on a channel to all subscribed clients.
// The envelope is built by hand to keep json.Marshal off the hot path and
// carries a per-channel seq for client-side gap detection.
func (b *Broadcaster) Broadcast(channel string, data []byte) {
	now := b.now().UTC()

	if computed := extractComputedAt(data); computed > 0 {
		latencyMs := float64(now.UnixMicro()-computed*1000) / 1000.0
		if latencyMs >= 0 {
			b.hub.Latency.Record(latencyMs)
			if b.OnLatency != nil {
				b.OnLatency(latencyMs)
			}
		}
	}

	b.hub.mu.Lock()
	b.hub.channelSeqs[channel]++
	channelSeq := b.hub.channelSeqs[channel]
	b.hub.latest[channel] = latestEntry{Data: data, TS: now, Seq: channelSeq}
	b.hub.seq++
	seq := b.hub.seq
	rb, exists := b.hub.replayBufs[channel]
	if !exists {
		rb = NewReplayBuffer(b.hub.cfg.ReplaySize)
		b.hub.replayBufs[channel] = rb
	}
	b.hub.mu.Unlock()

	buf := buildEnvelope(channel, data, now, seq, channelSeq)
	rb.Push(channelSeq, buf)

	b.hub.mu.RLock()
	defer b.hub.mu.RUnlock()
	for client := range b.hub.clients {
		if !client.matchesChannel(channel) {
			continue
		}
		select {
		case client.send <- buf:
		default:
		}
	}
}

// buildEnvelope writes {"channel":..,"data":..,"ts":..,"seq":..,"channel_seq":..}.
func buildEnvelope(channel string, data []byte, now time.Time, seq, channelSeq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+160)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')
	return buf
}

// extractComputedAt reads the snapshot's computed_at (Unix ms), or 0.
func extractComputedAt(data []byte) int64 {
	var partial struct {
		ComputedAt int64 `json:"computed_at"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return 0
	}
	return partial.ComputedAt
}
