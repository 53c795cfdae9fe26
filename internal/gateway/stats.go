package gateway

import (
	"runtime"
	"time"
)

// Stats is the process and fan-out summary served on /api/stats and pushed
// to clients periodically.
type Stats struct {
	UptimeSec   int64        `json:"uptime_sec"`
	Goroutines  int          `json:"goroutines"`
	HeapAllocMB float64      `json:"heap_alloc_mb"`
	SysMB       float64      `json:"sys_mb"`
	GCRuns      uint32       `json:"gc_runs"`
	Clients     int          `json:"ws_clients"`
	Channels    int          `json:"channels"`
	Seq         int64        `json:"seq"`
	Latency     LatencyStats `json:"latency"`
	TS          string       `json:"ts"`
}

// CollectStats gathers runtime and hub counters.
func (h *Hub) CollectStats(start time.Time) Stats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	h.mu.RLock()
	clients, channels, seq := len(h.clients), len(h.latest), h.seq
	h.mu.RUnlock()

	return Stats{
		UptimeSec:   int64(time.Since(start).Seconds()),
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(ms.HeapAlloc) / 1024 / 1024,
		SysMB:       float64(ms.Sys) / 1024 / 1024,
		GCRuns:      ms.NumGC,
		Clients:     clients,
		Channels:    channels,
		Seq:         seq,
		Latency:     h.Latency.Stats(),
		TS:          time.Now().UTC().Format(time.RFC3339Nano),
	}
}
