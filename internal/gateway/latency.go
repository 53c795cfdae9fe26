package gateway

import (
	"math"
	"sort"
	"sync"
)

// LatencyStats summarizes the tracked samples, in milliseconds.
type LatencyStats struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	P99   float64 `json:"p99_ms"`
	Max   float64 `json:"max_ms"`
	Mean  float64 `json:"mean_ms"`
}

// LatencyTracker keeps the last N latency samples in a ring and reports
// percentiles over them. Safe for concurrent use.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []float64
	pos     int
	count   int
}

// NewLatencyTracker creates a tracker that holds the last capacity samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LatencyTracker{samples: make([]float64, capacity)}
}

// Record adds a latency sample in milliseconds.
func (lt *LatencyTracker) Record(latencyMs float64) {
	lt.mu.Lock()
	lt.samples[lt.pos] = latencyMs
	lt.pos = (lt.pos + 1) % len(lt.samples)
	if lt.count < len(lt.samples) {
		lt.count++
	}
	lt.mu.Unlock()
}

// sorted returns the retained samples in ascending order.
func (lt *LatencyTracker) sorted() []float64 {
	lt.mu.Lock()
	out := make([]float64, lt.count)
	copy(out, lt.samples[:lt.count])
	lt.mu.Unlock()
	sort.Float64s(out)
	return out
}

// Percentiles returns p50, p95 and p99 in milliseconds, or zeros when empty.
func (lt *LatencyTracker) Percentiles() (p50, p95, p99 float64) {
	s := lt.sorted()
	return percentile(s, 0.50), percentile(s, 0.95), percentile(s, 0.99)
}

// Stats returns the full summary.
func (lt *LatencyTracker) Stats() LatencyStats {
	s := lt.sorted()
	st := LatencyStats{Count: len(s)}
	if len(s) == 0 {
		return st
	}
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	st.P50 = percentile(s, 0.50)
	st.P95 = percentile(s, 0.95)
	st.P99 = percentile(s, 0.99)
	st.Max = s[len(s)-1]
	st.Mean = sum / float64(len(s))
	return st
}

// Count returns the number of samples retained (up to capacity).
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.count
}

// percentile interpolates the p-th percentile (0..1) of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	if lower+1 >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[lower+1]*frac
}
