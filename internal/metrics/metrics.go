// Package metrics exposes Prometheus metrics and the /healthz probe for chartd.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the chart service.
type Metrics struct {
	// Feed
	TicksTotal   prometheus.Counter
	DroppedTicks prometheus.Counter
	WSReconnects prometheus.Counter

	// Engine
	BarsIngested     *prometheus.CounterVec // labels: symbol, kind=closed|forming
	BarsEvicted      *prometheus.CounterVec // labels: symbol
	SignalsTotal     *prometheus.CounterVec // labels: symbol, direction
	DuplicateSignals prometheus.Counter
	SnapshotDur      prometheus.Histogram

	// Sinks
	RedisWriteDur   prometheus.Histogram
	SQLiteCommitDur prometheus.Histogram
	PublishErrors   *prometheus.CounterVec // labels: sink

	// Fan-out
	FanoutDropsTotal *prometheus.CounterVec // labels: subscriber
	WSClients        prometheus.Gauge
	E2ELatency       prometheus.Histogram // bar close to WS emit
}

// NewMetrics creates the metrics and registers them with reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	fast := []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05}

	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_ticks_total",
			Help: "Total ticks received from the feed",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_dropped_ticks_total",
			Help: "Ticks dropped (malformed or channel full)",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_feed_reconnects_total",
			Help: "Total feed WebSocket reconnection attempts",
		}),

		BarsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_bars_ingested_total",
			Help: "Bars ingested into chart engines",
		}, []string{"symbol", "kind"}),
		BarsEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_bars_evicted_total",
			Help: "Bars dropped from the front of chart windows",
		}, []string{"symbol"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_signals_total",
			Help: "New crossover signals emitted",
		}, []string{"symbol", "direction"}),
		DuplicateSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_duplicate_signals_total",
			Help: "Signals re-detected with an already recorded ID",
		}),
		SnapshotDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_snapshot_duration_seconds",
			Help:    "Time to ingest a bar and derive its snapshot",
			Buckets: fast,
		}),

		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_redis_write_duration_seconds",
			Help:    "Redis publish latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_publish_errors_total",
			Help: "Errors writing to downstream sinks",
		}, []string{"sink"}),

		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_fanout_drops_total",
			Help: "Bar updates dropped by the bus per subscriber",
		}, []string{"subscriber"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chartd_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		E2ELatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_e2e_latency_seconds",
			Help:    "Latency from bar timestamp to WS emit",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.DroppedTicks,
		m.WSReconnects,
		m.BarsIngested,
		m.BarsEvicted,
		m.SignalsTotal,
		m.DuplicateSignals,
		m.SnapshotDur,
		m.RedisWriteDur,
		m.SQLiteCommitDur,
		m.PublishErrors,
		m.FanoutDropsTotal,
		m.WSClients,
		m.E2ELatency,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool
	LastTickTime   time.Time
	RedisConnected bool
	SQLiteOK       bool
	Symbols        []string

	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSymbols(symbols []string) {
	h.mu.Lock()
	h.Symbols = symbols
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.FeedConnected || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		FeedConnected   bool     `json:"feed_connected"`
		LastTickTime    string   `json:"last_tick_time"`
		TickAge         string   `json:"tick_age"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		Symbols         []string `json:"symbols"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		Symbols:         h.Symbols,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
