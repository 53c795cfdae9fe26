package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"chartengine/internal/chart"
	"chartengine/internal/chartsvc"
	"chartengine/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Charts is the chart service surface the HTTP API needs.
type Charts interface {
	Symbols() []string
	Snapshot(symbol string) (chart.Snapshot, error)
	Thresholds(symbol string) ([]model.Threshold, error)
	AddThreshold(ctx context.Context, symbol string, price float64, label string) (model.Threshold, chart.Snapshot, error)
	RemoveThreshold(ctx context.Context, symbol, id string) (bool, error)
}

// RouteOptions configures RegisterRoutes.
type RouteOptions struct {
	// AdminSecret is the base32 TOTP secret for threshold mutations.
	// Empty disables POST/DELETE on /api/thresholds.
	AdminSecret string
	// Signals serves /api/signals; nil disables it.
	Signals model.SignalLister
	// Start is the process start time for uptime reporting.
	Start time.Time
	// RateLimit caps /api requests per second per client IP; 0 disables it.
	RateLimit float64
	RateBurst int
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+AdminOTPHeader)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// symbolStatus maps chart service errors to HTTP status codes.
func symbolStatus(err error) int {
	if errors.Is(err, chartsvc.ErrUnknownSymbol) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// RegisterRoutes registers all HTTP routes on mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, charts Charts, opts RouteOptions) {
	if opts.Start.IsZero() {
		opts.Start = time.Now()
	}
	var limiter *ipLimiter
	if opts.RateLimit > 0 {
		limiter = newIPLimiter(opts.RateLimit, opts.RateBurst)
	}
	api := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, limiter.wrap(h))
	}

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		hub.HandleWSRequest(conn, r.URL.Query().Get("last_ts"))
	})

	api("/api/symbols", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		writeJSON(w, http.StatusOK, charts.Symbols())
	})

	// REST: latest snapshot for one symbol
	api("/api/snapshot", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		symbol := querySymbol(r)
		if symbol == "" {
			writeError(w, http.StatusBadRequest, "symbol is required")
			return
		}
		snap, err := charts.Snapshot(symbol)
		if err != nil {
			writeError(w, symbolStatus(err), err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(snap.JSON())
	})

	api("/api/thresholds", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			handleListThresholds(w, r, charts)
		case http.MethodPost:
			if status, err := checkAdmin(opts.AdminSecret, r); err != nil {
				writeError(w, status, err.Error())
				return
			}
			handleAddThreshold(w, r, charts)
		case http.MethodDelete:
			if status, err := checkAdmin(opts.AdminSecret, r); err != nil {
				writeError(w, status, err.Error())
				return
			}
			handleRemoveThreshold(w, r, charts)
		default:
			writeError(w, http.StatusMethodNotAllowed, "GET, POST or DELETE only")
		}
	})

	// REST: recorded signal history
	api("/api/signals", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if opts.Signals == nil {
			writeError(w, http.StatusServiceUnavailable, "signal history unavailable")
			return
		}
		symbol := querySymbol(r)
		if symbol == "" {
			writeError(w, http.StatusBadRequest, "symbol is required")
			return
		}
		limit := 100
		if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
		sigs, err := opts.Signals.ListSignals(r.Context(), symbol, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if sigs == nil {
			sigs = []model.Signal{}
		}
		writeJSON(w, http.StatusOK, sigs)
	})

	// REST: gap backfill, /api/missed?channel=pub:chart:NIFTY&from=10&to=20
	api("/api/missed", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		q := r.URL.Query()
		channel := q.Get("channel")
		from, err := strconv.ParseInt(q.Get("from"), 10, 64)
		if channel == "" || err != nil {
			writeError(w, http.StatusBadRequest, "channel and from are required")
			return
		}
		current := hub.ChannelSeq(channel)
		to := current
		if v := q.Get("to"); v != "" {
			if to, err = strconv.ParseInt(v, 10, 64); err != nil {
				writeError(w, http.StatusBadRequest, "invalid to")
				return
			}
		}
		resp := MissedResponse{Channel: channel, CurrentSeq: current, Messages: []json.RawMessage{}}
		for _, m := range hub.ReplayRange(channel, from, to) {
			resp.Messages = append(resp.Messages, m)
		}
		writeJSON(w, http.StatusOK, resp)
	})

	api("/api/latency", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		writeJSON(w, http.StatusOK, hub.Latency.Stats())
	})

	api("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		writeJSON(w, http.StatusOK, hub.CollectStats(opts.Start))
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "ok",
			"symbols":    charts.Symbols(),
			"ws_clients": hub.ClientCount(),
			"uptime_sec": int64(time.Since(opts.Start).Seconds()),
			"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

func querySymbol(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
}

func handleListThresholds(w http.ResponseWriter, r *http.Request, charts Charts) {
	symbol := querySymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	ths, err := charts.Thresholds(symbol)
	if err != nil {
		writeError(w, symbolStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ThresholdResponse{Symbol: symbol, Thresholds: ths})
}

func handleAddThreshold(w http.ResponseWriter, r *http.Request, charts Charts) {
	var req ThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" || req.Price <= 0 {
		writeError(w, http.StatusBadRequest, "symbol and a positive price are required")
		return
	}
	th, _, err := charts.AddThreshold(r.Context(), req.Symbol, req.Price, req.Label)
	if err != nil {
		writeError(w, symbolStatus(err), err.Error())
		return
	}
	log.Printf("[gateway] threshold added: %s %s %.4f", req.Symbol, th.ID, th.Price)
	writeJSON(w, http.StatusCreated, th)
}

func handleRemoveThreshold(w http.ResponseWriter, r *http.Request, charts Charts) {
	symbol := querySymbol(r)
	id := r.URL.Query().Get("id")
	if symbol == "" || id == "" {
		writeError(w, http.StatusBadRequest, "symbol and id are required")
		return
	}
	ok, err := charts.RemoveThreshold(r.Context(), symbol, id)
	if err != nil {
		writeError(w, symbolStatus(err), err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "threshold not found")
		return
	}
	log.Printf("[gateway] threshold removed: %s %s", symbol, id)
	w.WriteHeader(http.StatusNoContent)
}
