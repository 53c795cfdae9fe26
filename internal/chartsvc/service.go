// Package chartsvc runs one chart engine per symbol behind the live bar
// pipeline: it ingests bar updates, de-duplicates crossover signals against
// the ledger, and publishes snapshots and signals to the configured sinks.
package chartsvc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sort"
	"sync"
	"time"

	"chartengine/internal/chart"
	"chartengine/internal/logger"
	"chartengine/internal/metrics"
	"chartengine/internal/model"
	"chartengine/internal/notification"
)

// ErrUnknownSymbol is returned for updates and queries on unconfigured symbols.
var ErrUnknownSymbol = errors.New("unknown symbol")

// seenLimit bounds the per-symbol in-memory set of emitted signal IDs.
const seenLimit = 256

// Options configures the service.
type Options struct {
	Symbols []string

	// ChartConfig returns the engine config for a symbol.
	ChartConfig func(symbol string) chart.Config

	// Thresholds are applied to every symbol at startup. They get stable
	// IDs ("cfg-<n>") and are never persisted.
	Thresholds []model.Threshold

	// ConfirmOnClose drops signals detected on forming bars; the signal is
	// emitted once the bar closes if the crossing still holds.
	ConfirmOnClose bool

	// NotifyTimeout bounds each alert delivery. Defaults to 10s.
	NotifyTimeout time.Duration
}

// Deps are the optional sinks. Nil fields are skipped.
type Deps struct {
	Publisher  model.SnapshotPublisher
	Ledger     model.SignalLedger
	Thresholds model.ThresholdStore
	Notifier   notification.Notifier
	Metrics    *metrics.Metrics

	// OnSnapshot and OnSignal observe every published snapshot and every
	// new signal, e.g. for an in-process WebSocket hub.
	OnSnapshot func(symbol string, data []byte)
	OnSignal   func(sig model.Signal)
}

type symbolChart struct {
	mu        sync.Mutex
	eng       *chart.Engine
	last      *chart.Snapshot
	forming   bool
	evicted   uint64
	seen      map[string]struct{}
	seenOrder []string
}

// Service owns the per-symbol engines.
type Service struct {
	opts   Options
	deps   Deps
	charts map[string]*symbolChart
}

// New builds one engine per symbol. Engine configs are validated here.
func New(opts Options, deps Deps) (*Service, error) {
	if len(opts.Symbols) == 0 {
		return nil, fmt.Errorf("chartsvc: %w: no symbols", model.ErrInvalidConfig)
	}
	if opts.ChartConfig == nil {
		opts.ChartConfig = func(symbol string) chart.Config {
			cfg := chart.DefaultConfig()
			cfg.Symbol = symbol
			return cfg
		}
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}

	svc := &Service{
		opts:   opts,
		deps:   deps,
		charts: make(map[string]*symbolChart, len(opts.Symbols)),
	}
	for _, sym := range opts.Symbols {
		if _, dup := svc.charts[sym]; dup {
			continue
		}
		eng, err := chart.New(opts.ChartConfig(sym))
		if err != nil {
			return nil, fmt.Errorf("chartsvc: %w", err)
		}
		for i, th := range opts.Thresholds {
			th.ID = fmt.Sprintf("cfg-%d", i+1)
			eng.PutThreshold(th)
		}
		svc.charts[sym] = &symbolChart{eng: eng, seen: make(map[string]struct{})}
	}
	return svc, nil
}

// Symbols returns the configured symbols, sorted.
func (s *Service) Symbols() []string {
	out := make([]string, 0, len(s.charts))
	for sym := range s.charts {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (s *Service) chart(symbol string) (*symbolChart, error) {
	sc, ok := s.charts[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSymbol, symbol)
	}
	return sc, nil
}

// Run handles updates from in until ctx is cancelled or in closes.
func (s *Service) Run(ctx context.Context, in <-chan model.BarUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-in:
			if !ok {
				return
			}
			if _, err := s.Handle(ctx, u); err != nil && !errors.Is(err, ErrUnknownSymbol) {
				log.Printf("[chartsvc] %s: %v", u.Symbol, err)
			}
		}
	}
}

// Handle ingests one bar update. An update whose bar time equals the last
// bar's replaces it, so forming updates and the final closed update of the
// same bucket collapse into one bar.
func (s *Service) Handle(ctx context.Context, u model.BarUpdate) (chart.Snapshot, error) {
	sc, err := s.chart(u.Symbol)
	if err != nil {
		return chart.Snapshot{}, err
	}
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(u.Symbol, u.Bar.Time))

	sc.mu.Lock()
	defer sc.mu.Unlock()

	start := time.Now()
	snap := sc.eng.IngestBar(u.Bar, true)
	snap.Forming = u.Forming
	snap.ComputedAt = time.Now().UnixMilli()

	if m := s.deps.Metrics; m != nil {
		m.SnapshotDur.Observe(time.Since(start).Seconds())
		kind := "closed"
		if u.Forming {
			kind = "forming"
		}
		m.BarsIngested.WithLabelValues(u.Symbol, kind).Inc()
		if ev := sc.eng.Evicted(); ev > sc.evicted {
			m.BarsEvicted.WithLabelValues(u.Symbol).Add(float64(ev - sc.evicted))
		}
	}
	sc.evicted = sc.eng.Evicted()

	if snap.Signal != nil && u.Forming && s.opts.ConfirmOnClose {
		snap.Signal = nil
	}
	if snap.Signal != nil {
		if !s.isNewSignal(ctx, sc, *snap.Signal) {
			snap.Signal = nil
		}
	}

	sc.last = &snap
	sc.forming = u.Forming
	s.publishSnapshot(ctx, u.Symbol, &snap)
	if snap.Signal != nil {
		s.emitSignal(ctx, *snap.Signal)
	}
	return snap, nil
}

// isNewSignal checks the in-memory set, then the ledger. A ledger error
// falls back to the in-memory answer.
func (s *Service) isNewSignal(ctx context.Context, sc *symbolChart, sig model.Signal) bool {
	if _, dup := sc.seen[sig.ID]; dup {
		s.countDuplicate()
		return false
	}
	if s.deps.Ledger != nil {
		isNew, err := s.deps.Ledger.RecordSignal(ctx, sig)
		if err != nil {
			slog.Error("signal ledger write failed",
				append(logger.LogWithTrace(ctx), "signal_id", sig.ID, "error", err)...)
			s.countPublishError("sqlite")
		} else if !isNew {
			sc.markSeen(sig.ID)
			s.countDuplicate()
			return false
		}
	}
	sc.markSeen(sig.ID)
	return true
}

func (sc *symbolChart) markSeen(id string) {
	if _, ok := sc.seen[id]; ok {
		return
	}
	sc.seen[id] = struct{}{}
	sc.seenOrder = append(sc.seenOrder, id)
	if len(sc.seenOrder) > seenLimit {
		delete(sc.seen, sc.seenOrder[0])
		sc.seenOrder = sc.seenOrder[1:]
	}
}

func (s *Service) publishSnapshot(ctx context.Context, symbol string, snap *chart.Snapshot) {
	data := snap.JSON()
	if p := s.deps.Publisher; p != nil {
		start := time.Now()
		err := p.PublishSnapshot(ctx, symbol, data)
		if s.deps.Metrics != nil {
			s.deps.Metrics.RedisWriteDur.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			s.countPublishError("redis")
			slog.Warn("snapshot publish failed",
				append(logger.LogWithTrace(ctx), "symbol", symbol, "error", err)...)
		}
	}
	if s.deps.OnSnapshot != nil {
		s.deps.OnSnapshot(symbol, data)
	}
}

func (s *Service) emitSignal(ctx context.Context, sig model.Signal) {
	slog.Info("crossover signal",
		append(logger.LogWithTrace(ctx),
			"symbol", sig.Symbol,
			"signal_id", sig.ID,
			"direction", string(sig.Direction),
			"price", sig.Price,
		)...)

	if m := s.deps.Metrics; m != nil {
		m.SignalsTotal.WithLabelValues(sig.Symbol, string(sig.Direction)).Inc()
	}
	if p := s.deps.Publisher; p != nil {
		if err := p.PublishSignal(ctx, sig); err != nil {
			s.countPublishError("redis")
			slog.Warn("signal publish failed",
				append(logger.LogWithTrace(ctx), "signal_id", sig.ID, "error", err)...)
		}
	}
	if s.deps.OnSignal != nil {
		s.deps.OnSignal(sig)
	}
	if n := s.deps.Notifier; n != nil {
		alert := notification.SignalAlert(sig)
		timeout := s.opts.NotifyTimeout
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := n.Send(nctx, alert); err != nil {
				log.Printf("[chartsvc] notify %s: %v", sig.ID, err)
			}
		}()
	}
}

func (s *Service) countDuplicate() {
	if s.deps.Metrics != nil {
		s.deps.Metrics.DuplicateSignals.Inc()
	}
}

func (s *Service) countPublishError(sink string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.PublishErrors.WithLabelValues(sink).Inc()
	}
}

// Snapshot returns the latest snapshot for symbol, deriving one when no
// update has been handled yet.
func (s *Service) Snapshot(symbol string) (chart.Snapshot, error) {
	sc, err := s.chart(symbol)
	if err != nil {
		return chart.Snapshot{}, err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.last != nil {
		return *sc.last, nil
	}
	return sc.eng.Snapshot(), nil
}

// refresh re-derives and publishes the snapshot after a threshold change.
// Caller holds sc.mu.
func (s *Service) refresh(ctx context.Context, symbol string, sc *symbolChart) chart.Snapshot {
	snap := sc.eng.Snapshot()
	snap.Forming = sc.forming
	snap.ComputedAt = time.Now().UnixMilli()
	sc.last = &snap
	s.publishSnapshot(ctx, symbol, &snap)
	return snap
}
