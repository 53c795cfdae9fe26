// cmd/chartd runs the live chart service: ticks (or bars from Redis) are
// aggregated, charted per symbol and pushed to WebSocket clients, Redis and
// SQLite.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"chartengine/config"
	"chartengine/internal/chartsvc"
	"chartengine/internal/gateway"
	"chartengine/internal/logger"
	"chartengine/internal/marketdata/agg"
	"chartengine/internal/marketdata/bus"
	"chartengine/internal/marketdata/session"
	"chartengine/internal/marketdata/wsfeed"
	"chartengine/internal/metrics"
	"chartengine/internal/model"
	"chartengine/internal/notification"
	redisstore "chartengine/internal/store/redis"
	sqlitestore "chartengine/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[chartd] starting...")
	start := time.Now()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[chartd] config: %v", err)
	}
	logger.Init("chartd", logger.ParseLevel(cfg.LogLevel))

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus()
	health.SetSymbols(cfg.Symbols)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite (bars, signal ledger, thresholds) ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{
		DBPath: cfg.SQLitePath,
		OnCommit: func(d time.Duration) {
			prom.SQLiteCommitDur.Observe(d.Seconds())
		},
	})
	if err != nil {
		log.Fatalf("[chartd] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	health.SetSQLiteOK(true)

	sqlReader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[chartd] sqlite reader init failed: %v", err)
	}
	defer sqlReader.Close()

	// ---- Redis (optional unless it is the feed) ----
	redisWriter, err := redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		if cfg.FeedSource == "redis" {
			log.Fatalf("[chartd] redis init failed: %v", err)
		}
		log.Printf("[chartd] WARNING: redis init failed: %v (continuing without redis)", err)
		redisWriter = nil
	}
	health.SetRedisConnected(redisWriter != nil)

	var publisher model.SnapshotPublisher
	if redisWriter != nil {
		defer redisWriter.Close()
		breaker := redisstore.NewCircuitBreaker(5, 10*time.Second)
		breaker.OnStateChange = func(from, to redisstore.State) {
			log.Printf("[chartd] redis circuit %s -> %s", from, to)
		}
		buffered := redisstore.NewBufferedPublisher(redisWriter, breaker, 1000)
		buffered.OnFlush = func(n int) {
			log.Printf("[chartd] redis recovered, replayed %d publishes", n)
		}
		publisher = buffered
		health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	}

	// ---- Gateway hub ----
	hub := gateway.NewHub(gateway.HubConfig{ReplaySize: cfg.ReplaySize})
	hub.OnClientCount = func(n int) { prom.WSClients.Set(float64(n)) }
	hub.Broadcaster.OnLatency = func(ms float64) { prom.E2ELatency.Observe(ms / 1000) }

	// ---- Chart service ----
	notifier := notification.Throttle(
		notification.Select(cfg.TelegramToken, cfg.TelegramChatID, cfg.WebhookURL),
		3*time.Second, 10)
	deps := chartsvc.Deps{
		Publisher:  publisher,
		Ledger:     sqlWriter,
		Thresholds: sqlWriter,
		Notifier:   notifier,
		Metrics:    prom,
	}
	if publisher == nil {
		// Without Redis the hub is fed in-process
		deps.OnSnapshot = func(symbol string, data []byte) {
			hub.Broadcast(redisstore.ChartChannel(symbol), data)
		}
		deps.OnSignal = func(sig model.Signal) {
			data, _ := json.Marshal(sig)
			hub.Broadcast(redisstore.SignalChannel(sig.Symbol), data)
		}
	}
	svc, err := chartsvc.New(chartsvc.Options{
		Symbols:        cfg.Symbols,
		ChartConfig:    cfg.ChartConfig,
		Thresholds:     cfg.ThresholdList(),
		ConfirmOnClose: cfg.ConfirmOnClose,
	}, deps)
	if err != nil {
		log.Fatalf("[chartd] chart service: %v", err)
	}

	if n, err := svc.RestoreThresholds(ctx, sqlReader); err != nil {
		log.Printf("[chartd] WARNING: threshold restore failed: %v", err)
	} else if n > 0 {
		log.Printf("[chartd] restored %d thresholds", n)
	}
	if cfg.WarmBars > 0 {
		n, err := svc.Warm(ctx, sqlReader, cfg.WarmBars)
		if err != nil {
			log.Printf("[chartd] WARNING: warm-up failed: %v", err)
		}
		log.Printf("[chartd] warmed %d bars across %d symbols", n, len(cfg.Symbols))
	}

	// ---- Pipeline: feed -> bars -> fan-out ----
	barCh := make(chan model.BarUpdate, 5000)
	fanout := bus.New(5000)
	fanout.OnDrop = func(name string, u model.BarUpdate) {
		prom.FanoutDropsTotal.WithLabelValues(name).Inc()
	}
	chartIn := fanout.Subscribe("chart")

	switch cfg.FeedSource {
	case "redis":
		startRedisFeed(ctx, cfg, barCh, health)
	default:
		sqliteIn := fanout.Subscribe("sqlite")
		go sqlWriter.Run(ctx, sqliteIn)
		if redisWriter != nil {
			// Mirror bars so other consumers can run with FEED_SOURCE=redis
			go redisWriter.Run(ctx, fanout.Subscribe("redis"))
		}
		startTickFeed(ctx, cfg, barCh, prom, health)
	}

	go fanout.Run(ctx, barCh)
	go svc.Run(ctx, chartIn)

	if publisher != nil {
		reader, err := redisstore.NewReader(redisstore.ReaderConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatalf("[chartd] redis reader init failed: %v", err)
		}
		defer reader.Close()
		go gateway.NewPubSubRouter(hub, reader).Run(ctx)
	}
	go hub.StartStatsBroadcast(ctx, start, 5*time.Second)

	// Channel saturation report
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range fanout.ChannelStats() {
					if s.Cap > 0 && s.Len*2 > s.Cap {
						slog.Warn("fan-out channel filling up", "subscriber", s.Name, "len", s.Len, "cap", s.Cap)
					}
				}
			}
		}
	}()

	// ---- HTTP ----
	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, svc, gateway.RouteOptions{
		AdminSecret: cfg.AdminTOTPSecret,
		Signals:     sqlReader,
		Start:       start,
		RateLimit:   cfg.APIRateLimit,
		RateBurst:   cfg.APIRateBurst,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		log.Printf("[chartd] http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[chartd] http server: %v", err)
		}
	}()

	log.Printf("[chartd] ready: symbols=%v feed=%s interval=%ds confirm_on_close=%v",
		cfg.Symbols, cfg.FeedSource, cfg.BarIntervalSec, cfg.ConfirmOnClose)

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[chartd] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	// Give the SQLite batcher a moment to flush
	time.Sleep(300 * time.Millisecond)
	log.Println("[chartd] shutdown complete.")
}

// startTickFeed connects the WS tick feed and the bar aggregator.
func startTickFeed(ctx context.Context, cfg *config.Config, barCh chan<- model.BarUpdate, prom *metrics.Metrics, health *metrics.HealthStatus) {
	tickCh := make(chan model.Tick, 10000)

	aggregator := agg.New(time.Duration(cfg.BarIntervalSec) * time.Second)
	aggregator.OnDroppedTick = func() { prom.DroppedTicks.Inc() }
	go aggregator.Run(ctx, tickCh, barCh)

	feed, err := wsfeed.New(wsfeed.Config{URL: cfg.FeedURL})
	if err != nil {
		log.Fatalf("[chartd] feed init failed: %v", err)
	}
	feed.OnConnect = func() { health.SetFeedConnected(true) }
	feed.OnDisconnect = func(error) {
		health.SetFeedConnected(false)
		prom.WSReconnects.Inc()
	}
	feed.OnTick = func(t model.Tick) {
		prom.TicksTotal.Inc()
		health.SetLastTickTime(t.TickTS)
	}
	feed.OnDrop = func() { prom.DroppedTicks.Inc() }

	if !cfg.SessionOnly {
		go func() {
			if err := feed.Start(ctx, tickCh); err != nil {
				log.Printf("[chartd] feed error: %v", err)
			}
		}()
		return
	}

	sess, err := session.New(cfg.Session)
	if err != nil {
		log.Fatalf("[chartd] session: %v", err)
	}
	go runInSession(ctx, sess, func(sessCtx context.Context) {
		if err := feed.Start(sessCtx, tickCh); err != nil {
			log.Printf("[chartd] feed error: %v", err)
		}
	})
}

// runInSession calls run once per session with a context that ends at the
// session close, sleeping while the market is shut.
func runInSession(ctx context.Context, sess *session.Session, run func(context.Context)) {
	for {
		now := time.Now()
		if !sess.IsOpen(now) {
			next := sess.NextOpen(now)
			log.Printf("[chartd] %s", sess.Status(now))
			select {
			case <-ctx.Done():
				return
			case <-time.After(next.Sub(now)):
			}
		}

		closeAt := sess.CloseOn(time.Now())
		sessCtx, sessCancel := context.WithDeadline(ctx, closeAt)
		log.Printf("[chartd] session open, feed runs until %s", closeAt.Format("15:04:05 MST"))
		run(sessCtx)
		sessCancel()

		if ctx.Err() != nil {
			return
		}
	}
}

// startRedisFeed consumes bars another chartd mirrored into Redis streams.
func startRedisFeed(ctx context.Context, cfg *config.Config, barCh chan<- model.BarUpdate, health *metrics.HealthStatus) {
	host, _ := os.Hostname()
	reader, err := redisstore.NewReader(redisstore.ReaderConfig{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		ConsumerName: host,
	})
	if err != nil {
		log.Fatalf("[chartd] redis feed init failed: %v", err)
	}
	if err := reader.EnsureConsumerGroup(ctx, cfg.Symbols); err != nil {
		log.Fatalf("[chartd] redis consumer group: %v", err)
	}
	health.SetFeedConnected(true)

	go func() {
		defer reader.Close()
		if err := reader.RecoverPending(ctx, cfg.Symbols, barCh); err != nil {
			log.Printf("[chartd] pending recovery: %v", err)
		}
		go reader.SubscribeForming(ctx, barCh)
		if err := reader.ConsumeBars(ctx, cfg.Symbols, barCh); err != nil && ctx.Err() == nil {
			log.Printf("[chartd] redis feed stopped: %v", err)
			health.SetFeedConnected(false)
		}
	}()
}
