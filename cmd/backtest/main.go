// cmd/backtest replays stored bars from SQLite through the chart service to
// check moving-average and crossover settings without a live feed.
//
// Usage:
//
//	go run ./cmd/backtest --symbols=NIFTY --speed=0 --from=0
//	go run ./cmd/backtest --import=nifty.csv --symbols=NIFTY
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chartengine/config"
	"chartengine/internal/chart"
	"chartengine/internal/chartsvc"
	"chartengine/internal/indicator"
	"chartengine/internal/marketdata/replay"
	"chartengine/internal/model"
	"chartengine/internal/portfolio"
	sqlitestore "chartengine/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	symbolsStr := flag.String("symbols", "NIFTY", "Comma-separated symbols to replay")
	fromMs := flag.Int64("from", 0, "Unix ms to start replay from (0=all)")
	dbPath := flag.String("db", "data/chart.db", "Path to SQLite database")
	cfgPath := flag.String("config", "", "Optional YAML chart config")
	importPath := flag.String("import", "", "CSV of time,open,high,low,close[,volume] to load for the first symbol before replaying")
	qty := flag.Float64("qty", 1, "Paper trade size per signal")
	slippage := flag.Float64("slippage", 0, "Paper fill slippage in basis points")
	flag.Parse()

	symbols := config.ParseSymbols(*symbolsStr)
	if len(symbols) == 0 {
		log.Fatal("[backtest] no symbols specified")
	}

	chartCfg := chart.DefaultConfig()
	if *cfgPath != "" {
		f, err := config.LoadFile(*cfgPath)
		if err != nil {
			log.Fatalf("[backtest] %v", err)
		}
		chartCfg = f.Chart
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if *importPath != "" {
		if err := importCSV(ctx, *dbPath, symbols[0], *importPath); err != nil {
			log.Fatalf("[backtest] import failed: %v", err)
		}
	}

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer reader.Close()

	paper := portfolio.NewPaper(*qty, *slippage)
	var signals []model.Signal
	svc, err := chartsvc.New(chartsvc.Options{
		Symbols: symbols,
		ChartConfig: func(symbol string) chart.Config {
			cc := chartCfg
			cc.Symbol = symbol
			return cc
		},
	}, chartsvc.Deps{
		OnSignal: func(sig model.Signal) {
			signals = append(signals, sig)
			paper.OnSignal(sig)
			fmt.Printf("  [%s] %-6s %-5s price=%.2f fast=%.2f slow=%.2f %s\n",
				model.Bar{Time: sig.Timestamp}.TS().Format("2006-01-02 15:04"),
				sig.Symbol, sig.Direction, sig.Price, sig.FastMA, sig.SlowMA, sig.Reason)
		},
	})
	if err != nil {
		log.Fatalf("[backtest] chart service init failed: %v", err)
	}

	barCh := make(chan model.BarUpdate, 10000)
	replayer := replay.New(reader)

	var replayed int
	go func() {
		n, err := replayer.Run(ctx, symbols, *fromMs, *speed, barCh)
		if err != nil {
			log.Printf("[backtest] replay error: %v", err)
		}
		replayed = n
		close(barCh)
	}()

	// Full-history averages, unbounded by the chart window
	trend := make(map[string][2]indicator.Indicator, len(symbols))
	for _, sym := range symbols {
		trend[sym] = [2]indicator.Indicator{
			indicator.New(chartCfg.FastMA.Type, chartCfg.FastMA.Period),
			indicator.New(chartCfg.SlowMA.Type, chartCfg.SlowMA.Period),
		}
	}

	// Handle inline so the summary sees every signal
	for u := range barCh {
		if _, err := svc.Handle(ctx, u); err != nil {
			log.Printf("[backtest] %s: %v", u.Symbol, err)
			continue
		}
		paper.UpdatePrice(u.Symbol, u.Bar)
		for _, ind := range trend[u.Symbol] {
			ind.Update(u.Bar)
		}
	}

	longs, shorts := 0, 0
	for _, s := range signals {
		if s.Direction == model.Long {
			longs++
		} else {
			shorts++
		}
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Bars replayed:     %-16d ║\n", replayed)
	fmt.Printf("║  Signals:           %-16d ║\n", len(signals))
	fmt.Printf("║    LONG / SHORT:    %-16s ║\n", fmt.Sprintf("%d / %d", longs, shorts))
	fmt.Printf("║  Fast / slow MA:    %-16s ║\n", maLabel(chartCfg))
	pnl := paper.Summary()
	fmt.Printf("║  Round trips:       %-16d ║\n", pnl.TotalTrades)
	fmt.Printf("║  Win rate:          %-16s ║\n", fmt.Sprintf("%.1f%%", pnl.WinRate*100))
	fmt.Printf("║  Realized P&L:      %-16.2f ║\n", pnl.RealizedPnL)
	fmt.Printf("║  Open P&L:          %-16.2f ║\n", pnl.UnrealizedPnL)
	fmt.Printf("║  Max drawdown:      %-16.2f ║\n", pnl.MaxDrawdown)
	fmt.Println("╚══════════════════════════════════════╝")

	for _, sym := range symbols {
		fast, slow := trend[sym][0], trend[sym][1]
		if !slow.Ready() {
			continue
		}
		bias := "flat"
		if fast.Value() > slow.Value() {
			bias = "up"
		} else if fast.Value() < slow.Value() {
			bias = "down"
		}
		fmt.Printf("  %-10s fast=%.2f slow=%.2f trend=%s\n", sym, fast.Value(), slow.Value(), bias)
	}
}

func maLabel(cfg chart.Config) string {
	return fmt.Sprintf("%s%d / %s%d", cfg.FastMA.Type, cfg.FastMA.Period, cfg.SlowMA.Type, cfg.SlowMA.Period)
}

func importCSV(ctx context.Context, dbPath, symbol, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bars, err := parseBarsCSV(f)
	if err != nil {
		return err
	}

	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: dbPath})
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.SaveBars(ctx, symbol, bars); err != nil {
		return err
	}
	last, err := w.LastBarTime(symbol)
	if err != nil {
		return err
	}
	log.Printf("[backtest] imported %d bars for %s, latest %s", len(bars), symbol,
		model.Bar{Time: last}.TS().Format("2006-01-02 15:04"))
	return nil
}
