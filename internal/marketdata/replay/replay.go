// Package replay re-emits stored bars at a configurable speed for
// backtesting and demo playback.
package replay

import (
	"context"
	"log"
	"sort"
	"time"

	"chartengine/internal/model"
)

// maxGap caps the sleep between two replayed bars.
const maxGap = 5 * time.Second

// Replayer reads historical bars and replays them in time order.
type Replayer struct {
	reader model.BarReader
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Replayer backed by any bar reader (SQLite in production).
func New(reader model.BarReader) *Replayer {
	return &Replayer{reader: reader, sleep: sleepCtx}
}

// Run replays every bar after fromMs for the given symbols into outCh as
// closed updates. speed controls playback: 1.0 is real time, 10.0 is 10x,
// 0 is as fast as possible. Returns the number of bars emitted.
func (r *Replayer) Run(ctx context.Context, symbols []string, fromMs int64, speed float64, outCh chan<- model.BarUpdate) (int, error) {
	var all []model.BarUpdate
	for _, sym := range symbols {
		bars, err := r.reader.ReadBars(ctx, sym, fromMs, 0)
		if err != nil {
			return 0, err
		}
		for _, b := range bars {
			all = append(all, model.BarUpdate{Symbol: sym, Bar: b})
		}
	}

	if len(all) == 0 {
		log.Println("[replay] no bars found")
		return 0, nil
	}

	// Symbols interleave by time
	sort.SliceStable(all, func(i, j int) bool { return all[i].Bar.Time < all[j].Bar.Time })

	log.Printf("[replay] loaded %d bars across %d symbols, speed=%.1fx", len(all), len(symbols), speed)

	var prev int64
	emitted := 0
	for i, u := range all {
		if speed > 0 && i > 0 {
			gap := time.Duration(float64(time.Duration(u.Bar.Time-prev)*time.Millisecond) / speed)
			if gap > maxGap {
				gap = maxGap
			}
			if gap > 0 {
				if err := r.sleep(ctx, gap); err != nil {
					log.Printf("[replay] cancelled after %d bars", emitted)
					return emitted, err
				}
			}
		}
		prev = u.Bar.Time

		select {
		case <-ctx.Done():
			log.Printf("[replay] cancelled after %d bars", emitted)
			return emitted, ctx.Err()
		case outCh <- u:
			emitted++
		}
	}

	log.Printf("[replay] completed: %d bars replayed", emitted)
	return emitted, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
