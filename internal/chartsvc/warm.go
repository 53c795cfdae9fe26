package chartsvc

import (
	"context"
	"fmt"
	"log"

	"chartengine/internal/model"
)

// Warm loads up to limit recent bars per symbol so the charts and moving
// averages are populated before the live feed starts. A crossing on the
// last stored bar is marked as already emitted. Returns the bars loaded.
func (s *Service) Warm(ctx context.Context, reader model.BarReader, limit int) (int, error) {
	total := 0
	for _, sym := range s.Symbols() {
		bars, err := reader.ReadBars(ctx, sym, 0, limit)
		if err != nil {
			return total, fmt.Errorf("warm %s: %w", sym, err)
		}
		if len(bars) == 0 {
			continue
		}

		sc := s.charts[sym]
		sc.mu.Lock()
		snap := sc.eng.SetBars(bars)
		if snap.Signal != nil {
			sc.markSeen(snap.Signal.ID)
			snap.Signal = nil
		}
		sc.evicted = sc.eng.Evicted()
		sc.forming = false
		sc.last = &snap
		sc.mu.Unlock()

		total += len(bars)
		log.Printf("[chartsvc] warmed %s with %d bars", sym, len(bars))
	}
	return total, nil
}
