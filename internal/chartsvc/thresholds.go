package chartsvc

import (
	"context"
	"fmt"
	"log"
	"strings"

	"chartengine/internal/chart"
	"chartengine/internal/model"
)

// AddThreshold registers a price level on symbol's chart, persists it and
// publishes the refreshed snapshot.
func (s *Service) AddThreshold(ctx context.Context, symbol string, price float64, label string) (model.Threshold, chart.Snapshot, error) {
	sc, err := s.chart(symbol)
	if err != nil {
		return model.Threshold{}, chart.Snapshot{}, err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	th := model.Threshold{ID: sc.eng.AddThreshold(price, label), Label: label, Price: price}
	if st := s.deps.Thresholds; st != nil {
		if err := st.SaveThreshold(ctx, symbol, th); err != nil {
			sc.eng.RemoveThreshold(th.ID)
			return model.Threshold{}, chart.Snapshot{}, fmt.Errorf("save threshold: %w", err)
		}
	}
	return th, s.refresh(ctx, symbol, sc), nil
}

// RemoveThreshold deletes a threshold. Reports false when the ID is unknown.
func (s *Service) RemoveThreshold(ctx context.Context, symbol, id string) (bool, error) {
	sc, err := s.chart(symbol)
	if err != nil {
		return false, err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.eng.RemoveThreshold(id) {
		return false, nil
	}
	if st := s.deps.Thresholds; st != nil && !strings.HasPrefix(id, "cfg-") {
		if err := st.DeleteThreshold(ctx, symbol, id); err != nil {
			return true, fmt.Errorf("delete threshold: %w", err)
		}
	}
	s.refresh(ctx, symbol, sc)
	return true, nil
}

// Thresholds lists the thresholds on symbol's chart.
func (s *Service) Thresholds(symbol string) ([]model.Threshold, error) {
	sc, err := s.chart(symbol)
	if err != nil {
		return nil, err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.eng.Thresholds(), nil
}

// RestoreThresholds loads persisted thresholds for every symbol.
func (s *Service) RestoreThresholds(ctx context.Context, lister model.ThresholdLister) (int, error) {
	restored := 0
	for _, sym := range s.Symbols() {
		ths, err := lister.ListThresholds(ctx, sym)
		if err != nil {
			return restored, fmt.Errorf("list thresholds %s: %w", sym, err)
		}
		sc := s.charts[sym]
		sc.mu.Lock()
		for _, th := range ths {
			sc.eng.PutThreshold(th)
			restored++
		}
		sc.mu.Unlock()
	}
	if restored > 0 {
		log.Printf("[chartsvc] restored %d thresholds", restored)
	}
	return restored, nil
}
