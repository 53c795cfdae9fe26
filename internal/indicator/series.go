package indicator

import "chartengine/internal/model"

// Compute returns the moving-average series of bars' closes for the given
// period and type. The series starts at index period-1, so it is
// len(bars)-period+1 points long, or empty when there is not enough history.
//
// Each point is computed exactly as Last would compute it over bars[:i+1],
// so a series and the crossover detector always agree on ties.
func Compute(bars []model.Bar, period int, typ model.MAType) []model.MAPoint {
	if period < 1 || len(bars) < period {
		return []model.MAPoint{}
	}

	out := make([]model.MAPoint, 0, len(bars)-period+1)
	if typ != model.EMA {
		for i := period - 1; i < len(bars); i++ {
			out = append(out, model.MAPoint{Time: bars[i].Time, Value: windowMean(bars[i-period+1 : i+1])})
		}
		return out
	}

	ind := NewEMA(period)
	for _, b := range bars {
		ind.Update(b)
		if ind.Ready() {
			out = append(out, model.MAPoint{Time: b.Time, Value: ind.Value()})
		}
	}
	return out
}

// Last returns the final value of Compute without building the series.
func Last(bars []model.Bar, period int, typ model.MAType) (float64, bool) {
	if period < 1 || len(bars) < period {
		return 0, false
	}
	if typ != model.EMA {
		return windowMean(bars[len(bars)-period:]), true
	}
	ind := NewEMA(period)
	for _, b := range bars {
		ind.Update(b)
	}
	return ind.Value(), true
}

// windowMean sums in a fixed order, so equal windows give equal means.
func windowMean(bars []model.Bar) float64 {
	sum := 0.0
	for _, b := range bars {
		sum += b.Close
	}
	return sum / float64(len(bars))
}
