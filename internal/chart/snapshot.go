package chart

import (
	"encoding/json"

	"chartengine/internal/model"
	"chartengine/internal/scale"
)

// Level is a threshold with its pixel y under the snapshot's mapper.
type Level struct {
	model.Threshold
	Y float64 `json:"y"`
}

// Snapshot is everything a renderer needs for one frame. At most one new
// signal is attached; the engine keeps no signal history.
type Snapshot struct {
	Symbol     string          `json:"symbol"`
	State      State           `json:"state"`
	Scale      model.Scale     `json:"scale"`
	Mapper     *scale.Mapper   `json:"-"`
	Bars       int             `json:"bars"`
	Forming    bool            `json:"forming"`
	FastMA     []model.MAPoint `json:"fast_ma"`
	SlowMA     []model.MAPoint `json:"slow_ma"`
	PricePath  string          `json:"price_path"`
	AreaPath   string          `json:"area_path"`
	FastMAPath string          `json:"fast_ma_path"`
	SlowMAPath string          `json:"slow_ma_path"`
	Levels     []Level         `json:"thresholds"`
	Signal     *model.Signal   `json:"signal,omitempty"`
	ComputedAt int64           `json:"computed_at,omitempty"`
}

// JSON encodes the snapshot for publishing.
func (s Snapshot) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
