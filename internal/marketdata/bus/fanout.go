// Package bus fans one bar-update stream out to several consumers.
package bus

import (
	"context"
	"log"
	"sync"

	"chartengine/internal/model"
)

type subscriber struct {
	name string
	ch   chan model.BarUpdate
}

// FanOut broadcasts bar updates from a single input channel to N named
// subscribers. If a subscriber is full the update is dropped for that
// consumer only, so a slow sink never stalls the chart pipeline.
type FanOut struct {
	mu      sync.RWMutex
	outputs []subscriber
	bufSize int

	// OnDrop is called when an update is dropped for a subscriber.
	OnDrop func(name string, u model.BarUpdate)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
	}
}

// Subscribe registers a named consumer and returns its channel.
// Subscribe must be called before Run starts.
func (f *FanOut) Subscribe(name string) <-chan model.BarUpdate {
	ch := make(chan model.BarUpdate, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, subscriber{name: name, ch: ch})
	f.mu.Unlock()
	return ch
}

// Run reads from input and fans out to all subscribers. Output channels are
// closed when Run returns (ctx cancelled or input closed).
func (f *FanOut) Run(ctx context.Context, input <-chan model.BarUpdate) {
	defer func() {
		f.mu.RLock()
		for _, s := range f.outputs {
			close(s.ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for _, s := range f.outputs {
				select {
				case s.ch <- u:
				default:
					if f.OnDrop != nil {
						f.OnDrop(s.name, u)
					} else if !u.Forming {
						log.Printf("[bus] %s full, dropping closed bar %s ts=%d", s.name, u.Symbol, u.Bar.Time)
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}

// ChannelStat is the fill level of one subscriber channel.
type ChannelStat struct {
	Name string
	Len  int
	Cap  int
}

// ChannelStats returns the fill level of each subscriber, in subscription order.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, s := range f.outputs {
		stats[i] = ChannelStat{Name: s.name, Len: len(s.ch), Cap: cap(s.ch)}
	}
	return stats
}
