package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
	"unsafe"

	"chartengine/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	barStreamMaxLen    = 5000
	signalStreamMaxLen = 1000
	defaultLatestTTL   = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer publishes bars, snapshots and signals to Redis.
type Writer struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// Run mirrors bar updates from ch into Redis until ctx is cancelled or ch
// is closed.
func (w *Writer) Run(ctx context.Context, ch <-chan model.BarUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-ch:
			if !ok {
				return
			}
			if err := w.PublishBar(ctx, u); err != nil {
				log.Printf("[redis] bar publish error for %s: %v", u.Symbol, err)
			}
		}
	}
}

// PublishBar publishes a bar update. Closed bars are also appended to the
// symbol's bar stream; forming bars go to pub/sub only.
func (w *Writer) PublishBar(ctx context.Context, u model.BarUpdate) error {
	jsonBytes := u.JSON()
	// Zero-copy []byte→string (jsonBytes is not mutated after this)
	jsonData := *(*string)(unsafe.Pointer(&jsonBytes))

	if u.Forming {
		return w.client.Publish(ctx, BarChannel(u.Symbol), jsonData).Err()
	}

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: BarStream(u.Symbol),
		MaxLen: barStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Publish(ctx, BarChannel(u.Symbol), jsonData)
	_, err := pipe.Exec(ctx)
	return err
}

// PublishSnapshot stores data as the symbol's latest snapshot and publishes it.
func (w *Writer) PublishSnapshot(ctx context.Context, symbol string, data []byte) error {
	jsonData := string(data)

	pipe := w.client.Pipeline()
	pipe.Set(ctx, LatestKey(symbol), jsonData, defaultLatestTTL)
	pipe.Publish(ctx, ChartChannel(symbol), jsonData)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis snapshot pipeline %s: %w", symbol, err)
	}
	return nil
}

// PublishSignal appends sig to the signal stream and publishes it.
func (w *Writer) PublishSignal(ctx context.Context, sig model.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	jsonData := string(data)

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: SignalStream(sig.Symbol),
		MaxLen: signalStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"id": sig.ID, "data": jsonData},
	})
	pipe.Publish(ctx, SignalChannel(sig.Symbol), jsonData)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis signal pipeline %s: %w", sig.ID, err)
	}
	return nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
