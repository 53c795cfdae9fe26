package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"chartengine/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// ReaderConfig configures the Redis reader.
type ReaderConfig struct {
	Addr          string
	Password      string
	DB            int
	ConsumerGroup string // consumer group name, default "chartd"
	ConsumerName  string // unique consumer name, e.g. hostname
}

// Reader consumes bar streams via consumer groups and opens pattern
// subscriptions for the gateway.
type Reader struct {
	client        *goredis.Client
	consumerGroup string
	consumerName  string
}

// NewReader creates a new Redis Reader and pings the server.
func NewReader(cfg ReaderConfig) (*Reader, error) {
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

	group := cfg.ConsumerGroup
	if group == "" {
		group = "chartd"
	}
	consumer := cfg.ConsumerName
	if consumer == "" {
		consumer = "worker-1"
	}

	log.Printf("[redis-reader] connected to %s (group=%s, consumer=%s)", cfg.Addr, group, consumer)
	return &Reader{
		client:        client,
		consumerGroup: group,
		consumerName:  consumer,
	}, nil
}

// Client returns the underlying Redis client.
func (r *Reader) Client() *goredis.Client { return r.client }

// EnsureConsumerGroup creates the consumer group on each symbol's bar stream
// if it doesn't exist. Fresh groups start at "$" (new messages only).
func (r *Reader) EnsureConsumerGroup(ctx context.Context, symbols []string) error {
	for _, sym := range symbols {
		stream := BarStream(sym)
		err := r.client.XGroupCreateMkStream(ctx, stream, r.consumerGroup, "$").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("xgroup create %s: %w", stream, err)
		}
	}
	return nil
}

// ConsumeBars reads closed bars from the symbols' bar streams and sends
// them to out, acknowledging each after hand-off. Returns when ctx is cancelled.
func (r *Reader) ConsumeBars(ctx context.Context, symbols []string, out chan<- model.BarUpdate) error {
	args := make([]string, len(symbols)*2)
	for i, s := range symbols {
		args[i] = BarStream(s)
		args[len(symbols)+i] = ">"
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		results, err := r.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    r.consumerGroup,
			Consumer: r.consumerName,
			Streams:  args,
			Count:    100,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if err == goredis.Nil || ctx.Err() != nil {
				continue
			}
			log.Printf("[redis-reader] xreadgroup error: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range results {
			if err := r.deliver(ctx, stream.Stream, stream.Messages, out); err != nil {
				return err
			}
		}
	}
}

// RecoverPending re-delivers messages left unacknowledged by a previous run.
func (r *Reader) RecoverPending(ctx context.Context, symbols []string, out chan<- model.BarUpdate) error {
	for _, sym := range symbols {
		stream := BarStream(sym)
		for {
			pending, err := r.client.XPendingExt(ctx, &goredis.XPendingExtArgs{
				Stream: stream,
				Group:  r.consumerGroup,
				Start:  "-",
				End:    "+",
				Count:  100,
			}).Result()
			if err != nil || len(pending) == 0 {
				break
			}

			ids := make([]string, len(pending))
			for i, p := range pending {
				ids[i] = p.ID
			}
			claimed, err := r.client.XClaim(ctx, &goredis.XClaimArgs{
				Stream:   stream,
				Group:    r.consumerGroup,
				Consumer: r.consumerName,
				Messages: ids,
			}).Result()
			if err != nil {
				log.Printf("[redis-reader] xclaim error on %s: %v", stream, err)
				break
			}
			if err := r.deliver(ctx, stream, claimed, out); err != nil {
				return err
			}
			if len(claimed) < len(ids) {
				break
			}
		}
	}
	return nil
}

func (r *Reader) deliver(ctx context.Context, stream string, msgs []goredis.XMessage, out chan<- model.BarUpdate) error {
	for _, msg := range msgs {
		u, ok := decodeBar(msg)
		if !ok {
			// ACK bad messages so they don't poison the group
			r.client.XAck(ctx, stream, r.consumerGroup, msg.ID)
			continue
		}
		select {
		case out <- u:
		case <-ctx.Done():
			return ctx.Err()
		}
		r.client.XAck(ctx, stream, r.consumerGroup, msg.ID)
	}
	return nil
}

func decodeBar(msg goredis.XMessage) (model.BarUpdate, bool) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return model.BarUpdate{}, false
	}
	var u model.BarUpdate
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		log.Printf("[redis-reader] unmarshal bar %s: %v", msg.ID, err)
		return model.BarUpdate{}, false
	}
	return u, true
}

// SubscribeForming forwards forming bars published on pub:bar:* to out.
// Closed bars arrive through ConsumeBars. Slow receivers drop updates.
func (r *Reader) SubscribeForming(ctx context.Context, out chan<- model.BarUpdate) error {
	pubsub := r.client.PSubscribe(ctx, BarChannelPattern)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var u model.BarUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil || !u.Forming {
				continue
			}
			select {
			case out <- u:
			default:
			}
		}
	}
}

// PSubscribe subscribes to a channel pattern and waits for confirmation.
// Returns nil if the subscription failed.
func (r *Reader) PSubscribe(ctx context.Context, pattern string) *goredis.PubSub {
	pubsub := r.client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Printf("[redis-reader] psubscribe to %s failed: %v", pattern, err)
		pubsub.Close()
		return nil
	}
	return pubsub
}

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}
