package gateway

import (
	"context"
	"log"

	goredis "github.com/go-redis/redis/v8"

	redisstore "chartengine/internal/store/redis"
)

// PatternSubscriber opens a Redis pattern subscription.
type PatternSubscriber interface {
	PSubscribe(ctx context.Context, pattern string) *goredis.PubSub
}

// PubSubRouter subscribes to the snapshot and signal channels and routes
// messages to the hub for fan-out to WebSocket clients.
type PubSubRouter struct {
	hub *Hub
	sub PatternSubscriber
}

// NewPubSubRouter creates a PubSubRouter.
func NewPubSubRouter(hub *Hub, sub PatternSubscriber) *PubSubRouter {
	return &PubSubRouter{hub: hub, sub: sub}
}

// Run subscribes to pub:chart:* and pub:signal:*. Blocks until ctx is cancelled.
func (r *PubSubRouter) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		r.run(ctx, redisstore.SignalChannelPattern)
		close(done)
	}()
	r.run(ctx, redisstore.ChartChannelPattern)
	<-done
}

func (r *PubSubRouter) run(ctx context.Context, pattern string) {
	pubsub := r.sub.PSubscribe(ctx, pattern)
	if pubsub == nil {
		log.Printf("[gateway] WARNING: could not subscribe to %s", pattern)
		return
	}
	defer pubsub.Close()

	log.Printf("[gateway] subscribed to %s", pattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.hub.Broadcast(msg.Channel, []byte(msg.Payload))
		}
	}
}
