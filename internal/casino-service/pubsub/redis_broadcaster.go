package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/vrf-casino-platform-poc/internal/casino-service/ws"
)

// RedisBroadcaster publica transições de round no canal Pub/Sub consumido
// pelo hub WebSocket. Best-effort: o fluxo de negócio não depende disso.
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{r: r, channel: channel}
}

func (b *RedisBroadcaster) BroadcastRound(ctx context.Context, upd ws.RoundUpdate) error {
	payload, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, payload).Err()
}
