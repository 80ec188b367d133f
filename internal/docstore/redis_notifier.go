package docstore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "docstore:"

// RedisNotifier fans change signals out to every API instance sharing the
// same SQL database.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func redisChannel(collection string) string {
	return redisChannelPrefix + collection
}

func (n *RedisNotifier) Publish(ctx context.Context, collection string) error {
	return n.client.Publish(ctx, redisChannel(collection), "changed").Err()
}

func (n *RedisNotifier) Listen(ctx context.Context, collection string) (<-chan struct{}, error) {
	ps := n.client.Subscribe(ctx, redisChannel(collection))
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	msgs := ps.Channel()
	go func() {
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
