package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nikolayk812/grocery-cart/internal/port"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisStore struct {
	client    *redis.Client
	namespace string
	logger    *zap.Logger
}

// redisChange is the pub/sub payload; namespace is implied by the channel.
type redisChange struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

func NewRedis(client *redis.Client, namespace string, logger *zap.Logger) (port.DocumentStore, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &redisStore{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.docKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("client.Get: %w", err)
	}

	return data, true, nil
}

func (s *redisStore) Put(ctx context.Context, key string, value []byte, origin string) error {
	if key == "" {
		return errEmptyKey
	}

	payload, err := json.Marshal(redisChange{Key: key, Origin: origin})
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(key), value, 0)
		pipe.Publish(ctx, s.channel(), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("client.TxPipelined: %w", err)
	}

	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string, origin string) error {
	if key == "" {
		return errEmptyKey
	}

	payload, err := json.Marshal(redisChange{Key: key, Origin: origin})
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(key))
		pipe.Publish(ctx, s.channel(), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("client.TxPipelined: %w", err)
	}

	return nil
}

func (s *redisStore) Subscribe(ctx context.Context) (<-chan port.Change, error) {
	pubsub := s.client.Subscribe(ctx, s.channel())

	// wait for the subscription to be confirmed so no write is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("pubsub.Receive: %w", err)
	}

	out := make(chan port.Change, 64)
	messages := pubsub.Channel()

	go func() {
		defer close(out)
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}

				var change redisChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					s.logger.Warn("malformed change notification",
						zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}

				select {
				case out <- port.Change{Key: change.Key, Origin: change.Origin}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *redisStore) docKey(key string) string {
	return fmt.Sprintf("cart:%s:%s", s.namespace, key)
}

func (s *redisStore) channel() string {
	return fmt.Sprintf("%s:%s", changesChannel, s.namespace)
}
