package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/grocery-cart/internal/db"
	"github.com/nikolayk812/grocery-cart/internal/port"
	"go.uber.org/zap"
)

type postgresStore struct {
	q         *db.Queries
	pool      *pgxpool.Pool
	namespace string
	logger    *zap.Logger
}

type postgresChange struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Origin    string `json:"origin"`
}

func NewPostgres(pool *pgxpool.Pool, namespace string, logger *zap.Logger) (port.DocumentStore, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &postgresStore{
		q:         db.New(pool),
		pool:      pool,
		namespace: namespace,
		logger:    logger,
	}, nil
}

func (s *postgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.q.GetDocument(ctx, s.namespace, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("q.GetDocument: %w", err)
	}

	return []byte(value), true, nil
}

func (s *postgresStore) Put(ctx context.Context, key string, value []byte, origin string) error {
	if key == "" {
		return errEmptyKey
	}

	payload, err := s.changePayload(key, origin)
	if err != nil {
		return err
	}

	return withTx(ctx, s.pool, func(q *db.Queries) error {
		if err := q.UpsertDocument(ctx, db.UpsertDocumentParams{
			Namespace: s.namespace,
			Key:       key,
			Value:     string(value),
			Origin:    origin,
		}); err != nil {
			return fmt.Errorf("q.UpsertDocument: %w", err)
		}

		if err := q.NotifyChange(ctx, changesChannel, payload); err != nil {
			return fmt.Errorf("q.NotifyChange: %w", err)
		}

		return nil
	})
}

func (s *postgresStore) Delete(ctx context.Context, key string, origin string) error {
	if key == "" {
		return errEmptyKey
	}

	payload, err := s.changePayload(key, origin)
	if err != nil {
		return err
	}

	return withTx(ctx, s.pool, func(q *db.Queries) error {
		if _, err := q.DeleteDocument(ctx, s.namespace, key); err != nil {
			return fmt.Errorf("q.DeleteDocument: %w", err)
		}

		if err := q.NotifyChange(ctx, changesChannel, payload); err != nil {
			return fmt.Errorf("q.NotifyChange: %w", err)
		}

		return nil
	})
}

// Subscribe holds one pool connection in LISTEN mode until ctx is done.
func (s *postgresStore) Subscribe(ctx context.Context) (<-chan port.Change, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool.Acquire: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+changesChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("conn.Exec LISTEN: %w", err)
	}

	out := make(chan port.Change, 64)

	go func() {
		defer close(out)
		defer func() {
			// the connection still listens; drop it instead of returning it to the pool
			_ = conn.Conn().Close(context.Background())
			conn.Release()
		}()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("listen stopped", zap.Error(err))
				}
				return
			}

			var change postgresChange
			if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
				s.logger.Warn("malformed change notification", zap.Error(err))
				continue
			}
			if change.Namespace != s.namespace {
				continue
			}

			select {
			case out <- port.Change{Key: change.Key, Origin: change.Origin}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (s *postgresStore) changePayload(key, origin string) (string, error) {
	payload, err := json.Marshal(postgresChange{
		Namespace: s.namespace,
		Key:       key,
		Origin:    origin,
	})
	if err != nil {
		return "", fmt.Errorf("json.Marshal: %w", err)
	}

	return string(payload), nil
}
