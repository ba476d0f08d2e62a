package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nikolayk812/grocery-cart/internal/domain"
	"github.com/nikolayk812/grocery-cart/internal/port"
	"go.uber.org/zap"
)

const (
	followRetryInitial = 100 * time.Millisecond
	followRetryMax     = 10 * time.Second
)

// Session is one view over the shared documents: a store, its selection
// and the reorder tray, writing under a single origin.
type Session struct {
	Store     *Store
	Selection *Selection
	Tray      *Tray

	docs   port.DocumentStore
	origin string
	logger *zap.Logger
}

func Open(ctx context.Context, docs port.DocumentStore, opts ...Option) (*Session, error) {
	o := newOptions(opts)
	// pin the generated origin so all components share it
	opts = append(opts, WithOrigin(o.origin))

	store, err := NewStore(ctx, docs, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewStore: %w", err)
	}

	selection, err := NewSelection(ctx, docs, store, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewSelection: %w", err)
	}

	tray, err := NewTray(ctx, docs, store, selection, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewTray: %w", err)
	}

	return &Session{
		Store:     store,
		Selection: selection,
		Tray:      tray,
		docs:      docs,
		origin:    o.origin,
		logger:    o.logger,
	}, nil
}

func (s *Session) Origin() string {
	return s.origin
}

// Follow applies changes written by other views until ctx is done. Views may
// disagree until the notification is processed here.
//
// A change stream that ends while ctx is live is reopened with backoff, and
// every document is reread since changes may have been missed meanwhile.
// Only the first Subscribe failure is returned.
func (s *Session) Follow(ctx context.Context) error {
	changes, err := s.docs.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("docs.Subscribe: %w", err)
	}

	retry := backoff.WithContext(newFollowBackOff(), ctx)

	for {
		s.consume(ctx, changes)
		if ctx.Err() != nil {
			return nil
		}

		s.logger.Warn("document change stream closed, resubscribing")

		changes, err = s.resubscribe(ctx, retry)
		if err != nil {
			return nil
		}
		retry.Reset()

		s.resync(ctx)
	}
}

func (s *Session) consume(ctx context.Context, changes <-chan port.Change) {
	for change := range changes {
		if change.Resync {
			s.resync(ctx)
			continue
		}
		if change.Origin == s.origin {
			continue
		}

		if err := s.apply(ctx, change.Key); err != nil {
			s.logger.Warn("failed to apply remote change",
				zap.String("document", change.Key),
				zap.String("origin", change.Origin),
				zap.Error(err))
		}
	}
}

// resubscribe returns an error only when retry gives up, which happens when
// ctx is done.
func (s *Session) resubscribe(ctx context.Context, retry backoff.BackOff) (<-chan port.Change, error) {
	for {
		wait := retry.NextBackOff()
		if wait == backoff.Stop {
			return nil, ctx.Err()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}

		changes, err := s.docs.Subscribe(ctx)
		if err == nil {
			return changes, nil
		}

		s.logger.Warn("resubscribe failed", zap.Duration("retry_in", wait), zap.Error(err))
	}
}

// resync rereads every document, in the order a writer produces them.
func (s *Session) resync(ctx context.Context) {
	for _, key := range []string{domain.DocCart, domain.DocCartPick, domain.DocReorder} {
		if err := s.apply(ctx, key); err != nil {
			s.logger.Warn("failed to resync document", zap.String("document", key), zap.Error(err))
		}
	}
}

func (s *Session) apply(ctx context.Context, key string) error {
	switch key {
	case domain.DocCart:
		return s.Store.Reload(ctx)
	case domain.DocCartPick:
		return s.Selection.reload(ctx)
	case domain.DocReorder:
		return s.Tray.reload(ctx)
	default:
		return nil
	}
}

func newFollowBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = followRetryInitial
	b.MaxInterval = followRetryMax
	b.MaxElapsedTime = 0
	return b
}
