package cart_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nikolayk812/grocery-cart/internal/cart"
	"github.com/nikolayk812/grocery-cart/internal/domain"
	"github.com/nikolayk812/grocery-cart/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSessionFollowsOtherViews(t *testing.T) {
	docs := newMemoryDocs()

	ctx, cancel := context.WithCancel(t.Context())

	left, err := cart.Open(ctx, docs, cart.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	right, err := cart.Open(ctx, docs, cart.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NotEqual(t, left.Origin(), right.Origin())

	events := right.Store.Subscribe(ctx)

	done := make(chan error, 1)
	go func() { done <- right.Follow(ctx) }()

	// wait until the follower is subscribed before writing
	require.Eventually(t, func() bool {
		staged := randomCartItem()
		_ = left.Tray.Stage(ctx, []domain.CartItem{staged})
		return len(right.Tray.List()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	first, second := randomCartItem(), randomCartItem()
	require.NoError(t, left.Store.AddAll(ctx, []domain.CartItem{first, second}))

	require.Eventually(t, func() bool {
		return len(right.Store.List()) == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []domain.LineKey{first.Key(), second.Key()}, right.Selection.Keys())

	var remote cart.Event
	require.Eventually(t, func() bool {
		select {
		case remote = <-events:
			return remote.Remote && len(remote.Keys) == 2
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, left.Selection.Toggle(ctx, first.Key()))
	require.Eventually(t, func() bool {
		return !right.Selection.IsSelected(first.Key())
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, left.Store.Clear(ctx))
	require.Eventually(t, func() bool {
		return len(right.Store.List()) == 0 && len(right.Selection.Keys()) == 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Follow did not stop")
	}
}

func follow(t *testing.T, ctx context.Context, session *cart.Session) <-chan error {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- session.Follow(ctx) }()
	return done
}

func waitStopped(t *testing.T, done <-chan error) {
	t.Helper()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Follow did not stop")
	}
}

// waitFollowing returns once follower applies writes made by writer.
func waitFollowing(t *testing.T, ctx context.Context, writer, follower *cart.Session) {
	t.Helper()

	require.Eventually(t, func() bool {
		staged := randomCartItem()
		_ = writer.Tray.Stage(ctx, []domain.CartItem{staged})
		tray := follower.Tray.List()
		return len(tray) == 1 && tray[0].Key() == staged.Key()
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, writer.Tray.Discard(ctx))
	require.Eventually(t, func() bool {
		return len(follower.Tray.List()) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSessionClearResetsSelectionInEveryView(t *testing.T) {
	docs := newMemoryDocs()
	ctx, cancel := context.WithCancel(t.Context())

	left, err := cart.Open(ctx, docs, cart.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	right, err := cart.Open(ctx, docs, cart.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	leftDone := follow(t, ctx, left)
	rightDone := follow(t, ctx, right)
	waitFollowing(t, ctx, left, right)
	waitFollowing(t, ctx, right, left)

	first, second := randomCartItem(), randomCartItem()
	require.NoError(t, left.Store.AddAll(ctx, []domain.CartItem{first, second}))
	require.Eventually(t, func() bool {
		return len(right.Store.List()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, left.Selection.Toggle(ctx, first.Key()))
	require.Eventually(t, func() bool {
		return right.Selection.Explicit() && !right.Selection.IsSelected(first.Key())
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, left.Store.Clear(ctx))
	require.Eventually(t, func() bool {
		return len(right.Store.List()) == 0 && !right.Selection.Explicit()
	}, 5*time.Second, 10*time.Millisecond)

	_, ok := persistedPick(t, docs)
	assert.False(t, ok)
	assert.False(t, left.Selection.Explicit())

	third := randomCartItem()
	require.NoError(t, left.Store.Add(ctx, third))
	require.Eventually(t, func() bool {
		return right.Selection.IsSelected(third.Key())
	}, 5*time.Second, 10*time.Millisecond)

	assert.True(t, left.Selection.IsSelected(third.Key()))
	assert.False(t, right.Selection.Explicit())
	_, ok = persistedPick(t, docs)
	assert.False(t, ok)

	cancel()
	waitStopped(t, leftDone)
	waitStopped(t, rightDone)
}

// scriptedDocs hands out change channels from a queue before falling back to
// the wrapped store.
type scriptedDocs struct {
	port.DocumentStore

	mu         sync.Mutex
	streams    []chan port.Change
	subscribes int
}

func (d *scriptedDocs) Subscribe(ctx context.Context) (<-chan port.Change, error) {
	d.mu.Lock()
	d.subscribes++
	if len(d.streams) > 0 {
		ch := d.streams[0]
		d.streams = d.streams[1:]
		d.mu.Unlock()
		return ch, nil
	}
	d.mu.Unlock()

	return d.DocumentStore.Subscribe(ctx)
}

func (d *scriptedDocs) subscribeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.subscribes
}

func TestSessionResyncReloadsEveryDocument(t *testing.T) {
	stream := make(chan port.Change, 1)
	docs := &scriptedDocs{DocumentStore: newMemoryDocs(), streams: []chan port.Change{stream}}
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	session, err := cart.Open(ctx, docs)
	require.NoError(t, err)
	done := follow(t, ctx, session)

	// written behind the session's back: no change is delivered for them
	item, staged := randomCartItem(), randomCartItem()
	require.NoError(t, docs.Put(ctx, domain.DocCart, mustJSON(t, []domain.CartItem{item}), "other"))
	require.NoError(t, docs.Put(ctx, domain.DocCartPick, mustJSON(t, []string{}), "other"))
	require.NoError(t, docs.Put(ctx, domain.DocReorder, mustJSON(t, []domain.CartItem{staged}), "other"))

	stream <- port.Change{Resync: true}

	require.Eventually(t, func() bool {
		return len(session.Store.List()) == 1 && len(session.Tray.List()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, session.Selection.Explicit())
	assert.Empty(t, session.Selection.Keys())

	// the scripted stream does not close on cancel by itself
	close(stream)
	cancel()
	waitStopped(t, done)
}

func TestSessionResubscribesWhenChangesStop(t *testing.T) {
	closed := make(chan port.Change)
	close(closed)

	memory := newMemoryDocs()
	docs := &scriptedDocs{DocumentStore: memory, streams: []chan port.Change{closed}}
	ctx, cancel := context.WithCancel(t.Context())

	writer, err := cart.Open(ctx, memory)
	require.NoError(t, err)
	follower, err := cart.Open(ctx, docs)
	require.NoError(t, err)

	done := follow(t, ctx, follower)

	// missed while the stream was down, picked up on resubscribe
	first := randomCartItem()
	require.NoError(t, writer.Store.Add(ctx, first))

	require.Eventually(t, func() bool {
		return docs.subscribeCount() >= 2 && len(follower.Store.List()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	second := randomCartItem()
	require.NoError(t, writer.Store.Add(ctx, second))
	require.Eventually(t, func() bool {
		return len(follower.Store.List()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	select {
	case err := <-done:
		require.FailNow(t, "Follow stopped early", "err: %v", err)
	default:
	}

	cancel()
	waitStopped(t, done)
}

type unsubscribableDocs struct {
	port.DocumentStore
}

func (unsubscribableDocs) Subscribe(context.Context) (<-chan port.Change, error) {
	return nil, errors.New("connection refused")
}

func TestSessionFollowSubscribeError(t *testing.T) {
	session, err := cart.Open(t.Context(), unsubscribableDocs{newMemoryDocs()})
	require.NoError(t, err)

	err = session.Follow(t.Context())
	require.Error(t, err)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
