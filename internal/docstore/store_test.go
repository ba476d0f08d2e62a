package docstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/nikolayk812/grocery-cart/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDocumentStore runs the behaviour every DocumentStore must share.
func testDocumentStore(t *testing.T, newStore func(t *testing.T) port.DocumentStore) {
	t.Run("get missing document: not found", func(t *testing.T) {
		store := newStore(t)

		value, ok, err := store.Get(t.Context(), gofakeit.UUID())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, value)
	})

	t.Run("put then get: ok", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		require.NoError(t, store.Put(ctx, "pm_cart", []byte(`[{"productId":"a","quantity":1}]`), "view-1"))

		value, ok, err := store.Get(ctx, "pm_cart")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `[{"productId":"a","quantity":1}]`, string(value))

		// last writer wins
		require.NoError(t, store.Put(ctx, "pm_cart", []byte(`[]`), "view-2"))
		value, ok, err = store.Get(ctx, "pm_cart")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, `[]`, string(value))
	})

	t.Run("malformed value is stored verbatim: ok", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		require.NoError(t, store.Put(ctx, "pm_cart_pick", []byte(`{not json`), "view-1"))

		value, ok, err := store.Get(ctx, "pm_cart_pick")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, `{not json`, string(value))
	})

	t.Run("delete: ok", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		require.NoError(t, store.Put(ctx, "pm_reorder", []byte(`[]`), "view-1"))
		require.NoError(t, store.Delete(ctx, "pm_reorder", "view-1"))

		_, ok, err := store.Get(ctx, "pm_reorder")
		require.NoError(t, err)
		assert.False(t, ok)

		// deleting an absent document is not an error
		require.NoError(t, store.Delete(ctx, "pm_reorder", "view-1"))
	})

	t.Run("empty key: error", func(t *testing.T) {
		store := newStore(t)

		err := store.Put(t.Context(), "", []byte(`[]`), "view-1")
		require.EqualError(t, err, "key is empty")
	})

	t.Run("subscribe receives changes: ok", func(t *testing.T) {
		store := newStore(t)

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		changes, err := store.Subscribe(ctx)
		require.NoError(t, err)

		require.NoError(t, store.Put(ctx, "pm_cart", []byte(`[]`), "view-1"))
		require.NoError(t, store.Delete(ctx, "pm_cart_pick", "view-2"))

		assert.Equal(t, port.Change{Key: "pm_cart", Origin: "view-1"}, receive(t, changes))
		assert.Equal(t, port.Change{Key: "pm_cart_pick", Origin: "view-2"}, receive(t, changes))

		cancel()
		assert.Eventually(t, func() bool {
			select {
			case _, open := <-changes:
				return !open
			default:
				return false
			}
		}, 5*time.Second, 10*time.Millisecond)
	})
}

func receive(t *testing.T, changes <-chan port.Change) port.Change {
	t.Helper()

	select {
	case change, ok := <-changes:
		require.True(t, ok, "channel closed")
		return change
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no change received")
		return port.Change{}
	}
}
