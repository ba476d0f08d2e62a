package fanout_test

import (
	"context"
	"testing"
	"time"

	"github.com/nikolayk812/grocery-cart/internal/fanout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHub(t *testing.T) {
	hub := fanout.NewHub[int](-1)

	ctx1, cancel1 := context.WithCancel(t.Context())
	ctx2, cancel2 := context.WithCancel(t.Context())

	ch1 := hub.Subscribe(ctx1)
	ch2 := hub.Subscribe(ctx2)
	require.Equal(t, 2, hub.Len())

	hub.Publish(7)
	assert.Equal(t, 7, <-ch1)
	assert.Equal(t, 7, <-ch2)

	cancel1()
	_, open := <-ch1
	assert.False(t, open)
	assert.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(8)
	assert.Equal(t, 8, <-ch2)

	cancel2()
	_, open = <-ch2
	assert.False(t, open)
}

func TestHubSlowSubscriberGetsResync(t *testing.T) {
	hub := fanout.NewHub[int](-1)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	ch := hub.Subscribe(ctx)

	const published = 200
	for i := 1; i <= published; i++ {
		hub.Publish(i)
	}

	var got []int
	for len(ch) > 0 {
		got = append(got, <-ch)
	}

	require.NotEmpty(t, got)
	require.Less(t, len(got), published)

	// values arrive in order up to the point the buffer filled, then one resync
	last := len(got) - 1
	assert.Equal(t, -1, got[last])
	for i, v := range got[:last] {
		assert.Equal(t, i+1, v)
	}

	// a drained subscriber receives values again
	hub.Publish(published + 1)
	assert.Equal(t, published+1, <-ch)

	// and falls back to a single resync when it lags again
	for i := 0; i < published; i++ {
		hub.Publish(i)
	}
	resyncs := 0
	for len(ch) > 0 {
		if <-ch == -1 {
			resyncs++
		}
	}
	assert.Equal(t, 1, resyncs)
}
