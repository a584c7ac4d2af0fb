package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/canteen-orders-go/pkg/contracts"
)

func TestPublish_FansOutToAllSubscribers(t *testing.T) {
	b := New()
	s1 := b.Subscribe()
	s2 := b.Subscribe()

	evt := contracts.NewOrderCreated(1, "042")
	b.Publish(evt)

	for _, sub := range []*Subscription{s1, s2} {
		select {
		case got := <-sub.Events():
			assert.Equal(t, evt.EventID, got.EventID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestSubscribe_SeesOnlyEventsAfterSubscription(t *testing.T) {
	b := New()
	for i := 0; i < 5; i++ {
		b.Publish(contracts.NewOrderCreated(int64(i), "100"))
	}

	sub := b.Subscribe()
	assert.Empty(t, sub.Events())

	after := contracts.NewOrderUpdated(9, "Completed")
	b.Publish(after)

	got := <-sub.Events()
	assert.Equal(t, after.EventID, got.EventID)
	assert.Empty(t, sub.Events())
}

func TestPublish_NeverBlocksOnSlowSubscriber(t *testing.T) {
	b := NewBuffered(2)
	sub := b.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			b.Publish(contracts.NewOrderCreated(int64(i), "100"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The buffer holds the most recent events; older ones were dropped.
	require.Len(t, sub.Events(), 2)
	got := <-sub.Events()
	assert.Equal(t, int64(48), got.OrderID)
	got = <-sub.Events()
	assert.Equal(t, int64(49), got.OrderID)
}

func TestClose_DiscardsHandle(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	sub.Close()

	// Publishing after close must not panic and the channel must be closed.
	b.Publish(contracts.NewOrderCreated(1, "100"))
	_, open := <-sub.Events()
	assert.False(t, open)

	// Closing twice is a no-op.
	sub.Close()
}

func TestBusClose_ClosesAllSubscribers(t *testing.T) {
	b := New()
	s1 := b.Subscribe()
	b.Close()

	_, open := <-s1.Events()
	assert.False(t, open)

	// Subscribing after bus close yields an already-closed handle.
	s2 := b.Subscribe()
	_, open = <-s2.Events()
	assert.False(t, open)
}
