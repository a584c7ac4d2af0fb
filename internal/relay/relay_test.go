package relay

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/canteen-orders-go/pkg/contracts"
)

type fakeWriter struct {
	mu    sync.Mutex
	keys  []string
	err   error
	calls int
}

func (w *fakeWriter) Publish(_ context.Context, key string, _ any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.keys = append(w.keys, key)
	return nil
}

func testLogger() *log.Entry {
	l := log.New()
	l.SetOutput(io.Discard)
	return l.WithField("service", "test")
}

func TestRun_ForwardsEventsUntilClose(t *testing.T) {
	w := &fakeWriter{}
	r := New(w, testLogger())

	events := make(chan contracts.Event, 4)
	e1 := contracts.NewOrderCreated(1, "1000")
	e2 := contracts.NewOrderUpdated(1, "Completed")
	events <- e1
	events <- e2
	close(events)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop on channel close")
	}
	assert.Equal(t, []string{e1.EventID, e2.EventID}, w.keys)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	r := New(&fakeWriter{}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx, make(chan contracts.Event))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop on cancel")
	}
}

func TestForward_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	r := New(w, testLogger())

	for i := 0; i < 10; i++ {
		r.forward(context.Background(), contracts.NewOrderCreated(int64(i), "1000"))
	}

	// Once open, the breaker short-circuits instead of hitting the writer.
	require.Less(t, w.calls, 10)
	assert.GreaterOrEqual(t, w.calls, 3)
}
