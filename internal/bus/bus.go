// Package bus is the process-wide publish/subscribe channel for order
// lifecycle events. Delivery is best-effort: nothing is persisted, missed
// events are not replayed, and clients resynchronize by re-fetching state.
package bus

import (
	"sync"

	"github.com/nazeru/canteen-orders-go/pkg/contracts"
	"github.com/nazeru/canteen-orders-go/pkg/metrics"
)

const defaultBuffer = 16

// Publisher is the write side consumed by the lifecycle manager.
type Publisher interface {
	Publish(evt contracts.Event)
}

type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
}

type Subscription struct {
	bus *Bus
	ch  chan contracts.Event
}

func New() *Bus {
	return NewBuffered(defaultBuffer)
}

func NewBuffered(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe registers a new live handle. The subscriber sees only events
// published after this call.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{bus: b, ch: make(chan contracts.Event, b.buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	metrics.BusSubscribers.Inc()
	return sub
}

// Publish fans the event out to every live subscriber without ever blocking
// the caller. When a subscriber's buffer is full its oldest buffered event is
// dropped to make room, so one slow client never stalls order processing.
func (b *Bus) Publish(evt contracts.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.ch <- evt:
			continue
		default:
		}
		select {
		case <-sub.ch:
			metrics.BusDroppedEvents.Inc()
		default:
		}
		select {
		case sub.ch <- evt:
		default:
			metrics.BusDroppedEvents.Inc()
		}
	}
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		metrics.BusSubscribers.Dec()
	}
	b.subs = map[*Subscription]struct{}{}
}

// Events yields events published after subscription. The channel closes when
// either side disconnects.
func (s *Subscription) Events() <-chan contracts.Event {
	return s.ch
}

// Close discards the handle; further events for it are silently dropped.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subs[s]; !ok {
		return
	}
	delete(s.bus.subs, s)
	close(s.ch)
	metrics.BusSubscribers.Dec()
}
