// Package relay mirrors bus events onto a Kafka topic for deployments that
// want to tap the order stream externally. Best-effort like the bus itself: a
// failed publish is logged and dropped, and a circuit breaker keeps a dead
// broker from slowing the drain loop.
package relay

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/nazeru/canteen-orders-go/pkg/contracts"
	"github.com/nazeru/canteen-orders-go/pkg/logging"
)

// Writer is satisfied by kafka.PublishJSON wrapped around a *kafka.Writer.
type Writer interface {
	Publish(ctx context.Context, key string, payload any) error
}

const publishTimeout = 2 * time.Second

type Relay struct {
	writer  Writer
	breaker *gobreaker.CircuitBreaker
	logger  *log.Entry
}

func New(writer Writer, logger *log.Entry) *Relay {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "kafka-relay",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})
	return &Relay{writer: writer, breaker: breaker, logger: logger}
}

// Run drains events until the subscription channel closes or ctx is done.
func (r *Relay) Run(ctx context.Context, events <-chan contracts.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			r.forward(ctx, evt)
		}
	}
}

func (r *Relay) forward(ctx context.Context, evt contracts.Event) {
	_, err := r.breaker.Execute(func() (any, error) {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		return nil, r.writer.Publish(pubCtx, evt.EventID, evt)
	})
	if err != nil {
		r.logger.WithFields(log.Fields{
			logging.FieldEventID: evt.EventID,
			logging.FieldOrderID: evt.OrderID,
		}).WithError(err).Warn("event relay dropped")
	}
}
