// Package alerts delivers governance alerts raised by the decision pipeline.
//
// Delivery is asynchronous through a bounded queue so that alerting never
// blocks decision logging. When the queue is full new alerts are dropped
// and logged rather than applying backpressure to the pipeline.
package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kansa-ai/kansa/internal/model"
)

// Sink receives alerts for delivery.
type Sink interface {
	Deliver(ctx context.Context, alert model.Alert) error
}

// AlertStore is the persistence surface StoreSink writes through.
type AlertStore interface {
	CreateAlert(ctx context.Context, alert model.Alert) (model.Alert, error)
}

// StoreSink persists alerts to the database.
type StoreSink struct {
	store AlertStore
}

// NewStoreSink creates a sink that writes alerts to the alert store.
func NewStoreSink(store AlertStore) *StoreSink {
	return &StoreSink{store: store}
}

// Deliver persists the alert.
func (s *StoreSink) Deliver(ctx context.Context, alert model.Alert) error {
	_, err := s.store.CreateAlert(ctx, alert)
	return err
}

// deliverTimeout bounds a single sink delivery so a stuck sink
// cannot stall the queue indefinitely.
const deliverTimeout = 10 * time.Second

// Dispatcher fans alerts from the pipeline to a sink on a worker goroutine.
type Dispatcher struct {
	sink   Sink
	queue  chan model.Alert
	logger *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}

	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher creates a dispatcher with a bounded queue.
func NewDispatcher(sink Sink, queueSize int, logger *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		sink:   sink,
		queue:  make(chan model.Alert, queueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start launches the delivery worker. Safe to call once.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.run()
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for alert := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		if err := d.sink.Deliver(ctx, alert); err != nil {
			d.logger.Warn("alerts: delivery failed",
				"alert_type", alert.Type,
				"decision_id", alert.DecisionID,
				"error", err)
		}
		cancel()
	}
}

// Enqueue queues an alert for delivery without blocking. A full queue
// drops the alert and logs the drop, as does a dispatcher that has
// already been stopped.
func (d *Dispatcher) Enqueue(alert model.Alert) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.logger.Warn("alerts: dispatcher stopped, dropping alert",
			"alert_type", alert.Type,
			"decision_id", alert.DecisionID)
		return
	}
	select {
	case d.queue <- alert:
	default:
		d.logger.Warn("alerts: queue full, dropping alert",
			"alert_type", alert.Type,
			"decision_id", alert.DecisionID)
	}
}

// Stop closes the queue and waits for queued alerts to flush, up to the
// context deadline.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		close(d.queue)
	})
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
