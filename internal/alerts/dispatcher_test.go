package alerts

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kansa-ai/kansa/internal/model"
)

type recordingSink struct {
	mu        sync.Mutex
	delivered []model.Alert
	err       error
	block     chan struct{}
}

func (s *recordingSink) Deliver(_ context.Context, alert model.Alert) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, alert)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestDispatcherDelivers(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 16, testLogger())
	d.Start()

	alert := model.Alert{
		ID:         uuid.New(),
		OrgID:      uuid.New(),
		DecisionID: uuid.New(),
		Type:       model.AlertCriticalRisk,
		Message:    "critical risk decision recorded",
	}
	d.Enqueue(alert)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	require.Equal(t, 1, sink.count())
	assert.Equal(t, alert.ID, sink.delivered[0].ID)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := &recordingSink{block: block}
	d := NewDispatcher(sink, 2, testLogger())
	d.Start()

	// First alert occupies the worker, the next two fill the queue,
	// anything beyond that is dropped.
	for i := 0; i < 10; i++ {
		d.Enqueue(model.Alert{ID: uuid.New(), Type: model.AlertEthicsViolation})
	}
	close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	assert.LessOrEqual(t, sink.count(), 3)
	assert.GreaterOrEqual(t, sink.count(), 1)
}

func TestDispatcherSurvivesSinkErrors(t *testing.T) {
	sink := &recordingSink{err: errors.New("sink down")}
	d := NewDispatcher(sink, 16, testLogger())
	d.Start()

	d.Enqueue(model.Alert{ID: uuid.New(), Type: model.AlertCriticalRisk})
	d.Enqueue(model.Alert{ID: uuid.New(), Type: model.AlertCriticalRisk})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, 0, sink.count())
}

func TestStopFlushesQueue(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 64, testLogger())
	d.Start()

	for i := 0; i < 20; i++ {
		d.Enqueue(model.Alert{ID: uuid.New(), Type: model.AlertCriticalRisk})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, 20, sink.count())
}

func TestEnqueueAfterStopDrops(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 8, testLogger())
	d.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	// Late alerts are dropped, never delivered, and never panic.
	d.Enqueue(model.Alert{ID: uuid.New(), Type: model.AlertCriticalRisk})
	assert.Zero(t, sink.count())
}
