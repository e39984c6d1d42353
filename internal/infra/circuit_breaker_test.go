package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker() (*CircuitBreaker, *manualClock) {
	clock := &manualClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name: "test", FailureThreshold: 3, SuccessThreshold: 2, OpenTimeout: 10 * time.Second,
	})
	cb.now = clock.now
	return cb, clock
}

var errBroker = errors.New("broker unavailable")

func fail() error    { return errBroker }
func succeed() error { return nil }

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(fail), errBroker)
	}
	assert.Equal(t, CBClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(fail), errBroker)
	assert.Equal(t, CBOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker()
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	require.NoError(t, cb.Execute(succeed))
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker()
	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}
	require.Equal(t, CBOpen, cb.State())

	clock.advance(10 * time.Second)
	assert.Equal(t, CBHalfOpen, cb.State())

	require.NoError(t, cb.Execute(succeed))
	assert.Equal(t, CBHalfOpen, cb.State())
	require.NoError(t, cb.Execute(succeed))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker()
	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}
	clock.advance(11 * time.Second)
	require.Equal(t, CBHalfOpen, cb.State())

	_ = cb.Execute(fail)
	assert.Equal(t, CBOpen, cb.State())
	assert.Equal(t, "open", cb.State().String())
}

// ── Publishers ────────────────────────────────────────────────────────────────

type countingPublisher struct {
	calls int
	err   error
}

func (p *countingPublisher) Publish(context.Context, string, Event) error {
	p.calls++
	return p.err
}

func (p *countingPublisher) Close() error { return nil }

func TestGuardedPublisher_StopsCallingBrokerWhenOpen(t *testing.T) {
	cb, _ := newTestBreaker()
	inner := &countingPublisher{err: errBroker}
	pub := NewGuardedPublisher(inner, cb)
	ev := NewEvent(EventStockLow, map[string]int{"committed": 1})

	for i := 0; i < 5; i++ {
		_ = pub.Publish(context.Background(), "p-1", ev)
	}
	assert.Equal(t, 3, inner.calls)
	assert.Same(t, cb, pub.Breaker())
}

func TestPublishBestEffort_SwallowsErrors(t *testing.T) {
	inner := &countingPublisher{err: errBroker}
	assert.NotPanics(t, func() {
		PublishBestEffort(context.Background(), inner, "k", NewEvent(EventSaleCompleted, nil))
		PublishBestEffort(context.Background(), nil, "k", NewEvent(EventSaleCompleted, nil))
	})
	assert.Equal(t, 1, inner.calls)
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(EventBatchExpiring, "payload")
	assert.Equal(t, EventBatchExpiring, ev.EventType)
	assert.NotEmpty(t, ev.EventID)
	assert.False(t, ev.Timestamp.IsZero())
}
