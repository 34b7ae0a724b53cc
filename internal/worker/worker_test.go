package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/loanrisk/internal/artifact/artifacttest"
	"github.com/opensource-finance/loanrisk/internal/bus"
	"github.com/opensource-finance/loanrisk/internal/domain"
	"github.com/opensource-finance/loanrisk/internal/scoring"
)

type memStore struct {
	mu        sync.Mutex
	decisions []*domain.Decision
}

func (s *memStore) RecordDecision(ctx context.Context, d domain.Decision) (*domain.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = fmt.Sprintf("dec-%d", len(s.decisions)+1)
	d.CreatedAt = time.Now().UTC()
	s.decisions = append(s.decisions, &d)
	return &d, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.decisions)
}

type scorerFunc func(ctx context.Context, app domain.Application) (*scoring.Result, error)

func (f scorerFunc) Score(ctx context.Context, app domain.Application) (*scoring.Result, error) {
	return f(ctx, app)
}

func newOrchestrator(t *testing.T, eventBus domain.EventBus) (*scoring.Orchestrator, *memStore) {
	t.Helper()
	sc, err := scoring.NewContext(artifacttest.Bundle(), scoring.Options{})
	require.NoError(t, err)
	store := &memStore{}
	return scoring.NewOrchestrator(scoring.NewHolder(sc), store, scoring.WithEventBus(eventBus)), store
}

func submit(t *testing.T, eventBus domain.EventBus, msg domain.ApplicationMessage) {
	t.Helper()
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, eventBus.Publish(context.Background(), domain.TopicApplicationSubmitted, payload))
}

// capture subscribes to topic and returns the channel deliveries land on.
func capture(t *testing.T, eventBus domain.EventBus, topic string) <-chan *domain.Message {
	t.Helper()
	ch := make(chan *domain.Message, 1)
	sub, err := eventBus.Subscribe(context.Background(), topic, func(ctx context.Context, msg *domain.Message) error {
		ch <- msg
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	return ch
}

func waitFor(t *testing.T, ch <-chan *domain.Message) *domain.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func startWorker(t *testing.T, eventBus domain.EventBus, scorer Scorer) *Worker {
	t.Helper()
	w := NewWorker(eventBus, scorer)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	t.Run("StartAndStop", func(t *testing.T) {
		orch, _ := newOrchestrator(t, eventBus)
		worker := NewWorker(eventBus, orch)

		require.NoError(t, worker.Start())

		stats := worker.GetStats()
		assert.Equal(t, 1, stats.SubscriptionCount)
		assert.Equal(t, []string{domain.TopicApplicationSubmitted}, stats.Topics)

		assert.NoError(t, worker.Stop())
		assert.Equal(t, 0, worker.GetStats().SubscriptionCount, "subscriptions after stop")

		assert.Error(t, worker.Start(), "a stopped worker cannot restart")
	})

	t.Run("ProcessApplication", func(t *testing.T) {
		orch, store := newOrchestrator(t, eventBus)
		w := startWorker(t, eventBus, orch)
		scored := capture(t, eventBus, domain.TopicDecisionScored)

		submit(t, eventBus, domain.ApplicationMessage{
			RequestID:   "req-001",
			TraceID:     "trace-001",
			Application: artifacttest.Application(),
		})

		var ev domain.DecisionEvent
		require.NoError(t, json.Unmarshal(waitFor(t, scored).Payload, &ev))
		assert.Equal(t, "trace-001", ev.TraceID)
		require.NotNil(t, ev.Decision)
		assert.True(t, ev.Decision.Approved)
		assert.Equal(t, artifacttest.Version, ev.Decision.ModelVersion)

		assert.Equal(t, 1, store.count())
		assert.Eventually(t, func() bool {
			return w.GetStats().Processed == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("RequestIDIsDefaultTrace", func(t *testing.T) {
		orch, _ := newOrchestrator(t, eventBus)
		startWorker(t, eventBus, orch)
		scored := capture(t, eventBus, domain.TopicDecisionScored)

		submit(t, eventBus, domain.ApplicationMessage{
			RequestID:   "req-trace",
			Application: artifacttest.Application(),
		})

		var ev domain.DecisionEvent
		require.NoError(t, json.Unmarshal(waitFor(t, scored).Payload, &ev))
		assert.Equal(t, "req-trace", ev.TraceID, "request id stands in for a missing trace id")
	})

	t.Run("InvalidApplicationPublishesFailure", func(t *testing.T) {
		orch, store := newOrchestrator(t, eventBus)
		startWorker(t, eventBus, orch)
		failed := capture(t, eventBus, domain.TopicDecisionFailed)

		app := artifacttest.Application()
		app.ApplicantIncome = 0
		submit(t, eventBus, domain.ApplicationMessage{RequestID: "req-bad", Application: app})

		var ev domain.FailureEvent
		require.NoError(t, json.Unmarshal(waitFor(t, failed).Payload, &ev))
		assert.Equal(t, "req-bad", ev.RequestID)
		assert.False(t, ev.Retryable, "validation failures are not retryable")
		assert.Equal(t, 0, store.count())
	})

	t.Run("PersistenceFailureIsRetryable", func(t *testing.T) {
		w := startWorker(t, eventBus, scorerFunc(func(ctx context.Context, app domain.Application) (*scoring.Result, error) {
			return nil, fmt.Errorf("%w: disk full", domain.ErrPersistence)
		}))
		failed := capture(t, eventBus, domain.TopicDecisionFailed)

		submit(t, eventBus, domain.ApplicationMessage{RequestID: "req-retry", Application: artifacttest.Application()})

		var ev domain.FailureEvent
		require.NoError(t, json.Unmarshal(waitFor(t, failed).Payload, &ev))
		assert.True(t, ev.Retryable, "persistence failures are retryable")
		assert.Equal(t, int64(1), w.GetStats().Failed)
	})

	t.Run("MalformedMessage", func(t *testing.T) {
		startWorker(t, eventBus, scorerFunc(func(ctx context.Context, app domain.Application) (*scoring.Result, error) {
			return nil, errors.New("must not be called")
		}))
		failed := capture(t, eventBus, domain.TopicDecisionFailed)

		require.NoError(t, eventBus.Publish(context.Background(), domain.TopicApplicationSubmitted, []byte("{not json")))

		var ev domain.FailureEvent
		require.NoError(t, json.Unmarshal(waitFor(t, failed).Payload, &ev))
		assert.Equal(t, "malformed application message", ev.Error)
	})
}

func TestWorkerStopDrainsInFlight(t *testing.T) {
	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()

	started := make(chan struct{})
	var ctxErr error
	w := NewWorker(eventBus, scorerFunc(func(ctx context.Context, app domain.Application) (*scoring.Result, error) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		ctxErr = ctx.Err()
		if ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, ctxErr)
		}
		return &scoring.Result{Decision: &domain.Decision{ID: "dec-slow", Application: app}}, nil
	}))
	require.NoError(t, w.Start())

	submit(t, eventBus, domain.ApplicationMessage{RequestID: "req-slow", Application: artifacttest.Application()})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for scoring to start")
	}

	require.NoError(t, w.Stop())

	// Stop returned, so the scorer has finished and ctxErr is settled.
	assert.NoError(t, ctxErr, "in-flight scoring saw a cancelled context")
	stats := w.GetStats()
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
}
