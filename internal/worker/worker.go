// Package worker provides async application scoring for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/loanrisk/internal/domain"
	"github.com/opensource-finance/loanrisk/internal/scoring"
)

// Scorer scores one application and stores the decision.
type Scorer interface {
	Score(ctx context.Context, app domain.Application) (*scoring.Result, error)
}

// Worker scores applications submitted through the EventBus.
// Decisions are announced by the scorer; the worker only reports failures.
type Worker struct {
	bus    domain.EventBus
	scorer Scorer

	mu            sync.Mutex
	subscriptions []domain.Subscription
	stopped       bool
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, scorer Scorer) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		scorer: scorer,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to submitted applications.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return fmt.Errorf("worker is stopped")
	}

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicApplicationSubmitted, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicApplicationSubmitted, err)
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicApplicationSubmitted,
	)
	return nil
}

// handleMessage tracks in-flight work so Stop can drain it. Buses cancel
// the delivery context on unsubscribe, so scoring runs detached from it:
// Stop ends new deliveries but lets a started application reach the store.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	return w.processApplication(context.WithoutCancel(ctx), msg)
}

// processApplication scores one submitted application.
func (w *Worker) processApplication(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var appMsg domain.ApplicationMessage
	if err := json.Unmarshal(msg.Payload, &appMsg); err != nil {
		slog.Error("failed to parse application message",
			"message_id", msg.ID,
			"error", err,
		)
		w.failed.Add(1)
		w.publishFailure(ctx, domain.FailureEvent{
			RequestID: msg.ID,
			Error:     "malformed application message",
		})
		return err
	}

	requestID := appMsg.RequestID
	if requestID == "" {
		requestID = msg.ID
	}
	traceID := appMsg.TraceID
	if traceID == "" {
		traceID = requestID
	}

	slog.Debug("processing application",
		"request_id", requestID,
		"trace_id", traceID,
	)

	result, err := w.scorer.Score(scoring.WithTraceID(ctx, traceID), appMsg.Application)
	if err != nil {
		w.failed.Add(1)
		slog.Error("application scoring failed",
			"request_id", requestID,
			"trace_id", traceID,
			"error", err,
		)
		w.publishFailure(ctx, domain.FailureEvent{
			RequestID: requestID,
			Error:     err.Error(),
			Retryable: errors.Is(err, domain.ErrPersistence) || errors.Is(err, domain.ErrModelUnavailable),
		})
		return err
	}

	w.processed.Add(1)
	slog.Info("application processed",
		"request_id", requestID,
		"decision_id", result.Decision.ID,
		"approved", result.Decision.Approved,
		"risk_score", result.Decision.RiskScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (w *Worker) publishFailure(ctx context.Context, ev domain.FailureEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to encode failure event", "request_id", ev.RequestID, "error", err)
		return
	}
	if err := w.bus.Publish(ctx, domain.TopicDecisionFailed, payload); err != nil {
		slog.Error("failed to publish failure event",
			"request_id", ev.RequestID,
			"error", err,
		)
	}
}

// Stop unsubscribes and waits for in-flight applications to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	subs := w.subscriptions
	w.subscriptions = nil
	w.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}

	w.wg.Wait()
	w.cancel()

	slog.Info("worker stopped",
		"processed", w.processed.Load(),
		"failed", w.failed.Load(),
	)
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Failed:            w.failed.Load(),
	}
}
