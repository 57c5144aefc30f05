// Package queue decouples draft generation from request latency. The
// Queue/Worker pair is broker-agnostic: the in-memory broker serves
// tests and single-process deployments, Google Pub/Sub serves
// production. Retry semantics live here, not in any broker, so every
// broker delivers each message exactly once to the handler wrapper and
// the wrapper owns bounded attempts and backoff.
package queue

import (
	"context"
	"math"
	"time"
)

type Message struct {
	ID            string
	Topic         string
	Payload       []byte
	CorrelationId string
	Policy        RetryPolicy
}

// Handler processes one delivered message. Returning an error signals
// a transient failure; the retry wrapper decides what happens next.
type Handler func(ctx context.Context, msg Message) error

// ExhaustedFunc runs once when every attempt for a message has failed.
// This is the only user-visible failure path.
type ExhaustedFunc func(ctx context.Context, msg Message, lastErr error)

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy().BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultRetryPolicy().MaxDelay
	}
	return p
}

// Backoff returns the delay before the given attempt (1-based): base
// for attempt 1, doubling per attempt, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.normalize()
	if attempt <= 1 {
		return p.BaseDelay
	}
	exp := float64(attempt - 1)
	delay := time.Duration(float64(p.BaseDelay) * math.Pow(2, exp))
	if delay > p.MaxDelay || delay <= 0 {
		return p.MaxDelay
	}
	return delay
}

// Queue publishes messages for later consumption.
type Queue interface {
	Enqueue(ctx context.Context, topic string, payload []byte, policy RetryPolicy) (string, error)
}

// Worker consumes messages from a topic until the context is done.
// Each message is delivered to the handler exactly once; redelivery is
// never relied on, so handlers must reach a terminal outcome (usually
// via WithRetry) before returning.
type Worker interface {
	Consume(ctx context.Context, topic string, handler Handler) error
}

// WithRetry wraps a handler with the message's retry policy: the
// handler runs up to MaxAttempts times with exponential sleeps in
// between. Intermediate failures stay invisible to callers; only
// exhaustion invokes onExhausted, once, with the last error.
func WithRetry(handler Handler, onExhausted ExhaustedFunc) Handler {
	return func(ctx context.Context, msg Message) error {
		policy := msg.Policy.normalize()

		var lastErr error
	attempts:
		for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
			lastErr = handler(ctx, msg)
			if lastErr == nil {
				return nil
			}
			if attempt == policy.MaxAttempts {
				break
			}
			select {
			case <-ctx.Done():
				break attempts
			case <-time.After(policy.Backoff(attempt)):
			}
		}

		if onExhausted != nil {
			onExhausted(ctx, msg, lastErr)
		}
		// Exhaustion is terminal. Returning nil tells the broker the
		// message is done; redelivering it would repeat the failure.
		return nil
	}
}
