package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"

	"github.com/contractflow/proposals_backend/config"
)

const (
	attrCorrelationId = "correlation_id"
	attrMaxAttempts   = "retry_max_attempts"
	attrBaseDelayMs   = "retry_base_delay_ms"
	attrMaxDelayMs    = "retry_max_delay_ms"
)

// PubSubBroker is the durable production broker. The retry policy
// rides along as message attributes so the consumer honors whatever
// policy the producer enqueued with. Messages are always acked after
// the handler returns: redelivery is never part of the retry contract
// (see WithRetry), Pub/Sub only provides durability and delivery.
type PubSubBroker struct {
	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewPubSubBroker() *PubSubBroker {
	return &PubSubBroker{topics: make(map[string]*pubsub.Topic)}
}

func (b *PubSubBroker) ensureTopic(ctx context.Context, name string) (*pubsub.Topic, error) {
	b.mu.Lock()
	if t, ok := b.topics[name]; ok {
		b.mu.Unlock()
		return t, nil
	}
	b.mu.Unlock()

	client, err := config.GetClient(ctx)
	if err != nil {
		return nil, err
	}
	t, err := config.CreateTopicIfNotExists(client, name)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.topics[name] = t
	b.mu.Unlock()
	return t, nil
}

func (b *PubSubBroker) Enqueue(ctx context.Context, topic string, payload []byte, policy RetryPolicy) (string, error) {
	t, err := b.ensureTopic(ctx, topic)
	if err != nil {
		return "", err
	}
	policy = policy.normalize()

	result := t.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			attrCorrelationId: correlationIdFrom(ctx),
			attrMaxAttempts:   strconv.Itoa(policy.MaxAttempts),
			attrBaseDelayMs:   strconv.FormatInt(policy.BaseDelay.Milliseconds(), 10),
			attrMaxDelayMs:    strconv.FormatInt(policy.MaxDelay.Milliseconds(), 10),
		},
	})
	return result.Get(ctx)
}

// Consume blocks on a dedicated subscription ("<topic>-worker") until
// the context is done. One outstanding message at a time per instance;
// scale by running more instances.
func (b *PubSubBroker) Consume(ctx context.Context, topic string, handler Handler) error {
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}
	t, err := b.ensureTopic(ctx, topic)
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(client, topic+"-worker", t)
	if err != nil {
		return err
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 1

	logger := config.GetLogger()
	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		msg := Message{
			ID:            m.ID,
			Topic:         topic,
			Payload:       m.Data,
			CorrelationId: m.Attributes[attrCorrelationId],
			Policy:        policyFromAttributes(m.Attributes),
		}
		if err := handler(ctx, msg); err != nil {
			logger.WithFields(logrus.Fields{
				"module":     "queue/pubsub.go",
				"topic":      topic,
				"message_id": m.ID,
			}).Error("handler failed: " + err.Error())
		}
		// Terminal outcome already persisted by the handler; a nack
		// here would only replay a finished unit of work.
		m.Ack()
	})
}

func policyFromAttributes(attrs map[string]string) RetryPolicy {
	policy := DefaultRetryPolicy()
	if v, err := strconv.Atoi(attrs[attrMaxAttempts]); err == nil && v > 0 {
		policy.MaxAttempts = v
	}
	if v, err := strconv.ParseInt(attrs[attrBaseDelayMs], 10, 64); err == nil && v > 0 {
		policy.BaseDelay = time.Duration(v) * time.Millisecond
	}
	if v, err := strconv.ParseInt(attrs[attrMaxDelayMs], 10, 64); err == nil && v > 0 {
		policy.MaxDelay = time.Duration(v) * time.Millisecond
	}
	return policy
}
