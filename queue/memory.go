package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/utils"
)

const memoryTopicBuffer = 128

// MemoryBroker is a channel-backed broker for tests and single-process
// deployments (no PUBSUB_PROJECT_ID configured). Messages survive only
// as long as the process; durability comes from the DraftJob store,
// which is the source of truth either way.
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[string]chan Message
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string]chan Message)}
}

func (b *MemoryBroker) topic(name string) chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan Message, memoryTopicBuffer)
		b.topics[name] = ch
	}
	return ch
}

func (b *MemoryBroker) Enqueue(ctx context.Context, topic string, payload []byte, policy RetryPolicy) (string, error) {
	msg := Message{
		ID:            uuid.NewString(),
		Topic:         topic,
		Payload:       payload,
		CorrelationId: correlationIdFrom(ctx),
		Policy:        policy.normalize(),
	}
	select {
	case b.topic(topic) <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Consume delivers messages one at a time until the context is done.
// Handler errors are logged only; terminal outcomes are the handler's
// responsibility (see WithRetry).
func (b *MemoryBroker) Consume(ctx context.Context, topic string, handler Handler) error {
	ch := b.topic(topic)
	logger := config.GetLogger()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			if err := handler(ctx, msg); err != nil {
				logger.WithFields(logrus.Fields{
					"module":     "queue/memory.go",
					"topic":      topic,
					"message_id": msg.ID,
				}).Error("handler failed: " + err.Error())
			}
		}
	}
}

func correlationIdFrom(ctx context.Context) string {
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		return cid
	}
	return ""
}
