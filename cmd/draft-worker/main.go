// draft-worker runs the draft generation consumer as its own binary for
// deployments that scale the worker separately from the API. It needs
// Pub/Sub configured; the in-process queue only makes sense inside the
// API binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/models"
	"github.com/contractflow/proposals_backend/queue"
	"github.com/contractflow/proposals_backend/workflow"
)

func main() {
	logger := config.GetLogger()

	if !config.PubSubConfigured() {
		fmt.Fprintln(os.Stderr, "pubsub not configured; set PUBSUB_PROJECT_ID")
		os.Exit(1)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	broker := queue.NewPubSubBroker()
	generator := workflow.StubDraftGenerator{}

	handler := queue.WithRetry(func(ctx context.Context, msg queue.Message) error {
		release := claimDocumentLock(ctx, msg)
		defer release()
		return workflow.ProcessDraftMessage(ctx, generator, msg)
	}, func(ctx context.Context, msg queue.Message, lastErr error) {
		workflow.FinalizeDraftFailure(ctx, msg, lastErr)
	})

	logger.WithFields(logrus.Fields{"field": "draft-worker"}).Info("consuming " + workflow.DraftTopic)

	for {
		err := broker.Consume(sigCtx, workflow.DraftTopic, handler)
		if sigCtx.Err() != nil {
			return
		}
		logger.WithFields(logrus.Fields{"field": "draft-worker"}).
			Warn("consumer stopped, restarting: " + err.Error())
		select {
		case <-sigCtx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// claimDocumentLock takes a best-effort per-document lock. Redis being
// down must not stop processing.
func claimDocumentLock(ctx context.Context, msg queue.Message) func() {
	logger := config.GetLogger()
	redisLock := config.GetRedisLock()
	if redisLock == nil {
		return func() {}
	}

	draft, err := workflow.DecodeDraftMessage(msg.Payload)
	if err != nil {
		return func() {}
	}

	lock, err := redisLock.Obtain(ctx, fmt.Sprintf("lock:draft:%s", draft.DocumentId), 3*time.Minute, nil)
	if err != nil {
		if err != redislock.ErrNotObtained {
			logger.WithFields(logrus.Fields{
				"field":       "claimDocumentLock",
				"document_id": draft.DocumentId,
			}).Warn("error obtaining redis lock; proceeding without it: " + err.Error())
		}
		return func() {}
	}
	return func() {
		if releaseErr := lock.Release(ctx); releaseErr != nil && releaseErr != redislock.ErrLockNotHeld {
			logger.WithFields(logrus.Fields{
				"field":       "claimDocumentLock",
				"document_id": draft.DocumentId,
			}).Warn("failed to release redis lock: " + releaseErr.Error())
		}
	}
}
