package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/queue"
	"github.com/contractflow/proposals_backend/workflow"
)

// runDraftWorker consumes draft generation messages until ctx is done.
// Consume exits on broker errors, so keep restarting with a pause.
func runDraftWorker(ctx context.Context, worker queue.Worker) {
	logger := config.GetLogger()
	generator := workflow.StubDraftGenerator{}

	handler := queue.WithRetry(func(hctx context.Context, msg queue.Message) error {
		release := claimDocumentLock(hctx, msg)
		defer release()
		return workflow.ProcessDraftMessage(hctx, generator, msg)
	}, func(hctx context.Context, msg queue.Message, lastErr error) {
		workflow.FinalizeDraftFailure(hctx, msg, lastErr)
	})

	for {
		err := worker.Consume(ctx, workflow.DraftTopic, handler)
		if ctx.Err() != nil {
			return
		}
		logger.WithFields(logrus.Fields{"field": "runDraftWorker"}).
			Warn("draft consumer stopped, restarting: " + err.Error())
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// claimDocumentLock takes a best-effort per-document lock so two workers
// don't generate into the same document at once. Redis being down must
// not stop processing; the success path commits in one transaction.
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
