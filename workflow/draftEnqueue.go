package workflow

import (
	"context"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/models"
	"github.com/contractflow/proposals_backend/queue"
	"github.com/contractflow/proposals_backend/utils"
)

// EnqueueDraft admits one generation request: durable DraftJob first,
// then the queue message referencing it, then the observable QUEUED
// status and the DRAFT_ENQUEUED audit event. The job record is created
// before publishing so a publish failure leaves a record a later
// retry can pick up.
func EnqueueDraft(ctx context.Context, q queue.Queue, documentId string) (*models.DraftJob, error) {
	job, err := models.CreateDraftJob(ctx, documentId)
	if err != nil {
		return nil, err
	}
	if err := publishDraftJob(ctx, q, job); err != nil {
		finalizeEnqueueFailure(ctx, job, err)
		return nil, utils.NewInternalError("enqueueing draft generation", err)
	}

	if err := models.UpdateDocumentGenerationStatus(ctx, documentId, models.GenerationStatusQueued); err != nil {
		config.LogError(config.GetLogger(), "draftEnqueue.go", "EnqueueDraft",
			"UpdateDocumentGenerationStatus", documentId, err)
	}

	models.RecordAuditEventBestEffort(ctx, models.NewAuditEvent{
		Action:     models.AuditActionDraftEnqueued,
		TargetType: models.AuditTargetDraft,
		TargetId:   &job.ID,
		Metadata:   map[string]interface{}{"document_id": documentId},
	})
	return job, nil
}

// ReEnqueueDraft publishes a fresh message for a job that RetryDraftJob
// has already flipped back to QUEUED. Same job id, new message.
func ReEnqueueDraft(ctx context.Context, q queue.Queue, job *models.DraftJob) error {
	if err := publishDraftJob(ctx, q, job); err != nil {
		finalizeEnqueueFailure(ctx, job, err)
		return utils.NewInternalError("re-enqueueing draft generation", err)
	}

	if err := models.UpdateDocumentGenerationStatus(ctx, job.DocumentId, models.GenerationStatusQueued); err != nil {
		config.LogError(config.GetLogger(), "draftEnqueue.go", "ReEnqueueDraft",
			"UpdateDocumentGenerationStatus", job.DocumentId, err)
	}

	models.RecordAuditEventBestEffort(ctx, models.NewAuditEvent{
		Action:     models.AuditActionDraftEnqueued,
		TargetType: models.AuditTargetDraft,
		TargetId:   &job.ID,
		Metadata: map[string]interface{}{
			"document_id": job.DocumentId,
			"attempts":    job.Attempts,
		},
	})
	return nil
}

func publishDraftJob(ctx context.Context, q queue.Queue, job *models.DraftJob) error {
	actorUserId, _ := utils.GetUserIdFromContext(ctx)
	payload, err := utils.MarshalToJSON(DraftMessage{
		DraftJobId:     job.ID,
		DocumentId:     job.DocumentId,
		OrganizationId: job.OrganizationId,
		ActorUserId:    actorUserId,
	})
	if err != nil {
		return err
	}
	_, err = q.Enqueue(ctx, DraftTopic, []byte(payload), queue.DefaultRetryPolicy())
	return err
}

// finalizeEnqueueFailure keeps the job record honest when the publish
// itself failed: the worker will never see this message, so the job
// must not sit QUEUED forever.
func finalizeEnqueueFailure(ctx context.Context, job *models.DraftJob, cause error) {
	logger := config.GetLogger()
	if err := models.MarkDraftJobFailed(ctx, job.ID, "enqueue failed: "+cause.Error()); err != nil {
		config.LogError(logger, "draftEnqueue.go", "finalizeEnqueueFailure",
			"MarkDraftJobFailed", job.ID, err)
	}
	if err := models.UpdateDocumentGenerationStatus(ctx, job.DocumentId, models.GenerationStatusFailed); err != nil {
		config.LogError(logger, "draftEnqueue.go", "finalizeEnqueueFailure",
			"UpdateDocumentGenerationStatus", job.DocumentId, err)
	}
}
