package models

import (
	"context"
	"os"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/utils"
)

// DraftJob is the durable record of one generation request. It
// outlives the broker's own message bookkeeping so clients can poll
// "what happened to request X" after the message is gone.
type DraftJob struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	OrganizationId string         `gorm:"index;size:36;not null" json:"organization_id"`
	DocumentId     string         `gorm:"index;size:36;not null" json:"document_id"`
	Status         DraftJobStatus `gorm:"size:20;not null;index" json:"status"`
	// Attempts counts manual retries only. Broker-internal redelivery
	// never touches it.
	Attempts  int        `gorm:"not null;default:0" json:"attempts"`
	LastError *string    `gorm:"size:1000" json:"last_error"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

const defaultDraftJobMaxRetries = 5

func draftJobMaxRetries() int {
	if v := os.Getenv("DRAFT_JOB_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultDraftJobMaxRetries
}

func CreateDraftJob(ctx context.Context, documentId string) (*DraftJob, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}

	if err := utils.ValidateResourceId[Document](ctx, organizationId, documentId); err != nil {
		return nil, utils.NewNotFoundError("document %s not found", documentId)
	}

	job := DraftJob{
		ID:             newID(),
		OrganizationId: organizationId,
		DocumentId:     documentId,
		Status:         DraftJobStatusQueued,
		Attempts:       0,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, utils.NewInternalError("creating draft job", err)
	}
	return &job, nil
}

func GetDraftJob(ctx context.Context, id string) (*DraftJob, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}
	job, err := utils.FetchModel[DraftJob](ctx, organizationId, id)
	if err != nil {
		return nil, utils.NewNotFoundError("draft job %s not found", id)
	}
	return job, nil
}

// The worker is the sole writer of these transitions during an
// attempt, so the writes are unconditional last-write-wins. Calling
// them twice with the same arguments lands in the same state.

func MarkDraftJobProcessing(ctx context.Context, id string) error {
	return updateDraftJobStatus(ctx, id, map[string]interface{}{
		"status": DraftJobStatusProcessing,
	})
}

func MarkDraftJobSucceeded(ctx context.Context, id string) error {
	return updateDraftJobStatus(ctx, id, map[string]interface{}{
		"status":     DraftJobStatusSucceeded,
		"last_error": nil,
	})
}

func MarkDraftJobFailed(ctx context.Context, id string, reason string) error {
	if len(reason) > 1000 {
		reason = reason[:1000]
	}
	return updateDraftJobStatus(ctx, id, map[string]interface{}{
		"status":     DraftJobStatusFailed,
		"last_error": reason,
	})
}

func updateDraftJobStatus(ctx context.Context, id string, updates map[string]interface{}) error {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&DraftJob{}).
		Where("id = ? AND organization_id = ?", id, organizationId).
		Updates(updates).Error
	if err != nil {
		return utils.NewInternalError("updating draft job", err)
	}
	return nil
}

// RetryDraftJob re-queues a FAILED job under its existing id. Any
// other current status is a conflict, and retries are capped.
// The caller re-enqueues a fresh queue message from the returned job.
func RetryDraftJob(ctx context.Context, id string) (*DraftJob, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}

	job, err := utils.FetchModel[DraftJob](ctx, organizationId, id)
	if err != nil {
		return nil, utils.NewNotFoundError("draft job %s not found", id)
	}
	if job.Status != DraftJobStatusFailed {
		return nil, utils.NewConflictError("draft job %s is %s, only FAILED jobs can be retried", id, job.Status)
	}
	if job.Attempts >= draftJobMaxRetries() {
		return nil, utils.NewConflictError("draft job %s has exhausted its %d retries", id, draftJobMaxRetries())
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&DraftJob{}).
		Where("id = ? AND organization_id = ? AND status = ?", id, organizationId, DraftJobStatusFailed).
		Updates(map[string]interface{}{
			"status":     DraftJobStatusQueued,
			"last_error": nil,
			"attempts":   gorm.Expr("attempts + 1"),
		}).Error
	if err != nil {
		return nil, utils.NewInternalError("retrying draft job", err)
	}

	job, err = utils.FetchModel[DraftJob](ctx, organizationId, id)
	if err != nil {
		return nil, utils.NewInternalError("reloading draft job", err)
	}
	return job, nil
}

type DraftJobFilter struct {
	DocumentId *string
	Status     *DraftJobStatus
}

func ListDraftJobs(ctx context.Context, filter DraftJobFilter, page PageRequest) ([]*DraftJob, int64, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, 0, err
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, utils.NewValidationError("invalid draft job status %q", *filter.Status)
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&DraftJob{}).
		Where("organization_id = ?", organizationId)
	if filter.DocumentId != nil && *filter.DocumentId != "" {
		query = query.Where("document_id = ?", *filter.DocumentId)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var jobs []*DraftJob
	total, err := paginateAndCount(query.Order("created_at DESC, id DESC"), page, &jobs)
	if err != nil {
		return nil, 0, utils.NewInternalError("listing draft jobs", err)
	}
	return jobs, total, nil
}

// UpdateDocumentGenerationStatus keeps Document.generationStatus in
// step with the job lifecycle. It reflects only the most recent
// attempt; there is no history.
func UpdateDocumentGenerationStatus(ctx context.Context, documentId string, status GenerationStatus) error {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return err
	}
	if !status.Valid() {
		return utils.NewValidationError("invalid generation status %q", status)
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&Document{}).
		Where("id = ? AND organization_id = ?", documentId, organizationId).
		Update("generation_status", status).Error
	if err != nil {
		return utils.NewInternalError("updating generation status", err)
	}
	return nil
}
