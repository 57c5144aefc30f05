package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/models"
	"github.com/contractflow/proposals_backend/queue"
	"github.com/contractflow/proposals_backend/utils"
)

// DraftTopic is the queue topic for generation requests.
const DraftTopic = "draft-generation"

func newSectionID() string { return uuid.NewString() }

// DraftMessage is the queue payload. It references the durable
// DraftJob record; the record, not the message, is the source of truth
// for what happened to a request.
type DraftMessage struct {
	DraftJobId     string `json:"draft_job_id"`
	DocumentId     string `json:"document_id"`
	OrganizationId string `json:"organization_id"`
	ActorUserId    string `json:"actor_user_id"`
}

// GeneratedSection is one produced draft section.
type GeneratedSection struct {
	Heading string
	Body    string
}

// DraftGenerator produces the draft content for a document. The real
// implementation calls an external model endpoint; tests and local
// runs use the stub.
type DraftGenerator interface {
	Generate(ctx context.Context, document *models.Document) (*GeneratedSection, error)
}

// StubDraftGenerator produces a deterministic placeholder section.
type StubDraftGenerator struct{}

func (StubDraftGenerator) Generate(ctx context.Context, document *models.Document) (*GeneratedSection, error) {
	return &GeneratedSection{
		Heading: fmt.Sprintf("Draft v%d", document.Version+1),
		Body:    fmt.Sprintf("Generated draft for %q.", document.Title),
	}, nil
}

const defaultGenerationTimeoutSeconds = 120

func generationTimeout() time.Duration {
	if v := os.Getenv("DRAFT_GENERATION_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return defaultGenerationTimeoutSeconds * time.Second
}

// DecodeDraftMessage validates the wire payload. A payload that cannot
// be decoded is poison; retrying it cannot help.
func DecodeDraftMessage(payload []byte) (*DraftMessage, error) {
	var msg DraftMessage
	if err := utils.UnmarshalFromJSON(payload, &msg); err != nil {
		return nil, utils.NewValidationError("malformed draft message: %v", err)
	}
	if msg.DraftJobId == "" || msg.DocumentId == "" || msg.OrganizationId == "" {
		return nil, utils.NewValidationError("draft message missing required ids")
	}
	return &msg, nil
}

// messageContext rebuilds a request-like context on the worker side so
// tenant scoping and audit attribution work as they do in handlers.
func messageContext(ctx context.Context, msg *DraftMessage, correlationId string) context.Context {
	ctx = utils.SetOrganizationIdInContext(ctx, msg.OrganizationId)
	if msg.ActorUserId != "" {
		ctx = utils.SetUserIdInContext(ctx, msg.ActorUserId)
	}
	if correlationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
	}
	return ctx
}

// ProcessDraftMessage runs one generation attempt. An error return is
// a transient failure for the retry wrapper; terminal failure writes
// happen only in FinalizeDraftFailure after exhaustion.
func ProcessDraftMessage(ctx context.Context, generator DraftGenerator, qmsg queue.Message) error {
	msg, err := DecodeDraftMessage(qmsg.Payload)
	if err != nil {
		// Poison message: log and drop rather than burn retries.
		config.LogError(config.GetLogger(), "draftWorkflow.go", "ProcessDraftMessage",
			"decode", string(qmsg.Payload), err)
		return nil
	}
	ctx = messageContext(ctx, msg, qmsg.CorrelationId)
	logger := config.GetLogger()

	if err := models.MarkDraftJobProcessing(ctx, msg.DraftJobId); err != nil {
		return err
	}
	if err := models.UpdateDocumentGenerationStatus(ctx, msg.DocumentId, models.GenerationStatusProcessing); err != nil {
		return err
	}

	document, err := models.GetDocument(ctx, msg.DocumentId)
	if err != nil {
		return err
	}

	// Each attempt gets its own wall-clock deadline; the broker policy
	// alone would let a hung generation call block the worker forever.
	genCtx, cancel := context.WithTimeout(ctx, generationTimeout())
	defer cancel()

	section, err := generator.Generate(genCtx, document)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("generation timed out after %s: %w", generationTimeout(), err)
		}
		return fmt.Errorf("generation failed: %w", err)
	}

	if err := finalizeDraftSuccess(ctx, msg, document, section); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"module":          "draftWorkflow.go",
		"draft_job_id":    msg.DraftJobId,
		"document_id":     msg.DocumentId,
		"organization_id": msg.OrganizationId,
		"correlation_id":  qmsg.CorrelationId,
	}).Info("draft generation succeeded")
	return nil
}

// finalizeDraftSuccess commits the whole success outcome atomically:
// one new section at the next dense order, version+1, document moved
// to review with generationStatus SUCCEEDED, job SUCCEEDED. The audit
// write runs after commit, best-effort.
func finalizeDraftSuccess(ctx context.Context, msg *DraftMessage, document *models.Document, section *GeneratedSection) error {
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxOrder int
		err := tx.Model(&models.DocumentSection{}).
			Where("document_id = ? AND organization_id = ?", msg.DocumentId, msg.OrganizationId).
			Select("COALESCE(MAX(sort_order), 0)").
			Scan(&maxOrder).Error
		if err != nil {
			return err
		}

		newSection := models.DocumentSection{
			ID:             newSectionID(),
			OrganizationId: msg.OrganizationId,
			DocumentId:     msg.DocumentId,
			Order:          maxOrder + 1,
			Heading:        section.Heading,
			Body:           section.Body,
		}
		if err := tx.Create(&newSection).Error; err != nil {
			return err
		}

		err = tx.Model(&models.Document{}).
			Where("id = ? AND organization_id = ?", msg.DocumentId, msg.OrganizationId).
			Updates(map[string]interface{}{
				"version":           gorm.Expr("version + 1"),
				"status":            models.DocumentStatusReview,
				"generation_status": models.GenerationStatusSucceeded,
			}).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.DraftJob{}).
			Where("id = ? AND organization_id = ?", msg.DraftJobId, msg.OrganizationId).
			Updates(map[string]interface{}{
				"status":     models.DraftJobStatusSucceeded,
				"last_error": nil,
			}).Error
	})
	if err != nil {
		return fmt.Errorf("finalizing draft success: %w", err)
	}

	models.RecordAuditEventBestEffort(ctx, models.NewAuditEvent{
		Action:     models.AuditActionDraftSucceeded,
		TargetType: models.AuditTargetDraft,
		TargetId:   &msg.DraftJobId,
		Metadata: map[string]interface{}{
			"document_id": msg.DocumentId,
			"version":     document.Version + 1,
		},
	})
	return nil
}

// FinalizeDraftFailure is the exhaustion path: every attempt failed,
// so the failure becomes user-visible. Job FAILED with the last error,
// document generationStatus FAILED, one DRAFT_FAILED audit event.
func FinalizeDraftFailure(ctx context.Context, qmsg queue.Message, lastErr error) {
	logger := config.GetLogger()

	msg, err := DecodeDraftMessage(qmsg.Payload)
	if err != nil {
		config.LogError(logger, "draftWorkflow.go", "FinalizeDraftFailure",
			"decode", string(qmsg.Payload), err)
		return
	}
	ctx = messageContext(ctx, msg, qmsg.CorrelationId)

	reason := "generation failed"
	if lastErr != nil {
		reason = lastErr.Error()
	}

	if err := models.MarkDraftJobFailed(ctx, msg.DraftJobId, reason); err != nil {
		config.LogError(logger, "draftWorkflow.go", "FinalizeDraftFailure",
			"MarkDraftJobFailed", msg.DraftJobId, err)
	}
	if err := models.UpdateDocumentGenerationStatus(ctx, msg.DocumentId, models.GenerationStatusFailed); err != nil {
		config.LogError(logger, "draftWorkflow.go", "FinalizeDraftFailure",
			"UpdateDocumentGenerationStatus", msg.DocumentId, err)
	}

	models.RecordAuditEventBestEffort(ctx, models.NewAuditEvent{
		Action:     models.AuditActionDraftFailed,
		TargetType: models.AuditTargetDraft,
		TargetId:   &msg.DraftJobId,
		Metadata: map[string]interface{}{
			"document_id": msg.DocumentId,
			"reason":      reason,
		},
	})

	logger.WithFields(logrus.Fields{
		"module":          "draftWorkflow.go",
		"draft_job_id":    msg.DraftJobId,
		"document_id":     msg.DocumentId,
		"organization_id": msg.OrganizationId,
		"correlation_id":  qmsg.CorrelationId,
		"reason":          reason,
	}).Error("draft generation failed after all attempts")
}
