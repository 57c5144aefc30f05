package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/utils"
)

// AuditEvent is append-only. There is deliberately no update or delete
// path anywhere in this file.
type AuditEvent struct {
	ID             string          `gorm:"primaryKey;size:36" json:"id"`
	OrganizationId string          `gorm:"index;size:36;not null" json:"organization_id"`
	ActorUserId    *string         `gorm:"size:36" json:"actor_user_id"`
	Action         AuditAction     `gorm:"size:40;not null;index" json:"action"`
	TargetType     AuditTargetType `gorm:"size:30;not null;index" json:"target_type"`
	TargetId       *string         `gorm:"size:36" json:"target_id"`
	Metadata       string          `gorm:"type:text" json:"metadata"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

type NewAuditEvent struct {
	Action     AuditAction
	TargetType AuditTargetType
	TargetId   *string
	// Metadata is marshalled to JSON text; nil stores an empty object.
	Metadata map[string]interface{}
}

// RecordAuditEvent appends one event to the organization's ledger.
// Actor comes from the context; a missing user id records a system
// event (nil actor).
func RecordAuditEvent(ctx context.Context, input NewAuditEvent) (*AuditEvent, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}
	if !input.Action.Valid() {
		return nil, utils.NewValidationError("invalid audit action %q", input.Action)
	}
	if !input.TargetType.Valid() {
		return nil, utils.NewValidationError("invalid audit target type %q", input.TargetType)
	}

	var actorUserId *string
	if userId, ok := utils.GetUserIdFromContext(ctx); ok && userId != "" {
		actorUserId = &userId
	}

	metadata := "{}"
	if input.Metadata != nil {
		b, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, utils.NewValidationError("audit metadata not serializable: %v", err)
		}
		metadata = string(b)
	}

	event := AuditEvent{
		ID:             newID(),
		OrganizationId: organizationId,
		ActorUserId:    actorUserId,
		Action:         input.Action,
		TargetType:     input.TargetType,
		TargetId:       input.TargetId,
		Metadata:       metadata,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, utils.NewInternalError("recording audit event", err)
	}
	return &event, nil
}

// RecordAuditEventBestEffort logs and swallows failures. Audit writes
// must never fail the primary operation that triggered them.
func RecordAuditEventBestEffort(ctx context.Context, input NewAuditEvent) {
	if _, err := RecordAuditEvent(ctx, input); err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "auditEvent.go", "RecordAuditEventBestEffort",
			string(input.Action), map[string]interface{}{
				"target_id":      input.TargetId,
				"correlation_id": correlationIdFromContextOrNew(ctx),
			}, err)
	}
}

type AuditEventFilter struct {
	Action     *AuditAction
	TargetType *AuditTargetType
	TargetId   *string
}

// ListAuditEvents returns the organization's ledger newest-first, with
// the total count under the same filters.
func ListAuditEvents(ctx context.Context, filter AuditEventFilter, page PageRequest) ([]*AuditEvent, int64, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, 0, err
	}
	if filter.Action != nil && !filter.Action.Valid() {
		return nil, 0, utils.NewValidationError("invalid audit action %q", *filter.Action)
	}
	if filter.TargetType != nil && !filter.TargetType.Valid() {
		return nil, 0, utils.NewValidationError("invalid audit target type %q", *filter.TargetType)
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&AuditEvent{}).
		Where("organization_id = ?", organizationId)
	if filter.Action != nil {
		query = query.Where("action = ?", *filter.Action)
	}
	if filter.TargetType != nil {
		query = query.Where("target_type = ?", *filter.TargetType)
	}
	if filter.TargetId != nil && *filter.TargetId != "" {
		query = query.Where("target_id = ?", *filter.TargetId)
	}

	var events []*AuditEvent
	total, err := paginateAndCount(query.Order("created_at DESC, id DESC"), page, &events)
	if err != nil {
		return nil, 0, utils.NewInternalError("listing audit events", err)
	}
	return events, total, nil
}
