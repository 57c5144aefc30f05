package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/utils"
)

type Notification struct {
	ID              string           `gorm:"primaryKey;size:36" json:"id"`
	OrganizationId  string           `gorm:"index;size:36;not null" json:"organization_id"`
	RecipientUserId string           `gorm:"index;size:36;not null" json:"recipient_user_id"`
	ActorUserId     *string          `gorm:"size:36" json:"actor_user_id"`
	Type            NotificationType `gorm:"size:40;not null" json:"type"`
	Metadata        string           `gorm:"type:text" json:"metadata"`
	ReadAt          *time.Time       `json:"read_at"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func notificationTypeForApproval(status ApprovalStatus) (NotificationType, bool) {
	switch status {
	case ApprovalStatusReview:
		return NotificationDocumentReviewRequested, true
	case ApprovalStatusApproved:
		return NotificationDocumentApproved, true
	case ApprovalStatusDraft:
		return NotificationDocumentSentBack, true
	}
	return "", false
}

// NotifyApproval creates one notification per organization member,
// excluding the actor. Zero recipients is not an error.
func NotifyApproval(ctx context.Context, organizationId string, actorUserId string, documentId string, title string, status ApprovalStatus) (int, error) {
	notificationType, ok := notificationTypeForApproval(status)
	if !ok {
		return 0, utils.NewValidationError("no notification type for status %q", status)
	}

	members, err := ListOrganizationMembers(ctx, organizationId)
	if err != nil {
		return 0, utils.NewInternalError("resolving members", err)
	}

	metadata, err := json.Marshal(map[string]interface{}{
		"document_id": documentId,
		"title":       title,
		"status":      status,
	})
	if err != nil {
		return 0, utils.NewInternalError("marshalling notification metadata", err)
	}

	actor := utils.NilIfEmpty(actorUserId)

	notifications := make([]Notification, 0, len(members))
	for _, member := range members {
		if member.ID == actorUserId {
			continue
		}
		notifications = append(notifications, Notification{
			ID:              newID(),
			OrganizationId:  organizationId,
			RecipientUserId: member.ID,
			ActorUserId:     actor,
			Type:            notificationType,
			Metadata:        string(metadata),
		})
	}
	if len(notifications) == 0 {
		return 0, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&notifications).Error; err != nil {
		return 0, utils.NewInternalError("creating notifications", err)
	}
	return len(notifications), nil
}

// NotifyApprovalBestEffort wraps NotifyApproval with log-and-continue
// semantics. The approval transition has already committed; a failed
// fan-out must not surface.
func NotifyApprovalBestEffort(ctx context.Context, organizationId string, actorUserId string, documentId string, title string, status ApprovalStatus) int {
	count, err := NotifyApproval(ctx, organizationId, actorUserId, documentId, title, status)
	if err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"module":          "notification.go",
			"funcName":        "NotifyApprovalBestEffort",
			"organization_id": organizationId,
			"document_id":     documentId,
			"status":          status,
		}).Error("notification fan-out failed: " + err.Error())
		return 0
	}
	return count
}

// ListNotifications returns the caller's notifications newest-first,
// with the total under the filter and the caller's unread count.
func ListNotifications(ctx context.Context, unreadOnly bool, page PageRequest) ([]*Notification, int64, int64, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, 0, 0, err
	}
	userId, err := requireUserId(ctx)
	if err != nil {
		return nil, 0, 0, err
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&Notification{}).
		Where("organization_id = ? AND recipient_user_id = ?", organizationId, userId)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var notifications []*Notification
	total, err := paginateAndCount(query.Order("created_at DESC, id DESC"), page, &notifications)
	if err != nil {
		return nil, 0, 0, utils.NewInternalError("listing notifications", err)
	}

	var unread int64
	err = db.WithContext(ctx).Model(&Notification{}).
		Where("organization_id = ? AND recipient_user_id = ? AND read_at IS NULL", organizationId, userId).
		Count(&unread).Error
	if err != nil {
		return nil, 0, 0, utils.NewInternalError("counting unread notifications", err)
	}
	return notifications, total, unread, nil
}

// MarkNotificationRead stamps readAt for the caller's own
// notification. Affects zero or one row; zero is NOT_FOUND so one user
// can never mark another user's notification.
func MarkNotificationRead(ctx context.Context, id string) (*Notification, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}
	userId, err := requireUserId(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	now := time.Now().UTC()
	result := db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND organization_id = ? AND recipient_user_id = ? AND read_at IS NULL",
			id, organizationId, userId).
		Update("read_at", now)
	if result.Error != nil {
		return nil, utils.NewInternalError("marking notification read", result.Error)
	}
	if result.RowsAffected == 0 {
		// Distinguish already-read from absent so marking twice stays
		// idempotent rather than erroring.
		var existing Notification
		err := db.WithContext(ctx).
			Where("id = ? AND organization_id = ? AND recipient_user_id = ?", id, organizationId, userId).
			First(&existing).Error
		if err != nil {
			return nil, utils.NewNotFoundError("notification %s not found", id)
		}
		return &existing, nil
	}

	var notification Notification
	err = db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, organizationId).
		First(&notification).Error
	if err != nil {
		return nil, utils.NewInternalError("reloading notification", err)
	}
	return &notification, nil
}
