package models

import (
	"context"
	"time"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/utils"
)

// ApprovalComment is written once at the moment of an approval
// transition and never mutated.
type ApprovalComment struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	OrganizationId string         `gorm:"index;size:36;not null" json:"organization_id"`
	DocumentId     string         `gorm:"index;size:36;not null" json:"document_id"`
	ActorUserId    string         `gorm:"size:36;not null" json:"actor_user_id"`
	Status         ApprovalStatus `gorm:"size:20;not null" json:"status"`
	Note           string         `gorm:"type:text;not null" json:"note"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// ListApprovalComments returns a document's comments newest-first.
func ListApprovalComments(ctx context.Context, documentId string, page PageRequest) ([]*ApprovalComment, int64, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, 0, err
	}

	if err := utils.ValidateResourceId[Document](ctx, organizationId, documentId); err != nil {
		return nil, 0, utils.NewNotFoundError("document %s not found", documentId)
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&ApprovalComment{}).
		Where("organization_id = ? AND document_id = ?", organizationId, documentId)

	var comments []*ApprovalComment
	total, err := paginateAndCount(query.Order("created_at DESC, id DESC"), page, &comments)
	if err != nil {
		return nil, 0, utils.NewInternalError("listing approval comments", err)
	}
	return comments, total, nil
}
