package models

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/utils"
)

type Document struct {
	ID               string           `gorm:"primaryKey;size:36" json:"id"`
	OrganizationId   string           `gorm:"index;size:36;not null" json:"organization_id"`
	CreatedById      string           `gorm:"size:36;not null" json:"created_by_id"`
	Title            string           `gorm:"size:255;not null" json:"title" binding:"required"`
	Type             DocumentType     `gorm:"size:20;not null" json:"type"`
	Status           DocumentStatus   `gorm:"size:20;not null" json:"status"`
	ApprovalStatus   ApprovalStatus   `gorm:"size:20;not null" json:"approval_status"`
	GenerationStatus GenerationStatus `gorm:"size:20;not null" json:"generation_status"`
	Version          int              `gorm:"not null;default:1" json:"version"`
	PublicToken      *string          `gorm:"size:64;index" json:"public_token,omitempty"`
	IsPublic         bool             `gorm:"not null;default:false" json:"is_public"`
	Sections         []DocumentSection `gorm:"foreignKey:DocumentId" json:"sections,omitempty"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// DocumentSection order is a dense 1-based sequence. Replace operations
// re-index; section ids are not stable identifiers across replaces.
type DocumentSection struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	OrganizationId string    `gorm:"index;size:36;not null" json:"organization_id"`
	DocumentId     string    `gorm:"index;size:36;not null" json:"document_id"`
	Order          int       `gorm:"column:sort_order;not null" json:"order"`
	Heading        string    `gorm:"size:255" json:"heading"`
	Body           string    `gorm:"type:text" json:"body"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDocument struct {
	Title string `json:"title" binding:"required"`
	Type  string `json:"type" binding:"required"`
}

type UpdateDocumentInput struct {
	Title  *string `json:"title"`
	Status *string `json:"status"`
}

type NewDocumentSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

func CreateDocument(ctx context.Context, input *NewDocument) (*Document, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}
	userId, err := requireUserId(ctx)
	if err != nil {
		return nil, err
	}

	title := utils.NormalizeTitle(input.Title)
	if title == "" {
		return nil, utils.NewValidationError("title is required")
	}
	docType := DocumentType(input.Type)
	if !docType.Valid() {
		return nil, utils.NewValidationError("invalid document type %q", input.Type)
	}
	if err := utils.ValidateUnique[Document](ctx, organizationId, "title", title, ""); err != nil {
		return nil, err
	}

	document := Document{
		ID:               newID(),
		OrganizationId:   organizationId,
		CreatedById:      userId,
		Title:            title,
		Type:             docType,
		Status:           DocumentStatusDraft,
		ApprovalStatus:   ApprovalStatusDraft,
		GenerationStatus: GenerationStatusIdle,
		Version:          1,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&document).Error; err != nil {
		return nil, utils.NewInternalError("creating document", err)
	}

	RecordAuditEventBestEffort(ctx, NewAuditEvent{
		Action:     AuditActionDocumentCreated,
		TargetType: AuditTargetDocument,
		TargetId:   &document.ID,
		Metadata:   map[string]interface{}{"title": title, "type": docType},
	})
	return &document, nil
}

func GetDocument(ctx context.Context, id string) (*Document, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	var document Document
	err = db.WithContext(ctx).
		Where("organization_id = ?", organizationId).
		Preload("Sections", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("sort_order ASC")
		}).
		First(&document, "id = ?", id).Error
	if err != nil {
		return nil, utils.NewNotFoundError("document %s not found", id)
	}
	return &document, nil
}

type DocumentFilter struct {
	Status *DocumentStatus
	Type   *DocumentType
}

func ListDocuments(ctx context.Context, filter DocumentFilter, page PageRequest) ([]*Document, int64, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, 0, err
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&Document{}).
		Where("organization_id = ?", organizationId)
	if filter.Status != nil {
		if !filter.Status.Valid() {
			return nil, 0, utils.NewValidationError("invalid status %q", *filter.Status)
		}
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		if !filter.Type.Valid() {
			return nil, 0, utils.NewValidationError("invalid type %q", *filter.Type)
		}
		query = query.Where("type = ?", *filter.Type)
	}

	var documents []*Document
	total, err := paginateAndCount(query.Order("updated_at DESC"), page, &documents)
	if err != nil {
		return nil, 0, utils.NewInternalError("listing documents", err)
	}
	return documents, total, nil
}

func UpdateDocument(ctx context.Context, id string, input *UpdateDocumentInput) (*Document, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}

	document, err := utils.FetchModel[Document](ctx, organizationId, id)
	if err != nil {
		return nil, utils.NewNotFoundError("document %s not found", id)
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		title := utils.NormalizeTitle(*input.Title)
		if title == "" {
			return nil, utils.NewValidationError("title cannot be empty")
		}
		if err := utils.ValidateUnique[Document](ctx, organizationId, "title", title, id); err != nil {
			return nil, err
		}
		updates["title"] = title
	}
	if input.Status != nil {
		status := DocumentStatus(*input.Status)
		if !status.Valid() {
			return nil, utils.NewValidationError("invalid status %q", *input.Status)
		}
		updates["status"] = status
	}
	if len(updates) == 0 {
		return document, nil
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&Document{}).
		Where("id = ? AND organization_id = ?", id, organizationId).
		Updates(updates).Error
	if err != nil {
		return nil, utils.NewInternalError("updating document", err)
	}

	RecordAuditEventBestEffort(ctx, NewAuditEvent{
		Action:     AuditActionDocumentUpdated,
		TargetType: AuditTargetDocument,
		TargetId:   &document.ID,
		Metadata:   map[string]interface{}{"fields": updateKeys(updates)},
	})
	return utils.FetchModel[Document](ctx, organizationId, id)
}

func updateKeys(updates map[string]interface{}) []string {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	return keys
}

func DeleteDocument(ctx context.Context, id string) (*Document, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}

	document, err := utils.FetchModel[Document](ctx, organizationId, id)
	if err != nil {
		return nil, utils.NewNotFoundError("document %s not found", id)
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ? AND organization_id = ?", id, organizationId).
			Delete(&DocumentSection{}).Error; err != nil {
			return err
		}
		return tx.Where("organization_id = ?", organizationId).
			Delete(&Document{}, "id = ?", id).Error
	})
	if err != nil {
		return nil, utils.NewInternalError("deleting document", err)
	}
	return document, nil
}

// ReplaceDocumentSections swaps the document's sections wholesale.
// Incoming order is positional; stored order is re-indexed densely
// from 1 regardless of what the caller sends.
func ReplaceDocumentSections(ctx context.Context, documentId string, inputs []NewDocumentSection) (*Document, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}

	document, err := utils.FetchModel[Document](ctx, organizationId, documentId)
	if err != nil {
		return nil, utils.NewNotFoundError("document %s not found", documentId)
	}

	sections := make([]DocumentSection, 0, len(inputs))
	for i, in := range inputs {
		sections = append(sections, DocumentSection{
			ID:             newID(),
			OrganizationId: organizationId,
			DocumentId:     documentId,
			Order:          i + 1,
			Heading:        in.Heading,
			Body:           in.Body,
		})
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ? AND organization_id = ?", documentId, organizationId).
			Delete(&DocumentSection{}).Error; err != nil {
			return err
		}
		if len(sections) > 0 {
			if err := tx.Create(&sections).Error; err != nil {
				return err
			}
		}
		return tx.Model(&Document{}).
			Where("id = ? AND organization_id = ?", documentId, organizationId).
			Update("version", gorm.Expr("version + 1")).Error
	})
	if err != nil {
		return nil, utils.NewInternalError("replacing sections", err)
	}

	RecordAuditEventBestEffort(ctx, NewAuditEvent{
		Action:     AuditActionDocumentSectionsUpdated,
		TargetType: AuditTargetDocumentSection,
		TargetId:   &document.ID,
		Metadata:   map[string]interface{}{"section_count": len(sections)},
	})
	return GetDocument(ctx, documentId)
}

// SetDocumentSharing toggles the public link. Enabling mints a token
// on first use; disabling keeps the token so re-enabling restores the
// same link.
func SetDocumentSharing(ctx context.Context, documentId string, isPublic bool) (*Document, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}

	document, err := utils.FetchModel[Document](ctx, organizationId, documentId)
	if err != nil {
		return nil, utils.NewNotFoundError("document %s not found", documentId)
	}

	updates := map[string]interface{}{"is_public": isPublic}
	if isPublic && document.PublicToken == nil {
		token, err := utils.GenerateToken(24)
		if err != nil {
			return nil, utils.NewInternalError("minting public token", err)
		}
		updates["public_token"] = token
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&Document{}).
		Where("id = ? AND organization_id = ?", documentId, organizationId).
		Updates(updates).Error
	if err != nil {
		return nil, utils.NewInternalError("updating sharing", err)
	}

	RecordAuditEventBestEffort(ctx, NewAuditEvent{
		Action:     AuditActionDocumentSharingUpdated,
		TargetType: AuditTargetDocument,
		TargetId:   &document.ID,
		Metadata:   map[string]interface{}{"is_public": isPublic},
	})
	return utils.FetchModel[Document](ctx, organizationId, documentId)
}

// GetDocumentByPublicToken serves the public share link. Tenant scope
// does not apply here; the token is the capability.
func GetDocumentByPublicToken(ctx context.Context, token string) (*Document, error) {
	if token == "" {
		return nil, utils.NewValidationError("token is required")
	}
	db := config.GetDB()
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	var document Document
	err := db.WithContext(ctx).
		Where("public_token = ? AND is_public = ?", token, true).
		Preload("Sections", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("sort_order ASC")
		}).
		First(&document).Error
	if err != nil {
		return nil, utils.NewNotFoundError("document not found")
	}
	return &document, nil
}

/* Approval state machine */

// approvalTransitions is the full table of allowed distinct
// transitions. APPROVED is terminal. Self-transitions are handled
// before the table lookup as no-op successes.
var approvalTransitions = map[ApprovalStatus]map[ApprovalStatus]bool{
	ApprovalStatusDraft: {
		ApprovalStatusReview: true,
	},
	ApprovalStatusReview: {
		ApprovalStatusApproved: true,
		ApprovalStatusDraft:    true,
	},
	ApprovalStatusApproved: {},
}

// CanTransitionApproval reports whether from -> to is a legal distinct
// transition. Role checks happen at the boundary; this table is
// role-agnostic.
func CanTransitionApproval(from, to ApprovalStatus) bool {
	allowed, ok := approvalTransitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

type ApprovalResult struct {
	Document *Document
	Comment  *ApprovalComment
	// Changed is false for a self-transition no-op.
	Changed bool
	// NotifiedCount is how many members the best-effort fan-out reached.
	NotifiedCount int
}

// ChangeApprovalStatus validates the transition, persists the new
// status, appends one ApprovalComment when a note is supplied, then
// audits and fans out notifications. The status write commits before
// any side effect runs; audit and fan-out failures never roll it back.
func ChangeApprovalStatus(ctx context.Context, documentId string, target ApprovalStatus, note string) (*ApprovalResult, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}
	userId, err := requireUserId(ctx)
	if err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, utils.NewValidationError("invalid approval status %q", target)
	}
	// A whitespace-only note must not produce a comment.
	note = strings.TrimSpace(note)

	document, err := utils.FetchModel[Document](ctx, organizationId, documentId)
	if err != nil {
		return nil, utils.NewNotFoundError("document %s not found", documentId)
	}

	if document.ApprovalStatus == target {
		return &ApprovalResult{Document: document, Changed: false}, nil
	}
	if !CanTransitionApproval(document.ApprovalStatus, target) {
		return nil, utils.NewConflictError("cannot change approval from %s to %s",
			document.ApprovalStatus, target)
	}

	var comment *ApprovalComment
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Document{}).
			Where("id = ? AND organization_id = ?", documentId, organizationId).
			Update("approval_status", target).Error; err != nil {
			return err
		}
		if note != "" {
			comment = &ApprovalComment{
				ID:             newID(),
				OrganizationId: organizationId,
				DocumentId:     documentId,
				ActorUserId:    userId,
				Status:         target,
				Note:           note,
			}
			return tx.Create(comment).Error
		}
		return nil
	})
	if err != nil {
		return nil, utils.NewInternalError("changing approval status", err)
	}
	previous := document.ApprovalStatus
	document.ApprovalStatus = target

	RecordAuditEventBestEffort(ctx, NewAuditEvent{
		Action:     AuditActionDocumentApprovalUpdated,
		TargetType: AuditTargetDocument,
		TargetId:   &document.ID,
		Metadata:   map[string]interface{}{"from": previous, "to": target},
	})

	notified := NotifyApprovalBestEffort(ctx, organizationId, userId, documentId, document.Title, target)

	return &ApprovalResult{
		Document:      document,
		Comment:       comment,
		Changed:       true,
		NotifiedCount: notified,
	}, nil
}
