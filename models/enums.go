package models

import "errors"

type DocumentType string

const (
	DocumentTypeContract DocumentType = "CONTRACT"
	DocumentTypeProposal DocumentType = "PROPOSAL"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeContract, DocumentTypeProposal:
		return true
	}
	return false
}

// DocumentStatus is the commercial lifecycle of a document, independent
// of the approval workflow.
type DocumentStatus string

const (
	DocumentStatusDraft  DocumentStatus = "DRAFT"
	DocumentStatusReview DocumentStatus = "REVIEW"
	DocumentStatusSent   DocumentStatus = "SENT"
	DocumentStatusSigned DocumentStatus = "SIGNED"
	DocumentStatusPaid   DocumentStatus = "PAID"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusDraft, DocumentStatusReview, DocumentStatusSent,
		DocumentStatusSigned, DocumentStatusPaid:
		return true
	}
	return false
}

type ApprovalStatus string

const (
	ApprovalStatusDraft    ApprovalStatus = "DRAFT"
	ApprovalStatusReview   ApprovalStatus = "REVIEW"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalStatusDraft, ApprovalStatusReview, ApprovalStatusApproved:
		return true
	}
	return false
}

type GenerationStatus string

const (
	GenerationStatusIdle       GenerationStatus = "IDLE"
	GenerationStatusQueued     GenerationStatus = "QUEUED"
	GenerationStatusProcessing GenerationStatus = "PROCESSING"
	GenerationStatusFailed     GenerationStatus = "FAILED"
	GenerationStatusSucceeded  GenerationStatus = "SUCCEEDED"
)

func (s GenerationStatus) Valid() bool {
	switch s {
	case GenerationStatusIdle, GenerationStatusQueued, GenerationStatusProcessing,
		GenerationStatusFailed, GenerationStatusSucceeded:
		return true
	}
	return false
}

type DraftJobStatus string

const (
	DraftJobStatusQueued     DraftJobStatus = "QUEUED"
	DraftJobStatusProcessing DraftJobStatus = "PROCESSING"
	DraftJobStatusSucceeded  DraftJobStatus = "SUCCEEDED"
	DraftJobStatusFailed     DraftJobStatus = "FAILED"
)

func (s DraftJobStatus) Valid() bool {
	switch s {
	case DraftJobStatusQueued, DraftJobStatusProcessing,
		DraftJobStatusSucceeded, DraftJobStatusFailed:
		return true
	}
	return false
}

type AuditAction string

const (
	AuditActionInviteCreated            AuditAction = "INVITE_CREATED"
	AuditActionInviteAccepted           AuditAction = "INVITE_ACCEPTED"
	AuditActionMemberRoleUpdated        AuditAction = "MEMBER_ROLE_UPDATED"
	AuditActionMemberRemoved            AuditAction = "MEMBER_REMOVED"
	AuditActionDocumentCreated          AuditAction = "DOCUMENT_CREATED"
	AuditActionDocumentUpdated          AuditAction = "DOCUMENT_UPDATED"
	AuditActionDocumentSectionsUpdated  AuditAction = "DOCUMENT_SECTIONS_UPDATED"
	AuditActionDocumentSharingUpdated   AuditAction = "DOCUMENT_SHARING_UPDATED"
	AuditActionDocumentApprovalUpdated  AuditAction = "DOCUMENT_APPROVAL_UPDATED"
	AuditActionDraftEnqueued            AuditAction = "DRAFT_ENQUEUED"
	AuditActionDraftSucceeded           AuditAction = "DRAFT_SUCCEEDED"
	AuditActionDraftFailed              AuditAction = "DRAFT_FAILED"
)

func (a AuditAction) Valid() bool {
	switch a {
	case AuditActionInviteCreated, AuditActionInviteAccepted,
		AuditActionMemberRoleUpdated, AuditActionMemberRemoved,
		AuditActionDocumentCreated, AuditActionDocumentUpdated,
		AuditActionDocumentSectionsUpdated, AuditActionDocumentSharingUpdated,
		AuditActionDocumentApprovalUpdated,
		AuditActionDraftEnqueued, AuditActionDraftSucceeded, AuditActionDraftFailed:
		return true
	}
	return false
}

type AuditTargetType string

const (
	AuditTargetOrganization    AuditTargetType = "ORGANIZATION"
	AuditTargetInvite          AuditTargetType = "INVITE"
	AuditTargetMember          AuditTargetType = "MEMBER"
	AuditTargetDocument        AuditTargetType = "DOCUMENT"
	AuditTargetDocumentSection AuditTargetType = "DOCUMENT_SECTION"
	AuditTargetDraft           AuditTargetType = "DRAFT"
)

func (t AuditTargetType) Valid() bool {
	switch t {
	case AuditTargetOrganization, AuditTargetInvite, AuditTargetMember,
		AuditTargetDocument, AuditTargetDocumentSection, AuditTargetDraft:
		return true
	}
	return false
}

type NotificationType string

const (
	NotificationDocumentReviewRequested NotificationType = "DOCUMENT_REVIEW_REQUESTED"
	NotificationDocumentApproved        NotificationType = "DOCUMENT_APPROVED"
	NotificationDocumentSentBack        NotificationType = "DOCUMENT_SENT_BACK"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationDocumentReviewRequested, NotificationDocumentApproved,
		NotificationDocumentSentBack:
		return true
	}
	return false
}

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "PENDING"
	InviteStatusAccepted InviteStatus = "ACCEPTED"
	InviteStatusRevoked  InviteStatus = "REVOKED"
)

func (s InviteStatus) Valid() bool {
	switch s {
	case InviteStatusPending, InviteStatusAccepted, InviteStatusRevoked:
		return true
	}
	return false
}

var errInvalidEnum = errors.New("invalid enum value")

func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	v := ApprovalStatus(s)
	if !v.Valid() {
		return "", errInvalidEnum
	}
	return v, nil
}

func ParseDraftJobStatus(s string) (DraftJobStatus, error) {
	v := DraftJobStatus(s)
	if !v.Valid() {
		return "", errInvalidEnum
	}
	return v, nil
}

func ParseAuditAction(s string) (AuditAction, error) {
	v := AuditAction(s)
	if !v.Valid() {
		return "", errInvalidEnum
	}
	return v, nil
}

func ParseAuditTargetType(s string) (AuditTargetType, error) {
	v := AuditTargetType(s)
	if !v.Valid() {
		return "", errInvalidEnum
	}
	return v, nil
}
