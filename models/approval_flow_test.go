package models_test

import (
	"testing"

	"github.com/contractflow/proposals_backend/models"
	"github.com/contractflow/proposals_backend/utils"
)

func TestApprovalFlowReviewWithNote(t *testing.T) {
	ctx, org := seedOrg(t, 3)
	document := seedDocument(t, ctx)

	if document.ApprovalStatus != models.ApprovalStatusDraft {
		t.Fatalf("new document approvalStatus = %s, want DRAFT", document.ApprovalStatus)
	}

	result, err := models.ChangeApprovalStatus(ctx, document.ID, models.ApprovalStatusReview, "ready")
	if err != nil {
		t.Fatalf("ChangeApprovalStatus: %v", err)
	}
	if !result.Changed {
		t.Fatal("transition DRAFT -> REVIEW should be a distinct change")
	}
	if result.Document.ApprovalStatus != models.ApprovalStatusReview {
		t.Fatalf("approvalStatus = %s, want REVIEW", result.Document.ApprovalStatus)
	}
	if result.Comment == nil || result.Comment.Status != models.ApprovalStatusReview || result.Comment.Note != "ready" {
		t.Fatalf("comment = %+v, want one comment {status:REVIEW, note:\"ready\"}", result.Comment)
	}

	// Fan-out reaches every member except the actor.
	if want := len(org.Members); result.NotifiedCount != want {
		t.Fatalf("notified %d members, want %d (all members minus actor)", result.NotifiedCount, want)
	}

	comments, total, err := models.ListApprovalComments(ctx, document.ID, models.PageRequest{})
	if err != nil {
		t.Fatalf("ListApprovalComments: %v", err)
	}
	if total != 1 || len(comments) != 1 {
		t.Fatalf("comment count = %d, want exactly 1", total)
	}
}

func TestApprovalSelfTransitionIsNoop(t *testing.T) {
	ctx, _ := seedOrg(t, 2)
	document := seedDocument(t, ctx)

	result, err := models.ChangeApprovalStatus(ctx, document.ID, models.ApprovalStatusDraft, "still draft")
	if err != nil {
		t.Fatalf("self-transition should succeed: %v", err)
	}
	if result.Changed {
		t.Fatal("self-transition must be a no-op, not a change")
	}
	if result.Comment != nil {
		t.Fatal("no-op transitions must not write a comment")
	}
	if result.NotifiedCount != 0 {
		t.Fatal("no-op transitions must not notify")
	}
}

func TestApprovalIllegalTransitionsConflict(t *testing.T) {
	ctx, _ := seedOrg(t, 0)
	document := seedDocument(t, ctx)

	// DRAFT -> APPROVED skips review.
	_, err := models.ChangeApprovalStatus(ctx, document.ID, models.ApprovalStatusApproved, "")
	if utils.CodeOf(err) != utils.ErrorCodeConflict {
		t.Fatalf("DRAFT -> APPROVED: error code = %v, want CONFLICT", utils.CodeOf(err))
	}

	if _, err := models.ChangeApprovalStatus(ctx, document.ID, models.ApprovalStatusReview, ""); err != nil {
		t.Fatalf("DRAFT -> REVIEW: %v", err)
	}
	if _, err := models.ChangeApprovalStatus(ctx, document.ID, models.ApprovalStatusApproved, ""); err != nil {
		t.Fatalf("REVIEW -> APPROVED: %v", err)
	}

	// APPROVED is terminal.
	_, err = models.ChangeApprovalStatus(ctx, document.ID, models.ApprovalStatusDraft, "")
	if utils.CodeOf(err) != utils.ErrorCodeConflict {
		t.Fatalf("APPROVED -> DRAFT: error code = %v, want CONFLICT", utils.CodeOf(err))
	}
	_, err = models.ChangeApprovalStatus(ctx, document.ID, models.ApprovalStatusReview, "")
	if utils.CodeOf(err) != utils.ErrorCodeConflict {
		t.Fatalf("APPROVED -> REVIEW: error code = %v, want CONFLICT", utils.CodeOf(err))
	}
}

func TestApprovalWithoutNoteWritesNoComment(t *testing.T) {
	ctx, _ := seedOrg(t, 1)
	document := seedDocument(t, ctx)

	result, err := models.ChangeApprovalStatus(ctx, document.ID, models.ApprovalStatusReview, "")
	if err != nil {
		t.Fatalf("ChangeApprovalStatus: %v", err)
	}
	if result.Comment != nil {
		t.Fatal("empty note must not produce a comment")
	}

	_, total, err := models.ListApprovalComments(ctx, document.ID, models.PageRequest{})
	if err != nil {
		t.Fatalf("ListApprovalComments: %v", err)
	}
	if total != 0 {
		t.Fatalf("comment count = %d, want 0", total)
	}
}

func TestSendBackFromReview(t *testing.T) {
	ctx, org := seedOrg(t, 1)
	document := seedDocument(t, ctx)

	if _, err := models.ChangeApprovalStatus(ctx, document.ID, models.ApprovalStatusReview, ""); err != nil {
		t.Fatalf("DRAFT -> REVIEW: %v", err)
	}
	result, err := models.ChangeApprovalStatus(ctx, document.ID, models.ApprovalStatusDraft, "needs pricing detail")
	if err != nil {
		t.Fatalf("REVIEW -> DRAFT: %v", err)
	}
	if result.Document.ApprovalStatus != models.ApprovalStatusDraft {
		t.Fatalf("approvalStatus = %s, want DRAFT", result.Document.ApprovalStatus)
	}

	// Sent-back notifications land for the member as DOCUMENT_SENT_BACK.
	member := org.Members[0]
	memberCtx := ctxForUser(org.OrganizationId, member)
	notifications, _, _, err := models.ListNotifications(memberCtx, false, models.PageRequest{})
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	var sentBack int
	for _, n := range notifications {
		if n.Type == models.NotificationDocumentSentBack {
			sentBack++
		}
	}
	if sentBack != 1 {
		t.Fatalf("member has %d DOCUMENT_SENT_BACK notifications, want 1", sentBack)
	}
}

func TestApprovalWhitespaceNoteWritesNoComment(t *testing.T) {
	ctx, _ := seedOrg(t, 1)
	document := seedDocument(t, ctx)

	result, err := models.ChangeApprovalStatus(ctx, document.ID, models.ApprovalStatusReview, "  \n\t ")
	if err != nil {
		t.Fatalf("ChangeApprovalStatus: %v", err)
	}
	if !result.Changed {
		t.Fatal("transition should still happen when the note is blank")
	}
	if result.Comment != nil {
		t.Fatalf("comment = %+v, want none for a whitespace-only note", result.Comment)
	}

	comments, total, err := models.ListApprovalComments(ctx, document.ID, models.PageRequest{})
	if err != nil {
		t.Fatalf("ListApprovalComments: %v", err)
	}
	if total != 0 || len(comments) != 0 {
		t.Fatalf("comment count = %d, want 0", total)
	}
}
