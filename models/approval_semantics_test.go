package models

import "testing"

// The transition table must be total: every (from, to) pair has a
// defined outcome, independent of caller role.
func TestApprovalTransitionTable(t *testing.T) {
	statuses := []ApprovalStatus{
		ApprovalStatusDraft, ApprovalStatusReview, ApprovalStatusApproved,
	}
	allowed := map[[2]ApprovalStatus]bool{
		{ApprovalStatusDraft, ApprovalStatusReview}:    true,
		{ApprovalStatusReview, ApprovalStatusApproved}: true,
		{ApprovalStatusReview, ApprovalStatusDraft}:    true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			if from == to {
				// Self-transitions are no-op successes handled before
				// the table lookup; the table itself rejects them.
				continue
			}
			got := CanTransitionApproval(from, to)
			want := allowed[[2]ApprovalStatus{from, to}]
			if got != want {
				t.Errorf("CanTransitionApproval(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestApprovedIsTerminal(t *testing.T) {
	for _, to := range []ApprovalStatus{ApprovalStatusDraft, ApprovalStatusReview} {
		if CanTransitionApproval(ApprovalStatusApproved, to) {
			t.Errorf("APPROVED must have no outgoing transitions, but APPROVED -> %s allowed", to)
		}
	}
}

func TestNotificationTypeForApproval(t *testing.T) {
	cases := map[ApprovalStatus]NotificationType{
		ApprovalStatusReview:   NotificationDocumentReviewRequested,
		ApprovalStatusApproved: NotificationDocumentApproved,
		ApprovalStatusDraft:    NotificationDocumentSentBack,
	}
	for status, want := range cases {
		got, ok := notificationTypeForApproval(status)
		if !ok || got != want {
			t.Errorf("notificationTypeForApproval(%s) = %q, want %q", status, got, want)
		}
	}
}

func TestRoleCapabilityMatrix(t *testing.T) {
	cases := []struct {
		role       UserRole
		capability Capability
		want       bool
	}{
		{UserRoleViewer, CapabilityReadDocument, true},
		{UserRoleViewer, CapabilityUpdateDocument, false},
		{UserRoleViewer, CapabilityGenerateDraft, false},
		{UserRoleMember, CapabilityGenerateDraft, true},
		{UserRoleMember, CapabilityApproveDocument, false},
		{UserRoleMember, CapabilityDeleteDocument, false},
		{UserRoleAdmin, CapabilityApproveDocument, true},
		{UserRoleAdmin, CapabilityManageJobs, true},
		{UserRoleOwner, CapabilityDeleteDocument, true},
		{UserRoleOwner, CapabilityManageMembers, true},
		{UserRole("INTERN"), CapabilityReadDocument, false},
	}
	for _, tc := range cases {
		if got := RoleCan(tc.role, tc.capability); got != tc.want {
			t.Errorf("RoleCan(%s, %s) = %v, want %v", tc.role, tc.capability, got, tc.want)
		}
	}
}

func TestEnumValidity(t *testing.T) {
	if !DraftJobStatusQueued.Valid() || DraftJobStatus("RUNNING").Valid() {
		t.Error("DraftJobStatus validity check broken")
	}
	if !GenerationStatusIdle.Valid() || GenerationStatus("DONE").Valid() {
		t.Error("GenerationStatus validity check broken")
	}
	if _, err := ParseAuditAction("DRAFT_SUCCEEDED"); err != nil {
		t.Error("DRAFT_SUCCEEDED should parse")
	}
	if _, err := ParseAuditAction("draft_succeeded"); err == nil {
		t.Error("audit actions are case-sensitive")
	}
}
