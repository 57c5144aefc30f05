package models_test

import (
	"fmt"
	"testing"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/models"
	"github.com/contractflow/proposals_backend/utils"
	"github.com/google/uuid"
)

func TestInviteAcceptFlow(t *testing.T) {
	ctx, org := seedOrg(t, 0)

	invite, err := models.CreateInvite(ctx, &models.NewInvite{
		Email: fmt.Sprintf("new-hire-%s@example.com", uuid.NewString()[:8]),
		Role:  string(models.UserRoleMember),
	})
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	if invite.Status != models.InviteStatusPending {
		t.Fatalf("invite status = %s, want PENDING", invite.Status)
	}

	// The joining user already has an account in the organization.
	db := config.GetDB()
	joiner := models.User{
		ID:             uuid.NewString(),
		OrganizationId: org.OrganizationId,
		Name:           "New Hire",
		Email:          invite.Email,
		Role:           models.UserRoleViewer,
	}
	if err := db.Create(&joiner).Error; err != nil {
		t.Fatalf("seeding joiner: %v", err)
	}

	accepted, err := models.AcceptInvite(ctx, invite.ID, joiner.ID)
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if accepted.Status != models.InviteStatusAccepted {
		t.Fatalf("invite status = %s, want ACCEPTED", accepted.Status)
	}

	member, err := models.GetUser(ctx, joiner.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if member.Role != models.UserRoleMember {
		t.Fatalf("joiner role = %s, want MEMBER after accepting", member.Role)
	}

	// Accepting twice conflicts.
	if _, err := models.AcceptInvite(ctx, invite.ID, joiner.ID); utils.CodeOf(err) != utils.ErrorCodeConflict {
		t.Fatalf("second accept: error code = %v, want CONFLICT", utils.CodeOf(err))
	}
}

func TestAcceptInviteUnknownUserNotFound(t *testing.T) {
	ctx, _ := seedOrg(t, 0)

	invite, err := models.CreateInvite(ctx, &models.NewInvite{
		Email: fmt.Sprintf("ghost-%s@example.com", uuid.NewString()[:8]),
		Role:  string(models.UserRoleMember),
	})
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}

	_, err = models.AcceptInvite(ctx, invite.ID, uuid.NewString())
	if utils.CodeOf(err) != utils.ErrorCodeNotFound {
		t.Fatalf("unknown user: error code = %v, want NOT_FOUND", utils.CodeOf(err))
	}
}
