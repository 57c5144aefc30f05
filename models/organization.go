package models

import (
	"context"
	"strings"
	"time"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/utils"
)

type Organization struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Invite struct {
	ID             string       `gorm:"primaryKey;size:36" json:"id"`
	OrganizationId string       `gorm:"index;size:36;not null" json:"organization_id"`
	Email          string       `gorm:"size:255;not null" json:"email"`
	Role           UserRole     `gorm:"size:20;not null" json:"role"`
	Status         InviteStatus `gorm:"size:20;not null" json:"status"`
	InvitedById    string       `gorm:"size:36;not null" json:"invited_by_id"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInvite struct {
	Email string `json:"email" binding:"required"`
	Role  string `json:"role" binding:"required"`
}

// ListOrganizationMembers returns every user in the organization.
// Fan-out and member administration both read from here.
func ListOrganizationMembers(ctx context.Context, organizationId string) ([]*User, error) {
	return utils.FetchAllModels[User](ctx, organizationId)
}

func CreateInvite(ctx context.Context, input *NewInvite) (*Invite, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}
	userId, err := requireUserId(ctx)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(strings.ToLower(input.Email))
	if !utils.IsValidEmail(email) {
		return nil, utils.NewValidationError("invalid email %q", input.Email)
	}
	role := UserRole(input.Role)
	if !role.Valid() {
		return nil, utils.NewValidationError("invalid role %q", input.Role)
	}
	if role == UserRoleOwner {
		return nil, utils.NewValidationError("cannot invite as OWNER")
	}

	// One pending invite per email per organization.
	count, err := utils.ResourceCountWhere[Invite](ctx, organizationId,
		"email = ? AND status = ?", email, InviteStatusPending)
	if err != nil {
		return nil, utils.NewInternalError("counting invites", err)
	}
	if count > 0 {
		return nil, utils.NewConflictError("a pending invite for %s already exists", email)
	}

	invite := Invite{
		ID:             newID(),
		OrganizationId: organizationId,
		Email:          email,
		Role:           role,
		Status:         InviteStatusPending,
		InvitedById:    userId,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&invite).Error; err != nil {
		return nil, utils.NewInternalError("creating invite", err)
	}

	RecordAuditEventBestEffort(ctx, NewAuditEvent{
		Action:     AuditActionInviteCreated,
		TargetType: AuditTargetInvite,
		TargetId:   &invite.ID,
		Metadata:   map[string]interface{}{"email": email, "role": role},
	})
	return &invite, nil
}

// AcceptInvite marks the invite accepted and enrolls the user in the
// organization with the invited role.
func AcceptInvite(ctx context.Context, inviteId string, userId string) (*Invite, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}

	invite, err := utils.FetchModel[Invite](ctx, organizationId, inviteId)
	if err != nil {
		return nil, utils.NewNotFoundError("invite %s not found", inviteId)
	}
	if invite.Status != InviteStatusPending {
		return nil, utils.NewConflictError("invite %s is %s", inviteId, invite.Status)
	}
	if _, err := utils.FetchSingleModel[User](ctx, userId); err != nil {
		return nil, utils.NewNotFoundError("user %s not found", userId)
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&Invite{}).
		Where("id = ? AND organization_id = ?", inviteId, organizationId).
		Update("status", InviteStatusAccepted).Error
	if err != nil {
		return nil, utils.NewInternalError("accepting invite", err)
	}
	err = db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND organization_id = ?", userId, organizationId).
		Update("role", invite.Role).Error
	if err != nil {
		return nil, utils.NewInternalError("applying invited role", err)
	}
	invite.Status = InviteStatusAccepted

	RecordAuditEventBestEffort(ctx, NewAuditEvent{
		Action:     AuditActionInviteAccepted,
		TargetType: AuditTargetInvite,
		TargetId:   &invite.ID,
		Metadata:   map[string]interface{}{"user_id": userId, "role": invite.Role},
	})
	return invite, nil
}

// UpdateMemberRole changes a member's role. The last OWNER of an
// organization cannot be demoted.
func UpdateMemberRole(ctx context.Context, memberId string, role UserRole) (*User, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, utils.NewValidationError("invalid role %q", role)
	}

	member, err := utils.FetchModel[User](ctx, organizationId, memberId)
	if err != nil {
		return nil, utils.NewNotFoundError("member %s not found", memberId)
	}
	if member.Role == role {
		return member, nil
	}
	if member.Role == UserRoleOwner {
		owners, err := utils.ResourceCountWhere[User](ctx, organizationId, "role = ?", UserRoleOwner)
		if err != nil {
			return nil, utils.NewInternalError("counting owners", err)
		}
		if owners <= 1 {
			return nil, utils.NewConflictError("cannot demote the last owner")
		}
	}

	previous := member.Role
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND organization_id = ?", memberId, organizationId).
		Update("role", role).Error
	if err != nil {
		return nil, utils.NewInternalError("updating member role", err)
	}
	member.Role = role

	RecordAuditEventBestEffort(ctx, NewAuditEvent{
		Action:     AuditActionMemberRoleUpdated,
		TargetType: AuditTargetMember,
		TargetId:   &member.ID,
		Metadata:   map[string]interface{}{"from": previous, "to": role},
	})
	return member, nil
}

// RemoveMember deletes a member's membership row. Owners cannot be
// removed; demote first.
func RemoveMember(ctx context.Context, memberId string) (*User, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}

	member, err := utils.FetchModel[User](ctx, organizationId, memberId)
	if err != nil {
		return nil, utils.NewNotFoundError("member %s not found", memberId)
	}
	if member.Role == UserRoleOwner {
		return nil, utils.NewConflictError("owners cannot be removed")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).
		Where("organization_id = ?", organizationId).
		Delete(&User{}, "id = ?", memberId).Error
	if err != nil {
		return nil, utils.NewInternalError("removing member", err)
	}

	RecordAuditEventBestEffort(ctx, NewAuditEvent{
		Action:     AuditActionMemberRemoved,
		TargetType: AuditTargetMember,
		TargetId:   &member.ID,
		Metadata:   map[string]interface{}{"email": member.Email},
	})
	return member, nil
}
