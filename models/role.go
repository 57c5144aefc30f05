package models

type UserRole string

const (
	UserRoleOwner  UserRole = "OWNER"
	UserRoleAdmin  UserRole = "ADMIN"
	UserRoleMember UserRole = "MEMBER"
	UserRoleViewer UserRole = "VIEWER"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleOwner, UserRoleAdmin, UserRoleMember, UserRoleViewer:
		return true
	}
	return false
}

// Capability names the actions the role table grants. Checks go through
// RoleCan so handlers never compare role strings directly.
type Capability string

const (
	CapabilityReadDocument    Capability = "document:read"
	CapabilityUpdateDocument  Capability = "document:update"
	CapabilityDeleteDocument  Capability = "document:delete"
	CapabilityGenerateDraft   Capability = "document:generateDraft"
	CapabilityShareDocument   Capability = "document:share"
	CapabilityApproveDocument Capability = "document:approve"
	CapabilityManageJobs      Capability = "jobs:manage"
	CapabilityManageMembers   Capability = "members:manage"
)

var roleCapabilities = map[Capability]map[UserRole]bool{
	CapabilityReadDocument: {
		UserRoleOwner: true, UserRoleAdmin: true, UserRoleMember: true, UserRoleViewer: true,
	},
	CapabilityUpdateDocument: {
		UserRoleOwner: true, UserRoleAdmin: true, UserRoleMember: true,
	},
	CapabilityDeleteDocument: {
		UserRoleOwner: true, UserRoleAdmin: true,
	},
	CapabilityGenerateDraft: {
		UserRoleOwner: true, UserRoleAdmin: true, UserRoleMember: true,
	},
	CapabilityShareDocument: {
		UserRoleOwner: true, UserRoleAdmin: true, UserRoleMember: true,
	},
	CapabilityApproveDocument: {
		UserRoleOwner: true, UserRoleAdmin: true,
	},
	CapabilityManageJobs: {
		UserRoleOwner: true, UserRoleAdmin: true,
	},
	CapabilityManageMembers: {
		UserRoleOwner: true, UserRoleAdmin: true,
	},
}

// RoleCan reports whether the role grants the capability. Unknown roles
// and unknown capabilities are denied.
func RoleCan(role UserRole, capability Capability) bool {
	allowed, ok := roleCapabilities[capability]
	if !ok {
		return false
	}
	return allowed[role]
}
