package utils

import (
	"context"

	"github.com/contractflow/proposals_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyToken          = appctx.ContextKeyToken
	ContextKeyOrganizationId = appctx.ContextKeyOrganizationId
	ContextKeyUserId         = appctx.ContextKeyUserId
	ContextKeyUserName       = appctx.ContextKeyUserName
	ContextKeyUserRole       = appctx.ContextKeyUserRole
	ContextKeyCorrelationId  = appctx.ContextKeyCorrelationId

	ContextKeyIsAdmin         = appctx.ContextKeyIsAdmin
	ContextKeySkipTenantScope = appctx.ContextKeySkipTenantScope
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetOrganizationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyOrganizationId)
}

func GetUserIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserRole)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetOrganizationIdInContext(ctx context.Context, organizationId string) context.Context {
	return appctx.Set(ctx, ContextKeyOrganizationId, organizationId)
}

func SetUserIdInContext(ctx context.Context, userId string) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetUserRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, ContextKeyUserRole, role)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetIsAdminFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyIsAdmin)
}

func SetIsAdminInContext(ctx context.Context, isAdmin bool) context.Context {
	return appctx.Set(ctx, ContextKeyIsAdmin, isAdmin)
}

func GetSkipTenantScopeFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeySkipTenantScope)
}

func SetSkipTenantScopeInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, ContextKeySkipTenantScope, skip)
}

// SystemContext builds a context for background workers acting outside
// any user session. Tenant scope stays on via the organization id.
func SystemContext(organizationId string) context.Context {
	ctx := context.Background()
	ctx = SetOrganizationIdInContext(ctx, organizationId)
	ctx = SetUserNameInContext(ctx, "system")
	return ctx
}
