package models

import (
	"context"

	"github.com/google/uuid"

	"github.com/contractflow/proposals_backend/utils"
)

// newID mints a primary key. All domain rows use uuid strings so ids
// can be generated client-side inside transactions.
func newID() string {
	return uuid.NewString()
}

// requireOrganizationId pulls the tenant id out of the context, as
// every store operation is tenant-scoped.
func requireOrganizationId(ctx context.Context) (string, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return "", utils.NewValidationError("organization id is required")
	}
	return organizationId, nil
}

func requireUserId(ctx context.Context) (string, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return "", utils.NewValidationError("user id is required")
	}
	return userId, nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok && cid != "" {
			return cid
		}
	}
	return uuid.NewString()
}
