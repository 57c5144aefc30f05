package utils

import (
	"context"
	"reflect"

	"github.com/contractflow/proposals_backend/config"
)

// check if id exists, scoped by organization_id, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, organizationId string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, organizationId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

// check uniqueness of column value, scoped by organization_id,
// return CONFLICT error on duplicate (exceptId excludes one row, for updates)
func ValidateUnique[T any](ctx context.Context, organizationId string, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, organizationId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, organizationId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return NewInternalError("checking "+column+" uniqueness", err)
	}
	if count > 0 {
		return NewConflictError("duplicate %s %v", column, value)
	}
	return nil
}

// count records, using WHERE organization_id = ? AND $condition
// organization_id can be blank for admin user
func ResourceCountWhere[T any](ctx context.Context, organizationId string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if organizationId != "" {
		dbCtx.Where("organization_id = ?", organizationId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
