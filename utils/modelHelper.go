package utils

import (
	"context"

	"github.com/contractflow/proposals_backend/config"
)

/* DB fetching */

// fetch model from db by primary key
// (may return RecordNotFound)
func FetchSingleModel[T any](ctx context.Context, id string, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.Where("id = ?", id).First(&result).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch model from db
// (organization_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, organizationId string, id string, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("organization_id = ?", organizationId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.Where("id = ?", id).First(&result).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch all models from db
// (organization_id is used in query's WHERE)
func FetchAllModels[T any](ctx context.Context, organizationId string, associations ...string) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("organization_id = ?", organizationId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
