// seed-org creates or updates a development organization with an owner
// user, then mints a session token for it.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_NAME=... REDIS_ADDRESS=... go run ./cmd/seed-org
//
// Env knobs: SEED_ORG_NAME, SEED_OWNER_EMAIL, SEED_OWNER_NAME, SEED_OWNER_PASSWORD.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/middlewares"
	"github.com/contractflow/proposals_backend/models"
	"github.com/contractflow/proposals_backend/utils"
)

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()
	config.ConnectRedisWithRetry()

	orgName := envOr("SEED_ORG_NAME", "Dev Organization")
	ownerEmail := strings.ToLower(envOr("SEED_OWNER_EMAIL", "owner@example.com"))
	ownerName := envOr("SEED_OWNER_NAME", "Dev Owner")
	ownerPassword := envOr("SEED_OWNER_PASSWORD", "devpassword")

	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	var org models.Organization
	err := db.WithContext(ctx).Where("name = ?", orgName).First(&org).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup organization: %v\n", err)
			os.Exit(1)
		}
		org = models.Organization{ID: uuid.NewString(), Name: orgName}
		if err := db.WithContext(ctx).Create(&org).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create organization: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created organization %q (%s)\n", orgName, org.ID)
	}

	var owner models.User
	err = db.WithContext(ctx).
		Where("organization_id = ? AND email = ?", org.ID, ownerEmail).
		First(&owner).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup owner: %v\n", err)
			os.Exit(1)
		}
		owner = models.User{
			ID:             uuid.NewString(),
			OrganizationId: org.ID,
			Name:           ownerName,
			Email:          ownerEmail,
			Role:           models.UserRoleOwner,
		}
		if err := owner.SetPassword(ownerPassword); err != nil {
			fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
			os.Exit(1)
		}
		if err := db.WithContext(ctx).Create(&owner).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create owner: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created owner %q (%s)\n", ownerEmail, owner.ID)
	} else {
		if err := owner.SetPassword(ownerPassword); err != nil {
			fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
			os.Exit(1)
		}
		if err := db.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", owner.ID).
			Updates(map[string]any{
				"name":     ownerName,
				"password": owner.Password,
				"role":     models.UserRoleOwner,
			}).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to update owner: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated owner %q (%s)\n", ownerEmail, owner.ID)
	}

	if config.GetRedisDB() == nil {
		fmt.Println("redis not configured; skipping session token")
		return
	}
	token, err := middlewares.IssueSession(&owner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue session: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Session token: %s\n", token)
}
