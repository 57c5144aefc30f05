package models_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/models"
	"github.com/contractflow/proposals_backend/utils"
	"github.com/google/uuid"
)

var testDBOnce sync.Once

// testDB opens the shared in-memory SQLite database once per test
// binary and runs migrations. Tests isolate by organization id, not by
// database, mirroring production tenancy.
func testDB(t *testing.T) {
	t.Helper()
	testDBOnce.Do(func() {
		os.Setenv("DB_DRIVER", "sqlite")
		os.Setenv("DB_NAME", "file::memory:?cache=shared")
		config.ConnectDatabaseWithRetry()
		models.MigrateTable()
	})
}

type testOrg struct {
	OrganizationId string
	Owner          *models.User
	Members        []*models.User
}

// seedOrg creates an organization with an owner plus n extra members
// and returns a context authenticated as the owner.
func seedOrg(t *testing.T, extraMembers int) (context.Context, *testOrg) {
	t.Helper()
	testDB(t)

	db := config.GetDB()
	org := models.Organization{ID: uuid.NewString(), Name: "org-" + uuid.NewString()[:8]}
	if err := db.Create(&org).Error; err != nil {
		t.Fatalf("seeding organization: %v", err)
	}

	owner := &models.User{
		ID:             uuid.NewString(),
		OrganizationId: org.ID,
		Name:           "Owner",
		Email:          fmt.Sprintf("owner-%s@example.com", uuid.NewString()[:8]),
		Role:           models.UserRoleOwner,
	}
	if err := db.Create(owner).Error; err != nil {
		t.Fatalf("seeding owner: %v", err)
	}

	members := make([]*models.User, 0, extraMembers)
	for i := 0; i < extraMembers; i++ {
		member := &models.User{
			ID:             uuid.NewString(),
			OrganizationId: org.ID,
			Name:           fmt.Sprintf("Member %d", i+1),
			Email:          fmt.Sprintf("member-%d-%s@example.com", i+1, uuid.NewString()[:8]),
			Role:           models.UserRoleMember,
		}
		if err := db.Create(member).Error; err != nil {
			t.Fatalf("seeding member: %v", err)
		}
		members = append(members, member)
	}

	ctx := ctxForUser(org.ID, owner)
	return ctx, &testOrg{OrganizationId: org.ID, Owner: owner, Members: members}
}

func ctxForUser(organizationId string, user *models.User) context.Context {
	ctx := context.Background()
	ctx = utils.SetOrganizationIdInContext(ctx, organizationId)
	ctx = utils.SetUserIdInContext(ctx, user.ID)
	ctx = utils.SetUserNameInContext(ctx, user.Name)
	ctx = utils.SetUserRoleInContext(ctx, string(user.Role))
	return ctx
}

func seedDocument(t *testing.T, ctx context.Context) *models.Document {
	t.Helper()
	document, err := models.CreateDocument(ctx, &models.NewDocument{
		Title: "Master Services Agreement " + uuid.NewString()[:8],
		Type:  string(models.DocumentTypeContract),
	})
	if err != nil {
		t.Fatalf("seeding document: %v", err)
	}
	return document
}
