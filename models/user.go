package models

import (
	"context"
	"strings"
	"time"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/utils"
)

type User struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	OrganizationId string    `gorm:"size:36;not null;uniqueIndex:idx_users_org_email" json:"organization_id"`
	Name           string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email          string    `gorm:"size:255;not null;uniqueIndex:idx_users_org_email" json:"email" binding:"required"`
	Role           UserRole  `gorm:"size:20;not null" json:"role"`
	Password       string    `gorm:"size:100" json:"-"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SetPassword stores the bcrypt hash. Only the seed path calls this;
// session issuance is external.
func (u *User) SetPassword(plain string) error {
	hashed, err := utils.HashPassword(plain)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) CheckPassword(plain string) error {
	return utils.ComparePassword(u.Password, plain)
}

func GetUser(ctx context.Context, id string) (*User, error) {
	organizationId, err := requireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}
	user, err := utils.FetchModel[User](ctx, organizationId, id)
	if err != nil {
		return nil, utils.NewNotFoundError("user %s not found", id)
	}
	return user, nil
}

func GetUserByEmail(ctx context.Context, organizationId string, email string) (*User, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).
		Where("organization_id = ? AND email = ?", organizationId, strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, utils.NewNotFoundError("user not found")
	}
	return &user, nil
}
