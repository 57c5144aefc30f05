package models

import (
	"log"

	"github.com/contractflow/proposals_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Organization{}, &User{}, &Invite{},
		&Document{}, &DocumentSection{},
		&DraftJob{},
		&ApprovalComment{},
		&AuditEvent{},
		&Notification{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
