package models

import "gorm.io/gorm"

func AutoMigrateAll(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&Estate{},
		&Home{},
		&Door{},
		&QRCode{},
		&Subscription{},
		&VisitorSession{},
		&Message{},
		&Notification{},
	)
	if err != nil {
		return err
	}
	return nil
}
