package models

import "gorm.io/gorm"

// AllModels returns all models for migration
// Note: Organization and User must be migrated first as groups reference them
func AllModels() []interface{} {
	return []interface{}{
		&Organization{},
		&User{},
		&Group{},
		&GroupScope{},
		&GroupMembership{},
		&Annotation{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
