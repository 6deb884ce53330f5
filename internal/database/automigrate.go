package database

import (
	"fmt"

	"gorm.io/gorm"

	"project-board-sync/internal/domain"
)

// AutoMigrate runs GORM auto-migration for all domain models
// It creates tables and indexes based on the struct definitions
// in the domain package
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&domain.Entity{},
		&domain.EntityCounter{},
		&domain.EntityPosition{},
		&domain.Board{},
		&domain.BoardRow{},
		&domain.WeeklyPlan{},
		&domain.EntityRelationship{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to run auto-migration: %w", err)
	}

	return nil
}
