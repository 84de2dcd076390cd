package database

import (
	"log"

	"alumniportal/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Branch{},
		&model.Alumni{},
		&model.FeeCatalogEntry{},
		&model.PaymentTransaction{},
		&model.StatusHistory{},
		&model.AuditLog{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	// Each request type keeps its own table with the same row shape
	for _, table := range model.RequestTables {
		if err := db.Table(table).AutoMigrate(&model.RequestCore{}); err != nil {
			log.Println("WARNING: Failed to auto-migrate", table+":", err)
		}
	}

	return db, nil
}
