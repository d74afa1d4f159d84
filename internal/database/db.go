package database

import (
	"fmt"

	"uk-requests/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection initializes a new connection pool using GORM and migrates the schema.
func NewConnection(dsn string, gormLogger logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	// Order matters: houses before users before requests before history.
	if err := db.AutoMigrate(
		&model.House{},
		&model.User{},
		&model.Request{},
		&model.RequestHistory{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}

	return db, nil
}
