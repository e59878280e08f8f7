package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"schoolpoints/relay/internal/models/entities"
)

var PgDB *gorm.DB

func InitPostgresORM(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	PgDB = db
	return db, nil
}

// MigrateCentral creates/updates the central-store tables. The sqlx
// repositories query the same tables gorm migrates here.
func MigrateCentral(db *gorm.DB) error {
	return db.AutoMigrate(
		&entities.Institution{},
		&entities.PairingTicket{},
		&entities.Change{},
		&entities.SyncEvent{},
	)
}
