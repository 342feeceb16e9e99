package Models

import (
	"fmt"
	"log"

	"Beacon/Config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Connect opens the database and runs migrations. Postgres is used when
// DB_HOST is configured; otherwise a local sqlite file keeps development
// setup to zero steps.
func Connect(cfg Config.Config) {
	var connection *gorm.DB
	var err error

	if cfg.DBHost != "" {
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
		)
		connection, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	} else {
		connection, err = gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{})
	}
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	DB = connection

	Migrate(DB)
}

// Migrate runs AutoMigrate in dependency order.
func Migrate(db *gorm.DB) {
	// 1. Tenant and base configuration tables
	if err := db.AutoMigrate(
		&Company{},
		&Region{},
		&Store{},
		&Role{},
		&User{},
		&FCMToken{},
	); err != nil {
		log.Println(err)
	}

	// 2. Tasks and their per-store assignments
	if err := db.AutoMigrate(
		&Task{},
		&TaskAssignment{},
	); err != nil {
		log.Println(err)
	}

	// 3. Ledgers that reference the above by (entity_type, entity_id)
	if err := db.AutoMigrate(
		&Verification{},
		&AuditLog{},
		&PointsEntry{},
	); err != nil {
		log.Println(err)
	}
}
