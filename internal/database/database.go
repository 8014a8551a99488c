package database

import (
	"fmt"
	"log"
	"time"

	"asin-tracker/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Initialize(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&models.Asin{},
		&models.HistorySnapshot{},
		&models.Source{},
		&models.Setting{},
	); err != nil {
		return nil, fmt.Errorf("auto-migrate failed: %w", err)
	}

	// Migrations: the dedup index predates AutoMigrate on older deployments
	if err := ensureSnapshotDedupIndex(db); err != nil {
		log.Printf("Migration warning: %v", err)
	}

	log.Println("Database initialized successfully")
	return db, nil
}

// ensureSnapshotDedupIndex guarantees the unique (asin, captured_at) index
// on history_snapshots. Inserts rely on it for ON CONFLICT DO NOTHING, so a
// deployment without it would double-count backfills.
func ensureSnapshotDedupIndex(db *gorm.DB) error {
	if db.Migrator().HasIndex(&models.HistorySnapshot{}, "idx_history_asin_captured_at") {
		return nil
	}

	if err := db.Migrator().CreateIndex(&models.HistorySnapshot{}, "idx_history_asin_captured_at"); err == nil {
		log.Println("Created index idx_history_asin_captured_at via GORM migrator")
		return nil
	}

	// Fallback to raw SQL (in case migrator fails)
	createSQL := `CREATE UNIQUE INDEX IF NOT EXISTS idx_history_asin_captured_at ON history_snapshots (asin, captured_at)`
	if err := db.Exec(createSQL).Error; err != nil {
		return fmt.Errorf("failed creating idx_history_asin_captured_at: %w", err)
	}
	log.Println("Created index idx_history_asin_captured_at via raw SQL")
	return nil
}
