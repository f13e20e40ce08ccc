package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iliyamo/gym-booking/internal/repository"
)

// NewPostgresDB opens Postgres through gorm, migrates the bookings table and
// installs the exclusion constraint that makes double-booking impossible at
// the database level: two non-cancelled rows for the same resource may not
// have intersecting [start_time, end_time) ranges.
func NewPostgresDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := db.AutoMigrate(&repository.BookingRow{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS btree_gist`).Error; err != nil {
		return nil, fmt.Errorf("enable btree_gist: %w", err)
	}
	err = db.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'bookings_no_overlap') THEN
				ALTER TABLE bookings ADD CONSTRAINT bookings_no_overlap
				EXCLUDE USING gist (
					resource_id WITH =,
					tstzrange(start_time, end_time, '[)') WITH &&
				) WHERE (status <> 'cancelled');
			END IF;
		END $$;
	`).Error
	if err != nil {
		return nil, fmt.Errorf("install overlap constraint: %w", err)
	}
	return db, nil
}
