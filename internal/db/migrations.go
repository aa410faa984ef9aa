package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS vehicles (
		id                  BIGSERIAL PRIMARY KEY,

		plate_number        TEXT NOT NULL,
		plate_region        TEXT,
		plate_type          TEXT,
		plate_color         TEXT,
		plate_bbox          JSONB,
		plate_channel       INT,
		plate_confidence    INT,
		plate_is_exist      BOOLEAN,
		plate_upload_num    INT,

		vehicle_type        TEXT,
		vehicle_color       TEXT,
		vehicle_sign        TEXT,
		vehicle_series      TEXT,
		vehicle_bbox        JSONB,

		detection_time      TIMESTAMPTZ NOT NULL,
		direction           TEXT,
		allow_user          BOOLEAN,
		allow_user_end_time TEXT,
		block_user          BOOLEAN,
		block_user_end_time TEXT,
		timezone            INT,

		image_path          TEXT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicles_plate_number ON vehicles(plate_number);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicles_detection_time ON vehicles(detection_time);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
