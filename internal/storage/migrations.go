package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hamaji/taxikko/internal/common"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS records (
					id TEXT PRIMARY KEY,
					timestamp_ms INTEGER NOT NULL,
					mode TEXT NOT NULL,
					amount INTEGER NOT NULL,
					toll INTEGER DEFAULT 0,
					return_toll INTEGER DEFAULT 0,
					non_cash_amount INTEGER DEFAULT 0,
					payment_method TEXT,
					ride_type TEXT,
					pickup_location TEXT,
					dropoff_location TEXT,
					passengers_male INTEGER DEFAULT 0,
					passengers_female INTEGER DEFAULT 0,
					remarks TEXT,
					is_bad_customer BOOLEAN DEFAULT 0,
					ride_count INTEGER DEFAULT 0,
					work_minutes INTEGER DEFAULT 0,
					start_clock TEXT,
					end_clock TEXT,
					note TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_records_timestamp ON records(timestamp_ms)`,
				`CREATE INDEX idx_records_mode ON records(mode)`,

				`CREATE TABLE IF NOT EXISTS day_metadata (
					date TEXT PRIMARY KEY,
					memo TEXT,
					rest_minutes INTEGER DEFAULT 0,
					start_odometer INTEGER DEFAULT 0,
					end_odometer INTEGER DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add pickup/dropoff coordinates",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE records ADD COLUMN pickup_lat REAL`,
				`ALTER TABLE records ADD COLUMN pickup_lng REAL`,
				`ALTER TABLE records ADD COLUMN dropoff_lat REAL`,
				`ALTER TABLE records ADD COLUMN dropoff_lng REAL`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add attributed month override to day metadata",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE day_metadata ADD COLUMN attributed_month TEXT DEFAULT ''`)
			return err
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		common.LogInfo("Applied migration", common.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		})
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		// A version past ours means the file was written by a newer build.
		return fmt.Errorf("%w: schema version mismatch: expected %d, got %d",
			common.ErrStoreCorrupted, ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
