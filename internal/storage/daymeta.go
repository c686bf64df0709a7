package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hamaji/taxikko/internal/common"
	"github.com/hamaji/taxikko/internal/model"
)

// SaveDayMetadata inserts or replaces the metadata row for its date.
func (s *SQLiteStorage) SaveDayMetadata(ctx context.Context, meta *model.DayMetadata) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDayMetadata(meta); err != nil {
		return err
	}

	updatedAt := meta.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO day_metadata (
			date, memo, attributed_month, rest_minutes, start_odometer, end_odometer, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		meta.Date,
		meta.Memo,
		meta.AttributedMonth,
		meta.RestMinutes,
		meta.StartOdometer,
		meta.EndOdometer,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save day metadata for %s: %w", meta.Date, err)
	}
	return nil
}

// GetDayMetadata returns the metadata for a business date.
func (s *SQLiteStorage) GetDayMetadata(ctx context.Context, date string) (*model.DayMetadata, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(date, "date"); err != nil {
		return nil, err
	}

	var meta model.DayMetadata
	err := s.db.QueryRowContext(ctx, `
		SELECT date, memo, attributed_month, rest_minutes, start_odometer, end_odometer, updated_at
		FROM day_metadata WHERE date = ?
	`, date).Scan(
		&meta.Date,
		&meta.Memo,
		&meta.AttributedMonth,
		&meta.RestMinutes,
		&meta.StartOdometer,
		&meta.EndOdometer,
		&meta.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("day metadata %s: %w", date, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get day metadata: %w", err)
	}
	return &meta, nil
}
