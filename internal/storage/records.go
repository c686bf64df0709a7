package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hamaji/taxikko/internal/common"
	"github.com/hamaji/taxikko/internal/model"
)

const recordColumns = `id, timestamp_ms, mode, amount, toll, return_toll, non_cash_amount,
	payment_method, ride_type, pickup_location, dropoff_location,
	pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	passengers_male, passengers_female, remarks, is_bad_customer,
	ride_count, work_minutes, start_clock, end_clock, note`

// SaveRecords inserts or replaces records by ID.
func (s *SQLiteStorage) SaveRecords(ctx context.Context, records []model.Record) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecords(records); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range records {
		rec := &records[i]
		pickupLat, pickupLng := coordValues(rec.PickupCoords)
		dropoffLat, dropoffLng := coordValues(rec.DropoffCoords)

		_, err = stmt.ExecContext(ctx,
			rec.ID,
			rec.Timestamp.UnixMilli(),
			string(rec.Mode),
			rec.Amount,
			rec.Toll,
			rec.ReturnToll,
			rec.NonCashAmount,
			string(rec.PaymentMethod),
			string(rec.RideType),
			rec.PickupLocation,
			rec.DropoffLocation,
			pickupLat,
			pickupLng,
			dropoffLat,
			dropoffLng,
			rec.PassengersMale,
			rec.PassengersFemale,
			rec.Remarks,
			rec.IsBadCustomer,
			rec.RideCount,
			rec.WorkMinutes,
			rec.StartClock,
			rec.EndClock,
			rec.Note,
		)
		if err != nil {
			return fmt.Errorf("failed to save record %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// GetRecordByID returns the record with the given ID.
func (s *SQLiteStorage) GetRecordByID(ctx context.Context, id string) (*model.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// GetRecordsByRange returns records with timestamps in [from, to), ascending.
func (s *SQLiteStorage) GetRecordsByRange(ctx context.Context, from, to time.Time) ([]model.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from %v, to %v", ErrInvalidTimeRange, from, to)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM records
		WHERE timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.Record
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan record: %w", scanErr)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// DeleteRecords permanently removes the records with the given IDs. Unknown
// IDs are ignored; an empty slice is a no-op.
func (s *SQLiteStorage) DeleteRecords(ctx context.Context, ids []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*model.Record, error) {
	var (
		rec           model.Record
		timestampMS   int64
		mode          string
		paymentMethod string
		rideType      string
		pickupLat     sql.NullFloat64
		pickupLng     sql.NullFloat64
		dropoffLat    sql.NullFloat64
		dropoffLng    sql.NullFloat64
	)

	err := row.Scan(
		&rec.ID,
		&timestampMS,
		&mode,
		&rec.Amount,
		&rec.Toll,
		&rec.ReturnToll,
		&rec.NonCashAmount,
		&paymentMethod,
		&rideType,
		&rec.PickupLocation,
		&rec.DropoffLocation,
		&pickupLat,
		&pickupLng,
		&dropoffLat,
		&dropoffLng,
		&rec.PassengersMale,
		&rec.PassengersFemale,
		&rec.Remarks,
		&rec.IsBadCustomer,
		&rec.RideCount,
		&rec.WorkMinutes,
		&rec.StartClock,
		&rec.EndClock,
		&rec.Note,
	)
	if err != nil {
		return nil, err
	}

	rec.Timestamp = time.UnixMilli(timestampMS)
	rec.Mode = model.RecordMode(mode)
	rec.PaymentMethod = model.PaymentMethod(paymentMethod)
	rec.RideType = model.RideType(rideType)
	if pickupLat.Valid && pickupLng.Valid {
		rec.PickupCoords = &model.Coordinates{Latitude: pickupLat.Float64, Longitude: pickupLng.Float64}
	}
	if dropoffLat.Valid && dropoffLng.Valid {
		rec.DropoffCoords = &model.Coordinates{Latitude: dropoffLat.Float64, Longitude: dropoffLng.Float64}
	}
	return &rec, nil
}

func coordValues(c *model.Coordinates) (lat, lng any) {
	if c == nil {
		return nil, nil
	}
	return c.Latitude, c.Longitude
}
