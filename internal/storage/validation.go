package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hamaji/taxikko/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTimeRange   = errors.New("range start must be before range end")
	ErrInvalidRecord      = errors.New("invalid record")
	ErrInvalidDayMetadata = errors.New("invalid day metadata")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRecords validates a slice of records.
func validateRecords(records []model.Record) error {
	if records == nil {
		return fmt.Errorf("%w: records", ErrNilParameter)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: records", ErrEmptySlice)
	}

	for i := range records {
		if err := validateRecord(&records[i]); err != nil {
			return fmt.Errorf("record at index %d: %w", i, err)
		}
	}
	return nil
}

// validateRecord validates a single record.
func validateRecord(rec *model.Record) error {
	if rec == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if rec.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRecord)
	}
	if rec.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidRecord)
	}
	switch rec.Mode {
	case model.ModeDetailed, model.ModeSimpleSummary:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRecord, rec.Mode)
	}
	if rec.Mode == model.ModeSimpleSummary && rec.RideCount < 0 {
		return fmt.Errorf("%w: negative ride count", ErrInvalidRecord)
	}
	return nil
}

// validateDayMetadata validates a day metadata row.
func validateDayMetadata(meta *model.DayMetadata) error {
	if meta == nil {
		return fmt.Errorf("%w: meta", ErrNilParameter)
	}
	if meta.Date == "" {
		return fmt.Errorf("%w: missing date", ErrInvalidDayMetadata)
	}
	if meta.RestMinutes < 0 {
		return fmt.Errorf("%w: negative rest minutes", ErrInvalidDayMetadata)
	}
	return nil
}
