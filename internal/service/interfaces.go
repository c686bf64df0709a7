// Package service defines the interfaces the engine's collaborators must
// satisfy. The engine itself performs no I/O; persistence, sync and retry
// policy live behind these contracts.
package service

import (
	"context"
	"time"

	"github.com/hamaji/taxikko/internal/common"
	"github.com/hamaji/taxikko/internal/model"
)

// RecordStore is the persistence contract for revenue records. Implementations
// must treat SaveRecords as an upsert keyed by record ID.
type RecordStore interface {
	// SaveRecords inserts or replaces records by ID.
	SaveRecords(ctx context.Context, records []model.Record) error
	// GetRecordByID returns common.ErrNotFound when no record has the ID.
	GetRecordByID(ctx context.Context, id string) (*model.Record, error)
	// GetRecordsByRange returns records with timestamps in the half-open
	// window [from, to), ascending by timestamp.
	GetRecordsByRange(ctx context.Context, from, to time.Time) ([]model.Record, error)
	// DeleteRecords permanently removes the records with the given IDs.
	// Unknown IDs are ignored.
	DeleteRecords(ctx context.Context, ids []string) error
}

// DayMetadataStore persists per-business-date metadata.
type DayMetadataStore interface {
	// SaveDayMetadata inserts or replaces the metadata for its date.
	SaveDayMetadata(ctx context.Context, meta *model.DayMetadata) error
	// GetDayMetadata returns common.ErrNotFound when the date has none.
	GetDayMetadata(ctx context.Context, date string) (*model.DayMetadata, error)
}

// Store combines the persistence contracts a full collaborator provides.
type Store interface {
	RecordStore
	DayMetadataStore
	Close() error
}

// RetryOptions configures retry behavior for operations. The type lives in
// common so the retry helper stays import-cycle-free; the alias keeps this
// package's surface complete for collaborators.
type RetryOptions = common.RetryOptions
