// Package testutil provides test helpers for exercising the engine against a
// real store.
package testutil

import (
	"context"
	"testing"

	"github.com/hamaji/taxikko/internal/model"
	"github.com/hamaji/taxikko/internal/service"
	"github.com/hamaji/taxikko/internal/storage"
)

// TestDB wraps an in-memory store for tests.
type TestDB struct {
	Store service.Store
	t     *testing.T
}

// SetupTestDB creates a migrated in-memory SQLite store with automatic
// cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Store: store, t: t}
}

// SeedRecords saves the given records, failing the test on error.
func (db *TestDB) SeedRecords(records ...model.Record) {
	db.t.Helper()
	if len(records) == 0 {
		return
	}
	if err := db.Store.SaveRecords(context.Background(), records); err != nil {
		db.t.Fatalf("failed to seed records: %v", err)
	}
}

// SeedDayMetadata saves the given metadata row, failing the test on error.
func (db *TestDB) SeedDayMetadata(meta *model.DayMetadata) {
	db.t.Helper()
	if err := db.Store.SaveDayMetadata(context.Background(), meta); err != nil {
		db.t.Fatalf("failed to seed day metadata: %v", err)
	}
}
