package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamaji/taxikko/internal/common"
	"github.com/hamaji/taxikko/internal/model"
)

var jst = time.FixedZone("JST", 9*60*60)

func setupStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func rec(id string, ts time.Time, amount int) model.Record {
	return model.Record{
		ID:            id,
		Timestamp:     ts,
		Mode:          model.ModeDetailed,
		Amount:        amount,
		PaymentMethod: model.PaymentCash,
		RideType:      model.RideHail,
	}
}

func TestSaveRecords_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	ts := time.Date(2025, 3, 10, 14, 30, 0, 0, jst)
	in := model.Record{
		ID:               "r1",
		Timestamp:        ts,
		Mode:             model.ModeDetailed,
		Amount:           3200,
		Toll:             800,
		ReturnToll:       400,
		NonCashAmount:    3200,
		PaymentMethod:    model.PaymentCard,
		RideType:         model.RideApp,
		PickupLocation:   "Tokyo Station",
		DropoffLocation:  "Haneda T2",
		PickupCoords:     &model.Coordinates{Latitude: 35.6812, Longitude: 139.7671},
		DropoffCoords:    &model.Coordinates{Latitude: 35.5494, Longitude: 139.7798},
		PassengersMale:   1,
		PassengersFemale: 2,
		Remarks:          "airport",
		IsBadCustomer:    false,
	}
	require.NoError(t, s.SaveRecords(ctx, []model.Record{in}))

	got, err := s.GetRecordByID(ctx, "r1")
	require.NoError(t, err)

	assert.True(t, got.Timestamp.Equal(ts), "timestamps compare by instant")
	assert.Equal(t, in.Mode, got.Mode)
	assert.Equal(t, in.Amount, got.Amount)
	assert.Equal(t, in.Toll, got.Toll)
	assert.Equal(t, in.ReturnToll, got.ReturnToll)
	assert.Equal(t, in.NonCashAmount, got.NonCashAmount)
	assert.Equal(t, in.PaymentMethod, got.PaymentMethod)
	assert.Equal(t, in.RideType, got.RideType)
	assert.Equal(t, in.PickupLocation, got.PickupLocation)
	assert.Equal(t, in.DropoffLocation, got.DropoffLocation)
	require.NotNil(t, got.PickupCoords)
	assert.InDelta(t, 35.6812, got.PickupCoords.Latitude, 1e-9)
	assert.InDelta(t, 139.7671, got.PickupCoords.Longitude, 1e-9)
	require.NotNil(t, got.DropoffCoords)
	assert.Equal(t, 1, got.PassengersMale)
	assert.Equal(t, 2, got.PassengersFemale)
	assert.Equal(t, "airport", got.Remarks)
}

func TestSaveRecords_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	ts := time.Date(2025, 3, 10, 14, 0, 0, 0, jst)
	require.NoError(t, s.SaveRecords(ctx, []model.Record{rec("r1", ts, 3000)}))

	updated := rec("r1", ts, 4500)
	updated.Note = "corrected fare"
	require.NoError(t, s.SaveRecords(ctx, []model.Record{updated}))

	got, err := s.GetRecordByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 4500, got.Amount)
	assert.Equal(t, "corrected fare", got.Note)

	all, err := s.GetRecordsByRange(ctx, ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 1, "upsert must not duplicate the row")
}

func TestSaveRecords_NilCoordinates(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	ts := time.Date(2025, 3, 10, 14, 0, 0, 0, jst)
	require.NoError(t, s.SaveRecords(ctx, []model.Record{rec("r1", ts, 3000)}))

	got, err := s.GetRecordByID(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got.PickupCoords)
}

func TestSaveRecords_SimpleSummary(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	ts := time.Date(2025, 3, 10, 21, 0, 0, 0, jst)
	in := model.Record{
		ID:          "s1",
		Timestamp:   ts,
		Mode:        model.ModeSimpleSummary,
		Amount:      42000,
		RideCount:   12,
		WorkMinutes: 540,
		StartClock:  "08:30",
		EndClock:    "18:00",
	}
	require.NoError(t, s.SaveRecords(ctx, []model.Record{in}))

	got, err := s.GetRecordByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.ModeSimpleSummary, got.Mode)
	assert.Equal(t, 12, got.RideCount)
	assert.Equal(t, 540, got.WorkMinutes)
	assert.Equal(t, "08:30", got.StartClock)
	assert.Equal(t, "18:00", got.EndClock)
}

func TestSaveRecords_Validation(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	ts := time.Date(2025, 3, 10, 14, 0, 0, 0, jst)

	err := s.SaveRecords(ctx, nil)
	assert.ErrorIs(t, err, ErrNilParameter)

	err = s.SaveRecords(ctx, []model.Record{})
	assert.ErrorIs(t, err, ErrEmptySlice)

	err = s.SaveRecords(ctx, []model.Record{{ID: "", Timestamp: ts, Mode: model.ModeDetailed}})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	err = s.SaveRecords(ctx, []model.Record{{ID: "r1", Timestamp: ts, Mode: "BOGUS"}})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	err = s.SaveRecords(nil, []model.Record{rec("r1", ts, 100)}) //nolint:staticcheck // validating the nil guard
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestGetRecordByID_NotFound(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	_, err := s.GetRecordByID(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = s.GetRecordByID(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestGetRecordsByRange_HalfOpen(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	from := time.Date(2025, 3, 10, 9, 0, 0, 0, jst)
	to := from.Add(24 * time.Hour)
	require.NoError(t, s.SaveRecords(ctx, []model.Record{
		rec("before", from.Add(-time.Second), 100),
		rec("at-start", from, 200),
		rec("middle", from.Add(12*time.Hour), 300),
		rec("at-end", to, 400),
	}))

	got, err := s.GetRecordsByRange(ctx, from, to)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "at-start", got[0].ID, "from is inclusive")
	assert.Equal(t, "middle", got[1].ID, "to is exclusive")
}

func TestGetRecordsByRange_OrderedByTimestamp(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, jst)
	require.NoError(t, s.SaveRecords(ctx, []model.Record{
		rec("c", base.Add(3*time.Hour), 300),
		rec("a", base.Add(time.Hour), 100),
		rec("b", base.Add(2*time.Hour), 200),
	}))

	got, err := s.GetRecordsByRange(ctx, base, base.Add(24*time.Hour))
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
}

func TestGetRecordsByRange_InvalidRange(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	from := time.Date(2025, 3, 10, 9, 0, 0, 0, jst)
	_, err := s.GetRecordsByRange(ctx, from, from.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestDeleteRecords(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	ts := time.Date(2025, 3, 10, 14, 0, 0, 0, jst)
	require.NoError(t, s.SaveRecords(ctx, []model.Record{
		rec("r1", ts, 100),
		rec("r2", ts.Add(time.Hour), 200),
	}))

	// Unknown ids are ignored alongside real ones.
	require.NoError(t, s.DeleteRecords(ctx, []string{"r1", "ghost"}))

	_, err := s.GetRecordByID(ctx, "r1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = s.GetRecordByID(ctx, "r2")
	assert.NoError(t, err)

	// Empty set is a no-op.
	require.NoError(t, s.DeleteRecords(ctx, nil))
}

func TestDayMetadata_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	in := &model.DayMetadata{
		Date:            "2025/03/10",
		Memo:            "rainy",
		AttributedMonth: "2025/03",
		RestMinutes:     45,
		StartOdometer:   118000,
		EndOdometer:     118300,
	}
	require.NoError(t, s.SaveDayMetadata(ctx, in))

	got, err := s.GetDayMetadata(ctx, "2025/03/10")
	require.NoError(t, err)
	assert.Equal(t, "rainy", got.Memo)
	assert.Equal(t, "2025/03", got.AttributedMonth)
	assert.Equal(t, 45, got.RestMinutes)
	assert.Equal(t, 118000, got.StartOdometer)
	assert.Equal(t, 118300, got.EndOdometer)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestDayMetadata_UpsertReplacesByDate(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	require.NoError(t, s.SaveDayMetadata(ctx, &model.DayMetadata{Date: "2025/03/10", Memo: "first"}))
	require.NoError(t, s.SaveDayMetadata(ctx, &model.DayMetadata{Date: "2025/03/10", Memo: "second", RestMinutes: 30}))

	got, err := s.GetDayMetadata(ctx, "2025/03/10")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Memo)
	assert.Equal(t, 30, got.RestMinutes)
}

func TestDayMetadata_NotFound(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	_, err := s.GetDayMetadata(ctx, "2025/03/10")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	require.NoError(t, s.Migrate(ctx))

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)
}
