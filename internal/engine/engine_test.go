package engine

import (
	"bytes"
	"context"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamaji/taxikko/internal/businessday"
	"github.com/hamaji/taxikko/internal/common"
	"github.com/hamaji/taxikko/internal/model"
	"github.com/hamaji/taxikko/internal/reconcile"
	"github.com/hamaji/taxikko/internal/shift"
	"github.com/hamaji/taxikko/internal/testutil"
)

var jst = time.FixedZone("JST", 9*60*60)

func testEngine(t *testing.T) (*Engine, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	eng, err := New(db.Store, nil, Config{
		Location:    jst,
		Billing:     model.BillingPeriodConfig{ShimebiDay: 20, BusinessStartHour: 9},
		MonthlyGoal: 500000,
	})
	require.NoError(t, err)
	return eng, db
}

func ride(id string, ts time.Time, amount int) model.Record {
	return model.Record{
		ID:            id,
		Timestamp:     ts,
		Mode:          model.ModeDetailed,
		Amount:        amount,
		PaymentMethod: model.PaymentCash,
	}
}

func TestNew_InvalidConfigFallsBackToDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	eng, err := New(db.Store, nil, Config{
		Location: jst,
		Billing:  model.BillingPeriodConfig{ShimebiDay: 31, BusinessStartHour: 30},
	})

	require.ErrorIs(t, err, common.ErrInvalidConfig, "the substitution is reported, not silent")
	require.NotNil(t, eng, "the engine is still usable on the defaults")

	// Default shimebi day 20
	p := eng.PeriodFor(time.Date(2025, 3, 10, 0, 0, 0, 0, jst))
	assert.Equal(t, 20, p.End.Day())
	// Default business start hour 9
	assert.Equal(t, "2025/03/09", eng.Resolver().Key(time.Date(2025, 3, 10, 2, 0, 0, 0, jst)))

	// The warning names the offending values, not the substituted defaults.
	assert.Contains(t, logs.String(), "shimebi_day=31")
	assert.Contains(t, logs.String(), "business_start_hour=30")
}

func TestEngine_PeriodStats(t *testing.T) {
	ctx := context.Background()
	eng, db := testEngine(t)

	db.SeedRecords(
		ride("in-1", time.Date(2025, 3, 10, 14, 0, 0, 0, jst), 3000),
		// 2 AM on the day after the closing day still belongs to the closing
		// day's business date, inside the period.
		ride("in-2", time.Date(2025, 3, 21, 2, 0, 0, 0, jst), 4000),
		// Past the period
		ride("out-1", time.Date(2025, 3, 21, 12, 0, 0, 0, jst), 9000),
	)

	s, err := eng.PeriodStats(ctx, time.Date(2025, 3, 10, 0, 0, 0, 0, jst))
	require.NoError(t, err)

	assert.Equal(t, 7000, s.TotalSales)
	assert.Equal(t, 2, s.TotalRides)
}

func TestEngine_PeriodStatsWithLiveSession(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	res := businessday.NewResolver(9, jst)

	clock := func() time.Time { return time.Date(2025, 3, 10, 10, 0, 0, 0, jst) }
	session := shift.NewSession(db.Store, db.Store, res, clock)

	// Yesterday's finalized history
	db.SeedRecords(ride("old", time.Date(2025, 3, 9, 14, 0, 0, 0, jst), 6000))

	require.NoError(t, session.Start(ctx, 0, 0, 0))
	require.NoError(t, session.AddRecord(ctx, ride("live", clock(), 3000)))

	eng, err := New(db.Store, session, Config{
		Location: jst,
		Billing:  model.BillingPeriodConfig{ShimebiDay: 20, BusinessStartHour: 9},
	})
	require.NoError(t, err)

	// "live" is in both the session and the store (write-through); it must
	// count once.
	s, err := eng.PeriodStats(ctx, clock())
	require.NoError(t, err)
	assert.Equal(t, 9000, s.TotalSales)
	assert.Equal(t, 2, s.TotalRides)
}

func TestEngine_DayStats(t *testing.T) {
	ctx := context.Background()
	eng, db := testEngine(t)

	db.SeedRecords(
		ride("a", time.Date(2025, 3, 10, 14, 0, 0, 0, jst), 3000),
		ride("b", time.Date(2025, 3, 11, 2, 0, 0, 0, jst), 4000), // same business date
		ride("c", time.Date(2025, 3, 11, 14, 0, 0, 0, jst), 9000),
	)

	s, err := eng.DayStats(ctx, time.Date(2025, 3, 10, 12, 0, 0, 0, jst))
	require.NoError(t, err)
	assert.Equal(t, 7000, s.TotalSales)
	assert.Equal(t, 2, s.TotalRides)
}

func TestEngine_DayStatsAtMidnight(t *testing.T) {
	ctx := context.Background()
	eng, _ := testEngine(t)

	// The summary lands at noon; asking for the date at midnight (the form a
	// parsed --date flag arrives in) must hit the same business date, not the
	// day before.
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, jst)
	require.NoError(t, eng.WriteSimpleSummary(ctx, model.Record{
		ID:        "s1",
		Timestamp: day.Add(12 * time.Hour),
		Amount:    20000,
		RideCount: 5,
	}, nil))

	s, err := eng.DayStats(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 20000, s.TotalSales)
	assert.Equal(t, 5, s.TotalRides)
}

// recordingConfirmer scripts a confirmation answer and captures the conflict.
type recordingConfirmer struct {
	conflict *reconcile.Conflict
	answer   bool
	called   bool
}

func (c *recordingConfirmer) ConfirmModeSwitch(_ context.Context, conflict reconcile.Conflict) (bool, error) {
	c.called = true
	c.conflict = &conflict
	return c.answer, nil
}

func TestEngine_WriteSimpleSummary_ConfirmedSwitchDeletesDetailed(t *testing.T) {
	ctx := context.Background()
	eng, db := testEngine(t)

	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, jst)
	db.SeedRecords(
		ride("d1", ts, 6000),
		ride("d2", ts.Add(time.Hour), 6000),
		ride("d3", ts.Add(2*time.Hour), 6000),
	)

	confirmer := &recordingConfirmer{answer: true}
	summary := model.Record{
		ID:        "s1",
		Timestamp: ts.Add(3 * time.Hour),
		Amount:    20000,
		RideCount: 5,
	}
	require.NoError(t, eng.WriteSimpleSummary(ctx, summary, confirmer))

	require.True(t, confirmer.called)
	assert.Equal(t, 18000, confirmer.conflict.ExistingSales)
	assert.Equal(t, 20000, confirmer.conflict.IncomingSales)

	// The superseded detailed records are gone from storage, not hidden.
	for _, id := range []string{"d1", "d2", "d3"} {
		_, err := db.Store.GetRecordByID(ctx, id)
		assert.ErrorIs(t, err, common.ErrNotFound, id)
	}

	s, err := eng.DayStats(ctx, ts)
	require.NoError(t, err)
	assert.Equal(t, 20000, s.TotalSales)
	assert.Equal(t, 5, s.TotalRides)
}

func TestEngine_WriteSimpleSummary_DeclinedSwitchKeepsDetailed(t *testing.T) {
	ctx := context.Background()
	eng, db := testEngine(t)

	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, jst)
	db.SeedRecords(ride("d1", ts, 6000))

	confirmer := &recordingConfirmer{answer: false}
	err := eng.WriteSimpleSummary(ctx, model.Record{Timestamp: ts, Amount: 20000, RideCount: 5}, confirmer)

	require.ErrorIs(t, err, common.ErrReconciliationConflict)

	_, getErr := db.Store.GetRecordByID(ctx, "d1")
	assert.NoError(t, getErr, "declining must not delete anything")

	s, statsErr := eng.DayStats(ctx, ts)
	require.NoError(t, statsErr)
	assert.Equal(t, 6000, s.TotalSales)
}

func TestEngine_WriteSimpleSummary_ReplacesPriorSummary(t *testing.T) {
	ctx := context.Background()
	eng, db := testEngine(t)

	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, jst)
	require.NoError(t, eng.WriteSimpleSummary(ctx, model.Record{ID: "s1", Timestamp: ts, Amount: 10000, RideCount: 3}, nil))
	require.NoError(t, eng.WriteSimpleSummary(ctx, model.Record{ID: "s2", Timestamp: ts.Add(time.Hour), Amount: 12000, RideCount: 4}, nil))

	_, err := db.Store.GetRecordByID(ctx, "s1")
	assert.ErrorIs(t, err, common.ErrNotFound, "a second summary replaces the first")

	s, err := eng.DayStats(ctx, ts)
	require.NoError(t, err)
	assert.Equal(t, 12000, s.TotalSales)
	assert.Equal(t, 4, s.TotalRides)
}

func TestEngine_WriteDetailed_OntoSummaryNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	eng, db := testEngine(t)

	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, jst)
	require.NoError(t, eng.WriteSimpleSummary(ctx, model.Record{ID: "s1", Timestamp: ts, Amount: 20000, RideCount: 5}, nil))

	// No confirmer: the conflict comes back as a decision point.
	err := eng.WriteDetailed(ctx, ride("", ts.Add(time.Hour), 3000), nil)
	require.ErrorIs(t, err, common.ErrReconciliationConflict)

	confirmer := &recordingConfirmer{answer: true}
	require.NoError(t, eng.WriteDetailed(ctx, ride("d1", ts.Add(time.Hour), 3000), confirmer))

	_, getErr := db.Store.GetRecordByID(ctx, "s1")
	assert.ErrorIs(t, getErr, common.ErrNotFound)

	s, statsErr := eng.DayStats(ctx, ts)
	require.NoError(t, statsErr)
	assert.Equal(t, 3000, s.TotalSales)
}

func TestEngine_Progress(t *testing.T) {
	ctx := context.Background()
	eng, db := testEngine(t)

	db.SeedRecords(ride("a", time.Date(2025, 3, 10, 14, 0, 0, 0, jst), 250000))

	progress, err := eng.Progress(ctx, time.Date(2025, 3, 10, 0, 0, 0, 0, jst))
	require.NoError(t, err)

	assert.Equal(t, 500000, progress.Goal)
	assert.Equal(t, 250000, progress.Sales)
	assert.Equal(t, 50, progress.Percent)
}

func TestEngine_SeedDutyDays(t *testing.T) {
	eng, _ := testEngine(t)

	days := eng.SeedDutyDays(time.Date(2025, 3, 10, 0, 0, 0, 0, jst), rand.New(rand.NewSource(1)))
	p := eng.PeriodFor(time.Date(2025, 3, 10, 0, 0, 0, 0, jst))

	assert.Len(t, days, businessday.DefaultDutyDays)
	for _, d := range days {
		assert.True(t, p.Contains(d))
	}
}

func TestEngine_SetDayMemo(t *testing.T) {
	ctx := context.Background()
	eng, db := testEngine(t)

	require.NoError(t, eng.SetDayMemo(ctx, "2025/03/10", "rainy, airport runs"))

	meta, err := db.Store.GetDayMetadata(ctx, "2025/03/10")
	require.NoError(t, err)
	assert.Equal(t, "rainy, airport runs", meta.Memo)

	// Updating keeps the row
	require.NoError(t, eng.SetDayMemo(ctx, "2025/03/10", "rainy"))
	meta, err = db.Store.GetDayMetadata(ctx, "2025/03/10")
	require.NoError(t, err)
	assert.Equal(t, "rainy", meta.Memo)
}
