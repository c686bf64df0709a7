// Package engine composes the business calendar, reconciler and aggregator
// over a record store into the operations consumers call: period statistics,
// goal progress, and mode-aware record writes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/hamaji/taxikko/internal/businessday"
	"github.com/hamaji/taxikko/internal/common"
	"github.com/hamaji/taxikko/internal/model"
	"github.com/hamaji/taxikko/internal/reconcile"
	"github.com/hamaji/taxikko/internal/service"
	"github.com/hamaji/taxikko/internal/shift"
	"github.com/hamaji/taxikko/internal/stats"
)

// Confirmer resolves a reconciliation conflict by asking the user. Returning
// true authorizes the destructive mode switch: the superseded records are
// permanently deleted before the incoming record is written.
type Confirmer interface {
	ConfirmModeSwitch(ctx context.Context, conflict reconcile.Conflict) (bool, error)
}

// Config holds the engine's calendar configuration and goal settings.
type Config struct {
	Location    *time.Location
	Billing     model.BillingPeriodConfig
	MonthlyGoal int
}

// Engine orchestrates period revenue aggregation over a store and, when one
// is attached, a live shift session.
type Engine struct {
	store       service.Store
	session     *shift.Session
	loc         *time.Location
	res         businessday.Resolver
	billing     model.BillingPeriodConfig
	monthlyGoal int
}

// New creates an engine. An out-of-range billing config is replaced by the
// documented defaults; the substitution is logged and reported to the caller
// alongside the usable engine.
func New(store service.Store, session *shift.Session, cfg Config) (*Engine, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	billing, err := cfg.Billing.Normalize()
	if err != nil {
		slog.Warn("Billing config out of range, using defaults",
			"shimebi_day", cfg.Billing.ShimebiDay,
			"business_start_hour", cfg.Billing.BusinessStartHour,
			"error", err)
	}

	return &Engine{
		store:       store,
		session:     session,
		loc:         loc,
		res:         businessday.NewResolver(billing.BusinessStartHour, loc),
		billing:     billing,
		monthlyGoal: cfg.MonthlyGoal,
	}, err
}

// Resolver returns the engine's business-date resolver.
func (e *Engine) Resolver() businessday.Resolver {
	return e.res
}

// PeriodFor returns the billing period containing ref.
func (e *Engine) PeriodFor(ref time.Time) businessday.Period {
	return businessday.PeriodFor(ref, e.billing.ShimebiDay, e.loc)
}

// PeriodStats aggregates the billing period containing ref. Finalized history
// is merged with the open session's live records (the unfinalized "today"),
// counting any record present in both exactly once.
func (e *Engine) PeriodStats(ctx context.Context, ref time.Time) (*stats.PeriodStats, error) {
	return e.statsFor(ctx, e.PeriodFor(ref))
}

// DayStats aggregates a single business date. The argument is the business
// date itself (any clock time on that calendar day); to aggregate the date
// containing a raw timestamp, resolve it first via Resolver().Resolve.
func (e *Engine) DayStats(ctx context.Context, day time.Time) (*stats.PeriodStats, error) {
	y, m, d := day.In(e.loc).Date()
	bd := time.Date(y, m, d, 0, 0, 0, 0, e.loc)
	return e.statsFor(ctx, businessday.Period{Start: bd, End: bd})
}

func (e *Engine) statsFor(ctx context.Context, p businessday.Period) (*stats.PeriodStats, error) {
	from, to := p.TimestampWindow(e.billing.BusinessStartHour)
	history, err := e.store.GetRecordsByRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load records for %s: %w", p, err)
	}

	var live []model.Record
	if e.session != nil {
		live = e.session.Records()
	}

	return stats.Aggregate(p, reconcile.Merge(history, live), e.res), nil
}

// GoalProgress reports period sales against the configured monthly goal.
type GoalProgress struct {
	Period  businessday.Period
	Goal    int
	Sales   int
	Percent int
}

// Progress computes goal progress for the billing period containing ref.
// With no goal configured, Percent is 0.
func (e *Engine) Progress(ctx context.Context, ref time.Time) (*GoalProgress, error) {
	p := e.PeriodFor(ref)
	s, err := e.statsFor(ctx, p)
	if err != nil {
		return nil, err
	}
	return &GoalProgress{
		Period:  p,
		Goal:    e.monthlyGoal,
		Sales:   s.TotalSales,
		Percent: stats.Percent(s.TotalSales, e.monthlyGoal),
	}, nil
}

// WriteDetailed writes a per-ride record into history. If the record's
// business date is canonically held by a SimpleSummary, the switch must be
// confirmed; on confirmation the summary is permanently deleted first.
func (e *Engine) WriteDetailed(ctx context.Context, rec model.Record, confirm Confirmer) error {
	rec.Mode = model.ModeDetailed
	return e.write(ctx, rec, confirm)
}

// WriteSimpleSummary writes a date's single aggregate record. An existing
// summary on the date is replaced outright; existing Detailed records require
// a confirmed switch and are then permanently deleted.
func (e *Engine) WriteSimpleSummary(ctx context.Context, rec model.Record, confirm Confirmer) error {
	rec.Mode = model.ModeSimpleSummary
	return e.write(ctx, rec, confirm)
}

func (e *Engine) write(ctx context.Context, rec model.Record, confirm Confirmer) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	day := e.res.Resolve(rec.Timestamp)
	p := businessday.Period{Start: day, End: day}
	from, to := p.TimestampWindow(e.billing.BusinessStartHour)
	existing, err := e.store.GetRecordsByRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to load records for %s: %w", p, err)
	}

	if conflict := reconcile.CheckWrite(existing, rec, e.res); conflict != nil {
		if confirm == nil {
			return conflict
		}
		ok, confirmErr := confirm.ConfirmModeSwitch(ctx, *conflict)
		if confirmErr != nil {
			return fmt.Errorf("mode switch confirmation failed: %w", confirmErr)
		}
		if !ok {
			return conflict
		}

		superseded := reconcile.Superseded(existing, rec, e.res)
		if err := e.store.DeleteRecords(ctx, superseded); err != nil {
			return fmt.Errorf("failed to delete superseded records: %w", err)
		}
		slog.Info("Mode switch confirmed, superseded records deleted",
			"business_date", conflict.Date,
			"from_mode", conflict.ExistingMode,
			"to_mode", conflict.IncomingMode,
			"deleted", len(superseded))
	}

	if rec.IsSimple() {
		if prior := reconcile.PriorSummaries(existing, rec, e.res); len(prior) > 0 {
			if err := e.store.DeleteRecords(ctx, prior); err != nil {
				return fmt.Errorf("failed to replace prior summary: %w", err)
			}
		}
	}

	if err := e.store.SaveRecords(ctx, []model.Record{rec}); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// SetDayMemo updates a business date's memo, creating the metadata row when
// the date has none yet.
func (e *Engine) SetDayMemo(ctx context.Context, date, memo string) error {
	meta, err := e.store.GetDayMetadata(ctx, date)
	if errors.Is(err, common.ErrNotFound) {
		meta = &model.DayMetadata{Date: date}
	} else if err != nil {
		return fmt.Errorf("failed to load day metadata: %w", err)
	}
	meta.Memo = memo
	meta.UpdatedAt = time.Now()
	return e.store.SaveDayMetadata(ctx, meta)
}

// SeedDutyDays draws a fresh weekday-biased candidate duty-day sample for the
// billing period containing ref. Callers re-run this whenever the closing day
// changes.
func (e *Engine) SeedDutyDays(ref time.Time, r *rand.Rand) []time.Time {
	return businessday.SampleDutyDays(e.PeriodFor(ref), businessday.DefaultDutyDays, r)
}
