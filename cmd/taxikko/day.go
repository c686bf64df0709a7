package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamaji/taxikko/internal/businessday"
	"github.com/hamaji/taxikko/internal/common"
	"github.com/hamaji/taxikko/internal/engine"
	"github.com/hamaji/taxikko/internal/model"
)

func dayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "day",
		Short: "Work with a single business date",
	}

	cmd.AddCommand(daySimpleCmd())
	cmd.AddCommand(dayMemoCmd())
	cmd.AddCommand(dayShowCmd())
	return cmd
}

func daySimpleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simple",
		Short: "Record one day's revenue as a single summary",
		Long: `Write a date's revenue as one aggregate entry instead of per-ride
records. If the date already holds per-ride records, both totals are
shown and the switch must be confirmed; confirming deletes them
permanently.`,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := c.Context()

			date, _ := c.Flags().GetString("date")
			amount, _ := c.Flags().GetInt("amount")
			rides, _ := c.Flags().GetInt("rides")
			minutes, _ := c.Flags().GetInt("minutes")
			startClock, _ := c.Flags().GetString("start")
			endClock, _ := c.Flags().GetString("end")
			note, _ := c.Flags().GetString("note")

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng, err := engine.New(store, nil, engineConfig())
			if err != nil && !errors.Is(err, common.ErrInvalidConfig) {
				return err
			}

			day, err := parseDay(date, eng.Resolver())
			if err != nil {
				return err
			}

			rec := model.Record{
				// Noon keeps the timestamp inside the business day for any
				// start hour.
				Timestamp:   day.Add(12 * time.Hour),
				Amount:      amount,
				RideCount:   rides,
				WorkMinutes: minutes,
				StartClock:  startClock,
				EndClock:    endClock,
				Note:        note,
			}

			if err := eng.WriteSimpleSummary(ctx, rec, stdinConfirmer{}); err != nil {
				if errors.Is(err, common.ErrReconciliationConflict) {
					fmt.Println("Cancelled; existing records kept.")
					return nil
				}
				return err
			}
			fmt.Printf("Summary recorded for %s: %d sales, %d rides.\n",
				day.Format(businessday.KeyLayout), amount, rides)
			return nil
		},
	}

	cmd.Flags().String("date", "", "business date (format: 2006-01-02, default: today)")
	cmd.Flags().Int("amount", 0, "total sales for the day")
	cmd.Flags().Int("rides", 0, "ride count for the day")
	cmd.Flags().Int("minutes", 0, "minutes worked")
	cmd.Flags().String("start", "", "shift start clock time (HH:MM)")
	cmd.Flags().String("end", "", "shift end clock time (HH:MM)")
	cmd.Flags().String("note", "", "free-text note")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func dayMemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memo <text>",
		Short: "Set a business date's memo",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()

			date, _ := c.Flags().GetString("date")

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng, err := engine.New(store, nil, engineConfig())
			if err != nil && !errors.Is(err, common.ErrInvalidConfig) {
				return err
			}

			day, err := parseDay(date, eng.Resolver())
			if err != nil {
				return err
			}

			return eng.SetDayMemo(ctx, day.Format(businessday.KeyLayout), args[0])
		},
	}

	cmd.Flags().String("date", "", "business date (format: 2006-01-02, default: today)")
	return cmd
}

func dayShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one business date's canonical totals",
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := c.Context()

			date, _ := c.Flags().GetString("date")

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng, err := engine.New(store, nil, engineConfig())
			if err != nil && !errors.Is(err, common.ErrInvalidConfig) {
				return err
			}

			day, err := parseDay(date, eng.Resolver())
			if err != nil {
				return err
			}

			s, err := eng.DayStats(ctx, day)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d sales, %d rides\n",
				day.Format(businessday.KeyLayout), s.TotalSales, s.TotalRides)
			return nil
		},
	}

	cmd.Flags().String("date", "", "business date (format: 2006-01-02, default: today)")
	return cmd
}

// parseDay parses an explicit date, or resolves "now" to the current business
// date so a 2 AM invocation still targets yesterday's shift.
func parseDay(raw string, res businessday.Resolver) (time.Time, error) {
	if raw == "" {
		return res.Resolve(time.Now()), nil
	}
	day, err := time.ParseInLocation("2006-01-02", raw, res.Loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return day, nil
}
