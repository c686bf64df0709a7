package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hamaji/taxikko/internal/common"
	"github.com/hamaji/taxikko/internal/engine"
	"github.com/hamaji/taxikko/internal/model"
	"github.com/hamaji/taxikko/internal/stats"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show billing period revenue",
		Long: `Aggregate the billing period containing a reference date: totals,
per-payment-method breakdown, hour-of-day and weekday buckets, and goal
progress.`,
		RunE: runReport,
	}

	cmd.Flags().StringP("date", "d", "", "reference date (format: 2006-01-02, default: today)")
	cmd.Flags().Bool("breakdown", false, "include hour and weekday breakdowns")

	_ = viper.BindPFlag("report.date", cmd.Flags().Lookup("date"))
	_ = viper.BindPFlag("report.breakdown", cmd.Flags().Lookup("breakdown"))

	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	ref := time.Now()
	if raw := viper.GetString("report.date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return fmt.Errorf("invalid reference date %q: %w", raw, err)
		}
		ref = parsed
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng, err := engine.New(store, nil, engineConfig())
	if err != nil && !errors.Is(err, common.ErrInvalidConfig) {
		return err
	}

	s, err := eng.PeriodStats(ctx, ref)
	if err != nil {
		return err
	}
	p := eng.PeriodFor(ref)

	fmt.Printf("Billing period %s\n", p)
	fmt.Printf("  Total sales: %d\n", s.TotalSales)
	fmt.Printf("  Total rides: %d\n", s.TotalRides)
	fmt.Printf("  Days worked: %d (avg %d/day)\n", len(s.PerDate), s.AverageSalesPerDay())

	if len(s.PerPaymentMethod) > 0 {
		fmt.Println("  By payment method:")
		methods := make([]model.PaymentMethod, 0, len(s.PerPaymentMethod))
		for m := range s.PerPaymentMethod {
			methods = append(methods, m)
		}
		sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
		for _, m := range methods {
			sales := s.PerPaymentMethod[m]
			fmt.Printf("    %-10s %8d (%d%%)\n", m, sales, stats.Percent(sales, s.TotalSales))
		}
	}

	if viper.GetBool("report.breakdown") {
		printBreakdowns(s)
	}

	progress, err := eng.Progress(ctx, ref)
	if err != nil {
		return err
	}
	if progress.Goal > 0 {
		fmt.Printf("  Goal: %d / %d (%d%%)\n", progress.Sales, progress.Goal, progress.Percent)
	}
	return nil
}

func printBreakdowns(s *stats.PeriodStats) {
	fmt.Println("  By 3-hour bucket:")
	for i, sales := range s.PerHourBucket {
		fmt.Printf("    %02d:00-%02d:59 %8d\n", i*3, i*3+2, sales)
	}
	fmt.Println("  By weekday:")
	for i, sales := range s.PerWeekday {
		fmt.Printf("    %-9s %8d\n", time.Weekday(i), sales)
	}
	if s.GenderSplit.Male+s.GenderSplit.Female > 0 {
		fmt.Printf("  Passengers: %d male / %d female\n", s.GenderSplit.Male, s.GenderSplit.Female)
	}
}
