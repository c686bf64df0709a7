package main

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamaji/taxikko/internal/common"
	"github.com/hamaji/taxikko/internal/engine"
)

func dutyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duty",
		Short: "Suggest candidate duty days for the current billing period",
		Long: `Draw a weekday-biased sample of candidate duty days from the billing
period. Run this again after changing the closing day.`,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := c.Context()
			seed, _ := c.Flags().GetInt64("seed")

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng, err := engine.New(store, nil, engineConfig())
			if err != nil && !errors.Is(err, common.ErrInvalidConfig) {
				return err
			}

			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			days := eng.SeedDutyDays(time.Now(), rand.New(rand.NewSource(seed)))

			fmt.Printf("Candidate duty days (%d):\n", len(days))
			for _, d := range days {
				fmt.Printf("  %s (%s)\n", d.Format("2006/01/02"), d.Weekday())
			}
			return nil
		},
	}

	cmd.Flags().Int64("seed", 0, "random seed (default: time-based)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(c *cobra.Command, _ []string) error {
			store, err := openStore(c.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			fmt.Println("Database is up to date.")
			return nil
		},
	}
}
