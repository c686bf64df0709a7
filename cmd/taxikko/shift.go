package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hamaji/taxikko/internal/businessday"
	"github.com/hamaji/taxikko/internal/common"
	"github.com/hamaji/taxikko/internal/config"
	"github.com/hamaji/taxikko/internal/model"
	"github.com/hamaji/taxikko/internal/shift"
)

func shiftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shift",
		Short: "Manage the live shift session",
	}

	cmd.AddCommand(shiftStartCmd())
	cmd.AddCommand(shiftAddCmd())
	cmd.AddCommand(shiftEditCmd())
	cmd.AddCommand(shiftDeleteCmd())
	cmd.AddCommand(shiftBreakCmd())
	cmd.AddCommand(shiftStatusCmd())
	cmd.AddCommand(shiftFinalizeCmd())
	return cmd
}

func shiftStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a shift",
		Long: `Open a new shift session. Records already belonging to today's business
date (an earlier shift that was never finalized) are adopted into the
session, so nothing is lost by closing the app mid-shift.`,
		RunE: func(c *cobra.Command, _ []string) error {
			goal, _ := c.Flags().GetInt("goal")
			hours, _ := c.Flags().GetInt("hours")
			odo, _ := c.Flags().GetInt("odo")

			return withSession(c.Context(), func(ctx context.Context, session *shift.Session) error {
				if err := session.Start(ctx, goal, hours, odo); err != nil {
					return err
				}
				snap := session.Snapshot()
				fmt.Printf("Shift started. Goal %d, adopted %d rides.\n", snap.DailyGoal, snap.Rides)
				return nil
			})
		},
	}

	cmd.Flags().Int("goal", 0, "daily sales goal")
	cmd.Flags().Int("hours", 0, "planned working hours")
	cmd.Flags().Int("odo", 0, "starting odometer reading")
	return cmd
}

func shiftAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a ride in the open shift",
		RunE: func(c *cobra.Command, _ []string) error {
			amount, _ := c.Flags().GetInt("amount")
			toll, _ := c.Flags().GetInt("toll")
			method, _ := c.Flags().GetString("payment")
			rideType, _ := c.Flags().GetString("type")
			pickup, _ := c.Flags().GetString("from")
			dropoff, _ := c.Flags().GetString("to")

			rec := model.Record{
				Timestamp:       time.Now(),
				Mode:            model.ModeDetailed,
				Amount:          amount,
				Toll:            toll,
				PaymentMethod:   model.PaymentMethod(method),
				RideType:        model.RideType(rideType),
				PickupLocation:  pickup,
				DropoffLocation: dropoff,
			}

			return withSession(c.Context(), func(ctx context.Context, session *shift.Session) error {
				if err := session.AddRecord(ctx, rec); err != nil {
					return err
				}
				snap := session.Snapshot()
				fmt.Printf("Recorded. Today: %d sales across %d rides.\n", snap.Sales, snap.Rides)
				return nil
			})
		},
	}

	cmd.Flags().Int("amount", 0, "fare amount")
	cmd.Flags().Int("toll", 0, "toll amount")
	cmd.Flags().String("payment", string(model.PaymentCash), "payment method")
	cmd.Flags().String("type", string(model.RideHail), "ride type")
	cmd.Flags().String("from", "", "pickup location")
	cmd.Flags().String("to", "", "dropoff location")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func shiftEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Correct a ride recorded in the open shift",
		RunE: func(c *cobra.Command, _ []string) error {
			id, _ := c.Flags().GetString("id")

			return withSession(c.Context(), func(ctx context.Context, session *shift.Session) error {
				rec, ok := findSessionRecord(session, id)
				if !ok {
					return common.NewUserError(
						fmt.Sprintf("No ride %s in this shift. Run 'taxikko shift status' to list ride IDs.", id),
						common.ErrNotFound)
				}

				if c.Flags().Changed("amount") {
					rec.Amount, _ = c.Flags().GetInt("amount")
				}
				if c.Flags().Changed("toll") {
					rec.Toll, _ = c.Flags().GetInt("toll")
				}
				if c.Flags().Changed("payment") {
					method, _ := c.Flags().GetString("payment")
					rec.PaymentMethod = model.PaymentMethod(method)
				}
				if c.Flags().Changed("type") {
					rideType, _ := c.Flags().GetString("type")
					rec.RideType = model.RideType(rideType)
				}
				if c.Flags().Changed("from") {
					rec.PickupLocation, _ = c.Flags().GetString("from")
				}
				if c.Flags().Changed("to") {
					rec.DropoffLocation, _ = c.Flags().GetString("to")
				}

				if err := session.EditRecord(ctx, rec); err != nil {
					return err
				}
				snap := session.Snapshot()
				fmt.Printf("Updated. Today: %d sales across %d rides.\n", snap.Sales, snap.Rides)
				return nil
			})
		},
	}

	cmd.Flags().String("id", "", "ride ID (see 'shift status')")
	cmd.Flags().Int("amount", 0, "fare amount")
	cmd.Flags().Int("toll", 0, "toll amount")
	cmd.Flags().String("payment", "", "payment method")
	cmd.Flags().String("type", "", "ride type")
	cmd.Flags().String("from", "", "pickup location")
	cmd.Flags().String("to", "", "dropoff location")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func shiftDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove a ride from the open shift",
		RunE: func(c *cobra.Command, _ []string) error {
			id, _ := c.Flags().GetString("id")

			return withSession(c.Context(), func(ctx context.Context, session *shift.Session) error {
				if err := session.DeleteRecord(ctx, id); err != nil {
					if errors.Is(err, common.ErrNotFound) {
						return common.NewUserError(
							fmt.Sprintf("No ride %s in this shift. Run 'taxikko shift status' to list ride IDs.", id), err)
					}
					return err
				}
				snap := session.Snapshot()
				fmt.Printf("Removed. Today: %d sales across %d rides.\n", snap.Sales, snap.Rides)
				return nil
			})
		},
	}

	cmd.Flags().String("id", "", "ride ID (see 'shift status')")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// findSessionRecord looks up a ride by ID in the live session.
func findSessionRecord(session *shift.Session, id string) (model.Record, bool) {
	for _, rec := range session.Records() {
		if rec.ID == id {
			return rec, true
		}
	}
	return model.Record{}, false
}

func shiftBreakCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "break",
		Short: "Toggle the break state",
		RunE: func(c *cobra.Command, _ []string) error {
			return withSession(c.Context(), func(_ context.Context, session *shift.Session) error {
				state, err := session.ToggleBreak()
				if err != nil {
					return err
				}
				if state == shift.StateOnBreak {
					fmt.Println("On break.")
				} else {
					snap := session.Snapshot()
					fmt.Printf("Back to work. %d rest minutes so far.\n", snap.RestMinutes)
				}
				return nil
			})
		},
	}
}

func shiftStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the live shift status",
		RunE: func(c *cobra.Command, _ []string) error {
			return withSession(c.Context(), func(_ context.Context, session *shift.Session) error {
				snap := session.Snapshot()
				if snap.State == shift.StateClosed {
					fmt.Println("No shift in progress.")
					return nil
				}
				fmt.Printf("Shift %s since %s\n", snap.State, snap.StartTime.Format("15:04"))
				fmt.Printf("  Sales: %d", snap.Sales)
				if snap.DailyGoal > 0 {
					fmt.Printf(" / %d", snap.DailyGoal)
				}
				fmt.Printf("\n  Rides: %d\n  Rest:  %d min\n", snap.Rides, snap.RestMinutes)
				for _, rec := range session.Records() {
					fmt.Printf("    %s  %s  %6d  %s\n",
						rec.ID, rec.Timestamp.Format("15:04"), rec.Amount, rec.PaymentMethod)
				}
				return nil
			})
		},
	}
}

func shiftFinalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "End the shift and commit it to history",
		RunE: func(c *cobra.Command, _ []string) error {
			odo, _ := c.Flags().GetInt("odo")
			return withSession(c.Context(), func(ctx context.Context, session *shift.Session) error {
				if err := session.Finalize(ctx, odo); err != nil {
					if common.IsRetryable(err) {
						return common.NewUserError(
							"Shift closed, but committing it to storage failed. Rides are already saved; check storage settings and connectivity.", err)
					}
					return err
				}
				fmt.Println("Shift finalized.")
				return nil
			})
		},
	}

	cmd.Flags().Int("odo", 0, "ending odometer reading")
	return cmd
}

// withSession opens the store, rehydrates any persisted session state, runs
// fn, then persists the session state again. Records never live in the state
// file; they are written through to the store as they happen.
func withSession(ctx context.Context, fn func(context.Context, *shift.Session) error) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	billing, _ := billingConfig().Normalize()
	res := businessday.NewResolver(billing.BusinessStartHour, time.Local)
	session := shift.NewSession(store, store, res, nil)

	statePath := sessionStatePath()
	if st, ok := loadSessionState(statePath); ok {
		if err := session.Restore(ctx, st); err != nil {
			return err
		}
	}

	opErr := fn(ctx, session)
	if saveErr := saveSessionState(statePath, session.PersistedState()); saveErr != nil {
		if opErr == nil {
			opErr = saveErr
		} else {
			common.LogError(saveErr, "Failed to persist session state", common.Fields{"path": statePath})
		}
	}
	if errors.Is(opErr, common.ErrNoActiveSession) {
		return common.NewUserError("No shift in progress. Run 'taxikko shift start' first.", opErr)
	}
	return opErr
}

func sessionStatePath() string {
	if p := viper.GetString("session.state_file"); p != "" {
		return config.ExpandPath(p)
	}
	return config.DefaultSessionStatePath()
}

func loadSessionState(path string) (shift.PersistedState, bool) {
	var st shift.PersistedState
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from our own config
	if err != nil {
		return st, false
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, false
	}
	return st, true
}

func saveSessionState(path string, st shift.PersistedState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	return nil
}
