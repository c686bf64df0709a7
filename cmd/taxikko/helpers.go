package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/hamaji/taxikko/internal/common"
	"github.com/hamaji/taxikko/internal/config"
	"github.com/hamaji/taxikko/internal/engine"
	fsstore "github.com/hamaji/taxikko/internal/firestore"
	"github.com/hamaji/taxikko/internal/model"
	"github.com/hamaji/taxikko/internal/reconcile"
	"github.com/hamaji/taxikko/internal/service"
	"github.com/hamaji/taxikko/internal/storage"
)

// openStore builds the configured persistence collaborator: local sqlite by
// default, firestore when storage.backend says so.
func openStore(ctx context.Context) (service.Store, error) {
	switch backend := viper.GetString("storage.backend"); backend {
	case "", "sqlite":
		dbPath := viper.GetString("storage.sqlite.path")
		if dbPath == "" {
			dbPath = config.DefaultDBPath()
		}
		store, err := storage.NewSQLiteStorage(config.ExpandPath(dbPath))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		common.LogDebug("Opened sqlite store", common.Fields{"path": dbPath})
		return store, nil
	case "firestore":
		return fsstore.NewStore(ctx,
			viper.GetString("storage.firestore.project"),
			config.ExpandPath(viper.GetString("storage.firestore.credentials")),
			viper.GetString("storage.firestore.user"),
		)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", backend)
	}
}

// billingConfig reads the calendar settings. Out-of-range values fall back to
// the documented defaults inside the engine.
func billingConfig() model.BillingPeriodConfig {
	viper.SetDefault("billing.shimebi_day", model.DefaultShimebiDay)
	viper.SetDefault("billing.business_start_hour", model.DefaultBusinessStartHour)
	return model.BillingPeriodConfig{
		ShimebiDay:        viper.GetInt("billing.shimebi_day"),
		BusinessStartHour: viper.GetInt("billing.business_start_hour"),
	}
}

func engineConfig() engine.Config {
	return engine.Config{
		Billing:     billingConfig(),
		MonthlyGoal: viper.GetInt("billing.monthly_goal"),
	}
}

// stdinConfirmer presents a reconciliation conflict on the terminal and reads
// a y/N answer. Anything but an explicit yes declines the destructive switch.
type stdinConfirmer struct{}

func (stdinConfirmer) ConfirmModeSwitch(_ context.Context, conflict reconcile.Conflict) (bool, error) {
	fmt.Printf("%s already holds %s records: %d sales across %d rides.\n",
		conflict.Date, conflict.ExistingMode, conflict.ExistingSales, conflict.ExistingRides)
	fmt.Printf("Writing %s (%d sales, %d rides) will PERMANENTLY DELETE them.\n",
		conflict.IncomingMode, conflict.IncomingSales, conflict.IncomingRides)
	fmt.Print("Continue? [y/N]: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
