package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/middleworldfarms/soilsync/internal/clock"
	"github.com/middleworldfarms/soilsync/internal/closure"
	"github.com/middleworldfarms/soilsync/internal/commerce"
	"github.com/middleworldfarms/soilsync/internal/config"
	"github.com/middleworldfarms/soilsync/internal/database"
	"github.com/middleworldfarms/soilsync/internal/migration"
	"github.com/middleworldfarms/soilsync/internal/observability"
	"github.com/middleworldfarms/soilsync/internal/payment"
	"github.com/middleworldfarms/soilsync/internal/plan"
	"github.com/middleworldfarms/soilsync/internal/redis"
	"github.com/middleworldfarms/soilsync/internal/renewal"
	"github.com/middleworldfarms/soilsync/internal/server"
	"github.com/middleworldfarms/soilsync/internal/subscription"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "soilsync",
		Short:   "SoilSync subscription billing CLI",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newAPICmd(), newSchedulerCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Run the lifecycle and webhook API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runAPI()
			return nil
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the renewal scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then the API server and renewal scheduler together",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runMonolith()
			return nil
		},
	}
}

func runMigrate() error {
	version, err := migration.LatestMigrationVersion()
	if err != nil {
		return err
	}
	checksum, err := migration.MigrationsChecksum()
	if err != nil {
		return err
	}
	fmt.Printf("applying migrations: target_version=%d checksum=%s\n", version, checksum)

	app := fx.New(
		config.Module,
		observability.Module,
		database.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runAPI() {
	app := fx.New(
		coreModules(),
		server.Module,
	)
	app.Run()
}

func runScheduler() {
	app := fx.New(
		coreModules(),
		renewal.Module,
		renewal.CronModule,
	)
	app.Run()
}

func runMonolith() {
	app := fx.New(
		coreModules(),
		server.Module,
		renewal.Module,
		renewal.CronModule,
	)
	app.Run()
}

func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		database.Module,
		clock.Module,
		redis.Module,
		closure.Module,

		plan.Module,
		subscription.Module,
		payment.Module,
		commerce.Module,
	)
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
