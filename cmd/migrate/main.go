package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"courseshop-be/internal/config"
	"courseshop-be/internal/db"
	"courseshop-be/internal/logger"
	"courseshop-be/internal/migrations"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var openDBFunc = func() (*sql.DB, error) {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	return db.NewDatabase(cfg)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the courseshop database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		dbCmd("up", "Apply all pending migrations", migrations.Up),
		dbCmd("down", "Roll back the most recent migration", migrations.Down),
		dbCmd("status", "Print applied and pending migrations", migrations.Status),
		listCmd(),
	)
	return rootCmd
}

func dbCmd(use, short string, action func(context.Context, *sql.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDBFunc()
			if err != nil {
				return err
			}
			defer database.Close()

			if err := action(cmd.Context(), database); err != nil {
				return err
			}
			logger.L().Info("migration command finished", zap.String("command", use))
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List embedded migration files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := migrations.Names()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}
