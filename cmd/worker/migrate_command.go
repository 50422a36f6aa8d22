package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/consentscan/internal/store"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.RunMigrations(ctx.config.Database.URL, dir); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "migrations", "Directory containing migration files")
	return cmd
}
