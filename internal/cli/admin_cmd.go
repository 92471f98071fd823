package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lorrc/workload-insights/internal/auth"
)

func newMigrateCmd(s *state) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}
	cmd.PersistentFlags().StringVar(&dir, "migrations", "migrations", "migrations directory")

	withMigrator := func(fn func(Migrator) error) error {
		m, err := s.app.OpenMigrator(dir)
		if err != nil {
			return err
		}
		defer m.Close()
		return fn(m)
	}

	printVersion := func(cmd *cobra.Command, m Migrator) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if s.jsonOutput() {
			return printJSON(cmd.OutOrStdout(), map[string]any{"version": version, "dirty": dirty})
		}
		if dirty {
			fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d (dirty)\n", version)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", version)
		return nil
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m Migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m Migrator) error {
				return printVersion(cmd, m)
			})
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func newTokenCmd(s *state) *cobra.Command {
	var employeeID int64
	var email, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a dashboard access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.app.Tokens == nil {
				return ErrNoSecret
			}
			if employeeID <= 0 {
				return fmt.Errorf("--employee-id must be positive")
			}
			if !auth.ValidRole(role) {
				return fmt.Errorf("unknown role %q (want viewer, lead or admin)", role)
			}

			token, err := s.app.Tokens.GenerateToken(employeeID, email, role)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			if s.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]string{"token": token})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&employeeID, "employee-id", 0, "employee id carried in the token")
	cmd.Flags().StringVar(&email, "email", "", "email carried in the token")
	cmd.Flags().StringVar(&role, "role", auth.RoleViewer, "role (viewer, lead or admin)")
	_ = cmd.MarkFlagRequired("employee-id")
	return cmd
}
