package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/marshallshelly/setlistdb/cmd/setlistdb/output"
	"github.com/marshallshelly/setlistdb/cmd/setlistdb/tui"
	"github.com/marshallshelly/setlistdb/pkg/migration"
)

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Run database migrations to keep the database schema in sync with the models.

Subcommands:
  up      - Apply pending migrations
  down    - Rollback migrations
  status  - Show migration status`,
	}
	cmd.AddCommand(a.migrateUpCmd(), a.migrateDownCmd(), a.migrateStatusCmd())
	return cmd
}

func (a *app) migrateUpCmd() *cobra.Command {
	var (
		dryRun      bool
		steps       int
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Long: `Apply pending migrations in version order. Each migration runs in its own
transaction under an advisory lock.

Examples:
  setlistdb migrate up                 # Apply all pending migrations
  setlistdb migrate up --steps 1       # Apply the next migration
  setlistdb migrate up --dry-run       # Preview migrations without applying`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			migrations, err := a.generator().LoadAll()
			if err != nil {
				return err
			}
			if len(migrations) == 0 {
				output.Warning("No migrations found in %s", a.cfg.Migrations.Dir)
				return nil
			}

			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			executor := a.executor(conn)

			if interactive {
				return tui.RunMigrateUI(ctx, "up", executor, migrations)
			}

			if err := executor.Initialize(ctx); err != nil {
				return err
			}
			pending, err := executor.Pending(ctx, migrations)
			if err != nil {
				return err
			}
			if steps > 0 && len(pending) > steps {
				pending = pending[:steps]
			}
			if len(pending) == 0 {
				output.Info("No pending migrations")
				return nil
			}

			if dryRun {
				output.Section("DRY RUN - Preview")
				output.Info("The following migrations would be applied:")
				for _, m := range pending {
					output.Muted("  %s %s - %s", output.StatusIcon("pending"), m.Version, m.Name)
				}
				return nil
			}

			output.Section("Applying Migrations")
			applied, err := executor.Up(ctx, pending, false)
			for _, version := range applied {
				output.Success("Applied %s", version)
			}
			if err != nil {
				output.Error("Migration failed: %v", err)
				return err
			}
			output.Newline()
			output.Success("Successfully applied %d migration(s)", len(applied))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode with TUI")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview migrations without applying")
	cmd.Flags().IntVar(&steps, "steps", 0, "Number of migrations to apply (0 applies all)")
	return cmd
}

func (a *app) migrateDownCmd() *cobra.Command {
	var (
		dryRun      bool
		steps       int
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		Long: `Rollback applied migrations, newest first.

Examples:
  setlistdb migrate down               # Rollback the last migration
  setlistdb migrate down --steps 3     # Rollback the last three migrations
  setlistdb migrate down --dry-run     # Preview rollback without executing`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			migrations, err := a.generator().LoadAll()
			if err != nil {
				return err
			}

			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			executor := a.executor(conn)

			if interactive {
				return tui.RunMigrateUI(ctx, "down", executor, migrations)
			}

			if dryRun {
				versions, err := executor.Down(ctx, migrations, steps, true)
				if err != nil {
					return err
				}
				if len(versions) == 0 {
					output.Info("No migrations to rollback")
					return nil
				}
				output.Section("DRY RUN - Preview")
				output.Info("The following migrations would be rolled back:")
				for _, v := range versions {
					output.Muted("  %s %s", output.StatusIcon("applied"), v)
				}
				return nil
			}

			output.Section("Rolling Back Migrations")
			versions, err := executor.Down(ctx, migrations, steps, false)
			for _, v := range versions {
				output.Success("Rolled back %s", v)
			}
			if err != nil {
				output.Error("Rollback failed: %v", err)
				return err
			}
			if len(versions) == 0 {
				output.Info("No migrations to rollback")
				return nil
			}
			output.Newline()
			output.Success("Successfully rolled back %d migration(s)", len(versions))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode with TUI")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview rollback without executing")
	cmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to rollback")
	return cmd
}

func (a *app) migrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long: `Show the status of all migrations (pending, applied, failed).

Examples:
  setlistdb migrate status             # Show migration status
  setlistdb migrate status --json      # Output in JSON format`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			migrations, err := a.generator().LoadAll()
			if err != nil {
				return err
			}

			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			status, statusErr := a.executor(conn).Status(ctx, migrations)
			if status == nil {
				return statusErr
			}

			w := cmd.OutOrStdout()
			if a.jsonOutput {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(status); err != nil {
					return err
				}
				return statusErr
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
			_, _ = fmt.Fprintln(tw, "-------\t----\t------\t----------")
			var pending, applied, failed int
			for _, record := range status {
				appliedAt := "N/A"
				if record.AppliedAt != nil {
					appliedAt = record.AppliedAt.Format("2006-01-02 15:04:05")
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\n",
					record.Version, record.Name,
					output.StatusIcon(string(record.Status)), record.Status,
					appliedAt)

				switch record.Status {
				case migration.StatusPending:
					pending++
				case migration.StatusApplied:
					applied++
				case migration.StatusFailed:
					failed++
				}
			}
			_ = tw.Flush()

			summary := fmt.Sprintf("\nSummary: %d applied, %d pending", applied, pending)
			if failed > 0 {
				summary += fmt.Sprintf(", %d failed", failed)
			}
			_, _ = fmt.Fprintln(w, summary)
			return statusErr
		},
	}
}
