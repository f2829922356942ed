package commands

import (
	"github.com/spf13/cobra"

	"github.com/marshallshelly/setlistdb/cmd/setlistdb/output"
	"github.com/marshallshelly/setlistdb/pkg/migration"
	"github.com/marshallshelly/setlistdb/pkg/setlist"
)

func (a *app) generateCmd() *cobra.Command {
	var (
		name  string
		empty bool
		diff  bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate migration files",
		Long: `Generate timestamped up/down SQL migration files from the model registry.

By default the migration creates the full schema. With --diff the database is
introspected and only the column differences are written.

Examples:
  setlistdb generate --name create_setlist_schema   # Full schema
  setlistdb generate --name add_capacity --diff     # Diff against the database
  setlistdb generate --name backfill --empty        # Empty migration for manual editing`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			generator := a.generator()

			if empty {
				file, err := generator.GenerateEmpty(name)
				if err != nil {
					return err
				}
				output.Success("Created empty migration: %s", file.Version)
				output.Muted("  Up:   %s", file.UpPath)
				output.Muted("  Down: %s", file.DownPath)
				output.Newline()
				output.Info("Edit the SQL files manually to add your migration logic.")
				return nil
			}

			reg, err := setlist.Registry()
			if err != nil {
				return err
			}
			tables := reg.All()

			var schemaDiff *migration.SchemaDiff
			if diff {
				conn, err := a.connect(cmd.Context())
				if err != nil {
					return err
				}
				defer conn.Close()

				current, err := migration.NewIntrospector(conn).IntrospectSchema(cmd.Context())
				if err != nil {
					return err
				}
				schemaDiff = migration.NewDiffer().Compare(tables, current)
				if !schemaDiff.HasChanges() {
					output.Info("No schema changes detected. Database is in sync with models.")
					return nil
				}
				printDiff(schemaDiff)
			} else {
				schemaDiff = migration.FullSchema(tables)
			}

			file, err := generator.Generate(name, schemaDiff)
			if err != nil {
				return err
			}
			output.Newline()
			output.Success("Created migration: %s", file.Version)
			output.Muted("  Up:   %s", file.UpPath)
			output.Muted("  Down: %s", file.DownPath)
			output.Newline()
			output.Info("Review the generated SQL files before applying the migration.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Migration name (required)")
	cmd.Flags().BoolVar(&empty, "empty", false, "Generate empty migration for manual editing")
	cmd.Flags().BoolVar(&diff, "diff", false, "Only write the differences from the current database")
	cmd.MarkFlagsMutuallyExclusive("empty", "diff")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func printDiff(diff *migration.SchemaDiff) {
	output.Section("Detected Schema Changes")
	if len(diff.TablesAdded) > 0 {
		output.Success("Tables to add: %d", len(diff.TablesAdded))
		for _, table := range diff.TablesAdded {
			output.Muted("    + %s", table.Name)
		}
	}
	if len(diff.TablesDropped) > 0 {
		output.Warning("Tables to drop: %d", len(diff.TablesDropped))
		for _, table := range diff.TablesDropped {
			output.Muted("    - %s", table.Name)
		}
	}
	if len(diff.TablesModified) > 0 {
		output.Info("Tables to modify: %d", len(diff.TablesModified))
		for _, td := range diff.TablesModified {
			output.Muted("    ~ %s", td.TableName)
			for _, c := range td.ColumnsAdded {
				output.Muted("      + %s %s", c.Name, c.SQLType)
			}
			for _, c := range td.ColumnsDropped {
				output.Muted("      - %s", c.Name)
			}
			for _, c := range td.ColumnsModified {
				output.Muted("      ~ %s", c.ColumnName)
			}
		}
	}
}
