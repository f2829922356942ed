// Package commands implements the setlistdb command line.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/marshallshelly/setlistdb/cmd/setlistdb/output"
	"github.com/marshallshelly/setlistdb/pkg/config"
	"github.com/marshallshelly/setlistdb/pkg/migration"
	"github.com/marshallshelly/setlistdb/pkg/orm"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
	"github.com/marshallshelly/setlistdb/pkg/setlist"
)

// Version is the setlistdb version, set at build time.
var Version = "0.1.0"

// app holds the global flags and what PersistentPreRunE derives from them.
type app struct {
	configPath    string
	dbURL         string
	migrationsDir string
	verbose       bool
	jsonOutput    bool

	cfg    *config.Config
	logger *log.Logger

	// overridden in tests
	openDB func(ctx context.Context, cfg *runtime.Config) (*runtime.DB, error)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{openDB: runtime.Connect}
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setlistdb",
		Short: "setlistdb - data access tooling for the setlist voting service",
		Long: `setlistdb manages the PostgreSQL schema of the setlist voting service and runs
queries against it through the same client the service uses.

Features:
  - Migration generation from the model registry
  - Migrations with an advisory lock and a tracking table
  - Schema export as a table, JSON or YAML, and an interactive browser
  - Ad-hoc queries with Prisma-style JSON arguments`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "Path to the config file")
	cmd.PersistentFlags().StringVar(&a.dbURL, "db", "", "Database connection URL (overrides the config file and DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&a.migrationsDir, "migrations-dir", "", "Directory for migration files (default from config, ./migrations)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Output in JSON format")

	cmd.AddCommand(
		a.initCmd(),
		a.schemaCmd(),
		a.generateCmd(),
		a.migrateCmd(),
		a.queryCmd(),
	)
	return cmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		output.SetOutput(os.Stderr)
		output.Error("%v", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	output.SetOutput(cmd.OutOrStdout())

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbURL != "" {
		cfg.Database.URL = a.dbURL
	}
	if a.migrationsDir != "" {
		cfg.Migrations.Dir = a.migrationsDir
	}
	if cfg.Migrations.Dir == "" {
		cfg.Migrations.Dir = "./migrations"
	}
	a.cfg = cfg
	a.logger = cfg.NewLogger(cmd.ErrOrStderr(), a.verbose)
	return nil
}

// connect opens the database described by the configuration.
func (a *app) connect(ctx context.Context) (*runtime.DB, error) {
	db, err := a.openDB(ctx, a.cfg.Runtime())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.logger.Debug("connected", "breaker", db.Breaker().State())
	return db, nil
}

// client wraps conn in a setlist client carrying the configured logger and
// transaction defaults.
func (a *app) client(conn *runtime.DB) (*setlist.Client, error) {
	return setlist.New(conn,
		orm.WithLogger(a.logger),
		orm.WithTxDefaults(a.cfg.TxOptions()...),
	)
}

func (a *app) generator() *migration.Generator {
	return migration.NewGenerator(a.cfg.Migrations.Dir)
}

func (a *app) executor(conn *runtime.DB) *migration.Executor {
	return migration.NewExecutor(conn).WithLogger(a.logger)
}

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write an example config file",
		Long: `Write an example setlistdb.toml to the path given by --config.

Examples:
  setlistdb init
  setlistdb init --config ./deploy/setlistdb.toml`,
		// The config file may not exist yet, so skip loading it.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			output.SetOutput(cmd.OutOrStdout())
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := config.CreateFile(a.configPath); err != nil {
				return err
			}
			output.Success("Created %s", a.configPath)
			return nil
		},
	}
}
