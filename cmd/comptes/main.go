package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jask/comptes/internal/config"
	"github.com/jask/comptes/internal/database"
	"github.com/jask/comptes/internal/service"
)

// app is what every command needs once flags are parsed.
type app struct {
	cfg    config.Config
	logger *log.Logger
	db     *sql.DB
}

var verbose bool

func main() {
	root := &cobra.Command{
		Use:           "comptes",
		Short:         "Import bank statements into a household ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.AddCommand(
		migrateCmd(),
		accountCmd(),
		categoriesCmd(),
		movementsCmd(),
		planCmd(),
		diagnoseCmd(),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

// setup loads .env and config, builds the logger and opens a migrated database.
func setup() (*app, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "comptes",
		Level:           level,
	})

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := database.RunMigrations(cfg.Database.Path, cfg.Database.Migrations); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	logger.Debug("database ready", "path", cfg.Database.Path)
	return &app{cfg: cfg, logger: logger, db: db}, nil
}

// withApp wraps a command body with setup and teardown.
func withApp(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.db.Close()
		return run(cmd, args, a)
	}
}

func (a *app) importService() *service.MovementImportService {
	ic := a.cfg.Import
	opts := service.DefaultImportOptions()
	opts.ChunkSize = ic.ChunkSize
	opts.PreviewLimit = ic.PreviewLimit
	opts.NotesMinTerm = ic.NotesMinTerm
	opts.Reconcile = service.ReconcileOptions{
		MaxIDGap:         int64(ic.MaxIDGap),
		MaxDayGap:        ic.MaxDayGap,
		LookupChunkSize:  ic.LookupChunkSize,
		ValidateBalances: ic.ValidateBalances,
	}
	return &service.MovementImportService{DB: a.db, Logger: a.logger, Options: opts}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			v, dirty, err := database.Version(a.cfg.Database.Path, a.cfg.Database.Migrations)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t) at %s\n", v, dirty, a.cfg.Database.Path)
			return nil
		}),
	}
}
