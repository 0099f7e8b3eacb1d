package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/condfields/internal/core/config"
	"github.com/solatis/condfields/internal/core/db"
	"github.com/solatis/condfields/internal/core/logging"
	"github.com/solatis/condfields/internal/form"
	"github.com/solatis/condfields/internal/rules"
)

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:           "condfields",
	Short:         "condfields field visibility rule engine",
	Long:          `condfields computes client states for dependent form fields and guards their submissions.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Setup(logLevel, logFormat, cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads configuration with the command's flags applied.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openDatabase opens the configured database. Unless migrating, pending
// migrations are an error.
func openDatabase(cfg *config.Config, migrating bool) (*sqlx.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("--db-url or CF_DATABASE_URL required")
	}
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if !migrating {
		if err := db.EnsureMigrated(database); err != nil {
			database.Close()
			return nil, fmt.Errorf("%w - run 'condfields migrate up' first", err)
		}
	}
	return database, nil
}

// openStore opens the configured database as a rule store.
func openStore(cmd *cobra.Command) (*sqlx.DB, *db.Store, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	database, err := openDatabase(cfg, false)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := db.NewStore(database)
	if err != nil {
		database.Close()
		return nil, nil, nil, fmt.Errorf("failed to create store: %w", err)
	}
	return database, store, cfg, nil
}

// newEngine creates an engine over source configured from cfg.
func newEngine(source rules.DisplaySource, cfg config.EngineConfig) (*rules.Engine, error) {
	kinds := make([]form.Kind, 0, len(cfg.PriorityWidgets))
	for _, w := range cfg.PriorityWidgets {
		kinds = append(kinds, form.Kind(w))
	}
	return rules.NewEngine(source,
		rules.WithLanguage(cfg.Language),
		rules.WithPriorityKinds(kinds...),
		rules.WithResolverOptions(rules.WithRejectCycles(cfg.RejectCycles)),
	)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
