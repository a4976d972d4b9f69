// Package cmd provides the ledgerctl commands.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/services"
)

// app holds what the persistent flags resolve to for one invocation.
type app struct {
	dbPath  string
	envFile string
	debug   bool

	cfg    *config.Config
	logger *log.Logger
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Manage the personal expense ledger",
		Long: `ledgerctl records, lists, edits and deletes expenses in the
SQLite ledger shared with the web server, and summarises spending per
category against thresholds.

Example:
  ledgerctl add --description "Weekly shop" --category Grocery --amount 1250.50
  ledgerctl list --month 03
  ledgerctl totals --limit Hotel=5000`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "ledger database path (default $LEDGER_DB_PATH)")
	root.PersistentFlags().StringVar(&a.envFile, "env", "", "env file to load (default .env)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newAddCmd(a),
		newListCmd(a),
		newEditCmd(a),
		newDeleteCmd(a),
		newTotalsCmd(a),
		newEventsCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.envFile != "" {
		cli.LoadEnvFile(a.envFile)
	} else {
		cli.LoadEnvFile()
	}

	cfg := config.Load()
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	if a.debug {
		level = slog.LevelDebug
	}
	// logs go to stderr so stdout stays parseable
	a.logger = log.New(log.Config{
		Level:     level,
		Component: log.ComponentCLI,
		Output:    cmd.ErrOrStderr(),
	})
	log.SetDefault(a.logger)
	a.cfg = cfg
	return nil
}

// openService opens the ledger; the caller closes it.
func (a *app) openService() (*services.LedgerService, error) {
	svc, err := cli.OpenLedgerService(a.logger, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return svc, nil
}
