package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"gastos/internal/backend"
	"gastos/internal/cli"
	"gastos/internal/config"
	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/menu"
	"gastos/internal/report"
	"gastos/internal/services"
)

// app carries state shared by the commands of one invocation.
type app struct {
	cfgFile string
	envFile string
	format  string

	cfg    *config.Config
	logger *applog.Logger
	output report.Format
	opened *backend.BackendResult
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gastos",
		Short:         "Personal expense tracker",
		Long:          "gastos records expenses (category, description, amount) and reports totals and statistics.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMenu(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "Config file (default is ./gastos.yaml)")
	flags.StringVar(&a.envFile, "env-file", "", "Load environment variables from this file (default is .env)")
	flags.StringVarP(&a.format, "format", "o", "table", "Output format: table, json or yaml")
	flags.String("data-backend", "", "Storage backend: csv, sqlite or memory (default csv)")
	flags.String("csv-path", "", "CSV file holding the expenses (default gastos.csv)")
	flags.String("sqlite-db-path", "", "SQLite database path (default ./data/gastos.db)")
	flags.String("amqp-url", "", "Publish change events to this AMQP broker")
	flags.String("log-level", "", "Log level: debug, info, warn or error (default warn)")
	flags.String("log-format", "", "Log format: text, logfmt or json (default text)")

	rootCmd.AddCommand(
		newMenuCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newDeleteCmd(a),
		newTotalCmd(a),
		newCategoriesCmd(a),
		newStatsCmd(a),
		newInitCmd(a),
		newSeedCmd(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.envFile != "" {
		cli.LoadEnvFile(a.envFile)
	} else {
		cli.LoadEnvFile()
	}

	cfg, err := cli.LoadAndValidateConfig(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := cli.SetupLogger(cfg)
	if err != nil {
		return err
	}
	output, err := report.ParseFormat(a.format)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.output = output
	a.logger.Debug("Configuration loaded",
		applog.FieldBackend, cfg.DataBackend,
		applog.FieldOperation, cmd.Name())
	return nil
}

// service opens the configured store once per invocation.
func (a *app) service(ctx context.Context) (*services.ExpenseService, error) {
	if a.opened != nil {
		return a.opened.Service, nil
	}
	opened, err := cli.OpenService(ctx, a.cfg, a.logger.WithComponent(applog.ComponentBackend).Logger)
	if err != nil {
		return nil, err
	}
	a.opened = opened
	return opened.Service, nil
}

func (a *app) close() error {
	if a.opened == nil {
		return nil
	}
	err := a.opened.Cleanup()
	a.opened = nil
	return err
}

// location names the store for messages shown to the user.
func (a *app) location() string {
	switch backend.BackendType(a.cfg.DataBackend) {
	case backend.CSVBackend:
		return a.cfg.CSVPath
	case backend.SQLiteBackend:
		return a.cfg.SQLiteDBPath
	default:
		return "memory (not persisted)"
	}
}

func (a *app) writer(out io.Writer) *report.Writer {
	return report.NewWriter(out, a.output)
}

func (a *app) runMenu(cmd *cobra.Command) error {
	ctx := cmd.Context()
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	m := menu.New(svc, cmd.InOrStdin(), cmd.OutOrStdout(),
		menu.WithRecent(a.cfg.RecentCount),
		menu.WithLocation(a.location()))
	return m.Run(ctx)
}

// execute runs one invocation and always releases the store, including when
// the command failed.
func execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	a := &app{}
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	err := rootCmd.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func main() {
	ctx, stop := cli.GracefulShutdown()
	err := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", core.UserMessage(err))
		os.Exit(1)
	}
}
