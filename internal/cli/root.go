package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"covidlag/internal/app"
	"covidlag/internal/config"
	apperrors "covidlag/internal/errors"
	"covidlag/pkg/contracts"
)

// Exit codes returned by Execute.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitLoad     = 2
	ExitConfig   = 3
	ExitCoercion = 4
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configFile string
	logLevel   string
	logFormat  string
	color      string
	baseDir    string
}

// command carries the state shared by the subcommands of one invocation.
type command struct {
	flags  globalFlags
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
	// logWriter overrides the configured log destination, used by tests.
	logWriter io.Writer
}

// NewRootCommand builds the covidlag command tree writing to stdout and
// stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	return newRootCommand(&command{stdout: stdout, stderr: stderr})
}

func newRootCommand(c *command) *cobra.Command {
	root := &cobra.Command{
		Use:   config.AppName,
		Short: "Lagged COVID-19 mortality regression",
		Long: `covidlag joins daily COVID-19 observations with World Bank population
series, attaches the smoothed deaths observed two weeks later to every row,
fits the configured linear models on 2022 and scores them on the first half
of 2023, globally and per country.`,
		Version:       contracts.GetVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&c.flags.configFile, "config", "c", "", "YAML config file (default: covidlag.yaml, config.yaml or $COVIDLAG_CONFIG)")
	pf.StringVar(&c.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&c.flags.logFormat, "log-format", "", "log format: json or text")
	pf.StringVar(&c.flags.color, "color", "", "console colors: auto, always or never")
	pf.StringVar(&c.flags.baseDir, "base-dir", "", "directory the data, reports and logs directories resolve against")

	root.AddCommand(
		newRunCommand(c),
		newFetchCommand(c),
		newModelsCommand(c),
		newVersionCommand(c),
	)
	return root
}

// loadConfig loads the configuration and applies flag overrides, which win
// over the file and the environment.
func (c *command) loadConfig() error {
	cfg, err := config.Load(c.flags.configFile)
	if err != nil {
		return err
	}
	if c.flags.logLevel != "" {
		cfg.Logging.Level = c.flags.logLevel
	}
	if c.flags.logFormat != "" {
		cfg.Logging.Format = c.flags.logFormat
	}
	if c.flags.color != "" {
		cfg.Report.Color = c.flags.color
	}
	if c.flags.baseDir != "" {
		cfg.Paths.BaseDir = c.flags.baseDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// application wires an app.Application for the loaded config.
func (c *command) application() (*app.Application, error) {
	return app.NewApplication(c.cfg, app.Options{Stdout: c.stdout, LogWriter: c.logWriter})
}

// Execute runs the command line in args and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCommand(os.Stdout, os.Stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("Error:", err)
		return ExitCode(err)
	}
	return ExitOK
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch apperrors.TypeOf(err) {
	case apperrors.ErrTypeLoad:
		return ExitLoad
	case apperrors.ErrTypeConfig, apperrors.ErrTypeValidation:
		return ExitConfig
	case apperrors.ErrTypeTypeCoercion:
		return ExitCoercion
	default:
		return ExitFailure
	}
}
