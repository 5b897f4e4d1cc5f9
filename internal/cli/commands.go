package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"covidlag/internal/app"
	"covidlag/internal/pipeline"
	"covidlag/pkg/contracts"
)

// stopTimeout bounds telemetry flushing after a command.
const stopTimeout = 5 * time.Second

// withApplication runs fn with a wired application and always stops it.
func (c *command) withApplication(fn func(a *app.Application) error) (err error) {
	a, err := c.application()
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if serr := a.Stop(stopCtx); serr != nil && err == nil {
			err = serr
		}
	}()
	return fn(a)
}

func newRunCommand(c *command) *cobra.Command {
	var opts pipeline.Options
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline and write the reports",
		Long: `Loads both sources, builds the lagged analytical table, fits every
configured model on the training window and evaluates it on the holdout
window. Reports go to the reports directory and a summary is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.SignalContext(cmd.Context())
			defer cancel()
			return c.withApplication(func(a *app.Application) error {
				result, err := a.Run(ctx, opts)
				if err != nil {
					return err
				}
				a.Logger.InfoContext(ctx, "reports written",
					slog.String("run_id", result.RunID),
					slog.Int("files", len(result.Outputs)),
					slog.String("reports_dir", a.Paths.ReportsDir))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.ObservationsPath, "observations", "", "observation CSV to use instead of the configured file")
	f.StringVar(&opts.PopulationPath, "population", "", "population CSV or XLSX to use instead of the configured file")
	f.BoolVar(&opts.Refresh, "refresh", false, "download the observation file even when a local copy exists")
	f.BoolVar(&opts.NoPlots, "no-plots", false, "skip the scatter plots")
	return cmd
}

func newFetchCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download the observation file into the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.SignalContext(cmd.Context())
			defer cancel()
			return c.withApplication(func(a *app.Application) error {
				path, n, err := a.Fetch(ctx, nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "%s (%d bytes)\n", path, n)
				return nil
			})
		},
	}
}

func newModelsCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Print the effective model specifications as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(struct {
				Models interface{} `yaml:"models"`
			}{c.cfg.Models})
			if err != nil {
				return err
			}
			_, err = c.stdout.Write(out)
			return err
		},
	}
}

func newVersionCommand(c *command) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// version needs no configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				fmt.Fprintln(c.stdout, contracts.GetFullVersionString())
				return nil
			}
			out, err := yaml.Marshal(contracts.GetVersionInfo())
			if err != nil {
				return err
			}
			_, err = c.stdout.Write(out)
			return err
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every build detail as YAML")
	return cmd
}
