package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"covidlag/internal/config"
	"covidlag/internal/dataprocessing"
	"covidlag/internal/infrastructure"
	"covidlag/internal/pipeline"
	"covidlag/pkg/contracts"
)

// Application holds the components shared by every command.
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	stdout io.Writer
	// ownsLogger is set when the global logger was initialized here.
	ownsLogger bool
}

// Options adjust how NewApplication wires the components.
type Options struct {
	// Stdout receives the console report; defaults to os.Stdout.
	Stdout io.Writer
	// LogWriter, when set, receives log output instead of the configured
	// console/file destinations.
	LogWriter io.Writer
}

// NewApplication wires logging, paths and telemetry for cfg.
func NewApplication(cfg *config.Config, opts Options) (*Application, error) {
	a := &Application{Config: cfg, stdout: opts.Stdout}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}

	paths, err := config.GetPaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	a.Paths = paths
	cfg.Logging.FilePath = paths.GetLogPath(cfg.Logging.FilePath)

	if opts.LogWriter != nil {
		a.Logger = infrastructure.NewLogger(cfg.Logging, opts.LogWriter)
	} else {
		logger, err := infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.Logger = logger
		a.ownsLogger = true
	}

	a.Logger.Debug("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	paths.LogPathResolution(a.Logger)

	otelCfg := infrastructure.OTelConfigFromTelemetry(cfg.Telemetry)
	providers, err := infrastructure.InitializeOTel(otelCfg, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = providers

	return a, nil
}

// Run executes one pipeline run.
func (a *Application) Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error) {
	runner := pipeline.NewRunner(a.Config, a.Paths, a.Logger,
		pipeline.WithProviders(a.OTelProviders),
		pipeline.WithStdout(a.stdout))
	return runner.Run(ctx, opts)
}

// Fetch downloads the observation file into the data directory and returns
// its path and size.
func (a *Application) Fetch(ctx context.Context, client dataprocessing.HTTPClient) (string, int64, error) {
	src := a.Config.Sources
	if src.ObservationsURL == "" {
		return "", 0, fmt.Errorf("no observations_url configured")
	}
	dest := a.Paths.GetDataPath(src.ObservationsFile)
	fetcher := dataprocessing.NewFetcher(client, src.FetchTimeout, a.Logger)
	n, err := fetcher.Download(ctx, src.ObservationsURL, dest)
	if err != nil {
		return "", 0, err
	}
	return dest, n, nil
}

// Stop flushes telemetry and closes the log file.
func (a *Application) Stop(ctx context.Context) error {
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
	if a.ownsLogger {
		return infrastructure.CloseLogFile()
	}
	return nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
