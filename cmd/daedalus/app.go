package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/internal/config"
	"github.com/wehubfusion/Daedalus/internal/tracing"
	"github.com/wehubfusion/Daedalus/pkg/commands"
	"github.com/wehubfusion/Daedalus/pkg/compiler"
	"github.com/wehubfusion/Daedalus/pkg/concurrency"
	"github.com/wehubfusion/Daedalus/pkg/node"
	"github.com/wehubfusion/Daedalus/pkg/settings"
)

type app struct {
	stdin  io.Reader
	stdout io.Writer

	logger *zap.Logger
	cfg    *config.Config

	undoMaxprocs     func()
	shutdownTracing  func(context.Context) error
	sentryConfigured bool
}

func newApp(stdin io.Reader, stdout io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, logger: zap.NewNop()}
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:    "daedalus",
		Version: Version,
		Usage:   "Run scripts over table rows",
		Writer:  a.stdout,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable development logging",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file instead of ./.env",
			},
		},
		Before: a.setup,
		After:  a.teardown,
		Commands: []*cli.Command{
			a.runCmd(),
			a.compileCmd(),
			a.serveCmd(),
			a.settingsCmd(),
			versionCmd,
		},
	}
}

func (a *app) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	logger, err := newLogger(cmd.Bool("debug"))
	if err != nil {
		return ctx, err
	}
	a.logger = logger

	if path := cmd.String("env-file"); path != "" {
		a.cfg, err = config.LoadFile(path)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return ctx, fmt.Errorf("failed to load configuration: %w", err)
	}
	a.logger.Debug("Configuration loaded", zap.Stringer("config", a.cfg))

	a.undoMaxprocs = concurrency.InitializeForContainers(a.logger)

	if a.cfg.OTLPEndpoint != "" {
		tc := tracing.DefaultConfig("daedalus", Version)
		tc.OTLPEndpoint = a.cfg.OTLPEndpoint
		tc.Environment = a.cfg.Environment
		if a.shutdownTracing, err = tracing.Setup(ctx, tc, a.logger); err != nil {
			return ctx, err
		}
	}

	if a.cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         a.cfg.SentryDSN,
			Release:     "daedalus@" + Version,
			Environment: a.cfg.Environment,
		})
		if err != nil {
			a.logger.Warn("Failed to initialize Sentry", zap.Error(err))
		} else {
			a.sentryConfigured = true
		}
	}
	return ctx, nil
}

func (a *app) teardown(context.Context, *cli.Command) error {
	if a.shutdownTracing != nil {
		_ = tracing.Shutdown(a.shutdownTracing, a.logger)
	}
	if a.undoMaxprocs != nil {
		a.undoMaxprocs()
	}
	_ = a.logger.Sync()
	return nil
}

// report sends a fatal error to Sentry when it is configured.
func (a *app) report(err error) {
	if !a.sentryConfigured {
		return
	}
	sentry.CaptureException(err)
	sentry.Flush(2 * time.Second)
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	// Table output goes to stdout.
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func (a *app) environment(services commands.Services) (*node.Environment, error) {
	c, err := compiler.New(compiler.Options{
		StagingDir: a.cfg.StagingDir,
		Injector:   services,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, err
	}
	return node.NewEnvironment(node.EnvironmentOptions{
		Logger:    a.logger,
		Compiler:  c,
		Services:  services,
		MaxScopes: a.cfg.Partitions,
	})
}

// store returns the settings store: a directory when dir is set, Azure Blob
// Storage otherwise.
func (a *app) store(dir string) (settings.Store, error) {
	if dir != "" {
		return settings.NewFileStore(dir, a.logger)
	}
	if a.cfg.AzureConnectionString == "" {
		return nil, fmt.Errorf("no settings store: pass --settings-dir or set AZURE_STORAGE_CONNECTION_STRING")
	}
	return settings.NewBlobStore(a.cfg.AzureConnectionString, a.cfg.SettingsContainer, a.logger)
}
