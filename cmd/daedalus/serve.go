package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/internal/nats"
	"github.com/wehubfusion/Daedalus/pkg/node"
	"github.com/wehubfusion/Daedalus/pkg/settings"
	"github.com/wehubfusion/Daedalus/pkg/transport"
)

func (a *app) serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Answer table processing requests over NATS",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "node",
				Aliases:  []string{"n"},
				Usage:    "Node identity; settings are loaded from the store unless given by flags",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "settings-dir",
				Usage: "Load settings from this directory instead of Azure Blob Storage",
			},
			&cli.StringFlag{
				Name:  "subject",
				Usage: "Request subject (default daedalus.<node>)",
			},
			&cli.StringFlag{
				Name:  "queue",
				Value: "daedalus",
				Usage: "Queue group shared by all members serving the node",
			},
		}, nodeFlags()...),
		Action: a.serveAction,
	}
}

func (a *app) serveAction(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	nodeID := cmd.String("node")
	s, err := a.serveSettings(ctx, cmd, nodeID)
	if err != nil {
		return err
	}
	services, err := servicesFromFlags(cmd)
	if err != nil {
		return err
	}

	cache, err := node.NewContextCache(a.cfg.ContextCacheSize, func(string) (*node.Environment, error) {
		return a.environment(services)
	}, a.logger)
	if err != nil {
		return err
	}
	n, err := cache.NewNode(nodeID, s)
	if err != nil {
		return err
	}
	defer n.Dispose()

	conn, err := nats.Connect(ctx, nats.DefaultConnectionConfig(a.cfg.NATSURL), a.logger)
	if err != nil {
		return err
	}
	defer nats.Close(conn)

	subject := cmd.String("subject")
	if subject == "" {
		subject = "daedalus." + nodeID
	}
	svc, err := transport.NewService(conn, n, transport.Config{
		Subject:        subject,
		Queue:          cmd.String("queue"),
		RequestTimeout: a.cfg.ExecTimeout,
	}, a.logger)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("Shutting down", zap.String("node_id", nodeID))
	return svc.Stop()
}

// serveSettings uses the flags when a script is given, the store otherwise.
func (a *app) serveSettings(ctx context.Context, cmd *cli.Command, nodeID string) (*settings.Settings, error) {
	if cmd.IsSet("script") || cmd.IsSet("settings") {
		return settingsFromFlags(cmd)
	}
	store, err := a.store(cmd.String("settings-dir"))
	if err != nil {
		return nil, err
	}
	s, err := store.Load(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings of %s: %w", nodeID, err)
	}
	return s, nil
}
