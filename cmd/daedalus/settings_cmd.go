package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wehubfusion/Daedalus/pkg/settings"
)

func (a *app) settingsCmd() *cli.Command {
	storeFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:     "node",
				Aliases:  []string{"n"},
				Usage:    "Node identity",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "settings-dir",
				Usage: "Use this directory instead of Azure Blob Storage",
			},
		}
	}
	return &cli.Command{
		Name:  "settings",
		Usage: "Store and fetch node settings",
		Commands: []*cli.Command{
			{
				Name:      "push",
				Usage:     "Validate a settings file and store it for a node",
				ArgsUsage: "FILE",
				Flags:     storeFlags(),
				Action:    a.settingsPush,
			},
			{
				Name:   "pull",
				Usage:  "Print the stored settings of a node",
				Flags:  storeFlags(),
				Action: a.settingsPull,
			},
		},
	}
}

func (a *app) settingsPush(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 1 {
		return fmt.Errorf("settings file path required")
	}
	data, err := os.ReadFile(cmd.Args().Get(0))
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	s, err := settings.Unmarshal(data)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	store, err := a.store(cmd.String("settings-dir"))
	if err != nil {
		return err
	}
	if err := store.Save(ctx, cmd.String("node"), s); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Settings of %s stored\n", cmd.String("node"))
	return nil
}

func (a *app) settingsPull(ctx context.Context, cmd *cli.Command) error {
	store, err := a.store(cmd.String("settings-dir"))
	if err != nil {
		return err
	}
	s, err := store.Load(ctx, cmd.String("node"))
	if err != nil {
		return err
	}
	data, err := settings.Marshal(s)
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(data)
	return err
}
