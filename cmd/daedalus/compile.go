package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wehubfusion/Daedalus/pkg/commands"
	"github.com/wehubfusion/Daedalus/pkg/compiler"
	"github.com/wehubfusion/Daedalus/pkg/module"
)

type compileReport struct {
	Language string        `json:"language"`
	Kind     string        `json:"kind"`
	Inputs   []module.Item `json:"inputs"`
	Outputs  []module.Item `json:"outputs"`
}

func (a *app) compileCmd() *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Usage:     "Compile a script and print its inputs and outputs",
		ArgsUsage: "SCRIPT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "language",
				Aliases: []string{"l"},
				Usage:   "Script language (defaults to the file extension)",
			},
		},
		Action: a.compileAction,
	}
}

func (a *app) compileAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 1 {
		return fmt.Errorf("script file path required")
	}
	path := cmd.Args().Get(0)
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	language := cmd.String("language")
	if language == "" {
		language = strings.TrimPrefix(filepath.Ext(path), ".")
	}

	env, err := a.environment(commands.Services{})
	if err != nil {
		return err
	}
	product, err := env.Compiler.Compile(string(src), language)
	if err != nil {
		return err
	}
	if script, ok := product.(*compiler.ParsedScript); ok {
		defer os.Remove(script.StagedPath())
	}

	info, err := product.Info()
	if err != nil {
		return err
	}
	report := compileReport{
		Language: product.Language(),
		Kind:     product.Kind().String(),
		Inputs:   info.Inputs(),
		Outputs:  info.Outputs(),
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
