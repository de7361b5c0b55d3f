package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/commands"
	"github.com/wehubfusion/Daedalus/pkg/mapping"
	"github.com/wehubfusion/Daedalus/pkg/node"
	"github.com/wehubfusion/Daedalus/pkg/settings"
	"github.com/wehubfusion/Daedalus/pkg/table"
)

// nodeFlags describe a node on the command line. They override the values of
// a --settings file.
func nodeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "settings",
			Aliases: []string{"c"},
			Usage:   "Node settings TOML file",
		},
		&cli.StringFlag{
			Name:    "script",
			Aliases: []string{"s"},
			Usage:   "Script source file",
		},
		&cli.StringFlag{
			Name:    "language",
			Aliases: []string{"l"},
			Usage:   "Script language (defaults to the script file extension)",
		},
		&cli.StringSliceFlag{
			Name:    "map",
			Aliases: []string{"m"},
			Usage:   "Map a column to an input, as column=input",
		},
		&cli.StringSliceFlag{
			Name:  "static",
			Usage: "Fixed input value, as input=value",
		},
		&cli.StringFlag{
			Name:  "mode",
			Usage: "Column creation mode: append or new_table",
		},
		&cli.StringFlag{
			Name:  "suffix",
			Usage: "Suffix for output column names",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-row execution timeout",
		},
		&cli.StringFlag{
			Name:  "dictionary",
			Usage: "TOML file of key = \"value\" pairs for the lookup.Dictionary command",
		},
	}
}

func (a *app) runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a script over a CSV table",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Input CSV with name:type headers (default stdin)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output CSV (default stdout)",
			},
			&cli.BoolFlag{
				Name:  "stream",
				Usage: "Process rows in concurrent partitions",
			},
			&cli.IntFlag{
				Name:  "partitions",
				Usage: "Partition count for --stream (default from DAEDALUS_PARTITIONS)",
			},
		}, nodeFlags()...),
		Action: a.runAction,
	}
}

func (a *app) runAction(ctx context.Context, cmd *cli.Command) error {
	s, err := settingsFromFlags(cmd)
	if err != nil {
		return err
	}
	services, err := servicesFromFlags(cmd)
	if err != nil {
		return err
	}
	env, err := a.environment(services)
	if err != nil {
		return err
	}
	n, err := node.New("cli", env, s)
	if err != nil {
		return err
	}
	defer n.Dispose()

	in, err := readTable(cmd.String("input"), a.stdin)
	if err != nil {
		return err
	}

	var out *table.Table
	if cmd.Bool("stream") {
		partitions := cmd.Int("partitions")
		if partitions <= 0 {
			partitions = a.cfg.Partitions
		}
		out, err = n.ExecuteStreaming(ctx, in, partitions)
	} else {
		out, err = n.Execute(ctx, in)
	}
	if err != nil {
		return err
	}

	a.logger.Info("Run completed", zap.Int("rows", len(out.Rows)), zap.Int("columns", out.Spec.NumColumns()))
	return writeTable(cmd.String("output"), a.stdout, out)
}

// settingsFromFlags loads --settings, applies the flag overrides and validates.
func settingsFromFlags(cmd *cli.Command) (*settings.Settings, error) {
	s := &settings.Settings{}
	if path := cmd.String("settings"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
		if s, err = settings.Unmarshal(data); err != nil {
			return nil, err
		}
	}

	if path := cmd.String("script"); path != "" {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read script: %w", err)
		}
		s.Script = string(src)
		s.Language = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	if cmd.IsSet("language") {
		s.Language = cmd.String("language")
	}

	if pairs := cmd.StringSlice("map"); len(pairs) > 0 {
		s.Mappings = s.Mappings[:0]
		for _, p := range pairs {
			column, item, err := splitPair(p)
			if err != nil {
				return nil, fmt.Errorf("--map: %w", err)
			}
			s.Mappings = append(s.Mappings, column+mapping.Separator+item)
		}
	}
	if pairs := cmd.StringSlice("static"); len(pairs) > 0 {
		if s.StaticInputs == nil {
			s.StaticInputs = map[string]string{}
		}
		for _, p := range pairs {
			name, value, err := splitPair(p)
			if err != nil {
				return nil, fmt.Errorf("--static: %w", err)
			}
			s.StaticInputs[name] = value
		}
	}
	if cmd.IsSet("mode") {
		s.ColumnCreationMode = settings.ColumnCreationMode(cmd.String("mode"))
	}
	if cmd.IsSet("suffix") {
		s.ColumnSuffix = cmd.String("suffix")
	}
	if cmd.IsSet("timeout") {
		s.Timeout = settings.Duration(cmd.Duration("timeout"))
	}

	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func splitPair(p string) (string, string, error) {
	k, v, ok := strings.Cut(p, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return "", "", fmt.Errorf("%q is not key=value", p)
	}
	return strings.TrimSpace(k), v, nil
}

func servicesFromFlags(cmd *cli.Command) (commands.Services, error) {
	services := commands.Services{}
	path := cmd.String("dictionary")
	if path == "" {
		return services, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}
	dict := map[string]string{}
	if err := toml.Unmarshal(data, &dict); err != nil {
		return nil, fmt.Errorf("failed to decode dictionary: %w", err)
	}
	services[commands.DictionaryService] = dict
	return services, nil
}

func readTable(path string, stdin io.Reader) (*table.Table, error) {
	if path == "" || path == "-" {
		return table.ReadCSV(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return table.ReadCSV(f)
}

func writeTable(path string, stdout io.Writer, t *table.Table) error {
	if path == "" || path == "-" {
		return table.WriteCSV(stdout, t)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := table.WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
