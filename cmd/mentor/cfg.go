package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mentorlint/mentor/pkg/analysis"
	pycfg "github.com/mentorlint/mentor/pkg/cfg"
	"github.com/urfave/cli/v2"
)

func cfgCmd() *cli.Command {
	return &cli.Command{
		Name:      "cfg",
		Usage:     "Dump the control-flow graph of a file as Graphviz DOT",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "function",
				Aliases: []string{"fn"},
				Usage:   "Unit to dump: a function, lambda, or class name (default: the module)",
			},
		},
		Action: runCfgCmd,
	}
}

func runCfgCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	path, err := filepath.Abs(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid path %s: %w", c.Args().First(), err)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, err := analysis.Analyze(path, src, analysis.DefaultOptions())
	if err != nil {
		return err
	}

	name := c.String("function")
	if name == "" {
		name = "module"
	}
	unit := f.UnitNamed(name)
	if unit == nil {
		names := make([]string, 0, len(f.Units))
		for _, u := range f.Units {
			names = append(names, u.Name)
		}
		return fmt.Errorf("no unit named %q (available: %s)", name, strings.Join(names, ", "))
	}

	w := io.Writer(os.Stdout)
	if out := c.String("output"); out != "" {
		file, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		w = file
	}

	if err := pycfg.WriteDOT(w, unit.Graph, f.Source); err != nil {
		return err
	}
	if out := c.String("output"); out != "" {
		color.Green("CFG written to %s", out)
	}
	return nil
}
