package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/mentorlint/mentor/internal/cache"
	"github.com/mentorlint/mentor/internal/output"
	"github.com/mentorlint/mentor/internal/vcs"
	"github.com/mentorlint/mentor/pkg/analyzer/lint"
	"github.com/mentorlint/mentor/pkg/progress"
	"github.com/mentorlint/mentor/pkg/scanner"
	"github.com/urfave/cli/v2"
)

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Aliases:   []string{"lint"},
		Usage:     "Run diagnostic rules over Python files",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "rules",
				Usage: "Rule IDs to run (default: all enabled in config)",
			},
			&cli.StringFlag{
				Name:  "since",
				Usage: "Only check files changed since a git revision",
			},
			&cli.BoolFlag{
				Name:  "changed-only",
				Usage: "Only check files with uncommitted changes",
			},
			&cli.BoolFlag{
				Name:  "fail-on-findings",
				Usage: "Exit with status 1 when findings exist",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Worker count (default: 2x CPU count)",
			},
		},
		Action: runCheckCmd,
	}
}

func runCheckCmd(c *cli.Context) error {
	paths := getPaths(c)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if ids := c.StringSlice("rules"); len(ids) > 0 {
		cfg.Rules.Enabled = ids
		cfg.Rules.Disabled = nil
	}

	scan := scanner.NewScanner(cfg)
	files, err := scanFiles(scan, paths)
	if err != nil {
		return err
	}

	if ref := c.String("since"); ref != "" || c.Bool("changed-only") {
		spinner := progress.NewSpinner("Consulting git history...")
		files, err = filterChanged(files, ref)
		spinner.FinishSuccess()
		if err != nil {
			return fmt.Errorf("filter changed files (is this a git repository?): %w", err)
		}
	}

	files, skipped := scanner.FilterBySize(files, cfg.Analysis.MaxFileSize)
	if skipped > 0 && c.Bool("verbose") {
		color.Yellow("Skipped %d oversized files", skipped)
	}

	if len(files) == 0 {
		color.Yellow("No Python files found")
		return nil
	}

	var store *cache.Cache
	if !c.Bool("no-cache") && cfg.Cache.Enabled {
		store, err = cache.New(cfg.Cache.Dir, cfg.Cache.TTL, true)
		if err != nil {
			color.Yellow("Cache unavailable: %v", err)
			store = nil
		}
	}

	analyzer := lint.New(
		lint.WithConfig(cfg),
		lint.WithCache(store),
		lint.WithWorkers(c.Int("workers")),
	)

	tracker := progress.NewTracker("Checking Python files...", len(files))
	report, err := analyzer.AnalyzeProjectWithProgress(c.Context, files, tracker.Tick)
	if err != nil {
		tracker.FinishError(err)
		return err
	}
	tracker.FinishSuccess()

	formatter, err := output.NewFormatter(output.ParseFormat(c.String("format")), c.String("output"), true)
	if err != nil {
		return err
	}
	defer formatter.Close()

	rows := make([][]string, 0, len(report.Findings))
	for _, fd := range report.Findings {
		severity := string(fd.Severity)
		if formatter.Colored() {
			severity = output.SeverityColor(string(fd.Severity), severity)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%s:%d:%d", fd.Path, fd.Span.StartLine, fd.Span.StartCol),
			severity,
			fd.Rule,
			fd.Message,
		})
	}

	table := output.NewTable(
		"Check Results",
		[]string{"Location", "Severity", "Rule", "Message"},
		rows,
		[]string{
			fmt.Sprintf("Files: %d", report.Summary.FilesScanned),
			fmt.Sprintf("Findings: %d", report.Summary.TotalFindings),
			fmt.Sprintf("Cached: %d", report.Summary.FilesFromCache),
			fmt.Sprintf("Elapsed: %s", report.Summary.Duration.Round(time.Millisecond)),
		},
		report,
	)
	if err := formatter.Output(table); err != nil {
		return err
	}

	if formatter.Format() == output.FormatText {
		if !report.HasFindings() {
			color.Green("No problems found")
		}
		if len(report.Errors) > 0 {
			fmt.Println()
			color.Yellow("Errors (%d):", len(report.Errors))
			for _, e := range report.Errors {
				fmt.Printf("  - %s\n", e)
			}
		}
		if c.Bool("verbose") {
			fmt.Println()
			color.Cyan("Checked %d files in %s (%d from cache, %d failed)",
				len(report.Files), report.Summary.Duration.Round(time.Millisecond),
				report.Summary.FilesFromCache, report.Summary.FilesFailed)
		}
	}

	if c.Bool("fail-on-findings") && report.HasFindings() {
		return cli.Exit(fmt.Sprintf("%d findings", report.Summary.TotalFindings), 1)
	}
	return nil
}

// filterChanged keeps only files git reports as changed since ref. An empty
// ref keeps files with uncommitted changes.
func filterChanged(files []string, ref string) ([]string, error) {
	if len(files) == 0 {
		return files, nil
	}

	repo, err := vcs.Open(filepath.Dir(files[0]))
	if err != nil {
		return nil, err
	}
	changed, err := repo.ChangedFiles(ref)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(changed))
	for _, p := range changed {
		set[p] = true
	}
	var kept []string
	for _, f := range files {
		if set[f] {
			kept = append(kept, f)
		}
	}
	return kept, nil
}
