package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mentorlint/mentor/pkg/analyzer/lint"
	"github.com/mentorlint/mentor/pkg/watch"
	"github.com/urfave/cli/v2"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch for file changes and re-check them",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Value: 500 * time.Millisecond,
				Usage: "Quiet period before a changed file is re-checked",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	paths := getPaths(c)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(paths[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	watcher, err := watch.NewWatcher(absPath, cfg, c.Duration("debounce"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	analyzer := lint.New(lint.WithConfig(cfg))
	watcher.SetCallback(func(changedPath string) {
		report, err := analyzer.AnalyzeProject(context.Background(), []string{changedPath})
		if err != nil {
			color.Red("Check error: %v", err)
			return
		}
		for _, e := range report.Errors {
			color.Red("  %s", e)
		}
		if !report.HasFindings() {
			color.Green("No problems found")
			return
		}
		for _, fd := range report.Findings {
			fmt.Printf("  line %d [%s] %s\n", fd.Span.StartLine, fd.Rule, truncate(fd.Message, 80))
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping watch...")
		cancel()
	}()

	if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
