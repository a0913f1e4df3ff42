package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/mentorlint/mentor/internal/cache"
	"github.com/mentorlint/mentor/internal/output"
	"github.com/urfave/cli/v2"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the analysis result cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache statistics",
				Action: runCacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Delete all cached results",
				Action: runCacheClear,
			},
		},
	}
}

func openCache(c *cli.Context) (*cache.Cache, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return cache.New(cfg.Cache.Dir, cfg.Cache.TTL, true)
}

func runCacheStats(c *cli.Context) error {
	store, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := store.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	formatter, err := output.NewFormatter(output.ParseFormat(c.String("format")), c.String("output"), true)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if formatter.Format() != output.FormatText {
		return formatter.Output(stats)
	}

	if stats.Entries == 0 {
		fmt.Fprintln(formatter.Writer(), "Cache is empty")
		return nil
	}
	fmt.Fprintf(formatter.Writer(), "Entries: %d\n", stats.Entries)
	fmt.Fprintf(formatter.Writer(), "Size:    %d bytes\n", stats.TotalSize)
	fmt.Fprintf(formatter.Writer(), "Oldest:  %s\n", stats.OldestAge.Round(time.Second))
	fmt.Fprintf(formatter.Writer(), "Newest:  %s\n", stats.NewestAge.Round(time.Second))
	return nil
}

func runCacheClear(c *cli.Context) error {
	store, err := openCache(c)
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	color.Green("Cache cleared")
	return nil
}
