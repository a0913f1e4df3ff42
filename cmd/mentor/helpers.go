package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mentorlint/mentor/pkg/config"
	"github.com/mentorlint/mentor/pkg/scanner"
	"github.com/urfave/cli/v2"
)

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

// loadConfig loads the file named by --config, or searches the standard
// locations. An explicit --config that fails to load is an error; a missing
// implicit config falls back to defaults.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	return config.LoadOrDefault(), nil
}

// scanFiles resolves each path to Python files: directories are walked,
// plain files are kept when the scanner accepts them.
func scanFiles(scan *scanner.Scanner, paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("invalid path %s: %w", path, err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("cannot stat %s: %w", path, err)
		}

		if info.IsDir() {
			found, err := scan.ScanDir(absPath)
			if err != nil {
				return nil, fmt.Errorf("failed to scan directory %s: %w", path, err)
			}
			files = append(files, found...)
			continue
		}

		ok, err := scan.ScanFile(absPath)
		if err != nil {
			return nil, err
		}
		if ok {
			files = append(files, absPath)
		}
	}
	return files, nil
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
