// Package lint runs registered diagnostic rules over Python source files
// and aggregates their findings into a run report.
package lint

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/mentorlint/mentor/internal/cache"
	"github.com/mentorlint/mentor/internal/fileproc"
	"github.com/mentorlint/mentor/pkg/analysis"
	"github.com/mentorlint/mentor/pkg/config"
	"github.com/mentorlint/mentor/pkg/rules"
)

// Analyzer runs the active rule set over many files in parallel.
type Analyzer struct {
	config   *config.Config
	registry *rules.Registry
	cache    *cache.Cache
	workers  int
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithConfig applies a loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(a *Analyzer) {
		if cfg != nil {
			a.config = cfg
		}
	}
}

// WithRegistry replaces the default rule registry.
func WithRegistry(reg *rules.Registry) Option {
	return func(a *Analyzer) {
		if reg != nil {
			a.registry = reg
		}
	}
}

// WithCache attaches a result cache. Without one every file is analyzed
// from scratch on each run.
func WithCache(c *cache.Cache) Option {
	return func(a *Analyzer) {
		a.cache = c
	}
}

// WithWorkers overrides the configured worker count.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// New creates an analyzer with the default configuration and rule set.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		config:   config.DefaultConfig(),
		registry: rules.Defaults(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeProject runs the active rules over the given files.
func (a *Analyzer) AnalyzeProject(ctx context.Context, files []string) (*Report, error) {
	return a.AnalyzeProjectWithProgress(ctx, files, nil)
}

// AnalyzeProjectWithProgress runs the active rules with an optional
// per-file progress callback.
func (a *Analyzer) AnalyzeProjectWithProgress(ctx context.Context, files []string, onProgress fileproc.ProgressFunc) (*Report, error) {
	started := time.Now()

	registry, err := a.activeRegistry()
	if err != nil {
		return nil, err
	}
	opts := a.analysisOptions()
	fingerprint := a.config.Fingerprint()

	results, procErrs := fileproc.MapContext(ctx, files, a.maxWorkers(), func(path string) (*FileResult, error) {
		return a.analyzeFile(path, registry, opts, fingerprint)
	}, onProgress)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		Files:    make([]FileResult, 0, len(results)),
		Findings: make([]rules.Finding, 0),
		Summary:  NewSummary(),
	}
	report.Summary.FilesScanned = len(files)

	for _, r := range results {
		if r == nil {
			// Oversized files are skipped, not failed.
			continue
		}
		report.Files = append(report.Files, *r)
	}
	sort.Slice(report.Files, func(i, j int) bool {
		return report.Files[i].Path < report.Files[j].Path
	})

	for i := range report.Files {
		fr := &report.Files[i]
		if fr.Cached {
			report.Summary.FilesFromCache++
		}
		for _, f := range fr.Findings {
			report.Summary.AddFinding(f)
		}
		report.Findings = append(report.Findings, fr.Findings...)
	}
	rules.SortFindings(report.Findings)

	if procErrs != nil && procErrs.HasErrors() {
		for _, pe := range procErrs.Errors {
			report.Errors = append(report.Errors, pe.Error())
		}
		sort.Strings(report.Errors)
		report.Summary.FilesFailed = len(procErrs.Errors)
	}

	report.finalize()
	report.Summary.Duration = time.Since(started)
	return report, nil
}

// analyzeFile analyzes one file, consulting the cache first. A nil result
// with a nil error means the file was skipped.
func (a *Analyzer) analyzeFile(path string, registry *rules.Registry, opts analysis.Options, fingerprint string) (*FileResult, error) {
	if max := a.config.Analysis.MaxFileSize; max > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() > max {
			return nil, nil
		}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Cache entries bind the content hash to the config fingerprint, so
	// editing the file or changing any setting invalidates them.
	validation := cache.HashBytes(src) + "-" + fingerprint
	if a.cache != nil {
		if data, ok := a.cache.GetWithHash(path, validation); ok {
			var cached FileResult
			if err := json.Unmarshal(data, &cached); err == nil {
				cached.Cached = true
				return &cached, nil
			}
		}
	}

	f, err := analysis.Analyze(path, src, opts)
	if err != nil {
		return nil, err
	}

	result := &FileResult{
		Path:     path,
		Findings: registry.Run(f),
		Units:    len(f.Units),
	}
	for _, cl := range f.Clusters {
		result.Clusters = append(result.Clusters, ClusterStat{
			Granularity: string(cl.Granularity),
			Instances:   len(cl.Instances),
			Similarity:  cl.Similarity,
			Identical:   cl.Identical,
		})
	}

	if a.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			_ = a.cache.SetWithHash(path, validation, data)
		}
	}
	return result, nil
}

// activeRegistry resolves the configured rule selection.
func (a *Analyzer) activeRegistry() (*rules.Registry, error) {
	return a.registry.Select(a.config.ActiveRules(a.registry.IDs()))
}

func (a *Analyzer) analysisOptions() analysis.Options {
	opts := analysis.DefaultOptions()
	if t := a.config.Thresholds.DuplicateSimilarity; t > 0 {
		opts.Duplicates.Threshold = t
	}
	if g := a.config.Thresholds.DuplicateMinGroup; g > 0 {
		opts.Duplicates.MinGroupSize = g
	}
	return opts
}

func (a *Analyzer) maxWorkers() int {
	if a.workers > 0 {
		return a.workers
	}
	return a.config.Analysis.Workers
}
