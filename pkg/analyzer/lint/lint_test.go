package lint

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mentorlint/mentor/internal/cache"
	"github.com/mentorlint/mentor/internal/testutil"
	"github.com/mentorlint/mentor/pkg/config"
	"github.com/mentorlint/mentor/pkg/rules"
)

const deadCodeSource = `def f():
    return 1
    x = 2
`

const cleanSource = `def g():
    return 2
`

const identicalBranchSource = `if flag:
    total = 1
    print(total)
else:
    total = 1
    print(total)
`

func writeFixtures(t *testing.T, files map[string]string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(files))
	for name, src := range files {
		paths = append(paths, testutil.WritePython(t, dir, name, src))
	}
	sort.Strings(paths)
	return dir, paths
}

func singleRuleConfig(id string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Rules.Enabled = []string{id}
	return cfg
}

func TestNew(t *testing.T) {
	a := New()
	if a.config == nil {
		t.Error("analyzer.config is nil")
	}
	if a.registry == nil {
		t.Error("analyzer.registry is nil")
	}
	if a.cache != nil {
		t.Error("analyzer.cache should be nil by default")
	}
	if a.workers != 0 {
		t.Errorf("workers = %d, want 0", a.workers)
	}
}

func TestNewWithOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	reg := rules.NewRegistry(rules.UnreachableCode{})
	c, err := cache.New(t.TempDir(), 1, true)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	a := New(WithConfig(cfg), WithRegistry(reg), WithCache(c), WithWorkers(3))

	if a.config != cfg {
		t.Error("WithConfig did not apply")
	}
	if a.registry != reg {
		t.Error("WithRegistry did not apply")
	}
	if a.cache != c {
		t.Error("WithCache did not apply")
	}
	if a.workers != 3 {
		t.Errorf("workers = %d, want 3", a.workers)
	}
}

func TestNewIgnoresNilOptions(t *testing.T) {
	a := New(WithConfig(nil), WithRegistry(nil))
	if a.config == nil {
		t.Error("nil config should fall back to defaults")
	}
	if a.registry == nil {
		t.Error("nil registry should fall back to defaults")
	}
}

func TestAnalyzeProject(t *testing.T) {
	_, paths := writeFixtures(t, map[string]string{
		"dead.py":  deadCodeSource,
		"clean.py": cleanSource,
	})

	a := New(WithConfig(singleRuleConfig("unreachable-code")))
	rep, err := a.AnalyzeProject(context.Background(), paths)
	if err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}

	if rep.Summary.FilesScanned != 2 {
		t.Errorf("FilesScanned = %d, want 2", rep.Summary.FilesScanned)
	}
	if len(rep.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2", len(rep.Files))
	}
	if rep.Files[0].Path > rep.Files[1].Path {
		t.Error("file results are not sorted by path")
	}
	for _, fr := range rep.Files {
		if fr.Units != 2 {
			t.Errorf("%s: Units = %d, want 2 (module plus one function)", fr.Path, fr.Units)
		}
	}

	if len(rep.Findings) != 1 {
		t.Fatalf("len(Findings) = %d, want 1", len(rep.Findings))
	}
	fd := rep.Findings[0]
	if fd.Rule != "unreachable-code" {
		t.Errorf("Rule = %q, want unreachable-code", fd.Rule)
	}
	if !strings.HasSuffix(fd.Path, "dead.py") {
		t.Errorf("Path = %q, want dead.py", fd.Path)
	}
	if fd.Span.StartLine != 3 {
		t.Errorf("StartLine = %d, want 3", fd.Span.StartLine)
	}

	if rep.Summary.TotalFindings != 1 {
		t.Errorf("TotalFindings = %d, want 1", rep.Summary.TotalFindings)
	}
	if rep.Summary.BySeverity["warning"] != 1 {
		t.Errorf("BySeverity[warning] = %d, want 1", rep.Summary.BySeverity["warning"])
	}
	if rep.Summary.ByRule["unreachable-code"] != 1 {
		t.Errorf("ByRule[unreachable-code] = %d, want 1", rep.Summary.ByRule["unreachable-code"])
	}
	if rep.Summary.FilesFailed != 0 || rep.Summary.FilesFromCache != 0 {
		t.Errorf("FilesFailed = %d, FilesFromCache = %d, want 0, 0",
			rep.Summary.FilesFailed, rep.Summary.FilesFromCache)
	}
	if !rep.HasFindings() {
		t.Error("HasFindings() = false, want true")
	}

	// Per-file counts are 0 and 1.
	if rep.Summary.P50Findings != 0 {
		t.Errorf("P50Findings = %v, want 0", rep.Summary.P50Findings)
	}
	if rep.Summary.P95Findings != 1 {
		t.Errorf("P95Findings = %v, want 1", rep.Summary.P95Findings)
	}
	if rep.Summary.Duration <= 0 {
		t.Error("Duration should be positive")
	}
}

func TestAnalyzeProjectDeterministic(t *testing.T) {
	_, paths := writeFixtures(t, map[string]string{
		"a.py": deadCodeSource,
		"b.py": "print(x)\nx = 1\n",
		"c.py": identicalBranchSource,
		"d.py": cleanSource,
	})

	run := func() string {
		a := New(WithWorkers(4))
		rep, err := a.AnalyzeProject(context.Background(), paths)
		if err != nil {
			t.Fatalf("AnalyzeProject: %v", err)
		}
		data, err := json.Marshal(rep)
		if err != nil {
			t.Fatalf("marshal report: %v", err)
		}
		return string(data)
	}

	first := run()
	second := run()
	if first != second {
		t.Errorf("two runs rendered different reports:\n%s\n%s", first, second)
	}
}

func TestAnalyzeProjectEmptyFileList(t *testing.T) {
	a := New()
	rep, err := a.AnalyzeProject(context.Background(), nil)
	if err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}
	if rep.Summary.FilesScanned != 0 {
		t.Errorf("FilesScanned = %d, want 0", rep.Summary.FilesScanned)
	}
	if rep.HasFindings() {
		t.Error("empty run should have no findings")
	}
}

func TestAnalyzeProjectParseError(t *testing.T) {
	_, paths := writeFixtures(t, map[string]string{
		"good.py": cleanSource,
		"bad.py":  "def f(:\n",
	})

	a := New()
	rep, err := a.AnalyzeProject(context.Background(), paths)
	if err != nil {
		t.Fatalf("file errors must not fail the run: %v", err)
	}

	if rep.Summary.FilesFailed != 1 {
		t.Errorf("FilesFailed = %d, want 1", rep.Summary.FilesFailed)
	}
	if len(rep.Errors) != 1 || !strings.Contains(rep.Errors[0], "bad.py") {
		t.Errorf("Errors = %v, want one entry naming bad.py", rep.Errors)
	}
	if len(rep.Files) != 1 || !strings.HasSuffix(rep.Files[0].Path, "good.py") {
		t.Errorf("Files = %v, want only good.py", rep.Files)
	}
}

func TestAnalyzeProjectCancelled(t *testing.T) {
	_, paths := writeFixtures(t, map[string]string{"a.py": cleanSource})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New()
	rep, err := a.AnalyzeProject(ctx, paths)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if rep != nil {
		t.Error("cancelled run should not return a report")
	}
}

func TestAnalyzeProjectUnknownRule(t *testing.T) {
	_, paths := writeFixtures(t, map[string]string{"a.py": cleanSource})

	a := New(WithConfig(singleRuleConfig("no-such-rule")))
	rep, err := a.AnalyzeProject(context.Background(), paths)
	if err == nil || !strings.Contains(err.Error(), "no-such-rule") {
		t.Errorf("err = %v, want unknown rule error", err)
	}
	if rep != nil {
		t.Error("selection failure should not return a report")
	}
}

func TestAnalyzeProjectRuleSelection(t *testing.T) {
	_, paths := writeFixtures(t, map[string]string{"dead.py": deadCodeSource})

	// The dead x = 2 assignment would also trip unused-variable, but only
	// the enabled rule may report.
	cfg := config.DefaultConfig()
	cfg.Rules.Enabled = []string{"unused-variable"}

	a := New(WithConfig(cfg))
	rep, err := a.AnalyzeProject(context.Background(), paths)
	if err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}
	for _, fd := range rep.Findings {
		if fd.Rule != "unused-variable" {
			t.Errorf("finding from disabled rule %q", fd.Rule)
		}
	}
}

func TestAnalyzeProjectMaxFileSize(t *testing.T) {
	big := strings.Repeat("# padding line\n", 50) + cleanSource
	_, paths := writeFixtures(t, map[string]string{
		"big.py":   big,
		"small.py": cleanSource,
	})

	cfg := config.DefaultConfig()
	cfg.Analysis.MaxFileSize = 64

	a := New(WithConfig(cfg))
	rep, err := a.AnalyzeProject(context.Background(), paths)
	if err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}

	if rep.Summary.FilesScanned != 2 {
		t.Errorf("FilesScanned = %d, want 2", rep.Summary.FilesScanned)
	}
	if len(rep.Files) != 1 || !strings.HasSuffix(rep.Files[0].Path, "small.py") {
		t.Errorf("Files = %v, want only small.py", rep.Files)
	}
	if rep.Summary.FilesFailed != 0 {
		t.Errorf("oversized files are skipped, not failed: FilesFailed = %d", rep.Summary.FilesFailed)
	}
}

func TestAnalyzeProjectWithProgress(t *testing.T) {
	_, paths := writeFixtures(t, map[string]string{
		"a.py": cleanSource,
		"b.py": cleanSource,
		"c.py": deadCodeSource,
	})

	var ticks atomic.Int64
	a := New()
	_, err := a.AnalyzeProjectWithProgress(context.Background(), paths, func() {
		ticks.Add(1)
	})
	if err != nil {
		t.Fatalf("AnalyzeProjectWithProgress: %v", err)
	}
	if got := ticks.Load(); got != 3 {
		t.Errorf("progress ticks = %d, want 3", got)
	}
}

func TestAnalyzeProjectDuplicateClusters(t *testing.T) {
	_, paths := writeFixtures(t, map[string]string{"branches.py": identicalBranchSource})

	a := New(WithConfig(singleRuleConfig("identical-if-branches")))
	rep, err := a.AnalyzeProject(context.Background(), paths)
	if err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}

	if len(rep.Findings) != 1 {
		t.Fatalf("len(Findings) = %d, want 1", len(rep.Findings))
	}
	if rep.Summary.DuplicateClusters < 1 {
		t.Errorf("DuplicateClusters = %d, want at least 1", rep.Summary.DuplicateClusters)
	}
	if rep.Summary.AvgSimilarity <= 0.9 {
		t.Errorf("AvgSimilarity = %v, want above 0.9", rep.Summary.AvgSimilarity)
	}

	var sawBranches bool
	for _, cl := range rep.Files[0].Clusters {
		if cl.Granularity == "if-branches" && cl.Identical {
			sawBranches = true
		}
	}
	if !sawBranches {
		t.Errorf("Clusters = %v, want an identical if-branches entry", rep.Files[0].Clusters)
	}
}

func TestAnalyzeProjectCacheRoundTrip(t *testing.T) {
	dir, paths := writeFixtures(t, map[string]string{"dead.py": deadCodeSource})

	c, err := cache.New(t.TempDir(), 24, true)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	a := New(WithConfig(singleRuleConfig("unreachable-code")), WithCache(c))

	first, err := a.AnalyzeProject(context.Background(), paths)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Summary.FilesFromCache != 0 {
		t.Errorf("first run FilesFromCache = %d, want 0", first.Summary.FilesFromCache)
	}

	second, err := a.AnalyzeProject(context.Background(), paths)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Summary.FilesFromCache != 1 {
		t.Errorf("second run FilesFromCache = %d, want 1", second.Summary.FilesFromCache)
	}
	if !second.Files[0].Cached {
		t.Error("second run file result should be marked cached")
	}

	want, _ := json.Marshal(first.Findings)
	got, _ := json.Marshal(second.Findings)
	if string(want) != string(got) {
		t.Errorf("cached findings differ:\n%s\n%s", want, got)
	}

	// Edited content means a new hash; the stale entry must not be served.
	testutil.WritePython(t, dir, "dead.py", deadCodeSource+"\n# touched\n")
	third, err := a.AnalyzeProject(context.Background(), paths)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if third.Summary.FilesFromCache != 0 {
		t.Errorf("third run FilesFromCache = %d, want 0 after edit", third.Summary.FilesFromCache)
	}
}

func TestAnalyzeProjectCacheConfigChange(t *testing.T) {
	_, paths := writeFixtures(t, map[string]string{"dead.py": deadCodeSource})

	cacheDir := t.TempDir()
	c, err := cache.New(cacheDir, 24, true)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	prime := New(WithConfig(singleRuleConfig("unreachable-code")), WithCache(c))
	if _, err := prime.AnalyzeProject(context.Background(), paths); err != nil {
		t.Fatalf("prime run: %v", err)
	}

	changed := singleRuleConfig("unreachable-code")
	changed.Thresholds.DuplicateSimilarity = 0.95

	a := New(WithConfig(changed), WithCache(c))
	rep, err := a.AnalyzeProject(context.Background(), paths)
	if err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}
	if rep.Summary.FilesFromCache != 0 {
		t.Errorf("FilesFromCache = %d, want 0 after config change", rep.Summary.FilesFromCache)
	}
}

func TestReportHasFindings(t *testing.T) {
	r := &Report{}
	if r.HasFindings() {
		t.Error("empty report should have no findings")
	}
	r.Findings = []rules.Finding{{Rule: "unused-variable"}}
	if !r.HasFindings() {
		t.Error("HasFindings() = false with one finding")
	}
}
