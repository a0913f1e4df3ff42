package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/mentorlint/mentor/internal/testutil"
	"github.com/mentorlint/mentor/pkg/analyzer/lint"
	"github.com/urfave/cli/v2"
)

const deadCodeSource = `def f():
    return 1
    x = 2
`

// runApp runs the CLI with a no-op exit handler so cli.Exit errors come
// back to the test instead of terminating the process.
func runApp(t *testing.T, args ...string) error {
	t.Helper()
	app := newApp()
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app.Run(append([]string{"mentor"}, args...))
}

func writeFixture(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestCheckCommandWritesJSONReport(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "dead.py", deadCodeSource)
	outPath := filepath.Join(t.TempDir(), "report.json")

	err := runApp(t, "--format", "json", "--output", outPath, "--no-cache",
		"check", "--rules", "unreachable-code", dir)
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	var report lint.Report
	if err := json.Unmarshal([]byte(testutil.ReadFile(t, outPath)), &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}

	if report.Summary.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1", report.Summary.FilesScanned)
	}
	if len(report.Findings) != 1 {
		t.Fatalf("got %d findings, want 1: %+v", len(report.Findings), report.Findings)
	}
	fd := report.Findings[0]
	if fd.Rule != "unreachable-code" {
		t.Errorf("rule = %q, want unreachable-code", fd.Rule)
	}
	if !strings.HasSuffix(fd.Path, "dead.py") {
		t.Errorf("path = %q, want dead.py suffix", fd.Path)
	}
	if fd.Span.StartLine != 3 {
		t.Errorf("start line = %d, want 3", fd.Span.StartLine)
	}
	if report.Summary.ByRule["unreachable-code"] != 1 {
		t.Errorf("ByRule = %v, want unreachable-code: 1", report.Summary.ByRule)
	}
}

func TestCheckCommandFailOnFindings(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "dead.py", deadCodeSource)

	err := runApp(t, "--no-cache",
		"check", "--rules", "unreachable-code", "--fail-on-findings", dir)
	if err == nil {
		t.Fatal("expected exit error when findings exist")
	}
	var coder cli.ExitCoder
	if !errors.As(err, &coder) {
		t.Fatalf("error %v does not carry an exit code", err)
	}
	if coder.ExitCode() != 1 {
		t.Errorf("exit code = %d, want 1", coder.ExitCode())
	}
}

func TestCheckCommandCleanTree(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "clean.py", "def g():\n    return 2\n")

	err := runApp(t, "--no-cache",
		"check", "--fail-on-findings", dir)
	if err != nil {
		t.Fatalf("check on clean tree: %v", err)
	}
}

func TestCheckCommandEmptyDir(t *testing.T) {
	if err := runApp(t, "--no-cache", "check", t.TempDir()); err != nil {
		t.Fatalf("check on empty dir: %v", err)
	}
}

func TestCheckCommandSinceRef(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	writeFixture(t, dir, "old.py", deadCodeSource)
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("old.py"); err != nil {
		t.Fatal(err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	// old.py would report the same finding; --since must drop it from the run.
	writeFixture(t, dir, "new.py", deadCodeSource)
	outPath := filepath.Join(t.TempDir(), "report.json")

	err = runApp(t, "--format", "json", "--output", outPath, "--no-cache",
		"check", "--since", "HEAD", "--rules", "unreachable-code", dir)
	if err != nil {
		t.Fatalf("check --since: %v", err)
	}

	var report lint.Report
	if err := json.Unmarshal([]byte(testutil.ReadFile(t, outPath)), &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.Summary.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1", report.Summary.FilesScanned)
	}
	if len(report.Findings) != 1 {
		t.Fatalf("got %d findings, want 1: %+v", len(report.Findings), report.Findings)
	}
	if !strings.HasSuffix(report.Findings[0].Path, "new.py") {
		t.Errorf("path = %q, want new.py suffix", report.Findings[0].Path)
	}
}

func TestCfgCommandWritesDOT(t *testing.T) {
	dir := t.TempDir()
	pyPath := writeFixture(t, dir, "branchy.py", "def f(x):\n    if x:\n        return 1\n    return 0\n")
	dotPath := filepath.Join(dir, "out.dot")

	err := runApp(t, "--output", dotPath, "cfg", "--function", "f", pyPath)
	if err != nil {
		t.Fatalf("cfg: %v", err)
	}

	dot := testutil.ReadFile(t, dotPath)
	if !strings.Contains(dot, `digraph "f"`) {
		t.Errorf("dot output missing digraph header:\n%s", dot)
	}
	if !strings.Contains(dot, "->") {
		t.Error("dot output has no edges")
	}
}

func TestCfgCommandUnknownFunction(t *testing.T) {
	dir := t.TempDir()
	pyPath := writeFixture(t, dir, "mod.py", "x = 1\n")

	err := runApp(t, "cfg", "--function", "missing", pyPath)
	if err == nil || !strings.Contains(err.Error(), "no unit named") {
		t.Errorf("error = %v, want unit lookup failure", err)
	}
}

func TestInitCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), ".mentor.toml")

	if err := runApp(t, "init", "-o", target); err != nil {
		t.Fatalf("init: %v", err)
	}
	data := testutil.ReadFile(t, target)
	if !strings.HasPrefix(data, "# mentor configuration") {
		t.Errorf("generated config missing header:\n%s", data[:40])
	}

	if err := runApp(t, "init", "-o", target); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("rerun without --force: error = %v, want already-exists failure", err)
	}
	if err := runApp(t, "init", "-o", target, "--force"); err != nil {
		t.Errorf("rerun with --force: %v", err)
	}
}

func TestCacheStatsAndClear(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	cfgPath := writeFixture(t, dir, ".mentor.toml", "[cache]\ndir = \""+cacheDir+"\"\n")

	if err := runApp(t, "-c", cfgPath, "cache", "stats"); err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	if !testutil.DirExists(cacheDir) {
		t.Fatal("cache dir not created")
	}

	if err := runApp(t, "-c", cfgPath, "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if testutil.DirExists(cacheDir) {
		t.Error("cache dir still present after clear")
	}
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeFixture(t, dir, "good.toml", "[analysis]\nworkers = 2\n")
	bad := writeFixture(t, dir, "bad.toml", "[analysis\nworkers =\n")

	if err := runApp(t, "-c", good, "config", "validate"); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
	if err := runApp(t, "-c", bad, "config", "validate"); err == nil {
		t.Error("invalid config accepted")
	}
}
