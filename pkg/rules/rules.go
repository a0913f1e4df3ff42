// Package rules defines the diagnostic surface: the Finding model, the
// Rule interface, and the built-in rule set. Rules are pure readers of a
// solved analysis.File. The registry drives them with an explicit loop in
// registration order and sorts findings for stable output.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mentorlint/mentor/pkg/analysis"
	"github.com/mentorlint/mentor/pkg/pyast"
)

// Severity ranks a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Finding is one diagnostic at one source location. Params carries
// rule-specific values (variable names, suggested iterables) for
// structured consumers.
type Finding struct {
	Rule     string            `json:"rule"`
	Severity Severity          `json:"severity"`
	Path     string            `json:"path"`
	Span     pyast.Span        `json:"span"`
	Message  string            `json:"message"`
	Params   map[string]string `json:"params,omitempty"`
}

// Rule inspects one analyzed file and reports findings. Implementations
// must not retain or mutate the file; the driver may run them against
// files analyzed on other goroutines.
type Rule interface {
	ID() string
	Check(f *analysis.File) []Finding
}

// Registry holds rules in registration order.
type Registry struct {
	rules []Rule
	byID  map[string]Rule
}

// NewRegistry builds a registry from the given rules. Later rules with a
// duplicate ID are rejected by Add; this constructor assumes distinct IDs.
func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{byID: make(map[string]Rule, len(rules))}
	for _, rule := range rules {
		r.rules = append(r.rules, rule)
		r.byID[rule.ID()] = rule
	}
	return r
}

// Defaults returns the built-in rules in their canonical order.
func Defaults() *Registry {
	return NewRegistry(
		UnreachableCode{},
		UseBeforeAssignment{},
		UnusedVariable{},
		GlobalVariables{},
		IdenticalIfBranches{},
		DuplicateToLoop{},
		DuplicateBlocks{},
		SingleIterationLoop{},
	)
}

// Add registers one more rule at the end of the run order.
func (r *Registry) Add(rule Rule) error {
	if _, ok := r.byID[rule.ID()]; ok {
		return fmt.Errorf("rule %q already registered", rule.ID())
	}
	r.rules = append(r.rules, rule)
	r.byID[rule.ID()] = rule
	return nil
}

// Rules lists registered rules in run order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Get looks a rule up by ID.
func (r *Registry) Get(id string) (Rule, bool) {
	rule, ok := r.byID[id]
	return rule, ok
}

// Select returns a registry restricted to the given IDs, preserving this
// registry's run order. Unknown IDs are an error naming the known set.
func (r *Registry) Select(ids []string) (*Registry, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.byID[id]; !ok {
			return nil, fmt.Errorf("unknown rule %q (known: %s)", id, strings.Join(r.IDs(), ", "))
		}
		want[id] = true
	}
	sub := &Registry{byID: make(map[string]Rule, len(want))}
	for _, rule := range r.rules {
		if want[rule.ID()] {
			sub.rules = append(sub.rules, rule)
			sub.byID[rule.ID()] = rule
		}
	}
	return sub, nil
}

// IDs lists registered rule IDs in run order.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule.ID())
	}
	return out
}

// Run checks the file with every registered rule and returns the findings
// ordered by position.
func (r *Registry) Run(f *analysis.File) []Finding {
	var out []Finding
	for _, rule := range r.rules {
		out = append(out, rule.Check(f)...)
	}
	SortFindings(out)
	return out
}

// SortFindings orders findings by path, position, rule ID, and finally
// message, so repeated runs render identically.
func SortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Span.StartLine != b.Span.StartLine {
			return a.Span.StartLine < b.Span.StartLine
		}
		if a.Span.StartCol != b.Span.StartCol {
			return a.Span.StartCol < b.Span.StartCol
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})
}
