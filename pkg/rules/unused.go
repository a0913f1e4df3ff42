package rules

import (
	"fmt"
	"strings"

	"github.com/mentorlint/mentor/pkg/analysis"
	"github.com/mentorlint/mentor/pkg/defuse"
	"github.com/mentorlint/mentor/pkg/scope"
)

// UnusedVariable reports function locals that are assigned but never
// read, mutated, or deleted anywhere in the file, closures included.
// Parameters belong to the caller's signature and underscore-prefixed
// names opt out by convention, so both stay quiet. Scopes that call
// locals, globals, eval, or exec may read anything and are skipped.
type UnusedVariable struct{}

func (UnusedVariable) ID() string { return "unused-variable" }

func (r UnusedVariable) Check(f *analysis.File) []Finding {
	used := make(map[*scope.Binding]bool)
	for _, u := range f.Units {
		for _, ev := range u.Flow.Events {
			if ev.Binding == nil {
				continue
			}
			switch ev.Kind {
			case defuse.Read, defuse.Modify, defuse.Delete:
				used[ev.Binding] = true
			}
		}
	}

	var out []Finding
	for _, s := range f.Scopes.All() {
		if s.Kind != scope.Function || s.Dynamic {
			continue
		}
		for _, name := range s.Names() {
			b := s.Binding(name)
			switch b.Kind {
			case scope.BindParam, scope.BindDef, scope.BindImport, scope.BindGlobal:
				continue
			}
			if strings.HasPrefix(name, "_") || used[b] {
				continue
			}
			out = append(out, Finding{
				Rule:     r.ID(),
				Severity: SeverityWarning,
				Path:     f.Path,
				Span:     b.Node.Span,
				Message:  fmt.Sprintf("%q is assigned but never used", name),
				Params:   map[string]string{"variable": name, "unit": s.Name()},
			})
		}
	}
	return out
}
