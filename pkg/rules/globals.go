package rules

import (
	"fmt"

	"github.com/mentorlint/mentor/pkg/analysis"
	"github.com/mentorlint/mentor/pkg/pyast"
	"github.com/mentorlint/mentor/pkg/scope"
)

// GlobalVariables reports writes to module-level names from inside a
// function or class body, the global-statement escape hatch included.
// Reading module state is fine; rebinding it couples every caller to
// hidden shared state.
type GlobalVariables struct{}

func (GlobalVariables) ID() string { return "global-variables" }

func (r GlobalVariables) Check(f *analysis.File) []Finding {
	var out []Finding
	for _, u := range f.Units {
		if u.Node.Kind == pyast.KindModule {
			continue
		}
		for _, d := range u.Flow.OuterWrites() {
			if d.Binding.Scope.Kind != scope.Module {
				continue
			}
			out = append(out, Finding{
				Rule:     r.ID(),
				Severity: SeverityWarning,
				Path:     f.Path,
				Span:     d.Node.Span,
				Message:  fmt.Sprintf("%q rebinds a module-level name; prefer parameters and return values", d.Name),
				Params:   map[string]string{"variable": d.Name, "unit": u.Name},
			})
		}
	}
	return out
}
