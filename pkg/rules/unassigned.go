package rules

import (
	"fmt"

	"github.com/mentorlint/mentor/pkg/analysis"
)

// UseBeforeAssignment reports reads of a unit's own variable that no
// definition reaches on any path. Free variables and names behind dynamic
// scopes are excluded by the def-use layer, so a report here means the
// value genuinely cannot exist yet.
type UseBeforeAssignment struct{}

func (UseBeforeAssignment) ID() string { return "use-before-assignment" }

func (r UseBeforeAssignment) Check(f *analysis.File) []Finding {
	var out []Finding
	for _, u := range f.Units {
		for _, ev := range u.Flow.UnassignedUses() {
			out = append(out, Finding{
				Rule:     r.ID(),
				Severity: SeverityError,
				Path:     f.Path,
				Span:     ev.Node.Span,
				Message:  fmt.Sprintf("%q is used before assignment", ev.Name),
				Params:   map[string]string{"variable": ev.Name, "unit": u.Name},
			})
		}
	}
	return out
}
