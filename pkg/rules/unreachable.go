package rules

import (
	"github.com/mentorlint/mentor/pkg/analysis"
	"github.com/mentorlint/mentor/pkg/cfg"
	"github.com/mentorlint/mentor/pkg/pyast"
)

// UnreachableCode reports code no path from the unit entry reaches. Dead
// blocks form connected regions (code after a return, a raise, a break);
// each region yields one finding at its earliest statement.
type UnreachableCode struct{}

func (UnreachableCode) ID() string { return "unreachable-code" }

func (r UnreachableCode) Check(f *analysis.File) []Finding {
	var out []Finding
	for _, u := range f.Units {
		for _, head := range deadRegionHeads(u.Graph) {
			out = append(out, Finding{
				Rule:     r.ID(),
				Severity: SeverityWarning,
				Path:     f.Path,
				Span:     statementSpan(head.Stmts[0]),
				Message:  "unreachable code",
				Params:   map[string]string{"unit": u.Name},
			})
		}
	}
	return out
}

// deadRegionHeads groups dead blocks into connected regions and returns,
// for each region holding statements, the block with the earliest one.
func deadRegionHeads(g *cfg.Graph) []*cfg.Block {
	visited := make(map[int]bool)
	var heads []*cfg.Block
	for _, b := range g.Blocks {
		if !b.Dead || visited[b.ID] {
			continue
		}
		var head *cfg.Block
		queue := []*cfg.Block{b}
		visited[b.ID] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if len(cur.Stmts) > 0 {
				if head == nil || cur.Stmts[0].Span.StartByte < head.Stmts[0].Span.StartByte {
					head = cur
				}
			}
			for _, e := range cur.Succs {
				if e.To.Dead && !visited[e.To.ID] {
					visited[e.To.ID] = true
					queue = append(queue, e.To)
				}
			}
			for _, e := range cur.Preds {
				if e.From.Dead && !visited[e.From.ID] {
					visited[e.From.ID] = true
					queue = append(queue, e.From)
				}
			}
		}
		if head != nil {
			heads = append(heads, head)
		}
	}
	return heads
}

// statementSpan lifts a block entry to its governing statement: condition
// expressions registered in a block stand in for their branch or loop.
func statementSpan(n *pyast.Node) pyast.Span {
	for cur := n; cur != nil; cur = cur.Parent {
		if pyast.IsStatementKind(cur.Kind) {
			return cur.Span
		}
	}
	return n.Span
}
