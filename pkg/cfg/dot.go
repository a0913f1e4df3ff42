package cfg

import (
	"fmt"
	"io"
	"strings"

	"github.com/mentorlint/mentor/pkg/pyast"
)

// WriteDOT renders the graph in Graphviz dot format. Source holds the
// file bytes the unit was parsed from and is used for block labels; pass
// nil to label statements by kind and line instead.
func WriteDOT(w io.Writer, g *Graph, source []byte) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %q {\n", g.Name())
	sb.WriteString("  node [shape=box, fontname=\"monospace\"];\n")

	for _, blk := range g.Blocks {
		var attrs []string
		if blk.Dead {
			attrs = append(attrs, "style=dashed", "color=red")
		}
		if blk.Unsupported {
			attrs = append(attrs, "style=filled", "fillcolor=lightgray")
		}
		extra := ""
		if len(attrs) > 0 {
			extra = ", " + strings.Join(attrs, ", ")
		}
		fmt.Fprintf(&sb, "  b%d [label=%q%s];\n", blk.ID, blockLabel(g, blk, source), extra)
	}

	for _, blk := range g.Blocks {
		for _, e := range blk.Succs {
			if e.Kind == EdgeFallthrough {
				fmt.Fprintf(&sb, "  b%d -> b%d;\n", blk.ID, e.To.ID)
				continue
			}
			fmt.Fprintf(&sb, "  b%d -> b%d [label=%q];\n", blk.ID, e.To.ID, e.Kind.String())
		}
	}

	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func blockLabel(g *Graph, blk *Block, source []byte) string {
	switch blk {
	case g.Entry:
		return "entry"
	case g.Exit:
		return "exit"
	}
	if len(blk.Stmts) == 0 {
		return fmt.Sprintf("b%d", blk.ID)
	}
	lines := make([]string, 0, len(blk.Stmts))
	for _, s := range blk.Stmts {
		lines = append(lines, stmtLabel(s, source))
	}
	return strings.Join(lines, "\n")
}

func stmtLabel(n *pyast.Node, source []byte) string {
	start, end := n.Span.StartByte, n.Span.EndByte
	if source == nil || int(end) > len(source) || start >= end {
		return fmt.Sprintf("%s:%d", n.Kind, n.Span.StartLine)
	}
	text := string(source[start:end])
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if len(text) > 48 {
		text = text[:45] + "..."
	}
	return text
}
