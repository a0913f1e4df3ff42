package dupcode

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"

	"github.com/mentorlint/mentor/pkg/pyast"
	"github.com/mentorlint/mentor/pkg/scope"
)

// candidate is one extracted fragment before clustering.
type candidate struct {
	granularity Granularity
	group       int
	subject     *pyast.Node
	nodes       []*pyast.Node
	span        pyast.Span

	hash        uint64
	fingerprint string
	stmtHashes  []uint64
	slots       []slotRef
}

// slotRef records one abstracted leaf: its positional key in the
// normalized form and the original source text. Variable occurrences of
// one binding share a key; every literal occurrence gets its own.
type slotRef struct {
	key  string
	text string
}

type normalizer struct {
	scopes *scope.Tree
	vars   map[*scope.Binding]int
	slots  []slotRef
	lits   int
	sb     strings.Builder
}

// normalize fills the candidate's hashes, fingerprint, and slots. The
// token stream is structural: node kinds, operator and attribute text, and
// positional placeholders for literals and variables, so two fragments
// differing only in values or local names produce one stream.
func normalize(scopes *scope.Tree, c *candidate) {
	n := &normalizer{scopes: scopes, vars: make(map[*scope.Binding]int)}
	whole := xxhash.New()
	fp := blake3.New()
	for _, s := range c.nodes {
		n.sb.Reset()
		n.node(s)
		text := n.sb.String()
		c.stmtHashes = append(c.stmtHashes, xxhash.Sum64String(text))
		_, _ = whole.WriteString(text)
		_, _ = whole.WriteString("\n")
		_, _ = fp.Write([]byte(text))
		_, _ = fp.Write([]byte{'\n'})
	}
	c.hash = whole.Sum64()
	sum := fp.Sum(nil)
	c.fingerprint = hex.EncodeToString(sum[:8])
	c.slots = n.slots
}

func (n *normalizer) tok(s string) {
	if n.sb.Len() > 0 {
		n.sb.WriteByte(' ')
	}
	n.sb.WriteString(s)
}

func (n *normalizer) node(nd *pyast.Node) {
	if nd == nil {
		n.tok("_")
		return
	}
	switch nd.Kind {
	case pyast.KindLiteralInt, pyast.KindLiteralFloat, pyast.KindLiteralStr,
		pyast.KindLiteralBool, pyast.KindLiteralNone, pyast.KindLiteralEllipsis:
		n.literal(nd)
	case pyast.KindName:
		n.name(nd)
	default:
		n.tok(nd.Kind.String())
		if nd.Text != "" {
			n.tok(nd.Text)
		}
		// The augmented operator lives in role data, not in Text.
		if nd.Kind == pyast.KindAugAssign && nd.Assign != nil {
			n.tok(nd.Assign.Op)
		}
		n.tok("(")
		for _, c := range nd.Children {
			n.node(c)
		}
		n.tok(")")
	}
}

func (n *normalizer) literal(nd *pyast.Node) {
	key := "LIT" + strconv.Itoa(n.lits)
	n.lits++
	n.slots = append(n.slots, slotRef{key: key, text: nd.Text})
	n.tok("LIT")
	// f-string interpolations stay structural.
	if len(nd.Children) > 0 {
		n.tok("(")
		for _, c := range nd.Children {
			n.node(c)
		}
		n.tok(")")
	}
}

func (n *normalizer) name(nd *pyast.Node) {
	b, _ := n.scopes.ResolveUse(nd)
	if b == nil || !renameable(b.Kind) {
		n.tok(nd.Text)
		return
	}
	id, ok := n.vars[b]
	if !ok {
		id = len(n.vars)
		n.vars[b] = id
	}
	key := "VAR" + strconv.Itoa(id)
	n.slots = append(n.slots, slotRef{key: key, text: nd.Text})
	n.tok(key)
}

// renameable reports whether a binding is data rather than structure.
// Function, class, and imported names keep their identity; everything a
// program assigns into is a candidate for placeholder abstraction.
func renameable(k scope.BindKind) bool {
	switch k {
	case scope.BindDef, scope.BindImport:
		return false
	}
	return true
}

func coveringSpan(nodes []*pyast.Node) pyast.Span {
	sp := nodes[0].Span
	last := nodes[len(nodes)-1].Span
	sp.EndLine = last.EndLine
	sp.EndCol = last.EndCol
	sp.EndByte = last.EndByte
	return sp
}

func spansOverlap(a, b pyast.Span) bool {
	return a.StartByte < b.EndByte && b.StartByte < a.EndByte
}
