// Package cfg builds per-unit control-flow graphs over the adapted Python
// tree. A unit is a module, function, lambda, or class body; nested units
// get their own graphs. Construction is total: constructs the builder does
// not model precisely mark their block unsupported instead of failing.
package cfg

import (
	"fmt"

	"github.com/mentorlint/mentor/pkg/pyast"
)

// EdgeKind classifies a control-flow edge.
type EdgeKind uint8

const (
	EdgeFallthrough EdgeKind = iota
	EdgeBranchTrue
	EdgeBranchFalse
	EdgeLoopBack
	EdgeException
	EdgeBreak
	EdgeContinue
	EdgeReturn
)

var edgeNames = [...]string{
	EdgeFallthrough: "fallthrough",
	EdgeBranchTrue:  "true",
	EdgeBranchFalse: "false",
	EdgeLoopBack:    "loop-back",
	EdgeException:   "exception",
	EdgeBreak:       "break",
	EdgeContinue:    "continue",
	EdgeReturn:      "return",
}

func (k EdgeKind) String() string {
	if int(k) < len(edgeNames) {
		return edgeNames[k]
	}
	return fmt.Sprintf("edge(%d)", uint8(k))
}

// Edge is a directed edge between two blocks.
type Edge struct {
	From *Block
	To   *Block
	Kind EdgeKind
}

// Block is a straight-line statement sequence. Stmts holds statement nodes
// and, for blocks that close a conditional or loop header, the condition
// expression node. Dead marks blocks with no path from the entry block;
// this is a detectable property consumed by rules, not an error.
type Block struct {
	ID          int
	Stmts       []*pyast.Node
	Succs       []Edge
	Preds       []Edge
	Dead        bool
	Unsupported bool
}

// Terminal reports whether the block ends the unit (its only successor
// edges lead to the synthetic exit).
func (b *Block) Terminal() bool {
	if len(b.Succs) == 0 {
		return false
	}
	for _, e := range b.Succs {
		if e.Kind != EdgeReturn && e.Kind != EdgeException {
			return false
		}
	}
	return true
}

// Graph is the control-flow graph of one unit. It has exactly one
// synthetic entry block and one synthetic exit block; neither holds
// statements. Blocks are densely numbered: Blocks[i].ID == i.
type Graph struct {
	Unit   *pyast.Node
	Entry  *Block
	Exit   *Block
	Blocks []*Block

	stmtBlock map[uint32]*Block
}

// Name describes the unit for rendering and findings.
func (g *Graph) Name() string {
	switch g.Unit.Kind {
	case pyast.KindModule:
		return "module"
	case pyast.KindFunctionDef, pyast.KindLambda:
		return g.Unit.Fn.Name
	case pyast.KindClassDef:
		return g.Unit.Class.Name
	default:
		return g.Unit.Kind.String()
	}
}

// BlockOf returns the block holding the statement (or registered condition
// expression) that contains n, walking parent links as needed. Returns nil
// for nodes outside the unit's statement flow.
func (g *Graph) BlockOf(n *pyast.Node) *Block {
	for cur := n; cur != nil; cur = cur.Parent {
		if b, ok := g.stmtBlock[cur.ID]; ok {
			return b
		}
	}
	return nil
}

// DeadBlocks lists blocks unreachable from entry, in block order.
func (g *Graph) DeadBlocks() []*Block {
	var out []*Block
	for _, b := range g.Blocks {
		if b.Dead {
			out = append(out, b)
		}
	}
	return out
}
