package cfg

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/mentorlint/mentor/pkg/pyast"
)

// Build constructs the control-flow graph for one unit. The unit must be
// a module, function definition, lambda, or class definition; any other
// node yields a single-block graph flagged unsupported. Construction never
// fails: constructs the builder does not model close their block with the
// unsupported flag set and flow continues after them.
func Build(unit *pyast.Node) *Graph {
	g := &Graph{Unit: unit, stmtBlock: make(map[uint32]*Block)}
	b := &builder{g: g}
	g.Entry = b.alloc()
	g.Exit = b.alloc()

	first := b.alloc()
	b.link(g.Entry, first, EdgeFallthrough)

	var end *Block
	switch unit.Kind {
	case pyast.KindModule:
		end = b.suite(unit.Children, first)
	case pyast.KindFunctionDef:
		end = b.suite(unit.Fn.Body, first)
	case pyast.KindLambda:
		// A lambda body is one expression standing in for the whole
		// unit; it gets a single statement slot.
		for _, e := range unit.Fn.Body {
			b.append(first, e)
		}
		end = first
	case pyast.KindClassDef:
		end = b.suite(unit.Class.Body, first)
	default:
		first.Unsupported = true
		end = first
	}
	if end != nil {
		b.link(end, g.Exit, EdgeFallthrough)
	}

	b.prune()
	b.renumber()
	b.markDead()
	return g
}

type loopFrame struct {
	header *Block
	after  *Block
}

type builder struct {
	g     *Graph
	loops []loopFrame
}

func (b *builder) alloc() *Block {
	blk := &Block{ID: len(b.g.Blocks)}
	b.g.Blocks = append(b.g.Blocks, blk)
	return blk
}

func (b *builder) link(from, to *Block, kind EdgeKind) {
	e := Edge{From: from, To: to, Kind: kind}
	from.Succs = append(from.Succs, e)
	to.Preds = append(to.Preds, e)
}

func (b *builder) append(blk *Block, n *pyast.Node) {
	blk.Stmts = append(blk.Stmts, n)
	b.g.stmtBlock[n.ID] = blk
}

// mark registers a node against a block without occupying a statement
// slot, so BlockOf resolves construct nodes whose pieces live elsewhere.
func (b *builder) mark(blk *Block, n *pyast.Node) {
	if _, ok := b.g.stmtBlock[n.ID]; !ok {
		b.g.stmtBlock[n.ID] = blk
	}
}

// suite threads stmts through cur and returns the block control falls out
// of, or nil when every path through the suite leaves it via a jump.
func (b *builder) suite(stmts []*pyast.Node, cur *Block) *Block {
	for _, s := range stmts {
		if cur == nil {
			// Statements after a terminal jump open a fresh block
			// with no predecessors; reachability marks it dead.
			cur = b.alloc()
		}
		cur = b.statement(cur, s)
	}
	return cur
}

func (b *builder) statement(cur *Block, n *pyast.Node) *Block {
	switch n.Kind {
	case pyast.KindIf:
		return b.ifStmt(cur, n)
	case pyast.KindWhile:
		return b.whileStmt(cur, n)
	case pyast.KindFor:
		return b.forStmt(cur, n)
	case pyast.KindTry:
		return b.tryStmt(cur, n)
	case pyast.KindWith:
		b.append(cur, n)
		return b.suite(n.With.Body, cur)
	case pyast.KindReturn:
		b.append(cur, n)
		b.link(cur, b.g.Exit, EdgeReturn)
		return nil
	case pyast.KindRaise:
		b.append(cur, n)
		b.link(cur, b.g.Exit, EdgeException)
		return nil
	case pyast.KindBreak:
		b.append(cur, n)
		if len(b.loops) == 0 {
			cur.Unsupported = true
			return b.splitAfter(cur)
		}
		b.link(cur, b.loops[len(b.loops)-1].after, EdgeBreak)
		return nil
	case pyast.KindContinue:
		b.append(cur, n)
		if len(b.loops) == 0 {
			cur.Unsupported = true
			return b.splitAfter(cur)
		}
		b.link(cur, b.loops[len(b.loops)-1].header, EdgeContinue)
		return nil
	case pyast.KindMatch, pyast.KindUnknown:
		b.append(cur, n)
		cur.Unsupported = true
		return b.splitAfter(cur)
	default:
		// Simple statements, including nested function and class
		// definitions, whose bodies belong to their own units.
		b.append(cur, n)
		return cur
	}
}

// splitAfter closes an unsupported block so the flag stays local to it.
func (b *builder) splitAfter(cur *Block) *Block {
	next := b.alloc()
	b.link(cur, next, EdgeFallthrough)
	return next
}

func (b *builder) ifStmt(cur *Block, n *pyast.Node) *Block {
	b.mark(cur, n)
	b.append(cur, n.If.Cond)

	var ends []*Block
	thenStart := b.alloc()
	b.link(cur, thenStart, EdgeBranchTrue)
	if end := b.suite(n.If.Then, thenStart); end != nil {
		ends = append(ends, end)
	}

	prevCond := cur
	for _, clause := range n.If.Elifs {
		condBlk := b.alloc()
		b.link(prevCond, condBlk, EdgeBranchFalse)
		b.append(condBlk, clause.Cond)

		bodyStart := b.alloc()
		b.link(condBlk, bodyStart, EdgeBranchTrue)
		if end := b.suite(clause.Body, bodyStart); end != nil {
			ends = append(ends, end)
		}
		prevCond = condBlk
	}

	if len(n.If.Else) > 0 {
		elseStart := b.alloc()
		b.link(prevCond, elseStart, EdgeBranchFalse)
		if end := b.suite(n.If.Else, elseStart); end != nil {
			ends = append(ends, end)
		}
		if len(ends) == 0 {
			// Every arm jumps; nothing rejoins.
			return nil
		}
		after := b.alloc()
		for _, e := range ends {
			b.link(e, after, EdgeFallthrough)
		}
		return after
	}

	after := b.alloc()
	b.link(prevCond, after, EdgeBranchFalse)
	for _, e := range ends {
		b.link(e, after, EdgeFallthrough)
	}
	return after
}

func (b *builder) whileStmt(cur *Block, n *pyast.Node) *Block {
	header := b.alloc()
	b.link(cur, header, EdgeFallthrough)
	b.mark(header, n)
	b.append(header, n.Loop.Cond)
	return b.loopBody(header, n)
}

func (b *builder) forStmt(cur *Block, n *pyast.Node) *Block {
	header := b.alloc()
	b.link(cur, header, EdgeFallthrough)
	// The for statement itself is the header's statement: it reads the
	// iterable and binds the target on every iteration.
	b.append(header, n)
	return b.loopBody(header, n)
}

// loopBody wires the shared loop shape: branch-true into the body,
// branch-false to the else suite or the code after the loop, a back-edge
// from the body tail, break to after (skipping else) and continue to the
// header via the loop stack.
func (b *builder) loopBody(header *Block, n *pyast.Node) *Block {
	bodyStart := b.alloc()
	b.link(header, bodyStart, EdgeBranchTrue)

	after := b.alloc()
	var elseStart *Block
	if len(n.Loop.Else) > 0 {
		elseStart = b.alloc()
		b.link(header, elseStart, EdgeBranchFalse)
	} else {
		b.link(header, after, EdgeBranchFalse)
	}

	b.loops = append(b.loops, loopFrame{header: header, after: after})
	bodyEnd := b.suite(n.Loop.Body, bodyStart)
	b.loops = b.loops[:len(b.loops)-1]
	if bodyEnd != nil {
		b.link(bodyEnd, header, EdgeLoopBack)
	}

	if elseStart != nil {
		if elseEnd := b.suite(n.Loop.Else, elseStart); elseEnd != nil {
			b.link(elseEnd, after, EdgeFallthrough)
		}
	}
	return after
}

func (b *builder) tryStmt(cur *Block, n *pyast.Node) *Block {
	b.mark(cur, n)

	constructStart := len(b.g.Blocks)
	bodyStart := b.alloc()
	b.link(cur, bodyStart, EdgeFallthrough)
	bodyEnd := b.suite(n.Try.Body, bodyStart)
	bodyRegion := b.g.Blocks[constructStart:len(b.g.Blocks):len(b.g.Blocks)]

	// Any block in the try body may raise, so each one gets an
	// exception edge to every handler entry.
	handlerStarts := make([]*Block, len(n.Try.Handlers))
	for i, h := range n.Try.Handlers {
		hs := b.alloc()
		b.append(hs, h.Clause)
		handlerStarts[i] = hs
		for _, blk := range bodyRegion {
			b.link(blk, hs, EdgeException)
		}
	}

	var ends []*Block
	if len(n.Try.Else) > 0 {
		if bodyEnd != nil {
			elseStart := b.alloc()
			b.link(bodyEnd, elseStart, EdgeFallthrough)
			if end := b.suite(n.Try.Else, elseStart); end != nil {
				ends = append(ends, end)
			}
		}
	} else if bodyEnd != nil {
		ends = append(ends, bodyEnd)
	}

	for i, h := range n.Try.Handlers {
		if end := b.suite(h.Body, handlerStarts[i]); end != nil {
			ends = append(ends, end)
		}
	}

	if len(n.Try.Finally) == 0 {
		if len(ends) == 0 {
			return nil
		}
		after := b.alloc()
		for _, e := range ends {
			b.link(e, after, EdgeFallthrough)
		}
		return after
	}

	// The finally suite runs on every path: fallthrough edges from the
	// normal ends, exception edges from every block the construct built
	// so uncaught or re-raised exceptions still pass through it. A block
	// can carry both kinds when it may complete or raise.
	constructRegion := b.g.Blocks[constructStart:len(b.g.Blocks):len(b.g.Blocks)]
	finStart := b.alloc()
	for _, e := range ends {
		b.link(e, finStart, EdgeFallthrough)
	}
	for _, blk := range constructRegion {
		b.link(blk, finStart, EdgeException)
	}
	finEnd := b.suite(n.Try.Finally, finStart)
	if finEnd == nil {
		return nil
	}
	after := b.alloc()
	b.link(finEnd, after, EdgeFallthrough)
	// An exception that entered finally uncaught keeps propagating.
	b.link(finEnd, b.g.Exit, EdgeException)
	return after
}

// prune drops blocks that ended up empty with no predecessors. These are
// merge points whose every feeding arm jumped elsewhere; keeping them
// would report dead blocks with no statements to point at.
func (b *builder) prune() {
	dropped := make(map[*Block]bool)
	for {
		changed := false
		for _, blk := range b.g.Blocks {
			if dropped[blk] || blk == b.g.Entry || blk == b.g.Exit {
				continue
			}
			if len(blk.Stmts) == 0 && len(blk.Preds) == 0 {
				dropped[blk] = true
				changed = true
				for _, e := range blk.Succs {
					e.To.Preds = removeEdgesFrom(e.To.Preds, blk)
				}
				blk.Succs = nil
			}
		}
		if !changed {
			break
		}
	}
	if len(dropped) == 0 {
		return
	}
	kept := b.g.Blocks[:0]
	for _, blk := range b.g.Blocks {
		if !dropped[blk] {
			kept = append(kept, blk)
		}
	}
	b.g.Blocks = kept
}

func removeEdgesFrom(edges []Edge, from *Block) []Edge {
	out := edges[:0]
	for _, e := range edges {
		if e.From != from {
			out = append(out, e)
		}
	}
	return out
}

func (b *builder) renumber() {
	for i, blk := range b.g.Blocks {
		blk.ID = i
	}
}

// markDead flags every block with no path from entry. Dead blocks stay in
// the graph so rules can point at their statements.
func (b *builder) markDead() {
	reachable := roaring.New()
	queue := []*Block{b.g.Entry}
	reachable.Add(uint32(b.g.Entry.ID))
	for len(queue) > 0 {
		blk := queue[0]
		queue = queue[1:]
		for _, e := range blk.Succs {
			id := uint32(e.To.ID)
			if reachable.Contains(id) {
				continue
			}
			reachable.Add(id)
			queue = append(queue, e.To)
		}
	}
	for _, blk := range b.g.Blocks {
		blk.Dead = !reachable.Contains(uint32(blk.ID))
	}
}
