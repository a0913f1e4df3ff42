// Package dataflow is a generic fixed-point solver over control-flow
// graphs. Instances describe a join semilattice of numbered facts as
// roaring bitmaps, a merge operator, a per-block transfer function, and a
// direction; the solver computes the in and out set of every block with a
// worklist that terminates because fact sets only grow (union) or shrink
// (intersect) toward a bound.
package dataflow

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/mentorlint/mentor/pkg/cfg"
)

// Direction selects which way facts flow through the graph.
type Direction uint8

const (
	Forward Direction = iota
	Backward
)

// Merge selects the join operator: Union for may-analyses, Intersect for
// must-analyses.
type Merge uint8

const (
	Union Merge = iota
	Intersect
)

// Problem defines one dataflow instance. Implementations must be
// monotonic: growing the flow-in set never shrinks the transfer output.
type Problem interface {
	Direction() Direction
	Merge() Merge

	// Boundary is the flow-in set of the entry block (forward) or the
	// exit block (backward). The solver does not mutate it.
	Boundary() *roaring.Bitmap

	// Init seeds a block's flow-out set before iteration: empty for
	// union problems, the fact universe for intersect problems.
	Init(b *cfg.Block) *roaring.Bitmap

	// Transfer maps a block's flow-in set to its flow-out set. For
	// backward problems flow enters at the block's exit. The input
	// must not be retained or mutated.
	Transfer(b *cfg.Block, in *roaring.Bitmap) *roaring.Bitmap
}

// Result holds the fixed point, indexed by block ID. In is the fact set
// at block entry and Out at block exit for both directions.
type Result struct {
	In  []*roaring.Bitmap
	Out []*roaring.Bitmap
}

// Equal reports whether two results carry identical sets. Solving an
// unchanged graph twice must produce Equal results.
func (r *Result) Equal(o *Result) bool {
	if len(r.In) != len(o.In) || len(r.Out) != len(o.Out) {
		return false
	}
	for i := range r.In {
		if !r.In[i].Equals(o.In[i]) || !r.Out[i].Equals(o.Out[i]) {
			return false
		}
	}
	return true
}

// Solve runs the worklist to a fixed point. Every block is enqueued once
// up front; a block re-enqueues its successors (forward) or predecessors
// (backward) only when its transfer output changed. Blocks with no
// incoming flow, dead blocks included, keep the merge identity: the empty
// set.
func Solve(g *cfg.Graph, p Problem) *Result {
	n := len(g.Blocks)
	res := &Result{
		In:  make([]*roaring.Bitmap, n),
		Out: make([]*roaring.Bitmap, n),
	}
	forward := p.Direction() == Forward
	boundary := p.Boundary()

	for _, b := range g.Blocks {
		if forward {
			res.In[b.ID] = roaring.New()
			res.Out[b.ID] = p.Init(b)
		} else {
			res.In[b.ID] = p.Init(b)
			res.Out[b.ID] = roaring.New()
		}
	}

	queue := make([]*cfg.Block, 0, n)
	queued := make([]bool, n)
	push := func(b *cfg.Block) {
		if !queued[b.ID] {
			queued[b.ID] = true
			queue = append(queue, b)
		}
	}
	if forward {
		for _, b := range g.Blocks {
			push(b)
		}
	} else {
		for i := n - 1; i >= 0; i-- {
			push(g.Blocks[i])
		}
	}

	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		queued[b.ID] = false

		if forward {
			in := boundary
			if b != g.Entry {
				in = mergeFlow(p.Merge(), b.Preds, func(e cfg.Edge) *roaring.Bitmap {
					return res.Out[e.From.ID]
				})
			}
			res.In[b.ID] = in
			out := p.Transfer(b, in)
			if !out.Equals(res.Out[b.ID]) {
				res.Out[b.ID] = out
				for _, e := range b.Succs {
					push(e.To)
				}
			}
			continue
		}

		out := boundary
		if b != g.Exit {
			out = mergeFlow(p.Merge(), b.Succs, func(e cfg.Edge) *roaring.Bitmap {
				return res.In[e.To.ID]
			})
		}
		res.Out[b.ID] = out
		in := p.Transfer(b, out)
		if !in.Equals(res.In[b.ID]) {
			res.In[b.ID] = in
			for _, e := range b.Preds {
				push(e.From)
			}
		}
	}
	return res
}

func mergeFlow(m Merge, edges []cfg.Edge, setOf func(cfg.Edge) *roaring.Bitmap) *roaring.Bitmap {
	if len(edges) == 0 {
		return roaring.New()
	}
	out := setOf(edges[0]).Clone()
	for _, e := range edges[1:] {
		if m == Union {
			out.Or(setOf(e))
		} else {
			out.And(setOf(e))
		}
	}
	return out
}

// GenKill is the common transfer shape out = gen | (in &^ kill), with one
// gen and kill set per block ID. Nil entries mean empty.
type GenKill struct {
	Gen  []*roaring.Bitmap
	Kill []*roaring.Bitmap
}

// Apply computes the gen/kill transfer for a block.
func (gk GenKill) Apply(b *cfg.Block, in *roaring.Bitmap) *roaring.Bitmap {
	out := in.Clone()
	if b.ID < len(gk.Kill) && gk.Kill[b.ID] != nil {
		out.AndNot(gk.Kill[b.ID])
	}
	if b.ID < len(gk.Gen) && gk.Gen[b.ID] != nil {
		out.Or(gk.Gen[b.ID])
	}
	return out
}
