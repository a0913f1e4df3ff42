package defuse

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/mentorlint/mentor/pkg/cfg"
	"github.com/mentorlint/mentor/pkg/dataflow"
	"github.com/mentorlint/mentor/pkg/pyast"
	"github.com/mentorlint/mentor/pkg/scope"
)

// Analysis holds the def-use information of one unit. Events are ordered
// by block ID and evaluation order within each block; Defs and Vars are
// indexed by the IDs the dataflow facts use.
type Analysis struct {
	Unit   *pyast.Node
	Graph  *cfg.Graph
	Scopes *scope.Tree
	Scope  *scope.Scope

	Events   []*Event
	Defs     []*Event
	Vars     []*scope.Binding
	Reaching *dataflow.Result

	byBlock [][]*Event
	varIDs  map[*scope.Binding]int
	defsOf  []*roaring.Bitmap
}

// Analyze extracts variable events from the unit's blocks, solves reaching
// definitions, and links every read to the definitions that reach it.
func Analyze(unit *pyast.Node, g *cfg.Graph, scopes *scope.Tree) *Analysis {
	a := &Analysis{
		Unit:    unit,
		Graph:   g,
		Scopes:  scopes,
		Scope:   scopes.UnitScope(unit),
		byBlock: make([][]*Event, len(g.Blocks)),
		varIDs:  make(map[*scope.Binding]int),
	}
	ex := &extractor{a: a, seen: make(map[*scope.Binding]bool)}

	// Parameters bind at unit entry, before any statement runs.
	if unit.Kind == pyast.KindFunctionDef || unit.Kind == pyast.KindLambda {
		ex.block = g.Entry
		for i := range unit.Fn.Params {
			p := &unit.Fn.Params[i]
			b := a.Scope.Binding(p.Name)
			if b == nil {
				continue
			}
			ex.seen[b] = true
			node := p.Node
			if node == nil {
				node = unit
			}
			ex.emit(Assign, p.Name, node, b)
		}
	}

	for _, blk := range g.Blocks {
		ex.block = blk
		for _, s := range blk.Stmts {
			ex.stmt(s)
		}
	}

	a.number()
	a.Reaching = dataflow.Solve(g, &reachingProblem{gk: a.reachingGenKill()})
	a.chain()
	return a
}

func (a *Analysis) number() {
	for _, ev := range a.Events {
		if ev.Binding == nil {
			continue
		}
		id, ok := a.varIDs[ev.Binding]
		if !ok {
			id = len(a.Vars)
			a.varIDs[ev.Binding] = id
			a.Vars = append(a.Vars, ev.Binding)
		}
		ev.varID = id
	}
	a.defsOf = make([]*roaring.Bitmap, len(a.Vars))
	for i := range a.defsOf {
		a.defsOf[i] = roaring.New()
	}
	for _, ev := range a.Events {
		if ev.IsWrite() && ev.Binding != nil {
			ev.defID = len(a.Defs)
			a.Defs = append(a.Defs, ev)
			a.defsOf[ev.varID].Add(uint32(ev.defID))
		}
	}
}

// reachingGenKill folds each block's events into gen and kill sets over
// definition IDs. A full write kills every definition of its variable; a
// modify generates without killing; a delete only kills.
func (a *Analysis) reachingGenKill() dataflow.GenKill {
	gen := make([]*roaring.Bitmap, len(a.byBlock))
	kill := make([]*roaring.Bitmap, len(a.byBlock))
	for id, events := range a.byBlock {
		g, k := roaring.New(), roaring.New()
		for _, ev := range events {
			if ev.Binding == nil {
				continue
			}
			defs := a.defsOf[ev.varID]
			switch ev.Kind {
			case Assign, Reassign:
				k.Or(defs)
				g.AndNot(defs)
				g.Add(uint32(ev.defID))
			case Modify:
				g.Add(uint32(ev.defID))
			case Delete:
				k.Or(defs)
				g.AndNot(defs)
			}
		}
		gen[id], kill[id] = g, k
	}
	return dataflow.GenKill{Gen: gen, Kill: kill}
}

type reachingProblem struct {
	gk dataflow.GenKill
}

func (*reachingProblem) Direction() dataflow.Direction { return dataflow.Forward }
func (*reachingProblem) Merge() dataflow.Merge         { return dataflow.Union }
func (*reachingProblem) Boundary() *roaring.Bitmap     { return roaring.New() }
func (*reachingProblem) Init(*cfg.Block) *roaring.Bitmap {
	return roaring.New()
}

func (p *reachingProblem) Transfer(b *cfg.Block, in *roaring.Bitmap) *roaring.Bitmap {
	return p.gk.Apply(b, in)
}

// chain replays each block's events against the solved in set, pairing
// reads with the definitions that reach them.
func (a *Analysis) chain() {
	for _, blk := range a.Graph.Blocks {
		running := a.Reaching.In[blk.ID].Clone()
		for _, ev := range a.byBlock[blk.ID] {
			if ev.Binding == nil {
				continue
			}
			defs := a.defsOf[ev.varID]
			switch ev.Kind {
			case Read:
				reach := roaring.And(running, defs)
				it := reach.Iterator()
				for it.HasNext() {
					d := a.Defs[it.Next()]
					ev.Defs = append(ev.Defs, d)
					d.Uses = append(d.Uses, ev)
				}
			case Assign, Reassign:
				running.AndNot(defs)
				running.Add(uint32(ev.defID))
			case Modify:
				running.Add(uint32(ev.defID))
			case Delete:
				running.AndNot(defs)
			}
		}
	}
}

type livenessProblem struct {
	gk dataflow.GenKill
}

func (*livenessProblem) Direction() dataflow.Direction   { return dataflow.Backward }
func (*livenessProblem) Merge() dataflow.Merge           { return dataflow.Union }
func (*livenessProblem) Boundary() *roaring.Bitmap       { return roaring.New() }
func (*livenessProblem) Init(*cfg.Block) *roaring.Bitmap { return roaring.New() }

func (p *livenessProblem) Transfer(b *cfg.Block, in *roaring.Bitmap) *roaring.Bitmap {
	return p.gk.Apply(b, in)
}

// Liveness solves backward liveness over variable IDs: a variable is live
// where some path still reads it before the next full write. Index the
// result sets with Vars.
func (a *Analysis) Liveness() *dataflow.Result {
	gen := make([]*roaring.Bitmap, len(a.byBlock))
	kill := make([]*roaring.Bitmap, len(a.byBlock))
	for id, events := range a.byBlock {
		g, k := roaring.New(), roaring.New()
		written := roaring.New()
		for _, ev := range events {
			if ev.Binding == nil {
				continue
			}
			v := uint32(ev.varID)
			switch ev.Kind {
			case Read, Modify:
				if !written.Contains(v) {
					g.Add(v)
				}
			case Assign, Reassign, Delete:
				written.Add(v)
				k.Add(v)
			}
		}
		gen[id], kill[id] = g, k
	}
	return dataflow.Solve(a.Graph, &livenessProblem{gk: dataflow.GenKill{Gen: gen, Kill: kill}})
}

// BlockEvents lists the block's events in evaluation order.
func (a *Analysis) BlockEvents(b *cfg.Block) []*Event {
	if b.ID >= len(a.byBlock) {
		return nil
	}
	return a.byBlock[b.ID]
}

// UnassignedUses returns reads of the unit's own variables that no
// definition reaches: potential use before assignment. Reads in dead or
// unsupported blocks are excluded, as are free variables owned by outer
// scopes, whose definitions live in other units.
func (a *Analysis) UnassignedUses() []*Event {
	var out []*Event
	for _, ev := range a.Events {
		if ev.Kind != Read || ev.Binding == nil || len(ev.Defs) > 0 {
			continue
		}
		if ev.Binding.Scope != a.Scope {
			continue
		}
		if ev.Block.Dead || ev.Block.Unsupported {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// UnknownUses returns reads whose origin is unknowable because resolution
// crossed a dynamic scope.
func (a *Analysis) UnknownUses() []*Event {
	var out []*Event
	for _, ev := range a.Events {
		if ev.Kind == Read && ev.Binding == nil {
			out = append(out, ev)
		}
	}
	return out
}

// DeadWrites returns full writes no read ever reaches. Writes in dead
// blocks are excluded; unreachable code is reported on its own.
func (a *Analysis) DeadWrites() []*Event {
	var out []*Event
	for _, d := range a.Defs {
		if d.Kind == Modify || len(d.Uses) > 0 || d.Block.Dead {
			continue
		}
		out = append(out, d)
	}
	return out
}

// OuterWrites returns rebindings of variables owned by an enclosing
// scope: the effect of global and nonlocal declarations. Comprehension
// scopes nested in the unit still count as the unit's own.
func (a *Analysis) OuterWrites() []*Event {
	var out []*Event
	for _, d := range a.Defs {
		if d.Kind == Modify {
			continue
		}
		if !a.ownScope(d.Binding.Scope) {
			out = append(out, d)
		}
	}
	return out
}

func (a *Analysis) ownScope(s *scope.Scope) bool {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur == a.Scope {
			return true
		}
		if cur.Kind != scope.Comprehension {
			return false
		}
	}
	return false
}
