package dataflow

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlint/mentor/pkg/cfg"
	"github.com/mentorlint/mentor/pkg/parser"
	"github.com/mentorlint/mentor/pkg/pyast"
)

func moduleGraph(t *testing.T, code string) *cfg.Graph {
	t.Helper()
	p := parser.New()
	defer p.Close()
	res, err := p.Parse([]byte(code), "test.py")
	require.NoError(t, err)
	mod, err := pyast.Build(res)
	require.NoError(t, err)
	return cfg.Build(mod)
}

func blockWithStmt(g *cfg.Graph, kind pyast.Kind, line uint32) *cfg.Block {
	for _, b := range g.Blocks {
		for _, s := range b.Stmts {
			if s.Kind == kind && s.Span.StartLine == line {
				return b
			}
		}
	}
	return nil
}

// blockFacts numbers facts by block ID: every block with statements
// generates its own ID. It doubles as a union and intersect problem.
type blockFacts struct {
	dir      Direction
	merge    Merge
	gk       GenKill
	universe *roaring.Bitmap
}

func newBlockFacts(g *cfg.Graph, dir Direction, merge Merge) *blockFacts {
	p := &blockFacts{
		dir:      dir,
		merge:    merge,
		universe: roaring.New(),
		gk:       GenKill{Gen: make([]*roaring.Bitmap, len(g.Blocks)), Kill: make([]*roaring.Bitmap, len(g.Blocks))},
	}
	for _, b := range g.Blocks {
		p.universe.Add(uint32(b.ID))
		if len(b.Stmts) > 0 {
			gen := roaring.New()
			gen.Add(uint32(b.ID))
			p.gk.Gen[b.ID] = gen
		}
	}
	return p
}

func (p *blockFacts) Direction() Direction { return p.dir }
func (p *blockFacts) Merge() Merge         { return p.merge }

func (p *blockFacts) Boundary() *roaring.Bitmap { return roaring.New() }

func (p *blockFacts) Init(*cfg.Block) *roaring.Bitmap {
	if p.merge == Intersect {
		return p.universe.Clone()
	}
	return roaring.New()
}

func (p *blockFacts) Transfer(b *cfg.Block, in *roaring.Bitmap) *roaring.Bitmap {
	return p.gk.Apply(b, in)
}

const branchCode = `
if a:
    x = 1
else:
    x = 2
y = 3
`

func TestForwardUnionMergesBothArms(t *testing.T) {
	g := moduleGraph(t, branchCode)
	res := Solve(g, newBlockFacts(g, Forward, Union))

	cond := blockWithStmt(g, pyast.KindName, 2)
	thenArm := blockWithStmt(g, pyast.KindAssign, 3)
	elseArm := blockWithStmt(g, pyast.KindAssign, 5)
	join := blockWithStmt(g, pyast.KindAssign, 6)
	require.NotNil(t, cond)
	require.NotNil(t, thenArm)
	require.NotNil(t, elseArm)
	require.NotNil(t, join)

	in := res.In[join.ID]
	assert.True(t, in.Contains(uint32(thenArm.ID)))
	assert.True(t, in.Contains(uint32(elseArm.ID)))
	assert.True(t, in.Contains(uint32(cond.ID)))
	assert.True(t, res.Out[join.ID].Contains(uint32(join.ID)))
}

func TestForwardIntersectKeepsOnlyCommonFacts(t *testing.T) {
	g := moduleGraph(t, branchCode)
	res := Solve(g, newBlockFacts(g, Forward, Intersect))

	cond := blockWithStmt(g, pyast.KindName, 2)
	thenArm := blockWithStmt(g, pyast.KindAssign, 3)
	elseArm := blockWithStmt(g, pyast.KindAssign, 5)
	join := blockWithStmt(g, pyast.KindAssign, 6)

	in := res.In[join.ID]
	assert.True(t, in.Contains(uint32(cond.ID)), "fact on every path survives intersect")
	assert.False(t, in.Contains(uint32(thenArm.ID)), "one-sided fact must not survive intersect")
	assert.False(t, in.Contains(uint32(elseArm.ID)))
}

func TestBackwardUnionFlowsToEntry(t *testing.T) {
	g := moduleGraph(t, branchCode)
	res := Solve(g, newBlockFacts(g, Backward, Union))

	cond := blockWithStmt(g, pyast.KindName, 2)
	join := blockWithStmt(g, pyast.KindAssign, 6)
	require.NotNil(t, cond)
	require.NotNil(t, join)

	// The join block's fact is visible backward through both arms.
	assert.True(t, res.Out[cond.ID].Contains(uint32(join.ID)))
	assert.True(t, res.In[g.Entry.ID].Contains(uint32(join.ID)))
}

func TestKillStopsFact(t *testing.T) {
	g := moduleGraph(t, "a = 1\nb = 2\n")
	p := newBlockFacts(g, Forward, Union)

	body := blockWithStmt(g, pyast.KindAssign, 1)
	require.NotNil(t, body)
	// A block killing its own gen still generates: gen wins after kill.
	kill := roaring.New()
	kill.Add(uint32(body.ID))
	p.gk.Kill[body.ID] = kill

	res := Solve(g, p)
	assert.True(t, res.Out[body.ID].Contains(uint32(body.ID)))
	assert.True(t, res.In[g.Exit.ID].Contains(uint32(body.ID)))
}

func TestDeadBlockGetsNoFlow(t *testing.T) {
	g := moduleGraph(t, `
while done:
    break
    x = 1
`)
	var dead *cfg.Block
	for _, b := range g.Blocks {
		if b.Dead {
			dead = b
		}
	}
	require.NotNil(t, dead)

	res := Solve(g, newBlockFacts(g, Forward, Union))
	assert.True(t, res.In[dead.ID].IsEmpty())
}

func TestSolveIsIdempotent(t *testing.T) {
	g := moduleGraph(t, `
for i in items:
    if i:
        continue
    total = total + i
else:
    total = 0
print(total)
`)
	for _, merge := range []Merge{Union, Intersect} {
		for _, dir := range []Direction{Forward, Backward} {
			p := newBlockFacts(g, dir, merge)
			first := Solve(g, p)
			second := Solve(g, p)
			assert.True(t, first.Equal(second), "direction %d merge %d", dir, merge)
		}
	}
}

func TestLoopReachesFixedPoint(t *testing.T) {
	g := moduleGraph(t, `
x = 0
while x < 10:
    x = x + 1
done = x
`)
	res := Solve(g, newBlockFacts(g, Forward, Union))

	init := blockWithStmt(g, pyast.KindAssign, 2)
	body := blockWithStmt(g, pyast.KindAssign, 4)
	after := blockWithStmt(g, pyast.KindAssign, 5)
	require.NotNil(t, init)
	require.NotNil(t, body)
	require.NotNil(t, after)

	// Facts from before the loop and from the body both reach the code
	// after it, whether the body ran zero or many times.
	assert.True(t, res.In[after.ID].Contains(uint32(init.ID)))
	assert.True(t, res.In[after.ID].Contains(uint32(body.ID)))
	// The loop body sees its own fact again around the back-edge.
	assert.True(t, res.In[body.ID].Contains(uint32(body.ID)))
}
