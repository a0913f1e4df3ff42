// Package dupcode finds structurally duplicated fragments in one Python
// module. Candidates are carved at four granularities, normalized into
// placeholder token streams, grouped by hash, and refined: clusters whose
// occurrences differ in a single literal slot become loop-refactor
// suggestions, partially matching statement sequences are scored by
// longest common aligned subsequence.
package dupcode

import (
	"encoding/hex"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/mentorlint/mentor/pkg/pyast"
	"github.com/mentorlint/mentor/pkg/scope"
)

// Detect analyzes a module and returns its duplicate clusters in document
// order. The result is deterministic for a fixed input.
func Detect(mod *pyast.Node, scopes *scope.Tree, opts Options) []Cluster {
	opts = opts.sanitized()
	e := &extractor{groups: 1}
	e.suite(mod.Children)
	for _, c := range e.cands {
		normalize(scopes, c)
	}
	return cluster(e.cands, opts)
}

// loopBodyGroup is shared file-wide: loop bodies cluster across loops.
const loopBodyGroup = 0

type extractor struct {
	cands  []*candidate
	groups int
}

func (e *extractor) newGroup() int {
	g := e.groups
	e.groups++
	return g
}

func (e *extractor) add(g Granularity, group int, subject *pyast.Node, nodes []*pyast.Node) {
	if len(nodes) == 0 {
		return
	}
	e.cands = append(e.cands, &candidate{
		granularity: g,
		group:       group,
		subject:     subject,
		nodes:       nodes,
		span:        coveringSpan(nodes),
	})
}

// suite scans one statement list for sibling runs, then recurses into
// compound statements.
func (e *extractor) suite(stmts []*pyast.Node) {
	e.ifRuns(stmts)
	e.callRuns(stmts)
	for _, s := range stmts {
		e.stmt(s)
	}
}

// ifRuns carves each maximal run of consecutive if statements into one
// group of whole-statement candidates.
func (e *extractor) ifRuns(stmts []*pyast.Node) {
	i := 0
	for i < len(stmts) {
		if stmts[i].Kind != pyast.KindIf {
			i++
			continue
		}
		j := i
		for j < len(stmts) && stmts[j].Kind == pyast.KindIf {
			j++
		}
		if j-i >= 2 {
			group := e.newGroup()
			for k := i; k < j; k++ {
				e.add(IfSequence, group, nil, stmts[k:k+1])
			}
		}
		i = j
	}
}

// callRuns carves each maximal run of bare calls to one callee into a
// group; the candidate is the call expression, so the argument list is
// what gets normalized and compared.
func (e *extractor) callRuns(stmts []*pyast.Node) {
	i := 0
	for i < len(stmts) {
		call, key := callStmt(stmts[i])
		if call == nil {
			i++
			continue
		}
		j := i
		for j < len(stmts) {
			next, nextKey := callStmt(stmts[j])
			if next == nil || nextKey != key {
				break
			}
			j++
		}
		if j-i >= 2 {
			group := e.newGroup()
			for k := i; k < j; k++ {
				c, _ := callStmt(stmts[k])
				e.add(CallArgs, group, nil, []*pyast.Node{c})
			}
		}
		i = j
	}
}

// callStmt unwraps a bare call statement, returning the call node and the
// dotted callee path. Dynamic callees (subscripts, call results) are not
// comparable and return "".
func callStmt(s *pyast.Node) (*pyast.Node, string) {
	if s.Kind != pyast.KindExprStmt || len(s.Children) != 1 {
		return nil, ""
	}
	c := s.Children[0]
	if c.Kind != pyast.KindCall || c.Call == nil {
		return nil, ""
	}
	key := calleePath(c.Call.Func)
	if key == "" {
		return nil, ""
	}
	return c, key
}

func calleePath(n *pyast.Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case pyast.KindName:
		return n.Text
	case pyast.KindAttribute:
		if len(n.Children) > 0 {
			if base := calleePath(n.Children[0]); base != "" {
				return base + "." + n.Text
			}
		}
	}
	return ""
}

func (e *extractor) stmt(n *pyast.Node) {
	switch n.Kind {
	case pyast.KindIf:
		e.branches(n)
		e.suite(n.If.Then)
		for _, el := range n.If.Elifs {
			e.suite(el.Body)
		}
		e.suite(n.If.Else)
	case pyast.KindFor, pyast.KindWhile:
		e.add(LoopBody, loopBodyGroup, nil, n.Loop.Body)
		e.suite(n.Loop.Body)
		e.suite(n.Loop.Else)
	case pyast.KindWith:
		e.suite(n.With.Body)
	case pyast.KindTry:
		e.suite(n.Try.Body)
		for _, h := range n.Try.Handlers {
			e.suite(h.Body)
		}
		e.suite(n.Try.Else)
		e.suite(n.Try.Finally)
	case pyast.KindFunctionDef:
		e.suite(n.Fn.Body)
	case pyast.KindClassDef:
		e.suite(n.Class.Body)
	}
}

// branches carves the bodies of one if/elif/else chain into a group.
func (e *extractor) branches(n *pyast.Node) {
	bodies := [][]*pyast.Node{n.If.Then}
	for _, el := range n.If.Elifs {
		bodies = append(bodies, el.Body)
	}
	if len(n.If.Else) > 0 {
		bodies = append(bodies, n.If.Else)
	}
	if len(bodies) < 2 {
		return
	}
	group := e.newGroup()
	for _, b := range bodies {
		e.add(IfBranches, group, n, b)
	}
}

type simKey struct{ a, b int }

func cluster(cands []*candidate, opts Options) []Cluster {
	type partKey struct {
		g     Granularity
		group int
	}
	var order []partKey
	parts := make(map[partKey][]*candidate)
	for _, c := range cands {
		k := partKey{c.granularity, c.group}
		if _, ok := parts[k]; !ok {
			order = append(order, k)
		}
		parts[k] = append(parts[k], c)
	}

	var clusters []Cluster
	for _, k := range order {
		clusters = append(clusters, clusterPart(parts[k], opts)...)
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		a, b := clusters[i].Instances[0].Span, clusters[j].Instances[0].Span
		if a.StartByte != b.StartByte {
			return a.StartByte < b.StartByte
		}
		return clusters[i].Granularity < clusters[j].Granularity
	})
	return clusters
}

// clusterPart pairs the candidates of one group and merges matching pairs
// with union-find. Equal hashes score 1.0; unequal hashes fall back to
// aligned-subsequence similarity and must clear the threshold. Overlapping
// spans (a loop inside a loop) are never paired.
func clusterPart(members []*candidate, opts Options) []Cluster {
	if len(members) < 2 {
		return nil
	}

	parent := make([]int, len(members))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(x, y int) {
		px, py := find(x), find(y)
		if px == py {
			return
		}
		if py < px {
			px, py = py, px
		}
		parent[py] = px
	}

	sims := make(map[simKey]float64)
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			a, b := members[i], members[j]
			if spansOverlap(a.span, b.span) {
				continue
			}
			sim := 1.0
			if a.hash != b.hash {
				l := lcs(a.stmtHashes, b.stmtHashes)
				if l == 0 {
					continue
				}
				sim = 2 * float64(l) / float64(len(a.stmtHashes)+len(b.stmtHashes))
				if sim < opts.Threshold {
					continue
				}
			}
			sims[simKey{i, j}] = sim
			union(i, j)
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := range members {
		r := find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}
	sort.Ints(roots)

	var out []Cluster
	for _, r := range roots {
		idxs := groups[r]
		if len(idxs) < opts.MinGroupSize {
			continue
		}
		out = append(out, buildCluster(members, idxs, sims))
	}
	return out
}

func buildCluster(members []*candidate, idxs []int, sims map[simKey]float64) Cluster {
	first := members[idxs[0]]
	cl := Cluster{
		Granularity: first.granularity,
		Subject:     first.subject,
		GroupSize:   len(members),
	}

	exact := true
	var sum float64
	var count int
	for x := 0; x < len(idxs); x++ {
		for y := x + 1; y < len(idxs); y++ {
			if s, ok := sims[simKey{idxs[x], idxs[y]}]; ok {
				sum += s
				count++
			}
		}
	}
	for _, i := range idxs[1:] {
		if members[i].hash != first.hash {
			exact = false
			break
		}
	}
	cl.Similarity = 1.0
	if count > 0 {
		cl.Similarity = sum / float64(count)
	}

	fp := blake3.New()
	for _, i := range idxs {
		c := members[i]
		cl.Instances = append(cl.Instances, Instance{
			Nodes:      c.nodes,
			Span:       c.span,
			Hash:       c.hash,
			Statements: len(c.stmtHashes),
		})
		_, _ = fp.Write([]byte(c.fingerprint))
	}
	digest := fp.Sum(nil)
	cl.Fingerprint = hex.EncodeToString(digest[:8])

	if exact {
		sel := make([]*candidate, len(idxs))
		for i, x := range idxs {
			sel[i] = members[x]
		}
		cl.Identical, cl.Suggestion = refineExact(sel)
	}
	return cl
}

// lcs is the longest common subsequence length over statement hashes.
func lcs(a, b []uint64) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
		for j := range cur {
			cur[j] = 0
		}
	}
	return prev[len(b)]
}
