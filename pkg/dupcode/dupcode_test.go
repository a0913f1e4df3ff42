package dupcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlint/mentor/pkg/parser"
	"github.com/mentorlint/mentor/pkg/pyast"
	"github.com/mentorlint/mentor/pkg/scope"
)

func parse(t *testing.T, code string) (*pyast.Node, *scope.Tree) {
	t.Helper()
	p := parser.New()
	defer p.Close()
	res, err := p.Parse([]byte(code), "test.py")
	require.NoError(t, err)
	mod, err := pyast.Build(res)
	require.NoError(t, err)
	return mod, scope.Build(mod)
}

func detect(t *testing.T, code string, opts Options) []Cluster {
	t.Helper()
	mod, scopes := parse(t, code)
	return Detect(mod, scopes, opts)
}

func TestIdenticalBranches(t *testing.T) {
	clusters := detect(t, `
if flag:
    x = 1
else:
    x = 1
`, DefaultOptions())

	require.Len(t, clusters, 1)
	cl := clusters[0]
	assert.Equal(t, IfBranches, cl.Granularity)
	require.Len(t, cl.Instances, 2)
	assert.Equal(t, 1.0, cl.Similarity)
	assert.True(t, cl.Identical)
	assert.Nil(t, cl.Suggestion)
	assert.Equal(t, 2, cl.GroupSize)
	require.NotNil(t, cl.Subject)
	assert.Equal(t, pyast.KindIf, cl.Subject.Kind)
	assert.Len(t, cl.Fingerprint, 16)
}

func TestElifChainAllIdentical(t *testing.T) {
	clusters := detect(t, `
if a == 1:
    x = 1
elif a == 2:
    x = 1
else:
    x = 1
`, DefaultOptions())

	require.Len(t, clusters, 1)
	cl := clusters[0]
	assert.Equal(t, IfBranches, cl.Granularity)
	assert.Len(t, cl.Instances, 3)
	assert.Equal(t, 3, cl.GroupSize)
	assert.True(t, cl.Identical)
}

func TestSameShapeDifferentLiteralsNotIdentical(t *testing.T) {
	clusters := detect(t, `
if flag:
    x = 1
else:
    x = 2
`, DefaultOptions())

	require.Len(t, clusters, 1)
	cl := clusters[0]
	assert.Equal(t, 1.0, cl.Similarity)
	assert.False(t, cl.Identical)
	assert.Nil(t, cl.Suggestion)
}

func TestCallRunSuggestsRange(t *testing.T) {
	clusters := detect(t, `
x = 0
f(x, 1)
f(x, 2)
f(x, 3)
f(x, 4)
f(x, 5)
`, DefaultOptions())

	require.Len(t, clusters, 1)
	cl := clusters[0]
	assert.Equal(t, CallArgs, cl.Granularity)
	assert.Len(t, cl.Instances, 5)
	assert.Equal(t, 1.0, cl.Similarity)
	assert.False(t, cl.Identical)

	require.NotNil(t, cl.Suggestion)
	assert.Equal(t, SuggestRange, cl.Suggestion.Kind)
	assert.Equal(t, "range(1, 6)", cl.Suggestion.Iterable)
	assert.Equal(t, int64(1), cl.Suggestion.Start)
	assert.Equal(t, int64(6), cl.Suggestion.Stop)
	assert.Equal(t, int64(1), cl.Suggestion.Step)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, cl.Suggestion.Values)
}

func TestDescendingProgression(t *testing.T) {
	clusters := detect(t, `
g(9)
g(7)
g(5)
`, DefaultOptions())

	require.Len(t, clusters, 1)
	require.NotNil(t, clusters[0].Suggestion)
	assert.Equal(t, SuggestRange, clusters[0].Suggestion.Kind)
	assert.Equal(t, "range(9, 4, -2)", clusters[0].Suggestion.Iterable)
}

func TestZeroBasedRangeDropsStart(t *testing.T) {
	clusters := detect(t, `
g(0)
g(1)
g(2)
`, DefaultOptions())

	require.Len(t, clusters, 1)
	require.NotNil(t, clusters[0].Suggestion)
	assert.Equal(t, "range(3)", clusters[0].Suggestion.Iterable)
}

func TestCollectionSuggestion(t *testing.T) {
	clusters := detect(t, `
log("alpha")
log("beta")
log("gamma")
`, DefaultOptions())

	require.Len(t, clusters, 1)
	cl := clusters[0]
	require.NotNil(t, cl.Suggestion)
	assert.Equal(t, SuggestCollection, cl.Suggestion.Kind)
	assert.Equal(t, `["alpha", "beta", "gamma"]`, cl.Suggestion.Iterable)
}

func TestRepeatedValuesGetNoSuggestion(t *testing.T) {
	clusters := detect(t, `
log("a")
log("b")
log("a")
`, DefaultOptions())

	require.Len(t, clusters, 1)
	assert.Equal(t, 1.0, clusters[0].Similarity)
	assert.False(t, clusters[0].Identical)
	assert.Nil(t, clusters[0].Suggestion)
}

func TestShortRunTooSmallForLoop(t *testing.T) {
	clusters := detect(t, `
x = 0
f(x, 1)
f(x, 2)
`, DefaultOptions())

	require.Len(t, clusters, 1)
	assert.Equal(t, CallArgs, clusters[0].Granularity)
	assert.Nil(t, clusters[0].Suggestion)
}

func TestAttributeCalleeRuns(t *testing.T) {
	clusters := detect(t, `
obj.save(1)
obj.save(2)
obj.save(3)
`, DefaultOptions())

	require.Len(t, clusters, 1)
	require.NotNil(t, clusters[0].Suggestion)
	assert.Equal(t, "range(1, 4)", clusters[0].Suggestion.Iterable)
}

func TestDifferentCalleesBreakRuns(t *testing.T) {
	clusters := detect(t, `
f(1)
g(2)
f(3)
`, DefaultOptions())

	assert.Empty(t, clusters)
}

func TestLoopBodiesClusterUnderRenaming(t *testing.T) {
	clusters := detect(t, `
total = 0
for i in items:
    total += i
    print(i)
for j in items:
    total += j
    print(j)
`, DefaultOptions())

	require.Len(t, clusters, 1)
	cl := clusters[0]
	assert.Equal(t, LoopBody, cl.Granularity)
	require.Len(t, cl.Instances, 2)
	assert.Equal(t, 1.0, cl.Similarity)
	assert.False(t, cl.Identical)
	assert.Equal(t, 2, cl.Instances[0].Statements)
	assert.Less(t, cl.Instances[0].Span.StartLine, cl.Instances[1].Span.StartLine)
}

func TestAugmentedOperatorsDistinguished(t *testing.T) {
	clusters := detect(t, `
total = 0
for i in items:
    total += i
for j in items:
    total -= j
`, DefaultOptions())

	assert.Empty(t, clusters)
}

func TestNestedLoopBodiesNotPaired(t *testing.T) {
	clusters := detect(t, `
x = 0
for i in items:
    x = f(x)
    for k in items:
        x = f(x)
        x = g(x)
    x = g(x)
`, DefaultOptions())

	assert.Empty(t, clusters)
}

func TestPartialSimilarityAtThreshold(t *testing.T) {
	clusters := detect(t, `
x = 0
for i in items:
    x = f(x)
    x = g(x)
    x = h(x)
    x = p(x)
    log(x)
for j in items:
    x = f(x)
    x = g(x)
    x = h(x)
    x = p(x)
    save(x)
`, DefaultOptions())

	require.Len(t, clusters, 1)
	cl := clusters[0]
	assert.Equal(t, LoopBody, cl.Granularity)
	assert.InDelta(t, 0.8, cl.Similarity, 1e-9)
	assert.False(t, cl.Identical)
	assert.Nil(t, cl.Suggestion)
}

func TestThresholdControlsPartialClusters(t *testing.T) {
	code := `
x = 0
for i in items:
    x = f(x)
    emit(x)
    x = x + 1
for j in items:
    x = f(x)
    store(x)
    x = x - 1
`
	assert.Empty(t, detect(t, code, DefaultOptions()))

	clusters := detect(t, code, Options{Threshold: 0.3, MinGroupSize: 2})
	require.Len(t, clusters, 1)
	assert.InDelta(t, 1.0/3.0, clusters[0].Similarity, 1e-9)
}

func TestConsecutiveIfsCluster(t *testing.T) {
	clusters := detect(t, `
a = read()
b = read()
if a:
    handle(a)
if b:
    handle(b)
`, DefaultOptions())

	require.Len(t, clusters, 1)
	cl := clusters[0]
	assert.Equal(t, IfSequence, cl.Granularity)
	require.Len(t, cl.Instances, 2)
	assert.Equal(t, 1.0, cl.Similarity)
	assert.False(t, cl.Identical)
}

func TestFunctionBodiesScanned(t *testing.T) {
	clusters := detect(t, `
def setup(a, b):
    if a:
        b = 1
    else:
        b = 1
`, DefaultOptions())

	require.Len(t, clusters, 1)
	assert.Equal(t, IfBranches, clusters[0].Granularity)
	assert.True(t, clusters[0].Identical)
}

func TestMixedGranularitiesDeterministic(t *testing.T) {
	mod, scopes := parse(t, `
x = 0
if x:
    x = 1
else:
    x = 1
f(x, 1)
f(x, 2)
f(x, 3)
`)

	first := Detect(mod, scopes, DefaultOptions())
	second := Detect(mod, scopes, DefaultOptions())
	require.Equal(t, first, second)

	require.Len(t, first, 2)
	assert.Equal(t, IfBranches, first[0].Granularity)
	assert.Equal(t, CallArgs, first[1].Granularity)
	require.NotNil(t, first[1].Suggestion)
	assert.Equal(t, "range(1, 4)", first[1].Suggestion.Iterable)
}
