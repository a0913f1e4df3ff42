package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeSingleIteration(t *testing.T) {
	findings := runRule(t, SingleIterationLoop{}, `
for i in range(1):
    work(i)
`)

	require.Len(t, findings, 1)
	fd := findings[0]
	assert.Equal(t, SeverityWarning, fd.Severity)
	assert.Contains(t, fd.Message, "range(1)")
	assert.Contains(t, fd.Message, "exactly once")
	assert.Equal(t, "1", fd.Params["iterations"])
}

func TestEmptyRangeNeverIterates(t *testing.T) {
	findings := runRule(t, SingleIterationLoop{}, `
for i in range(5, 5):
    work(i)
`)

	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "never iterates")
	assert.Equal(t, "0", findings[0].Params["iterations"])
}

func TestSteppedRangeCountsElements(t *testing.T) {
	code := `
for i in range(9, 4, -2):
    work(i)
`
	assert.Empty(t, runRule(t, SingleIterationLoop{}, code))

	single := runRule(t, SingleIterationLoop{}, `
for i in range(5, 4, -2):
    work(i)
`)
	require.Len(t, single, 1)
	assert.Equal(t, "1", single[0].Params["iterations"])
}

func TestNegativeStartStopConstants(t *testing.T) {
	findings := runRule(t, SingleIterationLoop{}, `
for i in range(-1, 0):
    work(i)
`)

	require.Len(t, findings, 1)
	assert.Equal(t, "1", findings[0].Params["iterations"])
}

func TestWhileFalseNeverRuns(t *testing.T) {
	findings := runRule(t, SingleIterationLoop{}, `
while False:
    work()
`)

	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "never runs")
	assert.Equal(t, uint32(2), findings[0].Span.StartLine)
}

func TestWhileTrueImmediateBreak(t *testing.T) {
	findings := runRule(t, SingleIterationLoop{}, `
while True:
    break
`)

	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "runs once")
}

func TestWhileTrueLoopAccepted(t *testing.T) {
	findings := runRule(t, SingleIterationLoop{}, `
while True:
    line = read()
    if not line:
        break
`)

	assert.Empty(t, findings)
}

func TestShadowedRangeIgnored(t *testing.T) {
	findings := runRule(t, SingleIterationLoop{}, `
def f(range):
    for i in range(1):
        pass
`)

	assert.Empty(t, findings)
}

func TestDynamicBoundsIgnored(t *testing.T) {
	findings := runRule(t, SingleIterationLoop{}, `
def f(n):
    for i in range(n):
        pass
`)

	assert.Empty(t, findings)
}

func TestVariableConditionIgnored(t *testing.T) {
	findings := runRule(t, SingleIterationLoop{}, `
def f(flag):
    while flag:
        flag = step()
`)

	assert.Empty(t, findings)
}
