package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalRebindReported(t *testing.T) {
	findings := runRule(t, GlobalVariables{}, `
counter = 0
def bump():
    global counter
    counter = counter + 1
`)

	require.Len(t, findings, 1)
	fd := findings[0]
	assert.Equal(t, SeverityWarning, fd.Severity)
	assert.Equal(t, uint32(5), fd.Span.StartLine)
	assert.Equal(t, "counter", fd.Params["variable"])
	assert.Equal(t, "bump", fd.Params["unit"])
}

func TestLocalShadowIsClean(t *testing.T) {
	findings := runRule(t, GlobalVariables{}, `
counter = 0
def calc():
    counter = 5
    return counter
`)

	assert.Empty(t, findings)
}

func TestModuleAssignIsClean(t *testing.T) {
	findings := runRule(t, GlobalVariables{}, `
counter = 0
counter = counter + 1
`)

	assert.Empty(t, findings)
}

func TestNonlocalWriteNotReported(t *testing.T) {
	findings := runRule(t, GlobalVariables{}, `
def outer():
    count = 0
    def inc():
        nonlocal count
        count = count + 1
    return inc
`)

	assert.Empty(t, findings)
}

func TestGlobalReadIsClean(t *testing.T) {
	findings := runRule(t, GlobalVariables{}, `
limit = 10
def within(n):
    return n < limit
`)

	assert.Empty(t, findings)
}
