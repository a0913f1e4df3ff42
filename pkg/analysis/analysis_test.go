package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlint/mentor/pkg/pyast"
)

const sample = `
top = 1

def outer(a):
    inner = lambda v: v + a
    return inner(top)

class Box:
    def get(self):
        return top
`

func TestAnalyzeCollectsUnits(t *testing.T) {
	f, err := Analyze("sample.py", []byte(sample), DefaultOptions())
	require.NoError(t, err)

	var names []string
	for _, u := range f.Units {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"module", "outer", "<lambda>", "Box", "get"}, names)

	for _, u := range f.Units {
		require.NotNil(t, u.Graph, "unit %s", u.Name)
		require.NotNil(t, u.Flow, "unit %s", u.Name)
		assert.Same(t, u.Node, u.Graph.Unit)
		assert.Same(t, u, f.Unit(u.Node))
	}
}

func TestEnclosingUnit(t *testing.T) {
	f, err := Analyze("sample.py", []byte(sample), DefaultOptions())
	require.NoError(t, err)

	var returns []*pyast.Node
	pyast.Walk(f.Module, func(n *pyast.Node) bool {
		if n.Kind == pyast.KindReturn {
			returns = append(returns, n)
		}
		return true
	})
	require.Len(t, returns, 2)
	assert.Equal(t, "outer", f.EnclosingUnit(returns[0]).Name)
	assert.Equal(t, "get", f.EnclosingUnit(returns[1]).Name)
	assert.Equal(t, "module", f.EnclosingUnit(f.Module).Name)
}

func TestUnitNamed(t *testing.T) {
	f, err := Analyze("sample.py", []byte(sample), DefaultOptions())
	require.NoError(t, err)

	require.NotNil(t, f.UnitNamed("module"))
	require.NotNil(t, f.UnitNamed("outer"))
	assert.Nil(t, f.UnitNamed("missing"))
}

func TestAnalyzeRejectsMalformedSource(t *testing.T) {
	_, err := Analyze("bad.py", []byte("def f(:\n"), DefaultOptions())
	require.Error(t, err)

	var terr *pyast.TreeError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "bad.py", terr.Path)
}

func TestClustersAttached(t *testing.T) {
	f, err := Analyze("dup.py", []byte(`
if flag:
    x = 1
else:
    x = 1
`), DefaultOptions())
	require.NoError(t, err)

	require.Len(t, f.Clusters, 1)
	assert.True(t, f.Clusters[0].Identical)
}
