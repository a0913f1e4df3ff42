// Package analysis assembles the per-file model diagnostic rules consume:
// the adapted syntax tree, the scope tree, one solved control-flow and
// def-use analysis per unit, and the file's duplicate clusters. A File is
// built once and only read afterwards, so the host driver can fan files
// out across workers without shared mutable state.
package analysis

import (
	"github.com/mentorlint/mentor/pkg/cfg"
	"github.com/mentorlint/mentor/pkg/defuse"
	"github.com/mentorlint/mentor/pkg/dupcode"
	"github.com/mentorlint/mentor/pkg/parser"
	"github.com/mentorlint/mentor/pkg/pyast"
	"github.com/mentorlint/mentor/pkg/scope"
)

// Unit is one analyzed code object: the module itself, a function, a
// lambda, or a class body.
type Unit struct {
	Node  *pyast.Node
	Name  string
	Graph *cfg.Graph
	Flow  *defuse.Analysis
}

// Options carries the analysis knobs the host driver exposes.
type Options struct {
	Duplicates dupcode.Options
}

func DefaultOptions() Options {
	return Options{Duplicates: dupcode.DefaultOptions()}
}

// File is the full analysis of one source file. Units appear in document
// order with the module unit first.
type File struct {
	Path     string
	Source   []byte
	Module   *pyast.Node
	Scopes   *scope.Tree
	Units    []*Unit
	Clusters []dupcode.Cluster

	byNode map[uint32]*Unit
}

// Analyze parses src and solves every per-unit analysis. Parse failures
// and malformed trees come back as errors (*pyast.TreeError for the
// latter); analysis itself is total.
func Analyze(path string, src []byte, opts Options) (*File, error) {
	p := parser.New()
	defer p.Close()
	res, err := p.Parse(src, path)
	if err != nil {
		return nil, err
	}
	mod, err := pyast.Build(res)
	if err != nil {
		return nil, err
	}

	f := &File{
		Path:   path,
		Source: src,
		Module: mod,
		Scopes: scope.Build(mod),
		byNode: make(map[uint32]*Unit),
	}
	pyast.Walk(mod, func(n *pyast.Node) bool {
		switch n.Kind {
		case pyast.KindModule, pyast.KindFunctionDef, pyast.KindLambda, pyast.KindClassDef:
			g := cfg.Build(n)
			u := &Unit{
				Node:  n,
				Name:  g.Name(),
				Graph: g,
				Flow:  defuse.Analyze(n, g, f.Scopes),
			}
			f.Units = append(f.Units, u)
			f.byNode[n.ID] = u
		}
		return true
	})
	f.Clusters = dupcode.Detect(mod, f.Scopes, opts.Duplicates)
	return f, nil
}

// Unit returns the unit a scope-introducing node owns, nil for other
// nodes.
func (f *File) Unit(n *pyast.Node) *Unit {
	return f.byNode[n.ID]
}

// EnclosingUnit returns the nearest unit containing n.
func (f *File) EnclosingUnit(n *pyast.Node) *Unit {
	for cur := n; cur != nil; cur = cur.Parent {
		if u, ok := f.byNode[cur.ID]; ok {
			return u
		}
	}
	return nil
}

// UnitNamed returns the first unit with the given name, nil when absent.
// The module unit is named "module".
func (f *File) UnitNamed(name string) *Unit {
	for _, u := range f.Units {
		if u.Name == name {
			return u
		}
	}
	return nil
}
