// Package scope builds the lexical scope tree of a Python module and
// resolves names to their binding scope. Resolution walks outward from
// the use site, skipping class scopes except for uses directly in the
// class body, the way closures capture in the source language.
package scope

import (
	"fmt"

	"github.com/mentorlint/mentor/pkg/pyast"
)

// Kind classifies a scope.
type Kind uint8

const (
	Module Kind = iota
	Function
	Class
	Comprehension
)

var kindNames = [...]string{
	Module:        "module",
	Function:      "function",
	Class:         "class",
	Comprehension: "comprehension",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("scope(%d)", uint8(k))
}

// BindKind records what introduced a name.
type BindKind uint8

const (
	BindAssign BindKind = iota
	BindParam
	BindDef    // function or class definition
	BindImport // import target
	BindLoop   // for target
	BindWith   // with ... as target
	BindHandler
	BindComp   // comprehension target
	BindWalrus // named expression target
	BindGlobal // created by a global or nonlocal declaration
)

// Binding is one name owned by a scope. Node points at the first binding
// site in source order.
type Binding struct {
	Name  string
	Kind  BindKind
	Node  *pyast.Node
	Scope *Scope
}

// Scope is one lexical scope. Dynamic marks scopes whose name set cannot
// be known statically: a wildcard import or a call to locals, globals,
// eval or exec was seen in it.
type Scope struct {
	Kind     Kind
	Node     *pyast.Node
	Parent   *Scope
	Children []*Scope
	Dynamic  bool

	bindings  map[string]*Binding
	names     []string // insertion order
	redirects map[string]*Scope
}

func newScope(kind Kind, node *pyast.Node, parent *Scope) *Scope {
	s := &Scope{
		Kind:      kind,
		Node:      node,
		Parent:    parent,
		bindings:  make(map[string]*Binding),
		redirects: make(map[string]*Scope),
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

// Name describes the scope for findings and rendering.
func (s *Scope) Name() string {
	switch s.Kind {
	case Module:
		return "module"
	case Class:
		return s.Node.Class.Name
	case Comprehension:
		return "<comprehension>"
	default:
		return s.Node.Fn.Name
	}
}

// Binding returns the scope's own binding for name, nil when the scope
// does not bind it.
func (s *Scope) Binding(name string) *Binding {
	return s.bindings[name]
}

// Names lists locally bound names in first-binding order.
func (s *Scope) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *Scope) ensure(name string, node *pyast.Node, kind BindKind) *Binding {
	if b, ok := s.bindings[name]; ok {
		return b
	}
	b := &Binding{Name: name, Kind: kind, Node: node, Scope: s}
	s.bindings[name] = b
	s.names = append(s.names, name)
	return b
}

// Tree is the scope tree of one module.
type Tree struct {
	Root   *Scope
	byNode map[uint32]*Scope
}

// UnitScope returns the scope a scope-introducing node owns, nil for
// other nodes.
func (t *Tree) UnitScope(n *pyast.Node) *Scope {
	return t.byNode[n.ID]
}

// ScopeOf returns the scope a node resides in. For a scope-introducing
// node this is the enclosing scope, matching where its name binds.
func (t *Tree) ScopeOf(n *pyast.Node) *Scope {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if s, ok := t.byNode[cur.ID]; ok {
			return s
		}
	}
	return t.Root
}

// All lists every scope in preorder.
func (t *Tree) All() []*Scope {
	var out []*Scope
	var walk func(*Scope)
	walk = func(s *Scope) {
		out = append(out, s)
		for _, c := range s.Children {
			walk(c)
		}
	}
	walk(t.Root)
	return out
}

// Resolve finds the binding a name refers to from the given scope. The
// second result reports whether the answer is exact: it is false when no
// binding was found but a dynamic scope was crossed, meaning the name may
// exist with unknown origin. Builtin names stay exact regardless.
func (t *Tree) Resolve(from *Scope, name string) (*Binding, bool) {
	crossedDynamic := false
	for cur := from; cur != nil; cur = cur.Parent {
		if target, ok := cur.redirects[name]; ok {
			return target.bindings[name], true
		}
		if b, ok := cur.bindings[name]; ok {
			if cur.Kind != Class || cur == from {
				return b, true
			}
		}
		if cur.Dynamic {
			crossedDynamic = true
		}
	}
	return nil, !crossedDynamic || pythonBuiltin(name)
}

// ResolveUse resolves a name node at its use site.
func (t *Tree) ResolveUse(n *pyast.Node) (*Binding, bool) {
	return t.Resolve(t.ScopeOf(n), n.Text)
}
