package scope

import "github.com/mentorlint/mentor/pkg/pyast"

// Build walks a module and returns its scope tree. Each scope is filled
// in two phases: global and nonlocal declarations first, since they apply
// to the whole scope regardless of position, then bindings in source
// order.
func Build(mod *pyast.Node) *Tree {
	t := &Tree{byNode: make(map[uint32]*Scope)}
	t.Root = newScope(Module, mod, nil)
	t.byNode[mod.ID] = t.Root
	b := &builder{tree: t}
	b.unit(t.Root)
	return t
}

type builder struct {
	tree *Tree
}

func (b *builder) unit(s *Scope) {
	switch s.Node.Kind {
	case pyast.KindModule:
		b.declare(s, s.Node.Children)
		b.walkAll(s, s.Node.Children)
	case pyast.KindFunctionDef, pyast.KindLambda:
		b.declare(s, s.Node.Fn.Body)
		for i := range s.Node.Fn.Params {
			p := &s.Node.Fn.Params[i]
			node := p.Node
			if node == nil {
				node = s.Node
			}
			s.ensure(p.Name, node, BindParam)
		}
		b.walkAll(s, s.Node.Fn.Body)
	case pyast.KindClassDef:
		b.declare(s, s.Node.Class.Body)
		b.walkAll(s, s.Node.Class.Body)
	case pyast.KindListComp, pyast.KindSetComp, pyast.KindDictComp, pyast.KindGeneratorExp:
		for _, cl := range s.Node.Comp.Clauses {
			b.bindTarget(s, cl.Target, BindComp)
			b.walk(s, cl.Iter)
			b.walkAll(s, cl.Ifs)
		}
		b.walk(s, s.Node.Comp.Element)
	}
}

func (b *builder) walkAll(s *Scope, nodes []*pyast.Node) {
	for _, n := range nodes {
		b.walk(s, n)
	}
}

// bind routes a name through the scope's global and nonlocal redirects
// before binding it.
func bind(s *Scope, name string, node *pyast.Node, kind BindKind) *Binding {
	if target, ok := s.redirects[name]; ok {
		return target.ensure(name, node, kind)
	}
	return s.ensure(name, node, kind)
}

// walk records bindings and descends looking for nested scopes. Nested
// units are not blanket-descended: the parts the source language
// evaluates in the enclosing scope (decorators, bases, parameter defaults
// and annotations) are walked here, the rest inside the child scope.
func (b *builder) walk(s *Scope, n *pyast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case pyast.KindFunctionDef:
		bind(s, n.Fn.Name, n, BindDef)
		b.walkAll(s, n.Fn.Decorators)
		for i := range n.Fn.Params {
			b.walk(s, n.Fn.Params[i].Annotation)
			b.walk(s, n.Fn.Params[i].Default)
		}
		b.walk(s, n.Fn.Returns)
		b.child(Function, n, s)
	case pyast.KindLambda:
		for i := range n.Fn.Params {
			b.walk(s, n.Fn.Params[i].Default)
		}
		b.child(Function, n, s)
	case pyast.KindClassDef:
		bind(s, n.Class.Name, n, BindDef)
		b.walkAll(s, n.Class.Decorators)
		b.walkAll(s, n.Class.Bases)
		b.child(Class, n, s)
	case pyast.KindListComp, pyast.KindSetComp, pyast.KindDictComp, pyast.KindGeneratorExp:
		b.child(Comprehension, n, s)
	case pyast.KindAssign, pyast.KindAugAssign:
		for _, tgt := range n.Assign.Targets {
			b.bindTarget(s, tgt, BindAssign)
		}
		b.walkAll(s, n.Children)
	case pyast.KindNamedExpr:
		// A walrus target skips comprehension scopes and binds in the
		// nearest enclosing real scope.
		target := s
		for target.Kind == Comprehension && target.Parent != nil {
			target = target.Parent
		}
		if len(n.Assign.Targets) > 0 {
			b.bindTarget(target, n.Assign.Targets[0], BindWalrus)
		}
		b.walkAll(s, n.Children)
	case pyast.KindFor:
		b.bindTarget(s, n.Loop.Target, BindLoop)
		b.walkAll(s, n.Children)
	case pyast.KindWith:
		for _, item := range n.With.Items {
			b.bindTarget(s, item.Target, BindWith)
		}
		b.walkAll(s, n.Children)
	case pyast.KindHandler:
		if n.Handler.Node != nil {
			bind(s, n.Handler.Name, n.Handler.Node, BindHandler)
		}
		b.walkAll(s, n.Children)
	case pyast.KindImport:
		if n.Import.Wildcard {
			s.Dynamic = true
		}
		for _, in := range n.Import.Names {
			bind(s, in.Local, in.Node, BindImport)
		}
	case pyast.KindGlobal, pyast.KindNonlocal:
		// Applied in the declaration phase.
	case pyast.KindCall:
		if f := n.Call.Func; f != nil && f.Kind == pyast.KindName && dynamicBuiltin(f.Text) {
			s.Dynamic = true
		}
		b.walkAll(s, n.Children)
	default:
		b.walkAll(s, n.Children)
	}
}

func (b *builder) child(kind Kind, n *pyast.Node, parent *Scope) {
	s := newScope(kind, n, parent)
	b.tree.byNode[n.ID] = s
	b.unit(s)
}

// bindTarget binds every name in an assignment target. Attribute and
// subscript targets modify an object and bind nothing.
func (b *builder) bindTarget(s *Scope, target *pyast.Node, kind BindKind) {
	if target == nil {
		return
	}
	switch target.Kind {
	case pyast.KindName:
		bind(s, target.Text, target, kind)
	case pyast.KindTuple, pyast.KindList, pyast.KindStarred:
		for _, c := range target.Children {
			b.bindTarget(s, c, kind)
		}
	}
}

// declare scans a scope's own statements for global and nonlocal
// declarations without descending into nested units.
func (b *builder) declare(s *Scope, stmts []*pyast.Node) {
	for _, n := range stmts {
		b.declareWalk(s, n)
	}
}

func (b *builder) declareWalk(s *Scope, n *pyast.Node) {
	switch n.Kind {
	case pyast.KindFunctionDef, pyast.KindLambda, pyast.KindClassDef,
		pyast.KindListComp, pyast.KindSetComp, pyast.KindDictComp, pyast.KindGeneratorExp:
		return
	case pyast.KindGlobal:
		for _, id := range n.Children {
			if id.Kind != pyast.KindName {
				continue
			}
			s.redirects[id.Text] = b.tree.Root
			b.tree.Root.ensure(id.Text, n, BindGlobal)
		}
	case pyast.KindNonlocal:
		target := enclosingFunction(s)
		if target == nil {
			return
		}
		for _, id := range n.Children {
			if id.Kind != pyast.KindName {
				continue
			}
			s.redirects[id.Text] = target
			target.ensure(id.Text, n, BindGlobal)
		}
	default:
		for _, c := range n.Children {
			b.declareWalk(s, c)
		}
	}
}

func enclosingFunction(s *Scope) *Scope {
	for cur := s.Parent; cur != nil; cur = cur.Parent {
		if cur.Kind == Function {
			return cur
		}
	}
	return nil
}

func dynamicBuiltin(name string) bool {
	switch name {
	case "locals", "globals", "eval", "exec":
		return true
	}
	return false
}
