// Package defuse computes definition and use information for one
// control-flow unit: variable events per block, reaching definitions and
// liveness over the dataflow solver, and the def-use chains rules consume.
// Every read ends up with a non-empty definition set, an empty one
// (potential use before assignment), or an unknown-origin mark when a
// dynamic scope hides the name's source.
package defuse

import (
	"strings"

	"github.com/mentorlint/mentor/pkg/cfg"
	"github.com/mentorlint/mentor/pkg/pyast"
	"github.com/mentorlint/mentor/pkg/scope"
)

// EventKind classifies one variable event.
type EventKind uint8

const (
	// Assign is the first write to a variable in the unit.
	Assign EventKind = iota
	// Reassign is any later write.
	Reassign
	// Modify mutates the object behind a name without rebinding it:
	// attribute or subscript assignment, or a mutating method call.
	Modify
	// Read uses the value.
	Read
	// Delete unbinds the name.
	Delete
)

var eventNames = [...]string{
	Assign:   "assign",
	Reassign: "reassign",
	Modify:   "modify",
	Read:     "read",
	Delete:   "delete",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "event"
}

// Event is one occurrence of a variable in the unit. Binding identifies
// the variable; it is nil for unknown-origin reads, with Name still set.
// After analysis, Defs holds the definitions reaching a read and Uses the
// reads each definition reaches.
type Event struct {
	Kind    EventKind
	Name    string
	Node    *pyast.Node
	Binding *scope.Binding
	Block   *cfg.Block

	Defs []*Event
	Uses []*Event

	varID int
	defID int
}

// IsWrite reports whether the event defines a value.
func (e *Event) IsWrite() bool {
	return e.Kind == Assign || e.Kind == Reassign || e.Kind == Modify
}

// Unknown reports whether the read's origin cannot be determined because
// a dynamic scope shadows resolution.
func (e *Event) Unknown() bool {
	return e.Binding == nil
}

// mutatingMethods matches method names that modify their receiver, after
// pylint's conventions for common containers and file objects.
var mutatingMethods = map[string]bool{
	"append": true, "clear": true, "extend": true, "insert": true,
	"pop": true, "remove": true, "reverse": true, "sort": true,
	"add": true, "write": true,
}

func isMutatingMethod(name string) bool {
	return mutatingMethods[name] || strings.HasSuffix(name, "update")
}

type extractor struct {
	a     *Analysis
	block *cfg.Block
	seen  map[*scope.Binding]bool
}

func (e *extractor) emit(kind EventKind, name string, node *pyast.Node, b *scope.Binding) *Event {
	ev := &Event{Kind: kind, Name: name, Node: node, Binding: b, Block: e.block, varID: -1, defID: -1}
	e.a.Events = append(e.a.Events, ev)
	e.a.byBlock[e.block.ID] = append(e.a.byBlock[e.block.ID], ev)
	return ev
}

func (e *extractor) write(node *pyast.Node, name string) {
	b, _ := e.a.Scopes.Resolve(e.a.Scopes.ScopeOf(node), name)
	if b == nil {
		return
	}
	kind := Reassign
	if !e.seen[b] {
		kind = Assign
		e.seen[b] = true
	}
	e.emit(kind, name, node, b)
}

func (e *extractor) read(node *pyast.Node) {
	b, exact := e.a.Scopes.Resolve(e.a.Scopes.ScopeOf(node), node.Text)
	if b == nil {
		if exact {
			// Builtin or plainly undefined: not a variable.
			return
		}
		e.emit(Read, node.Text, node, nil)
		return
	}
	e.emit(Read, node.Text, node, b)
}

func (e *extractor) modify(node *pyast.Node) {
	base := baseName(node)
	if base == nil {
		return
	}
	b, _ := e.a.Scopes.Resolve(e.a.Scopes.ScopeOf(base), base.Text)
	if b == nil {
		return
	}
	e.emit(Modify, base.Text, base, b)
}

// baseName strips attribute and subscript layers down to the root name.
func baseName(n *pyast.Node) *pyast.Node {
	for n != nil && (n.Kind == pyast.KindAttribute || n.Kind == pyast.KindSubscript) {
		if len(n.Children) == 0 {
			return nil
		}
		n = n.Children[0]
	}
	if n != nil && n.Kind == pyast.KindName {
		return n
	}
	return nil
}

// stmt extracts the events of one block statement in evaluation order.
// Condition expressions registered by the CFG builder arrive here too and
// fall through to the expression walk.
func (e *extractor) stmt(n *pyast.Node) {
	switch n.Kind {
	case pyast.KindAssign:
		e.expr(n.Assign.Annotation)
		e.expr(n.Assign.Value)
		for _, tgt := range n.Assign.Targets {
			e.target(tgt)
		}
	case pyast.KindAugAssign:
		tgt := n.Assign.Targets[0]
		if tgt.Kind == pyast.KindName {
			e.read(tgt)
		}
		e.expr(n.Assign.Value)
		e.target(tgt)
	case pyast.KindFor:
		e.expr(n.Loop.Iter)
		e.target(n.Loop.Target)
	case pyast.KindWith:
		for _, item := range n.With.Items {
			e.expr(item.Value)
			e.target(item.Target)
		}
	case pyast.KindHandler:
		e.expr(n.Handler.Type)
		if n.Handler.Node != nil {
			e.write(n.Handler.Node, n.Handler.Name)
		}
	case pyast.KindImport:
		for _, in := range n.Import.Names {
			e.write(in.Node, in.Local)
		}
	case pyast.KindDelete:
		for _, c := range n.Children {
			e.deleteTarget(c)
		}
	case pyast.KindFunctionDef:
		for _, d := range n.Fn.Decorators {
			e.expr(d)
		}
		for i := range n.Fn.Params {
			e.expr(n.Fn.Params[i].Annotation)
			e.expr(n.Fn.Params[i].Default)
		}
		e.expr(n.Fn.Returns)
		e.write(n, n.Fn.Name)
	case pyast.KindClassDef:
		for _, d := range n.Class.Decorators {
			e.expr(d)
		}
		for _, b := range n.Class.Bases {
			e.expr(b)
		}
		e.write(n, n.Class.Name)
	case pyast.KindGlobal, pyast.KindNonlocal, pyast.KindPass,
		pyast.KindBreak, pyast.KindContinue, pyast.KindMatch, pyast.KindUnknown:
		// No events: declarations are scope-level, jumps carry no
		// names, and unsupported constructs stay out of the chains.
	default:
		// Expression statements, return and raise values, asserts, and
		// bare condition nodes all reduce to expression walks.
		e.expr(n)
	}
}

// target extracts write events from an assignment target. Attribute and
// subscript targets read their base and sub-expressions, then modify the
// base object.
func (e *extractor) target(n *pyast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case pyast.KindName:
		e.write(n, n.Text)
	case pyast.KindTuple, pyast.KindList, pyast.KindStarred:
		for _, c := range n.Children {
			e.target(c)
		}
	case pyast.KindAttribute, pyast.KindSubscript:
		for _, c := range n.Children {
			e.expr(c)
		}
		e.modify(n)
	default:
		e.expr(n)
	}
}

func (e *extractor) deleteTarget(n *pyast.Node) {
	switch n.Kind {
	case pyast.KindName:
		b, _ := e.a.Scopes.Resolve(e.a.Scopes.ScopeOf(n), n.Text)
		if b != nil {
			e.emit(Delete, n.Text, n, b)
		}
	case pyast.KindTuple, pyast.KindList:
		for _, c := range n.Children {
			e.deleteTarget(c)
		}
	case pyast.KindAttribute, pyast.KindSubscript:
		for _, c := range n.Children {
			e.expr(c)
		}
		e.modify(n)
	}
}

// expr walks an expression emitting reads. Nested function and class
// bodies belong to their own units and are skipped; comprehensions and
// lambda defaults evaluate here and are walked in place.
func (e *extractor) expr(n *pyast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case pyast.KindName:
		e.read(n)
	case pyast.KindCall:
		e.expr(n.Call.Func)
		if f := n.Call.Func; f != nil && f.Kind == pyast.KindAttribute && isMutatingMethod(f.Text) {
			e.modify(f)
		}
		for _, a := range n.Call.Args {
			e.expr(a)
		}
		for _, kw := range n.Call.Keywords {
			e.expr(kw.Value)
		}
	case pyast.KindNamedExpr:
		e.expr(n.Assign.Value)
		if len(n.Assign.Targets) > 0 {
			e.target(n.Assign.Targets[0])
		}
	case pyast.KindLambda:
		for i := range n.Fn.Params {
			e.expr(n.Fn.Params[i].Default)
		}
	case pyast.KindFunctionDef, pyast.KindClassDef:
		// Own unit.
	case pyast.KindListComp, pyast.KindSetComp, pyast.KindDictComp, pyast.KindGeneratorExp:
		for _, cl := range n.Comp.Clauses {
			e.expr(cl.Iter)
			e.target(cl.Target)
			for _, c := range cl.Ifs {
				e.expr(c)
			}
		}
		e.expr(n.Comp.Element)
	default:
		for _, c := range n.Children {
			e.expr(c)
		}
	}
}
