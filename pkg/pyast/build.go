package pyast

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mentorlint/mentor/pkg/parser"
)

// Build adapts a parsed file into the typed node tree. It returns a
// *TreeError when the parse tree contains error or missing nodes; the
// caller is expected to record the failure and move on to the next file.
func Build(res *parser.ParseResult) (*Node, error) {
	root := res.Tree.RootNode()
	if root == nil {
		return nil, &TreeError{Path: res.Path, Msg: "parser produced no tree"}
	}
	if root.HasError() {
		if bad := findErrorNode(root); bad != nil {
			msg := "syntax error"
			if bad.IsMissing() {
				msg = "missing " + bad.Type()
			}
			return nil, &TreeError{Path: res.Path, Span: spanOf(bad), Msg: msg}
		}
		return nil, &TreeError{Path: res.Path, Span: spanOf(root), Msg: "syntax error"}
	}

	b := &builder{src: res.Source}
	mod := b.alloc(root, KindModule)
	mod.Children = b.suite(root, mod)
	return mod, nil
}

func findErrorNode(root *sitter.Node) *sitter.Node {
	var found *sitter.Node
	walk(root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			found = n
			return false
		}
		return n.HasError()
	})
	return found
}

func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := range int(n.ChildCount()) {
		walk(n.Child(i), fn)
	}
}

func spanOf(n *sitter.Node) Span {
	return Span{
		StartLine: n.StartPoint().Row + 1,
		StartCol:  n.StartPoint().Column,
		EndLine:   n.EndPoint().Row + 1,
		EndCol:    n.EndPoint().Column,
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
	}
}

type builder struct {
	src    []byte
	nextID uint32
}

func (b *builder) text(n *sitter.Node) string {
	return parser.GetNodeText(n, b.src)
}

// alloc creates an adapted node for a tree-sitter node. IDs follow creation
// order, which follows source order, so identical input yields identical
// numbering.
func (b *builder) alloc(ts *sitter.Node, kind Kind) *Node {
	n := &Node{Kind: kind, ID: b.nextID, Span: spanOf(ts)}
	b.nextID++
	return n
}

// namedChildren lists the named, non-comment children of a node.
func namedChildren(ts *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, ts.NamedChildCount())
	for i := range int(ts.NamedChildCount()) {
		c := ts.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// hasKeywordChild reports whether a node starts with the given anonymous
// keyword token (used for "async").
func hasKeywordChild(ts *sitter.Node, kw string) bool {
	for i := range int(ts.ChildCount()) {
		c := ts.Child(i)
		if c.IsNamed() {
			return false
		}
		if c.Type() == kw {
			return true
		}
	}
	return false
}

// suite maps a statement suite. tree-sitter wraps indented suites in a
// block node; inline suites hang the statements directly off the parent.
func (b *builder) suite(ts *sitter.Node, parent *Node) []*Node {
	if ts == nil {
		return nil
	}
	var stmts []*sitter.Node
	if ts.Type() == "block" || ts.Type() == "module" {
		stmts = namedChildren(ts)
	} else {
		stmts = []*sitter.Node{ts}
	}
	out := make([]*Node, 0, len(stmts))
	for _, s := range stmts {
		if n := b.statement(s, parent); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// statement maps one statement node, unwrapping expression_statement and
// decorated_definition.
func (b *builder) statement(ts *sitter.Node, parent *Node) *Node {
	switch ts.Type() {
	case "expression_statement":
		kids := namedChildren(ts)
		if len(kids) == 1 {
			switch kids[0].Type() {
			case "assignment", "augmented_assignment":
				return b.expr(kids[0], parent)
			}
		}
		n := b.alloc(ts, KindExprStmt)
		n.Parent = parent
		for _, k := range kids {
			n.Children = append(n.Children, b.expr(k, n))
		}
		return n
	case "decorated_definition":
		var decorators []*sitter.Node
		for _, c := range namedChildren(ts) {
			if c.Type() == "decorator" {
				decorators = append(decorators, c)
			}
		}
		def := ts.ChildByFieldName("definition")
		if def == nil {
			return b.unknown(ts, parent)
		}
		n := b.statement(def, parent)
		var decs []*Node
		for _, d := range decorators {
			if inner := firstNamed(d); inner != nil {
				decs = append(decs, b.expr(inner, n))
			}
		}
		switch {
		case n.Fn != nil:
			n.Fn.Decorators = decs
		case n.Class != nil:
			n.Class.Decorators = decs
		}
		n.Children = append(decs, n.Children...)
		return n
	case "function_definition":
		return b.functionDef(ts, parent)
	case "class_definition":
		return b.classDef(ts, parent)
	case "if_statement":
		return b.ifStmt(ts, parent)
	case "for_statement":
		return b.forStmt(ts, parent)
	case "while_statement":
		return b.whileStmt(ts, parent)
	case "try_statement":
		return b.tryStmt(ts, parent)
	case "with_statement":
		return b.withStmt(ts, parent)
	case "match_statement":
		n := b.alloc(ts, KindMatch)
		n.Parent = parent
		for _, c := range namedChildren(ts) {
			n.Children = append(n.Children, b.generic(c, n))
		}
		return n
	case "return_statement":
		return b.simpleStmt(ts, parent, KindReturn)
	case "raise_statement":
		return b.simpleStmt(ts, parent, KindRaise)
	case "break_statement":
		return b.leafStmt(ts, parent, KindBreak)
	case "continue_statement":
		return b.leafStmt(ts, parent, KindContinue)
	case "pass_statement":
		return b.leafStmt(ts, parent, KindPass)
	case "global_statement":
		return b.simpleStmt(ts, parent, KindGlobal)
	case "nonlocal_statement":
		return b.simpleStmt(ts, parent, KindNonlocal)
	case "delete_statement":
		n := b.alloc(ts, KindDelete)
		n.Parent = parent
		for _, c := range namedChildren(ts) {
			if c.Type() == "expression_list" {
				for _, e := range namedChildren(c) {
					n.Children = append(n.Children, b.expr(e, n))
				}
				continue
			}
			n.Children = append(n.Children, b.expr(c, n))
		}
		return n
	case "assert_statement":
		return b.simpleStmt(ts, parent, KindAssert)
	case "import_statement", "import_from_statement", "future_import_statement":
		return b.importStmt(ts, parent)
	default:
		return b.unknown(ts, parent)
	}
}

// simpleStmt maps a statement whose named children are plain expressions.
func (b *builder) simpleStmt(ts *sitter.Node, parent *Node, kind Kind) *Node {
	n := b.alloc(ts, kind)
	n.Parent = parent
	for _, c := range namedChildren(ts) {
		if c.Type() == "expression_list" {
			tup := b.alloc(c, KindTuple)
			tup.Parent = n
			for _, e := range namedChildren(c) {
				tup.Children = append(tup.Children, b.expr(e, tup))
			}
			n.Children = append(n.Children, tup)
			continue
		}
		n.Children = append(n.Children, b.expr(c, n))
	}
	return n
}

func (b *builder) leafStmt(ts *sitter.Node, parent *Node, kind Kind) *Node {
	n := b.alloc(ts, kind)
	n.Parent = parent
	return n
}

func (b *builder) functionDef(ts *sitter.Node, parent *Node) *Node {
	n := b.alloc(ts, KindFunctionDef)
	n.Parent = parent
	fn := &FuncData{IsAsync: hasKeywordChild(ts, "async")}
	n.Fn = fn

	if name := ts.ChildByFieldName("name"); name != nil {
		fn.Name = b.text(name)
	}
	fn.Params = b.params(ts.ChildByFieldName("parameters"), n)
	for _, p := range fn.Params {
		if p.Node != nil {
			n.Children = append(n.Children, p.Node)
		}
		if p.Annotation != nil {
			n.Children = append(n.Children, p.Annotation)
		}
		if p.Default != nil {
			n.Children = append(n.Children, p.Default)
		}
	}
	if ret := ts.ChildByFieldName("return_type"); ret != nil {
		fn.Returns = b.annotation(ret, n)
		if fn.Returns != nil {
			n.Children = append(n.Children, fn.Returns)
		}
	}
	fn.Body = b.suite(ts.ChildByFieldName("body"), n)
	n.Children = append(n.Children, fn.Body...)
	return n
}

func (b *builder) lambda(ts *sitter.Node, parent *Node) *Node {
	n := b.alloc(ts, KindLambda)
	n.Parent = parent
	fn := &FuncData{Name: "<lambda>", IsLambda: true}
	n.Fn = fn

	fn.Params = b.params(ts.ChildByFieldName("parameters"), n)
	for _, p := range fn.Params {
		if p.Node != nil {
			n.Children = append(n.Children, p.Node)
		}
		if p.Default != nil {
			n.Children = append(n.Children, p.Default)
		}
	}
	if body := ts.ChildByFieldName("body"); body != nil {
		expr := b.expr(body, n)
		fn.Body = []*Node{expr}
		n.Children = append(n.Children, expr)
	}
	return n
}

// params maps a parameter list. Splat parameters (*args, **kwargs) bind
// their inner identifier like any other parameter.
func (b *builder) params(ts *sitter.Node, parent *Node) []Param {
	if ts == nil {
		return nil
	}
	var out []Param
	for _, c := range namedChildren(ts) {
		switch c.Type() {
		case "identifier":
			id := b.name(c, parent)
			out = append(out, Param{Name: id.Text, Node: id})
		case "typed_parameter":
			var p Param
			if inner := firstNamed(c); inner != nil && inner.Type() == "identifier" {
				id := b.name(inner, parent)
				p.Name, p.Node = id.Text, id
			}
			if typ := c.ChildByFieldName("type"); typ != nil {
				p.Annotation = b.annotation(typ, parent)
			}
			if p.Node != nil {
				out = append(out, p)
			}
		case "default_parameter", "typed_default_parameter":
			var p Param
			if name := c.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
				id := b.name(name, parent)
				p.Name, p.Node = id.Text, id
			}
			if typ := c.ChildByFieldName("type"); typ != nil {
				p.Annotation = b.annotation(typ, parent)
			}
			if val := c.ChildByFieldName("value"); val != nil {
				p.Default = b.expr(val, parent)
			}
			if p.Node != nil {
				out = append(out, p)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			if inner := firstNamed(c); inner != nil && inner.Type() == "identifier" {
				id := b.name(inner, parent)
				out = append(out, Param{Name: id.Text, Node: id})
			}
		}
	}
	return out
}

// annotation unwraps a type node to the expression it contains.
func (b *builder) annotation(ts *sitter.Node, parent *Node) *Node {
	if ts.Type() == "type" {
		if inner := firstNamed(ts); inner != nil {
			return b.expr(inner, parent)
		}
		return nil
	}
	return b.expr(ts, parent)
}

func (b *builder) classDef(ts *sitter.Node, parent *Node) *Node {
	n := b.alloc(ts, KindClassDef)
	n.Parent = parent
	cls := &ClassData{}
	n.Class = cls

	if name := ts.ChildByFieldName("name"); name != nil {
		cls.Name = b.text(name)
	}
	if supers := ts.ChildByFieldName("superclasses"); supers != nil {
		for _, c := range namedChildren(supers) {
			cls.Bases = append(cls.Bases, b.expr(c, n))
		}
		n.Children = append(n.Children, cls.Bases...)
	}
	cls.Body = b.suite(ts.ChildByFieldName("body"), n)
	n.Children = append(n.Children, cls.Body...)
	return n
}

func (b *builder) ifStmt(ts *sitter.Node, parent *Node) *Node {
	n := b.alloc(ts, KindIf)
	n.Parent = parent
	data := &IfData{}
	n.If = data

	data.Cond = b.expr(ts.ChildByFieldName("condition"), n)
	n.Children = append(n.Children, data.Cond)
	data.Then = b.suite(ts.ChildByFieldName("consequence"), n)
	n.Children = append(n.Children, data.Then...)

	for _, c := range namedChildren(ts) {
		switch c.Type() {
		case "elif_clause":
			clause := ElifClause{
				Cond: b.expr(c.ChildByFieldName("condition"), n),
				Body: nil,
			}
			n.Children = append(n.Children, clause.Cond)
			clause.Body = b.suite(c.ChildByFieldName("consequence"), n)
			n.Children = append(n.Children, clause.Body...)
			data.Elifs = append(data.Elifs, clause)
		case "else_clause":
			data.Else = b.suite(c.ChildByFieldName("body"), n)
			n.Children = append(n.Children, data.Else...)
		}
	}
	return n
}

func (b *builder) forStmt(ts *sitter.Node, parent *Node) *Node {
	n := b.alloc(ts, KindFor)
	n.Parent = parent
	data := &LoopData{}
	n.Loop = data

	data.Target = b.expr(ts.ChildByFieldName("left"), n)
	data.Iter = b.expr(ts.ChildByFieldName("right"), n)
	n.Children = append(n.Children, data.Target, data.Iter)
	data.Body = b.suite(ts.ChildByFieldName("body"), n)
	n.Children = append(n.Children, data.Body...)
	if alt := ts.ChildByFieldName("alternative"); alt != nil {
		data.Else = b.suite(alt.ChildByFieldName("body"), n)
		n.Children = append(n.Children, data.Else...)
	}
	return n
}

func (b *builder) whileStmt(ts *sitter.Node, parent *Node) *Node {
	n := b.alloc(ts, KindWhile)
	n.Parent = parent
	data := &LoopData{}
	n.Loop = data

	data.Cond = b.expr(ts.ChildByFieldName("condition"), n)
	n.Children = append(n.Children, data.Cond)
	data.Body = b.suite(ts.ChildByFieldName("body"), n)
	n.Children = append(n.Children, data.Body...)
	if alt := ts.ChildByFieldName("alternative"); alt != nil {
		data.Else = b.suite(alt.ChildByFieldName("body"), n)
		n.Children = append(n.Children, data.Else...)
	}
	return n
}

func (b *builder) tryStmt(ts *sitter.Node, parent *Node) *Node {
	n := b.alloc(ts, KindTry)
	n.Parent = parent
	data := &TryData{}
	n.Try = data

	data.Body = b.suite(ts.ChildByFieldName("body"), n)
	n.Children = append(n.Children, data.Body...)

	for _, c := range namedChildren(ts) {
		switch c.Type() {
		case "except_clause", "except_group_clause":
			clause := b.alloc(c, KindHandler)
			clause.Parent = n
			h := &Handler{Clause: clause}
			clause.Handler = h
			for _, hc := range namedChildren(c) {
				if hc.Type() == "block" {
					h.Body = b.suite(hc, clause)
					continue
				}
				if hc.Type() == "as_pattern" {
					val, target := asPatternParts(hc)
					if val != nil {
						h.Type = b.expr(val, clause)
						clause.Children = append(clause.Children, h.Type)
					}
					if target != nil {
						id := b.name(target, clause)
						h.Name, h.Node = id.Text, id
						clause.Children = append(clause.Children, id)
					}
					continue
				}
				h.Type = b.expr(hc, clause)
				clause.Children = append(clause.Children, h.Type)
			}
			clause.Children = append(clause.Children, h.Body...)
			n.Children = append(n.Children, clause)
			data.Handlers = append(data.Handlers, h)
		case "else_clause":
			data.Else = b.suite(c.ChildByFieldName("body"), n)
			n.Children = append(n.Children, data.Else...)
		case "finally_clause":
			var body *sitter.Node
			for _, fc := range namedChildren(c) {
				if fc.Type() == "block" {
					body = fc
				}
			}
			data.Finally = b.suite(body, n)
			n.Children = append(n.Children, data.Finally...)
		}
	}
	return n
}

func (b *builder) withStmt(ts *sitter.Node, parent *Node) *Node {
	n := b.alloc(ts, KindWith)
	n.Parent = parent
	data := &WithData{}
	n.With = data

	for _, c := range namedChildren(ts) {
		if c.Type() != "with_clause" {
			continue
		}
		for _, item := range namedChildren(c) {
			if item.Type() != "with_item" {
				continue
			}
			val := item.ChildByFieldName("value")
			if val == nil {
				val = firstNamed(item)
			}
			var wi WithItem
			if val != nil && val.Type() == "as_pattern" {
				inner, target := asPatternParts(val)
				if inner != nil {
					wi.Value = b.expr(inner, n)
					n.Children = append(n.Children, wi.Value)
				}
				if target != nil {
					wi.Target = b.expr(target, n)
					n.Children = append(n.Children, wi.Target)
				}
			} else if val != nil {
				wi.Value = b.expr(val, n)
				n.Children = append(n.Children, wi.Value)
			}
			data.Items = append(data.Items, wi)
		}
	}
	data.Body = b.suite(ts.ChildByFieldName("body"), n)
	n.Children = append(n.Children, data.Body...)
	return n
}

func (b *builder) importStmt(ts *sitter.Node, parent *Node) *Node {
	n := b.alloc(ts, KindImport)
	n.Parent = parent
	data := &ImportData{}
	n.Import = data

	fromImport := ts.Type() == "import_from_statement" || ts.Type() == "future_import_statement"
	module := ts.ChildByFieldName("module_name")

	for _, c := range namedChildren(ts) {
		if module != nil && c.StartByte() == module.StartByte() && c.EndByte() == module.EndByte() && fromImport {
			continue
		}
		switch c.Type() {
		case "dotted_name":
			ids := namedChildren(c)
			if len(ids) == 0 {
				continue
			}
			// "import a.b.c" binds a; "from m import a" binds a.
			bound := ids[0]
			if fromImport {
				bound = ids[len(ids)-1]
			}
			id := b.name(bound, n)
			n.Children = append(n.Children, id)
			data.Names = append(data.Names, ImportedName{Local: id.Text, Node: id})
		case "aliased_import":
			if alias := c.ChildByFieldName("alias"); alias != nil {
				id := b.name(alias, n)
				n.Children = append(n.Children, id)
				data.Names = append(data.Names, ImportedName{Local: id.Text, Node: id})
			}
		case "wildcard_import":
			data.Wildcard = true
		}
	}
	return n
}

func firstNamed(ts *sitter.Node) *sitter.Node {
	kids := namedChildren(ts)
	if len(kids) == 0 {
		return nil
	}
	return kids[0]
}

// asPatternParts splits an as_pattern into the wrapped expression and the
// bound target identifier. The target may sit under an alias field or be
// the trailing named child, depending on grammar version.
func asPatternParts(ts *sitter.Node) (value, target *sitter.Node) {
	kids := namedChildren(ts)
	if len(kids) > 0 {
		value = kids[0]
	}
	if alias := ts.ChildByFieldName("alias"); alias != nil {
		if inner := firstNamed(alias); inner != nil {
			return value, inner
		}
		return value, alias
	}
	if len(kids) > 1 {
		return value, kids[len(kids)-1]
	}
	return value, nil
}

func (b *builder) name(ts *sitter.Node, parent *Node) *Node {
	n := b.alloc(ts, KindName)
	n.Parent = parent
	n.Text = b.text(ts)
	return n
}

// unknown maps a construct the adapter does not model. Leaves keep their
// source text; interior nodes keep their mapped children so traversal and
// def-use extraction stay total.
func (b *builder) unknown(ts *sitter.Node, parent *Node) *Node {
	n := b.alloc(ts, KindUnknown)
	n.Parent = parent
	kids := namedChildren(ts)
	if len(kids) == 0 {
		n.Text = b.text(ts)
		return n
	}
	for _, c := range kids {
		n.Children = append(n.Children, b.generic(c, n))
	}
	return n
}

// generic maps a node that may be a statement or an expression.
func (b *builder) generic(ts *sitter.Node, parent *Node) *Node {
	switch ts.Type() {
	case "block":
		n := b.alloc(ts, KindUnknown)
		n.Parent = parent
		n.Children = b.suite(ts, n)
		return n
	case "case_clause":
		return b.unknown(ts, parent)
	default:
		if isExprType(ts.Type()) {
			return b.expr(ts, parent)
		}
		return b.statement(ts, parent)
	}
}

func isExprType(t string) bool {
	switch t {
	case "identifier", "attribute", "subscript", "call", "binary_operator",
		"unary_operator", "boolean_operator", "not_operator",
		"comparison_operator", "conditional_expression", "named_expression",
		"lambda", "integer", "float", "string", "concatenated_string",
		"true", "false", "none", "ellipsis", "list", "tuple", "set",
		"dictionary", "pair", "list_comprehension", "set_comprehension",
		"dictionary_comprehension", "generator_expression",
		"parenthesized_expression", "await", "yield", "slice",
		"list_splat", "dictionary_splat", "list_splat_pattern",
		"dictionary_splat_pattern", "pattern_list", "expression_list",
		"tuple_pattern", "keyword_argument":
		return true
	}
	return false
}

// expr maps an expression node.
func (b *builder) expr(ts *sitter.Node, parent *Node) *Node {
	if ts == nil {
		n := &Node{Kind: KindUnknown, ID: b.nextID, Parent: parent}
		b.nextID++
		return n
	}
	switch ts.Type() {
	case "parenthesized_expression":
		if inner := firstNamed(ts); inner != nil {
			return b.expr(inner, parent)
		}
		return b.unknown(ts, parent)
	case "identifier":
		return b.name(ts, parent)
	case "attribute":
		n := b.alloc(ts, KindAttribute)
		n.Parent = parent
		if obj := ts.ChildByFieldName("object"); obj != nil {
			n.Children = append(n.Children, b.expr(obj, n))
		}
		if attr := ts.ChildByFieldName("attribute"); attr != nil {
			n.Text = b.text(attr)
		}
		return n
	case "subscript":
		n := b.alloc(ts, KindSubscript)
		n.Parent = parent
		if val := ts.ChildByFieldName("value"); val != nil {
			n.Children = append(n.Children, b.expr(val, n))
		}
		for i := range int(ts.ChildCount()) {
			c := ts.Child(i)
			if !c.IsNamed() || c.Type() == "comment" {
				continue
			}
			if ts.FieldNameForChild(i) == "subscript" {
				n.Children = append(n.Children, b.expr(c, n))
			}
		}
		return n
	case "slice":
		n := b.alloc(ts, KindSlice)
		n.Parent = parent
		for _, c := range namedChildren(ts) {
			n.Children = append(n.Children, b.expr(c, n))
		}
		return n
	case "call":
		return b.call(ts, parent)
	case "keyword_argument":
		n := b.alloc(ts, KindKeywordArg)
		n.Parent = parent
		if name := ts.ChildByFieldName("name"); name != nil {
			n.Text = b.text(name)
		}
		if val := ts.ChildByFieldName("value"); val != nil {
			n.Children = append(n.Children, b.expr(val, n))
		}
		return n
	case "binary_operator":
		n := b.alloc(ts, KindBinaryOp)
		n.Parent = parent
		n.Op = &OpData{}
		if op := ts.ChildByFieldName("operator"); op != nil {
			n.Op.Op = b.text(op)
		}
		n.Op.Left = b.expr(ts.ChildByFieldName("left"), n)
		n.Op.Right = b.expr(ts.ChildByFieldName("right"), n)
		n.Children = append(n.Children, n.Op.Left, n.Op.Right)
		n.Text = n.Op.Op
		return n
	case "boolean_operator":
		n := b.alloc(ts, KindBoolOp)
		n.Parent = parent
		n.Op = &OpData{}
		if op := ts.ChildByFieldName("operator"); op != nil {
			n.Op.Op = b.text(op)
		}
		n.Op.Left = b.expr(ts.ChildByFieldName("left"), n)
		n.Op.Right = b.expr(ts.ChildByFieldName("right"), n)
		n.Children = append(n.Children, n.Op.Left, n.Op.Right)
		n.Text = n.Op.Op
		return n
	case "unary_operator", "not_operator":
		n := b.alloc(ts, KindUnaryOp)
		n.Parent = parent
		n.Op = &OpData{}
		if op := ts.ChildByFieldName("operator"); op != nil {
			n.Op.Op = b.text(op)
		} else if ts.Type() == "not_operator" {
			n.Op.Op = "not"
		}
		arg := ts.ChildByFieldName("argument")
		if arg == nil {
			arg = firstNamed(ts)
		}
		n.Op.Operand = b.expr(arg, n)
		n.Children = append(n.Children, n.Op.Operand)
		n.Text = n.Op.Op
		return n
	case "comparison_operator":
		n := b.alloc(ts, KindCompareOp)
		n.Parent = parent
		n.Op = &OpData{}
		for i := range int(ts.ChildCount()) {
			c := ts.Child(i)
			if c.IsNamed() {
				continue
			}
			if n.Op.Op != "" {
				n.Op.Op += " "
			}
			n.Op.Op += c.Type()
		}
		for _, c := range namedChildren(ts) {
			e := b.expr(c, n)
			n.Op.Operands = append(n.Op.Operands, e)
			n.Children = append(n.Children, e)
		}
		n.Text = n.Op.Op
		return n
	case "conditional_expression":
		n := b.alloc(ts, KindCondExpr)
		n.Parent = parent
		kids := namedChildren(ts)
		if len(kids) == 3 {
			n.Cond = &CondData{
				Then: b.expr(kids[0], n),
				Cond: b.expr(kids[1], n),
				Else: b.expr(kids[2], n),
			}
			n.Children = append(n.Children, n.Cond.Then, n.Cond.Cond, n.Cond.Else)
		} else {
			for _, c := range kids {
				n.Children = append(n.Children, b.expr(c, n))
			}
		}
		return n
	case "named_expression":
		n := b.alloc(ts, KindNamedExpr)
		n.Parent = parent
		n.Assign = &AssignData{Op: ":="}
		if name := ts.ChildByFieldName("name"); name != nil {
			target := b.expr(name, n)
			n.Assign.Targets = []*Node{target}
			n.Children = append(n.Children, target)
		}
		if val := ts.ChildByFieldName("value"); val != nil {
			n.Assign.Value = b.expr(val, n)
			n.Children = append(n.Children, n.Assign.Value)
		}
		return n
	case "assignment":
		n := b.alloc(ts, KindAssign)
		n.Parent = parent
		n.Assign = &AssignData{}
		if left := ts.ChildByFieldName("left"); left != nil {
			target := b.expr(left, n)
			n.Assign.Targets = []*Node{target}
			n.Children = append(n.Children, target)
		}
		if typ := ts.ChildByFieldName("type"); typ != nil {
			n.Assign.Annotation = b.annotation(typ, n)
			if n.Assign.Annotation != nil {
				n.Children = append(n.Children, n.Assign.Annotation)
			}
		}
		if right := ts.ChildByFieldName("right"); right != nil {
			n.Assign.Value = b.expr(right, n)
			n.Children = append(n.Children, n.Assign.Value)
		}
		return n
	case "augmented_assignment":
		n := b.alloc(ts, KindAugAssign)
		n.Parent = parent
		n.Assign = &AssignData{}
		if op := ts.ChildByFieldName("operator"); op != nil {
			n.Assign.Op = b.text(op)
		}
		if left := ts.ChildByFieldName("left"); left != nil {
			target := b.expr(left, n)
			n.Assign.Targets = []*Node{target}
			n.Children = append(n.Children, target)
		}
		if right := ts.ChildByFieldName("right"); right != nil {
			n.Assign.Value = b.expr(right, n)
			n.Children = append(n.Children, n.Assign.Value)
		}
		return n
	case "lambda":
		return b.lambda(ts, parent)
	case "integer":
		return b.literal(ts, parent, KindLiteralInt)
	case "float":
		return b.literal(ts, parent, KindLiteralFloat)
	case "string", "concatenated_string":
		return b.stringLiteral(ts, parent)
	case "true", "false":
		return b.literal(ts, parent, KindLiteralBool)
	case "none":
		return b.literal(ts, parent, KindLiteralNone)
	case "ellipsis":
		return b.literal(ts, parent, KindLiteralEllipsis)
	case "list":
		return b.sequence(ts, parent, KindList)
	case "tuple", "expression_list", "pattern_list", "tuple_pattern":
		return b.sequence(ts, parent, KindTuple)
	case "set":
		return b.sequence(ts, parent, KindSet)
	case "dictionary":
		return b.sequence(ts, parent, KindDict)
	case "pair":
		n := b.alloc(ts, KindPair)
		n.Parent = parent
		if key := ts.ChildByFieldName("key"); key != nil {
			n.Children = append(n.Children, b.expr(key, n))
		}
		if val := ts.ChildByFieldName("value"); val != nil {
			n.Children = append(n.Children, b.expr(val, n))
		}
		return n
	case "list_comprehension":
		return b.comprehension(ts, parent, KindListComp)
	case "set_comprehension":
		return b.comprehension(ts, parent, KindSetComp)
	case "dictionary_comprehension":
		return b.comprehension(ts, parent, KindDictComp)
	case "generator_expression":
		return b.comprehension(ts, parent, KindGeneratorExp)
	case "await":
		n := b.alloc(ts, KindAwait)
		n.Parent = parent
		if inner := firstNamed(ts); inner != nil {
			n.Children = append(n.Children, b.expr(inner, n))
		}
		return n
	case "yield":
		n := b.alloc(ts, KindYield)
		n.Parent = parent
		for _, c := range namedChildren(ts) {
			n.Children = append(n.Children, b.expr(c, n))
		}
		return n
	case "list_splat", "dictionary_splat", "list_splat_pattern", "dictionary_splat_pattern":
		n := b.alloc(ts, KindStarred)
		n.Parent = parent
		if inner := firstNamed(ts); inner != nil {
			n.Children = append(n.Children, b.expr(inner, n))
		}
		return n
	default:
		return b.unknown(ts, parent)
	}
}

func (b *builder) literal(ts *sitter.Node, parent *Node, kind Kind) *Node {
	n := b.alloc(ts, kind)
	n.Parent = parent
	n.Text = b.text(ts)
	return n
}

// stringLiteral keeps the raw text and adapts any f-string interpolations
// as children so their name uses stay visible to the resolver.
func (b *builder) stringLiteral(ts *sitter.Node, parent *Node) *Node {
	n := b.alloc(ts, KindLiteralStr)
	n.Parent = parent
	n.Text = b.text(ts)
	var collect func(sn *sitter.Node)
	collect = func(sn *sitter.Node) {
		for _, c := range namedChildren(sn) {
			switch c.Type() {
			case "interpolation":
				if inner := firstNamed(c); inner != nil {
					n.Children = append(n.Children, b.expr(inner, n))
				}
			case "string":
				collect(c)
			}
		}
	}
	collect(ts)
	return n
}

func (b *builder) sequence(ts *sitter.Node, parent *Node, kind Kind) *Node {
	n := b.alloc(ts, kind)
	n.Parent = parent
	for _, c := range namedChildren(ts) {
		n.Children = append(n.Children, b.expr(c, n))
	}
	return n
}

func (b *builder) call(ts *sitter.Node, parent *Node) *Node {
	n := b.alloc(ts, KindCall)
	n.Parent = parent
	data := &CallData{}
	n.Call = data

	if fn := ts.ChildByFieldName("function"); fn != nil {
		data.Func = b.expr(fn, n)
		n.Children = append(n.Children, data.Func)
	}
	args := ts.ChildByFieldName("arguments")
	if args == nil {
		return n
	}
	if args.Type() == "generator_expression" {
		e := b.expr(args, n)
		data.Args = append(data.Args, e)
		n.Children = append(n.Children, e)
		return n
	}
	for _, c := range namedChildren(args) {
		if c.Type() == "keyword_argument" {
			kw := Keyword{}
			if name := c.ChildByFieldName("name"); name != nil {
				kw.Name = b.text(name)
			}
			if val := c.ChildByFieldName("value"); val != nil {
				kw.Value = b.expr(val, n)
				n.Children = append(n.Children, kw.Value)
			}
			data.Keywords = append(data.Keywords, kw)
			continue
		}
		e := b.expr(c, n)
		data.Args = append(data.Args, e)
		n.Children = append(n.Children, e)
	}
	return n
}

func (b *builder) comprehension(ts *sitter.Node, parent *Node, kind Kind) *Node {
	n := b.alloc(ts, kind)
	n.Parent = parent
	data := &CompData{}
	n.Comp = data

	if body := ts.ChildByFieldName("body"); body != nil {
		data.Element = b.expr(body, n)
		n.Children = append(n.Children, data.Element)
	}
	for _, c := range namedChildren(ts) {
		switch c.Type() {
		case "for_in_clause":
			clause := CompClause{
				Target: b.expr(c.ChildByFieldName("left"), n),
				Iter:   b.expr(c.ChildByFieldName("right"), n),
			}
			n.Children = append(n.Children, clause.Target, clause.Iter)
			data.Clauses = append(data.Clauses, clause)
		case "if_clause":
			if inner := firstNamed(c); inner != nil {
				cond := b.expr(inner, n)
				if len(data.Clauses) > 0 {
					last := &data.Clauses[len(data.Clauses)-1]
					last.Ifs = append(last.Ifs, cond)
				}
				n.Children = append(n.Children, cond)
			}
		}
	}
	return n
}
