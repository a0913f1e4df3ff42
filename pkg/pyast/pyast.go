// Package pyast provides an immutable, typed view over a tree-sitter Python
// parse tree. Every node carries a Kind tag; consumers dispatch with a switch
// on Kind and read the typed role data for that kind instead of probing
// tree-sitter node types. The view never mutates the underlying tree and is
// built fresh per file.
package pyast

import (
	"fmt"
)

// Kind identifies the syntactic category of a node.
type Kind uint8

const (
	KindUnknown Kind = iota

	// Scopes and definitions.
	KindModule
	KindFunctionDef
	KindLambda
	KindClassDef

	// Compound statements.
	KindIf
	KindFor
	KindWhile
	KindTry
	KindHandler
	KindWith
	KindMatch

	// Simple statements.
	KindReturn
	KindRaise
	KindBreak
	KindContinue
	KindPass
	KindGlobal
	KindNonlocal
	KindImport
	KindDelete
	KindAssert
	KindExprStmt
	KindAssign
	KindAugAssign

	// Expressions.
	KindNamedExpr
	KindCall
	KindName
	KindAttribute
	KindSubscript
	KindSlice
	KindLiteralInt
	KindLiteralFloat
	KindLiteralStr
	KindLiteralBool
	KindLiteralNone
	KindLiteralEllipsis
	KindList
	KindTuple
	KindDict
	KindSet
	KindPair
	KindListComp
	KindSetComp
	KindDictComp
	KindGeneratorExp
	KindBinaryOp
	KindUnaryOp
	KindBoolOp
	KindCompareOp
	KindCondExpr
	KindAwait
	KindYield
	KindStarred
	KindKeywordArg
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindModule:          "module",
	KindFunctionDef:     "function-def",
	KindLambda:          "lambda",
	KindClassDef:        "class-def",
	KindIf:              "if",
	KindFor:             "for",
	KindWhile:           "while",
	KindTry:             "try",
	KindHandler:         "handler",
	KindWith:            "with",
	KindMatch:           "match",
	KindReturn:          "return",
	KindRaise:           "raise",
	KindBreak:           "break",
	KindContinue:        "continue",
	KindPass:            "pass",
	KindGlobal:          "global",
	KindNonlocal:        "nonlocal",
	KindImport:          "import",
	KindDelete:          "delete",
	KindAssert:          "assert",
	KindExprStmt:        "expr-stmt",
	KindAssign:          "assign",
	KindAugAssign:       "aug-assign",
	KindNamedExpr:       "named-expr",
	KindCall:            "call",
	KindName:            "name",
	KindAttribute:       "attribute",
	KindSubscript:       "subscript",
	KindSlice:           "slice",
	KindLiteralInt:      "int",
	KindLiteralFloat:    "float",
	KindLiteralStr:      "str",
	KindLiteralBool:     "bool",
	KindLiteralNone:     "none",
	KindLiteralEllipsis: "ellipsis",
	KindList:            "list",
	KindTuple:           "tuple",
	KindDict:            "dict",
	KindSet:             "set",
	KindPair:            "pair",
	KindListComp:        "list-comp",
	KindSetComp:         "set-comp",
	KindDictComp:        "dict-comp",
	KindGeneratorExp:    "generator-exp",
	KindBinaryOp:        "binary-op",
	KindUnaryOp:         "unary-op",
	KindBoolOp:          "bool-op",
	KindCompareOp:       "compare-op",
	KindCondExpr:        "cond-expr",
	KindAwait:           "await",
	KindYield:           "yield",
	KindStarred:         "starred",
	KindKeywordArg:      "keyword-arg",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Span is a half-open source range. Lines are 1-based, columns 0-based.
type Span struct {
	StartLine uint32 `json:"start_line"`
	StartCol  uint32 `json:"start_col"`
	EndLine   uint32 `json:"end_line"`
	EndCol    uint32 `json:"end_col"`
	StartByte uint32 `json:"-"`
	EndByte   uint32 `json:"-"`
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}

// Node is one element of the adapted tree. ID is the node's preorder index
// within its file, unique and stable for a given source text. Text carries
// raw source for leaves (names, literals, operators). Children lists all
// adapted named children in source order; the typed role fields below give
// structured access for composite kinds and are nil for kinds that do not
// use them.
type Node struct {
	Kind     Kind
	ID       uint32
	Span     Span
	Text     string
	Parent   *Node
	Children []*Node

	Fn      *FuncData
	Class   *ClassData
	If      *IfData
	Loop    *LoopData
	Try     *TryData
	Handler *Handler
	With    *WithData
	Assign  *AssignData
	Call    *CallData
	Comp    *CompData
	Op      *OpData
	Cond    *CondData
	Import  *ImportData
}

// Param is one formal parameter of a function or lambda.
type Param struct {
	Name       string
	Node       *Node // the identifier
	Annotation *Node // nil when the parameter is untyped
	Default    *Node // nil when the parameter has no default
}

// FuncData describes function definitions and lambdas.
type FuncData struct {
	Name       string
	Params     []Param
	Returns    *Node
	Body       []*Node
	Decorators []*Node
	IsLambda   bool
	IsAsync    bool
}

// ClassData describes class definitions.
type ClassData struct {
	Name       string
	Bases      []*Node
	Body       []*Node
	Decorators []*Node
}

// ElifClause is one elif arm of an if statement.
type ElifClause struct {
	Cond *Node
	Body []*Node
}

// IfData describes an if statement with all of its arms.
type IfData struct {
	Cond  *Node
	Then  []*Node
	Elifs []ElifClause
	Else  []*Node
}

// LoopData describes for and while loops. Target and Iter are set for
// for loops, Cond for while loops.
type LoopData struct {
	Target *Node
	Iter   *Node
	Cond   *Node
	Body   []*Node
	Else   []*Node
}

// Handler is one except clause. Clause is the KindHandler node spanning
// the clause; control-flow construction places it at handler entry so the
// as-name binding has a statement position.
type Handler struct {
	Clause *Node
	Type   *Node // exception class expression, nil for a bare except
	Name   string
	Node   *Node // the as-name identifier, nil when absent
	Body   []*Node
}

// TryData describes a try statement.
type TryData struct {
	Body     []*Node
	Handlers []*Handler
	Else     []*Node
	Finally  []*Node
}

// WithItem is one context manager of a with statement.
type WithItem struct {
	Value  *Node
	Target *Node // as-target, nil when absent
}

// WithData describes a with statement.
type WithData struct {
	Items []WithItem
	Body  []*Node
}

// AssignData describes assignment forms: plain assignment, annotated
// assignment, augmented assignment, and the walrus operator. Op holds the
// augmented operator text ("+=", "-=", ...) and is empty otherwise.
type AssignData struct {
	Targets    []*Node
	Value      *Node // nil for a bare annotation like "x: int"
	Op         string
	Annotation *Node
}

// Keyword is a name=value argument of a call.
type Keyword struct {
	Name  string
	Value *Node
}

// CallData describes a call expression.
type CallData struct {
	Func     *Node
	Args     []*Node
	Keywords []Keyword
}

// CompClause is one "for target in iter [if cond]*" clause of a
// comprehension.
type CompClause struct {
	Target *Node
	Iter   *Node
	Ifs    []*Node
}

// CompData describes list/set/dict comprehensions and generator
// expressions. For dict comprehensions Element is the pair node.
type CompData struct {
	Element *Node
	Clauses []CompClause
}

// OpData describes operator expressions. Binary and boolean operators use
// Left/Right, unary operators use Operand, comparison chains use Operands.
type OpData struct {
	Op       string
	Left     *Node
	Right    *Node
	Operand  *Node
	Operands []*Node
}

// CondData describes a conditional expression "a if cond else b".
type CondData struct {
	Cond *Node
	Then *Node
	Else *Node
}

// ImportedName is one local binding introduced by an import statement.
type ImportedName struct {
	Local string
	Node  *Node
}

// ImportData describes the names an import statement binds. A wildcard
// import binds an unknowable set.
type ImportData struct {
	Names    []ImportedName
	Wildcard bool
}

// TreeError reports a structurally invalid parse tree. Analysis of the file
// stops, but the error is a value: a batch over many files carries on.
type TreeError struct {
	Path string
	Span Span
	Msg  string
}

func (e *TreeError) Error() string {
	return fmt.Sprintf("%s: malformed syntax tree at %s: %s", e.Path, e.Span, e.Msg)
}

// IsStatementKind reports whether the kind appears in statement position.
func IsStatementKind(k Kind) bool {
	switch k {
	case KindFunctionDef, KindClassDef,
		KindIf, KindFor, KindWhile, KindTry, KindWith, KindMatch,
		KindReturn, KindRaise, KindBreak, KindContinue, KindPass,
		KindGlobal, KindNonlocal, KindImport, KindDelete, KindAssert,
		KindExprStmt, KindAssign, KindAugAssign:
		return true
	default:
		return false
	}
}

// IsScopeKind reports whether the kind introduces a new lexical scope.
func IsScopeKind(k Kind) bool {
	switch k {
	case KindModule, KindFunctionDef, KindLambda, KindClassDef,
		KindListComp, KindSetComp, KindDictComp, KindGeneratorExp:
		return true
	default:
		return false
	}
}

// Walk traverses the adapted tree in preorder. Returning false from fn
// stops descent below the node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// EnclosingStatement walks up parent links to the nearest node in statement
// position. Returns nil if n is not inside a statement (e.g. the module).
func (n *Node) EnclosingStatement() *Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if IsStatementKind(cur.Kind) {
			return cur
		}
	}
	return nil
}
