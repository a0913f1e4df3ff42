package rules

import (
	"fmt"
	"strconv"

	"github.com/mentorlint/mentor/pkg/analysis"
	"github.com/mentorlint/mentor/pkg/pyast"
)

// SingleIterationLoop flags loops that cannot repeat: a for over a range
// whose constant bounds produce at most one value, a while whose
// condition is a constant false, and a while-true whose body breaks
// immediately. Each runs zero or one times, so the loop syntax only
// obscures the straight-line code it wraps.
type SingleIterationLoop struct{}

func (SingleIterationLoop) ID() string { return "single-iteration-loop" }

func (r SingleIterationLoop) Check(f *analysis.File) []Finding {
	var out []Finding
	pyast.Walk(f.Module, func(n *pyast.Node) bool {
		switch n.Kind {
		case pyast.KindFor:
			if fd, ok := r.checkFor(f, n); ok {
				out = append(out, fd)
			}
		case pyast.KindWhile:
			if fd, ok := r.checkWhile(f, n); ok {
				out = append(out, fd)
			}
		}
		return true
	})
	return out
}

func (r SingleIterationLoop) checkFor(f *analysis.File, n *pyast.Node) (Finding, bool) {
	iter := n.Loop.Iter
	count, ok := rangeLength(f, iter)
	if !ok || count > 1 {
		return Finding{}, false
	}
	src := string(f.Source[iter.Span.StartByte:iter.Span.EndByte])
	msg := fmt.Sprintf("loop over %s iterates exactly once", src)
	if count == 0 {
		msg = fmt.Sprintf("loop over %s never iterates", src)
	}
	return Finding{
		Rule:     r.ID(),
		Severity: SeverityWarning,
		Path:     f.Path,
		Span:     iter.Span,
		Message:  msg,
		Params:   map[string]string{"iterations": strconv.FormatInt(count, 10)},
	}, true
}

func (r SingleIterationLoop) checkWhile(f *analysis.File, n *pyast.Node) (Finding, bool) {
	truthy, known := constTruth(n.Loop.Cond)
	if !known {
		return Finding{}, false
	}
	if !truthy {
		return Finding{
			Rule:     r.ID(),
			Severity: SeverityWarning,
			Path:     f.Path,
			Span:     n.Loop.Cond.Span,
			Message:  "the while condition is always false; the body never runs",
			Params:   map[string]string{"iterations": "0"},
		}, true
	}
	if len(n.Loop.Body) > 0 && n.Loop.Body[0].Kind == pyast.KindBreak {
		return Finding{
			Rule:     r.ID(),
			Severity: SeverityWarning,
			Path:     f.Path,
			Span:     n.Loop.Cond.Span,
			Message:  "the condition is always true and the body breaks immediately; the loop runs once",
			Params:   map[string]string{"iterations": "1"},
		}, true
	}
	return Finding{}, false
}

// rangeLength evaluates a call to the builtin range with constant integer
// arguments. The boolean is false for anything else: a shadowed range, a
// non-range iterable, dynamic arguments, or a zero step.
func rangeLength(f *analysis.File, iter *pyast.Node) (int64, bool) {
	if iter == nil || iter.Kind != pyast.KindCall || iter.Call == nil {
		return 0, false
	}
	callee := iter.Call.Func
	if callee == nil || callee.Kind != pyast.KindName || callee.Text != "range" {
		return 0, false
	}
	if b, _ := f.Scopes.ResolveUse(callee); b != nil {
		return 0, false
	}
	if len(iter.Call.Keywords) > 0 {
		return 0, false
	}

	args := make([]int64, 0, 3)
	for _, a := range iter.Call.Args {
		v, ok := constInt(a)
		if !ok {
			return 0, false
		}
		args = append(args, v)
	}
	var start, stop, step int64
	switch len(args) {
	case 1:
		start, stop, step = 0, args[0], 1
	case 2:
		start, stop, step = args[0], args[1], 1
	case 3:
		start, stop, step = args[0], args[1], args[2]
		if step == 0 {
			return 0, false
		}
	default:
		return 0, false
	}
	if step > 0 {
		if stop <= start {
			return 0, true
		}
		return (stop - start + step - 1) / step, true
	}
	if stop >= start {
		return 0, true
	}
	return (start - stop - step - 1) / -step, true
}

// constInt evaluates an integer literal, unary plus and minus included.
// Base 0 parsing accepts Python's hex, octal, binary, and underscore
// forms unchanged.
func constInt(n *pyast.Node) (int64, bool) {
	if n == nil {
		return 0, false
	}
	switch n.Kind {
	case pyast.KindLiteralInt:
		v, err := strconv.ParseInt(n.Text, 0, 64)
		return v, err == nil
	case pyast.KindUnaryOp:
		v, ok := constInt(n.Op.Operand)
		if !ok {
			return 0, false
		}
		switch n.Op.Op {
		case "-":
			return -v, true
		case "+":
			return v, true
		}
	}
	return 0, false
}

// constTruth reports a literal condition's truth value. The second result
// is false when the condition is not a constant the rule understands.
func constTruth(n *pyast.Node) (bool, bool) {
	if n == nil {
		return false, false
	}
	switch n.Kind {
	case pyast.KindLiteralBool:
		return n.Text == "True", true
	case pyast.KindLiteralNone:
		return false, true
	case pyast.KindLiteralInt:
		v, ok := constInt(n)
		return v != 0, ok
	case pyast.KindLiteralFloat:
		v, err := strconv.ParseFloat(n.Text, 64)
		return v != 0, err == nil
	case pyast.KindLiteralStr:
		// Interpolations make the value dynamic.
		if len(n.Children) > 0 {
			return false, false
		}
		switch n.Text {
		case `""`, "''", `""""""`, "''''''":
			return false, true
		}
		return true, true
	case pyast.KindList, pyast.KindTuple, pyast.KindDict, pyast.KindSet:
		return len(n.Children) > 0, true
	}
	return false, false
}
