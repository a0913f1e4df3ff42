package rules

import (
	"fmt"
	"strconv"

	"github.com/mentorlint/mentor/pkg/analysis"
	"github.com/mentorlint/mentor/pkg/dupcode"
	"github.com/mentorlint/mentor/pkg/pyast"
)

// IdenticalIfBranches flags if statements whose branches do the same
// thing, literal values and names included. When every branch matches the
// condition has no effect at all.
type IdenticalIfBranches struct{}

func (IdenticalIfBranches) ID() string { return "identical-if-branches" }

func (r IdenticalIfBranches) Check(f *analysis.File) []Finding {
	var out []Finding
	for _, cl := range f.Clusters {
		if cl.Granularity != dupcode.IfBranches || !cl.Identical {
			continue
		}
		span := cl.Instances[0].Span
		msg := fmt.Sprintf("%d of %d branches of this if are identical", len(cl.Instances), cl.GroupSize)
		if len(cl.Instances) == cl.GroupSize && cl.Subject != nil {
			span = cl.Subject.Span
			msg = "all branches of this if are identical; the condition has no effect"
		}
		out = append(out, Finding{
			Rule:     r.ID(),
			Severity: SeverityWarning,
			Path:     f.Path,
			Span:     span,
			Message:  msg,
			Params: map[string]string{
				"branches": strconv.Itoa(len(cl.Instances)),
				"total":    strconv.Itoa(cl.GroupSize),
			},
		})
	}
	return out
}

// DuplicateToLoop reports repetitions whose only difference is a literal
// forming a range progression or a small collection, with the iterable
// that would replace them.
type DuplicateToLoop struct{}

func (DuplicateToLoop) ID() string { return "duplicate-sequence-to-loop" }

func (r DuplicateToLoop) Check(f *analysis.File) []Finding {
	var out []Finding
	for _, cl := range f.Clusters {
		if cl.Suggestion == nil {
			continue
		}
		out = append(out, Finding{
			Rule:     r.ID(),
			Severity: SeverityInfo,
			Path:     f.Path,
			Span:     clusterSpan(cl),
			Message: fmt.Sprintf("these %d repetitions differ in a single value; loop over %s instead",
				len(cl.Instances), cl.Suggestion.Iterable),
			Params: map[string]string{
				"iterable": cl.Suggestion.Iterable,
				"kind":     string(cl.Suggestion.Kind),
				"count":    strconv.Itoa(len(cl.Instances)),
			},
		})
	}
	return out
}

// DuplicateBlocks reports the structural duplication left over: clusters
// that neither read as identical if branches nor fold into a loop.
// Single-statement instances are too small to act on and stay quiet.
type DuplicateBlocks struct{}

func (DuplicateBlocks) ID() string { return "duplicate-blocks" }

func (r DuplicateBlocks) Check(f *analysis.File) []Finding {
	var out []Finding
	for _, cl := range f.Clusters {
		if cl.Suggestion != nil {
			continue
		}
		if cl.Granularity == dupcode.IfBranches && cl.Identical {
			continue
		}
		small := false
		for _, in := range cl.Instances {
			if in.Statements < 2 {
				small = true
				break
			}
		}
		if small {
			continue
		}
		out = append(out, Finding{
			Rule:     r.ID(),
			Severity: SeverityInfo,
			Path:     f.Path,
			Span:     cl.Instances[0].Span,
			Message: fmt.Sprintf("%d structurally similar %s blocks (similarity %.0f%%)",
				len(cl.Instances), cl.Granularity, cl.Similarity*100),
			Params: map[string]string{
				"count":       strconv.Itoa(len(cl.Instances)),
				"similarity":  strconv.FormatFloat(cl.Similarity, 'f', 2, 64),
				"fingerprint": cl.Fingerprint,
			},
		})
	}
	return out
}

// clusterSpan covers every instance of the cluster.
func clusterSpan(cl dupcode.Cluster) pyast.Span {
	sp := cl.Instances[0].Span
	for _, in := range cl.Instances[1:] {
		if in.Span.StartByte < sp.StartByte {
			sp.StartLine, sp.StartCol, sp.StartByte = in.Span.StartLine, in.Span.StartCol, in.Span.StartByte
		}
		if in.Span.EndByte > sp.EndByte {
			sp.EndLine, sp.EndCol, sp.EndByte = in.Span.EndLine, in.Span.EndCol, in.Span.EndByte
		}
	}
	return sp
}
