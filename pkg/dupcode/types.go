package dupcode

import "github.com/mentorlint/mentor/pkg/pyast"

// Granularity names the syntactic level a candidate was carved from.
type Granularity string

const (
	IfBranches Granularity = "if-branches"  // bodies of one if/elif/else chain
	IfSequence Granularity = "if-sequence"  // consecutive sibling if statements
	LoopBody   Granularity = "loop-body"    // for/while bodies anywhere in the file
	CallArgs   Granularity = "call-args"    // consecutive calls of one callee
)

// String returns the string representation.
func (g Granularity) String() string {
	return string(g)
}

// Instance is one occurrence inside a cluster: the original statements and
// where they live.
type Instance struct {
	Nodes      []*pyast.Node `json:"-"`
	Span       pyast.Span    `json:"span"`
	Hash       uint64        `json:"hash"`
	Statements int           `json:"statements"`
}

// SuggestionKind distinguishes loop-refactor shapes.
type SuggestionKind string

const (
	SuggestRange      SuggestionKind = "range"
	SuggestCollection SuggestionKind = "collection"
)

// Suggestion proposes replacing a cluster's occurrences with one loop. For
// SuggestRange the bounds follow Python range semantics (stop excluded);
// Values holds the original differing texts in document order.
type Suggestion struct {
	Kind     SuggestionKind `json:"kind"`
	Iterable string         `json:"iterable"`
	Values   []string       `json:"values"`
	Start    int64          `json:"start,omitempty"`
	Stop     int64          `json:"stop,omitempty"`
	Step     int64          `json:"step,omitempty"`
}

// Cluster groups structurally matching candidates. Similarity is 1.0 when
// every member shares one normalized form; partial clusters carry the
// average pairwise score. Subject is the governing statement for grouped
// granularities (the if chain for IfBranches), nil otherwise; GroupSize is
// the total number of candidates the group offered, so a caller can tell
// "two of five branches" from "all branches".
type Cluster struct {
	Granularity Granularity `json:"granularity"`
	Instances   []Instance  `json:"instances"`
	Similarity  float64     `json:"similarity"`
	// Identical means the members match literal for literal and name for
	// name, not just in shape.
	Identical   bool        `json:"identical"`
	Fingerprint string      `json:"fingerprint"`
	Suggestion  *Suggestion `json:"suggestion,omitempty"`
	Subject     *pyast.Node `json:"-"`
	GroupSize   int         `json:"group_size"`
}

// Options tunes detection.
type Options struct {
	// Threshold is the minimum similarity for partial clusters, in [0,1].
	Threshold float64
	// MinGroupSize is the smallest reported cluster; never below 2.
	MinGroupSize int
}

// DefaultOptions returns the detection defaults.
func DefaultOptions() Options {
	return Options{
		Threshold:    0.8,
		MinGroupSize: 2,
	}
}

func (o Options) sanitized() Options {
	if o.Threshold <= 0 || o.Threshold > 1 {
		o.Threshold = DefaultOptions().Threshold
	}
	if o.MinGroupSize < 2 {
		o.MinGroupSize = 2
	}
	return o
}
