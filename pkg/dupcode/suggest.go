package dupcode

import (
	"fmt"
	"strconv"
	"strings"
)

// refineExact inspects an equal-hash cluster slot by slot. Zero differing
// slots means the members are identical outright. Exactly one differing
// literal slot turns the cluster into a loop suggestion: a range when the
// values form an integer progression, a collection literal when they are
// merely distinct. Groups of at most two members spanning at most two
// statements are left alone, a loop would not shorten them.
func refineExact(members []*candidate) (bool, *Suggestion) {
	diffs := differingSlots(members)
	if len(diffs) == 0 {
		return true, nil
	}
	if len(members) <= 2 && len(members[0].stmtHashes) <= 2 {
		return false, nil
	}
	if len(diffs) != 1 {
		return false, nil
	}
	pos := diffs[0]
	if strings.HasPrefix(members[0].slots[pos].key, "VAR") {
		return false, nil
	}
	values := slotValues(members, pos)
	if args, ok := toRangeArgs(values); ok {
		return false, &Suggestion{
			Kind:     SuggestRange,
			Iterable: renderRange(args),
			Values:   values,
			Start:    args.start,
			Stop:     args.stop,
			Step:     args.step,
		}
	}
	if !allDistinct(values) {
		return false, nil
	}
	return false, &Suggestion{
		Kind:     SuggestCollection,
		Iterable: "[" + strings.Join(values, ", ") + "]",
		Values:   values,
	}
}

// differingSlots returns positions whose source text varies across the
// members. Equal hashes imply position-aligned slot streams, and repeat
// occurrences of one variable carry the same name, so each placeholder key
// is checked at its first occurrence only.
func differingSlots(members []*candidate) []int {
	first := members[0]
	seen := make(map[string]bool, len(first.slots))
	var diffs []int
	for i, s := range first.slots {
		if seen[s.key] {
			continue
		}
		seen[s.key] = true
		for _, m := range members[1:] {
			if m.slots[i].text != s.text {
				diffs = append(diffs, i)
				break
			}
		}
	}
	return diffs
}

func slotValues(members []*candidate, pos int) []string {
	values := make([]string, len(members))
	for i, m := range members {
		values[i] = m.slots[pos].text
	}
	return values
}

type rangeArgs struct {
	start, stop, step int64
}

// toRangeArgs reports whether the values form an arithmetic progression of
// integers. Stop lands one past the final value in the step direction, the
// way a half-open Python range spells it.
func toRangeArgs(values []string) (rangeArgs, bool) {
	nums := make([]int64, len(values))
	for i, v := range values {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return rangeArgs{}, false
		}
		nums[i] = n
	}
	step := nums[1] - nums[0]
	if step == 0 {
		return rangeArgs{}, false
	}
	for i := 2; i < len(nums); i++ {
		if nums[i]-nums[i-1] != step {
			return rangeArgs{}, false
		}
	}
	last := nums[len(nums)-1]
	stop := last + 1
	if step < 0 {
		stop = last - 1
	}
	return rangeArgs{start: nums[0], stop: stop, step: step}, true
}

// renderRange drops arguments that match the Python defaults.
func renderRange(a rangeArgs) string {
	switch {
	case a.step != 1:
		return fmt.Sprintf("range(%d, %d, %d)", a.start, a.stop, a.step)
	case a.start != 0:
		return fmt.Sprintf("range(%d, %d)", a.start, a.stop)
	default:
		return fmt.Sprintf("range(%d)", a.stop)
	}
}

func allDistinct(values []string) bool {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
