// Package extract is the concurrent extraction engine: it partitions the
// spot domain into chunks, fans the chunks out to workers, and drives
// select → filter → encode → route for every spot.
package extract

import (
	"fmt"
	"strconv"
	"strings"

	"SraDump/pkg/archive"
)

// Selection is the user-configured segment include set. The zero value (or
// "all") selects every segment in archive order; an explicit list selects
// exactly those indices in the order given, which is what keeps paired-end
// segments adjacent in the output.
type Selection struct {
	All     bool
	Indices []int
}

// ParseSelection parses the -I flag value ("", "all", or "1,0,...").
func ParseSelection(s string) (Selection, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "all" {
		return Selection{All: true}, nil
	}
	var sel Selection
	for _, part := range strings.Split(s, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || idx < 0 {
			return Selection{}, fmt.Errorf("invalid segment index %q", part)
		}
		sel.Indices = append(sel.Indices, idx)
	}
	return sel, nil
}

// InvalidSegmentIndexError reports a requested segment index beyond the
// spot's segment count.
type InvalidSegmentIndexError struct {
	Index int
	Count int
}

func (e *InvalidSegmentIndexError) Error() string {
	return fmt.Sprintf("segment index %d out of range (spot has %d segments)", e.Index, e.Count)
}

// Select resolves the emission order for one spot. Selection order is
// preserved; indices are never renumbered. With skipTechnical, technical
// segments are removed after the include set is applied and their indices
// returned in droppedTech for per-segment accounting.
func (sel Selection) Select(layout []archive.SegmentInfo, skipTechnical bool) (keep, droppedTech []int, err error) {
	pick := func(idx int) {
		if skipTechnical && !layout[idx].Biological {
			droppedTech = append(droppedTech, idx)
			return
		}
		keep = append(keep, idx)
	}

	if sel.All {
		for i := range layout {
			pick(i)
		}
		return keep, droppedTech, nil
	}
	for _, idx := range sel.Indices {
		if idx >= len(layout) {
			return nil, nil, &InvalidSegmentIndexError{Index: idx, Count: len(layout)}
		}
		pick(idx)
	}
	return keep, droppedTech, nil
}
