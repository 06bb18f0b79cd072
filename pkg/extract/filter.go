package extract

import (
	"github.com/cloudflare/ahocorasick"

	"SraDump/pkg/archive"
)

// Filter decides whether a spot survives after selection. Length filtering
// is evaluated on the selected-segment lengths only: combined mode keeps a
// spot when the lengths sum to at least MinLen, split mode requires every
// selected segment to reach MinLen on its own. MinLen 0 keeps everything.
type Filter struct {
	MinLen int
	Split  bool

	matcher *ahocorasick.Matcher
}

// NewFilter builds a filter; motifs, when non-empty, additionally restrict
// output to spots whose selected bases contain at least one motif.
func NewFilter(minLen int, split bool, motifs []string) Filter {
	f := Filter{MinLen: minLen, Split: split}
	if len(motifs) > 0 {
		f.matcher = ahocorasick.NewStringMatcher(motifs)
	}
	return f
}

// KeepLengths applies the minimum-length rule. A sum (or segment) exactly
// at MinLen is kept.
func (f Filter) KeepLengths(lengths []int) bool {
	if f.MinLen <= 0 {
		return true
	}
	if f.Split {
		for _, l := range lengths {
			if l < f.MinLen {
				return false
			}
		}
		return true
	}
	sum := 0
	for _, l := range lengths {
		sum += l
	}
	return sum >= f.MinLen
}

// MatchMotif reports whether any selected segment contains a configured
// motif. Always true when no motifs were configured.
func (f Filter) MatchMotif(segs []archive.Segment) bool {
	if f.matcher == nil {
		return true
	}
	for _, seg := range segs {
		if len(f.matcher.Match(seg.Bases)) > 0 {
			return true
		}
	}
	return false
}

// Range narrows the spot domain before partitioning: Skip spots are dropped
// from the front and Limit (when non-zero) caps how many spots are visited.
// Stopping is a soft limit enforced by the narrowed domain itself; workers
// holding chunks past the boundary simply never receive them.
type Range struct {
	Skip  uint64
	Limit uint64
}

// Narrow returns the half-open spot domain [start, end) within total.
func (r Range) Narrow(total uint64) (start, end uint64) {
	start = r.Skip
	if start > total {
		start = total
	}
	end = total
	if r.Limit > 0 && start+r.Limit < end {
		end = start + r.Limit
	}
	return start, end
}
