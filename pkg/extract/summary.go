package extract

import (
	"fmt"
	"io"

	"SraDump/pkg/sink"
)

// Summary holds the aggregate counters of a run. Workers accumulate into
// private copies; the engine merges them once after the join, so nothing
// here is contended on the hot path.
type Summary struct {
	Spots uint64
	Reads uint64

	ReadsPerSegment []uint64
	FilteredSize    []uint64
	FilteredType    []uint64

	FilteredMotif uint64
	SkippedReader uint64
	Malformed     uint64

	Aborted bool
	Err     error
}

func grow(s []uint64, idx int) []uint64 {
	for len(s) <= idx {
		s = append(s, 0)
	}
	return s
}

func (s *Summary) incSpot() { s.Spots++ }

func (s *Summary) incRead(seg int) {
	s.Reads++
	s.ReadsPerSegment = grow(s.ReadsPerSegment, seg)
	s.ReadsPerSegment[seg]++
}

func (s *Summary) incFilterSize(seg int) {
	s.FilteredSize = grow(s.FilteredSize, seg)
	s.FilteredSize[seg]++
}

func (s *Summary) incFilterType(seg int) {
	s.FilteredType = grow(s.FilteredType, seg)
	s.FilteredType[seg]++
}

// Merge folds o into s.
func (s *Summary) Merge(o *Summary) {
	s.Spots += o.Spots
	s.Reads += o.Reads
	s.FilteredMotif += o.FilteredMotif
	s.SkippedReader += o.SkippedReader
	s.Malformed += o.Malformed
	mergeVec(&s.ReadsPerSegment, o.ReadsPerSegment)
	mergeVec(&s.FilteredSize, o.FilteredSize)
	mergeVec(&s.FilteredType, o.FilteredType)
}

func mergeVec(dst *[]uint64, src []uint64) {
	*dst = grow(*dst, len(src)-1)
	for i, v := range src {
		(*dst)[i] += v
	}
}

// Skipped is the number of spots dropped for per-spot errors.
func (s *Summary) Skipped() uint64 { return s.SkippedReader + s.Malformed }

// Print writes the human-readable run report, including per-sink byte and
// loss counts.
func (s *Summary) Print(w io.Writer, sinks []sink.Stats) {
	fmt.Fprintf(w, "Number of spots processed: %d\n", s.Spots)
	fmt.Fprintf(w, "Number of reads written: %d\n", s.Reads)
	printVec(w, "Reads written per segment:", s.ReadsPerSegment)
	printVec(w, "Filtered reads by size:", s.FilteredSize)
	printVec(w, "Filtered reads by type:", s.FilteredType)
	if s.FilteredMotif > 0 {
		fmt.Fprintf(w, "Spots filtered by motif: %d\n", s.FilteredMotif)
	}
	for _, st := range sinks {
		fmt.Fprintf(w, "Sink %s: %d records, %d bytes", st.Path, st.Records, st.Bytes)
		if st.Lost > 0 {
			fmt.Fprintf(w, " (%d records lost: %v)", st.Lost, st.Err)
		}
		fmt.Fprintln(w)
	}
	if s.Aborted {
		fmt.Fprintf(w, "Aborted after fatal error: %v\n", s.Err)
	} else if s.Skipped() > 0 {
		fmt.Fprintf(w, "Completed with %d skipped spots (%d reader errors, %d malformed)\n",
			s.Skipped(), s.SkippedReader, s.Malformed)
	}
}

func printVec(w io.Writer, title string, vec []uint64) {
	total := uint64(0)
	for _, v := range vec {
		total += v
	}
	if total == 0 {
		return
	}
	fmt.Fprintln(w, title)
	for i, v := range vec {
		fmt.Fprintf(w, "  Segment %d: %d\n", i, v)
	}
}
