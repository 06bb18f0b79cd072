package binseq

import (
	"sync/atomic"

	"SraDump/pkg/archive"
	"SraDump/pkg/encoder"
)

// Encoder adapts the record format to the extraction pipeline. One spot
// becomes one record holding the primary segment and, in paired mode, the
// extended segment. Segments beyond the header's shape are rejected as
// malformed rather than silently dropped.
type Encoder struct {
	Header Header

	subs atomic.Uint64
}

// Substituted is the number of non-ACGT bases replaced so far. Safe to call
// concurrently with Encode.
func (e *Encoder) Substituted() uint64 { return e.subs.Load() }

func (e *Encoder) want() int {
	if e.Header.Paired() {
		return 2
	}
	return 1
}

// Encode renders one spot. segs arrive in selection order; the first is the
// primary segment, the second the extended one.
func (e *Encoder) Encode(spot uint64, segs []archive.Segment) ([]encoder.Record, error) {
	if len(segs) != e.want() {
		return nil, &encoder.MalformedError{
			Spot:   spot,
			Reason: "segment count does not match container shape",
		}
	}
	var extended archive.Segment
	if e.Header.Paired() {
		extended = segs[1]
	}
	buf, subs, err := EncodeRecord(e.Header, segs[0], extended)
	if err != nil {
		return nil, &encoder.MalformedError{Spot: spot, Reason: err.Error()}
	}
	if subs > 0 {
		e.subs.Add(uint64(subs))
	}
	return []encoder.Record{{Seg: segs[0].Info.Index, Data: buf}}, nil
}
