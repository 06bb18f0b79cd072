// Package encoder turns a spot's selected segments into output records.
// Encoders are pure: same spot in, same bytes out, no shared state.
package encoder

import (
	"fmt"
	"strconv"

	"github.com/liserjrqlxue/DNA/pkg/util"

	"SraDump/pkg/archive"
)

// Format is the text record format.
type Format int

const (
	Fastq Format = iota
	Fasta
)

// ParseFormat maps the single-letter CLI value to a format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "q", "":
		return Fastq, nil
	case "a":
		return Fasta, nil
	}
	return Fastq, fmt.Errorf("unknown format %q (use q or a)", s)
}

// Ext returns the conventional filename extension.
func (f Format) Ext() string {
	if f == Fasta {
		return "fa"
	}
	return "fq"
}

// Record is one encoded record tagged with the archive segment index it came
// from. The engine maps segment index to sink.
type Record struct {
	Seg  int
	Data []byte
}

// MalformedError marks a spot whose payload cannot be encoded. The spot is
// skipped and counted, never fatal.
type MalformedError struct {
	Spot   uint64
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed spot %d: %s", e.Spot, e.Reason)
}

// Text encodes one framed record per selected segment.
//
// Identifiers are synthesized as <name>.<spot>.<segment>; stable and
// reproducible for the same archive, spot and segment, and deliberately not
// matching the identifiers of the reference extraction tools.
type Text struct {
	Name    string
	Format  Format
	RevComp bool
}

// Encode renders segs (already selected, in selection order) for one spot.
func (t *Text) Encode(spot uint64, segs []archive.Segment) ([]Record, error) {
	records := make([]Record, 0, len(segs))
	for _, seg := range segs {
		bases := seg.Bases
		quals := seg.Quals
		if t.Format == Fastq {
			if quals == nil {
				return nil, &MalformedError{Spot: spot, Reason: "missing qualities"}
			}
			if len(quals) != len(bases) {
				return nil, &MalformedError{
					Spot:   spot,
					Reason: fmt.Sprintf("quality length %d != base length %d", len(quals), len(bases)),
				}
			}
		}
		if t.RevComp {
			bases = []byte(util.ReverseComplement(string(bases)))
			if quals != nil {
				rq := make([]byte, len(quals))
				copy(rq, quals)
				quals = util.Reverse(rq)
			}
		}

		buf := make([]byte, 0, len(bases)*2+64)
		if t.Format == Fasta {
			buf = append(buf, '>')
		} else {
			buf = append(buf, '@')
		}
		buf = t.appendID(buf, spot, seg.Info.Index)
		buf = append(buf, '\n')
		buf = append(buf, bases...)
		buf = append(buf, '\n')
		if t.Format == Fastq {
			buf = append(buf, '+', '\n')
			buf = append(buf, quals...)
			buf = append(buf, '\n')
		}
		records = append(records, Record{Seg: seg.Info.Index, Data: buf})
	}
	return records, nil
}

func (t *Text) appendID(buf []byte, spot uint64, seg int) []byte {
	buf = append(buf, t.Name...)
	buf = append(buf, '.')
	buf = strconv.AppendUint(buf, spot, 10)
	buf = append(buf, '.')
	buf = strconv.AppendInt(buf, int64(seg), 10)
	return buf
}
