// Package binseq is a compact binary record format for re-encoded spots.
// A record carries a primary segment and, in paired mode, an extended
// segment, with bases packed two bits each and no human-readable
// identifiers. Two flavors exist: fixed (all records share the header
// lengths) and variable (per-record lengths, optional qualities).
package binseq

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"SraDump/pkg/archive"
)

var magic = [4]byte{'S', 'B', 'Q', '1'}

// Flags of the container header.
type Flags uint8

const (
	FlagPaired Flags = 1 << iota
	FlagQual
	FlagVariable
)

// Header is written once at the start of a container.
type Header struct {
	Flags       Flags
	PrimaryLen  uint32
	ExtendedLen uint32
}

func (h Header) Paired() bool   { return h.Flags&FlagPaired != 0 }
func (h Header) HasQual() bool  { return h.Flags&FlagQual != 0 }
func (h Header) Variable() bool { return h.Flags&FlagVariable != 0 }

// Ext returns the conventional filename extension for the flavor.
func (h Header) Ext() string {
	if h.Variable() {
		return "vbq"
	}
	return "bq"
}

const headerSize = 4 + 1 + 1 + 4 + 4 // magic, version, flags, plen, xlen

// Append serializes the header.
func (h Header) Append(buf []byte) []byte {
	buf = append(buf, magic[:]...)
	buf = append(buf, 1, byte(h.Flags))
	buf = binary.LittleEndian.AppendUint32(buf, h.PrimaryLen)
	buf = binary.LittleEndian.AppendUint32(buf, h.ExtendedLen)
	return buf
}

// ReadHeader parses and validates a container header.
func ReadHeader(r io.Reader) (Header, error) {
	var raw [headerSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Header{}, err
	}
	if [4]byte(raw[:4]) != magic {
		return Header{}, errors.New("not a binseq container")
	}
	if raw[4] != 1 {
		return Header{}, fmt.Errorf("unsupported binseq version %d", raw[4])
	}
	return Header{
		Flags:       Flags(raw[5]),
		PrimaryLen:  binary.LittleEndian.Uint32(raw[6:10]),
		ExtendedLen: binary.LittleEndian.Uint32(raw[10:14]),
	}, nil
}

// Pack encodes bases at two bits each (A=0 C=1 G=2 T=3). Bases outside
// ACGT are substituted with A deterministically; the substitution count is
// returned so callers can surface it.
func Pack(bases []byte) ([]byte, int) {
	packed := make([]byte, (len(bases)+3)/4)
	subs := 0
	for i, b := range bases {
		var code byte
		switch b {
		case 'A', 'a':
			code = 0
		case 'C', 'c':
			code = 1
		case 'G', 'g':
			code = 2
		case 'T', 't':
			code = 3
		default:
			subs++
		}
		packed[i/4] |= code << uint((i%4)*2)
	}
	return packed, subs
}

// Unpack reverses Pack for n bases.
func Unpack(packed []byte, n int) []byte {
	bases := make([]byte, n)
	const acgt = "ACGT"
	for i := 0; i < n; i++ {
		code := packed[i/4] >> uint((i%4)*2) & 3
		bases[i] = acgt[code]
	}
	return bases
}

// EncodeRecord renders one record. primary and extended follow selection
// order; extended is ignored unless the header is paired. The returned
// buffer is a whole record, safe to hand to a sink as one atomic write.
// subs is the number of non-ACGT bases substituted across the record.
func EncodeRecord(h Header, primary, extended archive.Segment) (buf []byte, subs int, err error) {
	buf = make([]byte, 0, len(primary.Bases)/2+len(extended.Bases)/2+32)
	var n int
	buf, n, err = appendSegment(buf, h, primary, h.PrimaryLen)
	if err != nil {
		return nil, 0, err
	}
	subs += n
	if h.Paired() {
		buf, n, err = appendSegment(buf, h, extended, h.ExtendedLen)
		if err != nil {
			return nil, 0, err
		}
		subs += n
	}
	return buf, subs, nil
}

func appendSegment(buf []byte, h Header, seg archive.Segment, fixedLen uint32) ([]byte, int, error) {
	n := len(seg.Bases)
	if h.Variable() {
		buf = binary.AppendUvarint(buf, uint64(n))
	} else if uint32(n) != fixedLen {
		return nil, 0, fmt.Errorf("segment length %d != fixed record length %d", n, fixedLen)
	}
	packed, subs := Pack(seg.Bases)
	buf = append(buf, packed...)
	if h.HasQual() {
		if len(seg.Quals) != n {
			return nil, 0, fmt.Errorf("quality length %d != base length %d", len(seg.Quals), n)
		}
		buf = append(buf, seg.Quals...)
	}
	return buf, subs, nil
}

// Record is one decoded entry.
type Record struct {
	Primary  []byte
	Extended []byte
	PQual    []byte
	XQual    []byte
}

// Writer streams records into w, header first. Substituted accumulates the
// non-ACGT bases replaced across all written records.
type Writer struct {
	w io.Writer
	h Header

	Substituted uint64
}

func NewWriter(w io.Writer, h Header) (*Writer, error) {
	if _, err := w.Write(h.Append(nil)); err != nil {
		return nil, err
	}
	return &Writer{w: w, h: h}, nil
}

func (w *Writer) Write(primary, extended archive.Segment) error {
	buf, subs, err := EncodeRecord(w.h, primary, extended)
	if err != nil {
		return err
	}
	w.Substituted += uint64(subs)
	_, err = w.w.Write(buf)
	return err
}

// Reader decodes a container written by Writer.
type Reader struct {
	r *bufio.Reader
	h Header
}

func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	return &Reader{r: br, h: h}, nil
}

func (r *Reader) Header() Header { return r.h }

// Read returns the next record, io.EOF at end of container.
func (r *Reader) Read() (Record, error) {
	var rec Record
	var err error
	rec.Primary, rec.PQual, err = r.readSegment(r.h.PrimaryLen, true)
	if err != nil {
		return Record{}, err
	}
	if r.h.Paired() {
		rec.Extended, rec.XQual, err = r.readSegment(r.h.ExtendedLen, false)
		if err != nil {
			// a record must decode whole once its first byte was read
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return Record{}, err
		}
	}
	return rec, nil
}

func (r *Reader) readSegment(fixedLen uint32, first bool) (bases, quals []byte, err error) {
	n := uint64(fixedLen)
	if r.h.Variable() {
		n, err = binary.ReadUvarint(r.r)
		if err != nil {
			return nil, nil, err
		}
	} else if first {
		// fixed flavor has no per-record framing; detect end of stream here
		if _, err := r.r.Peek(1); err != nil {
			return nil, nil, err
		}
	}
	packed := make([]byte, (n+3)/4)
	if _, err := io.ReadFull(r.r, packed); err != nil {
		if errors.Is(err, io.EOF) && !first {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, err
	}
	bases = Unpack(packed, int(n))
	if r.h.HasQual() {
		quals = make([]byte, n)
		if _, err := io.ReadFull(r.r, quals); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, nil, err
		}
	}
	return bases, quals, nil
}
