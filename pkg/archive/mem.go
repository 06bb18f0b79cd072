package archive

import (
	"errors"
	"fmt"
)

// MemSpot is one spot of a MemArchive. Segments are stored in archive order.
type MemSpot struct {
	Segments []Segment
}

// MemArchive is a synthetic in-memory archive. It backs the gob container
// format and every pipeline test. Fault injection: spots listed in BadSpots
// fail with ReaderError, and reaching FaultAt (when FaultAt >= 0) fails with
// FatalFault, mimicking archive-level corruption.
type MemArchive struct {
	Label string
	Spots []MemSpot

	BadSpots map[uint64]bool
	FaultAt  int64
}

// NewMemArchive returns an empty archive with fault injection disabled.
func NewMemArchive(label string) *MemArchive {
	return &MemArchive{
		Label:    label,
		BadSpots: make(map[uint64]bool),
		FaultAt:  -1,
	}
}

// AddSpot appends one spot and renumbers its segments in archive order.
func (m *MemArchive) AddSpot(segs ...Segment) {
	for i := range segs {
		segs[i].Info.Index = i
		segs[i].Info.Length = len(segs[i].Bases)
	}
	m.Spots = append(m.Spots, MemSpot{Segments: segs})
}

func (m *MemArchive) Name() string { return m.Label }

func (m *MemArchive) SpotCount() uint64 { return uint64(len(m.Spots)) }

func (m *MemArchive) NewCursor() (Cursor, error) {
	return &memCursor{arch: m}, nil
}

func (m *MemArchive) Close() error { return nil }

type memCursor struct {
	arch *MemArchive
}

func (c *memCursor) check(spot uint64) error {
	m := c.arch
	if m.FaultAt >= 0 && spot >= uint64(m.FaultAt) {
		return &FatalFault{Spot: spot, Err: errors.New("simulated index corruption")}
	}
	if spot >= uint64(len(m.Spots)) {
		return &ReaderError{Spot: spot, Err: errors.New("spot index out of range")}
	}
	if m.BadSpots[spot] {
		return &ReaderError{Spot: spot, Err: errors.New("simulated malformed spot")}
	}
	return nil
}

func (c *memCursor) Layout(spot uint64) ([]SegmentInfo, error) {
	if err := c.check(spot); err != nil {
		return nil, err
	}
	segs := c.arch.Spots[spot].Segments
	layout := make([]SegmentInfo, len(segs))
	for i, s := range segs {
		layout[i] = s.Info
	}
	return layout, nil
}

func (c *memCursor) ReadSegment(spot uint64, seg int) (Segment, error) {
	if err := c.check(spot); err != nil {
		return Segment{}, err
	}
	segs := c.arch.Spots[spot].Segments
	if seg < 0 || seg >= len(segs) {
		return Segment{}, &ReaderError{Spot: spot, Err: fmt.Errorf("segment %d out of range", seg)}
	}
	return segs[seg], nil
}

func (c *memCursor) Close() error { return nil }
