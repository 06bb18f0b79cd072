// Package archive abstracts read access to a spot-oriented sequencing
// archive. The real indexed database format is owned by an external native
// library; everything downstream only depends on this interface, so the
// pipeline runs unchanged against the in-memory implementation used in tests
// and against the gob container format used for local files.
package archive

import (
	"fmt"
)

// SegmentInfo describes one sub-read of a spot without its payload.
type SegmentInfo struct {
	Index      int
	Biological bool
	Length     int
}

// Segment is one sub-read with base calls and optional phred+33 qualities.
// Quals is nil when the archive carries no quality stream.
type Segment struct {
	Info  SegmentInfo
	Bases []byte
	Quals []byte
}

// Archive is an open handle on a spot archive. SpotCount and Name are safe
// for concurrent use; per-spot reads go through cursors because not every
// backing implementation supports concurrent positional reads on one handle.
type Archive interface {
	Name() string
	SpotCount() uint64
	NewCursor() (Cursor, error)
	Close() error
}

// Cursor reads spots by index in [0, SpotCount). A cursor is owned by a
// single goroutine.
type Cursor interface {
	Layout(spot uint64) ([]SegmentInfo, error)
	ReadSegment(spot uint64, seg int) (Segment, error)
	Close() error
}

// OpenError reports a failure to open an archive. Always fatal, raised
// before any worker starts.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open archive %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// ReaderError reports a malformed spot. Recoverable: the spot is skipped
// and counted by the caller.
type ReaderError struct {
	Spot uint64
	Err  error
}

func (e *ReaderError) Error() string {
	return fmt.Sprintf("spot %d: %v", e.Spot, e.Err)
}

func (e *ReaderError) Unwrap() error { return e.Err }

// FatalFault reports archive-level corruption beyond single-spot recovery.
// It cancels the whole run.
type FatalFault struct {
	Spot uint64
	Err  error
}

func (e *FatalFault) Error() string {
	return fmt.Sprintf("archive fault at spot %d: %v", e.Spot, e.Err)
}

func (e *FatalFault) Unwrap() error { return e.Err }
