// Package sink owns every byte that leaves the pipeline: stdout, regular
// files, and named pipes, with optional compression. Many workers write
// concurrently; each sink serializes physical writes behind its own mutex so
// records are never interleaved mid-record.
package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	gzip "github.com/klauspost/pgzip"
	"golang.org/x/sys/unix"
)

// Compression selects the codec wrapped around a sink's destination.
// Codec state is per sink and never shared across goroutines.
type Compression int

const (
	Uncompressed Compression = iota
	Gzip
	Zstd
)

// ParseCompression maps the single-letter CLI value to a codec.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "u", "":
		return Uncompressed, nil
	case "g":
		return Gzip, nil
	case "z":
		return Zstd, nil
	}
	return Uncompressed, fmt.Errorf("unknown compression %q (use u, g or z)", s)
}

// Ext returns the filename suffix for the codec, empty when uncompressed.
func (c Compression) Ext() string {
	switch c {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	}
	return ""
}

// Stats is the per-sink slice of the run summary.
type Stats struct {
	Path    string
	Records uint64
	Bytes   uint64
	Lost    uint64
	Err     error
}

// Sink is one output destination. Opened before workers start (named pipes
// only create the fifo node up front; the write end opens lazily on the
// first record because open blocks until a reader attaches).
type Sink struct {
	mu   sync.Mutex
	path string
	pipe bool
	comp Compression

	open    func() (io.WriteCloser, error)
	w       io.Writer
	closers []io.Closer

	records uint64
	bytes   uint64
	lost    uint64
	err     error
}

// NewWriterSink wraps an already-open destination. Used for stdout and in
// tests.
func NewWriterSink(path string, wc io.WriteCloser, comp Compression) (*Sink, error) {
	s := &Sink{path: path, comp: comp}
	if err := s.attach(wc); err != nil {
		return nil, err
	}
	return s, nil
}

// FileSink creates path eagerly so that split-mode output files exist even
// when no record survives filtering (empties are removed after the run).
func FileSink(path string, comp Compression) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s := &Sink{path: path, comp: comp}
	if err := s.attach(f); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// PipeSink creates a fifo node at path. The write end is opened on the
// first record and blocks until a downstream reader attaches; no timeout is
// synthesized around that open, by contract with the caller.
func PipeSink(path string, comp Compression) (*Sink, error) {
	if err := unix.Mkfifo(path, 0o666); err != nil && !os.IsExist(err) {
		return nil, fmt.Errorf("mkfifo %s: %w", path, err)
	}
	s := &Sink{path: path, pipe: true, comp: comp}
	s.open = func() (io.WriteCloser, error) {
		return os.OpenFile(path, os.O_WRONLY, 0)
	}
	return s, nil
}

// Stdout buffers os.Stdout; Close flushes without closing the process
// stream.
func Stdout(comp Compression) (*Sink, error) {
	return NewWriterSink("stdout", stdoutCloser{bufio.NewWriterSize(os.Stdout, 1<<20)}, comp)
}

type stdoutCloser struct {
	*bufio.Writer
}

func (s stdoutCloser) Close() error { return s.Flush() }

// attach wires the compression stage in front of wc.
func (s *Sink) attach(wc io.WriteCloser) error {
	switch s.comp {
	case Gzip:
		gz := gzip.NewWriter(wc)
		s.w = gz
		s.closers = []io.Closer{gz, wc}
	case Zstd:
		enc, err := zstd.NewWriter(wc)
		if err != nil {
			return err
		}
		s.w = enc
		s.closers = []io.Closer{enc, wc}
	default:
		s.w = wc
		s.closers = []io.Closer{wc}
	}
	return nil
}

// write appends p under the sink lock. p must contain whole records only.
func (s *Sink) write(p []byte, records uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		s.lost += records
		return s.err
	}
	if s.w == nil {
		wc, err := s.open()
		if err != nil {
			s.err = err
			s.lost += records
			return err
		}
		if err := s.attach(wc); err != nil {
			wc.Close()
			s.err = err
			s.lost += records
			return err
		}
	}
	if _, err := s.w.Write(p); err != nil {
		s.err = err
		s.lost += records
		return err
	}
	s.bytes += uint64(len(p))
	s.records += records
	return nil
}

func (s *Sink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	s.w = nil
	if first != nil && s.err == nil {
		s.err = first
	}
	return first
}

func (s *Sink) stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Path: s.path, Records: s.records, Bytes: s.bytes, Lost: s.lost, Err: s.err}
}

// Router fans concurrent workers into the configured sinks. A write failure
// marks only the failing sink as closed; later records for it are dropped
// and counted as lost. With FailFast the first failure is escalated through
// the fatal hook instead.
type Router struct {
	sinks    []*Sink
	failFast bool

	fatalOnce sync.Once
	onFatal   func(error)
}

func NewRouter(sinks []*Sink, failFast bool) *Router {
	return &Router{sinks: sinks, failFast: failFast}
}

// OnFatal registers the escalation hook used in fail-fast mode.
func (r *Router) OnFatal(f func(error)) { r.onFatal = f }

func (r *Router) NumSinks() int { return len(r.sinks) }

// Write delivers whole records to sink id. records is the record count
// contained in p, used for loss accounting.
func (r *Router) Write(id int, p []byte, records uint64) error {
	if id < 0 || id >= len(r.sinks) {
		return fmt.Errorf("sink %d out of range", id)
	}
	if len(p) == 0 {
		return nil
	}
	err := r.sinks[id].write(p, records)
	if err != nil && r.failFast {
		r.fatalOnce.Do(func() {
			if r.onFatal != nil {
				r.onFatal(fmt.Errorf("sink %s: %w", r.sinks[id].path, err))
			}
		})
		return err
	}
	// contained: the sink is closed, others keep going
	return nil
}

// Close flushes and closes every sink once, after all workers joined.
func (r *Router) Close() error {
	var first error
	for _, s := range r.sinks {
		if err := s.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Stats snapshots per-sink counters.
func (r *Router) Stats() []Stats {
	out := make([]Stats, len(r.sinks))
	for i, s := range r.sinks {
		out[i] = s.stats()
	}
	return out
}

// RemoveEmpty deletes split-mode files that received no records, and fifo
// nodes, which are transient by nature.
func (r *Router) RemoveEmpty(keepEmpty bool) []string {
	var removed []string
	for _, s := range r.sinks {
		st := s.stats()
		if s.path == "stdout" {
			continue
		}
		if st.Records == 0 || s.pipe {
			if keepEmpty {
				continue
			}
			if err := os.Remove(s.path); err == nil {
				removed = append(removed, s.path)
			}
		}
	}
	return removed
}

// SplitPath builds the per-segment output path
// <outdir>/<prefix><segment>.<ext>[<comp-ext>].
func SplitPath(outdir, prefix string, seg int, ext string, comp Compression) string {
	return filepath.Join(outdir, fmt.Sprintf("%s%d.%s%s", prefix, seg, ext, comp.Ext()))
}

// BuildSplit opens one sink per listed segment id. With pipe set the paths
// are fifo nodes instead of regular files.
func BuildSplit(outdir, prefix string, segs []int, ext string, comp Compression, pipe bool) ([]*Sink, error) {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return nil, err
	}
	sinks := make([]*Sink, 0, len(segs))
	for _, seg := range segs {
		path := SplitPath(outdir, prefix, seg, ext, comp)
		var (
			s   *Sink
			err error
		)
		if pipe {
			s, err = PipeSink(path, comp)
		} else {
			s, err = FileSink(path, comp)
		}
		if err != nil {
			for _, open := range sinks {
				open.close()
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}
