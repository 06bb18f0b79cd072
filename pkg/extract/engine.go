package extract

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"SraDump/pkg/archive"
	"SraDump/pkg/encoder"
	"SraDump/pkg/sink"
)

// SpotEncoder renders one filtered spot into output records, pure given its
// inputs. Segments arrive in selection order.
type SpotEncoder interface {
	Encode(spot uint64, segs []archive.Segment) ([]encoder.Record, error)
}

// Config tunes one engine run.
type Config struct {
	Selection     Selection
	SkipTechnical bool
	Filter        Filter

	// Workers defaults to GOMAXPROCS; 0 or 1 degrades to a single
	// in-order worker.
	Workers int
	// ChunkSize overrides the computed chunk size when positive.
	ChunkSize int
	// FlushEvery is the spot interval between router flushes per worker.
	FlushEvery int
}

const defaultFlushEvery = 1024

// Engine drives the worker pool. Every worker owns its own archive cursor;
// the router is the only shared mutable state and serializes per sink.
type Engine struct {
	arch    archive.Archive
	enc     SpotEncoder
	router  *sink.Router
	sinkFor map[int]int
	cfg     Config

	stop     atomic.Bool
	fatalMu  sync.Mutex
	fatalErr error
}

// New builds an engine. sinkFor maps archive segment index to router sink
// id; segments missing from the map go to sink 0 (the combined stream).
func New(arch archive.Archive, enc SpotEncoder, router *sink.Router, sinkFor map[int]int, cfg Config) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.FlushEvery < 1 {
		cfg.FlushEvery = defaultFlushEvery
	}
	e := &Engine{arch: arch, enc: enc, router: router, sinkFor: sinkFor, cfg: cfg}
	router.OnFatal(e.fatal)
	return e
}

// fatal records the first fatal error and requests cooperative stop.
// Workers observe the flag between spots, never mid-record.
func (e *Engine) fatal(err error) {
	e.fatalMu.Lock()
	if e.fatalErr == nil {
		e.fatalErr = err
	}
	e.fatalMu.Unlock()
	e.stop.Store(true)
}

// Run extracts the spot domain [start, end) and returns the merged run
// summary. The returned error is the fatal error, if any; per-spot errors
// only show up as summary counters.
func (e *Engine) Run(start, end uint64) (*Summary, error) {
	chunks := Partition(start, end, chunkSizeFor(end-start, e.cfg.Workers, e.cfg.ChunkSize))
	queue := make(chan Chunk, len(chunks))
	for _, c := range chunks {
		queue <- c
	}
	close(queue)

	summaries := make([]*Summary, e.cfg.Workers)
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		summaries[i] = &Summary{}
		go func(sum *Summary) {
			defer wg.Done()
			e.worker(queue, sum)
		}(summaries[i])
	}
	wg.Wait()

	total := &Summary{}
	for _, sum := range summaries {
		total.Merge(sum)
	}
	e.fatalMu.Lock()
	total.Err = e.fatalErr
	e.fatalMu.Unlock()
	total.Aborted = total.Err != nil
	return total, total.Err
}

// workerBuffers batches encoded records per sink so the router lock is
// taken once per flush instead of once per record. A buffer only ever
// holds whole records, so flushing preserves record atomicity.
type workerBuffers struct {
	bufs   [][]byte
	counts []uint64
}

func newWorkerBuffers(n int) *workerBuffers {
	return &workerBuffers{bufs: make([][]byte, n), counts: make([]uint64, n)}
}

func (b *workerBuffers) add(id int, data []byte) {
	b.bufs[id] = append(b.bufs[id], data...)
	b.counts[id]++
}

func (b *workerBuffers) flush(router *sink.Router) {
	for id := range b.bufs {
		if len(b.bufs[id]) == 0 {
			continue
		}
		// write errors are contained per sink (or escalated by the
		// router itself in fail-fast mode)
		_ = router.Write(id, b.bufs[id], b.counts[id])
		b.bufs[id] = b.bufs[id][:0]
		b.counts[id] = 0
	}
}

func (e *Engine) worker(queue <-chan Chunk, sum *Summary) {
	cur, err := e.arch.NewCursor()
	if err != nil {
		e.fatal(err)
		return
	}
	defer cur.Close()

	buffers := newWorkerBuffers(e.router.NumSinks())
	defer buffers.flush(e.router)

	pending := 0
	for chunk := range queue {
		for spot := chunk.Start; spot < chunk.End; spot++ {
			if e.stop.Load() {
				return
			}
			e.processSpot(cur, spot, sum, buffers)
			pending++
			if pending >= e.cfg.FlushEvery {
				buffers.flush(e.router)
				pending = 0
			}
		}
	}
}

func (e *Engine) processSpot(cur archive.Cursor, spot uint64, sum *Summary, buffers *workerBuffers) {
	layout, err := cur.Layout(spot)
	if err != nil {
		e.spotError(err, sum)
		return
	}

	keep, droppedTech, err := e.cfg.Selection.Select(layout, e.cfg.SkipTechnical)
	if err != nil {
		// layout narrower than the validated one; treat like a
		// malformed spot
		sum.Malformed++
		return
	}
	for _, seg := range droppedTech {
		sum.incFilterType(seg)
	}
	sum.incSpot()
	if len(keep) == 0 {
		return
	}

	lengths := make([]int, len(keep))
	for i, seg := range keep {
		lengths[i] = layout[seg].Length
	}
	if !e.cfg.Filter.KeepLengths(lengths) {
		for _, seg := range keep {
			sum.incFilterSize(seg)
		}
		return
	}

	segs := make([]archive.Segment, len(keep))
	for i, idx := range keep {
		segs[i], err = cur.ReadSegment(spot, idx)
		if err != nil {
			e.spotError(err, sum)
			return
		}
	}

	if !e.cfg.Filter.MatchMotif(segs) {
		sum.FilteredMotif++
		return
	}

	records, err := e.enc.Encode(spot, segs)
	if err != nil {
		sum.Malformed++
		return
	}
	// split mode fixes the sink set up front; a spot carrying a segment
	// index with no sink is malformed, never misrouted
	if e.sinkFor != nil {
		for _, rec := range records {
			if _, ok := e.sinkFor[rec.Seg]; !ok {
				sum.Malformed++
				return
			}
		}
	}
	for _, rec := range records {
		buffers.add(e.sinkFor[rec.Seg], rec.Data)
		sum.incRead(rec.Seg)
	}
}

// spotError classifies a cursor error: fatal faults cancel the run,
// anything else skips just this spot.
func (e *Engine) spotError(err error, sum *Summary) {
	var fault *archive.FatalFault
	if errors.As(err, &fault) {
		e.fatal(err)
		return
	}
	sum.SkippedReader++
}
