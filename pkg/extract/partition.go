package extract

// Chunk is a half-open spot index range [Start, End) handed to exactly one
// worker. Chunks are the unit of work stealing: workers pull them from a
// shared queue, so uneven per-spot cost never starves an idle worker.
type Chunk struct {
	Start uint64
	End   uint64
}

// DefaultChunkSize is the spot count per chunk when no hint is given.
const DefaultChunkSize = 4096

// Partition splits [start, end) into contiguous chunks of at most
// chunkSize spots. The chunks partition the domain exactly: no gaps, no
// overlap, in ascending order.
func Partition(start, end uint64, chunkSize int) []Chunk {
	if end <= start {
		return nil
	}
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	size := uint64(chunkSize)
	chunks := make([]Chunk, 0, (end-start+size-1)/size)
	for lo := start; lo < end; lo += size {
		hi := lo + size
		if hi > end {
			hi = end
		}
		chunks = append(chunks, Chunk{Start: lo, End: hi})
	}
	return chunks
}

// chunkSizeFor clamps the chunk size so small domains still produce at
// least a few chunks per worker for balancing.
func chunkSizeFor(domain uint64, workers, hint int) int {
	if hint > 0 {
		return hint
	}
	if workers < 1 {
		workers = 1
	}
	per := domain / uint64(workers*4)
	if per < 1 {
		per = 1
	}
	if per > DefaultChunkSize {
		per = DefaultChunkSize
	}
	return int(per)
}
