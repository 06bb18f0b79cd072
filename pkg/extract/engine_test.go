package extract

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"testing"

	"SraDump/pkg/archive"
	"SraDump/pkg/encoder"
	"SraDump/pkg/sink"
)

type memFile struct {
	bytes.Buffer
}

func (m *memFile) Close() error { return nil }

func newTestSink(t *testing.T, name string) (*sink.Sink, *memFile) {
	t.Helper()
	f := &memFile{}
	s, err := sink.NewWriterSink(name, f, sink.Uncompressed)
	if err != nil {
		t.Fatalf("Expected no error, but got: %v", err)
	}
	return s, f
}

// pairedArchive builds n spots of one 10 base and one 15 base biological
// segment.
func pairedArchive(n int) *archive.MemArchive {
	arch := archive.NewMemArchive("test")
	for i := 0; i < n; i++ {
		arch.AddSpot(
			archive.Segment{
				Info:  archive.SegmentInfo{Biological: true},
				Bases: []byte("ACGTACGTAC"),
				Quals: []byte("IIIIIIIIII"),
			},
			archive.Segment{
				Info:  archive.SegmentInfo{Biological: true},
				Bases: []byte("ACGTACGTACGTACG"),
				Quals: []byte("IIIIIIIIIIIIIII"),
			},
		)
	}
	return arch
}

func runEngine(t *testing.T, arch archive.Archive, cfg Config, sinkFor map[int]int, outs ...*sink.Sink) (*Summary, error) {
	t.Helper()
	router := sink.NewRouter(outs, false)
	enc := &encoder.Text{Name: arch.Name(), Format: encoder.Fastq}
	eng := New(arch, enc, router, sinkFor, cfg)
	sum, err := eng.Run(0, arch.SpotCount())
	if cerr := router.Close(); cerr != nil {
		t.Fatalf("Expected clean close, but got: %v", cerr)
	}
	return sum, err
}

// fastqRecords splits raw output into one string per 4-line record.
func fastqRecords(data []byte) []string {
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	var records []string
	for i := 0; i+3 < len(lines); i += 4 {
		records = append(records, strings.Join(lines[i:i+4], "\n"))
	}
	return records
}

func TestEngineRun(t *testing.T) {
	t.Run("min length at sum keeps all spots", func(t *testing.T) {
		s, out := newTestSink(t, "combined")
		sum, err := runEngine(t, pairedArchive(100), Config{
			Selection: Selection{All: true},
			Filter:    NewFilter(20, false, nil),
			Workers:   4,
		}, nil, s)
		if err != nil {
			t.Errorf("Expected no error, but got: %v", err)
		}
		if sum.Spots != 100 || sum.Reads != 200 {
			t.Errorf("Expected 100 spots / 200 reads, got %d / %d", sum.Spots, sum.Reads)
		}
		if n := len(fastqRecords(out.Bytes())); n != 200 {
			t.Errorf("Expected 200 records in output, got %d", n)
		}
	})

	t.Run("min length above sum filters all spots", func(t *testing.T) {
		s, out := newTestSink(t, "combined")
		sum, err := runEngine(t, pairedArchive(100), Config{
			Selection: Selection{All: true},
			Filter:    NewFilter(30, false, nil),
			Workers:   4,
		}, nil, s)
		if err != nil {
			t.Errorf("Expected no error, but got: %v", err)
		}
		if sum.Reads != 0 {
			t.Errorf("Expected 0 reads, got %d", sum.Reads)
		}
		if sum.FilteredSize[0] != 100 || sum.FilteredSize[1] != 100 {
			t.Errorf("Expected 100 size-filtered per segment, got %v", sum.FilteredSize)
		}
		if out.Len() != 0 {
			t.Errorf("Expected empty output, got %d bytes", out.Len())
		}
	})

	t.Run("single segment selection", func(t *testing.T) {
		s, out := newTestSink(t, "combined")
		sum, err := runEngine(t, pairedArchive(50), Config{
			Selection: Selection{Indices: []int{1}},
			Workers:   4,
		}, nil, s)
		if err != nil {
			t.Errorf("Expected no error, but got: %v", err)
		}
		if sum.Reads != 50 {
			t.Errorf("Expected 50 reads, got %d", sum.Reads)
		}
		for _, rec := range fastqRecords(out.Bytes()) {
			id := strings.SplitN(rec, "\n", 2)[0]
			if !strings.HasSuffix(id, ".1") {
				t.Errorf("Expected only segment 1 records, got id %q", id)
			}
		}
	})

	t.Run("split routing per segment", func(t *testing.T) {
		s0, out0 := newTestSink(t, "seg0")
		s1, out1 := newTestSink(t, "seg1")
		sum, err := runEngine(t, pairedArchive(40), Config{
			Selection: Selection{All: true},
			Workers:   4,
		}, map[int]int{0: 0, 1: 1}, s0, s1)
		if err != nil {
			t.Errorf("Expected no error, but got: %v", err)
		}
		if sum.Reads != 80 {
			t.Errorf("Expected 80 reads, got %d", sum.Reads)
		}
		for name, out := range map[string]*memFile{".0": out0, ".1": out1} {
			for _, rec := range fastqRecords(out.Bytes()) {
				id := strings.SplitN(rec, "\n", 2)[0]
				if !strings.HasSuffix(id, name) {
					t.Errorf("Expected only %s records in its sink, got id %q", name, id)
				}
			}
		}
		if len(fastqRecords(out0.Bytes())) != 40 || len(fastqRecords(out1.Bytes())) != 40 {
			t.Error("Expected 40 records per split sink")
		}
	})

	t.Run("irregular spot never leaks into split sinks", func(t *testing.T) {
		arch := pairedArchive(3)
		arch.AddSpot(
			archive.Segment{
				Info:  archive.SegmentInfo{Biological: true},
				Bases: []byte("ACGTACGTAC"),
				Quals: []byte("IIIIIIIIII"),
			},
			archive.Segment{
				Info:  archive.SegmentInfo{Biological: true},
				Bases: []byte("ACGTACGTACGTACG"),
				Quals: []byte("IIIIIIIIIIIIIII"),
			},
			archive.Segment{
				Info:  archive.SegmentInfo{Biological: true},
				Bases: []byte("TTTTTTTT"),
				Quals: []byte("IIIIIIII"),
			},
		)
		s0, out0 := newTestSink(t, "seg0")
		s1, out1 := newTestSink(t, "seg1")
		sum, err := runEngine(t, arch, Config{
			Selection: Selection{All: true},
			Workers:   1,
		}, map[int]int{0: 0, 1: 1}, s0, s1)
		if err != nil {
			t.Errorf("Expected no error, but got: %v", err)
		}
		if sum.Malformed != 1 {
			t.Errorf("Expected 1 malformed spot, got %d", sum.Malformed)
		}
		if sum.Reads != 6 {
			t.Errorf("Expected 6 reads from the regular spots, got %d", sum.Reads)
		}
		for name, out := range map[string]*memFile{".0": out0, ".1": out1} {
			for _, rec := range fastqRecords(out.Bytes()) {
				id := strings.SplitN(rec, "\n", 2)[0]
				if !strings.HasSuffix(id, name) {
					t.Errorf("Expected only %s records in its sink, got id %q", name, id)
				}
			}
		}
	})

	t.Run("worker count does not change the record multiset", func(t *testing.T) {
		var got [2][]string
		for i, workers := range []int{1, 8} {
			s, out := newTestSink(t, "combined")
			_, err := runEngine(t, pairedArchive(100), Config{
				Selection: Selection{All: true},
				Filter:    NewFilter(20, false, nil),
				Workers:   workers,
				ChunkSize: 3,
			}, nil, s)
			if err != nil {
				t.Errorf("Expected no error, but got: %v", err)
			}
			got[i] = fastqRecords(out.Bytes())
			sort.Strings(got[i])
		}
		if len(got[0]) != len(got[1]) {
			t.Fatalf("Expected equal record counts, got %d vs %d", len(got[0]), len(got[1]))
		}
		for i := range got[0] {
			if got[0][i] != got[1][i] {
				t.Fatalf("Record multisets differ at %d: %q vs %q", i, got[0][i], got[1][i])
			}
		}
	})

	t.Run("reader errors skip and count", func(t *testing.T) {
		arch := pairedArchive(100)
		arch.BadSpots[3] = true
		arch.BadSpots[7] = true
		s, _ := newTestSink(t, "combined")
		sum, err := runEngine(t, arch, Config{
			Selection: Selection{All: true},
			Workers:   4,
		}, nil, s)
		if err != nil {
			t.Errorf("Expected no error, but got: %v", err)
		}
		if sum.SkippedReader != 2 {
			t.Errorf("Expected 2 skipped spots, got %d", sum.SkippedReader)
		}
		if sum.Spots != 98 {
			t.Errorf("Expected 98 processed spots, got %d", sum.Spots)
		}
		if sum.Aborted {
			t.Error("Expected a completed run")
		}
	})

	t.Run("fatal fault aborts and drains accepted records", func(t *testing.T) {
		arch := pairedArchive(100)
		arch.FaultAt = 50
		s, out := newTestSink(t, "combined")
		sum, err := runEngine(t, arch, Config{
			Selection: Selection{All: true},
			Workers:   1,
		}, nil, s)
		if err == nil {
			t.Error("Expected a fatal error, but got nil")
		}
		if !sum.Aborted {
			t.Error("Expected the summary to be marked aborted")
		}
		if sum.Spots != 50 || sum.Reads != 100 {
			t.Errorf("Expected 50 spots / 100 reads before the fault, got %d / %d", sum.Spots, sum.Reads)
		}
		if n := len(fastqRecords(out.Bytes())); n != 100 {
			t.Errorf("Expected 100 drained records, got %d", n)
		}
	})

	t.Run("skip technical segments", func(t *testing.T) {
		arch := archive.NewMemArchive("test")
		for i := 0; i < 10; i++ {
			arch.AddSpot(
				archive.Segment{
					Info:  archive.SegmentInfo{Biological: false},
					Bases: []byte("ACGTACGT"),
					Quals: []byte("IIIIIIII"),
				},
				archive.Segment{
					Info:  archive.SegmentInfo{Biological: true},
					Bases: []byte("ACGTACGTAC"),
					Quals: []byte("IIIIIIIIII"),
				},
			)
		}
		s, _ := newTestSink(t, "combined")
		sum, err := runEngine(t, arch, Config{
			Selection:     Selection{All: true},
			SkipTechnical: true,
			Workers:       2,
		}, nil, s)
		if err != nil {
			t.Errorf("Expected no error, but got: %v", err)
		}
		if sum.Reads != 10 {
			t.Errorf("Expected 10 reads, got %d", sum.Reads)
		}
		if sum.FilteredType[0] != 10 {
			t.Errorf("Expected 10 type-filtered on segment 0, got %v", sum.FilteredType)
		}
	})
}

func TestSummaryPrint(t *testing.T) {
	sum := &Summary{Spots: 10, Reads: 20, SkippedReader: 1}
	var buf bytes.Buffer
	sum.Print(&buf, []sink.Stats{{Path: "out.fq", Records: 20, Bytes: 800}})
	got := buf.String()
	for _, want := range []string{
		"Number of spots processed: 10",
		"Sink out.fq: 20 records, 800 bytes",
		"Completed with 1 skipped spots",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, got)
		}
	}

	sum = &Summary{Spots: 5, Aborted: true, Err: fmt.Errorf("index corruption")}
	buf.Reset()
	sum.Print(&buf, nil)
	if !strings.Contains(buf.String(), "Aborted after fatal error") {
		t.Errorf("Expected aborted report, got:\n%s", buf.String())
	}
}
