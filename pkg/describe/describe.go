// Package describe samples a window of spots and reports per-segment shape
// statistics, as a quick look before committing to a full extraction.
package describe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/liserjrqlxue/goUtil/osUtil"
	"github.com/liserjrqlxue/goUtil/simpleUtil"

	"SraDump/pkg/archive"
)

// SegmentStat aggregates one segment index across the sampled window.
type SegmentStat struct {
	SID         int     `json:"sid"`
	SegmentType string  `json:"segment_type"`
	MeanLength  float64 `json:"mean_length"`
	MeanQuality float64 `json:"mean_quality"`

	count    uint64
	lenSum   uint64
	qualSum  uint64
	qualN    uint64
	posSum   []uint64
	posCount []uint64
}

// Report is the JSON document printed by the describe command.
type Report struct {
	Archive        string        `json:"archive"`
	TotalSpots     uint64        `json:"total_spots"`
	ProcessedSpots uint64        `json:"processed_spots"`
	SkippedSpots   uint64        `json:"skipped_spots"`
	SpotRange      [2]uint64     `json:"spot_range"`
	Stats          []SegmentStat `json:"stats"`
}

// Run samples up to limit spots starting at skip. Unreadable spots inside
// the window are skipped and counted; fatal cursor faults abort.
func Run(arch archive.Archive, skip, limit uint64) (*Report, error) {
	cur, err := arch.NewCursor()
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	total := arch.SpotCount()
	start := skip
	if start > total {
		start = total
	}
	end := total
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	rep := &Report{
		Archive:    arch.Name(),
		TotalSpots: total,
		SpotRange:  [2]uint64{start, end},
	}
	var stats []*SegmentStat

	for spot := start; spot < end; spot++ {
		layout, err := cur.Layout(spot)
		if err != nil {
			var fault *archive.FatalFault
			if errors.As(err, &fault) {
				return nil, err
			}
			rep.SkippedSpots++
			continue
		}
		for _, info := range layout {
			for len(stats) <= info.Index {
				stats = append(stats, &SegmentStat{SID: len(stats)})
			}
			st := stats[info.Index]
			if info.Biological {
				st.SegmentType = "biological"
			} else if st.SegmentType == "" {
				st.SegmentType = "technical"
			}
			seg, err := cur.ReadSegment(spot, info.Index)
			if err != nil {
				continue
			}
			st.count++
			st.lenSum += uint64(len(seg.Bases))
			for pos, q := range seg.Quals {
				// qualities are stored phred+33; bytes below the
				// offset would underflow, so they are ignored
				if q < 33 {
					continue
				}
				phred := uint64(q) - 33
				st.qualSum += phred
				st.qualN++
				for len(st.posSum) <= pos {
					st.posSum = append(st.posSum, 0)
					st.posCount = append(st.posCount, 0)
				}
				st.posSum[pos] += phred
				st.posCount[pos]++
			}
		}
		rep.ProcessedSpots++
	}

	for _, st := range stats {
		if st.count > 0 {
			st.MeanLength = float64(st.lenSum) / float64(st.count)
		}
		if st.qualN > 0 {
			st.MeanQuality = float64(st.qualSum) / float64(st.qualN)
		}
		rep.Stats = append(rep.Stats, *st)
	}
	return rep, nil
}

// WriteJSON prints the indented report.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PlotQuality renders the per-position mean quality of every sampled
// segment into a single HTML line chart.
func (r *Report) PlotQuality(path string) {
	var (
		line   = charts.NewLine()
		maxPos = 0
		output = osUtil.Create(path)
	)
	defer simpleUtil.DeferClose(output)

	for _, st := range r.Stats {
		if len(st.posSum) > maxPos {
			maxPos = len(st.posSum)
		}
	}
	var xaxis = make([]int, maxPos)
	for i := range xaxis {
		xaxis[i] = i + 1
	}

	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Mean Quality Per Position",
			Subtitle: r.Archive,
		}))
	line.SetXAxis(xaxis)
	for _, st := range r.Stats {
		line.AddSeries(fmt.Sprintf("segment %d", st.SID), generateLineItems(st.posSum, st.posCount, maxPos))
	}
	simpleUtil.CheckErr(line.Render(output))
}

func generateLineItems(sum, count []uint64, n int) []opts.LineData {
	var items = make([]opts.LineData, 0, n)
	for i := 0; i < n; i++ {
		if i < len(count) && count[i] > 0 {
			items = append(items, opts.LineData{Value: float64(sum[i]) / float64(count[i])})
		} else {
			items = append(items, opts.LineData{Value: nil})
		}
	}
	return items
}
