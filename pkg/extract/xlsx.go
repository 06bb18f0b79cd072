package extract

import (
	"github.com/liserjrqlxue/goUtil/simpleUtil"
	"github.com/xuri/excelize/v2"

	"SraDump/pkg/sink"
)

func setRow(xlsx *excelize.File, sheet string, col, row int, value []interface{}) {
	simpleUtil.CheckErr(
		xlsx.SetSheetRow(
			sheet,
			simpleUtil.HandleError(
				excelize.CoordinatesToCellName(col, row),
			),
			&value,
		),
	)
}

// SaveXlsx writes the run report as a workbook with a counter sheet, a
// per-segment sheet and a per-sink sheet.
func (s *Summary) SaveXlsx(path string, sinks []sink.Stats) error {
	xlsx := excelize.NewFile()

	var sheet = "Summary"
	simpleUtil.CheckErr(xlsx.SetSheetName("Sheet1", sheet))
	setRow(xlsx, sheet, 1, 1, []interface{}{"Counter", "Value"})
	var rows = [][]interface{}{
		{"Spots processed", s.Spots},
		{"Reads written", s.Reads},
		{"Spots filtered by motif", s.FilteredMotif},
		{"Spots skipped (reader errors)", s.SkippedReader},
		{"Spots skipped (malformed)", s.Malformed},
		{"Aborted", s.Aborted},
	}
	for i, row := range rows {
		setRow(xlsx, sheet, 1, i+2, row)
	}

	sheet = "Segments"
	simpleUtil.HandleError(xlsx.NewSheet(sheet))
	setRow(xlsx, sheet, 1, 1, []interface{}{"Segment", "Reads written", "Filtered by size", "Filtered by type"})
	n := len(s.ReadsPerSegment)
	if len(s.FilteredSize) > n {
		n = len(s.FilteredSize)
	}
	if len(s.FilteredType) > n {
		n = len(s.FilteredType)
	}
	for seg := 0; seg < n; seg++ {
		setRow(xlsx, sheet, 1, seg+2, []interface{}{seg, at(s.ReadsPerSegment, seg), at(s.FilteredSize, seg), at(s.FilteredType, seg)})
	}

	sheet = "Sinks"
	simpleUtil.HandleError(xlsx.NewSheet(sheet))
	setRow(xlsx, sheet, 1, 1, []interface{}{"Path", "Records", "Bytes", "Lost"})
	for i, st := range sinks {
		setRow(xlsx, sheet, 1, i+2, []interface{}{st.Path, st.Records, st.Bytes, st.Lost})
	}

	return xlsx.SaveAs(path)
}

func at(vec []uint64, i int) uint64 {
	if i < len(vec) {
		return vec[i]
	}
	return 0
}
