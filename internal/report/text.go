package report

import (
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/chunkfold/internal/bench"
	"github.com/Sumatoshi-tech/chunkfold/pkg/units"
)

const (
	statusOK       = "ok"
	statusMismatch = "MISMATCH"
	statusError    = "ERROR"
	baselineMark   = "*"
)

var (
	bestColor = color.New(color.FgGreen, color.Bold)
	badColor  = color.New(color.FgRed, color.Bold)
)

// best holds the row indices with the lowest median time and peak memory of
// each group.
type best struct {
	time map[string]int
	peak map[string]int
}

func findBest(rows []bench.Row) best {
	b := best{time: make(map[string]int), peak: make(map[string]int)}

	for i, r := range rows {
		if r.Error != "" {
			continue
		}

		if j, ok := b.time[r.Group]; !ok || r.Seconds.Median < rows[j].Seconds.Median {
			b.time[r.Group] = i
		}

		if j, ok := b.peak[r.Group]; !ok || r.PeakBytes < rows[j].PeakBytes {
			b.peak[r.Group] = i
		}
	}

	return b
}

func status(r bench.Row) string {
	switch {
	case r.Error != "":
		return badColor.Sprint(statusError)
	case !r.Match:
		return badColor.Sprint(statusMismatch)
	default:
		return statusOK
	}
}

func mark(s string, on bool) string {
	if on {
		return bestColor.Sprint(s)
	}

	return s
}

// held is blank for variants that do not report what they materialized.
func held(r bench.Row) string {
	if r.HeldBytes == 0 {
		return "-"
	}

	return units.Bytes(r.HeldBytes)
}

func writeText(w io.Writer, rep bench.Report) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("run %s  rows=%d chunk=%d workers=%d trials=%d",
		rep.RunID, rep.DatasetRows, rep.ChunkSize, rep.Workers, rep.Trials)
	tbl.AppendHeader(table.Row{"group", "variant", "value", "records", "median s", "p95 s", "peak", "alloc", "held", "gc", "status"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
		{Number: 10, Align: text.AlignRight},
	})

	b := findBest(rep.Rows)
	group := ""

	for i, r := range rep.Rows {
		if group != "" && r.Group != group {
			tbl.AppendSeparator()
		}

		group = r.Group

		name := r.Variant
		if r.Baseline {
			name += baselineMark
		}

		tbl.AppendRow(table.Row{
			r.Group,
			name,
			strconv.FormatFloat(r.Value, 'g', 12, 64),
			r.Records,
			mark(strconv.FormatFloat(r.Seconds.Median, 'f', 4, 64), b.time[r.Group] == i && r.Error == ""),
			strconv.FormatFloat(r.Seconds.P95, 'f', 4, 64),
			mark(units.Bytes(r.PeakBytes), b.peak[r.Group] == i && r.Error == ""),
			units.Bytes(r.AllocBytes),
			held(r),
			r.NumGC,
			status(r),
		})
	}

	tbl.SetCaption("%s baseline of its group; best median time and peak memory per group highlighted", baselineMark)
	tbl.Render()

	return nil
}
