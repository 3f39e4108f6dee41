package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/chunkfold/internal/bench"
	"github.com/Sumatoshi-tech/chunkfold/pkg/units"
)

const (
	chartWidth  = "100%"
	chartHeight = "480px"
	labelRotate = 40
)

func barChart(title, subtitle, series string, labels []string, values []float64) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "chunkfold", Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: labelRotate, Interval: "0"}}),
	)

	data := make([]opts.BarData, len(values))
	for i, v := range values {
		data[i] = opts.BarData{Value: v}
	}

	bar.SetXAxis(labels).AddSeries(series, data)

	return bar
}

func writeHTML(w io.Writer, rep bench.Report) error {
	var (
		labels  []string
		peaks   []float64
		medians []float64
	)

	for _, r := range rep.Rows {
		if r.Error != "" {
			continue
		}

		labels = append(labels, r.Variant)
		peaks = append(peaks, units.ToMiB(r.PeakBytes))
		medians = append(medians, r.Seconds.Median)
	}

	subtitle := fmt.Sprintf("run %s, %d rows, chunk %d, %d workers", rep.RunID, rep.DatasetRows, rep.ChunkSize, rep.Workers)

	page := components.NewPage()
	page.AddCharts(
		barChart("Peak heap growth", subtitle, "MiB", labels, peaks),
		barChart("Median duration", subtitle, "seconds", labels, medians),
	)

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render html report: %w", err)
	}

	return nil
}
