package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/gazemetrics/aoirun/internal/summary"
)

const (
	chartWidth  = "1200px"
	chartHeight = "500px"
	xAxisRotate = 45
)

// RenderPlot writes an HTML page with dwell-time charts: total dwell per
// AOI overall, and one chart per context for the grouped totals.
func RenderPlot(w io.Writer, rep *Report, overall []summary.AOITotal, groups []summary.GroupTotal) error {
	page := components.NewPage()
	page.PageTitle = rep.File

	page.AddCharts(overallChart(overall))

	for _, chart := range groupCharts(groups) {
		page.AddCharts(chart)
	}

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render plot page: %w", err)
	}

	return nil
}

func overallChart(totals []summary.AOITotal) *charts.Bar {
	labels := make([]string, len(totals))
	data := make([]opts.BarData, len(totals))

	for i, t := range totals {
		labels[i] = t.AOI
		data[i] = opts.BarData{Value: t.TotalDuration}
	}

	return dwellBar("Total dwell per AOI", labels, data)
}

func groupCharts(groups []summary.GroupTotal) []*charts.Bar {
	var (
		bars   []*charts.Bar
		labels []string
		data   []opts.BarData
	)

	flush := func(title string) {
		if len(labels) > 0 {
			bars = append(bars, dwellBar(title, labels, data))
			labels, data = nil, nil
		}
	}

	for i, g := range groups {
		if i > 0 && g.Context != groups[i-1].Context {
			flush(groups[i-1].Context.String())
		}

		labels = append(labels, g.AOI)
		data = append(data, opts.BarData{Value: g.TotalDuration})
	}

	if len(groups) > 0 {
		flush(groups[len(groups)-1].Context.String())
	}

	return bars
}

func dwellBar(title string, labels []string, data []opts.BarData) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: xAxisRotate, Interval: "0"},
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Dwell (ms)"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("Dwell", data)

	return bar
}
