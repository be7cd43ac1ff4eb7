package display

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHTML renders the current plot as a standalone go-echarts page.
func (c *Chart) RenderHTML(w io.Writer) error {
	snap := c.Snapshot()

	temp := make([]opts.LineData, len(snap.Samples))
	hum := make([]opts.LineData, len(snap.Samples))
	for i, s := range snap.Samples {
		temp[i] = opts.LineData{Value: []interface{}{s.Elapsed, s.Temperature}}
		hum[i] = opts.LineData{Value: []interface{}{s.Elapsed, s.Humidity}}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: snap.Title, Width: "100%", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: snap.Title, Subtitle: fmt.Sprintf("samples=%d", len(snap.Samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Time (s)", NameLocation: "middle", NameGap: 25, Min: snap.Axes.XMin, Max: snap.Axes.XMax}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Value", Min: snap.Axes.YMin, Max: snap.Axes.YMax}),
	)
	line.AddSeries("Temperature (C)", temp, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})).
		AddSeries("Humidity (%)", hum, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	page := components.NewPage()
	page.PageTitle = snap.Title
	page.AddCharts(line)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
