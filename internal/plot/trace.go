// Package plot renders per-subject count traces as interactive HTML charts.
package plot

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// TraceOptions controls RenderTrace
type TraceOptions struct {
	// Start labels the x axis with wall-clock times instead of minute indices
	Start time.Time
	// Cutpoints are drawn as horizontal reference lines
	Cutpoints []float64
	Width     string
	Height    string
}

// RenderTrace draws the raw and corrected counts of one subject with every
// non-wear episode shaded. The result must carry its epochs, which the
// processor only attaches when keep_epochs is set.
func RenderTrace(w io.Writer, result activity.Result, o TraceOptions) error {
	if len(result.Epochs) == 0 {
		return errors.New("result has no epochs; enable keep_epochs to plot traces")
	}
	if o.Width == "" {
		o.Width = "1400px"
	}
	if o.Height == "" {
		o.Height = "600px"
	}

	labels := make([]string, len(result.Epochs))
	raw := make([]opts.LineData, len(result.Epochs))
	corrected := make([]opts.LineData, len(result.Epochs))
	var peak float64
	for i, e := range result.Epochs {
		labels[i] = axisLabel(e.Index, o.Start)
		raw[i] = opts.LineData{Value: e.Raw}
		if e.Missing {
			corrected[i] = opts.LineData{Value: "-"}
		} else {
			corrected[i] = opts.LineData{Value: e.Corrected}
		}
		if float64(e.Raw) > peak {
			peak = float64(e.Raw)
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Activity trace " + result.SubjectID,
			Width:     o.Width,
			Height:    o.Height,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Subject " + result.SubjectID,
			Subtitle: subtitle(result),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)

	nonwear := make([]opts.MarkAreaNameCoordItem, 0, len(result.Episodes))
	for _, ep := range result.Episodes {
		nonwear = append(nonwear, opts.MarkAreaNameCoordItem{
			Name:        "non-wear",
			Coordinate0: []interface{}{labels[ep.Start], 0},
			Coordinate1: []interface{}{labels[ep.End], peak},
		})
	}
	cutpoints := make([]opts.MarkLineNameYAxisItem, 0, len(o.Cutpoints))
	for i, c := range o.Cutpoints {
		cutpoints = append(cutpoints, opts.MarkLineNameYAxisItem{
			Name:  "cutpoint " + strconv.Itoa(i+1),
			YAxis: c,
		})
	}

	line.SetXAxis(labels).
		AddSeries("raw", raw,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithMarkAreaNameCoordItemOpts(nonwear...),
		).
		AddSeries("corrected", corrected,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithMarkLineNameYAxisItemOpts(cutpoints...),
		)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render trace of %s: %w", result.SubjectID, err)
	}
	return nil
}

func axisLabel(index int, start time.Time) string {
	if start.IsZero() {
		return strconv.Itoa(index)
	}
	return start.Add(time.Duration(index-1) * time.Minute).Format("2006-01-02 15:04")
}

func subtitle(r activity.Result) string {
	nonwear := 0
	for _, ep := range r.Episodes {
		nonwear += ep.Minutes()
	}
	return fmt.Sprintf("%d minutes, %d non-wear episodes (%d minutes), %d valid days",
		len(r.Epochs), len(r.Episodes), nonwear, r.Eligibility.ValidDays)
}
