package main

import (
	"errors"
	"io"
	"time"

	"github.com/community-scripts/ftt-cycle-dashboard/internal/cycles"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var errNoChartData = errors.New("no data for selected filters")

var (
	lineColor = drawing.ColorFromHex("3b82f6")
	barColor  = drawing.ColorFromHex("10b981")
)

// yRange pads the count axis so a single value still has a non-zero span.
func yRange(maxCount int) *chart.ContinuousRange {
	return &chart.ContinuousRange{Min: 0, Max: float64(maxCount) * 1.1}
}

// renderDailyChart draws records per day as a line with point markers.
func renderDailyChart(w io.Writer, daily []cycles.DayCount) error {
	if len(daily) == 0 {
		return errNoChartData
	}

	xs := make([]time.Time, len(daily))
	ys := make([]float64, len(daily))
	maxCount := 0
	for i, d := range daily {
		xs[i] = d.Day
		ys[i] = float64(d.Count)
		if d.Count > maxCount {
			maxCount = d.Count
		}
	}

	xAxis := chart.XAxis{
		Name:           "NZ Time",
		ValueFormatter: chart.TimeDateValueFormatter,
	}
	if len(daily) == 1 {
		// One day has no x span of its own.
		xAxis.Range = &chart.ContinuousRange{
			Min: chart.TimeToFloat64(xs[0].Add(-12 * time.Hour)),
			Max: chart.TimeToFloat64(xs[0].Add(12 * time.Hour)),
		}
	}

	ch := chart.Chart{
		Width:      1024,
		Height:     400,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      xAxis,
		YAxis:      chart.YAxis{Name: "Records", Range: yRange(maxCount)},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "records",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: lineColor,
					StrokeWidth: 2,
					DotColor:    lineColor,
					DotWidth:    4,
				},
			},
		},
	}
	return ch.Render(chart.PNG, w)
}

// renderMachineChart draws one bar per machine in the given order.
func renderMachineChart(w io.Writer, machines []cycles.MachineCount) error {
	if len(machines) == 0 {
		return errNoChartData
	}

	bars := make([]chart.Value, len(machines))
	maxCount := 0
	for i, m := range machines {
		bars[i] = chart.Value{
			Label: m.Machine,
			Value: float64(m.Count),
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor},
		}
		if m.Count > maxCount {
			maxCount = m.Count
		}
	}

	width := 120 + 60*len(machines)
	if width < 1024 {
		width = 1024
	}
	bc := chart.BarChart{
		Width:      width,
		Height:     400,
		BarWidth:   40,
		BarSpacing: 20,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		YAxis:      chart.YAxis{Name: "Record Count", Range: yRange(maxCount)},
		Bars:       bars,
	}
	return bc.Render(chart.PNG, w)
}
