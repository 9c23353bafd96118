package report

import (
	"errors"
	"io"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"uptimedock/app/internal/availability"
)

// ErrNotEnoughData is returned when a chart would have fewer than two points.
var ErrNotEnoughData = errors.New("at least two buckets are needed to draw a chart")

// RenderTrendChart draws the mean status code and the down count per bucket as a PNG.
func RenderTrendChart(w io.Writer, title string, buckets []availability.Bucket) error {
	if len(buckets) < 2 {
		return ErrNotEnoughData
	}

	xs := make([]time.Time, len(buckets))
	status := make([]float64, len(buckets))
	downs := make([]float64, len(buckets))
	top := 600.0
	for i, b := range buckets {
		xs[i] = b.Start
		status[i] = float64(b.MeanStatusCode)
		downs[i] = float64(b.DownCount)
		top = max(top, status[i]*1.1, downs[i]*1.1)
	}

	graph := chart.Chart{
		Title:      title,
		TitleStyle: chart.Style{FontSize: 14},
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		Width:  1200,
		Height: 400,
		XAxis: chart.XAxis{
			Name:           "Time",
			Style:          chart.Style{StrokeColor: drawing.ColorBlack, FontSize: 10},
			ValueFormatter: chart.TimeMinuteValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:  "Status",
			Style: chart.Style{StrokeColor: drawing.ColorBlack, FontSize: 10},
			Range: &chart.ContinuousRange{Min: 0, Max: top},
			GridMajorStyle: chart.Style{
				StrokeColor: drawing.Color{R: 200, G: 200, B: 200, A: 255},
				StrokeWidth: 1.0,
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Avg status",
				Style:   chart.Style{StrokeColor: chart.GetDefaultColor(0), StrokeWidth: 2},
				XValues: xs,
				YValues: status,
			},
			chart.TimeSeries{
				Name:    "Errors",
				Style:   chart.Style{StrokeColor: drawing.Color{R: 239, G: 68, B: 68, A: 255}, StrokeWidth: 2},
				XValues: xs,
				YValues: downs,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}
