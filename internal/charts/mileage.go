package charts

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Point is one labelled sample of a trend line.
type Point struct {
	Label string
	Value float64
}

// WeeklyMileage is the inspection mileage panel's series in km per day.
var WeeklyMileage = []Point{
	{"9.1", 500}, {"9.2", 420}, {"9.3", 600}, {"9.4", 550},
	{"9.5", 700}, {"9.6", 450}, {"9.7", 480},
}

var mileageColor = drawing.Color{R: 0x00, G: 0xc0, B: 0xff, A: 0xff}

// MileageTrend renders inspected kilometres per day as a filled line chart.
// A line needs at least two points.
func MileageTrend(points []Point, width, height int) ([]byte, error) {
	if len(points) < 2 {
		return nil, ErrNoData
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	ticks := make([]chart.Tick, len(points))
	for i, p := range points {
		xs[i] = float64(i)
		ys[i] = p.Value
		ticks[i] = chart.Tick{Value: float64(i), Label: p.Label}
	}

	graph := chart.Chart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{Ticks: ticks},
		YAxis: chart.YAxis{Name: "km"},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "inspection mileage (km)",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: mileageColor,
					StrokeWidth: 2,
					FillColor:   mileageColor.WithAlpha(51),
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render mileage chart: %w", err)
	}
	return buf.Bytes(), nil
}
