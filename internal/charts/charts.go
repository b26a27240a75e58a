// Package charts renders the dashboard's aggregate widgets as PNG images.
package charts

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
	"github.com/roadwatch/roadwatch-agent/internal/overlay"
)

const (
	DefaultWidth  = 480
	DefaultHeight = 480
)

var ErrNoData = errors.New("no chart data")

// DiseasePie renders the disease distribution as a pie chart, one slice per
// label coloured like its overlay boxes. Zero-count labels are left out.
func DiseasePie(dist *detection.Distribution, width, height int) ([]byte, error) {
	if dist == nil {
		return nil, ErrNoData
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	var values []chart.Value
	for i, label := range dist.Labels {
		if i >= len(dist.Data) || dist.Data[i] <= 0 {
			continue
		}
		c := overlay.ColorFor(label)
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %.0f", label, dist.Data[i]),
			Value: dist.Data[i],
			Style: chart.Style{
				FillColor:   drawing.Color{R: c.R, G: c.G, B: c.B, A: 200},
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 1,
			},
		})
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	pie := chart.PieChart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 16, Left: 16, Right: 16, Bottom: 16},
		},
		Values: values,
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render disease chart: %w", err)
	}
	return buf.Bytes(), nil
}
