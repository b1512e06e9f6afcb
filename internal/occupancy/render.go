package occupancy

import (
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// tallObstacle splits the PNG legend into low and tall obstacles.
const tallObstacle = 1.0

// RenderPNG draws the occupied cells as a top-down east/north plot.
func RenderPNG(w io.Writer, cells []Cell, extent float64) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Occupancy (%d cells)", len(cells))
	p.X.Label.Text = "East (m)"
	p.Y.Label.Text = "North (m)"
	half := extent / 2
	p.X.Min, p.X.Max = -half, half
	p.Y.Min, p.Y.Max = -half, half
	p.Add(plotter.NewGrid())

	low := make(plotter.XYs, 0, len(cells))
	tall := make(plotter.XYs, 0)
	for _, c := range cells {
		xy := plotter.XY{X: c.East, Y: c.North}
		if c.Height >= tallObstacle {
			tall = append(tall, xy)
		} else {
			low = append(low, xy)
		}
	}

	for _, series := range []struct {
		name  string
		pts   plotter.XYs
		color color.Color
	}{
		{"< 1 m", low, color.RGBA{R: 53, G: 183, B: 121, A: 255}},
		{">= 1 m", tall, color.RGBA{R: 253, G: 231, B: 37, A: 255}},
	} {
		if len(series.pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(series.pts)
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = series.color
		s.GlyphStyle.Shape = draw.BoxGlyph{}
		s.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(s)
		p.Legend.Add(series.name, s)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// RenderHTML renders the occupied cells as an interactive scatter chart
// coloured by obstacle height.
func RenderHTML(w io.Writer, cells []Cell, extent float64) error {
	points := make([]opts.ScatterData, 0, len(cells))
	maxHeight := 0.5
	for _, c := range cells {
		if c.Height > maxHeight {
			maxHeight = c.Height
		}
		points = append(points, opts.ScatterData{Value: []interface{}{c.East, c.North, c.Height}})
	}
	half := extent / 2

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Occupancy Grid", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Occupancy Grid", Subtitle: fmt.Sprintf("cells=%d extent=%gm", len(cells), extent)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -half, Max: half, Name: "East (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -half, Max: half, Name: "North (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxHeight),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#3e4989", "#26828e", "#35b779", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("obstacles", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	return scatter.Render(w)
}
