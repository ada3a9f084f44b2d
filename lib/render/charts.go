package render

import (
	"context"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Labels holds the title and axis labels of a chart.
type Labels struct {
	Title  string `json:"title"`
	XLabel string `json:"x_label,omitempty"`
	YLabel string `json:"y_label,omitempty"`
}

// PointGroup is one colored set of points.
type PointGroup struct {
	Name string    `json:"name"`
	X    []float64 `json:"x"`
	Y    []float64 `json:"y"`
}

// ScatterSpec draws point groups, one color per group.
type ScatterSpec struct {
	Labels
	Groups []PointGroup `json:"groups"`
}

// Grid is a regular grid of values. Z is indexed [row][column]; X holds
// the column centers and Y the row centers.
type Grid struct {
	Xs []float64   `json:"x"`
	Ys []float64   `json:"y"`
	Zs [][]float64 `json:"z"`
}

func (g Grid) Dims() (c, r int)   { return len(g.Xs), len(g.Ys) }
func (g Grid) Z(c, r int) float64 { return g.Zs[r][c] }
func (g Grid) X(c int) float64    { return g.Xs[c] }
func (g Grid) Y(r int) float64    { return g.Ys[r] }

func (g Grid) empty() bool { return len(g.Xs) < 2 || len(g.Ys) < 2 }

func (g Grid) zRange() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range g.Zs {
		for _, z := range row {
			lo = math.Min(lo, z)
			hi = math.Max(hi, z)
		}
	}
	return lo, hi
}

// ContourSpec draws a filled density grid with contour lines.
type ContourSpec struct {
	Labels
	Grid   Grid `json:"grid"`
	Levels int  `json:"levels"`
}

// BarSpec draws one bar per label.
type BarSpec struct {
	Labels
	Categories []string  `json:"categories"`
	Values     []float64 `json:"values"`
}

// Series is one named line.
type Series struct {
	Name string    `json:"name"`
	X    []float64 `json:"x"`
	Y    []float64 `json:"y"`
}

// LineSpec draws one line with markers per series.
type LineSpec struct {
	Labels
	Series []Series `json:"series"`
}

func xys(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, min(len(x), len(y)))
	for i := range pts {
		pts[i] = plotter.XY{X: x[i], Y: y[i]}
	}
	return pts
}

// Scatter renders spec as a scatter plot.
func (r *Renderer) Scatter(ctx context.Context, spec ScatterSpec) ([]byte, error) {
	return r.draw(ctx, "scatter", spec, func() (*plot.Plot, error) {
		p := newPlot(spec.Title, spec.XLabel, spec.YLabel)
		p.Add(plotter.NewGrid())

		drawn := 0
		for i, g := range spec.Groups {
			pts := xys(g.X, g.Y)
			if len(pts) == 0 {
				continue
			}
			s, err := plotter.NewScatter(pts)
			if err != nil {
				return nil, err
			}
			s.GlyphStyle.Color = plotutil.Color(i)
			s.GlyphStyle.Shape = draw.CircleGlyph{}
			s.GlyphStyle.Radius = vg.Points(2.5)
			p.Add(s)
			if g.Name != "" {
				p.Legend.Add(g.Name, s)
			}
			drawn++
		}
		if drawn == 0 {
			emptyAxes(p)
		}
		p.Legend.Top = true
		return p, nil
	})
}

// Contour renders spec as a density heat map overlaid with contour lines.
func (r *Renderer) Contour(ctx context.Context, spec ContourSpec) ([]byte, error) {
	return r.draw(ctx, "contour", spec, func() (*plot.Plot, error) {
		p := newPlot(spec.Title, spec.XLabel, spec.YLabel)
		if spec.Grid.empty() {
			emptyAxes(p)
			return p, nil
		}

		lo, hi := spec.Grid.zRange()
		if hi <= lo {
			// A flat grid has no contours to draw.
			p.X.Min, p.X.Max = spec.Grid.Xs[0], spec.Grid.Xs[len(spec.Grid.Xs)-1]
			p.Y.Min, p.Y.Max = spec.Grid.Ys[0], spec.Grid.Ys[len(spec.Grid.Ys)-1]
			return p, nil
		}

		n := spec.Levels
		if n <= 0 {
			n = 8
		}
		levels := make([]float64, n)
		for i := range levels {
			levels[i] = lo + float64(i+1)*(hi-lo)/float64(n+1)
		}

		p.Add(plotter.NewHeatMap(spec.Grid, palette.Heat(32, 0.6)))
		p.Add(plotter.NewContour(spec.Grid, levels, palette.Heat(n, 1)))
		return p, nil
	})
}

// Bar renders spec as a vertical bar chart.
func (r *Renderer) Bar(ctx context.Context, spec BarSpec) ([]byte, error) {
	return r.draw(ctx, "bar", spec, func() (*plot.Plot, error) {
		p := newPlot(spec.Title, spec.XLabel, spec.YLabel)
		if len(spec.Values) == 0 {
			emptyAxes(p)
			return p, nil
		}

		bars, err := plotter.NewBarChart(plotter.Values(spec.Values), vg.Points(18))
		if err != nil {
			return nil, err
		}
		bars.Color = plotutil.Color(0)
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
		p.NominalX(spec.Categories...)
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = draw.XRight
		return p, nil
	})
}

// Line renders spec as one line per series.
func (r *Renderer) Line(ctx context.Context, spec LineSpec) ([]byte, error) {
	return r.draw(ctx, "line", spec, func() (*plot.Plot, error) {
		p := newPlot(spec.Title, spec.XLabel, spec.YLabel)
		p.Add(plotter.NewGrid())

		drawn := 0
		for i, s := range spec.Series {
			pts := xys(s.X, s.Y)
			if len(pts) == 0 {
				continue
			}
			l, marks, err := plotter.NewLinePoints(pts)
			if err != nil {
				return nil, err
			}
			l.Color = plotutil.Color(i)
			l.Width = vg.Points(1.5)
			marks.GlyphStyle.Color = plotutil.Color(i)
			marks.GlyphStyle.Shape = draw.CircleGlyph{}
			p.Add(l, marks)
			p.Legend.Add(s.Name, l, marks)
			drawn++
		}
		if drawn == 0 {
			emptyAxes(p)
		}
		p.Legend.Top = true
		return p, nil
	})
}
