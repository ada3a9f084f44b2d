package render

import (
	"context"
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Rect is an axis-aligned rectangle with its origin at the lower left.
type Rect struct {
	X, Y, W, H float64
}

// Area returns W*H.
func (r Rect) Area() float64 { return r.W * r.H }

// Layout tiles bounds with one rectangle per value using the squarified
// algorithm (Bruls, Huizing, van Wijk). Each area is proportional to its
// value; non-positive values get an empty rectangle. The result is in the
// order of values.
func Layout(values []float64, bounds Rect) []Rect {
	out := make([]Rect, len(values))

	order := make([]int, 0, len(values))
	total := 0.0
	for i, v := range values {
		out[i] = Rect{X: bounds.X, Y: bounds.Y}
		if v > 0 {
			order = append(order, i)
			total += v
		}
	}
	if total == 0 || bounds.Area() <= 0 {
		return out
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

	scale := bounds.Area() / total
	area := func(i int) float64 { return values[i] * scale }

	free := bounds
	var row []int
	for k := 0; k < len(order); {
		i := order[k]
		side := min(free.W, free.H)
		if len(row) == 0 || worst(append(row, i), area, side) <= worst(row, area, side) {
			row = append(row, i)
			k++
			continue
		}
		free = placeRow(row, area, free, out)
		row = row[:0]
	}
	if len(row) > 0 {
		placeRow(row, area, free, out)
	}
	return out
}

// worst is the largest aspect ratio in row when laid along side.
func worst(row []int, area func(int) float64, side float64) float64 {
	sum, lo, hi := 0.0, area(row[0]), area(row[0])
	for _, i := range row {
		a := area(i)
		sum += a
		lo = min(lo, a)
		hi = max(hi, a)
	}
	s2, w2 := sum*sum, side*side
	return max(w2*hi/s2, s2/(w2*lo))
}

// placeRow lays row along the shorter side of free and returns what is
// left over.
func placeRow(row []int, area func(int) float64, free Rect, out []Rect) Rect {
	sum := 0.0
	for _, i := range row {
		sum += area(i)
	}

	if free.W >= free.H {
		width := sum / free.H
		y := free.Y
		for _, i := range row {
			h := area(i) / width
			out[i] = Rect{X: free.X, Y: y, W: width, H: h}
			y += h
		}
		return Rect{X: free.X + width, Y: free.Y, W: free.W - width, H: free.H}
	}

	height := sum / free.W
	x := free.X
	for _, i := range row {
		w := area(i) / height
		out[i] = Rect{X: x, Y: free.Y + free.H - height, W: w, H: height}
		x += w
	}
	return Rect{X: free.X, Y: free.Y, W: free.W, H: free.H - height}
}

// TreemapLeaf is one tile inside a group.
type TreemapLeaf struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// TreemapGroup is a top-level region holding its leaves.
type TreemapGroup struct {
	Name   string        `json:"name"`
	Leaves []TreemapLeaf `json:"leaves"`
}

// TreemapSpec draws a two-level treemap: groups are laid out first, then
// each group's leaves inside its rectangle.
type TreemapSpec struct {
	Title  string         `json:"title"`
	Groups []TreemapGroup `json:"groups"`
}

// Tile is a laid-out leaf in unit coordinates.
type Tile struct {
	Group string
	Name  string
	Value float64
	Rect  Rect
}

// LayoutTreemap places every leaf of spec inside the unit square.
func LayoutTreemap(spec TreemapSpec) []Tile {
	sums := make([]float64, len(spec.Groups))
	for i, g := range spec.Groups {
		for _, l := range g.Leaves {
			sums[i] += l.Value
		}
	}

	var tiles []Tile
	for gi, outer := range Layout(sums, Rect{W: 1, H: 1}) {
		g := spec.Groups[gi]
		values := make([]float64, len(g.Leaves))
		for i, l := range g.Leaves {
			values[i] = l.Value
		}
		for li, inner := range Layout(values, outer) {
			if inner.Area() <= 0 {
				continue
			}
			tiles = append(tiles, Tile{Group: g.Name, Name: g.Leaves[li].Name, Value: g.Leaves[li].Value, Rect: inner})
		}
	}
	return tiles
}

// CountColors picks a color per tile from p, scaled by tile value: the
// smallest count gets the first color and the largest the last. When all
// counts are equal every tile gets the last color.
func CountColors(tiles []Tile, p palette.Palette) []color.Color {
	colors := p.Colors()
	out := make([]color.Color, len(tiles))
	if len(tiles) == 0 || len(colors) == 0 {
		return out
	}

	lo, hi := tiles[0].Value, tiles[0].Value
	for _, t := range tiles {
		lo, hi = min(lo, t.Value), max(hi, t.Value)
	}
	last := len(colors) - 1
	for i, t := range tiles {
		idx := last
		if hi > lo {
			idx = int((t.Value - lo) / (hi - lo) * float64(last))
		}
		out[i] = colors[idx]
	}
	return out
}

// treemapPlotter fills laid-out tiles in data coordinates [0,1]x[0,1].
// colors is parallel to tiles.
type treemapPlotter struct {
	tiles  []Tile
	colors []color.Color
}

func (t *treemapPlotter) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	border := draw.LineStyle{Color: color.White, Width: vg.Points(1)}

	for i, tile := range t.tiles {
		r := tile.Rect
		pts := []vg.Point{
			{X: trX(r.X), Y: trY(r.Y)},
			{X: trX(r.X), Y: trY(r.Y + r.H)},
			{X: trX(r.X + r.W), Y: trY(r.Y + r.H)},
			{X: trX(r.X + r.W), Y: trY(r.Y)},
		}
		c.FillPolygon(t.colors[i], c.ClipPolygonXY(pts))
		c.StrokeLines(border, c.ClipLinesXY(append(pts, pts[0]))...)
	}
}

func (t *treemapPlotter) DataRange() (xmin, xmax, ymin, ymax float64) {
	return 0, 1, 0, 1
}

// minLabelArea is the smallest tile, as a share of the chart, that gets a
// text label.
const minLabelArea = 0.015

// Treemap renders spec as a squarified treemap, tiles shaded by count.
func (r *Renderer) Treemap(ctx context.Context, spec TreemapSpec) ([]byte, error) {
	return r.draw(ctx, "treemap", spec, func() (*plot.Plot, error) {
		p := plot.New()
		p.Title.Text = spec.Title
		p.HideAxes()

		tiles := LayoutTreemap(spec)
		p.Add(&treemapPlotter{tiles: tiles, colors: CountColors(tiles, palette.Heat(32, 1))})

		var labels plotter.XYLabels
		for _, tile := range tiles {
			if tile.Rect.Area() < minLabelArea {
				continue
			}
			labels.XYs = append(labels.XYs, plotter.XY{X: tile.Rect.X, Y: tile.Rect.Y + tile.Rect.H})
			labels.Labels = append(labels.Labels, fmt.Sprintf("%s\n%s (%g)", tile.Group, tile.Name, tile.Value))
		}
		if len(labels.Labels) > 0 {
			l, err := plotter.NewLabels(labels)
			if err != nil {
				return nil, err
			}
			l.Offset = vg.Point{X: vg.Points(3), Y: -vg.Points(22)}
			p.Add(l)
		}
		return p, nil
	})
}
