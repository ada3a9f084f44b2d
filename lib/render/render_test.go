package render_test

import (
	"bytes"
	"context"
	"image/color"
	"math"
	"testing"

	"github.com/icco/specimens/lib/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/palette"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func newRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	r, err := render.New(render.Options{})
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestRenderer_Charts(t *testing.T) {
	t.Parallel()

	r := newRenderer(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{"scatter", func() ([]byte, error) {
			return r.Scatter(ctx, render.ScatterSpec{
				Labels: render.Labels{Title: "points", XLabel: "lon", YLabel: "lat"},
				Groups: []render.PointGroup{
					{Name: "Brazil", X: []float64{-47.9, -43.2}, Y: []float64{-15.8, -22.9}},
					{Name: "Peru", X: []float64{-77.0}, Y: []float64{-12.0}},
				},
			})
		}},
		{"scatter empty", func() ([]byte, error) {
			return r.Scatter(ctx, render.ScatterSpec{Labels: render.Labels{Title: "none"}})
		}},
		{"contour", func() ([]byte, error) {
			return r.Contour(ctx, render.ContourSpec{
				Labels: render.Labels{Title: "density"},
				Grid: render.Grid{
					Xs: []float64{0, 1, 2},
					Ys: []float64{0, 1, 2},
					Zs: [][]float64{{0, 1, 0}, {1, 4, 1}, {0, 1, 0}},
				},
			})
		}},
		{"contour flat", func() ([]byte, error) {
			return r.Contour(ctx, render.ContourSpec{
				Grid: render.Grid{Xs: []float64{0, 1}, Ys: []float64{0, 1}, Zs: [][]float64{{2, 2}, {2, 2}}},
			})
		}},
		{"bar", func() ([]byte, error) {
			return r.Bar(ctx, render.BarSpec{
				Labels:     render.Labels{Title: "richness"},
				Categories: []string{"Brazil", "Peru"},
				Values:     []float64{2, 1},
			})
		}},
		{"bar empty", func() ([]byte, error) {
			return r.Bar(ctx, render.BarSpec{})
		}},
		{"line", func() ([]byte, error) {
			return r.Line(ctx, render.LineSpec{
				Labels: render.Labels{Title: "trend"},
				Series: []render.Series{
					{Name: "adult", X: []float64{2001, 2002}, Y: []float64{3, 5}},
					{Name: "juvenile", X: []float64{2001}, Y: []float64{1}},
				},
			})
		}},
		{"treemap", func() ([]byte, error) {
			return r.Treemap(ctx, render.TreemapSpec{
				Title: "taxa",
				Groups: []render.TreemapGroup{
					{Name: "Brazil", Leaves: []render.TreemapLeaf{{Name: "C. jacchus", Value: 6}, {Name: "C. penicillata", Value: 2}}},
					{Name: "Peru", Leaves: []render.TreemapLeaf{{Name: "S. mystax", Value: 4}}},
				},
			})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := tt.render()
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(img, pngMagic), "expected PNG output")
		})
	}
}

func TestRenderer_CanceledContext(t *testing.T) {
	t.Parallel()

	r := newRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Bar(ctx, render.BarSpec{Categories: []string{"a"}, Values: []float64{1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLayout_Proportional(t *testing.T) {
	t.Parallel()

	values := []float64{6, 6, 4, 3, 2, 2, 1}
	bounds := render.Rect{W: 6, H: 4}
	rects := render.Layout(values, bounds)
	require.Len(t, rects, len(values))

	total := 0.0
	for _, v := range values {
		total += v
	}

	covered := 0.0
	for i, r := range rects {
		assert.InDelta(t, values[i]/total*bounds.Area(), r.Area(), 1e-9, "tile %d", i)
		assert.GreaterOrEqual(t, r.X, bounds.X-1e-9)
		assert.GreaterOrEqual(t, r.Y, bounds.Y-1e-9)
		assert.LessOrEqual(t, r.X+r.W, bounds.X+bounds.W+1e-9)
		assert.LessOrEqual(t, r.Y+r.H, bounds.Y+bounds.H+1e-9)
		covered += r.Area()
	}
	assert.InDelta(t, bounds.Area(), covered, 1e-9)

	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			assert.InDelta(t, 0, overlap(rects[i], rects[j]), 1e-9, "tiles %d and %d overlap", i, j)
		}
	}
}

func TestLayout_SkipsNonPositive(t *testing.T) {
	t.Parallel()

	rects := render.Layout([]float64{0, 3, -1}, render.Rect{W: 1, H: 1})
	assert.Zero(t, rects[0].Area())
	assert.Zero(t, rects[2].Area())
	assert.InDelta(t, 1, rects[1].Area(), 1e-9)

	assert.Len(t, render.Layout(nil, render.Rect{W: 1, H: 1}), 0)
}

func TestLayoutTreemap_NestsLeavesInGroups(t *testing.T) {
	t.Parallel()

	tiles := render.LayoutTreemap(render.TreemapSpec{
		Groups: []render.TreemapGroup{
			{Name: "A", Leaves: []render.TreemapLeaf{{Name: "x", Value: 3}, {Name: "y", Value: 1}}},
			{Name: "B", Leaves: []render.TreemapLeaf{{Name: "z", Value: 4}}},
		},
	})
	require.Len(t, tiles, 3)

	byName := map[string]float64{}
	for _, tile := range tiles {
		byName[tile.Group+"/"+tile.Name] = tile.Rect.Area()
	}
	assert.InDelta(t, 3.0/8, byName["A/x"], 1e-9)
	assert.InDelta(t, 1.0/8, byName["A/y"], 1e-9)
	assert.InDelta(t, 4.0/8, byName["B/z"], 1e-9)
}

func TestCountColors_ScaleWithValue(t *testing.T) {
	t.Parallel()

	pal := palette.Heat(5, 1)
	colors := pal.Colors()

	tiles := []render.Tile{
		{Group: "Peru", Name: "a", Value: 1},
		{Group: "Peru", Name: "b", Value: 3},
		{Group: "Brazil", Name: "c", Value: 5},
	}
	got := render.CountColors(tiles, pal)
	require.Len(t, got, 3)
	assert.Equal(t, colors[0], got[0])
	assert.Equal(t, colors[2], got[1])
	assert.Equal(t, colors[4], got[2])

	same := render.CountColors([]render.Tile{{Value: 2}, {Value: 2}}, pal)
	assert.Equal(t, []color.Color{colors[4], colors[4]}, same)
	assert.Empty(t, render.CountColors(nil, pal))
}

func overlap(a, b render.Rect) float64 {
	w := math.Min(a.X+a.W, b.X+b.W) - math.Max(a.X, b.X)
	h := math.Min(a.Y+a.H, b.Y+b.H) - math.Max(a.Y, b.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}
