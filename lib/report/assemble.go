package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alitto/pond/v2"
	"github.com/icco/specimens/lib/dataset"
	"github.com/icco/specimens/lib/metrics"
	"github.com/icco/specimens/lib/render"
)

// Renderer draws chart specs to images.
type Renderer interface {
	Scatter(ctx context.Context, spec render.ScatterSpec) ([]byte, error)
	Contour(ctx context.Context, spec render.ContourSpec) ([]byte, error)
	Bar(ctx context.Context, spec render.BarSpec) ([]byte, error)
	Treemap(ctx context.Context, spec render.TreemapSpec) ([]byte, error)
	Line(ctx context.Context, spec render.LineSpec) ([]byte, error)
}

// Panel is the assembled output of one ChartSpec: either a warning naming
// the absent fields, or the aggregated data and its rendered image.
type Panel struct {
	ID      string   `json:"id"`
	Heading string   `json:"heading"`
	Caption string   `json:"caption"`
	Title   string   `json:"title"`
	Kind    Kind     `json:"kind"`
	Warning string   `json:"warning,omitempty"`
	Missing []string `json:"missing,omitempty"`

	Points   []Point      `json:"points,omitempty"`
	Density  *render.Grid `json:"density,omitempty"`
	Richness []Richness   `json:"richness,omitempty"`
	Pairs    []PairCount  `json:"pairs,omitempty"`
	Trend    []TrendPoint `json:"trend,omitempty"`

	Image []byte `json:"-"`
}

// Rendered reports whether the panel holds a chart rather than a warning.
func (p Panel) Rendered() bool {
	return p.Warning == ""
}

const defaultWorkers = 5

// Assembler builds panels from a filtered table, rendering them on a
// shared worker pool.
type Assembler struct {
	renderer Renderer
	pool     pond.ResultPool[Panel]
	logger   *slog.Logger
}

// NewAssembler creates an Assembler with at most workers concurrent
// renders across all callers.
func NewAssembler(renderer Renderer, logger *slog.Logger, workers int) *Assembler {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Assembler{
		renderer: renderer,
		pool:     pond.NewResultPool[Panel](workers),
		logger:   logger,
	}
}

// Stop waits for in-flight renders and stops the pool.
func (a *Assembler) Stop() {
	a.pool.StopAndWait()
}

// Assemble evaluates every chart in Charts against t. Panels come back in
// display order. The first render error aborts the run.
func (a *Assembler) Assemble(ctx context.Context, t *dataset.Table) ([]Panel, error) {
	group := a.pool.NewGroupContext(ctx)
	for _, spec := range Charts {
		group.SubmitErr(func() (Panel, error) {
			return a.panel(ctx, t, spec)
		})
	}

	panels, err := group.Wait()
	if err != nil {
		return nil, err
	}
	return panels, nil
}

// AssembleOne evaluates the chart with the given ID.
func (a *Assembler) AssembleOne(ctx context.Context, t *dataset.Table, id string) (Panel, error) {
	spec, ok := Lookup(id)
	if !ok {
		return Panel{}, fmt.Errorf("%w: %q", ErrUnknownChart, id)
	}
	return a.panel(ctx, t, spec)
}

func (a *Assembler) panel(ctx context.Context, t *dataset.Table, spec ChartSpec) (Panel, error) {
	p := Panel{
		ID:      spec.ID,
		Heading: spec.Heading,
		Caption: spec.Caption,
		Title:   spec.Title,
		Kind:    spec.Kind,
	}

	if missing := t.MissingColumns(spec.Required...); len(missing) > 0 {
		p.Warning = spec.Warning
		p.Missing = missing
		metrics.ChartsTotal.WithLabelValues(spec.ID, "warning").Inc()
		a.logger.DebugContext(ctx, "Chart skipped",
			slog.String("chart", spec.ID),
			slog.Any("missing", missing))
		return p, nil
	}

	var err error
	switch spec.Kind {
	case KindScatter:
		p.Points = Points(t)
		p.Image, err = a.renderer.Scatter(ctx, scatterSpec(spec, t, p.Points))
	case KindContour:
		grid := DensityGrid(Points(t), DensityBins)
		p.Density = &grid
		p.Image, err = a.renderer.Contour(ctx, render.ContourSpec{
			Labels: render.Labels{Title: spec.Title, XLabel: FieldLongitude, YLabel: FieldLatitude},
			Grid:   grid,
		})
	case KindBar:
		if p.Richness, err = CountRichness(t); err != nil {
			return p, err
		}
		p.Image, err = a.renderer.Bar(ctx, barSpec(spec, p.Richness))
	case KindTreemap:
		if p.Pairs, err = CountPairs(t); err != nil {
			return p, err
		}
		p.Image, err = a.renderer.Treemap(ctx, treemapSpec(spec, p.Pairs))
	case KindLine:
		if p.Trend, err = CountLifeStages(t); err != nil {
			return p, err
		}
		p.Image, err = a.renderer.Line(ctx, lineSpec(spec, p.Trend))
	default:
		return p, fmt.Errorf("%w: kind %q", ErrUnknownChart, spec.Kind)
	}
	if err != nil {
		return p, fmt.Errorf("failed to render %s: %w", spec.ID, err)
	}

	metrics.ChartsTotal.WithLabelValues(spec.ID, "rendered").Inc()
	return p, nil
}

// scatterSpec colors points by country when the table has that column.
func scatterSpec(spec ChartSpec, t *dataset.Table, points []Point) render.ScatterSpec {
	out := render.ScatterSpec{
		Labels: render.Labels{Title: spec.Title, XLabel: FieldLongitude, YLabel: FieldLatitude},
	}

	byCountry := t.Has(FieldCountry)
	groups := map[string]int{}
	for _, pt := range points {
		name := ""
		if byCountry {
			name = pt.Country
		}
		i, ok := groups[name]
		if !ok {
			i = len(out.Groups)
			groups[name] = i
			out.Groups = append(out.Groups, render.PointGroup{Name: name})
		}
		out.Groups[i].X = append(out.Groups[i].X, pt.Longitude)
		out.Groups[i].Y = append(out.Groups[i].Y, pt.Latitude)
	}
	return out
}

func barSpec(spec ChartSpec, rows []Richness) render.BarSpec {
	out := render.BarSpec{
		Labels: render.Labels{Title: spec.Title, XLabel: FieldCountry, YLabel: "richness"},
	}
	for _, r := range rows {
		out.Categories = append(out.Categories, r.Country)
		out.Values = append(out.Values, float64(r.Species))
	}
	return out
}

// treemapSpec nests species under countries. pairs arrive sorted by
// country, so each country's leaves are contiguous.
func treemapSpec(spec ChartSpec, pairs []PairCount) render.TreemapSpec {
	out := render.TreemapSpec{Title: spec.Title}
	for _, pc := range pairs {
		if n := len(out.Groups); n == 0 || out.Groups[n-1].Name != pc.Country {
			out.Groups = append(out.Groups, render.TreemapGroup{Name: pc.Country})
		}
		g := &out.Groups[len(out.Groups)-1]
		g.Leaves = append(g.Leaves, render.TreemapLeaf{Name: pc.Species, Value: float64(pc.Count)})
	}
	return out
}

// lineSpec draws one series per life stage, in order of first appearance.
func lineSpec(spec ChartSpec, trend []TrendPoint) render.LineSpec {
	out := render.LineSpec{
		Labels: render.Labels{Title: spec.Title, XLabel: FieldYear, YLabel: "count"},
	}
	series := map[string]int{}
	for _, tp := range trend {
		i, ok := series[tp.LifeStage]
		if !ok {
			i = len(out.Series)
			series[tp.LifeStage] = i
			out.Series = append(out.Series, render.Series{Name: tp.LifeStage})
		}
		out.Series[i].X = append(out.Series[i].X, tp.Year)
		out.Series[i].Y = append(out.Series[i].Y, float64(tp.Count))
	}
	return out
}
