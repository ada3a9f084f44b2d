package report_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/icco/specimens/lib/dataset"
	"github.com/icco/specimens/lib/filter"
	"github.com/icco/specimens/lib/render"
	"github.com/icco/specimens/lib/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeRenderer) record(kind string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("img:" + kind), nil
}

func (f *fakeRenderer) Scatter(context.Context, render.ScatterSpec) ([]byte, error) {
	return f.record("scatter")
}

func (f *fakeRenderer) Contour(context.Context, render.ContourSpec) ([]byte, error) {
	return f.record("contour")
}

func (f *fakeRenderer) Bar(context.Context, render.BarSpec) ([]byte, error) {
	return f.record("bar")
}

func (f *fakeRenderer) Treemap(context.Context, render.TreemapSpec) ([]byte, error) {
	return f.record("treemap")
}

func (f *fakeRenderer) Line(context.Context, render.LineSpec) ([]byte, error) {
	return f.record("line")
}

type fakeLoader map[string]*dataset.Table

func (f fakeLoader) GetDF(_ context.Context, name string) (*dataset.Table, error) {
	t, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("no source %q", name)
	}
	return t, nil
}

func (f fakeLoader) Default() string { return "occ" }

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newAssembler(t *testing.T, r report.Renderer) *report.Assembler {
	t.Helper()
	a := report.NewAssembler(r, newLogger(), 2)
	t.Cleanup(a.Stop)
	return a
}

var fullColumns = []string{"year", "decimalLatitude", "decimalLongitude", "speciesQueried", "country", "lifeStage"}

func occurrences() *dataset.Table {
	t := dataset.FromStrings(fullColumns, [][]string{
		{"2001", "-15.8", "-47.9", "Callithrix jacchus", "Brazil", "adult"},
		{"2001", "-22.9", "-43.2", "Callithrix penicillata", "Brazil", "Adult"},
		{"2002", "-12.0", "-77.0", "Saguinus mystax", "Peru", "UNKNOWN"},
		{"2003", "", "-70.1", "Saguinus mystax", "Peru", ""},
		{"", "-3.1", "-60.0", "Callithrix jacchus", "Brazil", "juvenile"},
	})
	t, err := t.CoerceNumeric("year")
	if err != nil {
		panic(err)
	}
	return t
}

func TestCountRichness(t *testing.T) {
	t.Parallel()

	tbl := dataset.FromStrings([]string{"country", "speciesQueried"}, [][]string{
		{"B", "s3"},
		{"A", "s1"},
		{"A", "s2"},
		{"A", "s1"},
		{"", "s9"},
	})

	got, err := report.CountRichness(tbl)
	require.NoError(t, err)
	assert.Equal(t, []report.Richness{
		{Country: "A", Species: 2},
		{Country: "B", Species: 1},
	}, got)
}

func TestCountRichness_TiesAscending(t *testing.T) {
	t.Parallel()

	tbl := dataset.FromStrings([]string{"country", "speciesQueried"}, [][]string{
		{"Peru", "x"},
		{"Bolivia", "y"},
		{"Colombia", ""},
	})

	got, err := report.CountRichness(tbl)
	require.NoError(t, err)
	assert.Equal(t, []report.Richness{
		{Country: "Bolivia", Species: 1},
		{Country: "Peru", Species: 1},
		{Country: "Colombia", Species: 0},
	}, got)
}

func TestCountPairs(t *testing.T) {
	t.Parallel()

	tbl := dataset.FromStrings([]string{"country", "speciesQueried"}, [][]string{
		{"Peru", "b"},
		{"Brazil", "a"},
		{"Peru", "b"},
		{"Brazil", "c"},
		{"Peru", ""},
		{"Brazil", "a"},
		{"Brazil", "a"},
	})

	got, err := report.CountPairs(tbl)
	require.NoError(t, err)
	assert.Equal(t, []report.PairCount{
		{Country: "Brazil", Species: "a", Count: 3},
		{Country: "Brazil", Species: "c", Count: 1},
		{Country: "Peru", Species: "b", Count: 2},
	}, got)
}

func TestCountLifeStages(t *testing.T) {
	t.Parallel()

	tbl := dataset.FromStrings([]string{"year", "lifeStage"}, [][]string{
		{"2002", "adult"},
		{"2001", "adult"},
		{"2001", "Unknown"},
		{"2001", "UNKNOWN"},
		{"2001", ""},
		{"", "juvenile"},
		{"2001", "juvenile"},
		{"2002", "adult"},
	})

	got, err := report.CountLifeStages(tbl)
	require.NoError(t, err)
	assert.Equal(t, []report.TrendPoint{
		{Year: 2001, LifeStage: "adult", Count: 1},
		{Year: 2001, LifeStage: "juvenile", Count: 1},
		{Year: 2002, LifeStage: "adult", Count: 2},
	}, got)

	empty, err := report.CountLifeStages(dataset.FromStrings([]string{"year", "lifeStage"}, [][]string{{"2001", "unknown"}}))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPointsAndDensityGrid(t *testing.T) {
	t.Parallel()

	points := report.Points(occurrences())
	require.Len(t, points, 4, "row without latitude is skipped")
	assert.Equal(t, report.Point{Latitude: -15.8, Longitude: -47.9, Species: "Callithrix jacchus", Country: "Brazil"}, points[0])

	grid := report.DensityGrid(points, 4)
	cols, rows := grid.Dims()
	assert.Equal(t, 4, cols)
	assert.Equal(t, 4, rows)

	total := 0.0
	for _, row := range grid.Zs {
		for _, z := range row {
			total += z
		}
	}
	assert.Equal(t, float64(len(points)), total)

	single := report.DensityGrid(points[:1], 3)
	assert.InDelta(t, -47.9, single.Xs[1], 1e-9, "degenerate axis is centered on the point")
	assert.Equal(t, 1.0, single.Zs[1][1])

	assert.Equal(t, render.Grid{}, report.DensityGrid(nil, 4))
}

func TestAssemble_AllFieldsPresent(t *testing.T) {
	t.Parallel()

	r := &fakeRenderer{}
	panels, err := newAssembler(t, r).Assemble(context.Background(), occurrences())
	require.NoError(t, err)
	require.Len(t, panels, len(report.Charts))

	for i, p := range panels {
		assert.Equal(t, report.Charts[i].ID, p.ID, "panel order")
		assert.True(t, p.Rendered(), p.ID)
		assert.Empty(t, p.Warning)
		assert.Equal(t, []byte("img:"+string(p.Kind)), p.Image)
	}
	assert.ElementsMatch(t, []string{"scatter", "contour", "bar", "treemap", "line"}, r.calls)

	assert.Equal(t, []report.TrendPoint{
		{Year: 2001, LifeStage: "Adult", Count: 1},
		{Year: 2001, LifeStage: "adult", Count: 1},
	}, panels[4].Trend)
}

func TestAssemble_MissingFieldsWarn(t *testing.T) {
	t.Parallel()

	tbl := dataset.FromStrings([]string{"country", "speciesQueried"}, [][]string{
		{"Brazil", "Callithrix jacchus"},
	})

	r := &fakeRenderer{}
	panels, err := newAssembler(t, r).Assemble(context.Background(), tbl)
	require.NoError(t, err)

	want := map[string]string{
		"geo":       "⚠️ Columns 'decimalLatitude' and 'decimalLongitude' not found.",
		"density":   "⚠️ Need 'decimalLatitude' and 'decimalLongitude' for density plot.",
		"richness":  "",
		"treemap":   "",
		"lifestage": "⚠️ Need 'year' and 'lifeStage' columns for the temporal analysis.",
	}
	for _, p := range panels {
		assert.Equal(t, want[p.ID], p.Warning, p.ID)
		if p.Warning != "" {
			assert.Nil(t, p.Image, p.ID)
		}
	}
	assert.Equal(t, []string{"year", "lifeStage"}, panels[4].Missing)
	assert.ElementsMatch(t, []string{"bar", "treemap"}, r.calls)
}

func TestAssemble_PartialColumnWarns(t *testing.T) {
	t.Parallel()

	tbl := dataset.FromStrings([]string{"decimalLatitude", "speciesQueried"}, [][]string{{"1", "x"}})
	panels, err := newAssembler(t, &fakeRenderer{}).Assemble(context.Background(), tbl)
	require.NoError(t, err)

	for _, p := range panels {
		assert.False(t, p.Rendered(), p.ID)
	}
}

func TestAssemble_RenderErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := newAssembler(t, &fakeRenderer{err: boom}).Assemble(context.Background(), occurrences())
	assert.ErrorIs(t, err, boom)
}

func TestAssembleOne_UnknownChart(t *testing.T) {
	t.Parallel()

	_, err := newAssembler(t, &fakeRenderer{}).AssembleOne(context.Background(), occurrences(), "pie")
	assert.ErrorIs(t, err, report.ErrUnknownChart)
}

func TestPipeline_Run(t *testing.T) {
	t.Parallel()

	p := report.NewPipeline(fakeLoader{"occ": occurrences()}, newAssembler(t, &fakeRenderer{}), newLogger())

	rep, err := p.Run(context.Background(), report.Request{})
	require.NoError(t, err)
	assert.Equal(t, "occ", rep.Source)
	assert.Equal(t, &filter.Bounds{Min: 2001, Max: 2003}, rep.Bounds)
	assert.Equal(t, &filter.Range{Min: 2001, Max: 2003}, rep.Range)
	assert.Equal(t, 5, rep.TotalRows)
	assert.Equal(t, 4, rep.FilteredRows, "missing year is dropped")
	assert.Equal(t, fullColumns, rep.Columns)
	assert.Len(t, rep.Preview, 4)
	assert.Equal(t, 5, rep.Rendered())
	assert.Equal(t, 0, rep.Warnings())

	lo, hi := 2002, 2002
	rep, err = p.Run(context.Background(), report.Request{Source: "occ", YearMin: &lo, YearMax: &hi})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.FilteredRows)
	assert.Equal(t, &filter.Range{Min: 2002, Max: 2002}, rep.Range)

	panel, ok := rep.Panel("richness")
	require.True(t, ok)
	assert.Equal(t, []report.Richness{{Country: "Peru", Species: 1}}, panel.Richness)
}

func TestPipeline_PreviewCapped(t *testing.T) {
	t.Parallel()

	records := make([][]string, 40)
	for i := range records {
		records[i] = []string{fmt.Sprint(1990 + i)}
	}
	tbl := dataset.FromStrings([]string{"year"}, records)

	p := report.NewPipeline(fakeLoader{"occ": tbl}, newAssembler(t, &fakeRenderer{}), newLogger())
	rep, err := p.Run(context.Background(), report.Request{})
	require.NoError(t, err)
	assert.Len(t, rep.Preview, report.PreviewRows)
	assert.Equal(t, 40, rep.FilteredRows)
	assert.Equal(t, 5, rep.Warnings())
}

func TestPipeline_NoYearColumn(t *testing.T) {
	t.Parallel()

	tbl := dataset.FromStrings([]string{"country", "speciesQueried"}, [][]string{{"Peru", "x"}, {"Peru", "y"}})
	p := report.NewPipeline(fakeLoader{"occ": tbl}, newAssembler(t, &fakeRenderer{}), newLogger())

	lo := 1900
	rep, err := p.Run(context.Background(), report.Request{YearMin: &lo})
	require.NoError(t, err)
	assert.Nil(t, rep.Bounds)
	assert.Nil(t, rep.Range)
	assert.Equal(t, 2, rep.FilteredRows)
}

func TestPipeline_Chart(t *testing.T) {
	t.Parallel()

	p := report.NewPipeline(fakeLoader{"occ": occurrences()}, newAssembler(t, &fakeRenderer{}), newLogger())

	panel, err := p.Chart(context.Background(), report.Request{}, "treemap")
	require.NoError(t, err)
	assert.Equal(t, []byte("img:treemap"), panel.Image)

	_, err = p.Chart(context.Background(), report.Request{}, "nope")
	assert.ErrorIs(t, err, report.ErrUnknownChart)

	_, err = p.Chart(context.Background(), report.Request{Source: "missing"}, "geo")
	assert.Error(t, err)
}
