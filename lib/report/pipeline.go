package report

import (
	"context"
	"log/slog"

	"github.com/icco/specimens/lib/dataset"
	"github.com/icco/specimens/lib/filter"
	"github.com/icco/specimens/lib/metrics"
)

// PreviewRows is the number of filtered rows shown in the preview table.
const PreviewRows = 25

// Loader returns datasets by source name.
type Loader interface {
	GetDF(ctx context.Context, name string) (*dataset.Table, error)
	Default() string
}

// Request selects a source and an optional year range. Nil bounds fall
// back to the observed span of the data.
type Request struct {
	Source  string
	YearMin *int
	YearMax *int
}

// Report is one run of the dashboard over a source.
type Report struct {
	Source       string         `json:"source"`
	Bounds       *filter.Bounds `json:"bounds,omitempty"`
	Range        *filter.Range  `json:"range,omitempty"`
	TotalRows    int            `json:"total_rows"`
	FilteredRows int            `json:"filtered_rows"`
	Columns      []string       `json:"columns"`
	Preview      [][]string     `json:"preview"`
	Panels       []Panel        `json:"panels"`
}

// Warnings returns the number of panels replaced by a warning.
func (r *Report) Warnings() int {
	n := 0
	for _, p := range r.Panels {
		if !p.Rendered() {
			n++
		}
	}
	return n
}

// Rendered returns the number of panels holding a chart.
func (r *Report) Rendered() int {
	return len(r.Panels) - r.Warnings()
}

// Panel returns the panel with the given ID.
func (r *Report) Panel(id string) (Panel, bool) {
	for _, p := range r.Panels {
		if p.ID == id {
			return p, true
		}
	}
	return Panel{}, false
}

// Pipeline loads a source, applies the year range and assembles panels.
type Pipeline struct {
	loader    Loader
	assembler *Assembler
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(loader Loader, assembler *Assembler, logger *slog.Logger) *Pipeline {
	return &Pipeline{loader: loader, assembler: assembler, logger: logger}
}

type filtered struct {
	source string
	total  int
	bounds *filter.Bounds
	rng    *filter.Range
	table  *dataset.Table
}

func (p *Pipeline) prepare(ctx context.Context, req Request) (*filtered, error) {
	name := req.Source
	if name == "" {
		name = p.loader.Default()
	}

	t, err := p.loader.GetDF(ctx, name)
	if err != nil {
		return nil, err
	}

	out := &filtered{source: name, total: t.Len(), table: t}
	if b, ok := filter.YearBounds(t); ok {
		r := filter.Select(b, req.YearMin, req.YearMax)
		out.bounds, out.rng = &b, &r
	}
	if out.table, err = filter.Apply(t, out.rng); err != nil {
		return nil, err
	}
	return out, nil
}

// Run produces the full report for req.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	f, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	panels, err := p.assembler.Assemble(ctx, f.table)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Source:       f.source,
		Bounds:       f.bounds,
		Range:        f.rng,
		TotalRows:    f.total,
		FilteredRows: f.table.Len(),
		Columns:      f.table.Columns(),
		Preview:      f.table.Head(PreviewRows).Records(),
		Panels:       panels,
	}

	metrics.ReportRows.WithLabelValues("loaded").Observe(float64(rep.TotalRows))
	metrics.ReportRows.WithLabelValues("filtered").Observe(float64(rep.FilteredRows))
	p.logger.InfoContext(ctx, "Report assembled",
		slog.String("source", rep.Source),
		slog.Int("total_rows", rep.TotalRows),
		slog.Int("filtered_rows", rep.FilteredRows),
		slog.Int("rendered", rep.Rendered()),
		slog.Int("warnings", rep.Warnings()))
	return rep, nil
}

// Chart produces a single panel for req.
func (p *Pipeline) Chart(ctx context.Context, req Request, id string) (Panel, error) {
	if _, ok := Lookup(id); !ok {
		return Panel{}, ErrUnknownChart
	}

	f, err := p.prepare(ctx, req)
	if err != nil {
		return Panel{}, err
	}
	return p.assembler.AssembleOne(ctx, f.table, id)
}
