// Package report assembles the chart panels of the occurrence dashboard.
package report

import "errors"

// Field names read from the dataset.
const (
	FieldYear      = "year"
	FieldLatitude  = "decimalLatitude"
	FieldLongitude = "decimalLongitude"
	FieldSpecies   = "speciesQueried"
	FieldCountry   = "country"
	FieldLifeStage = "lifeStage"
)

// Kind names the kind of chart a panel draws.
type Kind string

const (
	KindScatter Kind = "scatter"
	KindContour Kind = "contour"
	KindBar     Kind = "bar"
	KindTreemap Kind = "treemap"
	KindLine    Kind = "line"
)

// ErrUnknownChart is returned when a chart ID matches no ChartSpec.
var ErrUnknownChart = errors.New("unknown chart")

// ChartSpec describes one dashboard panel: its text, the fields it needs,
// and the warning shown in place of the chart when any is absent.
type ChartSpec struct {
	ID       string   `json:"id"`
	Heading  string   `json:"heading"`
	Caption  string   `json:"caption"`
	Title    string   `json:"title"`
	Kind     Kind     `json:"kind"`
	Required []string `json:"required"`
	Warning  string   `json:"-"`
}

// Charts lists the panels in display order.
var Charts = []ChartSpec{
	{
		ID:       "geo",
		Heading:  "Spatial Distribution Analysis",
		Caption:  "Figure 1 illustrates the geographical distribution of Callitrichidae specimens across their native range.",
		Title:    "Geographical Distribution of Callitrichidae Specimens",
		Kind:     KindScatter,
		Required: []string{FieldLatitude, FieldLongitude},
		Warning:  "⚠️ Columns 'decimalLatitude' and 'decimalLongitude' not found.",
	},
	{
		ID:       "density",
		Heading:  "Population Density Assessment",
		Caption:  "Figure 2 presents a density estimation of observations to highlight population concentration.",
		Title:    "Spatial Density Estimation of Observations",
		Kind:     KindContour,
		Required: []string{FieldLatitude, FieldLongitude},
		Warning:  "⚠️ Need 'decimalLatitude' and 'decimalLongitude' for density plot.",
	},
	{
		ID:       "richness",
		Heading:  "Species Richness Evaluation",
		Caption:  "Figure 3 quantifies taxonomic diversity across political boundaries.",
		Title:    "Callitrichidae Species Richness by Geographic Region",
		Kind:     KindBar,
		Required: []string{FieldCountry, FieldSpecies},
		Warning:  "⚠️ Need 'country' and 'speciesQueried' columns for richness chart.",
	},
	{
		ID:       "treemap",
		Heading:  "Taxonomic Distribution by Geographic Region",
		Caption:  "Figure 4 shows hierarchical relationships between geography and taxonomy.",
		Title:    "Taxonomic and Geographic Distribution",
		Kind:     KindTreemap,
		Required: []string{FieldCountry, FieldSpecies},
		Warning:  "⚠️ Need 'country' and 'speciesQueried' for treemap.",
	},
	{
		ID:       "lifestage",
		Heading:  "Ontogenetic Temporal Distribution",
		Caption:  "Figure 5 examines temporal distribution across life stages.",
		Title:    "Ontogenetic Distribution of Observations: Temporal Analysis",
		Kind:     KindLine,
		Required: []string{FieldYear, FieldLifeStage},
		Warning:  "⚠️ Need 'year' and 'lifeStage' columns for the temporal analysis.",
	},
}

// Lookup returns the ChartSpec with the given ID.
func Lookup(id string) (ChartSpec, bool) {
	for _, c := range Charts {
		if c.ID == id {
			return c, true
		}
	}
	return ChartSpec{}, false
}
