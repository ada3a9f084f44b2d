package report

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/icco/specimens/lib/dataset"
	"github.com/icco/specimens/lib/render"
)

// Point is one georeferenced occurrence.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Species   string  `json:"species,omitempty"`
	Country   string  `json:"country,omitempty"`
}

// Richness is the number of distinct species recorded for a country.
type Richness struct {
	Country string `json:"country"`
	Species int    `json:"species"`
}

// PairCount is the number of rows for a (country, species) pair.
type PairCount struct {
	Country string `json:"country"`
	Species string `json:"species"`
	Count   int    `json:"count"`
}

// TrendPoint is the number of rows for a (year, life stage) pair.
type TrendPoint struct {
	Year      float64 `json:"year"`
	LifeStage string  `json:"life_stage"`
	Count     int     `json:"count"`
}

// DensityBins is the number of cells per axis of a density grid.
const DensityBins = 30

// Points returns the rows with both coordinates, in table order. Rows
// missing either coordinate cannot be placed and are skipped.
func Points(t *dataset.Table) []Point {
	lats, lons := t.Floats(FieldLatitude), t.Floats(FieldLongitude)
	species, _ := t.Strings(FieldSpecies)
	countries, _ := t.Strings(FieldCountry)

	var out []Point
	for i := range lats {
		if math.IsNaN(lats[i]) || math.IsNaN(lons[i]) {
			continue
		}
		p := Point{Latitude: lats[i], Longitude: lons[i]}
		if species != nil {
			p.Species = species[i]
		}
		if countries != nil {
			p.Country = countries[i]
		}
		out = append(out, p)
	}
	return out
}

// DensityGrid counts points into a bins x bins histogram over longitude
// (columns) and latitude (rows). A degenerate axis is widened by half a
// degree each way. No points yields an empty grid.
func DensityGrid(points []Point, bins int) render.Grid {
	if len(points) == 0 || bins < 2 {
		return render.Grid{}
	}

	lonMin, lonMax := math.Inf(1), math.Inf(-1)
	latMin, latMax := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lonMin, lonMax = math.Min(lonMin, p.Longitude), math.Max(lonMax, p.Longitude)
		latMin, latMax = math.Min(latMin, p.Latitude), math.Max(latMax, p.Latitude)
	}
	if lonMax == lonMin {
		lonMin, lonMax = lonMin-0.5, lonMax+0.5
	}
	if latMax == latMin {
		latMin, latMax = latMin-0.5, latMax+0.5
	}
	dx := (lonMax - lonMin) / float64(bins)
	dy := (latMax - latMin) / float64(bins)

	g := render.Grid{
		Xs: make([]float64, bins),
		Ys: make([]float64, bins),
		Zs: make([][]float64, bins),
	}
	for i := 0; i < bins; i++ {
		g.Xs[i] = lonMin + (float64(i)+0.5)*dx
		g.Ys[i] = latMin + (float64(i)+0.5)*dy
		g.Zs[i] = make([]float64, bins)
	}
	for _, p := range points {
		c := min(int((p.Longitude-lonMin)/dx), bins-1)
		r := min(int((p.Latitude-latMin)/dy), bins-1)
		g.Zs[r][c]++
	}
	return g
}

// groupCount counts the rows of t per distinct combination of keys. Rows
// missing a key must already be filtered out. Each result row holds the
// key values as text followed by the count.
func groupCount(t *dataset.Table, keys ...string) ([][]string, []int, error) {
	if t.Len() == 0 {
		return nil, nil, nil
	}
	df := t.DataFrame().Select(keys)
	countCol := fmt.Sprintf("%s_%s", keys[0], dataframe.Aggregation_COUNT)
	agg := df.GroupBy(keys...).Aggregation(
		[]dataframe.AggregationType{dataframe.Aggregation_COUNT},
		[]string{keys[0]},
	)
	if agg.Err != nil {
		return nil, nil, fmt.Errorf("failed to group by %v: %w", keys, agg.Err)
	}

	cols := make([][]string, len(keys))
	for j, k := range keys {
		cols[j] = agg.Col(k).Records()
	}
	counts := agg.Col(countCol).Float()
	rows := make([][]string, agg.Nrow())
	ns := make([]int, agg.Nrow())
	for i := range rows {
		row := make([]string, len(keys))
		for j := range keys {
			row[j] = cols[j][i]
		}
		rows[i] = row
		ns[i] = int(counts[i])
	}
	return rows, ns, nil
}

// CountPairs counts rows per (country, species), ordered by country then
// species. Rows missing either key are skipped.
func CountPairs(t *dataset.Table) ([]PairCount, error) {
	valid, err := t.Filter(dataset.NotMissing(FieldCountry), dataset.NotMissing(FieldSpecies))
	if err != nil {
		return nil, err
	}
	rows, counts, err := groupCount(valid, FieldCountry, FieldSpecies)
	if err != nil {
		return nil, err
	}

	out := make([]PairCount, len(rows))
	for i, row := range rows {
		out[i] = PairCount{Country: row[0], Species: row[1], Count: counts[i]}
	}
	slices.SortFunc(out, func(a, b PairCount) int {
		return cmp.Or(strings.Compare(a.Country, b.Country), strings.Compare(a.Species, b.Species))
	})
	return out, nil
}

// CountRichness counts distinct species per country, most diverse first.
// Rows without a country are skipped; a missing species is not counted,
// so a country with none has richness 0. Ties keep ascending country order.
func CountRichness(t *dataset.Table) ([]Richness, error) {
	pairs, err := CountPairs(t)
	if err != nil {
		return nil, err
	}

	species := map[string]int{}
	countries, valid := t.Strings(FieldCountry)
	for i, c := range countries {
		if valid[i] {
			species[c] += 0
		}
	}
	for _, p := range pairs {
		species[p.Country]++
	}

	out := make([]Richness, 0, len(species))
	for country, n := range species {
		out = append(out, Richness{Country: country, Species: n})
	}
	slices.SortFunc(out, func(a, b Richness) int {
		return cmp.Or(cmp.Compare(b.Species, a.Species), strings.Compare(a.Country, b.Country))
	})
	return out, nil
}

// CountLifeStages counts rows per (year, life stage), ordered by year then
// stage. Rows with a missing year, a missing stage, or the stage "unknown"
// in any letter case are excluded.
func CountLifeStages(t *dataset.Table) ([]TrendPoint, error) {
	t, err := t.CoerceNumeric(FieldYear)
	if err != nil {
		return nil, err
	}
	known := dataframe.F{
		Colname:    FieldLifeStage,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			return !el.IsNA() && !strings.EqualFold(el.String(), "unknown")
		},
	}
	valid, err := t.Filter(known, dataset.NotMissing(FieldYear))
	if err != nil {
		return nil, err
	}
	rows, counts, err := groupCount(valid, FieldYear, FieldLifeStage)
	if err != nil {
		return nil, err
	}

	out := make([]TrendPoint, 0, len(rows))
	for i, row := range rows {
		year, ok := dataset.ParseNumber(row[0])
		if !ok {
			return nil, fmt.Errorf("unexpected year group %q", row[0])
		}
		out = append(out, TrendPoint{Year: year, LifeStage: row[1], Count: counts[i]})
	}
	slices.SortFunc(out, func(a, b TrendPoint) int {
		return cmp.Or(cmp.Compare(a.Year, b.Year), strings.Compare(a.LifeStage, b.LifeStage))
	})
	return out, nil
}
