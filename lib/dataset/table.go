// Package dataset holds the in-memory tabular representation of a loaded
// data source, backed by a gota DataFrame.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// NaNValues are the raw values read as missing, matching the markers
// pandas applies to CSV input. Values are not trimmed, so "  " is a value.
var NaNValues = []string{
	"", "NA", "N/A", "n/a", "NaN", "nan", "-NaN", "-nan",
	"null", "NULL", "None", "#N/A", "<NA>",
}

// LoadOptions are the gota options every source loads with: a header row,
// every column read as text and the missing markers above. Numeric
// columns are converted explicitly with CoerceNumeric.
func LoadOptions(extra ...dataframe.LoadOption) []dataframe.LoadOption {
	opts := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(NaNValues),
	}
	return append(opts, extra...)
}

// Table is an ordered set of named columns. Derived tables share nothing
// with their parent, so a Table is safe to read concurrently.
type Table struct {
	df dataframe.DataFrame
}

// FromDataFrame wraps df, surfacing any error gota recorded on it.
func FromDataFrame(df dataframe.DataFrame) (*Table, error) {
	if df.Err != nil {
		return nil, df.Err
	}
	return &Table{df: df}, nil
}

// Load builds a table from string records whose first record is the
// header. Rows shorter than the header are padded with missing cells,
// longer rows are truncated.
func Load(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, errors.New("dataset has no header")
	}
	header := records[0]
	if len(records) == 1 {
		return empty(header), nil
	}

	fixed := make([][]string, len(records))
	fixed[0] = header
	for i, rec := range records[1:] {
		switch {
		case len(rec) < len(header):
			padded := make([]string, len(header))
			copy(padded, rec)
			rec = padded
		case len(rec) > len(header):
			rec = rec[:len(header)]
		}
		fixed[i+1] = rec
	}

	t, err := FromDataFrame(dataframe.LoadRecords(fixed, LoadOptions()...))
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	return t, nil
}

// FromStrings is Load for literal tables. It panics on malformed input.
func FromStrings(columns []string, records [][]string) *Table {
	t, err := Load(append([][]string{columns}, records...))
	if err != nil {
		panic(err)
	}
	return t
}

func empty(header []string) *Table {
	cols := make([]series.Series, len(header))
	for i, name := range header {
		cols[i] = series.New([]string{}, series.String, name)
	}
	return &Table{df: dataframe.New(cols...)}
}

// DataFrame returns the underlying frame.
func (t *Table) DataFrame() dataframe.DataFrame {
	return t.df
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return t.df.Names()
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.df.Nrow()
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	for _, c := range t.df.Names() {
		if c == name {
			return true
		}
	}
	return false
}

// MissingColumns returns the names that are not columns of t, in the
// order given. An empty result means every name is present.
func (t *Table) MissingColumns(names ...string) []string {
	var missing []string
	for _, n := range names {
		if !t.Has(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// Strings returns the named column as text with a validity mask. Both are
// nil when the column does not exist.
func (t *Table) Strings(name string) ([]string, []bool) {
	if !t.Has(name) {
		return nil, nil
	}
	s := t.df.Col(name)
	vals := s.Records()
	valid := s.IsNaN()
	for i := range valid {
		valid[i] = !valid[i]
		if !valid[i] {
			vals[i] = ""
		}
	}
	return vals, valid
}

// Floats returns the named column as finite numbers, NaN where a cell is
// missing or does not parse. It is nil when the column does not exist.
func (t *Table) Floats(name string) []float64 {
	if !t.Has(name) {
		return nil
	}
	s := t.df.Col(name)
	if s.Type() == series.Float || s.Type() == series.Int {
		out := s.Float()
		for i, f := range out {
			if math.IsInf(f, 0) {
				out[i] = math.NaN()
			}
		}
		return out
	}

	vals, valid := t.Strings(name)
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = math.NaN()
		if valid[i] {
			if f, ok := ParseNumber(v); ok {
				out[i] = f
			}
		}
	}
	return out
}

// Filter keeps the rows matching every filter.
func (t *Table) Filter(filters ...dataframe.F) (*Table, error) {
	df := t.df
	for _, f := range filters {
		if df.Nrow() == 0 {
			break
		}
		df = df.Filter(f)
		if df.Err != nil {
			return nil, fmt.Errorf("failed to filter on %q: %w", f.Colname, df.Err)
		}
	}
	return &Table{df: df}, nil
}

// NotMissing matches cells holding a value.
func NotMissing(col string) dataframe.F {
	return dataframe.F{
		Colname:    col,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool { return !el.IsNA() },
	}
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	n = max(0, min(n, t.Len()))
	switch n {
	case t.Len():
		return t
	case 0:
		return empty(t.Columns())
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return &Table{df: t.df.Subset(idx)}
}

// CoerceNumeric returns t with the named column converted to numbers.
// Values that do not parse as finite numbers become missing. Surrounding
// whitespace is ignored when parsing. Without the column, t is returned.
func (t *Table) CoerceNumeric(name string) (*Table, error) {
	if !t.Has(name) {
		return t, nil
	}
	nums := t.Floats(name)
	df := t.df.Mutate(series.New(nums, series.Float, name))
	if df.Err != nil {
		return nil, fmt.Errorf("failed to coerce %q: %w", name, df.Err)
	}
	return &Table{df: df}, nil
}

// Records renders the rows as text. Missing cells are "" and numeric
// columns use FormatNumber, so 2001.0 reads "2001".
func (t *Table) Records() [][]string {
	names := t.df.Names()
	cols := make([][]string, len(names))
	for j, name := range names {
		s := t.df.Col(name)
		if s.Type() == series.Float {
			vals := s.Float()
			col := make([]string, len(vals))
			for i, f := range vals {
				if !math.IsNaN(f) {
					col[i] = FormatNumber(f)
				}
			}
			cols[j] = col
			continue
		}
		cols[j], _ = t.Strings(name)
	}

	out := make([][]string, t.Len())
	for i := range out {
		row := make([]string, len(names))
		for j := range names {
			row[j] = cols[j][i]
		}
		out[i] = row
	}
	return out
}

// ParseNumber parses s as a finite float, ignoring surrounding
// whitespace. NaN and infinities are rejected.
func ParseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatNumber renders whole numbers without a fractional part
// ("2001" rather than "2001.0") and everything else in shortest form.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
