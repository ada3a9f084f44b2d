package dataset_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/icco/specimens/lib/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_MissingMarkers(t *testing.T) {
	t.Parallel()

	markers := []string{"", "NA", "NaN", "nan", "null", "None", "#N/A", "<NA>"}
	records := make([][]string, len(markers))
	for i, m := range markers {
		records[i] = []string{m}
	}
	tbl := dataset.FromStrings([]string{"v"}, records)

	vals, valid := tbl.Strings("v")
	require.Len(t, valid, len(markers))
	for i, m := range markers {
		assert.False(t, valid[i], "expected %q to be missing", m)
		assert.Empty(t, vals[i])
	}
}

func TestTable_KeepsWhitespace(t *testing.T) {
	t.Parallel()

	tbl := dataset.FromStrings([]string{"country"}, [][]string{{"  "}, {" Brazil "}})

	vals, valid := tbl.Strings("country")
	assert.Equal(t, []bool{true, true}, valid, "blank text is a value, not a missing marker")
	assert.Equal(t, []string{"  ", " Brazil "}, vals)
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	f, ok := dataset.ParseNumber(" 2001.5 ")
	require.True(t, ok)
	assert.InDelta(t, 2001.5, f, 1e-9)

	for _, raw := range []string{"abc", "inf", "NaN", ""} {
		_, ok = dataset.ParseNumber(raw)
		assert.False(t, ok, raw)
	}
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2001", dataset.FormatNumber(2001.0))
	assert.Equal(t, "-12.25", dataset.FormatNumber(-12.25))
	assert.Equal(t, "0", dataset.FormatNumber(0))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tbl, err := dataset.Load([][]string{{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, []string{"a", "b"}, tbl.Columns())

	_, err = dataset.Load(nil)
	assert.Error(t, err)
}

func TestTable_PadsAndTruncatesRows(t *testing.T) {
	t.Parallel()

	tbl := dataset.FromStrings([]string{"a", "b"}, [][]string{
		{"1"},
		{"1", "2", "3"},
	})

	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, [][]string{{"1", ""}, {"1", "2"}}, tbl.Records())
	_, valid := tbl.Strings("b")
	assert.Equal(t, []bool{false, true}, valid)
}

func TestTable_MissingColumns(t *testing.T) {
	t.Parallel()

	tbl := dataset.FromStrings([]string{"country", "year"}, nil)

	assert.Empty(t, tbl.MissingColumns("country", "year"))
	assert.Equal(t, []string{"lifeStage"}, tbl.MissingColumns("year", "lifeStage"))
	assert.Equal(t, []string{"decimalLatitude", "decimalLongitude"}, tbl.MissingColumns("decimalLatitude", "decimalLongitude"))
}

func TestTable_CoerceNumeric(t *testing.T) {
	t.Parallel()

	tbl := dataset.FromStrings([]string{"year", "name"}, [][]string{
		{"2001.0", "a"},
		{"unknown", "b"},
		{"", "c"},
		{" 1999 ", "d"},
	})
	coerced, err := tbl.CoerceNumeric("year")
	require.NoError(t, err)
	same, err := coerced.CoerceNumeric("absent")
	require.NoError(t, err)
	assert.Same(t, coerced, same)

	want := [][]string{
		{"2001", "a"},
		{"", "b"},
		{"", "c"},
		{"1999", "d"},
	}
	if diff := cmp.Diff(want, coerced.Records()); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "2001.0", tbl.Records()[0][0], "the source table is unchanged")

	years := coerced.Floats("year")
	assert.InDelta(t, 1999, years[3], 1e-9)
	assert.True(t, math.IsNaN(years[1]))
	assert.Nil(t, coerced.Floats("absent"))
}

func TestTable_FilterHead(t *testing.T) {
	t.Parallel()

	tbl := dataset.FromStrings([]string{"n", "tag"}, [][]string{
		{"1", "a"}, {"2", ""}, {"3", "c"}, {"4", "d"},
	})

	tagged, err := tbl.Filter(dataset.NotMissing("tag"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "a"}, {"3", "c"}, {"4", "d"}}, tagged.Records())
	assert.Equal(t, []string{"n", "tag"}, tagged.Columns())

	_, err = tbl.Filter(dataset.NotMissing("absent"))
	assert.Error(t, err)

	assert.Equal(t, [][]string{{"1", "a"}, {"2", ""}}, tbl.Head(2).Records())
	assert.Same(t, tbl, tbl.Head(25))
	assert.Equal(t, 0, tbl.Head(-1).Len())
	assert.Equal(t, []string{"n", "tag"}, tbl.Head(0).Columns())
}

func TestTable_DuplicateColumnsAreRenamed(t *testing.T) {
	t.Parallel()

	tbl := dataset.FromStrings([]string{"x", "x"}, [][]string{{"first", "second"}})
	assert.Equal(t, []string{"x_0", "x_1"}, tbl.Columns())
	assert.False(t, tbl.Has("x"))
}
