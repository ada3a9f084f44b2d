package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/icco/specimens/lib/config"
	"github.com/icco/specimens/lib/dataset"
)

const utf8BOM = "\ufeff"

type csvLoader struct {
	path  string
	comma rune
}

func newCSVLoader(src config.Source) (*csvLoader, error) {
	l := &csvLoader{path: src.Path, comma: ','}
	if src.Delimiter != "" {
		r := []rune(src.Delimiter)
		if len(r) != 1 {
			return nil, fmt.Errorf("delimiter must be a single character, got %q", src.Delimiter)
		}
		l.comma = r[0]
	}
	return l, nil
}

func (l *csvLoader) Load(ctx context.Context) (*dataset.Table, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", l.path, err)
	}
	defer f.Close()

	return ReadCSV(ctx, f, l.comma)
}

// ReadCSV parses delimited text with a header row. Every record must
// have as many fields as the header; quoting errors are returned.
func ReadCSV(ctx context.Context, r io.Reader, comma rune) (*dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	br := bufio.NewReader(r)
	if bom, err := br.Peek(len(utf8BOM)); err == nil && string(bom) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}

	df := dataframe.ReadCSV(br, dataset.LoadOptions(
		dataframe.WithDelimiter(comma),
		dataframe.WithLazyQuotes(true),
	)...)
	t, err := dataset.FromDataFrame(df)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func (l *csvLoader) Ping(ctx context.Context) error {
	_, err := os.Stat(l.path)
	return err
}

func (l *csvLoader) Close() error {
	return nil
}
