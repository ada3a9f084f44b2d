package source

import (
	"context"
	"fmt"
	"os"

	"github.com/icco/specimens/lib/config"
	"github.com/icco/specimens/lib/dataset"
	"github.com/xuri/excelize/v2"
)

type xlsxLoader struct {
	path  string
	sheet string
}

func newXLSXLoader(src config.Source) *xlsxLoader {
	return &xlsxLoader{path: src.Path, sheet: src.Sheet}
}

// Load reads the configured sheet, or the first sheet of the workbook. The
// first row is the header.
func (l *xlsxLoader) Load(ctx context.Context) (*dataset.Table, error) {
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", l.path, err)
	}
	defer f.Close()

	sheet := l.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", l.path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := dataset.Load(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to load sheet %q: %w", sheet, err)
	}
	return t, nil
}

func (l *xlsxLoader) Ping(ctx context.Context) error {
	_, err := os.Stat(l.path)
	return err
}

func (l *xlsxLoader) Close() error {
	return nil
}
