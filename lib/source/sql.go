package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/icco/specimens/lib/config"
	"github.com/icco/specimens/lib/dataset"
	"github.com/icco/specimens/lib/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqliteLoader reads a table or query result through gorm.
type sqliteLoader struct {
	path  string
	table string
	query string
	db    *gorm.DB
}

func newSQLiteLoader(src config.Source, logger *slog.Logger) (*sqliteLoader, error) {
	if _, err := os.Stat(src.Path); err != nil {
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}

	gormDB, err := gorm.Open(sqlite.Open("file:"+src.Path+"?mode=ro"), &gorm.Config{
		Logger: db.NewGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &sqliteLoader{path: src.Path, table: src.Table, query: src.Query, db: gormDB}, nil
}

func (l *sqliteLoader) Load(ctx context.Context) (*dataset.Table, error) {
	tx := l.db.WithContext(ctx)
	if l.table != "" {
		tx = tx.Table(l.table)
	} else {
		tx = tx.Raw(l.query)
	}

	rows, err := tx.Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", l.path, err)
	}
	defer rows.Close()

	return readRows(rows)
}

func (l *sqliteLoader) Ping(ctx context.Context) error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (l *sqliteLoader) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// duckDBLoader runs a query against an in-memory or file-backed DuckDB
// database, e.g. SELECT * FROM read_csv_auto('occurrences.csv').
type duckDBLoader struct {
	query string
	db    *sql.DB
}

func newDuckDBLoader(src config.Source) (*duckDBLoader, error) {
	conn, err := sql.Open("duckdb", src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	return &duckDBLoader{query: src.Query, db: conn}, nil
}

func (l *duckDBLoader) Load(ctx context.Context) (*dataset.Table, error) {
	rows, err := l.db.QueryContext(ctx, l.query)
	if err != nil {
		return nil, fmt.Errorf("failed to run duckdb query: %w", err)
	}
	defer rows.Close()

	return readRows(rows)
}

func (l *duckDBLoader) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func (l *duckDBLoader) Close() error {
	return l.db.Close()
}

// readRows turns a result set into a table, keeping column order.
func readRows(rows *sql.Rows) (*dataset.Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	records := [][]string{cols}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", len(records), err)
		}
		rec := make([]string, len(cols))
		for i, v := range vals {
			rec[i] = formatValue(v)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return dataset.Load(records)
}

// formatValue renders a scanned value as text. NULL and non-finite floats
// become "", which loads as missing.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case uint64:
		return strconv.FormatUint(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return dataset.FormatNumber(f)
}
